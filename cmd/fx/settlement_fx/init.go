package settlement_fx

import (
	"log/slog"

	"go.uber.org/fx"
	"gorm.io/gorm"

	"allpartyrental/internal/api/controllers"
	"allpartyrental/internal/config"
	"allpartyrental/internal/gateway"
	"allpartyrental/internal/repositories"
	"allpartyrental/internal/services"
)

var Module = fx.Provide(
	provideTransactionRepo,
	provideOfferRepo,
	provideProviderProfileRepo,
	provideSettlementResolver,
	provideSettlementService,
	provideEscrowScheduler,
	provideSettlementController,
)

func provideTransactionRepo(db *gorm.DB) repositories.TransactionRepository {
	return repositories.NewTransactionRepository(db)
}

func provideOfferRepo(db *gorm.DB) repositories.OfferRepository {
	return repositories.NewOfferRepository(db)
}

func provideProviderProfileRepo(db *gorm.DB) repositories.ProviderProfileRepository {
	return repositories.NewProviderProfileRepository(db)
}

func provideSettlementResolver(profiles repositories.ProviderProfileRepository, logger *slog.Logger) services.SettlementResolver {
	return services.NewSettlementResolver(profiles, logger)
}

func provideSettlementService(
	txns repositories.TransactionRepository,
	offers repositories.OfferRepository,
	resolver services.SettlementResolver,
	gw gateway.Client,
	cfg config.Config,
	logger *slog.Logger,
) services.SettlementService {
	return services.NewSettlementService(txns, offers, resolver, gw, cfg.Settlement, logger)
}

func provideEscrowScheduler(
	txns repositories.TransactionRepository,
	service services.SettlementService,
	cfg config.Config,
	logger *slog.Logger,
) *services.EscrowScheduler {
	return services.NewEscrowScheduler(txns, service, cfg.Settlement, logger)
}

func provideSettlementController(settlementService services.SettlementService) *controllers.SettlementController {
	return controllers.NewSettlementController(settlementService)
}
