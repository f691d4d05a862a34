package services

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	dbm "allpartyrental/internal/models/db_models"
	"allpartyrental/internal/repositories"
)

// Settlement is the resolver's decision on how a provider gets paid. The
// decision is an inspectable value, not an exception path: the orchestrator
// branches on Strategy and ManualSettlement rather than catching gateway
// failures to find out what happened.
type Settlement struct {
	Strategy dbm.SettlementStrategy

	// PayeeMerchantID is set for MARKETPLACE settlements.
	PayeeMerchantID string

	// PayoutEmail is set for PLAIN settlements with a manual payout step.
	PayoutEmail string

	// ManualSettlement flags a provider with no payout destination at all.
	// The payment still proceeds; an operator settles by hand.
	ManualSettlement bool
}

// SettlementResolver decides plain-order vs marketplace-split-order for a
// provider, with fallback when no destination is configured.
type SettlementResolver interface {
	Resolve(ctx context.Context, providerID uuid.UUID, amount decimal.Decimal) (Settlement, error)
}

type settlementResolver struct {
	profiles repositories.ProviderProfileRepository
	logger   *slog.Logger
}

func NewSettlementResolver(profiles repositories.ProviderProfileRepository, logger *slog.Logger) SettlementResolver {
	return &settlementResolver{profiles: profiles, logger: logger}
}

func (r *settlementResolver) Resolve(ctx context.Context, providerID uuid.UUID, amount decimal.Decimal) (Settlement, error) {
	profile, err := r.profiles.GetByProviderID(ctx, providerID)
	if err != nil {
		return Settlement{}, err
	}

	if profile != nil && profile.HasMerchantAccount() {
		return Settlement{
			Strategy:        dbm.StrategyMarketplace,
			PayeeMerchantID: *profile.MerchantID,
		}, nil
	}

	if profile != nil && profile.HasPayoutEmail() {
		return Settlement{
			Strategy:    dbm.StrategyPlain,
			PayoutEmail: *profile.PayoutEmail,
		}, nil
	}

	// A payment must never be blocked by a provider-side onboarding gap;
	// flag the record for manual settlement instead.
	r.logger.Warn("provider has no payout destination, flagging for manual settlement",
		"provider_id", providerID, "amount", amount)
	return Settlement{
		Strategy:         dbm.StrategyPlain,
		ManualSettlement: true,
	}, nil
}
