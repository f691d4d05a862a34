package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"

	"allpartyrental/cmd/fx/db_fx"
	"allpartyrental/cmd/fx/gateway_fx"
	"allpartyrental/cmd/fx/settlement_fx"
	"allpartyrental/internal/api/controllers"
	"allpartyrental/internal/config"
	"allpartyrental/internal/logging"
	"allpartyrental/internal/services"
	"allpartyrental/pkg/middleware"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using process environment")
	}

	app := fx.New(
		fx.Provide(provideConfig),
		fx.Provide(provideLogger),
		db_fx.Module,
		gateway_fx.Module,
		settlement_fx.Module,

		fx.Provide(ProvideRouter),
		fx.Invoke(StartScheduler),
		fx.Invoke(StartServer),
	)

	app.Run()
}

func provideConfig() config.Config {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	return cfg
}

func provideLogger(cfg config.Config) *slog.Logger {
	return logging.New(cfg.Logging)
}

func StartScheduler(lc fx.Lifecycle, scheduler *services.EscrowScheduler) {
	ctx, cancel := context.WithCancel(context.Background())
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go scheduler.Run(ctx)
			return nil
		},
		OnStop: func(context.Context) error {
			cancel()
			return nil
		},
	})
}

func StartServer(lc fx.Lifecycle, engine *gin.Engine, cfg config.Config) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
				log.Printf("Starting HTTP server at %s", addr)
				if err := engine.Run(addr); err != nil {
					log.Fatalf("Failed to start server: %v", err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			log.Println("Stopping HTTP server")
			return nil
		},
	})
}

func ProvideRouter(settlementController *controllers.SettlementController) *gin.Engine {
	r := gin.Default()
	r.Use(middleware.TraceIDMiddleware())

	RegisterRoutes(r, settlementController)

	return r
}

func RegisterRoutes(r *gin.Engine, settlementController *controllers.SettlementController) {
	r.GET("/health", func(c *gin.Context) { c.JSON(200, gin.H{"status": "ok"}) })
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	settlements := r.Group("/settlements")
	settlements.POST("/checkout", settlementController.InitiateCheckout)
	settlements.POST("/:id/confirm", settlementController.ConfirmPayment)
	settlements.POST("/:id/review", settlementController.BeginProviderReview)
	settlements.GET("/:id", settlementController.GetTransaction)

	// Approval and disputes need the caller's identity from the token.
	authed := settlements.Group("")
	authed.Use(middleware.JWTAuthMiddleware())
	authed.POST("/:id/approve", settlementController.ApproveByProvider)
	authed.POST("/:id/dispute", settlementController.RaiseDispute)

	// Refunds and dispute resolution are admin operations.
	admin := settlements.Group("")
	admin.Use(middleware.JWTAuthMiddleware(), middleware.RoleMiddleware("admin"))
	admin.POST("/:id/refund", settlementController.Refund)
	admin.POST("/:id/resolve", settlementController.ResolveDispute)
}
