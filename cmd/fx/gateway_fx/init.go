package gateway_fx

import (
	"log"
	"log/slog"

	"go.uber.org/fx"

	"allpartyrental/internal/config"
	"allpartyrental/internal/gateway"
)

var Module = fx.Provide(provideGatewayClient)

func provideGatewayClient(cfg config.Config, logger *slog.Logger) gateway.Client {
	if cfg.Gateway.MockMode {
		log.Printf("payment gateway running in MOCK mode (mode=%s)", cfg.Gateway.Mode)
		return gateway.NewMockClient(logger)
	}

	client, err := gateway.NewHTTPClient(gateway.Options{
		BaseURL:      cfg.Gateway.BaseURL,
		ClientID:     cfg.Gateway.ClientID,
		ClientSecret: cfg.Gateway.ClientSecret,
		Timeout:      cfg.Gateway.Timeout,
	}, logger)
	if err != nil {
		log.Fatalf("Error initializing gateway client: %v", err)
	}
	return client
}
