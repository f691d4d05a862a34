package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

// Config aggregates application configuration values.
type Config struct {
	HTTP       HTTPConfig
	Database   DatabaseConfig
	Gateway    GatewayConfig
	Settlement SettlementSettings
	Logging    LoggingConfig
}

// HTTPConfig governs the HTTP server.
type HTTPConfig struct {
	Port int
}

// DatabaseConfig describes Postgres connectivity.
type DatabaseConfig struct {
	URL string
}

// GatewayConfig describes the payment gateway connection. Mode is
// "sandbox" or "live"; MockMode switches the whole client to the
// deterministic in-process implementation and is never implied silently.
type GatewayConfig struct {
	BaseURL      string
	ClientID     string
	ClientSecret string
	Mode         string
	MockMode     bool
	Timeout      time.Duration
}

// IsLive reports whether the gateway is configured against the production
// environment.
func (g GatewayConfig) IsLive() bool {
	return g.Mode == "live"
}

// SettlementSettings is the snapshot of marketplace fee and escrow policy
// injected into the settlement service. Tests supply their own values; the
// engine never reads these from a global.
type SettlementSettings struct {
	ClientFeePercent   decimal.Decimal
	ProviderFeePercent decimal.Decimal
	EscrowWindow       time.Duration
	PendingTTL         time.Duration
	SchedulerInterval  time.Duration
	Currency           string
}

// LoggingConfig controls structured logging settings.
type LoggingConfig struct {
	Level  string
	Format string // text|json
}

const (
	defaultPort              = 8080
	defaultGatewayMode       = "sandbox"
	defaultGatewayTimeout    = 15 * time.Second
	defaultClientFeePct      = "5"
	defaultProviderFeePct    = "10"
	defaultEscrowWindowHours = 72
	defaultPendingTTLHours   = 24
	defaultSchedulerInterval = 5 * time.Minute
	defaultCurrency          = "USD"
	defaultLoggingLevel      = "info"
	defaultLoggingFormat     = "text"
)

// Load reads configuration from environment variables, applying defaults.
func Load() (Config, error) {
	cfg := Config{
		HTTP: HTTPConfig{
			Port: parseIntWithDefault("PORT", defaultPort),
		},
		Database: DatabaseConfig{
			URL: os.Getenv("POSTGRES_URL"),
		},
		Gateway: GatewayConfig{
			BaseURL:      os.Getenv("GATEWAY_BASE_URL"),
			ClientID:     os.Getenv("GATEWAY_CLIENT_ID"),
			ClientSecret: os.Getenv("GATEWAY_CLIENT_SECRET"),
			Mode:         valueOrDefault("GATEWAY_MODE", defaultGatewayMode),
			MockMode:     parseBoolWithDefault("GATEWAY_MOCK", false),
			Timeout:      defaultGatewayTimeout,
		},
		Logging: LoggingConfig{
			Level:  valueOrDefault("LOG_LEVEL", defaultLoggingLevel),
			Format: valueOrDefault("LOG_FORMAT", defaultLoggingFormat),
		},
	}

	if v := os.Getenv("GATEWAY_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid GATEWAY_TIMEOUT: %w", err)
		}
		cfg.Gateway.Timeout = d
	}

	settlement, err := loadSettlementSettings()
	if err != nil {
		return Config{}, err
	}
	cfg.Settlement = settlement

	if cfg.Gateway.Mode != "sandbox" && cfg.Gateway.Mode != "live" {
		return Config{}, fmt.Errorf("invalid GATEWAY_MODE %q: must be sandbox or live", cfg.Gateway.Mode)
	}
	if cfg.Gateway.IsLive() && cfg.Gateway.MockMode {
		return Config{}, fmt.Errorf("GATEWAY_MOCK may not be enabled in live mode")
	}

	return cfg, nil
}

func loadSettlementSettings() (SettlementSettings, error) {
	clientPct, err := parsePercent("CLIENT_FEE_PERCENT", defaultClientFeePct)
	if err != nil {
		return SettlementSettings{}, err
	}
	providerPct, err := parsePercent("PROVIDER_FEE_PERCENT", defaultProviderFeePct)
	if err != nil {
		return SettlementSettings{}, err
	}

	s := SettlementSettings{
		ClientFeePercent:   clientPct,
		ProviderFeePercent: providerPct,
		EscrowWindow:       time.Duration(parseIntWithDefault("ESCROW_WINDOW_HOURS", defaultEscrowWindowHours)) * time.Hour,
		PendingTTL:         time.Duration(parseIntWithDefault("PENDING_TTL_HOURS", defaultPendingTTLHours)) * time.Hour,
		SchedulerInterval:  defaultSchedulerInterval,
		Currency:           valueOrDefault("SETTLEMENT_CURRENCY", defaultCurrency),
	}

	if v := os.Getenv("ESCROW_SCHEDULER_INTERVAL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return SettlementSettings{}, fmt.Errorf("invalid ESCROW_SCHEDULER_INTERVAL: %w", err)
		}
		s.SchedulerInterval = d
	}

	// A non-positive window would stamp escrow deadlines in the past and
	// let the scheduler release funds with no review at all.
	if s.EscrowWindow <= 0 {
		return SettlementSettings{}, fmt.Errorf("ESCROW_WINDOW_HOURS must be positive, got %s", s.EscrowWindow)
	}
	if s.PendingTTL <= 0 {
		return SettlementSettings{}, fmt.Errorf("PENDING_TTL_HOURS must be positive, got %s", s.PendingTTL)
	}
	if s.SchedulerInterval <= 0 {
		return SettlementSettings{}, fmt.Errorf("ESCROW_SCHEDULER_INTERVAL must be positive, got %s", s.SchedulerInterval)
	}

	return s, nil
}

func parsePercent(key, fallback string) (decimal.Decimal, error) {
	raw := valueOrDefault(key, fallback)
	pct, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid %s value %q: %w", key, raw, err)
	}
	if pct.IsNegative() || pct.GreaterThan(decimal.NewFromInt(100)) {
		return decimal.Zero, fmt.Errorf("%s must be within [0,100], got %s", key, raw)
	}
	return pct, nil
}

func valueOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func parseBoolWithDefault(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		val, err := strconv.ParseBool(v)
		if err != nil {
			return fallback
		}
		return val
	}
	return fallback
}

func parseIntWithDefault(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if val, err := strconv.Atoi(v); err == nil {
			return val
		}
	}
	return fallback
}
