package config

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustDecimal(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	require.NoError(t, err)
	return d
}

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{
		"PORT", "GATEWAY_MODE", "GATEWAY_MOCK", "GATEWAY_TIMEOUT",
		"CLIENT_FEE_PERCENT", "PROVIDER_FEE_PERCENT", "ESCROW_WINDOW_HOURS",
		"PENDING_TTL_HOURS", "ESCROW_SCHEDULER_INTERVAL", "SETTLEMENT_CURRENCY",
	} {
		t.Setenv(key, "")
	}

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.HTTP.Port)
	assert.Equal(t, "sandbox", cfg.Gateway.Mode)
	assert.False(t, cfg.Gateway.MockMode)
	assert.False(t, cfg.Gateway.IsLive())

	assert.True(t, cfg.Settlement.ClientFeePercent.Equal(mustDecimal(t, "5")))
	assert.True(t, cfg.Settlement.ProviderFeePercent.Equal(mustDecimal(t, "10")))
	assert.Equal(t, 72*time.Hour, cfg.Settlement.EscrowWindow)
	assert.Equal(t, 24*time.Hour, cfg.Settlement.PendingTTL)
	assert.Equal(t, 5*time.Minute, cfg.Settlement.SchedulerInterval)
	assert.Equal(t, "USD", cfg.Settlement.Currency)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("CLIENT_FEE_PERCENT", "2.5")
	t.Setenv("ESCROW_WINDOW_HOURS", "48")
	t.Setenv("ESCROW_SCHEDULER_INTERVAL", "30s")
	t.Setenv("GATEWAY_MODE", "live")
	t.Setenv("GATEWAY_TIMEOUT", "5s")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.HTTP.Port)
	assert.True(t, cfg.Settlement.ClientFeePercent.Equal(mustDecimal(t, "2.5")))
	assert.Equal(t, 48*time.Hour, cfg.Settlement.EscrowWindow)
	assert.Equal(t, 30*time.Second, cfg.Settlement.SchedulerInterval)
	assert.True(t, cfg.Gateway.IsLive())
	assert.Equal(t, 5*time.Second, cfg.Gateway.Timeout)
}

func TestLoadRejectsBadValues(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"unknown gateway mode", "GATEWAY_MODE", "staging"},
		{"fee percent over 100", "CLIENT_FEE_PERCENT", "150"},
		{"negative fee percent", "PROVIDER_FEE_PERCENT", "-1"},
		{"unparseable fee percent", "CLIENT_FEE_PERCENT", "five"},
		{"unparseable timeout", "GATEWAY_TIMEOUT", "soon"},
		{"negative escrow window", "ESCROW_WINDOW_HOURS", "-1"},
		{"zero escrow window", "ESCROW_WINDOW_HOURS", "0"},
		{"negative pending ttl", "PENDING_TTL_HOURS", "-2"},
		{"zero pending ttl", "PENDING_TTL_HOURS", "0"},
		{"negative scheduler interval", "ESCROW_SCHEDULER_INTERVAL", "-5m"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestLoadRejectsMockInLiveMode(t *testing.T) {
	t.Setenv("GATEWAY_MODE", "live")
	t.Setenv("GATEWAY_MOCK", "true")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "GATEWAY_MOCK")
}
