package services

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"allpartyrental/pkg/utils"
)

func d(s string) decimal.Decimal {
	v, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return v
}

func TestComputeSplit(t *testing.T) {
	tests := []struct {
		name            string
		basePrice       string
		clientFeePct    string
		providerFeePct  string
		currency        string
		wantClientFee   string
		wantClientTotal string
		wantPlatformFee string
		wantProviderNet string
	}{
		{
			name:            "documented example",
			basePrice:       "100.00",
			clientFeePct:    "5",
			providerFeePct:  "10",
			currency:        "USD",
			wantClientFee:   "5.00",
			wantClientTotal: "105.00",
			wantPlatformFee: "10.00",
			wantProviderNet: "90.00",
		},
		{
			name:            "zero fees pass the full price through",
			basePrice:       "250.00",
			clientFeePct:    "0",
			providerFeePct:  "0",
			currency:        "USD",
			wantClientFee:   "0.00",
			wantClientTotal: "250.00",
			wantPlatformFee: "0.00",
			wantProviderNet: "250.00",
		},
		{
			name:            "rounding drift lands on the platform line",
			basePrice:       "99.99",
			clientFeePct:    "5",
			providerFeePct:  "10",
			currency:        "USD",
			wantClientFee:   "5.00", // 4.9995 rounds half-up
			wantClientTotal: "104.99",
			wantPlatformFee: "10.00", // 99.99 - 89.99, absorbs the drift
			wantProviderNet: "89.99", // 89.991 rounds to the minor unit
		},
		{
			name:            "odd cents",
			basePrice:       "33.33",
			clientFeePct:    "7.5",
			providerFeePct:  "12.5",
			currency:        "USD",
			wantClientFee:   "2.50", // 2.49975
			wantClientTotal: "35.83",
			wantPlatformFee: "4.17",  // 33.33 - 29.16
			wantProviderNet: "29.16", // 29.16375 to the minor unit
		},
		{
			name:            "zero-decimal currency",
			basePrice:       "1000",
			clientFeePct:    "5",
			providerFeePct:  "10",
			currency:        "JPY",
			wantClientFee:   "50",
			wantClientTotal: "1050",
			wantPlatformFee: "100",
			wantProviderNet: "900",
		},
		{
			name:            "full provider fee",
			basePrice:       "40.00",
			clientFeePct:    "0",
			providerFeePct:  "100",
			currency:        "USD",
			wantClientFee:   "0.00",
			wantClientTotal: "40.00",
			wantPlatformFee: "40.00",
			wantProviderNet: "0.00",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ComputeSplit(d(tt.basePrice), d(tt.clientFeePct), d(tt.providerFeePct), tt.currency)
			require.NoError(t, err)

			assert.True(t, got.ClientFee.Equal(d(tt.wantClientFee)), "client fee: got %s", got.ClientFee)
			assert.True(t, got.ClientTotal.Equal(d(tt.wantClientTotal)), "client total: got %s", got.ClientTotal)
			assert.True(t, got.PlatformFee.Equal(d(tt.wantPlatformFee)), "platform fee: got %s", got.PlatformFee)
			assert.True(t, got.ProviderNet.Equal(d(tt.wantProviderNet)), "provider net: got %s", got.ProviderNet)

			// Fee conservation: the base price splits exactly between the
			// platform and the provider.
			sum := got.PlatformFee.Add(got.ProviderNet)
			assert.True(t, sum.Equal(d(tt.basePrice).Round(utils.CurrencyExponent(tt.currency))),
				"platformFee + providerNet = %s, want %s", sum, tt.basePrice)
			assert.True(t, got.ClientTotal.Sub(got.ClientFee).Equal(d(tt.basePrice).Round(utils.CurrencyExponent(tt.currency))))
		})
	}
}

func TestComputeSplitRejectsBadInput(t *testing.T) {
	tests := []struct {
		name           string
		basePrice      string
		clientFeePct   string
		providerFeePct string
	}{
		{name: "negative base price", basePrice: "-1.00", clientFeePct: "5", providerFeePct: "10"},
		{name: "negative client fee", basePrice: "10.00", clientFeePct: "-5", providerFeePct: "10"},
		{name: "client fee above 100", basePrice: "10.00", clientFeePct: "101", providerFeePct: "10"},
		{name: "negative provider fee", basePrice: "10.00", clientFeePct: "5", providerFeePct: "-10"},
		{name: "provider fee above 100", basePrice: "10.00", clientFeePct: "5", providerFeePct: "100.01"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ComputeSplit(d(tt.basePrice), d(tt.clientFeePct), d(tt.providerFeePct), "USD")
			require.Error(t, err)

			var ve *utils.ValidationError
			assert.ErrorAs(t, err, &ve)
		})
	}
}

func TestComputeSplitConservationSweep(t *testing.T) {
	// Penny-level sweep around awkward amounts: conservation must hold
	// exactly for every one.
	for cents := int64(1); cents <= 500; cents += 7 {
		base := decimal.NewFromInt(cents).Div(decimal.NewFromInt(100))
		got, err := ComputeSplit(base, d("5"), d("12.5"), "USD")
		require.NoError(t, err)

		assert.True(t, got.PlatformFee.Add(got.ProviderNet).Equal(base.Round(2)),
			"conservation broken for %s: %s + %s", base, got.PlatformFee, got.ProviderNet)
		assert.False(t, got.PlatformFee.IsNegative(), "platform fee negative for %s", base)
		assert.False(t, got.ProviderNet.IsNegative(), "provider net negative for %s", base)
	}
}
