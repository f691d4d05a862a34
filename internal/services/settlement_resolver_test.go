package services

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dbm "allpartyrental/internal/models/db_models"
	"allpartyrental/internal/repositories"
)

func TestResolveStrategy(t *testing.T) {
	merchant := "MERCHANT-9"
	email := "p@example.com"
	incomplete := "MERCHANT-NOT-DONE"

	tests := []struct {
		name    string
		profile *dbm.ProviderProfile
		want    Settlement
	}{
		{
			name:    "onboarded merchant gets marketplace split",
			profile: &dbm.ProviderProfile{MerchantID: &merchant, OnboardingComplete: true},
			want:    Settlement{Strategy: dbm.StrategyMarketplace, PayeeMerchantID: merchant},
		},
		{
			name: "merchant account wins over payout email",
			profile: &dbm.ProviderProfile{
				MerchantID: &merchant, OnboardingComplete: true, PayoutEmail: &email,
			},
			want: Settlement{Strategy: dbm.StrategyMarketplace, PayeeMerchantID: merchant},
		},
		{
			name:    "incomplete onboarding falls back to payout email",
			profile: &dbm.ProviderProfile{MerchantID: &incomplete, PayoutEmail: &email},
			want:    Settlement{Strategy: dbm.StrategyPlain, PayoutEmail: email},
		},
		{
			name:    "payout email only",
			profile: &dbm.ProviderProfile{PayoutEmail: &email},
			want:    Settlement{Strategy: dbm.StrategyPlain, PayoutEmail: email},
		},
		{
			name:    "no destination flags manual settlement",
			profile: &dbm.ProviderProfile{},
			want:    Settlement{Strategy: dbm.StrategyPlain, ManualSettlement: true},
		},
		{
			name:    "no profile at all flags manual settlement",
			profile: nil,
			want:    Settlement{Strategy: dbm.StrategyPlain, ManualSettlement: true},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			providerID := uuid.New()
			var profiles repositories.ProviderProfileRepository
			if tt.profile != nil {
				tt.profile.ProviderID = providerID
				profiles = repositories.NewMemoryProviderProfileRepository(tt.profile)
			} else {
				profiles = repositories.NewMemoryProviderProfileRepository()
			}

			resolver := NewSettlementResolver(profiles, testLogger())
			got, err := resolver.Resolve(context.Background(), providerID, decimal.NewFromInt(100))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
