package db_models

import (
	"github.com/google/uuid"
)

// ProviderProfile holds a provider's payout destination. Read-only to the
// settlement engine; onboarding flows maintain it.
type ProviderProfile struct {
	BaseModel
	ProviderID uuid.UUID `gorm:"type:uuid;uniqueIndex"`

	// Connected marketplace merchant account, present once onboarding with
	// the gateway finished.
	MerchantID *string `gorm:"index"`

	// Fallback destination for manual payouts.
	PayoutEmail *string

	OnboardingComplete bool `gorm:"default:false"`
}

// HasMerchantAccount reports whether split orders can pay this provider
// directly.
func (p *ProviderProfile) HasMerchantAccount() bool {
	return p.OnboardingComplete && p.MerchantID != nil && *p.MerchantID != ""
}

// HasPayoutEmail reports whether a manual payout destination exists.
func (p *ProviderProfile) HasPayoutEmail() bool {
	return p.PayoutEmail != nil && *p.PayoutEmail != ""
}
