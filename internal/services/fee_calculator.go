package services

import (
	"github.com/shopspring/decimal"

	"allpartyrental/pkg/utils"
)

// FeeSplit is the computed three-way split for one settlement. Every value
// is rounded to the currency's minor unit.
type FeeSplit struct {
	ClientFee   decimal.Decimal
	ClientTotal decimal.Decimal
	PlatformFee decimal.Decimal
	ProviderNet decimal.Decimal
}

var oneHundred = decimal.NewFromInt(100)

// ComputeSplit derives the client total, platform fee and provider net
// payout from a base price and the configured fee percentages.
//
//	clientTotal = basePrice + basePrice * clientFeePct/100
//	platformFee = basePrice * providerFeePct/100
//	providerNet = basePrice - platformFee
//
// Arithmetic is fixed-point with half-up rounding. The provider net is
// rounded first and the platform fee derived as the exact remainder, so
// basePrice == PlatformFee + ProviderNet holds to the penny and rounding
// drift always lands on the platform line, never on the provider's
// contract price.
func ComputeSplit(basePrice, clientFeePct, providerFeePct decimal.Decimal, currency string) (FeeSplit, error) {
	if basePrice.IsNegative() {
		return FeeSplit{}, utils.NewValidationError("basePrice", "must not be negative")
	}
	if clientFeePct.IsNegative() || clientFeePct.GreaterThan(oneHundred) {
		return FeeSplit{}, utils.NewValidationError("clientFeePercent", "must be within [0,100]")
	}
	if providerFeePct.IsNegative() || providerFeePct.GreaterThan(oneHundred) {
		return FeeSplit{}, utils.NewValidationError("providerFeePercent", "must be within [0,100]")
	}

	exp := utils.CurrencyExponent(currency)
	base := basePrice.Round(exp)

	clientFee := base.Mul(clientFeePct).Div(oneHundred).Round(exp)
	providerNet := base.Sub(base.Mul(providerFeePct).Div(oneHundred)).Round(exp)
	platformFee := base.Sub(providerNet)

	return FeeSplit{
		ClientFee:   clientFee,
		ClientTotal: base.Add(clientFee),
		PlatformFee: platformFee,
		ProviderNet: providerNet,
	}, nil
}
