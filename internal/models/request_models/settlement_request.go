package request_models

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type InitiateCheckoutRequest struct {
	OfferID uuid.UUID `json:"offer_id" binding:"required"`
}

type RefundRequest struct {
	// Amount is a decimal string; nil means a full refund.
	Amount *decimal.Decimal `json:"amount"`
}

type ResolveDisputeRequest struct {
	Outcome string `json:"outcome" binding:"required,oneof=complete refund"`
}
