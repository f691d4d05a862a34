package response_models

import (
	"github.com/google/uuid"

	dbm "allpartyrental/internal/models/db_models"
	"allpartyrental/pkg/utils"
)

// TransactionResponse is the JSON shape returned for a settlement record.
// Monetary values are decimal strings with an explicit currency code.
type TransactionResponse struct {
	ID         uuid.UUID `json:"id"`
	OfferID    uuid.UUID `json:"offer_id"`
	ClientID   uuid.UUID `json:"client_id"`
	ProviderID uuid.UUID `json:"provider_id"`

	Amount      string `json:"amount"`
	ClientFee   string `json:"client_fee"`
	ClientTotal string `json:"client_total"`
	PlatformFee string `json:"platform_fee"`
	ProviderNet string `json:"provider_net"`
	Currency    string `json:"currency"`

	Status           string `json:"status"`
	Strategy         string `json:"strategy"`
	ManualSettlement bool   `json:"manual_settlement,omitempty"`

	GatewayOrderID   *string `json:"gateway_order_id,omitempty"`
	GatewayCaptureID *string `json:"gateway_capture_id,omitempty"`
	GatewayPayoutID  *string `json:"gateway_payout_id,omitempty"`

	CreatedAt     int64  `json:"created_at"`
	EscrowStartAt *int64 `json:"escrow_start_at,omitempty"`
	EscrowEndAt   *int64 `json:"escrow_end_at,omitempty"`
}

func FromTransaction(txn *dbm.Transaction) *TransactionResponse {
	exp := utils.CurrencyExponent(txn.Currency)
	return &TransactionResponse{
		ID:               txn.ID,
		OfferID:          txn.OfferID,
		ClientID:         txn.ClientID,
		ProviderID:       txn.ProviderID,
		Amount:           txn.Amount.StringFixed(exp),
		ClientFee:        txn.ClientFee.StringFixed(exp),
		ClientTotal:      txn.Amount.Add(txn.ClientFee).StringFixed(exp),
		PlatformFee:      txn.PlatformFee.StringFixed(exp),
		ProviderNet:      txn.ProviderNet.StringFixed(exp),
		Currency:         txn.Currency,
		Status:           string(txn.Status),
		Strategy:         string(txn.Strategy),
		ManualSettlement: txn.ManualSettlement,
		GatewayOrderID:   txn.GatewayOrderID,
		GatewayCaptureID: txn.GatewayCaptureID,
		GatewayPayoutID:  txn.GatewayPayoutID,
		CreatedAt:        txn.CreatedAt,
		EscrowStartAt:    txn.EscrowStartAt,
		EscrowEndAt:      txn.EscrowEndAt,
	}
}
