// Package gateway talks to the external payment gateway: order creation
// (plain and marketplace-split), capture, refund, payouts and delayed
// disbursement release. Two implementations exist: the HTTP client used
// against sandbox/live, and a deterministic mock selected by explicit
// configuration for environments without credentials.
package gateway

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// Client is the contract the settlement engine programs against.
type Client interface {
	// CreateOrder creates a plain order; funds land with the platform's
	// receiving account.
	CreateOrder(ctx context.Context, req OrderRequest) (*Order, error)

	// CreateMarketplaceOrder creates a split order with delayed
	// disbursement: the gateway holds amount minus the platform fee for
	// the payee until ReleaseFunds is called.
	CreateMarketplaceOrder(ctx context.Context, req MarketplaceOrderRequest) (*Order, error)

	// CaptureOrder charges the payer. Idempotent by order id: repeat calls
	// return the existing capture instead of charging twice.
	CaptureOrder(ctx context.Context, orderID string) (*Capture, error)

	// RefundCapture refunds a capture, fully when amount is nil.
	RefundCapture(ctx context.Context, captureID string, amount *Money) (*Refund, error)

	// CreatePayout sends funds to a payout email. Used when the provider
	// has no marketplace merchant account.
	CreatePayout(ctx context.Context, req PayoutRequest) (*PayoutBatch, error)

	// ReleaseFunds disburses a delayed-disbursement order's held funds to
	// the payee.
	ReleaseFunds(ctx context.Context, orderID, captureID string) error

	// GetOrderStatus and GetPayoutStatus are the only operations retried
	// on transient failure; they never mutate gateway state.
	GetOrderStatus(ctx context.Context, orderID string) (*OrderStatus, error)
	GetPayoutStatus(ctx context.Context, batchID string) (*PayoutStatus, error)
}

// Money is an exact amount with its ISO 4217 currency code. It crosses the
// wire as a decimal string, never as binary floating point.
type Money struct {
	Value    decimal.Decimal
	Currency string
}

// OrderRequest creates a plain order.
type OrderRequest struct {
	Amount   Money
	Metadata map[string]string
}

// MarketplaceOrderRequest creates a split order: the gateway disburses
// Amount minus PlatformFee to the payee merchant and retains PlatformFee.
type MarketplaceOrderRequest struct {
	Amount          Money
	PayeeMerchantID string
	PlatformFee     Money
	Metadata        map[string]string
}

// PayoutRequest transfers funds to a recipient identified by email.
// SenderBatchID is the caller-supplied idempotency key: the gateway
// deduplicates payout batches by it.
type PayoutRequest struct {
	SenderBatchID string
	Email         string
	Amount        Money
	Note          string
}

type Order struct {
	ID     string
	Status string
}

type Capture struct {
	ID      string
	OrderID string
	Status  string
}

type Refund struct {
	ID        string
	CaptureID string
	Status    string
}

type PayoutBatch struct {
	BatchID string
	Status  string
}

type OrderStatus struct {
	ID       string
	Status   string
	Captured bool
}

type PayoutStatus struct {
	BatchID string
	Status  string
}

// Gateway-side status values shared by both implementations.
const (
	OrderCreated     = "CREATED"
	OrderCompleted   = "COMPLETED"
	CaptureCompleted = "COMPLETED"
	CaptureDeclined  = "DECLINED"
	RefundCompleted  = "COMPLETED"
	PayoutPending    = "PENDING"
	PayoutSuccess    = "SUCCESS"
)

// Options configures a gateway client implementation.
type Options struct {
	BaseURL      string
	ClientID     string
	ClientSecret string
	Timeout      time.Duration
}

// ErrMissingCredentials indicates the HTTP client was requested without
// complete OAuth2 client credentials.
var ErrMissingCredentials = errors.New("gateway client credentials are required")
