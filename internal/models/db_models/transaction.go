package db_models

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"

	"allpartyrental/pkg/utils"
)

type TransactionStatus string

const (
	TxnStatusPending        TransactionStatus = "PENDING"
	TxnStatusEscrow         TransactionStatus = "ESCROW"
	TxnStatusProviderReview TransactionStatus = "PROVIDER_REVIEW"
	TxnStatusCompleted      TransactionStatus = "COMPLETED"
	TxnStatusRefunded       TransactionStatus = "REFUNDED"
	TxnStatusDeclined       TransactionStatus = "DECLINED"
	TxnStatusDisputed       TransactionStatus = "DISPUTED"
)

type SettlementStrategy string

const (
	StrategyPlain       SettlementStrategy = "PLAIN"
	StrategyMarketplace SettlementStrategy = "MARKETPLACE"
)

// Transaction is the ledger record of one escrowed payment. Amounts are
// stamped at checkout and never recomputed after capture. Records are
// append-only: there is no delete path and COMPLETED/REFUNDED/DECLINED are
// terminal.
type Transaction struct {
	BaseModel
	OfferID    uuid.UUID `gorm:"type:uuid;uniqueIndex"` // one settlement per offer
	ClientID   uuid.UUID `gorm:"type:uuid;index"`
	ProviderID uuid.UUID `gorm:"type:uuid;index"`

	// Invariant: Amount = PlatformFee + ProviderNet, exact to the minor unit.
	Amount      decimal.Decimal `gorm:"type:numeric(14,2)"`
	ClientFee   decimal.Decimal `gorm:"type:numeric(14,2)"`
	PlatformFee decimal.Decimal `gorm:"type:numeric(14,2)"`
	ProviderNet decimal.Decimal `gorm:"type:numeric(14,2)"`
	Currency    string          `gorm:"size:3"`

	Status TransactionStatus `gorm:"type:varchar(20);index"`

	Strategy         SettlementStrategy `gorm:"type:varchar(20)"`
	PayeeMerchantID  *string
	PayoutEmail      *string
	ManualSettlement bool

	// Gateway references, each set exactly once when the step succeeds.
	GatewayOrderID   *string `gorm:"index"`
	GatewayCaptureID *string `gorm:"uniqueIndex"`
	GatewayPayoutID  *string

	// Unix seconds. EscrowEndAt >= EscrowStartAt, immutable once set.
	EscrowStartAt *int64
	EscrowEndAt   *int64 `gorm:"index"`

	// Gateway payload snapshots, failure reasons, downgrade notes.
	Metadata datatypes.JSON `gorm:"type:jsonb;default:'{}'"`
}

// CanTransitionTo validates a status change against the settlement
// lifecycle. Terminal states allow nothing further; everything else is
// enumerated explicitly so an unexpected transition fails closed.
//
// Valid transitions:
//   - PENDING → ESCROW (capture success), DECLINED (capture failure), REFUNDED
//   - ESCROW → PROVIDER_REVIEW (provider notified), REFUNDED
//   - PROVIDER_REVIEW → COMPLETED (approval or deadline), REFUNDED, DISPUTED
//   - DISPUTED → COMPLETED, REFUNDED (dispute resolution)
func (t *Transaction) CanTransitionTo(target TransactionStatus) error {
	switch t.Status {
	case TxnStatusCompleted, TxnStatusRefunded, TxnStatusDeclined:
		return utils.NewIllegalTransitionError(string(t.Status), string(target))

	case TxnStatusPending:
		if target == TxnStatusEscrow || target == TxnStatusDeclined || target == TxnStatusRefunded {
			return nil
		}

	case TxnStatusEscrow:
		if target == TxnStatusProviderReview || target == TxnStatusRefunded {
			return nil
		}

	case TxnStatusProviderReview:
		if target == TxnStatusCompleted || target == TxnStatusRefunded || target == TxnStatusDisputed {
			return nil
		}

	case TxnStatusDisputed:
		if target == TxnStatusCompleted || target == TxnStatusRefunded {
			return nil
		}
	}
	return utils.NewIllegalTransitionError(string(t.Status), string(target))
}

// IsTerminal reports whether no further transition is legal.
func (t *Transaction) IsTerminal() bool {
	switch t.Status {
	case TxnStatusCompleted, TxnStatusRefunded, TxnStatusDeclined:
		return true
	default:
		return false
	}
}
