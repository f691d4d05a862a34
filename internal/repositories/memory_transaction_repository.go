package repositories

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	dbm "allpartyrental/internal/models/db_models"
	"allpartyrental/pkg/utils"
)

// memoryTransactionRepository keeps the ledger in process memory with the
// same guarded-write semantics as the Postgres implementation. It backs the
// test suite and credential-free environments.
type memoryTransactionRepository struct {
	mu   sync.Mutex
	txns map[uuid.UUID]*dbm.Transaction
}

func NewMemoryTransactionRepository() TransactionRepository {
	return &memoryTransactionRepository{txns: make(map[uuid.UUID]*dbm.Transaction)}
}

func (r *memoryTransactionRepository) Create(ctx context.Context, txn *dbm.Transaction) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if txn.ID == uuid.Nil {
		txn.ID = uuid.New()
	}
	now := time.Now().Unix()
	txn.CreatedAt = now
	txn.UpdatedAt = now

	clone := *txn
	r.txns[txn.ID] = &clone
	return nil
}

func (r *memoryTransactionRepository) GetByID(ctx context.Context, id uuid.UUID) (*dbm.Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	txn, ok := r.txns[id]
	if !ok {
		return nil, utils.ErrTransactionNotFound
	}
	clone := *txn
	return &clone, nil
}

func (r *memoryTransactionRepository) GetByOfferID(ctx context.Context, offerID uuid.UUID) (*dbm.Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, txn := range r.txns {
		if txn.OfferID == offerID {
			clone := *txn
			return &clone, nil
		}
	}
	return nil, utils.ErrTransactionNotFound
}

func (r *memoryTransactionRepository) UpdateWithStatusGuard(
	ctx context.Context,
	id uuid.UUID,
	from, to dbm.TransactionStatus,
	fields map[string]interface{},
) (*dbm.Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	txn, ok := r.txns[id]
	if !ok {
		return nil, utils.ErrTransactionNotFound
	}
	// Same compare-and-swap the SQL implementation gets from its
	// conditional UPDATE: the whole check-and-write happens under the lock.
	if txn.Status != from {
		return nil, utils.NewIllegalTransitionError(string(txn.Status), string(to))
	}

	txn.Status = to
	txn.UpdatedAt = time.Now().Unix()
	if err := applyFields(txn, fields); err != nil {
		return nil, err
	}

	clone := *txn
	return &clone, nil
}

func applyFields(txn *dbm.Transaction, fields map[string]interface{}) error {
	for k, v := range fields {
		switch k {
		case "gateway_order_id":
			txn.GatewayOrderID = asStringPtr(v)
		case "gateway_capture_id":
			txn.GatewayCaptureID = asStringPtr(v)
		case "gateway_payout_id":
			txn.GatewayPayoutID = asStringPtr(v)
		case "escrow_start_at":
			txn.EscrowStartAt = asInt64Ptr(v)
		case "escrow_end_at":
			txn.EscrowEndAt = asInt64Ptr(v)
		case "metadata":
			if raw, ok := v.(datatypes.JSON); ok {
				txn.Metadata = raw
			} else if raw, ok := v.([]byte); ok {
				txn.Metadata = datatypes.JSON(raw)
			}
		}
	}
	return nil
}

func asStringPtr(v interface{}) *string {
	switch s := v.(type) {
	case *string:
		return s
	case string:
		return &s
	default:
		return nil
	}
}

func asInt64Ptr(v interface{}) *int64 {
	switch n := v.(type) {
	case *int64:
		return n
	case int64:
		return &n
	default:
		return nil
	}
}

func (r *memoryTransactionRepository) ListDueForEscrowRelease(ctx context.Context, before time.Time, limit int) ([]dbm.Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var due []dbm.Transaction
	for _, txn := range r.txns {
		if txn.Status == dbm.TxnStatusProviderReview && txn.EscrowEndAt != nil && *txn.EscrowEndAt <= before.Unix() {
			due = append(due, *txn)
		}
	}
	sort.Slice(due, func(i, j int) bool { return *due[i].EscrowEndAt < *due[j].EscrowEndAt })
	if limit > 0 && len(due) > limit {
		due = due[:limit]
	}
	return due, nil
}

func (r *memoryTransactionRepository) ListStalePending(ctx context.Context, before time.Time, limit int) ([]dbm.Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var stale []dbm.Transaction
	for _, txn := range r.txns {
		if txn.Status == dbm.TxnStatusPending && txn.CreatedAt <= before.Unix() {
			stale = append(stale, *txn)
		}
	}
	sort.Slice(stale, func(i, j int) bool { return stale[i].CreatedAt < stale[j].CreatedAt })
	if limit > 0 && len(stale) > limit {
		stale = stale[:limit]
	}
	return stale, nil
}
