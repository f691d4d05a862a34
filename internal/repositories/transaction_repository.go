package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	dbm "allpartyrental/internal/models/db_models"
	"allpartyrental/pkg/utils"
)

// TransactionRepository is the persistence boundary for the settlement
// ledger. UpdateWithStatusGuard is the only write path after creation:
// a single conditional update keyed on the record's current status, so a
// transition and all its derived fields land atomically or not at all.
type TransactionRepository interface {
	Create(ctx context.Context, txn *dbm.Transaction) error
	GetByID(ctx context.Context, id uuid.UUID) (*dbm.Transaction, error)
	GetByOfferID(ctx context.Context, offerID uuid.UUID) (*dbm.Transaction, error)

	// UpdateWithStatusGuard applies fields plus the status change in one
	// conditional write. When the record is no longer in `from`, nothing is
	// written and an IllegalTransitionError carrying the observed status is
	// returned, which is how racing callers lose cleanly.
	UpdateWithStatusGuard(ctx context.Context, id uuid.UUID, from, to dbm.TransactionStatus, fields map[string]interface{}) (*dbm.Transaction, error)

	// ListDueForEscrowRelease returns PROVIDER_REVIEW transactions whose
	// escrow deadline passed before the given instant.
	ListDueForEscrowRelease(ctx context.Context, before time.Time, limit int) ([]dbm.Transaction, error)

	// ListStalePending returns PENDING transactions created before the
	// given instant, candidates for the pending reaper.
	ListStalePending(ctx context.Context, before time.Time, limit int) ([]dbm.Transaction, error)
}

type transactionRepository struct {
	db *gorm.DB
}

func NewTransactionRepository(db *gorm.DB) TransactionRepository {
	return &transactionRepository{db: db}
}

func (r *transactionRepository) Create(ctx context.Context, txn *dbm.Transaction) error {
	if err := r.db.WithContext(ctx).Create(txn).Error; err != nil {
		return fmt.Errorf("%w: %v", utils.ErrDatabaseError, err)
	}
	return nil
}

func (r *transactionRepository) GetByID(ctx context.Context, id uuid.UUID) (*dbm.Transaction, error) {
	var txn dbm.Transaction
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&txn).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.ErrTransactionNotFound
		}
		return nil, fmt.Errorf("%w: %v", utils.ErrDatabaseError, err)
	}
	return &txn, nil
}

func (r *transactionRepository) GetByOfferID(ctx context.Context, offerID uuid.UUID) (*dbm.Transaction, error) {
	var txn dbm.Transaction
	if err := r.db.WithContext(ctx).Where("offer_id = ?", offerID).First(&txn).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.ErrTransactionNotFound
		}
		return nil, fmt.Errorf("%w: %v", utils.ErrDatabaseError, err)
	}
	return &txn, nil
}

func (r *transactionRepository) UpdateWithStatusGuard(
	ctx context.Context,
	id uuid.UUID,
	from, to dbm.TransactionStatus,
	fields map[string]interface{},
) (*dbm.Transaction, error) {
	updates := map[string]interface{}{"status": to, "updated_at": time.Now().Unix()}
	for k, v := range fields {
		updates[k] = v
	}

	res := r.db.WithContext(ctx).
		Model(&dbm.Transaction{}).
		Where("id = ? AND status = ?", id, from).
		Updates(updates)
	if res.Error != nil {
		return nil, fmt.Errorf("%w: %v", utils.ErrDatabaseError, res.Error)
	}

	if res.RowsAffected == 0 {
		// Zero rows means either a missing record or a lost race. Read back
		// to report the observed status to the caller.
		current, err := r.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}
		return nil, utils.NewIllegalTransitionError(string(current.Status), string(to))
	}

	return r.GetByID(ctx, id)
}

func (r *transactionRepository) ListDueForEscrowRelease(ctx context.Context, before time.Time, limit int) ([]dbm.Transaction, error) {
	var txns []dbm.Transaction
	err := r.db.WithContext(ctx).
		Where("status = ? AND escrow_end_at IS NOT NULL AND escrow_end_at <= ?", dbm.TxnStatusProviderReview, before.Unix()).
		Order("escrow_end_at ASC").
		Limit(limit).
		Find(&txns).Error
	if err != nil {
		return nil, fmt.Errorf("%w: %v", utils.ErrDatabaseError, err)
	}
	return txns, nil
}

func (r *transactionRepository) ListStalePending(ctx context.Context, before time.Time, limit int) ([]dbm.Transaction, error) {
	var txns []dbm.Transaction
	err := r.db.WithContext(ctx).
		Where("status = ? AND created_at <= ?", dbm.TxnStatusPending, before.Unix()).
		Order("created_at ASC").
		Limit(limit).
		Find(&txns).Error
	if err != nil {
		return nil, fmt.Errorf("%w: %v", utils.ErrDatabaseError, err)
	}
	return txns, nil
}
