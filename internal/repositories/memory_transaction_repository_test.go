package repositories

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dbm "allpartyrental/internal/models/db_models"
	"allpartyrental/pkg/utils"
)

func seedTxn(t *testing.T, repo TransactionRepository, status dbm.TransactionStatus) *dbm.Transaction {
	t.Helper()
	txn := &dbm.Transaction{
		OfferID:     uuid.New(),
		ClientID:    uuid.New(),
		ProviderID:  uuid.New(),
		Amount:      decimal.NewFromInt(100),
		ClientFee:   decimal.NewFromInt(5),
		PlatformFee: decimal.NewFromInt(10),
		ProviderNet: decimal.NewFromInt(90),
		Currency:    "USD",
		Status:      status,
		Strategy:    dbm.StrategyPlain,
	}
	require.NoError(t, repo.Create(context.Background(), txn))
	return txn
}

func TestGuardedUpdateAppliesFields(t *testing.T) {
	repo := NewMemoryTransactionRepository()
	ctx := context.Background()
	txn := seedTxn(t, repo, dbm.TxnStatusPending)

	end := time.Now().Add(72 * time.Hour).Unix()
	updated, err := repo.UpdateWithStatusGuard(ctx, txn.ID, dbm.TxnStatusPending, dbm.TxnStatusEscrow, map[string]interface{}{
		"gateway_capture_id": "CAP-1",
		"escrow_start_at":    time.Now().Unix(),
		"escrow_end_at":      end,
	})
	require.NoError(t, err)

	assert.Equal(t, dbm.TxnStatusEscrow, updated.Status)
	require.NotNil(t, updated.GatewayCaptureID)
	assert.Equal(t, "CAP-1", *updated.GatewayCaptureID)
	require.NotNil(t, updated.EscrowEndAt)
	assert.Equal(t, end, *updated.EscrowEndAt)

	persisted, err := repo.GetByID(ctx, txn.ID)
	require.NoError(t, err)
	assert.Equal(t, dbm.TxnStatusEscrow, persisted.Status)
}

func TestGuardedUpdateRejectsWrongObservedStatus(t *testing.T) {
	repo := NewMemoryTransactionRepository()
	ctx := context.Background()
	txn := seedTxn(t, repo, dbm.TxnStatusEscrow)

	_, err := repo.UpdateWithStatusGuard(ctx, txn.ID, dbm.TxnStatusPending, dbm.TxnStatusEscrow, nil)
	require.True(t, utils.IsIllegalTransition(err))

	var ite *utils.IllegalTransitionError
	require.ErrorAs(t, err, &ite)
	assert.Equal(t, string(dbm.TxnStatusEscrow), ite.From, "error must carry the observed status")

	// The failed write left the record untouched.
	persisted, err := repo.GetByID(ctx, txn.ID)
	require.NoError(t, err)
	assert.Equal(t, dbm.TxnStatusEscrow, persisted.Status)
}

func TestGuardedUpdateUnknownTransaction(t *testing.T) {
	repo := NewMemoryTransactionRepository()

	_, err := repo.UpdateWithStatusGuard(context.Background(), uuid.New(), dbm.TxnStatusPending, dbm.TxnStatusEscrow, nil)
	assert.ErrorIs(t, err, utils.ErrTransactionNotFound)
}

func TestGuardedUpdateSingleWinnerUnderContention(t *testing.T) {
	repo := NewMemoryTransactionRepository()
	ctx := context.Background()
	txn := seedTxn(t, repo, dbm.TxnStatusProviderReview)

	const workers = 16
	var wg sync.WaitGroup
	results := make(chan error, workers)
	wg.Add(workers)

	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			_, err := repo.UpdateWithStatusGuard(ctx, txn.ID, dbm.TxnStatusProviderReview, dbm.TxnStatusCompleted, nil)
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	var succeeded, lost int
	for err := range results {
		switch {
		case err == nil:
			succeeded++
		case utils.IsIllegalTransition(err):
			lost++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, succeeded, "compare-and-swap must admit exactly one writer")
	assert.Equal(t, workers-1, lost)
}

func TestReadsReturnClones(t *testing.T) {
	repo := NewMemoryTransactionRepository()
	ctx := context.Background()
	txn := seedTxn(t, repo, dbm.TxnStatusPending)

	got, err := repo.GetByID(ctx, txn.ID)
	require.NoError(t, err)
	got.Status = dbm.TxnStatusCompleted

	persisted, err := repo.GetByID(ctx, txn.ID)
	require.NoError(t, err)
	assert.Equal(t, dbm.TxnStatusPending, persisted.Status, "mutating a read result must not leak into the store")
}

func TestGetByOfferID(t *testing.T) {
	repo := NewMemoryTransactionRepository()
	ctx := context.Background()
	txn := seedTxn(t, repo, dbm.TxnStatusPending)

	got, err := repo.GetByOfferID(ctx, txn.OfferID)
	require.NoError(t, err)
	assert.Equal(t, txn.ID, got.ID)

	_, err = repo.GetByOfferID(ctx, uuid.New())
	assert.ErrorIs(t, err, utils.ErrTransactionNotFound)
}

func TestListDueForEscrowRelease(t *testing.T) {
	repo := NewMemoryTransactionRepository()
	ctx := context.Background()
	now := time.Now()

	due := seedTxn(t, repo, dbm.TxnStatusPending)
	past := now.Add(-time.Hour).Unix()
	_, err := repo.UpdateWithStatusGuard(ctx, due.ID, dbm.TxnStatusPending, dbm.TxnStatusEscrow, map[string]interface{}{
		"escrow_end_at": past,
	})
	require.NoError(t, err)
	_, err = repo.UpdateWithStatusGuard(ctx, due.ID, dbm.TxnStatusEscrow, dbm.TxnStatusProviderReview, nil)
	require.NoError(t, err)

	notDue := seedTxn(t, repo, dbm.TxnStatusPending)
	future := now.Add(time.Hour).Unix()
	_, err = repo.UpdateWithStatusGuard(ctx, notDue.ID, dbm.TxnStatusPending, dbm.TxnStatusEscrow, map[string]interface{}{
		"escrow_end_at": future,
	})
	require.NoError(t, err)
	_, err = repo.UpdateWithStatusGuard(ctx, notDue.ID, dbm.TxnStatusEscrow, dbm.TxnStatusProviderReview, nil)
	require.NoError(t, err)

	// Still in ESCROW: not eligible no matter how old the deadline is.
	stillHeld := seedTxn(t, repo, dbm.TxnStatusPending)
	_, err = repo.UpdateWithStatusGuard(ctx, stillHeld.ID, dbm.TxnStatusPending, dbm.TxnStatusEscrow, map[string]interface{}{
		"escrow_end_at": past,
	})
	require.NoError(t, err)

	list, err := repo.ListDueForEscrowRelease(ctx, now, 10)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, due.ID, list[0].ID)
}

func TestListStalePendingRespectsCutoffAndLimit(t *testing.T) {
	repo := NewMemoryTransactionRepository()
	ctx := context.Background()

	a := seedTxn(t, repo, dbm.TxnStatusPending)
	seedTxn(t, repo, dbm.TxnStatusPending)

	// Everything created just now is stale against a future cutoff.
	list, err := repo.ListStalePending(ctx, time.Now().Add(time.Minute), 1)
	require.NoError(t, err)
	assert.Len(t, list, 1, "limit must cap the batch")

	list, err = repo.ListStalePending(ctx, time.Now().Add(time.Minute), 10)
	require.NoError(t, err)
	assert.Len(t, list, 2)

	// Nothing is stale against a cutoff in the past.
	list, err = repo.ListStalePending(ctx, time.Now().Add(-time.Minute), 10)
	require.NoError(t, err)
	assert.Empty(t, list)

	_, err = repo.UpdateWithStatusGuard(ctx, a.ID, dbm.TxnStatusPending, dbm.TxnStatusDeclined, nil)
	require.NoError(t, err)
	list, err = repo.ListStalePending(ctx, time.Now().Add(time.Minute), 10)
	require.NoError(t, err)
	assert.Len(t, list, 1, "declined checkouts drop out of the reaper's view")
}
