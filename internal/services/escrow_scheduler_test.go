package services

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dbm "allpartyrental/internal/models/db_models"
)

// countingService counts successful deadline releases so races between
// concurrent sweeps are observable.
type countingService struct {
	SettlementService
	releases atomic.Int64
}

func (c *countingService) CompleteEscrowByDeadline(ctx context.Context, txID uuid.UUID) (*dbm.Transaction, error) {
	txn, err := c.SettlementService.CompleteEscrowByDeadline(ctx, txID)
	if err == nil {
		c.releases.Add(1)
	}
	return txn, err
}

func newScheduler(f *fixture, svc SettlementService) *EscrowScheduler {
	return NewEscrowScheduler(f.txns, svc, testSettings(), testLogger())
}

func TestSweepReleasesDueEscrow(t *testing.T) {
	f := newFixture(t, merchantProfile(), nil)
	ctx := context.Background()

	base := time.Now()
	f.svc.now = func() time.Time { return base }

	txn, err := f.svc.InitiateCheckout(ctx, f.offer.ID)
	require.NoError(t, err)
	_, err = f.svc.ConfirmPayment(ctx, txn.ID)
	require.NoError(t, err)
	_, err = f.svc.BeginProviderReview(ctx, txn.ID)
	require.NoError(t, err)

	sched := newScheduler(f, f.svc)

	// Before the deadline nothing is due.
	sched.now = func() time.Time { return base.Add(time.Hour) }
	f.svc.now = sched.now
	sched.Sweep(ctx)

	current, err := f.txns.GetByID(ctx, txn.ID)
	require.NoError(t, err)
	assert.Equal(t, dbm.TxnStatusProviderReview, current.Status)

	// Past the deadline the sweep releases the funds.
	sched.now = func() time.Time { return base.Add(73 * time.Hour) }
	f.svc.now = sched.now
	sched.Sweep(ctx)

	current, err = f.txns.GetByID(ctx, txn.ID)
	require.NoError(t, err)
	assert.Equal(t, dbm.TxnStatusCompleted, current.Status)

	offer, err := f.offers.GetByID(ctx, f.offer.ID)
	require.NoError(t, err)
	assert.Equal(t, dbm.OfferStatusSettled, offer.Status)
}

func TestConcurrentSweepsReleaseExactlyOnce(t *testing.T) {
	f := newFixture(t, merchantProfile(), nil)
	ctx := context.Background()

	base := time.Now()
	f.svc.now = func() time.Time { return base }

	txn, err := f.svc.InitiateCheckout(ctx, f.offer.ID)
	require.NoError(t, err)
	_, err = f.svc.ConfirmPayment(ctx, txn.ID)
	require.NoError(t, err)
	_, err = f.svc.BeginProviderReview(ctx, txn.ID)
	require.NoError(t, err)

	after := func() time.Time { return base.Add(73 * time.Hour) }
	f.svc.now = after

	counting := &countingService{SettlementService: f.svc}
	workers := make([]*EscrowScheduler, 4)
	for i := range workers {
		workers[i] = newScheduler(f, counting)
		workers[i].now = after
	}

	var wg sync.WaitGroup
	for _, w := range workers {
		wg.Add(1)
		go func(w *EscrowScheduler) {
			defer wg.Done()
			w.Sweep(ctx)
		}(w)
	}
	wg.Wait()

	assert.Equal(t, int64(1), counting.releases.Load(), "guarded transition must fire once")

	current, err := f.txns.GetByID(ctx, txn.ID)
	require.NoError(t, err)
	assert.Equal(t, dbm.TxnStatusCompleted, current.Status)
}

func TestSweepSkipsProviderApprovedTransaction(t *testing.T) {
	f := newFixture(t, merchantProfile(), nil)
	ctx := context.Background()

	base := time.Now()
	f.svc.now = func() time.Time { return base }

	txn, err := f.svc.InitiateCheckout(ctx, f.offer.ID)
	require.NoError(t, err)
	_, err = f.svc.ConfirmPayment(ctx, txn.ID)
	require.NoError(t, err)
	_, err = f.svc.BeginProviderReview(ctx, txn.ID)
	require.NoError(t, err)

	// Provider approves before the deadline; the later sweep has nothing
	// due any more.
	_, err = f.svc.ApproveByProvider(ctx, txn.ID, f.offer.ProviderID)
	require.NoError(t, err)

	counting := &countingService{SettlementService: f.svc}
	sched := newScheduler(f, counting)
	sched.now = func() time.Time { return base.Add(73 * time.Hour) }
	f.svc.now = sched.now
	sched.Sweep(ctx)

	assert.Equal(t, int64(0), counting.releases.Load())
}

func TestSweepReapsStalePending(t *testing.T) {
	f := newFixture(t, merchantProfile(), nil)
	ctx := context.Background()

	txn, err := f.svc.InitiateCheckout(ctx, f.offer.ID)
	require.NoError(t, err)

	sched := newScheduler(f, f.svc)

	// Fresh checkout survives a sweep.
	sched.Sweep(ctx)
	current, err := f.txns.GetByID(ctx, txn.ID)
	require.NoError(t, err)
	assert.Equal(t, dbm.TxnStatusPending, current.Status)

	// Past the pending TTL it is declined.
	sched.now = func() time.Time { return time.Now().Add(25 * time.Hour) }
	sched.Sweep(ctx)

	current, err = f.txns.GetByID(ctx, txn.ID)
	require.NoError(t, err)
	assert.Equal(t, dbm.TxnStatusDeclined, current.Status)
}

func TestRunStopsOnContextCancel(t *testing.T) {
	f := newFixture(t, merchantProfile(), nil)
	sched := newScheduler(f, f.svc)
	sched.interval = time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		sched.Run(ctx)
		close(done)
	}()

	time.Sleep(10 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("scheduler did not stop after cancel")
	}
}
