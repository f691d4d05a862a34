package services

import (
	"context"
	"log/slog"
	"time"

	"allpartyrental/internal/config"
	"allpartyrental/internal/metrics"
	"allpartyrental/internal/repositories"
	"allpartyrental/pkg/utils"
)

const schedulerBatchSize = 100

// EscrowScheduler periodically drives PROVIDER_REVIEW transactions whose
// escrow deadline has passed to COMPLETED, and declines PENDING checkouts
// the client abandoned. Multiple instances may run concurrently: every
// transition goes through the repository's guarded write, so a transaction
// picked up twice transitions at most once and the loser no-ops.
type EscrowScheduler struct {
	txns     repositories.TransactionRepository
	service  SettlementService
	interval time.Duration
	pending  time.Duration
	logger   *slog.Logger
	now      func() time.Time
}

func NewEscrowScheduler(
	txns repositories.TransactionRepository,
	service SettlementService,
	settings config.SettlementSettings,
	logger *slog.Logger,
) *EscrowScheduler {
	return &EscrowScheduler{
		txns:     txns,
		service:  service,
		interval: settings.SchedulerInterval,
		pending:  settings.PendingTTL,
		logger:   logger,
		now:      time.Now,
	}
}

// Run loops until the context is cancelled. Started in its own goroutine by
// the fx lifecycle hook.
func (s *EscrowScheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.Info("escrow scheduler started", "interval", s.interval)
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("escrow scheduler stopped")
			return
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}

// Sweep runs one pass over due escrow releases and stale pending checkouts.
func (s *EscrowScheduler) Sweep(ctx context.Context) {
	s.releaseDueEscrow(ctx)
	s.reapStalePending(ctx)
}

func (s *EscrowScheduler) releaseDueEscrow(ctx context.Context) {
	due, err := s.txns.ListDueForEscrowRelease(ctx, s.now(), schedulerBatchSize)
	if err != nil {
		s.logger.Error("escrow sweep: listing due transactions failed", "error", err)
		metrics.SchedulerSweepsTotal.WithLabelValues("list_error").Inc()
		return
	}

	for _, txn := range due {
		if _, err := s.service.CompleteEscrowByDeadline(ctx, txn.ID); err != nil {
			// Lost races are expected when several workers sweep, or when
			// the provider approved in the same instant.
			if utils.IsIllegalTransition(err) {
				metrics.SchedulerSweepsTotal.WithLabelValues("lost_race").Inc()
				continue
			}
			s.logger.Error("escrow sweep: auto-release failed",
				"transaction_id", txn.ID, "error", err)
			metrics.SchedulerSweepsTotal.WithLabelValues("error").Inc()
			continue
		}
		metrics.SchedulerSweepsTotal.WithLabelValues("released").Inc()
	}
}

func (s *EscrowScheduler) reapStalePending(ctx context.Context) {
	cutoff := s.now().Add(-s.pending)
	stale, err := s.txns.ListStalePending(ctx, cutoff, schedulerBatchSize)
	if err != nil {
		s.logger.Error("escrow sweep: listing stale pending failed", "error", err)
		metrics.SchedulerSweepsTotal.WithLabelValues("list_error").Inc()
		return
	}

	for _, txn := range stale {
		if _, err := s.service.ExpireStalePending(ctx, txn.ID); err != nil {
			if utils.IsIllegalTransition(err) {
				metrics.SchedulerSweepsTotal.WithLabelValues("lost_race").Inc()
				continue
			}
			s.logger.Error("escrow sweep: expiring stale pending failed",
				"transaction_id", txn.ID, "error", err)
			metrics.SchedulerSweepsTotal.WithLabelValues("error").Inc()
			continue
		}
		metrics.SchedulerSweepsTotal.WithLabelValues("expired").Inc()
	}
}
