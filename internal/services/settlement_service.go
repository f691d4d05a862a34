package services

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"

	"allpartyrental/internal/config"
	"allpartyrental/internal/gateway"
	"allpartyrental/internal/metrics"
	dbm "allpartyrental/internal/models/db_models"
	"allpartyrental/internal/repositories"
	"allpartyrental/pkg/utils"
)

// DisputeOutcome is the admin's resolution of a disputed settlement.
type DisputeOutcome string

const (
	DisputeOutcomeComplete DisputeOutcome = "complete"
	DisputeOutcomeRefund   DisputeOutcome = "refund"
)

// SettlementService composes fee calculation, strategy resolution, the
// gateway client and the guarded ledger into the operations the booking
// flow, provider dashboard and admin tools call.
type SettlementService interface {
	// InitiateCheckout computes fees, resolves the provider strategy,
	// creates the gateway order and persists a PENDING transaction.
	InitiateCheckout(ctx context.Context, offerID uuid.UUID) (*dbm.Transaction, error)

	// ConfirmPayment captures the order and moves PENDING to ESCROW,
	// stamping the escrow review window. Idempotent: an already-ESCROW
	// transaction is returned unchanged, never re-captured.
	ConfirmPayment(ctx context.Context, txID uuid.UUID) (*dbm.Transaction, error)

	// BeginProviderReview marks the provider as notified and starts the
	// review: ESCROW to PROVIDER_REVIEW.
	BeginProviderReview(ctx context.Context, txID uuid.UUID) (*dbm.Transaction, error)

	// ApproveByProvider releases held funds (or triggers the payout) and
	// completes the settlement. Only the transaction's provider may call.
	ApproveByProvider(ctx context.Context, txID, providerID uuid.UUID) (*dbm.Transaction, error)

	// CompleteEscrowByDeadline is the scheduler's entry point: it drives
	// the same release path as a provider approval once the escrow
	// deadline has passed.
	CompleteEscrowByDeadline(ctx context.Context, txID uuid.UUID) (*dbm.Transaction, error)

	// Refund reverses the payment. Any refund is terminal, full or partial.
	Refund(ctx context.Context, txID uuid.UUID, amount *decimal.Decimal) (*dbm.Transaction, error)

	// RaiseDispute freezes a settlement under provider review.
	RaiseDispute(ctx context.Context, txID uuid.UUID) (*dbm.Transaction, error)

	// ResolveDispute settles a dispute either way.
	ResolveDispute(ctx context.Context, txID uuid.UUID, outcome DisputeOutcome) (*dbm.Transaction, error)

	// ExpireStalePending declines a PENDING transaction the client walked
	// away from. Capture is never attempted automatically.
	ExpireStalePending(ctx context.Context, txID uuid.UUID) (*dbm.Transaction, error)

	// ReconcileWithGateway repairs a PENDING record whose gateway order was
	// already captured: the remote call succeeded but the local transition
	// was lost.
	ReconcileWithGateway(ctx context.Context, txID uuid.UUID) (*dbm.Transaction, error)

	GetTransaction(ctx context.Context, txID uuid.UUID) (*dbm.Transaction, error)
}

type settlementService struct {
	txns     repositories.TransactionRepository
	offers   repositories.OfferRepository
	resolver SettlementResolver
	gw       gateway.Client
	settings config.SettlementSettings
	logger   *slog.Logger
	now      func() time.Time
}

func NewSettlementService(
	txns repositories.TransactionRepository,
	offers repositories.OfferRepository,
	resolver SettlementResolver,
	gw gateway.Client,
	settings config.SettlementSettings,
	logger *slog.Logger,
) SettlementService {
	return &settlementService{
		txns:     txns,
		offers:   offers,
		resolver: resolver,
		gw:       gw,
		settings: settings,
		logger:   logger,
		now:      time.Now,
	}
}

func (s *settlementService) InitiateCheckout(ctx context.Context, offerID uuid.UUID) (*dbm.Transaction, error) {
	offer, err := s.offers.GetByID(ctx, offerID)
	if err != nil {
		return nil, err
	}
	if offer.Status != dbm.OfferStatusApproved {
		return nil, utils.ErrInvalidOfferState
	}

	// One settlement per offer: an abandoned checkout is resumed, not
	// duplicated.
	if existing, err := s.txns.GetByOfferID(ctx, offerID); err == nil {
		if existing.Status == dbm.TxnStatusPending {
			return existing, nil
		}
		return nil, utils.ErrInvalidOfferState
	} else if !errors.Is(err, utils.ErrTransactionNotFound) {
		return nil, err
	}

	currency := offer.Currency
	if currency == "" {
		currency = s.settings.Currency
	}

	split, err := ComputeSplit(offer.Price, s.settings.ClientFeePercent, s.settings.ProviderFeePercent, currency)
	if err != nil {
		return nil, err
	}

	settlement, err := s.resolver.Resolve(ctx, offer.ProviderID, offer.Price)
	if err != nil {
		return nil, err
	}

	order, settlement, err := s.createGatewayOrder(ctx, offerID, split, settlement, currency)
	if err != nil {
		return nil, err
	}

	txn := &dbm.Transaction{
		OfferID:          offerID,
		ClientID:         offer.ClientID,
		ProviderID:       offer.ProviderID,
		Amount:           offer.Price.Round(utils.CurrencyExponent(currency)),
		ClientFee:        split.ClientFee,
		PlatformFee:      split.PlatformFee,
		ProviderNet:      split.ProviderNet,
		Currency:         currency,
		Status:           dbm.TxnStatusPending,
		Strategy:         settlement.Strategy,
		ManualSettlement: settlement.ManualSettlement,
		GatewayOrderID:   &order.ID,
		Metadata:         jsonRaw(map[string]any{"gateway_order_status": order.Status}),
	}
	if settlement.PayeeMerchantID != "" {
		txn.PayeeMerchantID = &settlement.PayeeMerchantID
	}
	if settlement.PayoutEmail != "" {
		txn.PayoutEmail = &settlement.PayoutEmail
	}

	if err := s.txns.Create(ctx, txn); err != nil {
		return nil, err
	}

	s.logger.Info("checkout initiated",
		"transaction_id", txn.ID, "offer_id", offerID,
		"strategy", txn.Strategy, "client_total", split.ClientTotal)
	metrics.SettlementsTotal.WithLabelValues(string(dbm.TxnStatusPending), "checkout").Inc()
	return txn, nil
}

// createGatewayOrder creates the marketplace order when the resolver chose
// a split, falling back to a plain order when the gateway refuses it (for
// example a merchant that is not yet eligible). The downgrade is recorded,
// never silent: checkout must not be blocked by a provider onboarding gap.
func (s *settlementService) createGatewayOrder(
	ctx context.Context,
	offerID uuid.UUID,
	split FeeSplit,
	settlement Settlement,
	currency string,
) (*gateway.Order, Settlement, error) {
	meta := map[string]string{"offer_id": offerID.String()}
	amount := gateway.Money{Value: split.ClientTotal, Currency: currency}

	if settlement.Strategy == dbm.StrategyMarketplace {
		order, err := s.gw.CreateMarketplaceOrder(ctx, gateway.MarketplaceOrderRequest{
			Amount:          amount,
			PayeeMerchantID: settlement.PayeeMerchantID,
			// The gateway holds the provider's net; everything above it is
			// the platform's side of the split.
			PlatformFee: gateway.Money{Value: split.ClientTotal.Sub(split.ProviderNet), Currency: currency},
			Metadata:    meta,
		})
		if err == nil {
			metrics.GatewayRequestsTotal.WithLabelValues("create_marketplace_order", "ok").Inc()
			return order, settlement, nil
		}

		metrics.GatewayRequestsTotal.WithLabelValues("create_marketplace_order", "error").Inc()
		metrics.StrategyDowngradesTotal.Inc()
		s.logger.Warn("marketplace order rejected, downgrading to plain order",
			"offer_id", offerID, "payee", settlement.PayeeMerchantID, "error", err)

		settlement.Strategy = dbm.StrategyPlain
		settlement.PayeeMerchantID = ""
		if settlement.PayoutEmail == "" {
			settlement.ManualSettlement = true
		}
	}

	order, err := s.gw.CreateOrder(ctx, gateway.OrderRequest{Amount: amount, Metadata: meta})
	if err != nil {
		metrics.GatewayRequestsTotal.WithLabelValues("create_order", "error").Inc()
		return nil, settlement, err
	}
	metrics.GatewayRequestsTotal.WithLabelValues("create_order", "ok").Inc()
	return order, settlement, nil
}

func (s *settlementService) ConfirmPayment(ctx context.Context, txID uuid.UUID) (*dbm.Transaction, error) {
	txn, err := s.txns.GetByID(ctx, txID)
	if err != nil {
		return nil, err
	}

	// Idempotent: a confirmed transaction is returned as-is, no second
	// capture.
	if txn.Status == dbm.TxnStatusEscrow {
		return txn, nil
	}
	if err := txn.CanTransitionTo(dbm.TxnStatusEscrow); err != nil {
		return nil, err
	}
	if txn.GatewayOrderID == nil {
		return nil, utils.NewValidationError("transaction", "has no gateway order to capture")
	}
	// Checked before the capture: a deadline at or before the start would
	// hand the funds to the scheduler with no review window.
	if s.settings.EscrowWindow <= 0 {
		return nil, utils.NewValidationError("escrowWindow", "must be positive")
	}

	capture, err := s.gw.CaptureOrder(ctx, *txn.GatewayOrderID)
	if err != nil {
		metrics.GatewayRequestsTotal.WithLabelValues("capture", "error").Inc()
		return nil, s.declineOnCaptureFailure(ctx, txn, err)
	}
	metrics.GatewayRequestsTotal.WithLabelValues("capture", "ok").Inc()

	start := s.now()
	end := start.Add(s.settings.EscrowWindow)

	updated, err := s.txns.UpdateWithStatusGuard(ctx, txID, dbm.TxnStatusPending, dbm.TxnStatusEscrow, map[string]interface{}{
		"gateway_capture_id": capture.ID,
		"escrow_start_at":    start.Unix(),
		"escrow_end_at":      end.Unix(),
	})
	if err != nil {
		// A concurrent confirm won the race. The capture was idempotent, so
		// the winner's record is the right answer.
		if utils.IsIllegalTransition(err) {
			current, getErr := s.txns.GetByID(ctx, txID)
			if getErr == nil && current.Status == dbm.TxnStatusEscrow {
				return current, nil
			}
		}
		return nil, err
	}

	if err := s.offers.UpdateStatus(ctx, updated.OfferID, dbm.OfferStatusPaid); err != nil {
		s.logger.Error("failed to mark offer paid", "offer_id", updated.OfferID, "error", err)
	}

	s.logger.Info("payment captured into escrow",
		"transaction_id", txID, "capture_id", capture.ID, "escrow_end", end)
	metrics.SettlementsTotal.WithLabelValues(string(dbm.TxnStatusEscrow), "confirm").Inc()
	return updated, nil
}

// declineOnCaptureFailure turns an explicit gateway refusal into a DECLINED
// transaction. Transient failures (timeouts, 5xx) leave the record PENDING
// so the client can retry the confirmation.
func (s *settlementService) declineOnCaptureFailure(ctx context.Context, txn *dbm.Transaction, captureErr error) error {
	var ge *utils.GatewayError
	if !errors.As(captureErr, &ge) || ge.Retryable || ge.StatusCode < 400 || ge.StatusCode >= 500 {
		return captureErr
	}

	_, err := s.txns.UpdateWithStatusGuard(ctx, txn.ID, dbm.TxnStatusPending, dbm.TxnStatusDeclined, map[string]interface{}{
		"metadata": mergeMetadata(txn.Metadata, map[string]any{"decline_reason": ge.Detail}),
	})
	if err != nil && !utils.IsIllegalTransition(err) {
		s.logger.Error("failed to record declined capture", "transaction_id", txn.ID, "error", err)
	}

	s.logger.Warn("capture declined", "transaction_id", txn.ID, "detail", ge.Detail)
	metrics.SettlementsTotal.WithLabelValues(string(dbm.TxnStatusDeclined), "confirm").Inc()
	return captureErr
}

func (s *settlementService) BeginProviderReview(ctx context.Context, txID uuid.UUID) (*dbm.Transaction, error) {
	updated, err := s.txns.UpdateWithStatusGuard(ctx, txID, dbm.TxnStatusEscrow, dbm.TxnStatusProviderReview, nil)
	if err != nil {
		return nil, err
	}

	s.logger.Info("provider review started", "transaction_id", txID, "escrow_end", updated.EscrowEndAt)
	return updated, nil
}

func (s *settlementService) ApproveByProvider(ctx context.Context, txID, providerID uuid.UUID) (*dbm.Transaction, error) {
	txn, err := s.txns.GetByID(ctx, txID)
	if err != nil {
		return nil, err
	}
	if txn.ProviderID != providerID {
		return nil, utils.ErrNotTransactionOwner
	}
	if err := txn.CanTransitionTo(dbm.TxnStatusCompleted); err != nil {
		return nil, err
	}

	return s.complete(ctx, txn, "provider")
}

func (s *settlementService) CompleteEscrowByDeadline(ctx context.Context, txID uuid.UUID) (*dbm.Transaction, error) {
	txn, err := s.txns.GetByID(ctx, txID)
	if err != nil {
		return nil, err
	}
	if txn.Status != dbm.TxnStatusProviderReview {
		return nil, utils.NewIllegalTransitionError(string(txn.Status), string(dbm.TxnStatusCompleted))
	}
	if txn.EscrowEndAt == nil || *txn.EscrowEndAt > s.now().Unix() {
		return nil, utils.NewValidationError("escrowEnd", "deadline has not passed")
	}

	return s.complete(ctx, txn, "deadline")
}

// complete releases held funds (or pays out) and drives the guarded
// transition to COMPLETED. Release and payout calls carry idempotency keys
// derived from the transaction, so the loser of a provider-vs-scheduler
// race repeats them harmlessly before its transition no-ops.
func (s *settlementService) complete(ctx context.Context, txn *dbm.Transaction, trigger string) (*dbm.Transaction, error) {
	fields := map[string]interface{}{}

	switch {
	case txn.Strategy == dbm.StrategyMarketplace && txn.PayeeMerchantID != nil:
		if txn.GatewayOrderID == nil || txn.GatewayCaptureID == nil {
			return nil, utils.NewValidationError("transaction", "missing gateway references for release")
		}
		if err := s.gw.ReleaseFunds(ctx, *txn.GatewayOrderID, *txn.GatewayCaptureID); err != nil {
			metrics.GatewayRequestsTotal.WithLabelValues("release", "error").Inc()
			return nil, err
		}
		metrics.GatewayRequestsTotal.WithLabelValues("release", "ok").Inc()

	case txn.PayoutEmail != nil:
		batch, err := s.gw.CreatePayout(ctx, gateway.PayoutRequest{
			SenderBatchID: txn.ID.String(),
			Email:         *txn.PayoutEmail,
			Amount:        gateway.Money{Value: txn.ProviderNet, Currency: txn.Currency},
			Note:          "Settlement for offer " + txn.OfferID.String(),
		})
		if err != nil {
			metrics.GatewayRequestsTotal.WithLabelValues("payout", "error").Inc()
			return nil, err
		}
		metrics.GatewayRequestsTotal.WithLabelValues("payout", "ok").Inc()
		fields["gateway_payout_id"] = batch.BatchID

	default:
		// No payout destination: complete the settlement and leave the
		// provider side to manual settlement, loudly.
		s.logger.Warn("completing settlement without automated payout",
			"transaction_id", txn.ID, "provider_id", txn.ProviderID, "provider_net", txn.ProviderNet)
	}

	updated, err := s.txns.UpdateWithStatusGuard(ctx, txn.ID, txn.Status, dbm.TxnStatusCompleted, fields)
	if err != nil {
		return nil, err
	}

	if err := s.offers.UpdateStatus(ctx, updated.OfferID, dbm.OfferStatusSettled); err != nil {
		s.logger.Error("failed to mark offer settled", "offer_id", updated.OfferID, "error", err)
	}

	s.logger.Info("settlement completed",
		"transaction_id", txn.ID, "trigger", trigger, "provider_net", txn.ProviderNet)
	metrics.SettlementsTotal.WithLabelValues(string(dbm.TxnStatusCompleted), trigger).Inc()
	return updated, nil
}

func (s *settlementService) Refund(ctx context.Context, txID uuid.UUID, amount *decimal.Decimal) (*dbm.Transaction, error) {
	txn, err := s.txns.GetByID(ctx, txID)
	if err != nil {
		return nil, err
	}
	if err := txn.CanTransitionTo(dbm.TxnStatusRefunded); err != nil {
		return nil, err
	}
	if amount != nil && (!amount.IsPositive() || amount.GreaterThan(txn.ClientFee.Add(txn.Amount))) {
		return nil, utils.NewValidationError("amount", "must be positive and at most the captured total")
	}

	fields := map[string]interface{}{}

	// Nothing was captured for a PENDING transaction; the refund is purely
	// a local cancellation then.
	if txn.GatewayCaptureID != nil {
		var money *gateway.Money
		if amount != nil {
			money = &gateway.Money{Value: *amount, Currency: txn.Currency}
		}

		refund, err := s.gw.RefundCapture(ctx, *txn.GatewayCaptureID, money)
		if err != nil {
			metrics.GatewayRequestsTotal.WithLabelValues("refund", "error").Inc()
			return nil, err
		}
		metrics.GatewayRequestsTotal.WithLabelValues("refund", "ok").Inc()
		fields["metadata"] = mergeMetadata(txn.Metadata, map[string]any{"refund_id": refund.ID})
	}

	updated, err := s.txns.UpdateWithStatusGuard(ctx, txID, txn.Status, dbm.TxnStatusRefunded, fields)
	if err != nil {
		return nil, err
	}

	if err := s.offers.UpdateStatus(ctx, updated.OfferID, dbm.OfferStatusCanceled); err != nil {
		s.logger.Error("failed to mark offer canceled", "offer_id", updated.OfferID, "error", err)
	}

	s.logger.Info("settlement refunded", "transaction_id", txID)
	metrics.SettlementsTotal.WithLabelValues(string(dbm.TxnStatusRefunded), "refund").Inc()
	return updated, nil
}

func (s *settlementService) RaiseDispute(ctx context.Context, txID uuid.UUID) (*dbm.Transaction, error) {
	updated, err := s.txns.UpdateWithStatusGuard(ctx, txID, dbm.TxnStatusProviderReview, dbm.TxnStatusDisputed, nil)
	if err != nil {
		return nil, err
	}

	s.logger.Info("dispute raised", "transaction_id", txID)
	metrics.SettlementsTotal.WithLabelValues(string(dbm.TxnStatusDisputed), "dispute").Inc()
	return updated, nil
}

func (s *settlementService) ResolveDispute(ctx context.Context, txID uuid.UUID, outcome DisputeOutcome) (*dbm.Transaction, error) {
	txn, err := s.txns.GetByID(ctx, txID)
	if err != nil {
		return nil, err
	}
	if txn.Status != dbm.TxnStatusDisputed {
		return nil, utils.NewIllegalTransitionError(string(txn.Status), string(dbm.TxnStatusCompleted))
	}

	switch outcome {
	case DisputeOutcomeComplete:
		return s.complete(ctx, txn, "dispute")
	case DisputeOutcomeRefund:
		return s.Refund(ctx, txID, nil)
	default:
		return nil, utils.NewValidationError("outcome", "must be complete or refund")
	}
}

func (s *settlementService) ExpireStalePending(ctx context.Context, txID uuid.UUID) (*dbm.Transaction, error) {
	txn, err := s.txns.GetByID(ctx, txID)
	if err != nil {
		return nil, err
	}

	updated, err := s.txns.UpdateWithStatusGuard(ctx, txID, dbm.TxnStatusPending, dbm.TxnStatusDeclined, map[string]interface{}{
		"metadata": mergeMetadata(txn.Metadata, map[string]any{"decline_reason": "checkout abandoned"}),
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("stale pending checkout expired", "transaction_id", txID)
	metrics.SettlementsTotal.WithLabelValues(string(dbm.TxnStatusDeclined), "reaper").Inc()
	return updated, nil
}

func (s *settlementService) ReconcileWithGateway(ctx context.Context, txID uuid.UUID) (*dbm.Transaction, error) {
	txn, err := s.txns.GetByID(ctx, txID)
	if err != nil {
		return nil, err
	}
	if txn.Status != dbm.TxnStatusPending || txn.GatewayOrderID == nil {
		return txn, nil
	}

	status, err := s.gw.GetOrderStatus(ctx, *txn.GatewayOrderID)
	if err != nil {
		return nil, err
	}
	if !status.Captured {
		return txn, nil
	}

	// The client was charged but the local ESCROW write never landed.
	// CaptureOrder is idempotent by order id, so re-confirming recovers the
	// existing capture and replays the lost transition.
	s.logger.Warn("reconciliation found captured order on PENDING transaction",
		"transaction_id", txID, "order_id", *txn.GatewayOrderID)
	return s.ConfirmPayment(ctx, txID)
}

func (s *settlementService) GetTransaction(ctx context.Context, txID uuid.UUID) (*dbm.Transaction, error) {
	return s.txns.GetByID(ctx, txID)
}

func jsonRaw(v any) datatypes.JSON {
	b, _ := json.Marshal(v)
	return datatypes.JSON(b)
}

// mergeMetadata folds updates into the existing jsonb document so earlier
// audit keys (the checkout-time order snapshot, downgrade notes) survive
// later transitions.
func mergeMetadata(existing datatypes.JSON, updates map[string]any) datatypes.JSON {
	merged := map[string]any{}
	if len(existing) > 0 {
		_ = json.Unmarshal(existing, &merged)
	}
	for k, v := range updates {
		merged[k] = v
	}
	return jsonRaw(merged)
}
