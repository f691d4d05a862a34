package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"allpartyrental/pkg/utils"
)

// mockClient is the deterministic in-process gateway used when no live
// credentials are configured. It synthesizes sequential identifiers and
// keeps just enough bookkeeping (orders, captures, held funds) for the
// engine and its tests to run the full settlement lifecycle offline.
// Selection is an explicit configuration switch; it never engages silently
// in production.
type mockClient struct {
	logger *slog.Logger

	mu         sync.Mutex
	seq        int
	orders     map[string]*mockOrder
	payouts    map[string]string // batch id -> status
	payoutKeys map[string]string // sender batch id -> batch id
	captures   map[string]string // capture id -> order id
}

type mockOrder struct {
	order       Order
	marketplace bool
	captureID   string
	released    bool
	refunded    bool
}

// NewMockClient builds the deterministic gateway mock.
func NewMockClient(logger *slog.Logger) Client {
	return &mockClient{
		logger:     logger,
		orders:     make(map[string]*mockOrder),
		payouts:    make(map[string]string),
		payoutKeys: make(map[string]string),
		captures:   make(map[string]string),
	}
}

func (m *mockClient) nextID(prefix string) string {
	m.seq++
	return fmt.Sprintf("%s-%06d", prefix, m.seq)
}

func (m *mockClient) CreateOrder(ctx context.Context, req OrderRequest) (*Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := m.nextID("MOCK-ORDER")
	o := &mockOrder{order: Order{ID: id, Status: OrderCreated}}
	m.orders[id] = o

	m.logger.Debug("mock gateway: order created", "order_id", id, "amount", req.Amount.Value)
	return &Order{ID: id, Status: OrderCreated}, nil
}

func (m *mockClient) CreateMarketplaceOrder(ctx context.Context, req MarketplaceOrderRequest) (*Order, error) {
	if req.PayeeMerchantID == "" {
		return nil, &utils.GatewayError{Op: "create_marketplace_order", StatusCode: 422, Detail: "payee merchant id required"}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	id := m.nextID("MOCK-ORDER")
	o := &mockOrder{order: Order{ID: id, Status: OrderCreated}, marketplace: true}
	m.orders[id] = o

	m.logger.Debug("mock gateway: marketplace order created",
		"order_id", id, "payee", req.PayeeMerchantID, "platform_fee", req.PlatformFee.Value)
	return &Order{ID: id, Status: OrderCreated}, nil
}

func (m *mockClient) CaptureOrder(ctx context.Context, orderID string) (*Capture, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	o, ok := m.orders[orderID]
	if !ok {
		return nil, &utils.GatewayError{Op: "capture", StatusCode: 404, Detail: "order not found"}
	}

	// Repeat captures return the existing capture, mirroring the real
	// gateway's idempotency-by-order behaviour.
	if o.captureID == "" {
		o.captureID = m.nextID("MOCK-CAPTURE")
		o.order.Status = OrderCompleted
		m.captures[o.captureID] = orderID
	}

	return &Capture{ID: o.captureID, OrderID: orderID, Status: CaptureCompleted}, nil
}

func (m *mockClient) RefundCapture(ctx context.Context, captureID string, amount *Money) (*Refund, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	orderID, ok := m.captures[captureID]
	if !ok {
		return nil, &utils.GatewayError{Op: "refund", StatusCode: 404, Detail: "capture not found"}
	}
	if o := m.orders[orderID]; o.refunded {
		return nil, &utils.GatewayError{Op: "refund", StatusCode: 422, Detail: "capture already refunded"}
	}
	m.orders[orderID].refunded = true

	return &Refund{ID: m.nextID("MOCK-REFUND"), CaptureID: captureID, Status: RefundCompleted}, nil
}

func (m *mockClient) CreatePayout(ctx context.Context, req PayoutRequest) (*PayoutBatch, error) {
	if req.Email == "" {
		return nil, &utils.GatewayError{Op: "payout", StatusCode: 422, Detail: "receiver email required"}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	// Dedupe by sender batch id like the real gateway does.
	if req.SenderBatchID != "" {
		if id, ok := m.payoutKeys[req.SenderBatchID]; ok {
			return &PayoutBatch{BatchID: id, Status: m.payouts[id]}, nil
		}
	}

	id := m.nextID("MOCK-PAYOUT")
	m.payouts[id] = PayoutSuccess
	if req.SenderBatchID != "" {
		m.payoutKeys[req.SenderBatchID] = id
	}

	m.logger.Debug("mock gateway: payout created", "batch_id", id, "receiver", req.Email)
	return &PayoutBatch{BatchID: id, Status: PayoutPending}, nil
}

func (m *mockClient) ReleaseFunds(ctx context.Context, orderID, captureID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	o, ok := m.orders[orderID]
	if !ok {
		return &utils.GatewayError{Op: "release", StatusCode: 404, Detail: "order not found"}
	}
	if o.captureID == "" {
		return &utils.GatewayError{Op: "release", StatusCode: 422, Detail: "order has no capture to release"}
	}
	o.released = true
	return nil
}

func (m *mockClient) GetOrderStatus(ctx context.Context, orderID string) (*OrderStatus, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	o, ok := m.orders[orderID]
	if !ok {
		return nil, &utils.GatewayError{Op: "get_order", StatusCode: 404, Detail: "order not found"}
	}
	return &OrderStatus{ID: orderID, Status: o.order.Status, Captured: o.captureID != ""}, nil
}

func (m *mockClient) GetPayoutStatus(ctx context.Context, batchID string) (*PayoutStatus, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	status, ok := m.payouts[batchID]
	if !ok {
		return nil, &utils.GatewayError{Op: "get_payout", StatusCode: 404, Detail: "payout batch not found"}
	}
	return &PayoutStatus{BatchID: batchID, Status: status}, nil
}
