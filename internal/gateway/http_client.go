package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"allpartyrental/pkg/utils"
)

// tokenExpiryMargin refreshes the cached access token this long before the
// gateway would reject it, so in-flight requests never race expiry.
const tokenExpiryMargin = 60 * time.Second

const readRetryBackoff = 500 * time.Millisecond

type httpClient struct {
	opts   Options
	http   *http.Client
	logger *slog.Logger

	mu          sync.Mutex
	accessToken string
	tokenExpiry time.Time
}

// NewHTTPClient builds the real gateway client. It fails fast when the
// OAuth2 client credentials are incomplete; callers wanting a credential-free
// environment must select the mock explicitly.
func NewHTTPClient(opts Options, logger *slog.Logger) (Client, error) {
	if opts.ClientID == "" || opts.ClientSecret == "" || opts.BaseURL == "" {
		return nil, ErrMissingCredentials
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &httpClient{
		opts:   opts,
		http:   &http.Client{Timeout: timeout},
		logger: logger,
	}, nil
}

// ── wire shapes ─────────────────────────────────────────────────────────────

type amountJSON struct {
	CurrencyCode string `json:"currency_code"`
	Value        string `json:"value"`
}

func toAmountJSON(m Money) amountJSON {
	return amountJSON{
		CurrencyCode: m.Currency,
		Value:        m.Value.StringFixed(utils.CurrencyExponent(m.Currency)),
	}
}

type purchaseUnitJSON struct {
	Amount             amountJSON              `json:"amount"`
	Payee              *payeeJSON              `json:"payee,omitempty"`
	PaymentInstruction *paymentInstructionJSON `json:"payment_instruction,omitempty"`
	CustomID           string                  `json:"custom_id,omitempty"`
}

type payeeJSON struct {
	MerchantID string `json:"merchant_id"`
}

type paymentInstructionJSON struct {
	DisbursementMode string            `json:"disbursement_mode"`
	PlatformFees     []platformFeeJSON `json:"platform_fees"`
}

type platformFeeJSON struct {
	Amount amountJSON `json:"amount"`
}

type orderJSON struct {
	ID            string `json:"id"`
	Status        string `json:"status"`
	PurchaseUnits []struct {
		Payments struct {
			Captures []captureJSON `json:"captures"`
		} `json:"payments"`
	} `json:"purchase_units"`
}

type captureJSON struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

type errorJSON struct {
	Name    string `json:"name"`
	Message string `json:"message"`
}

// ── token cache ─────────────────────────────────────────────────────────────

// token returns a cached access token, fetching a fresh one under the lock
// when the cached one is near expiry. Holding the mutex across the fetch is
// the single-flight guard: concurrent expiry produces one token request.
func (c *httpClient) token(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.accessToken != "" && time.Now().Before(c.tokenExpiry.Add(-tokenExpiryMargin)) {
		return c.accessToken, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.opts.BaseURL+"/v1/oauth2/token",
		strings.NewReader("grant_type=client_credentials"))
	if err != nil {
		return "", err
	}
	req.SetBasicAuth(c.opts.ClientID, c.opts.ClientSecret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", classifyTransportError("token", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", gatewayErrorFromResponse("token", resp)
	}

	var body struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int64  `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("decode token response: %w", err)
	}

	c.accessToken = body.AccessToken
	c.tokenExpiry = time.Now().Add(time.Duration(body.ExpiresIn) * time.Second)
	return c.accessToken, nil
}

// ── request plumbing ────────────────────────────────────────────────────────

// do issues one authenticated JSON call. Mutating operations pass an
// idempotencyKey so the gateway deduplicates a caller retry; do itself never
// re-sends a mutating request.
func (c *httpClient) do(ctx context.Context, method, path string, payload, out any, idempotencyKey string) error {
	tok, err := c.token(ctx)
	if err != nil {
		return err
	}

	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.opts.BaseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+tok)
	req.Header.Set("Content-Type", "application/json")
	if idempotencyKey != "" {
		req.Header.Set("Request-Id", idempotencyKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return classifyTransportError(opFromPath(method, path), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return gatewayErrorFromResponse(opFromPath(method, path), resp)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode %s response: %w", path, err)
		}
	}
	return nil
}

// get retries once with a short backoff: status lookups are idempotent, so a
// transient failure is worth a second attempt before surfacing.
func (c *httpClient) get(ctx context.Context, path string, out any) error {
	err := c.do(ctx, http.MethodGet, path, nil, out, "")
	if err == nil {
		return nil
	}
	var ge *utils.GatewayError
	retryable := errors.Is(err, utils.ErrGatewayTimeout) || (errors.As(err, &ge) && ge.Retryable)
	if !retryable {
		return err
	}

	select {
	case <-ctx.Done():
		return err
	case <-time.After(readRetryBackoff):
	}

	c.logger.Warn("retrying gateway read", "path", path, "error", err)
	return c.do(ctx, http.MethodGet, path, nil, out, "")
}

func classifyTransportError(op string, err error) error {
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return fmt.Errorf("%s: %w", op, utils.ErrGatewayTimeout)
	}
	return &utils.GatewayError{Op: op, Detail: err.Error(), Retryable: true, Err: err}
}

func gatewayErrorFromResponse(op string, resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	var detail errorJSON
	_ = json.Unmarshal(raw, &detail)

	msg := detail.Message
	if msg == "" {
		msg = strings.TrimSpace(string(raw))
	}
	return &utils.GatewayError{
		Op:         op,
		StatusCode: resp.StatusCode,
		Detail:     msg,
		Retryable:  resp.StatusCode >= 500,
	}
}

func opFromPath(method, path string) string {
	return method + " " + path
}

// ── operations ──────────────────────────────────────────────────────────────

func (c *httpClient) CreateOrder(ctx context.Context, req OrderRequest) (*Order, error) {
	payload := map[string]any{
		"intent": "CAPTURE",
		"purchase_units": []purchaseUnitJSON{{
			Amount:   toAmountJSON(req.Amount),
			CustomID: req.Metadata["offer_id"],
		}},
	}

	var out orderJSON
	if err := c.do(ctx, http.MethodPost, "/v2/checkout/orders", payload, &out, ""); err != nil {
		return nil, err
	}
	return &Order{ID: out.ID, Status: out.Status}, nil
}

func (c *httpClient) CreateMarketplaceOrder(ctx context.Context, req MarketplaceOrderRequest) (*Order, error) {
	payload := map[string]any{
		"intent": "CAPTURE",
		"purchase_units": []purchaseUnitJSON{{
			Amount:   toAmountJSON(req.Amount),
			CustomID: req.Metadata["offer_id"],
			Payee:    &payeeJSON{MerchantID: req.PayeeMerchantID},
			PaymentInstruction: &paymentInstructionJSON{
				DisbursementMode: "DELAYED",
				PlatformFees:     []platformFeeJSON{{Amount: toAmountJSON(req.PlatformFee)}},
			},
		}},
	}

	var out orderJSON
	if err := c.do(ctx, http.MethodPost, "/v2/checkout/orders", payload, &out, ""); err != nil {
		return nil, err
	}
	return &Order{ID: out.ID, Status: out.Status}, nil
}

func (c *httpClient) CaptureOrder(ctx context.Context, orderID string) (*Capture, error) {
	var out orderJSON
	// The order id doubles as the idempotency key: a repeat capture for the
	// same order returns the existing capture instead of charging again.
	err := c.do(ctx, http.MethodPost, "/v2/checkout/orders/"+orderID+"/capture", struct{}{}, &out, "capture-"+orderID)
	if err != nil {
		return nil, err
	}

	for _, pu := range out.PurchaseUnits {
		for _, cpt := range pu.Payments.Captures {
			return &Capture{ID: cpt.ID, OrderID: out.ID, Status: cpt.Status}, nil
		}
	}
	return nil, &utils.GatewayError{Op: "capture", Detail: "capture missing from gateway response"}
}

func (c *httpClient) RefundCapture(ctx context.Context, captureID string, amount *Money) (*Refund, error) {
	payload := map[string]any{}
	if amount != nil {
		payload["amount"] = toAmountJSON(*amount)
	}

	var out captureJSON
	err := c.do(ctx, http.MethodPost, "/v2/payments/captures/"+captureID+"/refund", payload, &out, "refund-"+captureID)
	if err != nil {
		return nil, err
	}
	return &Refund{ID: out.ID, CaptureID: captureID, Status: out.Status}, nil
}

func (c *httpClient) CreatePayout(ctx context.Context, req PayoutRequest) (*PayoutBatch, error) {
	payload := map[string]any{
		"sender_batch_header": map[string]string{
			"sender_batch_id": req.SenderBatchID,
			"email_subject":   "You have a payout",
		},
		"items": []map[string]any{{
			"recipient_type": "EMAIL",
			"receiver":       req.Email,
			"note":           req.Note,
			"amount": map[string]string{
				"currency": req.Amount.Currency,
				"value":    req.Amount.Value.StringFixed(utils.CurrencyExponent(req.Amount.Currency)),
			},
		}},
	}

	var out struct {
		BatchHeader struct {
			PayoutBatchID string `json:"payout_batch_id"`
			BatchStatus   string `json:"batch_status"`
		} `json:"batch_header"`
	}
	if err := c.do(ctx, http.MethodPost, "/v1/payments/payouts", payload, &out, ""); err != nil {
		return nil, err
	}
	return &PayoutBatch{BatchID: out.BatchHeader.PayoutBatchID, Status: out.BatchHeader.BatchStatus}, nil
}

func (c *httpClient) ReleaseFunds(ctx context.Context, orderID, captureID string) error {
	payload := map[string]any{
		"reference_id":   captureID,
		"reference_type": "TRANSACTION_ID",
	}
	return c.do(ctx, http.MethodPost, "/v1/payments/referenced-payouts-items", payload, nil, "release-"+orderID)
}

func (c *httpClient) GetOrderStatus(ctx context.Context, orderID string) (*OrderStatus, error) {
	var out orderJSON
	if err := c.get(ctx, "/v2/checkout/orders/"+orderID, &out); err != nil {
		return nil, err
	}

	status := &OrderStatus{ID: out.ID, Status: out.Status}
	for _, pu := range out.PurchaseUnits {
		if len(pu.Payments.Captures) > 0 {
			status.Captured = true
		}
	}
	return status, nil
}

func (c *httpClient) GetPayoutStatus(ctx context.Context, batchID string) (*PayoutStatus, error) {
	var out struct {
		BatchHeader struct {
			PayoutBatchID string `json:"payout_batch_id"`
			BatchStatus   string `json:"batch_status"`
		} `json:"batch_header"`
	}
	if err := c.get(ctx, "/v1/payments/payouts/"+batchID, &out); err != nil {
		return nil, err
	}
	return &PayoutStatus{BatchID: out.BatchHeader.PayoutBatchID, Status: out.BatchHeader.BatchStatus}, nil
}
