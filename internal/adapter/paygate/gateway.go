package paygate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/gigswap/gigswap-backend/internal/domain"
)

// Client talks to the external payment processor over its REST API. Every
// call carries a bounded timeout, an idempotency key and counts against a
// client-side rate limit. Processor failures surface as ErrExternalService
// so callers never depend on transport details.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	limiter    *rate.Limiter
	maxRetries int
	log        *zap.Logger
}

// NewClient creates a new payment processor client
func NewClient(baseURL, apiKey string, timeout time.Duration, maxRetries int, requestsPerSecond float64, logger *zap.Logger) *Client {
	return &Client{
		baseURL:    baseURL,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
		limiter:    rate.NewLimiter(rate.Limit(requestsPerSecond), int(requestsPerSecond)+1),
		maxRetries: maxRetries,
		log:        logger,
	}
}

type chargePayload struct {
	Amount   string            `json:"amount"`
	Currency string            `json:"currency"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

type chargeResponse struct {
	ID           string `json:"id"`
	ClientHandle string `json:"client_handle"`
}

// CreateCharge asks the processor to charge the poster
func (c *Client) CreateCharge(ctx context.Context, req domain.ChargeRequest) (*domain.ChargeResult, error) {
	payload := chargePayload{
		Amount:   req.Amount.StringFixed(2),
		Currency: req.Currency,
		Metadata: req.Metadata,
	}

	var resp chargeResponse
	if err := c.post(ctx, "/v1/charges", req.IdempotencyKey, payload, &resp); err != nil {
		return nil, err
	}

	return &domain.ChargeResult{ChargeID: resp.ID, ClientHandle: resp.ClientHandle}, nil
}

type transferPayload struct {
	Destination string            `json:"destination"`
	Amount      string            `json:"amount"`
	Currency    string            `json:"currency"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

type transferResponse struct {
	ID string `json:"id"`
}

// CreateTransfer asks the processor to pay out to a helper's account
func (c *Client) CreateTransfer(ctx context.Context, req domain.TransferRequest) (*domain.TransferResult, error) {
	payload := transferPayload{
		Destination: req.DestinationAccount,
		Amount:      req.Amount.StringFixed(2),
		Currency:    req.Currency,
		Metadata:    req.Metadata,
	}

	var resp transferResponse
	if err := c.post(ctx, "/v1/transfers", req.IdempotencyKey, payload, &resp); err != nil {
		return nil, err
	}

	return &domain.TransferResult{TransferID: resp.ID}, nil
}

type refundPayload struct {
	ChargeID string            `json:"charge_id"`
	Amount   string            `json:"amount"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

type refundResponse struct {
	ID string `json:"id"`
}

// CreateRefund asks the processor to refund part or all of a charge
func (c *Client) CreateRefund(ctx context.Context, req domain.RefundRequest) (*domain.RefundResult, error) {
	payload := refundPayload{
		ChargeID: req.ChargeID,
		Amount:   req.Amount.StringFixed(2),
		Metadata: req.Metadata,
	}

	var resp refundResponse
	if err := c.post(ctx, "/v1/refunds", req.IdempotencyKey, payload, &resp); err != nil {
		return nil, err
	}

	return &domain.RefundResult{RefundID: resp.ID}, nil
}

type accountResponse struct {
	DetailsSubmitted bool `json:"details_submitted"`
	ChargesEnabled   bool `json:"charges_enabled"`
	PayoutsEnabled   bool `json:"payouts_enabled"`
}

// RetrieveAccountStatus fetches a payout account's readiness
func (c *Client) RetrieveAccountStatus(ctx context.Context, accountID string) (*domain.AccountStatus, error) {
	var resp accountResponse
	if err := c.do(ctx, http.MethodGet, "/v1/accounts/"+url.PathEscape(accountID), "", nil, &resp); err != nil {
		return nil, err
	}

	return &domain.AccountStatus{
		DetailsSubmitted: resp.DetailsSubmitted,
		ChargesEnabled:   resp.ChargesEnabled,
		PayoutsEnabled:   resp.PayoutsEnabled,
	}, nil
}

func (c *Client) post(ctx context.Context, path, idempotencyKey string, payload, out interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal request body: %w", err)
	}
	return c.do(ctx, http.MethodPost, path, idempotencyKey, body, out)
}

// do sends the request with retries. Idempotency keys make retried POSTs safe
// server-side. 4xx responses are not retried; the processor already rejected
// the request and will keep rejecting it.
func (c *Client) do(ctx context.Context, method, path, idempotencyKey string, body []byte, out interface{}) error {
	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(attempt) * 500 * time.Millisecond
			select {
			case <-ctx.Done():
				return fmt.Errorf("payment processor request cancelled: %w", domain.ErrExternalService)
			case <-time.After(backoff):
			}
		}

		if err := c.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("payment processor rate limit wait: %w", domain.ErrExternalService)
		}

		retryable, err := c.doOnce(ctx, method, path, idempotencyKey, body, out)
		if err == nil {
			return nil
		}
		lastErr = err
		if !retryable {
			return lastErr
		}

		c.log.Warn("payment processor request failed, retrying",
			zap.String("method", method),
			zap.String("path", path),
			zap.Int("attempt", attempt+1),
			zap.Error(err))
	}

	return lastErr
}

func (c *Client) doOnce(ctx context.Context, method, path, idempotencyKey string, body []byte, out interface{}) (retryable bool, err error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return false, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")
	if idempotencyKey != "" {
		req.Header.Set("Idempotency-Key", idempotencyKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return true, fmt.Errorf("payment processor unreachable: %w: %v", domain.ErrExternalService, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return true, fmt.Errorf("payment processor returned %d: %w", resp.StatusCode, domain.ErrExternalService)
	}
	if resp.StatusCode >= 400 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return false, fmt.Errorf("payment processor rejected request (%d): %s: %w", resp.StatusCode, msg, domain.ErrExternalService)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return false, fmt.Errorf("failed to decode processor response: %w: %v", domain.ErrExternalService, err)
		}
	}

	return false, nil
}

var _ domain.PaymentGateway = (*Client)(nil)
