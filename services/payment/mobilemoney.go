package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"vendra/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// MobileMoneyGateway collects payments through a request-to-pay API. The
// provider only acknowledges the request; the payer approves it on their
// handset, so Authorize returns a pending handle and the real outcome is
// discovered through PollStatus.
type MobileMoneyGateway struct {
	baseURL      string
	apiKey       string
	client       *http.Client
	store        IdempotencyStore
	logger       *zap.Logger
	pollInterval time.Duration
	pollMaxWait  time.Duration
}

// MobileMoneyConfig carries the provider endpoint and polling bounds.
type MobileMoneyConfig struct {
	BaseURL      string
	APIKey       string
	PollInterval time.Duration
	PollMaxWait  time.Duration
}

// NewMobileMoneyGateway creates a mobile-money gateway.
func NewMobileMoneyGateway(cfg MobileMoneyConfig, store IdempotencyStore, logger *zap.Logger) *MobileMoneyGateway {
	return &MobileMoneyGateway{
		baseURL:      cfg.BaseURL,
		apiKey:       cfg.APIKey,
		client:       &http.Client{Timeout: 10 * time.Second},
		store:        store,
		logger:       logger,
		pollInterval: cfg.PollInterval,
		pollMaxWait:  cfg.PollMaxWait,
	}
}

type requestToPayBody struct {
	Amount      int64  `json:"amount"`
	Currency    string `json:"currency"`
	PayerMSISDN string `json:"payer_msisdn"`
	ExternalID  string `json:"external_id"`
}

type requestToPayResponse struct {
	Status      string `json:"status"`
	ReferenceID string `json:"reference_id"`
}

type statusResponse struct {
	Status string `json:"status"`
}

// Authorize enqueues a request-to-pay on the payer's handset. The
// X-Reference-Id header doubles as the provider-side idempotency token.
func (g *MobileMoneyGateway) Authorize(ctx context.Context, req AuthorizeRequest) (*Handle, error) {
	if existing, ok, err := g.store.Get(ctx, req.IdempotencyKey); err != nil {
		return nil, err
	} else if ok {
		status, err := g.PollStatus(ctx, existing)
		if err != nil {
			return nil, err
		}
		existing.Status = status
		return existing, nil
	}

	reference := uuid.New().String()
	body, err := json.Marshal(requestToPayBody{
		Amount:      req.Amount,
		Currency:    req.Currency,
		PayerMSISDN: req.PayerReference,
		ExternalID:  req.OrderNumber,
	})
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/requesttopay", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-Reference-Id", reference)
	httpReq.Header.Set("Ocp-Apim-Subscription-Key", g.apiKey)

	resp, err := g.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("mobile money request-to-pay failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var rtp requestToPayResponse
		_ = json.NewDecoder(resp.Body).Decode(&rtp)
		return nil, &DeclinedError{Provider: "mobile_money", Reason: rtp.Status}
	}

	var rtp requestToPayResponse
	if err := json.NewDecoder(resp.Body).Decode(&rtp); err != nil {
		return nil, fmt.Errorf("mobile money response invalid: %w", err)
	}
	if rtp.ReferenceID != "" {
		reference = rtp.ReferenceID
	}

	handle := &Handle{
		Provider:       models.MethodMobileMoney,
		Reference:      reference,
		IdempotencyKey: req.IdempotencyKey,
		Status:         StatusPending,
	}
	stored, _, err := g.store.PutIfAbsent(ctx, req.IdempotencyKey, handle)
	if err != nil {
		return nil, err
	}
	return stored, nil
}

// Confirm is a no-op: the collection completed when the payer approved
// the request. Settlement-time release to the seller is the payout
// collaborator's job.
func (g *MobileMoneyGateway) Confirm(ctx context.Context, handle *Handle) error {
	status, err := g.PollStatus(ctx, handle)
	if err != nil {
		return err
	}
	if status != StatusSucceeded {
		return fmt.Errorf("mobile money charge %s not collected (status %s)", handle.Reference, status)
	}
	return nil
}

// PollStatus asks the provider for the charge's current state.
func (g *MobileMoneyGateway) PollStatus(ctx context.Context, handle *Handle) (GatewayStatus, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+"/status/"+handle.Reference, nil)
	if err != nil {
		return StatusFailed, err
	}
	httpReq.Header.Set("Ocp-Apim-Subscription-Key", g.apiKey)

	resp, err := g.client.Do(httpReq)
	if err != nil {
		return StatusFailed, fmt.Errorf("mobile money status poll failed: %w", err)
	}
	defer resp.Body.Close()

	var sr statusResponse
	if err := json.NewDecoder(resp.Body).Decode(&sr); err != nil {
		return StatusFailed, fmt.Errorf("mobile money status response invalid: %w", err)
	}

	switch sr.Status {
	case "SUCCESSFUL":
		return StatusSucceeded, nil
	case "FAILED":
		return StatusFailed, nil
	default:
		return StatusPending, nil
	}
}

// AwaitTerminal polls until the charge reaches a terminal status or the
// maximum wait elapses. A timeout is reported as ErrProviderTimeout and
// treated as failed, never as pending forever.
func (g *MobileMoneyGateway) AwaitTerminal(ctx context.Context, handle *Handle) (GatewayStatus, error) {
	deadline := time.NewTimer(g.pollMaxWait)
	defer deadline.Stop()
	tick := time.NewTicker(g.pollInterval)
	defer tick.Stop()

	for {
		status, err := g.PollStatus(ctx, handle)
		if err != nil {
			return StatusFailed, err
		}
		if status.Terminal() {
			return status, nil
		}

		select {
		case <-ctx.Done():
			return StatusFailed, ctx.Err()
		case <-deadline.C:
			g.logger.Warn("mobile money poll timed out", zap.String("reference", handle.Reference))
			return StatusFailed, ErrProviderTimeout
		case <-tick.C:
		}
	}
}

// Refund asks the provider to return collected funds to the payer.
func (g *MobileMoneyGateway) Refund(ctx context.Context, handle *Handle, amount int64) error {
	body, err := json.Marshal(map[string]interface{}{
		"reference_id": handle.Reference,
		"amount":       amount,
	})
	if err != nil {
		return &RefundError{Provider: "mobile_money", Err: err}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/refunds", bytes.NewReader(body))
	if err != nil {
		return &RefundError{Provider: "mobile_money", Err: err}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-Reference-Id", uuid.New().String())
	httpReq.Header.Set("Ocp-Apim-Subscription-Key", g.apiKey)

	resp, err := g.client.Do(httpReq)
	if err != nil {
		return &RefundError{Provider: "mobile_money", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return &RefundError{Provider: "mobile_money", Err: fmt.Errorf("provider returned %d", resp.StatusCode)}
	}
	return nil
}
