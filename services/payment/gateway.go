package payment

import (
	"context"
	"fmt"
	"sync"

	"vendra/models"
)

// GatewayStatus is the provider-reported state of a charge.
type GatewayStatus string

const (
	StatusPending   GatewayStatus = "pending"
	StatusSucceeded GatewayStatus = "succeeded"
	StatusFailed    GatewayStatus = "failed"
)

// Terminal reports whether polling can stop.
func (s GatewayStatus) Terminal() bool {
	return s == StatusSucceeded || s == StatusFailed
}

// Handle identifies a charge held at a provider.
type Handle struct {
	Provider       models.PaymentMethod `json:"provider"`
	Reference      string               `json:"reference"`
	IdempotencyKey string               `json:"idempotency_key"`
	Status         GatewayStatus        `json:"status"`
}

// AuthorizeRequest asks a provider to place a hold or collect the escrow
// amount for an order.
type AuthorizeRequest struct {
	OrderNumber    string
	Amount         int64
	Currency       string
	PayerReference string
	IdempotencyKey string
}

// Gateway is the strategy interface every payment provider implements.
// All implementations must be retry-safe: a second Authorize with an
// already-seen idempotency key returns the original handle's current
// status rather than issuing a new charge.
type Gateway interface {
	// Authorize places the charge or hold and returns its handle. Card
	// providers answer synchronously; asynchronous providers return a
	// pending handle whose real outcome PollStatus discovers later.
	Authorize(ctx context.Context, req AuthorizeRequest) (*Handle, error)
	// Confirm finalizes the capture of a previously authorized hold. This
	// is the settlement-time release of escrowed funds.
	Confirm(ctx context.Context, handle *Handle) error
	// PollStatus reports the provider's current view of the charge.
	PollStatus(ctx context.Context, handle *Handle) (GatewayStatus, error)
	// Refund returns amount to the payer.
	Refund(ctx context.Context, handle *Handle, amount int64) error
}

// Registry maps payment method ids to gateway implementations. Adding a
// provider means adding an implementation, not editing the engine.
type Registry struct {
	mu       sync.RWMutex
	gateways map[models.PaymentMethod]Gateway
}

// NewRegistry creates an empty gateway registry.
func NewRegistry() *Registry {
	return &Registry{gateways: make(map[models.PaymentMethod]Gateway)}
}

// Register binds a gateway to a payment method id.
func (r *Registry) Register(method models.PaymentMethod, gw Gateway) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.gateways[method] = gw
}

// Get returns the gateway for a payment method.
func (r *Registry) Get(method models.PaymentMethod) (Gateway, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	gw, ok := r.gateways[method]
	if !ok {
		return nil, fmt.Errorf("no payment gateway registered for method %q", method)
	}
	return gw, nil
}
