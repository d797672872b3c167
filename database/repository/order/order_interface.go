package orderRepo

import (
	"context"
	"time"

	"vendra/models"
)

// OrderRepository is the order ledger: the only place order rows are
// written. Transition methods are compare-and-swap updates whose filter
// pins the expected prior status; they return false when another actor
// already advanced the order, which the caller treats as a lost race
// rather than an error.
type OrderRepository interface {
	// Create inserts a new order row in pending state.
	Create(ctx context.Context, order *models.Order) error
	// GetByNumber retrieves an order by its order number.
	GetByNumber(ctx context.Context, orderNumber string) (*models.Order, error)

	// MarkShipped moves pending -> shipped and stamps the shipment proof
	// flag. Fails the swap if a shipment proof was already recorded.
	MarkShipped(ctx context.Context, orderNumber string, at time.Time) (bool, error)
	// MarkValidated moves shipped -> validated, stamps the delivery proof
	// flag, records the validating actor and marks payment completed. The
	// swap fails if an open dispute sits on the order.
	MarkValidated(ctx context.Context, orderNumber string, at time.Time, validatedBy string) (bool, error)
	// MarkSettled moves validated -> settled.
	MarkSettled(ctx context.Context, orderNumber string) (bool, error)
	// MarkDisputed attaches an open dispute and moves the order to
	// disputed from one of the allowed prior states.
	MarkDisputed(ctx context.Context, orderNumber string, from []models.OrderStatus, dispute models.Dispute) (bool, error)
	// ResolveDispute closes the dispute and moves disputed -> next.
	ResolveDispute(ctx context.Context, orderNumber string, outcome models.DisputeOutcome, next models.OrderStatus, at time.Time) (bool, error)
	// MarkCancelled moves pending -> cancelled and marks payment refunded.
	// Fails the swap if any shipment proof was recorded.
	MarkCancelled(ctx context.Context, orderNumber string) (bool, error)

	// SetPaymentStatus updates the financial status without touching the
	// lifecycle status.
	SetPaymentStatus(ctx context.Context, orderNumber string, status models.PaymentStatus) error
	// FlagNeedsAttention marks the order for manual operator intervention.
	FlagNeedsAttention(ctx context.Context, orderNumber string) error

	// ListAutoValidatable returns shipped orders whose shipment proof is
	// older than the cutoff and which carry no open dispute.
	ListAutoValidatable(ctx context.Context, cutoff time.Time, limit int64) ([]models.Order, error)
}
