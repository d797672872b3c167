package transactionRepo

import (
	"context"

	"vendra/models"
)

// TransactionRepository stores payment transactions. Rows are inserted by
// the settlement engine only; status changes append to the row's history.
type TransactionRepository interface {
	// Create inserts a new payment transaction.
	Create(ctx context.Context, txn *models.PaymentTransaction) error
	// GetByIdempotencyKey returns the transaction created under the key,
	// or nil when the key was never used.
	GetByIdempotencyKey(ctx context.Context, key string) (*models.PaymentTransaction, error)
	// UpdateStatus moves the transaction to a new status and appends the
	// change to its history.
	UpdateStatus(ctx context.Context, id string, status models.TransactionStatus) error
	// LatestByOrder returns the most recent transaction for the order.
	LatestByOrder(ctx context.Context, orderNumber string) (*models.PaymentTransaction, error)
}
