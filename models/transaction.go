package models

import "time"

type TransactionStatus string

const (
	TxnInitiated  TransactionStatus = "initiated"
	TxnAuthorized TransactionStatus = "authorized"
	TxnCaptured   TransactionStatus = "captured"
	TxnFailed     TransactionStatus = "failed"
	TxnRefunded   TransactionStatus = "refunded"
)

// TransactionEvent records one status change with its wall-clock time.
type TransactionEvent struct {
	Status TransactionStatus `bson:"status" json:"status"`
	At     time.Time         `bson:"at" json:"at"`
}

// PaymentTransaction is one financial effect against a payment provider:
// the initial escrow charge, the settlement capture, or a refund. Owned
// exclusively by the settlement engine. The idempotency key is unique so a
// retried authorize can never mint a second charge row.
type PaymentTransaction struct {
	ID             string            `bson:"id" json:"id"`
	OrderNumber    string            `bson:"order_number" json:"order_number"`
	Provider       PaymentMethod     `bson:"provider" json:"provider"`
	Amount         int64             `bson:"amount" json:"amount"`
	Currency       string            `bson:"currency" json:"currency"`
	Status         TransactionStatus `bson:"status" json:"status"`
	ProviderRef    string            `bson:"provider_ref,omitempty" json:"provider_ref,omitempty"`
	IdempotencyKey string            `bson:"idempotency_key" json:"idempotency_key"`

	History []TransactionEvent `bson:"history" json:"history"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}
