package models

import "time"

// Domain event types emitted by the settlement engine. An external
// notifier fans these out to the buyer and seller.
const (
	EventOrderCreated        = "order.created"
	EventShipmentSubmitted   = "proof.shipment_submitted"
	EventOrderValidated      = "order.validated"
	EventOrderSettled        = "order.settled"
	EventOrderDisputed       = "order.disputed"
	EventOrderRefunded       = "order.refunded"
	EventSettlementStalled   = "order.settlement_stalled"
)

// DomainEvent is the payload published on the in-process event bus.
type DomainEvent struct {
	Type        string            `json:"type"`
	OrderNumber string            `json:"order_number"`
	BuyerID     string            `json:"buyer_id"`
	SellerID    string            `json:"seller_id"`
	Amount      int64             `json:"amount"`
	Currency    string            `json:"currency"`
	OccurredAt  time.Time         `json:"occurred_at"`
	Data        map[string]string `json:"data,omitempty"`
}
