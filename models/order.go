package models

import "time"

// OrderStatus is the lifecycle state of an order. Only the settlement
// engine writes it.
type OrderStatus string

const (
	OrderPending   OrderStatus = "pending"
	OrderShipped   OrderStatus = "shipped"
	OrderValidated OrderStatus = "validated"
	OrderSettled   OrderStatus = "settled"
	OrderDisputed  OrderStatus = "disputed"
	OrderCancelled OrderStatus = "cancelled"
)

// Valid reports whether the status is one of the supported values.
func (s OrderStatus) Valid() bool {
	switch s {
	case OrderPending, OrderShipped, OrderValidated, OrderSettled, OrderDisputed, OrderCancelled:
		return true
	default:
		return false
	}
}

// Terminal reports whether no further transition can leave the status.
func (s OrderStatus) Terminal() bool {
	return s == OrderSettled || s == OrderCancelled
}

type PaymentMethod string

const (
	MethodCard           PaymentMethod = "card"
	MethodMobileMoney    PaymentMethod = "mobile_money"
	MethodCashOnDelivery PaymentMethod = "cash_on_delivery"
)

func (m PaymentMethod) Valid() bool {
	switch m {
	case MethodCard, MethodMobileMoney, MethodCashOnDelivery:
		return true
	default:
		return false
	}
}

type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentCompleted PaymentStatus = "completed"
	PaymentRefunded  PaymentStatus = "refunded"
	PaymentFailed    PaymentStatus = "failed"
)

// OrderItem is a line item snapshotted at order time. Catalog edits after
// checkout never alter it.
type OrderItem struct {
	ProductID string `bson:"product_id" json:"product_id"`
	Title     string `bson:"title" json:"title"`
	ImageURL  string `bson:"image_url,omitempty" json:"image_url,omitempty"`
	Quantity  int    `bson:"quantity" json:"quantity"`
	UnitPrice int64  `bson:"unit_price" json:"unit_price"`
}

type DisputeOutcome string

const (
	DisputeOutcomeRelease DisputeOutcome = "release"
	DisputeOutcomeRefund  DisputeOutcome = "refund"
)

// Dispute is embedded on the order while arbitration is pending.
type Dispute struct {
	Reason     string         `bson:"reason" json:"reason"`
	OpenedBy   string         `bson:"opened_by" json:"opened_by"`
	OpenedAt   time.Time      `bson:"opened_at" json:"opened_at"`
	Resolved   bool           `bson:"resolved" json:"resolved"`
	Outcome    DisputeOutcome `bson:"outcome,omitempty" json:"outcome,omitempty"`
	ResolvedAt *time.Time     `bson:"resolved_at,omitempty" json:"resolved_at,omitempty"`
}

// Open reports whether the dispute still blocks auto-validation and
// fund release.
func (d *Dispute) Open() bool {
	return d != nil && !d.Resolved
}

// Order is the authoritative record of one purchase held in escrow.
// Amounts are integer minor units (XAF carries no subunit). The order is
// created once at checkout and never deleted; every later mutation is a
// status transition performed by the settlement engine.
type Order struct {
	OrderNumber     string        `bson:"order_number" json:"order_number"`
	BuyerID         string        `bson:"buyer_id" json:"buyer_id"`
	SellerID        string        `bson:"seller_id" json:"seller_id"`
	Items           []OrderItem   `bson:"items" json:"items"`
	Currency        string        `bson:"currency" json:"currency"`
	Subtotal        int64         `bson:"subtotal" json:"subtotal"`
	ShippingFee     int64         `bson:"shipping_fee" json:"shipping_fee"`
	ProtectionFee   int64         `bson:"protection_fee" json:"protection_fee"`
	Total           int64         `bson:"total" json:"total"`
	Status          OrderStatus   `bson:"status" json:"status"`
	PaymentMethod   PaymentMethod `bson:"payment_method" json:"payment_method"`
	PaymentStatus   PaymentStatus `bson:"payment_status" json:"payment_status"`
	ShippingAddress string        `bson:"shipping_address" json:"shipping_address"`

	ShipmentProofSubmitted bool       `bson:"shipment_proof_submitted" json:"shipment_proof_submitted"`
	ShipmentProofAt        *time.Time `bson:"shipment_proof_at,omitempty" json:"shipment_proof_at,omitempty"`
	DeliveryProofSubmitted bool       `bson:"delivery_proof_submitted" json:"delivery_proof_submitted"`
	DeliveryProofAt        *time.Time `bson:"delivery_proof_at,omitempty" json:"delivery_proof_at,omitempty"`

	// ValidatedBy records which actor confirmed delivery: the buyer id,
	// "system" for the auto-validation sweep, or "arbitration".
	ValidatedBy string `bson:"validated_by,omitempty" json:"validated_by,omitempty"`

	Dispute *Dispute `bson:"dispute,omitempty" json:"dispute,omitempty"`

	// NeedsAttention is set when settlement retries are exhausted and an
	// operator has to step in.
	NeedsAttention bool `bson:"needs_attention" json:"needs_attention"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}

// SubtotalOf sums the line items. The stored subtotal must equal it at
// creation time.
func SubtotalOf(items []OrderItem) int64 {
	var sum int64
	for _, it := range items {
		sum += int64(it.Quantity) * it.UnitPrice
	}
	return sum
}
