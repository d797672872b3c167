package models

// QuoteRequest asks for the fees a checkout would pay. The same inputs
// are recomputed at order creation and must produce the same total.
type QuoteRequest struct {
	Items           []OrderItem `json:"items" binding:"required"`
	ShippingAddress string      `json:"shipping_address" binding:"required"`
	SellerAddress   string      `json:"seller_address" binding:"required"`
	OfficialStore   bool        `json:"official_store"`
}

// QuoteResponse mirrors the fee calculator output.
type QuoteResponse struct {
	Subtotal      int64  `json:"subtotal"`
	ShippingFee   int64  `json:"shipping_fee"`
	ProtectionFee int64  `json:"protection_fee"`
	Total         int64  `json:"total"`
	Currency      string `json:"currency"`
}

// CreateOrderRequest is the checkout payload. QuotedTotal is the total
// the buyer saw; creation fails with a price mismatch if the recomputed
// total disagrees.
type CreateOrderRequest struct {
	SellerID        string        `json:"seller_id" binding:"required"`
	Items           []OrderItem   `json:"items" binding:"required"`
	ShippingAddress string        `json:"shipping_address" binding:"required"`
	SellerAddress   string        `json:"seller_address" binding:"required"`
	OfficialStore   bool          `json:"official_store"`
	PaymentMethod   PaymentMethod `json:"payment_method" binding:"required"`
	QuotedTotal     int64         `json:"quoted_total" binding:"required"`

	// PayerReference is the payment instrument: a card payment-method id
	// for card orders, the payer MSISDN for mobile money.
	PayerReference string `json:"payer_reference"`

	// IdempotencyKey lets the client retry checkout without double-charging.
	IdempotencyKey string `json:"idempotency_key"`
}

// SubmitProofRequest carries a shipment or delivery proof submission.
type SubmitProofRequest struct {
	Type           ProofType   `json:"type" binding:"required"`
	Method         ProofMethod `json:"method" binding:"required"`
	TrackingNumber string      `json:"tracking_number"`
	Carrier        string      `json:"carrier"`
	FileRef        string      `json:"file_ref"`
	Notes          string      `json:"notes"`
}

// OpenDisputeRequest opens arbitration on a shipped or validated order.
type OpenDisputeRequest struct {
	Reason string `json:"reason" binding:"required"`
}

// ResolveDisputeRequest routes an arbitrated order to release or refund.
type ResolveDisputeRequest struct {
	Outcome DisputeOutcome `json:"outcome" binding:"required"`
}

// OrderDetail is the full read model returned to order-detail views.
type OrderDetail struct {
	Order             *Order              `json:"order"`
	Proofs            []Proof             `json:"proofs"`
	LatestTransaction *PaymentTransaction `json:"latest_transaction,omitempty"`
}
