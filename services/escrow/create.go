package escrow

import (
	"context"
	"errors"
	"fmt"

	"vendra/models"
	"vendra/services/payment"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Quote computes the fee breakdown a checkout would pay. The same
// calculator runs again at order creation; the two must agree.
func (e *DefaultSettlementEngine) Quote(req models.QuoteRequest) (*models.QuoteResponse, error) {
	if len(req.Items) == 0 {
		return nil, newValidationError("order has no items")
	}
	subtotal := models.SubtotalOf(req.Items)
	q := e.Fees.Compute(subtotal, req.ShippingAddress, req.SellerAddress, req.OfficialStore)
	return &models.QuoteResponse{
		Subtotal:      q.Subtotal,
		ShippingFee:   q.ShippingFee,
		ProtectionFee: q.ProtectionFee,
		Total:         q.Total,
		Currency:      e.Config.Currency,
	}, nil
}

// CreateOrder is the checkout entry point. It recomputes the quote,
// authorizes payment, and only then persists the order in pending state.
// A declined or timed-out authorization leaves no order row behind.
func (e *DefaultSettlementEngine) CreateOrder(ctx context.Context, buyerID string, req models.CreateOrderRequest) (*models.Order, error) {
	if err := validateCreate(buyerID, req); err != nil {
		return nil, err
	}

	subtotal := models.SubtotalOf(req.Items)
	quote := e.Fees.Compute(subtotal, req.ShippingAddress, req.SellerAddress, req.OfficialStore)
	if quote.Total != req.QuotedTotal {
		return nil, newPriceMismatch(req.QuotedTotal, quote.Total)
	}

	orderNumber := newOrderNumber()
	idemKey := req.IdempotencyKey
	if idemKey == "" {
		idemKey = uuid.New().String()
	}

	order := &models.Order{
		OrderNumber:     orderNumber,
		BuyerID:         buyerID,
		SellerID:        req.SellerID,
		Items:           req.Items,
		Currency:        e.Config.Currency,
		Subtotal:        subtotal,
		ShippingFee:     quote.ShippingFee,
		ProtectionFee:   quote.ProtectionFee,
		Total:           quote.Total,
		Status:          models.OrderPending,
		PaymentMethod:   req.PaymentMethod,
		PaymentStatus:   models.PaymentPending,
		ShippingAddress: req.ShippingAddress,
		CreatedAt:       e.now(),
	}

	// Cash on delivery holds no funds: the order is created unpaid and
	// payment completes at validation.
	if req.PaymentMethod != models.MethodCashOnDelivery {
		if err := e.collectPayment(ctx, order, req.PayerReference, idemKey); err != nil {
			return nil, err
		}
	}

	if err := e.Orders.Create(ctx, order); err != nil {
		return nil, fmt.Errorf("failed to persist order %s: %w", orderNumber, err)
	}

	e.Logger.Info("order created",
		zap.String("order", orderNumber),
		zap.String("buyer", buyerID),
		zap.String("seller", req.SellerID),
		zap.Int64("total", order.Total),
		zap.String("method", string(req.PaymentMethod)))
	e.publish(models.EventOrderCreated, order, nil)
	return order, nil
}

// collectPayment authorizes the escrow charge and records the
// transaction. Asynchronous providers are polled to a terminal status
// before the order may exist.
func (e *DefaultSettlementEngine) collectPayment(ctx context.Context, order *models.Order, payerRef, idemKey string) error {
	gw, err := e.Gateways.Get(order.PaymentMethod)
	if err != nil {
		return newValidationError("unsupported payment method %q", order.PaymentMethod)
	}

	authReq := payment.AuthorizeRequest{
		OrderNumber:    order.OrderNumber,
		Amount:         order.Total,
		Currency:       order.Currency,
		PayerReference: payerRef,
		IdempotencyKey: idemKey,
	}

	handle, err := gw.Authorize(ctx, authReq)
	if err != nil {
		var declined *payment.DeclinedError
		if errors.As(err, &declined) {
			return newPaymentDeclined(declined.Reason)
		}
		return err
	}

	status := handle.Status
	if !status.Terminal() {
		if mm, ok := gw.(*payment.MobileMoneyGateway); ok {
			status, err = mm.AwaitTerminal(ctx, handle)
			if err != nil && !errors.Is(err, payment.ErrProviderTimeout) {
				return err
			}
			if errors.Is(err, payment.ErrProviderTimeout) {
				return newProviderTimeout("payment approval not received in time; please retry")
			}
		}
	}
	if status != payment.StatusSucceeded {
		return newPaymentDeclined("payment was not approved")
	}

	txn := &models.PaymentTransaction{
		ID:             uuid.New().String(),
		OrderNumber:    order.OrderNumber,
		Provider:       order.PaymentMethod,
		Amount:         order.Total,
		Currency:       order.Currency,
		Status:         models.TxnAuthorized,
		ProviderRef:    handle.Reference,
		IdempotencyKey: idemKey,
	}
	if err := e.Txns.Create(ctx, txn); err != nil {
		return fmt.Errorf("failed to record payment transaction: %w", err)
	}
	return nil
}

func validateCreate(buyerID string, req models.CreateOrderRequest) error {
	if buyerID == "" {
		return newValidationError("missing buyer id")
	}
	if req.SellerID == "" {
		return newValidationError("missing seller id")
	}
	if buyerID == req.SellerID {
		return newValidationError("buyer and seller cannot be the same party")
	}
	if len(req.Items) == 0 {
		return newValidationError("order has no items")
	}
	for i, it := range req.Items {
		if it.Quantity <= 0 {
			return newValidationError("item %d has non-positive quantity", i)
		}
		if it.UnitPrice < 0 {
			return newValidationError("item %d has negative unit price", i)
		}
	}
	if !req.PaymentMethod.Valid() {
		return newValidationError("unsupported payment method %q", req.PaymentMethod)
	}
	if req.PaymentMethod != models.MethodCashOnDelivery && req.PayerReference == "" {
		return newValidationError("missing payer reference for method %q", req.PaymentMethod)
	}
	return nil
}

// newOrderNumber mints a human-displayable unique order number.
func newOrderNumber() string {
	id := uuid.New().String()
	return "VD-" + id[:8]
}
