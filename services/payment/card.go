package payment

import (
	"context"
	"strings"

	"vendra/models"

	stripe "github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/paymentintent"
	"github.com/stripe/stripe-go/v76/refund"
	"go.uber.org/zap"
)

// CardGateway charges cards through Stripe payment intents. The intent is
// created and confirmed with manual capture at checkout, so the funds sit
// on an authorized hold; Confirm captures them at settlement time.
type CardGateway struct {
	store  IdempotencyStore
	logger *zap.Logger
}

// NewCardGateway creates a card gateway. The Stripe API key is set
// globally at process start.
func NewCardGateway(store IdempotencyStore, logger *zap.Logger) *CardGateway {
	return &CardGateway{store: store, logger: logger}
}

// Authorize creates and confirms a manual-capture payment intent. A
// retried call with a seen idempotency key returns the original handle.
func (g *CardGateway) Authorize(ctx context.Context, req AuthorizeRequest) (*Handle, error) {
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

	params := &stripe.PaymentIntentParams{
		Amount:        stripe.Int64(req.Amount),
		Currency:      stripe.String(strings.ToLower(req.Currency)),
		PaymentMethod: stripe.String(req.PayerReference),
		Confirm:       stripe.Bool(true),
		CaptureMethod: stripe.String(string(stripe.PaymentIntentCaptureMethodManual)),
	}
	params.Context = ctx
	params.SetIdempotencyKey(req.IdempotencyKey)

	pi, err := paymentintent.New(params)
	if err != nil {
		if se, ok := err.(*stripe.Error); ok {
			g.logger.Warn("card authorization declined",
				zap.String("order", req.OrderNumber),
				zap.String("code", string(se.Code)))
			return nil, &DeclinedError{Provider: "card", Reason: se.Msg}
		}
		return nil, err
	}

	if pi.Status != stripe.PaymentIntentStatusRequiresCapture &&
		pi.Status != stripe.PaymentIntentStatusSucceeded {
		return nil, &DeclinedError{Provider: "card", Reason: string(pi.Status)}
	}

	handle := &Handle{
		Provider:       models.MethodCard,
		Reference:      pi.ID,
		IdempotencyKey: req.IdempotencyKey,
		Status:         StatusSucceeded,
	}
	stored, _, err := g.store.PutIfAbsent(ctx, req.IdempotencyKey, handle)
	if err != nil {
		return nil, err
	}
	return stored, nil
}

// Confirm captures the held funds.
func (g *CardGateway) Confirm(ctx context.Context, handle *Handle) error {
	params := &stripe.PaymentIntentCaptureParams{}
	params.Context = ctx
	_, err := paymentintent.Capture(handle.Reference, params)
	if err != nil {
		if se, ok := err.(*stripe.Error); ok && se.Code == stripe.ErrorCodePaymentIntentUnexpectedState {
			// Already captured: a retried settlement is a no-op.
			pi, getErr := paymentintent.Get(handle.Reference, nil)
			if getErr == nil && pi.Status == stripe.PaymentIntentStatusSucceeded {
				return nil
			}
		}
		return err
	}
	return nil
}

// PollStatus maps the intent state onto the gateway status.
func (g *CardGateway) PollStatus(ctx context.Context, handle *Handle) (GatewayStatus, error) {
	params := &stripe.PaymentIntentParams{}
	params.Context = ctx
	pi, err := paymentintent.Get(handle.Reference, params)
	if err != nil {
		return StatusFailed, err
	}
	switch pi.Status {
	case stripe.PaymentIntentStatusRequiresCapture, stripe.PaymentIntentStatusSucceeded:
		return StatusSucceeded, nil
	case stripe.PaymentIntentStatusCanceled:
		return StatusFailed, nil
	default:
		return StatusPending, nil
	}
}

// Refund returns funds to the card holder. An uncaptured hold is
// cancelled outright; a captured charge is refunded.
func (g *CardGateway) Refund(ctx context.Context, handle *Handle, amount int64) error {
	pi, err := paymentintent.Get(handle.Reference, nil)
	if err != nil {
		return &RefundError{Provider: "card", Err: err}
	}

	if pi.Status == stripe.PaymentIntentStatusRequiresCapture {
		cancelParams := &stripe.PaymentIntentCancelParams{}
		cancelParams.Context = ctx
		if _, err := paymentintent.Cancel(handle.Reference, cancelParams); err != nil {
			return &RefundError{Provider: "card", Err: err}
		}
		return nil
	}

	params := &stripe.RefundParams{
		PaymentIntent: stripe.String(handle.Reference),
		Amount:        stripe.Int64(amount),
	}
	params.Context = ctx
	if _, err := refund.New(params); err != nil {
		return &RefundError{Provider: "card", Err: err}
	}
	return nil
}
