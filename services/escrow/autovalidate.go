package escrow

import (
	"context"

	"vendra/models"

	"go.uber.org/zap"
)

// AutoValidate forces the delivery confirmation of a shipped order whose
// auto-validation window has elapsed without buyer action or dispute.
// Invoked only by the background scheduler; attribution is "system".
// Idempotent: a second call on an already-validated order is a no-op.
func (e *DefaultSettlementEngine) AutoValidate(ctx context.Context, orderNumber string) (*models.Order, error) {
	order, err := e.mustGet(ctx, orderNumber)
	if err != nil {
		return nil, err
	}

	switch order.Status {
	case models.OrderValidated, models.OrderSettled:
		// Someone already advanced this order.
		return order, nil
	case models.OrderDisputed:
		// An open dispute halts auto-validation until arbitration.
		return order, nil
	case models.OrderShipped:
	default:
		return nil, newInvalidTransition("cannot auto-validate order %s in state %s", orderNumber, order.Status)
	}

	if order.ShipmentProofAt == nil {
		return nil, newInvalidTransition("order %s is shipped without a shipment timestamp", orderNumber)
	}
	now := e.now()
	deadline := order.ShipmentProofAt.Add(e.Config.AutoValidateWindow)
	if now.Before(deadline) {
		return nil, newInvalidTransition("auto-validation window for order %s has not elapsed", orderNumber)
	}

	ok, err := e.Orders.MarkValidated(ctx, orderNumber, now, "system")
	if err != nil {
		return nil, err
	}
	fresh, err := e.mustGet(ctx, orderNumber)
	if err != nil {
		return nil, err
	}
	if !ok {
		// Lost the race: the buyer confirmed, a dispute opened, or a
		// scheduler replica won. All are harmless no-ops here.
		return fresh, nil
	}

	e.Logger.Info("order auto-validated",
		zap.String("order", orderNumber),
		zap.Time("shipped_at", *order.ShipmentProofAt))
	e.publish(models.EventOrderValidated, fresh, map[string]string{"validated_by": "system"})
	e.enqueueSettlement(orderNumber)
	return fresh, nil
}
