package escrow

import (
	"context"

	"vendra/models"

	"go.uber.org/zap"
)

// OpenDispute halts auto-validation and fund release pending external
// arbitration. Allowed from shipped or validated, within the reporting
// window after the relevant proof. If auto-validation already settled the
// race, the dispute loses: it is recorded but does not roll back a
// settlement in flight.
func (e *DefaultSettlementEngine) OpenDispute(ctx context.Context, actorID string, orderNumber string, reason string) (*models.Order, error) {
	if reason == "" {
		return nil, newValidationError("dispute requires a reason")
	}

	order, err := e.mustGet(ctx, orderNumber)
	if err != nil {
		return nil, err
	}
	if actorID != order.BuyerID && actorID != order.SellerID {
		return nil, newValidationError("only the buyer or seller may open a dispute")
	}

	now := e.now()
	switch order.Status {
	case models.OrderShipped:
		if order.ShipmentProofAt == nil || now.After(order.ShipmentProofAt.Add(e.Config.AutoValidateWindow)) {
			return nil, newInvalidTransition("dispute window for order %s has closed", orderNumber)
		}
	case models.OrderValidated:
		if order.DeliveryProofAt == nil || now.After(order.DeliveryProofAt.Add(e.Config.DisputeWindow)) {
			return nil, newInvalidTransition("dispute window for order %s has closed", orderNumber)
		}
	case models.OrderDisputed:
		return nil, newDuplicateSubmission("order %s is already disputed", orderNumber)
	default:
		return nil, newInvalidTransition("cannot dispute order %s in state %s", orderNumber, order.Status)
	}

	dispute := models.Dispute{
		Reason:   reason,
		OpenedBy: actorID,
		OpenedAt: now,
	}
	ok, err := e.Orders.MarkDisputed(ctx, orderNumber, []models.OrderStatus{models.OrderShipped, models.OrderValidated}, dispute)
	if err != nil {
		return nil, err
	}
	fresh, err := e.mustGet(ctx, orderNumber)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, newInvalidTransition("order %s moved before the dispute could be opened", orderNumber)
	}

	e.Logger.Warn("dispute opened",
		zap.String("order", orderNumber),
		zap.String("opened_by", actorID),
		zap.String("reason", reason))
	e.publish(models.EventOrderDisputed, fresh, map[string]string{"reason": reason, "opened_by": actorID})
	return fresh, nil
}

// ResolveDispute routes an arbitrated order to release or refund. The
// arbitration process itself is an external collaborator; the engine only
// applies its outcome.
func (e *DefaultSettlementEngine) ResolveDispute(ctx context.Context, orderNumber string, outcome models.DisputeOutcome) (*models.Order, error) {
	order, err := e.mustGet(ctx, orderNumber)
	if err != nil {
		return nil, err
	}
	if order.Status != models.OrderDisputed || !order.Dispute.Open() {
		return nil, newInvalidTransition("order %s has no open dispute", orderNumber)
	}

	now := e.now()
	switch outcome {
	case models.DisputeOutcomeRelease:
		ok, err := e.Orders.ResolveDispute(ctx, orderNumber, outcome, models.OrderValidated, now)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, newInvalidTransition("dispute on order %s was already resolved", orderNumber)
		}
		fresh, err := e.mustGet(ctx, orderNumber)
		if err != nil {
			return nil, err
		}
		e.Logger.Info("dispute resolved for seller", zap.String("order", orderNumber))
		e.publish(models.EventOrderValidated, fresh, map[string]string{"validated_by": "arbitration"})
		e.enqueueSettlement(orderNumber)
		return fresh, nil

	case models.DisputeOutcomeRefund:
		// Win the swap before touching money: a concurrent resolver must
		// never leave an executed refund behind a failed transition.
		ok, err := e.Orders.ResolveDispute(ctx, orderNumber, outcome, models.OrderCancelled, now)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, newInvalidTransition("dispute on order %s was already resolved", orderNumber)
		}
		refundErr := e.refundBuyer(ctx, order)
		if refundErr != nil {
			e.flagRefundFailure(ctx, orderNumber, refundErr)
		}
		fresh, err := e.mustGet(ctx, orderNumber)
		if err != nil {
			return nil, err
		}
		e.Logger.Info("dispute resolved for buyer", zap.String("order", orderNumber))
		if refundErr == nil {
			e.publish(models.EventOrderRefunded, fresh, map[string]string{"trigger": "arbitration"})
		}
		return fresh, nil

	default:
		return nil, newValidationError("unknown dispute outcome %q", outcome)
	}
}

// Cancel aborts a pending order before any proof exists and refunds the
// buyer in full.
func (e *DefaultSettlementEngine) Cancel(ctx context.Context, actorID string, orderNumber string) (*models.Order, error) {
	order, err := e.mustGet(ctx, orderNumber)
	if err != nil {
		return nil, err
	}
	if actorID != order.BuyerID && actorID != order.SellerID {
		return nil, newValidationError("only the buyer or seller may cancel the order")
	}
	if order.Status != models.OrderPending || order.ShipmentProofSubmitted {
		return nil, newInvalidTransition("cannot cancel order %s in state %s", orderNumber, order.Status)
	}

	// The cancel swap gates the refund. If the seller's shipment proof
	// lands first the swap fails and no money moves.
	ok, err := e.Orders.MarkCancelled(ctx, orderNumber)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, newInvalidTransition("order %s moved before it could be cancelled", orderNumber)
	}
	refundErr := e.refundBuyer(ctx, order)
	if refundErr != nil {
		e.flagRefundFailure(ctx, orderNumber, refundErr)
	}

	fresh, err := e.mustGet(ctx, orderNumber)
	if err != nil {
		return nil, err
	}
	e.Logger.Info("order cancelled", zap.String("order", orderNumber), zap.String("by", actorID))
	if refundErr == nil {
		e.publish(models.EventOrderRefunded, fresh, map[string]string{"trigger": "cancellation"})
	}
	return fresh, nil
}

// flagRefundFailure records a refund that failed after the order already
// moved. The transaction stays un-refunded for an operator to retry; the
// order keeps its new status.
func (e *DefaultSettlementEngine) flagRefundFailure(ctx context.Context, orderNumber string, cause error) {
	e.Logger.Error("refund failed after transition, operator attention required",
		zap.String("order", orderNumber), zap.Error(cause))
	if err := e.Orders.FlagNeedsAttention(ctx, orderNumber); err != nil {
		e.Logger.Error("failed to flag refund failure",
			zap.String("order", orderNumber), zap.Error(err))
	}
}

// refundBuyer returns the full escrow amount through the original
// provider. Cash-on-delivery orders hold no funds, so there is nothing
// to move.
func (e *DefaultSettlementEngine) refundBuyer(ctx context.Context, order *models.Order) error {
	if order.PaymentMethod == models.MethodCashOnDelivery {
		return nil
	}

	txn, err := e.Txns.LatestByOrder(ctx, order.OrderNumber)
	if err != nil {
		return err
	}
	if txn == nil {
		return newInvalidTransition("order %s has no payment transaction to refund", order.OrderNumber)
	}
	if txn.Status == models.TxnRefunded {
		return nil
	}

	gw, err := e.Gateways.Get(order.PaymentMethod)
	if err != nil {
		return err
	}
	handle := handleFromTxn(txn)
	if err := gw.Refund(ctx, handle, txn.Amount); err != nil {
		return err
	}
	return e.Txns.UpdateStatus(ctx, txn.ID, models.TxnRefunded)
}
