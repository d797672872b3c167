package escrow

import (
	"context"
	"time"

	"vendra/models"

	"go.uber.org/zap"
)

// maxProofPayload bounds the free-text and reference fields of one proof
// submission, rejected before acceptance.
const maxProofPayload = 4096

// SubmitProof records a shipment or delivery proof and advances the
// order. Shipment proofs come from the seller on a pending order;
// delivery proofs come from the buyer on a shipped order and are the only
// transition a buyer triggers directly.
func (e *DefaultSettlementEngine) SubmitProof(ctx context.Context, actorID string, orderNumber string, req models.SubmitProofRequest) (*models.Order, error) {
	if err := validateProof(req); err != nil {
		return nil, err
	}

	order, err := e.mustGet(ctx, orderNumber)
	if err != nil {
		return nil, err
	}

	switch req.Type {
	case models.ProofShipment:
		return e.submitShipmentProof(ctx, actorID, order, req)
	case models.ProofDelivery:
		return e.submitDeliveryProof(ctx, actorID, order, req)
	default:
		return nil, newValidationError("unknown proof type %q", req.Type)
	}
}

func (e *DefaultSettlementEngine) submitShipmentProof(ctx context.Context, actorID string, order *models.Order, req models.SubmitProofRequest) (*models.Order, error) {
	if actorID != order.SellerID {
		return nil, newValidationError("only the seller may submit shipment proof")
	}

	dup, err := e.Proofs.HasAccepted(ctx, order.OrderNumber, models.ProofShipment)
	if err != nil {
		return nil, err
	}
	if dup {
		// Appended for audit; the first accepted proof keeps driving the
		// state machine.
		e.appendRejected(ctx, actorID, order.OrderNumber, req)
		return nil, newDuplicateSubmission("shipment proof already recorded for order %s", order.OrderNumber)
	}
	if order.Status != models.OrderPending {
		return nil, newInvalidTransition("cannot submit shipment proof while order %s is %s", order.OrderNumber, order.Status)
	}

	now := e.now()
	proof := buildProof(actorID, order.OrderNumber, req, now)
	if _, err := e.Proofs.Create(ctx, proof); err != nil {
		return nil, err
	}

	ok, err := e.Orders.MarkShipped(ctx, order.OrderNumber, now)
	if err != nil {
		return nil, err
	}
	if !ok {
		// Another actor advanced or cancelled the order first.
		return nil, newInvalidTransition("order %s moved before the shipment proof was accepted", order.OrderNumber)
	}
	if err := e.Proofs.Accept(ctx, proof.ID); err != nil {
		return nil, err
	}

	e.Logger.Info("shipment proof accepted",
		zap.String("order", order.OrderNumber),
		zap.String("method", string(req.Method)))

	fresh, err := e.mustGet(ctx, order.OrderNumber)
	if err != nil {
		return nil, err
	}
	e.publish(models.EventShipmentSubmitted, fresh, map[string]string{
		"method":          string(req.Method),
		"tracking_number": req.TrackingNumber,
		"carrier":         req.Carrier,
	})
	return fresh, nil
}

func (e *DefaultSettlementEngine) submitDeliveryProof(ctx context.Context, actorID string, order *models.Order, req models.SubmitProofRequest) (*models.Order, error) {
	if actorID != order.BuyerID {
		return nil, newValidationError("only the buyer may confirm delivery")
	}

	dup, err := e.Proofs.HasAccepted(ctx, order.OrderNumber, models.ProofDelivery)
	if err != nil {
		return nil, err
	}
	if dup {
		e.appendRejected(ctx, actorID, order.OrderNumber, req)
		return nil, newDuplicateSubmission("delivery proof already recorded for order %s", order.OrderNumber)
	}
	if order.Status != models.OrderShipped {
		return nil, newInvalidTransition("cannot confirm delivery while order %s is %s", order.OrderNumber, order.Status)
	}

	now := e.now()
	proof := buildProof(actorID, order.OrderNumber, req, now)
	if _, err := e.Proofs.Create(ctx, proof); err != nil {
		return nil, err
	}

	ok, err := e.Orders.MarkValidated(ctx, order.OrderNumber, now, actorID)
	if err != nil {
		return nil, err
	}
	fresh, err := e.mustGet(ctx, order.OrderNumber)
	if err != nil {
		return nil, err
	}
	if !ok {
		// Lost the race against auto-validation: the order already reached
		// validated, so the buyer's confirmation is a no-op success and
		// retries stay idempotent.
		if fresh.Status == models.OrderValidated || fresh.Status == models.OrderSettled {
			return fresh, nil
		}
		return nil, newInvalidTransition("order %s moved before the delivery proof was accepted", order.OrderNumber)
	}
	if err := e.Proofs.Accept(ctx, proof.ID); err != nil {
		return nil, err
	}

	e.Logger.Info("delivery confirmed by buyer", zap.String("order", order.OrderNumber))
	e.publish(models.EventOrderValidated, fresh, map[string]string{"validated_by": actorID})
	e.enqueueSettlement(fresh.OrderNumber)
	return fresh, nil
}

// appendRejected stores a duplicate submission for the audit trail.
func (e *DefaultSettlementEngine) appendRejected(ctx context.Context, actorID, orderNumber string, req models.SubmitProofRequest) {
	proof := buildProof(actorID, orderNumber, req, e.now())
	if _, err := e.Proofs.Create(ctx, proof); err != nil {
		e.Logger.Warn("failed to record duplicate proof",
			zap.String("order", orderNumber), zap.Error(err))
	}
}

func (e *DefaultSettlementEngine) enqueueSettlement(orderNumber string) {
	if e.Queue == nil {
		return
	}
	if err := e.Queue.EnqueueSettlement(orderNumber); err != nil {
		e.Logger.Error("failed to enqueue settlement",
			zap.String("order", orderNumber), zap.Error(err))
	}
}

func buildProof(actorID, orderNumber string, req models.SubmitProofRequest, at time.Time) *models.Proof {
	return &models.Proof{
		OrderNumber:    orderNumber,
		Type:           req.Type,
		SubmittedBy:    actorID,
		Method:         req.Method,
		TrackingNumber: req.TrackingNumber,
		Carrier:        req.Carrier,
		FileRef:        req.FileRef,
		Notes:          req.Notes,
		Accepted:       false,
		CreatedAt:      at,
	}
}

// validateProof rejects malformed payloads before anything is stored.
func validateProof(req models.SubmitProofRequest) error {
	if !req.Type.Valid() {
		return newValidationError("unknown proof type %q", req.Type)
	}
	if !req.Method.Valid() {
		return newValidationError("unknown proof method %q", req.Method)
	}
	switch req.Method {
	case models.ProofByTracking:
		if req.TrackingNumber == "" {
			return newValidationError("tracking proof requires a tracking number")
		}
	case models.ProofByPhoto, models.ProofByReceipt, models.ProofBySignature:
		if req.FileRef == "" {
			return newValidationError("%s proof requires a file reference", req.Method)
		}
	}
	size := len(req.TrackingNumber) + len(req.Carrier) + len(req.FileRef) + len(req.Notes)
	if size > maxProofPayload {
		return newValidationError("proof payload exceeds %d bytes", maxProofPayload)
	}
	return nil
}
