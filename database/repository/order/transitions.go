package orderRepo

import (
	"context"
	"fmt"
	"time"

	"vendra/models"

	"go.mongodb.org/mongo-driver/bson"
)

// swap runs one compare-and-swap status update. The filter pins the
// expected prior state, so concurrent actors racing on the same order
// produce exactly one matched update; losers see false and re-read.
func (r *MongoOrderRepo) swap(ctx context.Context, filter, set bson.M) (bool, error) {
	set["updated_at"] = time.Now()
	res, err := r.coll.UpdateOne(ctx, filter, bson.M{"$set": set})
	if err != nil {
		return false, fmt.Errorf("order transition failed: %w", err)
	}
	return res.MatchedCount == 1, nil
}

// MarkShipped moves pending -> shipped. The filter also requires that no
// shipment proof flag is set, so a duplicate submission can never
// silently overwrite the first.
func (r *MongoOrderRepo) MarkShipped(ctx context.Context, orderNumber string, at time.Time) (bool, error) {
	filter := bson.M{
		"order_number":             orderNumber,
		"status":                   models.OrderPending,
		"shipment_proof_submitted": false,
	}
	set := bson.M{
		"status":                   models.OrderShipped,
		"shipment_proof_submitted": true,
		"shipment_proof_at":        at,
	}
	return r.swap(ctx, filter, set)
}

// MarkValidated moves shipped -> validated and completes the payment.
// An open dispute on the order fails the swap.
func (r *MongoOrderRepo) MarkValidated(ctx context.Context, orderNumber string, at time.Time, validatedBy string) (bool, error) {
	filter := bson.M{
		"order_number": orderNumber,
		"status":       models.OrderShipped,
		"$or": []bson.M{
			{"dispute": bson.M{"$exists": false}},
			{"dispute.resolved": true},
		},
	}
	set := bson.M{
		"status":                   models.OrderValidated,
		"delivery_proof_submitted": true,
		"delivery_proof_at":        at,
		"validated_by":             validatedBy,
		"payment_status":           models.PaymentCompleted,
	}
	return r.swap(ctx, filter, set)
}

// MarkSettled moves validated -> settled.
func (r *MongoOrderRepo) MarkSettled(ctx context.Context, orderNumber string) (bool, error) {
	filter := bson.M{
		"order_number": orderNumber,
		"status":       models.OrderValidated,
	}
	return r.swap(ctx, filter, bson.M{"status": models.OrderSettled})
}

// MarkDisputed attaches an open dispute, moving from one of the allowed
// prior states.
func (r *MongoOrderRepo) MarkDisputed(ctx context.Context, orderNumber string, from []models.OrderStatus, dispute models.Dispute) (bool, error) {
	filter := bson.M{
		"order_number": orderNumber,
		"status":       bson.M{"$in": from},
	}
	set := bson.M{
		"status":  models.OrderDisputed,
		"dispute": dispute,
	}
	return r.swap(ctx, filter, set)
}

// ResolveDispute closes the dispute and moves disputed -> next, which is
// validated (release) or cancelled (refund).
func (r *MongoOrderRepo) ResolveDispute(ctx context.Context, orderNumber string, outcome models.DisputeOutcome, next models.OrderStatus, at time.Time) (bool, error) {
	filter := bson.M{
		"order_number":     orderNumber,
		"status":           models.OrderDisputed,
		"dispute.resolved": false,
	}
	set := bson.M{
		"status":              next,
		"dispute.resolved":    true,
		"dispute.outcome":     outcome,
		"dispute.resolved_at": at,
	}
	switch next {
	case models.OrderValidated:
		set["validated_by"] = "arbitration"
		set["payment_status"] = models.PaymentCompleted
	case models.OrderCancelled:
		set["payment_status"] = models.PaymentRefunded
	}
	return r.swap(ctx, filter, set)
}

// MarkCancelled moves pending -> cancelled. Any recorded shipment proof
// fails the swap.
func (r *MongoOrderRepo) MarkCancelled(ctx context.Context, orderNumber string) (bool, error) {
	filter := bson.M{
		"order_number":             orderNumber,
		"status":                   models.OrderPending,
		"shipment_proof_submitted": false,
	}
	set := bson.M{
		"status":         models.OrderCancelled,
		"payment_status": models.PaymentRefunded,
	}
	return r.swap(ctx, filter, set)
}
