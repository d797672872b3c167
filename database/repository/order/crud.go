package orderRepo

import (
	"context"
	"fmt"
	"time"

	"vendra/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Create inserts a new order row.
func (r *MongoOrderRepo) Create(ctx context.Context, order *models.Order) error {
	now := time.Now()
	if order.CreatedAt.IsZero() {
		order.CreatedAt = now
	}
	order.UpdatedAt = now

	if _, err := r.coll.InsertOne(ctx, order); err != nil {
		return fmt.Errorf("failed to insert order: %w", err)
	}
	return nil
}

// GetByNumber returns an order by its order number.
func (r *MongoOrderRepo) GetByNumber(ctx context.Context, orderNumber string) (*models.Order, error) {
	var order models.Order
	err := r.coll.FindOne(ctx, bson.M{"order_number": orderNumber}).Decode(&order)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to fetch order %s: %w", orderNumber, err)
	}
	return &order, nil
}

// SetPaymentStatus updates only the financial status of the order.
func (r *MongoOrderRepo) SetPaymentStatus(ctx context.Context, orderNumber string, status models.PaymentStatus) error {
	update := bson.M{"$set": bson.M{"payment_status": status, "updated_at": time.Now()}}
	res, err := r.coll.UpdateOne(ctx, bson.M{"order_number": orderNumber}, update)
	if err != nil {
		return fmt.Errorf("failed to update payment status: %w", err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("order %s not found", orderNumber)
	}
	return nil
}

// FlagNeedsAttention marks the order for manual operator intervention.
func (r *MongoOrderRepo) FlagNeedsAttention(ctx context.Context, orderNumber string) error {
	update := bson.M{"$set": bson.M{"needs_attention": true, "updated_at": time.Now()}}
	if _, err := r.coll.UpdateOne(ctx, bson.M{"order_number": orderNumber}, update); err != nil {
		return fmt.Errorf("failed to flag order %s: %w", orderNumber, err)
	}
	return nil
}

// ListAutoValidatable returns shipped orders whose shipment proof aged
// past the cutoff and which carry no open dispute.
func (r *MongoOrderRepo) ListAutoValidatable(ctx context.Context, cutoff time.Time, limit int64) ([]models.Order, error) {
	filter := bson.M{
		"status":            models.OrderShipped,
		"shipment_proof_at": bson.M{"$lte": cutoff},
		"$or": []bson.M{
			{"dispute": bson.M{"$exists": false}},
			{"dispute.resolved": true},
		},
	}
	opts := options.Find().SetSort(bson.D{{Key: "shipment_proof_at", Value: 1}})
	if limit > 0 {
		opts.SetLimit(limit)
	}

	cur, err := r.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query auto-validatable orders: %w", err)
	}
	defer cur.Close(ctx)

	var orders []models.Order
	if err := cur.All(ctx, &orders); err != nil {
		return nil, fmt.Errorf("failed to decode auto-validatable orders: %w", err)
	}
	return orders, nil
}
