package transactionRepo

import (
	"context"
	"fmt"
	"time"

	"vendra/database"
	"vendra/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoTransactionRepo implements TransactionRepository using MongoDB.
type MongoTransactionRepo struct {
	coll *mongo.Collection
}

// NewMongoTransactionRepo creates a new instance of TransactionRepository using MongoDB.
func NewMongoTransactionRepo() TransactionRepository {
	repo := &MongoTransactionRepo{coll: database.Collection("payment_transactions")}
	if err := repo.ensureIndexes(); err != nil {
		fmt.Printf("failed to create indexes: %v\n", err)
	}
	return repo
}

func (r *MongoTransactionRepo) ensureIndexes() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	indexModels := []mongo.IndexModel{
		{Keys: bson.D{{Key: "id", Value: 1}}, Options: options.Index().SetUnique(true)},
		// A retried authorize with a seen key can never mint a second row.
		{Keys: bson.D{{Key: "idempotency_key", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "order_number", Value: 1}, {Key: "created_at", Value: -1}}},
	}

	_, err := r.coll.Indexes().CreateMany(ctx, indexModels)
	if err != nil {
		return fmt.Errorf("failed to create indexes: %w", err)
	}
	return nil
}

// Create inserts a new payment transaction.
func (r *MongoTransactionRepo) Create(ctx context.Context, txn *models.PaymentTransaction) error {
	now := time.Now()
	if txn.CreatedAt.IsZero() {
		txn.CreatedAt = now
	}
	txn.UpdatedAt = now
	if len(txn.History) == 0 {
		txn.History = []models.TransactionEvent{{Status: txn.Status, At: now}}
	}
	if _, err := r.coll.InsertOne(ctx, txn); err != nil {
		return fmt.Errorf("failed to insert transaction: %w", err)
	}
	return nil
}

// GetByIdempotencyKey returns the transaction created under the key.
func (r *MongoTransactionRepo) GetByIdempotencyKey(ctx context.Context, key string) (*models.PaymentTransaction, error) {
	var txn models.PaymentTransaction
	err := r.coll.FindOne(ctx, bson.M{"idempotency_key": key}).Decode(&txn)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to fetch transaction: %w", err)
	}
	return &txn, nil
}

// UpdateStatus moves the transaction to a new status and appends the
// change to its history.
func (r *MongoTransactionRepo) UpdateStatus(ctx context.Context, id string, status models.TransactionStatus) error {
	now := time.Now()
	update := bson.M{
		"$set":  bson.M{"status": status, "updated_at": now},
		"$push": bson.M{"history": models.TransactionEvent{Status: status, At: now}},
	}
	res, err := r.coll.UpdateOne(ctx, bson.M{"id": id}, update)
	if err != nil {
		return fmt.Errorf("failed to update transaction status: %w", err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("transaction %s not found", id)
	}
	return nil
}

// LatestByOrder returns the most recent transaction for the order.
func (r *MongoTransactionRepo) LatestByOrder(ctx context.Context, orderNumber string) (*models.PaymentTransaction, error) {
	opts := options.FindOne().SetSort(bson.D{{Key: "created_at", Value: -1}})
	var txn models.PaymentTransaction
	err := r.coll.FindOne(ctx, bson.M{"order_number": orderNumber}, opts).Decode(&txn)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to fetch latest transaction: %w", err)
	}
	return &txn, nil
}
