package proofRepo

import (
	"context"
	"fmt"
	"time"

	"vendra/database"
	"vendra/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoProofRepo implements ProofRepository using MongoDB.
type MongoProofRepo struct {
	coll *mongo.Collection
}

// NewMongoProofRepo creates a new instance of ProofRepository using MongoDB.
func NewMongoProofRepo() ProofRepository {
	repo := &MongoProofRepo{coll: database.Collection("proofs")}
	if err := repo.ensureIndexes(); err != nil {
		fmt.Printf("failed to create indexes: %v\n", err)
	}
	return repo
}

func (r *MongoProofRepo) ensureIndexes() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	indexModels := []mongo.IndexModel{
		{Keys: bson.D{{Key: "order_number", Value: 1}, {Key: "type", Value: 1}}},
		// Only one accepted proof of each type per order.
		{
			Keys: bson.D{{Key: "order_number", Value: 1}, {Key: "type", Value: 1}, {Key: "accepted", Value: 1}},
			Options: options.Index().
				SetUnique(true).
				SetPartialFilterExpression(bson.M{"accepted": true}),
		},
	}

	_, err := r.coll.Indexes().CreateMany(ctx, indexModels)
	if err != nil {
		return fmt.Errorf("failed to create indexes: %w", err)
	}
	return nil
}

// Create appends a proof record.
func (r *MongoProofRepo) Create(ctx context.Context, proof *models.Proof) (primitive.ObjectID, error) {
	if proof.CreatedAt.IsZero() {
		proof.CreatedAt = time.Now()
	}
	res, err := r.coll.InsertOne(ctx, proof)
	if err != nil {
		return primitive.NilObjectID, fmt.Errorf("failed to insert proof: %w", err)
	}
	id, _ := res.InsertedID.(primitive.ObjectID)
	proof.ID = id
	return id, nil
}

// Accept flips the accepted flag for the proof that drove a transition.
func (r *MongoProofRepo) Accept(ctx context.Context, id primitive.ObjectID) error {
	filter := bson.M{"_id": id, "accepted": false}
	_, err := r.coll.UpdateOne(ctx, filter, bson.M{"$set": bson.M{"accepted": true}})
	if err != nil {
		return fmt.Errorf("failed to accept proof: %w", err)
	}
	return nil
}

// HasAccepted reports whether an accepted proof of the given type exists.
func (r *MongoProofRepo) HasAccepted(ctx context.Context, orderNumber string, proofType models.ProofType) (bool, error) {
	filter := bson.M{"order_number": orderNumber, "type": proofType, "accepted": true}
	count, err := r.coll.CountDocuments(ctx, filter, options.Count().SetLimit(1))
	if err != nil {
		return false, fmt.Errorf("failed to count proofs: %w", err)
	}
	return count > 0, nil
}

// ListByOrder returns all proofs for the order, oldest first.
func (r *MongoProofRepo) ListByOrder(ctx context.Context, orderNumber string) ([]models.Proof, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}})
	cur, err := r.coll.Find(ctx, bson.M{"order_number": orderNumber}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query proofs: %w", err)
	}
	defer cur.Close(ctx)

	var proofs []models.Proof
	if err := cur.All(ctx, &proofs); err != nil {
		return nil, fmt.Errorf("failed to decode proofs: %w", err)
	}
	return proofs, nil
}
