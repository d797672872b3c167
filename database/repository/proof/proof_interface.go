package proofRepo

import (
	"context"

	"vendra/models"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ProofRepository is the append-only store of shipment and delivery
// evidence. Rows are inserted once; Accept flips the accepted flag
// exactly once for the proof that drove a state transition. Proofs are
// never deleted.
type ProofRepository interface {
	// Create appends a proof record and returns its id.
	Create(ctx context.Context, proof *models.Proof) (primitive.ObjectID, error)
	// Accept marks the proof as the accepted one for its type. Write-once:
	// a proof already accepted is left untouched.
	Accept(ctx context.Context, id primitive.ObjectID) error
	// HasAccepted reports whether an accepted proof of the given type
	// exists for the order.
	HasAccepted(ctx context.Context, orderNumber string, proofType models.ProofType) (bool, error)
	// ListByOrder returns all proofs submitted for the order, oldest first.
	ListByOrder(ctx context.Context, orderNumber string) ([]models.Proof, error)
}
