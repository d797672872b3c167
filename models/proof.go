package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type ProofType string

const (
	ProofShipment ProofType = "shipment"
	ProofDelivery ProofType = "delivery"
)

func (t ProofType) Valid() bool {
	return t == ProofShipment || t == ProofDelivery
}

type ProofMethod string

const (
	ProofByPhoto     ProofMethod = "photo"
	ProofByTracking  ProofMethod = "tracking_number"
	ProofBySignature ProofMethod = "signature"
	ProofByReceipt   ProofMethod = "receipt"
)

func (m ProofMethod) Valid() bool {
	switch m {
	case ProofByPhoto, ProofByTracking, ProofBySignature, ProofByReceipt:
		return true
	default:
		return false
	}
}

// Proof is an append-only shipment or delivery evidence record. Rows are
// never updated after acceptance and never deleted; duplicate submissions
// are kept for audit with Accepted left false.
type Proof struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	OrderNumber string             `bson:"order_number" json:"order_number"`
	Type        ProofType          `bson:"type" json:"type"`
	SubmittedBy string             `bson:"submitted_by" json:"submitted_by"`
	Method      ProofMethod        `bson:"method" json:"method"`

	// Method-specific payload: tracking proofs carry a number and carrier,
	// file-backed proofs carry a storage reference.
	TrackingNumber string `bson:"tracking_number,omitempty" json:"tracking_number,omitempty"`
	Carrier        string `bson:"carrier,omitempty" json:"carrier,omitempty"`
	FileRef        string `bson:"file_ref,omitempty" json:"file_ref,omitempty"`

	Notes    string `bson:"notes,omitempty" json:"notes,omitempty"`
	Accepted bool   `bson:"accepted" json:"accepted"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
}
