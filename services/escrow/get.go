package escrow

import (
	"context"

	"vendra/models"
)

// GetOrder returns the full order aggregate: the order row, every proof
// submitted for it and the latest payment transaction. Proof writes
// always land before the transition they drive, so this read is
// consistent with the order's status.
func (e *DefaultSettlementEngine) GetOrder(ctx context.Context, orderNumber string) (*models.OrderDetail, error) {
	order, err := e.mustGet(ctx, orderNumber)
	if err != nil {
		return nil, err
	}
	proofs, err := e.Proofs.ListByOrder(ctx, orderNumber)
	if err != nil {
		return nil, err
	}
	txn, err := e.Txns.LatestByOrder(ctx, orderNumber)
	if err != nil {
		return nil, err
	}
	return &models.OrderDetail{
		Order:             order,
		Proofs:            proofs,
		LatestTransaction: txn,
	}, nil
}
