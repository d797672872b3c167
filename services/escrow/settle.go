package escrow

import (
	"context"
	"fmt"

	"vendra/models"
	"vendra/services/payment"

	"go.uber.org/zap"
)

// Settle releases the escrowed funds to the seller, net of the platform
// commission, and moves the order to settled. Triggered by the settlement
// worker when an order enters validated. On failure the order stays
// validated and the worker retries with backoff; it never reverts to an
// earlier state. Idempotent: settling an already-settled order is a no-op.
func (e *DefaultSettlementEngine) Settle(ctx context.Context, orderNumber string) error {
	order, err := e.mustGet(ctx, orderNumber)
	if err != nil {
		return err
	}

	switch order.Status {
	case models.OrderSettled:
		return nil
	case models.OrderValidated:
	default:
		return newInvalidTransition("cannot settle order %s in state %s", orderNumber, order.Status)
	}

	net := order.Total - commission(order.Total, e.Config.CommissionBps)

	if order.PaymentMethod != models.MethodCashOnDelivery {
		txn, err := e.Txns.LatestByOrder(ctx, orderNumber)
		if err != nil {
			return err
		}
		if txn == nil {
			return newInvalidTransition("order %s has no payment transaction to settle", orderNumber)
		}
		if txn.Status != models.TxnCaptured {
			gw, err := e.Gateways.Get(order.PaymentMethod)
			if err != nil {
				return err
			}
			if err := gw.Confirm(ctx, handleFromTxn(txn)); err != nil {
				return fmt.Errorf("fund release for order %s failed: %w", orderNumber, err)
			}
			if err := e.Txns.UpdateStatus(ctx, txn.ID, models.TxnCaptured); err != nil {
				return err
			}
		}
	}

	ok, err := e.Orders.MarkSettled(ctx, orderNumber)
	if err != nil {
		return err
	}
	if !ok {
		// A concurrent worker finished first; the capture above was
		// already idempotent.
		fresh, err := e.mustGet(ctx, orderNumber)
		if err != nil {
			return err
		}
		if fresh.Status == models.OrderSettled {
			return nil
		}
		return newInvalidTransition("order %s moved during settlement", orderNumber)
	}

	fresh, err := e.mustGet(ctx, orderNumber)
	if err != nil {
		return err
	}
	e.Logger.Info("order settled",
		zap.String("order", orderNumber),
		zap.Int64("gross", order.Total),
		zap.Int64("net_to_seller", net))
	e.publish(models.EventOrderSettled, fresh, map[string]string{
		"net_to_seller": fmt.Sprintf("%d", net),
	})
	return nil
}

// MarkSettlementStalled flags an order whose fund release failed past the
// retry budget. The order stays validated for manual operator attention;
// the parties keep seeing "payment is being processed".
func (e *DefaultSettlementEngine) MarkSettlementStalled(ctx context.Context, orderNumber string) error {
	if err := e.Orders.FlagNeedsAttention(ctx, orderNumber); err != nil {
		return err
	}
	order, err := e.mustGet(ctx, orderNumber)
	if err != nil {
		return err
	}
	e.Logger.Error("settlement retries exhausted, operator attention required",
		zap.String("order", orderNumber),
		zap.String("seller", order.SellerID),
		zap.Int64("amount", order.Total))
	e.publish(models.EventSettlementStalled, order, nil)
	return nil
}

// commission computes the platform's cut in basis points, rounded down.
func commission(total, bps int64) int64 {
	return total * bps / 10_000
}

func handleFromTxn(txn *models.PaymentTransaction) *payment.Handle {
	return &payment.Handle{
		Provider:       txn.Provider,
		Reference:      txn.ProviderRef,
		IdempotencyKey: txn.IdempotencyKey,
	}
}
