package escrow

import (
	"context"
	"testing"
	"time"

	"vendra/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openDispute(t *testing.T, env *testEnv, actorID, orderNumber string) *models.Order {
	t.Helper()
	order, err := env.engine.OpenDispute(context.Background(), actorID, orderNumber, "item not as described")
	require.NoError(t, err)
	return order
}

func TestOpenDisputeFromShipped(t *testing.T) {
	env := newTestEnv(t)
	order := env.createOrder(t)
	env.ship(t, order.OrderNumber)

	disputed := openDispute(t, env, "buyer-1", order.OrderNumber)

	assert.Equal(t, models.OrderDisputed, disputed.Status)
	require.NotNil(t, disputed.Dispute)
	assert.Equal(t, "buyer-1", disputed.Dispute.OpenedBy)
	assert.False(t, disputed.Dispute.Resolved)
}

func TestOpenDisputeByStrangerRejected(t *testing.T) {
	env := newTestEnv(t)
	order := env.createOrder(t)
	env.ship(t, order.OrderNumber)

	_, err := env.engine.OpenDispute(context.Background(), "someone-else", order.OrderNumber, "reason")

	assert.True(t, IsCode(err, CodeValidation))
}

func TestOpenDisputeTwiceRejected(t *testing.T) {
	env := newTestEnv(t)
	order := env.createOrder(t)
	env.ship(t, order.OrderNumber)
	openDispute(t, env, "buyer-1", order.OrderNumber)

	_, err := env.engine.OpenDispute(context.Background(), "seller-1", order.OrderNumber, "counter-claim")

	assert.True(t, IsCode(err, CodeDuplicateSubmission))
}

func TestOpenDisputeAfterWindowRejected(t *testing.T) {
	env := newTestEnv(t)
	order := env.createOrder(t)
	env.ship(t, order.OrderNumber)

	env.advance(15 * 24 * time.Hour)
	_, err := env.engine.OpenDispute(context.Background(), "buyer-1", order.OrderNumber, "too late")

	assert.True(t, IsCode(err, CodeInvalidTransition))
}

func TestOpenDisputeOnValidatedWithinWindow(t *testing.T) {
	env := newTestEnv(t)
	order := env.createOrder(t)
	env.ship(t, order.OrderNumber)
	_, err := env.engine.SubmitProof(context.Background(), "buyer-1", order.OrderNumber, models.SubmitProofRequest{
		Type:    models.ProofDelivery,
		Method:  models.ProofByPhoto,
		FileRef: "photo-1",
	})
	require.NoError(t, err)

	env.advance(24 * time.Hour)
	disputed := openDispute(t, env, "buyer-1", order.OrderNumber)
	assert.Equal(t, models.OrderDisputed, disputed.Status)

	// Past the post-validation window the dispute is refused.
	env2 := newTestEnv(t)
	order2 := env2.createOrder(t)
	env2.ship(t, order2.OrderNumber)
	_, err = env2.engine.SubmitProof(context.Background(), "buyer-1", order2.OrderNumber, models.SubmitProofRequest{
		Type:    models.ProofDelivery,
		Method:  models.ProofByPhoto,
		FileRef: "photo-1",
	})
	require.NoError(t, err)
	env2.advance(49 * time.Hour)
	_, err = env2.engine.OpenDispute(context.Background(), "buyer-1", order2.OrderNumber, "late")
	assert.True(t, IsCode(err, CodeInvalidTransition))
}

func TestResolveDisputeRelease(t *testing.T) {
	env := newTestEnv(t)
	order := env.createOrder(t)
	env.ship(t, order.OrderNumber)
	openDispute(t, env, "buyer-1", order.OrderNumber)

	resolved, err := env.engine.ResolveDispute(context.Background(), order.OrderNumber, models.DisputeOutcomeRelease)
	require.NoError(t, err)

	assert.Equal(t, models.OrderValidated, resolved.Status)
	assert.Equal(t, "arbitration", resolved.ValidatedBy)
	assert.Equal(t, models.PaymentCompleted, resolved.PaymentStatus)
	require.NotNil(t, resolved.Dispute)
	assert.True(t, resolved.Dispute.Resolved)
	assert.Equal(t, models.DisputeOutcomeRelease, resolved.Dispute.Outcome)
	assert.Equal(t, 1, env.queue.count(), "release hands the order to the settlement worker")
	assert.Empty(t, env.gateway.refunds)
}

func TestResolveDisputeRefund(t *testing.T) {
	env := newTestEnv(t)
	order := env.createOrder(t)
	env.ship(t, order.OrderNumber)
	openDispute(t, env, "buyer-1", order.OrderNumber)

	resolved, err := env.engine.ResolveDispute(context.Background(), order.OrderNumber, models.DisputeOutcomeRefund)
	require.NoError(t, err)

	assert.Equal(t, models.OrderCancelled, resolved.Status)
	assert.Equal(t, models.PaymentRefunded, resolved.PaymentStatus)
	assert.Equal(t, []int64{order.Total}, env.gateway.refunds)
	assert.Equal(t, 0, env.queue.count())

	txn, _ := env.txns.LatestByOrder(context.Background(), order.OrderNumber)
	assert.Equal(t, models.TxnRefunded, txn.Status)
}

func TestResolveDisputeWithoutOpenDispute(t *testing.T) {
	env := newTestEnv(t)
	order := env.createOrder(t)
	env.ship(t, order.OrderNumber)

	_, err := env.engine.ResolveDispute(context.Background(), order.OrderNumber, models.DisputeOutcomeRelease)

	assert.True(t, IsCode(err, CodeInvalidTransition))
}

// shipBeforeCancelOrders injects a seller's shipment proof right before
// the cancel swap runs, like a concurrent submission winning the race.
type shipBeforeCancelOrders struct {
	*memOrders
}

func (r *shipBeforeCancelOrders) MarkCancelled(ctx context.Context, orderNumber string) (bool, error) {
	if _, err := r.memOrders.MarkShipped(ctx, orderNumber, time.Now()); err != nil {
		return false, err
	}
	return r.memOrders.MarkCancelled(ctx, orderNumber)
}

func TestCancelLosingRaceToShipmentMovesNoMoney(t *testing.T) {
	env := newTestEnv(t)
	order := env.createOrder(t)
	env.engine.Orders = &shipBeforeCancelOrders{env.orders}

	_, err := env.engine.Cancel(context.Background(), "buyer-1", order.OrderNumber)

	assert.True(t, IsCode(err, CodeInvalidTransition))
	assert.Empty(t, env.gateway.refunds, "losing the cancel swap must not refund")
	txn, _ := env.txns.LatestByOrder(context.Background(), order.OrderNumber)
	assert.Equal(t, models.TxnAuthorized, txn.Status)
	fresh, _ := env.orders.GetByNumber(context.Background(), order.OrderNumber)
	assert.Equal(t, models.OrderShipped, fresh.Status)
}

// contestedResolveOrders resolves the dispute for the seller just before
// the delegated swap, like a concurrent admin winning the race.
type contestedResolveOrders struct {
	*memOrders
}

func (r *contestedResolveOrders) ResolveDispute(ctx context.Context, orderNumber string, outcome models.DisputeOutcome, next models.OrderStatus, at time.Time) (bool, error) {
	if _, err := r.memOrders.ResolveDispute(ctx, orderNumber, models.DisputeOutcomeRelease, models.OrderValidated, at); err != nil {
		return false, err
	}
	return r.memOrders.ResolveDispute(ctx, orderNumber, outcome, next, at)
}

func TestResolveDisputeRefundLosingRaceMovesNoMoney(t *testing.T) {
	env := newTestEnv(t)
	order := env.createOrder(t)
	env.ship(t, order.OrderNumber)
	openDispute(t, env, "buyer-1", order.OrderNumber)
	env.engine.Orders = &contestedResolveOrders{env.orders}

	_, err := env.engine.ResolveDispute(context.Background(), order.OrderNumber, models.DisputeOutcomeRefund)

	assert.True(t, IsCode(err, CodeInvalidTransition))
	assert.Empty(t, env.gateway.refunds, "losing the resolve swap must not refund")
	txn, _ := env.txns.LatestByOrder(context.Background(), order.OrderNumber)
	assert.Equal(t, models.TxnAuthorized, txn.Status)
	fresh, _ := env.orders.GetByNumber(context.Background(), order.OrderNumber)
	assert.Equal(t, models.OrderValidated, fresh.Status)
}

func TestCancelRefundFailureFlagsOrder(t *testing.T) {
	env := newTestEnv(t)
	order := env.createOrder(t)
	env.gateway.refundErr = assert.AnError

	cancelled, err := env.engine.Cancel(context.Background(), "buyer-1", order.OrderNumber)
	require.NoError(t, err)

	assert.Equal(t, models.OrderCancelled, cancelled.Status)
	assert.True(t, cancelled.NeedsAttention, "failed refund needs an operator")
	txn, _ := env.txns.LatestByOrder(context.Background(), order.OrderNumber)
	assert.Equal(t, models.TxnAuthorized, txn.Status, "transaction stays un-refunded for the retry")
}

func TestResolveDisputeRefundFailureFlagsOrder(t *testing.T) {
	env := newTestEnv(t)
	order := env.createOrder(t)
	env.ship(t, order.OrderNumber)
	openDispute(t, env, "buyer-1", order.OrderNumber)
	env.gateway.refundErr = assert.AnError

	resolved, err := env.engine.ResolveDispute(context.Background(), order.OrderNumber, models.DisputeOutcomeRefund)
	require.NoError(t, err)

	assert.Equal(t, models.OrderCancelled, resolved.Status)
	assert.True(t, resolved.NeedsAttention)
	txn, _ := env.txns.LatestByOrder(context.Background(), order.OrderNumber)
	assert.Equal(t, models.TxnAuthorized, txn.Status)
}

func TestResolvedDisputeUnblocksAutoValidation(t *testing.T) {
	env := newTestEnv(t)
	order := env.createOrder(t)
	env.ship(t, order.OrderNumber)
	openDispute(t, env, "buyer-1", order.OrderNumber)

	resolved, err := env.engine.ResolveDispute(context.Background(), order.OrderNumber, models.DisputeOutcomeRelease)
	require.NoError(t, err)
	assert.Equal(t, models.OrderValidated, resolved.Status)

	require.NoError(t, env.engine.Settle(context.Background(), order.OrderNumber))
	fresh, _ := env.orders.GetByNumber(context.Background(), order.OrderNumber)
	assert.Equal(t, models.OrderSettled, fresh.Status)
}
