package escrow

import (
	"context"
	"sync"
	"testing"
	"time"

	"vendra/models"
	"vendra/services/events"
	"vendra/services/fees"
	"vendra/services/payment"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// --- in-memory order ledger ---

type memOrders struct {
	mu     sync.Mutex
	orders map[string]*models.Order
}

func newMemOrders() *memOrders {
	return &memOrders{orders: make(map[string]*models.Order)}
}

func cloneOrder(o *models.Order) *models.Order {
	if o == nil {
		return nil
	}
	clone := *o
	if o.Dispute != nil {
		d := *o.Dispute
		clone.Dispute = &d
	}
	return &clone
}

func (m *memOrders) Create(_ context.Context, order *models.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.orders[order.OrderNumber] = cloneOrder(order)
	return nil
}

func (m *memOrders) GetByNumber(_ context.Context, orderNumber string) (*models.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return cloneOrder(m.orders[orderNumber]), nil
}

func (m *memOrders) MarkShipped(_ context.Context, orderNumber string, at time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[orderNumber]
	if !ok || o.Status != models.OrderPending || o.ShipmentProofSubmitted {
		return false, nil
	}
	o.Status = models.OrderShipped
	o.ShipmentProofSubmitted = true
	o.ShipmentProofAt = &at
	return true, nil
}

func (m *memOrders) MarkValidated(_ context.Context, orderNumber string, at time.Time, validatedBy string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[orderNumber]
	if !ok || o.Status != models.OrderShipped || o.Dispute.Open() {
		return false, nil
	}
	o.Status = models.OrderValidated
	o.DeliveryProofSubmitted = true
	o.DeliveryProofAt = &at
	o.ValidatedBy = validatedBy
	o.PaymentStatus = models.PaymentCompleted
	return true, nil
}

func (m *memOrders) MarkSettled(_ context.Context, orderNumber string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[orderNumber]
	if !ok || o.Status != models.OrderValidated {
		return false, nil
	}
	o.Status = models.OrderSettled
	return true, nil
}

func (m *memOrders) MarkDisputed(_ context.Context, orderNumber string, from []models.OrderStatus, dispute models.Dispute) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[orderNumber]
	if !ok {
		return false, nil
	}
	allowed := false
	for _, s := range from {
		if o.Status == s {
			allowed = true
		}
	}
	if !allowed {
		return false, nil
	}
	o.Status = models.OrderDisputed
	o.Dispute = &dispute
	return true, nil
}

func (m *memOrders) ResolveDispute(_ context.Context, orderNumber string, outcome models.DisputeOutcome, next models.OrderStatus, at time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[orderNumber]
	if !ok || o.Status != models.OrderDisputed || o.Dispute == nil || o.Dispute.Resolved {
		return false, nil
	}
	o.Status = next
	o.Dispute.Resolved = true
	o.Dispute.Outcome = outcome
	o.Dispute.ResolvedAt = &at
	switch next {
	case models.OrderValidated:
		o.ValidatedBy = "arbitration"
		o.PaymentStatus = models.PaymentCompleted
	case models.OrderCancelled:
		o.PaymentStatus = models.PaymentRefunded
	}
	return true, nil
}

func (m *memOrders) MarkCancelled(_ context.Context, orderNumber string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[orderNumber]
	if !ok || o.Status != models.OrderPending || o.ShipmentProofSubmitted {
		return false, nil
	}
	o.Status = models.OrderCancelled
	o.PaymentStatus = models.PaymentRefunded
	return true, nil
}

func (m *memOrders) SetPaymentStatus(_ context.Context, orderNumber string, status models.PaymentStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if o, ok := m.orders[orderNumber]; ok {
		o.PaymentStatus = status
	}
	return nil
}

func (m *memOrders) FlagNeedsAttention(_ context.Context, orderNumber string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if o, ok := m.orders[orderNumber]; ok {
		o.NeedsAttention = true
	}
	return nil
}

func (m *memOrders) ListAutoValidatable(_ context.Context, cutoff time.Time, limit int64) ([]models.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Order
	for _, o := range m.orders {
		if o.Status != models.OrderShipped || o.Dispute.Open() {
			continue
		}
		if o.ShipmentProofAt != nil && !o.ShipmentProofAt.After(cutoff) {
			out = append(out, *cloneOrder(o))
		}
	}
	return out, nil
}

// --- in-memory proof store ---

type memProofs struct {
	mu     sync.Mutex
	proofs []*models.Proof
}

func (m *memProofs) Create(_ context.Context, proof *models.Proof) (primitive.ObjectID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	proof.ID = primitive.NewObjectID()
	m.proofs = append(m.proofs, proof)
	return proof.ID, nil
}

func (m *memProofs) Accept(_ context.Context, id primitive.ObjectID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.proofs {
		if p.ID == id {
			p.Accepted = true
		}
	}
	return nil
}

func (m *memProofs) HasAccepted(_ context.Context, orderNumber string, proofType models.ProofType) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.proofs {
		if p.OrderNumber == orderNumber && p.Type == proofType && p.Accepted {
			return true, nil
		}
	}
	return false, nil
}

func (m *memProofs) ListByOrder(_ context.Context, orderNumber string) ([]models.Proof, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Proof
	for _, p := range m.proofs {
		if p.OrderNumber == orderNumber {
			out = append(out, *p)
		}
	}
	return out, nil
}

// --- in-memory transaction store ---

type memTxns struct {
	mu   sync.Mutex
	txns []*models.PaymentTransaction
}

func (m *memTxns) Create(_ context.Context, txn *models.PaymentTransaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *txn
	m.txns = append(m.txns, &cp)
	return nil
}

func (m *memTxns) GetByIdempotencyKey(_ context.Context, key string) (*models.PaymentTransaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.txns {
		if t.IdempotencyKey == key {
			cp := *t
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *memTxns) UpdateStatus(_ context.Context, id string, status models.TransactionStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.txns {
		if t.ID == id {
			t.Status = status
			t.History = append(t.History, models.TransactionEvent{Status: status, At: time.Now()})
		}
	}
	return nil
}

func (m *memTxns) LatestByOrder(_ context.Context, orderNumber string) (*models.PaymentTransaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.txns) - 1; i >= 0; i-- {
		if m.txns[i].OrderNumber == orderNumber {
			cp := *m.txns[i]
			return &cp, nil
		}
	}
	return nil, nil
}

// --- scripted payment gateway ---

type fakeGateway struct {
	mu           sync.Mutex
	declineWith  *payment.DeclinedError
	confirmFails int
	confirms     int
	refundErr    error
	refunds      []int64
}

func (g *fakeGateway) Authorize(_ context.Context, req payment.AuthorizeRequest) (*payment.Handle, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.declineWith != nil {
		return nil, g.declineWith
	}
	return &payment.Handle{
		Provider:       models.MethodCard,
		Reference:      "pi_" + uuid.New().String(),
		IdempotencyKey: req.IdempotencyKey,
		Status:         payment.StatusSucceeded,
	}, nil
}

func (g *fakeGateway) Confirm(_ context.Context, _ *payment.Handle) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.confirms++
	if g.confirmFails > 0 {
		g.confirmFails--
		return assert.AnError
	}
	return nil
}

func (g *fakeGateway) PollStatus(_ context.Context, h *payment.Handle) (payment.GatewayStatus, error) {
	return h.Status, nil
}

func (g *fakeGateway) Refund(_ context.Context, _ *payment.Handle, amount int64) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.refundErr != nil {
		return g.refundErr
	}
	g.refunds = append(g.refunds, amount)
	return nil
}

// --- queue capture ---

type captureQueuer struct {
	mu     sync.Mutex
	queued []string
}

func (q *captureQueuer) EnqueueSettlement(orderNumber string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.queued = append(q.queued, orderNumber)
	return nil
}

func (q *captureQueuer) count() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.queued)
}

// --- test harness ---

type testEnv struct {
	engine  *DefaultSettlementEngine
	orders  *memOrders
	proofs  *memProofs
	txns    *memTxns
	gateway *fakeGateway
	queue   *captureQueuer
	now     time.Time
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	env := &testEnv{
		orders:  newMemOrders(),
		proofs:  &memProofs{},
		txns:    &memTxns{},
		gateway: &fakeGateway{},
		queue:   &captureQueuer{},
		now:     time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}

	registry := payment.NewRegistry()
	registry.Register(models.MethodCard, env.gateway)

	env.engine = &DefaultSettlementEngine{
		Orders:   env.orders,
		Proofs:   env.proofs,
		Txns:     env.txns,
		Gateways: registry,
		Fees: fees.Calculator{Rates: fees.RateTable{
			SameCityFee:           1000,
			InterCityFee:          2000,
			FreeShippingThreshold: 100000,
			ProtectionFee:         500,
		}},
		Bus:   events.NoopPublisher{},
		Queue: env.queue,
		Config: EngineConfig{
			Currency:           "XAF",
			CommissionBps:      500,
			AutoValidateWindow: 14 * 24 * time.Hour,
			DisputeWindow:      48 * time.Hour,
		},
		Logger: zap.NewNop(),
	}
	env.engine.SetNowFunc(func() time.Time { return env.now })
	return env
}

func (env *testEnv) advance(d time.Duration) {
	env.now = env.now.Add(d)
}

func (env *testEnv) createOrder(t *testing.T) *models.Order {
	t.Helper()
	order, err := env.engine.CreateOrder(context.Background(), "buyer-1", models.CreateOrderRequest{
		SellerID:        "seller-1",
		Items:           []models.OrderItem{{ProductID: "p1", Title: "Sneakers", Quantity: 1, UnitPrice: 15000}},
		ShippingAddress: "Douala, Akwa",
		SellerAddress:   "Douala, Bonanjo",
		PaymentMethod:   models.MethodCard,
		QuotedTotal:     16500,
		PayerReference:  "pm_test",
	})
	require.NoError(t, err)
	return order
}

func (env *testEnv) ship(t *testing.T, orderNumber string) *models.Order {
	t.Helper()
	order, err := env.engine.SubmitProof(context.Background(), "seller-1", orderNumber, models.SubmitProofRequest{
		Type:           models.ProofShipment,
		Method:         models.ProofByTracking,
		TrackingNumber: "1234567890",
		Carrier:        "DHL Express",
	})
	require.NoError(t, err)
	return order
}

// --- tests ---

func TestCreateOrderHoldsFundsAndSnapshotsPrice(t *testing.T) {
	env := newTestEnv(t)

	order := env.createOrder(t)

	assert.Equal(t, models.OrderPending, order.Status)
	assert.Equal(t, models.PaymentPending, order.PaymentStatus)
	assert.Equal(t, int64(15000), order.Subtotal)
	assert.Equal(t, int64(1000), order.ShippingFee)
	assert.Equal(t, int64(500), order.ProtectionFee)
	assert.Equal(t, order.Subtotal+order.ShippingFee+order.ProtectionFee, order.Total)

	txn, err := env.txns.LatestByOrder(context.Background(), order.OrderNumber)
	require.NoError(t, err)
	require.NotNil(t, txn)
	assert.Equal(t, models.TxnAuthorized, txn.Status)
	assert.Equal(t, order.Total, txn.Amount)
}

func TestCreateOrderPriceMismatch(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.engine.CreateOrder(context.Background(), "buyer-1", models.CreateOrderRequest{
		SellerID:        "seller-1",
		Items:           []models.OrderItem{{ProductID: "p1", Title: "Sneakers", Quantity: 1, UnitPrice: 15000}},
		ShippingAddress: "Douala, Akwa",
		SellerAddress:   "Douala, Bonanjo",
		PaymentMethod:   models.MethodCard,
		QuotedTotal:     16000, // stale quote
		PayerReference:  "pm_test",
	})

	assert.True(t, IsCode(err, CodePriceMismatch))
	order, _ := env.orders.GetByNumber(context.Background(), "any")
	assert.Nil(t, order)
}

func TestCreateOrderDeclinedLeavesNoOrder(t *testing.T) {
	env := newTestEnv(t)
	env.gateway.declineWith = &payment.DeclinedError{Provider: "card", Reason: "insufficient funds"}

	_, err := env.engine.CreateOrder(context.Background(), "buyer-1", models.CreateOrderRequest{
		SellerID:        "seller-1",
		Items:           []models.OrderItem{{ProductID: "p1", Title: "Sneakers", Quantity: 1, UnitPrice: 15000}},
		ShippingAddress: "Douala, Akwa",
		SellerAddress:   "Douala, Bonanjo",
		PaymentMethod:   models.MethodCard,
		QuotedTotal:     16500,
		PayerReference:  "pm_test",
	})

	assert.True(t, IsCode(err, CodePaymentDeclined))
	env.orders.mu.Lock()
	assert.Empty(t, env.orders.orders)
	env.orders.mu.Unlock()
}

func TestShipmentProofAdvancesToShipped(t *testing.T) {
	env := newTestEnv(t)
	order := env.createOrder(t)

	shipped := env.ship(t, order.OrderNumber)

	assert.Equal(t, models.OrderShipped, shipped.Status)
	assert.True(t, shipped.ShipmentProofSubmitted)
	require.NotNil(t, shipped.ShipmentProofAt)

	proofs, _ := env.proofs.ListByOrder(context.Background(), order.OrderNumber)
	require.Len(t, proofs, 1)
	assert.True(t, proofs[0].Accepted)
	assert.Equal(t, "1234567890", proofs[0].TrackingNumber)
}

func TestDuplicateShipmentProofRecordedButRejected(t *testing.T) {
	env := newTestEnv(t)
	order := env.createOrder(t)
	env.ship(t, order.OrderNumber)

	_, err := env.engine.SubmitProof(context.Background(), "seller-1", order.OrderNumber, models.SubmitProofRequest{
		Type:           models.ProofShipment,
		Method:         models.ProofByTracking,
		TrackingNumber: "other-number",
	})

	assert.True(t, IsCode(err, CodeDuplicateSubmission))
	proofs, _ := env.proofs.ListByOrder(context.Background(), order.OrderNumber)
	require.Len(t, proofs, 2)

	accepted := 0
	for _, p := range proofs {
		if p.Accepted {
			accepted++
		}
	}
	assert.Equal(t, 1, accepted)
	fresh, _ := env.orders.GetByNumber(context.Background(), order.OrderNumber)
	assert.Equal(t, models.OrderShipped, fresh.Status)
}

func TestDeliveryProofRequiresShippedState(t *testing.T) {
	env := newTestEnv(t)
	order := env.createOrder(t)

	_, err := env.engine.SubmitProof(context.Background(), "buyer-1", order.OrderNumber, models.SubmitProofRequest{
		Type:    models.ProofDelivery,
		Method:  models.ProofBySignature,
		FileRef: "sig-123",
	})

	assert.True(t, IsCode(err, CodeInvalidTransition))
}

func TestBuyerConfirmationValidatesAndQueuesSettlement(t *testing.T) {
	env := newTestEnv(t)
	order := env.createOrder(t)
	env.ship(t, order.OrderNumber)

	validated, err := env.engine.SubmitProof(context.Background(), "buyer-1", order.OrderNumber, models.SubmitProofRequest{
		Type:    models.ProofDelivery,
		Method:  models.ProofByPhoto,
		FileRef: "photo-1",
	})
	require.NoError(t, err)

	assert.Equal(t, models.OrderValidated, validated.Status)
	assert.Equal(t, models.PaymentCompleted, validated.PaymentStatus)
	assert.Equal(t, "buyer-1", validated.ValidatedBy)
	assert.Equal(t, 1, env.queue.count())
}

func TestSettleCapturesAndFinishes(t *testing.T) {
	env := newTestEnv(t)
	order := env.createOrder(t)
	env.ship(t, order.OrderNumber)
	_, err := env.engine.SubmitProof(context.Background(), "buyer-1", order.OrderNumber, models.SubmitProofRequest{
		Type:    models.ProofDelivery,
		Method:  models.ProofByPhoto,
		FileRef: "photo-1",
	})
	require.NoError(t, err)

	require.NoError(t, env.engine.Settle(context.Background(), order.OrderNumber))

	fresh, _ := env.orders.GetByNumber(context.Background(), order.OrderNumber)
	assert.Equal(t, models.OrderSettled, fresh.Status)
	txn, _ := env.txns.LatestByOrder(context.Background(), order.OrderNumber)
	assert.Equal(t, models.TxnCaptured, txn.Status)

	// Settling again is a no-op, not a second capture.
	require.NoError(t, env.engine.Settle(context.Background(), order.OrderNumber))
	assert.Equal(t, 1, env.gateway.confirms)
}

func TestSettleFailureKeepsOrderValidated(t *testing.T) {
	env := newTestEnv(t)
	order := env.createOrder(t)
	env.ship(t, order.OrderNumber)
	_, err := env.engine.SubmitProof(context.Background(), "buyer-1", order.OrderNumber, models.SubmitProofRequest{
		Type:    models.ProofDelivery,
		Method:  models.ProofByPhoto,
		FileRef: "photo-1",
	})
	require.NoError(t, err)

	env.gateway.confirmFails = 1
	assert.Error(t, env.engine.Settle(context.Background(), order.OrderNumber))

	fresh, _ := env.orders.GetByNumber(context.Background(), order.OrderNumber)
	assert.Equal(t, models.OrderValidated, fresh.Status)

	// Retry succeeds; the order never reverted.
	require.NoError(t, env.engine.Settle(context.Background(), order.OrderNumber))
	fresh, _ = env.orders.GetByNumber(context.Background(), order.OrderNumber)
	assert.Equal(t, models.OrderSettled, fresh.Status)
}

func TestMarkSettlementStalledFlagsOrder(t *testing.T) {
	env := newTestEnv(t)
	order := env.createOrder(t)
	env.ship(t, order.OrderNumber)
	_, err := env.engine.SubmitProof(context.Background(), "buyer-1", order.OrderNumber, models.SubmitProofRequest{
		Type:    models.ProofDelivery,
		Method:  models.ProofByPhoto,
		FileRef: "photo-1",
	})
	require.NoError(t, err)

	require.NoError(t, env.engine.MarkSettlementStalled(context.Background(), order.OrderNumber))

	fresh, _ := env.orders.GetByNumber(context.Background(), order.OrderNumber)
	assert.True(t, fresh.NeedsAttention)
	assert.Equal(t, models.OrderValidated, fresh.Status)
}

func TestCancelRefundsPendingOrder(t *testing.T) {
	env := newTestEnv(t)
	order := env.createOrder(t)

	cancelled, err := env.engine.Cancel(context.Background(), "buyer-1", order.OrderNumber)
	require.NoError(t, err)

	assert.Equal(t, models.OrderCancelled, cancelled.Status)
	assert.Equal(t, models.PaymentRefunded, cancelled.PaymentStatus)
	assert.Equal(t, []int64{16500}, env.gateway.refunds)
	txn, _ := env.txns.LatestByOrder(context.Background(), order.OrderNumber)
	assert.Equal(t, models.TxnRefunded, txn.Status)
}

func TestCancelRejectedAfterShipment(t *testing.T) {
	env := newTestEnv(t)
	order := env.createOrder(t)
	env.ship(t, order.OrderNumber)

	_, err := env.engine.Cancel(context.Background(), "buyer-1", order.OrderNumber)

	assert.True(t, IsCode(err, CodeInvalidTransition))
	assert.Empty(t, env.gateway.refunds)
}

func TestProofValidationRejectsMalformedPayloads(t *testing.T) {
	env := newTestEnv(t)
	order := env.createOrder(t)

	cases := map[string]models.SubmitProofRequest{
		"missing tracking number": {Type: models.ProofShipment, Method: models.ProofByTracking},
		"missing file ref":        {Type: models.ProofShipment, Method: models.ProofByPhoto},
		"unknown method":          {Type: models.ProofShipment, Method: "fax"},
		"unknown type":            {Type: "customs", Method: models.ProofByPhoto, FileRef: "f"},
		"oversized payload": {
			Type:           models.ProofShipment,
			Method:         models.ProofByTracking,
			TrackingNumber: "t",
			Notes:          string(make([]byte, maxProofPayload)),
		},
	}
	for name, req := range cases {
		_, err := env.engine.SubmitProof(context.Background(), "seller-1", order.OrderNumber, req)
		assert.True(t, IsCode(err, CodeValidation), "expected validation error: %s", name)
	}

	// Nothing was stored for the rejected submissions.
	proofs, _ := env.proofs.ListByOrder(context.Background(), order.OrderNumber)
	assert.Empty(t, proofs)
}
