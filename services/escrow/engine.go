package escrow

import (
	"context"
	"time"

	orderRepo "vendra/database/repository/order"
	proofRepo "vendra/database/repository/proof"
	transactionRepo "vendra/database/repository/transaction"
	"vendra/models"
	"vendra/services/events"
	"vendra/services/fees"
	"vendra/services/payment"

	"go.uber.org/zap"
)

// SettlementQueuer hands a validated order to the background settlement
// worker. The worker retries with exponential backoff.
type SettlementQueuer interface {
	EnqueueSettlement(orderNumber string) error
}

// SettlementEngine is the order state machine: it validates transitions,
// invokes the fee calculator and payment gateways, and triggers refunds
// and releases. It is the only writer of order status.
type SettlementEngine interface {
	Quote(req models.QuoteRequest) (*models.QuoteResponse, error)
	CreateOrder(ctx context.Context, buyerID string, req models.CreateOrderRequest) (*models.Order, error)
	SubmitProof(ctx context.Context, actorID string, orderNumber string, req models.SubmitProofRequest) (*models.Order, error)
	AutoValidate(ctx context.Context, orderNumber string) (*models.Order, error)
	OpenDispute(ctx context.Context, actorID string, orderNumber string, reason string) (*models.Order, error)
	ResolveDispute(ctx context.Context, orderNumber string, outcome models.DisputeOutcome) (*models.Order, error)
	Cancel(ctx context.Context, actorID string, orderNumber string) (*models.Order, error)
	Settle(ctx context.Context, orderNumber string) error
	MarkSettlementStalled(ctx context.Context, orderNumber string) error
	GetOrder(ctx context.Context, orderNumber string) (*models.OrderDetail, error)
}

// EngineConfig carries the policy knobs read from application config.
type EngineConfig struct {
	Currency           string
	CommissionBps      int64
	AutoValidateWindow time.Duration
	DisputeWindow      time.Duration
}

// DefaultSettlementEngine implements SettlementEngine.
type DefaultSettlementEngine struct {
	Orders   orderRepo.OrderRepository
	Proofs   proofRepo.ProofRepository
	Txns     transactionRepo.TransactionRepository
	Gateways *payment.Registry
	Fees     fees.Calculator
	Bus      events.Publisher
	Queue    SettlementQueuer
	Config   EngineConfig
	Logger   *zap.Logger

	nowFn func() time.Time
}

// SetNowFunc overrides the engine's time source. Intended for tests.
func (e *DefaultSettlementEngine) SetNowFunc(now func() time.Time) {
	e.nowFn = now
}

func (e *DefaultSettlementEngine) now() time.Time {
	if e.nowFn != nil {
		return e.nowFn()
	}
	return time.Now()
}

func (e *DefaultSettlementEngine) publish(evtType string, order *models.Order, data map[string]string) {
	if e.Bus == nil {
		return
	}
	e.Bus.Publish(models.DomainEvent{
		Type:        evtType,
		OrderNumber: order.OrderNumber,
		BuyerID:     order.BuyerID,
		SellerID:    order.SellerID,
		Amount:      order.Total,
		Currency:    order.Currency,
		OccurredAt:  e.now(),
		Data:        data,
	})
}

// mustGet loads an order or returns a typed not-found error.
func (e *DefaultSettlementEngine) mustGet(ctx context.Context, orderNumber string) (*models.Order, error) {
	order, err := e.Orders.GetByNumber(ctx, orderNumber)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, newNotFound(orderNumber)
	}
	return order, nil
}
