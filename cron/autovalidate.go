package cron

import (
	"context"
	"time"

	"vendra/config"
	orderRepo "vendra/database/repository/order"
	"vendra/services/escrow"

	"go.uber.org/zap"
)

// sweepBatchSize bounds one sweep pass so a large backlog cannot hold a
// single iteration forever.
const sweepBatchSize = 200

// AutoValidationSweeper periodically forces the validation of shipped
// orders whose confirmation window has elapsed. Safe to run from several
// replicas: each transition is a compare-and-swap on the order status, so
// two sweepers racing on one order produce exactly one validation and one
// harmless no-op.
type AutoValidationSweeper struct {
	Orders   orderRepo.OrderRepository
	Engine   escrow.SettlementEngine
	Interval time.Duration
	Logger   *zap.Logger
}

// NewAutoValidationSweeper builds a sweeper from application config.
func NewAutoValidationSweeper(orders orderRepo.OrderRepository, engine escrow.SettlementEngine, logger *zap.Logger) *AutoValidationSweeper {
	return &AutoValidationSweeper{
		Orders:   orders,
		Engine:   engine,
		Interval: time.Duration(config.AppConfig.SweepIntervalMinutes) * time.Minute,
		Logger:   logger,
	}
}

// Run sweeps until the context is cancelled.
func (s *AutoValidationSweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()

	s.Logger.Info("auto-validation sweeper started", zap.Duration("interval", s.Interval))
	for {
		select {
		case <-ctx.Done():
			s.Logger.Info("auto-validation sweeper stopped")
			return
		case <-ticker.C:
			s.SweepOnce(ctx)
		}
	}
}

// SweepOnce scans for orders past their auto-validation deadline and
// validates each. Deadlines come from stored timestamps, so the sweep
// picks up where it left off across restarts.
func (s *AutoValidationSweeper) SweepOnce(ctx context.Context) {
	cutoff := time.Now().Add(-config.AutoValidateWindow())
	orders, err := s.Orders.ListAutoValidatable(ctx, cutoff, sweepBatchSize)
	if err != nil {
		s.Logger.Error("auto-validation sweep query failed", zap.Error(err))
		return
	}
	if len(orders) == 0 {
		return
	}

	s.Logger.Info("auto-validation sweep", zap.Int("candidates", len(orders)))
	for _, order := range orders {
		if _, err := s.Engine.AutoValidate(ctx, order.OrderNumber); err != nil {
			// Lost races surface as no-ops, so an error here is real.
			s.Logger.Error("auto-validation failed",
				zap.String("order", order.OrderNumber), zap.Error(err))
		}
	}
}
