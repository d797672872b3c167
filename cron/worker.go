package cron

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"time"

	"vendra/config"
	"vendra/models"
	"vendra/services/escrow"
	"vendra/services/notification"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

// TypeSettlementRelease is the asynq task type for releasing escrowed
// funds of one validated order.
const TypeSettlementRelease = "settlement:release"

type settlementPayload struct {
	OrderNumber string `json:"order_number"`
}

// AsynqSettlementQueuer implements escrow.SettlementQueuer on asynq.
type AsynqSettlementQueuer struct {
	Client *asynq.Client
}

// EnqueueSettlement schedules the fund release for one order. The worker
// retries with exponential backoff up to the configured budget.
func (q *AsynqSettlementQueuer) EnqueueSettlement(orderNumber string) error {
	payload, err := json.Marshal(settlementPayload{OrderNumber: orderNumber})
	if err != nil {
		return err
	}
	task := asynq.NewTask(TypeSettlementRelease, payload)
	_, err = q.Client.Enqueue(task,
		asynq.MaxRetry(config.AppConfig.SettleMaxRetries),
		asynq.Queue("settlement"),
	)
	return err
}

// NewAsynqClient creates the shared task-queue client.
func NewAsynqClient() *asynq.Client {
	return asynq.NewClient(redisOpts())
}

func redisOpts() asynq.RedisClientOpt {
	return asynq.RedisClientOpt{
		Addr:     config.AppConfig.RedisAddr,
		Password: config.AppConfig.RedisPassword,
		DB:       config.AppConfig.RedisTaskQueueDB,
	}
}

// InitEscrowWorker runs the async worker in background. It serves the
// settlement queue and the notification fan-out queue.
func InitEscrowWorker(engine escrow.SettlementEngine, logger *zap.Logger) {
	srv := asynq.NewServer(
		redisOpts(),
		asynq.Config{
			Concurrency: 10,
			Queues: map[string]int{
				"settlement": 3,
				"default":    1,
			},
		},
	)

	mux := asynq.NewServeMux()
	mux.HandleFunc(TypeSettlementRelease, handleSettlementTask(engine, logger))
	mux.HandleFunc(notification.TypeOrderEvent, handleOrderEventTask(logger))

	// Start async worker with retry logic
	go func() {
		log.Println("[EscrowWorker] starting async worker...")
		const maxAttempts = 5

		for attempts := 1; attempts <= maxAttempts; attempts++ {
			if err := srv.Run(mux); err != nil {
				log.Printf("[EscrowWorker] attempt %d/%d failed to start worker: %v", attempts, maxAttempts, err)

				if attempts == maxAttempts {
					log.Fatal("[EscrowWorker] max retry attempts reached, exiting")
				}
				time.Sleep(time.Duration(attempts*2) * time.Second) // Exponential backoff
			} else {
				break
			}
		}
	}()
}

// handleSettlementTask releases funds for one order. A transient
// provider failure returns the error so asynq retries with backoff; once
// the retry budget is spent the order is flagged for an operator instead
// of being silently dropped.
func handleSettlementTask(engine escrow.SettlementEngine, logger *zap.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, task *asynq.Task) error {
		var p settlementPayload
		if err := json.Unmarshal(task.Payload(), &p); err != nil {
			logger.Error("settlement task payload invalid", zap.Error(err))
			return nil // Malformed payloads are not retryable.
		}

		err := engine.Settle(ctx, p.OrderNumber)
		if err == nil {
			return nil
		}
		if escrow.IsCode(err, escrow.CodeInvalidTransition) || escrow.IsCode(err, escrow.CodeNotFound) {
			// Another actor resolved the order; nothing left to release.
			logger.Info("settlement task skipped",
				zap.String("order", p.OrderNumber), zap.Error(err))
			return nil
		}

		retried, _ := asynq.GetRetryCount(ctx)
		maxRetry, _ := asynq.GetMaxRetry(ctx)
		if retried >= maxRetry {
			logger.Error("settlement retries exhausted",
				zap.String("order", p.OrderNumber), zap.Error(err))
			if flagErr := engine.MarkSettlementStalled(ctx, p.OrderNumber); flagErr != nil {
				logger.Error("failed to flag stalled settlement",
					zap.String("order", p.OrderNumber), zap.Error(flagErr))
			}
			return nil
		}

		logger.Warn("settlement attempt failed, will retry",
			zap.String("order", p.OrderNumber),
			zap.Int("attempt", retried+1),
			zap.Error(err))
		return err
	}
}

// handleOrderEventTask delivers one domain event to the external
// notification sink. Delivery here is a structured log; the real channel
// is an out-of-process collaborator.
func handleOrderEventTask(logger *zap.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, task *asynq.Task) error {
		var evt models.DomainEvent
		if err := json.Unmarshal(task.Payload(), &evt); err != nil {
			logger.Error("notification payload invalid", zap.Error(err))
			return nil
		}
		if evt.Type == "" {
			return errors.New("notification event missing type")
		}

		logger.Info("order event delivered",
			zap.String("event", evt.Type),
			zap.String("order", evt.OrderNumber),
			zap.String("buyer", evt.BuyerID),
			zap.String("seller", evt.SellerID))
		return nil
	}
}
