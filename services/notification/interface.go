package notification

import (
	"encoding/json"

	"vendra/models"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

// TypeOrderEvent is the asynq task type carrying one domain event to the
// notification worker.
const TypeOrderEvent = "notify:order_event"

// NotificationService fans domain events out to the buyer and seller.
// The actual push/SMS channel is an external collaborator; this service
// only enqueues the delivery work.
type NotificationService interface {
	Handle(evt models.DomainEvent)
}

// DefaultNotificationService enqueues one asynq task per event. It
// implements events.Subscriber so it can sit directly on the bus.
type DefaultNotificationService struct {
	Client *asynq.Client
	Logger *zap.Logger
}

// Handle enqueues the event for asynchronous delivery. Enqueue failures
// are logged, never propagated into the settlement path.
func (s *DefaultNotificationService) Handle(evt models.DomainEvent) {
	payload, err := json.Marshal(evt)
	if err != nil {
		s.Logger.Error("failed to marshal domain event", zap.Error(err))
		return
	}
	task := asynq.NewTask(TypeOrderEvent, payload)
	if _, err := s.Client.Enqueue(task, asynq.MaxRetry(5)); err != nil {
		s.Logger.Error("failed to enqueue notification",
			zap.String("event", evt.Type),
			zap.String("order", evt.OrderNumber),
			zap.Error(err))
	}
}
