package dlq

import (
	"context"
	"log/slog"
	"time"

	"github.com/coreledger/dispatch/delivery"
	"github.com/coreledger/dispatch/event"
	"github.com/coreledger/dispatch/id"
	"github.com/coreledger/dispatch/internal/entity"
	"github.com/coreledger/dispatch/subscription"
)

// Service manages the dead letter queue.
type Service struct {
	store  Store
	logger *slog.Logger
}

// NewService creates a new DLQ service.
func NewService(store Store, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:  store,
		logger: logger,
	}
}

// PushFailed creates a DLQ entry from an exhausted delivery. Implements
// delivery.DLQPusher.
func (svc *Service) PushFailed(ctx context.Context, d *delivery.Delivery, sub *subscription.Subscription, evt *event.Event) error {
	entry := &Entry{
		Entity:         entity.New(),
		ID:             id.NewDLQID(),
		DeliveryID:     d.ID,
		EventID:        d.EventID,
		SubscriptionID: d.SubscriptionID,
		EventType:      evt.Type,
		URL:            sub.URL,
		Payload:        evt.Data,
		Error:          d.Error,
		AttemptCount:   d.AttemptNumber,
		LastStatusCode: d.ResponseStatus,
		FailedAt:       time.Now().UTC(),
	}

	if err := svc.store.Push(ctx, entry); err != nil {
		return err
	}

	svc.logger.Warn("delivery moved to DLQ",
		"dlq_id", entry.ID,
		"subscription_id", d.SubscriptionID,
		"event_type", evt.Type,
		"attempts", d.AttemptNumber)
	return nil
}

// List returns DLQ entries matching the given options.
func (svc *Service) List(ctx context.Context, opts ListOpts) ([]*Entry, error) {
	return svc.store.ListDLQ(ctx, opts)
}

// Get returns a DLQ entry by ID.
func (svc *Service) Get(ctx context.Context, dlqID id.ID) (*Entry, error) {
	return svc.store.GetDLQ(ctx, dlqID)
}

// Replay schedules a single DLQ entry for redelivery.
func (svc *Service) Replay(ctx context.Context, dlqID id.ID) error {
	return svc.store.Replay(ctx, dlqID)
}

// ReplayBulk schedules all DLQ entries within a time range for redelivery.
func (svc *Service) ReplayBulk(ctx context.Context, from, to time.Time) (int64, error) {
	return svc.store.ReplayBulk(ctx, from, to)
}

// Purge removes old DLQ entries.
func (svc *Service) Purge(ctx context.Context, before time.Time) (int64, error) {
	return svc.store.Purge(ctx, before)
}

// Count returns the total number of DLQ entries.
func (svc *Service) Count(ctx context.Context) (int64, error) {
	return svc.store.CountDLQ(ctx)
}
