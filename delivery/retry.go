package delivery

import (
	"context"
	"time"

	"github.com/coreledger/dispatch/id"
)

// PendingRetry is a scheduled future delivery attempt.
type PendingRetry struct {
	// DeliveryID is the failed attempt that scheduled this retry.
	DeliveryID id.ID `json:"delivery_id"`

	// SubscriptionID is the target subscription.
	SubscriptionID id.ID `json:"subscription_id"`

	// EventID is the event to redeliver.
	EventID id.ID `json:"event_id"`

	// AttemptNumber is the number the retry will carry when it fires.
	AttemptNumber int `json:"attempt_number"`

	// FireAt is the earliest time the retry may fire.
	FireAt time.Time `json:"fire_at"`
}

// RetryStore schedules and claims future delivery attempts.
type RetryStore interface {
	// ScheduleRetry persists a pending retry.
	ScheduleRetry(ctx context.Context, r *PendingRetry) error

	// DueRetries atomically claims up to limit retries whose FireAt has
	// passed. A claimed retry is removed from the schedule; concurrent
	// workers never receive the same retry.
	DueRetries(ctx context.Context, now time.Time, limit int) ([]*PendingRetry, error)

	// CountPendingRetries returns the number of scheduled retries.
	CountPendingRetries(ctx context.Context) (int64, error)
}
