package subscription

import (
	"context"
	"errors"

	"github.com/coreledger/dispatch/id"
)

// ErrNotFound is returned by stores when no subscription matches the given ID.
var ErrNotFound = errors.New("subscription not found")

// Store defines the persistence contract for webhook subscriptions.
type Store interface {
	// CreateSubscription persists a new subscription.
	CreateSubscription(ctx context.Context, sub *Subscription) error

	// GetSubscription returns a subscription by ID.
	GetSubscription(ctx context.Context, subID id.ID) (*Subscription, error)

	// UpdateSubscription modifies an existing subscription.
	UpdateSubscription(ctx context.Context, sub *Subscription) error

	// ListSubscriptions returns subscriptions, optionally filtered by status.
	ListSubscriptions(ctx context.Context, opts ListOpts) ([]*Subscription, error)

	// Resolve finds all active subscriptions matching an event type.
	// This is the hot path, called on every published event.
	Resolve(ctx context.Context, eventType string) ([]*Subscription, error)

	// SetStatus transitions a subscription's status without touching other
	// fields.
	SetStatus(ctx context.Context, subID id.ID, status Status) error

	// UpdateStats records one delivery attempt atomically: delivery_count is
	// always incremented, failure_count only when delivered is false, and
	// last_delivery_at is set to now.
	UpdateStats(ctx context.Context, subID id.ID, delivered bool) error
}
