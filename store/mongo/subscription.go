package mongo

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/coreledger/dispatch/id"
	"github.com/coreledger/dispatch/subscription"
)

// CreateSubscription persists a new subscription.
func (s *Store) CreateSubscription(ctx context.Context, sub *subscription.Subscription) error {
	m := toSubscriptionModel(sub)

	_, err := s.mdb.NewInsert(m).Exec(ctx)
	if err != nil {
		return fmt.Errorf("dispatch/mongo: create subscription: %w", err)
	}

	return nil
}

// GetSubscription returns a subscription by ID.
func (s *Store) GetSubscription(ctx context.Context, subID id.ID) (*subscription.Subscription, error) {
	var m subscriptionModel

	err := s.mdb.NewFind(&m).
		Filter(bson.M{"_id": subID.String()}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, subscription.ErrNotFound
		}

		return nil, fmt.Errorf("dispatch/mongo: get subscription: %w", err)
	}

	return fromSubscriptionModel(&m)
}

// UpdateSubscription modifies an existing subscription. Delivery stats are
// owned by UpdateStats and left untouched here.
func (s *Store) UpdateSubscription(ctx context.Context, sub *subscription.Subscription) error {
	t := now()

	res, err := s.mdb.NewUpdate((*subscriptionModel)(nil)).
		Filter(bson.M{"_id": sub.ID.String()}).
		Set("url", sub.URL).
		Set("description", sub.Description).
		Set("secret", sub.Secret).
		Set("event_types", sub.EventTypes).
		Set("headers", sub.Headers).
		Set("timeout_seconds", sub.Timeout.Seconds()).
		Set("retry_attempts", sub.RetryAttempts).
		Set("retry_backoff", sub.RetryBackoff).
		Set("rate_limit", sub.RateLimit).
		Set("status", string(sub.Status)).
		Set("metadata", sub.Metadata).
		Set("updated_at", t).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("dispatch/mongo: update subscription: %w", err)
	}

	if res.MatchedCount() == 0 {
		return subscription.ErrNotFound
	}

	sub.UpdatedAt = t

	return nil
}

// ListSubscriptions returns subscriptions, optionally filtered by status.
func (s *Store) ListSubscriptions(ctx context.Context, opts subscription.ListOpts) ([]*subscription.Subscription, error) {
	var models []subscriptionModel

	filter := bson.M{}
	if opts.Status != nil {
		filter["status"] = string(*opts.Status)
	}

	q := s.mdb.NewFind(&models).
		Filter(filter).
		Sort(bson.D{{Key: "created_at", Value: 1}})

	if opts.Limit > 0 {
		q = q.Limit(int64(opts.Limit))
	}

	if opts.Offset > 0 {
		q = q.Skip(int64(opts.Offset))
	}

	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("dispatch/mongo: list subscriptions: %w", err)
	}

	result := make([]*subscription.Subscription, 0, len(models))

	for i := range models {
		sub, err := fromSubscriptionModel(&models[i])
		if err != nil {
			return nil, err
		}

		result = append(result, sub)
	}

	return result, nil
}

// Resolve finds all active subscriptions whose patterns match an event type.
func (s *Store) Resolve(ctx context.Context, eventType string) ([]*subscription.Subscription, error) {
	var models []subscriptionModel

	if err := s.mdb.NewFind(&models).
		Filter(bson.M{"status": string(subscription.StatusActive)}).
		Scan(ctx); err != nil {
		return nil, fmt.Errorf("dispatch/mongo: resolve: %w", err)
	}

	// Pattern matching happens in Go; the wildcard grammar does not map
	// cleanly onto a Mongo query.
	var result []*subscription.Subscription

	for i := range models {
		sub, err := fromSubscriptionModel(&models[i])
		if err != nil {
			return nil, err
		}

		if sub.Matches(eventType) {
			result = append(result, sub)
		}
	}

	return result, nil
}

// SetStatus changes a subscription's lifecycle status.
func (s *Store) SetStatus(ctx context.Context, subID id.ID, status subscription.Status) error {
	res, err := s.mdb.NewUpdate((*subscriptionModel)(nil)).
		Filter(bson.M{"_id": subID.String()}).
		Set("status", string(status)).
		Set("updated_at", now()).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("dispatch/mongo: set status: %w", err)
	}

	if res.MatchedCount() == 0 {
		return subscription.ErrNotFound
	}

	return nil
}

// UpdateStats records a delivery attempt against a subscription's counters.
// $inc keeps concurrent workers from losing increments.
func (s *Store) UpdateStats(ctx context.Context, subID id.ID, delivered bool) error {
	t := now()

	inc := bson.M{"delivery_count": 1}
	if !delivered {
		inc["failure_count"] = 1
	}

	res, err := s.mdb.Collection(colSubscriptions).UpdateOne(ctx,
		bson.M{"_id": subID.String()},
		bson.M{
			"$inc": inc,
			"$set": bson.M{
				"last_delivery_at": t,
				"updated_at":       t,
			},
		})
	if err != nil {
		return fmt.Errorf("dispatch/mongo: update stats: %w", err)
	}

	if res.MatchedCount == 0 {
		return subscription.ErrNotFound
	}

	return nil
}
