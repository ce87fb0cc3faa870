package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/coreledger/dispatch/id"
	"github.com/coreledger/dispatch/internal/entity"
	"github.com/coreledger/dispatch/subscription"
)

// subscriptionModel is the JSON representation stored in Redis. The signing
// secret must be persisted here even though the domain type never serializes
// it. Delivery stats are NOT part of this blob: they live in a separate hash
// (statsSub prefix) so workers can bump them with HINCRBY without racing
// plain read-modify-write updates of the subscription itself.
type subscriptionModel struct {
	ID            string            `json:"id"`
	URL           string            `json:"url"`
	Description   string            `json:"description,omitempty"`
	Secret        string            `json:"secret"`
	EventTypes    []string          `json:"event_types"`
	Headers       map[string]string `json:"headers,omitempty"`
	TimeoutSec    float64           `json:"timeout_seconds"`
	RetryAttempts int               `json:"retry_attempts"`
	RetryBackoff  float64           `json:"retry_backoff"`
	RateLimit     int               `json:"rate_limit,omitempty"`
	Status        string            `json:"status"`
	Metadata      map[string]string `json:"metadata,omitempty"`
	CreatedAt     time.Time         `json:"created_at"`
	UpdatedAt     time.Time         `json:"updated_at"`
}

func toSubscriptionModel(sub *subscription.Subscription) *subscriptionModel {
	return &subscriptionModel{
		ID:            sub.ID.String(),
		URL:           sub.URL,
		Description:   sub.Description,
		Secret:        sub.Secret,
		EventTypes:    sub.EventTypes,
		Headers:       sub.Headers,
		TimeoutSec:    sub.Timeout.Seconds(),
		RetryAttempts: sub.RetryAttempts,
		RetryBackoff:  sub.RetryBackoff,
		RateLimit:     sub.RateLimit,
		Status:        string(sub.Status),
		Metadata:      sub.Metadata,
		CreatedAt:     sub.CreatedAt,
		UpdatedAt:     sub.UpdatedAt,
	}
}

func fromSubscriptionModel(m *subscriptionModel) (*subscription.Subscription, error) {
	subID, err := id.ParseSubscriptionID(m.ID)
	if err != nil {
		return nil, fmt.Errorf("parse subscription ID %q: %w", m.ID, err)
	}
	return &subscription.Subscription{
		Entity: entity.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		ID:            subID,
		URL:           m.URL,
		Description:   m.Description,
		Secret:        m.Secret,
		EventTypes:    m.EventTypes,
		Headers:       m.Headers,
		Timeout:       time.Duration(m.TimeoutSec * float64(time.Second)),
		RetryAttempts: m.RetryAttempts,
		RetryBackoff:  m.RetryBackoff,
		RateLimit:     m.RateLimit,
		Status:        subscription.Status(m.Status),
		Metadata:      m.Metadata,
	}, nil
}

func (s *Store) CreateSubscription(ctx context.Context, sub *subscription.Subscription) error {
	m := toSubscriptionModel(sub)
	key := entityKey(prefixSub, m.ID)

	if err := s.setEntity(ctx, key, m); err != nil {
		return fmt.Errorf("dispatch/redis: create subscription: %w", err)
	}

	pipe := s.rdb.Pipeline()
	pipe.ZAdd(ctx, zSubAll, goredis.Z{Score: scoreFromTime(m.CreatedAt), Member: m.ID})
	if sub.Status == subscription.StatusActive {
		pipe.SAdd(ctx, sSubActive, m.ID)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("dispatch/redis: create subscription indexes: %w", err)
	}
	return nil
}

func (s *Store) GetSubscription(ctx context.Context, subID id.ID) (*subscription.Subscription, error) {
	var m subscriptionModel
	if err := s.getEntity(ctx, entityKey(prefixSub, subID.String()), &m); err != nil {
		if isNotFound(err) {
			return nil, subscription.ErrNotFound
		}
		return nil, fmt.Errorf("dispatch/redis: get subscription: %w", err)
	}

	sub, err := fromSubscriptionModel(&m)
	if err != nil {
		return nil, err
	}
	if err := s.loadStats(ctx, sub); err != nil {
		return nil, err
	}
	return sub, nil
}

func (s *Store) UpdateSubscription(ctx context.Context, sub *subscription.Subscription) error {
	key := entityKey(prefixSub, sub.ID.String())

	var existing subscriptionModel
	if err := s.getEntity(ctx, key, &existing); err != nil {
		if isNotFound(err) {
			return subscription.ErrNotFound
		}
		return fmt.Errorf("dispatch/redis: update subscription: %w", err)
	}

	m := toSubscriptionModel(sub)
	m.CreatedAt = existing.CreatedAt
	m.UpdatedAt = now()
	sub.UpdatedAt = m.UpdatedAt

	if err := s.setEntity(ctx, key, m); err != nil {
		return fmt.Errorf("dispatch/redis: update subscription: %w", err)
	}
	return s.syncActiveSet(ctx, m.ID, subscription.Status(m.Status))
}

func (s *Store) ListSubscriptions(ctx context.Context, opts subscription.ListOpts) ([]*subscription.Subscription, error) {
	ids, err := s.rdb.ZRange(ctx, zSubAll, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("dispatch/redis: list subscriptions: %w", err)
	}

	result := make([]*subscription.Subscription, 0, len(ids))
	for _, subID := range ids {
		var m subscriptionModel
		if err := s.getEntity(ctx, entityKey(prefixSub, subID), &m); err != nil {
			if isNotFound(err) {
				continue
			}
			return nil, err
		}
		if opts.Status != nil && subscription.Status(m.Status) != *opts.Status {
			continue
		}
		sub, err := fromSubscriptionModel(&m)
		if err != nil {
			return nil, err
		}
		if err := s.loadStats(ctx, sub); err != nil {
			return nil, err
		}
		result = append(result, sub)
	}

	return applyPagination(result, opts.Offset, opts.Limit), nil
}

func (s *Store) Resolve(ctx context.Context, eventType string) ([]*subscription.Subscription, error) {
	ids, err := s.rdb.SMembers(ctx, sSubActive).Result()
	if err != nil {
		return nil, fmt.Errorf("dispatch/redis: resolve: %w", err)
	}

	result := make([]*subscription.Subscription, 0, len(ids))
	for _, subID := range ids {
		var m subscriptionModel
		if err := s.getEntity(ctx, entityKey(prefixSub, subID), &m); err != nil {
			if isNotFound(err) {
				continue
			}
			return nil, err
		}
		sub, err := fromSubscriptionModel(&m)
		if err != nil {
			return nil, err
		}
		if sub.Status != subscription.StatusActive || !sub.Matches(eventType) {
			continue
		}
		result = append(result, sub)
	}

	return result, nil
}

func (s *Store) SetStatus(ctx context.Context, subID id.ID, status subscription.Status) error {
	key := entityKey(prefixSub, subID.String())

	var m subscriptionModel
	if err := s.getEntity(ctx, key, &m); err != nil {
		if isNotFound(err) {
			return subscription.ErrNotFound
		}
		return fmt.Errorf("dispatch/redis: set status: %w", err)
	}

	m.Status = string(status)
	m.UpdatedAt = now()
	if err := s.setEntity(ctx, key, &m); err != nil {
		return fmt.Errorf("dispatch/redis: set status: %w", err)
	}
	return s.syncActiveSet(ctx, m.ID, status)
}

func (s *Store) UpdateStats(ctx context.Context, subID id.ID, delivered bool) error {
	key := statsSub + subID.String()

	pipe := s.rdb.Pipeline()
	pipe.HIncrBy(ctx, key, statsFieldDeliveries, 1)
	if !delivered {
		pipe.HIncrBy(ctx, key, statsFieldFailures, 1)
	}
	pipe.HSet(ctx, key, statsFieldLastAt, now().Format(time.RFC3339Nano))
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("dispatch/redis: update stats: %w", err)
	}
	return nil
}

// loadStats merges the stats hash into the domain object.
func (s *Store) loadStats(ctx context.Context, sub *subscription.Subscription) error {
	fields, err := s.rdb.HGetAll(ctx, statsSub+sub.ID.String()).Result()
	if err != nil {
		return fmt.Errorf("dispatch/redis: load stats: %w", err)
	}
	if v, ok := fields[statsFieldDeliveries]; ok {
		sub.DeliveryCount, _ = strconv.ParseInt(v, 10, 64)
	}
	if v, ok := fields[statsFieldFailures]; ok {
		sub.FailureCount, _ = strconv.ParseInt(v, 10, 64)
	}
	if v, ok := fields[statsFieldLastAt]; ok {
		if ts, parseErr := time.Parse(time.RFC3339Nano, v); parseErr == nil {
			sub.LastDeliveryAt = &ts
		}
	}
	return nil
}

// syncActiveSet keeps the active-subscription set consistent with status.
func (s *Store) syncActiveSet(ctx context.Context, subID string, status subscription.Status) error {
	var err error
	if status == subscription.StatusActive {
		err = s.rdb.SAdd(ctx, sSubActive, subID).Err()
	} else {
		err = s.rdb.SRem(ctx, sSubActive, subID).Err()
	}
	if err != nil {
		return fmt.Errorf("dispatch/redis: sync active set: %w", err)
	}
	return nil
}
