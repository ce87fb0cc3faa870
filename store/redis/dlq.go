package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/coreledger/dispatch/delivery"
	"github.com/coreledger/dispatch/dlq"
	"github.com/coreledger/dispatch/id"
	"github.com/coreledger/dispatch/internal/entity"
)

// dlqEntryModel is the JSON representation stored in Redis.
type dlqEntryModel struct {
	ID             string          `json:"id"`
	DeliveryID     string          `json:"delivery_id"`
	EventID        string          `json:"event_id"`
	SubscriptionID string          `json:"subscription_id"`
	EventType      string          `json:"event_type"`
	URL            string          `json:"url"`
	Payload        json.RawMessage `json:"payload,omitempty"`
	Error          string          `json:"error"`
	AttemptCount   int             `json:"attempt_count"`
	LastStatusCode int             `json:"last_status_code"`
	ReplayedAt     *time.Time      `json:"replayed_at,omitempty"`
	FailedAt       time.Time       `json:"failed_at"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

func toDLQEntryModel(e *dlq.Entry) *dlqEntryModel {
	return &dlqEntryModel{
		ID:             e.ID.String(),
		DeliveryID:     e.DeliveryID.String(),
		EventID:        e.EventID.String(),
		SubscriptionID: e.SubscriptionID.String(),
		EventType:      e.EventType,
		URL:            e.URL,
		Payload:        e.Payload,
		Error:          e.Error,
		AttemptCount:   e.AttemptCount,
		LastStatusCode: e.LastStatusCode,
		ReplayedAt:     e.ReplayedAt,
		FailedAt:       e.FailedAt,
		CreatedAt:      e.CreatedAt,
		UpdatedAt:      e.UpdatedAt,
	}
}

func fromDLQEntryModel(m *dlqEntryModel) (*dlq.Entry, error) {
	dlqID, err := id.ParseDLQID(m.ID)
	if err != nil {
		return nil, fmt.Errorf("parse DLQ ID %q: %w", m.ID, err)
	}
	delID, err := id.ParseDeliveryID(m.DeliveryID)
	if err != nil {
		return nil, fmt.Errorf("parse delivery ID %q: %w", m.DeliveryID, err)
	}
	evtID, err := id.ParseEventID(m.EventID)
	if err != nil {
		return nil, fmt.Errorf("parse event ID %q: %w", m.EventID, err)
	}
	subID, err := id.ParseSubscriptionID(m.SubscriptionID)
	if err != nil {
		return nil, fmt.Errorf("parse subscription ID %q: %w", m.SubscriptionID, err)
	}
	return &dlq.Entry{
		Entity: entity.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		ID:             dlqID,
		DeliveryID:     delID,
		EventID:        evtID,
		SubscriptionID: subID,
		EventType:      m.EventType,
		URL:            m.URL,
		Payload:        m.Payload,
		Error:          m.Error,
		AttemptCount:   m.AttemptCount,
		LastStatusCode: m.LastStatusCode,
		ReplayedAt:     m.ReplayedAt,
		FailedAt:       m.FailedAt,
	}, nil
}

func (s *Store) Push(ctx context.Context, entry *dlq.Entry) error {
	m := toDLQEntryModel(entry)
	key := entityKey(prefixDLQ, m.ID)

	if err := s.setEntity(ctx, key, m); err != nil {
		return fmt.Errorf("dispatch/redis: push dlq: %w", err)
	}

	pipe := s.rdb.Pipeline()
	pipe.ZAdd(ctx, zDLQAll, goredis.Z{Score: scoreFromTime(m.FailedAt), Member: m.ID})
	pipe.ZAdd(ctx, zDLQSub+m.SubscriptionID, goredis.Z{Score: scoreFromTime(m.FailedAt), Member: m.ID})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("dispatch/redis: push dlq indexes: %w", err)
	}
	return nil
}

func (s *Store) ListDLQ(ctx context.Context, opts dlq.ListOpts) ([]*dlq.Entry, error) {
	zKey := zDLQAll
	if opts.SubscriptionID != nil {
		zKey = zDLQSub + opts.SubscriptionID.String()
	}

	minScore := math.Inf(-1)
	maxScore := math.Inf(1)
	if opts.From != nil {
		minScore = scoreFromTime(*opts.From)
	}
	if opts.To != nil {
		maxScore = scoreFromTime(*opts.To)
	}

	ids, err := s.zRangeByScoreIDs(ctx, zKey, minScore, maxScore)
	if err != nil {
		return nil, fmt.Errorf("dispatch/redis: list dlq: %w", err)
	}

	result := make([]*dlq.Entry, 0, len(ids))
	for i := len(ids) - 1; i >= 0; i-- { // reverse for DESC order
		var m dlqEntryModel
		if err := s.getEntity(ctx, entityKey(prefixDLQ, ids[i]), &m); err != nil {
			if isNotFound(err) {
				continue
			}
			return nil, err
		}
		if opts.EventType != "" && m.EventType != opts.EventType {
			continue
		}
		entry, err := fromDLQEntryModel(&m)
		if err != nil {
			return nil, err
		}
		result = append(result, entry)
	}

	return applyPagination(result, opts.Offset, opts.Limit), nil
}

func (s *Store) GetDLQ(ctx context.Context, dlqID id.ID) (*dlq.Entry, error) {
	var m dlqEntryModel
	if err := s.getEntity(ctx, entityKey(prefixDLQ, dlqID.String()), &m); err != nil {
		if isNotFound(err) {
			return nil, dlq.ErrNotFound
		}
		return nil, fmt.Errorf("dispatch/redis: get dlq: %w", err)
	}
	return fromDLQEntryModel(&m)
}

func (s *Store) Replay(ctx context.Context, dlqID id.ID) error {
	key := entityKey(prefixDLQ, dlqID.String())

	var m dlqEntryModel
	if err := s.getEntity(ctx, key, &m); err != nil {
		if isNotFound(err) {
			return dlq.ErrNotFound
		}
		return fmt.Errorf("dispatch/redis: replay: %w", err)
	}
	return s.replayEntry(ctx, key, &m)
}

func (s *Store) ReplayBulk(ctx context.Context, from, to time.Time) (int64, error) {
	ids, err := s.zRangeByScoreIDs(ctx, zDLQAll, scoreFromTime(from), scoreFromTime(to))
	if err != nil {
		return 0, fmt.Errorf("dispatch/redis: replay bulk list: %w", err)
	}

	var count int64
	for _, entryID := range ids {
		key := entityKey(prefixDLQ, entryID)
		var m dlqEntryModel
		if err := s.getEntity(ctx, key, &m); err != nil {
			if isNotFound(err) {
				continue
			}
			return count, err
		}
		if m.ReplayedAt != nil {
			continue
		}
		if err := s.replayEntry(ctx, key, &m); err != nil {
			return count, err
		}
		count++
	}

	return count, nil
}

// replayEntry marks the entry replayed and schedules a fresh attempt
// sequence starting immediately.
func (s *Store) replayEntry(ctx context.Context, key string, m *dlqEntryModel) error {
	delID, err := id.ParseDeliveryID(m.DeliveryID)
	if err != nil {
		return fmt.Errorf("dispatch/redis: replay parse delivery ID: %w", err)
	}
	subID, err := id.ParseSubscriptionID(m.SubscriptionID)
	if err != nil {
		return fmt.Errorf("dispatch/redis: replay parse subscription ID: %w", err)
	}
	evtID, err := id.ParseEventID(m.EventID)
	if err != nil {
		return fmt.Errorf("dispatch/redis: replay parse event ID: %w", err)
	}

	ts := now()
	if err := s.ScheduleRetry(ctx, &delivery.PendingRetry{
		DeliveryID:     delID,
		SubscriptionID: subID,
		EventID:        evtID,
		AttemptNumber:  1,
		FireAt:         ts,
	}); err != nil {
		return err
	}

	m.ReplayedAt = &ts
	m.UpdatedAt = ts
	if err := s.setEntity(ctx, key, m); err != nil {
		return fmt.Errorf("dispatch/redis: replay mark: %w", err)
	}
	return nil
}

func (s *Store) Purge(ctx context.Context, before time.Time) (int64, error) {
	ids, err := s.zRangeByScoreIDs(ctx, zDLQAll, math.Inf(-1), scoreFromTime(before))
	if err != nil {
		return 0, fmt.Errorf("dispatch/redis: purge list: %w", err)
	}

	var count int64
	for _, entryID := range ids {
		var m dlqEntryModel
		if err := s.getEntity(ctx, entityKey(prefixDLQ, entryID), &m); err != nil {
			if isNotFound(err) {
				continue
			}
			return count, err
		}

		pipe := s.rdb.Pipeline()
		pipe.Del(ctx, entityKey(prefixDLQ, entryID))
		pipe.ZRem(ctx, zDLQAll, entryID)
		pipe.ZRem(ctx, zDLQSub+m.SubscriptionID, entryID)
		if _, err := pipe.Exec(ctx); err != nil {
			return count, err
		}
		count++
	}

	return count, nil
}

func (s *Store) CountDLQ(ctx context.Context) (int64, error) {
	count, err := s.rdb.ZCard(ctx, zDLQAll).Result()
	if err != nil {
		return 0, fmt.Errorf("dispatch/redis: count dlq: %w", err)
	}
	return count, nil
}
