package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/coreledger/dispatch/delivery"
	"github.com/coreledger/dispatch/id"
	"github.com/coreledger/dispatch/internal/entity"
)

// deliveryModel is the JSON representation stored in Redis.
type deliveryModel struct {
	ID             string            `json:"id"`
	SubscriptionID string            `json:"subscription_id"`
	EventID        string            `json:"event_id"`
	Status         string            `json:"status"`
	AttemptNumber  int               `json:"attempt_number"`
	URL            string            `json:"url"`
	RequestHeaders map[string]string `json:"request_headers,omitempty"`
	RequestBody    []byte            `json:"request_body,omitempty"`
	ResponseStatus int               `json:"response_status,omitempty"`
	ResponseBody   string            `json:"response_body,omitempty"`
	DurationMs     int               `json:"duration_ms,omitempty"`
	Error          string            `json:"error,omitempty"`
	Reason         string            `json:"reason,omitempty"`
	NextRetryAt    *time.Time        `json:"next_retry_at,omitempty"`
	DeliveredAt    *time.Time        `json:"delivered_at,omitempty"`
	CreatedAt      time.Time         `json:"created_at"`
	UpdatedAt      time.Time         `json:"updated_at"`
}

func toDeliveryModel(d *delivery.Delivery) *deliveryModel {
	return &deliveryModel{
		ID:             d.ID.String(),
		SubscriptionID: d.SubscriptionID.String(),
		EventID:        d.EventID.String(),
		Status:         string(d.Status),
		AttemptNumber:  d.AttemptNumber,
		URL:            d.URL,
		RequestHeaders: d.RequestHeaders,
		RequestBody:    d.RequestBody,
		ResponseStatus: d.ResponseStatus,
		ResponseBody:   d.ResponseBody,
		DurationMs:     d.DurationMs,
		Error:          d.Error,
		Reason:         string(d.Reason),
		NextRetryAt:    d.NextRetryAt,
		DeliveredAt:    d.DeliveredAt,
		CreatedAt:      d.CreatedAt,
		UpdatedAt:      d.UpdatedAt,
	}
}

func fromDeliveryModel(m *deliveryModel) (*delivery.Delivery, error) {
	delID, err := id.ParseDeliveryID(m.ID)
	if err != nil {
		return nil, fmt.Errorf("parse delivery ID %q: %w", m.ID, err)
	}
	subID, err := id.ParseSubscriptionID(m.SubscriptionID)
	if err != nil {
		return nil, fmt.Errorf("parse subscription ID %q: %w", m.SubscriptionID, err)
	}
	evtID, err := id.ParseEventID(m.EventID)
	if err != nil {
		return nil, fmt.Errorf("parse event ID %q: %w", m.EventID, err)
	}
	return &delivery.Delivery{
		Entity: entity.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		ID:             delID,
		SubscriptionID: subID,
		EventID:        evtID,
		Status:         delivery.Status(m.Status),
		AttemptNumber:  m.AttemptNumber,
		URL:            m.URL,
		RequestHeaders: m.RequestHeaders,
		RequestBody:    m.RequestBody,
		ResponseStatus: m.ResponseStatus,
		ResponseBody:   m.ResponseBody,
		DurationMs:     m.DurationMs,
		Error:          m.Error,
		Reason:         delivery.FailureReason(m.Reason),
		NextRetryAt:    m.NextRetryAt,
		DeliveredAt:    m.DeliveredAt,
	}, nil
}

func (s *Store) CreateDelivery(ctx context.Context, d *delivery.Delivery) error {
	m := toDeliveryModel(d)
	key := entityKey(prefixDelivery, m.ID)

	if err := s.setEntity(ctx, key, m); err != nil {
		return fmt.Errorf("dispatch/redis: create delivery: %w", err)
	}

	score := scoreFromTime(m.CreatedAt)
	pipe := s.rdb.Pipeline()
	pipe.ZAdd(ctx, zDeliveryAll, goredis.Z{Score: score, Member: m.ID})
	pipe.ZAdd(ctx, zDeliverySub+m.SubscriptionID, goredis.Z{Score: score, Member: m.ID})
	pipe.ZAdd(ctx, zDeliveryEvt+m.EventID, goredis.Z{Score: score, Member: m.ID})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("dispatch/redis: create delivery indexes: %w", err)
	}
	return nil
}

func (s *Store) GetDelivery(ctx context.Context, delID id.ID) (*delivery.Delivery, error) {
	var m deliveryModel
	if err := s.getEntity(ctx, entityKey(prefixDelivery, delID.String()), &m); err != nil {
		if isNotFound(err) {
			return nil, delivery.ErrNotFound
		}
		return nil, fmt.Errorf("dispatch/redis: get delivery: %w", err)
	}
	return fromDeliveryModel(&m)
}

func (s *Store) ListDeliveries(ctx context.Context, opts delivery.ListOpts) ([]*delivery.Delivery, error) {
	zKey := zDeliveryAll
	if opts.SubscriptionID != nil {
		zKey = zDeliverySub + opts.SubscriptionID.String()
	}
	if opts.EventID != nil {
		zKey = zDeliveryEvt + opts.EventID.String()
	}

	ids, err := s.rdb.ZRange(ctx, zKey, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("dispatch/redis: list deliveries: %w", err)
	}

	result := make([]*delivery.Delivery, 0, len(ids))
	for i := len(ids) - 1; i >= 0; i-- { // reverse for DESC order
		var m deliveryModel
		if err := s.getEntity(ctx, entityKey(prefixDelivery, ids[i]), &m); err != nil {
			if isNotFound(err) {
				continue
			}
			return nil, err
		}
		if opts.Status != nil && delivery.Status(m.Status) != *opts.Status {
			continue
		}
		if opts.SubscriptionID != nil && m.SubscriptionID != opts.SubscriptionID.String() {
			continue
		}
		if opts.EventID != nil && m.EventID != opts.EventID.String() {
			continue
		}
		d, err := fromDeliveryModel(&m)
		if err != nil {
			return nil, err
		}
		result = append(result, d)
	}

	return applyPagination(result, opts.Offset, opts.Limit), nil
}

// ──────────────────────────────────────────────────
// Retry schedule
// ──────────────────────────────────────────────────

// claimScript atomically claims due retries from the schedule sorted set.
// KEYS[1] = dispatch:z:retry:due
// ARGV[1] = current unix timestamp (score threshold)
// ARGV[2] = limit
var claimScript = goredis.NewScript(`
local ids = redis.call('ZRANGEBYSCORE', KEYS[1], '-inf', ARGV[1], 'LIMIT', 0, tonumber(ARGV[2]))
if #ids == 0 then return {} end
for i, id in ipairs(ids) do
    redis.call('ZREM', KEYS[1], id)
end
return ids
`)

func (s *Store) ScheduleRetry(ctx context.Context, r *delivery.PendingRetry) error {
	raw, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("dispatch/redis: marshal retry: %w", err)
	}

	key := entityKey(prefixRetry, r.DeliveryID.String())
	pipe := s.rdb.Pipeline()
	pipe.Set(ctx, key, raw, 0)
	pipe.ZAdd(ctx, zRetryDue, goredis.Z{Score: scoreFromTime(r.FireAt), Member: r.DeliveryID.String()})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("dispatch/redis: schedule retry: %w", err)
	}
	return nil
}

func (s *Store) DueRetries(ctx context.Context, ts time.Time, limit int) ([]*delivery.PendingRetry, error) {
	nowScore := fmt.Sprintf("%f", scoreFromTime(ts))
	claimed, err := claimScript.Run(ctx, s.rdb, []string{zRetryDue}, nowScore, limit).StringSlice()
	if err != nil {
		if isRedisNil(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("dispatch/redis: claim retries: %w", err)
	}
	if len(claimed) == 0 {
		return nil, nil
	}

	retries := make([]*delivery.PendingRetry, 0, len(claimed))
	for _, delID := range claimed {
		key := entityKey(prefixRetry, delID)
		raw, err := s.rdb.Get(ctx, key).Bytes()
		if err != nil {
			if isRedisNil(err) {
				continue
			}
			return nil, fmt.Errorf("dispatch/redis: get retry: %w", err)
		}

		var r delivery.PendingRetry
		if err := json.Unmarshal(raw, &r); err != nil {
			return nil, fmt.Errorf("dispatch/redis: decode retry %q: %w", delID, err)
		}
		s.rdb.Del(ctx, key)
		retries = append(retries, &r)
	}

	return retries, nil
}

func (s *Store) CountPendingRetries(ctx context.Context) (int64, error) {
	count, err := s.rdb.ZCard(ctx, zRetryDue).Result()
	if err != nil {
		return 0, fmt.Errorf("dispatch/redis: count pending retries: %w", err)
	}
	return count, nil
}
