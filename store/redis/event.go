package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/coreledger/dispatch/event"
	"github.com/coreledger/dispatch/id"
	"github.com/coreledger/dispatch/internal/entity"
)

// eventModel is the JSON representation stored in Redis.
type eventModel struct {
	ID            string            `json:"id"`
	Type          string            `json:"type"`
	Data          json.RawMessage   `json:"data"`
	Timestamp     time.Time         `json:"timestamp"`
	SourceService string            `json:"source_service"`
	CorrelationID string            `json:"correlation_id,omitempty"`
	Metadata      map[string]string `json:"metadata,omitempty"`
	CreatedAt     time.Time         `json:"created_at"`
	UpdatedAt     time.Time         `json:"updated_at"`
}

func toEventModel(evt *event.Event) *eventModel {
	return &eventModel{
		ID:            evt.ID.String(),
		Type:          evt.Type,
		Data:          evt.Data,
		Timestamp:     evt.Timestamp,
		SourceService: evt.SourceService,
		CorrelationID: evt.CorrelationID,
		Metadata:      evt.Metadata,
		CreatedAt:     evt.CreatedAt,
		UpdatedAt:     evt.UpdatedAt,
	}
}

func fromEventModel(m *eventModel) (*event.Event, error) {
	evtID, err := id.ParseEventID(m.ID)
	if err != nil {
		return nil, fmt.Errorf("parse event ID %q: %w", m.ID, err)
	}
	return &event.Event{
		Entity: entity.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		ID:            evtID,
		Type:          m.Type,
		Data:          m.Data,
		Timestamp:     m.Timestamp,
		SourceService: m.SourceService,
		CorrelationID: m.CorrelationID,
		Metadata:      m.Metadata,
	}, nil
}

func (s *Store) CreateEvent(ctx context.Context, evt *event.Event) error {
	m := toEventModel(evt)
	key := entityKey(prefixEvent, m.ID)

	if err := s.setEntity(ctx, key, m); err != nil {
		return fmt.Errorf("dispatch/redis: create event: %w", err)
	}

	if err := s.rdb.ZAdd(ctx, zEventAll, goredis.Z{
		Score:  scoreFromTime(m.Timestamp),
		Member: m.ID,
	}).Err(); err != nil {
		return fmt.Errorf("dispatch/redis: create event index: %w", err)
	}
	return nil
}

func (s *Store) GetEvent(ctx context.Context, evtID id.ID) (*event.Event, error) {
	var m eventModel
	if err := s.getEntity(ctx, entityKey(prefixEvent, evtID.String()), &m); err != nil {
		if isNotFound(err) {
			return nil, event.ErrNotFound
		}
		return nil, fmt.Errorf("dispatch/redis: get event: %w", err)
	}
	return fromEventModel(&m)
}

func (s *Store) ListEvents(ctx context.Context, opts event.ListOpts) ([]*event.Event, error) {
	minScore := math.Inf(-1)
	maxScore := math.Inf(1)
	if opts.From != nil {
		minScore = scoreFromTime(*opts.From)
	}
	if opts.To != nil {
		maxScore = scoreFromTime(*opts.To)
	}

	ids, err := s.zRangeByScoreIDs(ctx, zEventAll, minScore, maxScore)
	if err != nil {
		return nil, fmt.Errorf("dispatch/redis: list events: %w", err)
	}

	result := make([]*event.Event, 0, len(ids))
	for i := len(ids) - 1; i >= 0; i-- { // reverse for DESC order
		var m eventModel
		if err := s.getEntity(ctx, entityKey(prefixEvent, ids[i]), &m); err != nil {
			if isNotFound(err) {
				continue
			}
			return nil, err
		}
		if opts.Type != "" && m.Type != opts.Type {
			continue
		}
		evt, err := fromEventModel(&m)
		if err != nil {
			return nil, err
		}
		result = append(result, evt)
	}

	return applyPagination(result, opts.Offset, opts.Limit), nil
}
