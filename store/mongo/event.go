package mongo

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/coreledger/dispatch/event"
	"github.com/coreledger/dispatch/id"
)

// CreateEvent persists an accepted event.
func (s *Store) CreateEvent(ctx context.Context, evt *event.Event) error {
	m := toEventModel(evt)

	_, err := s.mdb.NewInsert(m).Exec(ctx)
	if err != nil {
		return fmt.Errorf("dispatch/mongo: create event: %w", err)
	}

	return nil
}

// GetEvent returns an event by ID.
func (s *Store) GetEvent(ctx context.Context, evtID id.ID) (*event.Event, error) {
	var m eventModel

	err := s.mdb.NewFind(&m).
		Filter(bson.M{"_id": evtID.String()}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, event.ErrNotFound
		}

		return nil, fmt.Errorf("dispatch/mongo: get event: %w", err)
	}

	return fromEventModel(&m)
}

// ListEvents returns events, optionally filtered by type or occurrence window.
func (s *Store) ListEvents(ctx context.Context, opts event.ListOpts) ([]*event.Event, error) {
	var models []eventModel

	filter := bson.M{}
	if opts.Type != "" {
		filter["type"] = opts.Type
	}

	if opts.From != nil || opts.To != nil {
		dateFilter := bson.M{}
		if opts.From != nil {
			dateFilter["$gte"] = *opts.From
		}

		if opts.To != nil {
			dateFilter["$lte"] = *opts.To
		}

		filter["occurred_at"] = dateFilter
	}

	q := s.mdb.NewFind(&models).
		Filter(filter).
		Sort(bson.D{{Key: "occurred_at", Value: -1}})

	if opts.Limit > 0 {
		q = q.Limit(int64(opts.Limit))
	}

	if opts.Offset > 0 {
		q = q.Skip(int64(opts.Offset))
	}

	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("dispatch/mongo: list events: %w", err)
	}

	result := make([]*event.Event, 0, len(models))

	for i := range models {
		evt, err := fromEventModel(&models[i])
		if err != nil {
			return nil, err
		}

		result = append(result, evt)
	}

	return result, nil
}
