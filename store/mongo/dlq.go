package mongo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/coreledger/dispatch/delivery"
	"github.com/coreledger/dispatch/dlq"
	"github.com/coreledger/dispatch/id"
)

// Push adds an exhausted delivery to the dead letter queue.
func (s *Store) Push(ctx context.Context, entry *dlq.Entry) error {
	m := toDLQEntryModel(entry)

	_, err := s.mdb.NewInsert(m).Exec(ctx)
	if err != nil {
		return fmt.Errorf("dispatch/mongo: push dlq: %w", err)
	}

	return nil
}

// ListDLQ returns dead letter entries, optionally filtered.
func (s *Store) ListDLQ(ctx context.Context, opts dlq.ListOpts) ([]*dlq.Entry, error) {
	var models []dlqEntryModel

	filter := bson.M{}
	if opts.SubscriptionID != nil {
		filter["subscription_id"] = opts.SubscriptionID.String()
	}

	if opts.EventType != "" {
		filter["event_type"] = opts.EventType
	}

	if opts.From != nil || opts.To != nil {
		dateFilter := bson.M{}
		if opts.From != nil {
			dateFilter["$gte"] = *opts.From
		}

		if opts.To != nil {
			dateFilter["$lte"] = *opts.To
		}

		filter["failed_at"] = dateFilter
	}

	q := s.mdb.NewFind(&models).
		Filter(filter).
		Sort(bson.D{{Key: "failed_at", Value: -1}})

	if opts.Limit > 0 {
		q = q.Limit(int64(opts.Limit))
	}

	if opts.Offset > 0 {
		q = q.Skip(int64(opts.Offset))
	}

	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("dispatch/mongo: list dlq: %w", err)
	}

	result := make([]*dlq.Entry, 0, len(models))

	for i := range models {
		entry, err := fromDLQEntryModel(&models[i])
		if err != nil {
			return nil, err
		}

		result = append(result, entry)
	}

	return result, nil
}

// GetDLQ returns a dead letter entry by ID.
func (s *Store) GetDLQ(ctx context.Context, dlqID id.ID) (*dlq.Entry, error) {
	var m dlqEntryModel

	err := s.mdb.NewFind(&m).
		Filter(bson.M{"_id": dlqID.String()}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, dlq.ErrNotFound
		}

		return nil, fmt.Errorf("dispatch/mongo: get dlq: %w", err)
	}

	return fromDLQEntryModel(&m)
}

// Replay schedules a dead letter entry for redelivery. The entry stays in
// the queue, marked with the replay time.
func (s *Store) Replay(ctx context.Context, dlqID id.ID) error {
	entry, err := s.GetDLQ(ctx, dlqID)
	if err != nil {
		return err
	}

	return s.replayEntry(ctx, entry)
}

// ReplayBulk replays all not-yet-replayed entries in a time window.
func (s *Store) ReplayBulk(ctx context.Context, from, to time.Time) (int64, error) {
	var models []dlqEntryModel

	if err := s.mdb.NewFind(&models).
		Filter(bson.M{
			"failed_at": bson.M{
				"$gte": from,
				"$lte": to,
			},
			"replayed_at": nil,
		}).
		Scan(ctx); err != nil {
		return 0, fmt.Errorf("dispatch/mongo: replay bulk find: %w", err)
	}

	var count int64

	for i := range models {
		entry, err := fromDLQEntryModel(&models[i])
		if err != nil {
			return count, err
		}

		if err := s.replayEntry(ctx, entry); err != nil {
			return count, err
		}

		count++
	}

	return count, nil
}

// replayEntry marks the entry replayed and schedules a fresh attempt
// sequence starting immediately.
func (s *Store) replayEntry(ctx context.Context, entry *dlq.Entry) error {
	t := now()

	if err := s.ScheduleRetry(ctx, &delivery.PendingRetry{
		DeliveryID:     entry.DeliveryID,
		SubscriptionID: entry.SubscriptionID,
		EventID:        entry.EventID,
		AttemptNumber:  1,
		FireAt:         t,
	}); err != nil {
		return err
	}

	_, err := s.mdb.NewUpdate((*dlqEntryModel)(nil)).
		Filter(bson.M{"_id": entry.ID.String()}).
		Set("replayed_at", t).
		Set("updated_at", t).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("dispatch/mongo: replay mark: %w", err)
	}

	return nil
}

// Purge deletes dead letter entries older than the cutoff.
func (s *Store) Purge(ctx context.Context, before time.Time) (int64, error) {
	res, err := s.mdb.NewDelete((*dlqEntryModel)(nil)).
		Filter(bson.M{"created_at": bson.M{"$lt": before}}).
		Exec(ctx)
	if err != nil {
		return 0, fmt.Errorf("dispatch/mongo: purge dlq: %w", err)
	}

	return res.DeletedCount(), nil
}

// CountDLQ returns the number of dead letter entries.
func (s *Store) CountDLQ(ctx context.Context) (int64, error) {
	count, err := s.mdb.NewFind((*dlqEntryModel)(nil)).
		Filter(bson.M{}).
		Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("dispatch/mongo: count dlq: %w", err)
	}

	return count, nil
}
