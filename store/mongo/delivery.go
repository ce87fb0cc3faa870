package mongo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/coreledger/dispatch/delivery"
	"github.com/coreledger/dispatch/id"
)

// CreateDelivery records a delivery attempt.
func (s *Store) CreateDelivery(ctx context.Context, d *delivery.Delivery) error {
	m := toDeliveryModel(d)

	_, err := s.mdb.NewInsert(m).Exec(ctx)
	if err != nil {
		return fmt.Errorf("dispatch/mongo: create delivery: %w", err)
	}

	return nil
}

// GetDelivery returns a delivery attempt by ID.
func (s *Store) GetDelivery(ctx context.Context, delID id.ID) (*delivery.Delivery, error) {
	var m deliveryModel

	err := s.mdb.NewFind(&m).
		Filter(bson.M{"_id": delID.String()}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, delivery.ErrNotFound
		}

		return nil, fmt.Errorf("dispatch/mongo: get delivery: %w", err)
	}

	return fromDeliveryModel(&m)
}

// ListDeliveries returns delivery history, optionally filtered.
func (s *Store) ListDeliveries(ctx context.Context, opts delivery.ListOpts) ([]*delivery.Delivery, error) {
	var models []deliveryModel

	filter := bson.M{}
	if opts.SubscriptionID != nil {
		filter["subscription_id"] = opts.SubscriptionID.String()
	}

	if opts.EventID != nil {
		filter["event_id"] = opts.EventID.String()
	}

	if opts.Status != nil {
		filter["status"] = string(*opts.Status)
	}

	q := s.mdb.NewFind(&models).
		Filter(filter).
		Sort(bson.D{{Key: "created_at", Value: -1}})

	if opts.Limit > 0 {
		q = q.Limit(int64(opts.Limit))
	}

	if opts.Offset > 0 {
		q = q.Skip(int64(opts.Offset))
	}

	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("dispatch/mongo: list deliveries: %w", err)
	}

	result := make([]*delivery.Delivery, 0, len(models))

	for i := range models {
		d, err := fromDeliveryModel(&models[i])
		if err != nil {
			return nil, err
		}

		result = append(result, d)
	}

	return result, nil
}

// ────── Retry schedule ──────

// ScheduleRetry upserts the pending retry for a delivery. A delivery has at
// most one scheduled retry; rescheduling replaces the previous one.
func (s *Store) ScheduleRetry(ctx context.Context, r *delivery.PendingRetry) error {
	m := toRetryModel(r)

	_, err := s.mdb.NewUpdate(m).
		Filter(bson.M{"_id": m.DeliveryID}).
		SetUpdate(bson.M{
			"$set": bson.M{
				"subscription_id": m.SubscriptionID,
				"event_id":        m.EventID,
				"attempt_number":  m.AttemptNumber,
				"fire_at":         m.FireAt,
			},
			"$setOnInsert": bson.M{
				"_id": m.DeliveryID,
			},
		}).
		Upsert().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("dispatch/mongo: schedule retry: %w", err)
	}

	return nil
}

// DueRetries claims up to limit retries whose fire time has passed.
// Each document is claimed with FindOneAndDelete so concurrent workers
// never fire the same retry twice.
func (s *Store) DueRetries(ctx context.Context, ts time.Time, limit int) ([]*delivery.PendingRetry, error) {
	result := make([]*delivery.PendingRetry, 0, limit)
	col := s.mdb.Collection(colRetries)

	filter := bson.M{"fire_at": bson.M{"$lte": ts}}
	opts := options.FindOneAndDelete().
		SetSort(bson.D{{Key: "fire_at", Value: 1}})

	for range limit {
		var m retryModel

		err := col.FindOneAndDelete(ctx, filter, opts).Decode(&m)
		if err != nil {
			if isNoDocuments(err) {
				break
			}

			return nil, fmt.Errorf("dispatch/mongo: due retries: %w", err)
		}

		r, err := fromRetryModel(&m)
		if err != nil {
			return nil, err
		}

		result = append(result, r)
	}

	return result, nil
}

// CountPendingRetries returns the number of scheduled retries.
func (s *Store) CountPendingRetries(ctx context.Context) (int64, error) {
	count, err := s.mdb.NewFind((*retryModel)(nil)).
		Filter(bson.M{}).
		Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("dispatch/mongo: count pending retries: %w", err)
	}

	return count, nil
}
