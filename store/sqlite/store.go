// Package sqlite implements the dispatch store on SQLite via Grove ORM.
//
// SQLite serializes writes, so relative-increment stat updates and
// claim-and-delete retry dequeues are race-free without row locking hints.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/sqlitedriver"
	"github.com/xraph/grove/migrate"

	"github.com/coreledger/dispatch/catalog"
	"github.com/coreledger/dispatch/delivery"
	"github.com/coreledger/dispatch/dlq"
	"github.com/coreledger/dispatch/event"
	"github.com/coreledger/dispatch/id"
	dstore "github.com/coreledger/dispatch/store"
	"github.com/coreledger/dispatch/subscription"
)

// compile-time interface check
var _ dstore.Store = (*Store)(nil)

// Store implements store.Store using SQLite via Grove ORM.
type Store struct {
	db  *grove.DB
	sdb *sqlitedriver.SqliteDB
}

// New creates a new SQLite store backed by Grove ORM.
func New(db *grove.DB) *Store {
	return &Store{
		db:  db,
		sdb: sqlitedriver.Unwrap(db),
	}
}

// DB returns the underlying grove database for direct access.
func (s *Store) DB() *grove.DB { return s.db }

// Migrate creates the required tables and indexes using the grove orchestrator.
func (s *Store) Migrate(ctx context.Context) error {
	executor, err := migrate.NewExecutorFor(s.sdb)
	if err != nil {
		return fmt.Errorf("dispatch/sqlite: create migration executor: %w", err)
	}
	orch := migrate.NewOrchestrator(executor, Migrations)
	if _, err := orch.Migrate(ctx); err != nil {
		return fmt.Errorf("dispatch/sqlite: migration failed: %w", err)
	}
	return nil
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// now returns the current UTC time.
func now() time.Time {
	return time.Now().UTC()
}

// ==================== Catalog Store ====================

func (s *Store) RegisterType(ctx context.Context, et *catalog.EventType) error {
	m := toEventTypeModel(et)
	_, err := s.sdb.NewInsert(m).
		OnConflict("(name) DO UPDATE").
		Set("description = EXCLUDED.description").
		Set("group_name = EXCLUDED.group_name").
		Set("schema = EXCLUDED.schema").
		Set("version = EXCLUDED.version").
		Set("example = EXCLUDED.example").
		Set("metadata = EXCLUDED.metadata").
		Set("is_deprecated = 0").
		Set("deprecated_at = NULL").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	return err
}

func (s *Store) GetType(ctx context.Context, name string) (*catalog.EventType, error) {
	m := new(eventTypeModel)
	err := s.sdb.NewSelect(m).
		Where("name = ?", name).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, catalog.ErrNotFound
		}
		return nil, err
	}
	return fromEventTypeModel(m)
}

func (s *Store) GetTypeByID(ctx context.Context, etID id.ID) (*catalog.EventType, error) {
	m := new(eventTypeModel)
	err := s.sdb.NewSelect(m).
		Where("id = ?", etID.String()).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, catalog.ErrNotFound
		}
		return nil, err
	}
	return fromEventTypeModel(m)
}

func (s *Store) ListTypes(ctx context.Context, opts catalog.ListOpts) ([]*catalog.EventType, error) {
	var models []eventTypeModel
	q := s.sdb.NewSelect(&models)

	if opts.Group != "" {
		q = q.Where("group_name = ?", string(opts.Group))
	}
	if !opts.IncludeDeprecated {
		q = q.Where("is_deprecated = 0")
	}
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		q = q.Offset(opts.Offset)
	}
	q = q.OrderExpr("created_at ASC")

	if err := q.Scan(ctx); err != nil {
		return nil, err
	}

	result := make([]*catalog.EventType, len(models))
	for i := range models {
		et, err := fromEventTypeModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = et
	}
	return result, nil
}

func (s *Store) DeleteType(ctx context.Context, name string) error {
	ts := now()
	res, err := s.sdb.NewUpdate((*eventTypeModel)(nil)).
		Set("is_deprecated = 1").
		Set("deprecated_at = ?", ts).
		Set("updated_at = ?", ts).
		Where("name = ?", name).
		Where("is_deprecated = 0").
		Exec(ctx)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return catalog.ErrNotFound
	}
	return nil
}

// ==================== Subscription Store ====================

func (s *Store) CreateSubscription(ctx context.Context, sub *subscription.Subscription) error {
	m := toSubscriptionModel(sub)
	_, err := s.sdb.NewInsert(m).Exec(ctx)
	return err
}

func (s *Store) GetSubscription(ctx context.Context, subID id.ID) (*subscription.Subscription, error) {
	m := new(subscriptionModel)
	err := s.sdb.NewSelect(m).
		Where("id = ?", subID.String()).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, subscription.ErrNotFound
		}
		return nil, err
	}
	return fromSubscriptionModel(m)
}

func (s *Store) UpdateSubscription(ctx context.Context, sub *subscription.Subscription) error {
	ts := now()
	eventTypes, _ := json.Marshal(sub.EventTypes) //nolint:errcheck // best-effort
	headers, _ := json.Marshal(sub.Headers)       //nolint:errcheck // best-effort
	metadata, _ := json.Marshal(sub.Metadata)     //nolint:errcheck // best-effort

	res, err := s.sdb.NewUpdate((*subscriptionModel)(nil)).
		Set("url = ?", sub.URL).
		Set("description = ?", sub.Description).
		Set("secret = ?", sub.Secret).
		Set("event_types = ?", string(eventTypes)).
		Set("headers = ?", string(headers)).
		Set("timeout_seconds = ?", sub.Timeout.Seconds()).
		Set("retry_attempts = ?", sub.RetryAttempts).
		Set("retry_backoff = ?", sub.RetryBackoff).
		Set("rate_limit = ?", sub.RateLimit).
		Set("status = ?", string(sub.Status)).
		Set("metadata = ?", string(metadata)).
		Set("updated_at = ?", ts).
		Where("id = ?", sub.ID.String()).
		Exec(ctx)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return subscription.ErrNotFound
	}
	sub.UpdatedAt = ts
	return nil
}

func (s *Store) ListSubscriptions(ctx context.Context, opts subscription.ListOpts) ([]*subscription.Subscription, error) {
	var models []subscriptionModel
	q := s.sdb.NewSelect(&models)

	if opts.Status != nil {
		q = q.Where("status = ?", string(*opts.Status))
	}
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		q = q.Offset(opts.Offset)
	}
	q = q.OrderExpr("created_at ASC")

	if err := q.Scan(ctx); err != nil {
		return nil, err
	}

	result := make([]*subscription.Subscription, len(models))
	for i := range models {
		sub, err := fromSubscriptionModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = sub
	}
	return result, nil
}

func (s *Store) Resolve(ctx context.Context, eventType string) ([]*subscription.Subscription, error) {
	var models []subscriptionModel
	if err := s.sdb.NewSelect(&models).
		Where("status = ?", string(subscription.StatusActive)).
		Scan(ctx); err != nil {
		return nil, err
	}

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

func (s *Store) SetStatus(ctx context.Context, subID id.ID, status subscription.Status) error {
	ts := now()
	res, err := s.sdb.NewUpdate((*subscriptionModel)(nil)).
		Set("status = ?", string(status)).
		Set("updated_at = ?", ts).
		Where("id = ?", subID.String()).
		Exec(ctx)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return subscription.ErrNotFound
	}
	return nil
}

func (s *Store) UpdateStats(ctx context.Context, subID id.ID, delivered bool) error {
	failureInc := 0
	if !delivered {
		failureInc = 1
	}
	res, err := s.sdb.NewRaw(`
		UPDATE dispatch_subscriptions
		SET delivery_count = delivery_count + 1,
		    failure_count = failure_count + ?,
		    last_delivery_at = ?,
		    updated_at = ?
		WHERE id = ?
	`, failureInc, now(), now(), subID.String()).Exec(ctx)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return subscription.ErrNotFound
	}
	return nil
}

// ==================== Event Store ====================

func (s *Store) CreateEvent(ctx context.Context, evt *event.Event) error {
	m := toEventModel(evt)
	_, err := s.sdb.NewInsert(m).Exec(ctx)
	return err
}

func (s *Store) GetEvent(ctx context.Context, evtID id.ID) (*event.Event, error) {
	m := new(eventModel)
	err := s.sdb.NewSelect(m).
		Where("id = ?", evtID.String()).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, event.ErrNotFound
		}
		return nil, err
	}
	return fromEventModel(m)
}

func (s *Store) ListEvents(ctx context.Context, opts event.ListOpts) ([]*event.Event, error) {
	var models []eventModel
	q := s.sdb.NewSelect(&models)

	if opts.Type != "" {
		q = q.Where("type = ?", opts.Type)
	}
	if opts.From != nil {
		q = q.Where("occurred_at >= ?", *opts.From)
	}
	if opts.To != nil {
		q = q.Where("occurred_at <= ?", *opts.To)
	}
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		q = q.Offset(opts.Offset)
	}
	q = q.OrderExpr("occurred_at DESC")

	if err := q.Scan(ctx); err != nil {
		return nil, err
	}

	result := make([]*event.Event, len(models))
	for i := range models {
		evt, err := fromEventModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = evt
	}
	return result, nil
}

// ==================== Delivery Store ====================

func (s *Store) CreateDelivery(ctx context.Context, d *delivery.Delivery) error {
	m := toDeliveryModel(d)
	_, err := s.sdb.NewInsert(m).Exec(ctx)
	return err
}

func (s *Store) GetDelivery(ctx context.Context, delID id.ID) (*delivery.Delivery, error) {
	m := new(deliveryModel)
	err := s.sdb.NewSelect(m).
		Where("id = ?", delID.String()).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, delivery.ErrNotFound
		}
		return nil, err
	}
	return fromDeliveryModel(m)
}

func (s *Store) ListDeliveries(ctx context.Context, opts delivery.ListOpts) ([]*delivery.Delivery, error) {
	var models []deliveryModel
	q := s.sdb.NewSelect(&models)

	if opts.SubscriptionID != nil {
		q = q.Where("subscription_id = ?", opts.SubscriptionID.String())
	}
	if opts.EventID != nil {
		q = q.Where("event_id = ?", opts.EventID.String())
	}
	if opts.Status != nil {
		q = q.Where("status = ?", string(*opts.Status))
	}
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		q = q.Offset(opts.Offset)
	}
	q = q.OrderExpr("created_at DESC")

	if err := q.Scan(ctx); err != nil {
		return nil, err
	}

	result := make([]*delivery.Delivery, len(models))
	for i := range models {
		d, err := fromDeliveryModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = d
	}
	return result, nil
}

// ==================== Retry Store ====================

func (s *Store) ScheduleRetry(ctx context.Context, r *delivery.PendingRetry) error {
	m := toRetryModel(r)
	_, err := s.sdb.NewInsert(m).
		OnConflict("(delivery_id) DO UPDATE").
		Set("attempt_number = EXCLUDED.attempt_number").
		Set("fire_at = EXCLUDED.fire_at").
		Exec(ctx)
	return err
}

func (s *Store) DueRetries(ctx context.Context, ts time.Time, limit int) ([]*delivery.PendingRetry, error) {
	// Claim-and-delete in one statement; SQLite's write serialization makes
	// this atomic across workers.
	var models []retryModel
	err := s.sdb.NewRaw(`
		DELETE FROM dispatch_retries
		WHERE delivery_id IN (
			SELECT delivery_id FROM dispatch_retries
			WHERE fire_at <= ?
			ORDER BY fire_at ASC
			LIMIT ?
		)
		RETURNING *
	`, ts, limit).Scan(ctx, &models)
	if err != nil {
		return nil, err
	}

	result := make([]*delivery.PendingRetry, len(models))
	for i := range models {
		r, err := fromRetryModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = r
	}
	return result, nil
}

func (s *Store) CountPendingRetries(ctx context.Context) (int64, error) {
	count, err := s.sdb.NewSelect((*retryModel)(nil)).Count(ctx)
	return count, err
}

// ==================== DLQ Store ====================

func (s *Store) Push(ctx context.Context, entry *dlq.Entry) error {
	m := toDLQEntryModel(entry)
	_, err := s.sdb.NewInsert(m).Exec(ctx)
	return err
}

func (s *Store) ListDLQ(ctx context.Context, opts dlq.ListOpts) ([]*dlq.Entry, error) {
	var models []dlqEntryModel
	q := s.sdb.NewSelect(&models)

	if opts.SubscriptionID != nil {
		q = q.Where("subscription_id = ?", opts.SubscriptionID.String())
	}
	if opts.EventType != "" {
		q = q.Where("event_type = ?", opts.EventType)
	}
	if opts.From != nil {
		q = q.Where("failed_at >= ?", *opts.From)
	}
	if opts.To != nil {
		q = q.Where("failed_at <= ?", *opts.To)
	}
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		q = q.Offset(opts.Offset)
	}
	q = q.OrderExpr("failed_at DESC")

	if err := q.Scan(ctx); err != nil {
		return nil, err
	}

	result := make([]*dlq.Entry, len(models))
	for i := range models {
		entry, err := fromDLQEntryModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = entry
	}
	return result, nil
}

func (s *Store) GetDLQ(ctx context.Context, dlqID id.ID) (*dlq.Entry, error) {
	m := new(dlqEntryModel)
	err := s.sdb.NewSelect(m).
		Where("id = ?", dlqID.String()).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, dlq.ErrNotFound
		}
		return nil, err
	}
	return fromDLQEntryModel(m)
}

func (s *Store) Replay(ctx context.Context, dlqID id.ID) error {
	entry, err := s.GetDLQ(ctx, dlqID)
	if err != nil {
		return err
	}
	return s.replayEntry(ctx, entry)
}

func (s *Store) ReplayBulk(ctx context.Context, from, to time.Time) (int64, error) {
	var models []dlqEntryModel
	if err := s.sdb.NewSelect(&models).
		Where("failed_at >= ?", from).
		Where("failed_at <= ?", to).
		Where("replayed_at IS NULL").
		Scan(ctx); err != nil {
		return 0, err
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
	ts := now()
	if err := s.ScheduleRetry(ctx, &delivery.PendingRetry{
		DeliveryID:     entry.DeliveryID,
		SubscriptionID: entry.SubscriptionID,
		EventID:        entry.EventID,
		AttemptNumber:  1,
		FireAt:         ts,
	}); err != nil {
		return err
	}

	_, err := s.sdb.NewUpdate((*dlqEntryModel)(nil)).
		Set("replayed_at = ?", ts).
		Set("updated_at = ?", ts).
		Where("id = ?", entry.ID.String()).
		Exec(ctx)
	return err
}

func (s *Store) Purge(ctx context.Context, before time.Time) (int64, error) {
	res, err := s.sdb.NewDelete((*dlqEntryModel)(nil)).
		Where("created_at < ?", before).
		Exec(ctx)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *Store) CountDLQ(ctx context.Context) (int64, error) {
	count, err := s.sdb.NewSelect((*dlqEntryModel)(nil)).Count(ctx)
	return count, err
}

// isNoRows checks for the standard sql.ErrNoRows sentinel.
func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
