// Package postgres implements the dispatch store on PostgreSQL via Grove ORM.
//
// Delivery stats are updated with a single relative UPDATE so concurrent
// workers never lose increments, and due retries are claimed with
// FOR UPDATE SKIP LOCKED so a retry fires on exactly one worker.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/pgdriver"
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

// Store implements store.Store using PostgreSQL via Grove ORM.
type Store struct {
	db *grove.DB
	pg *pgdriver.PgDB
}

// New creates a new PostgreSQL store backed by Grove ORM.
func New(db *grove.DB) *Store {
	return &Store{
		db: db,
		pg: pgdriver.Unwrap(db),
	}
}

// DB returns the underlying grove database for direct access.
func (s *Store) DB() *grove.DB { return s.db }

// Migrate creates the required tables and indexes using the grove orchestrator.
func (s *Store) Migrate(ctx context.Context) error {
	executor, err := migrate.NewExecutorFor(s.pg)
	if err != nil {
		return fmt.Errorf("dispatch/postgres: create migration executor: %w", err)
	}
	orch := migrate.NewOrchestrator(executor, Migrations)
	if _, err := orch.Migrate(ctx); err != nil {
		return fmt.Errorf("dispatch/postgres: migration failed: %w", err)
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

// ==================== Catalog Store ====================

func (s *Store) RegisterType(ctx context.Context, et *catalog.EventType) error {
	m := toEventTypeModel(et)
	_, err := s.pg.NewInsert(m).
		OnConflict("(name) DO UPDATE").
		Set("description = EXCLUDED.description").
		Set("group_name = EXCLUDED.group_name").
		Set("schema = EXCLUDED.schema").
		Set("version = EXCLUDED.version").
		Set("example = EXCLUDED.example").
		Set("metadata = EXCLUDED.metadata").
		Set("is_deprecated = false").
		Set("deprecated_at = NULL").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	return err
}

func (s *Store) GetType(ctx context.Context, name string) (*catalog.EventType, error) {
	m := new(eventTypeModel)
	err := s.pg.NewSelect(m).
		Where("name = $1", name).
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
	err := s.pg.NewSelect(m).
		Where("id = $1", etID.String()).
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
	q := s.pg.NewSelect(&models)

	argIdx := 0
	if opts.Group != "" {
		argIdx++
		q = q.Where(fmt.Sprintf("group_name = $%d", argIdx), string(opts.Group))
	}
	if !opts.IncludeDeprecated {
		q = q.Where("is_deprecated = false")
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
	now := time.Now().UTC()
	res, err := s.pg.NewUpdate((*eventTypeModel)(nil)).
		Set("is_deprecated = true").
		Set("deprecated_at = $1", now).
		Set("updated_at = $2", now).
		Where("name = $3", name).
		Where("is_deprecated = false").
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
	_, err := s.pg.NewInsert(m).Exec(ctx)
	return err
}

func (s *Store) GetSubscription(ctx context.Context, subID id.ID) (*subscription.Subscription, error) {
	m := new(subscriptionModel)
	err := s.pg.NewSelect(m).
		Where("id = $1", subID.String()).
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
	now := time.Now().UTC()
	res, err := s.pg.NewUpdate((*subscriptionModel)(nil)).
		Set("url = $1", sub.URL).
		Set("description = $2", sub.Description).
		Set("secret = $3", sub.Secret).
		Set("event_types = $4", sub.EventTypes).
		Set("headers = $5", sub.Headers).
		Set("timeout_seconds = $6", sub.Timeout.Seconds()).
		Set("retry_attempts = $7", sub.RetryAttempts).
		Set("retry_backoff = $8", sub.RetryBackoff).
		Set("rate_limit = $9", sub.RateLimit).
		Set("status = $10", string(sub.Status)).
		Set("metadata = $11", sub.Metadata).
		Set("updated_at = $12", now).
		Where("id = $13", sub.ID.String()).
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
	sub.UpdatedAt = now
	return nil
}

func (s *Store) ListSubscriptions(ctx context.Context, opts subscription.ListOpts) ([]*subscription.Subscription, error) {
	var models []subscriptionModel
	q := s.pg.NewSelect(&models)

	if opts.Status != nil {
		q = q.Where("status = $1", string(*opts.Status))
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
	if err := s.pg.NewSelect(&models).
		Where("status = $1", string(subscription.StatusActive)).
		Scan(ctx); err != nil {
		return nil, err
	}

	// Pattern matching happens in Go; the wildcard grammar does not map
	// cleanly onto SQL LIKE.
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
	now := time.Now().UTC()
	res, err := s.pg.NewUpdate((*subscriptionModel)(nil)).
		Set("status = $1", string(status)).
		Set("updated_at = $2", now).
		Where("id = $3", subID.String()).
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
	res, err := s.pg.NewRaw(`
		UPDATE dispatch_subscriptions
		SET delivery_count = delivery_count + 1,
		    failure_count = failure_count + $1,
		    last_delivery_at = NOW(),
		    updated_at = NOW()
		WHERE id = $2
	`, failureInc, subID.String()).Exec(ctx)
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
	_, err := s.pg.NewInsert(m).Exec(ctx)
	return err
}

func (s *Store) GetEvent(ctx context.Context, evtID id.ID) (*event.Event, error) {
	m := new(eventModel)
	err := s.pg.NewSelect(m).
		Where("id = $1", evtID.String()).
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
	q := s.pg.NewSelect(&models)

	argIdx := 0
	if opts.Type != "" {
		argIdx++
		q = q.Where(fmt.Sprintf("type = $%d", argIdx), opts.Type)
	}
	if opts.From != nil {
		argIdx++
		q = q.Where(fmt.Sprintf("occurred_at >= $%d", argIdx), *opts.From)
	}
	if opts.To != nil {
		argIdx++
		q = q.Where(fmt.Sprintf("occurred_at <= $%d", argIdx), *opts.To)
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
	_, err := s.pg.NewInsert(m).Exec(ctx)
	return err
}

func (s *Store) GetDelivery(ctx context.Context, delID id.ID) (*delivery.Delivery, error) {
	m := new(deliveryModel)
	err := s.pg.NewSelect(m).
		Where("id = $1", delID.String()).
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
	q := s.pg.NewSelect(&models)

	argIdx := 0
	if opts.SubscriptionID != nil {
		argIdx++
		q = q.Where(fmt.Sprintf("subscription_id = $%d", argIdx), opts.SubscriptionID.String())
	}
	if opts.EventID != nil {
		argIdx++
		q = q.Where(fmt.Sprintf("event_id = $%d", argIdx), opts.EventID.String())
	}
	if opts.Status != nil {
		argIdx++
		q = q.Where(fmt.Sprintf("status = $%d", argIdx), string(*opts.Status))
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
	_, err := s.pg.NewInsert(m).
		OnConflict("(delivery_id) DO UPDATE").
		Set("attempt_number = EXCLUDED.attempt_number").
		Set("fire_at = EXCLUDED.fire_at").
		Exec(ctx)
	return err
}

func (s *Store) DueRetries(ctx context.Context, ts time.Time, limit int) ([]*delivery.PendingRetry, error) {
	// Claim-and-delete in one statement; SKIP LOCKED keeps concurrent
	// workers from claiming the same rows.
	var models []retryModel
	err := s.pg.NewRaw(`
		DELETE FROM dispatch_retries
		WHERE delivery_id IN (
			SELECT delivery_id FROM dispatch_retries
			WHERE fire_at <= $1
			ORDER BY fire_at ASC
			LIMIT $2
			FOR UPDATE SKIP LOCKED
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
	count, err := s.pg.NewSelect((*retryModel)(nil)).Count(ctx)
	return count, err
}

// ==================== DLQ Store ====================

func (s *Store) Push(ctx context.Context, entry *dlq.Entry) error {
	m := toDLQEntryModel(entry)
	_, err := s.pg.NewInsert(m).Exec(ctx)
	return err
}

func (s *Store) ListDLQ(ctx context.Context, opts dlq.ListOpts) ([]*dlq.Entry, error) {
	var models []dlqEntryModel
	q := s.pg.NewSelect(&models)

	argIdx := 0
	if opts.SubscriptionID != nil {
		argIdx++
		q = q.Where(fmt.Sprintf("subscription_id = $%d", argIdx), opts.SubscriptionID.String())
	}
	if opts.EventType != "" {
		argIdx++
		q = q.Where(fmt.Sprintf("event_type = $%d", argIdx), opts.EventType)
	}
	if opts.From != nil {
		argIdx++
		q = q.Where(fmt.Sprintf("failed_at >= $%d", argIdx), *opts.From)
	}
	if opts.To != nil {
		argIdx++
		q = q.Where(fmt.Sprintf("failed_at <= $%d", argIdx), *opts.To)
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
	err := s.pg.NewSelect(m).
		Where("id = $1", dlqID.String()).
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
	if err := s.pg.NewSelect(&models).
		Where("failed_at >= $1", from).
		Where("failed_at <= $2", to).
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
	now := time.Now().UTC()
	if err := s.ScheduleRetry(ctx, &delivery.PendingRetry{
		DeliveryID:     entry.DeliveryID,
		SubscriptionID: entry.SubscriptionID,
		EventID:        entry.EventID,
		AttemptNumber:  1,
		FireAt:         now,
	}); err != nil {
		return err
	}

	_, err := s.pg.NewUpdate((*dlqEntryModel)(nil)).
		Set("replayed_at = $1", now).
		Set("updated_at = $2", now).
		Where("id = $3", entry.ID.String()).
		Exec(ctx)
	return err
}

func (s *Store) Purge(ctx context.Context, before time.Time) (int64, error) {
	res, err := s.pg.NewDelete((*dlqEntryModel)(nil)).
		Where("created_at < $1", before).
		Exec(ctx)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *Store) CountDLQ(ctx context.Context) (int64, error) {
	count, err := s.pg.NewSelect((*dlqEntryModel)(nil)).Count(ctx)
	return count, err
}

// isNoRows checks for the standard sql.ErrNoRows sentinel.
func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
