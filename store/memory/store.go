// Package memory provides an in-memory Store implementation for unit testing
// and single-process embedding.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/coreledger/dispatch"
	"github.com/coreledger/dispatch/catalog"
	"github.com/coreledger/dispatch/delivery"
	"github.com/coreledger/dispatch/dlq"
	"github.com/coreledger/dispatch/event"
	"github.com/coreledger/dispatch/id"
	dstore "github.com/coreledger/dispatch/store"
	"github.com/coreledger/dispatch/subscription"
)

// compile-time interface check.
var _ dstore.Store = (*Store)(nil)

// Store is an in-memory implementation of store.Store.
type Store struct {
	mu sync.RWMutex

	eventTypes     map[string]*catalog.EventType          // keyed by name
	eventTypesByID map[string]*catalog.EventType          // keyed by ID string
	subscriptions  map[string]*subscription.Subscription  // keyed by ID string
	events         map[string]*event.Event                // keyed by ID string
	deliveries     map[string]*delivery.Delivery          // keyed by ID string
	retries        map[string]*delivery.PendingRetry      // keyed by delivery ID string
	dlqEntries     map[string]*dlq.Entry                  // keyed by ID string

	closed bool
}

// New creates a new in-memory store.
func New() *Store {
	return &Store{
		eventTypes:     make(map[string]*catalog.EventType),
		eventTypesByID: make(map[string]*catalog.EventType),
		subscriptions:  make(map[string]*subscription.Subscription),
		events:         make(map[string]*event.Event),
		deliveries:     make(map[string]*delivery.Delivery),
		retries:        make(map[string]*delivery.PendingRetry),
		dlqEntries:     make(map[string]*dlq.Entry),
	}
}

// ──────────────────────────────────────────────────
// Lifecycle
// ──────────────────────────────────────────────────

// Migrate is a no-op for the in-memory store.
func (s *Store) Migrate(_ context.Context) error { return nil }

// Ping is a no-op for the in-memory store.
func (s *Store) Ping(_ context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return dispatch.ErrStoreClosed
	}
	return nil
}

// Close marks the store as closed.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// ──────────────────────────────────────────────────
// catalog.Store
// ──────────────────────────────────────────────────

// RegisterType creates or updates an event type definition (upsert by name).
func (s *Store) RegisterType(_ context.Context, et *catalog.EventType) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.eventTypes[et.Definition.Name]; ok {
		existing.Definition = et.Definition
		existing.Metadata = et.Metadata
		existing.IsDeprecated = false
		existing.DeprecatedAt = nil
		existing.UpdatedAt = time.Now().UTC()
		et.ID = existing.ID
		return nil
	}

	s.eventTypes[et.Definition.Name] = et
	s.eventTypesByID[et.ID.String()] = et
	return nil
}

// GetType returns an event type by name.
func (s *Store) GetType(_ context.Context, name string) (*catalog.EventType, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	et, ok := s.eventTypes[name]
	if !ok {
		return nil, catalog.ErrNotFound
	}
	return et, nil
}

// GetTypeByID returns an event type by its TypeID.
func (s *Store) GetTypeByID(_ context.Context, etID id.ID) (*catalog.EventType, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	et, ok := s.eventTypesByID[etID.String()]
	if !ok {
		return nil, catalog.ErrNotFound
	}
	return et, nil
}

// ListTypes returns all registered event types, optionally filtered.
func (s *Store) ListTypes(_ context.Context, opts catalog.ListOpts) ([]*catalog.EventType, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*catalog.EventType, 0, len(s.eventTypes))
	for _, et := range s.eventTypes {
		if !opts.IncludeDeprecated && et.IsDeprecated {
			continue
		}
		if opts.Group != "" && et.Definition.Group != opts.Group {
			continue
		}
		result = append(result, et)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Definition.Name < result[j].Definition.Name
	})

	result = applyPagination(result, opts.Offset, opts.Limit)
	return result, nil
}

// DeleteType soft-deletes (deprecates) an event type.
func (s *Store) DeleteType(_ context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	et, ok := s.eventTypes[name]
	if !ok || et.IsDeprecated {
		return catalog.ErrNotFound
	}

	now := time.Now().UTC()
	et.IsDeprecated = true
	et.DeprecatedAt = &now
	et.UpdatedAt = now
	return nil
}

// ──────────────────────────────────────────────────
// subscription.Store
// ──────────────────────────────────────────────────

// CreateSubscription persists a new subscription.
func (s *Store) CreateSubscription(_ context.Context, sub *subscription.Subscription) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.subscriptions[sub.ID.String()] = sub
	return nil
}

// GetSubscription returns a subscription by ID.
func (s *Store) GetSubscription(_ context.Context, subID id.ID) (*subscription.Subscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sub, ok := s.subscriptions[subID.String()]
	if !ok {
		return nil, subscription.ErrNotFound
	}
	return sub, nil
}

// UpdateSubscription modifies an existing subscription.
func (s *Store) UpdateSubscription(_ context.Context, sub *subscription.Subscription) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.subscriptions[sub.ID.String()]; !ok {
		return subscription.ErrNotFound
	}
	sub.UpdatedAt = time.Now().UTC()
	s.subscriptions[sub.ID.String()] = sub
	return nil
}

// ListSubscriptions returns subscriptions, optionally filtered by status.
func (s *Store) ListSubscriptions(_ context.Context, opts subscription.ListOpts) ([]*subscription.Subscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*subscription.Subscription, 0, len(s.subscriptions))
	for _, sub := range s.subscriptions {
		if opts.Status != nil && sub.Status != *opts.Status {
			continue
		}
		result = append(result, sub)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})

	result = applyPagination(result, opts.Offset, opts.Limit)
	return result, nil
}

// Resolve finds all active subscriptions matching an event type.
func (s *Store) Resolve(_ context.Context, eventType string) ([]*subscription.Subscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*subscription.Subscription
	for _, sub := range s.subscriptions {
		if sub.Status != subscription.StatusActive {
			continue
		}
		if sub.Matches(eventType) {
			result = append(result, sub)
		}
	}
	return result, nil
}

// SetStatus transitions a subscription's status.
func (s *Store) SetStatus(_ context.Context, subID id.ID, status subscription.Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sub, ok := s.subscriptions[subID.String()]
	if !ok {
		return subscription.ErrNotFound
	}
	sub.Status = status
	sub.UpdatedAt = time.Now().UTC()
	return nil
}

// UpdateStats records one delivery attempt atomically.
func (s *Store) UpdateStats(_ context.Context, subID id.ID, delivered bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sub, ok := s.subscriptions[subID.String()]
	if !ok {
		return subscription.ErrNotFound
	}

	now := time.Now().UTC()
	sub.DeliveryCount++
	if !delivered {
		sub.FailureCount++
	}
	sub.LastDeliveryAt = &now
	sub.UpdatedAt = now
	return nil
}

// ──────────────────────────────────────────────────
// event.Store
// ──────────────────────────────────────────────────

// CreateEvent persists an event.
func (s *Store) CreateEvent(_ context.Context, evt *event.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.events[evt.ID.String()] = evt
	return nil
}

// GetEvent returns an event by ID.
func (s *Store) GetEvent(_ context.Context, evtID id.ID) (*event.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	evt, ok := s.events[evtID.String()]
	if !ok {
		return nil, event.ErrNotFound
	}
	return evt, nil
}

// ListEvents returns events, optionally filtered.
func (s *Store) ListEvents(_ context.Context, opts event.ListOpts) ([]*event.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*event.Event, 0, len(s.events))
	for _, evt := range s.events {
		if opts.Type != "" && evt.Type != opts.Type {
			continue
		}
		if opts.From != nil && evt.Timestamp.Before(*opts.From) {
			continue
		}
		if opts.To != nil && evt.Timestamp.After(*opts.To) {
			continue
		}
		result = append(result, evt)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})

	result = applyPagination(result, opts.Offset, opts.Limit)
	return result, nil
}

// ──────────────────────────────────────────────────
// delivery.Store
// ──────────────────────────────────────────────────

// CreateDelivery persists a delivery attempt record.
func (s *Store) CreateDelivery(_ context.Context, d *delivery.Delivery) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.deliveries[d.ID.String()] = d
	return nil
}

// copyDelivery returns a shallow copy of the delivery.
func copyDelivery(d *delivery.Delivery) *delivery.Delivery {
	cp := *d
	return &cp
}

// GetDelivery returns a copy of the delivery by ID.
func (s *Store) GetDelivery(_ context.Context, delID id.ID) (*delivery.Delivery, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	d, ok := s.deliveries[delID.String()]
	if !ok {
		return nil, delivery.ErrNotFound
	}
	return copyDelivery(d), nil
}

// ListDeliveries returns delivery history, newest first.
func (s *Store) ListDeliveries(_ context.Context, opts delivery.ListOpts) ([]*delivery.Delivery, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*delivery.Delivery, 0, len(s.deliveries))
	for _, d := range s.deliveries {
		if opts.Status != nil && d.Status != *opts.Status {
			continue
		}
		if opts.SubscriptionID != nil && d.SubscriptionID.String() != opts.SubscriptionID.String() {
			continue
		}
		if opts.EventID != nil && d.EventID.String() != opts.EventID.String() {
			continue
		}
		result = append(result, copyDelivery(d))
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})

	result = applyPagination(result, opts.Offset, opts.Limit)
	return result, nil
}

// ──────────────────────────────────────────────────
// delivery.RetryStore
// ──────────────────────────────────────────────────

// ScheduleRetry persists a pending retry.
func (s *Store) ScheduleRetry(_ context.Context, r *delivery.PendingRetry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.retries[r.DeliveryID.String()] = r
	return nil
}

// DueRetries atomically claims up to limit retries whose FireAt has passed.
func (s *Store) DueRetries(_ context.Context, now time.Time, limit int) ([]*delivery.PendingRetry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	due := make([]*delivery.PendingRetry, 0)
	for _, r := range s.retries {
		if r.FireAt.After(now) {
			continue
		}
		due = append(due, r)
	}

	sort.Slice(due, func(i, j int) bool {
		return due[i].FireAt.Before(due[j].FireAt)
	})

	if limit > 0 && limit < len(due) {
		due = due[:limit]
	}

	for _, r := range due {
		delete(s.retries, r.DeliveryID.String())
	}
	return due, nil
}

// CountPendingRetries returns the number of scheduled retries.
func (s *Store) CountPendingRetries(_ context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return int64(len(s.retries)), nil
}

// ──────────────────────────────────────────────────
// dlq.Store
// ──────────────────────────────────────────────────

// Push adds a permanently failed delivery to the DLQ.
func (s *Store) Push(_ context.Context, entry *dlq.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.dlqEntries[entry.ID.String()] = entry
	return nil
}

// ListDLQ returns DLQ entries, newest failures first.
func (s *Store) ListDLQ(_ context.Context, opts dlq.ListOpts) ([]*dlq.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*dlq.Entry, 0, len(s.dlqEntries))
	for _, e := range s.dlqEntries {
		if opts.SubscriptionID != nil && e.SubscriptionID.String() != opts.SubscriptionID.String() {
			continue
		}
		if opts.EventType != "" && e.EventType != opts.EventType {
			continue
		}
		if opts.From != nil && e.FailedAt.Before(*opts.From) {
			continue
		}
		if opts.To != nil && e.FailedAt.After(*opts.To) {
			continue
		}
		result = append(result, e)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].FailedAt.After(result[j].FailedAt)
	})

	result = applyPagination(result, opts.Offset, opts.Limit)
	return result, nil
}

// GetDLQ returns a DLQ entry by ID.
func (s *Store) GetDLQ(_ context.Context, dlqID id.ID) (*dlq.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.dlqEntries[dlqID.String()]
	if !ok {
		return nil, dlq.ErrNotFound
	}
	return e, nil
}

// Replay schedules an immediate redelivery for a DLQ entry.
func (s *Store) Replay(_ context.Context, dlqID id.ID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.dlqEntries[dlqID.String()]
	if !ok {
		return dlq.ErrNotFound
	}

	s.replayLocked(e)
	return nil
}

// ReplayBulk replays all unreplayed entries that failed in [from, to].
func (s *Store) ReplayBulk(_ context.Context, from, to time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var count int64
	for _, e := range s.dlqEntries {
		if e.FailedAt.Before(from) || e.FailedAt.After(to) {
			continue
		}
		if e.ReplayedAt != nil {
			continue
		}
		s.replayLocked(e)
		count++
	}
	return count, nil
}

// replayLocked marks the entry replayed and schedules a fresh attempt
// sequence. Caller holds s.mu.
func (s *Store) replayLocked(e *dlq.Entry) {
	now := time.Now().UTC()
	e.ReplayedAt = &now

	r := &delivery.PendingRetry{
		DeliveryID:     e.DeliveryID,
		SubscriptionID: e.SubscriptionID,
		EventID:        e.EventID,
		AttemptNumber:  1,
		FireAt:         now,
	}
	s.retries[r.DeliveryID.String()] = r
}

// Purge deletes DLQ entries created before the threshold.
func (s *Store) Purge(_ context.Context, before time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var count int64
	for k, e := range s.dlqEntries {
		if e.CreatedAt.Before(before) {
			delete(s.dlqEntries, k)
			count++
		}
	}
	return count, nil
}

// CountDLQ returns the total number of DLQ entries.
func (s *Store) CountDLQ(_ context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return int64(len(s.dlqEntries)), nil
}

// ──────────────────────────────────────────────────
// Helpers
// ──────────────────────────────────────────────────

func applyPagination[T any](items []*T, offset, limit int) []*T {
	if offset > 0 && offset < len(items) {
		items = items[offset:]
	} else if offset >= len(items) && offset > 0 {
		return nil
	}

	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}

	return items
}
