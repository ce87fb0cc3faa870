package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/coreledger/dispatch/bus"
	"github.com/coreledger/dispatch/bus/membus"
	"github.com/coreledger/dispatch/catalog"
	"github.com/coreledger/dispatch/delivery"
	"github.com/coreledger/dispatch/dlq"
	"github.com/coreledger/dispatch/event"
	"github.com/coreledger/dispatch/id"
	"github.com/coreledger/dispatch/internal/entity"
	"github.com/coreledger/dispatch/observability"
	"github.com/coreledger/dispatch/ratelimit"
	"github.com/coreledger/dispatch/signature"
	"github.com/coreledger/dispatch/store"
	"github.com/coreledger/dispatch/subscription"
	"github.com/coreledger/dispatch/validator"
)

// Manager is the root webhook dispatch engine. It owns subscription
// management, the event type catalog, event publication and the delivery
// pipeline.
type Manager struct {
	config    Config
	store     store.Store
	bus       bus.Bus
	prober    subscription.Prober
	proberSet bool
	metrics   *observability.Metrics
	tracer    *observability.Tracer
	logger    *slog.Logger

	catalog     *catalog.Catalog
	validator   *catalog.Validator
	subSvc      *subscription.Service
	deliverySvc *delivery.Service
	dlqSvc      *dlq.Service
	worker      *delivery.Worker
	limiter     *ratelimit.Limiter

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a new Manager with the given options. A store is required;
// the bus defaults to an in-process implementation.
func New(opts ...Option) (*Manager, error) {
	m := &Manager{
		config: DefaultConfig(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(m); err != nil {
			return nil, err
		}
	}
	if m.store == nil {
		return nil, ErrNoStore
	}
	if m.bus == nil {
		m.bus = membus.New()
	}
	if !m.proberSet {
		m.prober = validator.New(validator.DefaultTimeout)
	}
	m.wireServices()
	return m, nil
}

// wireServices initializes the internal services after options have been
// applied.
func (m *Manager) wireServices() {
	m.catalog = catalog.NewCatalog(m.store, catalog.Config{
		CacheTTL: m.config.CacheTTL,
	}, m.logger)

	m.validator = catalog.NewValidator()
	m.limiter = ratelimit.New()

	m.subSvc = subscription.NewService(m.store, m.prober, m.logger)
	m.dlqSvc = dlq.NewService(m.store, m.logger)

	sender := delivery.NewSender(signature.NewSigner(m.config.SignatureAlgorithm))
	m.deliverySvc = delivery.NewService(m.store, m.store, m.store, m.dlqSvc, sender, delivery.ServiceConfig{
		Metrics: m.metrics,
		Tracer:  m.tracer,
		Limiter: m.limiter,
	}, m.logger)

	m.worker = delivery.NewWorker(m.deliverySvc, m.store, m.store, m.store, delivery.WorkerConfig{
		Concurrency:  m.config.Concurrency,
		PollInterval: m.config.PollInterval,
		BatchSize:    m.config.RetryBatchSize,
	}, m.logger)
}

// Start begins the bus consumer loop and the retry worker.
func (m *Manager) Start(ctx context.Context) {
	ctx, m.cancel = context.WithCancel(ctx)

	m.worker.Start(ctx)

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		m.consumeLoop(ctx)
	}()

	m.logger.Info("dispatch manager started",
		"concurrency", m.config.Concurrency,
		"poll_interval", m.config.PollInterval)
}

// Stop shuts down the consumer loop and retry worker, waiting up to
// ShutdownTimeout for in-flight deliveries.
func (m *Manager) Stop(ctx context.Context) {
	if m.cancel != nil {
		m.cancel()
	}

	done := make(chan struct{})
	go func() {
		m.worker.Stop(ctx)
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(m.config.ShutdownTimeout):
		m.logger.Warn("shutdown timeout exceeded, abandoning in-flight deliveries")
	}

	m.logger.Info("dispatch manager stopped")
}

// RegisterEventType registers a webhook event type definition in the catalog.
func (m *Manager) RegisterEventType(ctx context.Context, def catalog.Definition, opts ...catalog.RegisterOption) (*catalog.EventType, error) {
	return m.catalog.RegisterType(ctx, def, opts...)
}

// RegisterBuiltinEventTypes loads the built-in banking event type catalog.
func (m *Manager) RegisterBuiltinEventTypes(ctx context.Context) error {
	return m.catalog.RegisterBuiltin(ctx)
}

// TriggerEvent validates and publishes an event for asynchronous delivery.
//
// The critical path:
//  1. Look up the event type in the catalog (reject unknown types).
//  2. Reject deprecated event types.
//  3. Validate the payload against the type's JSON Schema, if defined.
//  4. Assign identity and persist the event for retry redelivery.
//  5. Publish to the bus. Delivery happens asynchronously; callers never
//     block on endpoint I/O.
func (m *Manager) TriggerEvent(ctx context.Context, evt *event.Event) error {
	et, err := m.catalog.GetType(ctx, evt.Type)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrEventTypeNotFound, evt.Type)
	}

	if et.IsDeprecated {
		return fmt.Errorf("%w: %s", ErrEventTypeDeprecated, evt.Type)
	}

	if len(et.Definition.Schema) > 0 {
		if validateErr := m.validator.Validate(et.Definition.Schema, evt.Data); validateErr != nil {
			return fmt.Errorf("%w: %s", ErrPayloadValidationFailed, validateErr.Error())
		}
	}

	evt.Entity = entity.New()
	evt.ID = id.NewEventID()
	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now().UTC()
	}

	if err := m.store.CreateEvent(ctx, evt); err != nil {
		return fmt.Errorf("dispatch: persist event: %w", err)
	}

	if err := m.bus.Publish(ctx, evt); err != nil {
		return fmt.Errorf("dispatch: publish event: %w", err)
	}

	if m.metrics != nil {
		m.metrics.EventsPublishedTotal.Inc()
	}

	m.logger.DebugContext(ctx, "event published",
		"event_id", evt.ID,
		"type", evt.Type,
		"source", evt.SourceService)

	return nil
}

// consumeLoop pulls events off the bus and fans them out to matching
// subscriptions. A bus error backs off and retries; it never kills the loop.
func (m *Manager) consumeLoop(ctx context.Context) {
	sem := make(chan struct{}, m.config.Concurrency)

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		msgs, err := m.bus.Consume(ctx, m.config.ConsumeBatch)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			m.logger.ErrorContext(ctx, "bus consume failed", "error", err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(m.config.ConsumeBackoff):
			}
			continue
		}

		for _, msg := range msgs {
			m.fanOut(ctx, sem, msg)
		}
	}
}

// fanOut delivers one bus message to every matching active subscription and
// acknowledges it once all first attempts have completed. A failed attempt is
// recorded and retried by the worker; it never blocks other subscriptions.
func (m *Manager) fanOut(ctx context.Context, sem chan struct{}, msg bus.Message) {
	evt := msg.Event

	var span trace.Span
	if m.tracer != nil {
		ctx, span = m.tracer.StartEventSpan(ctx, evt.ID.String(), evt.Type)
		defer span.End()
	}

	subs, err := m.store.Resolve(ctx, evt.Type)
	if err != nil {
		m.logger.ErrorContext(ctx, "resolve subscriptions failed",
			"event_id", evt.ID, "type", evt.Type, "error", err)
		return // unacked: the bus will redeliver
	}

	var wg sync.WaitGroup
	for _, sub := range subs {
		select {
		case <-ctx.Done():
			wg.Wait()
			return
		case sem <- struct{}{}:
		}

		wg.Add(1)
		go func(sub *subscription.Subscription) {
			defer wg.Done()
			defer func() { <-sem }()
			if _, err := m.deliverySvc.Deliver(ctx, sub, evt, 1); err != nil {
				m.logger.ErrorContext(ctx, "delivery bookkeeping failed",
					"subscription_id", sub.ID,
					"event_id", evt.ID,
					"error", err)
			}
		}(sub)
	}
	wg.Wait()

	if err := m.bus.Ack(ctx, msg); err != nil {
		m.logger.ErrorContext(ctx, "bus ack failed",
			"event_id", evt.ID, "error", err)
	}

	m.logger.DebugContext(ctx, "event fanned out",
		"event_id", evt.ID,
		"type", evt.Type,
		"subscriptions", len(subs))
}

// CreateSubscription registers a new webhook subscription after probing the
// endpoint.
func (m *Manager) CreateSubscription(ctx context.Context, in subscription.Input) (*subscription.Subscription, error) {
	return m.subSvc.Create(ctx, in)
}

// GetSubscription returns a subscription by ID.
func (m *Manager) GetSubscription(ctx context.Context, subID id.ID) (*subscription.Subscription, error) {
	return m.subSvc.Get(ctx, subID)
}

// ListSubscriptions returns subscriptions matching the given options.
func (m *Manager) ListSubscriptions(ctx context.Context, opts subscription.ListOpts) ([]*subscription.Subscription, error) {
	return m.subSvc.List(ctx, opts)
}

// DeleteSubscription disables a subscription, keeping its delivery history.
func (m *Manager) DeleteSubscription(ctx context.Context, subID id.ID) error {
	return m.subSvc.Delete(ctx, subID)
}

// Subscriptions returns the subscription management service.
func (m *Manager) Subscriptions() *subscription.Service {
	return m.subSvc
}

// Catalog returns the event type catalog.
func (m *Manager) Catalog() *catalog.Catalog {
	return m.catalog
}

// Deliveries returns the delivery service for history queries.
func (m *Manager) Deliveries() *delivery.Service {
	return m.deliverySvc
}

// DLQ returns the dead letter queue service.
func (m *Manager) DLQ() *dlq.Service {
	return m.dlqSvc
}

// Store returns the underlying store.
func (m *Manager) Store() store.Store {
	return m.store
}

// Bus returns the event bus.
func (m *Manager) Bus() bus.Bus {
	return m.bus
}
