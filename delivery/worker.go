package delivery

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/coreledger/dispatch/event"
	"github.com/coreledger/dispatch/id"
	"github.com/coreledger/dispatch/subscription"
)

// EventStore is the slice of the event store the worker needs.
type EventStore interface {
	GetEvent(ctx context.Context, evtID id.ID) (*event.Event, error)
}

// WorkerConfig holds retry worker configuration.
type WorkerConfig struct {
	// Concurrency bounds in-flight retry attempts. Defaults to 10.
	Concurrency int

	// PollInterval is how often due retries are claimed. Defaults to 1s.
	PollInterval time.Duration

	// BatchSize is the maximum retries claimed per poll. Defaults to 50.
	BatchSize int
}

func (cfg WorkerConfig) withDefaults() WorkerConfig {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 10
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	return cfg
}

// Worker sweeps the retry schedule: it claims due retries, re-resolves the
// subscription and redelivers, or records the attempt as expired when the
// subscription has left the active state.
type Worker struct {
	svc     *Service
	retries RetryStore
	subs    SubscriptionStore
	events  EventStore
	config  WorkerConfig
	logger  *slog.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewWorker creates a retry worker.
func NewWorker(svc *Service, retries RetryStore, subs SubscriptionStore, events EventStore, cfg WorkerConfig, logger *slog.Logger) *Worker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Worker{
		svc:     svc,
		retries: retries,
		subs:    subs,
		events:  events,
		config:  cfg.withDefaults(),
		logger:  logger,
	}
}

// Start begins the poll loop.
func (w *Worker) Start(ctx context.Context) {
	ctx, w.cancel = context.WithCancel(ctx)

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		w.pollLoop(ctx)
	}()
}

// Stop cancels the poll loop and waits for in-flight retries to complete.
func (w *Worker) Stop(_ context.Context) {
	if w.cancel != nil {
		w.cancel()
	}
	w.wg.Wait()
}

func (w *Worker) pollLoop(ctx context.Context) {
	ticker := time.NewTicker(w.config.PollInterval)
	defer ticker.Stop()

	sem := make(chan struct{}, w.config.Concurrency)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			batch, err := w.retries.DueRetries(ctx, time.Now().UTC(), w.config.BatchSize)
			if err != nil {
				w.logger.ErrorContext(ctx, "claim due retries failed", "error", err)
				continue
			}

			for i, r := range batch {
				select {
				case <-ctx.Done():
					// Claiming removed the batch from the schedule. The
					// undispatched remainder must go back, or shutdown
					// would silently drop scheduled retries.
					w.requeue(batch[i:])
					return
				case sem <- struct{}{}:
				}

				w.wg.Add(1)
				go func(retry *PendingRetry) {
					defer w.wg.Done()
					defer func() { <-sem }()
					w.process(ctx, retry)
				}(r)
			}
		}
	}
}

// requeue returns claimed but undispatched retries to the schedule. Runs on
// a fresh context: the poll context is already cancelled at this point.
func (w *Worker) requeue(batch []*PendingRetry) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	for _, r := range batch {
		if err := w.retries.ScheduleRetry(ctx, r); err != nil {
			w.logger.Error("requeue claimed retry failed",
				"delivery_id", r.DeliveryID, "error", err)
		}
	}
}

// process redelivers one claimed retry.
func (w *Worker) process(ctx context.Context, r *PendingRetry) {
	if m := w.svc.config.Metrics; m != nil {
		m.PendingRetries.Dec()
	}

	sub, err := w.subs.GetSubscription(ctx, r.SubscriptionID)
	if err != nil || sub.Status != subscription.StatusActive {
		if err != nil && !errors.Is(err, subscription.ErrNotFound) {
			w.logger.ErrorContext(ctx, "get subscription failed",
				"subscription_id", r.SubscriptionID, "error", err)
			return
		}
		if _, expErr := w.svc.Expire(ctx, r); expErr != nil {
			w.logger.ErrorContext(ctx, "record expired retry failed",
				"subscription_id", r.SubscriptionID, "error", expErr)
		}
		return
	}

	evt, err := w.events.GetEvent(ctx, r.EventID)
	if err != nil {
		w.logger.ErrorContext(ctx, "get event failed",
			"event_id", r.EventID, "error", err)
		return
	}

	if _, err := w.svc.Deliver(ctx, sub, evt, r.AttemptNumber); err != nil {
		w.logger.ErrorContext(ctx, "retry delivery failed",
			"subscription_id", r.SubscriptionID,
			"event_id", r.EventID,
			"error", err)
	}
}
