package delivery

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/coreledger/dispatch/event"
	"github.com/coreledger/dispatch/id"
	"github.com/coreledger/dispatch/internal/entity"
	"github.com/coreledger/dispatch/observability"
	"github.com/coreledger/dispatch/ratelimit"
	"github.com/coreledger/dispatch/subscription"
)

// SubscriptionStore is the slice of the subscription store the delivery
// pipeline needs.
type SubscriptionStore interface {
	GetSubscription(ctx context.Context, subID id.ID) (*subscription.Subscription, error)
	UpdateStats(ctx context.Context, subID id.ID, delivered bool) error
}

// DLQPusher receives deliveries that exhausted their retry budget.
type DLQPusher interface {
	PushFailed(ctx context.Context, d *Delivery, sub *subscription.Subscription, evt *event.Event) error
}

// ServiceConfig holds optional service collaborators.
type ServiceConfig struct {
	Metrics *observability.Metrics
	Tracer  *observability.Tracer

	// Limiter throttles deliveries per subscription when set.
	Limiter *ratelimit.Limiter
}

// Service executes delivery attempts: it sends, records the outcome, updates
// subscription stats and schedules retries or DLQ entries.
type Service struct {
	store   Store
	retries RetryStore
	subs    SubscriptionStore
	dlq     DLQPusher
	sender  *Sender
	config  ServiceConfig
	logger  *slog.Logger
}

// NewService creates a delivery service. dlq may be nil; exhausted deliveries
// are then only recorded.
func NewService(store Store, retries RetryStore, subs SubscriptionStore, dlq DLQPusher, sender *Sender, cfg ServiceConfig, logger *slog.Logger) *Service {
	if sender == nil {
		sender = NewSender(nil)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:   store,
		retries: retries,
		subs:    subs,
		dlq:     dlq,
		sender:  sender,
		config:  cfg,
		logger:  logger,
	}
}

// Deliver performs one delivery attempt of evt to sub. Every attempt produces
// a persisted record regardless of outcome. The returned error covers
// bookkeeping failures only; an unreachable endpoint is a recorded failure,
// not an error.
func (svc *Service) Deliver(ctx context.Context, sub *subscription.Subscription, evt *event.Event, attempt int) (*Delivery, error) {
	if attempt < 1 {
		attempt = 1
	}

	delID := id.NewDeliveryID()

	var span trace.Span
	if svc.config.Tracer != nil {
		ctx, span = svc.config.Tracer.StartDeliverySpan(ctx, delID.String(), evt.ID.String(), sub.ID.String(), attempt)
	}

	envelope, err := evt.Envelope()
	if err != nil {
		if span != nil {
			svc.config.Tracer.EndDeliverySpan(span, 0, 0, err.Error())
		}
		return nil, fmt.Errorf("serializing envelope: %w", err)
	}

	d := &Delivery{
		Entity:         entity.New(),
		ID:             delID,
		SubscriptionID: sub.ID,
		EventID:        evt.ID,
		Status:         StatusPending,
		AttemptNumber:  attempt,
		URL:            sub.URL,
		RequestBody:    envelope,
	}

	if svc.config.Limiter != nil && sub.RateLimit > 0 {
		if err := svc.config.Limiter.Wait(ctx, sub.ID.String(), sub.RateLimit); err != nil {
			if span != nil {
				svc.config.Tracer.EndDeliverySpan(span, 0, 0, err.Error())
			}
			return nil, fmt.Errorf("rate limit wait: %w", err)
		}
	}

	result := svc.sender.Send(ctx, sub, evt, d, envelope)

	d.ResponseStatus = result.StatusCode
	d.ResponseBody = result.Response
	d.DurationMs = result.DurationMs
	d.Error = result.Error
	d.Reason = result.Reason

	latencySeconds := float64(result.DurationMs) / 1000.0

	switch {
	case result.Success():
		now := time.Now().UTC()
		d.Status = StatusDelivered
		d.DeliveredAt = &now
		if svc.config.Metrics != nil {
			svc.config.Metrics.RecordDelivery("delivered", latencySeconds)
		}
		svc.logger.DebugContext(ctx, "delivered",
			"delivery_id", d.ID,
			"subscription_id", sub.ID,
			"event_type", evt.Type,
			"attempt", attempt,
			"status", result.StatusCode,
			"duration_ms", result.DurationMs)

	case attempt < sub.RetryAttempts:
		d.Status = StatusRetry
		next := NextRetryAt(time.Now(), sub.RetryBackoff, attempt)
		d.NextRetryAt = &next

		retry := &PendingRetry{
			DeliveryID:     d.ID,
			SubscriptionID: sub.ID,
			EventID:        evt.ID,
			AttemptNumber:  attempt + 1,
			FireAt:         next,
		}
		if err := svc.retries.ScheduleRetry(ctx, retry); err != nil {
			svc.logger.ErrorContext(ctx, "schedule retry failed",
				"delivery_id", d.ID, "error", err)
		} else if svc.config.Metrics != nil {
			svc.config.Metrics.PendingRetries.Inc()
		}
		if svc.config.Metrics != nil {
			svc.config.Metrics.RecordDelivery("retried", latencySeconds)
		}
		svc.logger.WarnContext(ctx, "delivery failed, retry scheduled",
			"delivery_id", d.ID,
			"subscription_id", sub.ID,
			"attempt", attempt,
			"reason", d.Reason,
			"next_retry_at", next)

	default:
		d.Status = StatusFailed
		if svc.dlq != nil {
			if dlqErr := svc.dlq.PushFailed(ctx, d, sub, evt); dlqErr != nil {
				svc.logger.ErrorContext(ctx, "push to DLQ failed",
					"delivery_id", d.ID, "error", dlqErr)
			} else if svc.config.Metrics != nil {
				svc.config.Metrics.DLQSize.Inc()
			}
		}
		if svc.config.Metrics != nil {
			svc.config.Metrics.RecordDelivery("failed", latencySeconds)
		}
		svc.logger.WarnContext(ctx, "delivery failed permanently",
			"delivery_id", d.ID,
			"subscription_id", sub.ID,
			"attempt", attempt,
			"reason", d.Reason,
			"error", result.Error)
	}

	if span != nil {
		svc.config.Tracer.EndDeliverySpan(span, d.ResponseStatus, d.DurationMs, d.Error)
	}

	if err := svc.store.CreateDelivery(ctx, d); err != nil {
		return nil, fmt.Errorf("recording delivery: %w", err)
	}

	// Stats count attempts made; failure_count counts failed attempts.
	if err := svc.subs.UpdateStats(ctx, sub.ID, result.Success()); err != nil {
		svc.logger.ErrorContext(ctx, "update subscription stats failed",
			"subscription_id", sub.ID, "error", err)
	}

	return d, nil
}

// Expire records a scheduled retry that fired after its subscription left the
// active state. No HTTP request is made and stats are untouched.
func (svc *Service) Expire(ctx context.Context, r *PendingRetry) (*Delivery, error) {
	d := &Delivery{
		Entity:         entity.New(),
		ID:             id.NewDeliveryID(),
		SubscriptionID: r.SubscriptionID,
		EventID:        r.EventID,
		Status:         StatusExpired,
		AttemptNumber:  r.AttemptNumber,
		Error:          "subscription no longer active",
	}
	if err := svc.store.CreateDelivery(ctx, d); err != nil {
		return nil, fmt.Errorf("recording expired delivery: %w", err)
	}
	svc.logger.InfoContext(ctx, "retry expired",
		"subscription_id", r.SubscriptionID,
		"event_id", r.EventID,
		"attempt", r.AttemptNumber)
	return d, nil
}

// Get returns a delivery record by ID.
func (svc *Service) Get(ctx context.Context, delID id.ID) (*Delivery, error) {
	return svc.store.GetDelivery(ctx, delID)
}

// List returns delivery history matching the given options.
func (svc *Service) List(ctx context.Context, opts ListOpts) ([]*Delivery, error) {
	return svc.store.ListDeliveries(ctx, opts)
}
