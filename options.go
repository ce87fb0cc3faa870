package dispatch

import (
	"log/slog"
	"time"

	"github.com/coreledger/dispatch/bus"
	"github.com/coreledger/dispatch/observability"
	"github.com/coreledger/dispatch/signature"
	"github.com/coreledger/dispatch/store"
	"github.com/coreledger/dispatch/subscription"
)

// Option configures a Manager instance.
type Option func(*Manager) error

// WithStore sets the persistence backend for the Manager instance.
func WithStore(s store.Store) Option {
	return func(m *Manager) error {
		m.store = s
		return nil
	}
}

// WithBus sets the event bus. Defaults to an in-process bus.
func WithBus(b bus.Bus) Option {
	return func(m *Manager) error {
		m.bus = b
		return nil
	}
}

// WithLogger sets the structured logger for the Manager instance.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) error {
		m.logger = logger
		return nil
	}
}

// WithProber sets the endpoint prober run before a subscription is accepted.
// Pass nil to disable probing (tests, air-gapped environments).
func WithProber(p subscription.Prober) Option {
	return func(m *Manager) error {
		m.prober = p
		m.proberSet = true
		return nil
	}
}

// WithMetrics sets the metric instruments for the Manager instance.
func WithMetrics(metrics *observability.Metrics) Option {
	return func(m *Manager) error {
		m.metrics = metrics
		return nil
	}
}

// WithTracer sets the OpenTelemetry tracer for the Manager instance.
func WithTracer(tracer *observability.Tracer) Option {
	return func(m *Manager) error {
		m.tracer = tracer
		return nil
	}
}

// WithConcurrency sets the number of concurrent deliveries.
func WithConcurrency(n int) Option {
	return func(m *Manager) error {
		m.config.Concurrency = n
		return nil
	}
}

// WithConsumeBatch sets the maximum bus messages pulled per cycle.
func WithConsumeBatch(n int) Option {
	return func(m *Manager) error {
		m.config.ConsumeBatch = n
		return nil
	}
}

// WithPollInterval sets how often the retry worker checks for due retries.
func WithPollInterval(d time.Duration) Option {
	return func(m *Manager) error {
		m.config.PollInterval = d
		return nil
	}
}

// WithRetryBatchSize sets the maximum retries claimed per poll cycle.
func WithRetryBatchSize(n int) Option {
	return func(m *Manager) error {
		m.config.RetryBatchSize = n
		return nil
	}
}

// WithSignatureAlgorithm sets the HMAC algorithm for delivery signatures.
func WithSignatureAlgorithm(alg signature.Algorithm) Option {
	return func(m *Manager) error {
		m.config.SignatureAlgorithm = alg
		return nil
	}
}

// WithShutdownTimeout sets the maximum time to wait for in-flight deliveries
// on shutdown.
func WithShutdownTimeout(d time.Duration) Option {
	return func(m *Manager) error {
		m.config.ShutdownTimeout = d
		return nil
	}
}

// WithCacheTTL sets the TTL for the catalog's in-memory event type cache.
func WithCacheTTL(d time.Duration) Option {
	return func(m *Manager) error {
		m.config.CacheTTL = d
		return nil
	}
}
