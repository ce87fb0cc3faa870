package dispatch

import (
	"time"

	"github.com/coreledger/dispatch/signature"
)

// Config holds the configuration for a Manager instance.
type Config struct {
	// Concurrency is the number of concurrent deliveries during fan-out and
	// retry processing.
	Concurrency int

	// ConsumeBatch is the maximum number of bus messages pulled per cycle.
	ConsumeBatch int

	// PollInterval is how often the retry worker checks for due retries.
	PollInterval time.Duration

	// RetryBatchSize is the maximum retries claimed per poll cycle.
	RetryBatchSize int

	// SignatureAlgorithm selects the HMAC algorithm for delivery signatures.
	SignatureAlgorithm signature.Algorithm

	// ConsumeBackoff is the wait after a bus consume error before retrying.
	ConsumeBackoff time.Duration

	// ShutdownTimeout is the maximum time to wait for in-flight deliveries
	// on shutdown.
	ShutdownTimeout time.Duration

	// CacheTTL is the TTL for the catalog's in-memory event type cache.
	// Zero means cached entries never expire.
	CacheTTL time.Duration
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Concurrency:        10,
		ConsumeBatch:       50,
		PollInterval:       1 * time.Second,
		RetryBatchSize:     50,
		SignatureAlgorithm: signature.SHA256,
		ConsumeBackoff:     2 * time.Second,
		ShutdownTimeout:    30 * time.Second,
		CacheTTL:           30 * time.Second,
	}
}
