// Package subscription manages registered webhook delivery targets.
package subscription

import (
	"time"

	"github.com/coreledger/dispatch/catalog"
	"github.com/coreledger/dispatch/id"
	"github.com/coreledger/dispatch/internal/entity"
)

// Subscription represents a registered webhook delivery target.
type Subscription struct {
	entity.Entity

	// ID is the unique TypeID for this subscription.
	ID id.ID `json:"id"`

	// URL is the webhook delivery URL.
	URL string `json:"url"`

	// Description is a human-readable description of this subscription.
	Description string `json:"description,omitempty"`

	// Secret is the HMAC signing secret. Never serialized; it is returned
	// exactly once, in the creation response.
	Secret string `json:"-"`

	// EventTypes are the subscribed event type patterns. Never empty.
	EventTypes []string `json:"event_types"`

	// Headers are custom HTTP headers sent with each delivery.
	Headers map[string]string `json:"headers,omitempty"`

	// Timeout is the hard per-delivery HTTP timeout.
	Timeout time.Duration `json:"timeout"`

	// RetryAttempts is the maximum number of delivery attempts per event.
	RetryAttempts int `json:"retry_attempts"`

	// RetryBackoff is the exponential backoff multiplier between retries.
	// Always >= 1.0.
	RetryBackoff float64 `json:"retry_backoff"`

	// RateLimit caps deliveries per second to this subscription. 0 means
	// unlimited.
	RateLimit int `json:"rate_limit,omitempty"`

	// Status is the lifecycle state of this subscription.
	Status Status `json:"status"`

	// DeliveryCount is the cumulative number of delivery attempts made.
	DeliveryCount int64 `json:"delivery_count"`

	// FailureCount is the cumulative number of attempts that did not succeed.
	FailureCount int64 `json:"failure_count"`

	// LastDeliveryAt is when the most recent delivery attempt completed.
	LastDeliveryAt *time.Time `json:"last_delivery_at,omitempty"`

	// Metadata holds operator-defined key-value pairs.
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Matches reports whether the subscription's event type patterns cover the
// given event type, using the catalog's pattern rules.
func (s *Subscription) Matches(eventType string) bool {
	for _, pattern := range s.EventTypes {
		if catalog.Match(pattern, eventType) {
			return true
		}
	}
	return false
}

// ListOpts configures filtering and pagination for subscription listing.
type ListOpts struct {
	Offset int
	Limit  int
	Status *Status
}
