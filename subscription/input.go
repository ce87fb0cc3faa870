package subscription

import "time"

// Defaults applied when a creation request omits optional fields.
const (
	DefaultTimeout       = 30 * time.Second
	DefaultRetryAttempts = 3
	DefaultRetryBackoff  = 2.0
)

// Input is the creation/update payload for subscriptions.
type Input struct {
	// URL is the webhook delivery URL.
	URL string `json:"url"`

	// EventTypes are the subscribed event type patterns. Required on create.
	EventTypes []string `json:"events"`

	// Description is a human-readable description.
	Description string `json:"description,omitempty"`

	// Secret is the HMAC signing secret. Auto-generated if empty on create.
	Secret string `json:"secret,omitempty"`

	// Headers are custom HTTP headers sent with each delivery.
	Headers map[string]string `json:"headers,omitempty"`

	// TimeoutSeconds is the per-delivery HTTP timeout. Defaults to 30.
	TimeoutSeconds int `json:"timeout,omitempty"`

	// RetryAttempts is the maximum delivery attempts per event. Defaults to 3.
	RetryAttempts int `json:"retry_attempts,omitempty"`

	// RetryBackoff is the exponential backoff multiplier. Defaults to 2.0;
	// must be >= 1.0 when set.
	RetryBackoff float64 `json:"retry_backoff,omitempty"`

	// RateLimit caps deliveries per second. 0 means unlimited.
	RateLimit int `json:"rate_limit,omitempty"`

	// Metadata holds operator-defined key-value pairs.
	Metadata map[string]string `json:"metadata,omitempty"`
}

// timeout returns the effective per-delivery timeout.
func (in Input) timeout() time.Duration {
	if in.TimeoutSeconds <= 0 {
		return DefaultTimeout
	}
	return time.Duration(in.TimeoutSeconds) * time.Second
}

// retryAttempts returns the effective retry budget.
func (in Input) retryAttempts() int {
	if in.RetryAttempts <= 0 {
		return DefaultRetryAttempts
	}
	return in.RetryAttempts
}

// retryBackoff returns the effective backoff multiplier.
func (in Input) retryBackoff() float64 {
	if in.RetryBackoff == 0 {
		return DefaultRetryBackoff
	}
	return in.RetryBackoff
}
