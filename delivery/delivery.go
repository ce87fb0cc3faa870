package delivery

import (
	"time"

	"github.com/coreledger/dispatch/id"
	"github.com/coreledger/dispatch/internal/entity"
)

// Status represents the outcome of a delivery attempt.
type Status string

const (
	// StatusPending indicates the attempt is in flight.
	StatusPending Status = "pending"

	// StatusDelivered indicates the endpoint acknowledged with a 2xx.
	StatusDelivered Status = "delivered"

	// StatusFailed indicates the attempt failed with no retries remaining.
	StatusFailed Status = "failed"

	// StatusRetry indicates the attempt failed and a retry is scheduled.
	StatusRetry Status = "retry"

	// StatusExpired indicates a scheduled retry fired after the subscription
	// was paused, disabled or removed. Terminal; never enters the DLQ.
	StatusExpired Status = "expired"
)

// Delivery is the audit record of a single delivery attempt. Every attempt
// produces its own record; attempts for the same event share
// (subscription_id, event_id) and carry increasing attempt numbers.
type Delivery struct {
	entity.Entity

	// ID is the unique TypeID for this attempt.
	ID id.ID `json:"id"`

	// SubscriptionID references the target subscription.
	SubscriptionID id.ID `json:"subscription_id"`

	// EventID references the event being delivered.
	EventID id.ID `json:"event_id"`

	// Status is the terminal state of this attempt (pending while in flight).
	Status Status `json:"status"`

	// AttemptNumber is 1 for the initial attempt, incrementing per retry.
	AttemptNumber int `json:"attempt_number"`

	// URL is the destination at the time of the attempt.
	URL string `json:"url"`

	// RequestHeaders are the headers sent, minus the signature.
	RequestHeaders map[string]string `json:"request_headers,omitempty"`

	// RequestBody is the exact envelope bytes transmitted.
	RequestBody []byte `json:"request_body,omitempty"`

	// ResponseStatus is the HTTP status code received, 0 on transport error.
	ResponseStatus int `json:"response_status,omitempty"`

	// ResponseBody is the response body, capped at 1KB.
	ResponseBody string `json:"response_body,omitempty"`

	// DurationMs is the wall-clock duration of the HTTP exchange.
	DurationMs int `json:"duration_ms,omitempty"`

	// Error is the failure message for unsuccessful attempts.
	Error string `json:"error,omitempty"`

	// Reason classifies the failure.
	Reason FailureReason `json:"reason,omitempty"`

	// NextRetryAt is the earliest time the next attempt may fire. Set only
	// when Status is retry.
	NextRetryAt *time.Time `json:"next_retry_at,omitempty"`

	// DeliveredAt is when the 2xx response was received.
	DeliveredAt *time.Time `json:"delivered_at,omitempty"`
}

// ListOpts configures filtering and pagination for delivery listing.
type ListOpts struct {
	Offset         int
	Limit          int
	Status         *Status
	SubscriptionID *id.ID
	EventID        *id.ID
}
