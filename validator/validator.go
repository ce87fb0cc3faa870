// Package validator probes candidate webhook endpoints before a subscription
// is accepted.
//
// A single synthetic POST confirms the URL is reachable, accepts POST, and
// (best-effort) handles signed payloads. Expected network failures are never
// surfaced as errors; every outcome is reported in the structured Result.
package validator

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/coreledger/dispatch/signature"
)

// DefaultTimeout bounds the validation probe.
const DefaultTimeout = 10 * time.Second

// probeEventType is the synthetic event type carried by the validation payload.
const probeEventType = "system.webhook_validation"

// Result is the structured outcome of an endpoint probe.
type Result struct {
	// Valid is true when the endpoint is reachable and accepts POST.
	Valid bool `json:"valid"`

	// Reachable is false on DNS, connection, or timeout failures.
	Reachable bool `json:"reachable"`

	// SupportsPost is true when the endpoint answered the probe with any
	// status below 500.
	SupportsPost bool `json:"supports_post"`

	// SupportsSignatures is true when a secret was supplied and the endpoint
	// returned 2xx for the signed probe. Best-effort: the endpoint cannot be
	// forced to prove it verified the signature.
	SupportsSignatures bool `json:"supports_signatures"`

	// ResponseTimeMs is the probe round-trip in milliseconds.
	ResponseTimeMs int64 `json:"response_time_ms"`

	// Error describes why the endpoint was unreachable, when it was.
	Error string `json:"error,omitempty"`
}

// Validator probes endpoint URLs with a synthetic signed payload.
type Validator struct {
	client *http.Client
}

// New creates a Validator with the given probe timeout.
// A zero timeout uses DefaultTimeout.
func New(timeout time.Duration) *Validator {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Validator{
		client: &http.Client{Timeout: timeout},
	}
}

// probePayload is the synthetic body sent to candidate endpoints.
type probePayload struct {
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
	Challenge string    `json:"challenge"`
}

// ValidateEndpoint sends one synthetic POST to url and classifies the outcome.
// When secret is non-empty the probe is signed the same way real deliveries
// are, so the receiver can exercise its verification path.
func (v *Validator) ValidateEndpoint(ctx context.Context, url, secret string) Result {
	body, err := json.Marshal(probePayload{
		EventType: probeEventType,
		Timestamp: time.Now().UTC(),
		Challenge: signature.GenerateSecret(),
	})
	if err != nil {
		return Result{Error: "marshal probe payload: " + err.Error()}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return Result{Error: "invalid URL: " + err.Error()}
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "dispatch-validator/1.0")
	req.Header.Set("X-Webhook-Event", probeEventType)
	if secret != "" {
		req.Header.Set("X-Webhook-Signature", signature.Sign(body, secret, signature.SHA256))
	}

	start := time.Now()
	resp, err := v.client.Do(req) //nolint:gosec // G704: probing a user-supplied webhook destination is the point.
	elapsed := time.Since(start).Milliseconds()

	if err != nil {
		res := Result{ResponseTimeMs: elapsed}
		var netErr interface{ Timeout() bool }
		switch {
		case errors.As(err, &netErr) && netErr.Timeout():
			res.Error = "Endpoint timeout"
		case errors.Is(err, context.DeadlineExceeded):
			res.Error = "Endpoint timeout"
		default:
			res.Error = err.Error()
		}
		return res
	}
	defer resp.Body.Close()

	res := Result{
		Reachable:      true,
		ResponseTimeMs: elapsed,
	}

	// Anything below 500 means the endpoint understood the POST, even if it
	// rejected this particular probe.
	if resp.StatusCode < http.StatusInternalServerError {
		res.SupportsPost = true
	}

	if secret != "" && resp.StatusCode >= 200 && resp.StatusCode < 300 {
		res.SupportsSignatures = true
	}

	res.Valid = res.Reachable && res.SupportsPost
	return res
}
