package delivery

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/coreledger/dispatch/event"
	"github.com/coreledger/dispatch/signature"
	"github.com/coreledger/dispatch/subscription"
)

const (
	maxResponseBody = 1024 // 1KB cap on response body storage

	userAgent = "Dispatch/1.0"
)

// Sender performs HTTP webhook delivery. The per-request timeout comes from
// the subscription, so a single Sender serves all subscriptions.
type Sender struct {
	client *http.Client
	signer *signature.Signer
}

// NewSender creates a sender signing with the given algorithm.
func NewSender(signer *signature.Signer) *Sender {
	if signer == nil {
		signer = signature.NewSigner(signature.SHA256)
	}
	return &Sender{
		// Timeouts are enforced per request via context.
		client: &http.Client{},
		signer: signer,
	}
}

// Send posts the envelope to the subscription's URL and returns the result.
// The envelope bytes are exactly what was signed; d records the headers sent.
func (s *Sender) Send(ctx context.Context, sub *subscription.Subscription, evt *event.Event, d *Delivery, envelope []byte) Result {
	timeout := sub.Timeout
	if timeout <= 0 {
		timeout = subscription.DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, sub.URL, bytes.NewReader(envelope))
	if err != nil {
		return Result{Error: fmt.Sprintf("create request: %v", err), Reason: ReasonOther}
	}

	headers := map[string]string{
		"Content-Type":        "application/json",
		"User-Agent":          userAgent,
		"X-Webhook-Event":     evt.Type,
		"X-Webhook-ID":        d.ID.String(),
		"X-Webhook-Timestamp": time.Now().UTC().Format(time.RFC3339),
	}
	for k, v := range sub.Headers {
		headers[k] = v
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	d.RequestHeaders = headers

	// The signature covers the exact bytes transmitted. It is never recorded
	// on the delivery.
	if sub.Secret != "" {
		req.Header.Set("X-Webhook-Signature", s.signer.Sign(envelope, sub.Secret))
	}

	start := time.Now()
	resp, err := s.client.Do(req)
	duration := int(time.Since(start).Milliseconds())

	if err != nil {
		res := Result{
			Error:      err.Error(),
			Reason:     classify(err),
			DurationMs: duration,
		}
		if res.Reason == ReasonTimeout {
			res.Error = fmt.Sprintf("Request timeout after %s", timeout)
		}
		return res
	}
	defer resp.Body.Close()

	respBody, readErr := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if readErr != nil {
		return Result{
			StatusCode: resp.StatusCode,
			Error:      fmt.Sprintf("read response: %v", readErr),
			Reason:     ReasonOther,
			DurationMs: duration,
		}
	}

	res := Result{
		StatusCode: resp.StatusCode,
		Response:   string(respBody),
		DurationMs: duration,
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		res.Error = fmt.Sprintf("endpoint returned %d", resp.StatusCode)
		res.Reason = ReasonBadStatus
	}
	return res
}

// classify maps a transport error to a failure reason.
func classify(err error) FailureReason {
	if errors.Is(err, context.DeadlineExceeded) {
		return ReasonTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ReasonTimeout
	}
	// Refused connections, DNS failures, resets.
	return ReasonConnection
}
