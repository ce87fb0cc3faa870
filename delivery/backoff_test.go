package delivery

import (
	"testing"
	"time"
)

func TestRetryDelayExponential(t *testing.T) {
	cases := []struct {
		backoff float64
		attempt int
		want    time.Duration
	}{
		{2.0, 1, 2 * time.Second},
		{2.0, 2, 4 * time.Second},
		{2.0, 3, 8 * time.Second},
		{3.0, 2, 9 * time.Second},
		{1.0, 5, 1 * time.Second},
	}
	for _, tc := range cases {
		if got := retryDelay(tc.backoff, tc.attempt); got != tc.want {
			t.Errorf("retryDelay(%v, %d) = %v, want %v", tc.backoff, tc.attempt, got, tc.want)
		}
	}
}

func TestRetryDelayClamped(t *testing.T) {
	// 2^20 seconds is far past the cap.
	if got := retryDelay(2.0, 20); got != maxRetryDelay {
		t.Fatalf("expected clamp to %v, got %v", maxRetryDelay, got)
	}
	// Extreme multipliers must not overflow into negative durations.
	if got := retryDelay(1000.0, 50); got != maxRetryDelay {
		t.Fatalf("expected clamp to %v, got %v", maxRetryDelay, got)
	}
}

func TestRetryDelayMonotone(t *testing.T) {
	prev := time.Duration(0)
	for attempt := 1; attempt <= 30; attempt++ {
		d := retryDelay(2.0, attempt)
		if d < prev {
			t.Fatalf("delay decreased at attempt %d: %v < %v", attempt, d, prev)
		}
		prev = d
	}
}

func TestRetryDelayFloorsInvalidInput(t *testing.T) {
	if got := retryDelay(0.5, 1); got != time.Second {
		t.Fatalf("sub-1.0 backoff should floor to 1s, got %v", got)
	}
	if got := retryDelay(2.0, 0); got != 2*time.Second {
		t.Fatalf("attempt 0 should floor to attempt 1, got %v", got)
	}
}

func TestNextRetryAtNeverEarlier(t *testing.T) {
	now := time.Now()
	at := NextRetryAt(now, 2.0, 1)
	if at.Before(now.Add(2 * time.Second)) {
		t.Fatalf("next retry %v is earlier than the contract allows", at)
	}
}
