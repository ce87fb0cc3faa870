package delivery

import (
	"math"
	"time"
)

// maxRetryDelay caps exponential growth so late retries still fire within a
// working day.
const maxRetryDelay = 6 * time.Hour

// retryDelay returns the wait before the attempt following failedAttempt,
// using the subscription's backoff multiplier: backoff^failedAttempt seconds,
// capped at maxRetryDelay.
func retryDelay(backoff float64, failedAttempt int) time.Duration {
	if backoff < 1.0 {
		backoff = 1.0
	}
	if failedAttempt < 1 {
		failedAttempt = 1
	}

	secs := math.Pow(backoff, float64(failedAttempt))
	d := time.Duration(secs * float64(time.Second))
	if d > maxRetryDelay || d < 0 {
		return maxRetryDelay
	}
	return d
}

// NextRetryAt returns the earliest time the attempt after failedAttempt may
// fire. Delivery may happen later than this under load, never earlier.
func NextRetryAt(now time.Time, backoff float64, failedAttempt int) time.Time {
	return now.UTC().Add(retryDelay(backoff, failedAttempt))
}
