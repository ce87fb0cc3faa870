package delivery

// FailureReason is a closed classification of why an attempt failed.
type FailureReason string

const (
	// ReasonNone means the attempt succeeded.
	ReasonNone FailureReason = ""

	// ReasonTimeout means the request exceeded the subscription's timeout.
	ReasonTimeout FailureReason = "timeout"

	// ReasonConnection means the endpoint could not be reached.
	ReasonConnection FailureReason = "connection_error"

	// ReasonBadStatus means the endpoint answered with a non-2xx status.
	ReasonBadStatus FailureReason = "bad_status"

	// ReasonOther covers request construction and response read failures.
	ReasonOther FailureReason = "other"
)

// Result holds the outcome of a single HTTP delivery attempt.
type Result struct {
	StatusCode int
	Response   string
	Error      string
	Reason     FailureReason
	DurationMs int
}

// Success reports whether the endpoint acknowledged the delivery.
func (r Result) Success() bool {
	return r.Reason == ReasonNone
}
