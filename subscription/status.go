package subscription

// Status represents the lifecycle state of a subscription.
type Status string

const (
	// StatusActive means the subscription receives deliveries.
	StatusActive Status = "active"

	// StatusPaused means deliveries are suspended by an operator and may resume.
	StatusPaused Status = "paused"

	// StatusDisabled means the subscription was soft-deleted.
	StatusDisabled Status = "disabled"

	// StatusFailed means the engine disabled the subscription after its
	// endpoint proved persistently undeliverable.
	StatusFailed Status = "failed"
)

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusActive, StatusPaused, StatusDisabled, StatusFailed:
		return true
	default:
		return false
	}
}
