package event

import (
	"context"
	"errors"

	"github.com/coreledger/dispatch/id"
)

// ErrNotFound is returned by stores when no event matches the given ID.
var ErrNotFound = errors.New("event not found")

// Store defines the persistence contract for webhook events.
type Store interface {
	// CreateEvent persists an event. Must be durable before returning.
	CreateEvent(ctx context.Context, evt *Event) error

	// GetEvent returns an event by ID.
	GetEvent(ctx context.Context, evtID id.ID) (*Event, error)

	// ListEvents returns events, optionally filtered by type or time range.
	ListEvents(ctx context.Context, opts ListOpts) ([]*Event, error)
}
