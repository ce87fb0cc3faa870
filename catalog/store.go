package catalog

import (
	"context"
	"errors"

	"github.com/coreledger/dispatch/id"
)

// ErrNotFound is returned by stores when no event type matches.
var ErrNotFound = errors.New("event type not found")

// Store defines the persistence contract for the event type catalog.
type Store interface {
	// RegisterType creates or updates an event type definition (upsert by name).
	RegisterType(ctx context.Context, et *EventType) error

	// GetType returns an event type by name (e.g. "payment.completed").
	GetType(ctx context.Context, name string) (*EventType, error)

	// GetTypeByID returns an event type by its TypeID.
	GetTypeByID(ctx context.Context, etID id.ID) (*EventType, error)

	// ListTypes returns all registered event types, optionally filtered.
	ListTypes(ctx context.Context, opts ListOpts) ([]*EventType, error)

	// DeleteType soft-deletes (deprecates) an event type.
	DeleteType(ctx context.Context, name string) error
}
