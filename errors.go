package dispatch

import (
	"errors"

	"github.com/coreledger/dispatch/catalog"
	"github.com/coreledger/dispatch/delivery"
	"github.com/coreledger/dispatch/dlq"
	"github.com/coreledger/dispatch/event"
	"github.com/coreledger/dispatch/subscription"
)

// Sentinel errors returned by dispatch operations. Not-found errors are
// aliases of the sentinels owned by each subsystem, so errors.Is works
// against either name.
var (
	// ErrNoStore is returned when a Manager is created without a store.
	ErrNoStore = errors.New("dispatch: store is required")

	// ErrSubscriptionNotFound is returned when a subscription cannot be found.
	ErrSubscriptionNotFound = subscription.ErrNotFound

	// ErrEventTypeNotFound is returned when an event type is not registered
	// in the catalog.
	ErrEventTypeNotFound = catalog.ErrNotFound

	// ErrEventTypeDeprecated is returned when triggering an event with a
	// deprecated type.
	ErrEventTypeDeprecated = errors.New("dispatch: event type is deprecated")

	// ErrPayloadValidationFailed is returned when event data fails JSON
	// Schema validation.
	ErrPayloadValidationFailed = errors.New("dispatch: payload validation failed")

	// ErrEventNotFound is returned when an event cannot be found.
	ErrEventNotFound = event.ErrNotFound

	// ErrDeliveryNotFound is returned when a delivery cannot be found.
	ErrDeliveryNotFound = delivery.ErrNotFound

	// ErrDLQNotFound is returned when a DLQ entry cannot be found.
	ErrDLQNotFound = dlq.ErrNotFound

	// ErrStoreClosed is returned when a store operation is attempted after
	// the store is closed.
	ErrStoreClosed = errors.New("dispatch: store is closed")

	// ErrMigrationFailed is returned when a database migration fails.
	ErrMigrationFailed = errors.New("dispatch: migration failed")
)
