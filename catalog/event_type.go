package catalog

import (
	"time"

	"github.com/coreledger/dispatch/id"
	"github.com/coreledger/dispatch/internal/entity"
)

// EventType is the persisted entity for a registered webhook event type.
// It wraps Definition with identity and deprecation state.
type EventType struct {
	entity.Entity

	// ID is the unique TypeID for this event type.
	ID id.ID `json:"id"`

	// Definition contains the event type descriptor.
	Definition Definition `json:"definition"`

	// IsDeprecated indicates whether this event type has been soft-deleted.
	// Deprecated types are rejected at TriggerEvent but retained for history.
	IsDeprecated bool `json:"deprecated"`

	// DeprecatedAt is when the event type was deprecated.
	DeprecatedAt *time.Time `json:"deprecated_at,omitempty"`

	// Metadata holds operator-defined key-value pairs.
	Metadata map[string]string `json:"metadata,omitempty"`
}

// ListOpts configures filtering and pagination for event type listing.
type ListOpts struct {
	Offset            int
	Limit             int
	Group             Group
	IncludeDeprecated bool
}
