package dlq

import (
	"context"
	"errors"
	"time"

	"github.com/coreledger/dispatch/id"
)

// ErrNotFound is returned by stores when no DLQ entry matches the given ID.
var ErrNotFound = errors.New("dlq entry not found")

// Store defines the persistence contract for the dead letter queue.
type Store interface {
	// Push adds a permanently failed delivery to the DLQ.
	Push(ctx context.Context, entry *Entry) error

	// ListDLQ returns DLQ entries, newest failures first.
	ListDLQ(ctx context.Context, opts ListOpts) ([]*Entry, error)

	// GetDLQ returns a DLQ entry by ID.
	GetDLQ(ctx context.Context, dlqID id.ID) (*Entry, error)

	// Replay schedules an immediate redelivery for a DLQ entry and marks it
	// replayed. The redelivery starts a fresh attempt sequence.
	Replay(ctx context.Context, dlqID id.ID) error

	// ReplayBulk replays all unreplayed entries that failed in [from, to].
	ReplayBulk(ctx context.Context, from, to time.Time) (int64, error)

	// Purge deletes DLQ entries created before the threshold.
	Purge(ctx context.Context, before time.Time) (int64, error)

	// CountDLQ returns the total number of DLQ entries.
	CountDLQ(ctx context.Context) (int64, error)
}
