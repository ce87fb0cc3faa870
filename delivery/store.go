package delivery

import (
	"context"
	"errors"

	"github.com/coreledger/dispatch/id"
)

// ErrNotFound is returned by stores when no delivery matches the given ID.
var ErrNotFound = errors.New("delivery not found")

// Store defines the persistence contract for delivery records.
type Store interface {
	// CreateDelivery persists a delivery attempt record.
	CreateDelivery(ctx context.Context, d *Delivery) error

	// GetDelivery returns a delivery by ID.
	GetDelivery(ctx context.Context, delID id.ID) (*Delivery, error)

	// ListDeliveries returns delivery history, newest first.
	ListDeliveries(ctx context.Context, opts ListOpts) ([]*Delivery, error)
}
