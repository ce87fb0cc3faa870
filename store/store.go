// Package store defines the composite Store interface for all dispatch
// persistence.
//
// Each subsystem defines its own store interface and the aggregate Store
// composes them all, so backends implement one type and services depend only
// on the slice they use.
package store

import (
	"context"

	"github.com/coreledger/dispatch/catalog"
	"github.com/coreledger/dispatch/delivery"
	"github.com/coreledger/dispatch/dlq"
	"github.com/coreledger/dispatch/event"
	"github.com/coreledger/dispatch/subscription"
)

// Store is the aggregate persistence interface.
type Store interface {
	catalog.Store
	subscription.Store
	event.Store
	delivery.Store
	delivery.RetryStore
	dlq.Store

	// Migrate runs all schema migrations.
	Migrate(ctx context.Context) error

	// Ping checks backend connectivity.
	Ping(ctx context.Context) error

	// Close closes the store connection.
	Close() error
}
