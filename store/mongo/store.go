// Package mongo implements the dispatch store on MongoDB via Grove ORM.
//
// Delivery stats are updated with $inc so concurrent workers never lose
// increments, and due retries are claimed with FindOneAndDelete so a retry
// fires on exactly one worker.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	mongod "go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/mongodriver"

	dstore "github.com/coreledger/dispatch/store"
)

// Collection name constants.
const (
	colEventTypes    = "dispatch_event_types"
	colSubscriptions = "dispatch_subscriptions"
	colEvents        = "dispatch_events"
	colDeliveries    = "dispatch_deliveries"
	colRetries       = "dispatch_retries"
	colDLQ           = "dispatch_dlq"
)

// compile-time interface check
var _ dstore.Store = (*Store)(nil)

// Store implements store.Store using MongoDB via Grove ORM.
type Store struct {
	db  *grove.DB
	mdb *mongodriver.MongoDB
}

// New creates a new MongoDB store backed by Grove ORM.
func New(db *grove.DB) *Store {
	return &Store{
		db:  db,
		mdb: mongodriver.Unwrap(db),
	}
}

// DB returns the underlying grove database for direct access.
func (s *Store) DB() *grove.DB { return s.db }

// Migrate creates indexes for all dispatch collections.
func (s *Store) Migrate(ctx context.Context) error {
	indexes := migrationIndexes()

	for col, models := range indexes {
		if len(models) == 0 {
			continue
		}

		_, err := s.mdb.Collection(col).Indexes().CreateMany(ctx, models)
		if err != nil {
			return fmt.Errorf("dispatch/mongo: migrate %s indexes: %w", col, err)
		}
	}

	return nil
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// now returns the current UTC time.
func now() time.Time {
	return time.Now().UTC()
}

// isNoDocuments checks for the driver's no-documents sentinel.
func isNoDocuments(err error) bool {
	return errors.Is(err, mongod.ErrNoDocuments)
}

// migrationIndexes returns the index definitions for all dispatch collections.
func migrationIndexes() map[string][]mongod.IndexModel {
	return map[string][]mongod.IndexModel{
		colEventTypes: {
			{
				Keys:    bson.D{{Key: "name", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
			{Keys: bson.D{{Key: "group_name", Value: 1}}},
			{Keys: bson.D{{Key: "created_at", Value: -1}}},
		},
		colSubscriptions: {
			{Keys: bson.D{{Key: "status", Value: 1}}},
			{Keys: bson.D{{Key: "created_at", Value: 1}}},
		},
		colEvents: {
			{Keys: bson.D{{Key: "type", Value: 1}, {Key: "occurred_at", Value: -1}}},
			{Keys: bson.D{{Key: "occurred_at", Value: -1}}},
		},
		colDeliveries: {
			{Keys: bson.D{{Key: "subscription_id", Value: 1}, {Key: "created_at", Value: -1}}},
			{Keys: bson.D{{Key: "event_id", Value: 1}}},
			{Keys: bson.D{{Key: "status", Value: 1}}},
		},
		colRetries: {
			{Keys: bson.D{{Key: "fire_at", Value: 1}}},
		},
		colDLQ: {
			{Keys: bson.D{{Key: "subscription_id", Value: 1}, {Key: "failed_at", Value: -1}}},
			{Keys: bson.D{{Key: "failed_at", Value: -1}}},
		},
	}
}
