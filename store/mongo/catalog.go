package mongo

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/coreledger/dispatch/catalog"
	"github.com/coreledger/dispatch/id"
)

// RegisterType creates or updates an event type definition. Re-registering
// an existing name refreshes the definition and clears any deprecation;
// the original ID and creation time are kept.
func (s *Store) RegisterType(ctx context.Context, et *catalog.EventType) error {
	m := toEventTypeModel(et)

	_, err := s.mdb.NewUpdate(m).
		Filter(bson.M{"name": m.Name}).
		SetUpdate(bson.M{
			"$set": bson.M{
				"description":   m.Description,
				"group_name":    m.GroupName,
				"schema":        m.Schema,
				"version":       m.Version,
				"example":       m.Example,
				"metadata":      m.Metadata,
				"is_deprecated": false,
				"deprecated_at": nil,
				"updated_at":    m.UpdatedAt,
			},
			"$setOnInsert": bson.M{
				"_id":        m.ID,
				"name":       m.Name,
				"created_at": m.CreatedAt,
			},
		}).
		Upsert().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("dispatch/mongo: register type: %w", err)
	}

	return nil
}

// GetType returns an event type by name.
func (s *Store) GetType(ctx context.Context, name string) (*catalog.EventType, error) {
	var m eventTypeModel

	err := s.mdb.NewFind(&m).
		Filter(bson.M{"name": name}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, catalog.ErrNotFound
		}

		return nil, fmt.Errorf("dispatch/mongo: get type: %w", err)
	}

	return fromEventTypeModel(&m)
}

// GetTypeByID returns an event type by its TypeID.
func (s *Store) GetTypeByID(ctx context.Context, etID id.ID) (*catalog.EventType, error) {
	var m eventTypeModel

	err := s.mdb.NewFind(&m).
		Filter(bson.M{"_id": etID.String()}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, catalog.ErrNotFound
		}

		return nil, fmt.Errorf("dispatch/mongo: get type by id: %w", err)
	}

	return fromEventTypeModel(&m)
}

// ListTypes returns registered event types, optionally filtered.
func (s *Store) ListTypes(ctx context.Context, opts catalog.ListOpts) ([]*catalog.EventType, error) {
	var models []eventTypeModel

	filter := bson.M{}
	if !opts.IncludeDeprecated {
		filter["is_deprecated"] = false
	}

	if opts.Group != "" {
		filter["group_name"] = string(opts.Group)
	}

	q := s.mdb.NewFind(&models).
		Filter(filter).
		Sort(bson.D{{Key: "name", Value: 1}})

	if opts.Limit > 0 {
		q = q.Limit(int64(opts.Limit))
	}

	if opts.Offset > 0 {
		q = q.Skip(int64(opts.Offset))
	}

	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("dispatch/mongo: list types: %w", err)
	}

	result := make([]*catalog.EventType, 0, len(models))

	for i := range models {
		et, err := fromEventTypeModel(&models[i])
		if err != nil {
			return nil, err
		}

		result = append(result, et)
	}

	return result, nil
}

// DeleteType soft-deprecates an event type; existing events and deliveries
// referencing it stay intact.
func (s *Store) DeleteType(ctx context.Context, name string) error {
	t := now()

	res, err := s.mdb.NewUpdate((*eventTypeModel)(nil)).
		Filter(bson.M{"name": name, "is_deprecated": false}).
		Set("is_deprecated", true).
		Set("deprecated_at", t).
		Set("updated_at", t).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("dispatch/mongo: delete type: %w", err)
	}

	if res.MatchedCount() == 0 {
		return catalog.ErrNotFound
	}

	return nil
}
