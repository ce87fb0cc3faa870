package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/coreledger/dispatch/catalog"
	"github.com/coreledger/dispatch/id"
	"github.com/coreledger/dispatch/internal/entity"
)

// eventTypeModel is the JSON representation stored in Redis. Event types are
// keyed by name because name lookup is the hot path; a small index maps the
// TypeID back to the name.
type eventTypeModel struct {
	ID           string            `json:"id"`
	Name         string            `json:"name"`
	Description  string            `json:"description"`
	Group        string            `json:"group"`
	Schema       json.RawMessage   `json:"schema,omitempty"`
	Version      string            `json:"version"`
	Example      json.RawMessage   `json:"example,omitempty"`
	IsDeprecated bool              `json:"deprecated"`
	DeprecatedAt *time.Time        `json:"deprecated_at,omitempty"`
	Metadata     map[string]string `json:"metadata,omitempty"`
	CreatedAt    time.Time         `json:"created_at"`
	UpdatedAt    time.Time         `json:"updated_at"`
}

func toEventTypeModel(et *catalog.EventType) *eventTypeModel {
	return &eventTypeModel{
		ID:           et.ID.String(),
		Name:         et.Definition.Name,
		Description:  et.Definition.Description,
		Group:        string(et.Definition.Group),
		Schema:       et.Definition.Schema,
		Version:      et.Definition.Version,
		Example:      et.Definition.Example,
		IsDeprecated: et.IsDeprecated,
		DeprecatedAt: et.DeprecatedAt,
		Metadata:     et.Metadata,
		CreatedAt:    et.CreatedAt,
		UpdatedAt:    et.UpdatedAt,
	}
}

func fromEventTypeModel(m *eventTypeModel) (*catalog.EventType, error) {
	etID, err := id.ParseEventTypeID(m.ID)
	if err != nil {
		return nil, fmt.Errorf("parse event type ID %q: %w", m.ID, err)
	}
	return &catalog.EventType{
		Entity: entity.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		ID: etID,
		Definition: catalog.Definition{
			Name:        m.Name,
			Description: m.Description,
			Group:       catalog.Group(m.Group),
			Schema:      m.Schema,
			Version:     m.Version,
			Example:     m.Example,
		},
		IsDeprecated: m.IsDeprecated,
		DeprecatedAt: m.DeprecatedAt,
		Metadata:     m.Metadata,
	}, nil
}

func (s *Store) RegisterType(ctx context.Context, et *catalog.EventType) error {
	m := toEventTypeModel(et)
	key := entityKey(prefixEventType, m.Name)

	// Upsert by name: preserve the original identity and creation time.
	var existing eventTypeModel
	err := s.getEntity(ctx, key, &existing)
	switch {
	case err == nil:
		m.ID = existing.ID
		m.CreatedAt = existing.CreatedAt
		m.UpdatedAt = now()
		etID, parseErr := id.ParseEventTypeID(existing.ID)
		if parseErr != nil {
			return fmt.Errorf("dispatch/redis: register type: %w", parseErr)
		}
		et.ID = etID
		et.CreatedAt = existing.CreatedAt
		et.UpdatedAt = m.UpdatedAt
	case isNotFound(err):
		// first registration
	default:
		return fmt.Errorf("dispatch/redis: register type: %w", err)
	}

	if err := s.setEntity(ctx, key, m); err != nil {
		return fmt.Errorf("dispatch/redis: register type: %w", err)
	}

	pipe := s.rdb.Pipeline()
	pipe.Set(ctx, idxEventTypeID+m.ID, m.Name, 0)
	pipe.ZAdd(ctx, zEventTypeAll, goredis.Z{Score: scoreFromTime(m.CreatedAt), Member: m.Name})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("dispatch/redis: register type indexes: %w", err)
	}
	return nil
}

func (s *Store) GetType(ctx context.Context, name string) (*catalog.EventType, error) {
	var m eventTypeModel
	if err := s.getEntity(ctx, entityKey(prefixEventType, name), &m); err != nil {
		if isNotFound(err) {
			return nil, catalog.ErrNotFound
		}
		return nil, fmt.Errorf("dispatch/redis: get type: %w", err)
	}
	return fromEventTypeModel(&m)
}

func (s *Store) GetTypeByID(ctx context.Context, etID id.ID) (*catalog.EventType, error) {
	name, err := s.rdb.Get(ctx, idxEventTypeID+etID.String()).Result()
	if err != nil {
		if isRedisNil(err) {
			return nil, catalog.ErrNotFound
		}
		return nil, fmt.Errorf("dispatch/redis: get type by id: %w", err)
	}
	return s.GetType(ctx, name)
}

func (s *Store) ListTypes(ctx context.Context, opts catalog.ListOpts) ([]*catalog.EventType, error) {
	names, err := s.rdb.ZRange(ctx, zEventTypeAll, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("dispatch/redis: list types: %w", err)
	}

	result := make([]*catalog.EventType, 0, len(names))
	for _, name := range names {
		var m eventTypeModel
		if err := s.getEntity(ctx, entityKey(prefixEventType, name), &m); err != nil {
			if isNotFound(err) {
				continue
			}
			return nil, err
		}
		if m.IsDeprecated && !opts.IncludeDeprecated {
			continue
		}
		if opts.Group != "" && catalog.Group(m.Group) != opts.Group {
			continue
		}
		et, err := fromEventTypeModel(&m)
		if err != nil {
			return nil, err
		}
		result = append(result, et)
	}

	return applyPagination(result, opts.Offset, opts.Limit), nil
}

func (s *Store) DeleteType(ctx context.Context, name string) error {
	key := entityKey(prefixEventType, name)

	var m eventTypeModel
	if err := s.getEntity(ctx, key, &m); err != nil {
		if isNotFound(err) {
			return catalog.ErrNotFound
		}
		return fmt.Errorf("dispatch/redis: delete type: %w", err)
	}

	ts := now()
	m.IsDeprecated = true
	m.DeprecatedAt = &ts
	m.UpdatedAt = ts

	if err := s.setEntity(ctx, key, &m); err != nil {
		return fmt.Errorf("dispatch/redis: delete type: %w", err)
	}
	return nil
}
