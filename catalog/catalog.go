package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/coreledger/dispatch/id"
	"github.com/coreledger/dispatch/internal/entity"
)

// Catalog is the cached registry service for webhook event types.
// Reads go through an in-memory cache with a configurable TTL; the trigger
// path looks up the event type on every publish, so cache misses are rare.
type Catalog struct {
	store    Store
	cache    map[string]*EventType
	cacheTTL time.Duration
	lastLoad time.Time
	mu       sync.RWMutex
	logger   *slog.Logger
}

// Config configures the catalog service.
type Config struct {
	CacheTTL time.Duration
}

// NewCatalog creates a new Catalog backed by the given store.
func NewCatalog(store Store, cfg Config, logger *slog.Logger) *Catalog {
	if logger == nil {
		logger = slog.Default()
	}
	return &Catalog{
		store:    store,
		cache:    make(map[string]*EventType),
		cacheTTL: cfg.CacheTTL,
		logger:   logger,
	}
}

// RegisterType registers or updates an event type definition.
func (c *Catalog) RegisterType(ctx context.Context, def Definition, opts ...RegisterOption) (*EventType, error) {
	if def.Name == "" {
		return nil, fmt.Errorf("catalog: event type name is required")
	}
	if !def.Group.Valid() {
		return nil, fmt.Errorf("catalog: unknown event type group %q", def.Group)
	}

	ro := registerOptions{}
	for _, o := range opts {
		o(&ro)
	}

	et := &EventType{
		Entity:     entity.New(),
		ID:         id.NewEventTypeID(),
		Definition: def,
		Metadata:   ro.metadata,
	}

	if err := c.store.RegisterType(ctx, et); err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.cache[def.Name] = et
	c.mu.Unlock()

	return et, nil
}

// RegisterBuiltin upserts every built-in banking event type. Called once at
// Manager construction; safe to call on every process start.
func (c *Catalog) RegisterBuiltin(ctx context.Context) error {
	for _, def := range Builtin() {
		if _, err := c.RegisterType(ctx, def); err != nil {
			return fmt.Errorf("catalog: register builtin %q: %w", def.Name, err)
		}
	}
	return nil
}

// RegisterOption configures RegisterType behavior.
type RegisterOption func(*registerOptions)

type registerOptions struct {
	metadata map[string]string
}

// WithMetadata sets metadata on a registered event type.
func WithMetadata(m map[string]string) RegisterOption {
	return func(o *registerOptions) { o.metadata = m }
}

// GetType returns an event type by name, using the cache when available.
func (c *Catalog) GetType(ctx context.Context, name string) (*EventType, error) {
	c.mu.RLock()
	if et, ok := c.cache[name]; ok && !c.cacheExpired() {
		c.mu.RUnlock()
		return et, nil
	}
	c.mu.RUnlock()

	et, err := c.store.GetType(ctx, name)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.cache[name] = et
	c.mu.Unlock()

	return et, nil
}

// ListTypes returns all registered event types.
func (c *Catalog) ListTypes(ctx context.Context, opts ListOpts) ([]*EventType, error) {
	return c.store.ListTypes(ctx, opts)
}

// DeleteType soft-deletes (deprecates) an event type and removes it from cache.
func (c *Catalog) DeleteType(ctx context.Context, name string) error {
	if err := c.store.DeleteType(ctx, name); err != nil {
		return err
	}

	c.mu.Lock()
	delete(c.cache, name)
	c.mu.Unlock()

	return nil
}

// WarmCache preloads all non-deprecated types from the store.
func (c *Catalog) WarmCache(ctx context.Context) error {
	types, err := c.store.ListTypes(ctx, ListOpts{IncludeDeprecated: false})
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.cache = make(map[string]*EventType, len(types))
	for _, et := range types {
		c.cache[et.Definition.Name] = et
	}
	c.lastLoad = time.Now()
	return nil
}

// InvalidateCache clears the in-memory cache, forcing fresh reads from the store.
func (c *Catalog) InvalidateCache() {
	c.mu.Lock()
	c.cache = make(map[string]*EventType)
	c.lastLoad = time.Time{}
	c.mu.Unlock()
}

// cacheExpired returns true if the cache TTL has elapsed. Caller holds at least RLock.
func (c *Catalog) cacheExpired() bool {
	if c.cacheTTL == 0 {
		return false
	}
	return time.Since(c.lastLoad) > c.cacheTTL
}
