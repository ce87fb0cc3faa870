package catalog_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/coreledger/dispatch/catalog"
	"github.com/coreledger/dispatch/store/memory"
)

func ctx() context.Context { return context.Background() }

func newCatalog(cfg catalog.Config) *catalog.Catalog {
	return catalog.NewCatalog(memory.New(), cfg, nil)
}

func TestCatalogRegisterAndGet(t *testing.T) {
	c := newCatalog(catalog.Config{})

	et, err := c.RegisterType(ctx(), catalog.Definition{
		Name:        "transaction.created",
		Description: "A transaction was posted",
		Group:       catalog.GroupTransaction,
	})
	if err != nil {
		t.Fatal(err)
	}
	if et.ID.String() == "" {
		t.Fatal("expected non-empty ID")
	}

	got, err := c.GetType(ctx(), "transaction.created")
	if err != nil {
		t.Fatal(err)
	}
	if got.Definition.Description != "A transaction was posted" {
		t.Fatalf("got description %q", got.Definition.Description)
	}
}

func TestCatalogRegisterValidation(t *testing.T) {
	c := newCatalog(catalog.Config{})

	if _, err := c.RegisterType(ctx(), catalog.Definition{Group: catalog.GroupTransaction}); err == nil {
		t.Fatal("expected error for missing name")
	}

	if _, err := c.RegisterType(ctx(), catalog.Definition{
		Name:  "x.y",
		Group: "nonsense",
	}); err == nil {
		t.Fatal("expected error for unknown group")
	}
}

func TestCatalogRegisterWithMetadata(t *testing.T) {
	c := newCatalog(catalog.Config{})

	et, err := c.RegisterType(ctx(), catalog.Definition{
		Name:  "transaction.created",
		Group: catalog.GroupTransaction,
	}, catalog.WithMetadata(map[string]string{"owner": "ledger-team"}))
	if err != nil {
		t.Fatal(err)
	}
	if et.Metadata["owner"] != "ledger-team" {
		t.Fatalf("expected metadata to be set, got %v", et.Metadata)
	}
}

func TestCatalogRegisterBuiltin(t *testing.T) {
	c := newCatalog(catalog.Config{})

	if err := c.RegisterBuiltin(ctx()); err != nil {
		t.Fatal(err)
	}

	// Registering twice must be idempotent.
	if err := c.RegisterBuiltin(ctx()); err != nil {
		t.Fatal(err)
	}

	types, err := c.ListTypes(ctx(), catalog.ListOpts{})
	if err != nil {
		t.Fatal(err)
	}
	if len(types) != len(catalog.Builtin()) {
		t.Fatalf("expected %d builtin types, got %d", len(catalog.Builtin()), len(types))
	}

	if _, err := c.GetType(ctx(), "transaction.created"); err != nil {
		t.Fatalf("expected transaction.created to be registered: %v", err)
	}
}

func TestCatalogDeleteType(t *testing.T) {
	c := newCatalog(catalog.Config{})

	if _, err := c.RegisterType(ctx(), catalog.Definition{
		Name:  "loan.approved",
		Group: catalog.GroupLoan,
	}); err != nil {
		t.Fatal(err)
	}

	if err := c.DeleteType(ctx(), "loan.approved"); err != nil {
		t.Fatal(err)
	}

	// Deprecated types still resolve by name; callers inspect IsDeprecated.
	got, err := c.GetType(ctx(), "loan.approved")
	if err != nil {
		t.Fatal(err)
	}
	if !got.IsDeprecated {
		t.Fatal("expected type to be deprecated")
	}

	if err := c.DeleteType(ctx(), "never.registered"); !errors.Is(err, catalog.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

// countingStore counts reads that reach the backing store.
type countingStore struct {
	*memory.Store
	getCalls int
}

func (s *countingStore) GetType(ctx context.Context, name string) (*catalog.EventType, error) {
	s.getCalls++
	return s.Store.GetType(ctx, name)
}

func TestCatalogCacheAvoidsStoreReads(t *testing.T) {
	store := &countingStore{Store: memory.New()}
	// Zero TTL: cached entries never expire.
	c := catalog.NewCatalog(store, catalog.Config{}, nil)

	if _, err := c.RegisterType(ctx(), catalog.Definition{
		Name:  "transaction.created",
		Group: catalog.GroupTransaction,
	}); err != nil {
		t.Fatal(err)
	}

	for range 5 {
		if _, err := c.GetType(ctx(), "transaction.created"); err != nil {
			t.Fatal(err)
		}
	}

	// RegisterType primes the cache, so no read should hit the store.
	if store.getCalls != 0 {
		t.Fatalf("expected 0 store reads, got %d", store.getCalls)
	}
}

func TestCatalogInvalidateCache(t *testing.T) {
	store := &countingStore{Store: memory.New()}
	c := catalog.NewCatalog(store, catalog.Config{}, nil)

	if _, err := c.RegisterType(ctx(), catalog.Definition{
		Name:  "transaction.created",
		Group: catalog.GroupTransaction,
	}); err != nil {
		t.Fatal(err)
	}

	c.InvalidateCache()

	// After invalidation the next read goes to the store and re-populates.
	if _, err := c.GetType(ctx(), "transaction.created"); err != nil {
		t.Fatal(err)
	}
	if store.getCalls != 1 {
		t.Fatalf("expected 1 store read after invalidation, got %d", store.getCalls)
	}

	if _, err := c.GetType(ctx(), "transaction.created"); err != nil {
		t.Fatal(err)
	}
	if store.getCalls != 1 {
		t.Fatalf("expected cache hit on second read, got %d store reads", store.getCalls)
	}
}

func TestCatalogWarmCache(t *testing.T) {
	store := &countingStore{Store: memory.New()}
	c := catalog.NewCatalog(store, catalog.Config{CacheTTL: time.Minute}, nil)

	if err := c.RegisterBuiltin(ctx()); err != nil {
		t.Fatal(err)
	}

	c.InvalidateCache()
	if err := c.WarmCache(ctx()); err != nil {
		t.Fatal(err)
	}

	// All warmed entries are served from memory.
	for _, def := range catalog.Builtin() {
		if _, err := c.GetType(ctx(), def.Name); err != nil {
			t.Fatalf("expected %q in warmed cache: %v", def.Name, err)
		}
	}
	if store.getCalls != 0 {
		t.Fatalf("expected 0 store reads after warm, got %d", store.getCalls)
	}
}
