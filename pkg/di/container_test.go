package di

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/goliatone/go-entitylist/cache"
	"github.com/goliatone/go-entitylist/entitylist"
	"github.com/goliatone/go-entitylist/internal/cacheinfra"
	"github.com/goliatone/go-entitylist/query"
	"github.com/goliatone/go-entitylist/store/memstore"
)

func contactsConfig() entitylist.Config {
	cfg := entitylist.DefaultConfig("contacts")
	cfg.PageSize = 2
	cfg.Sort = query.By("name", query.Asc)
	return cfg
}

func seedContacts() *memstore.Store {
	st := memstore.New()
	st.Insert("contacts",
		query.Record{"id": "c1", "name": "Ada"},
		query.Record{"id": "c2", "name": "Brian"},
		query.Record{"id": "c3", "name": "Chen"},
	)
	st.Insert("deals", query.Record{"id": "d1", "name": "Renewal"})
	return st
}

func TestNewContainer(t *testing.T) {
	config := cache.ResultCacheConfig{
		Lists: cache.Config{
			Capacity:           1000,
			NumShards:          16,
			TTL:                2 * time.Minute,
			EvictionPercentage: 10,
		},
		Searches: cache.Config{
			Capacity:           500,
			NumShards:          16,
			TTL:                20 * time.Second,
			EvictionPercentage: 10,
		},
	}

	container, err := NewContainer(config)
	if err != nil {
		t.Fatalf("NewContainer() failed: %v", err)
	}
	defer container.Close()

	if container.Cache() == nil {
		t.Error("Container should have a non-nil result cache")
	}
	if container.Logger() == nil {
		t.Error("Container should have a non-nil logger")
	}

	stored := container.Config()
	if stored.Lists.TTL != config.Lists.TTL {
		t.Errorf("Expected list TTL %v, got %v", config.Lists.TTL, stored.Lists.TTL)
	}
	if stored.Searches.Capacity != config.Searches.Capacity {
		t.Errorf("Expected search capacity %d, got %d", config.Searches.Capacity, stored.Searches.Capacity)
	}
}

func TestNewContainerWithDefaults(t *testing.T) {
	container, err := NewContainerWithDefaults()
	if err != nil {
		t.Fatalf("NewContainerWithDefaults() failed: %v", err)
	}
	defer container.Close()

	config := container.Config()
	if config.Lists.TTL != cache.DefaultListTTL {
		t.Errorf("Expected default list TTL %v, got %v", cache.DefaultListTTL, config.Lists.TTL)
	}
	if config.Searches.TTL != cache.DefaultSearchTTL {
		t.Errorf("Expected default search TTL %v, got %v", cache.DefaultSearchTTL, config.Searches.TTL)
	}
}

func TestNewContainer_InvalidConfig(t *testing.T) {
	config := cache.DefaultResultCacheConfig()
	config.Lists.Capacity = 0

	_, err := NewContainer(config)
	if err == nil {
		t.Fatal("NewContainer() should fail with invalid config")
	}

	var cfgErr *cacheinfra.ConfigError
	if !errors.As(err, &cfgErr) {
		t.Errorf("Expected *cacheinfra.ConfigError, got %T", err)
	}
}

func TestContainerSingletonBehavior(t *testing.T) {
	container, err := NewContainerWithDefaults()
	if err != nil {
		t.Fatalf("NewContainerWithDefaults() failed: %v", err)
	}
	defer container.Close()

	if container.Cache() != container.Cache() {
		t.Error("Cache() should return the same instance")
	}
}

func TestContainer_ListsShareCache(t *testing.T) {
	container, err := NewContainerWithDefaults()
	if err != nil {
		t.Fatalf("NewContainerWithDefaults() failed: %v", err)
	}
	defer container.Close()

	ctx := context.Background()
	st := seedContacts()

	first, err := container.NewList(st, contactsConfig())
	if err != nil {
		t.Fatalf("NewList() failed: %v", err)
	}
	first.Load(ctx, false)
	if first.State().FromCache {
		t.Error("First list should load from the store")
	}

	second, err := container.NewList(st, contactsConfig())
	if err != nil {
		t.Fatalf("NewList() failed: %v", err)
	}
	second.Load(ctx, false)

	s := second.State()
	if !s.FromCache {
		t.Error("Second list should reuse the cached window")
	}
	if len(s.Records) != 2 || s.Records[0].ID() != "c1" {
		t.Errorf("Unexpected records %v", s.Records)
	}
}

func TestContainer_InvalidateCollectionReloadsLists(t *testing.T) {
	container, err := NewContainerWithDefaults()
	if err != nil {
		t.Fatalf("NewContainerWithDefaults() failed: %v", err)
	}
	defer container.Close()

	ctx := context.Background()
	st := seedContacts()

	contacts, err := container.NewList(st, contactsConfig())
	if err != nil {
		t.Fatalf("NewList() failed: %v", err)
	}
	dealsCfg := contactsConfig()
	dealsCfg.Collection = "deals"
	deals, err := container.NewList(st, dealsCfg)
	if err != nil {
		t.Fatalf("NewList() failed: %v", err)
	}

	contacts.Load(ctx, true)
	deals.Load(ctx, true)

	st.Insert("contacts", query.Record{"id": "c0", "name": "Aaron"})
	st.Insert("deals", query.Record{"id": "d0", "name": "Expansion"})

	if err := container.InvalidateCollection(ctx, "contacts"); err != nil {
		t.Fatalf("InvalidateCollection() failed: %v", err)
	}

	if got := contacts.State().Records; len(got) == 0 || got[0].ID() != "c0" {
		t.Errorf("Contacts list was not reloaded: %v", got)
	}
	if got := deals.State().Records; len(got) != 1 || got[0].ID() != "d1" {
		t.Errorf("Deals list should be untouched: %v", got)
	}
	if got := deals.State().TotalCount; got == nil || *got != 1 {
		t.Errorf("Deals total should still be the cached count, got %v", got)
	}
}

func TestContainer_Close(t *testing.T) {
	container, err := NewContainerWithDefaults()
	if err != nil {
		t.Fatalf("NewContainerWithDefaults() failed: %v", err)
	}

	if _, err := container.NewList(seedContacts(), contactsConfig()); err != nil {
		t.Fatalf("NewList() failed: %v", err)
	}
	if err := container.Close(); err != nil {
		t.Fatalf("Close() failed: %v", err)
	}
	if got := container.Lists("contacts"); got != 0 {
		t.Errorf("Lists() after Close = %d, want 0", got)
	}
	if err := container.Close(); err != nil {
		t.Errorf("Second Close() failed: %v", err)
	}
	if _, err := container.NewList(seedContacts(), contactsConfig()); err == nil {
		t.Error("NewList() should fail after Close")
	}
}

func TestContainer_ClosedListIsForgotten(t *testing.T) {
	ctx := context.Background()
	container, err := NewContainerWithDefaults()
	if err != nil {
		t.Fatalf("NewContainerWithDefaults() failed: %v", err)
	}
	defer container.Close()

	st := seedContacts()
	a, err := container.NewList(st, contactsConfig())
	if err != nil {
		t.Fatalf("NewList() failed: %v", err)
	}
	b, err := container.NewList(st, contactsConfig())
	if err != nil {
		t.Fatalf("NewList() failed: %v", err)
	}
	if got := container.Lists("contacts"); got != 2 {
		t.Fatalf("Lists() = %d, want 2", got)
	}

	a.Close()
	if got := container.Lists("contacts"); got != 1 {
		t.Errorf("Lists() after closing one = %d, want 1", got)
	}

	if err := container.InvalidateCollection(ctx, "contacts"); err != nil {
		t.Fatalf("InvalidateCollection() failed: %v", err)
	}
	if len(b.State().Records) != 2 {
		t.Errorf("open list records = %d, want 2", len(b.State().Records))
	}

	b.Close()
	if got := container.Lists("contacts"); got != 0 {
		t.Errorf("Lists() after closing all = %d, want 0", got)
	}
}

func TestContainer_NewListInvalidConfig(t *testing.T) {
	container, err := NewContainerWithDefaults()
	if err != nil {
		t.Fatalf("NewContainerWithDefaults() failed: %v", err)
	}
	defer container.Close()

	cfg := contactsConfig()
	cfg.Collection = ""
	if _, err := container.NewList(seedContacts(), cfg); err == nil {
		t.Error("NewList() should fail without a collection")
	}
}
