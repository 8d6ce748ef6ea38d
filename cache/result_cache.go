package cache

import (
	"context"
	"time"

	"github.com/puzpuzpuz/xsync/v3"

	"github.com/goliatone/go-entitylist/query"
)

// Entry is a cached page window or search result set.
type Entry struct {
	Records   []query.Record
	Cursor    query.Cursor
	HasMore   bool
	FetchedAt time.Time
}

// Stale reports whether e is older than ttl at now.
func (e Entry) Stale(now time.Time, ttl time.Duration) bool {
	return now.Sub(e.FetchedAt) > ttl
}

func (e Entry) clone() Entry {
	e.Records = append([]query.Record(nil), e.Records...)
	return e
}

// Stats summarizes lookups against a ResultCache.
type Stats struct {
	Hits    int64
	Misses  int64
	HitRate float64
}

// Option configures a ResultCache.
type Option func(*ResultCache)

// WithClock overrides the clock used to stamp and age entries.
func WithClock(now func() time.Time) Option {
	return func(c *ResultCache) {
		if now != nil {
			c.now = now
		}
	}
}

// WithKeySerializer overrides the serializer used to derive canonical keys.
func WithKeySerializer(serializer KeySerializer) Option {
	return func(c *ResultCache) {
		c.keys = NewKeys(serializer)
	}
}

// ResultCache stores accumulated page windows keyed by spec and search
// results keyed by (collection, term, fields). Entries older than their TTL
// are treated as absent. It is safe for concurrent use.
type ResultCache struct {
	lists     CacheService
	searches  CacheService
	listTTL   time.Duration
	searchTTL time.Duration
	keys      Keys
	now       func() time.Time
	hits      *xsync.Counter
	misses    *xsync.Counter
}

// NewResultCache builds a ResultCache backed by two sturdyc stores.
func NewResultCache(cfg ResultCacheConfig, opts ...Option) (*ResultCache, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	lists, err := NewCacheService(cfg.Lists)
	if err != nil {
		return nil, err
	}
	searches, err := NewCacheService(cfg.Searches)
	if err != nil {
		return nil, err
	}
	return NewResultCacheWithServices(lists, searches, cfg.Lists.TTL, cfg.Searches.TTL, opts...), nil
}

// NewResultCacheWithServices builds a ResultCache over caller supplied stores.
func NewResultCacheWithServices(lists, searches CacheService, listTTL, searchTTL time.Duration, opts ...Option) *ResultCache {
	c := &ResultCache{
		lists:     lists,
		searches:  searches,
		listTTL:   listTTL,
		searchTTL: searchTTL,
		keys:      NewKeys(nil),
		now:       time.Now,
		hits:      xsync.NewCounter(),
		misses:    xsync.NewCounter(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Now returns the cache clock reading.
func (c *ResultCache) Now() time.Time {
	return c.now()
}

// Keys returns the key builder used by the cache.
func (c *ResultCache) Keys() Keys {
	return c.keys
}

// Get returns the fresh entry for spec.
func (c *ResultCache) Get(ctx context.Context, spec query.Spec) (Entry, bool) {
	return c.lookup(ctx, c.lists, c.keys.List(spec), c.listTTL)
}

// Put stores entry for spec. A zero FetchedAt is stamped with the cache clock.
func (c *ResultCache) Put(ctx context.Context, spec query.Spec, entry Entry) error {
	return c.store(ctx, c.lists, c.keys.List(spec), entry)
}

// Invalidate drops the window and count of spec, or every entry when spec is nil.
func (c *ResultCache) Invalidate(ctx context.Context, spec *query.Spec) error {
	if spec == nil {
		if err := c.lists.DeleteByPrefix(ctx, ""); err != nil {
			return err
		}
		return c.searches.DeleteByPrefix(ctx, "")
	}
	if err := c.lists.Delete(ctx, c.keys.List(*spec)); err != nil {
		return err
	}
	return c.lists.Delete(ctx, c.keys.Count(*spec))
}

// InvalidateCollection drops every window, count and search result of collection.
func (c *ResultCache) InvalidateCollection(ctx context.Context, collection string) error {
	prefix := CollectionPrefix(collection)
	if err := c.lists.DeleteByPrefix(ctx, prefix); err != nil {
		return err
	}
	return c.searches.DeleteByPrefix(ctx, prefix)
}

// GetSearch returns the fresh search result set for term.
func (c *ResultCache) GetSearch(ctx context.Context, collection, term string, fields []string) (Entry, bool) {
	return c.lookup(ctx, c.searches, c.keys.Search(collection, term, fields), c.searchTTL)
}

// PutSearch stores a search result set.
func (c *ResultCache) PutSearch(ctx context.Context, collection, term string, fields []string, entry Entry) error {
	return c.store(ctx, c.searches, c.keys.Search(collection, term, fields), entry)
}

// Count returns the cached count for spec, calling fetch on a miss.
// Failed fetches are not cached.
func (c *ResultCache) Count(ctx context.Context, spec query.Spec, fetch FetchFn[int]) (int, error) {
	return GetOrFetch(ctx, c.lists, c.keys.Count(spec), fetch)
}

// CachedCount returns the cached count for spec without fetching.
func (c *ResultCache) CachedCount(ctx context.Context, spec query.Spec) (int, bool) {
	raw, ok := c.lists.Get(ctx, c.keys.Count(spec))
	if !ok {
		return 0, false
	}
	n, ok := raw.(int)
	return n, ok
}

// DropCount removes the cached count for spec.
func (c *ResultCache) DropCount(ctx context.Context, spec query.Spec) error {
	return c.lists.Delete(ctx, c.keys.Count(spec))
}

// Stats returns hit and miss totals across list and search lookups.
func (c *ResultCache) Stats() Stats {
	s := Stats{Hits: c.hits.Value(), Misses: c.misses.Value()}
	if total := s.Hits + s.Misses; total > 0 {
		s.HitRate = float64(s.Hits) / float64(total)
	}
	return s
}

func (c *ResultCache) lookup(ctx context.Context, svc CacheService, key string, ttl time.Duration) (Entry, bool) {
	raw, ok := svc.Get(ctx, key)
	if !ok {
		c.misses.Inc()
		return Entry{}, false
	}
	entry, ok := raw.(Entry)
	if !ok || entry.Stale(c.now(), ttl) {
		_ = svc.Delete(ctx, key)
		c.misses.Inc()
		return Entry{}, false
	}
	c.hits.Inc()
	return entry.clone(), true
}

func (c *ResultCache) store(ctx context.Context, svc CacheService, key string, entry Entry) error {
	if entry.FetchedAt.IsZero() {
		entry.FetchedAt = c.now()
	}
	return svc.Set(ctx, key, entry.clone())
}
