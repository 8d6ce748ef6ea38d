// Package cache holds accumulated result windows, search results and count
// estimates for entity lists.
//
// # Overview
//
// ResultCache is the entry point. It keeps two stores, one for page windows
// and counts and one for search results, each behind the CacheService
// interface. The default implementation is the sharded sturdyc client from
// internal/cacheinfra:
//
//	rc, err := cache.NewResultCache(cache.DefaultResultCacheConfig())
//	if err != nil {
//		return err
//	}
//	entry, ok := rc.Get(ctx, spec)
//
// A ResultCache is meant to be created once by the composition root and
// shared by every list that reads the same collections.
//
// # Staleness
//
// Every Entry carries the time it was fetched. An entry whose age exceeds the
// TTL of its store (60s for windows, 30s for searches by default) is treated
// as absent and dropped on lookup. WithClock replaces the clock in tests.
//
// # Canonical Keys
//
// Keys are derived by Keys from the active filters of a spec, sorted by their
// serialized form, plus sort and page size, hashed with xxhash:
//
//	contacts::list::9f1c2b7a00e13d42
//	contacts::count::51aa0c9e2f7b6d10
//	contacts::search::0b3e7d44a1c9f822
//
// Filter order and disabled filters never change a key. Strings are quoted by
// the serializer, so a filter on "1" and a filter on 1 get different keys,
// while numbers are keyed by value whatever their Go type. Times are keyed in
// UTC.
//
// All keys of a collection share the "<collection>::" prefix, which is what
// InvalidateCollection removes.
//
// # Read-through
//
// GetOrFetch wraps CacheService.GetOrFetch with a typed fetch function.
// ResultCache.Count uses it for count estimates, so concurrent callers share
// one fetch and failed fetches are not stored.
package cache
