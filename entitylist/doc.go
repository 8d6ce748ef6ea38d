// Package entitylist loads filtered, sorted and searchable windows of records
// from a document store.
//
// A List is the consumer facing type. It owns the current query, a cursor
// paginated window of records and a published State:
//
//	l, err := entitylist.New(st, cfg, entitylist.WithCache(rc), entitylist.WithLogger(logger))
//	if err != nil {
//		return err
//	}
//	defer l.Close()
//
//	cancel := l.Subscribe(func(s entitylist.State) { render(s) })
//	defer cancel()
//
//	l.Load(ctx, false)
//	l.LoadMore(ctx)
//	l.ApplyFilter(ctx, query.Eq("status", "active"))
//	l.QueueSearch("ali")
//
// # Pagination
//
// The Paginator keeps one window per query. First pages replace the window,
// next pages append to it and records already present are dropped. When the
// store reports no more pages, further calls return the window as is. A page
// issued after another one for the same query wins; the older result is
// discarded with ErrSuperseded and never reaches State.
//
// # Caching
//
// Windows and search results are stored in a cache.ResultCache. Lists sharing
// one cache reuse each other's windows until they go stale. Refresh, Invalidate
// and ClearCache drop entries at query, collection and cache scope.
//
// # Search
//
// A SearchEngine runs one sub-query per SearchField concurrently and merges
// the results in field order without duplicates. A failing sub-query only
// contributes nothing. Terms shorter than the minimum length reload the first
// page of the list instead.
//
// # Errors
//
// List methods do not return errors. Backend failures are published in
// State.Err as *FetchError, a search where every strategy failed as
// ErrAllStrategiesFailed. Count failures are logged and leave
// State.TotalCount nil.
package entitylist
