package entitylist

import (
	"context"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"

	"github.com/goliatone/go-entitylist/cache"
	"github.com/goliatone/go-entitylist/query"
	"github.com/goliatone/go-entitylist/store/memstore"
)

var nameFields = []SearchField{
	{Field: "name", Strategy: StrategyExact},
	{Field: "name", Strategy: StrategyPrefix},
}

func peopleConfig() Config {
	cfg := DefaultConfig("people")
	cfg.PageSize = 2
	cfg.Sort = query.By("createdAt", query.Desc)
	cfg.SearchFields = nameFields
	cfg.SearchDebounce = 0
	return cfg
}

func peopleStore(n int) *recordingStore {
	inner := memstore.New()
	seedPeople(inner, n)
	return newRecordingStore(inner)
}

func newTestList(t *testing.T, st *recordingStore, cfg Config, opts ...Option) *List {
	t.Helper()
	l, err := New(st, cfg, opts...)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(func() { l.Close() })
	return l
}

func TestNew_InvalidConfig(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing collection", func(c *Config) { c.Collection = "" }},
		{"page size too large", func(c *Config) { c.PageSize = query.MaxPageSize + 1 }},
		{"bad sort", func(c *Config) { c.Sort = query.By("name", "up") }},
		{"bad search field", func(c *Config) { c.SearchFields = []SearchField{{Field: "name"}} }},
		{"negative debounce", func(c *Config) { c.SearchDebounce = -time.Second }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := peopleConfig()
			tt.mutate(&cfg)
			if _, err := New(peopleStore(1), cfg); err == nil {
				t.Error("New() error = nil")
			}
		})
	}
}

func TestList_LoadAndLoadMore(t *testing.T) {
	ctx := context.Background()
	st := peopleStore(5)
	l := newTestList(t, st, peopleConfig())

	l.Load(ctx, true)
	s := l.State()
	if !equalIDs(s.Records, "p05", "p04") || !s.HasMore || s.Page != 1 || s.Loading {
		t.Fatalf("state = %v hasMore=%v page=%d loading=%v", ids(s.Records), s.HasMore, s.Page, s.Loading)
	}
	if s.TotalCount == nil || *s.TotalCount != 5 {
		t.Errorf("total = %v, want 5", s.TotalCount)
	}

	l.LoadMore(ctx)
	l.LoadMore(ctx)
	s = l.State()
	if !equalIDs(s.Records, "p05", "p04", "p03", "p02", "p01") || s.HasMore || s.Page != 3 {
		t.Fatalf("state = %v hasMore=%v page=%d", ids(s.Records), s.HasMore, s.Page)
	}
	assertUnique(t, s.Records)

	calls := st.executeCount()
	l.LoadMore(ctx)
	if st.executeCount() != calls {
		t.Error("LoadMore fetched after the last page")
	}
}

func TestList_SharedCacheWithinTTL(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	rc := newTestCache(t, clock)
	st := peopleStore(5)

	a := newTestList(t, st, peopleConfig(), WithCache(rc))
	a.Load(ctx, false)
	if got := st.executeCount(); got != 1 {
		t.Fatalf("executes = %d, want 1", got)
	}

	b := newTestList(t, st, peopleConfig(), WithCache(rc))
	b.Load(ctx, false)
	if got := st.executeCount(); got != 1 {
		t.Errorf("executes = %d, want the cached window reused", got)
	}
	s := b.State()
	if !s.FromCache || !equalIDs(s.Records, "p05", "p04") || !s.HasMore {
		t.Errorf("state = %v fromCache=%v hasMore=%v", ids(s.Records), s.FromCache, s.HasMore)
	}
	if s.TotalCount == nil || *s.TotalCount != 5 {
		t.Errorf("total = %v, want the cached count", s.TotalCount)
	}

	clock.Advance(cache.DefaultListTTL + time.Millisecond)
	c := newTestList(t, st, peopleConfig(), WithCache(rc))
	c.Load(ctx, false)
	if got := st.executeCount(); got != 2 {
		t.Errorf("executes = %d, want a new call after the TTL", got)
	}
	if c.State().FromCache {
		t.Error("stale window served from cache")
	}
}

func TestList_FilterChangeResetsWindow(t *testing.T) {
	ctx := context.Background()
	l := newTestList(t, peopleStore(6), peopleConfig())

	l.Load(ctx, true)
	l.LoadMore(ctx)
	if got := len(l.State().Records); got != 4 {
		t.Fatalf("records = %d, want 4", got)
	}

	l.ApplyFilter(ctx, query.Eq("status", "active"))
	s := l.State()
	if !equalIDs(s.Records, "p05", "p03") || s.Page != 1 || !s.HasMore {
		t.Errorf("state = %v page=%d hasMore=%v", ids(s.Records), s.Page, s.HasMore)
	}
	if !s.IsFiltered() {
		t.Error("IsFiltered() = false")
	}
	if s.TotalCount == nil || *s.TotalCount != 3 {
		t.Errorf("total = %v, want 3", s.TotalCount)
	}

	l.ToggleFilter(ctx, "status")
	s = l.State()
	if s.IsFiltered() || !equalIDs(s.Records, "p06", "p05") {
		t.Errorf("after toggle: filtered=%v records=%v", s.IsFiltered(), ids(s.Records))
	}
	if f := l.Spec().Filters; len(f) != 1 || !f[0].Disabled {
		t.Errorf("filters = %+v, want the status filter kept disabled", f)
	}

	l.ApplyFilter(ctx, query.Eq("status", "archived"))
	l.RemoveFilter(ctx, "status")
	if f := l.Spec().Filters; len(f) != 0 {
		t.Errorf("filters = %+v after RemoveFilter", f)
	}
}

func TestList_InvalidFilterKeepsQuery(t *testing.T) {
	ctx := context.Background()
	l := newTestList(t, peopleStore(3), peopleConfig())
	l.Load(ctx, true)

	l.ApplyFilter(ctx, query.Where("status", "like", "act"))
	s := l.State()
	if s.Err == nil {
		t.Fatal("Err = nil for an unknown operator")
	}
	if len(l.Spec().Filters) != 0 || len(s.Records) != 2 {
		t.Errorf("query or records changed: filters=%v records=%v", l.Spec().Filters, ids(s.Records))
	}
}

func TestList_ToggleSort(t *testing.T) {
	ctx := context.Background()
	l := newTestList(t, peopleStore(4), peopleConfig())

	l.ToggleSort(ctx, "createdAt")
	if s := l.State(); s.Sort.Descending() || !equalIDs(s.Records, "p01", "p02") {
		t.Errorf("sort = %+v records = %v", s.Sort, ids(s.Records))
	}

	l.ToggleSort(ctx, "createdAt")
	if s := l.State(); !s.Sort.Descending() || !equalIDs(s.Records, "p04", "p03") {
		t.Errorf("sort = %+v records = %v", s.Sort, ids(s.Records))
	}

	l.ChangeSort(ctx, "name", query.Asc)
	if s := l.State(); !equalIDs(s.Records, "p01", "p02") {
		t.Errorf("by name = %v, want Alice then Bob", ids(s.Records))
	}
}

func TestList_ShortSearchEqualsFirstPage(t *testing.T) {
	ctx := context.Background()
	st := peopleStore(5)
	l := newTestList(t, st, peopleConfig())

	l.Load(ctx, true)
	want := l.State().Records

	l.Search(ctx, "A")
	s := l.State()
	if s.IsSearching() || s.SearchLoading {
		t.Errorf("term=%q searchLoading=%v, want a plain list", s.Term, s.SearchLoading)
	}
	if !equalIDs(s.Records, ids(want)...) || !s.HasMore {
		t.Errorf("records = %v hasMore=%v, want %v", ids(s.Records), s.HasMore, ids(want))
	}
}

func TestList_Search(t *testing.T) {
	ctx := context.Background()
	l := newTestList(t, peopleStore(5), peopleConfig())
	l.Load(ctx, true)

	l.Search(ctx, " Al ")
	s := l.State()
	if s.Term != "Al" || !s.IsSearching() || s.HasMore {
		t.Errorf("term=%q hasMore=%v", s.Term, s.HasMore)
	}
	if !equalIDs(s.Records, "p01") {
		t.Errorf("records = %v, want [p01]", ids(s.Records))
	}
	if got := l.History().Terms(); !reflect.DeepEqual(got, []string{"Al"}) {
		t.Errorf("history = %v", got)
	}

	l.Load(ctx, true)
	if s := l.State(); s.IsSearching() || len(s.Records) != 2 {
		t.Errorf("after load: term=%q records=%v", s.Term, ids(s.Records))
	}
}

func TestList_SearchAllStrategiesFailed(t *testing.T) {
	ctx := context.Background()
	st := peopleStore(5)
	l := newTestList(t, st, peopleConfig())
	l.Load(ctx, true)

	st.setFailAll(true)
	l.Search(ctx, "Al")

	s := l.State()
	if !errors.Is(s.Err, ErrAllStrategiesFailed) {
		t.Errorf("Err = %v, want ErrAllStrategiesFailed", s.Err)
	}
	if len(s.Records) != 0 || s.SearchLoading {
		t.Errorf("records = %v searchLoading = %v", ids(s.Records), s.SearchLoading)
	}
}

func TestList_QueueSearchDebounces(t *testing.T) {
	cfg := peopleConfig()
	cfg.SearchDebounce = 30 * time.Millisecond
	st := peopleStore(5)
	l := newTestList(t, st, cfg)

	for _, term := range []string{"Al", "Ali", "Alic"} {
		l.QueueSearch(term)
	}

	waitFor(t, func() bool { return l.State().Term == "Alic" })
	time.Sleep(60 * time.Millisecond)

	if got := l.History().Terms(); !reflect.DeepEqual(got, []string{"Alic"}) {
		t.Errorf("history = %v, want only the last term", got)
	}
	if got := st.executeCount(); got != len(nameFields) {
		t.Errorf("executes = %d, want one search", got)
	}
}

func TestList_FetchFailureKeepsRecords(t *testing.T) {
	ctx := context.Background()
	st := peopleStore(5)
	l := newTestList(t, st, peopleConfig())
	l.Load(ctx, true)

	st.setFailAll(true)
	l.LoadMore(ctx)

	s := l.State()
	var fetchErr *FetchError
	if !errors.As(s.Err, &fetchErr) {
		t.Fatalf("Err = %v, want *FetchError", s.Err)
	}
	if !equalIDs(s.Records, "p05", "p04") || s.HasMore || s.Loading {
		t.Errorf("records=%v hasMore=%v loading=%v", ids(s.Records), s.HasMore, s.Loading)
	}

	st.setFailAll(false)
	l.Refresh(ctx)
	if s := l.State(); s.Err != nil || !s.HasMore {
		t.Errorf("after refresh: err=%v hasMore=%v", s.Err, s.HasMore)
	}
}

func TestList_LoadAfterFailedRefreshRetriesFirstPage(t *testing.T) {
	ctx := context.Background()
	st := peopleStore(5)
	cfg := peopleConfig()
	cfg.MaxCountFilters = -1
	l := newTestList(t, st, cfg)
	l.Load(ctx, true)

	st.setFailAll(true)
	l.Refresh(ctx)
	if s := l.State(); s.Err == nil || !equalIDs(s.Records, "p05", "p04") {
		t.Fatalf("after failed refresh: records=%v err=%v", ids(s.Records), s.Err)
	}

	st.setFailAll(false)
	calls := st.executeCount()
	l.Load(ctx, false)

	if got := st.executeCount(); got != calls+1 {
		t.Errorf("executes = %d, want %d", got, calls+1)
	}
	s := l.State()
	if s.Err != nil || !equalIDs(s.Records, "p05", "p04") || !s.HasMore {
		t.Errorf("records=%v err=%v hasMore=%v", ids(s.Records), s.Err, s.HasMore)
	}
}

func TestList_CountFailureIsIsolated(t *testing.T) {
	st := peopleStore(5)
	st.failCount = true
	l := newTestList(t, st, peopleConfig())

	l.Load(context.Background(), true)
	s := l.State()
	if s.Err != nil {
		t.Errorf("Err = %v, want nil", s.Err)
	}
	if s.TotalCount != nil {
		t.Errorf("total = %d, want nil", *s.TotalCount)
	}
	if len(s.Records) != 2 {
		t.Errorf("records = %v", ids(s.Records))
	}
}

func TestList_SupersededLoadIsDropped(t *testing.T) {
	ctx := context.Background()
	st := peopleStore(4)
	cfg := peopleConfig()
	cfg.MaxCountFilters = -1
	l := newTestList(t, st, cfg)

	gate := make(chan struct{})
	st.setGate(gate)
	done := make(chan struct{})
	go func() {
		defer close(done)
		l.Load(ctx, true)
	}()
	waitFor(t, func() bool { return st.executeCount() == 1 })

	st.setGate(nil)
	l.ChangeSort(ctx, "createdAt", query.Asc)
	close(gate)
	<-done

	s := l.State()
	if !equalIDs(s.Records, "p01", "p02") || s.Loading {
		t.Errorf("records = %v loading = %v, want the newer ascending page", ids(s.Records), s.Loading)
	}
}

func TestList_SubscribeSeesLoadingThenResult(t *testing.T) {
	l := newTestList(t, peopleStore(3), peopleConfig())

	var (
		mu     sync.Mutex
		states []State
	)
	cancel := l.Subscribe(func(s State) {
		mu.Lock()
		states = append(states, s)
		mu.Unlock()
	})

	l.Load(context.Background(), true)
	cancel()
	l.Load(context.Background(), true)

	mu.Lock()
	defer mu.Unlock()
	if len(states) != 2 {
		t.Fatalf("snapshots = %d, want 2", len(states))
	}
	if !states[0].Loading || len(states[0].Records) != 0 {
		t.Errorf("first snapshot = %+v, want loading and empty", states[0])
	}
	if states[1].Loading || len(states[1].Records) != 2 {
		t.Errorf("last snapshot loading=%v records=%d", states[1].Loading, len(states[1].Records))
	}
}

func TestList_ClearCache(t *testing.T) {
	ctx := context.Background()
	rc := newTestCache(t, nil)
	st := peopleStore(5)
	a := newTestList(t, st, peopleConfig(), WithCache(rc))

	a.Load(ctx, true)
	a.Search(ctx, "Al")
	calls := st.executeCount()

	a.ClearCache(ctx)
	if len(a.History().Terms()) != 0 {
		t.Error("history survived ClearCache")
	}
	if a.State().Term != "Al" {
		t.Error("ClearCache reloaded the list")
	}

	b := newTestList(t, st, peopleConfig(), WithCache(rc))
	b.Load(ctx, false)
	if st.executeCount() != calls+1 {
		t.Errorf("executes = %d, want a fetch after ClearCache", st.executeCount())
	}
}

func TestList_ClearCacheDuringLoad(t *testing.T) {
	ctx := context.Background()
	st := peopleStore(4)
	cfg := peopleConfig()
	cfg.MaxCountFilters = -1
	l := newTestList(t, st, cfg)

	gate := make(chan struct{})
	st.setGate(gate)
	done := make(chan struct{})
	go func() {
		defer close(done)
		l.Load(ctx, true)
	}()
	waitFor(t, func() bool { return st.executeCount() == 1 })

	l.ClearCache(ctx)
	st.setGate(nil)
	close(gate)
	<-done

	if s := l.State(); s.Loading || len(s.Records) != 0 {
		t.Fatalf("after ClearCache: loading=%v records=%v", s.Loading, ids(s.Records))
	}

	l.Load(ctx, false)
	s := l.State()
	if got := st.executeCount(); got != 2 {
		t.Errorf("executes = %d, want 2", got)
	}
	if s.Loading || !equalIDs(s.Records, "p04", "p03") || !s.HasMore {
		t.Errorf("records=%v loading=%v hasMore=%v", ids(s.Records), s.Loading, s.HasMore)
	}

	l.LoadMore(ctx)
	if got := st.executeCount(); got != 3 {
		t.Errorf("LoadMore executes = %d, want 3", got)
	}
}

func TestList_AutoRefresh(t *testing.T) {
	cfg := peopleConfig()
	cfg.AutoRefresh = 10 * time.Millisecond
	st := peopleStore(3)
	l := newTestList(t, st, cfg)

	waitFor(t, func() bool { return st.executeCount() >= 2 })
	if len(l.State().Records) != 2 {
		t.Errorf("records = %v", ids(l.State().Records))
	}
}

func TestList_CloseStopsWork(t *testing.T) {
	st := peopleStore(3)
	l, err := New(st, peopleConfig())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if err := l.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	l.Load(context.Background(), true)
	l.QueueSearch("Alice")
	time.Sleep(10 * time.Millisecond)
	if got := st.executeCount(); got != 0 {
		t.Errorf("executes = %d after Close", got)
	}
	if err := l.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
}

func TestList_OnCloseRunsOnce(t *testing.T) {
	var calls int
	var closed *List
	l, err := New(peopleStore(1), peopleConfig(), WithOnClose(func(l *List) {
		calls++
		closed = l
	}))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	l.Close()
	l.Close()
	if calls != 1 || closed != l {
		t.Errorf("onClose calls = %d, list = %p, want 1 call with %p", calls, closed, l)
	}
}
