package entitylist

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"

	"github.com/goliatone/go-entitylist/cache"
	"github.com/goliatone/go-entitylist/query"
	"github.com/goliatone/go-entitylist/store"
	"github.com/goliatone/go-entitylist/store/memstore"
)

var errBackend = errors.New("backend unavailable")

// recordingStore wraps a memstore, counting calls and injecting failures.
type recordingStore struct {
	inner *memstore.Store

	mu       sync.Mutex
	executes []query.Query
	counts   int
	// failField makes Execute fail for queries filtering on that field.
	failField map[string]bool
	failAll   bool
	failCount bool
	// gate, when set, blocks Execute until a value is received.
	gate chan struct{}
}

func newRecordingStore(inner *memstore.Store) *recordingStore {
	return &recordingStore{inner: inner, failField: make(map[string]bool)}
}

func (s *recordingStore) Execute(ctx context.Context, q query.Query) (store.Page, error) {
	s.mu.Lock()
	s.executes = append(s.executes, q)
	fail := s.failAll
	for _, f := range q.Filters {
		if s.failField[f.Field] {
			fail = true
		}
	}
	gate := s.gate
	s.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return store.Page{}, ctx.Err()
		}
	}
	if fail {
		return store.Page{}, errBackend
	}
	return s.inner.Execute(ctx, q)
}

func (s *recordingStore) CountEstimate(ctx context.Context, collection string, filters []query.Filter) (int, error) {
	s.mu.Lock()
	s.counts++
	fail := s.failCount
	s.mu.Unlock()
	if fail {
		return 0, errBackend
	}
	return s.inner.CountEstimate(ctx, collection, filters)
}

func (s *recordingStore) executeCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.executes)
}

func (s *recordingStore) countCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.counts
}

func (s *recordingStore) lastQuery() query.Query {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.executes[len(s.executes)-1]
}

func (s *recordingStore) setFailAll(v bool) {
	s.mu.Lock()
	s.failAll = v
	s.mu.Unlock()
}

func (s *recordingStore) setFailField(field string) {
	s.mu.Lock()
	s.failField[field] = true
	s.mu.Unlock()
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newTestCache(t *testing.T, clock *fakeClock) *cache.ResultCache {
	t.Helper()
	var opts []cache.Option
	if clock != nil {
		opts = append(opts, cache.WithClock(clock.Now))
	}
	rc, err := cache.NewResultCache(cache.DefaultResultCacheConfig(), opts...)
	if err != nil {
		t.Fatalf("NewResultCache() error = %v", err)
	}
	return rc
}

var base = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// seedPeople inserts n people with ids p01..pNN, createdAt increasing by one
// minute, and searchable name fields.
func seedPeople(st *memstore.Store, n int) {
	names := []string{"Alice", "Bob", "Carol", "Dave", "Eve", "Frank", "Grace", "Heidi", "Ivan", "Judy", "Mallory", "Niaj"}
	for i := 0; i < n; i++ {
		name := names[i%len(names)]
		st.Insert("people", query.Record{
			"id":            idOf(i + 1),
			"name":          name,
			"nameLowerCase": strings.ToLower(name),
			"createdAt":     base.Add(time.Duration(i) * time.Minute),
			"status":        statusOf(i),
		})
	}
}

func idOf(i int) string {
	return "p" + string(rune('0'+i/10)) + string(rune('0'+i%10))
}

func statusOf(i int) string {
	if i%2 == 0 {
		return "active"
	}
	return "archived"
}

func ids(records []query.Record) []string {
	out := make([]string, len(records))
	for i, r := range records {
		out[i] = r.ID()
	}
	return out
}

func equalIDs(got []query.Record, want ...string) bool {
	g := ids(got)
	if len(g) != len(want) {
		return false
	}
	for i := range g {
		if g[i] != want[i] {
			return false
		}
	}
	return true
}

func assertUnique(t *testing.T, records []query.Record) {
	t.Helper()
	seen := make(map[string]bool, len(records))
	for _, r := range records {
		if seen[r.ID()] {
			t.Fatalf("duplicate record %q in %v", r.ID(), ids(records))
		}
		seen[r.ID()] = true
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met before deadline")
		}
		time.Sleep(time.Millisecond)
	}
}

func (s *recordingStore) setGate(gate chan struct{}) {
	s.mu.Lock()
	s.gate = gate
	s.mu.Unlock()
}
