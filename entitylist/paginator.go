package entitylist

import (
	"context"
	"sync"

	"github.com/pkg/errors"
	"github.com/puzpuzpuz/xsync/v3"
	"go.uber.org/zap"

	"github.com/goliatone/go-entitylist/cache"
	"github.com/goliatone/go-entitylist/query"
	"github.com/goliatone/go-entitylist/store"
)

// Result is the accumulated window of a spec after a paginator call.
type Result struct {
	// Records is the whole window, oldest page first.
	Records []query.Record
	// Added holds the records this call appended.
	Added     []query.Record
	Cursor    query.Cursor
	HasMore   bool
	Pages     int
	FromCache bool
}

type window struct {
	records []query.Record
	seen    map[string]struct{}
	cursor  query.Cursor
	hasMore bool
	pages   int
}

func newWindow() *window {
	return &window{seen: make(map[string]struct{})}
}

func (w *window) result(added []query.Record) Result {
	return Result{
		Records: append([]query.Record(nil), w.records...),
		Added:   added,
		Cursor:  w.cursor,
		HasMore: w.hasMore,
		Pages:   w.pages,
	}
}

func (w *window) entry() cache.Entry {
	return cache.Entry{Records: w.records, Cursor: w.cursor, HasMore: w.hasMore}
}

// specState guards the window of one spec. gen is bumped by every call that
// issues a fetch or replaces the window; a fetch whose gen is no longer
// current is discarded.
type specState struct {
	mu     sync.Mutex
	gen    uint64
	window *window
}

// Paginator accumulates cursor-paginated windows per spec. Calls for different
// specs are independent. Calls for the same spec may overlap: the most
// recently issued one wins and older ones return ErrSuperseded.
type Paginator struct {
	store    store.Store
	cache    *cache.ResultCache
	keys     cache.Keys
	pipeline Pipeline
	logger   *zap.Logger
	states   *xsync.MapOf[string, *specState]
}

// NewPaginator returns a paginator over st. rc may be nil to disable caching.
func NewPaginator(st store.Store, rc *cache.ResultCache, pipeline Pipeline, logger *zap.Logger) *Paginator {
	if logger == nil {
		logger = zap.NewNop()
	}
	keys := cache.NewKeys(nil)
	if rc != nil {
		keys = rc.Keys()
	}
	return &Paginator{
		store:    st,
		cache:    rc,
		keys:     keys,
		pipeline: pipeline,
		logger:   logger,
		states:   xsync.NewMapOf[string, *specState](),
	}
}

func (p *Paginator) state(spec query.Spec) (*specState, string) {
	key := p.keys.List(spec)
	st, _ := p.states.LoadOrCompute(key, func() *specState { return &specState{} })
	return st, key
}

// FetchPage runs one backend round-trip for spec after cursor and returns the
// transformed page. It does not touch accumulated state or the cache.
func (p *Paginator) FetchPage(ctx context.Context, spec query.Spec, cursor query.Cursor) (Result, error) {
	q := query.Build(spec, cursor)

	page, err := p.store.Execute(ctx, q)
	if err != nil {
		return Result{}, &FetchError{Collection: spec.Collection, Op: "fetch", Err: err}
	}

	next := page.LastCursor
	if next.IsZero() && len(page.Records) > 0 {
		if next, err = query.CursorFor(page.Records[len(page.Records)-1], q.OrderBy); err != nil {
			return Result{}, &FetchError{Collection: spec.Collection, Op: "cursor", Err: err}
		}
	}
	if next.IsZero() {
		next = cursor
	}

	records, err := p.pipeline.ApplyAll(page.Records)
	if err != nil {
		return Result{}, &FetchError{Collection: spec.Collection, Op: "transform", Err: err}
	}

	return Result{
		Records: records,
		Added:   records,
		Cursor:  next,
		HasMore: page.More(spec.PageSize),
	}, nil
}

// LoadFirstPage discards the window of spec and fetches its first page. On
// success the cache entry for spec is overwritten. On failure spec is left
// without a window, so LoadNextPage reports ErrNoPreviousPage.
func (p *Paginator) LoadFirstPage(ctx context.Context, spec query.Spec) (Result, error) {
	st, key := p.state(spec)

	st.mu.Lock()
	st.gen++
	gen := st.gen
	st.window = newWindow()
	st.mu.Unlock()

	res, err := p.FetchPage(ctx, spec, "")

	st.mu.Lock()
	defer st.mu.Unlock()

	if st.gen != gen {
		p.logger.Debug("discarding superseded first page", zap.String("key", key), zap.Uint64("generation", gen))
		return Result{}, ErrSuperseded
	}
	if err != nil {
		// Without a first page there is no window to continue from.
		st.window = nil
		return Result{}, err
	}

	w := st.window
	var added []query.Record
	w.records, added = dedup(w.records, w.seen, res.Records)
	w.cursor = res.Cursor
	w.hasMore = res.HasMore
	w.pages = 1
	p.put(ctx, spec, key, w)

	return w.result(added), nil
}

// LoadNextPage fetches the page after the window of spec and appends the
// records not already in it. When the previous call reported no more pages it
// returns the window without a backend call.
func (p *Paginator) LoadNextPage(ctx context.Context, spec query.Spec) (Result, error) {
	st, key := p.state(spec)

	st.mu.Lock()
	if st.window == nil {
		st.mu.Unlock()
		return Result{}, errors.Wrapf(ErrNoPreviousPage, "%s", spec.Collection)
	}
	if !st.window.hasMore {
		res := st.window.result(nil)
		st.mu.Unlock()
		return res, nil
	}
	st.gen++
	gen := st.gen
	cursor := st.window.cursor
	st.mu.Unlock()

	res, err := p.FetchPage(ctx, spec, cursor)

	st.mu.Lock()
	defer st.mu.Unlock()

	if st.gen != gen {
		p.logger.Debug("discarding superseded page", zap.String("key", key), zap.Uint64("generation", gen))
		return Result{}, ErrSuperseded
	}
	w := st.window
	if err != nil {
		w.hasMore = false
		return w.result(nil), err
	}

	var added []query.Record
	w.records, added = dedup(w.records, w.seen, res.Records)
	if dropped := len(res.Records) - len(added); dropped > 0 {
		p.logger.Debug("dropped duplicate records", zap.String("key", key), zap.Int("count", dropped))
	}
	w.cursor = res.Cursor
	w.hasMore = res.HasMore
	w.pages++
	p.put(ctx, spec, key, w)

	return w.result(added), nil
}

// Resume adopts a fresh cached window for spec without a backend call.
func (p *Paginator) Resume(ctx context.Context, spec query.Spec) (Result, bool) {
	if p.cache == nil {
		return Result{}, false
	}
	entry, ok := p.cache.Get(ctx, spec)
	if !ok {
		return Result{}, false
	}

	st, _ := p.state(spec)
	st.mu.Lock()
	defer st.mu.Unlock()

	st.gen++
	w := newWindow()
	w.records, _ = dedup(nil, w.seen, entry.Records)
	w.cursor = entry.Cursor
	w.hasMore = entry.HasMore
	w.pages = pagesFor(len(w.records), spec.PageSize)
	st.window = w

	res := w.result(nil)
	res.FromCache = true
	return res, true
}

// Window returns the current window of spec.
func (p *Paginator) Window(spec query.Spec) (Result, bool) {
	st, ok := p.states.Load(p.keys.List(spec))
	if !ok {
		return Result{}, false
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	if st.window == nil {
		return Result{}, false
	}
	return st.window.result(nil), true
}

// Forget drops the window of spec. In-flight fetches for it are discarded.
func (p *Paginator) Forget(spec query.Spec) {
	key := p.keys.List(spec)
	if st, ok := p.states.LoadAndDelete(key); ok {
		st.mu.Lock()
		st.gen++
		st.window = nil
		st.mu.Unlock()
	}
}

// Reset drops every window.
func (p *Paginator) Reset() {
	p.states.Range(func(key string, st *specState) bool {
		st.mu.Lock()
		st.gen++
		st.window = nil
		st.mu.Unlock()
		p.states.Delete(key)
		return true
	})
}

func (p *Paginator) put(ctx context.Context, spec query.Spec, key string, w *window) {
	if p.cache == nil {
		return
	}
	if err := p.cache.Put(ctx, spec, w.entry()); err != nil {
		p.logger.Warn("cache put failed", zap.String("key", key), zap.Error(err))
	}
}

func pagesFor(n, size int) int {
	if n == 0 || size <= 0 {
		return 0
	}
	return (n + size - 1) / size
}
