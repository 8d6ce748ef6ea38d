package entitylist

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"github.com/puzpuzpuz/xsync/v3"
	"go.uber.org/zap"

	"github.com/goliatone/go-entitylist/cache"
	"github.com/goliatone/go-entitylist/query"
	"github.com/goliatone/go-entitylist/store"
)

// List is the consumer facing view of one collection: a filtered, sorted,
// searchable window of records that grows page by page.
//
// Methods never return backend errors. Failures land in State.Err and every
// change is published to subscribers. Results of operations overtaken by a
// newer one are dropped.
type List struct {
	cfg       Config
	cache     *cache.ResultCache
	paginator *Paginator
	search    *SearchEngine
	counter   *CountEstimator
	debounce  *debouncer
	logger    *zap.Logger
	onClose   func(*List)

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu     sync.Mutex
	spec   query.Spec
	state  State
	gen    uint64
	closed bool

	pubMu     sync.Mutex
	published uint64
	subs      *xsync.MapOf[uint64, func(State)]
	nextSub   atomic.Uint64
}

// New builds a list over st. The configuration is validated first.
func New(st store.Store, cfg Config, opts ...Option) (*List, error) {
	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrapf(err, "entitylist %s", cfg.Collection)
	}

	o := options{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}
	if o.cache == nil {
		rc, err := cache.NewResultCache(cache.DefaultResultCacheConfig())
		if err != nil {
			return nil, err
		}
		o.cache = rc
	}

	logger := o.logger.With(zap.String("collection", cfg.Collection))
	pipeline := cfg.pipeline()
	paginator := NewPaginator(st, o.cache, pipeline, logger)

	ctx, cancel := context.WithCancel(context.Background())
	l := &List{
		cfg:       cfg,
		cache:     o.cache,
		paginator: paginator,
		search: NewSearchEngine(cfg.Collection, cfg.SearchFields, st, paginator, o.cache, pipeline,
			WithMinTermLength(cfg.MinTermLength),
			WithHistory(NewHistory(cfg.HistorySize)),
			WithSearchLogger(logger),
		),
		counter:  NewCountEstimator(st, o.cache, cfg.MaxCountFilters, logger),
		debounce: newDebouncer(cfg.SearchDebounce),
		logger:   logger,
		onClose:  o.onClose,
		ctx:      ctx,
		cancel:   cancel,
		spec:     cfg.Spec(),
		subs:     xsync.NewMapOf[uint64, func(State)](),
	}
	l.state.Filters = l.spec.Filters
	l.state.Sort = l.spec.Sort

	if cfg.AutoRefresh > 0 {
		l.wg.Add(1)
		go l.autoRefresh(cfg.AutoRefresh)
	}
	return l, nil
}

func (c Config) withDefaults() Config {
	if c.PageSize == 0 {
		c.PageSize = query.DefaultPageSize
	}
	if c.MinTermLength == 0 {
		c.MinTermLength = DefaultMinTermLength
	}
	if c.HistorySize == 0 {
		c.HistorySize = DefaultHistorySize
	}
	return c
}

// Spec returns the current query of the list.
func (l *List) Spec() query.Spec {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.spec.Clone()
}

// State returns the current snapshot.
func (l *List) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state.clone()
}

// History returns the recent search terms.
func (l *List) History() *History {
	return l.search.History()
}

// Subscribe calls fn with every published snapshot until cancel is called.
// Snapshots are delivered in publication order; fn must not block.
func (l *List) Subscribe(fn func(State)) (cancel func()) {
	id := l.nextSub.Add(1)
	l.subs.Store(id, fn)
	return func() { l.subs.Delete(id) }
}

// Load fetches the first page when reset is set or nothing is loaded yet,
// and the next page otherwise. Without a window it first adopts a fresh
// cached one, so lists sharing a cache reuse each other's pages.
func (l *List) Load(ctx context.Context, reset bool) {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return
	}
	spec := l.spec.Clone()
	gen := l.bump()
	l.state.Loading = true
	l.state.SearchLoading = false
	l.state.Term = ""
	snap := l.snapshot()
	l.mu.Unlock()
	l.publish(snap)

	_, hasWindow := l.paginator.Window(spec)

	switch {
	case !reset && !hasWindow:
		if res, ok := l.paginator.Resume(ctx, spec); ok {
			l.logger.Debug("resumed window from cache", zap.Int("records", len(res.Records)))
			l.finishLoad(gen, res, nil, l.cachedTotal(ctx, spec), true)
			return
		}
		l.loadFirst(ctx, gen, spec)
	case reset:
		l.loadFirst(ctx, gen, spec)
	default:
		res, err := l.paginator.LoadNextPage(ctx, spec)
		if errors.Is(err, ErrNoPreviousPage) {
			l.loadFirst(ctx, gen, spec)
			return
		}
		l.finishLoad(gen, res, err, nil, false)
	}
}

func (l *List) loadFirst(ctx context.Context, gen uint64, spec query.Spec) {
	var (
		wg    sync.WaitGroup
		total *int
	)
	if l.counter.Eligible(spec) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			total = l.counter.Estimate(ctx, spec)
		}()
	}

	res, err := l.paginator.LoadFirstPage(ctx, spec)
	wg.Wait()
	l.finishLoad(gen, res, err, total, true)
}

// cachedTotal returns the cached count of a resumed window, if any.
func (l *List) cachedTotal(ctx context.Context, spec query.Spec) *int {
	if !l.counter.Eligible(spec) {
		return nil
	}
	if n, ok := l.cache.CachedCount(ctx, spec); ok {
		return &n
	}
	return nil
}

func (l *List) finishLoad(gen uint64, res Result, err error, total *int, first bool) {
	if errors.Is(err, ErrSuperseded) {
		l.settle(gen)
		return
	}

	l.mu.Lock()
	if gen != l.gen {
		l.mu.Unlock()
		l.logger.Debug("dropping superseded load", zap.Uint64("generation", gen))
		return
	}
	l.state.Loading = false
	l.state.FromCache = res.FromCache
	if err != nil {
		l.logger.Warn("load failed", zap.Error(err))
		l.state.Err = err
		l.state.HasMore = false
	} else {
		l.state.Err = nil
		l.state.Records = res.Records
		l.state.HasMore = res.HasMore
		l.state.Page = res.Pages
		if first {
			l.state.TotalCount = total
		}
	}
	snap := l.snapshot()
	l.mu.Unlock()
	l.publish(snap)
}

// LoadMore loads the next page unless a load is running or there is nothing more.
func (l *List) LoadMore(ctx context.Context) {
	l.mu.Lock()
	busy := l.state.Loading || l.state.SearchLoading || !l.state.HasMore || l.state.Term != ""
	l.mu.Unlock()
	if busy {
		return
	}
	l.Load(ctx, false)
}

// Refresh drops the cached window of the current query and reloads it.
// Records stay visible until the new page arrives.
func (l *List) Refresh(ctx context.Context) {
	spec := l.Spec()
	if err := l.cache.Invalidate(ctx, &spec); err != nil {
		l.logger.Warn("cache invalidate failed", zap.Error(err))
	}
	l.Load(ctx, true)
}

// Search replaces the records with the results for term. Terms shorter than
// the configured minimum reload the first page of the list instead.
func (l *List) Search(ctx context.Context, term string) {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return
	}
	spec := l.spec.Clone()
	gen := l.bump()
	l.state.SearchLoading = true
	snap := l.snapshot()
	l.mu.Unlock()
	l.publish(snap)

	res, err := l.search.Search(ctx, term, spec)
	if errors.Is(err, ErrSuperseded) {
		l.settle(gen)
		return
	}

	l.mu.Lock()
	if gen != l.gen {
		l.mu.Unlock()
		return
	}
	l.state.SearchLoading = false
	l.state.Loading = false
	l.state.FromCache = res.FromCache
	l.state.Err = err
	if res.Fallback {
		l.state.Term = ""
		if err != nil {
			l.state.HasMore = false
		} else {
			l.state.Records = res.Records
			l.state.HasMore = res.HasMore
			l.state.Page = pagesFor(len(res.Records), spec.PageSize)
		}
	} else {
		l.state.Term = strings.TrimSpace(term)
		l.state.Records = res.Records
		l.state.HasMore = false
		l.state.Page = 0
	}
	snap = l.snapshot()
	l.mu.Unlock()
	l.publish(snap)
}

// QueueSearch runs Search for term once no other term was queued for the
// configured debounce period. Only the last queued term runs.
func (l *List) QueueSearch(term string) {
	l.debounce.trigger(func() {
		l.Search(l.ctx, term)
	})
}

// UpdateFilters replaces the filters and reloads from the first page.
func (l *List) UpdateFilters(ctx context.Context, filters ...query.Filter) {
	l.mu.Lock()
	next := l.spec.WithFilters(filters...)
	l.mu.Unlock()
	l.apply(ctx, next)
}

// ApplyFilter adds f, replacing any filter on the same field.
func (l *List) ApplyFilter(ctx context.Context, f query.Filter) {
	filters := l.Spec().Filters
	replaced := false
	for i := range filters {
		if filters[i].Field == f.Field {
			filters[i] = f
			replaced = true
		}
	}
	if !replaced {
		filters = append(filters, f)
	}
	l.UpdateFilters(ctx, filters...)
}

// RemoveFilter drops every filter on field.
func (l *List) RemoveFilter(ctx context.Context, field string) {
	var kept []query.Filter
	for _, f := range l.Spec().Filters {
		if f.Field != field {
			kept = append(kept, f)
		}
	}
	l.UpdateFilters(ctx, kept...)
}

// ToggleFilter enables or disables the filters on field without removing them.
func (l *List) ToggleFilter(ctx context.Context, field string) {
	filters := l.Spec().Filters
	for i := range filters {
		if filters[i].Field == field {
			filters[i] = filters[i].Enabled(filters[i].Disabled)
		}
	}
	l.UpdateFilters(ctx, filters...)
}

// ResetFilters restores the configured filters.
func (l *List) ResetFilters(ctx context.Context) {
	l.UpdateFilters(ctx, l.cfg.Filters...)
}

// ChangeSort orders by field in dir and reloads from the first page.
func (l *List) ChangeSort(ctx context.Context, field string, dir query.Direction) {
	l.mu.Lock()
	next := l.spec.WithSort(query.By(field, dir))
	l.mu.Unlock()
	l.apply(ctx, next)
}

// ToggleSort flips the direction when already sorted by field, and sorts
// ascending by field otherwise.
func (l *List) ToggleSort(ctx context.Context, field string) {
	dir := query.Asc
	if current := l.Spec().Sort; current != nil && current.Field == field && !current.Descending() {
		dir = query.Desc
	}
	l.ChangeSort(ctx, field, dir)
}

// apply switches the list to next, clearing the window at once.
func (l *List) apply(ctx context.Context, next query.Spec) {
	if err := next.Validate(); err != nil {
		l.mu.Lock()
		l.state.Err = errors.Wrap(err, "invalid query")
		snap := l.snapshot()
		l.mu.Unlock()
		l.publish(snap)
		return
	}

	l.mu.Lock()
	prev := l.spec
	l.spec = next
	l.state.Records = nil
	l.state.HasMore = false
	l.state.TotalCount = nil
	l.state.Page = 0
	l.state.Term = ""
	l.state.Err = nil
	l.state.Filters = next.Filters
	l.state.Sort = next.Sort
	l.mu.Unlock()

	l.paginator.Forget(prev)
	l.Load(ctx, true)
}

// ClearCache drops every cached entry and the windows of this list. It does
// not reload, and loads still in flight are dropped.
func (l *List) ClearCache(ctx context.Context) {
	if err := l.cache.Invalidate(ctx, nil); err != nil {
		l.logger.Warn("cache clear failed", zap.Error(err))
	}

	l.mu.Lock()
	l.bump()
	busy := l.state.Loading || l.state.SearchLoading
	l.state.Loading = false
	l.state.SearchLoading = false
	snap := l.snapshot()
	l.mu.Unlock()

	l.paginator.Reset()
	l.search.History().Clear()
	if busy {
		l.publish(snap)
	}
}

// settle ends the load of generation gen whose result was discarded by the
// paginator. Records stay as they are.
func (l *List) settle(gen uint64) {
	l.mu.Lock()
	if gen != l.gen {
		l.mu.Unlock()
		return
	}
	l.state.Loading = false
	l.state.SearchLoading = false
	snap := l.snapshot()
	l.mu.Unlock()
	l.publish(snap)
}

// Invalidate drops the cached entries of the collection, for instance after a
// change made elsewhere, and reloads the first page.
func (l *List) Invalidate(ctx context.Context) {
	if err := l.cache.InvalidateCollection(ctx, l.cfg.Collection); err != nil {
		l.logger.Warn("cache invalidate failed", zap.Error(err))
	}
	l.Load(ctx, true)
}

// Close stops queued searches and auto refresh. Later calls are no-ops.
func (l *List) Close() error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return nil
	}
	l.closed = true
	l.bump()
	l.mu.Unlock()

	l.debounce.stop()
	l.cancel()
	l.wg.Wait()
	if l.onClose != nil {
		l.onClose(l)
	}
	return nil
}

func (l *List) autoRefresh(every time.Duration) {
	defer l.wg.Done()
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-l.ctx.Done():
			return
		case <-ticker.C:
			if l.State().IsSearching() {
				continue
			}
			l.Refresh(l.ctx)
		}
	}
}

// bump starts a new generation. Callers hold l.mu.
func (l *List) bump() uint64 {
	l.gen++
	return l.gen
}

// snapshot copies the state and stamps it. Callers hold l.mu.
func (l *List) snapshot() State {
	l.state.version++
	return l.state.clone()
}

func (l *List) publish(s State) {
	l.pubMu.Lock()
	defer l.pubMu.Unlock()

	if s.version <= l.published {
		return
	}
	l.published = s.version
	l.subs.Range(func(_ uint64, fn func(State)) bool {
		fn(s)
		return true
	})
}
