package entitylist

import (
	"context"
	"strings"
	"sync"
	"unicode/utf8"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/goliatone/go-entitylist/cache"
	"github.com/goliatone/go-entitylist/query"
	"github.com/goliatone/go-entitylist/store"
)

// Strategy selects how a search term is matched against a field.
type Strategy string

const (
	// StrategyExact matches records whose field equals the term.
	StrategyExact Strategy = "exact"
	// StrategyPrefix matches records whose lowercase shadow field starts with
	// the lowercased term.
	StrategyPrefix Strategy = "prefix"
	// StrategyArrayContains matches records whose array field contains the term.
	StrategyArrayContains Strategy = "arrayContains"
)

// prefixSentinel sorts after every character a shadow field is expected to hold.
const prefixSentinel = "\uf8ff"

// DefaultMinTermLength is the shortest term, in runes, that triggers a search.
const DefaultMinTermLength = 2

// SearchField configures one search strategy.
type SearchField struct {
	Field    string
	Strategy Strategy
	// LowerField is the precomputed lowercase copy of Field used by the
	// prefix strategy. Defaults to Field + "LowerCase".
	LowerField string
}

// Validate implements validation.Validatable.
func (f SearchField) Validate() error {
	return validation.ValidateStruct(&f,
		validation.Field(&f.Field, validation.Required),
		validation.Field(&f.Strategy, validation.Required, validation.In(StrategyExact, StrategyPrefix, StrategyArrayContains)),
	)
}

func (f SearchField) String() string {
	return f.Field + ":" + string(f.Strategy)
}

func (f SearchField) lowerField() string {
	if f.LowerField != "" {
		return f.LowerField
	}
	return f.Field + "LowerCase"
}

// Filters returns the filters that implement the strategy for term.
func (f SearchField) Filters(term string) []query.Filter {
	switch f.Strategy {
	case StrategyPrefix:
		lower := strings.ToLower(term)
		return []query.Filter{
			query.Where(f.lowerField(), query.OpGte, lower),
			query.Where(f.lowerField(), query.OpLt, lower+prefixSentinel),
		}
	case StrategyArrayContains:
		return []query.Filter{query.Where(f.Field, query.OpArrayContains, term)}
	default:
		return []query.Filter{query.Eq(f.Field, term)}
	}
}

// SearchResult is the outcome of one search.
type SearchResult struct {
	Records []query.Record
	// HasMore is only meaningful for fallback results, which are list windows.
	HasMore bool
	// Fallback is set when the term was too short and the first list page
	// was loaded instead.
	Fallback  bool
	FromCache bool
	// Failed lists the strategies that contributed no records because they failed.
	Failed []*SubqueryError
}

// SearchEngine runs one sub-query per configured field and merges the results.
type SearchEngine struct {
	collection    string
	fields        []SearchField
	store         store.Store
	paginator     *Paginator
	cache         *cache.ResultCache
	pipeline      Pipeline
	minTermLength int
	history       *History
	logger        *zap.Logger
}

// NewSearchEngine returns a search engine over fields of collection.
func NewSearchEngine(collection string, fields []SearchField, st store.Store, paginator *Paginator, rc *cache.ResultCache, pipeline Pipeline, opts ...SearchOption) *SearchEngine {
	e := &SearchEngine{
		collection:    collection,
		fields:        append([]SearchField(nil), fields...),
		store:         st,
		paginator:     paginator,
		cache:         rc,
		pipeline:      pipeline,
		minTermLength: DefaultMinTermLength,
		history:       NewHistory(DefaultHistorySize),
		logger:        zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// SearchOption configures a SearchEngine.
type SearchOption func(*SearchEngine)

// WithMinTermLength sets the shortest term that triggers a search.
func WithMinTermLength(n int) SearchOption {
	return func(e *SearchEngine) {
		if n > 0 {
			e.minTermLength = n
		}
	}
}

// WithHistory sets the recent-terms history.
func WithHistory(h *History) SearchOption {
	return func(e *SearchEngine) {
		if h != nil {
			e.history = h
		}
	}
}

// WithSearchLogger sets the logger.
func WithSearchLogger(logger *zap.Logger) SearchOption {
	return func(e *SearchEngine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// History returns the recent-terms history.
func (e *SearchEngine) History() *History {
	return e.history
}

// Searchable reports whether term is long enough to run a search.
func (e *SearchEngine) Searchable(term string) bool {
	return len(e.fields) > 0 && utf8.RuneCountInString(strings.TrimSpace(term)) >= e.minTermLength
}

// Search looks term up in every configured field. Terms that are too short
// load the first page of list instead. Each sub-query is limited to
// list.PageSize records.
//
// A failing sub-query contributes no records. When all of them fail the
// result is empty and the error is ErrAllStrategiesFailed.
func (e *SearchEngine) Search(ctx context.Context, term string, list query.Spec) (SearchResult, error) {
	term = strings.TrimSpace(term)
	if !e.Searchable(term) {
		res, err := e.paginator.LoadFirstPage(ctx, list)
		return SearchResult{Records: res.Records, HasMore: res.HasMore, Fallback: true}, err
	}

	descriptors := e.descriptors()
	if e.cache != nil {
		if entry, ok := e.cache.GetSearch(ctx, e.collection, term, descriptors); ok {
			e.history.Add(term)
			return SearchResult{Records: entry.Records, FromCache: true}, nil
		}
	}

	pages := make([][]query.Record, len(e.fields))
	failures := make([]error, len(e.fields))

	var wg sync.WaitGroup
	for i, field := range e.fields {
		wg.Add(1)
		go func(i int, field SearchField) {
			defer wg.Done()
			pages[i], failures[i] = e.subquery(ctx, field, term, list.PageSize)
		}(i, field)
	}
	wg.Wait()

	var (
		res    SearchResult
		merged []query.Record
		seen   = make(map[string]struct{})
	)
	for i, field := range e.fields {
		if err := failures[i]; err != nil {
			sqErr := &SubqueryError{Field: field.Field, Strategy: field.Strategy, Err: err}
			res.Failed = append(res.Failed, sqErr)
			e.logger.Warn("search strategy failed",
				zap.String("collection", e.collection),
				zap.String("field", field.Field),
				zap.String("strategy", string(field.Strategy)),
				zap.Error(err),
			)
			continue
		}
		merged, _ = dedup(merged, seen, pages[i])
	}
	res.Records = merged

	if len(res.Failed) == len(e.fields) {
		return SearchResult{Failed: res.Failed}, errors.Wrapf(ErrAllStrategiesFailed, "%d strategies on %s", len(e.fields), e.collection)
	}

	e.history.Add(term)
	if len(res.Failed) == 0 && e.cache != nil {
		if err := e.cache.PutSearch(ctx, e.collection, term, descriptors, cache.Entry{Records: merged}); err != nil {
			e.logger.Warn("search cache put failed", zap.String("collection", e.collection), zap.Error(err))
		}
	}
	return res, nil
}

func (e *SearchEngine) subquery(ctx context.Context, field SearchField, term string, limit int) ([]query.Record, error) {
	if limit <= 0 {
		limit = query.DefaultPageSize
	}
	spec := query.Spec{
		Collection: e.collection,
		Filters:    field.Filters(term),
		PageSize:   limit,
	}
	page, err := e.store.Execute(ctx, query.Build(spec, ""))
	if err != nil {
		return nil, err
	}
	return e.pipeline.ApplyAll(page.Records)
}

func (e *SearchEngine) descriptors() []string {
	out := make([]string, len(e.fields))
	for i, f := range e.fields {
		out[i] = f.String()
	}
	return out
}
