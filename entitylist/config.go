package entitylist

import (
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"go.uber.org/zap"

	"github.com/goliatone/go-entitylist/cache"
	"github.com/goliatone/go-entitylist/query"
)

// Config describes one entity list.
type Config struct {
	Collection string
	PageSize   int
	// Filters and Sort are the initial query, restored by ResetFilters.
	Filters []query.Filter
	Sort    *query.Sort

	SearchFields  []SearchField
	MinTermLength int
	// SearchDebounce is the quiet period of QueueSearch. Zero runs queued
	// searches immediately.
	SearchDebounce time.Duration
	HistorySize    int

	// SelectedFields and Transform shape records before they are cached.
	SelectedFields []string
	Transform      TransformFunc

	// MaxCountFilters bounds the active filters for which a total is
	// estimated on first page loads. Negative disables counting.
	MaxCountFilters int

	// AutoRefresh reloads the first page at this interval. Zero disables it.
	AutoRefresh time.Duration
}

// DefaultConfig returns a Config for collection populated with defaults.
func DefaultConfig(collection string) Config {
	return Config{
		Collection:      collection,
		PageSize:        query.DefaultPageSize,
		MinTermLength:   DefaultMinTermLength,
		SearchDebounce:  DefaultSearchDebounce,
		HistorySize:     DefaultHistorySize,
		MaxCountFilters: DefaultMaxCountFilters,
	}
}

// Validate checks whether the configuration values are valid.
func (c Config) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Collection, validation.Required),
		validation.Field(&c.PageSize, validation.Required, validation.Min(1), validation.Max(query.MaxPageSize)),
		validation.Field(&c.Filters),
		validation.Field(&c.Sort),
		validation.Field(&c.SearchFields),
		validation.Field(&c.MinTermLength, validation.Min(1)),
		validation.Field(&c.SearchDebounce, validation.Min(time.Duration(0))),
		validation.Field(&c.HistorySize, validation.Min(0)),
		validation.Field(&c.AutoRefresh, validation.Min(time.Duration(0))),
	)
}

// Spec returns the initial query of the list.
func (c Config) Spec() query.Spec {
	return query.Spec{
		Collection: c.Collection,
		Filters:    append([]query.Filter(nil), c.Filters...),
		Sort:       c.Sort,
		PageSize:   c.PageSize,
	}.Clone()
}

func (c Config) pipeline() Pipeline {
	return Pipeline{Fields: c.SelectedFields, Transform: c.Transform}
}

// Option configures a List.
type Option func(*options)

type options struct {
	logger  *zap.Logger
	cache   *cache.ResultCache
	onClose func(*List)
}

// WithLogger sets the logger used by the list and its components.
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithCache shares rc between lists. Without it a list gets a private cache.
func WithCache(rc *cache.ResultCache) Option {
	return func(o *options) {
		o.cache = rc
	}
}

// WithOnClose registers fn to run once the list is closed.
func WithOnClose(fn func(*List)) Option {
	return func(o *options) {
		o.onClose = fn
	}
}
