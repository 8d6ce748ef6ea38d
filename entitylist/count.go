package entitylist

import (
	"context"

	"go.uber.org/zap"

	"github.com/goliatone/go-entitylist/cache"
	"github.com/goliatone/go-entitylist/query"
	"github.com/goliatone/go-entitylist/store"
)

// DefaultMaxCountFilters is the largest number of active filters for which a
// count is estimated.
const DefaultMaxCountFilters = 1

// CountEstimator produces best effort totals for first page loads.
type CountEstimator struct {
	store      store.Store
	cache      *cache.ResultCache
	maxFilters int
	logger     *zap.Logger
}

// NewCountEstimator returns an estimator. A negative maxFilters disables counting.
func NewCountEstimator(st store.Store, rc *cache.ResultCache, maxFilters int, logger *zap.Logger) *CountEstimator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CountEstimator{store: st, cache: rc, maxFilters: maxFilters, logger: logger}
}

// Eligible reports whether spec is filtered lightly enough to count.
func (c *CountEstimator) Eligible(spec query.Spec) bool {
	return c.maxFilters >= 0 && len(spec.ActiveFilters()) <= c.maxFilters
}

// Estimate returns the number of records matching spec, or nil when the
// estimate failed. Failures are logged and never returned.
func (c *CountEstimator) Estimate(ctx context.Context, spec query.Spec) *int {
	fetch := func(ctx context.Context) (int, error) {
		return c.store.CountEstimate(ctx, spec.Collection, spec.ActiveFilters())
	}

	var (
		n   int
		err error
	)
	if c.cache != nil {
		n, err = c.cache.Count(ctx, spec, fetch)
	} else {
		n, err = fetch(ctx)
	}
	if err != nil {
		c.logger.Warn("count estimate failed",
			zap.String("collection", spec.Collection),
			zap.Error(&CountError{Collection: spec.Collection, Err: err}),
		)
		return nil
	}
	return &n
}
