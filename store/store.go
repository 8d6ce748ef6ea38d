// Package store defines the boundary between entity lists and the document
// store that serves them.
//
// Adapters live in subpackages: memstore keeps records in process, mongostore
// talks to MongoDB and bunstore to SQL databases through bun.
package store

import (
	"context"

	"github.com/pkg/errors"

	"github.com/goliatone/go-entitylist/query"
)

// ErrUnsupportedOperator is returned by adapters that cannot express an operator.
var ErrUnsupportedOperator = errors.New("store: unsupported operator")

// Page is one backend round-trip worth of records.
type Page struct {
	Records []query.Record
	// LastCursor points just after the last record, empty when Records is empty.
	LastCursor query.Cursor
	// HasMore is set by adapters that know whether another page exists.
	// When nil, callers fall back to len(Records) == Limit.
	HasMore *bool
}

// More resolves whether another page may exist for a request of limit records.
func (p Page) More(limit int) bool {
	if p.HasMore != nil {
		return *p.HasMore
	}
	return limit > 0 && len(p.Records) == limit
}

// Store executes queries against one backend.
type Store interface {
	// Execute runs q and returns at most q.Limit records positioned after q.After.
	Execute(ctx context.Context, q query.Query) (Page, error)
	// CountEstimate returns the number of records of collection matching filters.
	// Implementations may approximate.
	CountEstimate(ctx context.Context, collection string, filters []query.Filter) (int, error)
}

// Bool returns a pointer to v, for Page.HasMore.
func Bool(v bool) *bool {
	return &v
}
