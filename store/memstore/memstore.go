// Package memstore is an in-process store.Store. It reports hasMore exactly
// and is meant for tests, demos and small fixed datasets.
//
// Ordering follows document store rules: a record that lacks an order-by
// field is left out of the results, and a record that lacks a filtered field
// never matches the filter.
package memstore

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/goliatone/go-entitylist/query"
	"github.com/goliatone/go-entitylist/store"
)

// ErrNotFound is returned by Update and Delete for unknown ids.
var ErrNotFound = errors.New("memstore: record not found")

// Option configures a Store.
type Option func(*Store)

// WithoutHasMore makes Execute leave Page.HasMore unset, so callers fall back
// to the full-page heuristic.
func WithoutHasMore() Option {
	return func(s *Store) {
		s.exact = false
	}
}

// Store keeps records per collection in insertion order.
type Store struct {
	mu          sync.RWMutex
	collections map[string][]query.Record
	exact       bool
}

var _ store.Store = (*Store)(nil)

// New returns an empty store.
func New(opts ...Option) *Store {
	s := &Store{
		collections: make(map[string][]query.Record),
		exact:       true,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Insert adds records to collection. Records without an id get a random UUID.
// It returns the ids in input order.
func (s *Store) Insert(collection string, records ...query.Record) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := make([]string, len(records))
	for i, rec := range records {
		rec = rec.Clone()
		if rec.ID() == "" {
			rec[query.IDField] = uuid.NewString()
		}
		ids[i] = rec.ID()
		s.collections[collection] = append(s.collections[collection], rec)
	}
	return ids
}

// Update merges fields into the record with id.
func (s *Store) Update(collection, id string, fields query.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, rec := range s.collections[collection] {
		if rec.ID() != id {
			continue
		}
		next := rec.Clone()
		for k, v := range fields {
			if k == query.IDField {
				continue
			}
			next[k] = v
		}
		s.collections[collection][i] = next
		return nil
	}
	return errors.Wrapf(ErrNotFound, "%s/%s", collection, id)
}

// Delete removes the record with id.
func (s *Store) Delete(collection, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	records := s.collections[collection]
	for i, rec := range records {
		if rec.ID() == id {
			s.collections[collection] = append(records[:i:i], records[i+1:]...)
			return nil
		}
	}
	return errors.Wrapf(ErrNotFound, "%s/%s", collection, id)
}

// Len returns the number of records in collection.
func (s *Store) Len(collection string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.collections[collection])
}

// Execute implements store.Store.
func (s *Store) Execute(ctx context.Context, q query.Query) (store.Page, error) {
	if err := ctx.Err(); err != nil {
		return store.Page{}, err
	}

	var after *query.Position
	if !q.After.IsZero() {
		pos, err := query.DecodeCursor(q.After)
		if err != nil {
			return store.Page{}, err
		}
		after = &pos
	}

	matched := s.match(q.Collection, q.Filters, q.OrderBy)
	sortRecords(matched, q.OrderBy)

	start := 0
	if after != nil {
		start = sort.Search(len(matched), func(i int) bool {
			return comparePosition(query.PositionOf(matched[i], q.OrderBy), *after, q.OrderBy) > 0
		})
	}

	end := len(matched)
	if q.Limit > 0 && start+q.Limit < end {
		end = start + q.Limit
	}

	page := store.Page{Records: matched[start:end]}
	if s.exact {
		page.HasMore = store.Bool(end < len(matched))
	}
	if n := len(page.Records); n > 0 {
		cursor, err := query.CursorFor(page.Records[n-1], q.OrderBy)
		if err != nil {
			return store.Page{}, err
		}
		page.LastCursor = cursor
	}
	return page, nil
}

// CountEstimate implements store.Store. The count is exact.
func (s *Store) CountEstimate(ctx context.Context, collection string, filters []query.Filter) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	return len(s.match(collection, filters, nil)), nil
}

func (s *Store) match(collection string, filters []query.Filter, orderBy []query.Sort) []query.Record {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []query.Record
next:
	for _, rec := range s.collections[collection] {
		for _, f := range filters {
			if !matches(rec, f) {
				continue next
			}
		}
		for _, o := range orderBy {
			if o.Field == query.IDField {
				continue
			}
			if _, ok := rec[o.Field]; !ok {
				continue next
			}
		}
		out = append(out, rec.Clone())
	}
	return out
}

func sortRecords(records []query.Record, orderBy []query.Sort) {
	sort.SliceStable(records, func(i, j int) bool {
		return comparePosition(query.PositionOf(records[i], orderBy), query.PositionOf(records[j], orderBy), orderBy) < 0
	})
}

// comparePosition orders two positions under orderBy, breaking ties by id.
func comparePosition(a, b query.Position, orderBy []query.Sort) int {
	for i, o := range orderBy {
		var x, y any
		if i < len(a.Values) {
			x = a.Values[i]
		}
		if i < len(b.Values) {
			y = b.Values[i]
		}
		c := compare(x, y)
		if o.Descending() {
			c = -c
		}
		if c != 0 {
			return c
		}
	}
	return compare(a.ID, b.ID)
}
