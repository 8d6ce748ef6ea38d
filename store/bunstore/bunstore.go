// Package bunstore serves entity lists from SQL tables through
// go-repository-bun repositories.
//
// Each collection is registered with the repository that reads it and a
// function that turns a model into a record. Record fields map to snake_case
// columns unless WithColumns says otherwise. Array operators have no portable
// SQL form and are rejected with store.ErrUnsupportedOperator.
package bunstore

import (
	"context"
	"strings"
	"sync"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/pkg/errors"
	"github.com/uptrace/bun"
	"go.uber.org/zap"

	"github.com/goliatone/go-entitylist/query"
	"github.com/goliatone/go-entitylist/store"
)

// ErrUnknownCollection is returned for collections that were never registered.
var ErrUnknownCollection = errors.New("bunstore: unknown collection")

// Lister is the part of repository.Repository the store reads through.
type Lister[T any] interface {
	List(ctx context.Context, criteria ...repository.SelectCriteria) ([]T, int, error)
	Count(ctx context.Context, criteria ...repository.SelectCriteria) (int, error)
}

type source interface {
	list(ctx context.Context, criteria []repository.SelectCriteria) ([]query.Record, error)
	count(ctx context.Context, criteria []repository.SelectCriteria) (int, error)
}

type typedSource[T any] struct {
	repo     Lister[T]
	toRecord func(T) query.Record
}

func (s typedSource[T]) list(ctx context.Context, criteria []repository.SelectCriteria) ([]query.Record, error) {
	models, _, err := s.repo.List(ctx, criteria...)
	if err != nil {
		return nil, err
	}
	out := make([]query.Record, len(models))
	for i, m := range models {
		out[i] = s.toRecord(m)
	}
	return out, nil
}

func (s typedSource[T]) count(ctx context.Context, criteria []repository.SelectCriteria) (int, error) {
	return s.repo.Count(ctx, criteria...)
}

// Option configures a Store.
type Option func(*Store)

// WithColumns overrides the column used for record fields.
func WithColumns(mapping map[string]string) Option {
	return func(s *Store) {
		for field, col := range mapping {
			s.columns[field] = col
		}
	}
}

// WithLogger sets the logger used for query diagnostics.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// Store implements store.Store over registered repositories.
type Store struct {
	mu      sync.RWMutex
	sources map[string]source
	columns columns
	logger  *zap.Logger
}

var _ store.Store = (*Store)(nil)

// New returns a store with no collections.
func New(opts ...Option) *Store {
	s := &Store{
		sources: make(map[string]source),
		columns: make(columns),
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register serves collection from repo, converting models with toRecord.
func Register[T any](s *Store, collection string, repo Lister[T], toRecord func(T) query.Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sources[collection] = typedSource[T]{repo: repo, toRecord: toRecord}
}

func (s *Store) source(collection string) (source, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	src, ok := s.sources[collection]
	if !ok {
		return nil, errors.Wrap(ErrUnknownCollection, collection)
	}
	return src, nil
}

// Execute implements store.Store. It asks for one row more than the limit to
// report HasMore exactly.
func (s *Store) Execute(ctx context.Context, q query.Query) (store.Page, error) {
	src, err := s.source(q.Collection)
	if err != nil {
		return store.Page{}, err
	}

	clauses, err := s.clauses(q)
	if err != nil {
		return store.Page{}, err
	}

	criteria := make([]repository.SelectCriteria, 0, len(clauses)+len(q.OrderBy)+1)
	for _, c := range clauses {
		criteria = append(criteria, c.criteria())
	}
	for _, o := range q.OrderBy {
		criteria = append(criteria, s.order(o))
	}
	if q.Limit > 0 {
		limit := q.Limit + 1
		criteria = append(criteria, func(sq *bun.SelectQuery) *bun.SelectQuery {
			return sq.Limit(limit)
		})
	}

	s.logger.Debug("bun list", zap.String("collection", q.Collection), zap.Int("clauses", len(clauses)))

	records, err := src.list(ctx, criteria)
	if err != nil {
		return store.Page{}, errors.Wrapf(err, "list %s", q.Collection)
	}

	more := q.Limit > 0 && len(records) > q.Limit
	if more {
		records = records[:q.Limit]
	}

	page := store.Page{Records: records, HasMore: store.Bool(more)}
	if n := len(records); n > 0 {
		if page.LastCursor, err = query.CursorFor(records[n-1], q.OrderBy); err != nil {
			return store.Page{}, err
		}
	}
	return page, nil
}

// CountEstimate implements store.Store with an exact COUNT.
func (s *Store) CountEstimate(ctx context.Context, collection string, filters []query.Filter) (int, error) {
	src, err := s.source(collection)
	if err != nil {
		return 0, err
	}

	criteria := make([]repository.SelectCriteria, 0, len(filters))
	for _, f := range filters {
		c, err := s.filter(f)
		if err != nil {
			return 0, err
		}
		criteria = append(criteria, c.criteria())
	}

	n, err := src.count(ctx, criteria)
	if err != nil {
		return 0, errors.Wrapf(err, "count %s", collection)
	}
	return n, nil
}

// clause is a single WHERE condition with bun placeholders.
type clause struct {
	expr string
	args []any
}

func (c clause) criteria() repository.SelectCriteria {
	return func(sq *bun.SelectQuery) *bun.SelectQuery {
		return sq.Where(c.expr, c.args...)
	}
}

func (s *Store) clauses(q query.Query) ([]clause, error) {
	out := make([]clause, 0, len(q.Filters)+len(q.OrderBy)+1)
	for _, f := range q.Filters {
		c, err := s.filter(f)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}

	for _, o := range q.OrderBy {
		if o.Field != query.IDField {
			out = append(out, clause{expr: "? IS NOT NULL", args: []any{s.ident(o.Field)}})
		}
	}

	if !q.After.IsZero() {
		pos, err := query.DecodeCursor(q.After)
		if err != nil {
			return nil, err
		}
		keyset, err := s.keyset(q.OrderBy, pos)
		if err != nil {
			return nil, err
		}
		out = append(out, keyset)
	}
	return out, nil
}

func (s *Store) filter(f query.Filter) (clause, error) {
	col := s.ident(f.Field)

	switch f.Op {
	case query.OpEq:
		return clause{"? = ?", []any{col, f.Value}}, nil
	case query.OpNe:
		return clause{"? <> ?", []any{col, f.Value}}, nil
	case query.OpLt:
		return clause{"? < ?", []any{col, f.Value}}, nil
	case query.OpLte:
		return clause{"? <= ?", []any{col, f.Value}}, nil
	case query.OpGt:
		return clause{"? > ?", []any{col, f.Value}}, nil
	case query.OpGte:
		return clause{"? >= ?", []any{col, f.Value}}, nil
	case query.OpIn:
		return clause{"? IN (?)", []any{col, bun.In(f.Value)}}, nil
	case query.OpNotIn:
		return clause{"? NOT IN (?)", []any{col, bun.In(f.Value)}}, nil
	}
	return clause{}, errors.Wrapf(store.ErrUnsupportedOperator, "%s on %s", f.Op, f.Field)
}

// keyset matches rows strictly after pos under orderBy.
func (s *Store) keyset(orderBy []query.Sort, pos query.Position) (clause, error) {
	if len(pos.Values) != len(orderBy) {
		return clause{}, errors.Wrap(query.ErrInvalidCursor, "cursor does not match order")
	}

	var (
		branches []string
		args     []any
	)
	for i, o := range orderBy {
		parts := make([]string, 0, i+1)
		for j := 0; j < i; j++ {
			parts = append(parts, "? = ?")
			args = append(args, s.ident(orderBy[j].Field), pos.Values[j])
		}
		op := ">"
		if o.Descending() {
			op = "<"
		}
		parts = append(parts, "? "+op+" ?")
		args = append(args, s.ident(o.Field), pos.Values[i])
		branches = append(branches, "("+strings.Join(parts, " AND ")+")")
	}
	return clause{expr: "(" + strings.Join(branches, " OR ") + ")", args: args}, nil
}

func (s *Store) order(o query.Sort) repository.SelectCriteria {
	expr := "? ASC"
	if o.Descending() {
		expr = "? DESC"
	}
	col := s.ident(o.Field)
	return func(sq *bun.SelectQuery) *bun.SelectQuery {
		return sq.OrderExpr(expr, col)
	}
}

func (s *Store) ident(field string) bun.Ident {
	return bun.Ident(s.columns.name(field))
}
