// Package mongostore serves entity lists from MongoDB collections.
//
// Records are returned as plain maps with "_id" renamed to "id". Pages are
// fetched with one extra document of lookahead, so Page.HasMore is exact.
// Continuation uses keyset conditions over the order-by fields rather than
// skip, which keeps deep pages as cheap as the first one.
package mongostore

import (
	"context"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"github.com/goliatone/go-entitylist/query"
	"github.com/goliatone/go-entitylist/store"
)

const mongoID = "_id"

// Option configures a Store.
type Option func(*Store)

// WithObjectIDs treats id values as hex ObjectIDs in filters and cursors.
func WithObjectIDs() Option {
	return func(s *Store) {
		s.objectIDs = true
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

// Store implements store.Store over a MongoDB database.
type Store struct {
	db        *mongo.Database
	objectIDs bool
	logger    *zap.Logger
}

var _ store.Store = (*Store)(nil)

// New returns a store reading collections from db.
func New(db *mongo.Database, opts ...Option) *Store {
	s := &Store{db: db, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Execute implements store.Store.
func (s *Store) Execute(ctx context.Context, q query.Query) (store.Page, error) {
	filter, err := s.queryFilter(q)
	if err != nil {
		return store.Page{}, err
	}

	opts := options.Find().SetSort(sortDoc(q.OrderBy))
	if q.Limit > 0 {
		opts.SetLimit(int64(q.Limit) + 1)
	}

	s.logger.Debug("mongo find",
		zap.String("collection", q.Collection),
		zap.Any("filter", filter),
		zap.Int("limit", q.Limit),
	)

	cur, err := s.db.Collection(q.Collection).Find(ctx, filter, opts)
	if err != nil {
		return store.Page{}, errors.Wrapf(err, "find %s", q.Collection)
	}
	var docs []bson.M
	if err := cur.All(ctx, &docs); err != nil {
		return store.Page{}, errors.Wrapf(err, "decode %s", q.Collection)
	}

	more := q.Limit > 0 && len(docs) > q.Limit
	if more {
		docs = docs[:q.Limit]
	}

	page := store.Page{
		Records: make([]query.Record, len(docs)),
		HasMore: store.Bool(more),
	}
	for i, doc := range docs {
		page.Records[i] = toRecord(doc)
	}
	if n := len(page.Records); n > 0 {
		if page.LastCursor, err = query.CursorFor(page.Records[n-1], q.OrderBy); err != nil {
			return store.Page{}, err
		}
	}
	return page, nil
}

// CountEstimate implements store.Store. Without filters it uses the
// collection metadata count, otherwise an exact CountDocuments.
func (s *Store) CountEstimate(ctx context.Context, collection string, filters []query.Filter) (int, error) {
	coll := s.db.Collection(collection)
	if len(filters) == 0 {
		n, err := coll.EstimatedDocumentCount(ctx)
		if err != nil {
			return 0, errors.Wrapf(err, "estimate %s", collection)
		}
		return int(n), nil
	}

	filter, err := s.filterDoc(filters)
	if err != nil {
		return 0, err
	}
	n, err := coll.CountDocuments(ctx, filter)
	if err != nil {
		return 0, errors.Wrapf(err, "count %s", collection)
	}
	return int(n), nil
}

func (s *Store) queryFilter(q query.Query) (bson.D, error) {
	filter, err := s.filterDoc(q.Filters)
	if err != nil {
		return nil, err
	}
	for _, o := range q.OrderBy {
		if o.Field != query.IDField {
			filter = append(filter, bson.E{Key: "$and", Value: bson.A{bson.D{{Key: o.Field, Value: bson.D{{Key: "$exists", Value: true}}}}}})
		}
	}

	if q.After.IsZero() {
		return flatten(filter), nil
	}
	pos, err := query.DecodeCursor(q.After)
	if err != nil {
		return nil, err
	}
	keyset, err := s.keysetDoc(q.OrderBy, pos)
	if err != nil {
		return nil, err
	}
	return flatten(append(filter, bson.E{Key: "$and", Value: bson.A{keyset}})), nil
}

// flatten merges repeated top-level $and entries into one.
func flatten(filter bson.D) bson.D {
	var (
		out bson.D
		and bson.A
	)
	for _, e := range filter {
		if e.Key == "$and" {
			and = append(and, e.Value.(bson.A)...)
			continue
		}
		out = append(out, e)
	}
	if len(and) > 0 {
		out = append(out, bson.E{Key: "$and", Value: and})
	}
	if out == nil {
		out = bson.D{}
	}
	return out
}

type clause struct {
	field string
	op    string
	value any
}

// filterDoc translates filters into a query document. Operators on the same
// field are merged into one operator document; repeating an operator on a
// field moves the clauses under $and.
func (s *Store) filterDoc(filters []query.Filter) (bson.D, error) {
	clauses := make([]clause, 0, len(filters))
	for _, f := range filters {
		c, err := s.clause(f)
		if err != nil {
			return nil, err
		}
		clauses = append(clauses, c)
	}

	var (
		order    []string
		byField  = make(map[string]bson.D)
		repeated bool
	)
	for _, c := range clauses {
		ops, seen := byField[c.field]
		if !seen {
			order = append(order, c.field)
		}
		for _, e := range ops {
			if e.Key == c.op {
				repeated = true
			}
		}
		byField[c.field] = append(ops, bson.E{Key: c.op, Value: c.value})
	}

	if repeated {
		and := make(bson.A, len(clauses))
		for i, c := range clauses {
			and[i] = bson.D{{Key: c.field, Value: bson.D{{Key: c.op, Value: c.value}}}}
		}
		return bson.D{{Key: "$and", Value: and}}, nil
	}

	out := make(bson.D, 0, len(order))
	for _, field := range order {
		out = append(out, bson.E{Key: field, Value: byField[field]})
	}
	return out, nil
}

func (s *Store) clause(f query.Filter) (clause, error) {
	field := fieldName(f.Field)
	value, err := s.value(f.Field, f.Value)
	if err != nil {
		return clause{}, err
	}

	switch f.Op {
	case query.OpEq:
		return clause{field, "$eq", value}, nil
	case query.OpNe:
		return clause{field, "$ne", value}, nil
	case query.OpLt:
		return clause{field, "$lt", value}, nil
	case query.OpLte:
		return clause{field, "$lte", value}, nil
	case query.OpGt:
		return clause{field, "$gt", value}, nil
	case query.OpGte:
		return clause{field, "$gte", value}, nil
	case query.OpIn, query.OpArrayContainsAny:
		return clause{field, "$in", value}, nil
	case query.OpNotIn:
		return clause{field, "$nin", value}, nil
	case query.OpArrayContains:
		return clause{field, "$elemMatch", bson.D{{Key: "$eq", Value: value}}}, nil
	}
	return clause{}, errors.Wrapf(store.ErrUnsupportedOperator, "%s on %s", f.Op, f.Field)
}

// keysetDoc matches documents strictly after pos under orderBy:
// (f1 > v1) or (f1 = v1 and f2 > v2) and so on, flipping the comparison for
// descending fields.
func (s *Store) keysetDoc(orderBy []query.Sort, pos query.Position) (bson.D, error) {
	if len(pos.Values) != len(orderBy) {
		return nil, errors.Wrap(query.ErrInvalidCursor, "cursor does not match order")
	}

	values := make([]any, len(orderBy))
	for i, o := range orderBy {
		v, err := s.value(o.Field, pos.Values[i])
		if err != nil {
			return nil, err
		}
		values[i] = v
	}

	or := make(bson.A, 0, len(orderBy))
	for i, o := range orderBy {
		branch := make(bson.D, 0, i+1)
		for j := 0; j < i; j++ {
			branch = append(branch, bson.E{Key: fieldName(orderBy[j].Field), Value: values[j]})
		}
		op := "$gt"
		if o.Descending() {
			op = "$lt"
		}
		branch = append(branch, bson.E{Key: fieldName(o.Field), Value: bson.D{{Key: op, Value: values[i]}}})
		or = append(or, branch)
	}
	return bson.D{{Key: "$or", Value: or}}, nil
}

func sortDoc(orderBy []query.Sort) bson.D {
	out := make(bson.D, 0, len(orderBy))
	for _, o := range orderBy {
		dir := 1
		if o.Descending() {
			dir = -1
		}
		out = append(out, bson.E{Key: fieldName(o.Field), Value: dir})
	}
	return out
}

func fieldName(field string) string {
	if field == query.IDField {
		return mongoID
	}
	return field
}

// value converts id values to ObjectIDs when the store is configured for them.
func (s *Store) value(field string, v any) (any, error) {
	if !s.objectIDs || field != query.IDField {
		return v, nil
	}
	switch id := v.(type) {
	case string:
		oid, err := primitive.ObjectIDFromHex(id)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid object id %q", id)
		}
		return oid, nil
	case []string:
		out := make(bson.A, len(id))
		for i, x := range id {
			oid, err := primitive.ObjectIDFromHex(x)
			if err != nil {
				return nil, errors.Wrapf(err, "invalid object id %q", x)
			}
			out[i] = oid
		}
		return out, nil
	case []any:
		out := make(bson.A, len(id))
		for i, x := range id {
			c, err := s.value(field, x)
			if err != nil {
				return nil, err
			}
			out[i] = c
		}
		return out, nil
	}
	return v, nil
}

func toRecord(doc bson.M) query.Record {
	rec := make(query.Record, len(doc))
	for k, v := range doc {
		if k == mongoID {
			k = query.IDField
		}
		rec[k] = normalize(v)
	}
	return rec
}

func normalize(v any) any {
	switch x := v.(type) {
	case primitive.ObjectID:
		return x.Hex()
	case primitive.DateTime:
		return x.Time().UTC()
	case primitive.A:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = normalize(e)
		}
		return out
	case primitive.M:
		return map[string]any(toRecord(bson.M(x)))
	case primitive.D:
		return map[string]any(toRecord(bson.M(x.Map())))
	}
	return v
}
