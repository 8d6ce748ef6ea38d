package query

// Query is the backend-executable description of a single page request.
// Store adapters translate it into their native query language.
type Query struct {
	Collection string
	Filters    []Filter
	OrderBy    []Sort
	Limit      int
	After      Cursor
}

// Build turns spec and an optional cursor into a Query. It is pure and
// deterministic: the same inputs always produce the same Query.
//
// Active filters keep the order they were supplied in. Ordering follows the
// index rule of document stores: when an inequality filter targets a field
// other than the requested sort field, that field must be ordered first, so
// an ascending clause on the first such field is placed before the requested
// sort. An ascending "id" clause always closes the ordering so cursors are
// unambiguous.
func Build(spec Spec, after Cursor) Query {
	filters := spec.ActiveFilters()
	return Query{
		Collection: spec.Collection,
		Filters:    filters,
		OrderBy:    orderBy(filters, spec.Sort),
		Limit:      spec.PageSize,
		After:      after,
	}
}

func orderBy(filters []Filter, sort *Sort) []Sort {
	var out []Sort

	if f, ok := firstInequality(filters); ok && (sort == nil || sort.Field != f.Field) {
		out = append(out, Sort{Field: f.Field, Direction: Asc})
	}

	if sort != nil {
		dir := sort.Direction
		if dir == "" {
			dir = Asc
		}
		out = append(out, Sort{Field: sort.Field, Direction: dir})
	}

	if len(out) == 0 || out[len(out)-1].Field != IDField {
		out = append(out, Sort{Field: IDField, Direction: Asc})
	}

	return out
}

func firstInequality(filters []Filter) (Filter, bool) {
	for _, f := range filters {
		if f.Op.IsInequality() {
			return f, true
		}
	}
	return Filter{}, false
}
