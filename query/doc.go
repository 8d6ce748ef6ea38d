// Package query holds the value objects describing a list request and the
// builder that turns them into a backend query.
//
// # Model
//
//   - Filter: a (field, operator, value) predicate. Disabled filters are kept
//     by consumers for toggling but never reach a store or a cache key.
//   - Sort: a single (field, direction) ordering.
//   - Spec: collection + filters + sort + page size. Validated with
//     ozzo-validation.
//   - Record: a document, identified by its "id" field.
//   - Cursor: an opaque token. Adapters encode a Position (the order-by
//     values of the last record) with msgpack.
//
// # Builder
//
// Build is pure. Filters keep their supplied order, then ordering, then the
// page limit, then the "after" cursor. The only store specific rule lives in
// Build as well: an inequality filter on a field different from the sort
// field forces an ascending ordering on that field first. An ascending "id"
// ordering is always appended as a tie-breaker.
//
//	spec, _ := query.NewSpec("contacts", 20, query.By("createdAt", query.Desc),
//		query.Eq("status", "active"),
//	)
//	q := query.Build(spec, "")
package query
