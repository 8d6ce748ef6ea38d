package cache

import (
	"sort"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"

	"github.com/goliatone/go-entitylist/query"
)

// Key namespaces. A full key reads "<collection>::<namespace>::<hash>" so that
// every entry of a collection shares the "<collection>::" prefix.
const (
	ListNamespace   = "list"
	SearchNamespace = "search"
	CountNamespace  = "count"
)

// Keys derives canonical cache keys from specs. Two specs that differ only in
// the order of their filters, or in filters that are disabled, map to the same key.
type Keys struct {
	serializer KeySerializer
}

// NewKeys returns a key builder using serializer, or the default serializer when nil.
func NewKeys(serializer KeySerializer) Keys {
	if serializer == nil {
		serializer = NewDefaultKeySerializer()
	}
	return Keys{serializer: serializer}
}

// CollectionPrefix returns the prefix shared by every key of collection.
func CollectionPrefix(collection string) string {
	return collection + KeySeparator
}

// List returns the key of the accumulated page window for spec.
func (k Keys) List(spec query.Spec) string {
	sortField, sortDir := "", ""
	if spec.Sort != nil {
		sortField, sortDir = spec.Sort.Field, string(spec.Sort.Direction)
	}
	raw := k.serializer.SerializeKey(ListNamespace,
		spec.Collection,
		k.filters(spec.ActiveFilters()),
		sortField,
		sortDir,
		spec.PageSize,
	)
	return k.compose(spec.Collection, ListNamespace, raw)
}

// Count returns the key of the count estimate for spec. Sort and page size do
// not change a count, so they are left out.
func (k Keys) Count(spec query.Spec) string {
	raw := k.serializer.SerializeKey(CountNamespace, spec.Collection, k.filters(spec.ActiveFilters()))
	return k.compose(spec.Collection, CountNamespace, raw)
}

// Search returns the key of a search result set. fields describes the search
// configuration in order, since result order depends on it.
func (k Keys) Search(collection, term string, fields []string) string {
	raw := k.serializer.SerializeKey(SearchNamespace, collection, term, fields)
	return k.compose(collection, SearchNamespace, raw)
}

func (k Keys) filters(filters []query.Filter) []string {
	out := make([]string, len(filters))
	for i, f := range filters {
		out[i] = k.serializer.SerializeKey(f.Field, string(f.Op), f.Value)
	}
	sort.Strings(out)
	return out
}

func (k Keys) compose(collection, namespace, raw string) string {
	var b strings.Builder
	b.WriteString(CollectionPrefix(collection))
	b.WriteString(namespace)
	b.WriteString(KeySeparator)
	b.WriteString(strconv.FormatUint(xxhash.Sum64String(raw), 16))
	return b.String()
}
