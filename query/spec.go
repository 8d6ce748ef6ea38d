package query

import (
	validation "github.com/go-ozzo/ozzo-validation/v4"
)

const (
	// DefaultPageSize is used when a Spec is created without a page size.
	DefaultPageSize = 20
	// MaxPageSize bounds a single backend round-trip.
	MaxPageSize = 1000
)

// Spec describes a filtered, sorted request against one collection.
// Two specs are the same query when their canonical cache keys match,
// see cache.Keys.List.
type Spec struct {
	Collection string
	Filters    []Filter
	Sort       *Sort
	PageSize   int
}

// NewSpec returns a validated spec.
func NewSpec(collection string, pageSize int, sort *Sort, filters ...Filter) (Spec, error) {
	if pageSize == 0 {
		pageSize = DefaultPageSize
	}
	s := Spec{
		Collection: collection,
		Filters:    append([]Filter(nil), filters...),
		Sort:       sort,
		PageSize:   pageSize,
	}
	if err := s.Validate(); err != nil {
		return Spec{}, err
	}
	return s, nil
}

// Validate implements validation.Validatable.
func (s Spec) Validate() error {
	return validation.ValidateStruct(&s,
		validation.Field(&s.Collection, validation.Required),
		validation.Field(&s.PageSize, validation.Required, validation.Min(1), validation.Max(MaxPageSize)),
		validation.Field(&s.Filters),
		validation.Field(&s.Sort),
	)
}

// ActiveFilters returns the enabled filters in the order they were supplied.
func (s Spec) ActiveFilters() []Filter {
	out := make([]Filter, 0, len(s.Filters))
	for _, f := range s.Filters {
		if !f.Disabled {
			out = append(out, f)
		}
	}
	return out
}

// WithFilters returns a copy of s using filters.
func (s Spec) WithFilters(filters ...Filter) Spec {
	s.Filters = append([]Filter(nil), filters...)
	return s
}

// WithSort returns a copy of s sorted by sort.
func (s Spec) WithSort(sort *Sort) Spec {
	if sort != nil {
		cp := *sort
		sort = &cp
	}
	s.Sort = sort
	return s
}

// Clone returns a deep enough copy of s that callers may mutate the result.
func (s Spec) Clone() Spec {
	return s.WithFilters(s.Filters...).WithSort(s.Sort)
}
