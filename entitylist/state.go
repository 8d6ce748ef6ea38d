package entitylist

import "github.com/goliatone/go-entitylist/query"

// State is a snapshot of a List published to subscribers.
type State struct {
	Records       []query.Record
	Loading       bool
	SearchLoading bool
	// Err is the last failure: a *FetchError, or ErrAllStrategiesFailed after a search.
	Err     error
	HasMore bool
	// TotalCount is the best effort total of the current query, nil when unknown.
	TotalCount *int
	// Page is the number of pages in the window.
	Page      int
	Term      string
	FromCache bool
	Filters   []query.Filter
	Sort      *query.Sort

	version uint64
}

// IsEmpty reports whether nothing is loaded and nothing is loading.
func (s State) IsEmpty() bool {
	return len(s.Records) == 0 && !s.Loading && !s.SearchLoading
}

// IsFiltered reports whether any filter is active.
func (s State) IsFiltered() bool {
	for _, f := range s.Filters {
		if !f.Disabled {
			return true
		}
	}
	return false
}

// IsSearching reports whether the records are search results.
func (s State) IsSearching() bool {
	return s.Term != ""
}

func (s State) clone() State {
	s.Records = append([]query.Record(nil), s.Records...)
	s.Filters = append([]query.Filter(nil), s.Filters...)
	if s.Sort != nil {
		sort := *s.Sort
		s.Sort = &sort
	}
	if s.TotalCount != nil {
		n := *s.TotalCount
		s.TotalCount = &n
	}
	return s
}
