package entitylist

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	// ErrNoPreviousPage is returned by LoadNextPage before any first page.
	ErrNoPreviousPage = errors.New("entitylist: no previous page for spec")
	// ErrSuperseded marks a result that arrived after a newer request for the
	// same spec was issued. It is never published.
	ErrSuperseded = errors.New("entitylist: result superseded by a newer request")
	// ErrAllStrategiesFailed is the advisory error set when every search
	// sub-query failed.
	ErrAllStrategiesFailed = errors.New("entitylist: every search strategy failed")
	// ErrTransformDroppedID is returned when a transform changes or drops a record id.
	ErrTransformDroppedID = errors.New("entitylist: transform dropped the record id")
)

// FetchError is a failed backend round-trip.
type FetchError struct {
	Collection string
	Op         string
	Err        error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("entitylist: %s %s: %v", e.Op, e.Collection, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// SubqueryError is a failed search strategy. It only contributes zero records.
type SubqueryError struct {
	Field    string
	Strategy Strategy
	Err      error
}

func (e *SubqueryError) Error() string {
	return fmt.Sprintf("entitylist: search %s on %s: %v", e.Strategy, e.Field, e.Err)
}

func (e *SubqueryError) Unwrap() error { return e.Err }

// CountError is a failed count estimate. It is logged and never published.
type CountError struct {
	Collection string
	Err        error
}

func (e *CountError) Error() string {
	return fmt.Sprintf("entitylist: count %s: %v", e.Collection, e.Err)
}

func (e *CountError) Unwrap() error { return e.Err }
