package query

import "fmt"

// IDField is the identity field every record carries.
const IDField = "id"

// Record is a single document returned by a store. Identity is the "id" field.
type Record map[string]any

// ID returns the record identity, or "" when absent.
func (r Record) ID() string {
	switch v := r[IDField].(type) {
	case nil:
		return ""
	case string:
		return v
	case fmt.Stringer:
		return v.String()
	default:
		return fmt.Sprint(v)
	}
}

// Clone returns a shallow copy of r.
func (r Record) Clone() Record {
	if r == nil {
		return nil
	}
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}
