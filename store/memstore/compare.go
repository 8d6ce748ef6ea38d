package memstore

import (
	"reflect"
	"strings"
	"time"

	"github.com/goliatone/go-entitylist/query"
)

// Kind ranks order values of different kinds against each other.
const (
	rankNil = iota
	rankBool
	rankNumber
	rankTime
	rankString
	rankOther
)

func rank(v any) int {
	switch v.(type) {
	case nil:
		return rankNil
	case bool:
		return rankBool
	case time.Time, *time.Time:
		return rankTime
	case string:
		return rankString
	}
	if _, ok := number(v); ok {
		return rankNumber
	}
	return rankOther
}

func number(v any) (float64, bool) {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(rv.Int()), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return float64(rv.Uint()), true
	case reflect.Float32, reflect.Float64:
		return rv.Float(), true
	}
	return 0, false
}

func asTime(v any) time.Time {
	switch t := v.(type) {
	case time.Time:
		return t
	case *time.Time:
		if t != nil {
			return *t
		}
	}
	return time.Time{}
}

// compare orders a and b. Values of different kinds order by kind; within a
// kind, numbers compare numerically, strings bytewise, times chronologically
// and false before true.
func compare(a, b any) int {
	ra, rb := rank(a), rank(b)
	if ra != rb {
		return cmpInt(ra, rb)
	}

	switch ra {
	case rankNil:
		return 0
	case rankBool:
		x, y := a.(bool), b.(bool)
		switch {
		case x == y:
			return 0
		case !x:
			return -1
		default:
			return 1
		}
	case rankNumber:
		x, _ := number(a)
		y, _ := number(b)
		switch {
		case x < y:
			return -1
		case x > y:
			return 1
		}
		return 0
	case rankTime:
		return asTime(a).Compare(asTime(b))
	case rankString:
		return strings.Compare(a.(string), b.(string))
	}

	if reflect.DeepEqual(a, b) {
		return 0
	}
	return strings.Compare(reflect.TypeOf(a).String(), reflect.TypeOf(b).String())
}

func cmpInt(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func list(v any) []any {
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil
	}
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out
}

func contains(values []any, v any) bool {
	for _, x := range values {
		if rank(x) == rank(v) && compare(x, v) == 0 {
			return true
		}
	}
	return false
}

// matches reports whether rec satisfies f. Records without the filtered field
// never match, whatever the operator.
func matches(rec query.Record, f query.Filter) bool {
	v, ok := rec[f.Field]
	if f.Field == query.IDField {
		v, ok = rec.ID(), rec.ID() != ""
	}
	if !ok {
		return false
	}

	switch f.Op {
	case query.OpEq:
		return rank(v) == rank(f.Value) && compare(v, f.Value) == 0
	case query.OpNe:
		return rank(v) != rank(f.Value) || compare(v, f.Value) != 0
	case query.OpLt:
		return rank(v) == rank(f.Value) && compare(v, f.Value) < 0
	case query.OpLte:
		return rank(v) == rank(f.Value) && compare(v, f.Value) <= 0
	case query.OpGt:
		return rank(v) == rank(f.Value) && compare(v, f.Value) > 0
	case query.OpGte:
		return rank(v) == rank(f.Value) && compare(v, f.Value) >= 0
	case query.OpIn:
		return contains(list(f.Value), v)
	case query.OpNotIn:
		return !contains(list(f.Value), v)
	case query.OpArrayContains:
		return contains(list(v), f.Value)
	case query.OpArrayContainsAny:
		have := list(v)
		for _, want := range list(f.Value) {
			if contains(have, want) {
				return true
			}
		}
	}
	return false
}
