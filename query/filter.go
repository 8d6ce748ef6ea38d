package query

import (
	"reflect"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/pkg/errors"
)

// Operator is a predicate operator understood by every store adapter.
type Operator string

const (
	OpEq               Operator = "eq"
	OpNe               Operator = "ne"
	OpLt               Operator = "lt"
	OpLte              Operator = "lte"
	OpGt               Operator = "gt"
	OpGte              Operator = "gte"
	OpIn               Operator = "in"
	OpNotIn            Operator = "notIn"
	OpArrayContains    Operator = "arrayContains"
	OpArrayContainsAny Operator = "arrayContainsAny"
)

// Operators lists every supported operator.
var Operators = []Operator{
	OpEq, OpNe, OpLt, OpLte, OpGt, OpGte, OpIn, OpNotIn, OpArrayContains, OpArrayContainsAny,
}

// Valid reports whether o is a known operator.
func (o Operator) Valid() bool {
	for _, op := range Operators {
		if op == o {
			return true
		}
	}
	return false
}

// IsInequality reports whether o constrains a range of values rather than a point.
// Document stores index these differently, see Build.
func (o Operator) IsInequality() bool {
	switch o {
	case OpNe, OpLt, OpLte, OpGt, OpGte, OpNotIn:
		return true
	}
	return false
}

// RequiresList reports whether the filter value must be a slice.
func (o Operator) RequiresList() bool {
	switch o {
	case OpIn, OpNotIn, OpArrayContainsAny:
		return true
	}
	return false
}

// Filter is a single (field, operator, value) predicate. Filters are values:
// every change produces a new Filter.
type Filter struct {
	Field    string
	Op       Operator
	Value    any
	Disabled bool
}

// Where builds an enabled filter.
func Where(field string, op Operator, value any) Filter {
	return Filter{Field: field, Op: op, Value: value}
}

// Eq is shorthand for Where(field, OpEq, value).
func Eq(field string, value any) Filter {
	return Where(field, OpEq, value)
}

// Enabled returns a copy of f with the disabled flag set to !enabled.
func (f Filter) Enabled(enabled bool) Filter {
	f.Disabled = !enabled
	return f
}

// Validate implements validation.Validatable.
func (f Filter) Validate() error {
	return validation.ValidateStruct(&f,
		validation.Field(&f.Field, validation.Required),
		validation.Field(&f.Op, validation.Required, validation.By(validOperator)),
		validation.Field(&f.Value, validation.When(f.Op.RequiresList(), validation.By(isList))),
	)
}

func validOperator(value any) error {
	op, _ := value.(Operator)
	if !op.Valid() {
		return errors.Errorf("unknown operator %q", op)
	}
	return nil
}

func isList(value any) error {
	if value == nil {
		return errors.New("must be a list")
	}
	switch reflect.ValueOf(value).Kind() {
	case reflect.Slice, reflect.Array:
		return nil
	}
	return errors.New("must be a list")
}

// Direction is a sort direction.
type Direction string

const (
	Asc  Direction = "asc"
	Desc Direction = "desc"
)

// Sort orders results by a single field.
type Sort struct {
	Field     string
	Direction Direction
}

// By builds a sort clause.
func By(field string, dir Direction) *Sort {
	return &Sort{Field: field, Direction: dir}
}

// Descending reports whether the sort is descending.
func (s Sort) Descending() bool {
	return s.Direction == Desc
}

// Validate implements validation.Validatable.
func (s Sort) Validate() error {
	return validation.ValidateStruct(&s,
		validation.Field(&s.Field, validation.Required),
		validation.Field(&s.Direction, validation.Required, validation.In(Asc, Desc)),
	)
}
