package commands

import (
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/goliatone/go-entitylist/entitylist"
	"github.com/goliatone/go-entitylist/query"
)

// filterOps is checked in order so two character operators win.
var filterOps = []struct {
	token string
	op    query.Operator
}{
	{">=", query.OpGte},
	{"<=", query.OpLte},
	{"!=", query.OpNe},
	{"~=", query.OpArrayContains},
	{" in ", query.OpIn},
	{">", query.OpGt},
	{"<", query.OpLt},
	{"=", query.OpEq},
}

// parseFilter reads expressions such as "status=active", "age>=21",
// "tags~=vip" and "status in lead,active".
func parseFilter(expr string) (query.Filter, error) {
	for _, candidate := range filterOps {
		i := strings.Index(expr, candidate.token)
		if i <= 0 {
			continue
		}
		field := strings.TrimSpace(expr[:i])
		raw := strings.TrimSpace(expr[i+len(candidate.token):])

		if candidate.op == query.OpIn {
			parts := strings.Split(raw, ",")
			values := make([]any, len(parts))
			for j, p := range parts {
				values[j] = parseValue(strings.TrimSpace(p))
			}
			return query.Where(field, candidate.op, values), nil
		}
		return query.Where(field, candidate.op, parseValue(raw)), nil
	}
	return query.Filter{}, errors.Errorf("invalid filter %q", expr)
}

func parseFilters(exprs []string) ([]query.Filter, error) {
	filters := make([]query.Filter, 0, len(exprs))
	for _, expr := range exprs {
		f, err := parseFilter(expr)
		if err != nil {
			return nil, err
		}
		filters = append(filters, f)
	}
	return filters, nil
}

// parseValue types a literal: quoted strings stay strings, true and false are
// bools, then int, float and RFC 3339 time are tried.
func parseValue(raw string) any {
	if len(raw) >= 2 && raw[0] == '"' && raw[len(raw)-1] == '"' {
		return raw[1 : len(raw)-1]
	}
	switch raw {
	case "true":
		return true
	case "false":
		return false
	}
	if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(raw, 64); err == nil {
		return f
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t.UTC()
	}
	return raw
}

// parseSearchFields reads "field:strategy" pairs. The strategy defaults to prefix.
func parseSearchFields(specs []string) ([]entitylist.SearchField, error) {
	fields := make([]entitylist.SearchField, 0, len(specs))
	for _, spec := range specs {
		name, strategy, found := strings.Cut(spec, ":")
		if !found {
			strategy = string(entitylist.StrategyPrefix)
		}
		f := entitylist.SearchField{Field: name, Strategy: entitylist.Strategy(strategy)}
		if err := f.Validate(); err != nil {
			return nil, errors.Wrapf(err, "search field %q", spec)
		}
		fields = append(fields, f)
	}
	return fields, nil
}

func parseSort(field string, desc bool) *query.Sort {
	if field == "" {
		return nil
	}
	dir := query.Asc
	if desc {
		dir = query.Desc
	}
	return query.By(field, dir)
}
