package repository

import (
	"encoding/json"
	"math"
	"strings"
)

// Filter is a parsed filter tuple. A two-element tuple (field, value) is an
// equality filter; a three-element tuple carries its own operator.
type Filter struct {
	Field    string
	Operator string
	Value    any
}

// NewFilter creates a filter with an explicit operator
func NewFilter(field, operator string, value any) Filter {
	return Filter{Field: field, Operator: operator, Value: value}
}

// Eq creates an equality filter
func Eq(field string, value any) Filter {
	return Filter{Field: field, Operator: "=", Value: value}
}

// ParseFilter accepts a Filter, a 2- or 3-element slice, or a JSON string that
// decodes to such a slice.
func ParseFilter(raw any) (Filter, error) {
	switch v := raw.(type) {
	case Filter:
		return v, nil
	case *Filter:
		if v == nil {
			return Filter{}, newError(KindFilterMustBeArray, nil)
		}
		return *v, nil
	case string:
		var decoded any
		if err := json.Unmarshal([]byte(v), &decoded); err != nil {
			return Filter{}, &Error{Kind: KindInvalidFilterFormat, Err: err}
		}
		parts, ok := decoded.([]any)
		if !ok {
			return Filter{}, newError(KindFilterMustBeArray, nil)
		}
		for i := range parts {
			parts[i] = normalizeJSON(parts[i])
		}
		return parseTuple(parts)
	case []any:
		return parseTuple(v)
	case []string:
		parts := make([]any, len(v))
		for i, s := range v {
			parts[i] = s
		}
		return parseTuple(parts)
	default:
		return Filter{}, newError(KindFilterMustBeArray, nil)
	}
}

func parseTuple(parts []any) (Filter, error) {
	var f Filter
	var ok bool

	switch len(parts) {
	case 2:
		f.Operator = "="
		f.Value = parts[1]
	case 3:
		f.Operator, ok = parts[1].(string)
		if !ok {
			return Filter{}, newError(KindInvalidFilterFormat, nil)
		}
		f.Value = parts[2]
	default:
		return Filter{}, newError(KindInvalidFilterFormat, nil)
	}

	f.Field, ok = parts[0].(string)
	if !ok {
		return Filter{}, newError(KindInvalidFilterFormat, nil)
	}
	return f, nil
}

// SplitRelationField splits "relation.column". ok is false when field has no
// dot; err is set when the dotted path is not exactly two non-empty segments.
func SplitRelationField(field string) (relation, column string, ok bool, err error) {
	if !strings.Contains(field, ".") {
		return "", "", false, nil
	}
	parts := strings.Split(field, ".")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", true, newError(KindInvalidRelationFieldFormat, field)
	}
	return parts[0], parts[1], true, nil
}

// ApplyFilter compiles a single filter onto q
func ApplyFilter(q Queryable, raw any) error {
	f, err := ParseFilter(raw)
	if err != nil {
		return err
	}

	relation, column, isRelation, err := SplitRelationField(f.Field)
	if err != nil {
		return err
	}
	if isRelation {
		q.WhereRelationHas(relation, column, f.Operator, f.Value)
		return nil
	}

	q.Where(f.Field, f.Operator, f.Value)
	return nil
}

// ApplyFilters applies filters in order and stops at the first failure.
// Filters already applied stay applied.
func ApplyFilters(q Queryable, filters []any) error {
	for _, filter := range filters {
		if err := ApplyFilter(q, filter); err != nil {
			return err
		}
	}
	return nil
}

// normalizeJSON turns whole JSON numbers into int64 so they bind as integers
func normalizeJSON(v any) any {
	switch n := v.(type) {
	case float64:
		if n == math.Trunc(n) && math.Abs(n) < 1<<53 {
			return int64(n)
		}
		return n
	case []any:
		for i := range n {
			n[i] = normalizeJSON(n[i])
		}
		return n
	default:
		return v
	}
}
