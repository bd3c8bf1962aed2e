package sqlstore

import (
	"fmt"
	"reflect"
	"strings"
)

// Operator represents a comparison operator
type Operator int

const (
	OpEqual Operator = iota
	OpNotEqual
	OpGreaterThan
	OpGreaterThanOrEqual
	OpLessThan
	OpLessThanOrEqual
	OpIn
	OpNotIn
	OpLike
	OpNotLike
	OpILike
	OpIsNull
	OpIsNotNull
	OpBetween
)

// String returns the string representation of the operator
func (o Operator) String() string {
	switch o {
	case OpEqual:
		return "="
	case OpNotEqual:
		return "!="
	case OpGreaterThan:
		return ">"
	case OpGreaterThanOrEqual:
		return ">="
	case OpLessThan:
		return "<"
	case OpLessThanOrEqual:
		return "<="
	case OpIn:
		return "IN"
	case OpNotIn:
		return "NOT IN"
	case OpLike:
		return "LIKE"
	case OpNotLike:
		return "NOT LIKE"
	case OpILike:
		return "ILIKE"
	case OpIsNull:
		return "IS NULL"
	case OpIsNotNull:
		return "IS NOT NULL"
	case OpBetween:
		return "BETWEEN"
	default:
		return "UNKNOWN"
	}
}

var operatorNames = map[string]Operator{
	"=":           OpEqual,
	"==":          OpEqual,
	"!=":          OpNotEqual,
	"<>":          OpNotEqual,
	">":           OpGreaterThan,
	">=":          OpGreaterThanOrEqual,
	"<":           OpLessThan,
	"<=":          OpLessThanOrEqual,
	"in":          OpIn,
	"not in":      OpNotIn,
	"like":        OpLike,
	"not like":    OpNotLike,
	"ilike":       OpILike,
	"is null":     OpIsNull,
	"is not null": OpIsNotNull,
	"between":     OpBetween,
}

// ParseOperator parses a filter operator such as ">=", "like" or "not in".
// Matching ignores case and surrounding whitespace.
func ParseOperator(s string) (Operator, error) {
	key := strings.Join(strings.Fields(strings.ToLower(s)), " ")
	op, ok := operatorNames[key]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnsupportedOperator, s)
	}
	return op, nil
}

// Condition represents a WHERE condition on a qualified column
type Condition struct {
	Field    string
	Operator Operator
	Value    interface{}
}

// conditionToSQL converts a condition to SQL with parameterized values
func conditionToSQL(cond Condition, b *binder) (string, error) {
	switch cond.Operator {
	case OpEqual:
		if cond.Value == nil {
			return fmt.Sprintf("%s IS NULL", cond.Field), nil
		}
		return fmt.Sprintf("%s = %s", cond.Field, b.bind(cond.Value)), nil

	case OpNotEqual:
		if cond.Value == nil {
			return fmt.Sprintf("%s IS NOT NULL", cond.Field), nil
		}
		return fmt.Sprintf("%s != %s", cond.Field, b.bind(cond.Value)), nil

	case OpGreaterThan, OpGreaterThanOrEqual, OpLessThan, OpLessThanOrEqual, OpLike, OpNotLike:
		return fmt.Sprintf("%s %s %s", cond.Field, cond.Operator, b.bind(cond.Value)), nil

	case OpILike:
		if b.dialect != Postgres {
			return fmt.Sprintf("LOWER(%s) LIKE LOWER(%s)", cond.Field, b.bind(cond.Value)), nil
		}
		return fmt.Sprintf("%s ILIKE %s", cond.Field, b.bind(cond.Value)), nil

	case OpIn, OpNotIn:
		values, ok := toSlice(cond.Value)
		if !ok {
			return "", fmt.Errorf("%s operator requires a list value", cond.Operator)
		}
		if len(values) == 0 {
			// IN () matches nothing, NOT IN () matches everything
			if cond.Operator == OpIn {
				return "1 = 0", nil
			}
			return "1 = 1", nil
		}
		return fmt.Sprintf("%s %s (%s)", cond.Field, cond.Operator, bindList(b, values)), nil

	case OpIsNull:
		return fmt.Sprintf("%s IS NULL", cond.Field), nil

	case OpIsNotNull:
		return fmt.Sprintf("%s IS NOT NULL", cond.Field), nil

	case OpBetween:
		values, ok := toSlice(cond.Value)
		if !ok || len(values) != 2 {
			return "", fmt.Errorf("BETWEEN operator requires [min, max] values")
		}
		return fmt.Sprintf("%s BETWEEN %s AND %s", cond.Field, b.bind(values[0]), b.bind(values[1])), nil

	default:
		return "", fmt.Errorf("%w: %v", ErrUnsupportedOperator, cond.Operator)
	}
}

func bindList(b *binder, values []interface{}) string {
	placeholders := make([]string, len(values))
	for i, v := range values {
		placeholders[i] = b.bind(v)
	}
	return strings.Join(placeholders, ", ")
}

// toSlice accepts any slice or array except []byte
func toSlice(v interface{}) ([]interface{}, bool) {
	if values, ok := v.([]interface{}); ok {
		return values, true
	}
	if _, ok := v.([]byte); ok {
		return nil, false
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, false
	}
	values := make([]interface{}, rv.Len())
	for i := range values {
		values[i] = rv.Index(i).Interface()
	}
	return values, true
}
