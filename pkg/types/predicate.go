// Package types holds the shared value objects of the query router:
// predicates, partition metadata, pruning results, cost estimates, and the
// caller-facing query result. The package is intentionally dependency-free.
package types

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Operator is a SQL comparison operator as it appears in a predicate.
type Operator string

const (
	OpEQ        Operator = "="
	OpNEQ       Operator = "!="
	OpGT        Operator = ">"
	OpGTE       Operator = ">="
	OpLT        Operator = "<"
	OpLTE       Operator = "<="
	OpIn        Operator = "IN"
	OpNotIn     Operator = "NOT IN"
	OpLike      Operator = "LIKE"
	OpIsNull    Operator = "IS NULL"
	OpIsNotNull Operator = "IS NOT NULL"
)

// Predicate is a single column/operator/value filter extracted from a WHERE
// clause. It is immutable once built.
//
// DeclaredType carries the column's SQL type when the schema is known and
// drives type coercion during evaluation. When the right-hand side of the
// source comparison was not a recognizable literal, Value holds its SQL text
// and comparisons degrade to string comparisons. That quirk is deliberate:
// a string comparison can over-include partitions but never falsely exclude
// them.
type Predicate struct {
	Column       string        `json:"column"`
	Operator     Operator      `json:"operator"`
	Value        interface{}   `json:"value,omitempty"`
	Values       []interface{} `json:"values,omitempty"`
	DeclaredType string        `json:"declared_type,omitempty"`
}

func (p Predicate) String() string {
	switch p.Operator {
	case OpIn, OpNotIn:
		parts := make([]string, len(p.Values))
		for i, v := range p.Values {
			parts[i] = valueToString(v)
		}
		return fmt.Sprintf("%s %s (%s)", p.Column, p.Operator, strings.Join(parts, ", "))
	case OpIsNull, OpIsNotNull:
		return fmt.Sprintf("%s %s", p.Column, p.Operator)
	default:
		return fmt.Sprintf("%s %s %s", p.Column, p.Operator, valueToString(p.Value))
	}
}

// Evaluate reports whether a raw partition value satisfies the predicate.
// Both sides are coerced according to DeclaredType before comparison.
// Any coercion or comparison failure returns true: the partition is included
// rather than silently dropped.
func (p Predicate) Evaluate(partitionValue string) bool {
	switch p.Operator {
	case OpEQ, OpNEQ, OpGT, OpGTE, OpLT, OpLTE:
		cmp, err := compareTyped(partitionValue, p.Value, p.DeclaredType)
		if err != nil {
			return true
		}
		switch p.Operator {
		case OpEQ:
			return cmp == 0
		case OpNEQ:
			return cmp != 0
		case OpGT:
			return cmp > 0
		case OpGTE:
			return cmp >= 0
		case OpLT:
			return cmp < 0
		case OpLTE:
			return cmp <= 0
		}
		return true
	case OpIn, OpNotIn:
		found := false
		for _, v := range p.Values {
			cmp, err := compareTyped(partitionValue, v, p.DeclaredType)
			if err != nil {
				return true
			}
			if cmp == 0 {
				found = true
				break
			}
		}
		if p.Operator == OpIn {
			return found
		}
		return !found
	default:
		// LIKE and null checks cannot prune a directory value.
		return true
	}
}

// compareTyped compares a raw partition value against a predicate value after
// coercing both according to the declared SQL type. Returns <0, 0, >0 in the
// usual ordering sense, or an error when either side fails to coerce.
func compareTyped(raw string, value interface{}, declaredType string) (int, error) {
	t := strings.ToUpper(declaredType)

	switch {
	case strings.Contains(t, "DATE") || strings.Contains(t, "TIMESTAMP"):
		left, err := parseTemporal(raw)
		if err != nil {
			return 0, err
		}
		right, err := parseTemporal(valueToString(value))
		if err != nil {
			return 0, err
		}
		return left.Compare(right), nil

	case strings.Contains(t, "INT"):
		left, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
		if err != nil {
			return 0, err
		}
		right, err := toInt64(value)
		if err != nil {
			return 0, err
		}
		return compareOrdered(left, right), nil

	case strings.Contains(t, "FLOAT") || strings.Contains(t, "DOUBLE") ||
		strings.Contains(t, "DECIMAL") || strings.Contains(t, "REAL") ||
		strings.Contains(t, "NUMERIC"):
		left, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
		if err != nil {
			return 0, err
		}
		right, err := toFloat64(value)
		if err != nil {
			return 0, err
		}
		return compareOrdered(left, right), nil

	default:
		return strings.Compare(raw, valueToString(value)), nil
	}
}

// temporalLayouts are the accepted partition-value timestamp shapes, most
// specific first.
var temporalLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func parseTemporal(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range temporalLayouts {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, fmt.Errorf("types: unrecognized temporal value %q", s)
}

func compareOrdered[T int64 | float64](a, b T) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func toInt64(v interface{}) (int64, error) {
	switch n := v.(type) {
	case int64:
		return n, nil
	case int:
		return int64(n), nil
	case float64:
		return int64(n), nil
	case string:
		return strconv.ParseInt(strings.TrimSpace(n), 10, 64)
	default:
		return 0, fmt.Errorf("types: cannot coerce %T to integer", v)
	}
}

func toFloat64(v interface{}) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case int64:
		return float64(n), nil
	case int:
		return float64(n), nil
	case string:
		return strconv.ParseFloat(strings.TrimSpace(n), 64)
	default:
		return 0, fmt.Errorf("types: cannot coerce %T to float", v)
	}
}

func valueToString(v interface{}) string {
	switch s := v.(type) {
	case nil:
		return "NULL"
	case string:
		return s
	default:
		return fmt.Sprintf("%v", v)
	}
}

// ExtractionResult is the outcome of predicate extraction for one table.
// IsComplex marks WHERE clauses containing a disjunction or negation; pruning
// must not filter in that case.
type ExtractionResult struct {
	Predicates []Predicate
	TableName  string
	IsComplex  bool
}

// ForColumn returns the predicates that apply to the given column.
func (r ExtractionResult) ForColumn(column string) []Predicate {
	var out []Predicate
	for _, p := range r.Predicates {
		if p.Column == column {
			out = append(out, p)
		}
	}
	return out
}

// HasPredicateOn reports whether any extracted predicate references column.
func (r ExtractionResult) HasPredicateOn(column string) bool {
	for _, p := range r.Predicates {
		if p.Column == column {
			return true
		}
	}
	return false
}
