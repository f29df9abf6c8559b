package types

// ColumnStatistics holds min/max statistics for a column, typically read from
// a partition's metadata sidecar. Used for pruning beyond directory names.
type ColumnStatistics struct {
	ColumnName    string      `json:"column_name"`
	MinValue      interface{} `json:"min_value"`
	MaxValue      interface{} `json:"max_value"`
	NullCount     int64       `json:"null_count"`
	DistinctCount *int64      `json:"distinct_count,omitempty"`
}

// CanSatisfy reports whether this column's value range could satisfy the
// predicate. It returns false only when the range provably excludes every
// possible match; any doubt, missing bound, or coercion failure returns true.
func (s ColumnStatistics) CanSatisfy(p Predicate) bool {
	if p.Column != s.ColumnName {
		return true
	}
	if s.MinValue == nil || s.MaxValue == nil {
		return true
	}

	switch p.Operator {
	case OpGT:
		// Excluded when max <= value.
		cmp, err := compareTyped(valueToString(s.MaxValue), p.Value, p.DeclaredType)
		if err != nil {
			return true
		}
		return cmp > 0
	case OpGTE:
		cmp, err := compareTyped(valueToString(s.MaxValue), p.Value, p.DeclaredType)
		if err != nil {
			return true
		}
		return cmp >= 0
	case OpLT:
		cmp, err := compareTyped(valueToString(s.MinValue), p.Value, p.DeclaredType)
		if err != nil {
			return true
		}
		return cmp < 0
	case OpLTE:
		cmp, err := compareTyped(valueToString(s.MinValue), p.Value, p.DeclaredType)
		if err != nil {
			return true
		}
		return cmp <= 0
	case OpEQ:
		minCmp, err := compareTyped(valueToString(s.MinValue), p.Value, p.DeclaredType)
		if err != nil {
			return true
		}
		maxCmp, err := compareTyped(valueToString(s.MaxValue), p.Value, p.DeclaredType)
		if err != nil {
			return true
		}
		return minCmp <= 0 && maxCmp >= 0
	default:
		return true
	}
}
