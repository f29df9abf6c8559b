package types

import "testing"

func TestEvaluateTypedComparisons(t *testing.T) {
	tests := []struct {
		name string
		pred Predicate
		raw  string
		want bool
	}{
		{"int gte true", Predicate{Column: "year", Operator: OpGTE, Value: int64(2022), DeclaredType: "INT"}, "2023", true},
		{"int gte false", Predicate{Column: "year", Operator: OpGTE, Value: int64(2022), DeclaredType: "INT"}, "2021", false},
		{"int eq", Predicate{Column: "year", Operator: OpEQ, Value: int64(2024), DeclaredType: "INT"}, "2024", true},
		{"int neq", Predicate{Column: "year", Operator: OpNEQ, Value: int64(2024), DeclaredType: "INT"}, "2024", false},
		{"float lt", Predicate{Column: "amount", Operator: OpLT, Value: 10.5, DeclaredType: "DOUBLE"}, "9.99", true},
		{"string eq", Predicate{Column: "region", Operator: OpEQ, Value: "us-east", DeclaredType: "VARCHAR"}, "us-east", true},
		{"string lt lexicographic", Predicate{Column: "region", Operator: OpLT, Value: "b", DeclaredType: "VARCHAR"}, "a", true},
		{"date gt", Predicate{Column: "day", Operator: OpGT, Value: "2024-01-15", DeclaredType: "DATE"}, "2024-06-01", true},
		{"date lte false", Predicate{Column: "day", Operator: OpLTE, Value: "2024-01-15", DeclaredType: "DATE"}, "2024-06-01", false},
		{"untyped numeric string compares as string", Predicate{Column: "x", Operator: OpGT, Value: "9", DeclaredType: ""}, "10", false},
	}
	for _, tt := range tests {
		if got := tt.pred.Evaluate(tt.raw); got != tt.want {
			t.Errorf("%s: Evaluate(%q) = %v, want %v", tt.name, tt.raw, got, tt.want)
		}
	}
}

func TestEvaluateConservativeOnCoercionFailure(t *testing.T) {
	pred := Predicate{Column: "year", Operator: OpGT, Value: int64(2020), DeclaredType: "INT"}
	if !pred.Evaluate("not-a-number") {
		t.Error("uncoercible value must evaluate true")
	}

	dates := Predicate{Column: "day", Operator: OpLT, Value: "2024-01-01", DeclaredType: "DATE"}
	if !dates.Evaluate("yesterday") {
		t.Error("unparseable date must evaluate true")
	}
}

func TestEvaluateIn(t *testing.T) {
	pred := Predicate{
		Column:       "region",
		Operator:     OpIn,
		Values:       []interface{}{"us-east", "us-west"},
		DeclaredType: "VARCHAR",
	}
	if !pred.Evaluate("us-west") {
		t.Error("member must match")
	}
	if pred.Evaluate("eu-central") {
		t.Error("non-member must not match")
	}
}

func TestEvaluateUnknownOperatorIsTrue(t *testing.T) {
	for _, op := range []Operator{OpLike, OpIsNull, OpIsNotNull} {
		pred := Predicate{Column: "x", Operator: op, Value: "y"}
		if !pred.Evaluate("anything") {
			t.Errorf("operator %s must degrade to true", op)
		}
	}
}

func TestCanSatisfyRanges(t *testing.T) {
	stats := ColumnStatistics{
		ColumnName: "amount",
		MinValue:   float64(10),
		MaxValue:   float64(100),
	}
	tests := []struct {
		pred Predicate
		want bool
	}{
		{Predicate{Column: "amount", Operator: OpGT, Value: float64(99), DeclaredType: "DOUBLE"}, true},
		{Predicate{Column: "amount", Operator: OpGT, Value: float64(100), DeclaredType: "DOUBLE"}, false},
		{Predicate{Column: "amount", Operator: OpGTE, Value: float64(100), DeclaredType: "DOUBLE"}, true},
		{Predicate{Column: "amount", Operator: OpLT, Value: float64(10), DeclaredType: "DOUBLE"}, false},
		{Predicate{Column: "amount", Operator: OpLTE, Value: float64(10), DeclaredType: "DOUBLE"}, true},
		{Predicate{Column: "amount", Operator: OpEQ, Value: float64(50), DeclaredType: "DOUBLE"}, true},
		{Predicate{Column: "amount", Operator: OpEQ, Value: float64(5), DeclaredType: "DOUBLE"}, false},
		{Predicate{Column: "amount", Operator: OpEQ, Value: float64(500), DeclaredType: "DOUBLE"}, false},
	}
	for i, tt := range tests {
		if got := stats.CanSatisfy(tt.pred); got != tt.want {
			t.Errorf("case %d (%s %v): got %v, want %v", i, tt.pred.Operator, tt.pred.Value, got, tt.want)
		}
	}
}

func TestCanSatisfyDegradesOpen(t *testing.T) {
	noBounds := ColumnStatistics{ColumnName: "amount"}
	pred := Predicate{Column: "amount", Operator: OpGT, Value: float64(1), DeclaredType: "DOUBLE"}
	if !noBounds.CanSatisfy(pred) {
		t.Error("missing bounds must satisfy")
	}

	other := ColumnStatistics{ColumnName: "price", MinValue: float64(0), MaxValue: float64(1)}
	if !other.CanSatisfy(pred) {
		t.Error("column mismatch must satisfy")
	}

	stats := ColumnStatistics{ColumnName: "amount", MinValue: float64(0), MaxValue: float64(1)}
	neq := Predicate{Column: "amount", Operator: OpNEQ, Value: float64(5), DeclaredType: "DOUBLE"}
	if !stats.CanSatisfy(neq) {
		t.Error("operators outside the range checks must satisfy")
	}
}

func TestExtractionResultHelpers(t *testing.T) {
	res := ExtractionResult{
		Predicates: []Predicate{
			{Column: "year", Operator: OpEQ},
			{Column: "year", Operator: OpLT},
			{Column: "region", Operator: OpEQ},
		},
	}
	if got := res.ForColumn("year"); len(got) != 2 {
		t.Errorf("ForColumn(year) = %d predicates, want 2", len(got))
	}
	if !res.HasPredicateOn("region") || res.HasPredicateOn("amount") {
		t.Error("HasPredicateOn mismatch")
	}
}
