package analyzer

import (
	"testing"

	"github.com/irouter/irouter/internal/query/parser"
	"github.com/irouter/irouter/pkg/types"
)

var salesSchema = types.Schema{
	"sales": {
		"region": "VARCHAR",
		"year":   "INT",
		"amount": "DOUBLE",
		"day":    "DATE",
	},
}

func analyze(t *testing.T, sql string) (*types.ExtractionResult, types.QueryFeatures) {
	t.Helper()
	stmt, err := parser.Parse(sql)
	if err != nil {
		t.Fatalf("Parse(%q) error = %v", sql, err)
	}
	return New(nil).Analyze(stmt, salesSchema, "sales")
}

func TestExtractSimpleEquality(t *testing.T) {
	res, _ := analyze(t, "SELECT * FROM sales WHERE region = 'us-east'")
	if res.IsComplex {
		t.Fatal("expected simple query")
	}
	if len(res.Predicates) != 1 {
		t.Fatalf("expected 1 predicate, got %d", len(res.Predicates))
	}
	p := res.Predicates[0]
	if p.Column != "region" || p.Operator != types.OpEQ || p.Value != "us-east" {
		t.Errorf("unexpected predicate: %+v", p)
	}
	if p.DeclaredType != "VARCHAR" {
		t.Errorf("expected declared type VARCHAR, got %q", p.DeclaredType)
	}
}

func TestExtractAndChain(t *testing.T) {
	res, _ := analyze(t, "SELECT * FROM sales WHERE region = 'us-east' AND year >= 2023 AND amount < 100.5")
	if len(res.Predicates) != 3 {
		t.Fatalf("expected 3 predicates, got %d", len(res.Predicates))
	}
	ops := []types.Operator{types.OpEQ, types.OpGTE, types.OpLT}
	for i, p := range res.Predicates {
		if p.Operator != ops[i] {
			t.Errorf("predicate %d: operator = %q, want %q", i, p.Operator, ops[i])
		}
	}
	if res.Predicates[1].Value != int64(2023) {
		t.Errorf("expected int64 2023, got %v", res.Predicates[1].Value)
	}
	if res.Predicates[2].Value != 100.5 {
		t.Errorf("expected 100.5, got %v", res.Predicates[2].Value)
	}
}

func TestOrMarksComplex(t *testing.T) {
	res, _ := analyze(t, "SELECT * FROM sales WHERE region = 'a' OR region = 'b'")
	if !res.IsComplex {
		t.Fatal("expected complex query")
	}
	if len(res.Predicates) != 0 {
		t.Errorf("complex query must yield no predicates, got %d", len(res.Predicates))
	}
}

func TestNotMarksComplex(t *testing.T) {
	for _, sql := range []string{
		"SELECT * FROM sales WHERE NOT region = 'a'",
		"SELECT * FROM sales WHERE region NOT IN ('a')",
		"SELECT * FROM sales WHERE year = 2024 AND NOT amount > 5",
	} {
		res, _ := analyze(t, sql)
		if !res.IsComplex {
			t.Errorf("%q: expected complex", sql)
		}
	}
}

func TestIsNotNullMarksComplex(t *testing.T) {
	res, _ := analyze(t, "SELECT * FROM sales WHERE year = 2024 AND region IS NOT NULL")
	if !res.IsComplex {
		t.Fatal("IS NOT NULL is a negation, expected complex")
	}

	res, _ = analyze(t, "SELECT * FROM sales WHERE year = 2024 AND region IS NULL")
	if res.IsComplex {
		t.Fatal("IS NULL is not a negation")
	}
	if len(res.Predicates) != 1 || res.Predicates[0].Column != "year" {
		t.Errorf("IS NULL conjunct should be skipped, got %+v", res.Predicates)
	}
}

func TestDoubleNegationFolds(t *testing.T) {
	res, _ := analyze(t, "SELECT * FROM sales WHERE NOT (NOT (region = 'a'))")
	if res.IsComplex {
		t.Fatal("double negation should fold to a simple predicate")
	}
	if len(res.Predicates) != 1 || res.Predicates[0].Column != "region" {
		t.Errorf("unexpected predicates: %+v", res.Predicates)
	}
}

func TestReversedComparisonFlips(t *testing.T) {
	res, _ := analyze(t, "SELECT * FROM sales WHERE 2020 < year")
	if len(res.Predicates) != 1 {
		t.Fatalf("expected 1 predicate, got %d", len(res.Predicates))
	}
	p := res.Predicates[0]
	if p.Column != "year" || p.Operator != types.OpGT {
		t.Errorf("expected year > 2020, got %+v", p)
	}
}

func TestInPredicate(t *testing.T) {
	res, _ := analyze(t, "SELECT * FROM sales WHERE region IN ('a', 'b', 'c')")
	if len(res.Predicates) != 1 {
		t.Fatalf("expected 1 predicate, got %d", len(res.Predicates))
	}
	p := res.Predicates[0]
	if p.Operator != types.OpIn || len(p.Values) != 3 {
		t.Errorf("unexpected predicate: %+v", p)
	}
}

func TestBetweenAndLikeSkipped(t *testing.T) {
	res, _ := analyze(t, "SELECT * FROM sales WHERE year BETWEEN 2020 AND 2024 AND region LIKE 'us%' AND amount > 0")
	if res.IsComplex {
		t.Fatal("BETWEEN and LIKE are not negations")
	}
	if len(res.Predicates) != 1 || res.Predicates[0].Column != "amount" {
		t.Errorf("only the comparison should extract, got %+v", res.Predicates)
	}
}

func TestAliasQualifierResolves(t *testing.T) {
	res, _ := analyze(t, "SELECT * FROM sales s WHERE s.year = 2024")
	if len(res.Predicates) != 1 || res.Predicates[0].Column != "year" {
		t.Errorf("alias-qualified column should extract, got %+v", res.Predicates)
	}
	if res.Predicates[0].DeclaredType != "INT" {
		t.Errorf("expected INT, got %q", res.Predicates[0].DeclaredType)
	}
}

func TestForeignTableQualifierDropped(t *testing.T) {
	res, _ := analyze(t, "SELECT * FROM sales JOIN other ON sales.id = other.id WHERE other.x = 1 AND sales.year = 2024")
	if len(res.Predicates) != 1 || res.Predicates[0].Column != "year" {
		t.Errorf("foreign-table predicate must be dropped, got %+v", res.Predicates)
	}
}

func TestUnrecognizedRHSStringified(t *testing.T) {
	res, _ := analyze(t, "SELECT * FROM sales WHERE year = 2000 + 24")
	if len(res.Predicates) != 1 {
		t.Fatalf("expected 1 predicate, got %d", len(res.Predicates))
	}
	if _, ok := res.Predicates[0].Value.(string); !ok {
		t.Errorf("non-literal RHS should stringify, got %T", res.Predicates[0].Value)
	}
}

func TestFeatureDetection(t *testing.T) {
	_, f := analyze(t, "SELECT region, SUM(amount) FROM sales WHERE year = 2024 GROUP BY region ORDER BY region LIMIT 10")
	if !f.Aggregation || !f.GroupBy || !f.OrderBy || !f.Limit {
		t.Errorf("unexpected features: %+v", f)
	}
	if f.WindowFunctions || f.Joins || f.CTE || f.Distinct {
		t.Errorf("unexpected features set: %+v", f)
	}
}

func TestWindowAndCTEFeatures(t *testing.T) {
	_, f := analyze(t, "WITH r AS (SELECT * FROM sales) SELECT ROW_NUMBER() OVER (ORDER BY amount) FROM sales")
	if !f.WindowFunctions || !f.CTE {
		t.Errorf("expected window+cte, got %+v", f)
	}
}

func TestNoWhere(t *testing.T) {
	res, _ := analyze(t, "SELECT * FROM sales")
	if res.IsComplex || len(res.Predicates) != 0 {
		t.Errorf("unexpected result: %+v", res)
	}
	if res.TableName != "sales" {
		t.Errorf("expected table sales, got %q", res.TableName)
	}
}
