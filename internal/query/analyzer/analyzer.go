// Package analyzer walks a parsed SELECT statement and produces the two
// inputs the routing pipeline needs: the pushdown predicates for partition
// pruning and the feature flags for backend selection.
package analyzer

import (
	"strings"

	"go.uber.org/zap"

	"github.com/irouter/irouter/internal/query/parser"
	"github.com/irouter/irouter/pkg/types"
)

// Analyzer extracts predicates and query features from parsed statements.
type Analyzer struct {
	logger *zap.Logger
}

// New creates an Analyzer. A nil logger disables logging.
func New(logger *zap.Logger) *Analyzer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Analyzer{logger: logger}
}

// Analyze normalizes the WHERE tree, extracts pushdown predicates for the
// target table, and detects the query's feature profile. Extraction is
// conservative: a WHERE tree containing OR or negation yields no predicates
// and is flagged complex, which callers must treat as "scan everything".
func (a *Analyzer) Analyze(stmt *parser.SelectStatement, schema types.Schema, table string) (*types.ExtractionResult, types.QueryFeatures) {
	features := detectFeatures(stmt)

	result := &types.ExtractionResult{TableName: table}
	if stmt.Where == nil {
		return result, features
	}

	where := a.rewriteWhere(stmt)

	if hasOrOrNegation(where) {
		result.IsComplex = true
		a.logger.Debug("complex predicate tree, skipping extraction",
			zap.String("table", table))
		return result, features
	}

	ex := &extractor{schema: schema, table: table}
	ex.walk(where)
	result.Predicates = ex.predicates
	return result, features
}

// rewriteWhere runs the normalization passes over the WHERE tree. A pass
// that fails is logged and skipped; the query continues on the last good
// tree.
func (a *Analyzer) rewriteWhere(stmt *parser.SelectStatement) parser.Expression {
	ctx := &rewriteContext{aliases: collectAliases(stmt)}
	where := stmt.Where
	for _, rw := range rewrites {
		next, err := rw.apply(where, ctx)
		if err != nil {
			a.logger.Warn("rewrite pass failed, continuing without it",
				zap.String("pass", rw.name), zap.Error(err))
			continue
		}
		where = next
	}
	return where
}

func collectAliases(stmt *parser.SelectStatement) map[string]string {
	aliases := map[string]string{stmt.From.Name: stmt.From.Name}
	if stmt.From.Alias != "" {
		aliases[stmt.From.Alias] = stmt.From.Name
	}
	for _, j := range stmt.Joins {
		aliases[j.Table.Name] = j.Table.Name
		if j.Table.Alias != "" {
			aliases[j.Table.Alias] = j.Table.Name
		}
	}
	return aliases
}

// hasOrOrNegation reports whether the tree contains an OR, a NOT, or any
// negated membership/pattern operator. Any of these makes conjunct-based
// pruning unsound, so the whole tree is treated as opaque.
func hasOrOrNegation(expr parser.Expression) bool {
	switch e := expr.(type) {
	case nil:
		return false
	case *parser.BinaryExpr:
		if e.Operator == "OR" {
			return true
		}
		return hasOrOrNegation(e.Left) || hasOrOrNegation(e.Right)
	case *parser.UnaryExpr:
		if e.Operator == "NOT" {
			return true
		}
		return hasOrOrNegation(e.Operand)
	case *parser.ParenExpr:
		return hasOrOrNegation(e.Expr)
	case *parser.InExpr:
		return e.Negated
	case *parser.BetweenExpr:
		return e.Negated
	case *parser.LikeExpr:
		return e.Negated
	case *parser.IsNullExpr:
		return e.Negated
	default:
		return false
	}
}

// extractor accumulates pushdown predicates from an AND-only tree.
type extractor struct {
	schema     types.Schema
	table      string
	predicates []types.Predicate
}

// walk descends AND chains and converts each recognized conjunct into a
// predicate. Conjuncts outside the closed operator set are skipped without
// comment; pruning simply cannot use them.
func (ex *extractor) walk(expr parser.Expression) {
	switch e := expr.(type) {
	case *parser.BinaryExpr:
		if e.Operator == "AND" {
			ex.walk(e.Left)
			ex.walk(e.Right)
			return
		}
		if op, ok := comparisonOperators[e.Operator]; ok {
			ex.addComparison(e, op)
		}
	case *parser.ParenExpr:
		ex.walk(e.Expr)
	case *parser.InExpr:
		if !e.Negated {
			ex.addIn(e)
		}
	}
}

// comparisonOperators is the closed set of comparison operators that can be
// pushed down. Everything else is ignored for pruning.
var comparisonOperators = map[string]types.Operator{
	"=":  types.OpEQ,
	"!=": types.OpNEQ,
	">":  types.OpGT,
	">=": types.OpGTE,
	"<":  types.OpLT,
	"<=": types.OpLTE,
}

// reversedOperators maps an operator to its mirror for literal-first
// comparisons like "100 < amount".
var reversedOperators = map[types.Operator]types.Operator{
	types.OpEQ:  types.OpEQ,
	types.OpNEQ: types.OpNEQ,
	types.OpGT:  types.OpLT,
	types.OpGTE: types.OpLTE,
	types.OpLT:  types.OpGT,
	types.OpLTE: types.OpGTE,
}

func (ex *extractor) addComparison(e *parser.BinaryExpr, op types.Operator) {
	col, valueExpr := columnOf(e.Left), e.Right
	if col == nil {
		// literal-first form: flip to column-first
		col, valueExpr = columnOf(e.Right), e.Left
		if col == nil {
			return
		}
		op = reversedOperators[op]
	}
	if !ex.belongsToTable(col) {
		return
	}
	ex.predicates = append(ex.predicates, types.Predicate{
		Column:       col.Column,
		Operator:     op,
		Value:        literalValue(valueExpr),
		DeclaredType: ex.declaredType(col.Column),
	})
}

func (ex *extractor) addIn(e *parser.InExpr) {
	col := columnOf(e.Expr)
	if col == nil || !ex.belongsToTable(col) {
		return
	}
	values := make([]interface{}, len(e.Values))
	for i, v := range e.Values {
		values[i] = literalValue(v)
	}
	ex.predicates = append(ex.predicates, types.Predicate{
		Column:       col.Column,
		Operator:     types.OpIn,
		Values:       values,
		DeclaredType: ex.declaredType(col.Column),
	})
}

// belongsToTable reports whether the column targets the pruned table.
// Unqualified columns are assumed to; columns qualified with a different
// table are dropped silently.
func (ex *extractor) belongsToTable(col *parser.ColumnRef) bool {
	return col.Table == "" || strings.EqualFold(col.Table, ex.table)
}

func (ex *extractor) declaredType(column string) string {
	if cols, ok := ex.schema[ex.table]; ok {
		return cols[column]
	}
	return ""
}

func columnOf(expr parser.Expression) *parser.ColumnRef {
	switch e := expr.(type) {
	case *parser.ColumnRef:
		return e
	case *parser.ParenExpr:
		return columnOf(e.Expr)
	}
	return nil
}

// literalValue converts an RHS expression to a predicate value. Literals
// keep their native Go type; anything else falls back to its rendered SQL
// text, which the evaluator will compare as a string.
func literalValue(expr parser.Expression) interface{} {
	if lit, ok := expr.(*parser.Literal); ok {
		return lit.Value
	}
	return expr.String()
}

// detectFeatures scans the statement for the complexity signals the cost
// model and backend feature filter consume.
func detectFeatures(stmt *parser.SelectStatement) types.QueryFeatures {
	f := types.QueryFeatures{
		GroupBy:  len(stmt.GroupBy) > 0,
		Joins:    len(stmt.Joins) > 0,
		OrderBy:  len(stmt.OrderBy) > 0,
		Limit:    stmt.Limit != nil,
		Distinct: stmt.Distinct,
		CTE:      len(stmt.With) > 0,
	}
	for _, item := range stmt.Items {
		scanItemFeatures(item.Expr, &f)
	}
	if stmt.Having != nil {
		f.Aggregation = true
	}
	for _, c := range stmt.With {
		inner := detectFeatures(c.Select)
		f.Aggregation = f.Aggregation || inner.Aggregation
		f.GroupBy = f.GroupBy || inner.GroupBy
		f.WindowFunctions = f.WindowFunctions || inner.WindowFunctions
		f.Joins = f.Joins || inner.Joins
	}
	return f
}

var aggregateFunctions = map[string]bool{
	"COUNT": true, "SUM": true, "AVG": true, "MIN": true, "MAX": true,
}

func scanItemFeatures(expr parser.Expression, f *types.QueryFeatures) {
	switch e := expr.(type) {
	case *parser.FunctionCall:
		if aggregateFunctions[e.Name] {
			f.Aggregation = true
		}
		for _, a := range e.Args {
			scanItemFeatures(a, f)
		}
	case *parser.WindowExpr:
		f.WindowFunctions = true
	case *parser.BinaryExpr:
		scanItemFeatures(e.Left, f)
		scanItemFeatures(e.Right, f)
	case *parser.UnaryExpr:
		scanItemFeatures(e.Operand, f)
	case *parser.ParenExpr:
		scanItemFeatures(e.Expr, f)
	}
}
