package analyzer

import (
	"fmt"

	"github.com/irouter/irouter/internal/query/parser"
)

// rewrite applies the normalization passes to a WHERE tree: alias
// resolution, paren flattening, and double-negation folding. Each pass is
// best-effort; a failing pass leaves the tree as it was.
type rewrite struct {
	name  string
	apply func(parser.Expression, *rewriteContext) (parser.Expression, error)
}

type rewriteContext struct {
	// aliases maps table alias → table name for every table in the query.
	aliases map[string]string
}

var rewrites = []rewrite{
	{name: "resolve_aliases", apply: resolveAliases},
	{name: "flatten_parens", apply: flattenParens},
	{name: "fold_double_negation", apply: foldDoubleNegation},
}

// resolveAliases replaces alias qualifiers on column references with the
// underlying table name so later passes compare against real table names.
func resolveAliases(expr parser.Expression, ctx *rewriteContext) (parser.Expression, error) {
	return mapExpr(expr, func(e parser.Expression) (parser.Expression, error) {
		col, ok := e.(*parser.ColumnRef)
		if !ok || col.Table == "" {
			return e, nil
		}
		if name, ok := ctx.aliases[col.Table]; ok && name != col.Table {
			return &parser.ColumnRef{Table: name, Column: col.Column}, nil
		}
		return e, nil
	})
}

// flattenParens removes ParenExpr wrappers. Grouping is already encoded in
// the tree shape, so the wrappers only obscure later pattern matching.
func flattenParens(expr parser.Expression, _ *rewriteContext) (parser.Expression, error) {
	return mapExpr(expr, func(e parser.Expression) (parser.Expression, error) {
		if p, ok := e.(*parser.ParenExpr); ok {
			return p.Expr, nil
		}
		return e, nil
	})
}

// foldDoubleNegation rewrites NOT (NOT x) to x. Runs after paren
// flattening so NOT (NOT (x)) folds too.
func foldDoubleNegation(expr parser.Expression, _ *rewriteContext) (parser.Expression, error) {
	return mapExpr(expr, func(e parser.Expression) (parser.Expression, error) {
		outer, ok := e.(*parser.UnaryExpr)
		if !ok || outer.Operator != "NOT" {
			return e, nil
		}
		inner, ok := outer.Operand.(*parser.UnaryExpr)
		if !ok || inner.Operator != "NOT" {
			return e, nil
		}
		return inner.Operand, nil
	})
}

// mapExpr rebuilds an expression tree bottom-up, applying fn to every node
// after its children have been transformed.
func mapExpr(expr parser.Expression, fn func(parser.Expression) (parser.Expression, error)) (parser.Expression, error) {
	if expr == nil {
		return nil, nil
	}

	var rebuilt parser.Expression
	switch e := expr.(type) {
	case *parser.BinaryExpr:
		left, err := mapExpr(e.Left, fn)
		if err != nil {
			return nil, err
		}
		right, err := mapExpr(e.Right, fn)
		if err != nil {
			return nil, err
		}
		rebuilt = &parser.BinaryExpr{Left: left, Operator: e.Operator, Right: right}

	case *parser.UnaryExpr:
		operand, err := mapExpr(e.Operand, fn)
		if err != nil {
			return nil, err
		}
		rebuilt = &parser.UnaryExpr{Operator: e.Operator, Operand: operand}

	case *parser.ParenExpr:
		inner, err := mapExpr(e.Expr, fn)
		if err != nil {
			return nil, err
		}
		rebuilt = &parser.ParenExpr{Expr: inner}

	case *parser.InExpr:
		sub, err := mapExpr(e.Expr, fn)
		if err != nil {
			return nil, err
		}
		values := make([]parser.Expression, len(e.Values))
		for i, v := range e.Values {
			values[i], err = mapExpr(v, fn)
			if err != nil {
				return nil, err
			}
		}
		rebuilt = &parser.InExpr{Expr: sub, Values: values, Negated: e.Negated}

	case *parser.BetweenExpr:
		sub, err := mapExpr(e.Expr, fn)
		if err != nil {
			return nil, err
		}
		low, err := mapExpr(e.Low, fn)
		if err != nil {
			return nil, err
		}
		high, err := mapExpr(e.High, fn)
		if err != nil {
			return nil, err
		}
		rebuilt = &parser.BetweenExpr{Expr: sub, Low: low, High: high, Negated: e.Negated}

	case *parser.LikeExpr:
		sub, err := mapExpr(e.Expr, fn)
		if err != nil {
			return nil, err
		}
		pattern, err := mapExpr(e.Pattern, fn)
		if err != nil {
			return nil, err
		}
		rebuilt = &parser.LikeExpr{Expr: sub, Pattern: pattern, Negated: e.Negated}

	case *parser.IsNullExpr:
		sub, err := mapExpr(e.Expr, fn)
		if err != nil {
			return nil, err
		}
		rebuilt = &parser.IsNullExpr{Expr: sub, Negated: e.Negated}

	case *parser.ColumnRef, *parser.Literal, *parser.StarExpr:
		rebuilt = e

	case *parser.FunctionCall:
		args := make([]parser.Expression, len(e.Args))
		var err error
		for i, a := range e.Args {
			args[i], err = mapExpr(a, fn)
			if err != nil {
				return nil, err
			}
		}
		rebuilt = &parser.FunctionCall{Name: e.Name, Args: args, Distinct: e.Distinct, Star: e.Star}

	case *parser.WindowExpr:
		rebuilt = e

	default:
		return nil, fmt.Errorf("rewriter: unknown expression type %T", expr)
	}

	return fn(rebuilt)
}
