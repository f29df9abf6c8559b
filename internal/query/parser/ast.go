package parser

import (
	"fmt"
	"strings"
)

// Expression is any node in a WHERE/HAVING/select-list expression tree.
type Expression interface {
	expressionNode()
	String() string
}

// BinaryExpr is a two-operand expression: comparisons, AND/OR, arithmetic.
// Operator is upper-cased for keywords ("AND", "OR") and literal for symbols.
type BinaryExpr struct {
	Left     Expression
	Operator string
	Right    Expression
}

func (e *BinaryExpr) expressionNode() {}
func (e *BinaryExpr) String() string {
	return fmt.Sprintf("(%s %s %s)", e.Left.String(), e.Operator, e.Right.String())
}

// UnaryExpr is NOT or unary minus.
type UnaryExpr struct {
	Operator string
	Operand  Expression
}

func (e *UnaryExpr) expressionNode() {}
func (e *UnaryExpr) String() string {
	return fmt.Sprintf("(%s %s)", e.Operator, e.Operand.String())
}

// ColumnRef references a column, optionally qualified with a table or alias.
type ColumnRef struct {
	Table  string
	Column string
}

func (e *ColumnRef) expressionNode() {}
func (e *ColumnRef) String() string {
	if e.Table != "" {
		return e.Table + "." + e.Column
	}
	return e.Column
}

// Literal holds a constant value: string, int64, float64, bool, or nil.
type Literal struct {
	Value interface{}
}

func (e *Literal) expressionNode() {}
func (e *Literal) String() string {
	switch v := e.Value.(type) {
	case nil:
		return "NULL"
	case string:
		return "'" + strings.ReplaceAll(v, "'", "''") + "'"
	case bool:
		if v {
			return "TRUE"
		}
		return "FALSE"
	default:
		return fmt.Sprintf("%v", v)
	}
}

// InExpr is "expr [NOT] IN (v1, v2, ...)".
type InExpr struct {
	Expr    Expression
	Values  []Expression
	Negated bool
}

func (e *InExpr) expressionNode() {}
func (e *InExpr) String() string {
	parts := make([]string, len(e.Values))
	for i, v := range e.Values {
		parts[i] = v.String()
	}
	op := "IN"
	if e.Negated {
		op = "NOT IN"
	}
	return fmt.Sprintf("(%s %s (%s))", e.Expr.String(), op, strings.Join(parts, ", "))
}

// BetweenExpr is "expr [NOT] BETWEEN low AND high".
type BetweenExpr struct {
	Expr    Expression
	Low     Expression
	High    Expression
	Negated bool
}

func (e *BetweenExpr) expressionNode() {}
func (e *BetweenExpr) String() string {
	op := "BETWEEN"
	if e.Negated {
		op = "NOT BETWEEN"
	}
	return fmt.Sprintf("(%s %s %s AND %s)", e.Expr.String(), op, e.Low.String(), e.High.String())
}

// LikeExpr is "expr [NOT] LIKE pattern".
type LikeExpr struct {
	Expr    Expression
	Pattern Expression
	Negated bool
}

func (e *LikeExpr) expressionNode() {}
func (e *LikeExpr) String() string {
	op := "LIKE"
	if e.Negated {
		op = "NOT LIKE"
	}
	return fmt.Sprintf("(%s %s %s)", e.Expr.String(), op, e.Pattern.String())
}

// IsNullExpr is "expr IS [NOT] NULL".
type IsNullExpr struct {
	Expr    Expression
	Negated bool
}

func (e *IsNullExpr) expressionNode() {}
func (e *IsNullExpr) String() string {
	if e.Negated {
		return fmt.Sprintf("(%s IS NOT NULL)", e.Expr.String())
	}
	return fmt.Sprintf("(%s IS NULL)", e.Expr.String())
}

// ParenExpr preserves explicit parentheses from the source text.
type ParenExpr struct {
	Expr Expression
}

func (e *ParenExpr) expressionNode() {}
func (e *ParenExpr) String() string {
	return "(" + e.Expr.String() + ")"
}

// FunctionCall is a scalar or aggregate function invocation. Aggregate
// detection happens by name at analysis time.
type FunctionCall struct {
	Name     string
	Args     []Expression
	Distinct bool
	Star     bool // COUNT(*)
}

func (e *FunctionCall) expressionNode() {}
func (e *FunctionCall) String() string {
	if e.Star {
		return e.Name + "(*)"
	}
	parts := make([]string, len(e.Args))
	for i, a := range e.Args {
		parts[i] = a.String()
	}
	inner := strings.Join(parts, ", ")
	if e.Distinct {
		inner = "DISTINCT " + inner
	}
	return fmt.Sprintf("%s(%s)", e.Name, inner)
}

// WindowExpr is a function call with an OVER clause.
type WindowExpr struct {
	Function    *FunctionCall
	PartitionBy []Expression
	OrderBy     []OrderItem
}

func (e *WindowExpr) expressionNode() {}
func (e *WindowExpr) String() string {
	var sb strings.Builder
	sb.WriteString(e.Function.String())
	sb.WriteString(" OVER (")
	if len(e.PartitionBy) > 0 {
		sb.WriteString("PARTITION BY ")
		parts := make([]string, len(e.PartitionBy))
		for i, p := range e.PartitionBy {
			parts[i] = p.String()
		}
		sb.WriteString(strings.Join(parts, ", "))
	}
	if len(e.OrderBy) > 0 {
		if len(e.PartitionBy) > 0 {
			sb.WriteString(" ")
		}
		sb.WriteString("ORDER BY ")
		parts := make([]string, len(e.OrderBy))
		for i, o := range e.OrderBy {
			parts[i] = o.String()
		}
		sb.WriteString(strings.Join(parts, ", "))
	}
	sb.WriteString(")")
	return sb.String()
}

// StarExpr is the bare "*" select item.
type StarExpr struct{}

func (e *StarExpr) expressionNode() {}
func (e *StarExpr) String() string  { return "*" }

// SelectItem is one entry in the select list.
type SelectItem struct {
	Expr  Expression
	Alias string
}

func (s SelectItem) String() string {
	if s.Alias != "" {
		return s.Expr.String() + " AS " + s.Alias
	}
	return s.Expr.String()
}

// TableRef names a table in FROM or JOIN, with an optional alias.
type TableRef struct {
	Name  string
	Alias string
}

func (t TableRef) String() string {
	if t.Alias != "" {
		return t.Name + " AS " + t.Alias
	}
	return t.Name
}

// JoinClause is one JOIN in the FROM clause. Type is "INNER", "LEFT",
// "RIGHT", or "CROSS"; On is nil for CROSS joins.
type JoinClause struct {
	Type  string
	Table TableRef
	On    Expression
}

func (j JoinClause) String() string {
	s := j.Type + " JOIN " + j.Table.String()
	if j.On != nil {
		s += " ON " + j.On.String()
	}
	return s
}

// OrderItem is one ORDER BY entry.
type OrderItem struct {
	Expr Expression
	Desc bool
}

func (o OrderItem) String() string {
	if o.Desc {
		return o.Expr.String() + " DESC"
	}
	return o.Expr.String() + " ASC"
}

// CTE is one WITH entry.
type CTE struct {
	Name   string
	Select *SelectStatement
}

// SelectStatement is the parsed form of a SELECT query.
type SelectStatement struct {
	With     []CTE
	Distinct bool
	Items    []SelectItem
	From     TableRef
	Joins    []JoinClause
	Where    Expression
	GroupBy  []Expression
	Having   Expression
	OrderBy  []OrderItem
	Limit    *int64
	Offset   *int64
}

// String renders the statement back to SQL. The output is canonical, not a
// byte-for-byte copy of the input.
func (s *SelectStatement) String() string {
	var sb strings.Builder
	if len(s.With) > 0 {
		sb.WriteString("WITH ")
		parts := make([]string, len(s.With))
		for i, c := range s.With {
			parts[i] = c.Name + " AS (" + c.Select.String() + ")"
		}
		sb.WriteString(strings.Join(parts, ", "))
		sb.WriteString(" ")
	}
	sb.WriteString("SELECT ")
	if s.Distinct {
		sb.WriteString("DISTINCT ")
	}
	items := make([]string, len(s.Items))
	for i, it := range s.Items {
		items[i] = it.String()
	}
	sb.WriteString(strings.Join(items, ", "))
	sb.WriteString(" FROM ")
	sb.WriteString(s.From.String())
	for _, j := range s.Joins {
		sb.WriteString(" ")
		sb.WriteString(j.String())
	}
	if s.Where != nil {
		sb.WriteString(" WHERE ")
		sb.WriteString(s.Where.String())
	}
	if len(s.GroupBy) > 0 {
		sb.WriteString(" GROUP BY ")
		parts := make([]string, len(s.GroupBy))
		for i, g := range s.GroupBy {
			parts[i] = g.String()
		}
		sb.WriteString(strings.Join(parts, ", "))
	}
	if s.Having != nil {
		sb.WriteString(" HAVING ")
		sb.WriteString(s.Having.String())
	}
	if len(s.OrderBy) > 0 {
		sb.WriteString(" ORDER BY ")
		parts := make([]string, len(s.OrderBy))
		for i, o := range s.OrderBy {
			parts[i] = o.String()
		}
		sb.WriteString(strings.Join(parts, ", "))
	}
	if s.Limit != nil {
		fmt.Fprintf(&sb, " LIMIT %d", *s.Limit)
	}
	if s.Offset != nil {
		fmt.Fprintf(&sb, " OFFSET %d", *s.Offset)
	}
	return sb.String()
}
