// Package parser implements a hand-written lexer and recursive-descent
// parser for the SELECT subset of SQL the router accepts.
package parser

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/irouter/irouter/internal/errors"
)

// aggregate function names recognized during parsing; used only to reject
// DISTINCT inside non-aggregates.
var aggregateNames = map[string]bool{
	"COUNT": true, "SUM": true, "AVG": true, "MIN": true, "MAX": true,
}

// Parser consumes a token stream into a SelectStatement.
type Parser struct {
	tokens []Token
	pos    int
}

// Parse tokenizes and parses a single SELECT statement. A trailing semicolon
// is allowed; anything after it is an error.
func Parse(sql string) (*SelectStatement, error) {
	tokens, err := Tokenize(sql)
	if err != nil {
		return nil, errors.NewParseError("tokenization failed", err)
	}
	p := &Parser{tokens: tokens}
	stmt, err := p.parseSelectStatement()
	if err != nil {
		return nil, errors.NewParseError("parse failed", err)
	}
	if p.current().Type == TokenSemicolon {
		p.advance()
	}
	if p.current().Type != TokenEOF {
		return nil, errors.NewParseError(
			fmt.Sprintf("unexpected input after statement at position %d", p.current().Pos), nil)
	}
	return stmt, nil
}

func (p *Parser) current() Token {
	if p.pos >= len(p.tokens) {
		return Token{Type: TokenEOF}
	}
	return p.tokens[p.pos]
}

func (p *Parser) peek() Token {
	if p.pos+1 >= len(p.tokens) {
		return Token{Type: TokenEOF}
	}
	return p.tokens[p.pos+1]
}

func (p *Parser) advance() Token {
	tok := p.current()
	if p.pos < len(p.tokens) {
		p.pos++
	}
	return tok
}

// matchKeyword consumes the current token if it is the given keyword.
func (p *Parser) matchKeyword(kw string) bool {
	if p.current().Type == TokenKeyword && p.current().Literal == kw {
		p.advance()
		return true
	}
	return false
}

func (p *Parser) expectKeyword(kw string) error {
	if !p.matchKeyword(kw) {
		return fmt.Errorf("expected %s at position %d, got %q", kw, p.current().Pos, p.current().Literal)
	}
	return nil
}

func (p *Parser) expect(t TokenType, what string) (Token, error) {
	if p.current().Type != t {
		return Token{}, fmt.Errorf("expected %s at position %d, got %q", what, p.current().Pos, p.current().Literal)
	}
	return p.advance(), nil
}

func (p *Parser) parseSelectStatement() (*SelectStatement, error) {
	stmt := &SelectStatement{}

	if p.matchKeyword("WITH") {
		for {
			name, err := p.expect(TokenIdent, "CTE name")
			if err != nil {
				return nil, err
			}
			if err := p.expectKeyword("AS"); err != nil {
				return nil, err
			}
			if _, err := p.expect(TokenLParen, "("); err != nil {
				return nil, err
			}
			inner, err := p.parseSelectStatement()
			if err != nil {
				return nil, err
			}
			if _, err := p.expect(TokenRParen, ")"); err != nil {
				return nil, err
			}
			stmt.With = append(stmt.With, CTE{Name: name.Literal, Select: inner})
			if p.current().Type != TokenComma {
				break
			}
			p.advance()
		}
	}

	if err := p.expectKeyword("SELECT"); err != nil {
		return nil, err
	}
	if p.matchKeyword("DISTINCT") {
		stmt.Distinct = true
	}

	items, err := p.parseSelectList()
	if err != nil {
		return nil, err
	}
	stmt.Items = items

	if err := p.expectKeyword("FROM"); err != nil {
		return nil, err
	}
	stmt.From, err = p.parseTableRef()
	if err != nil {
		return nil, err
	}

	for {
		join, ok, err := p.parseJoin()
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}
		stmt.Joins = append(stmt.Joins, join)
	}

	if p.matchKeyword("WHERE") {
		stmt.Where, err = p.parseExpression()
		if err != nil {
			return nil, err
		}
	}

	if p.matchKeyword("GROUP") {
		if err := p.expectKeyword("BY"); err != nil {
			return nil, err
		}
		for {
			e, err := p.parseExpression()
			if err != nil {
				return nil, err
			}
			stmt.GroupBy = append(stmt.GroupBy, e)
			if p.current().Type != TokenComma {
				break
			}
			p.advance()
		}
	}

	if p.matchKeyword("HAVING") {
		stmt.Having, err = p.parseExpression()
		if err != nil {
			return nil, err
		}
	}

	if p.matchKeyword("ORDER") {
		if err := p.expectKeyword("BY"); err != nil {
			return nil, err
		}
		stmt.OrderBy, err = p.parseOrderItems()
		if err != nil {
			return nil, err
		}
	}

	if p.matchKeyword("LIMIT") {
		n, err := p.parseIntToken("LIMIT")
		if err != nil {
			return nil, err
		}
		stmt.Limit = &n
	}

	if p.matchKeyword("OFFSET") {
		n, err := p.parseIntToken("OFFSET")
		if err != nil {
			return nil, err
		}
		stmt.Offset = &n
	}

	return stmt, nil
}

func (p *Parser) parseIntToken(clause string) (int64, error) {
	tok, err := p.expect(TokenNumber, clause+" value")
	if err != nil {
		return 0, err
	}
	n, err := strconv.ParseInt(tok.Literal, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value %q", clause, tok.Literal)
	}
	return n, nil
}

func (p *Parser) parseSelectList() ([]SelectItem, error) {
	var items []SelectItem
	for {
		item, err := p.parseSelectItem()
		if err != nil {
			return nil, err
		}
		items = append(items, item)
		if p.current().Type != TokenComma {
			return items, nil
		}
		p.advance()
	}
}

func (p *Parser) parseSelectItem() (SelectItem, error) {
	if p.current().Type == TokenOperator && p.current().Literal == "*" {
		p.advance()
		return SelectItem{Expr: &StarExpr{}}, nil
	}

	expr, err := p.parseExpression()
	if err != nil {
		return SelectItem{}, err
	}

	item := SelectItem{Expr: expr}
	if p.matchKeyword("AS") {
		tok, err := p.expect(TokenIdent, "alias")
		if err != nil {
			return SelectItem{}, err
		}
		item.Alias = tok.Literal
	} else if p.current().Type == TokenIdent {
		item.Alias = p.advance().Literal
	}
	return item, nil
}

func (p *Parser) parseTableRef() (TableRef, error) {
	tok, err := p.expect(TokenIdent, "table name")
	if err != nil {
		return TableRef{}, err
	}
	ref := TableRef{Name: tok.Literal}
	if p.matchKeyword("AS") {
		alias, err := p.expect(TokenIdent, "table alias")
		if err != nil {
			return TableRef{}, err
		}
		ref.Alias = alias.Literal
	} else if p.current().Type == TokenIdent {
		ref.Alias = p.advance().Literal
	}
	return ref, nil
}

// parseJoin parses one JOIN clause if the next tokens start one. Returns
// ok=false when the current token does not begin a join.
func (p *Parser) parseJoin() (JoinClause, bool, error) {
	joinType := ""
	switch {
	case p.matchKeyword("INNER"):
		joinType = "INNER"
	case p.matchKeyword("LEFT"):
		p.matchKeyword("OUTER")
		joinType = "LEFT"
	case p.matchKeyword("RIGHT"):
		p.matchKeyword("OUTER")
		joinType = "RIGHT"
	case p.matchKeyword("CROSS"):
		joinType = "CROSS"
	case p.current().Type == TokenKeyword && p.current().Literal == "JOIN":
		joinType = "INNER"
	default:
		return JoinClause{}, false, nil
	}

	if err := p.expectKeyword("JOIN"); err != nil {
		return JoinClause{}, false, err
	}
	table, err := p.parseTableRef()
	if err != nil {
		return JoinClause{}, false, err
	}
	join := JoinClause{Type: joinType, Table: table}
	if joinType != "CROSS" {
		if err := p.expectKeyword("ON"); err != nil {
			return JoinClause{}, false, err
		}
		join.On, err = p.parseExpression()
		if err != nil {
			return JoinClause{}, false, err
		}
	}
	return join, true, nil
}

func (p *Parser) parseOrderItems() ([]OrderItem, error) {
	var items []OrderItem
	for {
		e, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		item := OrderItem{Expr: e}
		if p.matchKeyword("DESC") {
			item.Desc = true
		} else {
			p.matchKeyword("ASC")
		}
		items = append(items, item)
		if p.current().Type != TokenComma {
			return items, nil
		}
		p.advance()
	}
}

// Expression grammar, lowest precedence first:
//
//	expression := andExpr (OR andExpr)*
//	andExpr    := notExpr (AND notExpr)*
//	notExpr    := NOT notExpr | comparison
//	comparison := additive (compOp additive | IN ... | BETWEEN ... | LIKE ... | IS ...)?
func (p *Parser) parseExpression() (Expression, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.current().Type == TokenKeyword && p.current().Literal == "OR" {
		p.advance()
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = &BinaryExpr{Left: left, Operator: "OR", Right: right}
	}
	return left, nil
}

func (p *Parser) parseAnd() (Expression, error) {
	left, err := p.parseNot()
	if err != nil {
		return nil, err
	}
	for p.current().Type == TokenKeyword && p.current().Literal == "AND" {
		p.advance()
		right, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		left = &BinaryExpr{Left: left, Operator: "AND", Right: right}
	}
	return left, nil
}

func (p *Parser) parseNot() (Expression, error) {
	if p.matchKeyword("NOT") {
		operand, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		return &UnaryExpr{Operator: "NOT", Operand: operand}, nil
	}
	return p.parseComparison()
}

func (p *Parser) parseComparison() (Expression, error) {
	left, err := p.parseAdditive()
	if err != nil {
		return nil, err
	}

	negated := false
	if p.current().Type == TokenKeyword && p.current().Literal == "NOT" {
		next := p.peek()
		if next.Type == TokenKeyword && (next.Literal == "IN" || next.Literal == "BETWEEN" || next.Literal == "LIKE") {
			p.advance()
			negated = true
		}
	}

	tok := p.current()
	switch {
	case tok.Type == TokenOperator && isComparisonOp(tok.Literal):
		p.advance()
		right, err := p.parseAdditive()
		if err != nil {
			return nil, err
		}
		return &BinaryExpr{Left: left, Operator: tok.Literal, Right: right}, nil

	case tok.Type == TokenKeyword && tok.Literal == "IN":
		p.advance()
		if _, err := p.expect(TokenLParen, "("); err != nil {
			return nil, err
		}
		var values []Expression
		for {
			v, err := p.parseAdditive()
			if err != nil {
				return nil, err
			}
			values = append(values, v)
			if p.current().Type != TokenComma {
				break
			}
			p.advance()
		}
		if _, err := p.expect(TokenRParen, ")"); err != nil {
			return nil, err
		}
		return &InExpr{Expr: left, Values: values, Negated: negated}, nil

	case tok.Type == TokenKeyword && tok.Literal == "BETWEEN":
		p.advance()
		low, err := p.parseAdditive()
		if err != nil {
			return nil, err
		}
		if err := p.expectKeyword("AND"); err != nil {
			return nil, err
		}
		high, err := p.parseAdditive()
		if err != nil {
			return nil, err
		}
		return &BetweenExpr{Expr: left, Low: low, High: high, Negated: negated}, nil

	case tok.Type == TokenKeyword && tok.Literal == "LIKE":
		p.advance()
		pattern, err := p.parseAdditive()
		if err != nil {
			return nil, err
		}
		return &LikeExpr{Expr: left, Pattern: pattern, Negated: negated}, nil

	case tok.Type == TokenKeyword && tok.Literal == "IS":
		p.advance()
		neg := p.matchKeyword("NOT")
		if err := p.expectKeyword("NULL"); err != nil {
			return nil, err
		}
		return &IsNullExpr{Expr: left, Negated: neg}, nil
	}

	if negated {
		return nil, fmt.Errorf("expected IN, BETWEEN or LIKE after NOT at position %d", p.current().Pos)
	}
	return left, nil
}

func isComparisonOp(op string) bool {
	switch op {
	case "=", "!=", "<", "<=", ">", ">=":
		return true
	}
	return false
}

func (p *Parser) parseAdditive() (Expression, error) {
	left, err := p.parseMultiplicative()
	if err != nil {
		return nil, err
	}
	for p.current().Type == TokenOperator && (p.current().Literal == "+" || p.current().Literal == "-") {
		op := p.advance().Literal
		right, err := p.parseMultiplicative()
		if err != nil {
			return nil, err
		}
		left = &BinaryExpr{Left: left, Operator: op, Right: right}
	}
	return left, nil
}

func (p *Parser) parseMultiplicative() (Expression, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for p.current().Type == TokenOperator &&
		(p.current().Literal == "*" || p.current().Literal == "/" || p.current().Literal == "%") {
		op := p.advance().Literal
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = &BinaryExpr{Left: left, Operator: op, Right: right}
	}
	return left, nil
}

func (p *Parser) parseUnary() (Expression, error) {
	if p.current().Type == TokenOperator && p.current().Literal == "-" {
		p.advance()
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		// fold negative numeric literals immediately
		if lit, ok := operand.(*Literal); ok {
			switch v := lit.Value.(type) {
			case int64:
				return &Literal{Value: -v}, nil
			case float64:
				return &Literal{Value: -v}, nil
			}
		}
		return &UnaryExpr{Operator: "-", Operand: operand}, nil
	}
	return p.parsePrimary()
}

func (p *Parser) parsePrimary() (Expression, error) {
	tok := p.current()

	switch tok.Type {
	case TokenNumber:
		p.advance()
		if strings.Contains(tok.Literal, ".") {
			f, err := strconv.ParseFloat(tok.Literal, 64)
			if err != nil {
				return nil, fmt.Errorf("invalid number %q at position %d", tok.Literal, tok.Pos)
			}
			return &Literal{Value: f}, nil
		}
		n, err := strconv.ParseInt(tok.Literal, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid number %q at position %d", tok.Literal, tok.Pos)
		}
		return &Literal{Value: n}, nil

	case TokenString:
		p.advance()
		return &Literal{Value: tok.Literal}, nil

	case TokenLParen:
		p.advance()
		inner, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(TokenRParen, ")"); err != nil {
			return nil, err
		}
		return &ParenExpr{Expr: inner}, nil

	case TokenKeyword:
		switch tok.Literal {
		case "NULL":
			p.advance()
			return &Literal{Value: nil}, nil
		case "TRUE":
			p.advance()
			return &Literal{Value: true}, nil
		case "FALSE":
			p.advance()
			return &Literal{Value: false}, nil
		}
		return nil, fmt.Errorf("unexpected keyword %q at position %d", tok.Literal, tok.Pos)

	case TokenIdent:
		return p.parseIdentExpr()
	}

	return nil, fmt.Errorf("unexpected token %q at position %d", tok.Literal, tok.Pos)
}

// parseIdentExpr handles column references, qualified columns, function
// calls, and window expressions starting at an identifier.
func (p *Parser) parseIdentExpr() (Expression, error) {
	name := p.advance().Literal

	if p.current().Type == TokenLParen {
		fn, err := p.parseFunctionCall(name)
		if err != nil {
			return nil, err
		}
		if p.current().Type == TokenKeyword && p.current().Literal == "OVER" {
			return p.parseWindow(fn)
		}
		return fn, nil
	}

	if p.current().Type == TokenDot {
		p.advance()
		col, err := p.expect(TokenIdent, "column name")
		if err != nil {
			return nil, err
		}
		return &ColumnRef{Table: name, Column: col.Literal}, nil
	}

	return &ColumnRef{Column: name}, nil
}

func (p *Parser) parseFunctionCall(name string) (*FunctionCall, error) {
	p.advance() // (
	upper := strings.ToUpper(name)
	fn := &FunctionCall{Name: upper}

	if p.current().Type == TokenOperator && p.current().Literal == "*" {
		p.advance()
		fn.Star = true
		if _, err := p.expect(TokenRParen, ")"); err != nil {
			return nil, err
		}
		return fn, nil
	}

	if p.matchKeyword("DISTINCT") {
		if !aggregateNames[upper] {
			return nil, fmt.Errorf("DISTINCT not allowed in %s()", upper)
		}
		fn.Distinct = true
	}

	if p.current().Type == TokenRParen {
		p.advance()
		return fn, nil
	}

	for {
		arg, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		fn.Args = append(fn.Args, arg)
		if p.current().Type != TokenComma {
			break
		}
		p.advance()
	}
	if _, err := p.expect(TokenRParen, ")"); err != nil {
		return nil, err
	}
	return fn, nil
}

func (p *Parser) parseWindow(fn *FunctionCall) (Expression, error) {
	p.advance() // OVER
	if _, err := p.expect(TokenLParen, "("); err != nil {
		return nil, err
	}
	win := &WindowExpr{Function: fn}

	if p.matchKeyword("PARTITION") {
		if err := p.expectKeyword("BY"); err != nil {
			return nil, err
		}
		for {
			e, err := p.parseExpression()
			if err != nil {
				return nil, err
			}
			win.PartitionBy = append(win.PartitionBy, e)
			if p.current().Type != TokenComma {
				break
			}
			p.advance()
		}
	}

	if p.matchKeyword("ORDER") {
		if err := p.expectKeyword("BY"); err != nil {
			return nil, err
		}
		items, err := p.parseOrderItems()
		if err != nil {
			return nil, err
		}
		win.OrderBy = items
	}

	if _, err := p.expect(TokenRParen, ")"); err != nil {
		return nil, err
	}
	return win, nil
}
