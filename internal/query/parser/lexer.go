package parser

import (
	"fmt"
	"strings"
)

// TokenType identifies the lexical class of a token.
type TokenType int

const (
	TokenEOF TokenType = iota
	TokenIdent
	TokenKeyword
	TokenNumber
	TokenString
	TokenOperator // = != <> < <= > >= + - * / %
	TokenComma
	TokenDot
	TokenLParen
	TokenRParen
	TokenSemicolon
)

// Token is a single lexical unit with its position for error reporting.
type Token struct {
	Type    TokenType
	Literal string
	Pos     int
}

// keywords recognized by the lexer. Identifiers matching these (case
// insensitive) are emitted as TokenKeyword with an upper-cased literal.
var keywords = map[string]bool{
	"SELECT": true, "FROM": true, "WHERE": true, "GROUP": true, "BY": true,
	"HAVING": true, "ORDER": true, "LIMIT": true, "OFFSET": true,
	"AND": true, "OR": true, "NOT": true, "IN": true, "BETWEEN": true,
	"LIKE": true, "IS": true, "NULL": true, "TRUE": true, "FALSE": true,
	"AS": true, "ASC": true, "DESC": true, "DISTINCT": true,
	"JOIN": true, "INNER": true, "LEFT": true, "RIGHT": true, "OUTER": true,
	"CROSS": true, "ON": true, "OVER": true, "PARTITION": true, "WITH": true,
}

// Lexer tokenizes a SQL string.
type Lexer struct {
	input string
	pos   int
}

// NewLexer creates a lexer over the given SQL text.
func NewLexer(input string) *Lexer {
	return &Lexer{input: input}
}

// Next returns the next token, or an error on an unterminated string or an
// unexpected byte.
func (l *Lexer) Next() (Token, error) {
	l.skipSpaceAndComments()
	if l.pos >= len(l.input) {
		return Token{Type: TokenEOF, Pos: l.pos}, nil
	}

	start := l.pos
	ch := l.input[l.pos]

	switch {
	case isLetter(ch) || ch == '_':
		return l.lexIdent(start), nil
	case isDigit(ch):
		return l.lexNumber(start), nil
	case ch == '\'':
		return l.lexString(start)
	}

	switch ch {
	case ',':
		l.pos++
		return Token{Type: TokenComma, Literal: ",", Pos: start}, nil
	case '.':
		l.pos++
		return Token{Type: TokenDot, Literal: ".", Pos: start}, nil
	case '(':
		l.pos++
		return Token{Type: TokenLParen, Literal: "(", Pos: start}, nil
	case ')':
		l.pos++
		return Token{Type: TokenRParen, Literal: ")", Pos: start}, nil
	case ';':
		l.pos++
		return Token{Type: TokenSemicolon, Literal: ";", Pos: start}, nil
	case '=', '+', '-', '*', '/', '%':
		l.pos++
		return Token{Type: TokenOperator, Literal: string(ch), Pos: start}, nil
	case '<':
		l.pos++
		if l.pos < len(l.input) && (l.input[l.pos] == '=' || l.input[l.pos] == '>') {
			op := "<" + string(l.input[l.pos])
			l.pos++
			if op == "<>" {
				op = "!="
			}
			return Token{Type: TokenOperator, Literal: op, Pos: start}, nil
		}
		return Token{Type: TokenOperator, Literal: "<", Pos: start}, nil
	case '>':
		l.pos++
		if l.pos < len(l.input) && l.input[l.pos] == '=' {
			l.pos++
			return Token{Type: TokenOperator, Literal: ">=", Pos: start}, nil
		}
		return Token{Type: TokenOperator, Literal: ">", Pos: start}, nil
	case '!':
		l.pos++
		if l.pos < len(l.input) && l.input[l.pos] == '=' {
			l.pos++
			return Token{Type: TokenOperator, Literal: "!=", Pos: start}, nil
		}
		return Token{}, fmt.Errorf("lexer: unexpected '!' at position %d", start)
	}

	return Token{}, fmt.Errorf("lexer: unexpected character %q at position %d", ch, start)
}

func (l *Lexer) lexIdent(start int) Token {
	for l.pos < len(l.input) && (isLetter(l.input[l.pos]) || isDigit(l.input[l.pos]) || l.input[l.pos] == '_') {
		l.pos++
	}
	lit := l.input[start:l.pos]
	upper := strings.ToUpper(lit)
	if keywords[upper] {
		return Token{Type: TokenKeyword, Literal: upper, Pos: start}
	}
	return Token{Type: TokenIdent, Literal: lit, Pos: start}
}

func (l *Lexer) lexNumber(start int) Token {
	for l.pos < len(l.input) && isDigit(l.input[l.pos]) {
		l.pos++
	}
	if l.pos < len(l.input) && l.input[l.pos] == '.' {
		l.pos++
		for l.pos < len(l.input) && isDigit(l.input[l.pos]) {
			l.pos++
		}
	}
	return Token{Type: TokenNumber, Literal: l.input[start:l.pos], Pos: start}
}

// lexString scans a single-quoted SQL string. Doubled quotes escape a quote.
func (l *Lexer) lexString(start int) (Token, error) {
	l.pos++ // opening quote
	var sb strings.Builder
	for l.pos < len(l.input) {
		ch := l.input[l.pos]
		if ch == '\'' {
			if l.pos+1 < len(l.input) && l.input[l.pos+1] == '\'' {
				sb.WriteByte('\'')
				l.pos += 2
				continue
			}
			l.pos++
			return Token{Type: TokenString, Literal: sb.String(), Pos: start}, nil
		}
		sb.WriteByte(ch)
		l.pos++
	}
	return Token{}, fmt.Errorf("lexer: unterminated string starting at position %d", start)
}

func (l *Lexer) skipSpaceAndComments() {
	for l.pos < len(l.input) {
		ch := l.input[l.pos]
		switch {
		case ch == ' ' || ch == '\t' || ch == '\n' || ch == '\r':
			l.pos++
		case ch == '-' && l.pos+1 < len(l.input) && l.input[l.pos+1] == '-':
			for l.pos < len(l.input) && l.input[l.pos] != '\n' {
				l.pos++
			}
		default:
			return
		}
	}
}

func isLetter(ch byte) bool {
	return (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z')
}

func isDigit(ch byte) bool {
	return ch >= '0' && ch <= '9'
}

// Tokenize scans the whole input and returns all tokens including the
// trailing EOF token.
func Tokenize(input string) ([]Token, error) {
	lx := NewLexer(input)
	var tokens []Token
	for {
		tok, err := lx.Next()
		if err != nil {
			return nil, err
		}
		tokens = append(tokens, tok)
		if tok.Type == TokenEOF {
			return tokens, nil
		}
	}
}
