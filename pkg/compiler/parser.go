package compiler

import "strings"

// Parser pulls tokens from a Lexer on demand and builds an expression tree.
//
// Grammar, lowest precedence first:
//
//	expression = equality
//	equality   = comparison (("==" | "!=") comparison)*
//	comparison = term ((">" | ">=" | "<" | "<=") term)*
//	term       = factor (("+" | "-") factor)*
//	factor     = unary (("*" | "/") unary)*
//	unary      = ("!" | "-") unary | primary
//	primary    = NUMBER | STRING | "true" | "false" | "nil" | "(" expression ")"
//
// The first error aborts the parse; no partial tree is returned.
type Parser struct {
	lex *Lexer
}

func NewParser(src string) *Parser {
	return &Parser{lex: NewLexer(src)}
}

// peek returns the next token without consuming it.
func (p *Parser) peek() (Token, error) {
	return p.lex.Peek()
}

// advance consumes and returns the next token.
func (p *Parser) advance() (Token, error) {
	return p.lex.Next()
}

// matchAny consumes the next token if its type is one of types.
func (p *Parser) matchAny(types ...TokenType) (Token, bool, error) {
	tok, err := p.peek()
	if err != nil {
		return Token{}, false, err
	}
	for _, tt := range types {
		if tok.Type == tt {
			if _, err := p.advance(); err != nil {
				return Token{}, false, err
			}
			return tok, true, nil
		}
	}
	return tok, false, nil
}

// expect consumes the next token if it matches tt, otherwise returns a
// parse error located at the token that was found instead.
func (p *Parser) expect(tt TokenType, msg string) (Token, error) {
	tok, err := p.peek()
	if err != nil {
		return Token{}, err
	}
	if tok.Type != tt {
		return tok, tokenError(tok, msg)
	}
	return p.advance()
}

// ParseExpression parses a single expression. Tokens after it are left in
// the lexer.
func (p *Parser) ParseExpression() (Expr, error) {
	return p.parseEquality()
}

// binaryLevel parses one left-associative precedence tier.
func (p *Parser) binaryLevel(next func() (Expr, error), ops map[TokenType]BinaryOp) (Expr, error) {
	expr, err := next()
	if err != nil {
		return nil, err
	}
	for {
		tok, err := p.peek()
		if err != nil {
			return nil, err
		}
		op, ok := ops[tok.Type]
		if !ok {
			return expr, nil
		}
		if _, err := p.advance(); err != nil {
			return nil, err
		}
		right, err := next()
		if err != nil {
			return nil, err
		}
		expr = &Binary{Left: expr, Op: op, Right: right}
	}
}

var (
	equalityOps   = map[TokenType]BinaryOp{EQUALS: Equal, NOT_EQ: NotEqual}
	comparisonOps = map[TokenType]BinaryOp{GREATER: Greater, GREATER_EQ: GreaterEqual, LESS: Less, LESS_EQ: LessEqual}
	termOps       = map[TokenType]BinaryOp{PLUS: Add, MINUS: Subtract}
	factorOps     = map[TokenType]BinaryOp{STAR: Multiply, SLASH: Divide}
)

// parseEquality handles == and !=
func (p *Parser) parseEquality() (Expr, error) {
	return p.binaryLevel(p.parseComparison, equalityOps)
}

// parseComparison handles > >= < <=
func (p *Parser) parseComparison() (Expr, error) {
	return p.binaryLevel(p.parseTerm, comparisonOps)
}

// parseTerm handles + and -
func (p *Parser) parseTerm() (Expr, error) {
	return p.binaryLevel(p.parseFactor, termOps)
}

// parseFactor handles * and /
func (p *Parser) parseFactor() (Expr, error) {
	return p.binaryLevel(p.parseUnary, factorOps)
}

// parseUnary handles prefix ! and -. It recurses into itself, so the
// operators nest to the right: --x is (- (- x)).
func (p *Parser) parseUnary() (Expr, error) {
	tok, ok, err := p.matchAny(NOT, MINUS)
	if err != nil {
		return nil, err
	}
	if !ok {
		return p.parsePrimary()
	}
	right, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	op := Negate
	if tok.Type == NOT {
		op = Not
	}
	return &Unary{Op: op, Right: right}, nil
}

// parsePrimary handles literals and parenthesised expressions.
func (p *Parser) parsePrimary() (Expr, error) {
	tok, err := p.peek()
	if err != nil {
		return nil, err
	}
	switch tok.Type {
	case FALSE:
		p.advance()
		return &Literal{Kind: FalseLit, Raw: "false", Line: tok.Line}, nil
	case TRUE:
		p.advance()
		return &Literal{Kind: TrueLit, Raw: "true", Line: tok.Line}, nil
	case NIL:
		p.advance()
		return &Literal{Kind: NilLit, Raw: "nil", Line: tok.Line}, nil
	case NUMBER:
		p.advance()
		return &Literal{Kind: NumberLit, Raw: tok.Lexeme, Line: tok.Line}, nil
	case STRING:
		p.advance()
		raw := strings.TrimSuffix(strings.TrimPrefix(tok.Lexeme, `"`), `"`)
		return &Literal{Kind: StringLit, Raw: raw, Line: tok.Line}, nil

	case LPAREN:
		p.advance()
		inner, err := p.ParseExpression()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(RPAREN, "Expect ')' after expression."); err != nil {
			return nil, err
		}
		return &Grouping{Inner: inner}, nil

	default:
		return nil, tokenError(tok, "Expect expression.")
	}
}

// ParseExpression parses exactly one expression from src, ignoring any
// tokens that follow it.
func ParseExpression(src string) (Expr, error) {
	return NewParser(src).ParseExpression()
}

// Parse parses src as one complete expression; trailing tokens are an error.
func Parse(src string) (Expr, error) {
	p := NewParser(src)
	expr, err := p.ParseExpression()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(EOF, "Expect end of expression."); err != nil {
		return nil, err
	}
	return expr, nil
}
