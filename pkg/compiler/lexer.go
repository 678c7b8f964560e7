package compiler

import (
	"iter"
	"unicode"
)

// keywords maps source text to its keyword TokenType.
var keywords = map[string]TokenType{
	"and":    AND,
	"class":  CLASS,
	"else":   ELSE,
	"false":  FALSE,
	"for":    FOR,
	"fun":    FUN,
	"if":     IF,
	"nil":    NIL,
	"or":     OR,
	"print":  PRINT,
	"return": RETURN,
	"super":  SUPER,
	"this":   THIS,
	"true":   TRUE,
	"var":    VAR,
	"while":  WHILE,
}

// Lexer scans src lazily, one token per call to Next.
//
// All mutable state is the (pos, line) cursor, so copying a Lexer by value
// is a cheap checkpoint: the rune slice is shared and never written.
type Lexer struct {
	src  []rune
	pos  int // index of the next rune to consume
	line int // current 1-based source line
}

func NewLexer(src string) *Lexer {
	return &Lexer{src: []rune(src), pos: 0, line: 1}
}

// Line reports the line the cursor is on.
func (l *Lexer) Line() int { return l.line }

// peek returns the rune at the current position without advancing.
func (l *Lexer) peek() rune {
	if l.pos >= len(l.src) {
		return 0
	}
	return l.src[l.pos]
}

// peek2 returns the rune one position ahead of the current position.
func (l *Lexer) peek2() rune {
	if l.pos+1 >= len(l.src) {
		return 0
	}
	return l.src[l.pos+1]
}

// advance consumes one rune and returns it.
func (l *Lexer) advance() rune {
	if l.pos >= len(l.src) {
		return 0
	}
	r := l.src[l.pos]
	l.pos++
	if r == '\n' {
		l.line++
	}
	return r
}

// match consumes the next rune if it is want.
func (l *Lexer) match(want rune) bool {
	if l.pos >= len(l.src) || l.src[l.pos] != want {
		return false
	}
	l.advance()
	return true
}

func isSpace(r rune) bool {
	return r == ' ' || r == '\t' || r == '\r' || r == '\n' || r == '\f' || r == '\v'
}

func isDigit(r rune) bool { return r >= '0' && r <= '9' }

func isAlpha(r rune) bool { return unicode.IsLetter(r) || r == '_' }

func (l *Lexer) skipWhitespace() {
	for l.pos < len(l.src) && isSpace(l.peek()) {
		l.advance()
	}
}

// skipLineComment discards everything up to, not including, the newline.
// The opening "//" must already have been consumed.
func (l *Lexer) skipLineComment() {
	for l.pos < len(l.src) && l.peek() != '\n' {
		l.advance()
	}
}

// scanIdent collects an identifier or keyword.
// The first character must still be at l.peek().
func (l *Lexer) scanIdent() Token {
	line := l.line
	start := l.pos
	for l.pos < len(l.src) {
		r := l.peek()
		if !isAlpha(r) && !unicode.IsDigit(r) {
			break
		}
		l.advance()
	}
	lexeme := string(l.src[start:l.pos])
	tt := IDENTIFIER
	if kw, ok := keywords[lexeme]; ok {
		tt = kw
	}
	return Token{Type: tt, Lexeme: lexeme, Line: line}
}

// scanNumber collects digits with an optional fractional part. The '.' is
// only taken when a digit follows it, so "1." scans as NUMBER then DOT.
func (l *Lexer) scanNumber() Token {
	line := l.line
	start := l.pos
	for isDigit(l.peek()) {
		l.advance()
	}
	if l.peek() == '.' && isDigit(l.peek2()) {
		l.advance() // consume '.'
		for isDigit(l.peek()) {
			l.advance()
		}
	}
	return Token{Type: NUMBER, Lexeme: string(l.src[start:l.pos]), Line: line}
}

// scanString collects a string literal including both quotes.
// The error cites the line the literal started on.
func (l *Lexer) scanString() (Token, error) {
	line := l.line
	start := l.pos
	l.advance() // consume opening "

	for l.pos < len(l.src) && l.peek() != '"' {
		l.advance()
	}
	if l.pos >= len(l.src) {
		return Token{}, scanError(line, "Unterminated string.")
	}
	l.advance() // consume closing "

	return Token{Type: STRING, Lexeme: string(l.src[start:l.pos]), Line: line}, nil
}

// Next skips whitespace/comments and returns the next Token. Once the input
// is exhausted it keeps returning EOF.
//
// An unexpected character is consumed before the error is returned, so a
// caller that wants every diagnostic can keep pulling.
func (l *Lexer) Next() (Token, error) {
	for {
		l.skipWhitespace()
		if l.pos >= len(l.src) {
			return Token{Type: EOF, Lexeme: "", Line: l.line}, nil
		}
		if l.peek() == '/' && l.peek2() == '/' {
			l.advance()
			l.advance()
			l.skipLineComment()
			continue
		}
		break
	}

	ch := l.peek()
	line := l.line

	if isDigit(ch) {
		return l.scanNumber(), nil
	}
	if isAlpha(ch) {
		return l.scanIdent(), nil
	}
	if ch == '"' {
		return l.scanString()
	}

	l.advance() // consume the character before the switch
	switch ch {
	case '(':
		return Token{LPAREN, "(", line}, nil
	case ')':
		return Token{RPAREN, ")", line}, nil
	case '{':
		return Token{LBRACE, "{", line}, nil
	case '}':
		return Token{RBRACE, "}", line}, nil
	case ',':
		return Token{COMMA, ",", line}, nil
	case '.':
		return Token{DOT, ".", line}, nil
	case '-':
		return Token{MINUS, "-", line}, nil
	case '+':
		return Token{PLUS, "+", line}, nil
	case ';':
		return Token{SEMICOLON, ";", line}, nil
	case '*':
		return Token{STAR, "*", line}, nil
	case '/':
		return Token{SLASH, "/", line}, nil

	case '!':
		if l.match('=') {
			return Token{NOT_EQ, "!=", line}, nil
		}
		return Token{NOT, "!", line}, nil
	case '=':
		if l.match('=') {
			return Token{EQUALS, "==", line}, nil
		}
		return Token{ASSIGN, "=", line}, nil
	case '<':
		if l.match('=') {
			return Token{LESS_EQ, "<=", line}, nil
		}
		return Token{LESS, "<", line}, nil
	case '>':
		if l.match('=') {
			return Token{GREATER_EQ, ">=", line}, nil
		}
		return Token{GREATER, ">", line}, nil
	default:
		return Token{}, scanError(line, "Unexpected character '"+string(ch)+"'.")
	}
}

// Peek returns the token Next would return without consuming it. A scan
// error is reported here exactly as Next would report it.
func (l *Lexer) Peek() (Token, error) {
	probe := *l
	return probe.Next()
}

// Tokens yields the remaining tokens, stopping before EOF or after the
// first error.
func (l *Lexer) Tokens() iter.Seq2[Token, error] {
	return func(yield func(Token, error) bool) {
		for {
			tok, err := l.Next()
			if err != nil {
				yield(Token{}, err)
				return
			}
			if tok.Type == EOF {
				return
			}
			if !yield(tok, nil) {
				return
			}
		}
	}
}

// Lex tokenises src and returns all tokens including the final EOF token.
// It stops at the first scan error.
func Lex(src string) ([]Token, error) {
	l := NewLexer(src)
	var tokens []Token
	for {
		tok, err := l.Next()
		if err != nil {
			return tokens, err
		}
		tokens = append(tokens, tok)
		if tok.Type == EOF {
			return tokens, nil
		}
	}
}

// LexAll scans the whole of src, collecting every token and every scan
// error instead of stopping at the first one.
func LexAll(src string) ([]Token, []error) {
	l := NewLexer(src)
	var (
		tokens []Token
		errs   []error
	)
	for {
		tok, err := l.Next()
		if err != nil {
			errs = append(errs, err)
			continue
		}
		tokens = append(tokens, tok)
		if tok.Type == EOF {
			return tokens, errs
		}
	}
}
