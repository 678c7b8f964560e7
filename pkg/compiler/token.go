package compiler

import "fmt"

// TokenType identifies the category of a lexed token.
type TokenType int

const (
	EOF TokenType = iota // sentinel: end of input

	// Single-character tokens
	LPAREN    // (
	RPAREN    // )
	LBRACE    // {
	RBRACE    // }
	COMMA     // ,
	DOT       // .
	MINUS     // -
	PLUS      // +
	SEMICOLON // ;
	SLASH     // /
	STAR      // *

	// One or two character tokens
	NOT        // !
	NOT_EQ     // !=
	ASSIGN     // =
	EQUALS     // ==
	GREATER    // >
	GREATER_EQ // >=
	LESS       // <
	LESS_EQ    // <=

	// Literals
	IDENTIFIER // name
	STRING     // "..." (lexeme keeps the quotes)
	NUMBER     // 123 or 45.67

	// Keywords
	AND    // "and"
	CLASS  // "class"
	ELSE   // "else"
	FALSE  // "false"
	FOR    // "for"
	FUN    // "fun"
	IF     // "if"
	NIL    // "nil"
	OR     // "or"
	PRINT  // "print"
	RETURN // "return"
	SUPER  // "super"
	THIS   // "this"
	TRUE   // "true"
	VAR    // "var"
	WHILE  // "while"
)

var tokenNames = [...]string{
	EOF:        "EOF",
	LPAREN:     "LPAREN",
	RPAREN:     "RPAREN",
	LBRACE:     "LBRACE",
	RBRACE:     "RBRACE",
	COMMA:      "COMMA",
	DOT:        "DOT",
	MINUS:      "MINUS",
	PLUS:       "PLUS",
	SEMICOLON:  "SEMICOLON",
	SLASH:      "SLASH",
	STAR:       "STAR",
	NOT:        "NOT",
	NOT_EQ:     "NOT_EQ",
	ASSIGN:     "ASSIGN",
	EQUALS:     "EQUALS",
	GREATER:    "GREATER",
	GREATER_EQ: "GREATER_EQ",
	LESS:       "LESS",
	LESS_EQ:    "LESS_EQ",
	IDENTIFIER: "IDENTIFIER",
	STRING:     "STRING",
	NUMBER:     "NUMBER",
	AND:        "AND",
	CLASS:      "CLASS",
	ELSE:       "ELSE",
	FALSE:      "FALSE",
	FOR:        "FOR",
	FUN:        "FUN",
	IF:         "IF",
	NIL:        "NIL",
	OR:         "OR",
	PRINT:      "PRINT",
	RETURN:     "RETURN",
	SUPER:      "SUPER",
	THIS:       "THIS",
	TRUE:       "TRUE",
	VAR:        "VAR",
	WHILE:      "WHILE",
}

func (tt TokenType) String() string {
	if int(tt) >= 0 && int(tt) < len(tokenNames) && tokenNames[tt] != "" {
		return tokenNames[tt]
	}
	return fmt.Sprintf("TokenType(%d)", int(tt))
}

// Token is a single lexical unit. Tokens are never mutated after the
// Lexer produces them.
type Token struct {
	Type   TokenType
	Lexeme string // exact source text
	Line   int    // 1-based source line
}

func (t Token) String() string {
	return fmt.Sprintf("%-10s %-14q  line %d", t.Type, t.Lexeme, t.Line)
}
