package compiler

import "fmt"

// Expr is implemented by every expression node. Each node owns its
// children; the parser never shares a subtree between two parents.
//
// String renders the fully parenthesised prefix form, e.g.
//
//	-123 * (45.67)  =>  (* (- 123) (group 45.67))
type Expr interface {
	exprNode()
	String() string
}

// LiteralKind distinguishes the literal forms the grammar accepts.
type LiteralKind int

const (
	NumberLit LiteralKind = iota
	StringLit
	TrueLit
	FalseLit
	NilLit
)

// Literal is a constant taken directly from a token.
//
//	"abc"   Literal{Kind: StringLit, Raw: "abc"}   (quotes stripped)
//	45.67   Literal{Kind: NumberLit, Raw: "45.67"}
type Literal struct {
	Kind LiteralKind
	Raw  string
	Line int // source line, kept for codegen diagnostics
}

func (*Literal) exprNode()        {}
func (l *Literal) String() string { return l.Raw }

// UnaryOp is a prefix operator.
type UnaryOp int

const (
	Negate UnaryOp = iota // -
	Not                   // !
)

func (op UnaryOp) String() string {
	switch op {
	case Negate:
		return "-"
	case Not:
		return "!"
	}
	return fmt.Sprintf("UnaryOp(%d)", int(op))
}

// Unary represents Op Right.
//
//	!!true  =>  Unary{Not, Unary{Not, true}}
type Unary struct {
	Op    UnaryOp
	Right Expr
}

func (*Unary) exprNode()        {}
func (u *Unary) String() string { return fmt.Sprintf("(%s %s)", u.Op, u.Right) }

// BinaryOp is an infix operator.
type BinaryOp int

const (
	Equal BinaryOp = iota
	NotEqual
	Less
	LessEqual
	Greater
	GreaterEqual
	Add
	Subtract
	Multiply
	Divide
)

var binaryOpSymbols = [...]string{
	Equal:        "==",
	NotEqual:     "!=",
	Less:         "<",
	LessEqual:    "<=",
	Greater:      ">",
	GreaterEqual: ">=",
	Add:          "+",
	Subtract:     "-",
	Multiply:     "*",
	Divide:       "/",
}

func (op BinaryOp) String() string {
	if int(op) >= 0 && int(op) < len(binaryOpSymbols) {
		return binaryOpSymbols[op]
	}
	return fmt.Sprintf("BinaryOp(%d)", int(op))
}

// Binary represents a binary operation: Left Op Right.
//
//	8 - 4
//	^ ^ ^
//	| | |
//	| | Right
//	| Op
//	Left
type Binary struct {
	Left  Expr
	Op    BinaryOp
	Right Expr
}

func (*Binary) exprNode() {}
func (b *Binary) String() string {
	return fmt.Sprintf("(%s %s %s)", b.Op, b.Left, b.Right)
}

// Grouping is a parenthesised expression. It is kept in the tree so the
// printer can show where the source had parentheses.
type Grouping struct {
	Inner Expr
}

func (*Grouping) exprNode()        {}
func (g *Grouping) String() string { return fmt.Sprintf("(group %s)", g.Inner) }
