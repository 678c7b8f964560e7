package compiler

import "complox/pkg/x86"

// unwrapGrouping strips redundant parentheses around e.
func unwrapGrouping(e Expr) Expr {
	for {
		g, ok := e.(*Grouping)
		if !ok {
			return e
		}
		e = g.Inner
	}
}

// literalPair returns the values of b's operands when both are literals
// that lower to integers.
func literalPair(b *Binary) (uint32, uint32, bool) {
	left, ok := unwrapGrouping(b.Left).(*Literal)
	if !ok {
		return 0, 0, false
	}
	right, ok := unwrapGrouping(b.Right).(*Literal)
	if !ok {
		return 0, 0, false
	}
	lv, err := intValue(left)
	if err != nil {
		return 0, 0, false
	}
	rv, err := intValue(right)
	if err != nil {
		return 0, 0, false
	}
	return lv, rv, true
}

// valueBlob returns the value-form blob for an arithmetic operator.
func valueBlob(op BinaryOp, a, b uint32) (x86.Blob, bool) {
	switch op {
	case Add:
		return x86.AddV(a, b), true
	case Subtract:
		return x86.SubV(a, b), true
	case Multiply:
		return x86.MulV(a, b), true
	case Divide:
		return x86.DivV(a, b), true
	}
	return nil, false
}
