package compiler

import (
	"fmt"
	"strconv"

	"complox/pkg/x86"
)

// Options tunes code generation.
type Options struct {
	// Optimize lowers literal-only arithmetic through the value-form blobs
	// and exits directly with a literal result.
	Optimize bool
}

// CodeGen walks an expression tree and appends blobs to the _start section.
// Every lowered expression leaves exactly one value on the stack.
type CodeGen struct {
	opts  Options
	text  x86.Section
	depth int // notional evaluation stack depth
}

func newCodeGen(opts Options) *CodeGen {
	return &CodeGen{opts: opts, text: x86.Section{Name: x86.EntryPoint}}
}

func (cg *CodeGen) emit(b x86.Blob) {
	cg.depth += b.StackEffect()
	cg.text.Append(b)
}

// intValue returns the integer a literal lowers to. Booleans become 1/0 and
// nil becomes 0; strings and fractional numbers cannot be lowered.
func intValue(l *Literal) (uint32, error) {
	switch l.Kind {
	case TrueLit:
		return 1, nil
	case FalseLit, NilLit:
		return 0, nil
	case NumberLit:
		if !isInteger(l.Raw) {
			return 0, codegenError(l, "Only integer literals can be compiled.")
		}
		v, err := strconv.ParseUint(l.Raw, 10, 32)
		if err != nil {
			return 0, codegenError(l, "Integer literal out of range.")
		}
		return uint32(v), nil
	case StringLit:
		return 0, codegenError(l, "String literals cannot be compiled.")
	}
	return 0, fmt.Errorf("unknown literal kind %d", l.Kind)
}

func isInteger(raw string) bool {
	for _, r := range raw {
		if !isDigit(r) {
			return false
		}
	}
	return raw != ""
}

func codegenError(l *Literal, msg string) *Error {
	loc := l.Raw
	if l.Kind == StringLit {
		loc = `"` + l.Raw + `"`
	}
	return &Error{Kind: CodegenError, Line: l.Line, Location: loc, Message: msg}
}

// operatorBlob maps every binary operator to its stack idiom.
func operatorBlob(op BinaryOp) (x86.Blob, error) {
	switch op {
	case Add:
		return x86.AddOp(), nil
	case Subtract:
		return x86.SubOp(), nil
	case Multiply:
		return x86.MulOp(), nil
	case Divide:
		return x86.DivOp(), nil
	case Equal:
		return x86.Compare(x86.CondE), nil
	case NotEqual:
		return x86.Compare(x86.CondNE), nil
	case Less:
		return x86.Compare(x86.CondL), nil
	case LessEqual:
		return x86.Compare(x86.CondLE), nil
	case Greater:
		return x86.Compare(x86.CondG), nil
	case GreaterEqual:
		return x86.Compare(x86.CondGE), nil
	}
	return nil, fmt.Errorf("unknown binary operator %d", op)
}

// genExpr lowers e in post-order, leaving its value on the stack.
func (cg *CodeGen) genExpr(e Expr) error {
	switch n := e.(type) {
	case *Literal:
		v, err := intValue(n)
		if err != nil {
			return err
		}
		cg.emit(x86.Constant(v))

	case *Grouping:
		return cg.genExpr(n.Inner)

	case *Unary:
		if err := cg.genExpr(n.Right); err != nil {
			return err
		}
		switch n.Op {
		case Negate:
			cg.emit(x86.Negate())
		case Not:
			cg.emit(x86.Not())
		default:
			return fmt.Errorf("unknown unary operator %d", n.Op)
		}

	case *Binary:
		if cg.opts.Optimize {
			if a, b, ok := literalPair(n); ok {
				if blob, ok := valueBlob(n.Op, a, b); ok {
					cg.emit(blob)
					cg.emit(x86.PushReg(x86.RAX))
					return nil
				}
			}
		}
		if err := cg.genExpr(n.Left); err != nil {
			return err
		}
		if err := cg.genExpr(n.Right); err != nil {
			return err
		}
		blob, err := operatorBlob(n.Op)
		if err != nil {
			return err
		}
		cg.emit(blob)

	default:
		return fmt.Errorf("unsupported expression %T", e)
	}
	return nil
}

// Generate lowers expr into a program whose _start section evaluates expr
// and exits with its value as the process status.
func Generate(expr Expr, opts Options) (*x86.Program, error) {
	cg := newCodeGen(opts)

	if lit, ok := unwrapGrouping(expr).(*Literal); ok && opts.Optimize {
		v, err := intValue(lit)
		if err != nil {
			return nil, err
		}
		cg.emit(x86.Exit(x86.Immediate(v)))
		return &x86.Program{Text: []x86.Section{cg.text}}, nil
	}

	if err := cg.genExpr(expr); err != nil {
		return nil, err
	}
	if cg.depth != 1 {
		return nil, fmt.Errorf("unbalanced evaluation stack: depth %d after expression", cg.depth)
	}
	cg.emit(x86.PopReg(x86.RAX))
	cg.emit(x86.Exit(x86.R(x86.RAX)))

	return &x86.Program{Text: []x86.Section{cg.text}}, nil
}
