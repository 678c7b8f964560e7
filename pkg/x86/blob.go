package x86

import "strings"

// Blob is the instruction sequence for one logical operation.
//
// The stack idioms use rax as the accumulator, rbx as the second operand and
// rdx as the remainder register cleared before div.
type Blob []Instruction

// StackEffect sums the stack effect of every instruction in b.
func (b Blob) StackEffect() int {
	n := 0
	for _, in := range b {
		n += in.StackEffect()
	}
	return n
}

// String renders one instruction per line, indented four spaces.
func (b Blob) String() string {
	var sb strings.Builder
	for _, in := range b {
		sb.WriteString("    ")
		sb.WriteString(in.String())
		sb.WriteByte('\n')
	}
	return sb.String()
}

var (
	rax = R(RAX)
	rbx = R(RBX)
	rdx = R(RDX)
	rdi = R(RDI)
	rsi = R(RSI)
	al  = R(AL)
)

// Constant materialises c in rax and pushes it.
func Constant(c uint32) Blob {
	return Blob{
		MovI(rax, Immediate(c)),
		PushI(rax),
	}
}

// binary pops the right operand into rbx and the left into rax, applies
// op to rax and pushes the result.
func binary(op Mnemonic) Blob {
	return Blob{
		PopI(rbx),
		PopI(rax),
		{Op: op, Dst: rax, Src: rbx},
		PushI(rax),
	}
}

// AddOp, SubOp and MulOp combine the two topmost stack slots: left op right.
func AddOp() Blob { return binary(Add) }
func SubOp() Blob { return binary(Sub) }
func MulOp() Blob { return binary(Mul) }

// DivOp divides the second slot (dividend) by the top slot (divisor).
func DivOp() Blob {
	return Blob{
		PopI(rbx),
		PopI(rax),
		XorI(rdx, rdx),
		DivI(rbx),
		PushI(rax),
	}
}

// Compare pops right then left, and pushes 1 when "left cc right" holds,
// otherwise 0.
func Compare(cc Condition) Blob {
	return Blob{
		PopI(rbx),
		PopI(rax),
		CmpI(rax, rbx),
		SetI(cc, al),
		MovzxI(rax, al),
		PushI(rax),
	}
}

// Negate replaces the top slot with its two's complement.
func Negate() Blob {
	return Blob{
		PopI(rbx),
		XorI(rax, rax),
		SubI(rax, rbx),
		PushI(rax),
	}
}

// Not replaces the top slot with 1 when it was zero, otherwise 0.
func Not() Blob {
	return Blob{
		PopI(rax),
		XorI(rbx, rbx),
		CmpI(rax, rbx),
		SetI(CondE, al),
		MovzxI(rax, al),
		PushI(rax),
	}
}

// valueForm loads a into rax and b into rbx, leaving "a op b" in rax.
func valueForm(op Mnemonic, a, b uint32) Blob {
	return Blob{
		MovI(rax, Immediate(a)),
		MovI(rbx, Immediate(b)),
		{Op: op, Dst: rax, Src: rbx},
	}
}

// AddV leaves a + b in rax without touching the stack.
func AddV(a, b uint32) Blob { return valueForm(Add, a, b) }

// SubV leaves a - b in rax.
func SubV(a, b uint32) Blob { return valueForm(Sub, a, b) }

// MulV leaves a * b in rax.
func MulV(a, b uint32) Blob { return valueForm(Mul, a, b) }

// DivV leaves a / b in rax. The dividend a goes to rax, the divisor b to rbx.
func DivV(a, b uint32) Blob {
	return Blob{
		MovI(rax, Immediate(a)),
		MovI(rbx, Immediate(b)),
		XorI(rdx, rdx),
		DivI(rbx),
	}
}

// Exit terminates the process with code. A literal zero is cleared with
// xor instead of a mov.
func Exit(code Operand) Blob {
	var set Instruction
	if imm, ok := code.(Immediate); ok && imm == 0 {
		set = XorI(rdi, rdi)
	} else {
		set = MovI(rdi, code)
	}
	return Blob{
		set,
		MovI(rax, Immediate(SysExit)),
		SyscallI(),
	}
}

// Write issues write(fd, buf, n).
func Write(fd uint32, buf Operand, n uint32) Blob {
	return Blob{
		MovI(rdi, Immediate(fd)),
		MovI(rsi, buf),
		MovI(rdx, Immediate(n)),
		MovI(rax, Immediate(SysWrite)),
		SyscallI(),
	}
}

// PushReg and PopReg move a single value between r and the stack.
func PushReg(r Reg) Blob { return Blob{PushI(R(r))} }
func PopReg(r Reg) Blob  { return Blob{PopI(R(r))} }
