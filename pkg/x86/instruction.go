package x86

import "fmt"

// Mnemonic is the closed set of operations the compiler can emit.
type Mnemonic uint8

const (
	Mov Mnemonic = iota
	Push
	Pop
	Add
	Sub
	Mul // signed two-operand multiply, rendered "imul"
	Div // unsigned divide of rdx:rax
	Xor
	Cmp
	Set // setcc, condition in Instruction.Cond
	Movzx
	Syscall
)

var mnemonicNames = [...]string{
	Mov:     "mov",
	Push:    "push",
	Pop:     "pop",
	Add:     "add",
	Sub:     "sub",
	Mul:     "imul",
	Div:     "div",
	Xor:     "xor",
	Cmp:     "cmp",
	Set:     "set",
	Movzx:   "movzx",
	Syscall: "syscall",
}

func (m Mnemonic) String() string {
	if int(m) < len(mnemonicNames) {
		return mnemonicNames[m]
	}
	return fmt.Sprintf("Mnemonic(%d)", uint8(m))
}

// Condition selects the flag test of a setcc instruction. Comparisons are
// signed.
type Condition uint8

const (
	CondE Condition = iota
	CondNE
	CondL
	CondLE
	CondG
	CondGE
)

var conditionSuffixes = [...]string{
	CondE:  "e",
	CondNE: "ne",
	CondL:  "l",
	CondLE: "le",
	CondG:  "g",
	CondGE: "ge",
}

func (c Condition) String() string {
	if int(c) < len(conditionSuffixes) {
		return conditionSuffixes[c]
	}
	return fmt.Sprintf("Condition(%d)", uint8(c))
}

// Sysno is a Linux x86-64 system call number.
type Sysno uint32

const (
	SysWrite Sysno = 1
	SysExit  Sysno = 60
)

// Instruction is one opcode with up to two operands. Single-operand
// instructions (push, div, setcc) keep their operand in Dst, except push
// whose operand is a source and is kept in Src.
type Instruction struct {
	Op   Mnemonic
	Dst  Operand
	Src  Operand
	Cond Condition
}

func (in Instruction) String() string {
	switch in.Op {
	case Syscall:
		return "syscall"
	case Push:
		return "push " + in.Src.String()
	case Pop, Div:
		return in.Op.String() + " " + in.Dst.String()
	case Set:
		return "set" + in.Cond.String() + " " + in.Dst.String()
	}
	return fmt.Sprintf("%s %s, %s", in.Op, in.Dst, in.Src)
}

// StackEffect returns the change in evaluation-stack depth, in slots.
func (in Instruction) StackEffect() int {
	switch in.Op {
	case Push:
		return 1
	case Pop:
		return -1
	}
	return 0
}

func MovI(dst, src Operand) Instruction { return Instruction{Op: Mov, Dst: dst, Src: src} }
func PushI(src Operand) Instruction     { return Instruction{Op: Push, Src: src} }
func PopI(dst Operand) Instruction      { return Instruction{Op: Pop, Dst: dst} }
func AddI(dst, src Operand) Instruction { return Instruction{Op: Add, Dst: dst, Src: src} }
func SubI(dst, src Operand) Instruction { return Instruction{Op: Sub, Dst: dst, Src: src} }
func MulI(dst, src Operand) Instruction { return Instruction{Op: Mul, Dst: dst, Src: src} }
func DivI(divisor Operand) Instruction  { return Instruction{Op: Div, Dst: divisor} }
func XorI(dst, src Operand) Instruction { return Instruction{Op: Xor, Dst: dst, Src: src} }
func CmpI(dst, src Operand) Instruction { return Instruction{Op: Cmp, Dst: dst, Src: src} }
func SetI(c Condition, dst Operand) Instruction {
	return Instruction{Op: Set, Dst: dst, Cond: c}
}
func MovzxI(dst, src Operand) Instruction { return Instruction{Op: Movzx, Dst: dst, Src: src} }
func SyscallI() Instruction               { return Instruction{Op: Syscall} }
