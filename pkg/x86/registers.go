// Package x86 models the slice of x86-64 that the compiler emits:
// registers, operands, instructions, and the Blob/Section/Program
// structure that renders as NASM source.
package x86

import "fmt"

// Reg names a general purpose register at one particular width.
type Reg uint8

const (
	RAX Reg = iota
	EAX
	AX
	AH
	AL
	RBX
	EBX
	BX
	BH
	BL
	RCX
	ECX
	CX
	CH
	CL
	RDX
	EDX
	DX
	DH
	DL
	RSI
	ESI
	SI
	SIL
	RDI
	EDI
	DI
	DIL
	RBP
	EBP
	BP
	BPL
	RSP
	ESP
	SP
	SPL
	R8
	R8D
	R8W
	R8B
	R9
	R9D
	R9W
	R9B
	R10
	R10D
	R10W
	R10B
	R11
	R11D
	R11W
	R11B
	R12
	R12D
	R12W
	R12B
	R13
	R13D
	R13W
	R13B
	R14
	R14D
	R14W
	R14B
	R15
	R15D
	R15W
	R15B

	numRegs
)

type regInfo struct {
	name  string
	width int   // bits
	code  uint8 // ModRM/REX register number
	high  bool  // ah/bh/ch/dh
}

var regTable = [numRegs]regInfo{
	RAX: {"rax", 64, 0, false}, EAX: {"eax", 32, 0, false}, AX: {"ax", 16, 0, false}, AH: {"ah", 8, 4, true}, AL: {"al", 8, 0, false},
	RBX: {"rbx", 64, 3, false}, EBX: {"ebx", 32, 3, false}, BX: {"bx", 16, 3, false}, BH: {"bh", 8, 7, true}, BL: {"bl", 8, 3, false},
	RCX: {"rcx", 64, 1, false}, ECX: {"ecx", 32, 1, false}, CX: {"cx", 16, 1, false}, CH: {"ch", 8, 5, true}, CL: {"cl", 8, 1, false},
	RDX: {"rdx", 64, 2, false}, EDX: {"edx", 32, 2, false}, DX: {"dx", 16, 2, false}, DH: {"dh", 8, 6, true}, DL: {"dl", 8, 2, false},
	RSI: {"rsi", 64, 6, false}, ESI: {"esi", 32, 6, false}, SI: {"si", 16, 6, false}, SIL: {"sil", 8, 6, false},
	RDI: {"rdi", 64, 7, false}, EDI: {"edi", 32, 7, false}, DI: {"di", 16, 7, false}, DIL: {"dil", 8, 7, false},
	RBP: {"rbp", 64, 5, false}, EBP: {"ebp", 32, 5, false}, BP: {"bp", 16, 5, false}, BPL: {"bpl", 8, 5, false},
	RSP: {"rsp", 64, 4, false}, ESP: {"esp", 32, 4, false}, SP: {"sp", 16, 4, false}, SPL: {"spl", 8, 4, false},
	R8: {"r8", 64, 8, false}, R8D: {"r8d", 32, 8, false}, R8W: {"r8w", 16, 8, false}, R8B: {"r8b", 8, 8, false},
	R9: {"r9", 64, 9, false}, R9D: {"r9d", 32, 9, false}, R9W: {"r9w", 16, 9, false}, R9B: {"r9b", 8, 9, false},
	R10: {"r10", 64, 10, false}, R10D: {"r10d", 32, 10, false}, R10W: {"r10w", 16, 10, false}, R10B: {"r10b", 8, 10, false},
	R11: {"r11", 64, 11, false}, R11D: {"r11d", 32, 11, false}, R11W: {"r11w", 16, 11, false}, R11B: {"r11b", 8, 11, false},
	R12: {"r12", 64, 12, false}, R12D: {"r12d", 32, 12, false}, R12W: {"r12w", 16, 12, false}, R12B: {"r12b", 8, 12, false},
	R13: {"r13", 64, 13, false}, R13D: {"r13d", 32, 13, false}, R13W: {"r13w", 16, 13, false}, R13B: {"r13b", 8, 13, false},
	R14: {"r14", 64, 14, false}, R14D: {"r14d", 32, 14, false}, R14W: {"r14w", 16, 14, false}, R14B: {"r14b", 8, 14, false},
	R15: {"r15", 64, 15, false}, R15D: {"r15d", 32, 15, false}, R15W: {"r15w", 16, 15, false}, R15B: {"r15b", 8, 15, false},
}

var regByName = func() map[string]Reg {
	m := make(map[string]Reg, numRegs)
	for r := Reg(0); r < numRegs; r++ {
		m[regTable[r].name] = r
	}
	return m
}()

func (r Reg) String() string {
	if r < numRegs {
		return regTable[r].name
	}
	return fmt.Sprintf("Reg(%d)", uint8(r))
}

// Width returns the register size in bits.
func (r Reg) Width() int { return regTable[r].width }

// Code returns the 4-bit register number used in ModRM and REX encoding.
func (r Reg) Code() uint8 { return regTable[r].code }

// High reports whether r is one of the legacy high-byte registers.
func (r Reg) High() bool { return regTable[r].high }

// LookupReg resolves a lowercase register name such as "rax" or "r9b".
func LookupReg(name string) (Reg, bool) {
	r, ok := regByName[name]
	return r, ok
}
