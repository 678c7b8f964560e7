package x86

import (
	"fmt"
	"strconv"
)

// Size is a NASM size directive. The zero value means "no directive".
type Size uint8

const (
	NoSize Size = iota
	Byte
	Word
	Dword
	Qword
)

func (s Size) String() string {
	switch s {
	case Byte:
		return "BYTE"
	case Word:
		return "WORD"
	case Dword:
		return "DWORD"
	case Qword:
		return "QWORD"
	}
	return ""
}

// Bytes returns the operand width the directive selects, or 0.
func (s Size) Bytes() int {
	switch s {
	case Byte:
		return 1
	case Word:
		return 2
	case Dword:
		return 4
	case Qword:
		return 8
	}
	return 0
}

// Operand is a register, a memory reference or an immediate.
type Operand interface {
	operand()
	String() string
}

// Register is a bare register operand.
type Register struct {
	Reg Reg
}

func (Register) operand()         {}
func (r Register) String() string { return r.Reg.String() }

// Memory is a register-relative address.
//
//	Memory{Base: RAX, Size: Qword, Offset: 8, Deref: true}  QWORD [rax+8]
//	Memory{Base: RAX, Size: Qword, Offset: 8}               QWORD rax+8
//	Memory{Base: RBP, Deref: true}                          [rbp]
type Memory struct {
	Base   Reg
	Size   Size
	Offset int32
	Deref  bool
}

func (Memory) operand() {}
func (m Memory) String() string {
	addr := m.Base.String()
	if m.Offset > 0 {
		addr += "+" + strconv.Itoa(int(m.Offset))
	} else if m.Offset < 0 {
		addr += strconv.Itoa(int(m.Offset))
	}
	if m.Deref {
		addr = "[" + addr + "]"
	}
	if m.Size != NoSize {
		return m.Size.String() + " " + addr
	}
	return addr
}

// Immediate is an unsigned 32-bit constant.
type Immediate uint32

func (Immediate) operand()         {}
func (i Immediate) String() string { return fmt.Sprintf("%d", uint32(i)) }

// R returns a Register operand for r.
func R(r Reg) Register { return Register{Reg: r} }

// Deref returns the plain [r] memory operand.
func Deref(r Reg) Memory { return Memory{Base: r, Deref: true} }
