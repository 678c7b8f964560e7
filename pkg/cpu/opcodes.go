package cpu

// Opcode bytes of the x86-64 subset the emulator executes. The assembler
// encodes with the same constants.
const (
	OpAddRM    byte = 0x01 // add r/m64, r64
	OpSubRM    byte = 0x29 // sub r/m64, r64
	OpXorRM    byte = 0x31 // xor r/m64, r64
	OpCmpRM    byte = 0x39 // cmp r/m64, r64
	OpPushR    byte = 0x50 // push r64 (+r)
	OpPopR     byte = 0x58 // pop r64 (+r)
	OpGrp1Imm  byte = 0x81 // add/sub/xor/cmp r/m64, imm32 (/digit)
	OpMovRM    byte = 0x89 // mov r/m64, r64
	OpMovR     byte = 0x8B // mov r64, r/m64
	OpNop      byte = 0x90
	OpCqo      byte = 0x99 // with REX.W: rdx = sign of rax
	OpMovImm   byte = 0xB8 // mov r32, imm32 (+r); with REX.W imm64
	OpMovRMImm byte = 0xC7 // mov r/m64, imm32 (/0)
	OpGrp3     byte = 0xF7 // /6 div r/m64
	OpTwoByte  byte = 0x0F // escape to the second opcode table
)

// Second opcode byte after OpTwoByte.
const (
	Op2Syscall   byte = 0x05
	Op2SetccBase byte = 0x90 // setcc r/m8, 0x90 | cc
	Op2Imul      byte = 0xAF // imul r64, r/m64
	Op2Movzx8    byte = 0xB6 // movzx r64, r/m8
)

// ModRM reg-field extensions.
const (
	ExtAdd byte = 0
	ExtSub byte = 5
	ExtXor byte = 6
	ExtCmp byte = 7
	ExtDiv byte = 6
)

// REX prefix bits.
const (
	RexBase byte = 0x40
	RexW    byte = 0x08
	RexR    byte = 0x04
	RexX    byte = 0x02
	RexB    byte = 0x01
)

// Condition codes, the low nibble of setcc/jcc.
const (
	CondO  byte = 0x0
	CondNO byte = 0x1
	CondB  byte = 0x2
	CondAE byte = 0x3
	CondE  byte = 0x4
	CondNE byte = 0x5
	CondBE byte = 0x6
	CondA  byte = 0x7
	CondS  byte = 0x8
	CondNS byte = 0x9
	CondL  byte = 0xC
	CondGE byte = 0xD
	CondLE byte = 0xE
	CondG  byte = 0xF
)

// Register numbers as used in ModRM and +r encodings.
const (
	RegRAX = iota
	RegRCX
	RegRDX
	RegRBX
	RegRSP
	RegRBP
	RegRSI
	RegRDI
	RegR8
	RegR9
	RegR10
	RegR11
	RegR12
	RegR13
	RegR14
	RegR15
)

// Linux system call numbers the emulator implements.
const (
	SysWrite = 1
	SysExit  = 60
)

// ModRM packs the three ModRM fields into one byte.
func ModRM(mod, reg, rm byte) byte {
	return mod<<6 | (reg&7)<<3 | rm&7
}

// Rex builds a REX prefix for the given width and register numbers.
func Rex(w bool, reg, index, rm byte) byte {
	b := RexBase
	if w {
		b |= RexW
	}
	if reg&8 != 0 {
		b |= RexR
	}
	if index&8 != 0 {
		b |= RexX
	}
	if rm&8 != 0 {
		b |= RexB
	}
	return b
}
