package cpu

import (
	"encoding/binary"
	"fmt"
	"io"
	"math/bits"
	"os"
)

// DefaultMemorySize is the size of the flat address space NewCPU allocates.
// Code is loaded at address 0 and the stack grows down from the top.
const DefaultMemorySize = 1 << 16

// errnoEBADF is returned in rax by write on an fd other than 1 or 2.
const errnoEBADF = 9

// CPU executes the x86-64 subset produced by the assembler: 64-bit
// register moves, push/pop, add/sub/imul/div/xor/cmp, setcc, movzx and the
// exit and write system calls.
type CPU struct {
	Regs [16]uint64

	RIP uint64

	// Arithmetic flags.
	ZF bool
	SF bool
	CF bool
	OF bool

	Memory []byte

	// codeEnd is one past the last loaded code byte.
	codeEnd uint64

	Halted bool

	// Fault is set when execution stopped on an error instead of exit.
	Fault error

	// ExitStatus is rdi at the exit syscall. A process only sees its low
	// byte, which ExitCode returns.
	ExitStatus uint64

	// Steps counts executed instructions.
	Steps uint64

	// Output is where write(1, ...) and write(2, ...) go.
	// If nil, os.Stdout is used.
	Output io.Writer
}

func NewCPU() *CPU {
	c := &CPU{Memory: make([]byte, DefaultMemorySize)}
	c.Regs[RegRSP] = uint64(len(c.Memory))
	return c
}

// Load copies code to address 0 and starts execution at entry.
func (c *CPU) Load(code []byte, entry uint32) error {
	if len(code) > len(c.Memory) {
		return fmt.Errorf("program too large for memory: %d bytes > %d bytes", len(code), len(c.Memory))
	}
	if int(entry) >= len(code) {
		return fmt.Errorf("entry point 0x%X outside program of %d bytes", entry, len(code))
	}
	copy(c.Memory, code)
	c.codeEnd = uint64(len(code))
	c.RIP = uint64(entry)
	c.Regs[RegRSP] = uint64(len(c.Memory))
	c.Halted = false
	c.Fault = nil
	return nil
}

// ExitCode returns the status the process would report to its parent.
func (c *CPU) ExitCode() int {
	return int(uint8(c.ExitStatus))
}

func (c *CPU) outputSink() io.Writer {
	if c.Output != nil {
		return c.Output
	}
	return os.Stdout
}

func (c *CPU) fault(format string, args ...any) {
	c.Fault = fmt.Errorf(format, args...)
	c.Halted = true
}

func (c *CPU) reg(idx byte) *uint64 {
	return &c.Regs[idx&15]
}

// readByteReg reads an 8-bit register. Without a REX prefix numbers 4-7
// select ah, ch, dh and bh.
func (c *CPU) readByteReg(idx byte, rex bool) byte {
	if !rex && idx >= 4 && idx < 8 {
		return byte(c.Regs[idx-4] >> 8)
	}
	return byte(c.Regs[idx&15])
}

func (c *CPU) writeByteReg(idx byte, rex bool, v byte) {
	if !rex && idx >= 4 && idx < 8 {
		r := &c.Regs[idx-4]
		*r = *r&^0xFF00 | uint64(v)<<8
		return
	}
	r := &c.Regs[idx&15]
	*r = *r&^0xFF | uint64(v)
}

func (c *CPU) updateFlags(result uint64) {
	c.ZF = result == 0
	c.SF = result>>63 != 0
}

// Read64 loads a little-endian quadword, faulting outside memory.
func (c *CPU) Read64(addr uint64) (uint64, bool) {
	if addr > uint64(len(c.Memory))-8 {
		c.fault("memory read out of bounds at 0x%X", addr)
		return 0, false
	}
	return binary.LittleEndian.Uint64(c.Memory[addr:]), true
}

// Write64 stores a little-endian quadword, faulting outside memory.
func (c *CPU) Write64(addr uint64, val uint64) bool {
	if addr > uint64(len(c.Memory))-8 {
		c.fault("memory write out of bounds at 0x%X", addr)
		return false
	}
	binary.LittleEndian.PutUint64(c.Memory[addr:], val)
	return true
}

func (c *CPU) push(val uint64) {
	sp := c.Regs[RegRSP]
	if sp < c.codeEnd+8 {
		c.fault("stack overflow at RIP=0x%X", c.RIP)
		return
	}
	sp -= 8
	if c.Write64(sp, val) {
		c.Regs[RegRSP] = sp
	}
}

func (c *CPU) pop() (uint64, bool) {
	sp := c.Regs[RegRSP]
	if sp+8 > uint64(len(c.Memory)) {
		c.fault("stack underflow at RIP=0x%X", c.RIP)
		return 0, false
	}
	val, ok := c.Read64(sp)
	if ok {
		c.Regs[RegRSP] = sp + 8
	}
	return val, ok
}

func (c *CPU) fetch8() byte {
	if c.RIP >= c.codeEnd {
		c.fault("instruction runs past end of program at 0x%X", c.RIP)
		return 0
	}
	b := c.Memory[c.RIP]
	c.RIP++
	return b
}

func (c *CPU) fetch32() uint32 {
	var v uint32
	for i := 0; i < 4; i++ {
		v |= uint32(c.fetch8()) << (8 * i)
	}
	return v
}

func (c *CPU) fetch64() uint64 {
	lo := uint64(c.fetch32())
	hi := uint64(c.fetch32())
	return hi<<32 | lo
}

// modrm holds a decoded ModRM byte with REX extensions applied.
type modrm struct {
	mod byte
	reg byte
	rm  byte
}

func (c *CPU) decodeModRM(rex byte) modrm {
	b := c.fetch8()
	m := modrm{mod: b >> 6, reg: b >> 3 & 7, rm: b & 7}
	if rex&RexR != 0 {
		m.reg |= 8
	}
	if rex&RexB != 0 {
		m.rm |= 8
	}
	return m
}

// address computes the effective address of a memory ModRM operand.
func (c *CPU) address(m modrm, rex byte) (uint64, bool) {
	base := m.rm
	if base&7 == RegRSP {
		sib := c.fetch8()
		if sib != 0x24 {
			c.fault("unsupported SIB byte 0x%02X at 0x%X", sib, c.RIP)
			return 0, false
		}
	}
	if m.mod == 0 && base&7 == RegRBP {
		c.fault("RIP-relative addressing is not supported at 0x%X", c.RIP)
		return 0, false
	}
	var disp int64
	switch m.mod {
	case 1:
		disp = int64(int8(c.fetch8()))
	case 2:
		disp = int64(int32(c.fetch32()))
	}
	return c.Regs[base] + uint64(disp), true
}

// alu applies one of the group-1 operations and sets the flags.
func (c *CPU) alu(ext byte, dst *uint64, src uint64) {
	a := *dst
	switch ext {
	case ExtAdd:
		r := a + src
		c.CF = r < a
		c.OF = (^(a^src)&(a^r))>>63 != 0
		c.updateFlags(r)
		*dst = r
	case ExtSub, ExtCmp:
		r := a - src
		c.CF = a < src
		c.OF = ((a^src)&(a^r))>>63 != 0
		c.updateFlags(r)
		if ext == ExtSub {
			*dst = r
		}
	case ExtXor:
		r := a ^ src
		c.CF, c.OF = false, false
		c.updateFlags(r)
		*dst = r
	default:
		c.fault("unsupported ALU operation /%d at 0x%X", ext, c.RIP)
	}
}

// condition evaluates a setcc/jcc condition code against the flags.
func (c *CPU) condition(cc byte) bool {
	var r bool
	switch cc &^ 1 {
	case CondO:
		r = c.OF
	case CondB:
		r = c.CF
	case CondE:
		r = c.ZF
	case CondBE:
		r = c.CF || c.ZF
	case CondS:
		r = c.SF
	case CondL:
		r = c.SF != c.OF
	case CondLE:
		r = c.ZF || c.SF != c.OF
	default:
		c.fault("unsupported condition code 0x%X", cc)
		return false
	}
	// Odd codes are the negation of the preceding even code.
	if cc&1 != 0 {
		return !r
	}
	return r
}

func (c *CPU) syscall() {
	switch c.Regs[RegRAX] {
	case SysExit:
		c.ExitStatus = c.Regs[RegRDI]
		c.Halted = true

	case SysWrite:
		fd, buf, n := c.Regs[RegRDI], c.Regs[RegRSI], c.Regs[RegRDX]
		if buf > uint64(len(c.Memory)) || n > uint64(len(c.Memory))-buf {
			c.fault("write buffer out of bounds: 0x%X+%d", buf, n)
			return
		}
		if fd != 1 && fd != 2 {
			errno := int64(-errnoEBADF)
			c.Regs[RegRAX] = uint64(errno)
			return
		}
		written, _ := c.outputSink().Write(c.Memory[buf : buf+n])
		c.Regs[RegRAX] = uint64(written)

	default:
		c.fault("unsupported syscall %d at 0x%X", c.Regs[RegRAX], c.RIP)
	}
}

// Step executes one instruction.
func (c *CPU) Step() {
	if c.Halted {
		return
	}
	if c.RIP >= c.codeEnd {
		c.fault("execution ran past end of program at 0x%X", c.RIP)
		return
	}

	start := c.RIP
	c.Steps++

	var rex byte
	op := c.fetch8()
	if op&0xF0 == RexBase {
		rex = op
		op = c.fetch8()
	}
	w := rex&RexW != 0
	ext := func(r byte) byte {
		if rex&RexB != 0 {
			return r | 8
		}
		return r
	}

	switch {
	case op >= OpPushR && op < OpPushR+8:
		c.push(*c.reg(ext(op - OpPushR)))

	case op >= OpPopR && op < OpPopR+8:
		if v, ok := c.pop(); ok {
			*c.reg(ext(op - OpPopR)) = v
		}

	case op >= OpMovImm && op < OpMovImm+8:
		r := c.reg(ext(op - OpMovImm))
		if w {
			*r = c.fetch64()
		} else {
			*r = uint64(c.fetch32())
		}

	case op == OpAddRM || op == OpSubRM || op == OpXorRM || op == OpCmpRM:
		if !w {
			c.fault("32-bit operand size not supported at 0x%X", start)
			return
		}
		m := c.decodeModRM(rex)
		if m.mod != 3 {
			c.fault("memory ALU operand not supported at 0x%X", start)
			return
		}
		c.alu(aluExt[op], c.reg(m.rm), *c.reg(m.reg))

	case op == OpGrp1Imm:
		if !w {
			c.fault("32-bit operand size not supported at 0x%X", start)
			return
		}
		m := c.decodeModRM(rex)
		if m.mod != 3 {
			c.fault("memory ALU operand not supported at 0x%X", start)
			return
		}
		imm := uint64(int64(int32(c.fetch32())))
		c.alu(m.reg&7, c.reg(m.rm), imm)

	case op == OpMovRM:
		m := c.decodeModRM(rex)
		if m.mod == 3 {
			*c.reg(m.rm) = *c.reg(m.reg)
			break
		}
		if addr, ok := c.address(m, rex); ok {
			c.Write64(addr, *c.reg(m.reg))
		}

	case op == OpMovR:
		m := c.decodeModRM(rex)
		if m.mod == 3 {
			*c.reg(m.reg) = *c.reg(m.rm)
			break
		}
		if addr, ok := c.address(m, rex); ok {
			if v, ok := c.Read64(addr); ok {
				*c.reg(m.reg) = v
			}
		}

	case op == OpMovRMImm:
		m := c.decodeModRM(rex)
		if m.mod == 3 {
			*c.reg(m.rm) = uint64(int64(int32(c.fetch32())))
			break
		}
		addr, ok := c.address(m, rex)
		if !ok {
			return
		}
		c.Write64(addr, uint64(int64(int32(c.fetch32()))))

	case op == OpNop:
		// No operation.

	case op == OpCqo:
		if int64(c.Regs[RegRAX]) < 0 {
			c.Regs[RegRDX] = ^uint64(0)
		} else {
			c.Regs[RegRDX] = 0
		}

	case op == OpGrp3:
		m := c.decodeModRM(rex)
		if m.mod != 3 || m.reg&7 != ExtDiv {
			c.fault("unsupported group-3 instruction at 0x%X", start)
			return
		}
		divisor := *c.reg(m.rm)
		hi, lo := c.Regs[RegRDX], c.Regs[RegRAX]
		if divisor == 0 || hi >= divisor {
			c.fault("divide error at 0x%X", start)
			return
		}
		q, rem := bits.Div64(hi, lo, divisor)
		c.Regs[RegRAX], c.Regs[RegRDX] = q, rem

	case op == OpTwoByte:
		c.stepTwoByte(rex, start)

	default:
		c.fault("unknown opcode 0x%02X at 0x%X", op, start)
	}
}

var aluExt = map[byte]byte{
	OpAddRM: ExtAdd,
	OpSubRM: ExtSub,
	OpXorRM: ExtXor,
	OpCmpRM: ExtCmp,
}

func (c *CPU) stepTwoByte(rex byte, start uint64) {
	op := c.fetch8()
	switch {
	case op == Op2Syscall:
		c.syscall()

	case op == Op2Imul:
		m := c.decodeModRM(rex)
		if m.mod != 3 {
			c.fault("memory IMUL operand not supported at 0x%X", start)
			return
		}
		a, b := int64(*c.reg(m.reg)), int64(*c.reg(m.rm))
		r := a * b
		overflow := a != 0 && (r/a != b || (a == -1 && b == -1<<63))
		c.CF, c.OF = overflow, overflow
		*c.reg(m.reg) = uint64(r)

	case op == Op2Movzx8:
		m := c.decodeModRM(rex)
		if m.mod != 3 {
			c.fault("memory MOVZX operand not supported at 0x%X", start)
			return
		}
		*c.reg(m.reg) = uint64(c.readByteReg(m.rm, rex != 0))

	case op >= Op2SetccBase && op < Op2SetccBase+16:
		m := c.decodeModRM(rex)
		if m.mod != 3 {
			c.fault("memory SETcc operand not supported at 0x%X", start)
			return
		}
		var v byte
		if c.condition(op - Op2SetccBase) {
			v = 1
		}
		c.writeByteReg(m.rm, rex != 0, v)

	default:
		c.fault("unknown opcode 0x0F 0x%02X at 0x%X", op, start)
	}
}

// Run steps until the program exits or faults, and returns the fault.
func (c *CPU) Run() error {
	for !c.Halted {
		c.Step()
	}
	return c.Fault
}

// RunSteps runs at most n instructions. It returns false if the program
// has not halted by then.
func (c *CPU) RunSteps(n int) bool {
	for i := 0; i < n && !c.Halted; i++ {
		c.Step()
	}
	return c.Halted
}
