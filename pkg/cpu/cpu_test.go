package cpu

import (
	"bytes"
	"strings"
	"testing"
)

// Encodings used across the tests.
var (
	movRAX6    = []byte{0x48, 0xC7, 0xC0, 0x06, 0x00, 0x00, 0x00} // mov rax, 6
	movRBX2    = []byte{0x48, 0xC7, 0xC3, 0x02, 0x00, 0x00, 0x00} // mov rbx, 2
	movRDIRAX  = []byte{0x48, 0x89, 0xC7}                         // mov rdi, rax
	movRAX60   = []byte{0x48, 0xC7, 0xC0, 0x3C, 0x00, 0x00, 0x00} // mov rax, 60
	syscallOp  = []byte{0x0F, 0x05}
	pushRAX    = []byte{0x50}
	popRBX     = []byte{0x5B}
	popRAX     = []byte{0x58}
	xorRDXRDX  = []byte{0x48, 0x31, 0xD2}
	divRBX     = []byte{0x48, 0xF7, 0xF3}
	cmpRAXRBX  = []byte{0x48, 0x39, 0xD8}
	movzxRAXAL = []byte{0x48, 0x0F, 0xB6, 0xC0}
)

// program concatenates instruction encodings.
func program(parts ...[]byte) []byte {
	var out []byte
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

// exitWithRAX appends the exit sequence that returns rax as the status.
func exitWithRAX(parts ...[]byte) []byte {
	return program(append(parts, movRDIRAX, movRAX60, syscallOp)...)
}

// runProgram loads code at address 0 and runs it to completion.
func runProgram(t *testing.T, code []byte) *CPU {
	t.Helper()
	c := NewCPU()
	if err := c.Load(code, 0); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if err := c.Run(); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	return c
}

func TestExit(t *testing.T) {
	c := runProgram(t, exitWithRAX(movRAX6))
	if !c.Halted {
		t.Fatal("Expected CPU to halt")
	}
	if c.ExitStatus != 6 {
		t.Errorf("Expected exit status 6, got %d", c.ExitStatus)
	}
	if c.Steps != 4 {
		t.Errorf("Expected 4 steps, got %d", c.Steps)
	}
}

func TestStackDivide(t *testing.T) {
	// 6 / 2 through the evaluation stack.
	code := exitWithRAX(
		movRAX6, pushRAX,
		movRBX2, []byte{0x53}, // push rbx
		popRBX, popRAX, xorRDXRDX, divRBX, pushRAX,
		popRAX,
	)
	c := runProgram(t, code)
	if c.ExitStatus != 3 {
		t.Errorf("Expected 3, got %d", c.ExitStatus)
	}
	if c.Regs[RegRSP] != uint64(len(c.Memory)) {
		t.Errorf("Expected stack fully unwound, RSP=0x%X", c.Regs[RegRSP])
	}
}

func TestALU(t *testing.T) {
	tests := []struct {
		name   string
		op     []byte
		a, b   uint64
		want   uint64
		zf, sf bool
	}{
		{"add", []byte{0x48, 0x01, 0xD8}, 10, 20, 30, false, false},
		{"sub zero", []byte{0x48, 0x29, 0xD8}, 10, 10, 0, true, false},
		{"sub negative", []byte{0x48, 0x29, 0xD8}, 0, 5, ^uint64(4), false, true},
		{"xor", []byte{0x48, 0x31, 0xD8}, 0xF0, 0xFF, 0x0F, false, false},
		{"imul", []byte{0x48, 0x0F, 0xAF, 0xC3}, 7, ^uint64(2), ^uint64(20), false, false},
		{"add imm", []byte{0x48, 0x81, 0xC0, 0x05, 0x00, 0x00, 0x00}, 1, 0, 6, false, false},
		{"sub imm", []byte{0x48, 0x81, 0xE8, 0x01, 0x00, 0x00, 0x00}, 1, 0, 0, true, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewCPU()
			if err := c.Load(program(tt.op, []byte{0x90}), 0); err != nil {
				t.Fatal(err)
			}
			c.Regs[RegRAX], c.Regs[RegRBX] = tt.a, tt.b
			c.Step()
			if c.Fault != nil {
				t.Fatalf("Unexpected fault: %v", c.Fault)
			}
			if c.Regs[RegRAX] != tt.want {
				t.Errorf("Expected 0x%X, got 0x%X", tt.want, c.Regs[RegRAX])
			}
			if tt.name != "imul" && (c.ZF != tt.zf || c.SF != tt.sf) {
				t.Errorf("Flags ZF=%v SF=%v, want ZF=%v SF=%v", c.ZF, c.SF, tt.zf, tt.sf)
			}
		})
	}
}

func TestSetcc(t *testing.T) {
	neg := func(v int64) uint64 { return uint64(v) }
	tests := []struct {
		name string
		cc   byte
		a, b uint64
		want uint64
	}{
		{"sete equal", CondE, 3, 3, 1},
		{"sete differ", CondE, 3, 4, 0},
		{"setne", CondNE, 3, 4, 1},
		{"setl", CondL, 2, 5, 1},
		{"setl signed", CondL, neg(-3), 2, 1},
		{"setl false", CondL, 5, 2, 0},
		{"setle equal", CondLE, 5, 5, 1},
		{"setg", CondG, 5, 2, 1},
		{"setg signed", CondG, 2, neg(-3), 1},
		{"setge equal", CondGE, 4, 4, 1},
		{"setge false", CondGE, 3, 4, 0},
		{"setb unsigned", CondB, 2, neg(-3), 1},
		{"seta unsigned", CondA, neg(-3), 2, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setcc := []byte{OpTwoByte, Op2SetccBase | tt.cc, 0xC0} // setcc al
			code := exitWithRAX(cmpRAXRBX, setcc, movzxRAXAL)
			c := NewCPU()
			if err := c.Load(code, 0); err != nil {
				t.Fatal(err)
			}
			c.Regs[RegRAX], c.Regs[RegRBX] = tt.a, tt.b
			if err := c.Run(); err != nil {
				t.Fatalf("Run failed: %v", err)
			}
			if c.ExitStatus != tt.want {
				t.Errorf("Expected %d, got %d", tt.want, c.ExitStatus)
			}
		})
	}
}

func TestByteRegisters(t *testing.T) {
	c := NewCPU()
	c.Regs[RegRAX] = 0x1122334455667788
	c.writeByteReg(RegRAX, false, 0xAA)
	if c.Regs[RegRAX] != 0x11223344556677AA {
		t.Errorf("al write: got 0x%X", c.Regs[RegRAX])
	}
	// Without REX, register number 4 is ah.
	c.writeByteReg(4, false, 0xBB)
	if c.Regs[RegRAX] != 0x112233445566BBAA {
		t.Errorf("ah write: got 0x%X", c.Regs[RegRAX])
	}
	if got := c.readByteReg(4, false); got != 0xBB {
		t.Errorf("ah read: got 0x%X", got)
	}
	// With REX, register number 4 is spl.
	c.Regs[RegRSP] = 0x1000
	c.writeByteReg(4, true, 0x08)
	if c.Regs[RegRSP] != 0x1008 {
		t.Errorf("spl write: got 0x%X", c.Regs[RegRSP])
	}
}

func TestMemoryOperands(t *testing.T) {
	code := exitWithRAX(
		[]byte{0x48, 0xC7, 0xC3, 0x00, 0x10, 0x00, 0x00}, // mov rbx, 0x1000
		[]byte{0x48, 0xC7, 0x43, 0x08, 0x2A, 0x00, 0x00, 0x00}, // mov QWORD [rbx+8], 42
		[]byte{0x48, 0x8B, 0x43, 0x08}, // mov rax, [rbx+8]
		[]byte{0x48, 0x89, 0x44, 0x24, 0xF8}, // mov [rsp-8], rax
		[]byte{0x48, 0x8B, 0x4C, 0x24, 0xF8}, // mov rcx, [rsp-8]
	)
	c := runProgram(t, code)
	if c.ExitStatus != 42 {
		t.Errorf("Expected 42, got %d", c.ExitStatus)
	}
	if c.Regs[RegRCX] != 42 {
		t.Errorf("Expected rcx=42, got %d", c.Regs[RegRCX])
	}
	if v, _ := c.Read64(0x1008); v != 42 {
		t.Errorf("Expected memory[0x1008]=42, got %d", v)
	}
}

func TestWriteSyscall(t *testing.T) {
	msg := []byte("hi\n")
	code := program(
		[]byte{0x48, 0xC7, 0xC7, 0x01, 0x00, 0x00, 0x00}, // mov rdi, 1
		[]byte{0x48, 0xC7, 0xC6, 0x00, 0x20, 0x00, 0x00}, // mov rsi, 0x2000
		[]byte{0x48, 0xC7, 0xC2, 0x03, 0x00, 0x00, 0x00}, // mov rdx, 3
		[]byte{0x48, 0xC7, 0xC0, 0x01, 0x00, 0x00, 0x00}, // mov rax, 1
		syscallOp,
		[]byte{0x48, 0x89, 0xC7}, // mov rdi, rax
		movRAX60, syscallOp,
	)
	c := NewCPU()
	var out bytes.Buffer
	c.Output = &out
	if err := c.Load(code, 0); err != nil {
		t.Fatal(err)
	}
	copy(c.Memory[0x2000:], msg)
	if err := c.Run(); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if out.String() != "hi\n" {
		t.Errorf("Expected output %q, got %q", "hi\n", out.String())
	}
	if c.ExitStatus != 3 {
		t.Errorf("Expected write to return 3, got %d", c.ExitStatus)
	}
}

func TestWriteBadFD(t *testing.T) {
	code := program(
		[]byte{0x48, 0xC7, 0xC7, 0x07, 0x00, 0x00, 0x00}, // mov rdi, 7
		[]byte{0x48, 0xC7, 0xC0, 0x01, 0x00, 0x00, 0x00}, // mov rax, 1
		syscallOp,
		movRDIRAX, movRAX60, syscallOp,
	)
	c := runProgram(t, code)
	if int64(c.ExitStatus) != -9 {
		t.Errorf("Expected -EBADF, got %d", int64(c.ExitStatus))
	}
}

func TestFaults(t *testing.T) {
	tests := []struct {
		name string
		code []byte
		want string
	}{
		{"divide by zero", program([]byte{0x48, 0x31, 0xDB}, divRBX), "divide error"},
		{"stack underflow", program(popRAX), "stack underflow"},
		{"unknown opcode", []byte{0xCC}, "unknown opcode 0xCC"},
		{"run off end", []byte{0x90}, "ran past end of program"},
		{"truncated instruction", []byte{0x48, 0xC7}, "past end of program"},
		{"unsupported syscall", program([]byte{0x48, 0xC7, 0xC0, 0x02, 0x00, 0x00, 0x00}, syscallOp), "unsupported syscall 2"},
		{"32-bit alu", []byte{0x01, 0xD8}, "32-bit operand size"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewCPU()
			if err := c.Load(tt.code, 0); err != nil {
				t.Fatal(err)
			}
			err := c.Run()
			if err == nil {
				t.Fatalf("Expected fault containing %q", tt.want)
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Expected fault containing %q, got %q", tt.want, err)
			}
			if !c.Halted {
				t.Error("Expected CPU to halt on fault")
			}
		})
	}
}

func TestStackOverflow(t *testing.T) {
	c := NewCPU()
	c.Memory = make([]byte, 64)
	// The stack reaches the code after six pushes.
	code := bytes.Repeat(pushRAX, 16)
	if err := c.Load(code, 0); err != nil {
		t.Fatal(err)
	}
	err := c.Run()
	if err == nil || !strings.Contains(err.Error(), "stack overflow") {
		t.Errorf("Expected stack overflow, got %v", err)
	}
}

func TestLoadErrors(t *testing.T) {
	c := NewCPU()
	if err := c.Load(make([]byte, len(c.Memory)+1), 0); err == nil {
		t.Error("Expected error for oversized program")
	}
	if err := c.Load([]byte{0x90}, 1); err == nil {
		t.Error("Expected error for entry outside program")
	}
}

func TestRunSteps(t *testing.T) {
	c := NewCPU()
	if err := c.Load(exitWithRAX(movRAX6), 0); err != nil {
		t.Fatal(err)
	}
	if c.RunSteps(2) {
		t.Error("Expected program to still be running after 2 steps")
	}
	if !c.RunSteps(10) {
		t.Error("Expected program to halt")
	}
	if c.ExitCode() != 6 {
		t.Errorf("Expected exit code 6, got %d", c.ExitCode())
	}
}

func TestExitCodeLowByte(t *testing.T) {
	c := &CPU{ExitStatus: ^uint64(4)} // -5
	if c.ExitCode() != 251 {
		t.Errorf("Expected 251, got %d", c.ExitCode())
	}
}
