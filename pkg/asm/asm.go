package asm

import (
	"encoding/binary"
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"complox/pkg/cpu"
	"complox/pkg/x86"
)

var zeroOperandOps = map[string][]byte{
	"SYSCALL": {cpu.OpTwoByte, cpu.Op2Syscall},
	"NOP":     {cpu.OpNop},
	"CQO":     {cpu.RexBase | cpu.RexW, cpu.OpCqo},
}

var stackOps = map[string]byte{
	"PUSH": cpu.OpPushR,
	"POP":  cpu.OpPopR,
}

// aluOp holds both encodings of a two-operand arithmetic instruction.
type aluOp struct {
	rm  byte // op r/m64, r64
	ext byte // 0x81 /ext op r/m64, imm32
}

var aluOps = map[string]aluOp{
	"ADD": {cpu.OpAddRM, cpu.ExtAdd},
	"SUB": {cpu.OpSubRM, cpu.ExtSub},
	"XOR": {cpu.OpXorRM, cpu.ExtXor},
	"CMP": {cpu.OpCmpRM, cpu.ExtCmp},
}

var setccOps = map[string]byte{
	"SETO":  cpu.CondO,
	"SETNO": cpu.CondNO,
	"SETB":  cpu.CondB,
	"SETAE": cpu.CondAE,
	"SETE":  cpu.CondE,
	"SETZ":  cpu.CondE,
	"SETNE": cpu.CondNE,
	"SETNZ": cpu.CondNE,
	"SETBE": cpu.CondBE,
	"SETA":  cpu.CondA,
	"SETS":  cpu.CondS,
	"SETNS": cpu.CondNS,
	"SETL":  cpu.CondL,
	"SETGE": cpu.CondGE,
	"SETLE": cpu.CondLE,
	"SETG":  cpu.CondG,
}

// directives are accepted and produce no bytes.
var directives = map[string]bool{
	"SECTION": true,
	"GLOBAL":  true,
	"BITS":    true,
	"DEFAULT": true,
}

// Assembler turns the NASM subset emitted by the compiler into x86-64
// machine code. Labels are resolved in a first pass over the source.
type Assembler struct {
	labels map[string]uint32
}

type parsedLine struct {
	lineNo   int
	labels   []string
	mnemonic string
	operands []string
}

type operandKind int

const (
	regOperand operandKind = iota
	immOperand
	memOperand
)

type operand struct {
	kind operandKind
	reg  x86.Reg // register, or base of a memory operand
	imm  uint64
	size x86.Size
	disp int32
}

func NewAssembler() *Assembler {
	return &Assembler{
		labels: make(map[string]uint32),
	}
}

// Assemble encodes code and returns the machine code plus a map from code
// offset to source line.
func Assemble(code string) ([]byte, map[uint32]int, error) {
	return NewAssembler().Assemble(code)
}

func (a *Assembler) Assemble(code string) ([]byte, map[uint32]int, error) {
	lines := strings.Split(code, "\n")
	a.labels = make(map[string]uint32)

	if err := a.pass1(lines); err != nil {
		return nil, nil, err
	}

	return a.pass2(lines)
}

// Label returns the code offset of a label defined by the last Assemble.
func (a *Assembler) Label(name string) (uint32, bool) {
	addr, ok := a.labels[normalizeLabel(name)]
	return addr, ok
}

func (a *Assembler) pass1(lines []string) error {
	var address uint32

	for i, raw := range lines {
		lineNo := i + 1
		p, err := parseLine(raw, lineNo)
		if err != nil {
			return err
		}

		for _, lbl := range p.labels {
			key := normalizeLabel(lbl)
			if _, exists := a.labels[key]; exists {
				return fmt.Errorf("duplicate label '%s' on line %d", lbl, lineNo)
			}
			a.labels[key] = address
		}

		if p.mnemonic == "" || directives[p.mnemonic] {
			continue
		}

		length, err := a.instructionLength(p)
		if err != nil {
			return err
		}
		address += uint32(length)
	}

	return nil
}

func (a *Assembler) pass2(lines []string) ([]byte, map[uint32]int, error) {
	program := make([]byte, 0)
	sourceMap := make(map[uint32]int)

	for i, raw := range lines {
		lineNo := i + 1
		p, err := parseLine(raw, lineNo)
		if err != nil {
			return nil, nil, err
		}

		if p.mnemonic == "" || directives[p.mnemonic] {
			continue
		}

		sourceMap[uint32(len(program))] = lineNo

		enc, err := a.encode(p, true)
		if err != nil {
			return nil, nil, err
		}
		program = append(program, enc...)
	}

	return program, sourceMap, nil
}

// instructionLength returns the encoded size of p. Labels that pass 1 has
// not reached yet are sized as zero, which takes the same imm32 encoding.
func (a *Assembler) instructionLength(p parsedLine) (int, error) {
	enc, err := a.encode(p, false)
	if err != nil {
		return 0, err
	}
	return len(enc), nil
}

func (a *Assembler) encode(p parsedLine, resolve bool) ([]byte, error) {
	mnemonic := p.mnemonic
	lineNo := p.lineNo

	ops := make([]operand, 0, len(p.operands))
	for _, tok := range p.operands {
		op, err := a.parseOperand(tok, lineNo, resolve)
		if err != nil {
			return nil, err
		}
		ops = append(ops, op)
	}

	if enc, ok := zeroOperandOps[mnemonic]; ok {
		if len(ops) != 0 {
			return nil, fmt.Errorf("%s expects 0 operands on line %d", mnemonic, lineNo)
		}
		return append([]byte(nil), enc...), nil
	}

	if base, ok := stackOps[mnemonic]; ok {
		if len(ops) != 1 {
			return nil, fmt.Errorf("%s expects 1 operand on line %d", mnemonic, lineNo)
		}
		r, err := requireReg64(ops[0], mnemonic, lineNo)
		if err != nil {
			return nil, err
		}
		var out []byte
		if r&8 != 0 {
			out = append(out, cpu.RexBase|cpu.RexB)
		}
		return append(out, base+r&7), nil
	}

	if alu, ok := aluOps[mnemonic]; ok {
		if len(ops) != 2 {
			return nil, fmt.Errorf("%s expects 2 operands on line %d", mnemonic, lineNo)
		}
		dst, err := requireReg64(ops[0], mnemonic, lineNo)
		if err != nil {
			return nil, err
		}
		switch ops[1].kind {
		case regOperand:
			src, err := requireReg64(ops[1], mnemonic, lineNo)
			if err != nil {
				return nil, err
			}
			return []byte{cpu.Rex(true, src, 0, dst), alu.rm, cpu.ModRM(3, src, dst)}, nil
		case immOperand:
			imm, err := imm32(ops[1], lineNo)
			if err != nil {
				return nil, err
			}
			out := []byte{cpu.Rex(true, 0, 0, dst), cpu.OpGrp1Imm, cpu.ModRM(3, alu.ext, dst)}
			return binary.LittleEndian.AppendUint32(out, imm), nil
		}
		return nil, fmt.Errorf("%s does not accept a memory operand on line %d", mnemonic, lineNo)
	}

	if cc, ok := setccOps[mnemonic]; ok {
		if len(ops) != 1 {
			return nil, fmt.Errorf("%s expects 1 operand on line %d", mnemonic, lineNo)
		}
		r, needRex, err := requireReg8(ops[0], mnemonic, lineNo)
		if err != nil {
			return nil, err
		}
		var out []byte
		if needRex {
			out = append(out, cpu.Rex(false, 0, 0, r))
		}
		return append(out, cpu.OpTwoByte, cpu.Op2SetccBase|cc, cpu.ModRM(3, 0, r)), nil
	}

	switch mnemonic {
	case "MOV":
		if len(ops) != 2 {
			return nil, fmt.Errorf("MOV expects 2 operands on line %d", lineNo)
		}
		return encodeMov(ops[0], ops[1], lineNo)

	case "IMUL":
		if len(ops) != 2 {
			return nil, fmt.Errorf("IMUL expects 2 operands on line %d", lineNo)
		}
		dst, err := requireReg64(ops[0], mnemonic, lineNo)
		if err != nil {
			return nil, err
		}
		src, err := requireReg64(ops[1], mnemonic, lineNo)
		if err != nil {
			return nil, err
		}
		return []byte{cpu.Rex(true, dst, 0, src), cpu.OpTwoByte, cpu.Op2Imul, cpu.ModRM(3, dst, src)}, nil

	case "DIV":
		if len(ops) != 1 {
			return nil, fmt.Errorf("DIV expects 1 operand on line %d", lineNo)
		}
		r, err := requireReg64(ops[0], mnemonic, lineNo)
		if err != nil {
			return nil, err
		}
		return []byte{cpu.Rex(true, 0, 0, r), cpu.OpGrp3, cpu.ModRM(3, cpu.ExtDiv, r)}, nil

	case "MOVZX":
		if len(ops) != 2 {
			return nil, fmt.Errorf("MOVZX expects 2 operands on line %d", lineNo)
		}
		dst, err := requireReg64(ops[0], mnemonic, lineNo)
		if err != nil {
			return nil, err
		}
		src, _, err := requireReg8(ops[1], mnemonic, lineNo)
		if err != nil {
			return nil, err
		}
		if ops[1].reg.High() {
			return nil, fmt.Errorf("MOVZX cannot encode %s with a 64-bit destination on line %d", ops[1].reg, lineNo)
		}
		return []byte{cpu.Rex(true, dst, 0, src), cpu.OpTwoByte, cpu.Op2Movzx8, cpu.ModRM(3, dst, src)}, nil
	}

	return nil, fmt.Errorf("unknown instruction on line %d: %s", lineNo, mnemonic)
}

// encodeMov handles register, immediate and memory forms of mov.
func encodeMov(dst, src operand, lineNo int) ([]byte, error) {
	switch {
	case dst.kind == regOperand && src.kind == regOperand:
		d, err := requireReg64(dst, "MOV", lineNo)
		if err != nil {
			return nil, err
		}
		s, err := requireReg64(src, "MOV", lineNo)
		if err != nil {
			return nil, err
		}
		return []byte{cpu.Rex(true, s, 0, d), cpu.OpMovRM, cpu.ModRM(3, s, d)}, nil

	case dst.kind == regOperand && src.kind == immOperand:
		d, err := requireReg64(dst, "MOV", lineNo)
		if err != nil {
			return nil, err
		}
		if src.imm > 0xFFFFFFFF {
			return nil, fmt.Errorf("immediate out of range on line %d: %d", lineNo, src.imm)
		}
		if src.imm <= 0x7FFFFFFF {
			out := []byte{cpu.Rex(true, 0, 0, d), cpu.OpMovRMImm, cpu.ModRM(3, 0, d)}
			return binary.LittleEndian.AppendUint32(out, uint32(src.imm)), nil
		}
		// mov r32, imm32 zero-extends into the full register.
		var out []byte
		if d&8 != 0 {
			out = append(out, cpu.RexBase|cpu.RexB)
		}
		out = append(out, cpu.OpMovImm+d&7)
		return binary.LittleEndian.AppendUint32(out, uint32(src.imm)), nil

	case dst.kind == regOperand && src.kind == memOperand:
		d, err := requireReg64(dst, "MOV", lineNo)
		if err != nil {
			return nil, err
		}
		return encodeMem(cpu.OpMovR, d, src, lineNo)

	case dst.kind == memOperand && src.kind == regOperand:
		s, err := requireReg64(src, "MOV", lineNo)
		if err != nil {
			return nil, err
		}
		return encodeMem(cpu.OpMovRM, s, dst, lineNo)

	case dst.kind == memOperand && src.kind == immOperand:
		if dst.size != x86.Qword {
			return nil, fmt.Errorf("MOV to memory needs a QWORD size on line %d", lineNo)
		}
		imm, err := imm32(src, lineNo)
		if err != nil {
			return nil, err
		}
		out, err := encodeMem(cpu.OpMovRMImm, 0, dst, lineNo)
		if err != nil {
			return nil, err
		}
		return binary.LittleEndian.AppendUint32(out, imm), nil
	}
	return nil, fmt.Errorf("unsupported MOV operands on line %d", lineNo)
}

// encodeMem emits REX.W, opcode and a ModRM/SIB/displacement addressing
// [base+disp].
func encodeMem(opcode, reg byte, m operand, lineNo int) ([]byte, error) {
	if m.size != x86.NoSize && m.size != x86.Qword {
		return nil, fmt.Errorf("only QWORD memory operands are supported on line %d", lineNo)
	}
	if m.reg.Width() != 64 {
		return nil, fmt.Errorf("memory base must be a 64-bit register on line %d", lineNo)
	}
	base := m.reg.Code()
	out := []byte{cpu.Rex(true, reg, 0, base), opcode}

	var mod byte
	switch {
	case m.disp == 0 && base&7 != cpu.RegRBP:
		mod = 0
	case m.disp >= -128 && m.disp <= 127:
		mod = 1
	default:
		mod = 2
	}
	out = append(out, cpu.ModRM(mod, reg, base))
	if base&7 == cpu.RegRSP {
		out = append(out, 0x24) // SIB: base only
	}
	switch mod {
	case 1:
		out = append(out, byte(int8(m.disp)))
	case 2:
		out = binary.LittleEndian.AppendUint32(out, uint32(m.disp))
	}
	return out, nil
}

func requireReg64(op operand, mnemonic string, lineNo int) (byte, error) {
	if op.kind != regOperand {
		return 0, fmt.Errorf("%s expects a register operand on line %d", mnemonic, lineNo)
	}
	if op.reg.Width() != 64 {
		return 0, fmt.Errorf("%s supports only 64-bit registers on line %d: %s", mnemonic, lineNo, op.reg)
	}
	return op.reg.Code(), nil
}

// requireReg8 returns the register number of an 8-bit register and whether
// it must be encoded with a REX prefix.
func requireReg8(op operand, mnemonic string, lineNo int) (byte, bool, error) {
	if op.kind != regOperand || op.reg.Width() != 8 {
		return 0, false, fmt.Errorf("%s expects an 8-bit register on line %d", mnemonic, lineNo)
	}
	code := op.reg.Code()
	if op.reg.High() {
		return code, false, nil
	}
	return code, code >= 4, nil
}

func imm32(op operand, lineNo int) (uint32, error) {
	if op.imm > 0x7FFFFFFF {
		return 0, fmt.Errorf("immediate does not fit a sign-extended imm32 on line %d: %d", lineNo, op.imm)
	}
	return uint32(op.imm), nil
}

func parseLine(raw string, lineNo int) (parsedLine, error) {
	p := parsedLine{lineNo: lineNo}

	line := strings.TrimSpace(stripComments(raw))
	if line == "" {
		return p, nil
	}

	for {
		colon := strings.IndexByte(line, ':')
		if colon <= 0 {
			break
		}

		beforeColon := strings.TrimSpace(line[:colon])
		if strings.ContainsAny(beforeColon, " \t[") {
			break
		}

		if !isIdentifier(beforeColon) {
			return p, fmt.Errorf("invalid label '%s' on line %d", beforeColon, lineNo)
		}

		p.labels = append(p.labels, beforeColon)
		line = strings.TrimSpace(line[colon+1:])
		if line == "" {
			return p, nil
		}
	}

	mnemonic, rest := line, ""
	if i := strings.IndexAny(line, " \t"); i >= 0 {
		mnemonic, rest = line[:i], line[i+1:]
	}
	p.mnemonic = strings.ToUpper(mnemonic)
	p.operands = splitOperands(rest)

	return p, nil
}

func stripComments(line string) string {
	if semicolon := strings.IndexByte(line, ';'); semicolon >= 0 {
		return line[:semicolon]
	}
	return line
}

// splitOperands splits the text after the mnemonic on commas.
func splitOperands(s string) []string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	for i, part := range parts {
		parts[i] = strings.TrimSpace(part)
	}
	return parts
}

var sizeDirectives = map[string]x86.Size{
	"BYTE":  x86.Byte,
	"WORD":  x86.Word,
	"DWORD": x86.Dword,
	"QWORD": x86.Qword,
}

func (a *Assembler) parseOperand(token string, lineNo int, resolve bool) (operand, error) {
	if token == "" {
		return operand{}, fmt.Errorf("missing operand on line %d", lineNo)
	}

	if r, ok := x86.LookupReg(strings.ToLower(token)); ok {
		return operand{kind: regOperand, reg: r}, nil
	}

	size := x86.NoSize
	if head, tail, ok := strings.Cut(token, " "); ok {
		if s, known := sizeDirectives[strings.ToUpper(head)]; known {
			size = s
			token = strings.TrimSpace(tail)
		}
	}

	if strings.HasPrefix(token, "[") {
		if !strings.HasSuffix(token, "]") {
			return operand{}, fmt.Errorf("unterminated memory operand on line %d", lineNo)
		}
		return parseMemory(token[1:len(token)-1], size, lineNo)
	}
	if size != x86.NoSize {
		return operand{}, fmt.Errorf("size directive needs a bracketed memory operand on line %d", lineNo)
	}

	imm, err := a.parseImmediate(token, lineNo, resolve)
	if err != nil {
		return operand{}, err
	}
	return operand{kind: immOperand, imm: imm}, nil
}

// parseMemory parses "base", "base+disp" or "base-disp".
func parseMemory(inner string, size x86.Size, lineNo int) (operand, error) {
	inner = strings.ReplaceAll(inner, " ", "")
	baseText, dispText := inner, ""
	if i := strings.IndexAny(inner, "+-"); i >= 0 {
		baseText, dispText = inner[:i], inner[i:]
	}

	base, ok := x86.LookupReg(strings.ToLower(baseText))
	if !ok {
		return operand{}, fmt.Errorf("invalid register '%s' on line %d", baseText, lineNo)
	}

	var disp int64
	if dispText != "" {
		var err error
		disp, err = strconv.ParseInt(dispText, 0, 32)
		if err != nil {
			return operand{}, fmt.Errorf("invalid displacement '%s' on line %d", dispText, lineNo)
		}
	}
	return operand{kind: memOperand, reg: base, size: size, disp: int32(disp)}, nil
}

func (a *Assembler) parseImmediate(token string, lineNo int, resolve bool) (uint64, error) {
	if value, err := strconv.ParseUint(token, 0, 64); err == nil {
		return value, nil
	}

	if addr, ok := a.labels[normalizeLabel(token)]; ok {
		return uint64(addr), nil
	}

	if isIdentifier(token) {
		if !resolve {
			return 0, nil
		}
		return 0, fmt.Errorf("undefined label '%s' on line %d", token, lineNo)
	}

	return 0, fmt.Errorf("invalid immediate '%s' on line %d", token, lineNo)
}

func isIdentifier(s string) bool {
	if s == "" {
		return false
	}

	for i, r := range s {
		if i == 0 {
			if !unicode.IsLetter(r) && r != '_' && r != '.' {
				return false
			}
			continue
		}

		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_' && r != '.' && r != '$' {
			return false
		}
	}

	return true
}

// normalizeLabel trims surrounding space; NASM labels are case sensitive.
func normalizeLabel(label string) string {
	return strings.TrimSpace(label)
}
