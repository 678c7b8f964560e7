package toolchain

import (
	"bytes"
	"context"
	"debug/elf"
	"encoding/binary"

	"github.com/pkg/errors"

	"complox/pkg/asm"
	"complox/pkg/x86"
)

// objectMagic starts every object produced by Builtin.Assemble. It is
// followed by the little-endian entry offset and the machine code.
var objectMagic = []byte("CLXO")

const objectHeaderSize = 8

// Builtin assembles with the in-process assembler and links by wrapping the
// code in a static ELF64 executable. It needs no external tools.
type Builtin struct{}

func (Builtin) Assemble(ctx context.Context, source string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	a := asm.NewAssembler()
	code, _, err := a.Assemble(source)
	if err != nil {
		return nil, errors.Wrap(err, "Assemble")
	}
	entry, ok := a.Label(x86.EntryPoint)
	if !ok {
		return nil, errors.Errorf("Assemble: no %s label", x86.EntryPoint)
	}
	return EncodeObject(code, entry), nil
}

func (Builtin) Link(ctx context.Context, objects ...[]byte) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(objects) != 1 {
		return nil, errors.Errorf("Link: builtin linker takes exactly one object, got %d", len(objects))
	}
	code, entry, err := DecodeObject(objects[0])
	if err != nil {
		return nil, errors.Wrap(err, "Link")
	}
	return writeELF(code, entry)
}

// EncodeObject packs machine code and its entry offset into a builtin object.
func EncodeObject(code []byte, entry uint32) []byte {
	out := make([]byte, 0, objectHeaderSize+len(code))
	out = append(out, objectMagic...)
	out = binary.LittleEndian.AppendUint32(out, entry)
	return append(out, code...)
}

// DecodeObject unpacks an object produced by Builtin.Assemble.
func DecodeObject(obj []byte) ([]byte, uint32, error) {
	if len(obj) < objectHeaderSize || !bytes.Equal(obj[:len(objectMagic)], objectMagic) {
		return nil, 0, errors.New("not a builtin object")
	}
	entry := binary.LittleEndian.Uint32(obj[len(objectMagic):])
	code := obj[objectHeaderSize:]
	if int(entry) >= len(code) {
		return nil, 0, errors.Errorf("entry offset 0x%X outside %d bytes of code", entry, len(code))
	}
	return code, entry, nil
}

// Executable layout: one R+X PT_LOAD segment mapping the whole file at
// baseAddr, with the code right after the ELF and program headers.
const (
	baseAddr     = 0x400000
	elfHeaderLen = 64
	progHeadLen  = 56
	codeOffset   = elfHeaderLen + progHeadLen
)

func writeELF(code []byte, entry uint32) ([]byte, error) {
	size := uint64(codeOffset + len(code))

	hdr := elf.Header64{
		Type:      uint16(elf.ET_EXEC),
		Machine:   uint16(elf.EM_X86_64),
		Version:   uint32(elf.EV_CURRENT),
		Entry:     baseAddr + codeOffset + uint64(entry),
		Phoff:     elfHeaderLen,
		Ehsize:    elfHeaderLen,
		Phentsize: progHeadLen,
		Phnum:     1,
	}
	copy(hdr.Ident[:], elf.ELFMAG)
	hdr.Ident[elf.EI_CLASS] = byte(elf.ELFCLASS64)
	hdr.Ident[elf.EI_DATA] = byte(elf.ELFDATA2LSB)
	hdr.Ident[elf.EI_VERSION] = byte(elf.EV_CURRENT)
	hdr.Ident[elf.EI_OSABI] = byte(elf.ELFOSABI_NONE)

	prog := elf.Prog64{
		Type:   uint32(elf.PT_LOAD),
		Flags:  uint32(elf.PF_R | elf.PF_X),
		Off:    0,
		Vaddr:  baseAddr,
		Paddr:  baseAddr,
		Filesz: size,
		Memsz:  size,
		Align:  0x1000,
	}

	var buf bytes.Buffer
	buf.Grow(int(size))
	if err := binary.Write(&buf, binary.LittleEndian, &hdr); err != nil {
		return nil, errors.Wrap(err, "write ELF header")
	}
	if err := binary.Write(&buf, binary.LittleEndian, &prog); err != nil {
		return nil, errors.Wrap(err, "write program header")
	}
	buf.Write(code)
	return buf.Bytes(), nil
}
