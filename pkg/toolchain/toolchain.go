// Package toolchain turns NASM source into executables. The compiler only
// depends on the Toolchain interface; NASM drives the external nasm and ld
// binaries and Builtin does the same job in process.
package toolchain

import (
	"context"
	"fmt"
)

// Toolchain assembles NASM source into objects and links objects into an
// executable.
type Toolchain interface {
	Assemble(ctx context.Context, source string) ([]byte, error)
	Link(ctx context.Context, objects ...[]byte) ([]byte, error)
}

// Build runs source through tc and returns the linked executable.
func Build(ctx context.Context, tc Toolchain, source string) ([]byte, error) {
	obj, err := tc.Assemble(ctx, source)
	if err != nil {
		return nil, err
	}
	return tc.Link(ctx, obj)
}

// New returns the toolchain registered under name.
func New(name string, nasmPath, ldPath string) (Toolchain, error) {
	switch name {
	case "builtin", "":
		return Builtin{}, nil
	case "nasm":
		return &NASM{Assembler: nasmPath, Linker: ldPath}, nil
	}
	return nil, fmt.Errorf("unknown toolchain %q (want builtin or nasm)", name)
}
