package toolchain

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// DefaultTimeout bounds a single nasm or ld invocation when NASM.Timeout is
// zero.
const DefaultTimeout = 30 * time.Second

// NASM drives the external nasm assembler and ld linker. Each call works
// in its own temporary directory, removed before returning.
type NASM struct {
	Assembler string // path to nasm, default "nasm"
	Linker    string // path to ld, default "ld"
	Timeout   time.Duration
}

func (n *NASM) assembler() string {
	if n.Assembler == "" {
		return "nasm"
	}
	return n.Assembler
}

func (n *NASM) linker() string {
	if n.Linker == "" {
		return "ld"
	}
	return n.Linker
}

func (n *NASM) timeout() time.Duration {
	if n.Timeout <= 0 {
		return DefaultTimeout
	}
	return n.Timeout
}

// run executes name with args under the configured timeout. Output on
// stderr is folded into the returned error.
func (n *NASM) run(ctx context.Context, name string, args ...string) error {
	ctx, cancel := context.WithTimeout(ctx, n.timeout())
	defer cancel()

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return errors.Wrapf(ctx.Err(), "%s", name)
		}
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return errors.Wrapf(err, "%s: %s", name, msg)
		}
		return errors.Wrap(err, name)
	}
	return nil
}

// Assemble writes source to a temporary .asm file and returns the ELF64
// object nasm produces for it.
func (n *NASM) Assemble(ctx context.Context, source string) ([]byte, error) {
	dir, err := os.MkdirTemp("", "complox-asm-")
	if err != nil {
		return nil, errors.Wrap(err, "Assemble")
	}
	defer os.RemoveAll(dir)

	asmPath := filepath.Join(dir, "out.asm")
	objPath := filepath.Join(dir, "out.o")
	if err := os.WriteFile(asmPath, []byte(source), 0o644); err != nil {
		return nil, errors.Wrap(err, "Assemble")
	}
	if err := n.run(ctx, n.assembler(), "-f", "elf64", "-o", objPath, asmPath); err != nil {
		return nil, err
	}
	obj, err := os.ReadFile(objPath)
	if err != nil {
		return nil, errors.Wrap(err, "Assemble")
	}
	return obj, nil
}

// Link writes each object to a temporary .o file and returns the executable
// ld produces from them.
func (n *NASM) Link(ctx context.Context, objects ...[]byte) ([]byte, error) {
	if len(objects) == 0 {
		return nil, errors.New("Link: no objects")
	}
	dir, err := os.MkdirTemp("", "complox-ld-")
	if err != nil {
		return nil, errors.Wrap(err, "Link")
	}
	defer os.RemoveAll(dir)

	outPath := filepath.Join(dir, "a.out")
	args := []string{"-o", outPath}
	for i, obj := range objects {
		objPath := filepath.Join(dir, "in"+strconv.Itoa(i)+".o")
		if err := os.WriteFile(objPath, obj, 0o644); err != nil {
			return nil, errors.Wrap(err, "Link")
		}
		args = append(args, objPath)
	}
	if err := n.run(ctx, n.linker(), args...); err != nil {
		return nil, err
	}
	exe, err := os.ReadFile(outPath)
	if err != nil {
		return nil, errors.Wrap(err, "Link")
	}
	return exe, nil
}
