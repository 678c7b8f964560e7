package compiler

import (
	"fmt"
	"io"

	"complox/pkg/asm"
	"complox/pkg/cpu"
	"complox/pkg/x86"
)

// Compile runs the whole pipeline over src and returns NASM source for an
// ELF64 program that exits with the value of the expression.
//
// Errors are *Error values for problems in the source; nothing is printed.
func Compile(src string, opts Options) (string, error) {
	expr, err := Parse(src)
	if err != nil {
		return "", err
	}

	prog, err := Generate(expr, opts)
	if err != nil {
		return "", err
	}

	return prog.String(), nil
}

// Execute assembles NASM source in process and runs it on the emulator
// until it exits. write syscalls go to out.
func Execute(assembly string, out io.Writer) (*cpu.CPU, error) {
	a := asm.NewAssembler()
	machineCode, _, err := a.Assemble(assembly)
	if err != nil {
		return nil, fmt.Errorf("assembly error: %v", err)
	}
	entry, ok := a.Label(x86.EntryPoint)
	if !ok {
		return nil, fmt.Errorf("assembly error: no %s label", x86.EntryPoint)
	}

	vm := cpu.NewCPU()
	vm.Output = out
	if err := vm.Load(machineCode, entry); err != nil {
		return nil, err
	}
	if err := vm.Run(); err != nil {
		return vm, fmt.Errorf("run error: %v", err)
	}
	return vm, nil
}

// Run compiles src and executes it, returning the halted CPU. The value of
// the expression is in vm.ExitStatus.
func Run(src string, opts Options) (*cpu.CPU, error) {
	assembly, err := Compile(src, opts)
	if err != nil {
		return nil, err
	}
	return Execute(assembly, io.Discard)
}
