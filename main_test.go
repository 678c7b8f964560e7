package main

import (
	"context"
	"debug/elf"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"complox/pkg/compiler"
	"complox/pkg/toolchain"
)

// writeSources creates one file per entry in dir and returns their paths.
func writeSources(t *testing.T, dir string, sources map[string]string) []string {
	t.Helper()
	var paths []string
	for name, src := range sources {
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, []byte(src), 0o644); err != nil {
			t.Fatalf("Failed to write %s: %v", name, err)
		}
		paths = append(paths, path)
	}
	return paths
}

func TestBuildAllWithFakeToolchain(t *testing.T) {
	dir := t.TempDir()
	paths := writeSources(t, dir, map[string]string{
		"sum.lox":  "1 + 2",
		"quot.lox": "6 / 2",
		"cmp.lox":  "3 < 4 == true",
	})

	fake := &toolchain.Fake{}
	cfg := buildConfig{tc: fake, jobs: 2}

	errs := buildAll(context.Background(), cfg, paths)
	for i, err := range errs {
		if err != nil {
			t.Errorf("%s: unexpected error: %v", paths[i], err)
		}
	}
	if status := exitStatus(errs); status != 0 {
		t.Errorf("Expected exit status 0, got %d", status)
	}

	if got := len(fake.Sources()); got != len(paths) {
		t.Errorf("Expected %d assemble calls, got %d", len(paths), got)
	}
	if got := fake.Links(); got != len(paths) {
		t.Errorf("Expected %d link calls, got %d", len(paths), got)
	}

	for _, path := range paths {
		exePath := strings.TrimSuffix(path, ".lox")
		exe, err := os.ReadFile(exePath)
		if err != nil {
			t.Fatalf("Expected executable %s: %v", exePath, err)
		}
		if !strings.HasPrefix(string(exe), "EXE:") {
			t.Errorf("%s: expected fake link output, got %q", exePath, exe)
		}
		if !strings.Contains(string(exe), "global _start") {
			t.Errorf("%s: expected NASM source inside fake object, got %q", exePath, exe)
		}
		info, err := os.Stat(exePath)
		if err != nil {
			t.Fatal(err)
		}
		if info.Mode().Perm()&0o100 == 0 {
			t.Errorf("%s: expected executable permission, got %v", exePath, info.Mode())
		}
	}
}

func TestBuildAllCompileErrorDoesNotStopOthers(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "good.lox")
	bad := filepath.Join(dir, "bad.lox")
	writeSources(t, dir, map[string]string{
		"good.lox": "8 - 4 - 2",
		"bad.lox":  "(1 + 2",
	})

	cfg := buildConfig{tc: &toolchain.Fake{}, jobs: 1}
	errs := buildAll(context.Background(), cfg, []string{bad, good})

	if errs[0] == nil {
		t.Fatalf("Expected compile error for %s", bad)
	}
	if errs[1] != nil {
		t.Errorf("Expected %s to build, got %v", good, errs[1])
	}

	var cerr *compiler.Error
	if !errors.As(errs[0], &cerr) {
		t.Fatalf("Expected *compiler.Error in chain, got %T", errs[0])
	}
	if cerr.Kind != compiler.ParseError {
		t.Errorf("Expected parse error, got %v", cerr.Kind)
	}
	if !strings.Contains(errs[0].Error(), "Expect ')' after expression.") {
		t.Errorf("Expected message in %q", errs[0].Error())
	}
	if !strings.HasPrefix(errs[0].Error(), bad) {
		t.Errorf("Expected error to name the file, got %q", errs[0].Error())
	}

	if status := exitStatus(errs); status != exitCompileError {
		t.Errorf("Expected exit status %d, got %d", exitCompileError, status)
	}
	if _, err := os.Stat(filepath.Join(dir, "good")); err != nil {
		t.Errorf("Expected good executable to exist: %v", err)
	}
}

func TestBuildFileEmitAssembly(t *testing.T) {
	dir := t.TempDir()
	paths := writeSources(t, dir, map[string]string{"neg.lox": "-(2 + 3)"})

	fake := &toolchain.Fake{}
	cfg := buildConfig{tc: fake, emitAsm: true}
	if err := buildFile(context.Background(), cfg, paths[0]); err != nil {
		t.Fatalf("buildFile failed: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, "neg.asm"))
	if err != nil {
		t.Fatalf("Expected neg.asm: %v", err)
	}
	want, err := compiler.Compile("-(2 + 3)", compiler.Options{})
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != want {
		t.Errorf("Assembly mismatch.\nExpected:\n%s\nGot:\n%s", want, data)
	}
	if len(fake.Sources()) != 0 {
		t.Errorf("Expected no toolchain calls with -S, got %d", len(fake.Sources()))
	}
}

func TestBuildFileOutputOverride(t *testing.T) {
	dir := t.TempDir()
	paths := writeSources(t, dir, map[string]string{"one.lox": "1"})
	out := filepath.Join(dir, "custom.bin")

	cfg := buildConfig{tc: &toolchain.Fake{}, outPath: out}
	if err := buildFile(context.Background(), cfg, paths[0]); err != nil {
		t.Fatalf("buildFile failed: %v", err)
	}
	if _, err := os.Stat(out); err != nil {
		t.Errorf("Expected %s: %v", out, err)
	}
}

func TestBuildFileToolchainFailure(t *testing.T) {
	dir := t.TempDir()
	paths := writeSources(t, dir, map[string]string{"x.lox": "1 + 1"})

	linkErr := errors.New("ld: cannot find entry symbol")
	cfg := buildConfig{tc: &toolchain.Fake{LinkErr: linkErr}}
	err := buildFile(context.Background(), cfg, paths[0])
	if err == nil {
		t.Fatal("Expected link error")
	}
	if !errors.Is(err, linkErr) {
		t.Errorf("Expected wrapped link error, got %v", err)
	}
	if status := exitStatus([]error{err}); status != 1 {
		t.Errorf("Expected exit status 1, got %d", status)
	}
}

func TestBuildFileMissingInput(t *testing.T) {
	cfg := buildConfig{tc: &toolchain.Fake{}}
	err := buildFile(context.Background(), cfg, filepath.Join(t.TempDir(), "missing.lox"))
	if err == nil {
		t.Fatal("Expected read error")
	}
	if !strings.Contains(err.Error(), "failed to read input file") {
		t.Errorf("Unexpected error text: %v", err)
	}
	if status := exitStatus([]error{err}); status != 1 {
		t.Errorf("Expected exit status 1, got %d", status)
	}
}

func TestBuildFileBuiltinToolchain(t *testing.T) {
	dir := t.TempDir()
	paths := writeSources(t, dir, map[string]string{"prog.lox": "(6 / 2) * 7"})

	cfg := buildConfig{tc: toolchain.Builtin{}, run: true}
	if err := buildFile(context.Background(), cfg, paths[0]); err != nil {
		t.Fatalf("buildFile failed: %v", err)
	}

	f, err := elf.Open(filepath.Join(dir, "prog"))
	if err != nil {
		t.Fatalf("Expected ELF executable: %v", err)
	}
	defer f.Close()
	if f.Machine != elf.EM_X86_64 {
		t.Errorf("Expected EM_X86_64, got %v", f.Machine)
	}
	if f.Type != elf.ET_EXEC {
		t.Errorf("Expected ET_EXEC, got %v", f.Type)
	}
}

func TestExitStatus(t *testing.T) {
	compileErr := &compiler.Error{Kind: compiler.ScanError, Line: 1, Message: "Unterminated string."}
	tests := []struct {
		name string
		errs []error
		want int
	}{
		{"all ok", []error{nil, nil}, 0},
		{"io failure", []error{nil, errors.New("disk full")}, 1},
		{"compile error", []error{compileErr}, exitCompileError},
		{"compile error wins", []error{errors.New("disk full"), compileErr}, exitCompileError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := exitStatus(tt.errs); got != tt.want {
				t.Errorf("Expected %d, got %d", tt.want, got)
			}
		})
	}
}
