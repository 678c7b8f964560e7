//go:build !js

package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"runtime"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"complox/pkg/compiler"
	"complox/pkg/toolchain"
	"complox/pkg/utils"
)

// exitCompileError is the status for any source file that fails to compile.
const exitCompileError = 65

type buildConfig struct {
	opts    compiler.Options
	tc      toolchain.Toolchain
	emitAsm bool
	run     bool
	outPath string
	jobs    int
}

func main() {
	log.SetFlags(0)
	log.SetPrefix("complox: ")

	emitAsm := flag.Bool("S", false, "write NASM source (.asm) instead of an executable")
	optimize := flag.Bool("O", false, "lower literal-only arithmetic through value-form blobs")
	outPath := flag.String("o", "", "output file path (single input only; default: input without extension)")
	tcName := flag.String("toolchain", "builtin", "assembler and linker: builtin or nasm")
	nasmPath := flag.String("nasm", "nasm", "nasm binary used by -toolchain nasm")
	ldPath := flag.String("ld", "ld", "ld binary used by -toolchain nasm")
	timeout := flag.Duration("timeout", toolchain.DefaultTimeout, "time limit for each nasm or ld invocation")
	jobs := flag.Int("j", runtime.NumCPU(), "number of files compiled in parallel")
	runProgram := flag.Bool("run", false, "also run each program on the emulator and print its exit status")
	flag.Parse()

	files := flag.Args()
	if len(files) == 0 {
		fmt.Fprintln(os.Stderr, "nothing to do: provide one or more source files")
		flag.Usage()
		os.Exit(2)
	}
	if *outPath != "" && len(files) > 1 {
		fmt.Fprintln(os.Stderr, "-o can only be used with a single input file")
		os.Exit(2)
	}

	tc, err := toolchain.New(*tcName, *nasmPath, *ldPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	if n, ok := tc.(*toolchain.NASM); ok {
		n.Timeout = *timeout
	}

	cfg := buildConfig{
		opts:    compiler.Options{Optimize: *optimize},
		tc:      tc,
		emitAsm: *emitAsm,
		run:     *runProgram,
		outPath: *outPath,
		jobs:    *jobs,
	}

	errs := buildAll(context.Background(), cfg, files)
	for _, err := range errs {
		if err != nil {
			log.Println(err)
		}
	}
	os.Exit(exitStatus(errs))
}

// buildAll compiles every file, at most cfg.jobs at a time. The result has
// one entry per file; a failure in one file does not stop the others.
func buildAll(ctx context.Context, cfg buildConfig, files []string) []error {
	errs := make([]error, len(files))

	var g errgroup.Group
	if cfg.jobs > 0 {
		g.SetLimit(cfg.jobs)
	}
	for i, path := range files {
		g.Go(func() error {
			errs[i] = buildFile(ctx, cfg, path)
			return nil
		})
	}
	_ = g.Wait()

	return errs
}

func buildFile(ctx context.Context, cfg buildConfig, path string) error {
	fullPath, _, err := utils.GetPathInfo(path)
	if err != nil {
		return errors.Wrapf(err, "resolve %s", path)
	}
	source, err := os.ReadFile(fullPath)
	if err != nil {
		return errors.Wrapf(err, "failed to read input file %q", path)
	}

	assembly, err := compiler.Compile(string(source), cfg.opts)
	if err != nil {
		return errors.Wrap(err, path)
	}

	if cfg.run {
		vm, err := compiler.Execute(assembly, os.Stdout)
		if err != nil {
			return errors.Wrap(err, path)
		}
		fmt.Printf("run complete (%s): exit=%d value=%d steps=%d\n", path, vm.ExitCode(), int64(vm.ExitStatus), vm.Steps)
	}

	if cfg.emitAsm {
		output := cfg.output(path, ".asm")
		if err := os.WriteFile(output, []byte(assembly), 0o644); err != nil {
			return errors.Wrapf(err, "failed to write assembly file %q", output)
		}
		fmt.Printf("wrote %d bytes of assembly -> %s\n", len(assembly), output)
		return nil
	}

	exe, err := toolchain.Build(ctx, cfg.tc, assembly)
	if err != nil {
		return errors.Wrap(err, path)
	}
	output := cfg.output(path, "")
	if err := os.WriteFile(output, exe, 0o755); err != nil {
		return errors.Wrapf(err, "failed to write executable %q", output)
	}
	fmt.Printf("built %d bytes -> %s\n", len(exe), output)
	return nil
}

func (cfg buildConfig) output(path, ext string) string {
	if cfg.outPath != "" {
		return cfg.outPath
	}
	return utils.OutputPath(path, ext)
}

// exitStatus picks the process status for a batch: 65 if any file had a
// compile error, 1 for any other failure, 0 otherwise.
func exitStatus(errs []error) int {
	status := 0
	for _, err := range errs {
		if err == nil {
			continue
		}
		if _, ok := errors.Cause(err).(*compiler.Error); ok {
			return exitCompileError
		}
		status = 1
	}
	return status
}
