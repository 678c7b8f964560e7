// Command repl reads one Lox expression per line, prints its tree, then
// compiles it and runs it on the emulator.
package main

import (
	"bufio"
	"fmt"
	"io"
	"log"
	"os"

	"complox/pkg/compiler"
)

func main() {
	log.SetFlags(0)

	prompt := ""
	if isInteractive() {
		prompt = "> "
	}
	if err := repl(os.Stdin, os.Stdout, compiler.Options{}, prompt); err != nil {
		log.Fatalf("read error: %v", err)
	}
}

// repl evaluates each line of in. Compile and run errors are printed and
// the loop goes on; only a read failure ends it early.
func repl(in io.Reader, out io.Writer, opts compiler.Options, prompt string) error {
	sc := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, prompt)
		if !sc.Scan() {
			break
		}
		line := sc.Text()
		if line == "" {
			continue
		}
		evalLine(out, line, opts)
	}
	if prompt != "" {
		fmt.Fprintln(out)
	}
	return sc.Err()
}

func evalLine(out io.Writer, line string, opts compiler.Options) {
	expr, err := compiler.Parse(line)
	if err != nil {
		fmt.Fprintln(out, err)
		return
	}
	fmt.Fprintln(out, expr)

	vm, err := compiler.Run(line, opts)
	if err != nil {
		fmt.Fprintln(out, err)
		return
	}
	fmt.Fprintf(out, "= %d (exit %d)\n", int64(vm.ExitStatus), vm.ExitCode())
}
