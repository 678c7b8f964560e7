// Command dump prints every stage of the pipeline for one source file:
// the source, its tokens, the expression tree and the generated assembly.
package main

import (
	"flag"
	"fmt"
	"os"

	"complox/pkg/compiler"
)

const testSource = `-123 * (45 - 1) >= !true
`

func main() {
	optimize := flag.Bool("O", false, "use the optimising code generator")
	flag.Parse()

	src := testSource
	if flag.NArg() > 0 {
		data, err := os.ReadFile(flag.Arg(0))
		if err != nil {
			fmt.Fprintln(os.Stderr, "read error:", err)
			os.Exit(1)
		}
		src = string(data)
	}

	fmt.Printf("Source:\n%s\n", src)

	// Lex, reporting every bad character rather than stopping at the first
	tokens, errs := compiler.LexAll(src)
	fmt.Printf("Tokens (%d)\n", len(tokens))
	for _, tok := range tokens {
		fmt.Println(" ", tok)
	}
	fmt.Println()
	if len(errs) > 0 {
		for _, err := range errs {
			fmt.Fprintln(os.Stderr, "lex error:", err)
		}
		os.Exit(65)
	}

	// Parse
	expr, err := compiler.Parse(src)
	if err != nil {
		fmt.Fprintln(os.Stderr, "parse error:", err)
		os.Exit(65)
	}

	fmt.Println("AST")
	fmt.Println(" ", expr)
	fmt.Println()

	// Code generation
	prog, err := compiler.Generate(expr, compiler.Options{Optimize: *optimize})
	if err != nil {
		fmt.Fprintln(os.Stderr, "codegen error:", err)
		os.Exit(65)
	}

	fmt.Println("Generated Assembly")
	fmt.Print(prog)
}
