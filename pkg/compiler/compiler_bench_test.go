package compiler

import (
	"strings"
	"testing"
)

// benchSource is a long expression that touches every operator.
var benchSource = func() string {
	var sb strings.Builder
	sb.WriteString("1")
	for i := 0; i < 100; i++ {
		sb.WriteString(" + (2 * 3 - -4) / 2 == !(5 >= 6) != 7 < 8")
	}
	return sb.String()
}()

func BenchmarkLex(b *testing.B) {
	for i := 0; i < b.N; i++ {
		if _, err := Lex(benchSource); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkParse(b *testing.B) {
	for i := 0; i < b.N; i++ {
		if _, err := Parse(benchSource); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkCompile(b *testing.B) {
	for i := 0; i < b.N; i++ {
		if _, err := Compile(benchSource, Options{}); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkRun(b *testing.B) {
	for i := 0; i < b.N; i++ {
		if _, err := Run(benchSource, Options{Optimize: true}); err != nil {
			b.Fatal(err)
		}
	}
}
