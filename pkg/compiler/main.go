// Package compiler provides the Lox expression scanner, parser, and the code
// generator that lowers expressions onto an x86-64 evaluation stack.
//
// Pipeline: source → Lexer → Parser → Expr → Generate → x86.Program → NASM text
package compiler
