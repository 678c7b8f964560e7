//go:build !windows

package main

import (
	"os"

	"github.com/pkg/term/termios"
	"golang.org/x/sys/unix"
)

// isInteractive reports whether stdin is a terminal.
func isInteractive() bool {
	var tios unix.Termios
	return termios.Tcgetattr(os.Stdin.Fd(), &tios) == nil
}
