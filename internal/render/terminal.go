package render

import (
	"os"

	"golang.org/x/term"
)

const (
	// DefaultWidth is the fallback width when detection fails
	DefaultWidth = 80

	// MinWidth is the minimum width used for wrapping
	MinWidth = 40
)

// IsStdoutTTY reports whether stdout is a terminal.
func IsStdoutTTY() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}

// IsStdinTTY reports whether stdin is a terminal.
func IsStdinTTY() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}

// Width returns the width of the terminal on stdout, clamped to MinWidth.
func Width() int {
	width, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || width <= 0 {
		return DefaultWidth
	}
	if width < MinWidth {
		return MinWidth
	}
	return width
}
