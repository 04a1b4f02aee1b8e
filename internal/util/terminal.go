package util

import (
	"os"

	"golang.org/x/term"
)

// Interactive reports whether stdout is a terminal and output is not quiet
func Interactive() bool {
	return !IsQuiet() && term.IsTerminal(int(os.Stdout.Fd()))
}

// ProgressWidth sizes a progress bar to a third of the terminal, clamped
// to 20..40 columns
func ProgressWidth() int {
	width, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil {
		return 40
	}
	return min(max(width/3, 20), 40)
}
