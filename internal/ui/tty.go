package ui

import (
	"os"

	"golang.org/x/term"
)

// Interactive reports whether both stdin and stderr are terminals. Spinners
// and prompts only run when this holds.
func Interactive() bool {
	return term.IsTerminal(int(os.Stdin.Fd())) && term.IsTerminal(int(os.Stderr.Fd()))
}
