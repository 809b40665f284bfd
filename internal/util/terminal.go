package util

import (
	"os"

	"golang.org/x/term"
)

// IsTerminal checks if the given file descriptor is a terminal
func IsTerminal(fd uintptr) bool {
	return term.IsTerminal(int(fd))
}

// ShowProgressBar reports whether an interactive progress bar should replace
// periodic log lines: stderr must be a terminal and quiet mode off.
func ShowProgressBar() bool {
	return !IsQuiet() && IsTerminal(os.Stderr.Fd())
}
