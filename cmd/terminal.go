package cmd

import (
	"os"

	"golang.org/x/term"
)

const (
	defaultWrapWidth = 100
	minWrapWidth     = 40
)

// stdinIsTerminal reports whether stdin is interactive, i.e. nothing was
// piped in.
func stdinIsTerminal() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}

// wrapWidth returns the width rendered Markdown is wrapped to: the terminal
// width when stdout is one, otherwise defaultWrapWidth.
func wrapWidth() int {
	width, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || width <= 0 {
		return defaultWrapWidth
	}
	return max(width, minWrapWidth)
}
