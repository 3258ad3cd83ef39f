// Package cli provides shared formatting helpers for the newtrace CLI.
package cli

import (
	"os"

	"golang.org/x/term"
)

// colorEnabled is false when NO_COLOR env var is set (per no-color.org) or
// stdout is not a terminal.
var colorEnabled = os.Getenv("NO_COLOR") == "" && term.IsTerminal(int(os.Stdout.Fd()))

// SetColor forces ANSI colour on or off.
func SetColor(enabled bool) {
	colorEnabled = enabled
}

// ColorEnabled reports whether colour output is on.
func ColorEnabled() bool {
	return colorEnabled
}

// Green wraps s in ANSI green. Returns s unchanged when colour is off.
func Green(s string) string {
	if !colorEnabled {
		return s
	}
	return "\033[32m" + s + "\033[0m"
}

// Yellow wraps s in ANSI yellow. Returns s unchanged when colour is off.
func Yellow(s string) string {
	if !colorEnabled {
		return s
	}
	return "\033[33m" + s + "\033[0m"
}

// Red wraps s in ANSI red. Returns s unchanged when colour is off.
func Red(s string) string {
	if !colorEnabled {
		return s
	}
	return "\033[31m" + s + "\033[0m"
}

// Bold wraps s in ANSI bold. Returns s unchanged when colour is off.
func Bold(s string) string {
	if !colorEnabled {
		return s
	}
	return "\033[1m" + s + "\033[0m"
}

// Dim wraps s in ANSI dim. Returns s unchanged when colour is off.
func Dim(s string) string {
	if !colorEnabled {
		return s
	}
	return "\033[2m" + s + "\033[0m"
}
