// Package cli provides terminal formatting helpers for the fpverify CLI.
package cli

import (
	"os"
	"strings"
)

// colorEnabled is false when NO_COLOR env var is set (per no-color.org).
var colorEnabled = os.Getenv("NO_COLOR") == ""

func wrap(code, s string) string {
	if !colorEnabled {
		return s
	}
	return "\033[" + code + "m" + s + "\033[0m"
}

// Green wraps s in ANSI green.
func Green(s string) string { return wrap("32", s) }

// Yellow wraps s in ANSI yellow.
func Yellow(s string) string { return wrap("33", s) }

// Red wraps s in ANSI red.
func Red(s string) string { return wrap("31", s) }

// Dim wraps s in ANSI dim.
func Dim(s string) string { return wrap("2", s) }

// Status colours a PASS/FAIL/SKIP/ERROR label.
func Status(s string) string {
	switch s {
	case "PASS":
		return Green(s)
	case "SKIP":
		return Yellow(s)
	case "FAIL", "ERROR":
		return Red(s)
	default:
		return s
	}
}

// DotPad pads name with dots to the given width.
// Example: DotPad("verify-ospf-fp", 24) → "verify-ospf-fp ........."
func DotPad(name string, width int) string {
	if width <= 0 || len(name) >= width-1 {
		return name
	}
	dots := width - len(name) - 1
	return name + " " + strings.Repeat(".", dots)
}
