package ui

import (
	"fmt"
	"io"
	"os"
)

var (
	reset = "\033[0m"
	bold  = "\033[1m"

	fgGray  = "\033[90m"
	fgGreen = "\033[32m"
	fgBlue  = "\033[34m"
	fgRed   = "\033[31m"

	symCheck = "✔"
	symCross = "✖"
)

var (
	forceColor   bool
	disableColor bool
)

// SetColorForcing overrides TTY detection: force colors even when stdout is
// not a terminal, or disable them entirely.
func SetColorForcing(force, disable bool) {
	forceColor = force
	disableColor = disable
}

func isTTY() bool {
	fi, err := os.Stdout.Stat()
	if err != nil {
		return false
	}
	return (fi.Mode() & os.ModeCharDevice) != 0
}

// C wraps s in color when the output supports it.
func C(color, s string) string {
	if disableColor || color == "" {
		return s
	}
	if forceColor || isTTY() {
		return color + s + reset
	}
	return s
}

var (
	stdout io.Writer = os.Stdout
	stderr io.Writer = os.Stderr
)

// SetOutput redirects OK and Fail. Nil keeps the current writer.
func SetOutput(out, errOut io.Writer) {
	if out != nil {
		stdout = out
	}
	if errOut != nil {
		stderr = errOut
	}
}

// SetColorMode applies an auto, always or never color setting.
func SetColorMode(mode string) error {
	switch mode {
	case "", "auto":
		SetColorForcing(false, false)
	case "always":
		SetColorForcing(true, false)
	case "never":
		SetColorForcing(false, true)
	default:
		return fmt.Errorf("unknown color mode %q", mode)
	}
	return nil
}

func OK(msg string)   { fmt.Fprintln(stdout, C(current.Success, symCheck+" "+msg)) }
func Fail(msg string) { fmt.Fprintln(stderr, C(current.Error, symCross+" "+msg)) }
