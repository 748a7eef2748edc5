package main

import (
	"fmt"
	"os"
)

const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorCyan   = "\033[36m"
	colorBold   = "\033[1m"
)

// statusLabelWidth aligns the label column across multi-line status
// output (status, stats, diagnose summary, impact).
const statusLabelWidth = 16

func colorize(color, text string) string {
	if noColor {
		return text
	}
	return color + text + colorReset
}

// printMark writes a one-line message to stderr prefixed with a
// colored marker glyph.
func printMark(color, mark, format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintln(os.Stderr, colorize(color, mark+" "+msg))
}

func printSuccess(format string, args ...any) {
	printMark(colorGreen, "✓", format, args...)
}

func printError(format string, args ...any) {
	printMark(colorRed, "✗", format, args...)
}

func printWarning(format string, args ...any) {
	printMark(colorYellow, "⚠", format, args...)
}

func printStep(format string, args ...any) {
	printMark(colorCyan, "→", format, args...)
}

func printStatus(label string, format string, args ...any) {
	fmt.Fprintln(os.Stderr, statusLine(label, fmt.Sprintf(format, args...)))
}

// statusLine pads the label before colorizing so escape codes do not
// skew the column.
func statusLine(label, val string) string {
	padded := fmt.Sprintf("%-*s", statusLabelWidth, label+":")
	return "  " + colorize(colorBold, padded) + " " + val
}
