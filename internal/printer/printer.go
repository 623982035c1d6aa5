// Package printer renders the shulker CLI's terminal output. All helpers
// write to stdout except Error, which writes its formatted block to stderr
// and hands a bare error back for cobra to propagate.
package printer

import (
	"errors"
	"fmt"
	"os"

	"github.com/fatih/color"
)

func init() {
	// Keep color on when piped; NO_COLOR turns it off.
	if os.Getenv("NO_COLOR") == "" {
		color.NoColor = false
	}
}

var (
	okColor   = color.New(color.FgGreen)
	warnColor = color.New(color.FgYellow)
	failColor = color.New(color.FgRed, color.Bold)
	stepColor = color.New(color.FgCyan)
)

// Success prints a green check-marked line.
func Success(format string, a ...any) {
	okColor.Printf("✓ %s", fmt.Sprintf(format, a...))
}

// Info prints an uncolored informational line.
func Info(format string, a ...any) {
	fmt.Printf(format, a...)
}

// Step prints a cyan arrow-marked line for progress through a multi-step
// operation.
func Step(format string, a ...any) {
	stepColor.Printf("→ %s", fmt.Sprintf(format, a...))
}

// Warning prints a yellow warning line.
func Warning(format string, a ...any) {
	warnColor.Printf("⚠️  %s", fmt.Sprintf(format, a...))
}

// Error writes a failure block to stderr: the title in red, then the
// explanation, then any suggestions. The returned error carries only the
// title; the CLI layer prints it once as the process's final line.
func Error(title string, explanation string, suggestions []string) error {
	failColor.Fprintf(os.Stderr, "%s\n", title)
	if explanation != "" {
		fmt.Fprintf(os.Stderr, "\n%s\n", explanation)
	}

	switch len(suggestions) {
	case 0:
	case 1:
		fmt.Fprintf(os.Stderr, "\n%s\n", suggestions[0])
	default:
		fmt.Fprintf(os.Stderr, "\nTry one of:\n")
		for _, s := range suggestions {
			fmt.Fprintf(os.Stderr, "  - %s\n", s)
		}
	}

	return errors.New(title)
}

// Println prints a plain line.
func Println(a ...any) {
	fmt.Println(a...)
}

// Printf prints a plain formatted message.
func Printf(format string, a ...any) {
	fmt.Printf(format, a...)
}
