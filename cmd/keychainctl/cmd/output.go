package cmd

import (
	"fmt"
	"os"

	"github.com/fatih/color"
)

var (
	// Color definitions.
	successColor = color.New(color.FgGreen)
	errorColor   = color.New(color.FgRed)
	warningColor = color.New(color.FgYellow)
	boldColor    = color.New(color.Bold)
	dimColor     = color.New(color.Faint)
)

// Success prints a success message in green.
func Success(format string, a ...any) {
	successColor.Fprintf(os.Stdout, "✓ "+format+"\n", a...)
}

// Error prints an error message in red.
func Error(format string, a ...any) {
	errorColor.Fprintf(os.Stderr, "✗ "+format+"\n", a...)
}

// Warning prints a warning message in yellow.
func Warning(format string, a ...any) {
	warningColor.Fprintf(os.Stdout, "⚠ "+format+"\n", a...)
}

// Bold returns text in bold.
func Bold(format string, a ...any) string {
	return boldColor.Sprintf(format, a...)
}

// Dim returns text in dim/faint style.
func Dim(format string, a ...any) string {
	return dimColor.Sprintf(format, a...)
}

// PromptConfirm asks for user confirmation and returns true if confirmed.
func PromptConfirm(message string) bool {
	fmt.Printf("%s [y/N]: ", message)

	var response string
	if _, err := fmt.Scanln(&response); err != nil {
		return false
	}
	return response == "y" || response == "Y" || response == "yes" || response == "Yes"
}

// PrintKeyValue prints a key-value pair with the key highlighted.
func PrintKeyValue(key, value string) {
	fmt.Printf("%s: %s\n", boldColor.Sprint(key), value)
}
