package ui

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
)

// ErrorLevel is the severity of a message
type ErrorLevel int

const (
	ErrorLevelError ErrorLevel = iota
	ErrorLevelWarning
	ErrorLevelInfo
)

// ErrorOptions configures FormatError
type ErrorOptions struct {
	Level        ErrorLevel
	Context      string
	Problem      string
	Consequence  string
	HelpCommands []string
	NoColor      bool
}

// FormatError formats a message with a header, an optional consequence and
// help commands.
//
// Example output:
//
//	❌ GENERATION FAILED: internal/app/users/model.go already exists
//	   internal/app/users/model.go already exists
//
//	   → Overwrite existing files: scaffold make resource User --force
func FormatError(opts ErrorOptions) string {
	var b strings.Builder

	var headerColor, bodyColor *color.Color
	var symbol string
	switch opts.Level {
	case ErrorLevelWarning:
		headerColor = newColor(opts.NoColor, color.FgYellow, color.Bold)
		bodyColor = newColor(opts.NoColor, color.FgYellow)
		symbol = "⚠️"
	case ErrorLevelInfo:
		headerColor = newColor(opts.NoColor, color.FgCyan, color.Bold)
		bodyColor = newColor(opts.NoColor, color.FgCyan)
		symbol = "ℹ️"
	default:
		headerColor = newColor(opts.NoColor, color.FgRed, color.Bold)
		bodyColor = newColor(opts.NoColor, color.FgRed)
		symbol = "❌"
	}

	if opts.Context != "" {
		headerColor.Fprintf(&b, "%s %s: %s\n", symbol, strings.ToUpper(opts.Context), opts.Problem)
		bodyColor.Fprintf(&b, "   %s\n", opts.Problem)
	} else {
		headerColor.Fprintf(&b, "%s %s\n", symbol, opts.Problem)
	}

	if opts.Consequence != "" {
		b.WriteString("\n")
		bodyColor.Fprintf(&b, "   %s\n", opts.Consequence)
	}

	if len(opts.HelpCommands) > 0 {
		b.WriteString("\n")
		cyan := newColor(opts.NoColor, color.FgCyan)
		for _, cmd := range opts.HelpCommands {
			cyan.Fprintf(&b, "   → %s\n", cmd)
		}
	}

	return b.String()
}

// WriteError writes a formatted message to w
func WriteError(w io.Writer, opts ErrorOptions) {
	fmt.Fprint(w, FormatError(opts))
}

// FormatSuccess formats a success message
func FormatSuccess(message string, noColor bool) string {
	return newColor(noColor, color.FgGreen, color.Bold).Sprintf("✓ %s", message)
}

// WriteSuccess writes a success message line to w
func WriteSuccess(w io.Writer, message string, noColor bool) {
	fmt.Fprintln(w, FormatSuccess(message, noColor))
}

// GenerateError formats a failed `make` run
func GenerateError(message string, noColor bool) string {
	return FormatError(ErrorOptions{
		Level:   ErrorLevelError,
		Context: "GENERATION FAILED",
		Problem: message,
		HelpCommands: []string{
			"Overwrite existing files: scaffold make resource <Name> --force",
			"Get help: scaffold make resource --help",
		},
		NoColor: noColor,
	})
}

// ConfigError formats an invalid or incomplete configuration
func ConfigError(message string, noColor bool) string {
	return FormatError(ErrorOptions{
		Level:   ErrorLevelError,
		Context: "CONFIGURATION ERROR",
		Problem: message,
		HelpCommands: []string{
			"View config: scaffold config",
			"Set the module path: module: example.com/app in scaffold.yaml",
		},
		NoColor: noColor,
	})
}

// DatabaseError formats a failed database check
func DatabaseError(message string, noColor bool) string {
	return FormatError(ErrorOptions{
		Level:       ErrorLevelError,
		Context:     "DATABASE ERROR",
		Problem:     message,
		Consequence: "Generated repositories cannot reach this database until the URL is fixed.",
		HelpCommands: []string{
			"Set the URL: database.url in scaffold.yaml or SCAFFOLD_DATABASE_URL",
		},
		NoColor: noColor,
	})
}

// Warning formats a warning
func Warning(message string, noColor bool) string {
	return FormatError(ErrorOptions{Level: ErrorLevelWarning, Problem: message, NoColor: noColor})
}

// Info formats an informational message
func Info(message string, noColor bool) string {
	return FormatError(ErrorOptions{Level: ErrorLevelInfo, Problem: message, NoColor: noColor})
}
