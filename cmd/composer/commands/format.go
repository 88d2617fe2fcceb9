package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"github.com/stackfleet/composer/pkg/engine"
)

var (
	successColor = color.New(color.FgGreen, color.Bold)
	warningColor = color.New(color.FgYellow, color.Bold)
	errorColor   = color.New(color.FgRed, color.Bold)
	infoColor    = color.New(color.FgCyan)
	headerColor  = color.New(color.FgBlue, color.Bold)
	labelColor   = color.New(color.FgWhite, color.Bold)
	dimColor     = color.New(color.FgHiBlack)
)

// printSuccess prints a message with a checkmark
func printSuccess(w io.Writer, format string, args ...interface{}) {
	_, _ = successColor.Fprintf(w, "✓ "+format+"\n", args...)
}

// printWarning prints a message with a warning symbol
func printWarning(w io.Writer, format string, args ...interface{}) {
	_, _ = warningColor.Fprintf(w, "⚠ "+format+"\n", args...)
}

// printError prints a message with a cross
func printError(w io.Writer, format string, args ...interface{}) {
	_, _ = errorColor.Fprintf(w, "✗ "+format+"\n", args...)
}

// printField prints "Label:" padded to a fixed column followed by value.
func printField(w io.Writer, label, value string) {
	_, _ = labelColor.Fprintf(w, "%-14s", label+":")
	_, _ = fmt.Fprintln(w, value)
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// plural returns "1 stack" or "3 stacks".
func plural(n int, word string) string {
	if n == 1 {
		return fmt.Sprintf("%d %s", n, word)
	}
	return fmt.Sprintf("%d %ss", n, word)
}

func yesNo(v bool) string {
	if v {
		return "yes"
	}
	return "no"
}

func orDefault(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}

func statusColor(state engine.StatusState) *color.Color {
	switch state {
	case engine.StatusRunning:
		return successColor
	case engine.StatusPartial:
		return warningColor
	case engine.StatusStopped:
		return dimColor
	default:
		return errorColor
	}
}

// printStackLines renders one aligned line per stack:
// name, category, tags and the auto-start marker.
func printStackLines(w io.Writer, stacks []*engine.Stack) {
	nameWidth, catWidth := 0, 0
	for _, s := range stacks {
		nameWidth = max(nameWidth, len(s.Name))
		catWidth = max(catWidth, len(orDefault(s.CategoryLabel(), "-")))
	}

	for _, s := range stacks {
		line := fmt.Sprintf("  %-*s  %-*s", nameWidth, s.Name, catWidth, orDefault(s.CategoryLabel(), "-"))
		if len(s.Tags) > 0 {
			line += "  " + dimColor.Sprint("["+strings.Join(s.Tags, ", ")+"]")
		}
		if s.AutoStart {
			line += "  " + successColor.Sprint("● auto-start")
		}
		_, _ = fmt.Fprintln(w, strings.TrimRight(line, " "))
	}
}

func printIssue(w io.Writer, issue engine.Issue) {
	c := errorColor
	if issue.Severity == engine.SeverityWarning {
		c = warningColor
	}
	_, _ = fmt.Fprintf(w, "  %s %s: %s\n", c.Sprint(issue.Marker()), issue.Stack, issue.Message)
}
