// Package output provides formatters for CLI output.
package output

import (
	"fmt"
	"io"
	"strings"

	"tasker/internal/api"
)

// FormatTask formats a one-line task entry.
// Format: "{ID:>4}  [x]  {TITLE}\n" with "[ ]" for open tasks.
func FormatTask(w io.Writer, t api.Task) {
	fmt.Fprintf(w, "%4d  %s  %s\n", t.ID, checkbox(t.Completed), normalizeTitle(t.Title))
}

// FormatTaskDetail formats a task with its description.
func FormatTaskDetail(w io.Writer, t api.Task) {
	fmt.Fprintf(w, "%4d  %s  %s\n", t.ID, checkbox(t.Completed), normalizeTitle(t.Title))
	if strings.TrimSpace(t.Description) != "" {
		fmt.Fprintf(w, "      %s\n", normalizeTitle(t.Description))
	}
}

// FormatUser formats the signed-in user line.
func FormatUser(w io.Writer, u api.User) {
	fmt.Fprintf(w, "%s <%s>\n", u.Username, u.Email)
}

func checkbox(completed bool) string {
	if completed {
		return "[x]"
	}
	return "[ ]"
}

// normalizeTitle normalizes text for single-line display.
// - Empty or whitespace-only text becomes "(untitled)"
// - Newlines are replaced with spaces
func normalizeTitle(s string) string {
	s = strings.ReplaceAll(s, "\r", " ")
	s = strings.ReplaceAll(s, "\n", " ")
	if strings.TrimSpace(s) == "" {
		return "(untitled)"
	}
	return s
}
