package utils

import "strings"

// TruncateForLog flattens s onto one line and cuts it to limit runes, appending an
// ellipsis when something was cut. Labels and answers scraped from forms often carry
// newlines and indentation that would break log lines and report tables.
func TruncateForLog(s string, limit int) string {
	if limit <= 0 {
		return ""
	}
	s = strings.Join(strings.Fields(s), " ")
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return strings.TrimRight(string(runes[:limit]), " ") + "..."
}
