package utils

import "strings"

// Preview flattens whitespace runs in s to single spaces and cuts the result
// to maxLen runes, appending "..." when anything was dropped. It keeps chunk
// text readable on a single log line.
func Preview(s string, maxLen int) string {
	flat := strings.Join(strings.Fields(s), " ")

	runes := []rune(flat)
	if len(runes) <= maxLen {
		return flat
	}
	return string(runes[:maxLen]) + "..."
}
