package tui

import (
	"strings"
	"unicode/utf8"
)

// truncStr truncates a string to maxLen runes, appending an ellipsis if needed.
func truncStr(s string, maxLen int) string {
	if maxLen <= 0 || utf8.RuneCountInString(s) <= maxLen {
		return s
	}
	runes := []rune(s)
	return string(runes[:maxLen-1]) + "…"
}

// maskSecret hides typed secrets behind one bullet per rune.
func maskSecret(s string) string {
	return strings.Repeat("•", utf8.RuneCountInString(s))
}
