package tui

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// maxInputLen is the maximum number of runes allowed in a flow input.
const maxInputLen = 256

// editRune processes a keystroke for inline text editing.
// Handles backspace (rune-aware) and single printable characters.
// Returns the text unchanged for non-printable keys (enter, esc, etc.).
// Input is clamped to maxInputLen runes.
func editRune(text string, key string) string {
	switch key {
	case "backspace":
		if len(text) > 0 {
			runes := []rune(text)
			return string(runes[:len(runes)-1])
		}
		return text
	default:
		if utf8.RuneCountInString(key) == 1 {
			if utf8.RuneCountInString(text) >= maxInputLen {
				return text
			}
			return text + key
		}
		return text
	}
}

// appendText appends pasted text, dropping control characters and clamping
// to maxInputLen runes.
func appendText(text, pasted string) string {
	n := utf8.RuneCountInString(text)
	var b strings.Builder
	b.WriteString(text)
	for _, r := range pasted {
		if n >= maxInputLen {
			break
		}
		if unicode.IsControl(r) {
			continue
		}
		b.WriteRune(r)
		n++
	}
	return b.String()
}

// truncateToHeight limits output to maxLines newline-delimited lines.
// Returns the original string if it fits or maxLines is <= 0.
func truncateToHeight(s string, maxLines int) string {
	if maxLines <= 0 {
		return s
	}
	n := 0
	for i := 0; i < len(s); i++ {
		if s[i] == '\n' {
			n++
			if n >= maxLines {
				return s[:i+1]
			}
		}
	}
	return s
}

// renderInput renders a prompt line with a blinking cursor.
func renderInput(label, value, placeholder string, masked bool, frame int) string {
	shown := value
	if masked {
		shown = maskSecret(value)
	}
	cursor := " "
	if (frame/4)%2 == 0 {
		cursor = accentStyle.Render("█")
	}
	line := " " + inputPromptStyle.Render("> ")
	if shown == "" {
		line += cursor + inputPlaceholderStyle.Render(placeholder)
	} else {
		line += normalStyle.Render(shown) + cursor
	}
	return " " + sectionHeaderStyle.Render(label) + "\n" + line
}
