package tui

import (
	"unicode/utf8"

	tea "github.com/charmbracelet/bubbletea"
)

// maxInputLen is the maximum number of runes allowed in chat and form inputs.
const maxInputLen = 2000

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
	case "space":
		key = " "
	}
	if utf8.RuneCountInString(key) == 1 {
		return insertText(text, key)
	}
	return text
}

// insertText appends s to text, clamped to maxInputLen runes.
func insertText(text, s string) string {
	room := maxInputLen - utf8.RuneCountInString(text)
	if room <= 0 {
		return text
	}
	if r := []rune(s); len(r) > room {
		s = string(r[:room])
	}
	return text + s
}

// editKey applies a key press to text. Pasted and typed runes are inserted
// whole; everything else goes through editRune.
func editKey(text string, msg tea.KeyMsg) string {
	if msg.Type == tea.KeyRunes {
		return insertText(text, string(msg.Runes))
	}
	return editRune(text, msg.String())
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

// renderInputLine renders an inline text input with a label, cursor blink
// and a placeholder when empty.
func renderInputLine(label, input, placeholder string, focused, cursorOn bool) string {
	const timeIndent = "          " // 10 spaces, matches timestamp + gap

	sep := chatSepStyle.Render(" · ")
	namePart := chatSelfNameStyle.Render(label)
	if !focused {
		if input == "" {
			return timeIndent + namePart + sep + inputPlaceholderStyle.Render(placeholder)
		}
		return timeIndent + namePart + sep + dimStyle.Render(input)
	}
	cursor := " "
	if cursorOn {
		cursor = accentStyle.Render("█")
	}
	if input == "" {
		return timeIndent + namePart + sep + cursor
	}
	return timeIndent + namePart + sep + chatSelfTextStyle.Render(input) + cursor
}
