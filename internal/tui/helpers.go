package tui

import (
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
)

// urlRe matches http/https URLs in message text.
var urlRe = regexp.MustCompile(`https?://[^\s<>\[\]()]+`)

// cursorBlinkMsg toggles the input cursor on/off.
type cursorBlinkMsg struct{}

func cursorBlinkCmd() tea.Cmd {
	return tea.Tick(450*time.Millisecond, func(time.Time) tea.Msg {
		return cursorBlinkMsg{}
	})
}

// formatTime renders a relative timestamp for list rows.
func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	if time.Since(t) < time.Minute {
		return "just now"
	}
	return humanize.Time(t)
}

// formatChatTime formats a message timestamp as a short wall-clock time (H:MM).
// For messages older than today it shows "Nd ago" to save column space.
func formatChatTime(t time.Time) string {
	now := time.Now()
	local := t.Local()
	y1, mo1, d1 := local.Date()
	y2, mo2, d2 := now.Date()
	if y1 == y2 && mo1 == mo2 && d1 == d2 {
		return fmt.Sprintf("%d:%02d", local.Hour(), local.Minute())
	}
	days := int(now.Sub(t).Hours() / 24)
	if days < 1 {
		days = 1
	}
	return fmt.Sprintf("%dd ago", days)
}

// truncStr truncates a string to maxLen runes, appending an ellipsis if needed.
func truncStr(s string, maxLen int) string {
	if maxLen <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= maxLen {
		return s
	}
	runes := []rune(s)
	return string(runes[:maxLen-1]) + "…"
}

// padLines writes blank lines to fill dead space above sparse message lists.
func padLines(n int, b *strings.Builder) {
	for i := 0; i < n; i++ {
		b.WriteByte('\n')
	}
}

// styleWithLinks renders s with st, turning URLs into clickable OSC 8
// hyperlinks. Links are left unstyled so the escape sequences stay intact.
func styleWithLinks(s string, st lipgloss.Style) string {
	locs := urlRe.FindAllStringIndex(s, -1)
	if len(locs) == 0 {
		return st.Render(s)
	}
	var b strings.Builder
	prev := 0
	for _, loc := range locs {
		if loc[0] > prev {
			b.WriteString(st.Render(s[prev:loc[0]]))
		}
		b.WriteString(hyperlinkOSC8(s[loc[0]:loc[1]]))
		prev = loc[1]
	}
	if prev < len(s) {
		b.WriteString(st.Render(s[prev:]))
	}
	return b.String()
}

// firstURL returns the first http(s) URL in body, or "".
func firstURL(body string) string {
	return urlRe.FindString(body)
}

// hyperlinkOSC8 wraps a URL in OSC 8 escape sequences for clickable terminal hyperlinks.
// Format: ESC ] 8 ; ; URL BEL display-text ESC ] 8 ; ; BEL
func hyperlinkOSC8(url string) string {
	return "\033]8;;" + url + "\a" + url + "\033]8;;\a"
}

// hardWrap scans each line and hard-breaks any that exceed width at the rune boundary.
// This handles long tokens (like URLs) that lipgloss word-wrap can't break.
func hardWrap(s string, width int) string {
	if width <= 0 {
		return s
	}
	lines := strings.Split(s, "\n")
	var result []string
	for _, line := range lines {
		if lipgloss.Width(line) <= width {
			result = append(result, line)
			continue
		}
		runes := []rune(line)
		for len(runes) > 0 {
			end := len(runes)
			for end > 0 && lipgloss.Width(string(runes[:end])) > width {
				end--
			}
			if end == 0 {
				end = 1 // at least one rune per line to avoid infinite loop
			}
			result = append(result, string(runes[:end]))
			runes = runes[end:]
		}
	}
	return strings.Join(result, "\n")
}
