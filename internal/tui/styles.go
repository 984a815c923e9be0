package tui

import (
	"fmt"
	"hash/fnv"
	"math"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/chitchat/chitchat/pkg/domain"
)

// Shimmer animation for the CHITCHAT logo.
type shimmerTickMsg time.Time

func shimmerTickCmd() tea.Cmd {
	return tea.Tick(80*time.Millisecond, func(t time.Time) tea.Msg {
		return shimmerTickMsg(t)
	})
}

// renderShimmerLogo renders "C H I T C H A T" as a flowing wave of teal light.
// Deep teal (#0f3a3a) -> bright aqua (#5eead4).
func renderShimmerLogo(frame int) string {
	const text = "CHITCHAT"
	n := len(text)

	var out strings.Builder
	t := float64(frame)

	for i := 0; i < n; i++ {
		x := float64(i) / float64(n-1)

		phase := t*0.1 - x*3.0
		phase += math.Sin(t*0.023) * 2.0

		b := math.Sin(phase)*0.5 + 0.5
		b = math.Pow(b, 1.3)

		tide := math.Sin(t*0.035) * 0.12
		b = b*0.75 + tide + 0.18

		if b > 1.0 {
			b = 1.0
		} else if b < 0.05 {
			b = 0.05
		}

		r := clampByte(15 + b*(94-15))
		g := clampByte(58 + b*(234-58))
		bl := clampByte(58 + b*(212-58))

		s := lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color(fmt.Sprintf("#%02X%02X%02X", r, g, bl)))
		out.WriteString(s.Render(string(text[i])))

		if i < n-1 {
			out.WriteString("  ")
		}
	}

	return out.String()
}

func clampByte(v float64) int {
	if v > 255 {
		return 255
	}
	if v < 0 {
		return 0
	}
	return int(v)
}

var (
	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#8890a0"))

	selectedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#e4e4ec")).
			Bold(true)

	normalStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#c0c4d0"))

	metaStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#505868"))

	// Help bar
	helpKeyStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#8890a0"))

	helpLabelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#505868"))

	accentStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#2dd4bf"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#b45555"))

	warnStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#d4a844"))

	sectionHeaderStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("#606878"))

	inputPlaceholderStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("#343c4a"))

	chatSelfNameStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("#e4e4ec"))

	chatSelfTextStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("#c0c4d0"))

	chatTextStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#8890a0"))

	chatSepStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#404858"))

	chatSysStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#404858")).
			Italic(true)

	presenceDotStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("#34d474"))

	botStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#c084e0")).
			Bold(true)

	selectedRowBg = lipgloss.NewStyle().Background(lipgloss.Color("#1e1e2a"))

	// Sender name colors, picked by user id.
	nameColors = []lipgloss.Color{
		lipgloss.Color("#43e88c"),
		lipgloss.Color("#f0944a"),
		lipgloss.Color("#b8ccdf"),
		lipgloss.Color("#c084e0"),
		lipgloss.Color("#3ecce4"),
		lipgloss.Color("#d4a844"),
		lipgloss.Color("#60a0e0"),
		lipgloss.Color("#e06060"),
	}
)

// UserStyle returns a bold style with a stable color for the given user.
// Bots always use the bot color.
func UserStyle(u domain.User) lipgloss.Style {
	if u.IsBot() {
		return botStyle
	}
	if u.ID == "" {
		return lipgloss.NewStyle().Foreground(lipgloss.Color("#8890a0")).Bold(true)
	}
	h := fnv.New32a()
	_, _ = h.Write([]byte(u.ID))
	return lipgloss.NewStyle().Foreground(nameColors[h.Sum32()%uint32(len(nameColors))]).Bold(true)
}

// KindBadge returns a short badge for a room kind, e.g. "[group]".
func KindBadge(kind domain.RoomKind) string {
	switch kind {
	case domain.RoomGroup:
		return metaStyle.Render("[group]")
	case domain.RoomBot:
		return botStyle.Render("[bot]")
	default:
		return ""
	}
}

// presenceDot renders a green dot for online users and a dim one otherwise.
func presenceDot(online bool) string {
	if online {
		return presenceDotStyle.Render("●")
	}
	return metaStyle.Render("○")
}

// stateMark marks messages that are not yet (or never will be) confirmed.
func stateMark(m domain.Message) string {
	switch m.State {
	case domain.StateProvisional:
		return metaStyle.Render(" (sending…)")
	case domain.StateDiscarded:
		return errorStyle.Render(" (not sent)")
	}
	if m.Edited() && !m.Deleted() {
		return metaStyle.Render(" (edited)")
	}
	return ""
}

// helpEntry renders a single "key label" pair for help bars.
func helpEntry(key, label string) string {
	return helpKeyStyle.Render(key) + " " + helpLabelStyle.Render(label)
}

// helpView renders the help overlay.
func helpView(version string) string {
	title := lipgloss.NewStyle().
		Foreground(lipgloss.Color("#2dd4bf")).
		Bold(true).
		Render("C H I T C H A T")

	cmdStyle := lipgloss.NewStyle().Bold(true)
	descStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	sectionStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Bold(true)

	commands := []struct{ cmd, desc string }{
		{"chitchat", "Open the chat (interactive TUI)"},
		{"chitchat login", "Sign in with email and password"},
		{"chitchat register", "Create an account"},
		{"chitchat logout", "Clear your session"},
		{"chitchat send", "Send a message to a room"},
		{"chitchat friends", "Manage friends and requests"},
		{"chitchat bots", "Configure and list AI bots"},
		{"chitchat files", "Upload and download attachments"},
	}
	keys := []struct{ key, desc string }{
		{"1 / 2", "Rooms / Friends"},
		{"enter", "Open room, accept request, send"},
		{"i", "Write a message"},
		{"j / k", "Move, select a message"},
		{"y", "Copy selected message"},
		{"o", "Open link in selected message"},
		{"e / d", "Edit / delete your message"},
		{"r", "Retry a message that was not sent"},
		{"b", "Chat with a bot"},
	}

	var b strings.Builder
	fmt.Fprintf(&b, "\n  %s  %s\n\n", title, metaStyle.Render(version))

	fmt.Fprintf(&b, "  %s\n", sectionStyle.Render("Commands"))
	for _, c := range commands {
		fmt.Fprintf(&b, "    %s  %s\n", cmdStyle.Render(fmt.Sprintf("%-20s", c.cmd)), descStyle.Render(c.desc))
	}

	fmt.Fprintf(&b, "\n  %s\n", sectionStyle.Render("Keys"))
	for _, k := range keys {
		fmt.Fprintf(&b, "    %s  %s\n", cmdStyle.Render(fmt.Sprintf("%-20s", k.key)), descStyle.Render(k.desc))
	}
	return b.String()
}
