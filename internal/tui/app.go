package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/chitchat/chitchat/pkg/domain"
	"github.com/chitchat/chitchat/pkg/store"
)

type view int

const (
	viewRooms view = iota
	viewFriends
)

// refreshInterval is how often the app asks the stores to re-sync. The
// stores rate-limit these calls themselves.
const refreshInterval = 5 * time.Second

// changeMsg wraps a store change notification.
type changeMsg store.Change

type refreshTickMsg time.Time

func refreshTickCmd() tea.Cmd {
	return tea.Tick(refreshInterval, func(t time.Time) tea.Msg {
		return refreshTickMsg(t)
	})
}

// waitForChange blocks on the shared change channel and delivers one change.
func waitForChange(ch <-chan store.Change) tea.Cmd {
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		c, ok := <-ch
		if !ok {
			return nil
		}
		return changeMsg(c)
	}
}

// Deps wires the app to the client-side stores.
type Deps struct {
	Session *store.Session
	Rooms   *store.Rooms
	Dir     *store.Directory
	Bots    BotLister
	Version string
}

// App is the root Bubbletea model.
type App struct {
	roomsSt  *store.Rooms
	dir      *store.Directory
	changes  <-chan store.Change
	version  string
	self     domain.User
	view     view
	rooms    roomsModel
	friends  friendsModel
	helpOpen bool
	width    int
	height   int
	frame    int // logo shimmer animation frame
}

// NewApp creates a new TUI application. The session should already be
// authenticated.
func NewApp(d Deps) App {
	a := App{
		roomsSt: d.Rooms,
		dir:     d.Dir,
		version: d.Version,
		friends: newFriendsModel(d.Dir),
	}
	if d.Session != nil {
		a.self, _ = d.Session.Current()
	}
	if d.Rooms != nil {
		a.changes = d.Rooms.Changes()
	}
	a.rooms = newRoomsModel(d.Rooms, d.Bots, a.self.ID)
	return a
}

func (a App) Init() tea.Cmd {
	cmds := []tea.Cmd{shimmerTickCmd(), refreshTickCmd(), waitForChange(a.changes)}
	if a.roomsSt != nil {
		cmds = append(cmds, a.rooms.snapshot())
	}
	if a.dir != nil {
		cmds = append(cmds, a.friends.snapshot())
	}
	return tea.Batch(cmds...)
}

func (a App) refresh() tea.Cmd {
	r, d := a.roomsSt, a.dir
	return func() tea.Msg {
		ctx := context.Background()
		if r != nil {
			r.Refresh(ctx)
		}
		if d != nil {
			d.Refresh(ctx)
		}
		return nil
	}
}

// onChange picks the snapshots worth re-reading for a change.
func (a App) onChange(c store.Change) tea.Cmd {
	var cmds []tea.Cmd
	switch c.Kind {
	case store.ChangeRooms, store.ChangeMessages, store.ChangeTyping:
		cmds = append(cmds, a.rooms.snapshot())
	case store.ChangeFriends, store.ChangeRequests:
		cmds = append(cmds, a.friends.snapshot())
	case store.ChangePresence:
		cmds = append(cmds, a.rooms.snapshot(), a.friends.snapshot())
	}
	cmds = append(cmds, waitForChange(a.changes))
	return tea.Batch(cmds...)
}

func (a App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		// Chrome: header(2) + tabs(1) + help(1) = 4 lines
		bodyMsg := tea.WindowSizeMsg{Width: msg.Width, Height: msg.Height - 4}
		a.rooms, _ = a.rooms.Update(bodyMsg)
		a.friends, _ = a.friends.Update(bodyMsg)
		return a, nil

	case shimmerTickMsg:
		a.frame++
		return a, shimmerTickCmd()

	case refreshTickMsg:
		return a, tea.Batch(a.refresh(), refreshTickCmd())

	case changeMsg:
		return a, a.onChange(store.Change(msg))

	case roomsSnapshotMsg, roomOpenedMsg, messageSentMsg, roomActionMsg, botsLoadedMsg:
		a.rooms, cmd = a.rooms.Update(msg)
		return a, cmd

	case friendsSnapshotMsg, friendActionMsg, userFoundMsg:
		a.friends, cmd = a.friends.Update(msg)
		return a, cmd

	case openDirectMsg:
		a.view = viewRooms
		return a, a.rooms.openDirect(msg.userID)

	case tea.KeyMsg:
		// Help overlay captures all keys when open
		if a.helpOpen {
			switch msg.String() {
			case "h", "esc":
				a.helpOpen = false
			case "q", "ctrl+c":
				return a, tea.Quit
			}
			return a, nil
		}

		if msg.String() == "ctrl+c" {
			return a, tea.Quit
		}

		// Global keys (only when not editing)
		if !a.isEditing() {
			switch msg.String() {
			case "h", "?":
				a.helpOpen = true
				return a, nil
			case "q":
				return a, tea.Quit
			case "1":
				a.view = viewRooms
				return a, nil
			case "2":
				a.view = viewFriends
				return a, nil
			}
		}
	}

	switch a.view {
	case viewRooms:
		a.rooms, cmd = a.rooms.Update(msg)
	case viewFriends:
		a.friends, cmd = a.friends.Update(msg)
	}
	return a, cmd
}

func (a App) isEditing() bool {
	switch a.view {
	case viewRooms:
		return a.rooms.state == roomsConvoState && a.rooms.inputFocused
	case viewFriends:
		return a.friends.editing()
	}
	return false
}

func (a App) View() string {
	logo := renderShimmerLogo(a.frame)

	statusLine := ""
	if a.self.ID != "" {
		parts := []string{"signed in as " + a.self.Name()}
		if n := len(a.friends.incoming); n > 0 {
			parts = append(parts, fmt.Sprintf("%d %s", n, plural(n, "request", "requests")))
		}
		statusLine = metaStyle.Render(strings.Join(parts, " · "))
	}

	// Center the logo within terminal width
	logoPad := max((a.width-lipgloss.Width(logo))/2, 0)
	header := strings.Repeat(" ", logoPad) + logo
	if statusLine != "" {
		statusPad := max((a.width-lipgloss.Width(statusLine))/2, 0)
		header += "\n" + strings.Repeat(" ", statusPad) + statusLine
	} else {
		header += "\n"
	}

	type tabEntry struct {
		key  string
		name string
		v    view
	}
	tabs := []tabEntry{
		{"1", "Rooms", viewRooms},
		{"2", "Friends", viewFriends},
	}

	colWidth := a.width / len(tabs)
	var tabBar strings.Builder
	for _, t := range tabs {
		var label string
		if t.v == a.view {
			label = accentStyle.Render(t.key) + " " + selectedStyle.Underline(true).Render(t.name)
		} else {
			label = metaStyle.Render(t.key) + " " + dimStyle.Render(t.name)
		}
		if t.v == viewFriends {
			if online := onlineCount(a.friends.friends); online > 0 {
				label += " " + presenceDotStyle.Render("●") + dimStyle.Render(fmt.Sprintf("%d", online))
			}
		}
		labelWidth := lipgloss.Width(label)
		leftPad := max((colWidth-labelWidth)/2, 0)
		rightPad := max(colWidth-labelWidth-leftPad, 0)
		tabBar.WriteString(strings.Repeat(" ", leftPad) + label + strings.Repeat(" ", rightPad))
	}

	var body, help string
	switch a.view {
	case viewRooms:
		body = a.rooms.View()
		help = " " + helpEntry("1-2", "tabs") + "  " + a.rooms.helpKeys()
	case viewFriends:
		body = a.friends.View()
		help = " " + helpEntry("1-2", "tabs") + "  " + a.friends.helpKeys()
	}

	if a.helpOpen {
		body = helpView(a.version)
		help = " " + helpEntry("esc", "close") + "  " + helpEntry("q", "quit")
	}

	chrome := 4
	body = strings.TrimRight(truncateToHeight(body, a.height-chrome), "\n")

	return fmt.Sprintf("%s\n%s\n%s\n%s", header, tabBar.String(), body, help)
}

func onlineCount(users []domain.User) int {
	n := 0
	for _, u := range users {
		if u.Online {
			n++
		}
	}
	return n
}
