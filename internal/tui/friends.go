package tui

import (
	"context"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/chitchat/chitchat/pkg/domain"
	"github.com/chitchat/chitchat/pkg/store"
)

type friendsMode int

const (
	friendsBrowse friendsMode = iota
	friendsAdding             // typing an email or handle to befriend
	friendsFinding            // typing a user lookup query
)

// -- messages --

type friendsSnapshotMsg struct {
	friends  []domain.User
	incoming []domain.FriendRequest
	outgoing []domain.FriendRequest
}

type friendActionMsg struct {
	done string
	err  error
}

type userFoundMsg struct {
	query string
	match domain.UserMatch
	found bool
	err   error
}

// openDirectMsg asks the app to open a direct room with a user.
type openDirectMsg struct {
	userID string
}

// -- model --

type friendsModel struct {
	dir      *store.Directory
	friends  []domain.User
	incoming []domain.FriendRequest
	outgoing []domain.FriendRequest
	cursor   int // over incoming requests, then friends
	width    int
	height   int

	mode     friendsMode
	input    string
	cursorOn bool
	found    *domain.UserMatch
	status   string
}

func newFriendsModel(d *store.Directory) friendsModel {
	return friendsModel{dir: d}
}

func (m friendsModel) snapshot() tea.Cmd {
	d := m.dir
	return func() tea.Msg {
		return friendsSnapshotMsg{friends: d.Friends(), incoming: d.Incoming(), outgoing: d.Outgoing()}
	}
}

func (m friendsModel) accept(requestID string) tea.Cmd {
	d := m.dir
	return func() tea.Msg {
		return friendActionMsg{done: "request accepted", err: d.AcceptFriendRequest(context.Background(), requestID)}
	}
}

func (m friendsModel) reject(requestID string) tea.Cmd {
	d := m.dir
	return func() tea.Msg {
		return friendActionMsg{done: "request rejected", err: d.RejectFriendRequest(context.Background(), requestID)}
	}
}

func (m friendsModel) remove(friendID string) tea.Cmd {
	d := m.dir
	return func() tea.Msg {
		return friendActionMsg{done: "friend removed", err: d.RemoveFriend(context.Background(), friendID)}
	}
}

func (m friendsModel) sendRequest(identifier string) tea.Cmd {
	d := m.dir
	return func() tea.Msg {
		return friendActionMsg{done: "request sent to " + identifier, err: d.SendFriendRequest(context.Background(), identifier)}
	}
}

func (m friendsModel) findUser(query string) tea.Cmd {
	d := m.dir
	return func() tea.Msg {
		match, found, err := d.FindUser(context.Background(), query)
		return userFoundMsg{query: query, match: match, found: found, err: err}
	}
}

func (m friendsModel) rows() int {
	return len(m.incoming) + len(m.friends)
}

// selection returns the request or friend under the cursor.
func (m friendsModel) selection() (*domain.FriendRequest, *domain.User) {
	switch {
	case m.cursor < len(m.incoming):
		return &m.incoming[m.cursor], nil
	case m.cursor < m.rows():
		return nil, &m.friends[m.cursor-len(m.incoming)]
	}
	return nil, nil
}

func (m friendsModel) Update(msg tea.Msg) (friendsModel, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case friendsSnapshotMsg:
		m.friends = msg.friends
		m.incoming = msg.incoming
		m.outgoing = msg.outgoing
		if m.cursor >= m.rows() {
			m.cursor = max(m.rows()-1, 0)
		}

	case friendActionMsg:
		if msg.err != nil {
			m.status = "failed: " + msg.err.Error()
		} else {
			m.status = msg.done
		}
		return m, m.snapshot()

	case userFoundMsg:
		switch {
		case msg.err != nil:
			m.found = nil
			m.status = "failed: " + msg.err.Error()
		case !msg.found:
			m.found = nil
			m.status = "User Not Found"
		default:
			match := msg.match
			m.found = &match
			m.status = ""
		}

	case cursorBlinkMsg:
		if m.mode != friendsBrowse {
			m.cursorOn = !m.cursorOn
			return m, cursorBlinkCmd()
		}

	case tea.KeyMsg:
		m.cursorOn = true
		if m.mode != friendsBrowse {
			return m.updateInput(msg)
		}
		return m.updateBrowse(msg)
	}
	return m, nil
}

func (m friendsModel) updateInput(msg tea.KeyMsg) (friendsModel, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.mode = friendsBrowse
		m.input = ""
	case "enter":
		q := strings.TrimSpace(m.input)
		if q == "" {
			return m, nil
		}
		mode := m.mode
		m.mode = friendsBrowse
		m.input = ""
		if mode == friendsAdding {
			return m, m.sendRequest(q)
		}
		return m, m.findUser(q)
	default:
		m.input = editKey(m.input, msg)
	}
	return m, nil
}

func (m friendsModel) updateBrowse(msg tea.KeyMsg) (friendsModel, tea.Cmd) {
	req, friend := m.selection()
	switch msg.String() {
	case "j", "down":
		if m.cursor < m.rows()-1 {
			m.cursor++
		}
	case "k", "up":
		if m.cursor > 0 {
			m.cursor--
		}
	case "a":
		m.mode = friendsAdding
		m.status = ""
		return m, cursorBlinkCmd()
	case "f", "/":
		m.mode = friendsFinding
		m.found = nil
		m.status = ""
		return m, cursorBlinkCmd()
	case "enter":
		if req != nil {
			return m, m.accept(req.ID)
		}
		if friend != nil {
			id := friend.ID
			return m, func() tea.Msg { return openDirectMsg{userID: id} }
		}
	case "x":
		if req != nil {
			return m, m.reject(req.ID)
		}
	case "d":
		if friend != nil {
			return m, m.remove(friend.ID)
		}
	case "s":
		if m.found != nil && m.found.Relationship == domain.RelationNone {
			ident := m.found.User.Email
			if ident == "" {
				ident = m.found.User.Handle
			}
			return m, m.sendRequest(ident)
		}
	}
	return m, nil
}

func (m friendsModel) View() string {
	var b strings.Builder
	sep := " " + metaStyle.Render(strings.Repeat("─", max(m.width-2, 4))) + "\n"

	if len(m.incoming) > 0 {
		b.WriteString(" " + sectionHeaderStyle.Render(fmt.Sprintf("Requests (%d)", len(m.incoming))) + "\n")
		b.WriteString(sep)
		for i, req := range m.incoming {
			b.WriteString(m.renderRow(i, presenceDot(req.Sender.Online), req.Sender, "wants to be friends · "+formatTime(req.CreatedAt)))
		}
		b.WriteByte('\n')
	}

	b.WriteString(" " + sectionHeaderStyle.Render(fmt.Sprintf("Friends (%d online)", onlineCount(m.friends))) + "\n")
	b.WriteString(sep)
	if len(m.friends) == 0 {
		b.WriteString(" " + dimStyle.Render("no friends yet · press a to send a request") + "\n")
	}
	for i, f := range m.friends {
		b.WriteString(m.renderRow(len(m.incoming)+i, presenceDot(f.Online), f, "@"+f.Handle))
	}

	if n := len(m.outgoing); n > 0 {
		b.WriteString("\n " + metaStyle.Render(fmt.Sprintf("%d sent %s awaiting an answer", n, plural(n, "request", "requests"))) + "\n")
	}

	if m.found != nil {
		u := m.found.User
		fmt.Fprintf(&b, "\n %s %s  %s\n",
			UserStyle(u).Render(u.Name()),
			metaStyle.Render("@"+u.Handle),
			dimStyle.Render(relationLabel(m.found.Relationship)))
	}

	switch m.mode {
	case friendsAdding:
		b.WriteString("\n" + renderInputLine("add", m.input, "email or handle", true, m.cursorOn) + "\n")
	case friendsFinding:
		b.WriteString("\n" + renderInputLine("find", m.input, "email or handle", true, m.cursorOn) + "\n")
	}

	if m.status != "" {
		b.WriteString("\n " + dimStyle.Render(m.status) + "\n")
	}
	return b.String()
}

func (m friendsModel) renderRow(i int, dot string, u domain.User, meta string) string {
	cursor := "  "
	name := UserStyle(u).Render(u.Name())
	if i == m.cursor {
		cursor = accentStyle.Render("▸") + " "
		name = selectedStyle.Render(u.Name())
	}
	return fmt.Sprintf(" %s%s %s  %s\n", cursor, dot, name, metaStyle.Render(meta))
}

func relationLabel(r domain.Relationship) string {
	switch r {
	case domain.RelationFriends:
		return "already friends"
	case domain.RelationPending:
		return "request sent"
	case domain.RelationReceived:
		return "wants to be friends"
	default:
		return "s to send a request"
	}
}

func (m friendsModel) helpKeys() string {
	if m.mode != friendsBrowse {
		return helpEntry("enter", "go") + "  " + helpEntry("esc", "cancel")
	}
	req, friend := m.selection()
	keys := helpEntry("j/k", "nav") + "  "
	switch {
	case req != nil:
		keys += helpEntry("enter", "accept") + "  " + helpEntry("x", "reject") + "  "
	case friend != nil:
		keys += helpEntry("enter", "chat") + "  " + helpEntry("d", "remove") + "  "
	}
	return keys + helpEntry("a", "add") + "  " + helpEntry("f", "find") + "  " + helpEntry("q", "quit")
}

// editing reports whether keystrokes belong to a text input.
func (m friendsModel) editing() bool {
	return m.mode != friendsBrowse
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
