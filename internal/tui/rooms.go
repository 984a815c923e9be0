package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/atotto/clipboard"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/chitchat/chitchat/internal/browser"
	"github.com/chitchat/chitchat/pkg/domain"
	"github.com/chitchat/chitchat/pkg/store"
)

// roomsState distinguishes between the list, an open room and the bot picker.
type roomsState int

const (
	roomsListState  roomsState = iota
	roomsConvoState            // viewing a single room
	roomsBotsState             // picking a bot to chat with
)

// BotLister lists the bots the local user has configured.
type BotLister interface {
	ListBots(ctx context.Context) ([]domain.Bot, error)
}

// -- messages --

type roomsSnapshotMsg struct {
	rooms   []domain.Room
	open    domain.Room
	hasOpen bool
	typing  []domain.User
}

type roomOpenedMsg struct {
	room domain.Room
	err  error
}

type messageSentMsg struct {
	msg domain.Message
	err error
}

// roomActionMsg reports the outcome of a fire-and-forget action.
type roomActionMsg struct {
	done string
	err  error
}

type botsLoadedMsg struct {
	bots []domain.Bot
	err  error
}

// -- model --

type roomsModel struct {
	rooms  *store.Rooms
	bots   BotLister
	selfID string
	state  roomsState
	list   []domain.Room
	cursor int
	width  int
	height int

	// convo state
	open         domain.Room
	typing       []domain.User
	selected     int // index into open.Messages, -1 when nothing is selected
	input        string
	inputFocused bool
	cursorOn     bool
	editingID    string
	failed       *domain.Message
	status       string

	// bot picker
	botList   []domain.Bot
	botCursor int
}

func newRoomsModel(r *store.Rooms, bots BotLister, selfID string) roomsModel {
	return roomsModel{rooms: r, bots: bots, selfID: selfID, selected: -1}
}

func (m roomsModel) openID() string {
	if m.state == roomsConvoState {
		return m.open.ID
	}
	return ""
}

// snapshot re-reads the store. It is issued whenever the store signals a change.
func (m roomsModel) snapshot() tea.Cmd {
	r := m.rooms
	openID := m.openID()
	return func() tea.Msg {
		msg := roomsSnapshotMsg{rooms: r.Rooms()}
		if openID != "" {
			msg.open, msg.hasOpen = r.Room(openID)
			msg.typing = r.Typing(openID)
		}
		return msg
	}
}

func (m roomsModel) openRoom(roomID string) tea.Cmd {
	r := m.rooms
	return func() tea.Msg {
		if err := r.SetActiveRoom(context.Background(), roomID); err != nil {
			return roomOpenedMsg{err: err}
		}
		room, _ := r.Room(roomID)
		return roomOpenedMsg{room: room}
	}
}

func (m roomsModel) openDirect(userID string) tea.Cmd {
	r := m.rooms
	return func() tea.Msg {
		room, err := r.OpenDirect(context.Background(), userID)
		if err != nil {
			return roomOpenedMsg{err: err}
		}
		if err := r.SetActiveRoom(context.Background(), room.ID); err != nil {
			return roomOpenedMsg{err: err}
		}
		room, _ = r.Room(room.ID)
		return roomOpenedMsg{room: room}
	}
}

func (m roomsModel) openBot(bot domain.Bot) tea.Cmd {
	r := m.rooms
	return func() tea.Msg {
		room, err := r.OpenBot(bot)
		if err != nil {
			return roomOpenedMsg{err: err}
		}
		if err := r.SetActiveRoom(context.Background(), room.ID); err != nil {
			return roomOpenedMsg{err: err}
		}
		return roomOpenedMsg{room: room}
	}
}

func (m roomsModel) closeRoom() tea.Cmd {
	r := m.rooms
	return func() tea.Msg {
		_ = r.SetActiveRoom(context.Background(), "")
		return roomActionMsg{}
	}
}

func (m roomsModel) sendMessage(body string) tea.Cmd {
	r := m.rooms
	roomID := m.open.ID
	typ := domain.MessageText
	if firstURL(body) == strings.TrimSpace(body) {
		typ = domain.MessageLink
	}
	return func() tea.Msg {
		msg, err := r.SendMessage(context.Background(), roomID, body, typ)
		return messageSentMsg{msg: msg, err: err}
	}
}

func (m roomsModel) editMessage(messageID, body string) tea.Cmd {
	r := m.rooms
	return func() tea.Msg {
		_, err := r.EditMessage(context.Background(), messageID, body)
		return roomActionMsg{done: "edited", err: err}
	}
}

func (m roomsModel) deleteMessage(messageID string) tea.Cmd {
	r := m.rooms
	return func() tea.Msg {
		err := r.DeleteMessage(context.Background(), messageID)
		return roomActionMsg{done: "deleted", err: err}
	}
}

func (m roomsModel) hideRoom(roomID string) tea.Cmd {
	r := m.rooms
	return func() tea.Msg {
		return roomActionMsg{done: "room hidden", err: r.Hide(roomID)}
	}
}

func (m roomsModel) reload() tea.Cmd {
	r := m.rooms
	return func() tea.Msg {
		return roomActionMsg{done: "refreshed", err: r.LoadRooms(context.Background())}
	}
}

func (m roomsModel) sendTyping(typing bool) tea.Cmd {
	r := m.rooms
	roomID := m.open.ID
	return func() tea.Msg {
		// Typing signals are best-effort.
		_ = r.SendTyping(roomID, typing)
		return nil
	}
}

func (m roomsModel) loadBots() tea.Cmd {
	b := m.bots
	return func() tea.Msg {
		if b == nil {
			return botsLoadedMsg{}
		}
		bots, err := b.ListBots(context.Background())
		return botsLoadedMsg{bots: bots, err: err}
	}
}

func copyMessage(body string) tea.Cmd {
	return func() tea.Msg {
		return roomActionMsg{done: "copied to clipboard", err: clipboard.WriteAll(body)}
	}
}

func openLink(url string) tea.Cmd {
	return func() tea.Msg {
		return roomActionMsg{done: "opened " + url, err: browser.Open(url)}
	}
}

func (m roomsModel) Update(msg tea.Msg) (roomsModel, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case roomsSnapshotMsg:
		m.list = msg.rooms
		if m.cursor >= len(m.list) {
			m.cursor = max(len(m.list)-1, 0)
		}
		if msg.hasOpen && m.state == roomsConvoState && msg.open.ID == m.open.ID {
			m.open = msg.open
			m.typing = msg.typing
			if m.selected >= len(m.open.Messages) {
				m.selected = len(m.open.Messages) - 1
			}
		}

	case roomOpenedMsg:
		if msg.err != nil {
			m.status = "failed: " + msg.err.Error()
			return m, nil
		}
		m.state = roomsConvoState
		m.open = msg.room
		m.typing = nil
		m.selected = -1
		m.inputFocused = true
		m.cursorOn = true
		m.input = ""
		m.editingID = ""
		m.failed = nil
		m.status = ""
		return m, tea.Batch(m.snapshot(), cursorBlinkCmd())

	case messageSentMsg:
		if msg.err != nil {
			failed := msg.msg
			m.failed = &failed
			m.status = "not sent: " + msg.err.Error() + " · esc, r to retry"
			return m, nil
		}
		m.status = ""
		return m, m.snapshot()

	case roomActionMsg:
		switch {
		case msg.err != nil:
			m.status = "failed: " + msg.err.Error()
		case msg.done != "":
			m.status = msg.done
		}
		return m, m.snapshot()

	case botsLoadedMsg:
		if msg.err != nil {
			m.status = "bots: " + msg.err.Error()
			return m, nil
		}
		m.botList = msg.bots
		m.botCursor = 0
		m.state = roomsBotsState
		m.status = ""

	case cursorBlinkMsg:
		if m.state == roomsConvoState && m.inputFocused {
			m.cursorOn = !m.cursorOn
			return m, cursorBlinkCmd()
		}

	case tea.KeyMsg:
		m.cursorOn = true
		switch m.state {
		case roomsListState:
			return m.updateList(msg)
		case roomsConvoState:
			return m.updateConvo(msg)
		case roomsBotsState:
			return m.updateBots(msg)
		}
	}
	return m, nil
}

func (m roomsModel) updateList(msg tea.KeyMsg) (roomsModel, tea.Cmd) {
	switch msg.String() {
	case "j", "down":
		if m.cursor < len(m.list)-1 {
			m.cursor++
		}
	case "k", "up":
		if m.cursor > 0 {
			m.cursor--
		}
	case "enter":
		if m.cursor < len(m.list) {
			return m, m.openRoom(m.list[m.cursor].ID)
		}
	case "b":
		return m, m.loadBots()
	case "x":
		if m.cursor < len(m.list) {
			return m, m.hideRoom(m.list[m.cursor].ID)
		}
	case "r":
		return m, m.reload()
	}
	return m, nil
}

func (m roomsModel) updateBots(msg tea.KeyMsg) (roomsModel, tea.Cmd) {
	switch msg.String() {
	case "j", "down":
		if m.botCursor < len(m.botList)-1 {
			m.botCursor++
		}
	case "k", "up":
		if m.botCursor > 0 {
			m.botCursor--
		}
	case "enter":
		if m.botCursor < len(m.botList) {
			return m, m.openBot(m.botList[m.botCursor])
		}
	case "esc":
		m.state = roomsListState
	}
	return m, nil
}

func (m roomsModel) updateConvo(msg tea.KeyMsg) (roomsModel, tea.Cmd) {
	key := msg.String()

	if m.inputFocused {
		switch key {
		case "esc":
			m.inputFocused = false
			if m.editingID != "" {
				m.editingID = ""
				m.input = ""
			}
			if m.input == "" {
				return m, nil
			}
			return m, m.sendTyping(false)
		case "enter":
			body := strings.TrimSpace(m.input)
			if body == "" {
				return m, nil
			}
			m.input = ""
			if id := m.editingID; id != "" {
				m.editingID = ""
				return m, m.editMessage(id, body)
			}
			m.failed = nil
			m.status = ""
			return m, tea.Batch(m.sendMessage(body), m.sendTyping(false))
		default:
			before := m.input
			m.input = editKey(m.input, msg)
			if m.editingID == "" && (before == "") != (m.input == "") {
				return m, m.sendTyping(m.input != "")
			}
			return m, nil
		}
	}

	// Nav mode
	n := len(m.open.Messages)
	switch key {
	case "esc":
		m.state = roomsListState
		m.open = domain.Room{}
		m.typing = nil
		m.input = ""
		m.failed = nil
		m.status = ""
		return m, m.closeRoom()
	case "enter", "i":
		m.inputFocused = true
		m.cursorOn = true
		return m, cursorBlinkCmd()
	case "k", "up":
		switch {
		case m.selected < 0:
			m.selected = n - 1
		case m.selected > 0:
			m.selected--
		}
	case "j", "down":
		if m.selected >= 0 && m.selected < n-1 {
			m.selected++
		} else {
			m.selected = -1
		}
	case "y":
		if sel, ok := m.selectedMessage(); ok && !sel.Deleted() {
			return m, copyMessage(sel.Body)
		}
	case "o":
		if sel, ok := m.selectedMessage(); ok {
			if url := firstURL(sel.Body); url != "" {
				return m, openLink(url)
			}
			m.status = "no link in message"
		}
	case "e":
		if sel, ok := m.selectedMessage(); ok && m.ownConfirmed(sel) {
			m.editingID = sel.ID
			m.input = sel.Body
			m.inputFocused = true
			return m, cursorBlinkCmd()
		}
	case "d":
		if sel, ok := m.selectedMessage(); ok && m.ownConfirmed(sel) {
			m.selected = -1
			return m, m.deleteMessage(sel.ID)
		}
	case "r":
		if m.failed != nil {
			body := m.failed.Body
			m.failed = nil
			m.status = ""
			return m, m.sendMessage(body)
		}
	}
	return m, nil
}

func (m roomsModel) selectedMessage() (domain.Message, bool) {
	if m.selected < 0 || m.selected >= len(m.open.Messages) {
		return domain.Message{}, false
	}
	return m.open.Messages[m.selected], true
}

func (m roomsModel) ownConfirmed(msg domain.Message) bool {
	return msg.SenderID == m.selfID && msg.State == domain.StateConfirmed && !msg.Deleted()
}

func (m roomsModel) View() string {
	switch m.state {
	case roomsConvoState:
		return m.viewConvo()
	case roomsBotsState:
		return m.viewBots()
	default:
		return m.viewList()
	}
}

func (m roomsModel) viewList() string {
	var b strings.Builder

	b.WriteString(" " + sectionHeaderStyle.Render("Rooms") + "\n")
	sep := strings.Repeat("─", max(m.width-2, 4))
	b.WriteString(" " + metaStyle.Render(sep) + "\n")

	if len(m.list) == 0 {
		b.WriteString("\n " + dimStyle.Render("no rooms yet · open a friend with 2 or press b for a bot") + "\n")
	}

	for i, room := range m.list {
		isActive := i == m.cursor
		cursor := "  "
		if isActive {
			cursor = accentStyle.Render("▸") + " "
		}

		title := room.Title(m.selfID)
		titleStyled := normalStyle.Render(title)
		if isActive {
			titleStyled = selectedStyle.Render(title)
		}
		if other, ok := room.Counterpart(m.selfID); ok && room.Kind == domain.RoomDirect {
			titleStyled = presenceDot(other.Online) + " " + titleStyled
		}
		if badge := KindBadge(room.Kind); badge != "" {
			titleStyled += " " + badge
		}

		preview, when := "no messages", ""
		if room.LastMessage != nil {
			preview = truncStr(room.LastMessage.Preview(), 40)
			when = formatTime(room.LastMessage.CreatedAt)
		}

		fmt.Fprintf(&b, " %s%s  %s  %s\n",
			cursor,
			titleStyled,
			dimStyle.Render(preview),
			metaStyle.Render(when),
		)
	}

	if m.status != "" {
		b.WriteString("\n " + dimStyle.Render(m.status) + "\n")
	}
	return b.String()
}

func (m roomsModel) viewBots() string {
	var b strings.Builder

	b.WriteString(" " + sectionHeaderStyle.Render("Chat with a bot") + "\n")
	sep := strings.Repeat("─", max(m.width-2, 4))
	b.WriteString(" " + metaStyle.Render(sep) + "\n")

	if len(m.botList) == 0 {
		b.WriteString("\n " + dimStyle.Render("no bots configured · run chitchat bots configure") + "\n")
		return b.String()
	}
	for i, bot := range m.botList {
		cursor := "  "
		name := botStyle.Render(bot.Name)
		if i == m.botCursor {
			cursor = accentStyle.Render("▸") + " "
			name = selectedStyle.Render(bot.Name)
		}
		fmt.Fprintf(&b, " %s%s  %s\n", cursor, name, metaStyle.Render(bot.Provider+"/"+bot.Model))
	}
	return b.String()
}

func (m roomsModel) viewConvo() string {
	var b strings.Builder

	title := UserStyle(domain.User{ID: m.open.ID}).Render(m.open.Title(m.selfID))
	if bot, ok := m.open.Bot(); ok {
		title = botStyle.Render(bot.Name())
	}
	header := " " + sectionHeaderStyle.Render("Room ") + title
	if m.open.Kind == domain.RoomGroup {
		header += "  " + metaStyle.Render(fmt.Sprintf("%d members", len(m.open.Members())))
	}
	b.WriteString(header + "\n")

	sep := strings.Repeat("─", max(m.width-2, 4))
	b.WriteString(" " + metaStyle.Render(sep) + "\n")

	chrome := 5 // header + sep + typing + input + status
	viewportHeight := m.height - chrome
	if viewportHeight < 2 {
		viewportHeight = 2
	}

	msgs := m.open.Messages
	if m.failed != nil {
		msgs = append(append([]domain.Message(nil), msgs...), *m.failed)
	}
	if len(msgs) == 0 {
		padLines(viewportHeight-1, &b)
		b.WriteString(" " + dimStyle.Render("no messages yet") + "\n")
	} else {
		var allLines []string
		for i, msg := range msgs {
			line := m.renderMessage(msg, i == m.selected)
			allLines = append(allLines, strings.Split(line, "\n")...)
		}

		start := len(allLines) - viewportHeight
		if start < 0 {
			start = 0
		}
		visible := allLines[start:]

		padLines(viewportHeight-len(visible), &b)
		for _, line := range visible {
			b.WriteString(line)
			b.WriteByte('\n')
		}
	}

	b.WriteString(m.renderTyping())
	b.WriteByte('\n')

	label, placeholder := "you", "type a message..."
	if m.editingID != "" {
		label, placeholder = "edit", "new text..."
	}
	b.WriteString(renderInputLine(label, m.input, placeholder, m.inputFocused, m.cursorOn))
	b.WriteByte('\n')

	if m.status != "" {
		b.WriteString(" " + dimStyle.Render(m.status))
	}
	return b.String()
}

func (m roomsModel) renderTyping() string {
	if len(m.typing) == 0 {
		return ""
	}
	names := make([]string, 0, len(m.typing))
	for _, u := range m.typing {
		names = append(names, u.Name())
	}
	verb := " is typing…"
	if len(names) > 1 {
		verb = " are typing…"
	}
	return " " + chatSysStyle.Render(strings.Join(names, ", ")+verb)
}

func (m roomsModel) renderMessage(msg domain.Message, selected bool) string {
	timeStr := fmt.Sprintf("%8s", formatChatTime(msg.CreatedAt))
	timePart := metaStyle.Render(timeStr)
	sep := chatSepStyle.Render(" · ")

	isSelf := msg.SenderID == m.selfID
	var namePart string
	switch {
	case isSelf:
		namePart = chatSelfNameStyle.Render("you")
	case msg.Sender != nil:
		namePart = UserStyle(*msg.Sender).Render(msg.Sender.Name())
	default:
		sender := domain.User{ID: msg.SenderID}
		if p, ok := m.open.Participant(msg.SenderID); ok {
			sender = p.User
		}
		namePart = UserStyle(sender).Render(sender.Name())
	}

	if msg.Deleted() {
		return " " + timePart + "  " + namePart + sep + chatSysStyle.Render("message deleted")
	}

	bodyWidth := m.width - 26
	if bodyWidth < 20 {
		bodyWidth = 20
	}
	wrapped := hardWrap(lipgloss.NewStyle().Width(bodyWidth).Render(msg.Body), bodyWidth)
	lines := strings.Split(wrapped, "\n")

	bodyStyle := chatTextStyle
	if isSelf {
		bodyStyle = chatSelfTextStyle
	}
	if selected {
		bodyStyle = bodyStyle.Inherit(selectedRowBg)
	}
	render := func(s string) string {
		return styleWithLinks(s, bodyStyle)
	}

	marker := " "
	if selected {
		marker = accentStyle.Render("▸")
	}
	result := marker + timePart + "  " + namePart + sep + render(lines[0])
	if len(lines) > 1 {
		indent := strings.Repeat(" ", 15)
		for _, line := range lines[1:] {
			result += "\n" + indent + render(line)
		}
	}
	return result + stateMark(msg)
}

func (m roomsModel) helpKeys() string {
	switch m.state {
	case roomsConvoState:
		if m.inputFocused {
			return helpEntry("enter", "send") + "  " + helpEntry("esc", "nav")
		}
		keys := helpEntry("i", "type") + "  " + helpEntry("j/k", "select") + "  " + helpEntry("y", "copy") + "  " +
			helpEntry("o", "open link") + "  " + helpEntry("e/d", "edit/delete") + "  " + helpEntry("esc", "back")
		if m.failed != nil {
			keys = helpEntry("r", "retry") + "  " + keys
		}
		return keys
	case roomsBotsState:
		return helpEntry("j/k", "nav") + "  " + helpEntry("enter", "chat") + "  " + helpEntry("esc", "back")
	default:
		return helpEntry("j/k", "nav") + "  " + helpEntry("enter", "open") + "  " + helpEntry("b", "bots") + "  " +
			helpEntry("x", "hide") + "  " + helpEntry("r", "refresh") + "  " + helpEntry("h", "help") + "  " + helpEntry("q", "quit")
	}
}
