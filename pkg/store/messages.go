package store

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/chitchat/chitchat/pkg/domain"
)

// snapshot copies the room with its current message sequence. Messages is
// never nil so snapshots compare equal by value.
func (st *roomState) snapshot() domain.Room {
	out := st.room
	out.Participants = append([]domain.Participant(nil), st.room.Participants...)
	out.Messages = make([]domain.Message, 0, len(st.entries))
	for _, e := range st.entries {
		out.Messages = append(out.Messages, e.msg)
	}
	if n := len(out.Messages); n > 0 {
		last := out.Messages[n-1]
		out.LastMessage = &last
	}
	return out
}

func (st *roomState) indexOf(key string) int {
	for i, e := range st.entries {
		if e.msg.ID == key || (e.msg.ClientID != "" && e.msg.ClientID == key) {
			return i
		}
	}
	return -1
}

// firstUnconfirmed is where the server-ordered part of the sequence ends.
func (st *roomState) firstUnconfirmed() int {
	for i, e := range st.entries {
		if e.msg.State != domain.StateConfirmed {
			return i
		}
	}
	return len(st.entries)
}

func (st *roomState) appendEntry(m domain.Message) {
	st.rev++
	st.entries = append(st.entries, entry{msg: m, rev: st.rev})
}

func (st *roomState) removeAt(i int) {
	st.entries = append(st.entries[:i:i], st.entries[i+1:]...)
}

// insertConfirmed places m in server order ahead of unconfirmed entries.
func (st *roomState) insertConfirmed(m domain.Message) {
	st.rev++
	end := st.firstUnconfirmed()
	at := sort.Search(end, func(i int) bool {
		e := st.entries[i].msg
		if !e.CreatedAt.Equal(m.CreatedAt) {
			return e.CreatedAt.After(m.CreatedAt)
		}
		return e.ID > m.ID
	})
	st.entries = append(st.entries, entry{})
	copy(st.entries[at+1:], st.entries[at:])
	st.entries[at] = entry{msg: m, rev: st.rev}
}

// reconcile merges a fetched page into the room. issued is the room
// revision when the fetch started: local entries that changed after it
// survive even if the page does not contain them.
func (st *roomState) reconcile(fetched []domain.Message, issued uint64) {
	st.rev++
	rev := st.rev

	byID := make(map[string]entry, len(st.entries))
	for _, e := range st.entries {
		if e.msg.ID != "" {
			byID[e.msg.ID] = e
		}
	}

	inPage := make(map[string]bool, len(fetched))
	confirmed := make([]entry, 0, len(fetched)+len(st.entries))
	for _, m := range fetched {
		if m.ID == "" || inPage[m.ID] {
			continue
		}
		inPage[m.ID] = true
		m.RoomID = st.room.ID
		m.State = domain.StateConfirmed
		if old, ok := byID[m.ID]; ok {
			// Edited or deleted after the fetch started: the page copy is older.
			if old.rev > issued && old.msg.State == domain.StateConfirmed {
				confirmed = append(confirmed, old)
				continue
			}
			if old.msg.Deleted() && !m.Deleted() {
				m.DeletedAt = old.msg.DeletedAt
				m.Body = ""
			}
			if m.ClientID == "" {
				m.ClientID = old.msg.ClientID
			}
		}
		confirmed = append(confirmed, entry{msg: m, rev: rev})
	}

	var pending []entry
	for _, e := range st.entries {
		if e.msg.ID != "" && inPage[e.msg.ID] {
			continue
		}
		switch e.msg.State {
		case domain.StateProvisional, domain.StateLocal:
			pending = append(pending, e)
		case domain.StateConfirmed:
			if e.rev > issued || e.msg.Deleted() {
				confirmed = append(confirmed, e)
			}
		}
	}

	sort.SliceStable(confirmed, func(i, j int) bool {
		a, b := confirmed[i].msg, confirmed[j].msg
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID < b.ID
	})
	st.entries = append(confirmed, pending...)
}

// LoadMessages fetches the latest history page and merges it into the room
// it was requested for, whichever room is active by then.
func (r *Rooms) LoadMessages(ctx context.Context, roomID string) error {
	const op = "LoadMessages"
	r.mu.Lock()
	st, ok := r.rooms[roomID]
	if !ok {
		r.mu.Unlock()
		return notFound(op, "room %s", roomID)
	}
	if st.room.Kind == domain.RoomBot {
		r.mu.Unlock()
		return nil
	}
	issued, gen := st.rev, r.gen
	r.mu.Unlock()

	page, err := r.transport.GetMessages(ctx, roomID, domain.PageRequest{Page: 0, Size: r.opts.PageSize})

	r.mu.Lock()
	defer r.mu.Unlock()
	if gen != r.gen {
		return nil
	}
	if err != nil {
		return classify(op, err)
	}
	st, ok = r.rooms[roomID]
	if !ok {
		return nil
	}
	var fetched []domain.Message
	if page != nil {
		fetched = page.Messages
	}
	st.reconcile(fetched, issued)
	notify(r.opts.Changes, Change{Kind: ChangeMessages, RoomID: roomID})
	return nil
}

// SendMessage appends a provisional message and sends it. On success the
// returned message is confirmed and the room history has been refetched.
// On failure the room is back to its pre-send state and the returned
// message, now discarded, can be offered for retry.
//
// In bot rooms nothing is sent: the message is kept locally and the bot's
// reply arrives after the configured delay.
func (r *Rooms) SendMessage(ctx context.Context, roomID, body string, typ domain.MessageType) (domain.Message, error) {
	const op = "SendMessage"
	if strings.TrimSpace(body) == "" {
		return domain.Message{}, invalid(op, "message body is empty")
	}
	if typ == "" {
		typ = domain.MessageText
	}
	if !typ.Valid() {
		return domain.Message{}, invalid(op, "unknown message type "+string(typ))
	}

	r.mu.Lock()
	st, ok := r.rooms[roomID]
	if !ok {
		r.mu.Unlock()
		return domain.Message{}, notFound(op, "room %s", roomID)
	}
	self := r.self
	msg := domain.Message{
		ClientID:  r.opts.NewID(),
		RoomID:    roomID,
		SenderID:  self.ID,
		Body:      body,
		Type:      typ,
		CreatedAt: r.opts.Now(),
		State:     domain.StateProvisional,
	}
	if self.ID != "" {
		msg.Sender = &self
	}

	if st.room.Kind == domain.RoomBot {
		msg.State = domain.StateLocal
		st.appendEntry(msg)
		bot, hasBot := st.room.Bot()
		gen, lifecycle := r.gen, r.ctx
		r.mu.Unlock()
		notify(r.opts.Changes, Change{Kind: ChangeMessages, RoomID: roomID})
		if hasBot {
			r.scheduleBotReply(lifecycle, gen, roomID, bot, body)
		}
		return msg, nil
	}

	st.appendEntry(msg)
	gen := r.gen
	r.mu.Unlock()
	notify(r.opts.Changes, Change{Kind: ChangeMessages, RoomID: roomID})

	sent, err := r.transport.SendMessage(ctx, roomID, body, typ)

	r.mu.Lock()
	if gen != r.gen {
		r.mu.Unlock()
		if err != nil {
			msg.State = domain.StateDiscarded
			return msg, classify(op, err)
		}
		return msg, nil
	}
	st, ok = r.rooms[roomID]
	if !ok {
		r.mu.Unlock()
		return msg, nil
	}
	if err != nil {
		if i := st.indexOf(msg.ClientID); i >= 0 {
			st.removeAt(i)
		}
		r.mu.Unlock()
		notify(r.opts.Changes, Change{Kind: ChangeMessages, RoomID: roomID})
		msg.State = domain.StateDiscarded
		return msg, classify(op, err)
	}
	confirmed := st.confirmSend(msg, sent)
	r.mu.Unlock()
	notify(r.opts.Changes, Change{Kind: ChangeMessages, RoomID: roomID})

	if err := r.LoadMessages(ctx, roomID); err != nil {
		r.log.Warn().Err(err).Str("room", roomID).Msg("refetch after send failed")
	}
	return confirmed, nil
}

// confirmSend replaces the provisional entry with the server's copy, or
// confirms it in place when the server sent none back.
func (st *roomState) confirmSend(prov domain.Message, sent *domain.Message) domain.Message {
	m := prov
	if i := st.indexOf(prov.ClientID); i >= 0 {
		m = st.entries[i].msg
		st.removeAt(i)
	}
	if sent != nil {
		canonical := *sent
		canonical.ClientID = prov.ClientID
		canonical.RoomID = st.room.ID
		if canonical.SenderID == "" {
			canonical.SenderID = prov.SenderID
			canonical.Sender = prov.Sender
		}
		if canonical.CreatedAt.IsZero() {
			canonical.CreatedAt = prov.CreatedAt
		}
		m = canonical
		if j := st.indexOf(m.ID); j >= 0 {
			// Already delivered by the push channel.
			st.rev++
			st.entries[j].msg.ClientID = prov.ClientID
			st.entries[j].rev = st.rev
			return st.entries[j].msg
		}
	}
	m.State = domain.StateConfirmed
	st.insertConfirmed(m)
	return m
}

// EditMessage changes a confirmed message's body on the server and then
// locally. Nothing changes locally if the server refuses.
func (r *Rooms) EditMessage(ctx context.Context, messageID, body string) (domain.Message, error) {
	const op = "EditMessage"
	if strings.TrimSpace(body) == "" {
		return domain.Message{}, invalid(op, "message body is empty")
	}
	r.mu.Lock()
	_, cur, err := r.confirmedLocked(op, messageID)
	gen := r.gen
	r.mu.Unlock()
	if err != nil {
		return domain.Message{}, err
	}

	updated, err := r.transport.EditMessage(ctx, messageID, body, cur.Type)
	if err != nil {
		return domain.Message{}, classify(op, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	st, i := r.findLocked(messageID)
	if gen != r.gen || i < 0 {
		return domain.Message{}, nil
	}
	st.rev++
	e := &st.entries[i]
	e.rev = st.rev
	e.msg.Body = body
	switch {
	case updated != nil && updated.EditedAt != nil:
		e.msg.EditedAt = updated.EditedAt
	default:
		now := r.opts.Now()
		e.msg.EditedAt = &now
	}
	notify(r.opts.Changes, Change{Kind: ChangeMessages, RoomID: st.room.ID})
	return e.msg, nil
}

// DeleteMessage soft-deletes a confirmed message and leaves a tombstone in
// its place.
func (r *Rooms) DeleteMessage(ctx context.Context, messageID string) error {
	const op = "DeleteMessage"
	r.mu.Lock()
	_, _, err := r.confirmedLocked(op, messageID)
	gen := r.gen
	r.mu.Unlock()
	if err != nil {
		return err
	}

	if err := r.transport.DeleteMessage(ctx, messageID); err != nil {
		return classify(op, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	st, i := r.findLocked(messageID)
	if gen != r.gen || i < 0 {
		return nil
	}
	st.tombstone(i, r.opts.Now())
	notify(r.opts.Changes, Change{Kind: ChangeMessages, RoomID: st.room.ID})
	return nil
}

func (st *roomState) tombstone(i int, at time.Time) {
	st.rev++
	e := &st.entries[i]
	e.rev = st.rev
	e.msg.Body = ""
	if e.msg.DeletedAt == nil {
		e.msg.DeletedAt = &at
	}
}

func (r *Rooms) findLocked(messageID string) (*roomState, int) {
	if messageID == "" {
		return nil, -1
	}
	for _, id := range r.order {
		st := r.rooms[id]
		if i := st.indexOf(messageID); i >= 0 {
			return st, i
		}
	}
	return nil, -1
}

func (r *Rooms) confirmedLocked(op, messageID string) (*roomState, domain.Message, error) {
	st, i := r.findLocked(messageID)
	if i < 0 {
		return nil, domain.Message{}, notFound(op, "message %s", messageID)
	}
	m := st.entries[i].msg
	if m.State != domain.StateConfirmed || m.ID == "" {
		return nil, domain.Message{}, invalid(op, "only delivered messages can be changed")
	}
	if m.Deleted() {
		return nil, domain.Message{}, invalid(op, "message was deleted")
	}
	return st, m, nil
}

// SearchMessages searches one room, or every room when q.RoomID is empty.
// Results are not merged into room state.
func (r *Rooms) SearchMessages(ctx context.Context, q domain.SearchQuery) (domain.MessagePage, error) {
	const op = "SearchMessages"
	q.Query = strings.TrimSpace(q.Query)
	if q.Query == "" {
		return domain.MessagePage{}, invalid(op, "search query is empty")
	}
	if q.Page < 0 {
		return domain.MessagePage{}, invalid(op, "page must not be negative")
	}
	if q.Size <= 0 {
		q.Size = r.opts.PageSize
	}
	page, err := r.transport.SearchMessages(ctx, q)
	if err != nil {
		return domain.MessagePage{}, classify(op, err)
	}
	if page == nil {
		return domain.MessagePage{Messages: []domain.Message{}, Page: q.Page, Size: q.Size}, nil
	}
	return *page, nil
}
