package store

import (
	"sort"
	"time"

	"github.com/chitchat/chitchat/pkg/domain"
)

// ApplyEvent folds a push event into room state. Events for rooms this
// client does not know are ignored; the next room refresh picks them up.
func (r *Rooms) ApplyEvent(ev domain.Event) {
	r.mu.Lock()
	change, ok := r.applyLocked(ev)
	r.mu.Unlock()
	if ok {
		notify(r.opts.Changes, change)
	}
}

func (r *Rooms) applyLocked(ev domain.Event) (Change, bool) {
	switch ev.Type {
	case domain.EventNewMessage:
		if ev.Message == nil {
			return Change{}, false
		}
		st, ok := r.rooms[ev.Message.RoomID]
		if !ok || st.room.Kind == domain.RoomBot {
			r.log.Debug().Str("room", ev.Message.RoomID).Msg("message for unknown room")
			return Change{}, false
		}
		m := *ev.Message
		m.State = domain.StateConfirmed
		if i := st.indexOf(m.ID); i >= 0 {
			old := st.entries[i].msg
			if old.Deleted() {
				m.DeletedAt, m.Body = old.DeletedAt, ""
			}
			m.ClientID = old.ClientID
			st.rev++
			st.entries[i] = entry{msg: m, rev: st.rev}
		} else {
			st.insertConfirmed(m)
		}
		delete(st.typing, m.SenderID)
		return Change{Kind: ChangeMessages, RoomID: st.room.ID}, true

	case domain.EventMessageEdited:
		st, i := r.eventTarget(ev)
		if i < 0 || ev.Message == nil {
			return Change{}, false
		}
		e := &st.entries[i]
		if e.msg.Deleted() {
			return Change{}, false
		}
		st.rev++
		e.rev = st.rev
		e.msg.Body = ev.Message.Body
		e.msg.EditedAt = ev.Message.EditedAt
		if e.msg.EditedAt == nil {
			now := r.opts.Now()
			e.msg.EditedAt = &now
		}
		return Change{Kind: ChangeMessages, RoomID: st.room.ID}, true

	case domain.EventMessageDeleted:
		st, i := r.eventTarget(ev)
		if i < 0 {
			return Change{}, false
		}
		st.tombstone(i, r.opts.Now())
		return Change{Kind: ChangeMessages, RoomID: st.room.ID}, true

	case domain.EventTyping:
		st, ok := r.rooms[ev.RoomID]
		if !ok || ev.UserID == "" || ev.UserID == r.self.ID {
			return Change{}, false
		}
		if st.typing == nil {
			st.typing = make(map[string]time.Time)
		}
		if ev.Typing {
			st.typing[ev.UserID] = r.opts.Now()
		} else {
			delete(st.typing, ev.UserID)
		}
		return Change{Kind: ChangeTyping, RoomID: ev.RoomID}, true

	case domain.EventUserStatus:
		changed := false
		for _, st := range r.rooms {
			for i := range st.room.Participants {
				p := &st.room.Participants[i]
				if p.User.ID == ev.UserID && p.User.Online != ev.Online {
					p.User.Online = ev.Online
					changed = true
				}
			}
		}
		return Change{Kind: ChangePresence}, changed
	}
	return Change{}, false
}

func (r *Rooms) eventTarget(ev domain.Event) (*roomState, int) {
	id := ev.MessageID
	if id == "" && ev.Message != nil {
		id = ev.Message.ID
	}
	if st, ok := r.rooms[ev.RoomID]; ok {
		if i := st.indexOf(id); i >= 0 && id != "" {
			return st, i
		}
	}
	return r.findLocked(id)
}

// Typing returns who is typing in a room, oldest signal first.
func (r *Rooms) Typing(roomID string) []domain.User {
	r.mu.Lock()
	defer r.mu.Unlock()
	st, ok := r.rooms[roomID]
	if !ok {
		return nil
	}
	now := r.opts.Now()
	type typer struct {
		user domain.User
		at   time.Time
	}
	var list []typer
	for id, at := range st.typing {
		if now.Sub(at) > typingTTL {
			delete(st.typing, id)
			continue
		}
		u := domain.User{ID: id}
		if p, ok := st.room.Participant(id); ok {
			u = p.User
		}
		list = append(list, typer{user: u, at: at})
	}
	sort.Slice(list, func(i, j int) bool { return list[i].at.Before(list[j].at) })
	out := make([]domain.User, 0, len(list))
	for _, t := range list {
		out = append(out, t.user)
	}
	return out
}

// SendTyping publishes the local typing state for a room. It is a no-op
// without a push channel and in bot rooms.
func (r *Rooms) SendTyping(roomID string, typing bool) error {
	if r.opts.Typing == nil {
		return nil
	}
	r.mu.Lock()
	st, ok := r.rooms[roomID]
	isBot := ok && st.room.Kind == domain.RoomBot
	r.mu.Unlock()
	if !ok {
		return notFound("SendTyping", "room %s", roomID)
	}
	if isBot {
		return nil
	}
	if err := r.opts.Typing.SendTyping(roomID, typing); err != nil {
		return classify("SendTyping", err)
	}
	return nil
}
