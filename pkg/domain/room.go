package domain

import (
	"errors"
	"fmt"
	"time"
)

// RoomKind is the conversation shape of a room.
type RoomKind string

const (
	RoomDirect RoomKind = "direct"
	RoomGroup  RoomKind = "group"
	RoomBot    RoomKind = "bot"
)

// Role is a participant's standing in a group room.
type Role string

const (
	RoleAdmin  Role = "admin"
	RoleMember Role = "member"
)

// ErrInvalidRoom is wrapped by Room.Validate failures.
var ErrInvalidRoom = errors.New("invalid room")

// Participant is a room member. Participants are never dropped from a
// roster; leaving marks them Departed.
type Participant struct {
	User     User `json:"user"`
	Role     Role `json:"role,omitempty"`
	Departed bool `json:"departed,omitempty"`
}

// Room is a conversation: direct, group or bot-backed.
type Room struct {
	ID           string        `json:"id"`
	Kind         RoomKind      `json:"kind"`
	Name         string        `json:"name"`
	AvatarURL    string        `json:"avatar_url,omitempty"`
	CreatorID    string        `json:"creator_id,omitempty"`
	Participants []Participant `json:"participants"` // ordered by join
	Messages     []Message     `json:"messages,omitempty"`
	LastMessage  *Message      `json:"last_message,omitempty"`
	CreatedAt    time.Time     `json:"created_at"`
}

// Validate checks the structural invariants of a room. selfID may be empty
// when the local user is not yet known.
func (r Room) Validate(selfID string) error {
	if r.ID == "" {
		return fmt.Errorf("%w: missing id", ErrInvalidRoom)
	}
	if r.Name == "" {
		return fmt.Errorf("%w %s: missing name", ErrInvalidRoom, r.ID)
	}
	if len(r.Participants) == 0 {
		return fmt.Errorf("%w %s: no participants", ErrInvalidRoom, r.ID)
	}
	switch r.Kind {
	case RoomDirect:
		if len(r.Participants) != 2 {
			return fmt.Errorf("%w %s: direct room has %d participants", ErrInvalidRoom, r.ID, len(r.Participants))
		}
	case RoomBot:
		bots := 0
		for _, p := range r.Participants {
			if p.User.IsBot() {
				bots++
			}
		}
		if len(r.Participants) != 2 || bots != 1 {
			return fmt.Errorf("%w %s: bot room needs one bot and one human", ErrInvalidRoom, r.ID)
		}
	case RoomGroup:
	default:
		return fmt.Errorf("%w %s: unknown kind %q", ErrInvalidRoom, r.ID, r.Kind)
	}
	if selfID != "" {
		if _, ok := r.Participant(selfID); !ok {
			return fmt.Errorf("%w %s: local user is not a participant", ErrInvalidRoom, r.ID)
		}
	}
	return nil
}

// Participant looks up a participant by user id.
func (r Room) Participant(userID string) (Participant, bool) {
	for _, p := range r.Participants {
		if p.User.ID == userID {
			return p, true
		}
	}
	return Participant{}, false
}

// Members returns the participants that have not departed.
func (r Room) Members() []Participant {
	out := make([]Participant, 0, len(r.Participants))
	for _, p := range r.Participants {
		if !p.Departed {
			out = append(out, p)
		}
	}
	return out
}

// Bot returns the bot participant of a bot room.
func (r Room) Bot() (User, bool) {
	for _, p := range r.Participants {
		if p.User.IsBot() {
			return p.User, true
		}
	}
	return User{}, false
}

// Counterpart returns the other participant of a direct or bot room.
func (r Room) Counterpart(selfID string) (User, bool) {
	if r.Kind == RoomGroup {
		return User{}, false
	}
	for _, p := range r.Participants {
		if p.User.ID != selfID {
			return p.User, true
		}
	}
	return User{}, false
}

// Title is the label to show for the room from selfID's point of view.
func (r Room) Title(selfID string) string {
	if r.Kind != RoomGroup {
		if u, ok := r.Counterpart(selfID); ok {
			return u.Name()
		}
	}
	return r.Name
}

// IsAdmin reports whether userID administers the room.
func (r Room) IsAdmin(userID string) bool {
	p, ok := r.Participant(userID)
	return ok && !p.Departed && p.Role == RoleAdmin
}

// Message finds a message by server or client id.
func (r Room) Message(key string) (Message, bool) {
	for _, m := range r.Messages {
		if m.ID == key || (m.ClientID != "" && m.ClientID == key) {
			return m, true
		}
	}
	return Message{}, false
}
