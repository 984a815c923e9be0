package domain

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// MessageType tags what a message body holds.
type MessageType string

const (
	MessageText  MessageType = "text"
	MessageImage MessageType = "image"
	MessageLink  MessageType = "link"
)

// ParseMessageType accepts any casing of a known type. Empty input means text.
func ParseMessageType(s string) (MessageType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "text":
		return MessageText, nil
	case "image":
		return MessageImage, nil
	case "link":
		return MessageLink, nil
	default:
		return "", fmt.Errorf("unknown message type %q", s)
	}
}

// Valid reports whether t is one of the known message types.
func (t MessageType) Valid() bool {
	return t == MessageText || t == MessageImage || t == MessageLink
}

// DeliveryState is where a message sits in its local lifecycle.
//
//	provisional -> confirmed
//	provisional -> discarded
//
// Local messages live only on this client (bot-room traffic) and never
// reach the server.
type DeliveryState string

const (
	StateProvisional DeliveryState = "provisional"
	StateConfirmed   DeliveryState = "confirmed"
	StateDiscarded   DeliveryState = "discarded"
	StateLocal       DeliveryState = "local"
)

// Message is a single chat message.
type Message struct {
	ID        string        `json:"id,omitempty"`
	ClientID  string        `json:"client_id,omitempty"` // set on locally created messages
	RoomID    string        `json:"room_id"`
	SenderID  string        `json:"sender_id"`
	Sender    *User         `json:"sender,omitempty"`
	Body      string        `json:"body"`
	Type      MessageType   `json:"type"`
	CreatedAt time.Time     `json:"created_at"`
	EditedAt  *time.Time    `json:"edited_at,omitempty"`
	DeletedAt *time.Time    `json:"deleted_at,omitempty"`
	State     DeliveryState `json:"state"`
}

// Key identifies the message locally: the server id once known, otherwise the client id.
func (m Message) Key() string {
	if m.ID != "" {
		return m.ID
	}
	return m.ClientID
}

// Deleted reports whether the message is a tombstone.
func (m Message) Deleted() bool {
	return m.DeletedAt != nil
}

// Edited reports whether the message body was changed after it was sent.
func (m Message) Edited() bool {
	return m.EditedAt != nil
}

// Pending reports whether the server has not yet acknowledged the message.
func (m Message) Pending() bool {
	return m.State == StateProvisional
}

// Preview is the one-line summary used for room lists.
func (m Message) Preview() string {
	if m.Deleted() {
		return "message deleted"
	}
	switch m.Type {
	case MessageImage:
		return "[image]"
	case MessageLink:
		return "[link] " + m.Body
	}
	body := strings.Join(strings.Fields(m.Body), " ")
	if r := []rune(body); len(r) > 80 {
		return string(r[:79]) + "…"
	}
	return body
}

// SortMessages orders messages by server timestamp, ties broken by id.
func SortMessages(msgs []Message) {
	sort.SliceStable(msgs, func(i, j int) bool {
		if !msgs[i].CreatedAt.Equal(msgs[j].CreatedAt) {
			return msgs[i].CreatedAt.Before(msgs[j].CreatedAt)
		}
		return msgs[i].ID < msgs[j].ID
	})
}
