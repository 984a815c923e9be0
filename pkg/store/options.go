package store

import (
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	defaultBotDelay        = time.Second
	defaultPageSize        = 50
	defaultRefreshInterval = 5 * time.Second
	defaultChangeBuffer    = 64
	typingTTL              = 6 * time.Second
)

// ChangeKind says which part of the state moved.
type ChangeKind string

const (
	ChangeRooms    ChangeKind = "rooms"
	ChangeMessages ChangeKind = "messages"
	ChangeTyping   ChangeKind = "typing"
	ChangePresence ChangeKind = "presence"
	ChangeFriends  ChangeKind = "friends"
	ChangeRequests ChangeKind = "requests"
	ChangeSession  ChangeKind = "session"
)

// Change is a hint that a snapshot is worth re-reading. Changes are
// coalescable: a full buffer drops new ones.
type Change struct {
	Kind   ChangeKind
	RoomID string
}

// Options configure Rooms and Directory. The zero value is usable.
type Options struct {
	Logger *zerolog.Logger
	// Changes receives change notifications. Stores sharing one channel
	// can be watched with a single reader.
	Changes         chan Change
	Bots            BotResponder
	Typing          TypingSender
	BotDelay        time.Duration
	PageSize        int
	RefreshInterval time.Duration
	Now             func() time.Time
	NewID           func() string
}

func (o Options) withDefaults() Options {
	if o.Logger == nil {
		nop := zerolog.Nop()
		o.Logger = &nop
	}
	if o.Changes == nil {
		o.Changes = make(chan Change, defaultChangeBuffer)
	}
	if o.BotDelay <= 0 {
		o.BotDelay = defaultBotDelay
	}
	if o.PageSize <= 0 {
		o.PageSize = defaultPageSize
	}
	if o.RefreshInterval <= 0 {
		o.RefreshInterval = defaultRefreshInterval
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	if o.NewID == nil {
		o.NewID = uuid.NewString
	}
	return o
}

func notify(ch chan Change, c Change) {
	select {
	case ch <- c:
	default:
	}
}
