package store

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/chitchat/chitchat/pkg/domain"
)

const defaultReconnectInterval = 3 * time.Second

// Sync feeds push events from an EventSource into Rooms and Directory.
// Connection failures are logged and retried; stores stay correct without it.
type Sync struct {
	source  EventSource
	rooms   *Rooms
	dir     *Directory
	log     zerolog.Logger
	limiter *rate.Limiter
}

// NewSync wires source to the stores. Either store may be nil.
func NewSync(source EventSource, rooms *Rooms, dir *Directory, log *zerolog.Logger, reconnect time.Duration) *Sync {
	l := zerolog.Nop()
	if log != nil {
		l = *log
	}
	if reconnect <= 0 {
		reconnect = defaultReconnectInterval
	}
	return &Sync{
		source:  source,
		rooms:   rooms,
		dir:     dir,
		log:     l.With().Str("component", "sync").Logger(),
		limiter: rate.NewLimiter(rate.Every(reconnect), 1),
	}
}

// Dispatch routes one event to the store that owns it.
func (s *Sync) Dispatch(ev domain.Event) {
	switch ev.Type {
	case domain.EventFriendRequest, domain.EventFriendRequestAccepted:
		if s.dir != nil {
			s.dir.ApplyEvent(ev)
		}
	case domain.EventUserStatus:
		if s.dir != nil {
			s.dir.ApplyEvent(ev)
		}
		if s.rooms != nil {
			s.rooms.ApplyEvent(ev)
		}
	default:
		if s.rooms != nil {
			s.rooms.ApplyEvent(ev)
		}
	}
}

// Run listens until ctx ends or the server rejects the credential. After
// every reconnect the stores are refreshed to cover events missed while
// disconnected.
func (s *Sync) Run(ctx context.Context) error {
	for attempt := 0; ; attempt++ {
		if err := s.limiter.Wait(ctx); err != nil {
			return nil
		}
		if attempt > 0 {
			s.refresh(ctx)
		}
		err := s.source.Listen(ctx, s.Dispatch)
		if ctx.Err() != nil {
			return nil
		}
		if err == nil {
			s.log.Debug().Msg("push channel closed")
			continue
		}
		serr := classify("Sync", err)
		if serr.Kind == KindAuth {
			s.log.Warn().Err(err).Msg("push channel rejected credential")
			return serr
		}
		s.log.Warn().Err(err).Int("attempt", attempt+1).Msg("push channel dropped, reconnecting")
	}
}

func (s *Sync) refresh(ctx context.Context) {
	if s.rooms != nil {
		s.rooms.Refresh(ctx)
	}
	if s.dir != nil {
		s.dir.Refresh(ctx)
	}
}
