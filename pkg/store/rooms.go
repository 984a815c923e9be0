package store

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/chitchat/chitchat/pkg/domain"
)

// entry is one message in a room's local sequence, stamped with the room
// revision at which it last changed.
type entry struct {
	msg domain.Message
	rev uint64
}

type roomState struct {
	room    domain.Room // Messages is always nil here; entries hold them
	entries []entry
	rev     uint64
	absent  bool // missing from the last room list
	hidden  bool
	local   bool // exists only on this client
	typing  map[string]time.Time // user id -> last typing signal
}

func (st *roomState) visible() bool {
	return !st.absent && !st.hidden
}

// Rooms is the room and message store. It is the only writer of room state;
// readers get copies.
type Rooms struct {
	transport RoomTransport
	opts      Options
	log       zerolog.Logger
	limiter   *rate.Limiter

	mu         sync.Mutex
	self       domain.User
	rooms      map[string]*roomState
	order      []string
	active     string
	loadedOnce bool
	gen        uint64 // bumped by Reset; results from older generations are dropped
	ctx        context.Context
	cancel     context.CancelFunc
	wg         sync.WaitGroup
}

// NewRooms creates an empty room store backed by t.
func NewRooms(t RoomTransport, opts Options) *Rooms {
	opts = opts.withDefaults()
	ctx, cancel := context.WithCancel(context.Background())
	return &Rooms{
		transport: t,
		opts:      opts,
		log:       opts.Logger.With().Str("component", "rooms").Logger(),
		limiter:   rate.NewLimiter(rate.Every(opts.RefreshInterval), 1),
		rooms:     make(map[string]*roomState),
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Changes returns the notification channel.
func (r *Rooms) Changes() <-chan Change {
	return r.opts.Changes
}

// SetSelf records the local user. Rooms loaded afterwards must include them.
func (r *Rooms) SetSelf(u domain.User) {
	r.mu.Lock()
	r.self = u
	r.mu.Unlock()
}

// Reset discards all state. In-flight results and pending bot replies from
// before the reset are dropped.
func (r *Rooms) Reset() {
	r.mu.Lock()
	r.gen++
	r.cancel()
	r.ctx, r.cancel = context.WithCancel(context.Background())
	r.self = domain.User{}
	r.rooms = make(map[string]*roomState)
	r.order = nil
	r.active = ""
	r.loadedOnce = false
	r.mu.Unlock()
	notify(r.opts.Changes, Change{Kind: ChangeRooms})
}

// Close stops background work and waits for it to finish.
func (r *Rooms) Close() {
	r.mu.Lock()
	r.cancel()
	r.mu.Unlock()
	r.wg.Wait()
}

// Rooms returns the visible rooms in list order.
func (r *Rooms) Rooms() []domain.Room {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.Room, 0, len(r.order))
	for _, id := range r.order {
		if st := r.rooms[id]; st.visible() {
			out = append(out, st.snapshot())
		}
	}
	return out
}

// Room returns a snapshot of one room, hidden or not.
func (r *Rooms) Room(id string) (domain.Room, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	st, ok := r.rooms[id]
	if !ok {
		return domain.Room{}, false
	}
	return st.snapshot(), true
}

// Active returns the focused room, if any.
func (r *Rooms) Active() (domain.Room, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	st, ok := r.rooms[r.active]
	if !ok {
		return domain.Room{}, false
	}
	return st.snapshot(), true
}

// ActiveID returns the focused room id, or "".
func (r *Rooms) ActiveID() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.active
}

// LoadRooms replaces the visible room set with the server's list. Malformed
// rooms are dropped. On failure the first load leaves an empty set; later
// loads keep what was there.
func (r *Rooms) LoadRooms(ctx context.Context) error {
	const op = "LoadRooms"
	r.mu.Lock()
	gen := r.gen
	r.mu.Unlock()

	rooms, err := r.transport.ListRooms(ctx)

	r.mu.Lock()
	defer r.mu.Unlock()
	if gen != r.gen {
		return nil
	}
	if err != nil {
		if !r.loadedOnce {
			r.loadedOnce = true
			for _, st := range r.rooms {
				if !st.local {
					st.absent = true
				}
			}
			notify(r.opts.Changes, Change{Kind: ChangeRooms})
		}
		return classify(op, err)
	}
	r.loadedOnce = true

	seen := make(map[string]bool, len(rooms))
	order := make([]string, 0, len(rooms)+len(r.order))
	for _, rm := range rooms {
		if err := rm.Validate(r.self.ID); err != nil {
			r.log.Warn().Err(err).Str("room", rm.ID).Msg("dropping malformed room")
			continue
		}
		if seen[rm.ID] {
			continue
		}
		seen[rm.ID] = true
		order = append(order, rm.ID)
		r.upsertLocked(rm)
	}
	for _, id := range r.order {
		if seen[id] {
			continue
		}
		if st := r.rooms[id]; !st.local {
			st.absent = true
		}
		order = append(order, id)
	}
	r.order = order
	notify(r.opts.Changes, Change{Kind: ChangeRooms})
	return nil
}

// upsertLocked merges server room metadata into the store. Known messages
// are kept and departed participants stay on the roster.
func (r *Rooms) upsertLocked(rm domain.Room) *roomState {
	incoming := rm
	incoming.Messages = nil
	st, ok := r.rooms[rm.ID]
	if !ok {
		st = &roomState{room: incoming}
		st.room.Participants = append([]domain.Participant(nil), rm.Participants...)
		r.rooms[rm.ID] = st
		r.order = appendUnique(r.order, rm.ID)
		return st
	}
	incoming.Participants = mergeParticipants(st.room.Participants, rm.Participants)
	if incoming.LastMessage == nil {
		incoming.LastMessage = st.room.LastMessage
	}
	st.room = incoming
	st.absent = false
	return st
}

func mergeParticipants(old, fresh []domain.Participant) []domain.Participant {
	out := make([]domain.Participant, 0, len(fresh)+len(old))
	present := make(map[string]bool, len(fresh))
	for _, p := range fresh {
		present[p.User.ID] = true
		out = append(out, p)
	}
	for _, p := range old {
		if !present[p.User.ID] {
			p.Departed = true
			out = append(out, p)
		}
	}
	return out
}

func appendUnique(ids []string, id string) []string {
	for _, v := range ids {
		if v == id {
			return ids
		}
	}
	return append(ids, id)
}

func prependUnique(ids []string, id string) []string {
	out := make([]string, 0, len(ids)+1)
	out = append(out, id)
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}

// SetActiveRoom focuses a room, loading its history if nothing is loaded
// yet. An empty id clears focus.
func (r *Rooms) SetActiveRoom(ctx context.Context, roomID string) error {
	const op = "SetActiveRoom"
	r.mu.Lock()
	if roomID == "" {
		r.active = ""
		r.mu.Unlock()
		notify(r.opts.Changes, Change{Kind: ChangeRooms})
		return nil
	}
	st, ok := r.rooms[roomID]
	if !ok {
		r.mu.Unlock()
		return notFound(op, "room %s", roomID)
	}
	r.active = roomID
	needsLoad := len(st.entries) == 0 && st.room.Kind != domain.RoomBot
	r.mu.Unlock()
	notify(r.opts.Changes, Change{Kind: ChangeRooms, RoomID: roomID})

	if needsLoad {
		return r.LoadMessages(ctx, roomID)
	}
	return nil
}

// CreateRoom creates a group room, or a direct room when kind is direct.
func (r *Rooms) CreateRoom(ctx context.Context, name string, kind domain.RoomKind, participantIDs []string) (domain.Room, error) {
	const op = "CreateRoom"
	name = strings.TrimSpace(name)
	switch kind {
	case domain.RoomGroup:
		if name == "" {
			return domain.Room{}, invalid(op, "group name is required")
		}
		if len(participantIDs) == 0 {
			return domain.Room{}, invalid(op, "a group needs at least one other participant")
		}
	case domain.RoomDirect:
		if len(participantIDs) != 1 {
			return domain.Room{}, invalid(op, "a direct room has exactly one other participant")
		}
		return r.OpenDirect(ctx, participantIDs[0])
	default:
		return domain.Room{}, invalid(op, "rooms of kind "+string(kind)+" cannot be created on the server")
	}

	created, err := r.transport.CreateRoom(ctx, name, kind, participantIDs)
	if err != nil {
		return domain.Room{}, classify(op, err)
	}
	return r.adopt(op, created)
}

// OpenDirect returns the direct room with userID, creating it if needed.
func (r *Rooms) OpenDirect(ctx context.Context, userID string) (domain.Room, error) {
	const op = "OpenDirect"
	r.mu.Lock()
	if userID == "" || userID == r.self.ID {
		r.mu.Unlock()
		return domain.Room{}, invalid(op, "cannot open a direct room with yourself")
	}
	for _, id := range r.order {
		st := r.rooms[id]
		if st.room.Kind != domain.RoomDirect || st.absent {
			continue
		}
		if other, ok := st.room.Counterpart(r.self.ID); ok && other.ID == userID {
			st.hidden = false
			snap := st.snapshot()
			r.mu.Unlock()
			return snap, nil
		}
	}
	r.mu.Unlock()

	room, err := r.transport.OpenDirect(ctx, userID)
	if err != nil {
		return domain.Room{}, classify(op, err)
	}
	return r.adopt(op, room)
}

// OpenBot returns the local room for chatting with bot, creating it on
// first use. Bot rooms never touch the server's room endpoints.
func (r *Rooms) OpenBot(bot domain.Bot) (domain.Room, error) {
	const op = "OpenBot"
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.self.ID == "" {
		return domain.Room{}, &Error{Op: op, Kind: KindAuth, Err: errNotSignedIn}
	}
	if bot.ID == "" {
		return domain.Room{}, invalid(op, "bot id is required")
	}
	id := "bot:" + bot.ID
	if st, ok := r.rooms[id]; ok {
		st.hidden = false
		return st.snapshot(), nil
	}
	rm := domain.Room{
		ID:   id,
		Kind: domain.RoomBot,
		Name: bot.Name,
		Participants: []domain.Participant{
			{User: r.self},
			{User: bot.User()},
		},
		CreatedAt: r.opts.Now(),
	}
	if err := rm.Validate(r.self.ID); err != nil {
		return domain.Room{}, &Error{Op: op, Kind: KindValidation, Err: err}
	}
	st := &roomState{room: rm, local: true}
	r.rooms[id] = st
	r.order = prependUnique(r.order, id)
	notify(r.opts.Changes, Change{Kind: ChangeRooms, RoomID: id})
	return st.snapshot(), nil
}

func (r *Rooms) adopt(op string, rm *domain.Room) (domain.Room, error) {
	if rm == nil {
		return domain.Room{}, &Error{Op: op, Kind: KindTransport, Err: errEmptyResponse}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := rm.Validate(r.self.ID); err != nil {
		return domain.Room{}, &Error{Op: op, Kind: KindTransport, Err: err}
	}
	st := r.upsertLocked(*rm)
	st.hidden = false
	r.order = prependUnique(r.order, rm.ID)
	notify(r.opts.Changes, Change{Kind: ChangeRooms, RoomID: rm.ID})
	return st.snapshot(), nil
}

// Hide removes a room from the list without forgetting it.
func (r *Rooms) Hide(roomID string) error {
	r.mu.Lock()
	st, ok := r.rooms[roomID]
	if !ok {
		r.mu.Unlock()
		return notFound("Hide", "room %s", roomID)
	}
	st.hidden = true
	if r.active == roomID {
		r.active = ""
	}
	r.mu.Unlock()
	notify(r.opts.Changes, Change{Kind: ChangeRooms, RoomID: roomID})
	return nil
}

// AddParticipant adds a user to a group room.
func (r *Rooms) AddParticipant(ctx context.Context, roomID, userID string) error {
	const op = "AddParticipant"
	if err := r.requireGroup(op, roomID); err != nil {
		return err
	}
	updated, err := r.transport.AddParticipant(ctx, roomID, userID)
	if err != nil {
		return classify(op, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	st, ok := r.rooms[roomID]
	if !ok {
		return nil
	}
	if updated != nil && updated.Validate(r.self.ID) == nil {
		r.upsertLocked(*updated)
	} else {
		joined := false
		for i := range st.room.Participants {
			if st.room.Participants[i].User.ID == userID {
				st.room.Participants[i].Departed = false
				joined = true
			}
		}
		if !joined {
			st.room.Participants = append(st.room.Participants, domain.Participant{
				User: domain.User{ID: userID},
				Role: domain.RoleMember,
			})
		}
	}
	notify(r.opts.Changes, Change{Kind: ChangeRooms, RoomID: roomID})
	return nil
}

// RemoveParticipant marks a user as departed from a group room. Removing
// yourself leaves the room and hides it.
func (r *Rooms) RemoveParticipant(ctx context.Context, roomID, userID string) error {
	const op = "RemoveParticipant"
	if err := r.requireGroup(op, roomID); err != nil {
		return err
	}
	if err := r.transport.RemoveParticipant(ctx, roomID, userID); err != nil {
		return classify(op, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	st, ok := r.rooms[roomID]
	if !ok {
		return nil
	}
	for i := range st.room.Participants {
		if st.room.Participants[i].User.ID == userID {
			st.room.Participants[i].Departed = true
		}
	}
	if userID == r.self.ID {
		st.hidden = true
		if r.active == roomID {
			r.active = ""
		}
	}
	notify(r.opts.Changes, Change{Kind: ChangeRooms, RoomID: roomID})
	return nil
}

func (r *Rooms) requireGroup(op, roomID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	st, ok := r.rooms[roomID]
	if !ok {
		return notFound(op, "room %s", roomID)
	}
	if st.room.Kind != domain.RoomGroup {
		return invalid(op, "participants can only be changed in group rooms")
	}
	return nil
}

// Refresh reloads the room list and the active room's history in the
// background. Calls closer together than the refresh interval are skipped,
// and failures are logged rather than returned.
func (r *Rooms) Refresh(ctx context.Context) {
	if !r.limiter.Allow() {
		return
	}
	if err := r.LoadRooms(ctx); err != nil && !canceled(err) {
		r.log.Warn().Err(err).Msg("background room refresh failed")
	}
	if id := r.ActiveID(); id != "" {
		if err := r.LoadMessages(ctx, id); err != nil && !canceled(err) {
			r.log.Warn().Err(err).Str("room", id).Msg("background message refresh failed")
		}
	}
}
