package store

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/chitchat/chitchat/pkg/client"
	"github.com/chitchat/chitchat/pkg/domain"
)

var t0 = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

var me = domain.User{ID: "me", DisplayName: "Me", Handle: "me", Email: "me@example.com"}

func person(id string) domain.User {
	return domain.User{ID: id, DisplayName: "User " + id, Handle: id, Email: id + "@example.com"}
}

func members(ids ...string) []domain.Participant {
	out := make([]domain.Participant, 0, len(ids))
	for _, id := range ids {
		u := person(id)
		if id == me.ID {
			u = me
		}
		out = append(out, domain.Participant{User: u, Role: domain.RoleMember})
	}
	return out
}

func directRoom(id, other string) domain.Room {
	return domain.Room{ID: id, Kind: domain.RoomDirect, Name: "dm " + other, Participants: members(me.ID, other), CreatedAt: t0}
}

func groupRoom(id, name string, ids ...string) domain.Room {
	return domain.Room{ID: id, Kind: domain.RoomGroup, Name: name, CreatorID: me.ID, Participants: members(append([]string{me.ID}, ids...)...), CreatedAt: t0}
}

func serverMsg(id, roomID, sender, body string, sec int) domain.Message {
	return domain.Message{
		ID:        id,
		RoomID:    roomID,
		SenderID:  sender,
		Body:      body,
		Type:      domain.MessageText,
		CreatedAt: t0.Add(time.Duration(sec) * time.Second),
		State:     domain.StateConfirmed,
	}
}

func httpErr(code int) error {
	return fmt.Errorf("client.Test: %w", &client.HTTPError{StatusCode: code, Message: http.StatusText(code)})
}

// clock is a manual clock shared by a store and its fake server.
type clock struct {
	mu  sync.Mutex
	now time.Time
}

func newClock() *clock {
	return &clock{now: t0.Add(time.Hour)}
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// fakeServer is an in-memory backend implementing every transport
// interface. Hooks let tests block or fail individual calls.
type fakeServer struct {
	mu      sync.Mutex
	calls   map[string]int
	seq     int
	rooms   []domain.Room
	history map[string][]domain.Message

	friends  []domain.User
	requests []domain.FriendRequest
	users    []domain.User

	listErr   error
	sendErr   error
	editErr   error
	deleteErr error
	acceptErr error
	friendErr error

	// getHook runs after GetMessages has read the history and before it
	// returns. sendHook runs before SendMessage touches the history.
	getHook  func(call int)
	sendHook func(call int)

	botReply string
	botErr   error
}

func newFakeServer() *fakeServer {
	return &fakeServer{
		calls:   make(map[string]int),
		history: make(map[string][]domain.Message),
	}
}

func (f *fakeServer) hit(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[name]++
	return f.calls[name]
}

func (f *fakeServer) count(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[name]
}

func (f *fakeServer) ListRooms(context.Context) ([]domain.Room, error) {
	f.hit("ListRooms")
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	return append([]domain.Room(nil), f.rooms...), nil
}

func (f *fakeServer) CreateRoom(_ context.Context, name string, kind domain.RoomKind, ids []string) (*domain.Room, error) {
	n := f.hit("CreateRoom")
	rm := groupRoom(fmt.Sprintf("g%d", n), name, ids...)
	rm.Kind = kind
	f.mu.Lock()
	f.rooms = append(f.rooms, rm)
	f.mu.Unlock()
	return &rm, nil
}

func (f *fakeServer) OpenDirect(_ context.Context, userID string) (*domain.Room, error) {
	f.hit("OpenDirect")
	rm := directRoom("dm-"+userID, userID)
	f.mu.Lock()
	f.rooms = append(f.rooms, rm)
	f.mu.Unlock()
	return &rm, nil
}

func (f *fakeServer) AddParticipant(_ context.Context, roomID, userID string) (*domain.Room, error) {
	f.hit("AddParticipant")
	return nil, nil
}

func (f *fakeServer) RemoveParticipant(context.Context, string, string) error {
	f.hit("RemoveParticipant")
	return nil
}

func (f *fakeServer) GetMessages(_ context.Context, roomID string, _ domain.PageRequest) (*domain.MessagePage, error) {
	n := f.hit("GetMessages")
	f.mu.Lock()
	msgs := append([]domain.Message(nil), f.history[roomID]...)
	hook := f.getHook
	f.mu.Unlock()
	if hook != nil {
		hook(n)
	}
	return &domain.MessagePage{Messages: msgs, Total: len(msgs), TotalPages: 1}, nil
}

func (f *fakeServer) SendMessage(_ context.Context, roomID, body string, typ domain.MessageType) (*domain.Message, error) {
	n := f.hit("SendMessage")
	f.mu.Lock()
	hook := f.sendHook
	f.mu.Unlock()
	if hook != nil {
		hook(n)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return nil, f.sendErr
	}
	f.seq++
	m := serverMsg(fmt.Sprintf("m%d", f.seq), roomID, me.ID, body, f.seq)
	m.Type = typ
	f.history[roomID] = append(f.history[roomID], m)
	return &m, nil
}

func (f *fakeServer) EditMessage(_ context.Context, id, body string, _ domain.MessageType) (*domain.Message, error) {
	f.hit("EditMessage")
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.editErr != nil {
		return nil, f.editErr
	}
	for rid, msgs := range f.history {
		for i := range msgs {
			if msgs[i].ID == id {
				at := t0.Add(2 * time.Hour)
				f.history[rid][i].Body = body
				f.history[rid][i].EditedAt = &at
				m := f.history[rid][i]
				return &m, nil
			}
		}
	}
	return nil, httpErr(http.StatusNotFound)
}

func (f *fakeServer) DeleteMessage(context.Context, string) error {
	f.hit("DeleteMessage")
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.deleteErr
}

func (f *fakeServer) SearchMessages(_ context.Context, q domain.SearchQuery) (*domain.MessagePage, error) {
	f.hit("SearchMessages")
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Message
	for rid, msgs := range f.history {
		if q.RoomID != "" && rid != q.RoomID {
			continue
		}
		for _, m := range msgs {
			if strings.Contains(strings.ToLower(m.Body), strings.ToLower(q.Query)) {
				out = append(out, m)
			}
		}
	}
	domain.SortMessages(out)
	return &domain.MessagePage{Messages: out, Total: len(out), TotalPages: 1, Page: q.Page, Size: q.Size}, nil
}

func (f *fakeServer) GenerateBotResponse(_ context.Context, _, prompt string) (string, error) {
	f.hit("GenerateBotResponse")
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.botErr != nil {
		return "", f.botErr
	}
	if f.botReply != "" {
		return f.botReply, nil
	}
	return "echo: " + prompt, nil
}

func (f *fakeServer) ListFriends(context.Context) ([]domain.User, error) {
	f.hit("ListFriends")
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.friendErr != nil {
		return nil, f.friendErr
	}
	return append([]domain.User(nil), f.friends...), nil
}

func (f *fakeServer) ListFriendRequests(context.Context) ([]domain.FriendRequest, error) {
	f.hit("ListFriendRequests")
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.friendErr != nil {
		return nil, f.friendErr
	}
	return append([]domain.FriendRequest(nil), f.requests...), nil
}

func (f *fakeServer) SendFriendRequest(_ context.Context, identifier string) error {
	f.hit("SendFriendRequest")
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.Email == identifier || u.Handle == identifier {
			f.seq++
			f.requests = append(f.requests, domain.FriendRequest{
				ID: fmt.Sprintf("r%d", f.seq), SenderID: me.ID, ReceiverID: u.ID, Sender: me, Status: domain.RequestPending,
			})
			return nil
		}
	}
	return httpErr(http.StatusNotFound)
}

func (f *fakeServer) AcceptFriendRequest(_ context.Context, id string) error {
	f.hit("AcceptFriendRequest")
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.acceptErr != nil {
		return f.acceptErr
	}
	for i, r := range f.requests {
		if r.ID == id {
			f.requests = append(f.requests[:i:i], f.requests[i+1:]...)
			f.friends = append(f.friends, r.Sender)
			return nil
		}
	}
	return httpErr(http.StatusNotFound)
}

func (f *fakeServer) RejectFriendRequest(_ context.Context, id string) error {
	f.hit("RejectFriendRequest")
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, r := range f.requests {
		if r.ID == id {
			f.requests = append(f.requests[:i:i], f.requests[i+1:]...)
			return nil
		}
	}
	return httpErr(http.StatusNotFound)
}

func (f *fakeServer) RemoveFriend(_ context.Context, id string) error {
	f.hit("RemoveFriend")
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, u := range f.friends {
		if u.ID == id {
			f.friends = append(f.friends[:i:i], f.friends[i+1:]...)
			return nil
		}
	}
	return httpErr(http.StatusNotFound)
}

func (f *fakeServer) FindUser(_ context.Context, query string) (*domain.UserMatch, error) {
	f.hit("FindUser")
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.Email == query || u.Handle == query {
			return &domain.UserMatch{User: u}, nil
		}
	}
	return nil, fmt.Errorf("client.FindUser: %w", &client.HTTPError{StatusCode: http.StatusNotFound, Message: "User not found"})
}

func (f *fakeServer) SearchUsers(_ context.Context, query string) ([]domain.User, error) {
	f.hit("SearchUsers")
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.User
	for _, u := range f.users {
		if strings.Contains(u.Handle, query) || strings.Contains(u.Email, query) {
			out = append(out, u)
		}
	}
	return out, nil
}

// newTestRooms builds a signed-in room store over srv.
func newTestRooms(t *testing.T, srv *fakeServer, clk *clock, mutate ...func(*Options)) *Rooms {
	t.Helper()
	var ids atomic.Int64
	opts := Options{
		Now:   clk.Now,
		NewID: func() string { return fmt.Sprintf("c%d", ids.Add(1)) },
	}
	for _, m := range mutate {
		m(&opts)
	}
	r := NewRooms(srv, opts)
	r.SetSelf(me)
	t.Cleanup(r.Close)
	return r
}

func newTestDirectory(t *testing.T, srv *fakeServer) *Directory {
	t.Helper()
	d := NewDirectory(srv, Options{})
	d.SetSelf(me)
	t.Cleanup(d.Close)
	return d
}

var errBoom = errors.New("boom")
