package store

import (
	"context"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/chitchat/chitchat/pkg/client"
	"github.com/chitchat/chitchat/pkg/domain"
)

// Directory caches the local user's friends and friend requests.
type Directory struct {
	transport FriendTransport
	opts      Options
	log       zerolog.Logger
	limiter   *rate.Limiter

	mu       sync.Mutex
	self     domain.User
	friends  []domain.User
	requests []domain.FriendRequest
	inflight map[string]bool
	gen      uint64
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
}

// NewDirectory creates an empty directory backed by t.
func NewDirectory(t FriendTransport, opts Options) *Directory {
	opts = opts.withDefaults()
	ctx, cancel := context.WithCancel(context.Background())
	return &Directory{
		transport: t,
		opts:      opts,
		log:       opts.Logger.With().Str("component", "directory").Logger(),
		limiter:   rate.NewLimiter(rate.Every(opts.RefreshInterval), 1),
		inflight:  make(map[string]bool),
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Changes returns the notification channel.
func (d *Directory) Changes() <-chan Change {
	return d.opts.Changes
}

// SetSelf records the local user.
func (d *Directory) SetSelf(u domain.User) {
	d.mu.Lock()
	d.self = u
	d.mu.Unlock()
}

// Reset discards all cached relationships.
func (d *Directory) Reset() {
	d.mu.Lock()
	d.gen++
	d.cancel()
	d.ctx, d.cancel = context.WithCancel(context.Background())
	d.self = domain.User{}
	d.friends = nil
	d.requests = nil
	d.inflight = make(map[string]bool)
	d.mu.Unlock()
	notify(d.opts.Changes, Change{Kind: ChangeFriends})
}

// Close stops background refreshes and waits for them.
func (d *Directory) Close() {
	d.mu.Lock()
	d.cancel()
	d.mu.Unlock()
	d.wg.Wait()
}

// Friends returns a copy of the friend list.
func (d *Directory) Friends() []domain.User {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]domain.User{}, d.friends...)
}

// Requests returns every cached friend request.
func (d *Directory) Requests() []domain.FriendRequest {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]domain.FriendRequest{}, d.requests...)
}

// Incoming returns requests other users sent to the local user.
func (d *Directory) Incoming() []domain.FriendRequest {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := []domain.FriendRequest{}
	for _, r := range d.requests {
		if r.SenderID != d.self.ID {
			out = append(out, r)
		}
	}
	return out
}

// Outgoing returns requests the local user sent.
func (d *Directory) Outgoing() []domain.FriendRequest {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := []domain.FriendRequest{}
	for _, r := range d.requests {
		if d.self.ID != "" && r.SenderID == d.self.ID {
			out = append(out, r)
		}
	}
	return out
}

// IsFriend reports whether userID is a friend.
func (d *Directory) IsFriend(userID string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.friendIndex(userID) >= 0
}

func (d *Directory) friendIndex(userID string) int {
	for i, f := range d.friends {
		if f.ID == userID {
			return i
		}
	}
	return -1
}

func (d *Directory) requestIndex(id string) int {
	for i, r := range d.requests {
		if r.ID == id {
			return i
		}
	}
	return -1
}

// pruneLocked drops requests between the local user and someone who is
// already a friend.
func (d *Directory) pruneLocked() {
	if len(d.requests) == 0 {
		return
	}
	kept := d.requests[:0:0]
	for _, r := range d.requests {
		other := r.SenderID
		if other == d.self.ID {
			other = r.ReceiverID
		}
		if d.friendIndex(other) >= 0 {
			continue
		}
		kept = append(kept, r)
	}
	d.requests = kept
}

func (d *Directory) addFriendLocked(u domain.User) {
	if u.ID == "" {
		return
	}
	if i := d.friendIndex(u.ID); i >= 0 {
		d.friends[i] = u
		return
	}
	d.friends = append(d.friends, u)
}

// LoadFriends replaces the friend list. On failure the old list stays.
func (d *Directory) LoadFriends(ctx context.Context) error {
	const op = "LoadFriends"
	d.mu.Lock()
	gen := d.gen
	d.mu.Unlock()

	friends, err := d.transport.ListFriends(ctx)

	d.mu.Lock()
	defer d.mu.Unlock()
	if gen != d.gen {
		return nil
	}
	if err != nil {
		return classify(op, err)
	}
	d.friends = nil
	for _, f := range friends {
		d.addFriendLocked(f)
	}
	d.pruneLocked()
	notify(d.opts.Changes, Change{Kind: ChangeFriends})
	return nil
}

// LoadFriendRequests replaces the request list. On failure the old list stays.
func (d *Directory) LoadFriendRequests(ctx context.Context) error {
	const op = "LoadFriendRequests"
	d.mu.Lock()
	gen := d.gen
	d.mu.Unlock()

	reqs, err := d.transport.ListFriendRequests(ctx)

	d.mu.Lock()
	defer d.mu.Unlock()
	if gen != d.gen {
		return nil
	}
	if err != nil {
		return classify(op, err)
	}
	d.requests = make([]domain.FriendRequest, 0, len(reqs))
	seen := make(map[string]bool, len(reqs))
	for _, r := range reqs {
		if r.ID == "" || seen[r.ID] {
			continue
		}
		if r.Status != "" && r.Status != domain.RequestPending {
			continue
		}
		seen[r.ID] = true
		d.requests = append(d.requests, r)
	}
	d.pruneLocked()
	notify(d.opts.Changes, Change{Kind: ChangeRequests})
	return nil
}

// SendFriendRequest asks the user with the given email or handle to be
// friends. The friend list is untouched; pending requests are refreshed in
// the background.
func (d *Directory) SendFriendRequest(ctx context.Context, identifier string) error {
	const op = "SendFriendRequest"
	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		return invalid(op, "email or username is required")
	}
	d.mu.Lock()
	self := d.self
	d.mu.Unlock()
	if self.ID != "" && (strings.EqualFold(identifier, self.Email) || strings.EqualFold(identifier, self.Handle)) {
		return invalid(op, "you cannot send a friend request to yourself")
	}

	if err := d.transport.SendFriendRequest(ctx, identifier); err != nil {
		return classify(op, err)
	}
	d.refreshRequestsInBackground()
	return nil
}

func (d *Directory) refreshRequestsInBackground() {
	d.mu.Lock()
	ctx := d.ctx
	d.wg.Add(1)
	d.mu.Unlock()
	go func() {
		defer d.wg.Done()
		if err := d.LoadFriendRequests(ctx); err != nil && !canceled(err) {
			d.log.Warn().Err(err).Msg("refresh friend requests failed")
		}
	}()
}

// AcceptFriendRequest accepts a pending request. A request that is not
// pending locally, or is already being accepted, is not found and no call
// is made.
func (d *Directory) AcceptFriendRequest(ctx context.Context, requestID string) error {
	const op = "AcceptFriendRequest"
	req, gen, err := d.claim(op, requestID)
	if err != nil {
		return err
	}

	err = d.transport.AcceptFriendRequest(ctx, requestID)

	d.mu.Lock()
	delete(d.inflight, requestID)
	if gen != d.gen {
		d.mu.Unlock()
		return nil
	}
	if err != nil {
		d.mu.Unlock()
		return classify(op, err)
	}
	if i := d.requestIndex(requestID); i >= 0 {
		d.requests = append(d.requests[:i:i], d.requests[i+1:]...)
	}
	if req.SenderID != d.self.ID && req.Sender.ID != "" {
		d.addFriendLocked(req.Sender)
	}
	d.mu.Unlock()
	notify(d.opts.Changes, Change{Kind: ChangeRequests})

	if err := d.LoadFriends(ctx); err != nil {
		d.log.Warn().Err(err).Msg("reload friends after accept failed")
	}
	return nil
}

// RejectFriendRequest declines a pending request.
func (d *Directory) RejectFriendRequest(ctx context.Context, requestID string) error {
	const op = "RejectFriendRequest"
	_, gen, err := d.claim(op, requestID)
	if err != nil {
		return err
	}

	err = d.transport.RejectFriendRequest(ctx, requestID)

	d.mu.Lock()
	delete(d.inflight, requestID)
	if gen != d.gen {
		d.mu.Unlock()
		return nil
	}
	if err != nil {
		d.mu.Unlock()
		return classify(op, err)
	}
	if i := d.requestIndex(requestID); i >= 0 {
		d.requests = append(d.requests[:i:i], d.requests[i+1:]...)
	}
	d.mu.Unlock()
	notify(d.opts.Changes, Change{Kind: ChangeRequests})
	return nil
}

func (d *Directory) claim(op, requestID string) (domain.FriendRequest, uint64, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	i := d.requestIndex(requestID)
	if i < 0 || d.inflight[requestID] {
		return domain.FriendRequest{}, 0, notFound(op, "friend request %s", requestID)
	}
	d.inflight[requestID] = true
	return d.requests[i], d.gen, nil
}

// RemoveFriend ends a friendship.
func (d *Directory) RemoveFriend(ctx context.Context, friendID string) error {
	const op = "RemoveFriend"
	d.mu.Lock()
	known := d.friendIndex(friendID) >= 0
	gen := d.gen
	d.mu.Unlock()
	if !known {
		return notFound(op, "friend %s", friendID)
	}

	if err := d.transport.RemoveFriend(ctx, friendID); err != nil {
		return classify(op, err)
	}

	d.mu.Lock()
	if gen == d.gen {
		if i := d.friendIndex(friendID); i >= 0 {
			d.friends = append(d.friends[:i:i], d.friends[i+1:]...)
		}
	}
	d.mu.Unlock()
	notify(d.opts.Changes, Change{Kind: ChangeFriends})
	return nil
}

// FindUser looks up one user by email or handle. A miss is reported as
// found == false with a nil error.
func (d *Directory) FindUser(ctx context.Context, query string) (domain.UserMatch, bool, error) {
	const op = "FindUser"
	query = strings.TrimSpace(query)
	if query == "" {
		return domain.UserMatch{}, false, invalid(op, "search query is empty")
	}
	match, err := d.transport.FindUser(ctx, query)
	if client.IsNotFound(err) {
		return domain.UserMatch{}, false, nil
	}
	if err != nil {
		return domain.UserMatch{}, false, classify(op, err)
	}
	if match == nil || match.User.ID == "" {
		return domain.UserMatch{}, false, nil
	}
	out := *match
	if out.Relationship == "" || out.Relationship == domain.RelationNone {
		d.mu.Lock()
		out.Relationship = d.relationshipLocked(out.User.ID)
		d.mu.Unlock()
	}
	return out, true, nil
}

// SearchUsers returns users matching query, each with a best-effort
// relationship computed from the cache. The local user is left out.
func (d *Directory) SearchUsers(ctx context.Context, query string) ([]domain.UserMatch, error) {
	const op = "SearchUsers"
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, invalid(op, "search query is empty")
	}
	users, err := d.transport.SearchUsers(ctx, query)
	if err != nil {
		return nil, classify(op, err)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]domain.UserMatch, 0, len(users))
	for _, u := range users {
		if u.ID == "" || u.ID == d.self.ID {
			continue
		}
		out = append(out, domain.UserMatch{User: u, Relationship: d.relationshipLocked(u.ID)})
	}
	return out, nil
}

func (d *Directory) relationshipLocked(userID string) domain.Relationship {
	if d.friendIndex(userID) >= 0 {
		return domain.RelationFriends
	}
	for _, r := range d.requests {
		switch {
		case r.SenderID == userID:
			return domain.RelationReceived
		case d.self.ID != "" && r.SenderID == d.self.ID && r.ReceiverID == userID:
			return domain.RelationPending
		}
	}
	return domain.RelationNone
}

// ApplyEvent folds relationship push events into the cache.
func (d *Directory) ApplyEvent(ev domain.Event) {
	d.mu.Lock()
	var change Change
	switch ev.Type {
	case domain.EventFriendRequest:
		if ev.Request == nil || ev.Request.ID == "" || d.requestIndex(ev.Request.ID) >= 0 {
			d.mu.Unlock()
			return
		}
		d.requests = append(d.requests, *ev.Request)
		d.pruneLocked()
		change = Change{Kind: ChangeRequests}
	case domain.EventFriendRequestAccepted:
		if ev.RequestID != "" {
			if i := d.requestIndex(ev.RequestID); i >= 0 {
				d.requests = append(d.requests[:i:i], d.requests[i+1:]...)
			}
		}
		if ev.Friend != nil {
			d.addFriendLocked(*ev.Friend)
		}
		d.pruneLocked()
		change = Change{Kind: ChangeFriends}
	case domain.EventUserStatus:
		i := d.friendIndex(ev.UserID)
		if i < 0 || d.friends[i].Online == ev.Online {
			d.mu.Unlock()
			return
		}
		d.friends[i].Online = ev.Online
		change = Change{Kind: ChangePresence}
	default:
		d.mu.Unlock()
		return
	}
	d.mu.Unlock()
	notify(d.opts.Changes, change)
}

// Refresh reloads friends and requests, logging failures. Calls closer
// together than the refresh interval are skipped.
func (d *Directory) Refresh(ctx context.Context) {
	if !d.limiter.Allow() {
		return
	}
	if err := d.LoadFriends(ctx); err != nil && !canceled(err) {
		d.log.Warn().Err(err).Msg("background friends refresh failed")
	}
	if err := d.LoadFriendRequests(ctx); err != nil && !canceled(err) {
		d.log.Warn().Err(err).Msg("background requests refresh failed")
	}
}
