package store

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chitchat/chitchat/pkg/domain"
)

type fakeAuth struct {
	mu        sync.Mutex
	token     string
	loginErr  error
	logoutErr error
	calls     map[string]int
	profiles  map[string]domain.User // token -> user
}

func newFakeAuth() *fakeAuth {
	return &fakeAuth{
		calls:    make(map[string]int),
		profiles: map[string]domain.User{"tok-me": me},
	}
}

func (f *fakeAuth) hit(name string) {
	f.mu.Lock()
	f.calls[name]++
	f.mu.Unlock()
}

func (f *fakeAuth) Login(_ context.Context, creds domain.Credentials) (*domain.Session, error) {
	f.hit("Login")
	if f.loginErr != nil {
		return nil, f.loginErr
	}
	if creds.Password != "secret" {
		return nil, httpErr(http.StatusUnauthorized)
	}
	return &domain.Session{User: me, Token: "tok-me"}, nil
}

func (f *fakeAuth) Register(_ context.Context, reg domain.Registration) (*domain.Session, error) {
	f.hit("Register")
	u := domain.User{ID: "new", Handle: reg.Username, Email: reg.Email, DisplayName: reg.DisplayName}
	return &domain.Session{User: u, Token: "tok-new"}, nil
}

func (f *fakeAuth) Logout(context.Context) error {
	f.hit("Logout")
	return f.logoutErr
}

func (f *fakeAuth) GetProfile(context.Context) (*domain.User, error) {
	f.hit("GetProfile")
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.profiles[f.token]
	if !ok {
		return nil, httpErr(http.StatusUnauthorized)
	}
	return &u, nil
}

func (f *fakeAuth) UpdateProfile(_ context.Context, upd domain.ProfileUpdate) (*domain.User, error) {
	f.hit("UpdateProfile")
	u := me
	u.DisplayName = upd.DisplayName
	return &u, nil
}

func (f *fakeAuth) SetToken(token string) {
	f.mu.Lock()
	f.token = token
	f.mu.Unlock()
}

type memTokens struct {
	token   string
	loadErr error
	cleared int
}

func (m *memTokens) Load() (string, error) { return m.token, m.loadErr }
func (m *memTokens) Save(t string) error   { m.token = t; return nil }
func (m *memTokens) Clear() error          { m.token = ""; m.cleared++; return nil }

func TestSession_Login(t *testing.T) {
	auth := newFakeAuth()
	tokens := &memTokens{}
	s := NewSession(auth, tokens, nil)

	var hooked domain.User
	s.OnLogin(func(u domain.User) { hooked = u })

	user, err := s.Login(context.Background(), domain.Credentials{Identifier: " me ", Password: "secret"})
	require.NoError(t, err)
	assert.Equal(t, me, user)
	assert.Equal(t, me, hooked)
	assert.True(t, s.IsAuthenticated())
	assert.Equal(t, "tok-me", s.Token())
	assert.Equal(t, "tok-me", tokens.token)
	assert.Equal(t, "tok-me", auth.token)

	cur, ok := s.Current()
	require.True(t, ok)
	assert.Equal(t, me.ID, cur.ID)
}

func TestSession_LoginFailure(t *testing.T) {
	auth := newFakeAuth()
	tokens := &memTokens{}
	s := NewSession(auth, tokens, nil)

	_, err := s.Login(context.Background(), domain.Credentials{Identifier: "me", Password: "wrong"})
	assert.True(t, IsKind(err, KindAuth))
	assert.False(t, s.IsAuthenticated())
	assert.Empty(t, tokens.token)
	_, ok := s.Current()
	assert.False(t, ok)

	_, err = s.Login(context.Background(), domain.Credentials{Identifier: "", Password: "x"})
	assert.True(t, IsKind(err, KindValidation))
	assert.Equal(t, 1, auth.calls["Login"])
}

func TestSession_Register(t *testing.T) {
	auth := newFakeAuth()
	s := NewSession(auth, &memTokens{}, nil)
	ctx := context.Background()

	_, err := s.Register(ctx, domain.Registration{Username: "neo", Email: "not-an-email", Password: "x"})
	assert.True(t, IsKind(err, KindValidation))
	assert.Zero(t, auth.calls["Register"])

	u, err := s.Register(ctx, domain.Registration{Username: "neo", Email: "neo@example.com", Password: "x", DisplayName: "Neo"})
	require.NoError(t, err)
	assert.Equal(t, "neo", u.Handle)
	assert.Equal(t, "tok-new", s.Token())
}

func TestSession_Restore(t *testing.T) {
	t.Run("valid token", func(t *testing.T) {
		auth := newFakeAuth()
		tokens := &memTokens{token: "tok-me\n"}
		s := NewSession(auth, tokens, nil)

		u, ok, err := s.Restore(context.Background())
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, me.ID, u.ID)
		assert.True(t, s.IsAuthenticated())
		assert.Zero(t, tokens.cleared)
	})

	t.Run("rejected token is discarded", func(t *testing.T) {
		auth := newFakeAuth()
		tokens := &memTokens{token: "stale"}
		s := NewSession(auth, tokens, nil)

		_, ok, err := s.Restore(context.Background())
		assert.False(t, ok)
		assert.True(t, IsKind(err, KindAuth))
		assert.Equal(t, 1, tokens.cleared)
		assert.Empty(t, auth.token)
		assert.False(t, s.IsAuthenticated())
	})

	t.Run("unreadable store is discarded", func(t *testing.T) {
		tokens := &memTokens{loadErr: errors.New("permission denied")}
		s := NewSession(newFakeAuth(), tokens, nil)
		_, ok, err := s.Restore(context.Background())
		assert.False(t, ok)
		assert.Error(t, err)
		assert.Equal(t, 1, tokens.cleared)
	})

	t.Run("no token", func(t *testing.T) {
		auth := newFakeAuth()
		s := NewSession(auth, &memTokens{}, nil)
		_, ok, err := s.Restore(context.Background())
		assert.NoError(t, err)
		assert.False(t, ok)
		assert.Zero(t, auth.calls["GetProfile"])
	})
}

func TestSession_Logout(t *testing.T) {
	auth := newFakeAuth()
	auth.logoutErr = httpErr(http.StatusInternalServerError)
	tokens := &memTokens{}
	s := NewSession(auth, tokens, nil)
	ctx := context.Background()
	_, err := s.Login(ctx, domain.Credentials{Identifier: "me", Password: "secret"})
	require.NoError(t, err)

	loggedOut := false
	s.OnLogout(func() { loggedOut = true })
	s.Logout(ctx)

	assert.True(t, loggedOut)
	assert.False(t, s.IsAuthenticated())
	assert.Empty(t, s.Token())
	assert.Empty(t, tokens.token)
	assert.Empty(t, auth.token)
	assert.Equal(t, 1, auth.calls["Logout"])
}

func TestSession_LogoutResetsStores(t *testing.T) {
	srv := newFakeServer()
	rooms := loadedRooms(t, srv, directRoom("R", "a"))
	dir := newTestDirectory(t, srv)

	s := NewSession(newFakeAuth(), nil, nil)
	s.OnLogout(rooms.Reset)
	s.OnLogout(dir.Reset)
	s.Logout(context.Background())

	assert.Empty(t, rooms.Rooms())
	_, err := rooms.OpenBot(gemini)
	assert.True(t, IsKind(err, KindAuth))
}

func TestSession_UpdateProfile(t *testing.T) {
	auth := newFakeAuth()
	s := NewSession(auth, nil, nil)
	ctx := context.Background()

	_, err := s.UpdateProfile(ctx, domain.ProfileUpdate{DisplayName: "Neo"})
	assert.True(t, IsKind(err, KindAuth))

	_, err = s.Login(ctx, domain.Credentials{Identifier: "me", Password: "secret"})
	require.NoError(t, err)
	u, err := s.UpdateProfile(ctx, domain.ProfileUpdate{DisplayName: "Neo"})
	require.NoError(t, err)
	assert.Equal(t, "Neo", u.DisplayName)
	cur, _ := s.Current()
	assert.Equal(t, "Neo", cur.DisplayName)
}
