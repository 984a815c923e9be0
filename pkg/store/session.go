package store

import (
	"context"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/chitchat/chitchat/pkg/domain"
)

// TokenStore persists the bearer credential between runs.
type TokenStore interface {
	Load() (string, error)
	Save(token string) error
	Clear() error
}

// Session holds the authenticated identity and its credential. Both are set
// and cleared together.
type Session struct {
	transport AuthTransport
	tokens    TokenStore
	log       zerolog.Logger

	mu       sync.Mutex
	user     *domain.User
	token    string
	onLogin  []func(domain.User)
	onLogout []func()
}

// NewSession creates a signed-out session. tokens may be nil, in which case
// nothing is persisted.
func NewSession(t AuthTransport, tokens TokenStore, log *zerolog.Logger) *Session {
	l := zerolog.Nop()
	if log != nil {
		l = *log
	}
	return &Session{
		transport: t,
		tokens:    tokens,
		log:       l.With().Str("component", "session").Logger(),
	}
}

// OnLogin registers fn to run after every successful login, registration or
// restore.
func (s *Session) OnLogin(fn func(domain.User)) {
	s.mu.Lock()
	s.onLogin = append(s.onLogin, fn)
	s.mu.Unlock()
}

// OnLogout registers fn to run after the session is cleared.
func (s *Session) OnLogout(fn func()) {
	s.mu.Lock()
	s.onLogout = append(s.onLogout, fn)
	s.mu.Unlock()
}

// IsAuthenticated reports whether a user is signed in.
func (s *Session) IsAuthenticated() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.user != nil && s.token != ""
}

// Current returns the signed-in user.
func (s *Session) Current() (domain.User, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.user == nil {
		return domain.User{}, false
	}
	return *s.user, true
}

// Token returns the current credential, or "".
func (s *Session) Token() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token
}

// Login authenticates and adopts the resulting session.
func (s *Session) Login(ctx context.Context, creds domain.Credentials) (domain.User, error) {
	const op = "Login"
	creds.Identifier = strings.TrimSpace(creds.Identifier)
	if creds.Identifier == "" || creds.Password == "" {
		return domain.User{}, invalid(op, "username or email and password are required")
	}
	sess, err := s.transport.Login(ctx, creds)
	if err != nil {
		return domain.User{}, classify(op, err)
	}
	return s.adopt(op, sess)
}

// Register creates an account and adopts the resulting session.
func (s *Session) Register(ctx context.Context, reg domain.Registration) (domain.User, error) {
	const op = "Register"
	reg.Username = strings.TrimSpace(reg.Username)
	reg.Email = strings.TrimSpace(reg.Email)
	switch {
	case reg.Username == "":
		return domain.User{}, invalid(op, "username is required")
	case reg.Email == "" || !strings.Contains(reg.Email, "@"):
		return domain.User{}, invalid(op, "a valid email is required")
	case reg.Password == "":
		return domain.User{}, invalid(op, "password is required")
	}
	sess, err := s.transport.Register(ctx, reg)
	if err != nil {
		return domain.User{}, classify(op, err)
	}
	return s.adopt(op, sess)
}

func (s *Session) adopt(op string, sess *domain.Session) (domain.User, error) {
	if sess == nil || sess.Token == "" {
		return domain.User{}, &Error{Op: op, Kind: KindTransport, Err: errEmptyResponse}
	}
	user := sess.User

	s.mu.Lock()
	s.user = &user
	s.token = sess.Token
	s.transport.SetToken(sess.Token)
	hooks := append([]func(domain.User){}, s.onLogin...)
	s.mu.Unlock()

	if s.tokens != nil {
		if err := s.tokens.Save(sess.Token); err != nil {
			s.log.Warn().Err(err).Msg("persist token failed")
		}
	}
	s.log.Info().Str("user", user.ID).Msg("signed in")
	for _, fn := range hooks {
		fn(user)
	}
	return user, nil
}

// Restore resumes a persisted session by resolving the stored credential
// through a profile fetch. Any failure discards the stored credential.
func (s *Session) Restore(ctx context.Context) (domain.User, bool, error) {
	const op = "Restore"
	if s.tokens == nil {
		return domain.User{}, false, nil
	}
	token, err := s.tokens.Load()
	if err != nil {
		s.discard()
		return domain.User{}, false, classify(op, err)
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return domain.User{}, false, nil
	}

	s.transport.SetToken(token)
	user, err := s.transport.GetProfile(ctx)
	if err == nil && (user == nil || user.ID == "") {
		err = errEmptyResponse
	}
	if err != nil {
		s.transport.SetToken("")
		s.discard()
		s.log.Info().Err(err).Msg("stored session rejected")
		return domain.User{}, false, classify(op, err)
	}
	u, err := s.adopt(op, &domain.Session{User: *user, Token: token})
	if err != nil {
		return domain.User{}, false, err
	}
	return u, true, nil
}

func (s *Session) discard() {
	if err := s.tokens.Clear(); err != nil {
		s.log.Warn().Err(err).Msg("clear stored token failed")
	}
}

// Logout signs out on the server when possible, then clears identity,
// credential and the stored token regardless of the server's answer.
func (s *Session) Logout(ctx context.Context) {
	s.mu.Lock()
	signedIn := s.token != ""
	s.mu.Unlock()
	if signedIn {
		if err := s.transport.Logout(ctx); err != nil {
			s.log.Warn().Err(err).Msg("server logout failed")
		}
	}

	s.mu.Lock()
	s.user = nil
	s.token = ""
	s.transport.SetToken("")
	hooks := append([]func(){}, s.onLogout...)
	s.mu.Unlock()

	if s.tokens != nil {
		s.discard()
	}
	s.log.Info().Msg("signed out")
	for _, fn := range hooks {
		fn()
	}
}

// UpdateProfile changes the signed-in user's display name or avatar.
func (s *Session) UpdateProfile(ctx context.Context, upd domain.ProfileUpdate) (domain.User, error) {
	const op = "UpdateProfile"
	if !s.IsAuthenticated() {
		return domain.User{}, &Error{Op: op, Kind: KindAuth, Err: errNotSignedIn}
	}
	upd.DisplayName = strings.TrimSpace(upd.DisplayName)
	if upd.DisplayName == "" && upd.AvatarURL == "" {
		return domain.User{}, invalid(op, "nothing to update")
	}
	user, err := s.transport.UpdateProfile(ctx, upd)
	if err != nil {
		return domain.User{}, classify(op, err)
	}
	if user == nil {
		return domain.User{}, &Error{Op: op, Kind: KindTransport, Err: errEmptyResponse}
	}
	s.mu.Lock()
	if s.user != nil && s.user.ID == user.ID {
		u := *user
		s.user = &u
	}
	s.mu.Unlock()
	return *user, nil
}
