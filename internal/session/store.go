// Package session holds the in-memory state of one browser session: the
// signed-in user and the bearer token used for upstream calls.
package session

import (
	"errors"
	"sync"
	"time"

	domainauth "github.com/target/clinic-portal/internal/domain/auth"
	"golang.org/x/oauth2"
)

// ErrNoToken is returned by Token when the session holds no access token.
var ErrNoToken = errors.New("session has no access token")

// Store is the mutable session record for one browser session.
// Reads may happen from many goroutines; writes come from the auth flow and logout.
type Store struct {
	mu    sync.RWMutex
	state domainauth.Session
	dirty bool
	now   func() time.Time
}

var _ oauth2.TokenSource = (*Store)(nil)

// New returns an unauthenticated store with the given session ID.
func New(id string) *Store {
	return &Store{state: domainauth.Session{ID: id}, now: time.Now}
}

// FromSession wraps a persisted session record. The store starts clean.
func FromSession(sess domainauth.Session) *Store {
	if sess.User != nil {
		u := *sess.User
		sess.User = &u
	}
	return &Store{state: sess, now: time.Now}
}

// WithClock overrides the clock used for expiry checks. Intended for tests.
func (s *Store) WithClock(now func() time.Time) *Store {
	s.mu.Lock()
	defer s.mu.Unlock()
	if now != nil {
		s.now = now
	}
	return s
}

// ID returns the session identifier.
func (s *Store) ID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.ID
}

// SetUser records the signed-in user and their role.
func (s *Store) SetUser(u domainauth.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u.Role = domainauth.ParseRole(string(u.Role))
	s.state.User = &u
	s.state.Role = u.Role
	s.dirty = true
}

// SetAccessToken replaces the bearer token and derives its expiry.
// An empty token clears the token fields. A token that is not a JWT is kept
// with no known expiry and the parse error is returned.
func (s *Store) SetAccessToken(token string) error {
	var (
		exp    time.Time
		expErr error
	)
	if token != "" {
		exp, expErr = TokenExpiry(token)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.AccessToken = token
	s.state.TokenExpiresAt = exp
	s.dirty = true
	return expErr
}

// SetRefreshCookie records the upstream refresh credential.
func (s *Store) SetRefreshCookie(cookie string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.RefreshCookie == cookie {
		return
	}
	s.state.RefreshCookie = cookie
	s.dirty = true
}

// RefreshCookie returns the upstream refresh credential, if any.
func (s *Store) RefreshCookie() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.RefreshCookie
}

// SetExpiry sets the lifetime of the server-side record.
func (s *Store) SetExpiry(t time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.ExpiresAt = t
	s.dirty = true
}

// Clear resets every field except the ID to its unauthenticated value.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = domainauth.Session{ID: s.state.ID}
	s.dirty = true
}

// Snapshot returns a copy of the current record.
func (s *Store) Snapshot() domainauth.Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := s.state
	if out.User != nil {
		u := *out.User
		out.User = &u
	}
	return out
}

// User returns the signed-in user.
func (s *Store) User() (domainauth.User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.state.User == nil {
		return domainauth.User{}, false
	}
	return *s.state.User, true
}

// Role returns the role of the signed-in user, or RoleGuest.
func (s *Store) Role() domainauth.Role {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.state.Role == "" {
		return domainauth.RoleGuest
	}
	return s.state.Role
}

// AccessToken returns the raw bearer token.
func (s *Store) AccessToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.AccessToken
}

// TokenValid reports whether the bearer token is present and not within skew of expiry.
func (s *Store) TokenValid(skew time.Duration) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.TokenValid(s.now(), skew)
}

// Authenticated reports whether both a user and a token are held.
func (s *Store) Authenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.IsAuthenticated()
}

// Token implements oauth2.TokenSource.
func (s *Store) Token() (*oauth2.Token, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.state.AccessToken == "" {
		return nil, ErrNoToken
	}
	return &oauth2.Token{
		AccessToken: s.state.AccessToken,
		TokenType:   "Bearer",
		Expiry:      s.state.TokenExpiresAt,
	}, nil
}

// Dirty reports whether the record changed since it was loaded or last marked clean.
func (s *Store) Dirty() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dirty
}

// MarkClean resets the dirty flag after the record has been persisted.
func (s *Store) MarkClean() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dirty = false
}
