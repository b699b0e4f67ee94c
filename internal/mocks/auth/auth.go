package auth

// Package auth contains simple hand-written test doubles for auth ports.
// These are lightweight and suitable for unit tests without codegen.

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	domainauth "github.com/target/clinic-portal/internal/domain/auth"
	"github.com/target/clinic-portal/internal/ports"
	"github.com/target/clinic-portal/internal/session"
)

// Ensure compile-time conformance to ports.
var (
	_ ports.TokenRefresher = (*StaticRefresher)(nil)
	_ ports.SessionStore   = (*MemorySessionStore)(nil)
)

// ErrRefreshRejected is the default failure of a StaticRefresher with Fail set.
var ErrRefreshRejected = errors.New("refresh rejected")

// StaticRefresher simulates the refresh endpoint: it installs Token (and User,
// when set) into the session, or clears the session and fails when Fail is set.
type StaticRefresher struct {
	Token string
	User  *domainauth.User
	Fail  bool
	Err   error

	calls atomic.Int32
}

// Refresh implements ports.TokenRefresher.
func (r *StaticRefresher) Refresh(_ context.Context, sess ports.SessionState) error {
	r.calls.Add(1)
	if r.Fail {
		sess.Clear()
		if r.Err != nil {
			return r.Err
		}
		return ErrRefreshRejected
	}
	if err := sess.SetAccessToken(r.Token); err != nil && !errors.Is(err, session.ErrMalformedToken) {
		return err
	}
	if r.User != nil {
		sess.SetUser(*r.User)
	}
	return nil
}

// Calls returns how many times Refresh ran.
func (r *StaticRefresher) Calls() int { return int(r.calls.Load()) }

// MemorySessionStore is an in-memory session store for unit tests.
// It does not apply expiry; use adapters/memory for that.
type MemorySessionStore struct {
	mu       sync.Mutex
	sessions map[string]domainauth.Session
	saves    int
}

// NewMemorySessionStore creates a new in-memory session store.
func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{
		sessions: make(map[string]domainauth.Session),
	}
}

func (m *MemorySessionStore) Save(_ context.Context, sess domainauth.Session) error {
	if sess.ID == "" {
		return errors.New("session ID cannot be empty")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[sess.ID] = sess
	m.saves++
	return nil
}

func (m *MemorySessionStore) Get(_ context.Context, id string) (domainauth.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sess, ok := m.sessions[id]
	if !ok {
		return domainauth.Session{}, domainauth.ErrSessionNotFound
	}
	return sess, nil
}

func (m *MemorySessionStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
	return nil
}

// Saves returns how many times Save succeeded.
func (m *MemorySessionStore) Saves() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves
}
