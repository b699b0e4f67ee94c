// Package memory provides in-process adapters for single-instance and development deployments.
package memory

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	domainauth "github.com/target/clinic-portal/internal/domain/auth"
)

// ErrNotFound is returned when a session is absent or expired.
var ErrNotFound = domainauth.ErrSessionNotFound

// SessionStore keeps sessions in a map guarded by a mutex. Expired records are
// dropped lazily on access and by Sweep.
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[string]domainauth.Session
	now      func() time.Time
}

// NewSessionStore creates an empty in-memory session store.
func NewSessionStore() *SessionStore {
	return &SessionStore{
		sessions: make(map[string]domainauth.Session),
		now:      time.Now,
	}
}

// WithClock replaces the clock used for expiry checks.
func (m *SessionStore) WithClock(now func() time.Time) *SessionStore {
	if now != nil {
		m.now = now
	}
	return m
}

func (m *SessionStore) Save(_ context.Context, sess domainauth.Session) error {
	if sess.ID == "" {
		return errors.New("session ID cannot be empty")
	}
	if !sess.ExpiresAt.After(m.now()) {
		return errors.New("session is expired")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[sess.ID] = copySession(sess)
	return nil
}

func (m *SessionStore) Get(_ context.Context, id string) (domainauth.Session, error) {
	if id == "" {
		return domainauth.Session{}, ErrNotFound
	}
	m.mu.RLock()
	sess, ok := m.sessions[id]
	m.mu.RUnlock()
	if !ok {
		return domainauth.Session{}, ErrNotFound
	}
	if m.now().After(sess.ExpiresAt) {
		m.mu.Lock()
		delete(m.sessions, id)
		m.mu.Unlock()
		return domainauth.Session{}, ErrNotFound
	}
	return copySession(sess), nil
}

func (m *SessionStore) Delete(_ context.Context, id string) error {
	if id == "" {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
	return nil
}

// List returns live sessions, newest expiry first.
func (m *SessionStore) List(_ context.Context) ([]domainauth.Session, error) {
	now := m.now()
	m.mu.RLock()
	out := make([]domainauth.Session, 0, len(m.sessions))
	for _, sess := range m.sessions {
		if now.After(sess.ExpiresAt) {
			continue
		}
		out = append(out, copySession(sess))
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ExpiresAt.After(out[j].ExpiresAt) })
	return out, nil
}

// Sweep removes expired sessions and returns how many were dropped.
func (m *SessionStore) Sweep() int {
	now := m.now()
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for id, sess := range m.sessions {
		if now.After(sess.ExpiresAt) {
			delete(m.sessions, id)
			n++
		}
	}
	return n
}

func copySession(sess domainauth.Session) domainauth.Session {
	if sess.User != nil {
		u := *sess.User
		sess.User = &u
	}
	return sess
}
