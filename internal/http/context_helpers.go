package httpx

import (
	"context"
	"sync"

	"github.com/target/clinic-portal/internal/session"
)

// sessionKey is an unexported context key type to avoid collisions across packages.
type sessionKey struct{}

// sessionHolder lets a handler swap the request's session, as login does,
// while the session middleware keeps a handle on whatever is current.
type sessionHolder struct {
	mu sync.Mutex
	st *session.Store
}

func (h *sessionHolder) get() *session.Store {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.st
}

func (h *sessionHolder) set(st *session.Store) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.st = st
}

// SetSessionInContext returns a child context that carries st.
// If st is nil, the original ctx is returned unchanged.
func SetSessionInContext(ctx context.Context, st *session.Store) context.Context {
	if st == nil {
		return ctx
	}
	return context.WithValue(ctx, sessionKey{}, &sessionHolder{st: st})
}

// GetSessionFromContext returns the request's session store and whether one is present.
func GetSessionFromContext(ctx context.Context) (*session.Store, bool) {
	h, ok := ctx.Value(sessionKey{}).(*sessionHolder)
	if !ok || h == nil {
		return nil, false
	}
	st := h.get()
	return st, st != nil
}

// replaceSession swaps the request's session for st. It reports false when the
// context carries no session holder.
func replaceSession(ctx context.Context, st *session.Store) bool {
	h, ok := ctx.Value(sessionKey{}).(*sessionHolder)
	if !ok || h == nil {
		return false
	}
	h.set(st)
	return true
}
