package ports

// Package ports defines interfaces (hexagonal ports) for auth-related behavior.
// Implementations live in internal/adapters and internal/session; orchestration in internal/service.

import (
	"context"
	"time"

	domainauth "github.com/target/clinic-portal/internal/domain/auth"
	"golang.org/x/oauth2"
)

// SessionStore persists and retrieves browser sessions.
type SessionStore interface {
	Save(ctx context.Context, sess domainauth.Session) error
	Get(ctx context.Context, id string) (domainauth.Session, error)
	Delete(ctx context.Context, id string) error
}

// SessionLister enumerates persisted sessions. Used by administrative tooling only.
type SessionLister interface {
	List(ctx context.Context) ([]domainauth.Session, error)
}

// SessionState is the mutable credential holder of one browser session.
// The upstream client reads the bearer token through oauth2.TokenSource and
// replaces or clears it during refresh.
type SessionState interface {
	oauth2.TokenSource

	ID() string
	AccessToken() string
	RefreshCookie() string
	TokenValid(skew time.Duration) bool
	Authenticated() bool
	User() (domainauth.User, bool)
	Role() domainauth.Role

	SetUser(u domainauth.User)
	SetAccessToken(token string) error
	SetRefreshCookie(cookie string)
	Clear()
}

// TokenRefresher exchanges the session's refresh credential for a new access token.
// On success sess holds the new token (and user, when the upstream returns one).
type TokenRefresher interface {
	Refresh(ctx context.Context, sess SessionState) error
}
