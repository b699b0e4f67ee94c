// Package auth contains domain-level types for authentication and sessions.
// It is pure and free of framework/adapter concerns.
package auth

import (
	"errors"
	"strings"
	"time"
)

// ErrSessionNotFound is returned by session stores when a record is absent or expired.
var ErrSessionNotFound = errors.New("session not found")

// Role represents the role the upstream API assigns to a user.
// Keep string form for easy persistence and cookies.
type Role string

const (
	RoleAdmin   Role = "admin"
	RoleOwner   Role = "owner"
	RoleDoctor  Role = "doctor"
	RolePatient Role = "patient"
	RoleGuest   Role = "guest"
)

// ParseRole normalizes an upstream role string. Unknown values map to RoleGuest.
func ParseRole(s string) Role {
	switch r := Role(strings.ToLower(strings.TrimSpace(s))); r {
	case RoleAdmin, RoleOwner, RoleDoctor, RolePatient:
		return r
	default:
		return RoleGuest
	}
}

// User is the identity returned by the upstream API on login and refresh.
type User struct {
	ID        string `json:"id"`
	NID       string `json:"NID"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Gender    string `json:"gender,omitempty"`
	Role      Role   `json:"role"`
	BirthDate string `json:"birth_date,omitempty"`
}

// FullName returns "First Last" with surrounding whitespace trimmed.
func (u User) FullName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

// Session is the server-side record kept for one browser session.
// ID is an opaque identifier carried in the session cookie.
// RefreshCookie holds the upstream refresh credential and never leaves the server.
type Session struct {
	ID             string    `json:"id"`
	User           *User     `json:"user,omitempty"`
	AccessToken    string    `json:"access_token,omitempty"`
	TokenExpiresAt time.Time `json:"token_expires_at,omitzero"`
	Role           Role      `json:"role,omitempty"`
	RefreshCookie  string    `json:"refresh_cookie,omitempty"`
	ExpiresAt      time.Time `json:"expires_at"`
}

// HasToken reports whether an access token is present.
func (s Session) HasToken() bool { return s.AccessToken != "" }

// TokenValid reports whether the access token is present and does not expire
// within skew of now. A token without an exp claim is treated as valid.
func (s Session) TokenValid(now time.Time, skew time.Duration) bool {
	if !s.HasToken() {
		return false
	}
	if s.TokenExpiresAt.IsZero() {
		return true
	}
	return now.Add(skew).Before(s.TokenExpiresAt)
}

// IsAuthenticated reports whether the session carries both a user and a token.
func (s Session) IsAuthenticated() bool {
	return s.User != nil && s.HasToken()
}

// IsGuest returns true if the session has no identified user.
func (s Session) IsGuest() bool { return s.User == nil || s.Role == RoleGuest || s.Role == "" }
