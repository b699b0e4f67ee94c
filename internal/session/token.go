package session

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrMalformedToken is returned when an access token is not a parseable JWT.
var ErrMalformedToken = errors.New("malformed access token")

var tokenParser = jwt.NewParser(jwt.WithoutClaimsValidation())

// TokenExpiry reads the exp claim of an access token without verifying its
// signature. The upstream API signs and verifies tokens; the portal only needs
// to know when to refresh. A token without exp yields the zero time.
func TokenExpiry(token string) (time.Time, error) {
	if token == "" {
		return time.Time{}, ErrMalformedToken
	}
	var claims jwt.RegisteredClaims
	if _, _, err := tokenParser.ParseUnverified(token, &claims); err != nil {
		return time.Time{}, fmt.Errorf("%w: %w", ErrMalformedToken, err)
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, nil
	}
	return claims.ExpiresAt.Time, nil
}
