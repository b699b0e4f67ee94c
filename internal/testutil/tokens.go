package testutil

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TestSigningKey signs tokens minted by SignedToken. The portal never verifies signatures;
// it only reads the exp claim.
var TestSigningKey = []byte("clinic-portal-test-key")

// SignedToken returns an HS256 JWT whose exp claim is exp.
func SignedToken(t testing.TB, exp time.Time) string {
	t.Helper()
	return SignedTokenFor(t, "user-1", exp)
}

// SignedTokenFor returns an HS256 JWT for subject whose exp claim is exp.
func SignedTokenFor(t testing.TB, subject string, exp time.Time) string {
	t.Helper()
	claims := jwt.RegisteredClaims{
		Subject:   subject,
		IssuedAt:  jwt.NewNumericDate(exp.Add(-15 * time.Minute)),
		ExpiresAt: jwt.NewNumericDate(exp),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(TestSigningKey)
	if err != nil {
		t.Fatalf("sign test token: %v", err)
	}
	return signed
}
