package testutil

import (
	"net/http"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultTestDBConfig(t *testing.T) {
	t.Run("defaults to local test database port 55432", func(t *testing.T) {
		for _, k := range []string{"TEST_DB_HOST", "TEST_DB_PORT", "TEST_DB_USER", "TEST_DB_PASSWORD", "TEST_DB_NAME", "DB_SSL_MODE"} {
			t.Setenv(k, "")
		}

		cfg := DefaultTestDBConfig()

		assert.Equal(t, "localhost", cfg.Host)
		assert.Equal(t, 55432, cfg.Port)
		assert.Equal(t, "clinic", cfg.User)
		assert.Equal(t, "clinic", cfg.Name)
		assert.Equal(t, "disable", cfg.SSLMode)
	})

	t.Run("respects TEST_DB_PORT environment variable", func(t *testing.T) {
		t.Setenv("TEST_DB_HOST", "postgres")
		t.Setenv("TEST_DB_PORT", "5432")

		cfg := DefaultTestDBConfig()

		assert.Equal(t, "postgres", cfg.Host)
		assert.Equal(t, 5432, cfg.Port)
		assert.Contains(t, cfg.DSN(), "@postgres:5432/")
	})
}

func TestEnvBool(t *testing.T) {
	for _, v := range []string{"1", "true", "YES", "y"} {
		t.Setenv("TESTUTIL_FLAG", v)
		assert.True(t, envBool("TESTUTIL_FLAG"), v)
	}
	t.Setenv("TESTUTIL_FLAG", "off")
	assert.False(t, envBool("TESTUTIL_FLAG"))
}

func TestSignedToken_CarriesExpiry(t *testing.T) {
	exp := time.Now().Add(time.Hour).Truncate(time.Second)

	tok := SignedTokenFor(t, "doc-7", exp)

	var claims jwt.RegisteredClaims
	_, _, err := jwt.NewParser().ParseUnverified(tok, &claims)
	require.NoError(t, err)
	assert.Equal(t, "doc-7", claims.Subject)
	assert.True(t, claims.ExpiresAt.Time.Equal(exp))
}

func TestUpstream_RecordsAndRoutes(t *testing.T) {
	up := NewUpstream(t)
	up.HandleJSON(http.MethodGet, "/spec", http.StatusOK, []string{"cardiology"})

	resp, err := http.Get(up.URL + "/spec?x=1")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(up.URL + "/missing")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	assert.Equal(t, 1, up.Calls(http.MethodGet, "/spec"))
	last, ok := up.Last(http.MethodGet, "/spec")
	require.True(t, ok)
	assert.Equal(t, "x=1", last.RawQuery)
	assert.Len(t, up.Requests(), 2)
}
