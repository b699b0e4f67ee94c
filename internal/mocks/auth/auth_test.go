package auth

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	domainauth "github.com/target/clinic-portal/internal/domain/auth"
	"github.com/target/clinic-portal/internal/session"
)

func TestStaticRefresher_InstallsTokenAndUser(t *testing.T) {
	r := &StaticRefresher{Token: "abc", User: &domainauth.User{ID: "u1", Role: "Doctor"}}
	sess := session.New("s1")

	require.NoError(t, r.Refresh(context.Background(), sess))

	assert.Equal(t, "abc", sess.AccessToken())
	u, ok := sess.User()
	require.True(t, ok)
	assert.Equal(t, "u1", u.ID)
	assert.Equal(t, domainauth.RoleDoctor, sess.Role())
	assert.Equal(t, 1, r.Calls())
}

func TestStaticRefresher_FailClearsSession(t *testing.T) {
	r := &StaticRefresher{Fail: true}
	sess := session.New("s1")
	sess.SetUser(domainauth.User{ID: "u1"})

	err := r.Refresh(context.Background(), sess)

	require.ErrorIs(t, err, ErrRefreshRejected)
	assert.False(t, sess.Authenticated())
	assert.Equal(t, domainauth.Session{ID: "s1"}, sess.Snapshot())
}

func TestMemorySessionStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewMemorySessionStore()

	require.Error(t, store.Save(ctx, domainauth.Session{}))
	require.NoError(t, store.Save(ctx, domainauth.Session{ID: "s1", AccessToken: "tok"}))

	got, err := store.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "tok", got.AccessToken)
	assert.Equal(t, 1, store.Saves())

	require.NoError(t, store.Delete(ctx, "s1"))
	_, err = store.Get(ctx, "s1")
	assert.ErrorIs(t, err, domainauth.ErrSessionNotFound)
}
