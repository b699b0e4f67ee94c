package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	domainauth "github.com/target/clinic-portal/internal/domain/auth"
)

func TestSessionStore_SaveGetDelete(t *testing.T) {
	store := NewSessionStore()
	ctx := context.Background()
	sess := domainauth.Session{
		ID:          "s1",
		User:        &domainauth.User{ID: "u1", FirstName: "Omar"},
		AccessToken: "tok",
		ExpiresAt:   time.Now().Add(time.Hour),
	}

	require.NoError(t, store.Save(ctx, sess))
	sess.User.FirstName = "mutated"

	got, err := store.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "Omar", got.User.FirstName, "stored record must not alias the caller's user")

	require.NoError(t, store.Delete(ctx, "s1"))
	_, err = store.Get(ctx, "s1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSessionStore_Expiry(t *testing.T) {
	now := time.Now()
	store := NewSessionStore().WithClock(func() time.Time { return now })
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, domainauth.Session{ID: "a", ExpiresAt: now.Add(time.Minute)}))
	require.NoError(t, store.Save(ctx, domainauth.Session{ID: "b", ExpiresAt: now.Add(time.Hour)}))
	assert.Error(t, store.Save(ctx, domainauth.Session{ID: "c", ExpiresAt: now.Add(-time.Second)}))

	now = now.Add(2 * time.Minute)

	_, err := store.Get(ctx, "a")
	assert.ErrorIs(t, err, ErrNotFound)

	list, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "b", list[0].ID)

	now = now.Add(2 * time.Hour)
	assert.Equal(t, 1, store.Sweep())
}

func TestSessionStore_RejectsEmptyID(t *testing.T) {
	store := NewSessionStore()
	err := store.Save(context.Background(), domainauth.Session{ExpiresAt: time.Now().Add(time.Hour)})
	assert.Error(t, err)
	_, err = store.Get(context.Background(), "")
	assert.ErrorIs(t, err, ErrNotFound)
}
