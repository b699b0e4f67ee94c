package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/target/clinic-portal/config"
	"github.com/target/clinic-portal/internal/adapters/memory"
	domainauth "github.com/target/clinic-portal/internal/domain/auth"
	"github.com/target/clinic-portal/internal/domain/model"
	"github.com/target/clinic-portal/internal/migrate"
	"github.com/target/clinic-portal/internal/testutil"
)

func TestPrintUsageListsCommandsInOrder(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, printUsage(&buf))

	out := buf.String()
	require.Contains(t, out, "Usage: clinic-admin <command> [flags]")
	last := -1
	for _, name := range []string{"audit-list", "migrate", "probe", "sessions-clear", "sessions-list"} {
		idx := strings.Index(out, "  "+name)
		require.Greater(t, idx, last, "command %s missing or out of order", name)
		last = idx
	}
}

func TestParseMigrateFlags(t *testing.T) {
	opts, err := parseMigrateFlags(nil)
	require.NoError(t, err)
	assert.Equal(t, defaultMigrationTimeout, opts.Timeout)
	assert.False(t, opts.Status)

	opts, err = parseMigrateFlags([]string{"--status", "--timeout", "30s"})
	require.NoError(t, err)
	assert.True(t, opts.Status)
	assert.Equal(t, 30*time.Second, opts.Timeout)

	_, err = parseMigrateFlags([]string{"--timeout", "0s"})
	require.Error(t, err)
}

func TestRenderMigrationStatus(t *testing.T) {
	at := time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)
	var buf bytes.Buffer
	require.NoError(t, renderMigrationStatus(&buf, []migrate.Status{
		{Version: "0001_audit_events", AppliedAt: &at},
		{Version: "0002_audit_events_resource_idx"},
	}))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[1], "2026-03-01T09:30:00Z")
	assert.Contains(t, lines[2], "pending")
}

func TestParseSessionsClearFlags(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		wantErr bool
	}{
		{name: "by id", args: []string{"--id", "s1"}},
		{name: "by user", args: []string{"--user", "u1", "--yes"}},
		{name: "all", args: []string{"--all", "--dry-run"}},
		{name: "no selector", args: nil, wantErr: true},
		{name: "two selectors", args: []string{"--id", "s1", "--all"}, wantErr: true},
		{name: "blank id", args: []string{"--id", "  "}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parseSessionsClearFlags(tt.args)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestParseAuditListFlags(t *testing.T) {
	opts, err := parseAuditListFlags([]string{"--user", " u1 ", "--action", "LOGIN", "--since", "2h", "--limit", "10"})
	require.NoError(t, err)

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	got := opts.listOptions(now)
	assert.Equal(t, model.AuditListOptions{
		UserID: "u1",
		Action: model.AuditLogin,
		Since:  now.Add(-2 * time.Hour),
		Limit:  10,
	}, got)

	_, err = parseAuditListFlags([]string{"--limit", "0"})
	assert.Error(t, err)
	_, err = parseAuditListFlags([]string{"--since", "-1h"})
	assert.Error(t, err)
}

func TestRenderAuditEvents(t *testing.T) {
	events := []model.AuditEvent{{
		ID:         "e1",
		UserID:     "u1",
		Role:       "doctor",
		Action:     model.AuditPatientView,
		Resource:   "patient:29801011234567",
		Outcome:    model.AuditSuccess,
		RemoteAddr: "10.0.0.1",
		CreatedAt:  time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}}

	var table bytes.Buffer
	require.NoError(t, renderAuditEvents(&table, events, false))
	out := table.String()
	assert.Contains(t, out, "ACTION")
	assert.Contains(t, out, "patient_view")
	assert.Contains(t, out, "2026-03-01T12:00:00Z")

	var lines bytes.Buffer
	require.NoError(t, renderAuditEvents(&lines, events, true))
	var decoded model.AuditEvent
	require.NoError(t, json.Unmarshal(lines.Bytes(), &decoded))
	assert.Equal(t, "e1", decoded.ID)

	var empty bytes.Buffer
	require.NoError(t, renderAuditEvents(&empty, nil, false))
	assert.Equal(t, "No audit events found.\n", empty.String())
}

func seedSessions(t *testing.T) *memory.SessionStore {
	t.Helper()
	store := memory.NewSessionStore()
	ctx := context.Background()
	for _, s := range []domainauth.Session{
		{ID: "s1", User: &domainauth.User{ID: "u1"}, Role: domainauth.RoleDoctor, AccessToken: "tok", ExpiresAt: time.Now().Add(time.Hour)},
		{ID: "s2", User: &domainauth.User{ID: "u1"}, Role: domainauth.RoleDoctor, ExpiresAt: time.Now().Add(2 * time.Hour)},
		{ID: "s3", User: &domainauth.User{ID: "u2"}, Role: domainauth.RolePatient, ExpiresAt: time.Now().Add(3 * time.Hour)},
	} {
		require.NoError(t, store.Save(ctx, s))
	}
	return store
}

func TestListSessions(t *testing.T) {
	store := seedSessions(t)

	var buf bytes.Buffer
	require.NoError(t, listSessions(context.Background(), &buf, store, sessionsListOptions{UserID: "u1"}, time.Now()))
	out := buf.String()
	assert.Contains(t, out, "s1")
	assert.Contains(t, out, "s2")
	assert.NotContains(t, out, "s3")
	assert.Less(t, strings.Index(out, "s1"), strings.Index(out, "s2"), "sessions sort by expiry")
}

func TestClearSessions(t *testing.T) {
	ctx := context.Background()

	t.Run("dry run deletes nothing", func(t *testing.T) {
		store := seedSessions(t)
		n, err := clearSessions(ctx, store, sessionsClearOptions{All: true, DryRun: true})
		require.NoError(t, err)
		assert.Equal(t, 3, n)
		list, err := store.List(ctx)
		require.NoError(t, err)
		assert.Len(t, list, 3)
	})

	t.Run("by user", func(t *testing.T) {
		store := seedSessions(t)
		n, err := clearSessions(ctx, store, sessionsClearOptions{UserID: "u1"})
		require.NoError(t, err)
		assert.Equal(t, 2, n)
		list, err := store.List(ctx)
		require.NoError(t, err)
		require.Len(t, list, 1)
		assert.Equal(t, "s3", list[0].ID)
	})

	t.Run("by id", func(t *testing.T) {
		store := seedSessions(t)
		n, err := clearSessions(ctx, store, sessionsClearOptions{ID: "s3"})
		require.NoError(t, err)
		assert.Equal(t, 1, n)
		_, err = store.Get(ctx, "s3")
		assert.ErrorIs(t, err, memory.ErrNotFound)
	})
}

func TestConfirmAction(t *testing.T) {
	opts := sessionsClearOptions{UserID: "u1"}

	var out bytes.Buffer
	require.NoError(t, confirmAction(strings.NewReader("y\n"), &out, opts, "sign out sessions"))
	assert.Contains(t, out.String(), `About to sign out sessions for user "u1".`)

	assert.Error(t, confirmAction(strings.NewReader("n\n"), io.Discard, opts, "sign out sessions"))
	assert.Error(t, confirmAction(strings.NewReader(""), io.Discard, opts, "sign out sessions"))

	out.Reset()
	assert.Error(t, confirmAction(strings.NewReader("\n"), &out, sessionsClearOptions{All: true}, "sign out sessions"))
	assert.Contains(t, out.String(), "WARNING")

	require.NoError(t, confirmAction(strings.NewReader(""), io.Discard, sessionsClearOptions{All: true, Yes: true}, "x"))
}

func TestReadPassword(t *testing.T) {
	pw, err := readPassword(strings.NewReader("s3cret-pass\r\n"), io.Discard)
	require.NoError(t, err)
	assert.Equal(t, "s3cret-pass", pw)

	_, err = readPassword(strings.NewReader("\n"), io.Discard)
	assert.Error(t, err)
}

func TestSessionCommandsRequireSharedStore(t *testing.T) {
	cmdCtx := &commandContext{Ctx: context.Background(), Logger: discardLogger()}
	_, _, err := openSessionStore(cmdCtx)
	assert.ErrorIs(t, err, errSessionStoreNotShared)
}

func TestProbe(t *testing.T) {
	up := testutil.NewUpstream(t)
	up.Handle(http.MethodPost, "/auth/login", func(w http.ResponseWriter, _ *http.Request) {
		http.SetCookie(w, &http.Cookie{Name: "jwt", Value: "refresh-1"})
		testutil.WriteJSON(w, http.StatusOK, map[string]any{
			"accessToken": testutil.SignedToken(t, time.Now().Add(time.Hour)),
			"user":        map[string]any{"id": "u1", "first_name": "Mona", "last_name": "Adel", "role": "patient"},
		})
	})
	up.HandleJSON(http.MethodGet, "/auth/refreshToken", http.StatusOK, map[string]any{
		"accessToken": testutil.SignedToken(t, time.Now().Add(2*time.Hour)),
	})
	up.HandleJSON(http.MethodGet, "/auth/userId", http.StatusOK, map[string]any{"profileId": "p1", "role": "patient"})
	up.HandleJSON(http.MethodGet, "/presc/patient/p1", http.StatusOK, map[string]any{
		"prescriptions": []map[string]any{{"id": "rx1"}, {"id": "rx2"}},
		"completed":     1,
		"notCompleted":  1,
	})

	var out bytes.Buffer
	cmdCtx := &commandContext{
		Ctx:    context.Background(),
		Logger: discardLogger(),
		Config: config.AppConfig{
			Backend: config.BackendConfig{BaseURL: up.URL, RefreshPath: "/auth/refreshToken", Timeout: 5 * time.Second},
			Session: config.SessionConfig{Store: config.SessionStoreRedis},
		},
		Stdout: &out,
	}

	err := probe(context.Background(), cmdCtx, probeOptions{NID: "29801011234567", Refresh: true}, "password123")
	require.NoError(t, err)

	got := out.String()
	assert.Contains(t, got, "logged in as Mona Adel (patient)")
	assert.Contains(t, got, "refresh ok")
	assert.Contains(t, got, "profile p1 (patient)")
	assert.Contains(t, got, "prescriptions: 2 (1 completed, 1 open)")

	refresh, ok := up.Last(http.MethodGet, "/auth/refreshToken")
	require.True(t, ok)
	assert.Equal(t, "jwt=refresh-1", refresh.Header.Get("Cookie"))
}

func TestProbeLoginFailure(t *testing.T) {
	up := testutil.NewUpstream(t)
	up.HandleJSON(http.MethodPost, "/auth/login", http.StatusUnauthorized, map[string]string{"message": "bad password"})

	cmdCtx := &commandContext{
		Ctx:    context.Background(),
		Logger: discardLogger(),
		Config: config.AppConfig{Backend: config.BackendConfig{BaseURL: up.URL}},
		Stdout: io.Discard,
	}
	err := probe(context.Background(), cmdCtx, probeOptions{NID: "29801011234567"}, "password123")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "login")
	assert.Equal(t, 0, up.Calls(http.MethodGet, "/auth/userId"))
}

func discardLogger() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }
