package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/target/clinic-portal/internal/apiclient"
	"github.com/target/clinic-portal/internal/core"
	"github.com/target/clinic-portal/internal/data"
	domainauth "github.com/target/clinic-portal/internal/domain/auth"
	"github.com/target/clinic-portal/internal/domain/model"
	"github.com/target/clinic-portal/internal/session"
	"github.com/target/clinic-portal/internal/testutil"
)

type upstreamFixture struct {
	up     *testutil.Upstream
	client *apiclient.Client
	cache  *core.QueryCache
	audit  *auditSpy
}

func newUpstreamFixture(t *testing.T) upstreamFixture {
	t.Helper()
	up := testutil.NewUpstream(t)
	client, err := apiclient.New(apiclient.Config{BaseURL: up.URL, Timeout: 5 * time.Second})
	require.NoError(t, err)
	cache := core.NewQueryCache(core.QueryCacheOptions{Cache: data.NewLocalCacheRepo(data.LocalCacheConfig{Capacity: 64})})
	return upstreamFixture{up: up, client: client, cache: cache, audit: &auditSpy{}}
}

func (f upstreamFixture) opts() ClinicalServiceOptions {
	return ClinicalServiceOptions{API: f.client, Cache: f.cache, Audit: f.audit}
}

func signedIn(t *testing.T, role domainauth.Role) *session.Store {
	t.Helper()
	st := session.New("sess-" + string(role))
	require.NoError(t, st.SetAccessToken(testutil.SignedToken(t, time.Now().Add(time.Hour))))
	st.SetUser(domainauth.User{ID: "u-" + string(role), NID: "29801011234567", FirstName: "Mona", LastName: "Adel", Role: role})
	st.SetRefreshCookie("jwt=refresh-1")
	return st
}

// auditSpy collects recorded audit events.
type auditSpy struct {
	events []model.AuditEvent
}

func (a *auditSpy) Record(_ context.Context, ev model.AuditEvent) { a.events = append(a.events, ev) }

func (a *auditSpy) actions() []model.AuditAction {
	out := make([]model.AuditAction, len(a.events))
	for i, ev := range a.events {
		out[i] = ev.Action
	}
	return out
}
