package httpx

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/target/clinic-portal/internal/apiclient"
	"github.com/target/clinic-portal/internal/core"
	"github.com/target/clinic-portal/internal/data"
	domainauth "github.com/target/clinic-portal/internal/domain/auth"
	mockauth "github.com/target/clinic-portal/internal/mocks/auth"
	"github.com/target/clinic-portal/internal/service"
	"github.com/target/clinic-portal/internal/session"
	"github.com/target/clinic-portal/internal/testutil"
)

// routerFixture runs the full router against a fake clinical API.
type routerFixture struct {
	up       *testutil.Upstream
	client   *apiclient.Client
	sessions *mockauth.MemorySessionStore
	handler  http.Handler
}

func newRouterFixture(t *testing.T) routerFixture {
	t.Helper()
	up := testutil.NewUpstream(t)
	client, err := apiclient.New(apiclient.Config{BaseURL: up.URL, Timeout: 5 * time.Second})
	require.NoError(t, err)

	sessions := mockauth.NewMemorySessionStore()
	cache := core.NewQueryCache(core.QueryCacheOptions{Cache: data.NewLocalCacheRepo(data.LocalCacheConfig{Capacity: 64})})
	clinical := service.ClinicalServiceOptions{API: client, Cache: cache}

	handler := NewRouter(RouterServices{
		Auth:          service.MustNewAuthService(service.AuthServiceOptions{API: client, Sessions: sessions}),
		Guard:         service.MustNewRouteGuard(service.RouteGuardOptions{Refresher: client.Refresher()}),
		Profile:       service.MustNewProfileService(clinical),
		Patients:      service.MustNewPatientService(clinical),
		Prescriptions: service.MustNewPrescriptionService(clinical),
		Diagnoses:     service.MustNewDiagnosisService(clinical),
		Allergies:     service.MustNewAllergyService(clinical),
		Catalog:       service.MustNewCatalogService(clinical),
		Reports:       service.MustNewReportService(clinical),
		Analytics:     service.MustNewAnalyticsService(service.AnalyticsServiceOptions{Clinical: clinical}),
		Interactions:  service.MustNewInteractionService(clinical),
		Health: map[string]HealthCheck{
			"upstream": func(context.Context) error { return nil },
		},
	})
	return routerFixture{up: up, client: client, sessions: sessions, handler: handler}
}

// signIn stores a signed-in session record and returns its cookie.
func (f routerFixture) signIn(t *testing.T, role domainauth.Role, tokenExp time.Time) *http.Cookie {
	t.Helper()
	id := "sess-" + string(role)
	require.NoError(t, f.sessions.Save(context.Background(), domainauth.Session{
		ID:             id,
		User:           &domainauth.User{ID: "u-" + string(role), NID: "29801011234567", FirstName: "Mona", Role: role},
		Role:           role,
		AccessToken:    testutil.SignedToken(t, tokenExp),
		TokenExpiresAt: tokenExp,
		RefreshCookie:  "jwt=refresh-1",
		ExpiresAt:      time.Now().Add(time.Hour),
	}))
	return &http.Cookie{Name: SessionCookieName, Value: id}
}

func (f routerFixture) do(t *testing.T, method, target, body string, cookie *http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, rd)
	req.Header.Set("Accept", "application/json")
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if cookie != nil {
		req.AddCookie(cookie)
	}
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func (f routerFixture) guard(t *testing.T) *service.RouteGuard {
	t.Helper()
	return service.MustNewRouteGuard(service.RouteGuardOptions{Refresher: f.client.Refresher()})
}

// newSessionRequest builds a request that already carries st, as the session
// middleware would leave it. A nil st gets a fresh anonymous store.
func newSessionRequest(method, target string, st *session.Store) *http.Request {
	if st == nil {
		st = session.New("anon")
	}
	req := httptest.NewRequest(method, target, nil)
	return req.WithContext(SetSessionInContext(req.Context(), st))
}

func serve(h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func signedInStore(t *testing.T) *session.Store {
	t.Helper()
	st := session.New("sess-direct")
	require.NoError(t, st.SetAccessToken(testutil.SignedToken(t, time.Now().Add(time.Hour))))
	st.SetUser(domainauth.User{ID: "u1", Role: domainauth.RoleDoctor})
	return st
}

// responseCookie returns the named Set-Cookie of rec.
func responseCookie(rec *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, c := range rec.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}
