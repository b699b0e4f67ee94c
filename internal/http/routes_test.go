package httpx

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	domainauth "github.com/target/clinic-portal/internal/domain/auth"
	"github.com/target/clinic-portal/internal/testutil"
)

func TestRouter_ValidSessionServesWithoutRefresh(t *testing.T) {
	f := newRouterFixture(t)
	f.up.HandleJSON(http.MethodGet, "/allergy/29801011234567", http.StatusOK, map[string]any{
		"allergies": []map[string]string{{"id": "a1", "allergy": "Penicillin"}},
	})
	cookie := f.signIn(t, domainauth.RoleDoctor, time.Now().Add(time.Hour))

	rec := f.do(t, http.MethodGet, "/api/patients/29801011234567/allergies", "", cookie)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.JSONEq(t, `{"allergies":[{"id":"a1","allergy":"Penicillin"}]}`, rec.Body.String())
	assert.Zero(t, f.up.Calls(http.MethodGet, "/auth/refreshToken"))
}

func TestRouter_EmptySessionRefreshesThenServes(t *testing.T) {
	f := newRouterFixture(t)
	f.up.Handle(http.MethodGet, "/auth/refreshToken", func(w http.ResponseWriter, _ *http.Request) {
		http.SetCookie(w, &http.Cookie{Name: "jwt", Value: "refresh-2"})
		testutil.WriteJSON(w, http.StatusOK, map[string]any{
			"accessToken": "abc",
			"user":        map[string]string{"id": "u1", "role": "doctor"},
		})
	})
	f.up.HandleJSON(http.MethodGet, "/auth/userId", http.StatusOK, map[string]string{"profileId": "d1", "role": "doctor"})

	rec := f.do(t, http.MethodGet, "/api/profile", "", nil)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, 1, f.up.Calls(http.MethodGet, "/auth/refreshToken"))
	last, ok := f.up.Last(http.MethodGet, "/auth/userId")
	require.True(t, ok)
	assert.Equal(t, "abc", last.Header.Get("Authorization"))

	// The refreshed session was persisted and the browser pointed at it.
	c := responseCookie(rec, SessionCookieName)
	require.NotNil(t, c)
	stored, err := f.sessions.Get(context.Background(), c.Value)
	require.NoError(t, err)
	assert.Equal(t, "abc", stored.AccessToken)
	assert.Equal(t, "jwt=refresh-2", stored.RefreshCookie)
}

func TestRouter_FailedRefreshAnswersAPI401(t *testing.T) {
	f := newRouterFixture(t)
	f.up.HandleJSON(http.MethodGet, "/auth/refreshToken", http.StatusUnauthorized, map[string]string{"message": "expired"})
	cookie := f.signIn(t, domainauth.RolePatient, time.Now().Add(-time.Minute))

	rec := f.do(t, http.MethodGet, "/api/prescriptions", "", cookie)

	require.Equal(t, http.StatusUnauthorized, rec.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "authentication_required", body["error"])
	cleared := responseCookie(rec, SessionCookieName)
	require.NotNil(t, cleared)
	assert.Negative(t, cleared.MaxAge)

	_, err := f.sessions.Get(context.Background(), cookie.Value)
	require.ErrorIs(t, err, domainauth.ErrSessionNotFound)
}

func TestRouter_FailedRefreshRedirectsBrowser(t *testing.T) {
	f := newRouterFixture(t)
	f.up.HandleJSON(http.MethodGet, "/auth/refreshToken", http.StatusUnauthorized, map[string]string{"message": "expired"})
	h := RequireAuth(f.guard(t), "/login", CookieConfig{})(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		t.Fatal("protected handler must not run")
	}))

	req := newSessionRequest(http.MethodGet, "/prescriptions?page=2", nil)
	req.Header.Set("Accept", "text/html")
	rec := serve(h, req)

	require.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/login?redirect_uri=%2Fprescriptions%3Fpage%3D2", rec.Header().Get("Location"))
}

func TestRouter_RetriesOnceOn401(t *testing.T) {
	f := newRouterFixture(t)
	calls := 0
	f.up.Handle(http.MethodGet, "/reports/all", func(w http.ResponseWriter, _ *http.Request) {
		calls++
		if calls == 1 {
			testutil.WriteJSON(w, http.StatusUnauthorized, map[string]string{"message": "jwt expired"})
			return
		}
		testutil.WriteJSON(w, http.StatusOK, map[string]any{"reports": []any{}})
	})
	fresh := testutil.SignedToken(t, time.Now().Add(2*time.Hour))
	f.up.HandleJSON(http.MethodGet, "/auth/refreshToken", http.StatusOK, map[string]string{"accessToken": fresh})
	cookie := f.signIn(t, domainauth.RoleOwner, time.Now().Add(time.Hour))

	rec := f.do(t, http.MethodGet, "/api/reports", "", cookie)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, 2, calls)
	assert.Equal(t, 1, f.up.Calls(http.MethodGet, "/auth/refreshToken"))
	stored, err := f.sessions.Get(context.Background(), cookie.Value)
	require.NoError(t, err)
	assert.Equal(t, fresh, stored.AccessToken)
}

func TestRouter_SecondUnauthorizedEndsSession(t *testing.T) {
	f := newRouterFixture(t)
	f.up.HandleJSON(http.MethodGet, "/reports/all", http.StatusUnauthorized, map[string]string{"message": "jwt expired"})
	f.up.HandleJSON(http.MethodGet, "/auth/refreshToken", http.StatusOK,
		map[string]string{"accessToken": testutil.SignedToken(t, time.Now().Add(time.Hour))})
	cookie := f.signIn(t, domainauth.RoleOwner, time.Now().Add(time.Hour))

	rec := f.do(t, http.MethodGet, "/api/reports", "", cookie)

	require.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, 2, f.up.Calls(http.MethodGet, "/reports/all"))
	assert.Equal(t, 1, f.up.Calls(http.MethodGet, "/auth/refreshToken"))
	_, err := f.sessions.Get(context.Background(), cookie.Value)
	require.ErrorIs(t, err, domainauth.ErrSessionNotFound)
}

func TestRouter_RoleRestrictedRoutes(t *testing.T) {
	f := newRouterFixture(t)
	cookie := f.signIn(t, domainauth.RolePatient, time.Now().Add(time.Hour))

	for _, target := range []string{"/api/analytics/drug-categories", "/api/doctor"} {
		rec := f.do(t, http.MethodGet, target, "", cookie)
		assert.Equal(t, http.StatusForbidden, rec.Code, target)
	}
	rec := f.do(t, http.MethodPost, "/api/prescriptions", `{}`, cookie)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Empty(t, f.up.Requests())
}

func TestRouter_AnalyticsSeries(t *testing.T) {
	f := newRouterFixture(t)
	f.up.HandleJSON(http.MethodGet, "/analytics/", http.StatusOK, []map[string]any{
		{"name": "Antibiotics", "count": 4},
		{"name": "Analgesics", "count": "2"},
	})
	cookie := f.signIn(t, domainauth.RoleOwner, time.Now().Add(time.Hour))

	rec := f.do(t, http.MethodGet, "/api/analytics/drug-categories?format=series", "", cookie)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var got struct {
		Labels []string  `json:"labels"`
		Values []float64 `json:"values"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, []string{"Antibiotics", "Analgesics"}, got.Labels)
	assert.Equal(t, []float64{4, 2}, got.Values)
}

func TestRouter_InteractionsFromQuery(t *testing.T) {
	f := newRouterFixture(t)
	f.up.HandleJSON(http.MethodGet, "/drug/interaction", http.StatusOK, map[string]any{})
	f.up.HandleJSON(http.MethodGet, "/drug/29801011234567/", http.StatusOK, map[string]any{})
	cookie := f.signIn(t, domainauth.RoleDoctor, time.Now().Add(time.Hour))

	rec := f.do(t, http.MethodGet, "/api/interactions?patient=29801011234567&drug=Aspirin&drug=Ibuprofen", "", cookie)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	last, ok := f.up.Last(http.MethodGet, "/drug/interaction")
	require.True(t, ok)
	assert.Contains(t, last.RawQuery, "drug=Aspirin+with+Ibuprofen")
	assert.Equal(t, 1, f.up.Calls(http.MethodGet, "/drug/29801011234567/"))
}

func TestRouter_SpecialitiesArePublic(t *testing.T) {
	f := newRouterFixture(t)
	f.up.HandleJSON(http.MethodGet, "/spec", http.StatusOK, map[string]any{"specialities": []map[string]string{{"name": "Cardiology"}}})

	rec := f.do(t, http.MethodGet, "/api/specialities", "", nil)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Zero(t, f.up.Calls(http.MethodGet, "/auth/refreshToken"))
}

func TestRouter_UnknownAPIRouteIsJSON404(t *testing.T) {
	f := newRouterFixture(t)

	rec := f.do(t, http.MethodGet, "/api/nope", "", nil)

	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
}

func TestRouter_Health(t *testing.T) {
	f := newRouterFixture(t)

	assert.Equal(t, http.StatusOK, f.do(t, http.MethodGet, "/healthz", "", nil).Code)
	rec := f.do(t, http.MethodGet, "/readyz", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok","checks":{"upstream":"ok"}}`, rec.Body.String())
}
