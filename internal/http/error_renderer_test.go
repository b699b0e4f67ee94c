package httpx

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/target/clinic-portal/internal/apiclient"
	apperrors "github.com/target/clinic-portal/internal/errors"
)

func TestRenderError(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		wantStatus  int
		wantCode    string
		wantMessage string
		wantFields  map[string]any
	}{
		{
			name:        "single field",
			err:         apperrors.ValidationField("password", "Incorrect password"),
			wantStatus:  http.StatusBadRequest,
			wantCode:    "validation",
			wantMessage: "Incorrect password",
			wantFields:  map[string]any{"password": "Incorrect password"},
		},
		{
			name:        "many fields",
			err:         apperrors.ValidationFields(map[string]string{"nid": "NID is required", "email": "Email is required"}),
			wantStatus:  http.StatusBadRequest,
			wantCode:    "validation",
			wantMessage: errMsgFixBelow,
			wantFields:  map[string]any{"nid": "NID is required", "email": "Email is required"},
		},
		{
			name:        "forbidden",
			err:         fmt.Errorf("create: %w", apperrors.Forbidden("You do not have access to this action.")),
			wantStatus:  http.StatusForbidden,
			wantCode:    "forbidden",
			wantMessage: "You do not have access to this action.",
		},
		{
			name:        "login required",
			err:         fmt.Errorf("%w: refresh failed", apiclient.ErrLoginRequired),
			wantStatus:  http.StatusUnauthorized,
			wantCode:    "unauthorized",
			wantMessage: "Your session has ended. Please log in again.",
		},
		{
			name:        "transport failure",
			err:         errors.New("dial tcp: connection refused"),
			wantStatus:  http.StatusBadGateway,
			wantCode:    "unavailable",
			wantMessage: "The clinical service is unavailable.",
		},
		{
			name:        "internal hides details",
			err:         apperrors.Internal("projection labels/values mismatch"),
			wantStatus:  http.StatusInternalServerError,
			wantCode:    "internal",
			wantMessage: "An error occurred. Please try again.",
		},
		{
			name:        "timeout",
			err:         fmt.Errorf("get: %w", context.DeadlineExceeded),
			wantStatus:  http.StatusGatewayTimeout,
			wantCode:    "timeout",
			wantMessage: "The clinical service took too long to respond.",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			RenderError(rec, httptest.NewRequest(http.MethodGet, "/api/me", nil), discardLogger(), tt.err)

			require.Equal(t, tt.wantStatus, rec.Code)
			body := decodeBody(t, rec.Body.Bytes())
			assert.Equal(t, tt.wantCode, body["error"])
			assert.Equal(t, tt.wantMessage, body["message"])
			if tt.wantFields == nil {
				assert.NotContains(t, body, "fields")
				return
			}
			assert.Equal(t, tt.wantFields, body["fields"])
		})
	}
}

func TestRenderError_UpstreamNotFoundPassesMessage(t *testing.T) {
	f := newRouterFixture(t)
	f.up.HandleJSON(http.MethodGet, "/presc/p9", http.StatusNotFound, map[string]string{"message": "Prescription not found"})
	st := signedInStore(t)

	_, err := f.client.Do(context.Background(), st, apiclient.Request{Path: "/presc/p9"})
	require.Error(t, err)
	rec := httptest.NewRecorder()
	RenderError(rec, httptest.NewRequest(http.MethodGet, "/api/prescriptions/p9", nil), discardLogger(), err)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Prescription not found", decodeBody(t, rec.Body.Bytes())["message"])
}

func TestRenderError_Nil(t *testing.T) {
	rec := httptest.NewRecorder()
	RenderError(rec, httptest.NewRequest(http.MethodGet, "/", nil), nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Body.String())
}
