package httpx

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/target/clinic-portal/internal/domain/model"
	"github.com/target/clinic-portal/internal/service"
	"github.com/target/clinic-portal/internal/session"
)

// AuthServiceInterface defines the interface for auth service operations.
type AuthServiceInterface interface {
	Login(ctx context.Context, req model.LoginRequest) (*session.Store, error)
	RegisterPatient(ctx context.Context, form model.PatientSignUp) (*session.Store, error)
	RegisterDoctor(ctx context.Context, form model.DoctorSignUp) (*session.Store, error)
	ForgotPassword(ctx context.Context, req model.ForgotPasswordRequest) error
	ResetPassword(ctx context.Context, form model.ResetPasswordForm) error
	Logout(ctx context.Context, st *session.Store) error
}

// AuthHandlers provides HTTP handlers for authentication operations.
type AuthHandlers struct {
	Svc     AuthServiceInterface
	Guard   Guard
	Cookies CookieConfig
	Logger  *slog.Logger
}

func (h *AuthHandlers) logger() *slog.Logger {
	if h != nil && h.Logger != nil {
		return h.Logger
	}
	return slog.Default()
}

type loginResponse struct {
	Authenticated bool        `json:"authenticated"`
	User          any         `json:"user,omitempty"`
	Role          string      `json:"role,omitempty"`
	ExpiresAt     *time.Time  `json:"expires_at,omitempty"`
	RedirectTo    string      `json:"redirect_to,omitempty"`
	Guard         *guardTrace `json:"guard,omitempty"`
}

type guardTrace struct {
	Outcome string               `json:"outcome"`
	Path    []service.GuardState `json:"path"`
}

// Login signs in with NID and password.
// POST /auth/login?redirect_uri=<optional_redirect>.
func (h *AuthHandlers) Login(w http.ResponseWriter, r *http.Request) {
	var req model.LoginRequest
	if !DecodeJSON(w, r, &req) {
		return
	}
	st, err := h.Svc.Login(r.Context(), req)
	h.establish(w, r, st, err)
}

// SignUpPatient registers a patient account and signs it in.
// POST /auth/sign-up/patient.
func (h *AuthHandlers) SignUpPatient(w http.ResponseWriter, r *http.Request) {
	var form model.PatientSignUp
	if !DecodeJSON(w, r, &form) {
		return
	}
	st, err := h.Svc.RegisterPatient(r.Context(), form)
	h.establish(w, r, st, err)
}

// SignUpDoctor registers a doctor account and signs it in.
// POST /auth/sign-up/doctor.
func (h *AuthHandlers) SignUpDoctor(w http.ResponseWriter, r *http.Request) {
	var form model.DoctorSignUp
	if !DecodeJSON(w, r, &form) {
		return
	}
	st, err := h.Svc.RegisterDoctor(r.Context(), form)
	h.establish(w, r, st, err)
}

// establish swaps the request's session for the newly signed-in one and
// points the browser at it.
func (h *AuthHandlers) establish(w http.ResponseWriter, r *http.Request, st *session.Store, err error) {
	if err != nil {
		RenderError(w, r, h.logger(), err)
		return
	}
	if !replaceSession(r.Context(), st) {
		h.logger().WarnContext(r.Context(), "session middleware not installed; login will not stick")
	}
	setSessionCookie(w, r, h.Cookies, st.ID())

	snap := st.Snapshot()
	resp := loginResponse{
		Authenticated: true,
		Role:          string(snap.Role),
		RedirectTo:    safeRedirectPath(r.URL.Query().Get("redirect_uri")),
	}
	if snap.User != nil {
		resp.User = snap.User
	}
	if !snap.ExpiresAt.IsZero() {
		resp.ExpiresAt = &snap.ExpiresAt
	}
	WriteJSON(w, http.StatusOK, resp)
}

// ForgotPassword asks the upstream to mail a reset link.
// POST /auth/forgot-password.
func (h *AuthHandlers) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req model.ForgotPasswordRequest
	if !DecodeJSON(w, r, &req) {
		return
	}
	if err := h.Svc.ForgotPassword(r.Context(), req); err != nil {
		RenderError(w, r, h.logger(), err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]string{"status": "sent"})
}

// ResetPassword sets a new password with a reset token.
// POST /auth/reset-password.
func (h *AuthHandlers) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var form model.ResetPasswordForm
	if !DecodeJSON(w, r, &form) {
		return
	}
	if err := h.Svc.ResetPassword(r.Context(), form); err != nil {
		RenderError(w, r, h.logger(), err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]string{"status": "reset", "redirect_to": "/login"})
}

// Logout ends the session.
// POST /auth/logout.
func (h *AuthHandlers) Logout(w http.ResponseWriter, r *http.Request) {
	if st, ok := GetSessionFromContext(r.Context()); ok {
		if err := h.Svc.Logout(r.Context(), st); err != nil {
			h.logger().WarnContext(r.Context(), "logout failed", "error", err)
		}
	}
	clearSessionCookie(w, r, h.Cookies)
	WriteJSON(w, http.StatusOK, map[string]string{
		"status":      "success",
		"redirect_to": "/login",
	})
}

// Status runs the route guard and reports its outcome. A missing or expired
// token is refreshed first.
// GET /auth/status.
func (h *AuthHandlers) Status(w http.ResponseWriter, r *http.Request) {
	st, ok := GetSessionFromContext(r.Context())
	if !ok || h.Guard == nil {
		WriteJSON(w, http.StatusOK, loginResponse{Authenticated: false})
		return
	}

	d, err := h.Guard.Check(r.Context(), st, "api")
	if err != nil {
		RenderError(w, r, h.logger(), err)
		return
	}
	trace := &guardTrace{Outcome: d.Outcome, Path: d.Path}
	if !d.Allowed() {
		clearSessionCookie(w, r, h.Cookies)
		WriteJSON(w, http.StatusOK, loginResponse{Authenticated: false, RedirectTo: "/login", Guard: trace})
		return
	}

	snap := st.Snapshot()
	resp := loginResponse{Authenticated: true, Role: string(snap.Role), Guard: trace}
	if snap.User != nil {
		resp.User = snap.User
	}
	if !snap.TokenExpiresAt.IsZero() {
		resp.ExpiresAt = &snap.TokenExpiresAt
	}
	WriteJSON(w, http.StatusOK, resp)
}
