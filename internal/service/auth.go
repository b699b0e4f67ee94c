package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/target/clinic-portal/internal/apiclient"
	"github.com/target/clinic-portal/internal/audit"
	"github.com/target/clinic-portal/internal/core"
	domainauth "github.com/target/clinic-portal/internal/domain/auth"
	"github.com/target/clinic-portal/internal/domain/model"
	apperrors "github.com/target/clinic-portal/internal/errors"
	"github.com/target/clinic-portal/internal/ports"
	"github.com/target/clinic-portal/internal/session"
)

const defaultSessionTTL = 24 * time.Hour

// ErrSessionExpired is returned by Load when the stored record outlived its TTL.
var ErrSessionExpired = errors.New("session expired")

// AuthServiceOptions groups dependencies for AuthService.
type AuthServiceOptions struct {
	API        core.ClinicalAPI   // Required
	Sessions   ports.SessionStore // Required
	Audit      core.AuditRecorder // Optional
	Logger     *slog.Logger       // Optional
	SessionTTL time.Duration      // Optional; defaults to 24h
	Now        func() time.Time   // Optional
}

// AuthService runs the credential flows against the upstream auth endpoints and
// owns the lifecycle of the server-side session record.
type AuthService struct {
	api      core.ClinicalAPI
	sessions ports.SessionStore
	audit    core.AuditRecorder
	logger   *slog.Logger
	ttl      time.Duration
	now      func() time.Time
}

// NewAuthService constructs a new AuthService.
func NewAuthService(opts AuthServiceOptions) (*AuthService, error) {
	if opts.API == nil {
		return nil, errors.New("API is required")
	}
	if opts.Sessions == nil {
		return nil, errors.New("Sessions is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	recorder := opts.Audit
	if recorder == nil {
		recorder = audit.Nop{}
	}
	ttl := opts.SessionTTL
	if ttl <= 0 {
		ttl = defaultSessionTTL
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &AuthService{
		api:      opts.API,
		sessions: opts.Sessions,
		audit:    recorder,
		logger:   logger.With("component", "auth_service"),
		ttl:      ttl,
		now:      now,
	}, nil
}

// MustNewAuthService constructs a new AuthService and panics on error.
func MustNewAuthService(opts AuthServiceOptions) *AuthService {
	svc, err := NewAuthService(opts)
	if err != nil {
		//nolint:forbidigo // Must constructor intentionally panics on invalid wiring.
		panic(err)
	}
	return svc
}

// authResult is the body of a successful login or sign-up. Older backends name
// the user "user", newer ones "newUser".
type authResult struct {
	AccessToken string           `json:"accessToken"`
	User        *domainauth.User `json:"user"`
	NewUser     *domainauth.User `json:"newUser"`
}

func (r authResult) user() *domainauth.User {
	if r.User != nil {
		return r.User
	}
	return r.NewUser
}

// signUpPayload is the upstream sign-up body. The upstream expects "NID" in
// capitals, unlike the login body.
type signUpPayload struct {
	FirstName  string          `json:"firstName"`
	LastName   string          `json:"lastName"`
	NID        string          `json:"NID"`
	Email      string          `json:"email"`
	Password   string          `json:"password"`
	Role       domainauth.Role `json:"role"`
	BirthDate  string          `json:"birth_date"`
	Gender     string          `json:"gender"`
	BloodType  model.BloodType `json:"blood_type"`
	Speciality string          `json:"speciality,omitempty"`
	License    string          `json:"license,omitempty"`
}

// Login exchanges a national ID and password for a new signed-in session.
// The returned store has already been persisted.
func (s *AuthService) Login(ctx context.Context, req model.LoginRequest) (*session.Store, error) {
	req.NID = strings.TrimSpace(req.NID)
	if err := req.Validate(); err != nil {
		return nil, formError(err)
	}

	st := session.New(uuid.NewString())
	var res authResult
	err := s.anonymous(ctx, st, http.MethodPost, "/auth/login", req, &res)
	if err != nil {
		s.audit.Record(ctx, audit.WithMetadata(audit.Failed(audit.Event(st, model.AuditLoginFailed, "")),
			map[string]string{"status": fmt.Sprint(apiclient.StatusOf(err))}))
		return nil, loginError(err)
	}
	if err := s.establish(ctx, st, res); err != nil {
		return nil, err
	}
	s.audit.Record(ctx, audit.Event(st, model.AuditLogin, userResource(st)))
	s.logger.InfoContext(ctx, "user logged in", "session_id", st.ID(), "role", st.Role())
	return st, nil
}

// loginError maps upstream login failures onto the form field they concern.
func loginError(err error) error {
	switch apiclient.StatusOf(err) {
	case http.StatusUnauthorized:
		return apperrors.ValidationField("password", "Incorrect password")
	case http.StatusNotFound:
		return apperrors.ValidationField("nid", "No account exists with this National ID")
	default:
		return apiclient.ToAppError(err)
	}
}

// RegisterPatient creates a patient account and signs the new user in.
func (s *AuthService) RegisterPatient(ctx context.Context, form model.PatientSignUp) (*session.Store, error) {
	if err := form.Validate(); err != nil {
		return nil, formError(err)
	}
	r := form.PatientRegistration
	return s.signUp(ctx, signUpPayload{
		FirstName: strings.TrimSpace(r.FirstName),
		LastName:  strings.TrimSpace(r.LastName),
		NID:       strings.TrimSpace(r.NID),
		Email:     strings.TrimSpace(r.Email),
		Password:  r.Password,
		Role:      domainauth.RolePatient,
		BirthDate: r.BirthDate,
		Gender:    r.Gender,
		BloodType: r.BloodType,
	})
}

// RegisterDoctor creates a doctor account and signs the new user in.
func (s *AuthService) RegisterDoctor(ctx context.Context, form model.DoctorSignUp) (*session.Store, error) {
	if err := form.Validate(); err != nil {
		return nil, formError(err)
	}
	r := form.DoctorRegistration
	return s.signUp(ctx, signUpPayload{
		FirstName:  strings.TrimSpace(r.FirstName),
		LastName:   strings.TrimSpace(r.LastName),
		NID:        strings.TrimSpace(r.NID),
		Email:      strings.TrimSpace(r.Email),
		Password:   r.Password,
		Role:       domainauth.RoleDoctor,
		BirthDate:  r.BirthDate,
		Gender:     r.Gender,
		BloodType:  r.BloodType,
		Speciality: strings.TrimSpace(r.Speciality),
		License:    strings.TrimSpace(r.License),
	})
}

func (s *AuthService) signUp(ctx context.Context, payload signUpPayload) (*session.Store, error) {
	st := session.New(uuid.NewString())
	var res authResult
	if err := s.anonymous(ctx, st, http.MethodPost, "/auth/sign-up", payload, &res); err != nil {
		return nil, apiclient.ToAppError(err)
	}
	if err := s.establish(ctx, st, res); err != nil {
		return nil, err
	}
	s.audit.Record(ctx, audit.WithMetadata(audit.Event(st, model.AuditLogin, userResource(st)),
		map[string]string{"via": "sign-up"}))
	s.logger.InfoContext(ctx, "user registered", "session_id", st.ID(), "role", payload.Role)
	return st, nil
}

// ForgotPassword asks the upstream to mail a reset link to the address.
func (s *AuthService) ForgotPassword(ctx context.Context, req model.ForgotPasswordRequest) error {
	req.Email = strings.TrimSpace(req.Email)
	if err := req.Validate(); err != nil {
		return formError(err)
	}
	if err := s.anonymous(ctx, nil, http.MethodPost, "/auth/forget-password", req, nil); err != nil {
		if apiclient.StatusOf(err) == http.StatusNotFound {
			return apperrors.ValidationField("email", "No account exists with this email")
		}
		return apiclient.ToAppError(err)
	}
	return nil
}

// ResetPassword sets a new password using the token from the reset link.
func (s *AuthService) ResetPassword(ctx context.Context, form model.ResetPasswordForm) error {
	if err := form.Validate(); err != nil {
		return formError(err)
	}
	body := model.ResetPasswordRequest{Token: strings.TrimSpace(form.Token), NewPassword: form.Password}
	if err := s.anonymous(ctx, nil, http.MethodPut, "/auth/reset-password", body, nil); err != nil {
		return apiclient.ToAppError(err)
	}
	return nil
}

// Logout ends the upstream session when possible, then clears st and deletes
// its record. Upstream failures are logged and otherwise ignored.
func (s *AuthService) Logout(ctx context.Context, st *session.Store) error {
	if st == nil {
		return nil
	}
	if st.Authenticated() || st.RefreshCookie() != "" {
		_, err := s.api.Do(ctx, st, apiclient.Request{Method: http.MethodDelete, Path: "/auth/logout", Anonymous: true})
		if err != nil {
			s.logger.InfoContext(ctx, "upstream logout failed", "session_id", st.ID(), "error", err)
		}
	}
	s.audit.Record(ctx, audit.Event(st, model.AuditLogout, ""))

	st.Clear()
	if st.ID() == "" {
		return nil
	}
	if err := s.sessions.Delete(ctx, st.ID()); err != nil && !errors.Is(err, domainauth.ErrSessionNotFound) {
		return fmt.Errorf("delete session: %w", err)
	}
	st.MarkClean()
	return nil
}

// Load restores the session record with the given ID. Expired records are
// deleted and reported as ErrSessionExpired.
func (s *AuthService) Load(ctx context.Context, id string) (*session.Store, error) {
	if id == "" {
		return nil, domainauth.ErrSessionNotFound
	}
	rec, err := s.sessions.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	if !rec.ExpiresAt.IsZero() && s.now().After(rec.ExpiresAt) {
		if deleteErr := s.sessions.Delete(ctx, id); deleteErr != nil {
			return nil, errors.Join(ErrSessionExpired, fmt.Errorf("delete session: %w", deleteErr))
		}
		return nil, ErrSessionExpired
	}
	return session.FromSession(rec), nil
}

// Persist writes st back after a request mutated it. A store left with no
// credentials is deleted instead of saved.
func (s *AuthService) Persist(ctx context.Context, st *session.Store) error {
	if st == nil || !st.Dirty() || st.ID() == "" {
		return nil
	}
	snap := st.Snapshot()
	if !snap.HasToken() && snap.RefreshCookie == "" {
		if err := s.sessions.Delete(ctx, snap.ID); err != nil && !errors.Is(err, domainauth.ErrSessionNotFound) {
			return fmt.Errorf("delete session: %w", err)
		}
		st.MarkClean()
		return nil
	}
	if snap.ExpiresAt.IsZero() {
		snap.ExpiresAt = s.now().Add(s.ttl)
	}
	if err := s.sessions.Save(ctx, snap); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	st.MarkClean()
	return nil
}

func (s *AuthService) anonymous(ctx context.Context, st *session.Store, method, path string, body, out any) error {
	var sess ports.SessionState
	if st != nil {
		sess = st
	}
	resp, err := s.api.Do(ctx, sess, apiclient.Request{Method: method, Path: path, Body: body, Anonymous: true})
	if err != nil {
		return err
	}
	return resp.Decode(out)
}

// establish stores the credentials of a successful login or sign-up in st and
// persists the record.
func (s *AuthService) establish(ctx context.Context, st *session.Store, res authResult) error {
	token := strings.TrimSpace(res.AccessToken)
	if token == "" {
		return apperrors.Unavailable("The clinical service did not return a session.")
	}
	if err := st.SetAccessToken(token); err != nil {
		if !errors.Is(err, session.ErrMalformedToken) {
			return fmt.Errorf("store access token: %w", err)
		}
		s.logger.DebugContext(ctx, "access token has no readable expiry", "error", err)
	}
	if u := res.user(); u != nil {
		st.SetUser(*u)
	}
	st.SetExpiry(s.now().Add(s.ttl))
	if err := s.sessions.Save(ctx, st.Snapshot()); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	st.MarkClean()
	return nil
}

func userResource(st *session.Store) string {
	if u, ok := st.User(); ok && u.ID != "" {
		return "user:" + u.ID
	}
	return ""
}
