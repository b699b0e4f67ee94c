package httpx

import (
	"errors"
	"log/slog"
	"net/http"

	domainauth "github.com/target/clinic-portal/internal/domain/auth"
	"github.com/target/clinic-portal/internal/service"
)

// AuthBackend signs users in and out and owns session persistence.
type AuthBackend interface {
	AuthServiceInterface
	SessionManager
}

// RouterServices holds all the services needed by the HTTP router.
type RouterServices struct {
	Auth          AuthBackend // Required
	Guard         Guard       // Required
	Profile       *service.ProfileService
	Patients      *service.PatientService
	Prescriptions *service.PrescriptionService
	Diagnoses     *service.DiagnosisService
	Allergies     *service.AllergyService
	Catalog       *service.CatalogService
	Reports       *service.ReportService
	Analytics     *service.AnalyticsService
	Interactions  *service.InteractionService
	// Health checks run by /readyz, keyed by dependency name.
	Health map[string]HealthCheck
	// Configuration
	Cookies    CookieConfig
	TrustProxy bool
	LoginPath  string
	Logger     *slog.Logger // Optional
}

// NewRouter creates and configures a new HTTP router with browser and session middleware.
func NewRouter(services RouterServices) http.Handler {
	logger := services.Logger
	if logger == nil {
		logger = slog.Default()
	}

	app := http.NewServeMux()
	authHandlers := &AuthHandlers{
		Svc:     services.Auth,
		Guard:   services.Guard,
		Cookies: services.Cookies,
		Logger:  logger,
	}
	registerAuthRoutes(app, authHandlers)

	clinical := &ClinicalHandlers{
		Profile:       services.Profile,
		Patients:      services.Patients,
		Prescriptions: services.Prescriptions,
		Diagnoses:     services.Diagnoses,
		Allergies:     services.Allergies,
		Catalog:       services.Catalog,
		Reports:       services.Reports,
		Analytics:     services.Analytics,
		Interactions:  services.Interactions,
		Logger:        logger,
	}
	registerClinicalRoutes(app, clinical, apiRouteConfig{
		Guard:     services.Guard,
		LoginPath: services.LoginPath,
		Cookies:   services.Cookies,
	})
	app.HandleFunc("/", notFound)

	mux := http.NewServeMux()
	mux.Handle("GET /healthz", http.HandlerFunc(healthHandler))
	mux.Handle("HEAD /healthz", http.HandlerFunc(healthHandler))
	mux.Handle("GET /readyz", readyHandler(services.Health))
	sessions := Sessions(services.Auth, services.Cookies, logger)
	mux.Handle("/auth/", sessions(app))
	mux.Handle("/api/", sessions(app))
	mux.HandleFunc("/", notFound)

	// Request logging and panic recovery are applied by the caller.
	return BrowserDetection()(ClientAddr(services.TrustProxy)(mux))
}

func registerAuthRoutes(mux *http.ServeMux, h *AuthHandlers) {
	mux.HandleFunc("POST /auth/login", h.Login)
	mux.HandleFunc("POST /auth/sign-up/patient", h.SignUpPatient)
	mux.HandleFunc("POST /auth/sign-up/doctor", h.SignUpDoctor)
	mux.HandleFunc("POST /auth/forgot-password", h.ForgotPassword)
	mux.HandleFunc("POST /auth/reset-password", h.ResetPassword)
	mux.HandleFunc("POST /auth/logout", h.Logout)
	mux.HandleFunc("GET /auth/status", h.Status)
}

type apiRouteConfig struct {
	Guard     Guard
	LoginPath string
	Cookies   CookieConfig
}

func (cfg apiRouteConfig) authWrap() func(http.Handler) http.Handler {
	return RequireAuth(cfg.Guard, cfg.LoginPath, cfg.Cookies)
}

func (cfg apiRouteConfig) roleWrap(roles ...domainauth.Role) func(http.Handler) http.Handler {
	auth := cfg.authWrap()
	role := RequireRole(roles...)
	return func(h http.Handler) http.Handler { return auth(role(h)) }
}

func registerClinicalRoutes(mux *http.ServeMux, h *ClinicalHandlers, cfg apiRouteConfig) {
	auth := cfg.authWrap()
	doctor := cfg.roleWrap(domainauth.RoleDoctor)
	analytics := cfg.roleWrap(domainauth.RoleOwner, domainauth.RoleAdmin)
	wrap := func(mw func(http.Handler) http.Handler, fn http.HandlerFunc) http.Handler { return mw(fn) }

	// Sign-up needs the speciality list before anyone is signed in.
	mux.HandleFunc("GET /api/specialities", h.Specialities)

	mux.Handle("GET /api/me", wrap(auth, h.Me))
	mux.Handle("GET /api/profile", wrap(auth, h.ProfileID))
	mux.Handle("GET /api/doctor", wrap(doctor, h.Doctor))

	mux.Handle("GET /api/patients", wrap(auth, h.SearchPatients))
	mux.Handle("GET /api/patients/{nid}", wrap(auth, h.PatientRecord))
	mux.Handle("GET /api/patients/{nid}/diagnoses", wrap(auth, h.PatientDiagnoses))
	mux.Handle("GET /api/patients/{nid}/allergies", wrap(auth, h.PatientAllergies))

	mux.Handle("GET /api/prescriptions", wrap(auth, h.ListPrescriptions))
	mux.Handle("GET /api/prescriptions/{id}", wrap(auth, h.GetPrescription))
	mux.Handle("POST /api/prescriptions", wrap(doctor, h.CreatePrescription))

	mux.Handle("GET /api/diseases", wrap(auth, h.SearchDiseases))
	mux.Handle("POST /api/diagnoses", wrap(doctor, h.CreateDiagnosis))
	mux.Handle("DELETE /api/diagnoses/{id}", wrap(doctor, h.RemoveDiagnosis))

	mux.Handle("GET /api/allergies", wrap(auth, h.SearchAllergies))
	mux.Handle("POST /api/allergies", wrap(auth, h.AddAllergy))
	mux.Handle("DELETE /api/allergies/{id}", wrap(auth, h.RemoveAllergy))

	mux.Handle("GET /api/drugs", wrap(auth, h.SearchDrugs))
	mux.Handle("GET /api/interactions", wrap(auth, h.CheckInteractions))

	mux.Handle("GET /api/analytics/{kind}", wrap(analytics, h.GetAnalytics))
	mux.Handle("GET /api/analytics/{kind}/{id}", wrap(analytics, h.GetAnalytics))

	mux.Handle("GET /api/reports", wrap(auth, h.ListReports))
	mux.Handle("GET /api/reports/{id}", wrap(auth, h.GetReport))
	mux.Handle("PUT /api/reports/{id}/review", wrap(auth, h.ReviewReport))
}

func notFound(w http.ResponseWriter, r *http.Request) {
	if IsBrowserRequest(r) {
		http.NotFound(w, r)
		return
	}
	WriteError(w, ErrorParams{Code: http.StatusNotFound, ErrCode: "not_found", Err: errors.New("not found")})
}
