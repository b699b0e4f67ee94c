package httpx

import (
	"log/slog"
	"net/http"

	"github.com/target/clinic-portal/internal/domain/model"
	"github.com/target/clinic-portal/internal/service"
	"github.com/target/clinic-portal/internal/session"
)

// ClinicalHandlers serves the clinical views under /api. Every route except
// Specialities runs behind RequireAuth.
type ClinicalHandlers struct {
	Profile       *service.ProfileService
	Patients      *service.PatientService
	Prescriptions *service.PrescriptionService
	Diagnoses     *service.DiagnosisService
	Allergies     *service.AllergyService
	Catalog       *service.CatalogService
	Reports       *service.ReportService
	Analytics     *service.AnalyticsService
	Interactions  *service.InteractionService
	Logger        *slog.Logger
}

func (h *ClinicalHandlers) logger() *slog.Logger {
	if h != nil && h.Logger != nil {
		return h.Logger
	}
	return slog.Default()
}

// session returns the request's session, answering 500 when the session
// middleware is missing.
func (h *ClinicalHandlers) session(w http.ResponseWriter, r *http.Request) (*session.Store, bool) {
	st, ok := GetSessionFromContext(r.Context())
	if !ok {
		h.logger().ErrorContext(r.Context(), "no session in request context", "path", r.URL.Path)
		WriteError(w, ErrorParams{Code: http.StatusInternalServerError, ErrCode: "internal", Err: errMissingSession})
	}
	return st, ok
}

// respond writes v as JSON or renders err.
func respond[T any](h *ClinicalHandlers, w http.ResponseWriter, r *http.Request, status int, v T, err error) {
	if err != nil {
		RenderError(w, r, h.logger(), err)
		return
	}
	WriteJSON(w, status, v)
}

// Me returns the signed-in user. GET /api/me.
func (h *ClinicalHandlers) Me(w http.ResponseWriter, r *http.Request) {
	st, ok := h.session(w, r)
	if !ok {
		return
	}
	u, err := h.Profile.Me(st)
	respond(h, w, r, http.StatusOK, u, err)
}

// ProfileID returns the doctor or patient profile ID. GET /api/profile.
func (h *ClinicalHandlers) ProfileID(w http.ResponseWriter, r *http.Request) {
	st, ok := h.session(w, r)
	if !ok {
		return
	}
	out, err := h.Profile.ProfileID(r.Context(), st)
	respond(h, w, r, http.StatusOK, out, err)
}

// Doctor returns the signed-in doctor's profile. GET /api/doctor.
func (h *ClinicalHandlers) Doctor(w http.ResponseWriter, r *http.Request) {
	st, ok := h.session(w, r)
	if !ok {
		return
	}
	out, err := h.Profile.Doctor(r.Context(), st)
	respond(h, w, r, http.StatusOK, out, err)
}

// SearchPatients GET /api/patients?q=.
func (h *ClinicalHandlers) SearchPatients(w http.ResponseWriter, r *http.Request) {
	st, ok := h.session(w, r)
	if !ok {
		return
	}
	out, err := h.Patients.Search(r.Context(), st, r.URL.Query().Get("q"))
	respond(h, w, r, http.StatusOK, out, err)
}

// PatientRecord GET /api/patients/{nid}.
func (h *ClinicalHandlers) PatientRecord(w http.ResponseWriter, r *http.Request) {
	st, ok := h.session(w, r)
	if !ok {
		return
	}
	out, err := h.Patients.Record(r.Context(), st, r.PathValue("nid"))
	respond(h, w, r, http.StatusOK, out, err)
}

// ListPrescriptions GET /api/prescriptions.
func (h *ClinicalHandlers) ListPrescriptions(w http.ResponseWriter, r *http.Request) {
	st, ok := h.session(w, r)
	if !ok {
		return
	}
	out, err := h.Prescriptions.List(r.Context(), st)
	respond(h, w, r, http.StatusOK, out, err)
}

// GetPrescription GET /api/prescriptions/{id}.
func (h *ClinicalHandlers) GetPrescription(w http.ResponseWriter, r *http.Request) {
	st, ok := h.session(w, r)
	if !ok {
		return
	}
	out, err := h.Prescriptions.Get(r.Context(), st, r.PathValue("id"))
	respond(h, w, r, http.StatusOK, out, err)
}

// CreatePrescription POST /api/prescriptions.
func (h *ClinicalHandlers) CreatePrescription(w http.ResponseWriter, r *http.Request) {
	st, ok := h.session(w, r)
	if !ok {
		return
	}
	var req model.CreatePrescriptionRequest
	if !DecodeJSON(w, r, &req) {
		return
	}
	out, err := h.Prescriptions.Create(r.Context(), st, req)
	respond(h, w, r, http.StatusCreated, out, err)
}

// PatientDiagnoses GET /api/patients/{nid}/diagnoses.
func (h *ClinicalHandlers) PatientDiagnoses(w http.ResponseWriter, r *http.Request) {
	st, ok := h.session(w, r)
	if !ok {
		return
	}
	out, err := h.Diagnoses.ForPatient(r.Context(), st, r.PathValue("nid"))
	respond(h, w, r, http.StatusOK, out, err)
}

// SearchDiseases GET /api/diseases?q=.
func (h *ClinicalHandlers) SearchDiseases(w http.ResponseWriter, r *http.Request) {
	st, ok := h.session(w, r)
	if !ok {
		return
	}
	out, err := h.Diagnoses.SearchDiseases(r.Context(), st, r.URL.Query().Get("q"))
	respond(h, w, r, http.StatusOK, out, err)
}

// CreateDiagnosis POST /api/diagnoses.
func (h *ClinicalHandlers) CreateDiagnosis(w http.ResponseWriter, r *http.Request) {
	st, ok := h.session(w, r)
	if !ok {
		return
	}
	var req model.CreateDiagnosisRequest
	if !DecodeJSON(w, r, &req) {
		return
	}
	err := h.Diagnoses.Create(r.Context(), st, req)
	respond(h, w, r, http.StatusCreated, statusBody("created"), err)
}

// RemoveDiagnosis DELETE /api/diagnoses/{id}?patient=<nid>.
func (h *ClinicalHandlers) RemoveDiagnosis(w http.ResponseWriter, r *http.Request) {
	st, ok := h.session(w, r)
	if !ok {
		return
	}
	err := h.Diagnoses.Remove(r.Context(), st, r.PathValue("id"), r.URL.Query().Get("patient"))
	respond(h, w, r, http.StatusOK, statusBody("removed"), err)
}

// PatientAllergies GET /api/patients/{nid}/allergies.
func (h *ClinicalHandlers) PatientAllergies(w http.ResponseWriter, r *http.Request) {
	st, ok := h.session(w, r)
	if !ok {
		return
	}
	out, err := h.Allergies.ForPatient(r.Context(), st, r.PathValue("nid"))
	respond(h, w, r, http.StatusOK, out, err)
}

// SearchAllergies GET /api/allergies?q=.
func (h *ClinicalHandlers) SearchAllergies(w http.ResponseWriter, r *http.Request) {
	st, ok := h.session(w, r)
	if !ok {
		return
	}
	out, err := h.Allergies.Search(r.Context(), st, r.URL.Query().Get("q"))
	respond(h, w, r, http.StatusOK, out, err)
}

// AddAllergy POST /api/allergies.
func (h *ClinicalHandlers) AddAllergy(w http.ResponseWriter, r *http.Request) {
	st, ok := h.session(w, r)
	if !ok {
		return
	}
	var req model.AddAllergyRequest
	if !DecodeJSON(w, r, &req) {
		return
	}
	err := h.Allergies.Add(r.Context(), st, req)
	respond(h, w, r, http.StatusCreated, statusBody("added"), err)
}

// RemoveAllergy DELETE /api/allergies/{id}.
func (h *ClinicalHandlers) RemoveAllergy(w http.ResponseWriter, r *http.Request) {
	st, ok := h.session(w, r)
	if !ok {
		return
	}
	err := h.Allergies.Remove(r.Context(), st, r.PathValue("id"))
	respond(h, w, r, http.StatusOK, statusBody("removed"), err)
}

// SearchDrugs GET /api/drugs?q=.
func (h *ClinicalHandlers) SearchDrugs(w http.ResponseWriter, r *http.Request) {
	st, ok := h.session(w, r)
	if !ok {
		return
	}
	out, err := h.Catalog.SearchDrugs(r.Context(), st, r.URL.Query().Get("q"))
	respond(h, w, r, http.StatusOK, out, err)
}

// Specialities lists doctor specialities for the sign-up form. GET /api/specialities.
func (h *ClinicalHandlers) Specialities(w http.ResponseWriter, r *http.Request) {
	out, err := h.Catalog.Specialities(r.Context())
	respond(h, w, r, http.StatusOK, out, err)
}

// CheckInteractions checks new drugs against each other and against the patient's
// current medication and allergies.
// GET /api/interactions?patient=<nid>&drug=<name>&drug=<name>.
func (h *ClinicalHandlers) CheckInteractions(w http.ResponseWriter, r *http.Request) {
	st, ok := h.session(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	view, err := h.Interactions.Check(r.Context(), st, service.InteractionRequest{
		PatientNID: q.Get("patient"),
		Drugs:      q["drug"],
	})
	respond(h, w, r, http.StatusOK, view, err)
}

// GetAnalytics returns one analytics view, raw or as a chart series.
// GET /api/analytics/{kind}[/{id}]?format=series.
func (h *ClinicalHandlers) GetAnalytics(w http.ResponseWriter, r *http.Request) {
	st, ok := h.session(w, r)
	if !ok {
		return
	}
	kind := model.AnalyticsKind(r.PathValue("kind"))
	id := r.PathValue("id")
	if r.URL.Query().Get("format") == "series" {
		out, err := h.Analytics.Series(r.Context(), st, kind, id)
		respond(h, w, r, http.StatusOK, out, err)
		return
	}
	out, err := h.Analytics.Raw(r.Context(), st, kind, id)
	respond(h, w, r, http.StatusOK, out, err)
}

// ListReports GET /api/reports.
func (h *ClinicalHandlers) ListReports(w http.ResponseWriter, r *http.Request) {
	st, ok := h.session(w, r)
	if !ok {
		return
	}
	out, err := h.Reports.List(r.Context(), st)
	respond(h, w, r, http.StatusOK, out, err)
}

// GetReport GET /api/reports/{id}.
func (h *ClinicalHandlers) GetReport(w http.ResponseWriter, r *http.Request) {
	st, ok := h.session(w, r)
	if !ok {
		return
	}
	out, err := h.Reports.Get(r.Context(), st, r.PathValue("id"))
	respond(h, w, r, http.StatusOK, out, err)
}

// ReviewReport PUT /api/reports/{id}/review.
func (h *ClinicalHandlers) ReviewReport(w http.ResponseWriter, r *http.Request) {
	st, ok := h.session(w, r)
	if !ok {
		return
	}
	err := h.Reports.Review(r.Context(), st, r.PathValue("id"))
	respond(h, w, r, http.StatusOK, statusBody("reviewed"), err)
}

func statusBody(status string) map[string]string { return map[string]string{"status": status} }
