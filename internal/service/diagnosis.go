package service

import (
	"context"
	"fmt"
	"net/http"

	domainauth "github.com/target/clinic-portal/internal/domain/auth"
	"github.com/target/clinic-portal/internal/domain/model"
	"github.com/target/clinic-portal/internal/ports"
)

// DiagnosisService reads and edits patient diagnoses.
type DiagnosisService struct {
	clinical
}

// NewDiagnosisService creates a new DiagnosisService.
func NewDiagnosisService(opts ClinicalServiceOptions) (*DiagnosisService, error) {
	c, err := newClinical(opts, "diagnosis_service")
	if err != nil {
		return nil, err
	}
	return &DiagnosisService{clinical: c}, nil
}

// MustNewDiagnosisService creates a new DiagnosisService and panics on error.
func MustNewDiagnosisService(opts ClinicalServiceOptions) *DiagnosisService {
	svc, err := NewDiagnosisService(opts)
	if err != nil {
		//nolint:forbidigo // Must constructor intentionally panics on invalid wiring.
		panic(err)
	}
	return svc
}

// ForPatient returns the diagnoses of the patient with the given NID.
func (s *DiagnosisService) ForPatient(ctx context.Context, sess ports.SessionState, nid string) (model.DiagnosisList, error) {
	if err := requiredParam("nid", nid); err != nil {
		return model.DiagnosisList{}, err
	}
	out, err := get[model.DiagnosisList](ctx, s.clinical, sess, diagnosisPath(nid), recordTTL)
	if err != nil {
		return model.DiagnosisList{}, fmt.Errorf("list diagnoses: %w", err)
	}
	return out, nil
}

// SearchDiseases finds diseases by name.
func (s *DiagnosisService) SearchDiseases(ctx context.Context, sess ports.SessionState, q string) (model.DiseaseSearchResult, error) {
	if err := requiredParam("q", q); err != nil {
		return model.DiseaseSearchResult{}, err
	}
	out, err := get[model.DiseaseSearchResult](ctx, s.clinical, sess, "/disease/"+segment(q), searchTTL)
	if err != nil {
		return model.DiseaseSearchResult{}, fmt.Errorf("search diseases: %w", err)
	}
	return out, nil
}

// Create records a diagnosis for the patient whose NID is req.PatientID.
// Only doctors may diagnose; the doctor ID defaults to the signed-in doctor's profile.
func (s *DiagnosisService) Create(ctx context.Context, sess ports.SessionState, req model.CreateDiagnosisRequest) error {
	if err := requireRole(sess, domainauth.RoleDoctor); err != nil {
		return err
	}
	if req.Severity == "" {
		req.Severity = model.SeverityMild
	}
	if err := req.Validate(); err != nil {
		return formError(err)
	}
	if req.DoctorID == "" {
		profile, err := lookupProfile(ctx, s.clinical, sess)
		if err != nil {
			return err
		}
		req.DoctorID = profile.ProfileID
	}

	err := s.api.Send(ctx, sess, http.MethodPost, "/diagnosis/create", req, nil)
	s.record(ctx, sess, model.AuditDiagnosisCreate, "patient:"+req.PatientID, err)
	if err != nil {
		return fmt.Errorf("create diagnosis: %w", err)
	}
	s.invalidate(ctx, sess, diagnosisPath(req.PatientID), patientRecordPath(req.PatientID))
	return nil
}

// Remove deletes a diagnosis. patientNID, when known, scopes cache invalidation.
func (s *DiagnosisService) Remove(ctx context.Context, sess ports.SessionState, id, patientNID string) error {
	if err := requireRole(sess, domainauth.RoleDoctor); err != nil {
		return err
	}
	if err := requiredParam("id", id); err != nil {
		return err
	}

	err := s.api.Send(ctx, sess, http.MethodDelete, "/diagnosis/remove/"+segment(id), nil, nil)
	s.record(ctx, sess, model.AuditDiagnosisRemove, "diagnosis:"+id, err)
	if err != nil {
		return fmt.Errorf("remove diagnosis: %w", err)
	}
	if patientNID != "" {
		s.invalidate(ctx, sess, diagnosisPath(patientNID), patientRecordPath(patientNID))
	}
	return nil
}

func diagnosisPath(nid string) string { return "/diagnosis/" + segment(nid) }
