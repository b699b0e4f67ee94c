package service

import (
	"context"
	"fmt"

	"github.com/target/clinic-portal/internal/domain/model"
	"github.com/target/clinic-portal/internal/ports"
)

// PatientService looks up patients and their full records.
type PatientService struct {
	clinical
}

// NewPatientService creates a new PatientService.
func NewPatientService(opts ClinicalServiceOptions) (*PatientService, error) {
	c, err := newClinical(opts, "patient_service")
	if err != nil {
		return nil, err
	}
	return &PatientService{clinical: c}, nil
}

// MustNewPatientService creates a new PatientService and panics on error.
func MustNewPatientService(opts ClinicalServiceOptions) *PatientService {
	svc, err := NewPatientService(opts)
	if err != nil {
		//nolint:forbidigo // Must constructor intentionally panics on invalid wiring.
		panic(err)
	}
	return svc
}

// Search finds users whose NID or name matches q.
func (s *PatientService) Search(ctx context.Context, sess ports.SessionState, q string) (model.UserSearchResult, error) {
	if err := requiredParam("q", q); err != nil {
		return model.UserSearchResult{}, err
	}
	out, err := get[model.UserSearchResult](ctx, s.clinical, sess, "/auth/"+segment(q), searchTTL)
	if err != nil {
		return model.UserSearchResult{}, fmt.Errorf("search patients: %w", err)
	}
	return out, nil
}

// Record returns the full record of the patient with the given NID. Every
// access, successful or not, is audited.
func (s *PatientService) Record(ctx context.Context, sess ports.SessionState, nid string) (model.PatientRecord, error) {
	if err := requiredParam("nid", nid); err != nil {
		return model.PatientRecord{}, err
	}
	out, err := get[model.PatientRecord](ctx, s.clinical, sess, patientRecordPath(nid), recordTTL)
	s.record(ctx, sess, model.AuditPatientView, "patient:"+nid, err)
	if err != nil {
		return model.PatientRecord{}, fmt.Errorf("get patient record: %w", err)
	}
	return out, nil
}

func patientRecordPath(nid string) string { return "/auth/patient/" + segment(nid) }
