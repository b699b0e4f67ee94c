package service

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	domainauth "github.com/target/clinic-portal/internal/domain/auth"
	"github.com/target/clinic-portal/internal/domain/model"
	apperrors "github.com/target/clinic-portal/internal/errors"
	"github.com/target/clinic-portal/internal/ports"
)

// PrescriptionService lists, shows and creates prescriptions.
type PrescriptionService struct {
	clinical
}

// NewPrescriptionService creates a new PrescriptionService.
func NewPrescriptionService(opts ClinicalServiceOptions) (*PrescriptionService, error) {
	c, err := newClinical(opts, "prescription_service")
	if err != nil {
		return nil, err
	}
	return &PrescriptionService{clinical: c}, nil
}

// MustNewPrescriptionService creates a new PrescriptionService and panics on error.
func MustNewPrescriptionService(opts ClinicalServiceOptions) *PrescriptionService {
	svc, err := NewPrescriptionService(opts)
	if err != nil {
		//nolint:forbidigo // Must constructor intentionally panics on invalid wiring.
		panic(err)
	}
	return svc
}

// List returns the prescriptions written by the signed-in doctor, or those
// issued to the signed-in patient.
func (s *PrescriptionService) List(ctx context.Context, sess ports.SessionState) (model.PrescriptionList, error) {
	profile, err := lookupProfile(ctx, s.clinical, sess)
	if err != nil {
		return model.PrescriptionList{}, err
	}
	path, err := prescriptionListPath(profile)
	if err != nil {
		return model.PrescriptionList{}, err
	}

	out, err := get[model.PrescriptionList](ctx, s.clinical, sess, path, recordTTL)
	if err != nil {
		return model.PrescriptionList{}, fmt.Errorf("list prescriptions: %w", err)
	}
	return out, nil
}

func prescriptionListPath(p model.ProfileID) (string, error) {
	if strings.TrimSpace(p.ProfileID) == "" {
		return "", apperrors.NotFound("No doctor or patient profile is linked to this account.")
	}
	switch p.Role {
	case domainauth.RoleDoctor:
		return "/presc/doctor/" + segment(p.ProfileID), nil
	case domainauth.RolePatient:
		return "/presc/patient/" + segment(p.ProfileID), nil
	default:
		return "", apperrors.Forbidden("Prescriptions are available to doctors and patients only.")
	}
}

// Get returns one prescription.
func (s *PrescriptionService) Get(ctx context.Context, sess ports.SessionState, id string) (model.Prescription, error) {
	if err := requiredParam("id", id); err != nil {
		return model.Prescription{}, err
	}
	out, err := get[model.PrescriptionEnvelope](ctx, s.clinical, sess, "/presc/"+segment(id), recordTTL)
	if err != nil {
		return model.Prescription{}, fmt.Errorf("get prescription: %w", err)
	}
	return out.Prescription, nil
}

// Create writes a prescription. Only doctors may prescribe; the doctor ID
// defaults to the signed-in doctor's profile.
func (s *PrescriptionService) Create(
	ctx context.Context,
	sess ports.SessionState,
	req model.CreatePrescriptionRequest,
) (model.PrescriptionEnvelope, error) {
	if err := requireRole(sess, domainauth.RoleDoctor); err != nil {
		return model.PrescriptionEnvelope{}, err
	}
	if err := req.Validate(); err != nil {
		return model.PrescriptionEnvelope{}, formError(err)
	}
	profile, err := lookupProfile(ctx, s.clinical, sess)
	if err != nil {
		return model.PrescriptionEnvelope{}, err
	}
	req.DoctorID = profile.ProfileID

	var out model.PrescriptionEnvelope
	err = s.api.Send(ctx, sess, http.MethodPost, "/presc/create", req, &out)
	s.record(ctx, sess, model.AuditPrescriptionCreate, "patient:"+req.PatientID, err)
	if err != nil {
		return model.PrescriptionEnvelope{}, fmt.Errorf("create prescription: %w", err)
	}

	s.invalidate(ctx, sess, "/presc/doctor/"+segment(profile.ProfileID))
	s.logger.InfoContext(ctx, "prescription created", "medications", len(req.Medications))
	return out, nil
}
