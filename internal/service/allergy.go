package service

import (
	"context"
	"fmt"
	"net/http"

	"github.com/target/clinic-portal/internal/domain/model"
	apperrors "github.com/target/clinic-portal/internal/errors"
	"github.com/target/clinic-portal/internal/ports"
)

// AllergyService reads a patient's allergies and lets patients edit their own.
type AllergyService struct {
	clinical
}

// NewAllergyService creates a new AllergyService.
func NewAllergyService(opts ClinicalServiceOptions) (*AllergyService, error) {
	c, err := newClinical(opts, "allergy_service")
	if err != nil {
		return nil, err
	}
	return &AllergyService{clinical: c}, nil
}

// MustNewAllergyService creates a new AllergyService and panics on error.
func MustNewAllergyService(opts ClinicalServiceOptions) *AllergyService {
	svc, err := NewAllergyService(opts)
	if err != nil {
		//nolint:forbidigo // Must constructor intentionally panics on invalid wiring.
		panic(err)
	}
	return svc
}

// ForPatient returns the allergies of the patient with the given NID.
func (s *AllergyService) ForPatient(ctx context.Context, sess ports.SessionState, nid string) (model.PatientAllergyList, error) {
	if err := requiredParam("nid", nid); err != nil {
		return model.PatientAllergyList{}, err
	}
	out, err := get[model.PatientAllergyList](ctx, s.clinical, sess, allergyPath(nid), recordTTL)
	if err != nil {
		return model.PatientAllergyList{}, fmt.Errorf("list allergies: %w", err)
	}
	return out, nil
}

// Search finds allergens by name.
func (s *AllergyService) Search(ctx context.Context, sess ports.SessionState, q string) ([]model.Allergy, error) {
	if err := requiredParam("q", q); err != nil {
		return nil, err
	}
	out, err := get[[]model.Allergy](ctx, s.clinical, sess, "/allergy/specific/"+segment(q), searchTTL)
	if err != nil {
		return nil, fmt.Errorf("search allergies: %w", err)
	}
	return out, nil
}

// Add records an allergy for the signed-in patient.
func (s *AllergyService) Add(ctx context.Context, sess ports.SessionState, req model.AddAllergyRequest) error {
	if err := req.Validate(); err != nil {
		return formError(err)
	}
	// The upstream expects the form wrapped in a "values" object.
	body := struct {
		Values model.AddAllergyRequest `json:"values"`
	}{Values: req}

	err := s.api.Send(ctx, sess, http.MethodPost, "/allergy/add", body, nil)
	s.record(ctx, sess, model.AuditAllergyAdd, "allergy:"+req.AllergyID, err)
	if err != nil {
		return fmt.Errorf("add allergy: %w", err)
	}
	s.invalidateOwn(ctx, sess)
	return nil
}

// Remove deletes one of the signed-in patient's allergies.
func (s *AllergyService) Remove(ctx context.Context, sess ports.SessionState, id string) error {
	if err := requiredParam("id", id); err != nil {
		return err
	}
	err := s.api.Send(ctx, sess, http.MethodDelete, "/allergy/remove/"+segment(id), nil, nil)
	s.record(ctx, sess, model.AuditAllergyRemove, "patient_allergy:"+id, err)
	if err != nil {
		return fmt.Errorf("remove allergy: %w", err)
	}
	s.invalidateOwn(ctx, sess)
	return nil
}

func (s *AllergyService) invalidateOwn(ctx context.Context, sess ports.SessionState) {
	u, ok := sess.User()
	if !ok || u.NID == "" {
		return
	}
	s.invalidate(ctx, sess, allergyPath(u.NID), patientRecordPath(u.NID))
}

// OwnNID returns the NID of the signed-in user.
func OwnNID(sess ports.SessionState) (string, error) {
	u, ok := sess.User()
	if !ok || u.NID == "" {
		return "", apperrors.Unauthorized("Not signed in.")
	}
	return u.NID, nil
}

func allergyPath(nid string) string { return "/allergy/" + segment(nid) }
