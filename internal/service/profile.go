package service

import (
	"context"
	"fmt"

	domainauth "github.com/target/clinic-portal/internal/domain/auth"
	"github.com/target/clinic-portal/internal/domain/model"
	apperrors "github.com/target/clinic-portal/internal/errors"
	"github.com/target/clinic-portal/internal/ports"
)

// ProfileService resolves who the signed-in user is on the clinical API.
type ProfileService struct {
	clinical
}

// NewProfileService creates a new ProfileService.
func NewProfileService(opts ClinicalServiceOptions) (*ProfileService, error) {
	c, err := newClinical(opts, "profile_service")
	if err != nil {
		return nil, err
	}
	return &ProfileService{clinical: c}, nil
}

// MustNewProfileService creates a new ProfileService and panics on error.
func MustNewProfileService(opts ClinicalServiceOptions) *ProfileService {
	svc, err := NewProfileService(opts)
	if err != nil {
		//nolint:forbidigo // Must constructor intentionally panics on invalid wiring.
		panic(err)
	}
	return svc
}

// Me returns the user held by the session.
func (s *ProfileService) Me(sess ports.SessionState) (domainauth.User, error) {
	u, ok := sess.User()
	if !ok {
		return domainauth.User{}, apperrors.Unauthorized("Not signed in.")
	}
	return u, nil
}

// ProfileID returns the doctor or patient profile ID of the signed-in user.
func (s *ProfileService) ProfileID(ctx context.Context, sess ports.SessionState) (model.ProfileID, error) {
	return lookupProfile(ctx, s.clinical, sess)
}

func lookupProfile(ctx context.Context, c clinical, sess ports.SessionState) (model.ProfileID, error) {
	out, err := get[model.ProfileID](ctx, c, sess, "/auth/userId", recordTTL)
	if err != nil {
		return model.ProfileID{}, fmt.Errorf("get profile id: %w", err)
	}
	out.Role = domainauth.ParseRole(string(out.Role))
	return out, nil
}

// Doctor returns the doctor profile of the signed-in user.
func (s *ProfileService) Doctor(ctx context.Context, sess ports.SessionState) (model.Doctor, error) {
	if err := requireRole(sess, domainauth.RoleDoctor); err != nil {
		return model.Doctor{}, err
	}
	out, err := get[model.Doctor](ctx, s.clinical, sess, "/auth/doctor/", recordTTL)
	if err != nil {
		return model.Doctor{}, fmt.Errorf("get doctor profile: %w", err)
	}
	return out, nil
}
