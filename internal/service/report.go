package service

import (
	"context"
	"fmt"
	"net/http"

	"github.com/target/clinic-portal/internal/domain/model"
	"github.com/target/clinic-portal/internal/ports"
)

// ReportService lists reports and marks them reviewed.
type ReportService struct {
	clinical
}

// NewReportService creates a new ReportService.
func NewReportService(opts ClinicalServiceOptions) (*ReportService, error) {
	c, err := newClinical(opts, "report_service")
	if err != nil {
		return nil, err
	}
	return &ReportService{clinical: c}, nil
}

// MustNewReportService creates a new ReportService and panics on error.
func MustNewReportService(opts ClinicalServiceOptions) *ReportService {
	svc, err := NewReportService(opts)
	if err != nil {
		//nolint:forbidigo // Must constructor intentionally panics on invalid wiring.
		panic(err)
	}
	return svc
}

// List returns the reports visible to the signed-in user.
func (s *ReportService) List(ctx context.Context, sess ports.SessionState) (model.ReportList, error) {
	out, err := get[model.ReportList](ctx, s.clinical, sess, "/reports/all", recordTTL)
	if err != nil {
		return model.ReportList{}, fmt.Errorf("list reports: %w", err)
	}
	return out, nil
}

// Get returns one report.
func (s *ReportService) Get(ctx context.Context, sess ports.SessionState, id string) (model.Report, error) {
	if err := requiredParam("id", id); err != nil {
		return model.Report{}, err
	}
	out, err := get[model.ReportEnvelope](ctx, s.clinical, sess, reportPath(id), recordTTL)
	if err != nil {
		return model.Report{}, fmt.Errorf("get report: %w", err)
	}
	return out.Report, nil
}

// Review marks a report as reviewed.
func (s *ReportService) Review(ctx context.Context, sess ports.SessionState, id string) error {
	if err := requiredParam("id", id); err != nil {
		return err
	}
	err := s.api.Send(ctx, sess, http.MethodPut, "/reports/edit/"+segment(id), nil, nil)
	s.record(ctx, sess, model.AuditReportReview, "report:"+id, err)
	if err != nil {
		return fmt.Errorf("review report: %w", err)
	}
	s.invalidate(ctx, sess, reportPath(id), "/reports/all")
	return nil
}

func reportPath(id string) string { return "/reports/" + segment(id) }
