package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	jmespath "github.com/jmespath-community/go-jmespath"
	domainauth "github.com/target/clinic-portal/internal/domain/auth"
	"github.com/target/clinic-portal/internal/domain/model"
	apperrors "github.com/target/clinic-portal/internal/errors"
	"github.com/target/clinic-portal/internal/ports"
)

// JMESPathEvaluator abstracts JMESPath operations for testability.
type JMESPathEvaluator interface {
	Validate(expr string) error
	Evaluate(expr string, data any) (any, error)
}

// jmespathLibEvaluator implements JMESPathEvaluator using go-jmespath.
type jmespathLibEvaluator struct{}

func (jmespathLibEvaluator) Validate(expr string) error {
	if strings.TrimSpace(expr) == "" {
		return nil
	}
	_, err := jmespath.Compile(expr)
	return err
}

func (jmespathLibEvaluator) Evaluate(expr string, data any) (any, error) {
	return jmespath.Search(expr, data)
}

// seriesProjection locates the [label, value] rows and an optional title in
// an analytics response. Pairing keeps a null field from shifting the rows
// that follow it.
type seriesProjection struct {
	Rows  string
	Title string
}

var projections = map[model.AnalyticsKind]seriesProjection{
	model.AnalyticsDrugCategories: {Rows: "[*].[name, count]"},
	model.AnalyticsCategory:       {Rows: "drugAnalytics[*].[name, count]", Title: "category.name"},
	model.AnalyticsClassification: {Rows: "drugAnalytics[*].[name, count]", Title: "classification.name"},
	model.AnalyticsDiseases:       {Rows: "[*].[name, count]"},
	model.AnalyticsDiseaseMonthly: {Rows: "[*].[monthName, count]", Title: "[0].diseaseName"},
}

// AnalyticsServiceOptions groups dependencies for AnalyticsService.
type AnalyticsServiceOptions struct {
	Clinical  ClinicalServiceOptions
	Evaluator JMESPathEvaluator // Optional
}

// AnalyticsService serves the owner dashboards, either as the upstream
// payload or reshaped into a uniform chart series.
type AnalyticsService struct {
	clinical
	jems JMESPathEvaluator
}

// NewAnalyticsService creates a new AnalyticsService.
func NewAnalyticsService(opts AnalyticsServiceOptions) (*AnalyticsService, error) {
	c, err := newClinical(opts.Clinical, "analytics_service")
	if err != nil {
		return nil, err
	}
	jems := opts.Evaluator
	if jems == nil {
		jems = jmespathLibEvaluator{}
	}
	for kind, p := range projections {
		for _, expr := range []string{p.Rows, p.Title} {
			if vErr := jems.Validate(expr); vErr != nil {
				return nil, fmt.Errorf("analytics projection %s %q: %w", kind, expr, vErr)
			}
		}
	}
	return &AnalyticsService{clinical: c, jems: jems}, nil
}

// MustNewAnalyticsService creates a new AnalyticsService and panics on error.
func MustNewAnalyticsService(opts AnalyticsServiceOptions) *AnalyticsService {
	svc, err := NewAnalyticsService(opts)
	if err != nil {
		//nolint:forbidigo // Must constructor intentionally panics on invalid wiring.
		panic(err)
	}
	return svc
}

// Raw returns the upstream analytics payload of kind. id selects the category,
// classification or disease for kinds that need one.
func (s *AnalyticsService) Raw(
	ctx context.Context,
	sess ports.SessionState,
	kind model.AnalyticsKind,
	id string,
) (json.RawMessage, error) {
	if err := requireRole(sess, domainauth.RoleOwner, domainauth.RoleAdmin); err != nil {
		return nil, err
	}
	path, err := analyticsPath(kind, id)
	if err != nil {
		return nil, err
	}
	out, err := get[json.RawMessage](ctx, s.clinical, sess, path, recordTTL)
	if err != nil {
		return nil, fmt.Errorf("get %s analytics: %w", kind, err)
	}
	return out, nil
}

// Series returns the analytics of kind as chart labels and values.
func (s *AnalyticsService) Series(
	ctx context.Context,
	sess ports.SessionState,
	kind model.AnalyticsKind,
	id string,
) (model.Series, error) {
	raw, err := s.Raw(ctx, sess, kind, id)
	if err != nil {
		return model.Series{}, err
	}
	return s.project(kind, raw)
}

func (s *AnalyticsService) project(kind model.AnalyticsKind, raw json.RawMessage) (model.Series, error) {
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return model.Series{}, fmt.Errorf("decode %s analytics: %w", kind, err)
	}
	p := projections[kind]

	rows, err := s.list(p.Rows, doc)
	if err != nil {
		return model.Series{}, err
	}
	labels := make([]string, 0, len(rows))
	values := make([]float64, 0, len(rows))
	for _, row := range rows {
		pair, ok := row.([]any)
		if !ok || len(pair) != 2 {
			return model.Series{}, apperrors.Internalf("%s analytics: malformed row %v", kind, row)
		}
		// Rows missing a label or a count are not plottable.
		if pair[0] == nil || pair[1] == nil {
			continue
		}
		n, ok := toFloat(pair[1])
		if !ok {
			return model.Series{}, apperrors.Internalf("analytics value %v is not a number", pair[1])
		}
		labels = append(labels, fmt.Sprint(pair[0]))
		values = append(values, n)
	}

	series := model.Series{Kind: kind, Labels: labels, Values: values}
	if p.Title != "" {
		if title, tErr := s.jems.Evaluate(p.Title, doc); tErr == nil {
			series.Title, _ = title.(string)
		}
	}
	return series, nil
}

func (s *AnalyticsService) list(expr string, doc any) ([]any, error) {
	res, err := s.jems.Evaluate(expr, doc)
	if err != nil {
		return nil, fmt.Errorf("evaluate %q: %w", expr, err)
	}
	switch v := res.(type) {
	case nil:
		return []any{}, nil
	case []any:
		return v, nil
	default:
		return nil, apperrors.Internalf("analytics expression %q did not yield a list", expr)
	}
}

// toFloat accepts JSON numbers and numeric strings; the upstream returns counts as strings.
func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil
	default:
		return 0, false
	}
}

func analyticsPath(kind model.AnalyticsKind, id string) (string, error) {
	if !kind.Valid() {
		return "", apperrors.ValidationField("kind", "Unknown analytics kind")
	}
	if kind.NeedsID() && strings.TrimSpace(id) == "" {
		return "", apperrors.ValidationField("id", "id is required")
	}
	switch kind {
	case model.AnalyticsDrugCategories:
		return "/analytics/", nil
	case model.AnalyticsCategory:
		return "/analytics/" + segment(id), nil
	case model.AnalyticsClassification:
		return "/analytics/classification/" + segment(id), nil
	case model.AnalyticsDiseases:
		return "/analytics/disease", nil
	default:
		return "/analytics/diseases/" + segment(id), nil
	}
}
