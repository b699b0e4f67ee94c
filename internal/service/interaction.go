package service

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/target/clinic-portal/internal/apiclient"
	"github.com/target/clinic-portal/internal/domain/model"
	"github.com/target/clinic-portal/internal/ports"
	"golang.org/x/sync/errgroup"
)

// Messages shown for non-data interaction states.
const (
	msgNeedDrugs    = "Add at least one more medication to check for drug interactions"
	msgNeedPatient  = "Please select a patient to view drug interactions"
	msgFetchFailed  = "Error fetching interaction data"
	msgNoConcerns   = "No Interaction Found"
	severityUnknown = "unknown"
)

// InteractionRequest is a prescription draft to check: the new drug names and
// the patient they are prescribed to.
type InteractionRequest struct {
	PatientNID string
	Drugs      []string
}

// Normalize trims input and drops blank or repeated drug names.
func (r InteractionRequest) Normalize() InteractionRequest {
	out := InteractionRequest{PatientNID: strings.TrimSpace(r.PatientNID)}
	seen := make(map[string]struct{}, len(r.Drugs))
	for _, d := range r.Drugs {
		d = strings.TrimSpace(d)
		if d == "" {
			continue
		}
		if _, ok := seen[strings.ToLower(d)]; ok {
			continue
		}
		seen[strings.ToLower(d)] = struct{}{}
		out.Drugs = append(out.Drugs, d)
	}
	return out
}

// pairwiseEnabled reports whether the drugs can be checked against each other.
func (r InteractionRequest) pairwiseEnabled() bool { return len(r.Drugs) > 1 }

// existingEnabled reports whether the drugs can be checked against the
// patient's current medication and allergies.
func (r InteractionRequest) existingEnabled() bool { return len(r.Drugs) > 0 && r.PatientNID != "" }

// QueryState is the progress of one upstream query feeding a composed view.
type QueryState[T any] struct {
	Enabled bool
	Done    bool
	Err     error
	Value   T
}

func (q QueryState[T]) pending() bool { return q.Enabled && !q.Done }
func (q QueryState[T]) failed() bool  { return q.Enabled && q.Done && q.Err != nil }
func (q QueryState[T]) ok() bool      { return q.Enabled && q.Done && q.Err == nil }

// InteractionResults holds the per-query states composed into an InteractionView.
type InteractionResults struct {
	Drugs    []string
	Pairwise QueryState[model.PairwiseInteraction]
	Existing QueryState[model.PatientInteractionReport]
}

// ComposeInteractions merges the per-query states into one view. It is pure:
// the same results always yield the same view.
func ComposeInteractions(res InteractionResults) model.InteractionView {
	switch {
	case !res.Pairwise.Enabled && !res.Existing.Enabled:
		msg := msgNeedDrugs
		if len(res.Drugs) > 0 {
			msg = msgNeedPatient
		}
		return model.InteractionView{Status: model.ViewIdle, Message: msg}
	case res.Pairwise.pending() || res.Existing.pending():
		return model.InteractionView{Status: model.ViewLoading}
	case res.Pairwise.failed() || res.Existing.failed():
		return model.InteractionView{Status: model.ViewError, Message: msgFetchFailed}
	}

	view := model.InteractionView{}
	if res.Pairwise.ok() && res.Pairwise.Value.Found() {
		view.Findings = append(view.Findings, model.InteractionFinding{
			Kind:        model.FindingPairwise,
			Drugs:       append([]string(nil), res.Drugs...),
			Severity:    severityUnknown,
			Headline:    res.Pairwise.Value.Headline(),
			Description: res.Pairwise.Value.Detail(),
		})
	}
	if res.Existing.ok() {
		report := res.Existing.Value
		for _, in := range report.Interactions {
			view.Findings = append(view.Findings, model.InteractionFinding{
				Kind:        model.FindingExisting,
				Drugs:       []string{in.Drug1, in.Drug2},
				Severity:    severityOf(in.Severity),
				Description: in.Description,
			})
		}
		for _, al := range report.Allergies {
			view.Findings = append(view.Findings, model.InteractionFinding{
				Kind:     model.FindingAllergy,
				Drugs:    []string{al.Drug},
				Severity: severityOf(al.Severity),
				Headline: al.Allergen,
			})
		}
		view.Recommendation = strings.TrimSpace(report.Recommendation)
	}

	if len(view.Findings) == 0 {
		view.Status = model.ViewEmpty
		view.Summary = msgNoConcerns
		return view
	}
	view.Status = model.ViewData
	view.Summary = summarize(view.Findings)
	return view
}

func severityOf(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return severityUnknown
	}
	return s
}

func summarize(findings []model.InteractionFinding) string {
	var pairwise, existing, allergy int
	for _, f := range findings {
		switch f.Kind {
		case model.FindingPairwise:
			pairwise++
		case model.FindingExisting:
			existing++
		case model.FindingAllergy:
			allergy++
		}
	}
	parts := make([]string, 0, 3)
	if pairwise > 0 {
		parts = append(parts, "interaction among the new drugs")
	}
	if existing > 0 {
		parts = append(parts, plural(existing, "interaction", "interactions")+" with current medication")
	}
	if allergy > 0 {
		parts = append(parts, plural(allergy, "allergy conflict", "allergy conflicts"))
	}
	return strings.Join(parts, "; ")
}

func plural(n int, one, many string) string {
	if n == 1 {
		return "1 " + one
	}
	return fmt.Sprintf("%d %s", n, many)
}

// InteractionService checks prescription drafts for drug interactions.
type InteractionService struct {
	clinical
}

// NewInteractionService creates a new InteractionService.
func NewInteractionService(opts ClinicalServiceOptions) (*InteractionService, error) {
	c, err := newClinical(opts, "interaction_service")
	if err != nil {
		return nil, err
	}
	return &InteractionService{clinical: c}, nil
}

// MustNewInteractionService creates a new InteractionService and panics on error.
func MustNewInteractionService(opts ClinicalServiceOptions) *InteractionService {
	svc, err := NewInteractionService(opts)
	if err != nil {
		//nolint:forbidigo // Must constructor intentionally panics on invalid wiring.
		panic(err)
	}
	return svc
}

// Check runs the enabled queries concurrently and composes their results.
// A failed query is reported in the view, not as an error. Check fails only
// on apiclient.ErrLoginRequired, which also cancels the sibling query, or when
// ctx ends.
func (s *InteractionService) Check(
	ctx context.Context,
	sess ports.SessionState,
	req InteractionRequest,
) (model.InteractionView, error) {
	req = req.Normalize()
	res := InteractionResults{
		Drugs:    req.Drugs,
		Pairwise: QueryState[model.PairwiseInteraction]{Enabled: req.pairwiseEnabled()},
		Existing: QueryState[model.PatientInteractionReport]{Enabled: req.existingEnabled()},
	}

	g, gctx := errgroup.WithContext(ctx)
	if res.Pairwise.Enabled {
		g.Go(func() error {
			q := url.Values{"drug": {strings.Join(req.Drugs, " with ")}}
			res.Pairwise.Err = s.api.GetQuery(gctx, sess, "/drug/interaction", q, &res.Pairwise.Value)
			res.Pairwise.Done = true
			return loginRequired(res.Pairwise.Err)
		})
	}
	if res.Existing.Enabled {
		g.Go(func() error {
			q := url.Values{"newDrugs[]": req.Drugs}
			res.Existing.Err = s.api.GetQuery(gctx, sess, "/drug/"+segment(req.PatientNID)+"/", q, &res.Existing.Value)
			res.Existing.Done = true
			return loginRequired(res.Existing.Err)
		})
	}
	if err := g.Wait(); err != nil {
		return model.InteractionView{}, err
	}
	if err := ctx.Err(); err != nil {
		return model.InteractionView{}, err
	}

	for name, err := range map[string]error{"pairwise": res.Pairwise.Err, "existing": res.Existing.Err} {
		if err != nil {
			s.logger.WarnContext(ctx, "interaction query failed", "query", name, "error", err)
		}
	}
	return ComposeInteractions(res), nil
}

// loginRequired passes through only the error that ends the whole check.
func loginRequired(err error) error {
	if errors.Is(err, apiclient.ErrLoginRequired) {
		return err
	}
	return nil
}
