package service

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/target/clinic-portal/internal/apiclient"
	domainauth "github.com/target/clinic-portal/internal/domain/auth"
	"github.com/target/clinic-portal/internal/domain/model"
)

func TestComposeInteractions(t *testing.T) {
	drugs := []string{"Aspirin", "Warfarin"}
	pairDone := func(text ...string) QueryState[model.PairwiseInteraction] {
		return QueryState[model.PairwiseInteraction]{Enabled: true, Done: true, Value: model.PairwiseInteraction{Text: text}}
	}
	existingDone := func(r model.PatientInteractionReport) QueryState[model.PatientInteractionReport] {
		return QueryState[model.PatientInteractionReport]{Enabled: true, Done: true, Value: r}
	}

	tests := []struct {
		name   string
		in     InteractionResults
		status model.ViewStatus
		check  func(t *testing.T, v model.InteractionView)
	}{
		{
			name:   "idle without drugs",
			in:     InteractionResults{},
			status: model.ViewIdle,
			check: func(t *testing.T, v model.InteractionView) {
				assert.Equal(t, msgNeedDrugs, v.Message)
			},
		},
		{
			name:   "idle with one drug and no patient",
			in:     InteractionResults{Drugs: []string{"Aspirin"}},
			status: model.ViewIdle,
			check: func(t *testing.T, v model.InteractionView) {
				assert.Equal(t, msgNeedPatient, v.Message)
			},
		},
		{
			name: "loading while a query is pending",
			in: InteractionResults{
				Drugs:    drugs,
				Pairwise: pairDone("No"),
				Existing: QueryState[model.PatientInteractionReport]{Enabled: true},
			},
			status: model.ViewLoading,
		},
		{
			name: "error when any query failed",
			in: InteractionResults{
				Drugs:    drugs,
				Pairwise: QueryState[model.PairwiseInteraction]{Enabled: true, Done: true, Err: errors.New("boom")},
				Existing: existingDone(model.PatientInteractionReport{}),
			},
			status: model.ViewError,
			check: func(t *testing.T, v model.InteractionView) {
				assert.Equal(t, msgFetchFailed, v.Message)
			},
		},
		{
			name: "empty when nothing is flagged",
			in: InteractionResults{
				Drugs:    drugs,
				Pairwise: pairDone("No"),
				Existing: existingDone(model.PatientInteractionReport{Recommendation: "Safe to prescribe"}),
			},
			status: model.ViewEmpty,
			check: func(t *testing.T, v model.InteractionView) {
				assert.Equal(t, msgNoConcerns, v.Summary)
				assert.Equal(t, "Safe to prescribe", v.Recommendation)
			},
		},
		{
			name: "data merges every kind of finding",
			in: InteractionResults{
				Drugs:    drugs,
				Pairwise: pairDone("Yes", "Increases bleeding risk", "Major interaction"),
				Existing: existingDone(model.PatientInteractionReport{
					HasInteractions: true,
					Interactions:    []model.DrugInteraction{{Drug1: "Aspirin", Drug2: "Heparin", Severity: "Critical", Description: "bleeding"}},
					HasAllergies:    true,
					Allergies:       []model.AllergyConflict{{Drug: "Aspirin", Allergen: "Salicylates"}},
				}),
			},
			status: model.ViewData,
			check: func(t *testing.T, v model.InteractionView) {
				require.Len(t, v.Findings, 3)
				assert.Equal(t, model.FindingPairwise, v.Findings[0].Kind)
				assert.Equal(t, "Major interaction", v.Findings[0].Headline)
				assert.Equal(t, drugs, v.Findings[0].Drugs)
				assert.Equal(t, "critical", v.Findings[1].Severity)
				assert.Equal(t, model.FindingAllergy, v.Findings[2].Kind)
				assert.Equal(t, severityUnknown, v.Findings[2].Severity)
				assert.Equal(t, "interaction among the new drugs; 1 interaction with current medication; 1 allergy conflict", v.Summary)
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := ComposeInteractions(tt.in)
			assert.Equal(t, tt.status, v.Status)
			if tt.check != nil {
				tt.check(t, v)
			}
		})
	}
}

func TestInteractionRequest_Normalize(t *testing.T) {
	got := InteractionRequest{PatientNID: " 1 ", Drugs: []string{" Aspirin", "", "aspirin", "Warfarin"}}.Normalize()
	assert.Equal(t, InteractionRequest{PatientNID: "1", Drugs: []string{"Aspirin", "Warfarin"}}, got)
}

func TestInteractionService_CheckRunsBothQueries(t *testing.T) {
	f := newUpstreamFixture(t)
	nid := "29801011234567"
	f.up.HandleJSON(http.MethodGet, "/drug/interaction", http.StatusOK, map[string]any{"text": []string{"No"}})
	f.up.HandleJSON(http.MethodGet, "/drug/"+nid+"/", http.StatusOK, model.PatientInteractionReport{
		HasInteractions: true,
		Interactions:    []model.DrugInteraction{{Drug1: "Aspirin", Drug2: "Heparin", Severity: "moderate"}},
	})
	svc := MustNewInteractionService(f.opts())

	view, err := svc.Check(context.Background(), signedIn(t, domainauth.RoleDoctor),
		InteractionRequest{PatientNID: nid, Drugs: []string{"Aspirin", "Ibuprofen"}})
	require.NoError(t, err)
	assert.Equal(t, model.ViewData, view.Status)
	require.Len(t, view.Findings, 1)
	assert.Equal(t, model.FindingExisting, view.Findings[0].Kind)

	pair, ok := f.up.Last(http.MethodGet, "/drug/interaction")
	require.True(t, ok)
	q, err := url.ParseQuery(pair.RawQuery)
	require.NoError(t, err)
	assert.Equal(t, "Aspirin with Ibuprofen", q.Get("drug"))

	existing, ok := f.up.Last(http.MethodGet, "/drug/"+nid+"/")
	require.True(t, ok)
	q, err = url.ParseQuery(existing.RawQuery)
	require.NoError(t, err)
	assert.Equal(t, []string{"Aspirin", "Ibuprofen"}, q["newDrugs[]"])
}

func TestInteractionService_CheckSkipsDisabledQueries(t *testing.T) {
	f := newUpstreamFixture(t)
	svc := MustNewInteractionService(f.opts())

	view, err := svc.Check(context.Background(), signedIn(t, domainauth.RoleDoctor), InteractionRequest{Drugs: []string{"Aspirin"}})
	require.NoError(t, err)
	assert.Equal(t, model.ViewIdle, view.Status)
	assert.Empty(t, f.up.Requests())
}

func TestInteractionService_CheckReportsUpstreamFailure(t *testing.T) {
	f := newUpstreamFixture(t)
	f.up.HandleJSON(http.MethodGet, "/drug/interaction", http.StatusInternalServerError, map[string]string{"message": "down"})
	svc := MustNewInteractionService(f.opts())

	view, err := svc.Check(context.Background(), signedIn(t, domainauth.RoleDoctor),
		InteractionRequest{Drugs: []string{"Aspirin", "Warfarin"}})
	require.NoError(t, err)
	assert.Equal(t, model.ViewError, view.Status)
}

func TestInteractionService_CheckRequiresLoginWhenRefreshFails(t *testing.T) {
	f := newUpstreamFixture(t)
	nid := "29801011234567"
	f.up.HandleJSON(http.MethodGet, "/drug/interaction", http.StatusUnauthorized, map[string]string{"message": "jwt expired"})
	f.up.HandleJSON(http.MethodGet, "/drug/"+nid+"/", http.StatusOK, model.PatientInteractionReport{})
	f.up.HandleJSON(http.MethodGet, "/auth/refreshToken", http.StatusUnauthorized, map[string]string{"message": "no refresh token"})
	svc := MustNewInteractionService(f.opts())
	st := signedIn(t, domainauth.RoleDoctor)

	_, err := svc.Check(context.Background(), st, InteractionRequest{PatientNID: nid, Drugs: []string{"Aspirin", "Warfarin"}})
	require.ErrorIs(t, err, apiclient.ErrLoginRequired)
	assert.False(t, st.Snapshot().IsAuthenticated())
	assert.Equal(t, 1, f.up.Calls(http.MethodGet, "/auth/refreshToken"))
}
