package service

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/target/clinic-portal/internal/apiclient"
	"github.com/target/clinic-portal/internal/core"
	"github.com/target/clinic-portal/internal/domain/model"
	"github.com/target/clinic-portal/internal/ports"
)

// publicCacheScope keys cached reads that do not depend on a session.
const publicCacheScope = "public"

// CatalogService serves reference data: drugs and medical specialities.
type CatalogService struct {
	clinical
}

// NewCatalogService creates a new CatalogService.
func NewCatalogService(opts ClinicalServiceOptions) (*CatalogService, error) {
	c, err := newClinical(opts, "catalog_service")
	if err != nil {
		return nil, err
	}
	return &CatalogService{clinical: c}, nil
}

// MustNewCatalogService creates a new CatalogService and panics on error.
func MustNewCatalogService(opts ClinicalServiceOptions) *CatalogService {
	svc, err := NewCatalogService(opts)
	if err != nil {
		//nolint:forbidigo // Must constructor intentionally panics on invalid wiring.
		panic(err)
	}
	return svc
}

// SearchDrugs finds drugs by name. The upstream search is a POST with the term in the body.
func (s *CatalogService) SearchDrugs(ctx context.Context, sess ports.SessionState, q string) (model.DrugSearchResult, error) {
	q = strings.TrimSpace(q)
	if err := requiredParam("q", q); err != nil {
		return model.DrugSearchResult{}, err
	}
	query := core.CachedQuery{SessionID: sess.ID(), Path: "/drug/?value=" + segment(q), TTL: searchTTL}
	out, err := core.Fetch(ctx, s.cache, query, func(ctx context.Context) (model.DrugSearchResult, error) {
		var res model.DrugSearchResult
		err := s.api.Send(ctx, sess, http.MethodPost, "/drug/", map[string]string{"value": q}, &res)
		return res, err
	})
	if err != nil {
		return model.DrugSearchResult{}, fmt.Errorf("search drugs: %w", err)
	}
	return out, nil
}

// Specialities lists medical specialities. The call is anonymous because the
// doctor sign-up form needs it before anyone is signed in.
func (s *CatalogService) Specialities(ctx context.Context) (model.SpecialityList, error) {
	query := core.CachedQuery{SessionID: publicCacheScope, Path: "/spec", TTL: recordTTL}
	out, err := core.Fetch(ctx, s.cache, query, func(ctx context.Context) (model.SpecialityList, error) {
		var res model.SpecialityList
		resp, err := s.api.Do(ctx, nil, apiclient.Request{Method: http.MethodGet, Path: "/spec", Anonymous: true})
		if err != nil {
			return res, err
		}
		return res, resp.Decode(&res)
	})
	if err != nil {
		return model.SpecialityList{}, fmt.Errorf("list specialities: %w", err)
	}
	return out, nil
}
