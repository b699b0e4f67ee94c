package service

import (
	"context"
	"errors"
	"log/slog"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/target/clinic-portal/internal/audit"
	"github.com/target/clinic-portal/internal/core"
	domainauth "github.com/target/clinic-portal/internal/domain/auth"
	"github.com/target/clinic-portal/internal/domain/model"
	apperrors "github.com/target/clinic-portal/internal/errors"
	"github.com/target/clinic-portal/internal/ports"
)

// Stale windows of cached upstream reads.
const (
	recordTTL = 5 * time.Minute
	searchTTL = time.Minute
)

// ClinicalServiceOptions groups dependencies shared by the clinical view services.
type ClinicalServiceOptions struct {
	API    core.ClinicalAPI   // Required
	Cache  *core.QueryCache   // Optional
	Audit  core.AuditRecorder // Optional
	Logger *slog.Logger       // Optional
}

// clinical is embedded by every clinical view service.
type clinical struct {
	api    core.ClinicalAPI
	cache  *core.QueryCache
	audit  core.AuditRecorder
	logger *slog.Logger
}

func newClinical(opts ClinicalServiceOptions, component string) (clinical, error) {
	if opts.API == nil {
		return clinical{}, errors.New("API is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	recorder := opts.Audit
	if recorder == nil {
		recorder = audit.Nop{}
	}
	return clinical{
		api:    opts.API,
		cache:  opts.Cache,
		audit:  recorder,
		logger: logger.With("component", component),
	}, nil
}

// get performs a cached GET of path on behalf of sess.
func get[T any](ctx context.Context, c clinical, sess ports.SessionState, path string, ttl time.Duration) (T, error) {
	return core.Fetch(ctx, c.cache, core.CachedQuery{SessionID: sess.ID(), Path: path, TTL: ttl},
		func(ctx context.Context) (T, error) {
			var out T
			err := c.api.Get(ctx, sess, path, &out)
			return out, err
		})
}

func (c clinical) invalidate(ctx context.Context, sess ports.SessionState, paths ...string) {
	c.cache.Invalidate(ctx, sess.ID(), paths...)
}

func (c clinical) record(ctx context.Context, sess ports.SessionState, action model.AuditAction, resource string, err error) {
	ev := audit.Event(sess, action, resource)
	if err != nil {
		ev = audit.Failed(ev)
	}
	c.audit.Record(ctx, ev)
}

// segment escapes one user-supplied path segment.
func segment(s string) string {
	return url.PathEscape(strings.TrimSpace(s))
}

// requireRole fails with Forbidden unless the session's role is one of roles.
func requireRole(sess ports.SessionState, roles ...domainauth.Role) error {
	if slices.Contains(roles, sess.Role()) {
		return nil
	}
	return apperrors.Forbidden("You do not have access to this action.")
}

// formError converts form validation failures into a per-field validation error.
func formError(err error) error {
	var fe model.FieldErrors
	if errors.As(err, &fe) {
		return apperrors.ValidationFields(fe)
	}
	return err
}

func requiredParam(field, value string) error {
	if strings.TrimSpace(value) == "" {
		return apperrors.ValidationField(field, field+" is required")
	}
	return nil
}
