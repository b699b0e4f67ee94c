package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/target/clinic-portal/internal/audit"
	"github.com/target/clinic-portal/internal/core"
	"github.com/target/clinic-portal/internal/domain/model"
	"github.com/target/clinic-portal/internal/observability/metrics"
	"github.com/target/clinic-portal/internal/observability/statsd"
	"github.com/target/clinic-portal/internal/ports"
)

const defaultGuardSkew = 30 * time.Second

// GuardState is a state of the route guard for one request.
//
//	unchecked --token valid--> authenticated
//	unchecked --missing/expired--> refreshing --ok--> authenticated
//	                                          --fail--> redirecting
type GuardState string

const (
	GuardUnchecked     GuardState = "unchecked"
	GuardRefreshing    GuardState = "refreshing"
	GuardAuthenticated GuardState = "authenticated"
	GuardRedirecting   GuardState = "redirecting"
)

// Guard outcomes, used for metrics and the status endpoint.
const (
	OutcomeAuthenticated = "authenticated"
	OutcomeRefreshed     = "refreshed"
	OutcomeRedirected    = "redirected"
)

// GuardDecision is the result of running the guard for one request.
type GuardDecision struct {
	State   GuardState
	Outcome string
	// Path lists every state visited, starting with GuardUnchecked.
	Path []GuardState
	// Err is the refresh failure behind a redirect.
	Err error
}

// Allowed reports whether the protected handler may run.
func (d GuardDecision) Allowed() bool { return d.State == GuardAuthenticated }

// RouteGuardOptions groups dependencies for RouteGuard.
type RouteGuardOptions struct {
	Refresher ports.TokenRefresher // Required
	// Skew treats a token expiring within this window as already expired.
	Skew    time.Duration
	Metrics statsd.Sink        // Optional
	Audit   core.AuditRecorder // Optional
	Logger  *slog.Logger       // Optional
}

// RouteGuard decides whether a request may reach a protected view, refreshing
// the session's token first when it is missing or about to expire.
type RouteGuard struct {
	refresher ports.TokenRefresher
	skew      time.Duration
	metrics   statsd.Sink
	audit     core.AuditRecorder
	logger    *slog.Logger
}

// NewRouteGuard constructs a RouteGuard.
func NewRouteGuard(opts RouteGuardOptions) (*RouteGuard, error) {
	if opts.Refresher == nil {
		return nil, errors.New("Refresher is required")
	}
	skew := opts.Skew
	if skew < 0 {
		skew = 0
	} else if skew == 0 {
		skew = defaultGuardSkew
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	recorder := opts.Audit
	if recorder == nil {
		recorder = audit.Nop{}
	}
	return &RouteGuard{
		refresher: opts.Refresher,
		skew:      skew,
		metrics:   opts.Metrics,
		audit:     recorder,
		logger:    logger.With("component", "route_guard"),
	}, nil
}

// MustNewRouteGuard constructs a RouteGuard and panics on error.
func MustNewRouteGuard(opts RouteGuardOptions) *RouteGuard {
	g, err := NewRouteGuard(opts)
	if err != nil {
		//nolint:forbidigo // Must constructor intentionally panics on invalid wiring.
		panic(err)
	}
	return g
}

// Check runs the guard against sess. client ("browser" or "api") only tags metrics.
// The returned error is non-nil only when ctx ended during the refresh.
func (g *RouteGuard) Check(ctx context.Context, sess ports.SessionState, client string) (GuardDecision, error) {
	d := GuardDecision{State: GuardUnchecked, Path: []GuardState{GuardUnchecked}}

	if sess.TokenValid(g.skew) {
		d.enter(GuardAuthenticated)
		d.Outcome = OutcomeAuthenticated
		g.emit(d, client)
		return d, nil
	}

	d.enter(GuardRefreshing)
	err := g.refresher.Refresh(ctx, sess)
	if err != nil && ctx.Err() != nil {
		return d, ctx.Err()
	}
	if err != nil {
		d.enter(GuardRedirecting)
		d.Outcome = OutcomeRedirected
		d.Err = err
		g.logger.InfoContext(ctx, "guard redirecting to login", "session_id", sess.ID(), "error", err)
		g.audit.Record(ctx, audit.Failed(audit.Event(sess, model.AuditRefreshFailed, "")))
		g.emit(d, client)
		return d, nil
	}

	d.enter(GuardAuthenticated)
	d.Outcome = OutcomeRefreshed
	g.emit(d, client)
	return d, nil
}

func (d *GuardDecision) enter(s GuardState) {
	d.State = s
	d.Path = append(d.Path, s)
}

func (g *RouteGuard) emit(d GuardDecision, client string) {
	metrics.EmitGuard(g.metrics, metrics.GuardMetric{Outcome: d.Outcome, Client: client})
}
