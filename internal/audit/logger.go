// Package audit records security-relevant portal actions on a best-effort basis.
package audit

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/target/clinic-portal/internal/core"
	"github.com/target/clinic-portal/internal/domain/model"
	"github.com/target/clinic-portal/internal/ports"
)

var (
	_ core.AuditRecorder = (*Logger)(nil)
	_ core.AuditRecorder = Nop{}
)

type remoteAddrKey struct{}

// WithRemoteAddr returns ctx carrying the client address recorded on audit events.
func WithRemoteAddr(ctx context.Context, addr string) context.Context {
	return context.WithValue(ctx, remoteAddrKey{}, addr)
}

// RemoteAddr returns the client address stored by WithRemoteAddr.
func RemoteAddr(ctx context.Context) string {
	addr, _ := ctx.Value(remoteAddrKey{}).(string)
	return addr
}

// Logger persists audit events through a core.AuditRepository.
// Failures are logged and never returned.
type Logger struct {
	repo    core.AuditRepository
	logger  *slog.Logger
	now     func() time.Time
	timeout time.Duration
}

// Options bundles dependencies for NewLogger.
type Options struct {
	Repo   core.AuditRepository // Required
	Logger *slog.Logger         // Optional
	// Timeout bounds each write. Defaults to 2s.
	Timeout time.Duration
}

// NewLogger creates a Logger. A nil repository yields a Logger that drops events.
func NewLogger(opts Options) *Logger {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &Logger{
		repo:    opts.Repo,
		logger:  logger.With("component", "audit"),
		now:     time.Now,
		timeout: timeout,
	}
}

// Record writes ev. The write is detached from ctx's cancellation so an
// aborted request still leaves its trail.
func (l *Logger) Record(ctx context.Context, ev model.AuditEvent) {
	if l == nil || l.repo == nil {
		return
	}
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = l.now().UTC()
	}
	if ev.RemoteAddr == "" {
		ev.RemoteAddr = RemoteAddr(ctx)
	}

	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), l.timeout)
	defer cancel()
	if err := l.repo.Insert(writeCtx, &ev); err != nil {
		l.logger.WarnContext(ctx, "audit write failed",
			"action", string(ev.Action), "resource", ev.Resource, "error", err)
	}
}

// Nop drops every event. Used when auditing is disabled.
type Nop struct{}

// Record implements core.AuditRecorder.
func (Nop) Record(context.Context, model.AuditEvent) {}

// Event builds an event attributed to the user of sess.
func Event(sess ports.SessionState, action model.AuditAction, resource string) model.AuditEvent {
	ev := model.AuditEvent{Action: action, Resource: resource, Outcome: model.AuditSuccess}
	if sess == nil {
		return ev
	}
	ev.SessionID = sess.ID()
	ev.Role = string(sess.Role())
	if u, ok := sess.User(); ok {
		ev.UserID = u.ID
	}
	return ev
}

// Failed marks ev as a failure.
func Failed(ev model.AuditEvent) model.AuditEvent {
	ev.Outcome = model.AuditFailure
	return ev
}

// WithMetadata attaches md as the event's JSON metadata. Encoding errors leave it empty.
func WithMetadata(ev model.AuditEvent, md map[string]string) model.AuditEvent {
	if len(md) == 0 {
		return ev
	}
	if raw, err := json.Marshal(md); err == nil {
		ev.Metadata = raw
	}
	return ev
}
