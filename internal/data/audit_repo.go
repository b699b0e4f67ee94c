package data

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/target/clinic-portal/internal/core"
	"github.com/target/clinic-portal/internal/data/pgxutil"
	"github.com/target/clinic-portal/internal/domain/model"
	apperrors "github.com/target/clinic-portal/internal/errors"
)

var _ core.AuditRepository = (*AuditRepo)(nil)

const (
	defaultAuditLimit = 50
	maxAuditLimit     = 1000

	auditColumns = "id, session_id, user_id, role, action, resource, outcome, remote_addr, metadata, created_at"
)

// AuditRepo stores access audit events in PostgreSQL.
type AuditRepo struct {
	DB  *sql.DB
	now func() time.Time
}

// NewAuditRepo creates a new AuditRepo.
func NewAuditRepo(db *sql.DB) *AuditRepo {
	return &AuditRepo{DB: db, now: time.Now}
}

// Insert writes ev, assigning its ID and timestamp when unset.
func (r *AuditRepo) Insert(ctx context.Context, ev *model.AuditEvent) error {
	if r == nil || r.DB == nil {
		return ErrAuditNotConfigured
	}
	if ev == nil || ev.Action == "" {
		return apperrors.ValidationField("action", "audit action is required")
	}
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = r.now().UTC()
	}
	if ev.Outcome == "" {
		ev.Outcome = model.AuditSuccess
	}
	if len(ev.Metadata) == 0 {
		ev.Metadata = []byte("{}")
	}

	const q = `INSERT INTO audit_events (` + auditColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
	_, err := r.DB.ExecContext(ctx, q,
		ev.ID, ev.SessionID, ev.UserID, ev.Role, string(ev.Action), ev.Resource,
		string(ev.Outcome), ev.RemoteAddr, string(ev.Metadata), ev.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert audit event: %w", apperrors.MapDBError(err))
	}
	return nil
}

// List returns the newest events matching opts.
func (r *AuditRepo) List(ctx context.Context, opts model.AuditListOptions) ([]model.AuditEvent, error) {
	if r == nil || r.DB == nil {
		return nil, ErrAuditNotConfigured
	}
	query, args := buildAuditListQuery(opts)

	var out []model.AuditEvent
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, query, args...)
		if err != nil {
			return err
		}
		out, err = pgx.CollectRows(rows, pgx.RowToStructByName[model.AuditEvent])
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("list audit events: %w", apperrors.MapDBError(err))
	}
	return out, nil
}

func buildAuditListQuery(opts model.AuditListOptions) (string, []any) {
	var (
		where []string
		args  []any
	)
	add := func(cond string, v any) {
		args = append(args, v)
		where = append(where, strings.ReplaceAll(cond, "?", "$"+strconv.Itoa(len(args))))
	}
	if opts.UserID != "" {
		add("user_id = ?", opts.UserID)
	}
	if opts.Action != "" {
		add("action = ?", string(opts.Action))
	}
	if !opts.Since.IsZero() {
		add("created_at >= ?", opts.Since)
	}

	limit := opts.Limit
	if limit <= 0 {
		limit = defaultAuditLimit
	}
	limit = min(limit, maxAuditLimit)

	var b strings.Builder
	b.WriteString("SELECT " + auditColumns + " FROM audit_events")
	if len(where) > 0 {
		b.WriteString(" WHERE " + strings.Join(where, " AND "))
	}
	args = append(args, limit)
	b.WriteString(" ORDER BY created_at DESC LIMIT $" + strconv.Itoa(len(args)))
	return b.String(), args
}
