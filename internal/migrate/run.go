// Package migrate applies the audit schema embedded in the binary.
package migrate

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path"
	"slices"
	"strings"
	"time"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// lockID serialises concurrent portal instances migrating the same database.
const lockID int64 = 0x636c696e6963

// Migration is one embedded SQL file. Version is the file name without ".sql".
type Migration struct {
	Version string
	file    string
}

// Status reports whether a migration has been applied and when.
type Status struct {
	Version   string
	AppliedAt *time.Time
}

// Pending reports whether the migration still needs to run.
func (s Status) Pending() bool { return s.AppliedAt == nil }

// Migrations lists the embedded migrations in apply order.
func Migrations() ([]Migration, error) {
	return load(migrationsFS, "migrations")
}

func load(fsys fs.FS, dir string) ([]Migration, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("read migrations: %w", err)
	}
	out := make([]Migration, 0, len(entries))
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".sql") {
			continue
		}
		out = append(out, Migration{Version: strings.TrimSuffix(name, ".sql"), file: path.Join(dir, name)})
	}
	slices.SortFunc(out, func(a, b Migration) int { return strings.Compare(a.Version, b.Version) })
	return out, nil
}

// Run applies every pending migration, each in its own transaction, and
// returns the versions it applied. Calling it again is a no-op.
func Run(ctx context.Context, db *sql.DB) ([]string, error) {
	migrations, err := Migrations()
	if err != nil {
		return nil, err
	}
	logger := slog.Default().With("component", "migrate")

	if err = ensureTable(ctx, db); err != nil {
		return nil, err
	}
	applied := make([]string, 0, len(migrations))
	for _, m := range migrations {
		ok, applyErr := apply(ctx, db, m, logger)
		if applyErr != nil {
			return applied, applyErr
		}
		if ok {
			applied = append(applied, m.Version)
		}
	}
	return applied, nil
}

// Statuses reports every embedded migration alongside its applied time.
func Statuses(ctx context.Context, db *sql.DB) ([]Status, error) {
	migrations, err := Migrations()
	if err != nil {
		return nil, err
	}
	if err = ensureTable(ctx, db); err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, `SELECT version, applied_at FROM schema_migrations`)
	if err != nil {
		return nil, fmt.Errorf("list applied migrations: %w", err)
	}
	defer rows.Close()

	appliedAt := make(map[string]time.Time)
	for rows.Next() {
		var (
			version string
			at      time.Time
		)
		if scanErr := rows.Scan(&version, &at); scanErr != nil {
			return nil, fmt.Errorf("scan applied migration: %w", scanErr)
		}
		appliedAt[version] = at
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("list applied migrations: %w", err)
	}

	out := make([]Status, len(migrations))
	for i, m := range migrations {
		out[i] = Status{Version: m.Version}
		if at, ok := appliedAt[m.Version]; ok {
			out[i].AppliedAt = &at
		}
	}
	return out, nil
}

func ensureTable(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version TEXT PRIMARY KEY,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`)
	if err != nil {
		return fmt.Errorf("create schema_migrations: %w", err)
	}
	return nil
}

// apply runs m under a transaction-scoped advisory lock. It returns false when
// m was already recorded, possibly by another instance holding the lock first.
func apply(ctx context.Context, db *sql.DB, m Migration, logger *slog.Logger) (bool, error) {
	body, err := migrationsFS.ReadFile(m.file)
	if err != nil {
		return false, fmt.Errorf("read migration %s: %w", m.Version, err)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin migration %s: %w", m.Version, err)
	}
	defer func() {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			logger.ErrorContext(ctx, "rollback migration failed", "version", m.Version, "error", rbErr)
		}
	}()

	if _, err = tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, lockID); err != nil {
		return false, fmt.Errorf("lock migrations: %w", err)
	}
	var done bool
	if err = tx.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM schema_migrations WHERE version = $1)`, m.Version,
	).Scan(&done); err != nil {
		return false, fmt.Errorf("check migration %s: %w", m.Version, err)
	}
	if done {
		return false, nil
	}

	logger.InfoContext(ctx, "applying migration", "version", m.Version)
	if _, err = tx.ExecContext(ctx, string(body)); err != nil {
		return false, fmt.Errorf("exec migration %s: %w", m.Version, err)
	}
	if _, err = tx.ExecContext(ctx, `INSERT INTO schema_migrations (version) VALUES ($1)`, m.Version); err != nil {
		return false, fmt.Errorf("record migration %s: %w", m.Version, err)
	}
	if err = tx.Commit(); err != nil {
		return false, fmt.Errorf("commit migration %s: %w", m.Version, err)
	}
	return true, nil
}
