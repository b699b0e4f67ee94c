package errors

import (
	"context"
	"database/sql"
	"errors"
	"regexp"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// reKeyField extracts the column from a unique violation detail: "Key (field)=(value) already exists.".
var reKeyField = regexp.MustCompile(`Key \(([^)]+)\)=`)

// MapDBError maps audit database errors to AppError instances:
//   - context deadline/cancel → Timeout/Canceled
//   - pgx.ErrNoRows and sql.ErrNoRows → NotFound
//   - unique violations → Conflict
//   - NOT NULL and CHECK violations → Validation
//   - connection failures → Unavailable
//
// Unrecognized errors are returned unchanged.
func MapDBError(err error) error {
	if err == nil {
		return nil
	}

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return Wrap(err, ErrCodeTimeout, "Request timed out. Please try again.")
	case errors.Is(err, context.Canceled):
		return Wrap(err, ErrCodeCanceled, "Request was canceled.")
	case errors.Is(err, pgx.ErrNoRows), errors.Is(err, sql.ErrNoRows):
		return Wrap(err, ErrCodeNotFound, "Resource not found")
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return mapPgError(pgErr)
	}

	var connErr *pgconn.ConnectError
	if errors.As(err, &connErr) {
		return Wrap(err, ErrCodeUnavailable, "The audit database is unavailable.")
	}

	return err
}

func mapPgError(pgErr *pgconn.PgError) error {
	switch {
	case pgErr.Code == pgerrcode.UniqueViolation:
		appErr := Wrap(pgErr, ErrCodeConflict, "This value already exists.")
		appErr.Field = uniqueViolationField(pgErr)
		return appErr
	case pgErr.Code == pgerrcode.NotNullViolation:
		appErr := Wrap(pgErr, ErrCodeValidation, "Required field is missing.")
		appErr.Field = pgErr.ColumnName
		return appErr
	case pgErr.Code == pgerrcode.CheckViolation:
		appErr := Wrap(pgErr, ErrCodeValidation, "Invalid data. Please check your input.")
		appErr.Field = pgErr.ColumnName
		return appErr
	case pgerrcode.IsConnectionException(pgErr.Code), pgerrcode.IsInsufficientResources(pgErr.Code):
		return Wrap(pgErr, ErrCodeUnavailable, "The audit database is unavailable.")
	default:
		return Wrap(pgErr, ErrCodeInternal, "A database error occurred. Please try again.")
	}
}

func uniqueViolationField(pgErr *pgconn.PgError) string {
	if pgErr.ColumnName != "" {
		return pgErr.ColumnName
	}
	if m := reKeyField.FindStringSubmatch(pgErr.Detail); len(m) == 2 {
		return m[1]
	}
	return ""
}
