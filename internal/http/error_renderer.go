package httpx

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/target/clinic-portal/internal/apiclient"
	apperrors "github.com/target/clinic-portal/internal/errors"
	obserrors "github.com/target/clinic-portal/internal/observability/errors"
)

const errMsgFixBelow = "Please fix the errors below."

// statusByCode maps application error codes onto HTTP statuses.
var statusByCode = map[apperrors.ErrorCode]int{ //nolint:gochecknoglobals // read-only lookup table
	apperrors.ErrCodeValidation:   http.StatusBadRequest,
	apperrors.ErrCodeUnauthorized: http.StatusUnauthorized,
	apperrors.ErrCodeForbidden:    http.StatusForbidden,
	apperrors.ErrCodeNotFound:     http.StatusNotFound,
	apperrors.ErrCodeConflict:     http.StatusConflict,
	apperrors.ErrCodeUnavailable:  http.StatusBadGateway,
	apperrors.ErrCodeTimeout:      http.StatusGatewayTimeout,
	apperrors.ErrCodeCanceled:     499,
	apperrors.ErrCodeInternal:     http.StatusInternalServerError,
}

// RenderError writes err as a JSON error response. Client errors carry their
// message (and per-field messages for validation failures); server errors are
// logged and answered with a generic message.
func RenderError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	if err == nil {
		return
	}
	if logger == nil {
		logger = slog.Default()
	}

	mapped := apiclient.ToAppError(err)
	var appErr *apperrors.AppError
	if !errors.As(mapped, &appErr) {
		appErr = apperrors.Wrap(err, apperrors.ErrCodeInternal, "An error occurred. Please try again.")
	}

	status, ok := statusByCode[appErr.Code]
	if !ok {
		status = http.StatusInternalServerError
	}

	params := ErrorParams{Code: status, ErrCode: string(appErr.Code), Err: errors.New(appErr.Message)}
	switch {
	case len(appErr.Fields) > 0:
		params.Fields = appErr.Fields
		params.Err = errors.New(errMsgFixBelow)
	case appErr.Field != "":
		params.Fields = map[string]string{appErr.Field: appErr.Message}
	}

	if status >= http.StatusInternalServerError {
		logger.ErrorContext(r.Context(), "request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"status", status,
			"error_class", obserrors.Classify(err),
			"error", err,
		)
		if appErr.Code == apperrors.ErrCodeInternal {
			params.Err = errors.New("An error occurred. Please try again.")
		}
	}
	WriteError(w, params)
}
