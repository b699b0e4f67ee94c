package apiclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	apperrors "github.com/target/clinic-portal/internal/errors"
)

// ErrLoginRequired is returned when the session can no longer be authenticated:
// the refresh call failed, or the re-issued request was rejected with 401 again.
// The session has been cleared by the time a caller sees it.
var ErrLoginRequired = errors.New("login required")

// APIError is a non-2xx response from the clinical API.
type APIError struct {
	Status  int
	Message string
	Method  string
	Path    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("upstream %s %s: %d %s", e.Method, e.Path, e.Status, e.Message)
}

// ErrorClass tags metrics with the upstream status.
func (e *APIError) ErrorClass() string {
	return "upstream_" + strconv.Itoa(e.Status)
}

// newAPIError builds an APIError, taking the message from the JSON "message"
// (or "error") field of body when present.
func newAPIError(method, path string, status int, body []byte) *APIError {
	return &APIError{
		Status:  status,
		Message: upstreamMessage(status, body),
		Method:  method,
		Path:    path,
	}
}

func upstreamMessage(status int, body []byte) string {
	var payload struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if len(body) > 0 && json.Unmarshal(body, &payload) == nil {
		if m := strings.TrimSpace(payload.Message); m != "" {
			return m
		}
		if m := strings.TrimSpace(payload.Error); m != "" {
			return m
		}
	}
	if text := http.StatusText(status); text != "" {
		return text
	}
	return "unexpected status " + strconv.Itoa(status)
}

// StatusOf returns the upstream status carried by err, or 0.
func StatusOf(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Status
	}
	return 0
}

// ToAppError maps client errors onto the application error taxonomy.
// Upstream 4xx messages are passed through; 5xx and transport failures are
// reported generically so backend internals do not leak to the browser.
func ToAppError(err error) error {
	if err == nil {
		return nil
	}

	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return err
	}

	switch {
	case errors.Is(err, ErrLoginRequired):
		return apperrors.Wrap(err, apperrors.ErrCodeUnauthorized, "Your session has ended. Please log in again.")
	case errors.Is(err, context.DeadlineExceeded):
		return apperrors.Wrap(err, apperrors.ErrCodeTimeout, "The clinical service took too long to respond.")
	case errors.Is(err, context.Canceled):
		return apperrors.Wrap(err, apperrors.ErrCodeCanceled, "Request was canceled.")
	}

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return apperrors.Wrap(err, apperrors.ErrCodeUnavailable, "The clinical service is unavailable.")
	}

	switch {
	case apiErr.Status == http.StatusUnauthorized:
		return apperrors.Wrap(err, apperrors.ErrCodeUnauthorized, apiErr.Message)
	case apiErr.Status == http.StatusForbidden:
		return apperrors.Wrap(err, apperrors.ErrCodeForbidden, apiErr.Message)
	case apiErr.Status == http.StatusNotFound:
		return apperrors.Wrap(err, apperrors.ErrCodeNotFound, apiErr.Message)
	case apiErr.Status == http.StatusConflict:
		return apperrors.Wrap(err, apperrors.ErrCodeConflict, apiErr.Message)
	case apiErr.Status >= 400 && apiErr.Status < 500:
		return apperrors.Wrap(err, apperrors.ErrCodeValidation, apiErr.Message)
	default:
		return apperrors.Wrap(err, apperrors.ErrCodeUnavailable, "The clinical service is unavailable.")
	}
}
