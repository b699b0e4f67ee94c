package data

import "errors"

// Shared sentinel errors for data-layer repositories.
var (
	ErrEmptyCacheKey      = errors.New("cache key cannot be empty")
	ErrAuditNotConfigured = errors.New("audit repository not configured")
)
