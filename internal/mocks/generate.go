// Package mocks provides gomock implementations of the clinic portal's ports.
//
// To regenerate mocks after interface changes, run:
//
//	go generate ./internal/mocks
//
// Usage in tests:
//
//	ctrl := gomock.NewController(t)
//	refresher := mocks.NewMockTokenRefresher(ctrl)
//	refresher.EXPECT().Refresh(gomock.Any(), gomock.Any()).Return(nil)
package mocks

// Cache backend for the per-session query cache.
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=cache_repository_mock.go github.com/target/clinic-portal/internal/core CacheRepository

// Audit trail persistence and the best-effort recorder in front of it.
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=audit_repository_mock.go github.com/target/clinic-portal/internal/core AuditRepository
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=audit_recorder_mock.go github.com/target/clinic-portal/internal/core AuditRecorder

// Session persistence and the refresh routine used by the route guard.
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=session_store_mock.go github.com/target/clinic-portal/internal/ports SessionStore
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=token_refresher_mock.go github.com/target/clinic-portal/internal/ports TokenRefresher
