package core

import (
	"context"
	"net/url"

	"github.com/target/clinic-portal/internal/apiclient"
	"github.com/target/clinic-portal/internal/domain/model"
	"github.com/target/clinic-portal/internal/ports"
)

// This file contains repository interface definitions (ports in hexagonal architecture).
// These interfaces define the contracts between the service layer and data layer.
// Service implementations should depend on these interfaces, not concrete implementations.

// ClinicalAPI is the authenticated transport to the clinical REST API.
// Implemented by *apiclient.Client.
type ClinicalAPI interface {
	Do(ctx context.Context, sess ports.SessionState, req apiclient.Request) (*apiclient.Response, error)
	Get(ctx context.Context, sess ports.SessionState, path string, out any) error
	GetQuery(ctx context.Context, sess ports.SessionState, path string, query url.Values, out any) error
	Send(ctx context.Context, sess ports.SessionState, method, path string, body, out any) error
}

// AuditRepository persists access audit events.
type AuditRepository interface {
	Insert(ctx context.Context, ev *model.AuditEvent) error
	List(ctx context.Context, opts model.AuditListOptions) ([]model.AuditEvent, error)
}

// AuditRecorder records audit events on a best-effort basis. Record never fails the caller.
type AuditRecorder interface {
	Record(ctx context.Context, ev model.AuditEvent)
}
