package model

import (
	"encoding/json"
	"time"
)

// AuditAction names a security-relevant portal action.
type AuditAction string

const (
	AuditLogin              AuditAction = "login"
	AuditLoginFailed        AuditAction = "login_failed"
	AuditLogout             AuditAction = "logout"
	AuditRefreshFailed      AuditAction = "refresh_failed"
	AuditPatientView        AuditAction = "patient_view"
	AuditPrescriptionCreate AuditAction = "prescription_create"
	AuditDiagnosisCreate    AuditAction = "diagnosis_create"
	AuditDiagnosisRemove    AuditAction = "diagnosis_remove"
	AuditAllergyAdd         AuditAction = "allergy_add"
	AuditAllergyRemove      AuditAction = "allergy_remove"
	AuditReportReview       AuditAction = "report_review"
)

// AuditOutcome is the result of an audited action.
type AuditOutcome string

const (
	AuditSuccess AuditOutcome = "success"
	AuditFailure AuditOutcome = "failure"
)

// AuditEvent is one row of the access audit trail.
type AuditEvent struct {
	ID         string          `json:"id"          db:"id"`
	SessionID  string          `json:"session_id"  db:"session_id"`
	UserID     string          `json:"user_id"     db:"user_id"`
	Role       string          `json:"role"        db:"role"`
	Action     AuditAction     `json:"action"      db:"action"`
	Resource   string          `json:"resource"    db:"resource"`
	Outcome    AuditOutcome    `json:"outcome"     db:"outcome"`
	RemoteAddr string          `json:"remote_addr" db:"remote_addr"`
	Metadata   json.RawMessage `json:"metadata"    db:"metadata"`
	CreatedAt  time.Time       `json:"created_at"  db:"created_at"`
}

// AuditListOptions filters AuditRepository.List.
type AuditListOptions struct {
	UserID string
	Action AuditAction
	Since  time.Time
	Limit  int
}
