package models

import "time"

// Audit event kinds emitted by the session lifecycle. Suspicious events mark
// potential replay or theft signals; anomaly events mark client metadata
// drift. Both are detection-only and never change the caller-visible outcome.
const (
	AuditEventRegister    = "register"
	AuditEventCreate      = "create"
	AuditEventRevoke      = "revoke"
	AuditEventRevokeAll   = "revoke_all"
	AuditEventSuspicious  = "suspicious"
	AuditEventAnomaly     = "anomaly"
	AuditEventLoginFailed = "login_failed"
)

// Reason codes attached to suspicious/anomaly events. The API surfaces a
// uniform error regardless; the reason is for operators only.
const (
	AuditReasonInvalidOrRevoked = "invalid_or_revoked"
	AuditReasonExpired          = "expired"
	AuditReasonUserNotFound     = "user_not_found"
	AuditReasonMismatch         = "mismatch"
	AuditReasonNotOwner         = "not_owner"
)

// AuditEvent represents one entry in the session audit trail.
type AuditEvent struct {
	ID        string    `db:"id" json:"id"`
	UserID    *string   `db:"user_id" json:"user_id,omitempty"`
	Event     string    `db:"event" json:"event"`
	Reason    string    `db:"reason" json:"reason,omitempty"`
	TokenID   *string   `db:"token_id" json:"token_id,omitempty"`
	IPAddress string    `db:"ip_address" json:"ip_address"`
	UserAgent string    `db:"user_agent" json:"user_agent"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}
