package domain

import "time"

// AuditKind classifies an auth lifecycle event for the audit trail.
type AuditKind string

const (
	AuditLoginOK        AuditKind = "login_ok"
	AuditLoginRejected  AuditKind = "login_rejected"
	AuditLogout         AuditKind = "logout"
	AuditSessionEvicted AuditKind = "session_evicted"
	AuditTransientError AuditKind = "transient_error"
)

// AuditEvent records one auth lifecycle occurrence for a browser session.
type AuditEvent struct {
	SessionID string
	Username  string
	Kind      AuditKind
	Detail    string
	At        time.Time
}
