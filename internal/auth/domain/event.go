package domain

import "time"

// EventType enumerates the security events the audit log records.
type EventType string

const (
	EventLoginSuccess       EventType = "login_success"
	EventLoginFailed        EventType = "login_failed"
	EventLogout             EventType = "logout"
	EventTokenRefresh       EventType = "token_refresh"
	EventPasswordReset      EventType = "password_reset"
	EventEmailVerified      EventType = "email_verified"
	EventMFAEnabled         EventType = "mfa_enabled"
	EventMFADisabled        EventType = "mfa_disabled"
	EventAccountLocked      EventType = "account_locked"
	EventSuspiciousActivity EventType = "suspicious_activity"
)

// AuthEvent is one append-only audit record. Written once, never mutated or
// deleted by this engine.
type AuthEvent struct {
	ID        string
	AccountID string // empty when the event has no account context
	Type      EventType
	IPAddress string
	UserAgent string
	Metadata  map[string]string
	Success   bool
	CreatedAt time.Time
}

// SecuritySummary aggregates an account's recent audit history for external
// reporting callers.
type SecuritySummary struct {
	TotalEvents          int         `json:"total_events"`
	SuccessfulLogins     int         `json:"successful_logins"`
	FailedLogins         int         `json:"failed_logins"`
	UniqueIPs            int         `json:"unique_ips"`
	SuspiciousActivities int         `json:"suspicious_activities"`
	RecentEvents         []AuthEvent `json:"recent_events"`
}
