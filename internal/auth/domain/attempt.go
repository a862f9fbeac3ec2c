package domain

import "time"

// LoginAttempt is the durable failure counter behind the lockout guard,
// keyed by an identifier (email or IP). Rows are deleted on success and
// upsert-incremented on failure.
type LoginAttempt struct {
	Identifier   string
	Attempts     int
	BlockedUntil *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// IsBlocked reports whether the identifier is blocked at the given time.
func (a LoginAttempt) IsBlocked(now time.Time) bool {
	return a.BlockedUntil != nil && a.BlockedUntil.After(now)
}
