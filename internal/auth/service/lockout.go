package service

import (
	"context"
	"errors"
	"time"

	"github.com/halcyonlabs/authcore/internal/auth/store"
)

const (
	// LockoutThreshold is the cumulative failure count that blocks an
	// identifier.
	LockoutThreshold = 5

	// LockoutDuration is how long a blocked identifier stays blocked.
	LockoutDuration = 15 * time.Minute
)

// LockoutService is the durable brute-force guard. It counts consecutive
// failures per identifier (an email or a source IP, tracked independently)
// in sqlite, so blocks survive restarts. The increment is a single upsert
// statement; concurrent failures cannot lose updates.
type LockoutService struct {
	Store store.Store
}

// RecordFailure counts one failure for the identifier and reports whether
// the identifier is now blocked.
func (s *LockoutService) RecordFailure(ctx context.Context, identifier string) (bool, error) {
	blockedUntil := time.Now().Add(LockoutDuration)
	attempt, err := s.Store.LoginAttempts().UpsertFailure(ctx, identifier, LockoutThreshold, blockedUntil)
	if err != nil {
		return false, err
	}
	return attempt.IsBlocked(time.Now()), nil
}

// IsBlocked reports whether the identifier is currently blocked. Unknown
// identifiers are not blocked.
func (s *LockoutService) IsBlocked(ctx context.Context, identifier string) (bool, error) {
	attempt, err := s.Store.LoginAttempts().GetLoginAttempt(ctx, identifier)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return attempt.IsBlocked(time.Now()), nil
}

// Clear drops the identifier's counter, typically after a successful login.
func (s *LockoutService) Clear(ctx context.Context, identifier string) error {
	return s.Store.LoginAttempts().DeleteLoginAttempt(ctx, identifier)
}
