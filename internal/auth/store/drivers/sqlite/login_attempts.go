package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/halcyonlabs/authcore/internal/auth/domain"
)

type loginAttemptsRepo struct {
	q querier
}

// UpsertFailure is a single-statement increment so concurrent failures for
// the same identifier cannot lose updates or race past the block threshold.
// blocked_until is stamped inside the same statement the moment the count
// reaches threshold.
func (r *loginAttemptsRepo) UpsertFailure(ctx context.Context, identifier string, threshold int, blockedUntil time.Time) (domain.LoginAttempt, error) {
	row := r.q.QueryRowContext(ctx, `
		INSERT INTO login_attempts (identifier, attempts, blocked_until)
		VALUES (?1, 1, CASE WHEN 1 >= ?2 THEN ?3 END)
		ON CONFLICT (identifier) DO UPDATE SET
			attempts      = login_attempts.attempts + 1,
			blocked_until = CASE
				WHEN login_attempts.attempts + 1 >= ?2 THEN ?3
				ELSE login_attempts.blocked_until
			END,
			updated_at    = CURRENT_TIMESTAMP
		RETURNING identifier, attempts, blocked_until, created_at, updated_at`,
		identifier, threshold, blockedUntil.UTC())

	return scanLoginAttempt(row)
}

func (r *loginAttemptsRepo) GetLoginAttempt(ctx context.Context, identifier string) (domain.LoginAttempt, error) {
	row := r.q.QueryRowContext(ctx, `
		SELECT identifier, attempts, blocked_until, created_at, updated_at
		FROM login_attempts
		WHERE identifier = ?`, identifier)
	return scanLoginAttempt(row)
}

func (r *loginAttemptsRepo) DeleteLoginAttempt(ctx context.Context, identifier string) error {
	_, err := r.q.ExecContext(ctx, `
		DELETE FROM login_attempts WHERE identifier = ?`, identifier)
	return err
}

func (r *loginAttemptsRepo) DeleteStaleLoginAttempts(ctx context.Context, before time.Time) error {
	_, err := r.q.ExecContext(ctx, `
		DELETE FROM login_attempts
		WHERE updated_at < ?1
		  AND (blocked_until IS NULL OR blocked_until < ?1)`, before.UTC())
	return err
}

func scanLoginAttempt(row rowScanner) (domain.LoginAttempt, error) {
	var (
		a       domain.LoginAttempt
		blocked sql.NullTime
	)
	if err := row.Scan(&a.Identifier, &a.Attempts, &blocked, &a.CreatedAt, &a.UpdatedAt); err != nil {
		return domain.LoginAttempt{}, mapNotFound(err)
	}
	a.BlockedUntil = mapNullTimePtr(blocked)
	return a, nil
}
