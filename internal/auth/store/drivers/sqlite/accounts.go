package sqlite

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/halcyonlabs/authcore/internal/auth/domain"
	"github.com/halcyonlabs/authcore/internal/auth/store"
)

type accountsRepo struct {
	q querier
}

const accountColumns = `id, email, password_hash, first_name, last_name, roles,
	verified, active, verification_token, verification_expires_at,
	reset_token, reset_expires_at, failed_login_attempts, locked_until,
	last_login_at, created_at, updated_at`

func (r *accountsRepo) CreateAccount(ctx context.Context, a domain.Account) error {
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO accounts (
			id, email, password_hash, first_name, last_name, roles,
			verified, active, verification_token, verification_expires_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID,
		a.Email,
		a.PasswordHash,
		a.FirstName,
		a.LastName,
		strings.Join(a.Roles, " "),
		a.Verified,
		a.Active,
		mapStringNull(a.EmailVerificationToken),
		mapOptionalTime(a.EmailVerificationExpires),
	)
	if isUniqueViolation(err) {
		return store.ErrAlreadyExists
	}
	return err
}

func (r *accountsRepo) GetAccountByID(ctx context.Context, id string) (domain.Account, error) {
	row := r.q.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE id = ?`, id)
	return scanAccount(row)
}

func (r *accountsRepo) GetAccountByEmail(ctx context.Context, email string) (domain.Account, error) {
	row := r.q.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE email = ?`, email)
	return scanAccount(row)
}

func (r *accountsRepo) GetAccountByVerificationToken(ctx context.Context, token string) (domain.Account, error) {
	row := r.q.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE verification_token = ?`, token)
	return scanAccount(row)
}

func (r *accountsRepo) GetAccountByResetToken(ctx context.Context, token string) (domain.Account, error) {
	row := r.q.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE reset_token = ?`, token)
	return scanAccount(row)
}

func (r *accountsRepo) UpdatePasswordHash(ctx context.Context, accountID, newHash string) error {
	return r.exec(ctx, `
		UPDATE accounts
		SET password_hash = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?`, newHash, accountID)
}

func (r *accountsRepo) SetVerificationToken(ctx context.Context, accountID, token string, expires time.Time) error {
	return r.exec(ctx, `
		UPDATE accounts
		SET verification_token = ?, verification_expires_at = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?`, token, expires.UTC(), accountID)
}

func (r *accountsRepo) MarkVerified(ctx context.Context, accountID string) error {
	return r.exec(ctx, `
		UPDATE accounts
		SET verified = 1, verification_token = NULL, verification_expires_at = NULL,
		    updated_at = CURRENT_TIMESTAMP
		WHERE id = ?`, accountID)
}

func (r *accountsRepo) SetResetToken(ctx context.Context, accountID, token string, expires time.Time) error {
	return r.exec(ctx, `
		UPDATE accounts
		SET reset_token = ?, reset_expires_at = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?`, token, expires.UTC(), accountID)
}

func (r *accountsRepo) ClearResetToken(ctx context.Context, accountID string) error {
	return r.exec(ctx, `
		UPDATE accounts
		SET reset_token = NULL, reset_expires_at = NULL, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?`, accountID)
}

// IncrementFailedLogins bumps the counter in one statement so two concurrent
// failed logins both land; RETURNING hands back the post-increment count.
func (r *accountsRepo) IncrementFailedLogins(ctx context.Context, accountID string) (int, error) {
	row := r.q.QueryRowContext(ctx, `
		UPDATE accounts
		SET failed_login_attempts = failed_login_attempts + 1,
		    updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
		RETURNING failed_login_attempts`, accountID)

	var count int
	if err := row.Scan(&count); err != nil {
		return 0, mapNotFound(err)
	}
	return count, nil
}

func (r *accountsRepo) ResetFailedLogins(ctx context.Context, accountID string) error {
	return r.exec(ctx, `
		UPDATE accounts
		SET failed_login_attempts = 0, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?`, accountID)
}

func (r *accountsRepo) Lock(ctx context.Context, accountID string, until time.Time) error {
	return r.exec(ctx, `
		UPDATE accounts
		SET locked_until = ?, failed_login_attempts = 0, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?`, until.UTC(), accountID)
}

func (r *accountsRepo) Unlock(ctx context.Context, accountID string) error {
	return r.exec(ctx, `
		UPDATE accounts
		SET locked_until = NULL, failed_login_attempts = 0, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?`, accountID)
}

func (r *accountsRepo) UpdateLastLogin(ctx context.Context, accountID string, at time.Time) error {
	return r.exec(ctx, `
		UPDATE accounts
		SET last_login_at = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?`, at.UTC(), accountID)
}

// ClearExpiredVerificationTokens is a bulk cleanup; affecting zero rows is
// not an error, so it bypasses exec.
func (r *accountsRepo) ClearExpiredVerificationTokens(ctx context.Context, now time.Time) error {
	_, err := r.q.ExecContext(ctx, `
		UPDATE accounts
		SET verification_token = NULL, verification_expires_at = NULL,
		    updated_at = CURRENT_TIMESTAMP
		WHERE verified = 0
		  AND verification_token IS NOT NULL
		  AND verification_expires_at < ?`, now.UTC())
	return err
}

func (r *accountsRepo) exec(ctx context.Context, query string, args ...any) error {
	res, err := r.q.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccount(row rowScanner) (domain.Account, error) {
	var (
		a                   domain.Account
		roles               string
		verificationToken   sql.NullString
		verificationExpires sql.NullTime
		resetToken          sql.NullString
		resetExpires        sql.NullTime
		lockedUntil         sql.NullTime
		lastLogin           sql.NullTime
	)

	err := row.Scan(
		&a.ID,
		&a.Email,
		&a.PasswordHash,
		&a.FirstName,
		&a.LastName,
		&roles,
		&a.Verified,
		&a.Active,
		&verificationToken,
		&verificationExpires,
		&resetToken,
		&resetExpires,
		&a.FailedLoginAttempts,
		&lockedUntil,
		&lastLogin,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		return domain.Account{}, mapNotFound(err)
	}

	a.Roles = splitAndFilter(roles)
	a.EmailVerificationToken = mapNullString(verificationToken)
	a.EmailVerificationExpires = mapNullTimePtr(verificationExpires)
	a.PasswordResetToken = mapNullString(resetToken)
	a.PasswordResetExpires = mapNullTimePtr(resetExpires)
	a.LockedUntil = mapNullTimePtr(lockedUntil)
	a.LastLogin = mapNullTimePtr(lastLogin)
	return a, nil
}
