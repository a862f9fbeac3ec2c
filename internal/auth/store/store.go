package store

import (
	"context"
	"errors"
	"time"

	"github.com/halcyonlabs/authcore/internal/auth/domain"
)

var (
	ErrNotFound      = errors.New("store: not found")
	ErrAlreadyExists = errors.New("store: already exists")
)

// Store is the root data access interface for the durable record store.
// Concrete drivers (sqlite today) implement this. It exposes sub-repositories
// to keep concerns tidy and testable.
type Store interface {
	Accounts() Accounts
	RefreshTokens() RefreshTokens
	AuthEvents() AuthEvents
	LoginAttempts() LoginAttempts
	MFAFactors() MFAFactors

	ApplyMigrations() error

	// Tx starts a read/write transaction and returns a Tx-scoped Store.
	Tx(ctx context.Context) (Tx, error)

	// WithTx executes a function within a transaction.
	// If fn returns an error, the transaction is rolled back.
	// If fn returns nil, the transaction is committed.
	WithTx(ctx context.Context, fn func(tx Tx) error) error

	// Close releases any underlying resources.
	Close() error

	// Ping verifies the database connection is still alive.
	Ping(ctx context.Context) error
}

// Tx is a transactional store. It embeds the same repos but adds Commit/Rollback.
type Tx interface {
	Store
	Commit() error
	Rollback() error
}

type Accounts interface {
	// CreateAccount inserts a new account (id is provided by app via ULID).
	// Returns ErrAlreadyExists when the email is taken.
	CreateAccount(ctx context.Context, a domain.Account) error

	GetAccountByID(ctx context.Context, id string) (domain.Account, error)
	GetAccountByEmail(ctx context.Context, email string) (domain.Account, error)

	// GetAccountByVerificationToken looks an account up by its pending
	// email-verification token.
	GetAccountByVerificationToken(ctx context.Context, token string) (domain.Account, error)

	// GetAccountByResetToken looks an account up by its pending
	// password-reset token.
	GetAccountByResetToken(ctx context.Context, token string) (domain.Account, error)

	// UpdatePasswordHash sets the password_hash (argon2id) and bumps updated_at.
	UpdatePasswordHash(ctx context.Context, accountID, newHash string) error

	// SetVerificationToken stores a pending email-verification token with expiry.
	SetVerificationToken(ctx context.Context, accountID, token string, expires time.Time) error

	// MarkVerified flips verified and clears the verification token fields.
	MarkVerified(ctx context.Context, accountID string) error

	// SetResetToken stores a pending password-reset token with expiry.
	SetResetToken(ctx context.Context, accountID, token string, expires time.Time) error

	// ClearResetToken removes the pending password-reset token fields.
	ClearResetToken(ctx context.Context, accountID string) error

	// IncrementFailedLogins atomically bumps the failed-attempt counter in a
	// single conditional update and returns the post-increment count, so
	// concurrent failed logins cannot lose updates.
	IncrementFailedLogins(ctx context.Context, accountID string) (int, error)

	// ResetFailedLogins zeroes the failed-attempt counter.
	ResetFailedLogins(ctx context.Context, accountID string) error

	// Lock sets locked_until and zeroes the failed-attempt counter.
	Lock(ctx context.Context, accountID string, until time.Time) error

	// Unlock clears locked_until and zeroes the failed-attempt counter.
	Unlock(ctx context.Context, accountID string) error

	// UpdateLastLogin stamps the last successful login time.
	UpdateLastLogin(ctx context.Context, accountID string, at time.Time) error

	// ClearExpiredVerificationTokens removes verification tokens whose expiry
	// has passed on still-unverified accounts.
	ClearExpiredVerificationTokens(ctx context.Context, now time.Time) error
}

type RefreshTokens interface {
	// CreateRefreshToken stores a new refresh token record.
	CreateRefreshToken(ctx context.Context, t domain.RefreshToken) error

	// GetRefreshTokenByHash returns the token by its SHA-256 fingerprint.
	GetRefreshTokenByHash(ctx context.Context, hash string) (domain.RefreshToken, error)

	// CompareAndRevoke flips revoked only when the row is still unrevoked.
	// It reports whether this caller won the flip, making it the
	// compare-and-set that guarantees at most one concurrent rotation
	// succeeds for a given token.
	CompareAndRevoke(ctx context.Context, hash string) (bool, error)

	// RevokeRefreshToken flips revoked unconditionally (logout).
	RevokeRefreshToken(ctx context.Context, hash string) error

	// RevokeAllForAccount bulk-revokes every token owned by the account.
	RevokeAllForAccount(ctx context.Context, accountID string) error

	// DeleteExpiredRefreshTokens is housekeeping.
	DeleteExpiredRefreshTokens(ctx context.Context, before time.Time) error
}

type AuthEvents interface {
	// AppendAuthEvent writes one immutable audit record.
	AppendAuthEvent(ctx context.Context, e domain.AuthEvent) error

	// ListByAccount returns the account's most recent events, newest first.
	ListByAccount(ctx context.Context, accountID string, limit int) ([]domain.AuthEvent, error)

	// ListByAccountAndType returns the account's most recent events of one
	// type, newest first.
	ListByAccountAndType(ctx context.Context, accountID string, t domain.EventType, limit int) ([]domain.AuthEvent, error)

	// ListByAccountSince returns the account's events newer than since,
	// newest first.
	ListByAccountSince(ctx context.Context, accountID string, since time.Time) ([]domain.AuthEvent, error)
}

type LoginAttempts interface {
	// UpsertFailure increments the failure counter for the identifier in a
	// single atomic upsert. When the post-increment count reaches threshold
	// the row's blocked_until is stamped with blockedUntil in the same
	// statement. Returns the updated row.
	UpsertFailure(ctx context.Context, identifier string, threshold int, blockedUntil time.Time) (domain.LoginAttempt, error)

	GetLoginAttempt(ctx context.Context, identifier string) (domain.LoginAttempt, error)

	// DeleteLoginAttempt clears the counter (login success).
	DeleteLoginAttempt(ctx context.Context, identifier string) error

	// DeleteStaleLoginAttempts is housekeeping: rows untouched since before
	// and no longer blocking anyone.
	DeleteStaleLoginAttempts(ctx context.Context, before time.Time) error
}

type MFAFactors interface {
	// CreateMFAFactor inserts a factor. Returns ErrAlreadyExists when the
	// (account, type) pair already has one.
	CreateMFAFactor(ctx context.Context, f domain.MFAFactor) error

	GetMFAFactor(ctx context.Context, accountID string, t domain.MFAType) (domain.MFAFactor, error)

	// ListEnabled returns the account's enabled factors.
	ListEnabled(ctx context.Context, accountID string) ([]domain.MFAFactor, error)

	// UpdateEnrollment replaces the sealed secret and backup codes of a
	// still-pending factor (re-enrollment before first verification).
	UpdateEnrollment(ctx context.Context, factorID string, secret, backupCodes []byte) error

	// Enable transitions a factor pending -> enabled and stamps verified_at.
	Enable(ctx context.Context, factorID string, verifiedAt time.Time) error

	// UpdateBackupCodes replaces the sealed backup-code list.
	UpdateBackupCodes(ctx context.Context, factorID string, backupCodes []byte) error

	// DeleteMFAFactor removes the factor entirely.
	DeleteMFAFactor(ctx context.Context, accountID string, t domain.MFAType) error
}
