package sqlite

import (
	"context"
	"time"

	"github.com/halcyonlabs/authcore/internal/auth/domain"
	"github.com/halcyonlabs/authcore/internal/auth/store"
)

type refreshTokensRepo struct {
	q querier
}

func (r *refreshTokensRepo) CreateRefreshToken(ctx context.Context, t domain.RefreshToken) error {
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO refresh_tokens (id, account_id, token_hash, device_info, ip_address, expires_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		t.ID,
		t.AccountID,
		t.TokenHash,
		t.DeviceInfo,
		t.IPAddress,
		t.ExpiresAt.UTC(),
	)
	if isUniqueViolation(err) {
		return store.ErrAlreadyExists
	}
	return err
}

func (r *refreshTokensRepo) GetRefreshTokenByHash(ctx context.Context, hash string) (domain.RefreshToken, error) {
	row := r.q.QueryRowContext(ctx, `
		SELECT id, account_id, token_hash, device_info, ip_address, revoked, expires_at, created_at
		FROM refresh_tokens
		WHERE token_hash = ?`, hash)

	var t domain.RefreshToken
	err := row.Scan(
		&t.ID,
		&t.AccountID,
		&t.TokenHash,
		&t.DeviceInfo,
		&t.IPAddress,
		&t.Revoked,
		&t.ExpiresAt,
		&t.CreatedAt,
	)
	if err != nil {
		return domain.RefreshToken{}, mapNotFound(err)
	}
	return t, nil
}

// CompareAndRevoke is the guarded flip behind single-use rotation: the WHERE
// clause only matches a still-active row, so of N concurrent callers exactly
// one sees RowsAffected == 1.
func (r *refreshTokensRepo) CompareAndRevoke(ctx context.Context, hash string) (bool, error) {
	res, err := r.q.ExecContext(ctx, `
		UPDATE refresh_tokens
		SET revoked = 1, updated_at = CURRENT_TIMESTAMP
		WHERE token_hash = ? AND revoked = 0`, hash)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (r *refreshTokensRepo) RevokeRefreshToken(ctx context.Context, hash string) error {
	res, err := r.q.ExecContext(ctx, `
		UPDATE refresh_tokens
		SET revoked = 1, updated_at = CURRENT_TIMESTAMP
		WHERE token_hash = ?`, hash)
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

func (r *refreshTokensRepo) RevokeAllForAccount(ctx context.Context, accountID string) error {
	_, err := r.q.ExecContext(ctx, `
		UPDATE refresh_tokens
		SET revoked = 1, updated_at = CURRENT_TIMESTAMP
		WHERE account_id = ? AND revoked = 0`, accountID)
	return err
}

func (r *refreshTokensRepo) DeleteExpiredRefreshTokens(ctx context.Context, before time.Time) error {
	_, err := r.q.ExecContext(ctx, `
		DELETE FROM refresh_tokens WHERE expires_at < ?`, before.UTC())
	return err
}
