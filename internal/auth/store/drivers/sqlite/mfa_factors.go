package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/halcyonlabs/authcore/internal/auth/domain"
	"github.com/halcyonlabs/authcore/internal/auth/store"
)

type mfaFactorsRepo struct {
	q querier
}

func (r *mfaFactorsRepo) CreateMFAFactor(ctx context.Context, f domain.MFAFactor) error {
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO mfa_factors (id, account_id, type, secret, backup_codes, enabled, verified_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		f.ID,
		f.AccountID,
		string(f.Type),
		f.Secret,
		f.BackupCodes,
		f.Enabled,
		mapOptionalTime(f.VerifiedAt),
	)
	if isUniqueViolation(err) {
		return store.ErrAlreadyExists
	}
	return err
}

func (r *mfaFactorsRepo) GetMFAFactor(ctx context.Context, accountID string, t domain.MFAType) (domain.MFAFactor, error) {
	row := r.q.QueryRowContext(ctx, `
		SELECT id, account_id, type, secret, backup_codes, enabled, verified_at, created_at
		FROM mfa_factors
		WHERE account_id = ? AND type = ?`, accountID, string(t))
	return scanMFAFactor(row)
}

func (r *mfaFactorsRepo) ListEnabled(ctx context.Context, accountID string) ([]domain.MFAFactor, error) {
	rows, err := r.q.QueryContext(ctx, `
		SELECT id, account_id, type, secret, backup_codes, enabled, verified_at, created_at
		FROM mfa_factors
		WHERE account_id = ? AND enabled = 1
		ORDER BY created_at`, accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.MFAFactor
	for rows.Next() {
		f, err := scanMFAFactor(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

func (r *mfaFactorsRepo) UpdateEnrollment(ctx context.Context, factorID string, secret, backupCodes []byte) error {
	res, err := r.q.ExecContext(ctx, `
		UPDATE mfa_factors
		SET secret = ?, backup_codes = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND enabled = 0`, secret, backupCodes, factorID)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

func (r *mfaFactorsRepo) Enable(ctx context.Context, factorID string, verifiedAt time.Time) error {
	res, err := r.q.ExecContext(ctx, `
		UPDATE mfa_factors
		SET enabled = 1, verified_at = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?`, verifiedAt.UTC(), factorID)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

func (r *mfaFactorsRepo) UpdateBackupCodes(ctx context.Context, factorID string, backupCodes []byte) error {
	res, err := r.q.ExecContext(ctx, `
		UPDATE mfa_factors
		SET backup_codes = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?`, backupCodes, factorID)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

func (r *mfaFactorsRepo) DeleteMFAFactor(ctx context.Context, accountID string, t domain.MFAType) error {
	res, err := r.q.ExecContext(ctx, `
		DELETE FROM mfa_factors WHERE account_id = ? AND type = ?`, accountID, string(t))
	if err != nil {
		return err
	}
	return requireAffected(res)
}

func requireAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}

func scanMFAFactor(row rowScanner) (domain.MFAFactor, error) {
	var (
		f          domain.MFAFactor
		typ        string
		verifiedAt sql.NullTime
	)
	err := row.Scan(&f.ID, &f.AccountID, &typ, &f.Secret, &f.BackupCodes, &f.Enabled, &verifiedAt, &f.CreatedAt)
	if err != nil {
		return domain.MFAFactor{}, mapNotFound(err)
	}
	f.Type = domain.MFAType(typ)
	f.VerifiedAt = mapNullTimePtr(verifiedAt)
	return f, nil
}
