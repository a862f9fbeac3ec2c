package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/halcyonlabs/authcore/internal/auth/domain"
)

type authEventsRepo struct {
	q querier
}

func (r *authEventsRepo) AppendAuthEvent(ctx context.Context, e domain.AuthEvent) error {
	meta := e.Metadata
	if meta == nil {
		meta = map[string]string{}
	}
	blob, err := json.Marshal(meta)
	if err != nil {
		return err
	}

	_, err = r.q.ExecContext(ctx, `
		INSERT INTO auth_events (id, account_id, event_type, ip_address, user_agent, metadata, success, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID,
		e.AccountID,
		string(e.Type),
		e.IPAddress,
		e.UserAgent,
		string(blob),
		e.Success,
		e.CreatedAt.UTC(),
	)
	return err
}

func (r *authEventsRepo) ListByAccount(ctx context.Context, accountID string, limit int) ([]domain.AuthEvent, error) {
	rows, err := r.q.QueryContext(ctx, `
		SELECT id, account_id, event_type, ip_address, user_agent, metadata, success, created_at
		FROM auth_events
		WHERE account_id = ?
		ORDER BY created_at DESC, id DESC
		LIMIT ?`, accountID, limit)
	if err != nil {
		return nil, err
	}
	return scanAuthEvents(rows)
}

func (r *authEventsRepo) ListByAccountAndType(ctx context.Context, accountID string, t domain.EventType, limit int) ([]domain.AuthEvent, error) {
	rows, err := r.q.QueryContext(ctx, `
		SELECT id, account_id, event_type, ip_address, user_agent, metadata, success, created_at
		FROM auth_events
		WHERE account_id = ? AND event_type = ?
		ORDER BY created_at DESC, id DESC
		LIMIT ?`, accountID, string(t), limit)
	if err != nil {
		return nil, err
	}
	return scanAuthEvents(rows)
}

func (r *authEventsRepo) ListByAccountSince(ctx context.Context, accountID string, since time.Time) ([]domain.AuthEvent, error) {
	rows, err := r.q.QueryContext(ctx, `
		SELECT id, account_id, event_type, ip_address, user_agent, metadata, success, created_at
		FROM auth_events
		WHERE account_id = ? AND created_at > ?
		ORDER BY created_at DESC, id DESC`, accountID, since.UTC())
	if err != nil {
		return nil, err
	}
	return scanAuthEvents(rows)
}

func scanAuthEvents(rows *sql.Rows) ([]domain.AuthEvent, error) {
	defer rows.Close()

	var out []domain.AuthEvent
	for rows.Next() {
		var (
			e    domain.AuthEvent
			typ  string
			meta string
		)
		if err := rows.Scan(&e.ID, &e.AccountID, &typ, &e.IPAddress, &e.UserAgent, &meta, &e.Success, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.Type = domain.EventType(typ)
		if meta != "" {
			if err := json.Unmarshal([]byte(meta), &e.Metadata); err != nil {
				return nil, err
			}
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
