package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/halcyonlabs/authcore/internal/auth/domain"
	"github.com/halcyonlabs/authcore/internal/auth/store"
	"github.com/halcyonlabs/authcore/pkg/idx"
	"github.com/halcyonlabs/authcore/pkg/slogx"
)

// DefaultHistoryLimit caps History reads when the caller passes no limit.
const DefaultHistoryLimit = 50

// AuditService appends immutable security events and exposes read access
// for reporting callers. Events are written once and never mutated.
type AuditService struct {
	Store store.Store
}

// Record appends one event. ID and CreatedAt are filled in when zero.
func (s *AuditService) Record(ctx context.Context, e domain.AuthEvent) error {
	if e.ID == "" {
		e.ID = idx.New().String()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	return s.Store.AuthEvents().AppendAuthEvent(ctx, e)
}

// RecordBestEffort appends one event and only logs on failure. Audit write
// errors must never mask the outcome of the operation being audited.
func (s *AuditService) RecordBestEffort(ctx context.Context, e domain.AuthEvent) {
	if err := s.Record(ctx, e); err != nil {
		slogx.FromContext(ctx).Error("audit write failed",
			slog.String("event_type", string(e.Type)),
			slog.String("account_id", e.AccountID),
			slog.Any("error", err),
		)
	}
}

// History returns the account's most recent events, newest first.
func (s *AuditService) History(ctx context.Context, accountID string, limit int) ([]domain.AuthEvent, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	return s.Store.AuthEvents().ListByAccount(ctx, accountID, limit)
}

// SecuritySummary aggregates the account's events over the trailing number
// of days for admin reporting.
func (s *AuditService) SecuritySummary(ctx context.Context, accountID string, days int) (domain.SecuritySummary, error) {
	if days <= 0 {
		days = 30
	}
	since := time.Now().AddDate(0, 0, -days)

	events, err := s.Store.AuthEvents().ListByAccountSince(ctx, accountID, since)
	if err != nil {
		return domain.SecuritySummary{}, err
	}

	summary := domain.SecuritySummary{TotalEvents: len(events)}
	ips := make(map[string]struct{})
	for _, e := range events {
		switch e.Type {
		case domain.EventLoginSuccess:
			summary.SuccessfulLogins++
		case domain.EventLoginFailed:
			summary.FailedLogins++
		case domain.EventSuspiciousActivity:
			summary.SuspiciousActivities++
		}
		if e.IPAddress != "" {
			ips[e.IPAddress] = struct{}{}
		}
	}
	summary.UniqueIPs = len(ips)

	if len(events) > 10 {
		events = events[:10]
	}
	summary.RecentEvents = events
	return summary, nil
}
