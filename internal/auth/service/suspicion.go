package service

import (
	"context"
	"log/slog"
	"strconv"

	"github.com/halcyonlabs/authcore/internal/auth/domain"
	"github.com/halcyonlabs/authcore/internal/auth/store"
	"github.com/halcyonlabs/authcore/pkg/slogx"
)

const (
	// suspicionSampleSize is how many recent successful logins are examined.
	suspicionSampleSize = 10

	// suspicionDistinctIPs is the distinct-IP count above which the sample
	// is flagged.
	suspicionDistinctIPs = 3
)

// SuspicionService flags accounts whose recent successful logins spread
// across too many source addresses. It only observes: a flag writes an
// audit event and nothing else. It never blocks a login or demands a second
// factor.
type SuspicionService struct {
	Store store.Store
	Audit *AuditService
}

// Evaluate inspects the account's recent login history and reports whether
// it was flagged.
func (s *SuspicionService) Evaluate(ctx context.Context, accountID, ip, userAgent string) (bool, error) {
	events, err := s.Store.AuthEvents().ListByAccountAndType(ctx, accountID, domain.EventLoginSuccess, suspicionSampleSize)
	if err != nil {
		return false, err
	}

	ips := make(map[string]struct{}, len(events))
	for _, e := range events {
		if e.IPAddress != "" {
			ips[e.IPAddress] = struct{}{}
		}
	}
	if len(ips) <= suspicionDistinctIPs {
		return false, nil
	}

	slogx.FromContext(ctx).Warn("suspicious login pattern",
		slog.String("account_id", accountID),
		slog.Int("distinct_ips", len(ips)),
	)
	s.Audit.RecordBestEffort(ctx, domain.AuthEvent{
		AccountID: accountID,
		Type:      domain.EventSuspiciousActivity,
		IPAddress: ip,
		UserAgent: userAgent,
		Metadata:  map[string]string{"distinct_ips": strconv.Itoa(len(ips))},
		Success:   true,
	})
	return true, nil
}
