package service

import (
	"context"
	"time"

	"github.com/halcyonlabs/authcore/internal/auth/cache"
)

// RateRule is one fixed-window budget for an action.
type RateRule struct {
	MaxAttempts int64
	Window      time.Duration
}

// Default budgets per action. Register and login key on source IP,
// forgot-password keys on the target email.
var (
	RuleRegister       = RateRule{MaxAttempts: 5, Window: time.Hour}
	RuleLogin          = RateRule{MaxAttempts: 10, Window: 15 * time.Minute}
	RuleForgotPassword = RateRule{MaxAttempts: 3, Window: time.Hour}
)

// RateLimitService enforces fixed-window budgets on Redis counters. Every
// check consumes an attempt; there is no separate peek-then-consume step, so
// two concurrent callers cannot both observe the last free slot.
type RateLimitService struct {
	Cache cache.Cache
}

// Allow consumes one attempt for key and reports whether it fit the budget.
func (s *RateLimitService) Allow(ctx context.Context, key string, rule RateRule) (bool, error) {
	count, err := s.Cache.IncrementWindow(ctx, "ratelimit:"+key, rule.Window)
	if err != nil {
		return false, err
	}
	return count <= rule.MaxAttempts, nil
}

// Check consumes one attempt and returns ErrRateLimited when over budget.
func (s *RateLimitService) Check(ctx context.Context, key string, rule RateRule) error {
	ok, err := s.Allow(ctx, key, rule)
	if err != nil {
		return err
	}
	if !ok {
		return ErrRateLimited
	}
	return nil
}
