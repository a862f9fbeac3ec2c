package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/halcyonlabs/authcore/internal/auth/domain"
	"github.com/halcyonlabs/authcore/internal/auth/store"
	"github.com/halcyonlabs/authcore/pkg/cryptox"
	"github.com/halcyonlabs/authcore/pkg/slogx"
)

// CredentialService checks an email/password pair against the account
// record. Unknown and inactive emails fail with the same signal as a wrong
// password so callers cannot probe which addresses exist.
type CredentialService struct {
	Store store.Store
	Audit *AuditService
}

// Validate returns the account on success. A locked account fails with
// ErrAccountLocked before the password is even checked, so a correct
// password cannot be confirmed against a locked account.
func (s *CredentialService) Validate(ctx context.Context, email, password string) (domain.Account, error) {
	account, err := s.Store.Accounts().GetAccountByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.Account{}, ErrInvalidCredentials
		}
		return domain.Account{}, err
	}
	if !account.Active {
		return domain.Account{}, ErrInvalidCredentials
	}

	if account.IsLocked() {
		return domain.Account{}, ErrAccountLocked
	}

	if err := cryptox.VerifyPassword(password, account.PasswordHash); err != nil {
		if !errors.Is(err, cryptox.ErrPasswordMismatch) {
			return domain.Account{}, err
		}
		if err := s.registerFailure(ctx, account); err != nil {
			return domain.Account{}, err
		}
		return domain.Account{}, ErrInvalidCredentials
	}

	return account, nil
}

// registerFailure bumps the account's failure counter and locks the account
// at the threshold. The increment is one conditional update so concurrent
// failures all land.
func (s *CredentialService) registerFailure(ctx context.Context, account domain.Account) error {
	count, err := s.Store.Accounts().IncrementFailedLogins(ctx, account.ID)
	if err != nil {
		return err
	}
	if count < LockoutThreshold {
		return nil
	}

	until := time.Now().Add(LockoutDuration)
	if err := s.Store.Accounts().Lock(ctx, account.ID, until); err != nil {
		return err
	}

	slogx.FromContext(ctx).Warn("account locked after repeated failures",
		slog.String("account_id", account.ID),
		slog.Time("locked_until", until),
	)
	s.Audit.RecordBestEffort(ctx, domain.AuthEvent{
		AccountID: account.ID,
		Type:      domain.EventAccountLocked,
		Metadata:  map[string]string{"failed_attempts": "5"},
		Success:   true,
	})
	return nil
}
