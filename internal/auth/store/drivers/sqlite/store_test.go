package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/halcyonlabs/authcore/internal/auth/domain"
	"github.com/halcyonlabs/authcore/internal/auth/store"
	"github.com/halcyonlabs/authcore/pkg/idx"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	s, err := NewStore(":memory:")
	require.NoError(t, err)
	require.NoError(t, s.ApplyMigrations())

	t.Cleanup(func() { _ = s.Close() })
	return s
}

func seedAccount(t *testing.T, s *Store, email string) domain.Account {
	t.Helper()

	a := domain.Account{
		ID:           idx.New().String(),
		Email:        email,
		PasswordHash: "$argon2id$v=19$m=19456,t=2,p=1$c2FsdA$aGFzaA",
		FirstName:    "Test",
		LastName:     "User",
		Roles:        []string{"user"},
		Active:       true,
	}
	require.NoError(t, s.Accounts().CreateAccount(context.Background(), a))
	return a
}

func TestAccountsCreateAndGet(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	a := seedAccount(t, s, "alice@example.com")

	got, err := s.Accounts().GetAccountByEmail(ctx, "alice@example.com")
	require.NoError(t, err)
	require.Equal(t, a.ID, got.ID)
	require.Equal(t, []string{"user"}, got.Roles)
	require.False(t, got.Verified)
	require.True(t, got.Active)

	_, err = s.Accounts().GetAccountByEmail(ctx, "nobody@example.com")
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestAccountsDuplicateEmail(t *testing.T) {
	s := newTestStore(t)

	seedAccount(t, s, "alice@example.com")
	err := s.Accounts().CreateAccount(context.Background(), domain.Account{
		ID:           idx.New().String(),
		Email:        "alice@example.com",
		PasswordHash: "x",
		Active:       true,
	})
	require.ErrorIs(t, err, store.ErrAlreadyExists)
}

func TestAccountsFailedLoginCounter(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	a := seedAccount(t, s, "alice@example.com")

	for i := 1; i <= 3; i++ {
		n, err := s.Accounts().IncrementFailedLogins(ctx, a.ID)
		require.NoError(t, err)
		require.Equal(t, i, n)
	}

	require.NoError(t, s.Accounts().ResetFailedLogins(ctx, a.ID))
	got, err := s.Accounts().GetAccountByID(ctx, a.ID)
	require.NoError(t, err)
	require.Zero(t, got.FailedLoginAttempts)
}

func TestAccountsLockUnlock(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	a := seedAccount(t, s, "alice@example.com")

	until := time.Now().Add(15 * time.Minute)
	require.NoError(t, s.Accounts().Lock(ctx, a.ID, until))

	got, err := s.Accounts().GetAccountByID(ctx, a.ID)
	require.NoError(t, err)
	require.NotNil(t, got.LockedUntil)
	require.True(t, got.IsLocked())

	require.NoError(t, s.Accounts().Unlock(ctx, a.ID))
	got, err = s.Accounts().GetAccountByID(ctx, a.ID)
	require.NoError(t, err)
	require.Nil(t, got.LockedUntil)
}

func TestAccountsVerificationLifecycle(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	a := seedAccount(t, s, "alice@example.com")

	require.NoError(t, s.Accounts().SetVerificationToken(ctx, a.ID, "tok123", time.Now().Add(24*time.Hour)))

	got, err := s.Accounts().GetAccountByVerificationToken(ctx, "tok123")
	require.NoError(t, err)
	require.Equal(t, a.ID, got.ID)

	require.NoError(t, s.Accounts().MarkVerified(ctx, a.ID))
	_, err = s.Accounts().GetAccountByVerificationToken(ctx, "tok123")
	require.ErrorIs(t, err, store.ErrNotFound)

	got, err = s.Accounts().GetAccountByID(ctx, a.ID)
	require.NoError(t, err)
	require.True(t, got.Verified)
}

func TestRefreshTokensCompareAndRevoke(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	a := seedAccount(t, s, "alice@example.com")

	rt := domain.RefreshToken{
		ID:        idx.New().String(),
		AccountID: a.ID,
		TokenHash: "hash-1",
		ExpiresAt: time.Now().Add(time.Hour),
	}
	require.NoError(t, s.RefreshTokens().CreateRefreshToken(ctx, rt))

	won, err := s.RefreshTokens().CompareAndRevoke(ctx, "hash-1")
	require.NoError(t, err)
	require.True(t, won)

	// Second flip loses: the row is already revoked.
	won, err = s.RefreshTokens().CompareAndRevoke(ctx, "hash-1")
	require.NoError(t, err)
	require.False(t, won)

	got, err := s.RefreshTokens().GetRefreshTokenByHash(ctx, "hash-1")
	require.NoError(t, err)
	require.True(t, got.Revoked)
}

func TestRefreshTokensRevokeAllForAccount(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	a := seedAccount(t, s, "alice@example.com")
	b := seedAccount(t, s, "bob@example.com")

	for i, hash := range []string{"a-1", "a-2"} {
		require.NoError(t, s.RefreshTokens().CreateRefreshToken(ctx, domain.RefreshToken{
			ID:        idx.New().String(),
			AccountID: a.ID,
			TokenHash: hash,
			ExpiresAt: time.Now().Add(time.Duration(i+1) * time.Hour),
		}))
	}
	require.NoError(t, s.RefreshTokens().CreateRefreshToken(ctx, domain.RefreshToken{
		ID:        idx.New().String(),
		AccountID: b.ID,
		TokenHash: "b-1",
		ExpiresAt: time.Now().Add(time.Hour),
	}))

	require.NoError(t, s.RefreshTokens().RevokeAllForAccount(ctx, a.ID))

	for _, hash := range []string{"a-1", "a-2"} {
		got, err := s.RefreshTokens().GetRefreshTokenByHash(ctx, hash)
		require.NoError(t, err)
		require.True(t, got.Revoked)
	}
	got, err := s.RefreshTokens().GetRefreshTokenByHash(ctx, "b-1")
	require.NoError(t, err)
	require.False(t, got.Revoked)
}

func TestLoginAttemptsUpsertBlocksAtThreshold(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	blockUntil := time.Now().Add(15 * time.Minute)
	for i := 1; i <= 4; i++ {
		a, err := s.LoginAttempts().UpsertFailure(ctx, "alice@example.com", 5, blockUntil)
		require.NoError(t, err)
		require.Equal(t, i, a.Attempts)
		require.Nil(t, a.BlockedUntil)
	}

	a, err := s.LoginAttempts().UpsertFailure(ctx, "alice@example.com", 5, blockUntil)
	require.NoError(t, err)
	require.Equal(t, 5, a.Attempts)
	require.NotNil(t, a.BlockedUntil)
	require.True(t, a.IsBlocked(time.Now()))

	require.NoError(t, s.LoginAttempts().DeleteLoginAttempt(ctx, "alice@example.com"))
	_, err = s.LoginAttempts().GetLoginAttempt(ctx, "alice@example.com")
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestMFAFactorsUniquePerType(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	a := seedAccount(t, s, "alice@example.com")

	f := domain.MFAFactor{
		ID:        idx.New().String(),
		AccountID: a.ID,
		Type:      domain.MFATypeTOTP,
		Secret:    []byte("sealed-secret"),
	}
	require.NoError(t, s.MFAFactors().CreateMFAFactor(ctx, f))

	dup := f
	dup.ID = idx.New().String()
	require.ErrorIs(t, s.MFAFactors().CreateMFAFactor(ctx, dup), store.ErrAlreadyExists)
}

func TestMFAFactorsEnable(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	a := seedAccount(t, s, "alice@example.com")

	f := domain.MFAFactor{
		ID:        idx.New().String(),
		AccountID: a.ID,
		Type:      domain.MFATypeTOTP,
		Secret:    []byte("sealed"),
	}
	require.NoError(t, s.MFAFactors().CreateMFAFactor(ctx, f))

	enabled, err := s.MFAFactors().ListEnabled(ctx, a.ID)
	require.NoError(t, err)
	require.Empty(t, enabled)

	require.NoError(t, s.MFAFactors().Enable(ctx, f.ID, time.Now()))

	enabled, err = s.MFAFactors().ListEnabled(ctx, a.ID)
	require.NoError(t, err)
	require.Len(t, enabled, 1)
	require.True(t, enabled[0].Enabled)
	require.NotNil(t, enabled[0].VerifiedAt)

	// Re-enrollment is only allowed while pending.
	err = s.MFAFactors().UpdateEnrollment(ctx, f.ID, []byte("new"), nil)
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestAuthEventsListOrdering(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	a := seedAccount(t, s, "alice@example.com")

	base := time.Now().Add(-time.Hour)
	for i := 0; i < 5; i++ {
		require.NoError(t, s.AuthEvents().AppendAuthEvent(ctx, domain.AuthEvent{
			ID:        idx.New().String(),
			AccountID: a.ID,
			Type:      domain.EventLoginSuccess,
			IPAddress: "10.0.0.1",
			Success:   true,
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}))
	}

	events, err := s.AuthEvents().ListByAccount(ctx, a.ID, 3)
	require.NoError(t, err)
	require.Len(t, events, 3)
	require.True(t, events[0].CreatedAt.After(events[1].CreatedAt))

	since, err := s.AuthEvents().ListByAccountSince(ctx, a.ID, base.Add(2*time.Minute+30*time.Second))
	require.NoError(t, err)
	require.Len(t, since, 2)
}

func TestWithTxRollsBackOnError(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	err := s.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.Accounts().CreateAccount(ctx, domain.Account{
			ID:           idx.New().String(),
			Email:        "tx@example.com",
			PasswordHash: "x",
			Active:       true,
		}); err != nil {
			return err
		}
		return context.Canceled
	})
	require.ErrorIs(t, err, context.Canceled)

	_, err = s.Accounts().GetAccountByEmail(ctx, "tx@example.com")
	require.ErrorIs(t, err, store.ErrNotFound)
}
