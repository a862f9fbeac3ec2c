package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/halcyonlabs/authcore/internal/auth/domain"
	"github.com/halcyonlabs/authcore/pkg/cryptox"
)

func TestIssuePersistsHashNotToken(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	account := env.registerVerified(t, "a@x.com", "Passw0rd!1")

	pair, err := env.tokens.Issue(ctx, account, "laptop", "203.0.113.1")
	require.NoError(t, err)
	require.Len(t, pair.RefreshToken, 64)

	// Only the fingerprint is stored; the opaque value itself is not a key.
	record, err := env.store.RefreshTokens().GetRefreshTokenByHash(ctx, cryptox.FingerprintToken(pair.RefreshToken))
	require.NoError(t, err)
	require.Equal(t, account.ID, record.AccountID)
	require.Equal(t, "laptop", record.DeviceInfo)
	require.WithinDuration(t, time.Now().Add(DefaultRefreshTokenTTL), record.ExpiresAt, time.Minute)

	ok, err := env.tokens.IsAccessTokenValid(ctx, pair.AccessToken, account.ID)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestRotateSpentTokenFails(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	account := env.registerVerified(t, "a@x.com", "Passw0rd!1")

	pair, err := env.tokens.Issue(ctx, account, "", "")
	require.NoError(t, err)

	fresh, accountID, err := env.tokens.Rotate(ctx, pair.RefreshToken)
	require.NoError(t, err)
	require.Equal(t, account.ID, accountID)
	require.NotEqual(t, pair.RefreshToken, fresh.RefreshToken)

	_, _, err = env.tokens.Rotate(ctx, pair.RefreshToken)
	require.ErrorIs(t, err, ErrTokenInvalid)
}

func TestRotateUnknownAndExpired(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	account := env.registerVerified(t, "a@x.com", "Passw0rd!1")

	_, _, err := env.tokens.Rotate(ctx, "never-issued")
	require.ErrorIs(t, err, ErrTokenInvalid)

	opaque, err := cryptox.GenerateToken(cryptox.TokenSize256)
	require.NoError(t, err)
	require.NoError(t, env.store.RefreshTokens().CreateRefreshToken(ctx, domain.RefreshToken{
		ID:        "expired-row",
		AccountID: account.ID,
		TokenHash: cryptox.FingerprintToken(opaque),
		ExpiresAt: time.Now().Add(-time.Minute),
	}))

	_, _, err = env.tokens.Rotate(ctx, opaque)
	require.ErrorIs(t, err, ErrTokenInvalid)
}

func TestConcurrentRotateExactlyOneWins(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	account := env.registerVerified(t, "a@x.com", "Passw0rd!1")

	pair, err := env.tokens.Issue(ctx, account, "", "")
	require.NoError(t, err)

	const callers = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		invalids  int
	)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, err := env.tokens.Rotate(ctx, pair.RefreshToken)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case errors.Is(err, ErrTokenInvalid):
				invalids++
			default:
				t.Errorf("unexpected rotate error: %v", err)
			}
		}()
	}
	wg.Wait()

	require.Equal(t, 1, successes)
	require.Equal(t, callers-1, invalids)
}

func TestRevokeAccessToken(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	account := env.registerVerified(t, "a@x.com", "Passw0rd!1")

	pair, err := env.tokens.Issue(ctx, account, "", "")
	require.NoError(t, err)

	require.NoError(t, env.tokens.RevokeAccessToken(ctx, pair.AccessToken, account.ID))
	ok, err := env.tokens.IsAccessTokenValid(ctx, pair.AccessToken, account.ID)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestAccessTokenAllowListExpires(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	account := env.registerVerified(t, "a@x.com", "Passw0rd!1")

	pair, err := env.tokens.Issue(ctx, account, "", "")
	require.NoError(t, err)

	env.mr.FastForward(16 * time.Minute)
	ok, err := env.tokens.IsAccessTokenValid(ctx, pair.AccessToken, account.ID)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestParseTokenTTL(t *testing.T) {
	cases := map[string]time.Duration{
		"7d":  7 * 24 * time.Hour,
		"12h": 12 * time.Hour,
		"30m": 30 * time.Minute,
		"45s": 45 * time.Second,
	}
	for raw, want := range cases {
		got, err := ParseTokenTTL(raw)
		require.NoError(t, err, raw)
		require.Equal(t, want, got, raw)
	}

	for _, raw := range []string{"", "d", "7", "7w", "-7d", "0h", "sevend"} {
		_, err := ParseTokenTTL(raw)
		require.ErrorIs(t, err, ErrValidation, raw)
	}
}
