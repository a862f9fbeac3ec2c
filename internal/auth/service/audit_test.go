package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/halcyonlabs/authcore/internal/auth/domain"
	"github.com/halcyonlabs/authcore/internal/auth/store"
	"github.com/halcyonlabs/authcore/pkg/cryptox"
	"github.com/halcyonlabs/authcore/pkg/idx"
)

func TestSecuritySummary(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	account := env.registerVerified(t, "a@x.com", "Passw0rd!1")

	seed := []struct {
		typ     domain.EventType
		ip      string
		success bool
	}{
		{domain.EventLoginSuccess, "198.51.100.1", true},
		{domain.EventLoginSuccess, "198.51.100.2", true},
		{domain.EventLoginFailed, "198.51.100.3", false},
		{domain.EventSuspiciousActivity, "198.51.100.3", true},
		{domain.EventLogout, "198.51.100.1", true},
	}
	for _, e := range seed {
		require.NoError(t, env.audit.Record(ctx, domain.AuthEvent{
			AccountID: account.ID,
			Type:      e.typ,
			IPAddress: e.ip,
			Success:   e.success,
		}))
	}

	summary, err := env.audit.SecuritySummary(ctx, account.ID, 30)
	require.NoError(t, err)
	// The register/verify flow wrote two events of its own.
	require.Equal(t, len(seed)+2, summary.TotalEvents)
	require.Equal(t, 3, summary.SuccessfulLogins) // register counts as one
	require.Equal(t, 1, summary.FailedLogins)
	require.Equal(t, 1, summary.SuspiciousActivities)
	require.Equal(t, 4, summary.UniqueIPs)
	require.NotEmpty(t, summary.RecentEvents)
}

func TestHistoryNewestFirst(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	account := env.registerVerified(t, "a@x.com", "Passw0rd!1")

	base := time.Now().Add(-time.Hour)
	for i := 0; i < 5; i++ {
		require.NoError(t, env.audit.Record(ctx, domain.AuthEvent{
			ID:        idx.New().String(),
			AccountID: account.ID,
			Type:      domain.EventLoginSuccess,
			Success:   true,
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}))
	}

	events, err := env.audit.History(ctx, account.ID, 3)
	require.NoError(t, err)
	require.Len(t, events, 3)
	require.True(t, events[0].CreatedAt.After(events[1].CreatedAt))
}

func TestHousekeepingCleanup(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	account := env.registerVerified(t, "a@x.com", "Passw0rd!1")

	live, err := env.tokens.Issue(ctx, account, "", "")
	require.NoError(t, err)

	expiredOpaque, err := cryptox.GenerateToken(cryptox.TokenSize256)
	require.NoError(t, err)
	expiredHash := cryptox.FingerprintToken(expiredOpaque)
	require.NoError(t, env.store.RefreshTokens().CreateRefreshToken(ctx, domain.RefreshToken{
		ID:        idx.New().String(),
		AccountID: account.ID,
		TokenHash: expiredHash,
		ExpiresAt: time.Now().Add(-time.Hour),
	}))

	_, err = env.auth.Register(ctx, RegisterInput{
		Email: "stale@x.com", Password: "Passw0rd!1", FirstName: "S", LastName: "T",
	}, "203.0.113.9", "go-test")
	require.NoError(t, err)
	staleToken := env.mailer.lastVerificationToken(t)
	stale, err := env.store.Accounts().GetAccountByEmail(ctx, "stale@x.com")
	require.NoError(t, err)
	require.NoError(t, env.store.Accounts().SetVerificationToken(ctx, stale.ID, staleToken, time.Now().Add(-time.Minute)))

	hk := NewHousekeepingService(env.store, discardLogger(), time.Hour)
	hk.Cleanup()

	_, err = env.store.RefreshTokens().GetRefreshTokenByHash(ctx, expiredHash)
	require.Error(t, err)

	_, err = env.store.RefreshTokens().GetRefreshTokenByHash(ctx, cryptox.FingerprintToken(live.RefreshToken))
	require.NoError(t, err)

	_, err = env.store.Accounts().GetAccountByVerificationToken(ctx, staleToken)
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestHousekeepingStartStop(t *testing.T) {
	env := newTestEnv(t)

	hk := NewHousekeepingService(env.store, discardLogger(), time.Hour)
	hk.Start()
	hk.Stop()
}
