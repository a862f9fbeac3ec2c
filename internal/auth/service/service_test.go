package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/halcyonlabs/authcore/internal/auth/cache"
	"github.com/halcyonlabs/authcore/internal/auth/domain"
	"github.com/halcyonlabs/authcore/internal/auth/store/drivers/sqlite"
	"github.com/halcyonlabs/authcore/pkg/cryptox"
	"github.com/halcyonlabs/authcore/pkg/jwtx"
)

// fakeMailer records outgoing mail and can be told to fail per message kind.
type fakeMailer struct {
	verifications []string // "email:token"
	resets        []string
	welcomes      []string

	failVerification bool
	failReset        bool
	failWelcome      bool
}

var errMailDown = errors.New("smtp relay unreachable")

func (m *fakeMailer) SendVerificationEmail(_ context.Context, email, token string) error {
	if m.failVerification {
		return errMailDown
	}
	m.verifications = append(m.verifications, email+":"+token)
	return nil
}

func (m *fakeMailer) SendPasswordResetEmail(_ context.Context, email, token string) error {
	if m.failReset {
		return errMailDown
	}
	m.resets = append(m.resets, email+":"+token)
	return nil
}

func (m *fakeMailer) SendWelcomeEmail(_ context.Context, email, name string) error {
	if m.failWelcome {
		return errMailDown
	}
	m.welcomes = append(m.welcomes, email+":"+name)
	return nil
}

func (m *fakeMailer) lastVerificationToken(t *testing.T) string {
	t.Helper()
	require.NotEmpty(t, m.verifications)
	last := m.verifications[len(m.verifications)-1]
	for i := 0; i < len(last); i++ {
		if last[i] == ':' {
			return last[i+1:]
		}
	}
	t.Fatalf("malformed captured mail %q", last)
	return ""
}

func (m *fakeMailer) lastResetToken(t *testing.T) string {
	t.Helper()
	require.NotEmpty(t, m.resets)
	last := m.resets[len(m.resets)-1]
	for i := 0; i < len(last); i++ {
		if last[i] == ':' {
			return last[i+1:]
		}
	}
	t.Fatalf("malformed captured mail %q", last)
	return ""
}

type testEnv struct {
	store  *sqlite.Store
	cache  cache.Cache
	mr     *miniredis.Miniredis
	mailer *fakeMailer

	audit     *AuditService
	rateLimit *RateLimitService
	lockout   *LockoutService
	creds     *CredentialService
	suspicion *SuspicionService
	tokens    *TokenService
	mfa       *MFAService
	auth      *AuthService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	st, err := sqlite.NewStore(":memory:")
	require.NoError(t, err)
	require.NoError(t, st.ApplyMigrations())
	t.Cleanup(func() { _ = st.Close() })

	mr := miniredis.RunT(t)
	c := cache.NewRedis(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	t.Cleanup(func() { _ = c.Close() })

	signer, err := jwtx.NewSigner([]byte("0123456789abcdef0123456789abcdef"), "authcore-test")
	require.NoError(t, err)

	box, err := cryptox.NewSecretBox([]byte("unit-test-mfa-key-material"))
	require.NoError(t, err)

	mailer := &fakeMailer{}
	audit := &AuditService{Store: st}
	env := &testEnv{
		store:     st,
		cache:     c,
		mr:        mr,
		mailer:    mailer,
		audit:     audit,
		rateLimit: &RateLimitService{Cache: c},
		lockout:   &LockoutService{Store: st},
		creds:     &CredentialService{Store: st, Audit: audit},
		suspicion: &SuspicionService{Store: st, Audit: audit},
		tokens: &TokenService{
			Signer: signer,
			Store:  st,
			Cache:  c,
			Issuer: "authcore-test",
		},
		mfa: &MFAService{
			Store:  st,
			Box:    box,
			Audit:  audit,
			Issuer: "authcore-test",
		},
	}
	env.auth = &AuthService{
		Store:       st,
		RateLimit:   env.rateLimit,
		Lockout:     env.lockout,
		Credentials: env.creds,
		Suspicion:   env.suspicion,
		Tokens:      env.tokens,
		Audit:       env.audit,
		Mailer:      mailer,
	}
	return env
}

// registerVerified runs the full register + verify flow and returns the
// account.
func (e *testEnv) registerVerified(t *testing.T, email, password string) domain.Account {
	t.Helper()
	ctx := context.Background()

	res, err := e.auth.Register(ctx, RegisterInput{
		Email:     email,
		Password:  password,
		FirstName: "Test",
		LastName:  "User",
	}, "203.0.113.1", "go-test")
	require.NoError(t, err)

	_, err = e.auth.VerifyEmail(ctx, e.mailer.lastVerificationToken(t), "203.0.113.1", "go-test")
	require.NoError(t, err)

	account, err := e.store.Accounts().GetAccountByID(ctx, res.AccountID)
	require.NoError(t, err)
	return account
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
