package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/halcyonlabs/authcore/internal/auth/cache"
	"github.com/halcyonlabs/authcore/internal/auth/domain"
	"github.com/halcyonlabs/authcore/internal/auth/store"
	"github.com/halcyonlabs/authcore/pkg/cryptox"
	"github.com/halcyonlabs/authcore/pkg/idx"
	"github.com/halcyonlabs/authcore/pkg/jwtx"
)

// DefaultRefreshTokenTTL is the default refresh token lifetime.
const DefaultRefreshTokenTTL = 7 * 24 * time.Hour

// TokenService issues and rotates the access/refresh token pair.
//
// Access tokens are signed JWTs whose SHA-256 fingerprint is also held in a
// Redis allow-list keyed access_token:<accountID>:<hash>, giving O(1)
// revocation checks that do not wait for signature expiry. Refresh tokens
// are opaque 256-bit values; only their fingerprint is persisted.
type TokenService struct {
	Signer     *jwtx.Signer
	Store      store.Store
	Cache      cache.Cache
	Issuer     string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

func (s *TokenService) accessTTL() time.Duration {
	if s.AccessTTL > 0 {
		return s.AccessTTL
	}
	return jwtx.DefaultAccessTokenTTL
}

func (s *TokenService) refreshTTL() time.Duration {
	if s.RefreshTTL > 0 {
		return s.RefreshTTL
	}
	return DefaultRefreshTokenTTL
}

func allowListKey(accountID, tokenHash string) string {
	return "access_token:" + accountID + ":" + tokenHash
}

func allowListPrefix(accountID string) string {
	return "access_token:" + accountID + ":"
}

// Issue creates a fresh token pair for the account. The refresh token row is
// persisted before the opaque value is returned, so a token the caller holds
// always has a backing record.
func (s *TokenService) Issue(ctx context.Context, account domain.Account, deviceInfo, ip string) (domain.TokenPair, error) {
	now := time.Now()

	claims := jwtx.NewClaims(account.ID, account.Email, account.Roles, s.accessTTL(), s.Issuer, now)
	access, err := s.Signer.Sign(claims)
	if err != nil {
		return domain.TokenPair{}, err
	}

	refreshOpaque, err := cryptox.GenerateToken(cryptox.TokenSize256)
	if err != nil {
		return domain.TokenPair{}, err
	}

	record := domain.RefreshToken{
		ID:         idx.New().String(),
		AccountID:  account.ID,
		TokenHash:  cryptox.FingerprintToken(refreshOpaque),
		ExpiresAt:  now.Add(s.refreshTTL()),
		DeviceInfo: deviceInfo,
		IPAddress:  ip,
	}
	if err := s.Store.RefreshTokens().CreateRefreshToken(ctx, record); err != nil {
		return domain.TokenPair{}, err
	}

	key := allowListKey(account.ID, cryptox.FingerprintToken(access))
	if err := s.Cache.Set(ctx, key, "1", s.accessTTL()); err != nil {
		return domain.TokenPair{}, err
	}

	return domain.TokenPair{
		AccessToken:  access,
		RefreshToken: refreshOpaque,
	}, nil
}

// Rotate exchanges a valid refresh token for a fresh pair bound to the same
// account/device/IP, revoking the presented token in the same step. The
// revocation is a compare-and-set at the store, so of N concurrent calls on
// one token exactly one succeeds and the rest fail with ErrTokenInvalid.
// Returns the owning account's id alongside the pair.
func (s *TokenService) Rotate(ctx context.Context, refreshToken string) (domain.TokenPair, string, error) {
	hash := cryptox.FingerprintToken(refreshToken)

	record, err := s.Store.RefreshTokens().GetRefreshTokenByHash(ctx, hash)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.TokenPair{}, "", ErrTokenInvalid
		}
		return domain.TokenPair{}, "", err
	}
	if record.Revoked || record.IsExpired(time.Now()) {
		return domain.TokenPair{}, "", ErrTokenInvalid
	}

	won, err := s.Store.RefreshTokens().CompareAndRevoke(ctx, hash)
	if err != nil {
		return domain.TokenPair{}, "", err
	}
	if !won {
		return domain.TokenPair{}, "", ErrTokenInvalid
	}

	account, err := s.Store.Accounts().GetAccountByID(ctx, record.AccountID)
	if err != nil {
		return domain.TokenPair{}, "", err
	}

	pair, err := s.Issue(ctx, account, record.DeviceInfo, record.IPAddress)
	if err != nil {
		return domain.TokenPair{}, "", err
	}
	return pair, account.ID, nil
}

// Revoke revokes exactly the presented refresh token.
func (s *TokenService) Revoke(ctx context.Context, refreshToken string) error {
	hash := cryptox.FingerprintToken(refreshToken)
	err := s.Store.RefreshTokens().RevokeRefreshToken(ctx, hash)
	if errors.Is(err, store.ErrNotFound) {
		return ErrTokenInvalid
	}
	return err
}

// RevokeAll revokes every refresh token the account owns and drops every
// allow-list entry, so outstanding access tokens stop validating before
// their natural expiry.
func (s *TokenService) RevokeAll(ctx context.Context, accountID string) error {
	if err := s.Store.RefreshTokens().RevokeAllForAccount(ctx, accountID); err != nil {
		return err
	}
	_, err := s.Cache.DeleteByPrefix(ctx, allowListPrefix(accountID))
	return err
}

// IsAccessTokenValid reports allow-list membership for the compact token.
func (s *TokenService) IsAccessTokenValid(ctx context.Context, token, accountID string) (bool, error) {
	return s.Cache.Exists(ctx, allowListKey(accountID, cryptox.FingerprintToken(token)))
}

// RevokeAccessToken drops one access token from the allow-list.
func (s *TokenService) RevokeAccessToken(ctx context.Context, token, accountID string) error {
	return s.Cache.Delete(ctx, allowListKey(accountID, cryptox.FingerprintToken(token)))
}

// ParseTokenTTL parses duration strings of the form <int><unit> where unit
// is one of d, h, m, s ("7d", "12h"). Used for the refresh TTL setting.
func ParseTokenTTL(raw string) (time.Duration, error) {
	if len(raw) < 2 {
		return 0, fmt.Errorf("%w: token ttl %q", ErrValidation, raw)
	}

	value, err := strconv.Atoi(raw[:len(raw)-1])
	if err != nil || value <= 0 {
		return 0, fmt.Errorf("%w: token ttl %q", ErrValidation, raw)
	}

	switch raw[len(raw)-1] {
	case 'd':
		return time.Duration(value) * 24 * time.Hour, nil
	case 'h':
		return time.Duration(value) * time.Hour, nil
	case 'm':
		return time.Duration(value) * time.Minute, nil
	case 's':
		return time.Duration(value) * time.Second, nil
	default:
		return 0, fmt.Errorf("%w: token ttl %q", ErrValidation, raw)
	}
}
