// Package jwtx signs and parses the short-lived access tokens issued by the
// token service. The signature proves origin; immediate revocation is handled
// separately by the allow-list, so verification here is deliberately cheap.
package jwtx

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// DefaultAccessTokenTTL is the default lifetime for access tokens.
// Short-lived for security - typical range is 15m to 1h.
const DefaultAccessTokenTTL = 15 * time.Minute

// ErrTokenInvalid reports a token that failed signature or time validation.
var ErrTokenInvalid = errors.New("jwtx: invalid token")

// Claims are the access-token claims. Keep changes additive to preserve
// compatibility with tokens already in flight.
type Claims struct {
	jwt.RegisteredClaims

	// Email of the authenticated account.
	Email string `json:"email,omitempty"`

	// Roles are the account's role names. Capability evaluation happens
	// at the policy layer, not here.
	Roles []string `json:"roles,omitempty"`
}

// Signer signs and parses HS256 access tokens with a shared secret.
type Signer struct {
	secret []byte
	issuer string
}

// NewSigner creates a Signer. The secret must be non-empty.
func NewSigner(secret []byte, issuer string) (*Signer, error) {
	if len(secret) == 0 {
		return nil, errors.New("jwtx: empty signing secret")
	}
	return &Signer{secret: secret, issuer: issuer}, nil
}

// NewClaims builds minimally-correct claims for an account.
func NewClaims(subject, email string, roles []string, ttl time.Duration, issuer string, now time.Time) Claims {
	return Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Email: email,
		Roles: roles,
	}
}

// Sign produces the compact serialized token for the given claims.
func (s *Signer) Sign(claims Claims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

// Parse validates the signature, issuer and time claims, returning the
// embedded claims on success.
func (s *Signer) Parse(tokenStr string) (*Claims, error) {
	var claims Claims
	token, err := jwt.ParseWithClaims(
		tokenStr,
		&claims,
		func(t *jwt.Token) (any, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, ErrTokenInvalid
			}
			return s.secret, nil
		},
		jwt.WithIssuer(s.issuer),
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
	)
	if err != nil || !token.Valid {
		return nil, ErrTokenInvalid
	}
	return &claims, nil
}
