package domain

import "time"

// TokenPair is what a successful login or rotation returns: the signed
// access token and the opaque refresh token. Neither value is ever persisted
// as-is; the stores only see their SHA-256 fingerprints.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// RefreshToken models the stored refresh token record.
//
// State machine: Issued -> Active -> {Rotated | Revoked | Expired}, all
// terminal. Revoked is a one-way flag; rows are never un-revoked.
type RefreshToken struct {
	ID         string
	AccountID  string
	TokenHash  string // SHA-256 hex fingerprint of the opaque value, unique
	ExpiresAt  time.Time
	DeviceInfo string
	IPAddress  string
	Revoked    bool
	CreatedAt  time.Time
}

// IsExpired reports whether the token is past its expiry at the given time.
func (t RefreshToken) IsExpired(now time.Time) bool {
	return now.After(t.ExpiresAt)
}
