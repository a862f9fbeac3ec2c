package domain

import "time"

// Account is the durable record behind every credential check. Lock state is
// always derived from LockedUntil so the stored timestamp and the effective
// flag cannot drift apart.
type Account struct {
	ID           string
	Email        string
	PasswordHash string // argon2id PHC encoded
	FirstName    string
	LastName     string
	Verified     bool
	Active       bool

	FailedLoginAttempts int
	LockedUntil         *time.Time
	LastLogin           *time.Time

	EmailVerificationToken   string
	EmailVerificationExpires *time.Time
	PasswordResetToken       string
	PasswordResetExpires     *time.Time

	Roles []string // role names; capability resolution is external

	CreatedAt time.Time
	UpdatedAt time.Time
}

// IsLocked reports whether the account is currently locked out.
func (a Account) IsLocked() bool {
	return a.LockedUntil != nil && a.LockedUntil.After(time.Now())
}

// FullName joins the name fields for display and welcome mail.
func (a Account) FullName() string {
	if a.FirstName == "" {
		return a.LastName
	}
	if a.LastName == "" {
		return a.FirstName
	}
	return a.FirstName + " " + a.LastName
}

// PublicAccount is the caller-visible projection of an Account: no hashes,
// no tokens, no counters.
type PublicAccount struct {
	ID        string   `json:"id"`
	Email     string   `json:"email"`
	FirstName string   `json:"first_name"`
	LastName  string   `json:"last_name"`
	Verified  bool     `json:"verified"`
	Roles     []string `json:"roles"`
}

// Public strips the account down to its caller-visible fields.
func (a Account) Public() PublicAccount {
	roles := a.Roles
	if roles == nil {
		roles = []string{}
	}
	return PublicAccount{
		ID:        a.ID,
		Email:     a.Email,
		FirstName: a.FirstName,
		LastName:  a.LastName,
		Verified:  a.Verified,
		Roles:     roles,
	}
}
