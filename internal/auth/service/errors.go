package service

import "errors"

// Service-level failure taxonomy. Each component returns one of these typed
// failures; transport layers map them to caller-visible responses.
var (
	ErrValidation         = errors.New("validation_failed")
	ErrConflict           = errors.New("email_conflict")
	ErrInvalidCredentials = errors.New("invalid_credentials")
	ErrAccountLocked      = errors.New("account_locked")
	ErrAccountUnverified  = errors.New("account_unverified")
	ErrRateLimited        = errors.New("rate_limited")
	ErrTokenInvalid       = errors.New("invalid_token")
	ErrMFANotConfigured   = errors.New("mfa_not_configured")
	ErrMFAAlreadyEnabled  = errors.New("mfa_already_enabled")
)
