package service

import (
	"context"
	"errors"
	"log/slog"
	"net/mail"
	"strings"
	"time"

	"github.com/halcyonlabs/authcore/internal/auth/domain"
	authmail "github.com/halcyonlabs/authcore/internal/auth/mail"
	"github.com/halcyonlabs/authcore/internal/auth/store"
	"github.com/halcyonlabs/authcore/pkg/cryptox"
	"github.com/halcyonlabs/authcore/pkg/idx"
	"github.com/halcyonlabs/authcore/pkg/slogx"
)

const (
	verificationTokenTTL = 24 * time.Hour
	resetTokenTTL        = time.Hour
	minPasswordLength    = 8
)

// Caller-visible messages. ForgotPassword must return msgResetRequested on
// every path so responses cannot reveal whether an email is registered.
const (
	msgRegistered     = "registration successful, check your email to verify your account"
	msgLoggedOut      = "logged out"
	msgEmailVerified  = "email verified"
	msgResetRequested = "if that email is registered, a reset link has been sent"
	msgPasswordReset  = "password changed, please log in again"
)

// ErrRegistrationFailed is the generic failure registration converts
// late-step errors into once the account row already exists.
var ErrRegistrationFailed = errors.New("registration_failed")

type RegisterInput struct {
	Email     string
	Password  string
	FirstName string
	LastName  string
}

type RegisterResult struct {
	Message   string `json:"message"`
	AccountID string `json:"account_id"`
}

type LoginResult struct {
	Account domain.PublicAccount `json:"account"`
	Tokens  domain.TokenPair     `json:"tokens"`
}

type MessageResult struct {
	Message string `json:"message"`
}

// AuthService sequences the login-adjacent flows across the focused
// services. It owns ordering and error mapping; all state changes happen in
// the components it calls.
type AuthService struct {
	Store       store.Store
	RateLimit   *RateLimitService
	Lockout     *LockoutService
	Credentials *CredentialService
	Suspicion   *SuspicionService
	Tokens      *TokenService
	Audit       *AuditService
	Mailer      authmail.Mailer
}

// Register creates an account and kicks off email verification. Once the
// account row exists there is no compensating rollback: a later failure
// leaves the account in place, records a failed event, and surfaces
// ErrRegistrationFailed.
func (s *AuthService) Register(ctx context.Context, in RegisterInput, ip, userAgent string) (RegisterResult, error) {
	email, err := normalizeEmail(in.Email)
	if err != nil {
		return RegisterResult{}, err
	}
	if len(in.Password) < minPasswordLength {
		return RegisterResult{}, ErrValidation
	}

	if err := s.RateLimit.Check(ctx, "register:"+ip, RuleRegister); err != nil {
		return RegisterResult{}, err
	}

	hash, err := cryptox.HashPassword(in.Password)
	if err != nil {
		return RegisterResult{}, err
	}

	account := domain.Account{
		ID:           idx.New().String(),
		Email:        email,
		PasswordHash: hash,
		FirstName:    strings.TrimSpace(in.FirstName),
		LastName:     strings.TrimSpace(in.LastName),
		Roles:        []string{"user"},
		Active:       true,
	}
	if err := s.Store.Accounts().CreateAccount(ctx, account); err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			return RegisterResult{}, ErrConflict
		}
		return RegisterResult{}, err
	}

	if err := s.startEmailVerification(ctx, account); err != nil {
		slogx.FromContext(ctx).Error("registration follow-up failed",
			slog.String("account_id", account.ID),
			slog.Any("error", err),
		)
		s.Audit.RecordBestEffort(ctx, domain.AuthEvent{
			AccountID: account.ID,
			Type:      domain.EventLoginFailed,
			IPAddress: ip,
			UserAgent: userAgent,
			Metadata:  map[string]string{"action": "register", "error": err.Error()},
			Success:   false,
		})
		return RegisterResult{}, ErrRegistrationFailed
	}

	s.Audit.RecordBestEffort(ctx, domain.AuthEvent{
		AccountID: account.ID,
		Type:      domain.EventLoginSuccess,
		IPAddress: ip,
		UserAgent: userAgent,
		Metadata:  map[string]string{"action": "register"},
		Success:   true,
	})

	return RegisterResult{Message: msgRegistered, AccountID: account.ID}, nil
}

func (s *AuthService) startEmailVerification(ctx context.Context, account domain.Account) error {
	token, err := cryptox.GenerateToken(cryptox.TokenSize256)
	if err != nil {
		return err
	}
	expires := time.Now().Add(verificationTokenTTL)
	if err := s.Store.Accounts().SetVerificationToken(ctx, account.ID, token, expires); err != nil {
		return err
	}
	return s.Mailer.SendVerificationEmail(ctx, account.Email, token)
}

// Login runs the full credential check pipeline and issues a token pair.
func (s *AuthService) Login(ctx context.Context, email, password, ip, userAgent, deviceInfo string) (LoginResult, error) {
	blocked, err := s.Lockout.IsBlocked(ctx, ip)
	if err != nil {
		return LoginResult{}, err
	}
	if blocked {
		return LoginResult{}, ErrRateLimited
	}

	if err := s.RateLimit.Check(ctx, "login:"+ip, RuleLogin); err != nil {
		return LoginResult{}, err
	}

	email = strings.ToLower(strings.TrimSpace(email))
	account, err := s.Credentials.Validate(ctx, email, password)
	if err != nil {
		s.recordLoginFailure(ctx, email, ip, userAgent, err)
		return LoginResult{}, err
	}

	if !account.Verified {
		return LoginResult{}, ErrAccountUnverified
	}

	// Observational: a flag is logged and audited, never enforced.
	if _, err := s.Suspicion.Evaluate(ctx, account.ID, ip, userAgent); err != nil {
		slogx.FromContext(ctx).Error("suspicion check failed",
			slog.String("account_id", account.ID),
			slog.Any("error", err),
		)
	}

	if err := s.Lockout.Clear(ctx, email); err != nil {
		return LoginResult{}, err
	}
	if err := s.Lockout.Clear(ctx, ip); err != nil {
		return LoginResult{}, err
	}

	if err := s.Store.Accounts().UpdateLastLogin(ctx, account.ID, time.Now()); err != nil {
		return LoginResult{}, err
	}
	if err := s.Store.Accounts().ResetFailedLogins(ctx, account.ID); err != nil {
		return LoginResult{}, err
	}

	tokens, err := s.Tokens.Issue(ctx, account, deviceInfo, ip)
	if err != nil {
		return LoginResult{}, err
	}

	s.Audit.RecordBestEffort(ctx, domain.AuthEvent{
		AccountID: account.ID,
		Type:      domain.EventLoginSuccess,
		IPAddress: ip,
		UserAgent: userAgent,
		Success:   true,
	})

	return LoginResult{Account: account.Public(), Tokens: tokens}, nil
}

// recordLoginFailure counts a validator failure against both the email and
// the source IP and writes a failed audit event before the error surfaces.
func (s *AuthService) recordLoginFailure(ctx context.Context, email, ip, userAgent string, cause error) {
	if !errors.Is(cause, ErrInvalidCredentials) && !errors.Is(cause, ErrAccountLocked) {
		return
	}

	l := slogx.FromContext(ctx)
	if errors.Is(cause, ErrInvalidCredentials) {
		for _, identifier := range []string{email, ip} {
			if identifier == "" {
				continue
			}
			if _, err := s.Lockout.RecordFailure(ctx, identifier); err != nil {
				l.Error("lockout record failed", slog.String("identifier", identifier), slog.Any("error", err))
			}
		}
	}

	meta := map[string]string{"email": email}
	if errors.Is(cause, ErrAccountLocked) {
		meta["reason"] = "account_locked"
	}
	s.Audit.RecordBestEffort(ctx, domain.AuthEvent{
		Type:      domain.EventLoginFailed,
		IPAddress: ip,
		UserAgent: userAgent,
		Metadata:  meta,
		Success:   false,
	})
}

// Refresh rotates a refresh token into a fresh pair.
func (s *AuthService) Refresh(ctx context.Context, refreshToken, ip, userAgent string) (domain.TokenPair, error) {
	pair, accountID, err := s.Tokens.Rotate(ctx, refreshToken)
	if err != nil {
		return domain.TokenPair{}, err
	}

	s.Audit.RecordBestEffort(ctx, domain.AuthEvent{
		AccountID: accountID,
		Type:      domain.EventTokenRefresh,
		IPAddress: ip,
		UserAgent: userAgent,
		Success:   true,
	})
	return pair, nil
}

// Logout revokes exactly the presented refresh token.
func (s *AuthService) Logout(ctx context.Context, refreshToken, accountID, ip, userAgent string) (MessageResult, error) {
	if err := s.Tokens.Revoke(ctx, refreshToken); err != nil {
		return MessageResult{}, err
	}

	s.Audit.RecordBestEffort(ctx, domain.AuthEvent{
		AccountID: accountID,
		Type:      domain.EventLogout,
		IPAddress: ip,
		UserAgent: userAgent,
		Success:   true,
	})
	return MessageResult{Message: msgLoggedOut}, nil
}

// LogoutAll revokes every session the account has.
func (s *AuthService) LogoutAll(ctx context.Context, accountID, ip, userAgent string) (MessageResult, error) {
	if err := s.Tokens.RevokeAll(ctx, accountID); err != nil {
		return MessageResult{}, err
	}

	s.Audit.RecordBestEffort(ctx, domain.AuthEvent{
		AccountID: accountID,
		Type:      domain.EventLogout,
		IPAddress: ip,
		UserAgent: userAgent,
		Metadata:  map[string]string{"action": "logout_all"},
		Success:   true,
	})
	return MessageResult{Message: msgLoggedOut}, nil
}

// VerifyEmail redeems a verification token. The welcome email is best
// effort; a delivery failure is logged and the verification stands.
func (s *AuthService) VerifyEmail(ctx context.Context, token, ip, userAgent string) (MessageResult, error) {
	account, err := s.Store.Accounts().GetAccountByVerificationToken(ctx, token)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return MessageResult{}, ErrTokenInvalid
		}
		return MessageResult{}, err
	}
	if account.EmailVerificationExpires == nil || time.Now().After(*account.EmailVerificationExpires) {
		return MessageResult{}, ErrTokenInvalid
	}

	if err := s.Store.Accounts().MarkVerified(ctx, account.ID); err != nil {
		return MessageResult{}, err
	}

	s.Audit.RecordBestEffort(ctx, domain.AuthEvent{
		AccountID: account.ID,
		Type:      domain.EventEmailVerified,
		IPAddress: ip,
		UserAgent: userAgent,
		Success:   true,
	})

	if err := s.Mailer.SendWelcomeEmail(ctx, account.Email, account.FullName()); err != nil {
		slogx.FromContext(ctx).Warn("welcome email failed",
			slog.String("account_id", account.ID),
			slog.Any("error", err),
		)
	}

	return MessageResult{Message: msgEmailVerified}, nil
}

// ForgotPassword starts a password reset. Apart from the rate limit, every
// outcome returns the same message so the response never confirms whether
// the email is registered.
func (s *AuthService) ForgotPassword(ctx context.Context, email, ip string) (MessageResult, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	if err := s.RateLimit.Check(ctx, "forgot_password:"+email, RuleForgotPassword); err != nil {
		return MessageResult{}, err
	}

	generic := MessageResult{Message: msgResetRequested}
	l := slogx.FromContext(ctx)

	account, err := s.Store.Accounts().GetAccountByEmail(ctx, email)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			l.Error("reset lookup failed", slog.Any("error", err))
		}
		return generic, nil
	}

	token, err := cryptox.GenerateToken(cryptox.TokenSize256)
	if err != nil {
		l.Error("reset token generation failed", slog.Any("error", err))
		return generic, nil
	}
	if err := s.Store.Accounts().SetResetToken(ctx, account.ID, token, time.Now().Add(resetTokenTTL)); err != nil {
		l.Error("reset token persist failed", slog.String("account_id", account.ID), slog.Any("error", err))
		return generic, nil
	}
	if err := s.Mailer.SendPasswordResetEmail(ctx, account.Email, token); err != nil {
		l.Error("reset email failed", slog.String("account_id", account.ID), slog.Any("error", err))
		return generic, nil
	}

	s.Audit.RecordBestEffort(ctx, domain.AuthEvent{
		AccountID: account.ID,
		Type:      domain.EventPasswordReset,
		IPAddress: ip,
		Metadata:  map[string]string{"action": "request"},
		Success:   true,
	})
	return generic, nil
}

// ResetPassword redeems a reset token, replaces the password and forces
// re-authentication everywhere.
func (s *AuthService) ResetPassword(ctx context.Context, token, newPassword, ip string) (MessageResult, error) {
	if len(newPassword) < minPasswordLength {
		return MessageResult{}, ErrValidation
	}

	account, err := s.Store.Accounts().GetAccountByResetToken(ctx, token)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return MessageResult{}, ErrTokenInvalid
		}
		return MessageResult{}, err
	}
	if account.PasswordResetExpires == nil || time.Now().After(*account.PasswordResetExpires) {
		return MessageResult{}, ErrTokenInvalid
	}

	hash, err := cryptox.HashPassword(newPassword)
	if err != nil {
		return MessageResult{}, err
	}

	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.Accounts().UpdatePasswordHash(ctx, account.ID, hash); err != nil {
			return err
		}
		return tx.Accounts().ClearResetToken(ctx, account.ID)
	})
	if err != nil {
		return MessageResult{}, err
	}

	if err := s.Tokens.RevokeAll(ctx, account.ID); err != nil {
		return MessageResult{}, err
	}

	s.Audit.RecordBestEffort(ctx, domain.AuthEvent{
		AccountID: account.ID,
		Type:      domain.EventPasswordReset,
		IPAddress: ip,
		Metadata:  map[string]string{"action": "complete"},
		Success:   true,
	})
	return MessageResult{Message: msgPasswordReset}, nil
}

func normalizeEmail(raw string) (string, error) {
	email := strings.ToLower(strings.TrimSpace(raw))
	if email == "" {
		return "", ErrValidation
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", ErrValidation
	}
	return email, nil
}
