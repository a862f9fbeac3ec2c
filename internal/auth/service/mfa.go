package service

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"

	"github.com/halcyonlabs/authcore/internal/auth/domain"
	"github.com/halcyonlabs/authcore/internal/auth/store"
	"github.com/halcyonlabs/authcore/pkg/cryptox"
	"github.com/halcyonlabs/authcore/pkg/idx"
)

const (
	backupCodeCount  = 10
	backupCodeLength = 8

	// totpSkew is the accepted clock drift in 30s steps either side of now.
	totpSkew = 2
)

// MFAService manages TOTP second factors and their backup codes. Secrets and
// backup-code lists are stored sealed (AES-GCM, fresh nonce per write);
// plaintext values exist only in memory and are returned to the caller at
// most once.
type MFAService struct {
	Store  store.Store
	Box    *cryptox.SecretBox
	Audit  *AuditService
	Issuer string
}

// EnrollTOTP starts TOTP enrollment for the account. A factor that is
// already enabled cannot be re-enrolled; a pending factor is replaced so an
// abandoned enrollment does not wedge the account.
func (s *MFAService) EnrollTOTP(ctx context.Context, account domain.Account) (domain.MFAEnrollment, error) {
	existing, err := s.Store.MFAFactors().GetMFAFactor(ctx, account.ID, domain.MFATypeTOTP)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return domain.MFAEnrollment{}, err
	}
	if err == nil && existing.Enabled {
		return domain.MFAEnrollment{}, ErrMFAAlreadyEnabled
	}

	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      s.Issuer,
		AccountName: account.Email,
	})
	if err != nil {
		return domain.MFAEnrollment{}, err
	}

	codes, err := generateBackupCodes()
	if err != nil {
		return domain.MFAEnrollment{}, err
	}

	sealedSecret, err := s.Box.Seal([]byte(key.Secret()))
	if err != nil {
		return domain.MFAEnrollment{}, err
	}
	sealedCodes, err := s.sealCodes(codes)
	if err != nil {
		return domain.MFAEnrollment{}, err
	}

	if existing.ID != "" {
		err = s.Store.MFAFactors().UpdateEnrollment(ctx, existing.ID, sealedSecret, sealedCodes)
	} else {
		err = s.Store.MFAFactors().CreateMFAFactor(ctx, domain.MFAFactor{
			ID:          idx.New().String(),
			AccountID:   account.ID,
			Type:        domain.MFATypeTOTP,
			Secret:      sealedSecret,
			BackupCodes: sealedCodes,
		})
	}
	if err != nil {
		return domain.MFAEnrollment{}, err
	}

	return domain.MFAEnrollment{
		Secret:          key.Secret(),
		ProvisioningURI: key.URL(),
		BackupCodes:     codes,
	}, nil
}

// VerifyTOTP checks a code against the account's TOTP factor, tolerating
// ±totpSkew time steps of drift. The verification that transitions the
// factor pending -> enabled returns the backup codes one final time.
func (s *MFAService) VerifyTOTP(ctx context.Context, account domain.Account, code string) (domain.MFAVerification, error) {
	factor, err := s.Store.MFAFactors().GetMFAFactor(ctx, account.ID, domain.MFATypeTOTP)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.MFAVerification{}, ErrMFANotConfigured
		}
		return domain.MFAVerification{}, err
	}

	secret, err := s.Box.Open(factor.Secret)
	if err != nil {
		return domain.MFAVerification{}, err
	}

	valid, err := totp.ValidateCustom(code, string(secret), time.Now(), totp.ValidateOpts{
		Period:    30,
		Skew:      totpSkew,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	})
	if err != nil || !valid {
		return domain.MFAVerification{Verified: false}, nil
	}

	if factor.Enabled {
		return domain.MFAVerification{Verified: true}, nil
	}

	// First successful verification arms the factor.
	if err := s.Store.MFAFactors().Enable(ctx, factor.ID, time.Now()); err != nil {
		return domain.MFAVerification{}, err
	}
	s.Audit.RecordBestEffort(ctx, domain.AuthEvent{
		AccountID: account.ID,
		Type:      domain.EventMFAEnabled,
		Metadata:  map[string]string{"type": string(domain.MFATypeTOTP)},
		Success:   true,
	})

	codes, err := s.openCodes(factor.BackupCodes)
	if err != nil {
		return domain.MFAVerification{}, err
	}
	return domain.MFAVerification{Verified: true, BackupCodes: codes}, nil
}

// VerifyBackupCode consumes one backup code. A matched code is removed from
// the stored list before true is returned, so it can never succeed twice.
func (s *MFAService) VerifyBackupCode(ctx context.Context, account domain.Account, code string) (bool, error) {
	factor, err := s.Store.MFAFactors().GetMFAFactor(ctx, account.ID, domain.MFATypeTOTP)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	if !factor.Enabled {
		return false, nil
	}

	codes, err := s.openCodes(factor.BackupCodes)
	if err != nil {
		return false, err
	}

	match := -1
	for i, c := range codes {
		if c == code {
			match = i
			break
		}
	}
	if match < 0 {
		return false, nil
	}

	remaining := append(codes[:match], codes[match+1:]...)
	sealed, err := s.sealCodes(remaining)
	if err != nil {
		return false, err
	}
	if err := s.Store.MFAFactors().UpdateBackupCodes(ctx, factor.ID, sealed); err != nil {
		return false, err
	}
	return true, nil
}

// Disable removes the factor entirely.
func (s *MFAService) Disable(ctx context.Context, account domain.Account, t domain.MFAType) error {
	err := s.Store.MFAFactors().DeleteMFAFactor(ctx, account.ID, t)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrMFANotConfigured
		}
		return err
	}
	s.Audit.RecordBestEffort(ctx, domain.AuthEvent{
		AccountID: account.ID,
		Type:      domain.EventMFADisabled,
		Metadata:  map[string]string{"type": string(t)},
		Success:   true,
	})
	return nil
}

// GenerateNewBackupCodes replaces the stored list with a fresh one and
// returns the plaintext set once.
func (s *MFAService) GenerateNewBackupCodes(ctx context.Context, account domain.Account) ([]string, error) {
	factor, err := s.Store.MFAFactors().GetMFAFactor(ctx, account.ID, domain.MFATypeTOTP)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrMFANotConfigured
		}
		return nil, err
	}
	if !factor.Enabled {
		return nil, ErrMFANotConfigured
	}

	codes, err := generateBackupCodes()
	if err != nil {
		return nil, err
	}
	sealed, err := s.sealCodes(codes)
	if err != nil {
		return nil, err
	}
	if err := s.Store.MFAFactors().UpdateBackupCodes(ctx, factor.ID, sealed); err != nil {
		return nil, err
	}
	return codes, nil
}

// Status reports which factor types the account has enabled.
func (s *MFAService) Status(ctx context.Context, accountID string) (domain.MFAStatus, error) {
	factors, err := s.Store.MFAFactors().ListEnabled(ctx, accountID)
	if err != nil {
		return domain.MFAStatus{}, err
	}

	status := domain.MFAStatus{Enabled: len(factors) > 0, Types: []domain.MFAType{}}
	for _, f := range factors {
		status.Types = append(status.Types, f.Type)
	}
	return status, nil
}

func generateBackupCodes() ([]string, error) {
	codes := make([]string, 0, backupCodeCount)
	for i := 0; i < backupCodeCount; i++ {
		code, err := cryptox.GenerateCode(backupCodeLength)
		if err != nil {
			return nil, err
		}
		codes = append(codes, code)
	}
	return codes, nil
}

func (s *MFAService) sealCodes(codes []string) ([]byte, error) {
	blob, err := json.Marshal(codes)
	if err != nil {
		return nil, err
	}
	return s.Box.Seal(blob)
}

func (s *MFAService) openCodes(sealed []byte) ([]string, error) {
	if len(sealed) == 0 {
		return nil, nil
	}
	blob, err := s.Box.Open(sealed)
	if err != nil {
		return nil, err
	}
	var codes []string
	if err := json.Unmarshal(blob, &codes); err != nil {
		return nil, err
	}
	return codes, nil
}
