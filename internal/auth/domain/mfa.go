package domain

import "time"

// MFAType enumerates supported second factors. Only TOTP is implemented;
// the enum leaves room for others without a schema change.
type MFAType string

const (
	MFATypeTOTP MFAType = "totp"
)

// MFAFactor is the stored second-factor record. Secret and backup codes are
// AES-GCM sealed blobs; plaintext only exists in memory during enrollment
// and verification. At most one factor per (account, type).
type MFAFactor struct {
	ID          string
	AccountID   string
	Type        MFAType
	Secret      []byte // sealed TOTP secret
	BackupCodes []byte // sealed JSON list of remaining codes
	Enabled     bool
	VerifiedAt  *time.Time
	CreatedAt   time.Time
}

// MFAEnrollment is returned once from TOTP enrollment. The plaintext secret
// and backup codes are never retrievable again.
type MFAEnrollment struct {
	Secret          string   `json:"secret"`
	ProvisioningURI string   `json:"provisioning_uri"`
	BackupCodes     []string `json:"backup_codes"`
}

// MFAVerification is the result of a TOTP code check. BackupCodes is set
// only on the verification that transitions the factor pending -> enabled.
type MFAVerification struct {
	Verified    bool     `json:"verified"`
	BackupCodes []string `json:"backup_codes,omitempty"`
}

// MFAStatus reports which factor types are enabled for an account.
type MFAStatus struct {
	Enabled bool      `json:"enabled"`
	Types   []MFAType `json:"types"`
}
