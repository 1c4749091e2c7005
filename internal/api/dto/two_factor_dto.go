package dto

import "strings"

// SetupResponse carries the enrollment QR code and the secret for manual entry.
type SetupResponse struct {
	QRCode string `json:"qrCode"`
	Secret string `json:"secret"`
}

// EnableRequest confirms a pending setup with a current code.
type EnableRequest struct {
	Token string `json:"token"`
}

// Validate requires the token.
func (r EnableRequest) Validate() FieldErrors {
	errs := FieldErrors{}
	checkRequired(errs, "token", r.Token)
	return errs.err()
}

// EnableResponse returns the one-time view of the backup codes.
type EnableResponse struct {
	Message     string   `json:"message"`
	BackupCodes []string `json:"backupCodes"`
}

// DisableRequest re-confirms the account password.
type DisableRequest struct {
	Password string `json:"password"`
}

// Validate requires the password.
func (r DisableRequest) Validate() FieldErrors {
	errs := FieldErrors{}
	if r.Password == "" {
		errs.add("password", "is required")
	}
	return errs.err()
}

// VerifyRequest is the unauthenticated mid-login check.
type VerifyRequest struct {
	Email        string `json:"email"`
	Token        string `json:"token"`
	IsBackupCode bool   `json:"isBackupCode,omitempty"`
}

// Validate requires email and token.
func (r VerifyRequest) Validate() FieldErrors {
	errs := FieldErrors{}
	checkEmail(errs, "email", r.Email)
	if strings.TrimSpace(r.Token) == "" {
		errs.add("token", "is required")
	}
	return errs.err()
}

// VerifyResponse reports whether the code was accepted.
type VerifyResponse struct {
	Verified bool `json:"verified"`
}

// StatusResponse summarizes 2FA enrollment.
type StatusResponse struct {
	Enabled          bool `json:"enabled"`
	BackupCodesCount int  `json:"backupCodesCount"`
}
