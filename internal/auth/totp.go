package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
	qrcode "github.com/skip2/go-qrcode"
)

const (
	DefaultTOTPPeriod      = 30
	DefaultTOTPWindow      = 2
	DefaultBackupCodeCount = 8
	backupCodeBytes        = 4 // 8 hex characters
	totpSecretSize         = 20
)

// TOTPConfig holds the enrollment and validation parameters.
type TOTPConfig struct {
	Issuer     string
	Period     uint
	Window     uint
	QRCodeSize int
}

// TOTPEngine generates enrollment secrets, verifies one-time codes and manages
// single-use backup codes.
type TOTPEngine struct {
	cfg TOTPConfig
	now func() time.Time
}

// Enrollment is the material shown to a user while setting up an authenticator app.
type Enrollment struct {
	Secret          string
	ProvisioningURI string
}

// NewTOTPEngine builds an engine, defaulting zero values.
func NewTOTPEngine(cfg TOTPConfig, now func() time.Time) *TOTPEngine {
	if cfg.Issuer == "" {
		cfg.Issuer = "Brymix Dashboard"
	}
	if cfg.Period == 0 {
		cfg.Period = DefaultTOTPPeriod
	}
	if cfg.QRCodeSize <= 0 {
		cfg.QRCodeSize = 256
	}
	if now == nil {
		now = time.Now
	}
	return &TOTPEngine{cfg: cfg, now: now}
}

// GenerateSecret creates a new random base32 secret and its otpauth:// URI.
func (e *TOTPEngine) GenerateSecret(accountName string) (Enrollment, error) {
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      e.cfg.Issuer,
		AccountName: accountName,
		Period:      e.cfg.Period,
		SecretSize:  totpSecretSize,
		Digits:      otp.DigitsSix,
		Algorithm:   otp.AlgorithmSHA1,
	})
	if err != nil {
		return Enrollment{}, fmt.Errorf("generate totp key: %w", err)
	}
	return Enrollment{Secret: key.Secret(), ProvisioningURI: key.URL()}, nil
}

// RenderQRCode encodes uri as a PNG image.
func (e *TOTPEngine) RenderQRCode(uri string) ([]byte, error) {
	png, err := qrcode.Encode(uri, qrcode.Medium, e.cfg.QRCodeSize)
	if err != nil {
		return nil, fmt.Errorf("encode qr code: %w", err)
	}
	return png, nil
}

// RenderQRCodeDataURI returns the QR code as a data URI suitable for an <img> tag.
func (e *TOTPEngine) RenderQRCodeDataURI(uri string) (string, error) {
	png, err := e.RenderQRCode(uri)
	if err != nil {
		return "", err
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(png), nil
}

// VerifyCode reports whether code is valid for secret at the current time,
// allowing Window steps of clock drift either side.
func (e *TOTPEngine) VerifyCode(secret, code string) bool {
	return e.VerifyCodeAt(secret, code, e.now())
}

// VerifyCodeAt is VerifyCode at an explicit instant.
func (e *TOTPEngine) VerifyCodeAt(secret, code string, at time.Time) bool {
	code = strings.TrimSpace(code)
	if secret == "" || code == "" {
		return false
	}
	valid, err := totp.ValidateCustom(code, secret, at.UTC(), e.validateOpts())
	if err != nil {
		return false
	}
	return valid
}

// CodeAt produces the code for secret at the given instant.
func (e *TOTPEngine) CodeAt(secret string, at time.Time) (string, error) {
	return totp.GenerateCodeCustom(secret, at.UTC(), e.validateOpts())
}

func (e *TOTPEngine) validateOpts() totp.ValidateOpts {
	return totp.ValidateOpts{
		Period:    e.cfg.Period,
		Skew:      e.cfg.Window,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	}
}

// GenerateBackupCodes returns count distinct uppercase hex codes.
func GenerateBackupCodes(count int) ([]string, error) {
	if count <= 0 {
		return nil, errors.New("backup code count must be positive")
	}
	codes := make([]string, 0, count)
	seen := make(map[string]struct{}, count)
	buf := make([]byte, backupCodeBytes)
	for len(codes) < count {
		if _, err := rand.Read(buf); err != nil {
			return nil, fmt.Errorf("generate backup code: %w", err)
		}
		code := strings.ToUpper(hex.EncodeToString(buf))
		if _, dup := seen[code]; dup {
			continue
		}
		seen[code] = struct{}{}
		codes = append(codes, code)
	}
	return codes, nil
}

// NormalizeBackupCode trims and uppercases user input.
func NormalizeBackupCode(candidate string) string {
	return strings.ToUpper(strings.TrimSpace(candidate))
}

// ConsumeBackupCode removes candidate from codes if present. The input slice is
// not modified.
func ConsumeBackupCode(codes []string, candidate string) (bool, []string) {
	normalized := NormalizeBackupCode(candidate)
	if normalized == "" {
		return false, codes
	}
	for i, code := range codes {
		if subtle.ConstantTimeCompare([]byte(code), []byte(normalized)) == 1 {
			remaining := make([]string, 0, len(codes)-1)
			remaining = append(remaining, codes[:i]...)
			remaining = append(remaining, codes[i+1:]...)
			return true, remaining
		}
	}
	return false, codes
}
