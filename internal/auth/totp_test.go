package auth

import (
	"encoding/base64"
	"net/url"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestTOTPEngine() *TOTPEngine {
	return NewTOTPEngine(TOTPConfig{Issuer: "Brymix Dashboard", Period: 30, Window: 2, QRCodeSize: 128}, nil)
}

func TestGenerateSecretProducesProvisioningURI(t *testing.T) {
	e := newTestTOTPEngine()
	enrollment, err := e.GenerateSecret("ada@example.com")
	require.NoError(t, err)
	require.NotEmpty(t, enrollment.Secret)

	u, err := url.Parse(enrollment.ProvisioningURI)
	require.NoError(t, err)
	assert.Equal(t, "otpauth", u.Scheme)
	assert.Equal(t, "totp", u.Host)
	assert.Equal(t, enrollment.Secret, u.Query().Get("secret"))
	assert.Equal(t, "Brymix Dashboard", u.Query().Get("issuer"))
	assert.Contains(t, u.Path, "ada@example.com")
}

func TestRenderQRCodeDataURI(t *testing.T) {
	e := newTestTOTPEngine()
	enrollment, err := e.GenerateSecret("ada@example.com")
	require.NoError(t, err)

	uri, err := e.RenderQRCodeDataURI(enrollment.ProvisioningURI)
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(uri, "data:image/png;base64,"))

	png, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(uri, "data:image/png;base64,"))
	require.NoError(t, err)
	require.Equal(t, []byte("\x89PNG"), png[:4])
}

func TestVerifyCodeWindow(t *testing.T) {
	e := newTestTOTPEngine()
	enrollment, err := e.GenerateSecret("ada@example.com")
	require.NoError(t, err)

	// middle of a 30s step
	base := time.Unix(30*56666667+15, 0).UTC()
	for steps := -2; steps <= 2; steps++ {
		code, err := e.CodeAt(enrollment.Secret, base.Add(time.Duration(steps)*30*time.Second))
		require.NoError(t, err)
		assert.True(t, e.VerifyCodeAt(enrollment.Secret, code, base), "offset %d steps", steps)
	}
	for _, steps := range []int{-3, 3} {
		code, err := e.CodeAt(enrollment.Secret, base.Add(time.Duration(steps)*30*time.Second))
		require.NoError(t, err)
		assert.False(t, e.VerifyCodeAt(enrollment.Secret, code, base), "offset %d steps", steps)
	}
}

func TestVerifyCodeUsesEngineClock(t *testing.T) {
	at := time.Date(2026, 3, 1, 12, 0, 15, 0, time.UTC)
	e := NewTOTPEngine(TOTPConfig{Period: 30, Window: 2}, func() time.Time { return at })
	enrollment, err := e.GenerateSecret("ada@example.com")
	require.NoError(t, err)

	code, err := e.CodeAt(enrollment.Secret, at)
	require.NoError(t, err)
	require.True(t, e.VerifyCode(enrollment.Secret, " "+code+" "))
	require.False(t, e.VerifyCode(enrollment.Secret, ""))
	require.False(t, e.VerifyCode("", code))
	require.False(t, e.VerifyCode(enrollment.Secret, "abcdef"))
}

func TestGenerateBackupCodes(t *testing.T) {
	codes, err := GenerateBackupCodes(DefaultBackupCodeCount)
	require.NoError(t, err)
	require.Len(t, codes, 8)

	pattern := regexp.MustCompile(`^[0-9A-F]{8}$`)
	seen := map[string]bool{}
	for _, code := range codes {
		require.Regexp(t, pattern, code)
		require.False(t, seen[code], "duplicate code %s", code)
		seen[code] = true
	}

	_, err = GenerateBackupCodes(0)
	require.Error(t, err)
}

func TestConsumeBackupCode(t *testing.T) {
	codes := []string{"AAAA1111", "BBBB2222", "CCCC3333"}

	ok, remaining := ConsumeBackupCode(codes, " bbbb2222 ")
	require.True(t, ok)
	require.Equal(t, []string{"AAAA1111", "CCCC3333"}, remaining)
	require.Len(t, codes, 3, "input must not be modified")

	ok, again := ConsumeBackupCode(remaining, "BBBB2222")
	require.False(t, ok)
	require.Equal(t, remaining, again)

	ok, _ = ConsumeBackupCode(codes, "")
	require.False(t, ok)
}
