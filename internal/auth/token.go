package auth

import (
	"errors"
	"fmt"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/brymix/dashboard-bff/internal/domain"
)

var (
	// ErrTokenInvalid covers malformed tokens, bad signatures and wrong token kinds.
	ErrTokenInvalid = errors.New("token invalid")
	// ErrTokenExpired is returned for correctly signed tokens past their expiry.
	ErrTokenExpired = errors.New("token expired")
)

const (
	DefaultAccessTTL  = 15 * time.Minute
	DefaultRefreshTTL = 7 * 24 * time.Hour
)

// TokenManager handles issuing and validating JWT tokens. Access and refresh
// tokens are signed with different secrets.
type TokenManager struct {
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
	now           func() time.Time
}

// TokenOption customizes a TokenManager.
type TokenOption func(*TokenManager)

// WithClock overrides the time source used for issuing and validating.
func WithClock(now func() time.Time) TokenOption {
	return func(tm *TokenManager) {
		if now != nil {
			tm.now = now
		}
	}
}

// NewTokenManager builds a new manager.
func NewTokenManager(accessSecret, refreshSecret string, accessTTL, refreshTTL time.Duration, opts ...TokenOption) (*TokenManager, error) {
	if accessSecret == "" || refreshSecret == "" {
		return nil, errors.New("token secrets must not be empty")
	}
	if accessSecret == refreshSecret {
		return nil, errors.New("access and refresh secrets must differ")
	}
	if accessTTL <= 0 {
		accessTTL = DefaultAccessTTL
	}
	if refreshTTL <= 0 {
		refreshTTL = DefaultRefreshTTL
	}
	tm := &TokenManager{
		accessSecret:  []byte(accessSecret),
		refreshSecret: []byte(refreshSecret),
		accessTTL:     accessTTL,
		refreshTTL:    refreshTTL,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(tm)
	}
	return tm, nil
}

// Claims describes JWT payload.
type Claims struct {
	Kind domain.TokenKind `json:"typ"`
	jwt.RegisteredClaims
}

// Issue mints a fresh access and refresh token for userID.
func (tm *TokenManager) Issue(userID string) (domain.TokenPair, error) {
	access, accessExp, err := tm.sign(userID, domain.TokenKindAccess)
	if err != nil {
		return domain.TokenPair{}, fmt.Errorf("sign access token: %w", err)
	}
	refresh, refreshExp, err := tm.sign(userID, domain.TokenKindRefresh)
	if err != nil {
		return domain.TokenPair{}, fmt.Errorf("sign refresh token: %w", err)
	}
	return domain.TokenPair{
		AccessToken:      access,
		RefreshToken:     refresh,
		AccessExpiresAt:  accessExp,
		RefreshExpiresAt: refreshExp,
	}, nil
}

// VerifyAccess returns the user id of a valid access token.
func (tm *TokenManager) VerifyAccess(token string) (string, error) {
	return tm.verify(token, domain.TokenKindAccess)
}

// VerifyRefresh returns the user id of a valid refresh token.
func (tm *TokenManager) VerifyRefresh(token string) (string, error) {
	return tm.verify(token, domain.TokenKindRefresh)
}

func (tm *TokenManager) sign(userID string, kind domain.TokenKind) (string, time.Time, error) {
	now := tm.now()
	expiresAt := now.Add(tm.ttl(kind))
	claims := &Claims{
		Kind: kind,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   userID,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(tm.secret(kind))
	if err != nil {
		return "", time.Time{}, err
	}
	return tokenString, expiresAt, nil
}

func (tm *TokenManager) verify(tokenStr string, kind domain.TokenKind) (string, error) {
	if tokenStr == "" {
		return "", ErrTokenInvalid
	}
	parsed, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, errors.New("unexpected signing method")
		}
		return tm.secret(kind), nil
	}, jwt.WithTimeFunc(tm.now), jwt.WithExpirationRequired())
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", ErrTokenExpired
		}
		return "", fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid || claims.Kind != kind || claims.Subject == "" {
		return "", ErrTokenInvalid
	}
	return claims.Subject, nil
}

func (tm *TokenManager) ttl(kind domain.TokenKind) time.Duration {
	if kind == domain.TokenKindRefresh {
		return tm.refreshTTL
	}
	return tm.accessTTL
}

func (tm *TokenManager) secret(kind domain.TokenKind) []byte {
	if kind == domain.TokenKindRefresh {
		return tm.refreshSecret
	}
	return tm.accessSecret
}
