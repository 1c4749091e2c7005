package dto

import (
	"strings"
	"time"

	"github.com/brymix/dashboard-bff/internal/domain"
)

// RegisterRequest payload for new accounts.
type RegisterRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Company  string `json:"company"`
	Name     string `json:"name"`
}

// Validate checks field presence and lengths.
func (r RegisterRequest) Validate(minPassword int) FieldErrors {
	errs := FieldErrors{}
	checkEmail(errs, "email", r.Email)
	checkPasswordLength(errs, "password", r.Password, minPassword)
	checkLength(errs, "company", r.Company, 2, 100)
	checkLength(errs, "name", r.Name, 2, 50)
	return errs.err()
}

// LoginRequest payload for login. TwoFactorToken is optional.
type LoginRequest struct {
	Email          string `json:"email"`
	Password       string `json:"password"`
	TwoFactorToken string `json:"twoFactorToken,omitempty"`
	IsBackupCode   bool   `json:"isBackupCode,omitempty"`
}

// Validate checks field presence.
func (r LoginRequest) Validate() FieldErrors {
	errs := FieldErrors{}
	checkEmail(errs, "email", r.Email)
	if r.Password == "" {
		errs.add("password", "is required")
	}
	return errs.err()
}

// RefreshRequest carries the refresh token to rotate.
type RefreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// UpdateProfileRequest is a partial update; absent fields stay unchanged.
type UpdateProfileRequest struct {
	Company  *string          `json:"company,omitempty"`
	Name     *string          `json:"name,omitempty"`
	Settings *SettingsPayload `json:"settings,omitempty"`
}

// SettingsPayload mirrors domain.Settings on the wire.
type SettingsPayload struct {
	Theme         domain.Theme                `json:"theme"`
	Notifications domain.NotificationSettings `json:"notifications"`
	Timezone      string                      `json:"timezone"`
}

// Validate checks the fields that are present.
func (r UpdateProfileRequest) Validate() FieldErrors {
	errs := FieldErrors{}
	if r.Company != nil {
		checkLength(errs, "company", *r.Company, 2, 100)
	}
	if r.Name != nil {
		checkLength(errs, "name", *r.Name, 2, 50)
	}
	if s := r.Settings; s != nil {
		switch s.Theme {
		case domain.ThemeLight, domain.ThemeDark, domain.ThemeAuto:
		default:
			errs.add("settings.theme", "must be one of light, dark, auto")
		}
		if tz := strings.TrimSpace(s.Timezone); tz == "" || len(tz) > 64 {
			errs.add("settings.timezone", "must be between 1 and 64 characters")
		}
	}
	return errs.err()
}

// ToDomain converts the payload.
func (s SettingsPayload) ToDomain() domain.Settings {
	return domain.Settings{
		Theme:         s.Theme,
		Notifications: s.Notifications,
		Timezone:      strings.TrimSpace(s.Timezone),
	}
}

// ChangePasswordRequest payload for PUT /auth/password.
type ChangePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

// Validate enforces the password policy on the new password.
func (r ChangePasswordRequest) Validate(minPassword int) FieldErrors {
	errs := FieldErrors{}
	if r.CurrentPassword == "" {
		errs.add("currentPassword", "is required")
	}
	checkPasswordLength(errs, "newPassword", r.NewPassword, minPassword)
	checkPasswordStrength(errs, "newPassword", r.NewPassword)
	return errs.err()
}

// UserResponse is the public view of an account.
type UserResponse struct {
	ID               string          `json:"id"`
	Email            string          `json:"email"`
	Company          string          `json:"company"`
	Name             string          `json:"name"`
	Role             domain.UserRole `json:"role"`
	Settings         domain.Settings `json:"settings"`
	TwoFactorEnabled bool            `json:"twoFactorEnabled"`
	LastLogin        *time.Time      `json:"lastLogin,omitempty"`
	CreatedAt        time.Time       `json:"createdAt"`
}

// NewUserResponse maps the domain user; credentials never leave the service.
func NewUserResponse(u *domain.User) UserResponse {
	return UserResponse{
		ID:               u.ID,
		Email:            u.Email,
		Company:          u.Company,
		Name:             u.Name,
		Role:             u.Role,
		Settings:         u.Settings,
		TwoFactorEnabled: u.TwoFactorEnabled,
		LastLogin:        u.LastLogin,
		CreatedAt:        u.CreatedAt,
	}
}

// AuthResponse is returned by register and a completed login.
type AuthResponse struct {
	Message      string       `json:"message,omitempty"`
	User         UserResponse `json:"user"`
	AccessToken  string       `json:"accessToken"`
	RefreshToken string       `json:"refreshToken"`
}

// TwoFactorRequiredResponse is the intermediate login outcome.
type TwoFactorRequiredResponse struct {
	RequiresTwoFactor bool `json:"requiresTwoFactor"`
}

// TokenPairResponse is returned by refresh.
type TokenPairResponse struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// UserEnvelope wraps a user for /auth/me and /auth/profile.
type UserEnvelope struct {
	Message string       `json:"message,omitempty"`
	User    UserResponse `json:"user"`
}

// MessageResponse is a bare acknowledgement.
type MessageResponse struct {
	Message string `json:"message"`
}

// SetAccountStatusRequest toggles the kill switch of an account.
type SetAccountStatusRequest struct {
	IsActive *bool `json:"isActive"`
}

// Validate requires isActive.
func (r SetAccountStatusRequest) Validate() FieldErrors {
	errs := FieldErrors{}
	if r.IsActive == nil {
		errs.add("isActive", "is required")
	}
	return errs.err()
}
