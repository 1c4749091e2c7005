package domain

import "time"

// UserRole is the authorization role attached to a dashboard account.
type UserRole string

const (
	UserRoleUser  UserRole = "user"
	UserRoleAdmin UserRole = "admin"
)

// Theme selects the dashboard color scheme.
type Theme string

const (
	ThemeLight Theme = "light"
	ThemeDark  Theme = "dark"
	ThemeAuto  Theme = "auto"
)

// NotificationSettings toggles the notification channels a user receives.
type NotificationSettings struct {
	Email   bool `json:"email"`
	Browser bool `json:"browser"`
}

// Settings are display preferences; nothing in auth reads them.
type Settings struct {
	Theme         Theme                `json:"theme"`
	Notifications NotificationSettings `json:"notifications"`
	Timezone      string               `json:"timezone"`
}

// DefaultSettings are applied at registration.
func DefaultSettings() Settings {
	return Settings{
		Theme:         ThemeDark,
		Notifications: NotificationSettings{Email: true, Browser: true},
		Timezone:      "UTC",
	}
}

// User is the account aggregate. PasswordHash, TwoFactorSecret and
// TwoFactorBackupCodes are only populated when credentials were requested
// explicitly from the store.
type User struct {
	ID        string
	Email     string
	Name      string
	Company   string
	Role      UserRole
	Settings  Settings
	IsActive  bool
	LastLogin *time.Time

	PasswordHash string
	Lockout      LockoutState

	TwoFactorEnabled     bool
	TwoFactorSecret      string
	TwoFactorBackupCodes []string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// LockoutState is the persisted failed-login bookkeeping. A LockUntil in the
// past is the same as no lock.
type LockoutState struct {
	FailedAttempts int
	LockUntil      *time.Time
}

// TwoFactorStatus is the enrollment state derived from the stored fields.
type TwoFactorStatus string

const (
	TwoFactorDisabled     TwoFactorStatus = "disabled"
	TwoFactorPendingSetup TwoFactorStatus = "pending_setup"
	TwoFactorEnabled      TwoFactorStatus = "enabled"
)

// TwoFactorStatus reports where the user is in 2FA enrollment. It needs the
// credential projection to tell pending setup apart from disabled.
func (u *User) TwoFactorStatus() TwoFactorStatus {
	switch {
	case u.TwoFactorEnabled:
		return TwoFactorEnabled
	case u.TwoFactorSecret != "":
		return TwoFactorPendingSetup
	default:
		return TwoFactorDisabled
	}
}
