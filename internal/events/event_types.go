package events

import (
	"time"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventUserRegistered    EventType = "user_registered"
	EventLoginSucceeded    EventType = "login_succeeded"
	EventLoginFailed       EventType = "login_failed"
	EventAccountLocked     EventType = "account_locked"
	EventTwoFactorRequired EventType = "two_factor_required"
	EventTwoFactorEnabled  EventType = "two_factor_enabled"
	EventTwoFactorDisabled EventType = "two_factor_disabled"
	EventBackupCodeUsed    EventType = "backup_code_used"
	EventPasswordChanged   EventType = "password_changed"
	EventProfileUpdated    EventType = "profile_updated"
	EventAPIKeyCreated     EventType = "api_key_created"
	EventAPIKeyRevoked     EventType = "api_key_revoked"
	EventAccountStatusSet  EventType = "account_status_changed"
	EventAccountUnlocked   EventType = "account_unlocked"
)

// AllEventTypes lists every event a subscriber may receive.
var AllEventTypes = []EventType{
	EventUserRegistered,
	EventLoginSucceeded,
	EventLoginFailed,
	EventAccountLocked,
	EventTwoFactorRequired,
	EventTwoFactorEnabled,
	EventTwoFactorDisabled,
	EventBackupCodeUsed,
	EventPasswordChanged,
	EventProfileUpdated,
	EventAPIKeyCreated,
	EventAPIKeyRevoked,
	EventAccountStatusSet,
	EventAccountUnlocked,
}

// Event represents an account security event emitted by services. Payloads
// must never carry passwords, hashes, secrets, backup codes or tokens.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	UserID    string      `json:"userId,omitempty"`
	Email     string      `json:"email,omitempty"`
	IP        string      `json:"ip,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload,omitempty"`
}

// LoginFailedPayload describes why a login attempt was rejected.
type LoginFailedPayload struct {
	Reason         string `json:"reason"`
	FailedAttempts int    `json:"failedAttempts"`
}

// AccountLockedPayload is emitted when a failure crosses the threshold.
type AccountLockedPayload struct {
	LockUntil time.Time `json:"lockUntil"`
}

// BackupCodeUsedPayload reports how many codes remain.
type BackupCodeUsedPayload struct {
	Remaining int `json:"remaining"`
}

// APIKeyPayload identifies a key by its masked form.
type APIKeyPayload struct {
	MaskedKey string `json:"maskedKey"`
	Name      string `json:"name,omitempty"`
}

// AccountStatusPayload records an administrative change.
type AccountStatusPayload struct {
	ActorID  string `json:"actorId"`
	IsActive *bool  `json:"isActive,omitempty"`
}
