package service

import "errors"

// Sentinel errors returned by services. Handlers translate them into API errors.
var (
	ErrDuplicateUser          = errors.New("user already exists")
	ErrInvalidCredentials     = errors.New("invalid credentials")
	ErrInvalidTwoFactorToken  = errors.New("invalid two-factor token")
	ErrAccountLocked          = errors.New("account locked")
	ErrInvalidRefreshToken    = errors.New("invalid refresh token")
	ErrWeakPassword           = errors.New("password does not meet requirements")
	ErrCurrentPasswordInvalid = errors.New("current password is incorrect")
	ErrUserNotFound           = errors.New("user not found")

	ErrTwoFactorAlreadyEnabled = errors.New("two-factor authentication already enabled")
	ErrNoPendingSetup          = errors.New("no two-factor setup found")
	ErrInvalidPassword         = errors.New("invalid password")
	ErrInvalidVerifyRequest    = errors.New("invalid request")

	ErrKeyNameRequired = errors.New("api key name is required")
	ErrKeyNotFound     = errors.New("api key not found or inactive")
	ErrJobNotFound     = errors.New("job not found")
)
