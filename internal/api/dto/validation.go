package dto

import (
	"fmt"
	"net/mail"
	"strings"
	"unicode"
	"unicode/utf8"
)

// FieldErrors maps a JSON field name to a user-facing message.
type FieldErrors map[string]string

func (f FieldErrors) add(field, message string) {
	if _, exists := f[field]; !exists {
		f[field] = message
	}
}

// Details converts the errors into the API error details object.
func (f FieldErrors) Details() map[string]any {
	out := make(map[string]any, len(f))
	for k, v := range f {
		out[k] = v
	}
	return out
}

func (f FieldErrors) err() FieldErrors {
	if len(f) == 0 {
		return nil
	}
	return f
}

const (
	maxPasswordBytes = 72
	passwordSpecials = "@$!%*?&"
)

func checkEmail(errs FieldErrors, field, value string) {
	value = strings.TrimSpace(value)
	if value == "" {
		errs.add(field, "is required")
		return
	}
	addr, err := mail.ParseAddress(value)
	if err != nil || addr.Address != value || !strings.Contains(value[strings.LastIndex(value, "@"):], ".") {
		errs.add(field, "must be a valid email")
	}
}

func checkRequired(errs FieldErrors, field, value string) {
	if strings.TrimSpace(value) == "" {
		errs.add(field, "is required")
	}
}

func checkLength(errs FieldErrors, field, value string, minLen, maxLen int) {
	n := utf8.RuneCountInString(strings.TrimSpace(value))
	if n < minLen || n > maxLen {
		errs.add(field, fmt.Sprintf("must be between %d and %d characters", minLen, maxLen))
	}
}

func checkPasswordLength(errs FieldErrors, field, value string, minLen int) {
	switch {
	case utf8.RuneCountInString(value) < minLen:
		errs.add(field, fmt.Sprintf("must be at least %d characters", minLen))
	case len(value) > maxPasswordBytes:
		errs.add(field, "must be at most 72 bytes")
	}
}

// checkPasswordStrength requires a lowercase and an uppercase letter, a digit
// and one of @$!%*?&.
func checkPasswordStrength(errs FieldErrors, field, value string) {
	var lower, upper, digit, special bool
	for _, r := range value {
		switch {
		case unicode.IsLower(r):
			lower = true
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsDigit(r):
			digit = true
		case strings.ContainsRune(passwordSpecials, r):
			special = true
		}
	}
	if !lower || !upper || !digit || !special {
		errs.add(field, "must contain upper and lower case letters, a number and one of "+passwordSpecials)
	}
}
