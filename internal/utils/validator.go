package utils

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

const (
	MinPasswordLength    = 6
	MinDisplayNameLength = 2
)

var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

// ValidationError is returned when user input is rejected before reaching any remote service
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// ValidateEmail validates an email address
func ValidateEmail(email string) bool {
	return emailRegex.MatchString(strings.TrimSpace(email))
}

// ValidatePassword validates a password
// Minimum 6 characters, counted as runes
func ValidatePassword(password string) bool {
	return utf8.RuneCountInString(password) >= MinPasswordLength
}

// SanitizeEmail sanitizes an email address
func SanitizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// CheckEmail returns a *ValidationError when email is empty or malformed
func CheckEmail(email string) error {
	if strings.TrimSpace(email) == "" {
		return &ValidationError{Field: "email", Message: "email is required"}
	}
	if !ValidateEmail(email) {
		return &ValidationError{Field: "email", Message: "email format is not valid"}
	}
	return nil
}

// CheckPassword returns a *ValidationError when password is too short
func CheckPassword(password string) error {
	if password == "" {
		return &ValidationError{Field: "password", Message: "password is required"}
	}
	if !ValidatePassword(password) {
		return &ValidationError{Field: "password", Message: "password must be at least 6 characters long"}
	}
	return nil
}

// CheckDisplayName returns a *ValidationError when the trimmed name is empty or too short
func CheckDisplayName(displayName string) error {
	trimmed := strings.TrimSpace(displayName)
	if trimmed == "" {
		return &ValidationError{Field: "display_name", Message: "display name must not be empty"}
	}
	if utf8.RuneCountInString(trimmed) < MinDisplayNameLength {
		return &ValidationError{Field: "display_name", Message: "display name must be at least 2 characters long"}
	}
	return nil
}
