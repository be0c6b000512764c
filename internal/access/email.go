package access

import (
	"errors"
	"net/mail"
	"strings"
)

var (
	ErrMissingEmail = errors.New("email is required")
	ErrInvalidEmail = errors.New("invalid email format")
)

// ValidEmail accepts a bare address with a non-empty local part and domain.
func ValidEmail(email string) error {
	if strings.TrimSpace(email) == "" {
		return ErrMissingEmail
	}

	// Must contain "@" and not be the first or last character
	at := strings.LastIndex(email, "@")
	if at < 1 || at == len(email)-1 {
		return ErrInvalidEmail
	}

	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email || addr.Name != "" {
		return ErrInvalidEmail
	}
	return nil
}

// SameIdentity compares two email identities case-insensitively.
func SameIdentity(a, b string) bool {
	return normalizeUser(a) != "" && normalizeUser(a) == normalizeUser(b)
}
