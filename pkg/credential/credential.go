// Package credential stores user identities and one-way password hashes.
//
// Every service that authenticates users directly (the user service and the
// blog service) owns a users table of the same shape and reaches it through
// Store. Plaintext secrets never leave this package; the hash never leaves
// the database row.
package credential

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	apperrors "github.com/Lv-up-Planner/initRepo/pkg/errors"
)

const (
	// DefaultBcryptCost is used when no cost is configured.
	DefaultBcryptCost = 12

	// MinSecretLength is the minimum accepted password length in characters.
	MinSecretLength = 8

	// maxSecretBytes is the bcrypt input limit; longer secrets are rejected
	// rather than silently truncated.
	maxSecretBytes = 72
)

// User is the stored identity. PasswordHash is never serialized.
type User struct {
	ID           string     `json:"id"`
	Username     string     `json:"username"`
	Email        string     `json:"email,omitempty"`
	PasswordHash string     `json:"-"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
	LastLoginAt  *time.Time `json:"last_login_at,omitempty"`
}

// NewUser holds the input for Create.
type NewUser struct {
	Username string
	Email    string
	Password string
}

// Stats summarizes the users table.
type Stats struct {
	TotalUsers   int64 `json:"total_users"`
	ActiveLast24 int64 `json:"active_last_24h"`
}

// ValidateSecret checks the password policy.
func ValidateSecret(secret string) error {
	if utf8.RuneCountInString(secret) < MinSecretLength {
		return apperrors.InvalidInput(fmt.Sprintf("password must be at least %d characters", MinSecretLength))
	}
	if len(secret) > maxSecretBytes {
		return apperrors.InvalidInput(fmt.Sprintf("password must be at most %d bytes", maxSecretBytes))
	}
	return nil
}

// normalizeIdentity trims whitespace; usernames keep their case, emails are
// compared case-insensitively.
func normalizeIdentity(identity string) string {
	identity = strings.TrimSpace(identity)
	if strings.Contains(identity, "@") {
		return strings.ToLower(identity)
	}
	return identity
}

// invalidCredentials is the single error returned for every verification
// failure, whatever the cause.
func invalidCredentials() error {
	return apperrors.Unauthorized("invalid credentials")
}
