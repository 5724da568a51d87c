package model

import (
	"strings"
	"time"
)

// Account represents an identity record as stored in the `accounts` table.
// The credential fields are never serialized; handlers respond with
// PublicAccount instead.
//
// Fields:
//  ID                  – UUID primary key.
//  FullName            – display name.
//  Email               – unique, stored lower-cased.
//  Username            – unique, stored lower-cased.
//  AvatarURL           – optional avatar reference.
//  PasswordHash        – bcrypt digest; nil for federation-only accounts.
//  ResetTokenHash      – SHA-256 of the active reset token, if any.
//  ResetTokenExpiresAt – expiry of the active reset token, if any.
type Account struct {
	ID                  string     `json:"id"`
	FullName            string     `json:"fullName"`
	Email               string     `json:"email"`
	Username            string     `json:"username"`
	AvatarURL           *string    `json:"avatarUrl"`
	PasswordHash        *string    `json:"-"`
	ResetTokenHash      *string    `json:"-"`
	ResetTokenExpiresAt *time.Time `json:"-"`
	CreatedAt           time.Time  `json:"-"`
	UpdatedAt           time.Time  `json:"-"`
}

// HasPassword reports whether the account can log in with a password.
func (a Account) HasPassword() bool { return a.PasswordHash != nil && *a.PasswordHash != "" }

// PublicAccount is the redacted account payload returned by the API.
type PublicAccount struct {
	ID        string  `json:"id"`
	FullName  string  `json:"fullName"`
	Email     string  `json:"email"`
	Username  string  `json:"username"`
	AvatarURL *string `json:"avatarUrl"`
}

// Public strips every credential field from a.
func (a Account) Public() PublicAccount {
	return PublicAccount{
		ID:        a.ID,
		FullName:  a.FullName,
		Email:     a.Email,
		Username:  a.Username,
		AvatarURL: a.AvatarURL,
	}
}

// NormalizeEmail trims and lower-cases an email address. Emails are unique
// case-insensitively.
func NormalizeEmail(s string) string { return strings.ToLower(strings.TrimSpace(s)) }

// NormalizeUsername trims and lower-cases a username. Usernames are unique
// case-insensitively.
func NormalizeUsername(s string) string { return strings.ToLower(strings.TrimSpace(s)) }
