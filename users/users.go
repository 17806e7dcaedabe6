package users

import (
	"time"
	"unicode"

	"github.com/pkg/errors"
	"golang.org/x/crypto/bcrypt"

	ierrors "github.com/jrsteele09/go-sso/internal/errors"
)

// RoleType is the role carried into issued tokens
type RoleType string

const (
	RoleUser  RoleType = "user"
	RoleAdmin RoleType = "admin"
)

// MinPasswordLength is the shortest password accepted at signup
const MinPasswordLength = 8

type User struct {
	ID           string         `json:"id,omitempty"`            // Unique identifier for the user
	Email        string         `json:"email,omitempty"`         // User's email address
	PasswordHash string         `json:"-"`                       // Hashed version of the user's password - never serialize
	Role         RoleType       `json:"role,omitempty"`          // Role copied into tokens
	Metadata     map[string]any `json:"user_metadata,omitempty"` // Free-form profile data (name, ...)
	DateJoined   time.Time      `json:"date_joined,omitempty"`   // Date and time when the user registered
	LastLogin    time.Time      `json:"last_login,omitempty"`    // Last time the user logged in

	Confirmed bool `json:"confirmed,omitempty"` // Confirmed, has the user confirmed their email
	Blocked   bool `json:"blocked,omitempty"`   // Blocked, has the user been blocked from logging in
}

// DisplayName returns the "name" metadata entry, if any
func (u *User) DisplayName() string {
	if name, ok := u.Metadata["name"].(string); ok {
		return name
	}
	return ""
}

// PasswordPolicy is what the local backend demands of a new password
type PasswordPolicy struct {
	MinLength        int
	RequireMixedCase bool
	RequireDigit     bool
}

// DefaultPasswordPolicy wants MinPasswordLength characters with mixed case and a digit
var DefaultPasswordPolicy = PasswordPolicy{MinLength: MinPasswordLength, RequireMixedCase: true, RequireDigit: true}

// Validate returns the first rule password breaks, wrapping ErrWeakPassword
func (p PasswordPolicy) Validate(password string) error {
	if len(password) < p.MinLength {
		return errors.Wrapf(ierrors.ErrWeakPassword, "password must be at least %d characters long", p.MinLength)
	}

	var upper, lower, digit bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		}
	}
	if p.RequireMixedCase && !upper {
		return errors.Wrap(ierrors.ErrWeakPassword, "password must contain at least one uppercase letter")
	}
	if p.RequireMixedCase && !lower {
		return errors.Wrap(ierrors.ErrWeakPassword, "password must contain at least one lowercase letter")
	}
	if p.RequireDigit && !digit {
		return errors.Wrap(ierrors.ErrWeakPassword, "password must contain at least one number")
	}
	return nil
}

func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(bytes), err
}

func CheckPasswordHash(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}

// CheckPassword checks a password against the user's hash
func (u *User) CheckPassword(password string) bool {
	return CheckPasswordHash(password, u.PasswordHash)
}
