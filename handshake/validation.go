package handshake

import (
	"errors"
	"strings"
	"unicode/utf8"

	"github.com/jrsteele09/go-sso/users"
)

var (
	ErrPasswordMismatch = errors.New("passwords do not match")
	ErrPasswordTooShort = errors.New("password too short")
	ErrTermsNotAccepted = errors.New("terms not accepted")
)

// SignupForm is the submitted signup form
type SignupForm struct {
	Email           string
	Password        string
	PasswordConfirm string
	Name            string
	AgreeTerms      bool
}

// ValidateSignup checks the form before anything is sent to the backend.
// Checks run in order and the first failure is returned.
func ValidateSignup(f SignupForm) error {
	if f.Password != f.PasswordConfirm {
		return ErrPasswordMismatch
	}
	if utf8.RuneCountInString(f.Password) < users.MinPasswordLength {
		return ErrPasswordTooShort
	}
	if !f.AgreeTerms {
		return ErrTermsNotAccepted
	}
	return nil
}

// messageForValidation maps a validation error to its catalog key
func messageForValidation(err error) MessageKey {
	switch {
	case errors.Is(err, ErrPasswordMismatch):
		return MsgPasswordMismatch
	case errors.Is(err, ErrPasswordTooShort):
		return MsgPasswordTooShort
	case errors.Is(err, ErrTermsNotAccepted):
		return MsgTermsRequired
	default:
		return MsgSignupFailed
	}
}

func normaliseEmail(email string) string {
	return strings.TrimSpace(email)
}
