package errors

import (
	"errors"
	"fmt"
)

// Common error types for the SSO server and client library
var (
	// Token errors
	ErrInvalidTokenFormat = errors.New("invalid token format")
	ErrInvalidSignature   = errors.New("invalid token signature")

	// Client library errors
	ErrNoToken              = errors.New("no authentication token available")
	ErrAuthenticationFailed = errors.New("authentication failed")

	// Identity backend errors
	ErrInvalidCredentials  = errors.New("invalid credentials")
	ErrUserExists          = errors.New("user already registered")
	ErrUserNotFound        = errors.New("user not found")
	ErrUserNotConfirmed    = errors.New("email not confirmed")
	ErrWeakPassword        = errors.New("password is too weak")
	ErrInvalidRefreshToken = errors.New("invalid refresh token")

	// Session errors
	ErrSessionNotFound = errors.New("session not found")

	// General errors
	ErrInternal    = errors.New("internal error")
	ErrRateLimited = errors.New("too many requests")
)

// Wrapf wraps an error with context using fmt.Errorf
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}

// Is reports whether any error in err's chain matches target
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
