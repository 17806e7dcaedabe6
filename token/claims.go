package token

import (
	"strings"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
)

// Header is the first segment of an SSO token.
type Header struct {
	Alg string `json:"alg"`
	Typ string `json:"typ"`
}

// Identity is the user data a token is minted from.
type Identity struct {
	ID       string
	Email    string
	Role     string
	Metadata map[string]any
}

// Claims is the token payload. Field order mirrors what browser clients expect.
type Claims struct {
	Subject      string         `json:"sub"`
	Email        string         `json:"email"`
	Name         string         `json:"name"`
	Role         string         `json:"role"`
	UserMetadata map[string]any `json:"user_metadata"`
	IssuedAt     int64          `json:"iat"`
	ExpiresAt    int64          `json:"exp,omitempty"`
	Issuer       string         `json:"iss"`
	Audience     string         `json:"aud"`
}

var _ jwtlib.Claims = Claims{}

// DisplayName returns the "name" metadata entry, falling back to the local part of the email.
func DisplayName(email string, metadata map[string]any) string {
	if name, ok := metadata["name"].(string); ok && name != "" {
		return name
	}
	local, _, _ := strings.Cut(email, "@")
	return local
}

func (c Claims) GetExpirationTime() (*jwtlib.NumericDate, error) {
	if c.ExpiresAt == 0 {
		return nil, nil
	}
	return jwtlib.NewNumericDate(time.Unix(c.ExpiresAt, 0)), nil
}

func (c Claims) GetIssuedAt() (*jwtlib.NumericDate, error) {
	if c.IssuedAt == 0 {
		return nil, nil
	}
	return jwtlib.NewNumericDate(time.Unix(c.IssuedAt, 0)), nil
}

func (c Claims) GetNotBefore() (*jwtlib.NumericDate, error) {
	return nil, nil
}

func (c Claims) GetIssuer() (string, error) {
	return c.Issuer, nil
}

func (c Claims) GetSubject() (string, error) {
	return c.Subject, nil
}

func (c Claims) GetAudience() (jwtlib.ClaimStrings, error) {
	if c.Audience == "" {
		return nil, nil
	}
	return jwtlib.ClaimStrings{c.Audience}, nil
}
