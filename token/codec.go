package token

import (
	"encoding/base64"
	"encoding/json"
	"strings"
	"time"

	ierrors "github.com/jrsteele09/go-sso/internal/errors"
)

const (
	// Algorithm is the header algorithm tag written on every token
	Algorithm = "HS256"
	// Type is the header type tag
	Type = "JWT"
	// Lifetime is the fixed distance between iat and exp
	Lifetime = time.Hour
	// DefaultRole is used when the identity backend supplies none
	DefaultRole = "user"
)

// Codec mints tokens for a single issuer.
type Codec struct {
	issuer string
	signer Signer
	now    func() time.Time
}

// Option configures a Codec.
type Option func(*Codec)

// WithSigner replaces the default placeholder signer
func WithSigner(s Signer) Option {
	return func(c *Codec) {
		c.signer = s
	}
}

// WithNowTime sets the now time function (primarily for testing)
func WithNowTime(now func() time.Time) Option {
	return func(c *Codec) {
		c.now = now
	}
}

// NewCodec returns a codec issuing tokens as issuer.
func NewCodec(issuer string, opts ...Option) *Codec {
	c := &Codec{
		issuer: issuer,
		signer: NewPlaceholderSigner(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Codec) Issuer() string {
	return c.issuer
}

// Claims builds the payload for id. The audience is clientID, or the issuer when clientID is empty.
func (c *Codec) Claims(id Identity, clientID string) Claims {
	iat := c.now().Unix()

	role := id.Role
	if role == "" {
		role = DefaultRole
	}
	metadata := id.Metadata
	if metadata == nil {
		metadata = map[string]any{}
	}
	aud := clientID
	if aud == "" {
		aud = c.issuer
	}

	return Claims{
		Subject:      id.ID,
		Email:        id.Email,
		Name:         DisplayName(id.Email, metadata),
		Role:         role,
		UserMetadata: metadata,
		IssuedAt:     iat,
		ExpiresAt:    iat + int64(Lifetime/time.Second),
		Issuer:       c.issuer,
		Audience:     aud,
	}
}

// Encode mints a token for id. With the placeholder signer it never fails.
func (c *Codec) Encode(id Identity, clientID string) (string, error) {
	return c.Sign(c.Claims(id, clientID))
}

// Sign serialises already built claims
func (c *Codec) Sign(claims Claims) (string, error) {
	return c.signer.Sign(claims)
}

// Verify checks the signature of raw and returns its claims. It does not check expiry.
func (c *Codec) Verify(raw string) (*Claims, error) {
	claims, err := Decode(raw)
	if err != nil {
		return nil, err
	}
	if err := c.signer.Verify(raw); err != nil {
		return nil, err
	}
	return claims, nil
}

// Decode parses the payload of raw without checking its signature.
// A decoded token is an identity the caller asserts, not one the server has verified.
func Decode(raw string) (*Claims, error) {
	parts := strings.Split(raw, ".")
	if len(parts) != 3 {
		return nil, ierrors.ErrInvalidTokenFormat
	}

	payload, err := decodeSegment(parts[1])
	if err != nil {
		return nil, ierrors.Wrapf(ierrors.ErrInvalidTokenFormat, "payload encoding (%v)", err)
	}

	var claims Claims
	if err := json.Unmarshal(payload, &claims); err != nil {
		return nil, ierrors.Wrapf(ierrors.ErrInvalidTokenFormat, "payload json (%v)", err)
	}
	return &claims, nil
}

// IsExpired reports whether claims carry an exp strictly before now.
func IsExpired(claims *Claims, now time.Time) bool {
	if claims == nil || claims.ExpiresAt == 0 {
		return false
	}
	nowSeconds := float64(now.UnixNano()) / float64(time.Second)
	return float64(claims.ExpiresAt) < nowSeconds
}

// decodeSegment accepts both url-safe and standard base64, with or without padding.
func decodeSegment(seg string) ([]byte, error) {
	seg = strings.NewReplacer("-", "+", "_", "/").Replace(seg)
	seg = strings.TrimRight(seg, "=")
	return base64.RawStdEncoding.DecodeString(seg)
}
