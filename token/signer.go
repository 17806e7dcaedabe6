package token

import (
	"encoding/base64"
	"encoding/json"
	"strings"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/pkg/errors"

	ierrors "github.com/jrsteele09/go-sso/internal/errors"
)

// PlaceholderSignature is the constant third segment written by PlaceholderSigner.
const PlaceholderSignature = "demo-signature"

// Signer produces and checks the serialised form of a token.
type Signer interface {
	// Sign serialises claims into a header.payload.signature string
	Sign(claims Claims) (string, error)

	// Verify reports whether the signature segment of raw is valid for this signer
	Verify(raw string) error

	// Algorithm is the value advertised in the token header
	Algorithm() string
}

// PlaceholderSigner writes each segment as standard padded base64 and a constant signature.
// It provides no integrity; any holder can forge a token.
type PlaceholderSigner struct{}

func NewPlaceholderSigner() PlaceholderSigner {
	return PlaceholderSigner{}
}

func (PlaceholderSigner) Algorithm() string {
	return Algorithm
}

func (p PlaceholderSigner) Sign(claims Claims) (string, error) {
	header, err := json.Marshal(Header{Alg: p.Algorithm(), Typ: Type})
	if err != nil {
		return "", errors.Wrap(err, "failed to marshal token header")
	}
	payload, err := json.Marshal(claims)
	if err != nil {
		return "", errors.Wrap(err, "failed to marshal token payload")
	}

	return strings.Join([]string{
		base64.StdEncoding.EncodeToString(header),
		base64.StdEncoding.EncodeToString(payload),
		base64.StdEncoding.EncodeToString([]byte(PlaceholderSignature)),
	}, "."), nil
}

func (PlaceholderSigner) Verify(raw string) error {
	parts := strings.Split(raw, ".")
	if len(parts) != 3 {
		return ierrors.ErrInvalidTokenFormat
	}
	sig, err := decodeSegment(parts[2])
	if err != nil || string(sig) != PlaceholderSignature {
		return ierrors.ErrInvalidSignature
	}
	return nil
}

// HMACSigner implements Signer using symmetric HMAC-SHA256
type HMACSigner struct {
	secret []byte
}

// NewHMACSigner creates a new HMAC signer with the given secret
func NewHMACSigner(secret string) *HMACSigner {
	return &HMACSigner{
		secret: []byte(secret),
	}
}

func (h *HMACSigner) Algorithm() string {
	return jwtlib.SigningMethodHS256.Alg()
}

func (h *HMACSigner) Sign(claims Claims) (string, error) {
	signed, err := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims).SignedString(h.secret)
	if err != nil {
		return "", errors.Wrap(err, "failed to sign token with HMAC")
	}
	return signed, nil
}

func (h *HMACSigner) Verify(raw string) error {
	_, err := jwtlib.ParseWithClaims(raw, &Claims{}, h.verificationKey,
		jwtlib.WithValidMethods([]string{h.Algorithm()}),
		jwtlib.WithoutClaimsValidation(),
	)
	if err == nil {
		return nil
	}
	if errors.Is(err, jwtlib.ErrTokenMalformed) {
		return ierrors.Wrapf(ierrors.ErrInvalidTokenFormat, "hmac parse (%v)", err)
	}
	return ierrors.Wrapf(ierrors.ErrInvalidSignature, "hmac verify (%v)", err)
}

func (h *HMACSigner) verificationKey(t *jwtlib.Token) (any, error) {
	if _, ok := t.Method.(*jwtlib.SigningMethodHMAC); !ok {
		return nil, errors.Errorf("unexpected signing method: %v", t.Header["alg"])
	}
	return h.secret, nil
}

// KeyPairSigner implements Signer using RSA with RS256. Services verify with the published JWKS.
type KeyPairSigner struct {
	keyPair *KeyPair
}

// NewKeyPairSigner creates a new key pair signer with the given key pair
func NewKeyPairSigner(keyPair *KeyPair) *KeyPairSigner {
	return &KeyPairSigner{keyPair: keyPair}
}

func (k *KeyPairSigner) Algorithm() string {
	return jwtlib.SigningMethodRS256.Alg()
}

func (k *KeyPairSigner) Sign(claims Claims) (string, error) {
	t := jwtlib.NewWithClaims(jwtlib.SigningMethodRS256, claims)
	t.Header["kid"] = k.keyPair.KeyID

	signed, err := t.SignedString(k.keyPair.PrivateKey)
	if err != nil {
		return "", errors.Wrap(err, "failed to sign token with asymmetric key")
	}
	return signed, nil
}

func (k *KeyPairSigner) Verify(raw string) error {
	_, err := jwtlib.ParseWithClaims(raw, &Claims{}, k.verificationKey,
		jwtlib.WithValidMethods([]string{k.Algorithm()}),
		jwtlib.WithoutClaimsValidation(),
	)
	if err == nil {
		return nil
	}
	if errors.Is(err, jwtlib.ErrTokenMalformed) {
		return ierrors.Wrapf(ierrors.ErrInvalidTokenFormat, "rsa parse (%v)", err)
	}
	return ierrors.Wrapf(ierrors.ErrInvalidSignature, "rsa verify (%v)", err)
}

func (k *KeyPairSigner) verificationKey(t *jwtlib.Token) (any, error) {
	if _, ok := t.Method.(*jwtlib.SigningMethodRSA); !ok {
		return nil, errors.Errorf("unexpected signing method: %v", t.Header["alg"])
	}
	return k.keyPair.PublicKey, nil
}

// JWKS returns the JSON Web Key Set holding the public key
func (k *KeyPairSigner) JWKS() JWKS {
	return JWKS{Keys: []JWK{k.keyPair.ToJWK()}}
}
