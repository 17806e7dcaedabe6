package token

import (
	"crypto/rand"
	"encoding/hex"

	"github.com/pkg/errors"
)

// Signing modes selectable by configuration
const (
	SigningPlaceholder = "placeholder"
	SigningHMAC        = "hs256"
	SigningRSA         = "rs256"
)

// KeySetProvider is implemented by signers whose verification keys can be published
type KeySetProvider interface {
	JWKS() JWKS
}

// SignerOptions carries the key material for NewSigner
type SignerOptions struct {
	// Secret is the HMAC secret. A random one is generated when empty.
	Secret string

	// KeyFile is the PEM file of the RSA key. It is created when missing.
	// Without a file an ephemeral key is generated.
	KeyFile string

	// KeyID is written in the kid header of RSA-signed tokens.
	KeyID string
}

// NewSigner builds the signer for mode. The empty mode is the placeholder signer.
func NewSigner(mode string, opts SignerOptions) (Signer, error) {
	switch mode {
	case "", SigningPlaceholder:
		return NewPlaceholderSigner(), nil

	case SigningHMAC:
		secret := opts.Secret
		if secret == "" {
			buf := make([]byte, 32)
			if _, err := rand.Read(buf); err != nil {
				return nil, errors.Wrap(err, "failed to generate HMAC secret")
			}
			secret = hex.EncodeToString(buf)
		}
		return NewHMACSigner(secret), nil

	case SigningRSA:
		keyID := opts.KeyID
		if keyID == "" {
			keyID = "sso-1"
		}
		var (
			kp  *KeyPair
			err error
		)
		if opts.KeyFile != "" {
			kp, err = LoadOrCreateKeyPair(keyID, opts.KeyFile)
		} else {
			kp, err = GenerateRSAKeyPair(keyID, 2048)
		}
		if err != nil {
			return nil, err
		}
		return NewKeyPairSigner(kp), nil

	default:
		return nil, errors.Errorf("unsupported signing mode: %s", mode)
	}
}
