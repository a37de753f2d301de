package auth

import (
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"fmt"
	"math/big"

	"github.com/google/uuid"
)

// SigningKey holds the process-lifetime RSA key pair used to sign tokens.
// It is generated once at startup and never mutated afterwards, so concurrent
// reads from token issuance and key-set requests need no locking. Restarting
// the process generates a new pair and invalidates previously issued tokens.
type SigningKey struct {
	kid     string
	private *rsa.PrivateKey
}

// NewSigningKey generates a 2048-bit RSA key pair with a fresh key id.
// Failure here is fatal for the service; it cannot run without a signing key.
func NewSigningKey() (*SigningKey, error) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		return nil, fmt.Errorf("generate rsa key: %w", err)
	}
	return &SigningKey{kid: uuid.NewString(), private: key}, nil
}

// KeyID returns the key identifier carried in token headers and the JWK set.
func (k *SigningKey) KeyID() string {
	return k.kid
}

// Public returns the verification half of the pair.
func (k *SigningKey) Public() *rsa.PublicKey {
	return &k.private.PublicKey
}

// JWK is a single public key entry in a JWK set.
type JWK struct {
	Kty string `json:"kty"`
	Use string `json:"use"`
	Alg string `json:"alg"`
	Kid string `json:"kid"`
	N   string `json:"n"`
	E   string `json:"e"`
}

// JWKSet is the document served at /.well-known/jwks.json.
type JWKSet struct {
	Keys []JWK `json:"keys"`
}

// JWKS renders the public key as a JWK set. The structure carries public
// material only; no serialization path can reach the private half.
func (k *SigningKey) JWKS() JWKSet {
	pub := k.Public()
	return JWKSet{Keys: []JWK{{
		Kty: "RSA",
		Use: "sig",
		Alg: "RS256",
		Kid: k.kid,
		N:   base64.RawURLEncoding.EncodeToString(pub.N.Bytes()),
		E:   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(pub.E)).Bytes()),
	}}}
}
