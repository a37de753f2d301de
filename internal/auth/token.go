package auth

import (
	"errors"
	"strconv"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"

	"github.com/spec-kit/identity-service/internal/domain"
)

// Claims describes the JWT payload shared by the login and OAuth2 paths.
// Tokens are self-contained; verifiers check the signature, issuer, expiry
// and subject and never call back into this service.
type Claims struct {
	Authorities []string `json:"authorities"`
	UserID      int64    `json:"userId"`
	DisplayName string   `json:"displayName,omitempty"`
	jwt.RegisteredClaims
}

// TokenIssuer builds and signs access tokens with the process signing key.
// Both issuance paths share one issuer instance so every token verifies
// against the same published key set.
type TokenIssuer struct {
	key    *SigningKey
	issuer string
	ttl    time.Duration
}

// NewTokenIssuer builds an issuer for the given key, issuer URL and lifetime.
func NewTokenIssuer(key *SigningKey, issuerURL string, ttlSeconds int) *TokenIssuer {
	return &TokenIssuer{
		key:    key,
		issuer: issuerURL,
		ttl:    time.Duration(ttlSeconds) * time.Second,
	}
}

// TTL returns the configured access token lifetime.
func (ti *TokenIssuer) TTL() time.Duration {
	return ti.ttl
}

// Issue signs an access token carrying the principal's role snapshot.
func (ti *TokenIssuer) Issue(p domain.Principal) (string, time.Time, error) {
	return ti.sign(p, "")
}

// IssueForGrant signs an access token for the OAuth2 path, which additionally
// carries the display name claim. Verifiers treat both shapes as equivalent.
func (ti *TokenIssuer) IssueForGrant(p domain.Principal) (string, time.Time, error) {
	return ti.sign(p, p.DisplayName)
}

func (ti *TokenIssuer) sign(p domain.Principal, displayName string) (string, time.Time, error) {
	now := time.Now()
	expiresAt := now.Add(ti.ttl)
	claims := &Claims{
		Authorities: p.Authorities,
		UserID:      p.UserID,
		DisplayName: displayName,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    ti.issuer,
			Subject:   strconv.FormatInt(p.UserID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = ti.key.kid
	signed, err := token.SignedString(ti.key.private)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

// Parse validates a token against the public key and returns its claims.
func (ti *TokenIssuer) Parse(tokenStr string) (*Claims, error) {
	parsed, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodRS256 {
			return nil, errors.New("unexpected signing method")
		}
		return ti.key.Public(), nil
	})
	if err != nil {
		return nil, err
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, errors.New("invalid token claims")
	}
	return claims, nil
}
