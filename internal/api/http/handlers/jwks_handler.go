package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/identity-service/internal/auth"
)

// JWKSHandler publishes the verification key set.
type JWKSHandler struct {
	key *auth.SigningKey
}

// NewJWKSHandler constructs handler.
func NewJWKSHandler(key *auth.SigningKey) *JWKSHandler {
	return &JWKSHandler{key: key}
}

// Keys handles GET /.well-known/jwks.json. The endpoint is deliberately
// unauthenticated: verifiers cannot authenticate against the very service
// whose tokens they are validating.
func (h *JWKSHandler) Keys(c *fiber.Ctx) error {
	return c.JSON(h.key.JWKS())
}
