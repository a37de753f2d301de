package handlers

import (
	"encoding/base64"
	"errors"
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/identity-service/internal/api/dto"
	"github.com/spec-kit/identity-service/internal/service"
)

// OAuthHandler exposes the OAuth2 token endpoint.
type OAuthHandler struct {
	oauth *service.OAuthService
}

// NewOAuthHandler constructs handler.
func NewOAuthHandler(oauth *service.OAuthService) *OAuthHandler {
	return &OAuthHandler{oauth: oauth}
}

// Token handles POST /oauth2/token. The body is form-encoded per RFC 6749;
// client credentials arrive via HTTP Basic auth or, failing that, form
// fields.
func (h *OAuthHandler) Token(c *fiber.Ctx) error {
	req := service.TokenRequest{
		GrantType:    c.FormValue("grant_type"),
		Username:     c.FormValue("username"),
		Password:     c.FormValue("password"),
		RefreshToken: c.FormValue("refresh_token"),
	}
	req.ClientID, req.ClientSecret = clientCredentials(c)

	grant, err := h.oauth.Exchange(c.UserContext(), req)
	if err != nil {
		return h.writeError(c, err)
	}

	return c.JSON(dto.TokenResponse{
		AccessToken:  grant.AccessToken,
		RefreshToken: grant.RefreshToken,
		TokenType:    grant.TokenType,
		ExpiresIn:    grant.ExpiresIn,
	})
}

func clientCredentials(c *fiber.Ctx) (string, string) {
	header := c.Get("Authorization")
	if strings.HasPrefix(header, "Basic ") {
		decoded, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(header, "Basic "))
		if err == nil {
			if id, secret, ok := strings.Cut(string(decoded), ":"); ok {
				return id, secret
			}
		}
	}
	return c.FormValue("client_id"), c.FormValue("client_secret")
}

// writeError renders protocol failures in the OAuth2 wire format instead of
// the service-wide error envelope.
func (h *OAuthHandler) writeError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, service.ErrInvalidClient):
		c.Set("WWW-Authenticate", `Basic realm="oauth2/token"`)
		return c.Status(http.StatusUnauthorized).JSON(dto.OAuthError{Code: "invalid_client"})
	case errors.Is(err, service.ErrInvalidGrant):
		return c.Status(http.StatusBadRequest).JSON(dto.OAuthError{Code: "invalid_grant"})
	case errors.Is(err, service.ErrUnsupportedGrantType):
		return c.Status(http.StatusBadRequest).JSON(dto.OAuthError{Code: "unsupported_grant_type"})
	default:
		return err
	}
}
