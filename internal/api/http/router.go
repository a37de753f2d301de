package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/identity-service/internal/api/http/handlers"
	"github.com/spec-kit/identity-service/internal/auth"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Users          *handlers.UsersHandler
	OAuth          *handlers.OAuthHandler
	JWKS           *handlers.JWKSHandler
	AuthMiddleware *auth.AuthMiddleware
}

// RegisterRoutes wires HTTP routes. Register, login, the token endpoint and
// the key set are public; everything else requires a bearer token.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)

	app.Get("/.well-known/jwks.json", cfg.JWKS.Keys)
	app.Post("/oauth2/token", cfg.OAuth.Token)

	users := app.Group("/api/v1/users")
	users.Post("/register", cfg.Users.Register)
	users.Post("/login", cfg.Users.Login)
	users.Get("/me", cfg.AuthMiddleware.Handle, cfg.Users.Me)
}
