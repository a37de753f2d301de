package handlers

import (
	"errors"
	"net/http"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/identity-service/internal/api/dto"
	"github.com/spec-kit/identity-service/internal/auth"
	"github.com/spec-kit/identity-service/internal/repository"
	"github.com/spec-kit/identity-service/internal/service"
	apperrors "github.com/spec-kit/identity-service/pkg/util"
)

// UsersHandler exposes registration and login endpoints.
type UsersHandler struct {
	registration *service.RegistrationService
	login        *service.LoginService
}

// NewUsersHandler constructs handler.
func NewUsersHandler(registration *service.RegistrationService, login *service.LoginService) *UsersHandler {
	return &UsersHandler{registration: registration, login: login}
}

// Register handles POST /api/v1/users/register.
func (h *UsersHandler) Register(c *fiber.Ctx) error {
	var req dto.RegisterRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid payload")
	}
	if err := req.Validate(); err != nil {
		return apperrors.NewValidationError("validation failed", validationDetails(err))
	}

	summary, err := h.registration.Register(c.UserContext(), req.Email, req.Password, req.DisplayName)
	if err != nil {
		if errors.Is(err, repository.ErrDuplicateEmail) {
			return apperrors.NewDuplicateEmail()
		}
		// ErrRoleCatalog and anything unclassified stay opaque to the caller.
		return apperrors.NewInternalError(err)
	}

	return c.Status(http.StatusCreated).JSON(fiber.Map{
		"data": dto.UserResponse{
			ID:          summary.ID,
			Email:       summary.Email,
			DisplayName: summary.DisplayName,
			Roles:       summary.Roles,
		},
	})
}

// Login handles POST /api/v1/users/login.
func (h *UsersHandler) Login(c *fiber.Ctx) error {
	var req dto.LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid payload")
	}
	if err := req.Validate(); err != nil {
		return apperrors.NewValidationError("validation failed", validationDetails(err))
	}

	token, _, err := h.login.Login(c.UserContext(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, service.ErrBadCredentials) {
			return apperrors.NewBadCredentials()
		}
		return apperrors.NewInternalError(err)
	}

	return c.JSON(fiber.Map{
		"data": dto.LoginResponse{AccessToken: token, TokenType: "Bearer"},
	})
}

// Me handles GET /api/v1/users/me for authenticated callers.
func (h *UsersHandler) Me(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}

	return c.JSON(fiber.Map{
		"data": dto.UserResponse{
			ID:          principal.UserID,
			Email:       principal.Email,
			DisplayName: principal.DisplayName,
			Roles:       principal.Authorities,
		},
	})
}

func validationDetails(err error) map[string]any {
	var verrs validation.Errors
	if !errors.As(err, &verrs) {
		return nil
	}
	details := make(map[string]any, len(verrs))
	for field, fieldErr := range verrs {
		details[field] = fieldErr.Error()
	}
	return details
}
