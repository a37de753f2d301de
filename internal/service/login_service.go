package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/identity-service/internal/auth"
	"github.com/spec-kit/identity-service/internal/domain"
	"github.com/spec-kit/identity-service/internal/events"
	"github.com/spec-kit/identity-service/internal/repository"
)

// ErrBadCredentials is returned for unknown emails and wrong passwords
// alike, so callers cannot enumerate accounts.
var ErrBadCredentials = errors.New("bad credentials")

// LoginService verifies credentials and issues access tokens for the direct
// login path.
type LoginService struct {
	users      repository.UserRepository
	tokens     *auth.TokenIssuer
	dispatcher events.Dispatcher
	logger     *zap.Logger
}

// NewLoginService builds the service. The dispatcher may be nil, in which
// case no events are published.
func NewLoginService(users repository.UserRepository, tokens *auth.TokenIssuer, dispatcher events.Dispatcher, logger *zap.Logger) *LoginService {
	return &LoginService{users: users, tokens: tokens, dispatcher: dispatcher, logger: logger}
}

// Authenticate checks the email/password pair and returns the principal
// snapshot used for token claims. An unknown email still pays for a bcrypt
// comparison so the two failure modes look the same from outside.
func (s *LoginService) Authenticate(ctx context.Context, email, password string) (domain.Principal, error) {
	user, err := s.users.GetByEmail(ctx, email)
	if errors.Is(err, repository.ErrNotFound) {
		auth.CompareDummy(password)
		return domain.Principal{}, ErrBadCredentials
	}
	if err != nil {
		return domain.Principal{}, err
	}

	if err := auth.ComparePassword(user.PasswordHash, password); err != nil {
		return domain.Principal{}, ErrBadCredentials
	}

	principal := domain.Principal{
		UserID:      user.ID,
		Email:       user.Email,
		DisplayName: user.DisplayName,
		Authorities: user.RoleNames(),
	}

	if s.dispatcher != nil {
		_ = s.dispatcher.Publish(ctx, events.NewEvent(events.EventUserAuthenticated, principal.UserID, principal.Email, events.UserAuthenticatedPayload{
			Authorities: principal.Authorities,
		}))
	}

	return principal, nil
}

// Login authenticates and signs an access token for the principal.
func (s *LoginService) Login(ctx context.Context, email, password string) (string, time.Time, error) {
	principal, err := s.Authenticate(ctx, email, password)
	if err != nil {
		return "", time.Time{}, err
	}

	token, expiresAt, err := s.tokens.Issue(principal)
	if err != nil {
		return "", time.Time{}, err
	}

	s.logger.Info("user authenticated", zap.Int64("user_id", principal.UserID))
	return token, expiresAt, nil
}
