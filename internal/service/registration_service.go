package service

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/spec-kit/identity-service/internal/auth"
	"github.com/spec-kit/identity-service/internal/domain"
	"github.com/spec-kit/identity-service/internal/events"
	"github.com/spec-kit/identity-service/internal/repository"
)

// ErrRoleCatalog reports that a required role definition is missing from the
// store. This is an operator problem, never a user problem: registering an
// account without its full default role set would under-grant every token
// issued for it, so the registration must fail instead.
var ErrRoleCatalog = errors.New("required role definitions missing")

// AccountSummary is returned after a successful registration.
type AccountSummary struct {
	ID          int64
	Email       string
	DisplayName string
	Roles       []string
}

// RegistrationService creates accounts together with their default role
// bindings. Registration never issues a token; a new account logs in
// separately.
type RegistrationService struct {
	users      repository.UserRepository
	roles      repository.RoleRepository
	bcryptCost int
	dispatcher events.Dispatcher
	logger     *zap.Logger
}

// NewRegistrationService builds the service. The dispatcher may be nil, in
// which case no events are published.
func NewRegistrationService(users repository.UserRepository, roles repository.RoleRepository, bcryptCost int, dispatcher events.Dispatcher, logger *zap.Logger) *RegistrationService {
	return &RegistrationService{users: users, roles: roles, bcryptCost: bcryptCost, dispatcher: dispatcher, logger: logger}
}

// Register creates the account and its default role bindings as one atomic
// write. The pre-check gives a fast duplicate answer, but the database
// uniqueness constraint is what settles concurrent registrations; its
// violation also surfaces as ErrDuplicateEmail.
func (s *RegistrationService) Register(ctx context.Context, email, password, displayName string) (*AccountSummary, error) {
	exists, err := s.users.ExistsByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, repository.ErrDuplicateEmail
	}

	required := domain.DefaultRoleNames()
	roles, err := s.roles.GetByNames(ctx, required)
	if err != nil {
		return nil, err
	}
	if len(roles) != len(required) {
		s.logger.Error("role catalog incomplete",
			zap.Int("found", len(roles)),
			zap.Int("required", len(required)),
		)
		return nil, ErrRoleCatalog
	}

	hash, err := auth.HashPassword(password, s.bcryptCost)
	if err != nil {
		return nil, err
	}

	user := &domain.User{
		Email:        email,
		PasswordHash: hash,
		DisplayName:  displayName,
	}
	if err := s.users.CreateWithRoles(ctx, user, roles); err != nil {
		return nil, err
	}

	s.logger.Info("user registered",
		zap.Int64("user_id", user.ID),
		zap.String("email", user.Email),
	)

	if s.dispatcher != nil {
		_ = s.dispatcher.Publish(ctx, events.NewEvent(events.EventUserRegistered, user.ID, user.Email, events.UserRegisteredPayload{
			DisplayName: user.DisplayName,
			Roles:       user.RoleNames(),
		}))
	}

	return &AccountSummary{
		ID:          user.ID,
		Email:       user.Email,
		DisplayName: user.DisplayName,
		Roles:       user.RoleNames(),
	}, nil
}
