package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/spec-kit/identity-service/internal/auth"
	"github.com/spec-kit/identity-service/internal/domain"
	"github.com/spec-kit/identity-service/internal/repository"
)

func newRegistrationService(users *fakeUserRepo, roles *fakeRoleRepo) *RegistrationService {
	return NewRegistrationService(users, roles, bcrypt.MinCost, nil, zap.NewNop())
}

func fullRoleCatalog() *fakeRoleRepo {
	return newFakeRoleRepo(domain.RoleBuyerUser, domain.RoleSellerAdmin)
}

func TestRegisterAssignsDefaultRoles(t *testing.T) {
	t.Parallel()

	svc := newRegistrationService(newFakeUserRepo(), fullRoleCatalog())

	summary, err := svc.Register(context.Background(), "a@x.com", "Password123!", "Alice")
	require.NoError(t, err)

	assert.Equal(t, int64(1), summary.ID)
	assert.Equal(t, "a@x.com", summary.Email)
	assert.Equal(t, "Alice", summary.DisplayName)
	assert.ElementsMatch(t, []string{"ROLE_BUYER_USER", "ROLE_SELLER_ADMIN"}, summary.Roles)
}

func TestRegisterHashesPassword(t *testing.T) {
	t.Parallel()

	users := newFakeUserRepo()
	svc := newRegistrationService(users, fullRoleCatalog())

	_, err := svc.Register(context.Background(), "a@x.com", "Password123!", "Alice")
	require.NoError(t, err)

	stored, err := users.GetByEmail(context.Background(), "a@x.com")
	require.NoError(t, err)
	assert.NotEqual(t, "Password123!", stored.PasswordHash)
	assert.NoError(t, auth.ComparePassword(stored.PasswordHash, "Password123!"))
}

func TestRegisterDuplicateEmail(t *testing.T) {
	t.Parallel()

	svc := newRegistrationService(newFakeUserRepo(), fullRoleCatalog())

	_, err := svc.Register(context.Background(), "a@x.com", "Password123!", "Alice")
	require.NoError(t, err)

	_, err = svc.Register(context.Background(), "a@x.com", "Different456!", "Impostor")
	assert.ErrorIs(t, err, repository.ErrDuplicateEmail)
}

func TestRegisterDuplicateFromStoreConstraint(t *testing.T) {
	t.Parallel()

	// Simulates the losing side of two concurrent registrations: the
	// pre-check passed but the insert hit the uniqueness constraint.
	users := newFakeUserRepo()
	users.createErr = repository.ErrDuplicateEmail
	svc := newRegistrationService(users, fullRoleCatalog())

	_, err := svc.Register(context.Background(), "a@x.com", "Password123!", "Alice")
	assert.ErrorIs(t, err, repository.ErrDuplicateEmail)
}

func TestRegisterMissingRoleDefinition(t *testing.T) {
	t.Parallel()

	users := newFakeUserRepo()
	svc := newRegistrationService(users, newFakeRoleRepo(domain.RoleBuyerUser))

	_, err := svc.Register(context.Background(), "a@x.com", "Password123!", "Alice")
	assert.ErrorIs(t, err, ErrRoleCatalog)

	// Nothing may have been persisted.
	_, err = users.GetByEmail(context.Background(), "a@x.com")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestRegisterStoreFailureLeavesNothingBehind(t *testing.T) {
	t.Parallel()

	users := newFakeUserRepo()
	users.createErr = errors.New("write failed")
	svc := newRegistrationService(users, fullRoleCatalog())

	_, err := svc.Register(context.Background(), "a@x.com", "Password123!", "Alice")
	require.Error(t, err)

	exists, err := users.ExistsByEmail(context.Background(), "a@x.com")
	require.NoError(t, err)
	assert.False(t, exists)
}
