package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/identity-service/internal/auth"
)

func newLoginFixture(t *testing.T) (*RegistrationService, *LoginService, *auth.TokenIssuer) {
	t.Helper()

	users := newFakeUserRepo()
	registration := newRegistrationService(users, fullRoleCatalog())

	key, err := auth.NewSigningKey()
	require.NoError(t, err)
	issuer := auth.NewTokenIssuer(key, "https://identity.example.com", 900)

	return registration, NewLoginService(users, issuer, nil, zap.NewNop()), issuer
}

func TestAuthenticateRoundTrip(t *testing.T) {
	t.Parallel()

	registration, login, _ := newLoginFixture(t)

	_, err := registration.Register(context.Background(), "a@x.com", "Password123!", "Alice")
	require.NoError(t, err)

	principal, err := login.Authenticate(context.Background(), "a@x.com", "Password123!")
	require.NoError(t, err)

	assert.Equal(t, int64(1), principal.UserID)
	assert.Equal(t, "a@x.com", principal.Email)
	assert.Equal(t, "Alice", principal.DisplayName)
	assert.ElementsMatch(t, []string{"ROLE_BUYER_USER", "ROLE_SELLER_ADMIN"}, principal.Authorities)
}

func TestAuthenticateFailuresAreUniform(t *testing.T) {
	t.Parallel()

	registration, login, _ := newLoginFixture(t)

	_, err := registration.Register(context.Background(), "a@x.com", "Password123!", "Alice")
	require.NoError(t, err)

	_, unknownErr := login.Authenticate(context.Background(), "unknown@x.com", "anything")
	_, wrongErr := login.Authenticate(context.Background(), "a@x.com", "wrong-password")

	assert.ErrorIs(t, unknownErr, ErrBadCredentials)
	assert.ErrorIs(t, wrongErr, ErrBadCredentials)
	assert.Equal(t, unknownErr, wrongErr)
}

func TestLoginIssuesVerifiableToken(t *testing.T) {
	t.Parallel()

	registration, login, issuer := newLoginFixture(t)

	summary, err := registration.Register(context.Background(), "a@x.com", "Password123!", "Alice")
	require.NoError(t, err)

	token, _, err := login.Login(context.Background(), "a@x.com", "Password123!")
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := issuer.Parse(token)
	require.NoError(t, err)
	assert.Equal(t, "1", claims.Subject)
	assert.Equal(t, summary.ID, claims.UserID)
	assert.ElementsMatch(t, summary.Roles, claims.Authorities)
}

func TestLoginFailsWithWrongPassword(t *testing.T) {
	t.Parallel()

	registration, login, _ := newLoginFixture(t)

	_, err := registration.Register(context.Background(), "a@x.com", "Password123!", "Alice")
	require.NoError(t, err)

	_, _, err = login.Login(context.Background(), "a@x.com", "wrong")
	assert.ErrorIs(t, err, ErrBadCredentials)
}

func TestAuthoritiesAreASnapshot(t *testing.T) {
	t.Parallel()

	users := newFakeUserRepo()
	registration := newRegistrationService(users, fullRoleCatalog())

	key, err := auth.NewSigningKey()
	require.NoError(t, err)
	issuer := auth.NewTokenIssuer(key, "https://identity.example.com", 900)
	login := NewLoginService(users, issuer, nil, zap.NewNop())

	_, err = registration.Register(context.Background(), "a@x.com", "Password123!", "Alice")
	require.NoError(t, err)

	principal, err := login.Authenticate(context.Background(), "a@x.com", "Password123!")
	require.NoError(t, err)

	// Mutating the stored record afterwards must not change the snapshot.
	users.mu.Lock()
	users.byEmail["a@x.com"].Roles = nil
	users.mu.Unlock()

	assert.ElementsMatch(t, []string{"ROLE_BUYER_USER", "ROLE_SELLER_ADMIN"}, principal.Authorities)
}
