package handlers_test

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	httptransport "github.com/spec-kit/identity-service/internal/api/http"
	"github.com/spec-kit/identity-service/internal/api/http/handlers"
	"github.com/spec-kit/identity-service/internal/auth"
	"github.com/spec-kit/identity-service/internal/domain"
	"github.com/spec-kit/identity-service/internal/events"
	"github.com/spec-kit/identity-service/internal/observability"
	"github.com/spec-kit/identity-service/internal/repository"
	"github.com/spec-kit/identity-service/internal/service"
)

const (
	clientID     = "ecommerce-gateway"
	clientSecret = "gateway-secret"
)

type memUserRepo struct {
	mu      sync.Mutex
	nextID  int64
	byEmail map[string]*domain.User
}

func (m *memUserRepo) ExistsByEmail(_ context.Context, email string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.byEmail[email]
	return ok, nil
}

func (m *memUserRepo) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	user, ok := m.byEmail[email]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copied := *user
	return &copied, nil
}

func (m *memUserRepo) GetByID(_ context.Context, id int64) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, user := range m.byEmail {
		if user.ID == id {
			copied := *user
			return &copied, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m *memUserRepo) CreateWithRoles(_ context.Context, user *domain.User, roles []domain.Role) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byEmail[user.Email]; ok {
		return repository.ErrDuplicateEmail
	}
	m.nextID++
	user.ID = m.nextID
	user.Roles = roles
	copied := *user
	m.byEmail[user.Email] = &copied
	return nil
}

type memRoleRepo struct{}

func (memRoleRepo) GetByNames(_ context.Context, names []domain.RoleName) ([]domain.Role, error) {
	roles := make([]domain.Role, 0, len(names))
	for i, name := range names {
		roles = append(roles, domain.Role{ID: int32(i + 1), Name: name})
	}
	return roles, nil
}

func newTestApp(t *testing.T) (*fiber.App, *auth.SigningKey) {
	t.Helper()

	logger := zap.NewNop()
	users := &memUserRepo{byEmail: make(map[string]*domain.User)}

	key, err := auth.NewSigningKey()
	require.NoError(t, err)
	issuer := auth.NewTokenIssuer(key, "https://identity.example.com", 900)

	dispatcher := events.NewInMemoryDispatcher()
	registration := service.NewRegistrationService(users, memRoleRepo{}, bcrypt.MinCost, dispatcher, logger)
	login := service.NewLoginService(users, issuer, dispatcher, logger)
	oauth, err := service.NewOAuthService(
		clientID, clientSecret, bcrypt.MinCost,
		users, repository.NewMemoryRefreshTokenRepository(),
		login, issuer, time.Hour, logger,
	)
	require.NoError(t, err)

	app := fiber.New()
	httptransport.RegisterMiddlewares(app, logger, observability.NewMetrics(), 5*time.Second)
	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler("identity-service", "test", nil, nil),
		Users:          handlers.NewUsersHandler(registration, login),
		OAuth:          handlers.NewOAuthHandler(oauth),
		JWKS:           handlers.NewJWKSHandler(key),
		AuthMiddleware: auth.NewAuthMiddleware(issuer, users),
	})
	return app, key
}

func postJSON(t *testing.T, app *fiber.App, path string, payload any) *http.Response {
	t.Helper()
	body, err := json.Marshal(payload)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

func decodeBody(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var doc map[string]any
	require.NoError(t, json.Unmarshal(raw, &doc))
	return doc
}

func TestRegisterLoginScenario(t *testing.T) {
	app, _ := newTestApp(t)

	resp := postJSON(t, app, "/api/v1/users/register", map[string]string{
		"email":       "a@x.com",
		"password":    "Password123!",
		"displayName": "Alice",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	data := decodeBody(t, resp)["data"].(map[string]any)
	assert.Equal(t, "a@x.com", data["email"])
	assert.Equal(t, "Alice", data["displayName"])
	assert.Len(t, data["roles"], 2)

	resp = postJSON(t, app, "/api/v1/users/login", map[string]string{
		"email":    "a@x.com",
		"password": "Password123!",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	loginData := decodeBody(t, resp)["data"].(map[string]any)
	token := loginData["accessToken"].(string)
	assert.NotEmpty(t, token)
	assert.Equal(t, "Bearer", loginData["tokenType"])

	// The decoded subject equals the registered account id.
	parts := strings.Split(token, ".")
	require.Len(t, parts, 3)
	payload, err := base64.RawURLEncoding.DecodeString(parts[1])
	require.NoError(t, err)
	var claims map[string]any
	require.NoError(t, json.Unmarshal(payload, &claims))
	assert.Equal(t, "1", claims["sub"])

	resp = postJSON(t, app, "/api/v1/users/login", map[string]string{
		"email":    "a@x.com",
		"password": "wrong",
	})
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	errBody := decodeBody(t, resp)["error"].(map[string]any)
	assert.Equal(t, "BAD_CREDENTIALS", errBody["code"])
}

func TestRegisterDuplicateReturnsConflict(t *testing.T) {
	app, _ := newTestApp(t)

	payload := map[string]string{
		"email":       "a@x.com",
		"password":    "Password123!",
		"displayName": "Alice",
	}
	resp := postJSON(t, app, "/api/v1/users/register", payload)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp = postJSON(t, app, "/api/v1/users/register", payload)
	require.Equal(t, http.StatusConflict, resp.StatusCode)
	errBody := decodeBody(t, resp)["error"].(map[string]any)
	assert.Equal(t, "DUPLICATE_EMAIL", errBody["code"])
}

func TestRegisterValidationDetails(t *testing.T) {
	app, _ := newTestApp(t)

	resp := postJSON(t, app, "/api/v1/users/register", map[string]string{
		"email":       "not-an-email",
		"password":    "short",
		"displayName": "",
	})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	errBody := decodeBody(t, resp)["error"].(map[string]any)
	assert.Equal(t, "VALIDATION_FAILED", errBody["code"])
	details := errBody["details"].(map[string]any)
	assert.Contains(t, details, "email")
	assert.Contains(t, details, "password")
	assert.Contains(t, details, "displayName")
}

func TestMeRequiresBearerToken(t *testing.T) {
	app, _ := newTestApp(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/users/me", nil)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	postJSON(t, app, "/api/v1/users/register", map[string]string{
		"email":       "a@x.com",
		"password":    "Password123!",
		"displayName": "Alice",
	})
	loginResp := postJSON(t, app, "/api/v1/users/login", map[string]string{
		"email":    "a@x.com",
		"password": "Password123!",
	})
	token := decodeBody(t, loginResp)["data"].(map[string]any)["accessToken"].(string)

	req = httptest.NewRequest(http.MethodGet, "/api/v1/users/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err = app.Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	data := decodeBody(t, resp)["data"].(map[string]any)
	assert.Equal(t, "a@x.com", data["email"])
}

func TestJWKSEndpointServesPublicKeyOnly(t *testing.T) {
	app, key := newTestApp(t)

	req := httptest.NewRequest(http.MethodGet, "/.well-known/jwks.json", nil)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	doc := decodeBody(t, resp)
	keys := doc["keys"].([]any)
	require.Len(t, keys, 1)

	entry := keys[0].(map[string]any)
	assert.Equal(t, "RSA", entry["kty"])
	assert.Equal(t, key.KeyID(), entry["kid"])
	for _, field := range []string{"d", "p", "q", "dp", "dq", "qi"} {
		assert.NotContains(t, entry, field)
	}
}

func TestOAuthTokenEndpoint(t *testing.T) {
	app, _ := newTestApp(t)

	postJSON(t, app, "/api/v1/users/register", map[string]string{
		"email":       "a@x.com",
		"password":    "Password123!",
		"displayName": "Alice",
	})

	form := url.Values{}
	form.Set("grant_type", "password")
	form.Set("username", "a@x.com")
	form.Set("password", "Password123!")

	req := httptest.NewRequest(http.MethodPost, "/oauth2/token", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Authorization", "Basic "+base64.StdEncoding.EncodeToString([]byte(clientID+":"+clientSecret)))
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body := decodeBody(t, resp)
	assert.NotEmpty(t, body["access_token"])
	assert.NotEmpty(t, body["refresh_token"])
	assert.Equal(t, "Bearer", body["token_type"])
	assert.Equal(t, float64(900), body["expires_in"])

	// Wrong client secret fails with the OAuth wire format.
	req = httptest.NewRequest(http.MethodPost, "/oauth2/token", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Authorization", "Basic "+base64.StdEncoding.EncodeToString([]byte(clientID+":nope")))
	resp, err = app.Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "invalid_client", decodeBody(t, resp)["error"])
}
