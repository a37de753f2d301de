package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/identity-service/internal/auth"
	"github.com/spec-kit/identity-service/internal/domain"
	"github.com/spec-kit/identity-service/internal/repository"
)

// Grant type values accepted by the token endpoint.
const (
	GrantTypePassword     = "password"
	GrantTypeRefreshToken = "refresh_token"
)

var (
	// ErrInvalidClient is returned when client credentials do not match the
	// registered client.
	ErrInvalidClient = errors.New("invalid client credentials")
	// ErrInvalidGrant is returned when the grant-specific credentials fail;
	// a partially satisfied request is never surfaced.
	ErrInvalidGrant = errors.New("invalid grant")
	// ErrUnsupportedGrantType is returned for grant types outside the two
	// supported ones.
	ErrUnsupportedGrantType = errors.New("unsupported grant type")
)

// TokenRequest carries one token-endpoint exchange.
type TokenRequest struct {
	GrantType    string
	ClientID     string
	ClientSecret string
	Username     string
	Password     string
	RefreshToken string
}

// TokenGrant is the result of a successful exchange.
type TokenGrant struct {
	AccessToken  string
	RefreshToken string
	TokenType    string
	ExpiresIn    int64
}

// OAuthService implements the password and refresh_token grants for the
// single registered client. It signs through the same TokenIssuer as the
// login path, so tokens from either path verify against the same key set.
type OAuthService struct {
	clientID         string
	clientSecretHash string
	users            repository.UserRepository
	refreshTokens    repository.RefreshTokenRepository
	login            *LoginService
	tokens           *auth.TokenIssuer
	refreshTTL       time.Duration
	logger           *zap.Logger
}

// NewOAuthService builds the service. The client secret is hashed at
// construction and held the same way user passwords are.
func NewOAuthService(
	clientID, clientSecret string,
	bcryptCost int,
	users repository.UserRepository,
	refreshTokens repository.RefreshTokenRepository,
	login *LoginService,
	tokens *auth.TokenIssuer,
	refreshTTL time.Duration,
	logger *zap.Logger,
) (*OAuthService, error) {
	secretHash, err := auth.HashPassword(clientSecret, bcryptCost)
	if err != nil {
		return nil, err
	}
	return &OAuthService{
		clientID:         clientID,
		clientSecretHash: secretHash,
		users:            users,
		refreshTokens:    refreshTokens,
		login:            login,
		tokens:           tokens,
		refreshTTL:       refreshTTL,
		logger:           logger,
	}, nil
}

// Exchange runs one token-endpoint request. The client is authenticated
// first, then the grant-specific credentials; any failed step fails the
// whole request.
func (s *OAuthService) Exchange(ctx context.Context, req TokenRequest) (*TokenGrant, error) {
	if err := s.authenticateClient(req.ClientID, req.ClientSecret); err != nil {
		return nil, err
	}

	switch req.GrantType {
	case GrantTypePassword:
		return s.passwordGrant(ctx, req.Username, req.Password)
	case GrantTypeRefreshToken:
		return s.refreshGrant(ctx, req.RefreshToken)
	default:
		return nil, ErrUnsupportedGrantType
	}
}

func (s *OAuthService) authenticateClient(id, secret string) error {
	if id != s.clientID {
		auth.CompareDummy(secret)
		return ErrInvalidClient
	}
	if err := auth.ComparePassword(s.clientSecretHash, secret); err != nil {
		return ErrInvalidClient
	}
	return nil
}

func (s *OAuthService) passwordGrant(ctx context.Context, username, password string) (*TokenGrant, error) {
	principal, err := s.login.Authenticate(ctx, username, password)
	if err != nil {
		if errors.Is(err, ErrBadCredentials) {
			return nil, ErrInvalidGrant
		}
		return nil, err
	}
	return s.mint(ctx, principal)
}

func (s *OAuthService) refreshGrant(ctx context.Context, refreshToken string) (*TokenGrant, error) {
	if refreshToken == "" {
		return nil, ErrInvalidGrant
	}

	userID, err := s.refreshTokens.Consume(ctx, refreshToken)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrInvalidGrant
	}
	if err != nil {
		return nil, err
	}

	user, err := s.users.GetByID(ctx, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrInvalidGrant
	}
	if err != nil {
		return nil, err
	}

	return s.mint(ctx, domain.Principal{
		UserID:      user.ID,
		Email:       user.Email,
		DisplayName: user.DisplayName,
		Authorities: user.RoleNames(),
	})
}

// mint issues the access token plus a fresh single-use refresh token. The
// consumed refresh token (if any) is already gone, so each grant rotates.
func (s *OAuthService) mint(ctx context.Context, principal domain.Principal) (*TokenGrant, error) {
	access, _, err := s.tokens.IssueForGrant(principal)
	if err != nil {
		return nil, err
	}

	refresh := uuid.NewString()
	if err := s.refreshTokens.Save(ctx, refresh, principal.UserID, s.refreshTTL); err != nil {
		return nil, err
	}

	s.logger.Info("token granted", zap.Int64("user_id", principal.UserID))
	return &TokenGrant{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    "Bearer",
		ExpiresIn:    int64(s.tokens.TTL().Seconds()),
	}, nil
}
