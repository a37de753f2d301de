package repository

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// RefreshTokenRepository stores opaque refresh tokens until they are redeemed
// or expire. Consume removes the token as it reads it, so every refresh token
// is single-use; the grant handler issues a replacement on each exchange.
type RefreshTokenRepository interface {
	Save(ctx context.Context, token string, userID int64, ttl time.Duration) error
	Consume(ctx context.Context, token string) (int64, error)
}

const refreshKeyPrefix = "refresh_token:"

type redisRefreshTokenRepository struct {
	client *redis.Client
}

// NewRedisRefreshTokenRepository returns a Redis-backed implementation.
// Expiry is enforced by the key TTL.
func NewRedisRefreshTokenRepository(client *redis.Client) RefreshTokenRepository {
	return &redisRefreshTokenRepository{client: client}
}

func (r *redisRefreshTokenRepository) Save(ctx context.Context, token string, userID int64, ttl time.Duration) error {
	return r.client.Set(ctx, refreshKeyPrefix+token, strconv.FormatInt(userID, 10), ttl).Err()
}

func (r *redisRefreshTokenRepository) Consume(ctx context.Context, token string) (int64, error) {
	val, err := r.client.GetDel(ctx, refreshKeyPrefix+token).Result()
	if errors.Is(err, redis.Nil) {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, err
	}
	return strconv.ParseInt(val, 10, 64)
}

type memoryRefreshEntry struct {
	userID    int64
	expiresAt time.Time
}

type memoryRefreshTokenRepository struct {
	mu     sync.Mutex
	tokens map[string]memoryRefreshEntry
}

// NewMemoryRefreshTokenRepository returns an in-process implementation used
// when no Redis address is configured. Tokens do not survive a restart, which
// matches the signing key: a restart invalidates outstanding tokens anyway.
func NewMemoryRefreshTokenRepository() RefreshTokenRepository {
	return &memoryRefreshTokenRepository{tokens: make(map[string]memoryRefreshEntry)}
}

func (r *memoryRefreshTokenRepository) Save(_ context.Context, token string, userID int64, ttl time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tokens[token] = memoryRefreshEntry{userID: userID, expiresAt: time.Now().Add(ttl)}
	return nil
}

func (r *memoryRefreshTokenRepository) Consume(_ context.Context, token string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.tokens[token]
	if !ok {
		return 0, ErrNotFound
	}
	delete(r.tokens, token)
	if time.Now().After(entry.expiresAt) {
		return 0, ErrNotFound
	}
	return entry.userID, nil
}
