package redis

import (
	"context"
	"errors"
	"time"

	customErrors "github.com/Miraines/MoonyAndStarry/tfa-auth/internal/domain/auth/errors"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const pendingPrefix = "tfa:pending:"

// RedisEnrollmentRepo holds provisional TOTP secrets between login and the
// first successful second-factor check.
type RedisEnrollmentRepo struct {
	client *redis.Client
}

func NewRedisEnrollmentRepo(client *redis.Client) *RedisEnrollmentRepo {
	return &RedisEnrollmentRepo{
		client: client,
	}
}

func key(userID uuid.UUID) string {
	return pendingPrefix + userID.String()
}

func (r *RedisEnrollmentRepo) SavePending(ctx context.Context, userID uuid.UUID, secret string, ttl time.Duration) error {
	if err := r.client.Set(ctx, key(userID), secret, safeTTL(ttl)).Err(); err != nil {
		return customErrors.WrapInternal(err, "SavePending")
	}
	return nil
}

func (r *RedisEnrollmentRepo) GetPending(ctx context.Context, userID uuid.UUID) (string, error) {
	val, err := r.client.Get(ctx, key(userID)).Result()
	switch {
	case errors.Is(err, redis.Nil):
		return "", customErrors.ErrNotFound
	case err != nil:
		return "", customErrors.WrapInternal(err, "GetPending")
	default:
		return val, nil
	}
}

func (r *RedisEnrollmentRepo) DeletePending(ctx context.Context, userID uuid.UUID) error {
	if err := r.client.Del(ctx, key(userID)).Err(); err != nil {
		return customErrors.WrapInternal(err, "DeletePending")
	}
	return nil
}

// Ping is used by the health check.
func (r *RedisEnrollmentRepo) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func safeTTL(ttl time.Duration) time.Duration {
	if ttl <= 0 {
		// a key without TTL would never expire
		return 10 * time.Minute
	}
	return ttl
}
