package cache

import (
	"context"
	"time"

	"github.com/tindahan/marketplace-backend/pkg/redis"
)

type redisStore interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	CacheKey(parts ...string) string
}

// Redis is a shared Backend; expiry is enforced by Redis itself.
type Redis struct {
	store redisStore
}

func NewRedis(store redisStore) *Redis {
	return &Redis{store: store}
}

func (r *Redis) Get(ctx context.Context, key string) ([]byte, bool, error) {
	value, err := r.store.Get(ctx, r.store.CacheKey(key))
	if redis.IsNotFound(err) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return []byte(value), true, nil
}

func (r *Redis) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return r.store.Set(ctx, r.store.CacheKey(key), string(value), ttl)
}
