// Package cache provides a typed read-through cache over pluggable backends.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/tindahan/marketplace-backend/pkg/logger"
)

// Backend stores encoded entries with a time to live.
type Backend interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// Cache wraps a Backend with JSON encoding for values of type T.
type Cache[T any] struct {
	backend Backend
	ttl     time.Duration
	logg    *logger.Logger
}

func New[T any](backend Backend, ttl time.Duration, logg *logger.Logger) *Cache[T] {
	return &Cache[T]{backend: backend, ttl: ttl, logg: logg}
}

// GetOrLoad returns the cached value for key or calls fetch and stores its result.
// Backend failures degrade to calling fetch; fetch errors are never cached.
func (c *Cache[T]) GetOrLoad(ctx context.Context, key string, fetch func(context.Context) (T, error)) (T, error) {
	if c == nil || c.backend == nil || c.ttl <= 0 {
		return fetch(ctx)
	}

	raw, ok, err := c.backend.Get(ctx, key)
	if err != nil {
		c.warn(ctx, key, "cache read failed", err)
	}
	if ok {
		var cached T
		if err := json.Unmarshal(raw, &cached); err == nil {
			return cached, nil
		}
		c.warn(ctx, key, "cache entry undecodable", err)
	}

	value, err := fetch(ctx)
	if err != nil {
		return value, err
	}

	encoded, err := json.Marshal(value)
	if err != nil {
		return value, fmt.Errorf("encode cache value: %w", err)
	}
	if err := c.backend.Set(ctx, key, encoded, c.ttl); err != nil {
		c.warn(ctx, key, "cache write failed", err)
	}
	return value, nil
}

// GetOrLoadScoped is GetOrLoad for a key grouped under scope. Invalidate(scope)
// retires every key of the group at once.
func (c *Cache[T]) GetOrLoadScoped(ctx context.Context, scope, key string, fetch func(context.Context) (T, error)) (T, error) {
	if c == nil || c.backend == nil || c.ttl <= 0 {
		return fetch(ctx)
	}
	return c.GetOrLoad(ctx, scope+":"+c.generation(ctx, scope)+":"+key, fetch)
}

// Invalidate starts a new generation for scope. The marker lives as long as any
// entry written under the previous generation could.
func (c *Cache[T]) Invalidate(ctx context.Context, scope string) error {
	if c == nil || c.backend == nil || c.ttl <= 0 {
		return nil
	}
	return c.backend.Set(ctx, generationKey(scope), []byte(uuid.NewString()), c.ttl)
}

func (c *Cache[T]) generation(ctx context.Context, scope string) string {
	raw, ok, err := c.backend.Get(ctx, generationKey(scope))
	if err != nil {
		c.warn(ctx, generationKey(scope), "cache generation read failed", err)
	}
	if !ok {
		return "0"
	}
	return string(raw)
}

func generationKey(scope string) string {
	return "gen:" + scope
}

func (c *Cache[T]) warn(ctx context.Context, key, msg string, err error) {
	if c.logg == nil {
		return
	}
	ctx = c.logg.WithFields(ctx, map[string]any{"cache_key": key, "error": fmt.Sprint(err)})
	c.logg.Warn(ctx, msg)
}
