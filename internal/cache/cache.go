// Package cache provides the Redis-backed read cache and request counters.
// A nil or disabled Redis falls back to Noop so callers never branch.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rotaclub/rota/internal/config"
	"github.com/rotaclub/rota/internal/monitoring"
	"github.com/rs/zerolog/log"
)

// Cache is the subset of Redis operations the services rely on
type Cache interface {
	// GetJSON decodes the value at key into dst and reports whether it was present
	GetJSON(ctx context.Context, key string, dst any) (bool, error)
	SetJSON(ctx context.Context, key string, value any, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
	// Incr increments a counter that expires window after its first increment
	Incr(ctx context.Context, key string, window time.Duration) (int64, error)
}

// Redis wraps a go-redis client
type Redis struct {
	Client *redis.Client
}

var _ Cache = (*Redis)(nil)

// NewRedis connects to Redis and verifies the connection
func NewRedis(ctx context.Context, cfg *config.RedisConfig) (*Redis, error) {
	opt, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse REDIS_URL: %w", err)
	}
	client := redis.NewClient(opt)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	log.Info().Msg("Redis connection established")
	return &Redis{Client: client}, nil
}

// Connect returns a Redis cache when enabled and reachable, Noop otherwise
func Connect(ctx context.Context, cfg *config.RedisConfig) Cache {
	if !cfg.Enabled {
		log.Info().Msg("Redis disabled, caching and rate limiting are off")
		return Noop{}
	}
	r, err := NewRedis(ctx, cfg)
	if err != nil {
		log.Warn().Err(err).Msg("Redis unavailable, caching and rate limiting are off")
		return Noop{}
	}
	return r
}

func (r *Redis) GetJSON(ctx context.Context, key string, dst any) (bool, error) {
	raw, err := r.Client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		monitoring.RecordCacheMiss(key)
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to read cache key %s: %w", key, err)
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return false, fmt.Errorf("failed to decode cache key %s: %w", key, err)
	}
	monitoring.RecordCacheHit(key)
	return true, nil
}

func (r *Redis) SetJSON(ctx context.Context, key string, value any, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to encode cache key %s: %w", key, err)
	}
	return r.Client.Set(ctx, key, raw, ttl).Err()
}

func (r *Redis) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return r.Client.Del(ctx, keys...).Err()
}

func (r *Redis) Incr(ctx context.Context, key string, window time.Duration) (int64, error) {
	count, err := r.Client.Incr(ctx, key).Result()
	if err != nil {
		return 0, err
	}
	if count == 1 {
		r.Client.Expire(ctx, key, window)
	}
	return count, nil
}

// Close closes the underlying client
func (r *Redis) Close() error {
	return r.Client.Close()
}

// Noop never stores anything and never counts
type Noop struct{}

func (Noop) GetJSON(context.Context, string, any) (bool, error)         { return false, nil }
func (Noop) SetJSON(context.Context, string, any, time.Duration) error  { return nil }
func (Noop) Delete(context.Context, ...string) error                    { return nil }
func (Noop) Incr(context.Context, string, time.Duration) (int64, error) { return 0, nil }
