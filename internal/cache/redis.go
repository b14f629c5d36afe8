// Package cache stores computed analytics results in Redis so repeated
// report requests skip the trip history scan.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"fleetgeo/internal/config"
)

// DefaultTTL applies when no TTL is configured.
const DefaultTTL = 15 * time.Minute

// redisAPI is the subset of the go-redis client used by the cache.
type redisAPI interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
}

// RedisResultCache stores JSON-encoded results with a fixed TTL. It
// implements analytics.ResultCache.
type RedisResultCache struct {
	client redisAPI
	ttl    time.Duration
	logger *slog.Logger
}

// NewClient connects to Redis and verifies the connection.
func NewClient(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password.Unmask(),
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connect to redis at %s: %w", cfg.Addr, err)
	}
	return client, nil
}

// NewRedisResultCache wraps client.
func NewRedisResultCache(client redisAPI, ttl time.Duration, logger *slog.Logger) *RedisResultCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisResultCache{client: client, ttl: ttl, logger: logger}
}

// Get decodes the value at key into dest. A missing key is found=false
// with no error. A value that no longer decodes is treated as a miss.
func (c *RedisResultCache) Get(ctx context.Context, key string, dest any) (bool, error) {
	raw, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("redis get %s: %w", key, err)
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		c.logger.WarnContext(ctx, "discarding undecodable cache entry",
			"key", key,
			"error", err,
		)
		return false, nil
	}
	return true, nil
}

// Set stores value at key as JSON.
func (c *RedisResultCache) Set(ctx context.Context, key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode cache value for %s: %w", key, err)
	}
	if err := c.client.Set(ctx, key, raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}
