// Package cache provides the low-latency secondary cache for the current
// active rule set. The cache is never the source of truth: entries carry a
// TTL and are rebuilt as a side effect of every reconciliation run.
package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

var (
	// ErrCacheMiss is returned when a key is absent or expired.
	ErrCacheMiss = errors.New("cache miss")

	// ErrInvalidConfig indicates invalid cache configuration.
	ErrInvalidConfig = errors.New("invalid configuration")
)

// FastCache stores JSON-serializable blobs with a TTL.
//
// All writes are best-effort from the caller's perspective: reconciliation
// logs cache failures and carries on, so implementations should not retry
// aggressively.
type FastCache interface {
	// Get returns the value for key, or ErrCacheMiss.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores value under key with the given TTL.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Close releases the underlying connection.
	Close() error
}

// Config holds Redis connection configuration.
type Config struct {
	// Addr is the Redis host:port. Default: "localhost:6379"
	Addr string `koanf:"addr"`

	// Password authenticates the connection (optional).
	Password string `koanf:"password"`

	// DB selects the Redis logical database.
	DB int `koanf:"db"`
}

// ApplyDefaults sets default values for unset fields.
func (c *Config) ApplyDefaults() {
	if c.Addr == "" {
		c.Addr = "localhost:6379"
	}
}

// RedisCache is a FastCache backed by Redis.
type RedisCache struct {
	client *redis.Client
	logger *zap.Logger
}

// NewRedisCache creates a Redis-backed cache and verifies connectivity.
func NewRedisCache(config Config, logger *zap.Logger) (*RedisCache, error) {
	config.ApplyDefaults()
	if logger == nil {
		logger = zap.NewNop()
	}

	client := redis.NewClient(&redis.Options{
		Addr:     config.Addr,
		Password: config.Password,
		DB:       config.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("%w: pinging redis at %s: %v", ErrInvalidConfig, config.Addr, err)
	}

	return &RedisCache{client: client, logger: logger}, nil
}

// Get returns the value for key, or ErrCacheMiss.
func (c *RedisCache) Get(ctx context.Context, key string) ([]byte, error) {
	val, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrCacheMiss
		}
		return nil, fmt.Errorf("getting key %s: %w", key, err)
	}
	return val, nil
}

// Set stores value under key with the given TTL.
func (c *RedisCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := c.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("setting key %s: %w", key, err)
	}
	return nil
}

// Close closes the Redis connection.
func (c *RedisCache) Close() error {
	return c.client.Close()
}

// Ensure RedisCache implements FastCache.
var _ FastCache = (*RedisCache)(nil)
