/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package cache provides a Redis-backed snapshot cache for the proxy read
// endpoint. Only the raw tree snapshot served to /getData is cached; engine
// passes always read the store directly so lifecycle decisions never see
// stale data.
package cache

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// DefaultSnapshotTTL bounds how stale a proxied read may be.
const DefaultSnapshotTTL = 30 * time.Second

// KeySnapshot holds the raw tree snapshot.
const KeySnapshot = "slotwarden:cache:tree"

// Config contains cache configuration.
type Config struct {
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	SnapshotTTL time.Duration

	// DisableOnError trips the circuit breaker on the first Redis error.
	DisableOnError bool
}

// DefaultConfig returns default cache configuration.
func DefaultConfig() Config {
	return Config{
		RedisAddr:      "localhost:6379",
		SnapshotTTL:    DefaultSnapshotTTL,
		DisableOnError: true,
	}
}

// Cache provides Redis-backed caching with graceful fallback.
type Cache struct {
	client *redis.Client
	logger zerolog.Logger
	config Config

	mu       sync.RWMutex
	disabled bool // Circuit breaker state
}

// New creates a new cache instance. An unreachable Redis yields a disabled
// cache, not an error; every lookup then reports a miss.
func New(cfg Config, logger zerolog.Logger) (*Cache, error) {
	if cfg.SnapshotTTL <= 0 {
		cfg.SnapshotTTL = DefaultSnapshotTTL
	}

	client := redis.NewClient(&redis.Options{
		Addr:         cfg.RedisAddr,
		Password:     cfg.RedisPassword,
		DB:           cfg.RedisDB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
		PoolSize:     10,
		MinIdleConns: 2,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn().Err(err).Msg("Redis cache unavailable, running without caching")
		return &Cache{
			logger:   logger.With().Str("component", "cache").Logger(),
			config:   cfg,
			disabled: true,
		}, nil
	}

	logger.Info().Str("addr", cfg.RedisAddr).Msg("Redis cache initialized")

	return &Cache{
		client: client,
		logger: logger.With().Str("component", "cache").Logger(),
		config: cfg,
	}, nil
}

// Close closes the Redis connection.
func (c *Cache) Close() error {
	if c.client != nil {
		return c.client.Close()
	}
	return nil
}

// IsAvailable returns true if the cache is operational.
func (c *Cache) IsAvailable() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return !c.disabled && c.client != nil
}

func (c *Cache) handleError(err error, operation string) {
	if err == nil || err == redis.Nil {
		return
	}

	c.logger.Debug().Err(err).Str("operation", operation).Msg("cache operation failed")

	if c.config.DisableOnError {
		c.mu.Lock()
		c.disabled = true
		c.mu.Unlock()
		c.logger.Warn().Msg("disabling cache due to Redis error")
	}
}

// GetSnapshot retrieves the cached raw tree snapshot.
func (c *Cache) GetSnapshot(ctx context.Context) ([]byte, bool) {
	if !c.IsAvailable() {
		return nil, false
	}

	data, err := c.client.Get(ctx, KeySnapshot).Bytes()
	if err == redis.Nil {
		return nil, false
	}
	if err != nil {
		c.handleError(err, "get")
		return nil, false
	}

	c.logger.Debug().Int("bytes", len(data)).Msg("tree snapshot cache hit")
	return data, true
}

// SetSnapshot caches the raw tree snapshot.
func (c *Cache) SetSnapshot(ctx context.Context, data []byte) error {
	if !c.IsAvailable() {
		return nil
	}

	if err := c.client.Set(ctx, KeySnapshot, data, c.config.SnapshotTTL).Err(); err != nil {
		c.handleError(err, "set")
		return err
	}
	return nil
}

// InvalidateSnapshot removes the tree snapshot from cache. Called after any
// write that changes the tree: a proxy write, a shift, a lock, or a claim
// reconciliation.
func (c *Cache) InvalidateSnapshot(ctx context.Context) error {
	if !c.IsAvailable() {
		return nil
	}

	c.logger.Debug().Msg("invalidating tree snapshot cache")
	if err := c.client.Del(ctx, KeySnapshot).Err(); err != nil {
		c.handleError(err, "delete")
		return err
	}
	return nil
}
