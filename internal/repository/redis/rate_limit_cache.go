package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"asha-portal/internal/client"
	"asha-portal/internal/util"
)

const (
	rateLimitPrefix = "rate_limit:"
	tempLockPrefix  = "temp_lock:"
)

// RateLimitCache backs the fixed-window per-client limits applied in front
// of the login and OTP endpoints.
type RateLimitCache struct {
	client *client.RedisClient
}

func NewRateLimitCache(client *client.RedisClient) *RateLimitCache {
	return &RateLimitCache{client: client}
}

func (c *RateLimitCache) IncrementCounter(key string, ttl time.Duration) (int, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	count, err := c.client.IncrWithExpire(ctx, rateLimitPrefix+key, ttl)
	if err != nil {
		util.Error("Failed to increment rate limit counter",
			zap.String("key", key),
			zap.Error(err))
		return 0, fmt.Errorf("failed to increment rate limit counter: %w", err)
	}
	return int(count), nil
}

func (c *RateLimitCache) GetCounter(key string) (int, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	value, err := c.client.Get(ctx, rateLimitPrefix+key)
	if err != nil {
		if isKeyNotFound(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to get rate limit counter: %w", err)
	}

	count, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid counter format: %w", err)
	}
	return count, nil
}

func (c *RateLimitCache) ResetCounter(key string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := c.client.Del(ctx, rateLimitPrefix+key); err != nil {
		return fmt.Errorf("failed to reset rate limit counter: %w", err)
	}
	return nil
}

// SetTemporaryLock marks a key locked for the given TTL. Already locked is
// not an error; the lock simply stands.
func (c *RateLimitCache) SetTemporaryLock(key string, ttl time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := c.client.SetNX(ctx, tempLockPrefix+key, "locked", ttl); err != nil {
		util.Error("Failed to set temporary lock",
			zap.String("key", key),
			zap.Error(err))
		return fmt.Errorf("failed to set temporary lock: %w", err)
	}
	return nil
}

func (c *RateLimitCache) IsLocked(key string) (bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	exists, err := c.client.Exists(ctx, tempLockPrefix+key)
	if err != nil {
		return false, fmt.Errorf("failed to check temporary lock: %w", err)
	}
	return exists, nil
}

func isKeyNotFound(err error) bool {
	return errors.Is(err, client.ErrKeyNotFound)
}
