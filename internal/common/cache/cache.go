package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// ErrMiss is returned when the key is not cached.
var ErrMiss = errors.New("cache: miss")

// CacheService is a thin JSON cache over redis. All values are stored
// marshalled, callers own the key layout.
type CacheService struct {
	redisClient goredis.Cmdable
}

func NewCacheService(redisClient goredis.Cmdable) *CacheService {
	return &CacheService{
		redisClient: redisClient,
	}
}

// Get reads a cached value into dest. Returns ErrMiss when absent.
func (c *CacheService) Get(ctx context.Context, key string, dest interface{}) error {
	data, err := c.redisClient.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return ErrMiss
		}
		return err
	}

	return json.Unmarshal([]byte(data), dest)
}

// Set stores a value with a TTL.
func (c *CacheService) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal value: %w", err)
	}

	return c.redisClient.Set(ctx, key, string(data), ttl).Err()
}

// Delete removes one or more keys. Missing keys are not an error.
func (c *CacheService) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return c.redisClient.Del(ctx, keys...).Err()
}

// ActiveGiveawayKey is the cache key for the single active giveaway of
// an account.
func ActiveGiveawayKey(accountID int64) string {
	return fmt.Sprintf("giveaway:active:%d", accountID)
}

// ResultTokenKey is the cache key for public result-token lookups.
func ResultTokenKey(token string) string {
	return fmt.Sprintf("giveaway:token:%s", token)
}
