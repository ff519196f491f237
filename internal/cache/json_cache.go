package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// KeyPrefix namespaces every cached value.
const KeyPrefix = "cache:"

// JSONCache stores JSON-encoded values with a TTL.
type JSONCache interface {
	// Get decodes the cached value into dest and reports whether it was present.
	Get(ctx context.Context, key string, dest interface{}) (bool, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

type redisJSONCache struct {
	rdb *redis.Client
}

func NewJSONCache(rdb *redis.Client) JSONCache {
	return &redisJSONCache{rdb: rdb}
}

func (c *redisJSONCache) Get(ctx context.Context, key string, dest interface{}) (bool, error) {
	val, err := c.rdb.Get(ctx, KeyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("cache get %s: %w", key, err)
	}
	if err := json.Unmarshal(val, dest); err != nil {
		return false, fmt.Errorf("cache decode %s: %w", key, err)
	}
	return true, nil
}

func (c *redisJSONCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("cache encode %s: %w", key, err)
	}
	return c.rdb.Set(ctx, KeyPrefix+key, data, ttl).Err()
}

func (c *redisJSONCache) Delete(ctx context.Context, key string) error {
	return c.rdb.Del(ctx, KeyPrefix+key).Err()
}

// Key joins parts into a cache key, e.g. Key("leaderboard", "state", "Punjab", "10").
func Key(parts ...string) string {
	return strings.Join(parts, ":")
}
