// internal/cache/redis.go
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jason-s-yu/fusion/internal/models"
	"github.com/redis/go-redis/v9"
)

// DefaultKeyPrefix namespaces combination keys.
var DefaultKeyPrefix = "fusion:combination"

// Connect opens a Redis client and checks it with a ping.
func Connect(ctx context.Context, addr string, db int) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr: addr,
		DB:   db,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", addr, err)
	}
	return rdb, nil
}

// CombinationCache stores resolved combinations as JSON under "<prefix>:<word1>+<word2>".
// Combinations never change once created, so entries only expire when a TTL is set.
type CombinationCache struct {
	rdb    *redis.Client
	prefix string
	ttl    time.Duration
}

func NewCombinationCache(rdb *redis.Client, ttl time.Duration) *CombinationCache {
	return &CombinationCache{rdb: rdb, prefix: DefaultKeyPrefix, ttl: ttl}
}

func (c *CombinationCache) key(w1, w2 string) string {
	return c.prefix + ":" + w1 + "+" + w2
}

// Get returns the cached result of the canonical pair (w1, w2).
func (c *CombinationCache) Get(ctx context.Context, w1, w2 string) (models.Word, bool, error) {
	data, err := c.rdb.Get(ctx, c.key(w1, w2)).Bytes()
	if errors.Is(err, redis.Nil) {
		return models.Word{}, false, nil
	}
	if err != nil {
		return models.Word{}, false, fmt.Errorf("failed to GET combination %s+%s: %w", w1, w2, err)
	}

	var w models.Word
	if err := json.Unmarshal(data, &w); err != nil {
		return models.Word{}, false, fmt.Errorf("failed to unmarshal cached word: %w", err)
	}
	w.NewlyDiscovered = false
	return w, true, nil
}

// Set caches the result of the canonical pair (w1, w2).
func (c *CombinationCache) Set(ctx context.Context, w1, w2 string, result models.Word) error {
	result.NewlyDiscovered = false
	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to marshal word: %w", err)
	}
	if err := c.rdb.Set(ctx, c.key(w1, w2), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to SET combination %s+%s: %w", w1, w2, err)
	}
	return nil
}
