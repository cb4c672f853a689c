package archive

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stemsi/exstem-authoring/internal/config"
)

// RedisCache keeps parser output for existing problems so reopening an
// edit draft does not reparse the same archive.
type RedisCache struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewRedisCache creates a RedisCache. A zero ttl keeps entries forever.
func NewRedisCache(rdb *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{rdb: rdb, ttl: ttl}
}

// Get returns the cached parse for problemID, if any.
func (c *RedisCache) Get(ctx context.Context, problemID int64) (RawProblem, bool, error) {
	data, err := c.rdb.Get(ctx, config.CacheKey.ParsedProblemKey(problemID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return RawProblem{}, false, nil
		}
		return RawProblem{}, false, fmt.Errorf("get parsed problem: %w", err)
	}

	var raw RawProblem
	if err := json.Unmarshal(data, &raw); err != nil {
		return RawProblem{}, false, fmt.Errorf("unmarshal parsed problem: %w", err)
	}
	return raw, true, nil
}

// Set stores raw for problemID.
func (c *RedisCache) Set(ctx context.Context, problemID int64, raw RawProblem) error {
	data, err := json.Marshal(raw)
	if err != nil {
		return fmt.Errorf("marshal parsed problem: %w", err)
	}
	if err := c.rdb.Set(ctx, config.CacheKey.ParsedProblemKey(problemID), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("set parsed problem: %w", err)
	}
	return nil
}

// Invalidate drops the cached parse, used after the problem is updated.
func (c *RedisCache) Invalidate(ctx context.Context, problemID int64) error {
	return c.rdb.Del(ctx, config.CacheKey.ParsedProblemKey(problemID)).Err()
}
