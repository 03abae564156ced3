// Package cache is a read-through JSON cache over redis for the KPI and
// QR read paths. Keys embed the permit high-water mark so any permit
// version bump naturally invalidates the snapshot.
package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const defaultTTL = 60 * time.Second

// Cache wraps a redis client. A nil *Cache is valid and caches nothing,
// so boot can skip redis when REDIS_URL is unset.
type Cache struct {
	rdb *redis.Client
	lg  *zap.SugaredLogger
	ttl time.Duration
}

func New(url string, lg *zap.SugaredLogger) (*Cache, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	return &Cache{rdb: redis.NewClient(opt), lg: lg, ttl: defaultTTL}, nil
}

// NewWithClient wires an existing client; tests pass a miniredis-backed one.
func NewWithClient(rdb *redis.Client, lg *zap.SugaredLogger) *Cache {
	return &Cache{rdb: rdb, lg: lg, ttl: defaultTTL}
}

// GetJSON loads key into v. A miss, a nil cache, or a redis error all
// report false; the caller recomputes.
func (c *Cache) GetJSON(ctx context.Context, key string, v any) bool {
	if c == nil {
		return false
	}
	raw, err := c.rdb.Get(ctx, key).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.lg.Debugw("cache get failed", "key", key, "error", err)
		}
		return false
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return false
	}
	return true
}

// SetJSON stores v under key with the cache TTL. Failures are logged and
// swallowed; the cache is never load-bearing.
func (c *Cache) SetJSON(ctx context.Context, key string, v any) {
	if c == nil {
		return
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return
	}
	if err := c.rdb.Set(ctx, key, raw, c.ttl).Err(); err != nil {
		c.lg.Debugw("cache set failed", "key", key, "error", err)
	}
}
