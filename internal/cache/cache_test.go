package cache

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testCache(t *testing.T) (*Cache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	c := NewWithClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}), zap.NewNop().Sugar())
	return c, mr
}

func TestGetSetRoundTrip(t *testing.T) {
	c, _ := testCache(t)
	ctx := context.Background()

	type snapshot struct {
		Open   int `json:"open"`
		Closed int `json:"closed"`
	}
	c.SetJSON(ctx, "kpi:t1:all:hw", snapshot{Open: 7, Closed: 3})

	var got snapshot
	require.True(t, c.GetJSON(ctx, "kpi:t1:all:hw", &got))
	assert.Equal(t, snapshot{Open: 7, Closed: 3}, got)
}

func TestGetMiss(t *testing.T) {
	c, _ := testCache(t)
	var v map[string]any
	assert.False(t, c.GetJSON(context.Background(), "nope", &v))
}

func TestEntriesExpire(t *testing.T) {
	c, mr := testCache(t)
	ctx := context.Background()

	c.SetJSON(ctx, "k", map[string]int{"n": 1})
	mr.FastForward(defaultTTL * 2)

	var v map[string]int
	assert.False(t, c.GetJSON(ctx, "k", &v))
}

func TestCorruptEntryIsAMiss(t *testing.T) {
	c, mr := testCache(t)
	require.NoError(t, mr.Set("k", "{not json"))

	var v map[string]any
	assert.False(t, c.GetJSON(context.Background(), "k", &v))
}

func TestNilCacheIsSafe(t *testing.T) {
	var c *Cache
	ctx := context.Background()

	c.SetJSON(ctx, "k", map[string]int{"n": 1})
	var v map[string]int
	assert.False(t, c.GetJSON(ctx, "k", &v))
}
