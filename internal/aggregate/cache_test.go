// internal/aggregate/cache_test.go
package aggregate

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redismock/v9"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"learning-tracker/internal/common/logger"
	"learning-tracker/internal/models"
)

func newTestCache(t *testing.T, ttl time.Duration) (*Cache, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	return NewCache(client, ttl, logger.NewTestLogger(t)), mr
}

func TestCache_RoundTrip(t *testing.T) {
	cache, _ := newTestCache(t, time.Minute)
	ctx := context.Background()

	totals := &models.Totals{Range: "week", TotalSessions: 4, TotalSeconds: 1200}
	cache.Set(ctx, "agg:totals:alice:week", totals)

	var got models.Totals
	require.True(t, cache.Get(ctx, "agg:totals:alice:week", &got))
	assert.Equal(t, totals.TotalSessions, got.TotalSessions)
	assert.Equal(t, totals.TotalSeconds, got.TotalSeconds)
}

func TestCache_MissOnUnknownKey(t *testing.T) {
	cache, _ := newTestCache(t, time.Minute)

	var got models.Totals
	assert.False(t, cache.Get(context.Background(), "agg:totals:nobody:all", &got))
}

func TestCache_EntriesExpire(t *testing.T) {
	cache, mr := newTestCache(t, 30*time.Second)
	ctx := context.Background()

	cache.Set(ctx, "agg:totals:alice:today", &models.Totals{Range: "today"})
	mr.FastForward(31 * time.Second)

	var got models.Totals
	assert.False(t, cache.Get(ctx, "agg:totals:alice:today", &got))
}

func TestCache_NilSafe(t *testing.T) {
	var cache *Cache

	var got models.Totals
	assert.False(t, cache.Get(context.Background(), "anything", &got))
	cache.Set(context.Background(), "anything", &got)
}

func TestCache_SetUsesConfiguredTTL(t *testing.T) {
	client, mock := redismock.NewClientMock()
	cache := NewCache(client, 5*time.Minute, logger.NewTestLogger(t))

	totals := &models.Totals{Range: "all", TotalSessions: 2}
	raw, err := json.Marshal(totals)
	require.NoError(t, err)

	mock.ExpectSet("agg:totals:alice:all", raw, 5*time.Minute).SetVal("OK")
	cache.Set(context.Background(), "agg:totals:alice:all", totals)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCache_MalformedEntryIsAMiss(t *testing.T) {
	cache, mr := newTestCache(t, time.Minute)
	require.NoError(t, mr.Set("agg:totals:alice:all", "not json"))

	var got models.Totals
	assert.False(t, cache.Get(context.Background(), "agg:totals:alice:all", &got))
}
