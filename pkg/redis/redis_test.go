package redis

import (
	"context"
	"os"
	"testing"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hansel67/stock-analyzer/pkg/config"
)

func TestNewClient_Disabled(t *testing.T) {
	client, err := New(context.Background(), &config.Config{})
	require.NoError(t, err)
	assert.False(t, client.Enabled())
	assert.NoError(t, client.Close())
}

func TestRateLimiter_Disabled(t *testing.T) {
	limiter := NewRateLimiter(Disabled(), KeyPrefix)
	limit := MarketDataRateLimit(3)

	allowed, remaining, err := limiter.Allow(context.Background(), limit)
	require.NoError(t, err)
	assert.True(t, allowed, "disabled redis allows everything")
	assert.Equal(t, 3, remaining)

	assert.NoError(t, limiter.Throttle(limit).Wait(context.Background()))
}

func TestCache_Disabled(t *testing.T) {
	cache := NewCache(Disabled(), KeyPrefix)
	ctx := context.Background()

	var result string
	found, err := cache.Get(ctx, "key", &result)
	require.NoError(t, err)
	assert.False(t, found)

	assert.NoError(t, cache.Set(ctx, "key", "value", time.Minute))
	n, err := cache.DeletePattern(ctx, "*")
	assert.NoError(t, err)
	assert.Zero(t, n)
}

func TestMarketDataRateLimit(t *testing.T) {
	assert.Equal(t, RateLimitConfig{Key: "marketdata", Limit: 2, Window: time.Second}, MarketDataRateLimit(2))
	assert.Equal(t, 1, MarketDataRateLimit(0).Limit)
}

// 실제 Redis가 필요 (REDIS_ADDR 설정 시에만 실행)
func TestCache_Integration(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" || testing.Short() {
		t.Skip("REDIS_ADDR not set")
	}

	rdb := goredis.NewClient(&goredis.Options{Addr: addr})
	defer rdb.Close()
	client := Wrap(rdb)
	cache := NewCache(client, "stockanalyzer-test")
	ctx := context.Background()

	type payload struct {
		Symbol string  `json:"symbol"`
		RMSE   float64 `json:"rmse"`
	}
	require.NoError(t, cache.Set(ctx, "report:AAPL:a", payload{"AAPL", 1.5}, time.Minute))
	require.NoError(t, cache.Set(ctx, "report:AAPL:b", payload{"AAPL", 2.5}, time.Minute))

	var got payload
	found, err := cache.Get(ctx, "report:AAPL:a", &got)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, 1.5, got.RMSE)

	n, err := cache.DeletePattern(ctx, "report:AAPL:*")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	found, err = cache.Get(ctx, "report:AAPL:a", &got)
	require.NoError(t, err)
	assert.False(t, found)

	limiter := NewRateLimiter(client, "stockanalyzer-test")
	limit := RateLimitConfig{Key: "it", Limit: 2, Window: time.Second}
	for i := 0; i < 2; i++ {
		ok, _, err := limiter.Allow(ctx, limit)
		require.NoError(t, err)
		assert.True(t, ok)
	}
	ok, _, err := limiter.Allow(ctx, limit)
	require.NoError(t, err)
	assert.False(t, ok)
}
