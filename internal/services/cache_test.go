package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cryptodash/backend-go/internal/config"
)

func TestMemoryCacheExpiry(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	c := NewMemoryCache()
	c.now = func() time.Time { return now }
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k", []byte("v"), time.Minute))
	require.NoError(t, c.Set(ctx, "forever", []byte("f"), 0))

	got, ok := c.Get(ctx, "k")
	require.True(t, ok)
	assert.Equal(t, []byte("v"), got)

	now = now.Add(2 * time.Minute)
	_, ok = c.Get(ctx, "k")
	assert.False(t, ok)

	_, ok = c.Get(ctx, "forever")
	assert.True(t, ok)
}

func TestNewCacheFallsBackToMemory(t *testing.T) {
	c := NewCache(config.Config{RedisURL: "not a url"}, nil)
	assert.Equal(t, "memory", c.Backend())
	assert.NoError(t, c.Ping(context.Background()))
}

func TestMarshalRoundTripHelpers(t *testing.T) {
	b, err := MarshalCache(map[string]int{"btc": 1})
	require.NoError(t, err)

	var out map[string]int
	require.NoError(t, UnmarshalCache(b, &out))
	assert.Equal(t, 1, out["btc"])
}
