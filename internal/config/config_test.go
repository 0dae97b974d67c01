package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{"PORT", "CMC_API_KEY", "LISTING_LIMIT", "CONVERT", "NEWS_SOURCE", "CACHE_TTL_LISTINGS", "LOG_DEV"} {
		t.Setenv(key, "")
	}

	cfg := Load()
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, 10, cfg.ListingLimit)
	assert.Equal(t, "USD", cfg.Convert)
	assert.Equal(t, NewsSourceMock, cfg.NewsSource)
	assert.Equal(t, 60*time.Second, cfg.CacheTTLListings)
	assert.False(t, cfg.LogDev)
	assert.False(t, cfg.HasAPIKey())
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("CMC_API_KEY", "  abc123 ")
	t.Setenv("LISTING_LIMIT", "25")
	t.Setenv("CONVERT", "eur")
	t.Setenv("NEWS_SOURCE", "RSS")
	t.Setenv("CACHE_TTL_LISTINGS", "15")
	t.Setenv("LOG_DEV", "yes")

	cfg := Load()
	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, "abc123", cfg.CMCAPIKey)
	assert.True(t, cfg.HasAPIKey())
	assert.Equal(t, 25, cfg.ListingLimit)
	assert.Equal(t, "EUR", cfg.Convert)
	assert.Equal(t, NewsSourceRSS, cfg.NewsSource)
	assert.Equal(t, 15*time.Second, cfg.CacheTTLListings)
	assert.True(t, cfg.LogDev)
}

func TestLoadIgnoresMalformedNumbers(t *testing.T) {
	t.Setenv("LISTING_LIMIT", "ten")
	t.Setenv("REQUEST_TIMEOUT", "5s")

	cfg := Load()
	assert.Equal(t, 10, cfg.ListingLimit)
	assert.Equal(t, 12*time.Second, cfg.RequestTimeout)
}

func TestLocationFallsBackToUTC(t *testing.T) {
	cfg := Config{NewsTimezone: "Not/AZone"}
	assert.Equal(t, time.UTC, cfg.Location())

	cfg.NewsTimezone = "Europe/Madrid"
	assert.Equal(t, "Europe/Madrid", cfg.Location().String())
}
