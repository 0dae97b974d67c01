package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Port             string
	RedisURL         string
	CMCAPIKey        string
	CMCBaseURL       string
	ListingLimit     int
	Convert          string
	NewsSource       string
	NewsFeedURL      string
	NewsLimit        int
	NewsTimezone     string
	CacheTTLListings time.Duration
	CacheTTLGlobal   time.Duration
	CacheTTLLastGood time.Duration
	RequestTimeout   time.Duration
	NewsFetchTimeout time.Duration
	RateLimitPerMin  int
	CircuitFailLimit int
	CircuitCooldown  time.Duration
	LogLevel         string
	LogDev           bool
}

const (
	NewsSourceMock = "mock"
	NewsSourceCMC  = "cmc"
	NewsSourceRSS  = "rss"
)

func Load() Config {
	return Config{
		Port:             getEnv("PORT", "8080"),
		RedisURL:         getEnv("REDIS_URL", "redis://localhost:6379"),
		CMCAPIKey:        strings.TrimSpace(os.Getenv("CMC_API_KEY")),
		CMCBaseURL:       getEnv("CMC_BASE_URL", "https://pro-api.coinmarketcap.com"),
		ListingLimit:     getEnvInt("LISTING_LIMIT", 10),
		Convert:          strings.ToUpper(getEnv("CONVERT", "USD")),
		NewsSource:       strings.ToLower(getEnv("NEWS_SOURCE", NewsSourceMock)),
		NewsFeedURL:      getEnv("NEWS_FEED_URL", "https://cointelegraph.com/rss"),
		NewsLimit:        getEnvInt("NEWS_LIMIT", 20),
		NewsTimezone:     getEnv("NEWS_TIMEZONE", "UTC"),
		CacheTTLListings: getEnvDuration("CACHE_TTL_LISTINGS", 60*time.Second),
		CacheTTLGlobal:   getEnvDuration("CACHE_TTL_GLOBAL", 120*time.Second),
		CacheTTLLastGood: getEnvDuration("CACHE_TTL_LAST_GOOD", time.Hour),
		RequestTimeout:   getEnvDuration("REQUEST_TIMEOUT", 12*time.Second),
		NewsFetchTimeout: getEnvDuration("NEWS_FETCH_TIMEOUT", 20*time.Second),
		RateLimitPerMin:  getEnvInt("RATE_LIMIT_PER_MIN", 120),
		CircuitFailLimit: getEnvInt("CIRCUIT_FAIL_LIMIT", 3),
		CircuitCooldown:  getEnvDuration("CIRCUIT_COOLDOWN", 20*time.Second),
		LogLevel:         getEnv("LOG_LEVEL", "info"),
		LogDev:           getEnvBool("LOG_DEV", false),
	}
}

// HasAPIKey reports whether a CoinMarketCap credential was supplied. Nothing
// beyond non-empty is checked; the upstream rejects bad keys itself.
func (c Config) HasAPIKey() bool {
	return c.CMCAPIKey != ""
}

// Location resolves NewsTimezone, falling back to UTC.
func (c Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.NewsTimezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func getEnv(key, def string) string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return v
}

func getEnvInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return i
}

func getEnvBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	switch strings.ToLower(v) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	}
	return def
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return time.Duration(i) * time.Second
}
