package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"cryptodash/backend-go/internal/config"
	"cryptodash/backend-go/internal/logger"
	"cryptodash/backend-go/internal/models"
)

type SnapshotMeta struct {
	Source    string
	Stale     bool
	Err       string
	FetchedAt string
}

func (m SnapshotMeta) Model() models.Meta {
	return models.Meta{Source: m.Source, Stale: m.Stale, Error: m.Err, FetchedAt: m.FetchedAt}
}

type MarketSource interface {
	Listings(ctx context.Context, q ListingsQuery) ([]models.Listing, error)
	GlobalMetrics(ctx context.Context, convert string) (models.GlobalMetrics, error)
}

type marketCacheEntry[T any] struct {
	FetchedAt string `json:"fetched_at"`
	Data      T      `json:"data"`
}

type marketFlight[T any] struct {
	entry  marketCacheEntry[T]
	cached bool
}

// MarketService caches listings and global metrics for a short TTL and keeps a
// longer-lived last-good copy that is served when the upstream fails.
type MarketService struct {
	cfg   config.Config
	cache Cache
	src   MarketSource
	log   *zap.Logger
	now   func() time.Time
	group singleflight.Group
}

func NewMarketService(cfg config.Config, cache Cache, src MarketSource, log *zap.Logger) *MarketService {
	if cache == nil {
		cache = NewMemoryCache()
	}
	return &MarketService{
		cfg:   cfg,
		cache: cache,
		src:   src,
		log:   logger.OrNop(log).Named("market"),
		now:   time.Now,
	}
}

func (s *MarketService) Listings(ctx context.Context, q ListingsQuery) ([]models.Listing, SnapshotMeta, error) {
	q.Convert = strings.ToUpper(q.Convert)
	key := fmt.Sprintf("listings:v1:%d:%d:%s", q.Start, q.Limit, q.Convert)
	return cachedFetch(ctx, s, key, s.cfg.CacheTTLListings, func(ctx context.Context) ([]models.Listing, error) {
		return s.src.Listings(ctx, q)
	})
}

func (s *MarketService) Global(ctx context.Context, convert string) (models.GlobalMetrics, SnapshotMeta, error) {
	convert = strings.ToUpper(convert)
	key := "global:v1:" + convert
	return cachedFetch(ctx, s, key, s.cfg.CacheTTLGlobal, func(ctx context.Context) (models.GlobalMetrics, error) {
		return s.src.GlobalMetrics(ctx, convert)
	})
}

func (s *MarketService) CacheBackend() string {
	return s.cache.Backend()
}

func (s *MarketService) PingCache(ctx context.Context) error {
	return s.cache.Ping(ctx)
}

// cachedFetch serves key from the cache, or fetches it once for all concurrent
// callers. The fetch runs detached from the first caller's context so a
// caller giving up does not fail the others.
func cachedFetch[T any](ctx context.Context, s *MarketService, key string, ttl time.Duration, fetch func(context.Context) (T, error)) (T, SnapshotMeta, error) {
	lastGoodKey := "lastgood:" + key
	if cached, ok := readEntry[T](ctx, s.cache, key); ok {
		return cached.Data, SnapshotMeta{Source: "cache", FetchedAt: cached.FetchedAt}, nil
	}

	ch := s.group.DoChan(key, func() (any, error) {
		fctx := context.WithoutCancel(ctx)
		// Another flight may have stored the key after our miss.
		if cached, ok := readEntry[T](fctx, s.cache, key); ok {
			return marketFlight[T]{entry: cached, cached: true}, nil
		}
		if s.cfg.RequestTimeout > 0 {
			var cancel context.CancelFunc
			fctx, cancel = context.WithTimeout(fctx, s.cfg.RequestTimeout)
			defer cancel()
		}
		data, err := fetch(fctx)
		if err != nil {
			return nil, err
		}
		entry := marketCacheEntry[T]{FetchedAt: s.now().UTC().Format(time.RFC3339), Data: data}
		if b, err := MarshalCache(entry); err == nil {
			_ = s.cache.Set(fctx, key, b, ttl)
			_ = s.cache.Set(fctx, lastGoodKey, b, s.lastGoodTTL(ttl))
		}
		return marketFlight[T]{entry: entry}, nil
	})

	var res singleflight.Result
	select {
	case <-ctx.Done():
		res.Err = ctx.Err()
	case res = <-ch:
	}

	if res.Err != nil {
		err := res.Err
		if cached, ok := readEntry[T](context.WithoutCancel(ctx), s.cache, lastGoodKey); ok {
			s.log.Warn("serving last good copy", zap.String("key", key), zap.Error(err))
			return cached.Data, SnapshotMeta{
				Source:    "stale_cache",
				Stale:     true,
				Err:       err.Error(),
				FetchedAt: cached.FetchedAt,
			}, nil
		}
		var zero T
		return zero, SnapshotMeta{Source: "error", Err: err.Error()}, err
	}

	fl := res.Val.(marketFlight[T])
	source := "fresh"
	if fl.cached {
		source = "cache"
	}
	return fl.entry.Data, SnapshotMeta{Source: source, FetchedAt: fl.entry.FetchedAt}, nil
}

func readEntry[T any](ctx context.Context, cache Cache, key string) (marketCacheEntry[T], bool) {
	var entry marketCacheEntry[T]
	b, ok := cache.Get(ctx, key)
	if !ok {
		return entry, false
	}
	if err := UnmarshalCache(b, &entry); err != nil {
		return entry, false
	}
	return entry, true
}

func (s *MarketService) lastGoodTTL(ttl time.Duration) time.Duration {
	if s.cfg.CacheTTLLastGood < ttl {
		return ttl
	}
	return s.cfg.CacheTTLLastGood
}
