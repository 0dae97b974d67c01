package services

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"cryptodash/backend-go/internal/config"
	"cryptodash/backend-go/internal/logger"
)

const keyPrefix = "cryptodash:"

type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, val []byte, ttl time.Duration) error
	Backend() string
	Ping(ctx context.Context) error
}

type RedisCache struct {
	client *redis.Client
	log    *zap.Logger
}

type MemoryCache struct {
	mu    sync.Mutex
	items map[string]memItem
	now   func() time.Time
}

type memItem struct {
	val []byte
	exp time.Time
}

// NewCache connects to Redis and falls back to an in-process map when the URL
// is invalid or the server does not answer a ping.
func NewCache(cfg config.Config, log *zap.Logger) Cache {
	log = logger.OrNop(log)
	opt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		log.Warn("invalid redis url, using memory cache", zap.Error(err))
		return NewMemoryCache()
	}
	client := redis.NewClient(opt)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		log.Warn("redis unreachable, using memory cache", zap.String("addr", opt.Addr), zap.Error(err))
		return NewMemoryCache()
	}
	log.Info("redis cache connected", zap.String("addr", opt.Addr))
	return &RedisCache{client: client, log: log}
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{items: make(map[string]memItem), now: time.Now}
}

func (r *RedisCache) Get(ctx context.Context, key string) ([]byte, bool) {
	b, err := r.client.Get(ctx, keyPrefix+key).Bytes()
	if err != nil {
		if err != redis.Nil {
			r.log.Warn("redis get failed", zap.String("key", key), zap.Error(err))
		}
		return nil, false
	}
	return b, true
}

func (r *RedisCache) Set(ctx context.Context, key string, val []byte, ttl time.Duration) error {
	return r.client.Set(ctx, keyPrefix+key, val, ttl).Err()
}

func (r *RedisCache) Backend() string { return "redis" }

func (r *RedisCache) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *RedisCache) Close() error {
	return r.client.Close()
}

func (m *MemoryCache) Get(_ context.Context, key string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	it, ok := m.items[key]
	if !ok {
		return nil, false
	}
	if !it.exp.IsZero() && m.now().After(it.exp) {
		delete(m.items, key)
		return nil, false
	}
	return it.val, true
}

func (m *MemoryCache) Set(_ context.Context, key string, val []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	exp := time.Time{}
	if ttl > 0 {
		exp = m.now().Add(ttl)
	}
	m.items[key] = memItem{val: val, exp: exp}
	return nil
}

func (m *MemoryCache) Backend() string { return "memory" }

func (m *MemoryCache) Ping(context.Context) error { return nil }

func MarshalCache(v any) ([]byte, error) {
	return json.Marshal(v)
}

func UnmarshalCache(data []byte, v any) error {
	return json.Unmarshal(data, v)
}
