package cache

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/bimakw/token-radar/internal/config"
)

// Recorder receives cache telemetry
type Recorder interface {
	CacheLookup(hit bool)
	CacheBackend(name string)
}

// Dialer opens the remote backend
type Dialer func(ctx context.Context) (Store, error)

// Cache is the TTL cache used by the workers and the API.
//
// The backend is selected once, on first use: the remote store when it can be
// dialed, otherwise an in-process MemoryStore for the rest of the process
// lifetime. Backend failures are logged and reported as misses or no-ops.
type Cache struct {
	dial     Dialer
	once     sync.Once
	store    Store
	recorder Recorder
	logger   *zap.Logger
}

// New creates a cache that will try Redis when cfg.URL is set
func New(cfg config.RedisConfig, logger *zap.Logger) *Cache {
	var dial Dialer
	if cfg.URL != "" {
		dial = func(ctx context.Context) (Store, error) {
			return NewRedisStore(ctx, cfg, logger)
		}
	}
	return NewWithDialer(dial, logger)
}

// NewWithDialer creates a cache with a custom remote dialer. A nil dialer
// selects the memory backend.
func NewWithDialer(dial Dialer, logger *zap.Logger) *Cache {
	return &Cache{dial: dial, logger: logger}
}

// NewWithStore creates a cache bound to an existing store
func NewWithStore(store Store, logger *zap.Logger) *Cache {
	c := &Cache{store: store, logger: logger}
	c.once.Do(func() {})
	return c
}

// SetRecorder installs a telemetry sink. Call before first use.
func (c *Cache) SetRecorder(r Recorder) {
	c.recorder = r
}

func (c *Cache) backend(ctx context.Context) Store {
	c.once.Do(func() {
		if c.dial != nil {
			store, err := c.dial(ctx)
			if err == nil {
				c.store = store
			} else {
				c.logger.Warn("Remote cache unavailable, using in-memory cache",
					zap.Error(err),
				)
			}
		}
		if c.store == nil {
			c.store = NewMemoryStore()
		}
		c.logger.Info("Cache backend selected", zap.String("backend", c.store.Name()))
		if c.recorder != nil {
			c.recorder.CacheBackend(c.store.Name())
		}
	})
	return c.store
}

// Backend returns the selected backend name, selecting it if needed
func (c *Cache) Backend(ctx context.Context) string {
	return c.backend(ctx).Name()
}

// Get decodes the cached value for key into dest. It reports false on a miss,
// on backend failure and on undecodable data.
func (c *Cache) Get(ctx context.Context, key string, dest interface{}) bool {
	data, err := c.backend(ctx).Get(ctx, key)
	if err != nil {
		if !errors.Is(err, ErrCacheMiss) {
			c.logger.Warn("Cache get failed", zap.String("key", key), zap.Error(err))
		}
		c.record(false)
		return false
	}

	if err := json.Unmarshal(data, dest); err != nil {
		c.logger.Warn("Failed to unmarshal cached value", zap.String("key", key), zap.Error(err))
		c.record(false)
		return false
	}

	c.record(true)
	return true
}

// Set stores value under key for ttl
func (c *Cache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) {
	data, err := json.Marshal(value)
	if err != nil {
		c.logger.Warn("Failed to marshal cache value", zap.String("key", key), zap.Error(err))
		return
	}

	if err := c.backend(ctx).Set(ctx, key, data, ttl); err != nil {
		c.logger.Warn("Cache set failed", zap.String("key", key), zap.Error(err))
	}
}

// Delete removes key
func (c *Cache) Delete(ctx context.Context, key string) {
	if err := c.backend(ctx).Delete(ctx, key); err != nil {
		c.logger.Warn("Cache delete failed", zap.String("key", key), zap.Error(err))
	}
}

// Clear removes every entry owned by the cache
func (c *Cache) Clear(ctx context.Context) {
	if err := c.backend(ctx).Clear(ctx); err != nil {
		c.logger.Warn("Cache clear failed", zap.Error(err))
	}
}

// HealthCheck checks the selected backend
func (c *Cache) HealthCheck(ctx context.Context) error {
	return c.backend(ctx).HealthCheck(ctx)
}

// Close releases the backend connection if it holds one. A cache closed
// before first use settles on the memory backend without dialing.
func (c *Cache) Close() error {
	c.once.Do(func() {
		c.store = NewMemoryStore()
	})
	if closer, ok := c.store.(interface{ Close() error }); ok {
		return closer.Close()
	}
	return nil
}

func (c *Cache) record(hit bool) {
	if c.recorder != nil {
		c.recorder.CacheLookup(hit)
	}
}

// GetOrLoad returns the cached value for key or calls load and caches its result.
// ttl picks the lifetime from the loaded value; a zero ttl skips caching.
// Load errors are returned uncached.
func GetOrLoad[T any](ctx context.Context, c *Cache, key string, ttl func(T) time.Duration, load func(ctx context.Context) (T, error)) (T, error) {
	var cached T
	if c.Get(ctx, key, &cached) {
		return cached, nil
	}

	value, err := load(ctx)
	if err != nil {
		return value, err
	}

	if d := ttl(value); d > 0 {
		c.Set(ctx, key, value, d)
	}
	return value, nil
}
