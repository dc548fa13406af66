package cache

import (
	"context"
	"errors"
	"time"
)

// ErrCacheMiss indicates the key was not found in cache
var ErrCacheMiss = errors.New("cache miss")

// Store is a byte-level TTL key/value backend
type Store interface {
	// Get returns the stored bytes, or ErrCacheMiss when absent or expired
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores data under key for ttl
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error

	// Delete removes a key
	Delete(ctx context.Context, key string) error

	// Clear removes every key owned by this store
	Clear(ctx context.Context) error

	// HealthCheck checks the backend is reachable
	HealthCheck(ctx context.Context) error

	// Name identifies the backend in logs and metrics
	Name() string
}

// Backend names
const (
	BackendRedis  = "redis"
	BackendMemory = "memory"
)
