package cache

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/bimakw/token-radar/internal/config"
)

type blockInfo struct {
	Number uint64 `json:"number,string"`
	Hash   string `json:"hash"`
}

type failingStore struct{}

func (failingStore) Get(context.Context, string) ([]byte, error) {
	return nil, errors.New("connection reset")
}
func (failingStore) Set(context.Context, string, []byte, time.Duration) error {
	return errors.New("connection reset")
}
func (failingStore) Delete(context.Context, string) error { return errors.New("connection reset") }
func (failingStore) Clear(context.Context) error { return errors.New("connection reset") }
func (failingStore) HealthCheck(context.Context) error { return errors.New("connection reset") }
func (failingStore) Name() string { return "failing" }

type closingStore struct {
	*MemoryStore
	closed atomic.Bool
}

func (s *closingStore) Name() string { return "closing" }

func (s *closingStore) Close() error {
	s.closed.Store(true)
	return nil
}

type countingRecorder struct {
	hits, misses atomic.Int64
	backend      atomic.Value
}

func (r *countingRecorder) CacheLookup(hit bool) {
	if hit {
		r.hits.Add(1)
	} else {
		r.misses.Add(1)
	}
}

func (r *countingRecorder) CacheBackend(name string) {
	r.backend.Store(name)
}

func TestCache_RoundTripPreservesLargeIntegers(t *testing.T) {
	ctx := context.Background()
	c := NewWithStore(NewMemoryStore(), zap.NewNop())

	in := blockInfo{Number: 18446744073709551615, Hash: "0xabc"}
	c.Set(ctx, "block", in, time.Minute)

	var out blockInfo
	require.True(t, c.Get(ctx, "block", &out))
	assert.Equal(t, in, out)
}

func TestCache_BackendFailuresAreMisses(t *testing.T) {
	ctx := context.Background()
	c := NewWithStore(failingStore{}, zap.NewNop())

	c.Set(ctx, "k", "v", time.Minute)
	var out string
	assert.False(t, c.Get(ctx, "k", &out))

	c.Delete(ctx, "k")
	c.Clear(ctx)
}

func TestCache_UndecodableValueIsMiss(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	require.NoError(t, store.Set(ctx, "k", []byte("{not json"), time.Minute))

	c := NewWithStore(store, zap.NewNop())
	var out blockInfo
	assert.False(t, c.Get(ctx, "k", &out))
}

func TestCache_FallsBackToMemoryOnce(t *testing.T) {
	ctx := context.Background()
	var dials atomic.Int32
	c := NewWithDialer(func(context.Context) (Store, error) {
		dials.Add(1)
		return nil, errors.New("dial tcp: connection refused")
	}, zap.NewNop())
	rec := &countingRecorder{}
	c.SetRecorder(rec)

	c.Set(ctx, "k", 42, time.Minute)
	var out int
	require.True(t, c.Get(ctx, "k", &out))
	assert.Equal(t, 42, out)

	assert.Equal(t, BackendMemory, c.Backend(ctx))
	assert.Equal(t, int32(1), dials.Load())
	assert.Equal(t, BackendMemory, rec.backend.Load())
	assert.Equal(t, int64(1), rec.hits.Load())
}

func TestCache_UnreachableRedisURLFallsBack(t *testing.T) {
	ctx := context.Background()
	c := New(config.RedisConfig{
		URL:         "redis://127.0.0.1:1/0",
		KeyPrefix:   "test:",
		DialTimeout: 200 * time.Millisecond,
	}, zap.NewNop())

	assert.Equal(t, BackendMemory, c.Backend(ctx))
}

func TestCache_NoURLUsesMemory(t *testing.T) {
	c := New(config.RedisConfig{}, zap.NewNop())
	assert.Equal(t, BackendMemory, c.Backend(context.Background()))
	assert.NoError(t, c.Close())
}

func TestCache_CloseBeforeUseDoesNotDial(t *testing.T) {
	var dials atomic.Int32
	c := NewWithDialer(func(context.Context) (Store, error) {
		dials.Add(1)
		return &closingStore{MemoryStore: NewMemoryStore()}, nil
	}, zap.NewNop())

	require.NoError(t, c.Close())
	assert.Equal(t, int32(0), dials.Load())
	assert.Equal(t, BackendMemory, c.Backend(context.Background()))
}

func TestCache_CloseConcurrentWithSelection(t *testing.T) {
	ctx := context.Background()
	store := &closingStore{MemoryStore: NewMemoryStore()}
	c := NewWithDialer(func(context.Context) (Store, error) {
		return store, nil
	}, zap.NewNop())

	done := make(chan struct{})
	go func() {
		defer close(done)
		c.Set(ctx, "k", 1, time.Minute)
	}()
	require.NoError(t, c.Close())
	<-done

	// whichever call selected the backend, Close saw the same store
	switch c.Backend(ctx) {
	case "closing":
		assert.True(t, store.closed.Load())
	default:
		assert.Equal(t, BackendMemory, c.Backend(ctx))
		assert.False(t, store.closed.Load())
	}
}

func TestGetOrLoad(t *testing.T) {
	ctx := context.Background()
	c := NewWithStore(NewMemoryStore(), zap.NewNop())

	var loads int
	load := func(context.Context) (string, error) {
		loads++
		return "value", nil
	}
	ttl := func(string) time.Duration { return time.Minute }

	for i := 0; i < 3; i++ {
		got, err := GetOrLoad(ctx, c, "key", ttl, load)
		require.NoError(t, err)
		assert.Equal(t, "value", got)
	}
	assert.Equal(t, 1, loads)
}

func TestGetOrLoad_ErrorsAndZeroTTLNotCached(t *testing.T) {
	ctx := context.Background()
	c := NewWithStore(NewMemoryStore(), zap.NewNop())

	var loads int
	failing := func(context.Context) (string, error) {
		loads++
		return "", errors.New("timeout")
	}
	ttl := func(string) time.Duration { return time.Minute }

	_, err := GetOrLoad(ctx, c, "key", ttl, failing)
	assert.Error(t, err)
	_, err = GetOrLoad(ctx, c, "key", ttl, failing)
	assert.Error(t, err)
	assert.Equal(t, 2, loads)

	loads = 0
	noCache := func(string) time.Duration { return 0 }
	ok := func(context.Context) (string, error) {
		loads++
		return "v", nil
	}
	_, _ = GetOrLoad(ctx, c, "other", noCache, ok)
	_, _ = GetOrLoad(ctx, c, "other", noCache, ok)
	assert.Equal(t, 2, loads)
}
