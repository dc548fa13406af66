package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Unix(1700000000, 0)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func TestMemoryStore_GetWithinTTL(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	store := NewMemoryStore().WithClock(clock.Now)

	require.NoError(t, store.Set(ctx, "k", []byte("v"), time.Minute))
	clock.Advance(59 * time.Second)

	got, err := store.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), got)
}

func TestMemoryStore_ExpiredIsAbsentAndEvicted(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	store := NewMemoryStore().WithClock(clock.Now)

	require.NoError(t, store.Set(ctx, "k", []byte("v"), time.Minute))
	clock.Advance(time.Minute)

	_, err := store.Get(ctx, "k")
	assert.True(t, errors.Is(err, ErrCacheMiss))
	assert.Equal(t, 0, store.Len())

	// no resurrection once the clock is observed past the deadline
	_, err = store.Get(ctx, "k")
	assert.True(t, errors.Is(err, ErrCacheMiss))
}

func TestMemoryStore_SetSweepsExpired(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	store := NewMemoryStore().WithClock(clock.Now)

	for i := 0; i < 10; i++ {
		require.NoError(t, store.Set(ctx, fmt.Sprintf("old-%d", i), []byte("x"), time.Second))
	}
	clock.Advance(2 * time.Second)

	require.NoError(t, store.Set(ctx, "fresh", []byte("y"), time.Minute))
	assert.Equal(t, 1, store.Len())
}

func TestMemoryStore_DeleteAndClear(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	require.NoError(t, store.Set(ctx, "a", []byte("1"), time.Minute))
	require.NoError(t, store.Set(ctx, "b", []byte("2"), time.Minute))

	require.NoError(t, store.Delete(ctx, "a"))
	_, err := store.Get(ctx, "a")
	assert.ErrorIs(t, err, ErrCacheMiss)

	require.NoError(t, store.Clear(ctx))
	assert.Equal(t, 0, store.Len())
}

func TestMemoryStore_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	data := []byte("abc")
	require.NoError(t, store.Set(ctx, "k", data, time.Minute))
	data[0] = 'z'

	got, err := store.Get(ctx, "k")
	require.NoError(t, err)
	got[1] = 'z'

	again, err := store.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("abc"), again)
}

func TestMemoryStore_ConcurrentAccess(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				key := fmt.Sprintf("k-%d", i%16)
				_ = store.Set(ctx, key, []byte{byte(w)}, time.Minute)
				_, _ = store.Get(ctx, key)
				if i%50 == 0 {
					_ = store.Delete(ctx, key)
				}
			}
		}(w)
	}
	wg.Wait()

	assert.LessOrEqual(t, store.Len(), 16)
}
