package workers

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/bimakw/token-radar/internal/infrastructure/metrics"
)

type funcStrategy struct {
	interval time.Duration
	calls    int32
	run      func(n int32) error
}

func (s *funcStrategy) Name() string            { return "test" }
func (s *funcStrategy) Interval() time.Duration { return s.interval }
func (s *funcStrategy) RunCycle(ctx context.Context) error {
	n := atomic.AddInt32(&s.calls, 1)
	if s.run != nil {
		return s.run(n)
	}
	return nil
}

func newTestMetrics(t *testing.T) *metrics.Metrics {
	t.Helper()
	m, err := metrics.New(prometheus.NewRegistry())
	require.NoError(t, err)
	return m
}

func TestLoop_RunsUntilCancelled(t *testing.T) {
	s := &funcStrategy{interval: 5 * time.Millisecond}
	loop := NewLoop(s, newTestMetrics(t), zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		loop.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool { return atomic.LoadInt32(&s.calls) >= 3 }, time.Second, time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("loop did not stop after cancel")
	}
}

func TestLoop_FirstCycleIsImmediate(t *testing.T) {
	s := &funcStrategy{interval: time.Hour}
	loop := NewLoop(s, newTestMetrics(t), zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go loop.Run(ctx)

	require.Eventually(t, func() bool { return atomic.LoadInt32(&s.calls) == 1 }, time.Second, time.Millisecond)
}

func TestLoop_SurvivesErrorsAndPanics(t *testing.T) {
	s := &funcStrategy{
		interval: time.Hour,
		run: func(n int32) error {
			switch n {
			case 1:
				return errors.New("rpc down")
			case 2:
				panic("nil map")
			}
			return nil
		},
	}
	loop := NewLoop(s, newTestMetrics(t), zap.NewNop())
	ctx := context.Background()

	assert.NotPanics(t, func() {
		loop.RunOnce(ctx)
		loop.RunOnce(ctx)
		loop.RunOnce(ctx)
	})
	assert.Equal(t, int32(3), atomic.LoadInt32(&s.calls))
}

func TestLoop_SkipsWhenCancelled(t *testing.T) {
	s := &funcStrategy{interval: time.Hour}
	loop := NewLoop(s, newTestMetrics(t), zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	loop.RunOnce(ctx)

	assert.Equal(t, int32(0), atomic.LoadInt32(&s.calls))
}
