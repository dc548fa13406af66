// Package workers holds the discovery loops that feed the token registry.
package workers

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"go.uber.org/zap"

	"github.com/bimakw/token-radar/internal/infrastructure/metrics"
)

// Strategy is one discovery source. RunCycle is called once per interval and
// owns its own checkpoint.
type Strategy interface {
	Name() string
	Interval() time.Duration
	RunCycle(ctx context.Context) error
}

// Loop runs a Strategy on a ticker until the context is cancelled
type Loop struct {
	strategy Strategy
	metrics  *metrics.Metrics
	logger   *zap.Logger
}

// NewLoop creates a new worker loop
func NewLoop(strategy Strategy, m *metrics.Metrics, logger *zap.Logger) *Loop {
	return &Loop{
		strategy: strategy,
		metrics:  m,
		logger:   logger.With(zap.String("worker", strategy.Name())),
	}
}

// Name returns the strategy name
func (l *Loop) Name() string {
	return l.strategy.Name()
}

// Run blocks until ctx is done. A failing or panicking cycle is logged and
// the next tick runs as usual.
func (l *Loop) Run(ctx context.Context) {
	interval := l.strategy.Interval()
	l.logger.Info("Starting worker", zap.Duration("interval", interval))

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	// Run immediately on start
	l.RunOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			l.logger.Info("Worker stopped")
			return
		case <-ticker.C:
			l.RunOnce(ctx)
		}
	}
}

// RunOnce executes a single cycle with panic recovery and metrics
func (l *Loop) RunOnce(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}

	start := time.Now()
	err := l.safeCycle(ctx)
	duration := time.Since(start)

	l.metrics.ObserveCycle(l.strategy.Name(), duration, err)

	if err != nil {
		if ctx.Err() != nil {
			return
		}
		l.logger.Error("Worker cycle failed",
			zap.Duration("duration", duration),
			zap.Error(err),
		)
		return
	}

	l.logger.Debug("Worker cycle completed", zap.Duration("duration", duration))
}

func (l *Loop) safeCycle(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			l.metrics.IncError(l.strategy.Name(), metrics.ErrKindPanic)
			l.logger.Error("Worker cycle panicked",
				zap.Any("panic", r),
				zap.ByteString("stack", debug.Stack()),
			)
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return l.strategy.RunCycle(ctx)
}
