package services

import (
	"context"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/bimakw/token-radar/internal/application/workers"
	"github.com/bimakw/token-radar/internal/domain/entities"
	"github.com/bimakw/token-radar/internal/infrastructure/metrics"
)

// DiscoveryService runs every discovery worker and reports registry growth
type DiscoveryService struct {
	loops   []*workers.Loop
	metrics *metrics.Metrics
	logger  *zap.Logger

	mu      sync.Mutex
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool

	discovered atomic.Int64
}

// NewDiscoveryService creates a new discovery service from worker strategies
func NewDiscoveryService(strategies []workers.Strategy, m *metrics.Metrics, logger *zap.Logger) *DiscoveryService {
	loops := make([]*workers.Loop, 0, len(strategies))
	for _, s := range strategies {
		loops = append(loops, workers.NewLoop(s, m, logger))
	}
	return &DiscoveryService{
		loops:   loops,
		metrics: m,
		logger:  logger,
	}
}

// Start launches every worker loop. Calling Start on a running service is a no-op.
func (s *DiscoveryService) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		s.logger.Debug("Discovery service already running")
		return
	}

	s.logger.Info("Starting discovery service", zap.Strings("workers", s.Workers()))

	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.running = true

	for _, l := range s.loops {
		s.wg.Add(1)
		go func(l *workers.Loop) {
			defer s.wg.Done()
			l.Run(runCtx)
		}(l)
	}
}

// Stop cancels every loop and waits for in-flight cycles to return or for
// ctx to expire
func (s *DiscoveryService) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.logger.Info("Stopping discovery service")
	s.cancel()
	s.running = false
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("Discovery service stopped")
		return nil
	case <-ctx.Done():
		s.logger.Warn("Discovery workers did not stop in time")
		return ctx.Err()
	}
}

// Running reports whether the worker loops are active
func (s *DiscoveryService) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Workers returns the worker names in start order
func (s *DiscoveryService) Workers() []string {
	names := make([]string, len(s.loops))
	for i, l := range s.loops {
		names[i] = l.Name()
	}
	return names
}

// OnMerge is installed as the registry observer
func (s *DiscoveryService) OnMerge(record entities.TokenRecord, created bool) {
	if !created {
		return
	}
	n := s.discovered.Add(1)
	s.metrics.TokenDiscovered(string(record.DiscoveryMethod))
	s.metrics.SetRegistrySize(int(n))

	s.logger.Info("Discovered new token",
		zap.String("token", record.Address),
		zap.String("symbol", record.Symbol),
		zap.String("name", record.Name),
		zap.String("method", string(record.DiscoveryMethod)),
		zap.Uint64("block", record.FirstSeenBlock),
	)
}
