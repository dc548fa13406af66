package metrics

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const Namespace = "token_radar"

// Error kinds
const (
	ErrKindTransient = "transient"
	ErrKindNotToken  = "not_token"
	ErrKindUpstream  = "upstream"
	ErrKindPanic     = "panic"
	ErrKindInternal  = "internal"
)

// Metrics holds the discovery pipeline collectors
type Metrics struct {
	cycles        *prometheus.CounterVec
	cycleDuration *prometheus.HistogramVec
	errors        *prometheus.CounterVec
	candidates    *prometheus.CounterVec
	discovered    *prometheus.CounterVec
	lastBlock     *prometheus.GaugeVec
	registrySize  prometheus.Gauge
	cacheLookups  *prometheus.CounterVec
	cacheBackend  *prometheus.GaugeVec
}

// New creates the collectors and registers them with reg
func New(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		cycles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "worker",
			Name:      "cycles_total",
			Help:      "Worker cycles by worker and outcome",
		}, []string{"worker", "status"}),
		cycleDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: Namespace,
			Subsystem: "worker",
			Name:      "cycle_duration_seconds",
			Help:      "Time spent in one worker cycle",
			Buckets:   []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"worker"}),
		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "errors_total",
			Help:      "Errors by worker and kind",
		}, []string{"worker", "kind"}),
		candidates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "worker",
			Name:      "candidates_total",
			Help:      "Candidate addresses produced by each worker",
		}, []string{"worker"}),
		discovered: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "tokens_discovered_total",
			Help:      "New tokens added to the registry by discovery method",
		}, []string{"method"}),
		lastBlock: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: Namespace,
			Subsystem: "worker",
			Name:      "last_processed_block",
			Help:      "Last block fully processed by each chain worker",
		}, []string{"worker"}),
		registrySize: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "registry_tokens",
			Help:      "Number of tokens held in the registry",
		}),
		cacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "cache",
			Name:      "lookups_total",
			Help:      "Cache lookups by result",
		}, []string{"result"}),
		cacheBackend: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: Namespace,
			Subsystem: "cache",
			Name:      "backend",
			Help:      "Selected cache backend (1 = active)",
		}, []string{"backend"}),
	}

	err := errors.Join(
		reg.Register(m.cycles),
		reg.Register(m.cycleDuration),
		reg.Register(m.errors),
		reg.Register(m.candidates),
		reg.Register(m.discovered),
		reg.Register(m.lastBlock),
		reg.Register(m.registrySize),
		reg.Register(m.cacheLookups),
		reg.Register(m.cacheBackend),
	)
	if err != nil {
		return nil, err
	}

	return m, nil
}

// ObserveCycle records one worker cycle
func (m *Metrics) ObserveCycle(worker string, d time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	m.cycles.WithLabelValues(worker, status).Inc()
	m.cycleDuration.WithLabelValues(worker).Observe(d.Seconds())
}

// IncError increments the error counter for a worker and kind
func (m *Metrics) IncError(worker, kind string) {
	m.errors.WithLabelValues(worker, kind).Inc()
}

// AddCandidates counts candidates produced by a worker
func (m *Metrics) AddCandidates(worker string, n int) {
	m.candidates.WithLabelValues(worker).Add(float64(n))
}

// TokenDiscovered counts a new registry entry
func (m *Metrics) TokenDiscovered(method string) {
	m.discovered.WithLabelValues(method).Inc()
}

// SetLastBlock records a worker checkpoint
func (m *Metrics) SetLastBlock(worker string, block uint64) {
	m.lastBlock.WithLabelValues(worker).Set(float64(block))
}

// SetRegistrySize records the registry size
func (m *Metrics) SetRegistrySize(n int) {
	m.registrySize.Set(float64(n))
}

// CacheLookup counts a cache hit or miss
func (m *Metrics) CacheLookup(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	m.cacheLookups.WithLabelValues(result).Inc()
}

// CacheBackend marks the selected cache backend
func (m *Metrics) CacheBackend(name string) {
	m.cacheBackend.Reset()
	m.cacheBackend.WithLabelValues(name).Set(1)
}
