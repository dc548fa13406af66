package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/bimakw/token-radar/internal/domain/entities"
	"github.com/bimakw/token-radar/internal/domain/repositories"
)

// Ensure TokenRegistry implements TokenRepository
var _ repositories.TokenRepository = (*TokenRegistry)(nil)

// MergeObserver is notified after every successful merge.
// created is true when the merge inserted a new address.
type MergeObserver func(record entities.TokenRecord, created bool)

// TokenRegistry is the process-lifetime map of discovered tokens
type TokenRegistry struct {
	mu       sync.RWMutex
	records  map[string]entities.TokenRecord
	observer MergeObserver
	now      func() time.Time
	logger   *zap.Logger
}

// NewTokenRegistry creates an empty registry
func NewTokenRegistry(logger *zap.Logger) *TokenRegistry {
	return &TokenRegistry{
		records: make(map[string]entities.TokenRecord),
		now:     time.Now,
		logger:  logger,
	}
}

// SetObserver installs a callback run after each merge, outside the lock
func (r *TokenRegistry) SetObserver(observer MergeObserver) {
	r.mu.Lock()
	r.observer = observer
	r.mu.Unlock()
}

// Merge folds a candidate into the registry
func (r *TokenRegistry) Merge(ctx context.Context, candidate entities.TokenRecord) (entities.TokenRecord, error) {
	if !common.IsHexAddress(candidate.Address) {
		return entities.TokenRecord{}, fmt.Errorf("failed to merge candidate: invalid address %q", candidate.Address)
	}
	if !candidate.DiscoveryMethod.Valid() {
		return entities.TokenRecord{}, fmt.Errorf("failed to merge candidate %s: unknown discovery method %q",
			candidate.Address, candidate.DiscoveryMethod)
	}
	if candidate.FirstSeenAt.IsZero() {
		candidate.FirstSeenAt = r.now().UTC()
	}
	candidate = candidate.Normalize()

	r.mu.Lock()
	existing, ok := r.records[candidate.Address]
	merged := candidate
	if ok {
		merged = entities.MergeRecords(existing, candidate)
	}
	r.records[candidate.Address] = merged
	observer := r.observer
	r.mu.Unlock()

	if !ok {
		r.logger.Debug("Registered new token",
			zap.String("token", merged.Address),
			zap.String("symbol", merged.Symbol),
			zap.String("method", string(merged.DiscoveryMethod)),
		)
	}
	if observer != nil {
		observer(merged.Clone(), !ok)
	}

	return merged.Clone(), nil
}

// Get retrieves a record by address, nil if unknown
func (r *TokenRegistry) Get(ctx context.Context, address string) (*entities.TokenRecord, error) {
	r.mu.RLock()
	record, ok := r.records[strings.ToLower(address)]
	r.mu.RUnlock()

	if !ok {
		return nil, nil
	}
	clone := record.Clone()
	return &clone, nil
}

// Has reports whether the address is known
func (r *TokenRegistry) Has(ctx context.Context, address string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.records[strings.ToLower(address)]
	return ok
}

// List returns a deep-copied snapshot, newest first
func (r *TokenRegistry) List(ctx context.Context) ([]entities.TokenRecord, error) {
	r.mu.RLock()
	out := make([]entities.TokenRecord, 0, len(r.records))
	for _, record := range r.records {
		out = append(out, record.Clone())
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].FirstSeenAt.Equal(out[j].FirstSeenAt) {
			return out[i].FirstSeenAt.After(out[j].FirstSeenAt)
		}
		return out[i].Address < out[j].Address
	})
	return out, nil
}

// Stats recomputes aggregate counts from the current records
func (r *TokenRegistry) Stats(ctx context.Context) (*entities.RegistryStats, error) {
	stats := &entities.RegistryStats{
		ByMethod:    make(map[entities.DiscoveryMethod]int, len(entities.DiscoveryMethods)),
		GeneratedAt: r.now().UTC(),
	}
	for _, m := range entities.DiscoveryMethods {
		stats.ByMethod[m] = 0
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	stats.Total = len(r.records)
	for _, record := range r.records {
		stats.ByMethod[record.DiscoveryMethod]++
		if record.Metadata.HasLiquidity {
			stats.WithLiquidity++
		}
	}
	return stats, nil
}

// Len returns the number of records
func (r *TokenRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.records)
}
