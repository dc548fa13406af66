package workers

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/bimakw/token-radar/internal/domain/entities"
	"github.com/bimakw/token-radar/internal/domain/repositories"
	"github.com/bimakw/token-radar/internal/infrastructure/metrics"
)

// Candidate is an unverified observation of a token address
type Candidate struct {
	Record entities.TokenRecord

	// BackfillOnly keeps the identity of an already registered token so the
	// candidate only contributes metadata
	BackfillOnly bool
}

// SubmitResult summarizes one Submit call
type SubmitResult struct {
	Merged   int
	Rejected int
	// Retry lists addresses whose verification failed transiently
	Retry []string
}

// Pending returns the candidates whose verification should be retried
func (r SubmitResult) Pending(candidates []Candidate) []Candidate {
	if len(r.Retry) == 0 {
		return nil
	}
	retry := make(map[string]struct{}, len(r.Retry))
	for _, addr := range r.Retry {
		retry[addr] = struct{}{}
	}
	var out []Candidate
	for _, c := range candidates {
		if _, ok := retry[strings.ToLower(c.Record.Address)]; ok {
			out = append(out, c)
		}
	}
	return out
}

// Submitter verifies candidates and merges them into the registry
type Submitter struct {
	registry    repositories.TokenRepository
	verifier    *Verifier
	metrics     *metrics.Metrics
	concurrency int
	logger      *zap.Logger
}

// NewSubmitter creates a new submitter
func NewSubmitter(
	registry repositories.TokenRepository,
	verifier *Verifier,
	m *metrics.Metrics,
	concurrency int,
	logger *zap.Logger,
) *Submitter {
	if concurrency <= 0 {
		concurrency = 1
	}
	return &Submitter{
		registry:    registry,
		verifier:    verifier,
		metrics:     m,
		concurrency: concurrency,
		logger:      logger,
	}
}

// Submit processes candidates with bounded concurrency. Per-candidate
// failures are logged and counted; they never abort the batch.
func (s *Submitter) Submit(ctx context.Context, worker string, candidates []Candidate) SubmitResult {
	var (
		mu     sync.Mutex
		result SubmitResult
	)
	if len(candidates) == 0 {
		return result
	}
	s.metrics.AddCandidates(worker, len(candidates))

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)

	for _, c := range candidates {
		c := c
		g.Go(func() error {
			err := s.submitOne(gCtx, worker, c)

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				result.Merged++
			case errors.Is(err, ErrNotToken):
				result.Rejected++
			default:
				result.Retry = append(result.Retry, strings.ToLower(c.Record.Address))
			}
			return nil
		})
	}
	_ = g.Wait()

	return result
}

func (s *Submitter) submitOne(ctx context.Context, worker string, c Candidate) error {
	record := c.Record
	record.Address = strings.ToLower(record.Address)
	if !common.IsHexAddress(record.Address) {
		return ErrNotToken
	}

	existing, err := s.registry.Get(ctx, record.Address)
	if err != nil {
		s.metrics.IncError(worker, metrics.ErrKindInternal)
		return err
	}

	if existing != nil {
		record = reuseIdentity(record, *existing, c.BackfillOnly)
	} else {
		info, err := s.verifier.Verify(ctx, record.Address)
		if err != nil {
			if errors.Is(err, ErrNotToken) {
				s.logger.Debug("Dropping candidate",
					zap.String("worker", worker),
					zap.String("address", record.Address),
				)
				return err
			}
			s.metrics.IncError(worker, metrics.ErrKindTransient)
			s.logger.Warn("Failed to verify candidate",
				zap.String("worker", worker),
				zap.String("address", record.Address),
				zap.Error(err),
			)
			return err
		}
		// chain values win; text hints only fill what the contract leaves empty
		if info.Name != "" {
			record.Name = info.Name
		}
		if info.Symbol != "" {
			record.Symbol = info.Symbol
		}
		record.Decimals = info.Decimals
		record.TotalSupply = info.TotalSupply
		record.TotalSupplyFormatted = info.TotalSupplyFormatted
	}

	if _, err := s.registry.Merge(ctx, record); err != nil {
		s.metrics.IncError(worker, metrics.ErrKindInternal)
		s.logger.Error("Failed to merge candidate",
			zap.String("worker", worker),
			zap.String("address", record.Address),
			zap.Error(err),
		)
		return err
	}
	return nil
}

// reuseIdentity copies chain-read metadata from the registered record so
// known tokens are not read again
func reuseIdentity(candidate, existing entities.TokenRecord, backfillOnly bool) entities.TokenRecord {
	candidate.Name = existing.Name
	candidate.Symbol = existing.Symbol
	candidate.Decimals = existing.Decimals
	candidate.TotalSupply = existing.TotalSupply
	candidate.TotalSupplyFormatted = existing.TotalSupplyFormatted

	if backfillOnly {
		candidate.Creator = existing.Creator
		candidate.DiscoveryMethod = existing.DiscoveryMethod
		candidate.DiscoveryTx = existing.DiscoveryTx
		candidate.FirstSeenBlock = existing.FirstSeenBlock
		candidate.FirstSeenAt = existing.FirstSeenAt
	}
	return candidate
}
