package workers

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/bimakw/token-radar/internal/config"
	"github.com/bimakw/token-radar/internal/domain/entities"
	"github.com/bimakw/token-radar/internal/infrastructure/ethereum"
	"github.com/bimakw/token-radar/internal/infrastructure/metrics"
)

// ChainReader is the chain access the scanners need
type ChainReader interface {
	CurrentHeight(ctx context.Context) (uint64, error)
	BlockByNumber(ctx context.Context, number uint64, includeTxs bool) (*ethereum.Block, error)
	TransactionReceipt(ctx context.Context, hash common.Hash) (*ethereum.Receipt, error)
	Logs(ctx context.Context, filter ethereum.LogFilter) ([]types.Log, error)
}

// NameDeployment is the deployment scanner's worker name
const NameDeployment = "deployment"

// DeploymentScanner walks blocks in order looking for contract creations
type DeploymentScanner struct {
	chain     ChainReader
	submitter *Submitter
	metrics   *metrics.Metrics
	config    config.DiscoveryConfig
	logger    *zap.Logger

	mu            sync.Mutex
	next          uint64
	initialized   bool
	failedBlock   uint64
	blockFailures int
	pending       []Candidate
}

// NewDeploymentScanner creates a new deployment scanner
func NewDeploymentScanner(
	chain ChainReader,
	submitter *Submitter,
	m *metrics.Metrics,
	cfg config.DiscoveryConfig,
	logger *zap.Logger,
) *DeploymentScanner {
	return &DeploymentScanner{
		chain:     chain,
		submitter: submitter,
		metrics:   m,
		config:    cfg,
		logger:    logger,
	}
}

func (s *DeploymentScanner) Name() string            { return NameDeployment }
func (s *DeploymentScanner) Interval() time.Duration { return s.config.DeploymentInterval }

// NextBlock returns the next block the scanner will process
func (s *DeploymentScanner) NextBlock() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.next
}

// Pending returns the number of candidates waiting for a verification retry
func (s *DeploymentScanner) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// RunCycle retries candidates left over from a transient verification
// failure, then processes up to MaxBlocksPerCycle blocks after the checkpoint
func (s *DeploymentScanner) RunCycle(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	head, err := s.chain.CurrentHeight(ctx)
	if err != nil {
		s.metrics.IncError(NameDeployment, metrics.ErrKindTransient)
		return fmt.Errorf("failed to get current height: %w", err)
	}

	if !s.initialized {
		s.next = head
		if s.config.StartBlock > 0 {
			s.next = s.config.StartBlock
		}
		s.initialized = true
		s.logger.Info("Deployment scanner checkpoint initialized", zap.Uint64("start_block", s.next))
	}

	s.retryPending(ctx)

	if s.next > head {
		return nil
	}

	end := head
	if limit := uint64(max(1, s.config.MaxBlocksPerCycle)); end-s.next+1 > limit {
		end = s.next + limit - 1
	}

	for n := s.next; n <= end; n++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		candidates, err := s.scanBlock(ctx, n)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			s.metrics.IncError(NameDeployment, metrics.ErrKindTransient)
			if s.recordFailure(n) {
				s.logger.Error("Skipping block after repeated failures",
					zap.Uint64("block", n),
					zap.Int("attempts", s.config.MaxBlockAttempts),
					zap.Error(err),
				)
				s.advance(n)
				continue
			}
			return fmt.Errorf("failed to scan block %d: %w", n, err)
		}

		if len(candidates) > 0 {
			res := s.submitter.Submit(ctx, NameDeployment, candidates)
			s.pending = append(s.pending, res.Pending(candidates)...)
			s.logger.Debug("Processed deployments",
				zap.Uint64("block", n),
				zap.Int("candidates", len(candidates)),
				zap.Int("merged", res.Merged),
				zap.Int("rejected", res.Rejected),
				zap.Int("retry", len(res.Retry)),
			)
		}
		s.advance(n)
	}

	return nil
}

func (s *DeploymentScanner) retryPending(ctx context.Context) {
	if len(s.pending) == 0 {
		return
	}
	retrying := s.pending
	res := s.submitter.Submit(ctx, NameDeployment, retrying)
	s.pending = res.Pending(retrying)
	s.logger.Info("Retried deployment candidates",
		zap.Int("candidates", len(retrying)),
		zap.Int("merged", res.Merged),
		zap.Int("still_pending", len(s.pending)),
	)
}

func (s *DeploymentScanner) advance(block uint64) {
	s.next = block + 1
	s.failedBlock, s.blockFailures = 0, 0
	s.metrics.SetLastBlock(NameDeployment, block)
}

// recordFailure counts a failure for block and reports whether it should be skipped
func (s *DeploymentScanner) recordFailure(block uint64) bool {
	if s.failedBlock != block {
		s.failedBlock, s.blockFailures = block, 0
	}
	s.blockFailures++
	return s.config.MaxBlockAttempts > 0 && s.blockFailures >= s.config.MaxBlockAttempts
}

// scanBlock returns deployment candidates for every successful contract creation in the block
func (s *DeploymentScanner) scanBlock(ctx context.Context, number uint64) ([]Candidate, error) {
	block, err := s.chain.BlockByNumber(ctx, number, true)
	if err != nil {
		return nil, err
	}

	var creations []ethereum.Transaction
	for _, tx := range block.Transactions {
		if tx.IsCreation() {
			creations = append(creations, tx)
		}
	}
	if len(creations) == 0 {
		return nil, nil
	}

	receipts := make([]*ethereum.Receipt, len(creations))
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(max(1, s.config.WorkerCount))

	for i, tx := range creations {
		i, tx := i, tx
		g.Go(func() error {
			r, err := s.chain.TransactionReceipt(gCtx, tx.Hash)
			if err != nil {
				return fmt.Errorf("failed to get receipt %s: %w", tx.Hash.Hex(), err)
			}
			receipts[i] = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	candidates := make([]Candidate, 0, len(creations))
	for i, tx := range creations {
		r := receipts[i]
		if r == nil || !r.Succeeded() || r.ContractAddress == nil {
			continue
		}
		candidates = append(candidates, Candidate{Record: entities.TokenRecord{
			Address:         strings.ToLower(r.ContractAddress.Hex()),
			Creator:         strings.ToLower(tx.From.Hex()),
			DiscoveryMethod: entities.DiscoveryDeployment,
			DiscoveryTx:     strings.ToLower(tx.Hash.Hex()),
			FirstSeenBlock:  number,
			FirstSeenAt:     block.Timestamp,
		}})
	}
	return candidates, nil
}
