package workers

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"

	"github.com/bimakw/token-radar/internal/config"
	"github.com/bimakw/token-radar/internal/domain/entities"
	"github.com/bimakw/token-radar/internal/infrastructure/cache"
	"github.com/bimakw/token-radar/internal/infrastructure/ethereum"
	"github.com/bimakw/token-radar/internal/infrastructure/metrics"
)

// NameMint is the mint scanner's worker name
const NameMint = "mint"

const seenLogKeyPrefix = "mint:seen:"

// MintScanner looks for Transfer logs from the zero address over a window
// that overlaps the previous one
type MintScanner struct {
	chain     ChainReader
	fetcher   *ethereum.Fetcher
	submitter *Submitter
	cache     *cache.Cache
	metrics   *metrics.Metrics
	config    config.DiscoveryConfig
	logger    *zap.Logger

	mu          sync.Mutex
	checkpoint  uint64
	initialized bool
	// mint logs of tokens whose verification failed transiently, by log id
	pending map[string]types.Log
}

// NewMintScanner creates a new mint scanner
func NewMintScanner(
	chain ChainReader,
	submitter *Submitter,
	c *cache.Cache,
	m *metrics.Metrics,
	cfg config.DiscoveryConfig,
	logger *zap.Logger,
) *MintScanner {
	return &MintScanner{
		chain:     chain,
		fetcher:   ethereum.NewFetcher(chain, cfg.LogBatchSize, logger),
		submitter: submitter,
		pending:   make(map[string]types.Log),
		cache:     c,
		metrics:   m,
		config:    cfg,
		logger:    logger,
	}
}

func (s *MintScanner) Name() string            { return NameMint }
func (s *MintScanner) Interval() time.Duration { return s.config.MintInterval }

// Checkpoint returns the last block covered by a scan
func (s *MintScanner) Checkpoint() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.checkpoint
}

// Pending returns the number of mint logs waiting for a verification retry
func (s *MintScanner) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// RunCycle scans [checkpoint+1-overlap, head] for mints, together with logs
// left over from a transient verification failure
func (s *MintScanner) RunCycle(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	head, err := s.chain.CurrentHeight(ctx)
	if err != nil {
		s.metrics.IncError(NameMint, metrics.ErrKindTransient)
		return fmt.Errorf("failed to get current height: %w", err)
	}

	retrying := s.pending
	s.pending = make(map[string]types.Log)

	from := s.windowStart(head)
	if from > head {
		if len(retrying) > 0 {
			s.processLogs(ctx, withPending(nil, retrying))
		}
		return nil
	}

	fetched, covered, fetchErr := s.fetcher.FetchLogs(ctx, ethereum.MintLogFilter(from, head))
	logs := withPending(fetched, retrying)
	if len(logs) > 0 {
		s.processLogs(ctx, logs)
	}

	if fetchErr != nil {
		s.metrics.IncError(NameMint, metrics.ErrKindTransient)
		if covered > 0 && covered >= from {
			s.setCheckpoint(covered)
		}
		return fmt.Errorf("failed to scan mints %d-%d: %w", from, head, fetchErr)
	}

	s.setCheckpoint(head)
	return nil
}

func (s *MintScanner) setCheckpoint(block uint64) {
	s.checkpoint = block
	s.initialized = true
	s.metrics.SetLastBlock(NameMint, block)
}

func (s *MintScanner) windowStart(head uint64) uint64 {
	if !s.initialized {
		if s.config.StartBlock > 0 {
			return s.config.StartBlock
		}
		return saturatingSub(head, s.config.MintLookbackBlocks)
	}
	return saturatingSub(s.checkpoint+1, s.config.MintOverlapBlocks)
}

// withPending appends pending logs that the fetched range does not already hold
func withPending(fetched []types.Log, pending map[string]types.Log) []types.Log {
	if len(pending) == 0 {
		return fetched
	}
	have := make(map[string]struct{}, len(fetched))
	for _, l := range fetched {
		have[ethereum.LogID(l)] = struct{}{}
	}
	out := fetched
	for id, l := range pending {
		if _, ok := have[id]; !ok {
			out = append(out, l)
		}
	}
	return out
}

func saturatingSub(a, b uint64) uint64 {
	if b >= a {
		return 0
	}
	return a - b
}

func (s *MintScanner) processLogs(ctx context.Context, logs []types.Log) {
	type firstMint struct {
		event *ethereum.MintEvent
		logs  []types.Log
	}
	byToken := make(map[string]*firstMint)
	var skipped []string

	for _, l := range logs {
		id := ethereum.LogID(l)
		var seen bool
		if s.cache.Get(ctx, seenLogKeyPrefix+id, &seen) {
			continue
		}

		ev, err := ethereum.ParseMintEvent(l)
		if err != nil {
			s.logger.Debug("Skipping non-mint log", zap.String("log_id", id), zap.Error(err))
			skipped = append(skipped, id)
			continue
		}

		token := strings.ToLower(ev.Token.Hex())
		fm, ok := byToken[token]
		if !ok {
			fm = &firstMint{event: ev}
			byToken[token] = fm
		} else if mintPrecedes(ev, fm.event) {
			fm.event = ev
		}
		fm.logs = append(fm.logs, l)
	}

	for _, id := range skipped {
		s.cache.Set(ctx, seenLogKeyPrefix+id, true, s.config.SeenLogTTL)
	}
	if len(byToken) == 0 {
		return
	}

	candidates := make([]Candidate, 0, len(byToken))
	for token, fm := range byToken {
		recipient := strings.ToLower(fm.event.Recipient.Hex())
		candidates = append(candidates, Candidate{
			Record: entities.TokenRecord{
				Address:         token,
				Creator:         recipient,
				DiscoveryMethod: entities.DiscoveryMint,
				DiscoveryTx:     strings.ToLower(fm.event.TxHash.Hex()),
				FirstSeenBlock:  fm.event.BlockNumber,
				Metadata: entities.TokenMetadata{
					FirstMintRecipient: recipient,
					FirstMintBlock:     fm.event.BlockNumber,
				},
			},
			BackfillOnly: true,
		})
	}
	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].Record.Address < candidates[j].Record.Address
	})

	res := s.submitter.Submit(ctx, NameMint, candidates)

	retry := make(map[string]struct{}, len(res.Retry))
	for _, addr := range res.Retry {
		retry[addr] = struct{}{}
	}
	for token, fm := range byToken {
		_, again := retry[token]
		for _, l := range fm.logs {
			id := ethereum.LogID(l)
			if again {
				s.pending[id] = l
				continue
			}
			s.cache.Set(ctx, seenLogKeyPrefix+id, true, s.config.SeenLogTTL)
		}
	}

	s.logger.Debug("Processed mint logs",
		zap.Int("logs", len(logs)),
		zap.Int("tokens", len(byToken)),
		zap.Int("merged", res.Merged),
		zap.Int("rejected", res.Rejected),
		zap.Int("retry", len(res.Retry)),
		zap.Int("pending", len(s.pending)),
	)
}

func mintPrecedes(a, b *ethereum.MintEvent) bool {
	if a.BlockNumber != b.BlockNumber {
		return a.BlockNumber < b.BlockNumber
	}
	return a.LogIndex < b.LogIndex
}
