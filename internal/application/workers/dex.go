package workers

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/bimakw/token-radar/internal/config"
	"github.com/bimakw/token-radar/internal/domain/entities"
	"github.com/bimakw/token-radar/internal/infrastructure/discoveryapi"
	"github.com/bimakw/token-radar/internal/infrastructure/ethereum"
	"github.com/bimakw/token-radar/internal/infrastructure/metrics"
)

// Worker names for the DEX sources
const (
	NameDexFactory = "dex_factory"
	NameDexAPI     = "dex_api"
)

// DexFactoryScanner reads pair creation events from configured factories
type DexFactoryScanner struct {
	chain     ChainReader
	fetcher   *ethereum.Fetcher
	submitter *Submitter
	verifier  *Verifier
	refs      ReferenceSet
	factories map[common.Address]string
	addresses []common.Address
	metrics   *metrics.Metrics
	config    config.DiscoveryConfig
	logger    *zap.Logger

	mu          sync.Mutex
	checkpoint  uint64
	initialized bool
	announced   bool
	// factory logs whose candidate hit a transient failure, by log id
	pending map[string]types.Log
}

// NewDexFactoryScanner creates a new factory scanner. An empty factory list
// turns the scanner into a no-op.
func NewDexFactoryScanner(
	chain ChainReader,
	submitter *Submitter,
	verifier *Verifier,
	refs ReferenceSet,
	factories []config.Factory,
	m *metrics.Metrics,
	cfg config.DiscoveryConfig,
	logger *zap.Logger,
) *DexFactoryScanner {
	s := &DexFactoryScanner{
		chain:     chain,
		fetcher:   ethereum.NewFetcher(chain, cfg.LogBatchSize, logger),
		submitter: submitter,
		verifier:  verifier,
		refs:      refs,
		factories: make(map[common.Address]string, len(factories)),
		pending:   make(map[string]types.Log),
		metrics:   m,
		config:    cfg,
		logger:    logger,
	}
	for _, f := range factories {
		if _, ok := s.factories[f.Address]; ok {
			continue
		}
		s.factories[f.Address] = f.Name
		s.addresses = append(s.addresses, f.Address)
	}
	return s
}

func (s *DexFactoryScanner) Name() string            { return NameDexFactory }
func (s *DexFactoryScanner) Interval() time.Duration { return s.config.DexInterval }

// Checkpoint returns the last block covered by a scan
func (s *DexFactoryScanner) Checkpoint() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.checkpoint
}

// Pending returns the number of factory logs waiting for a retry
func (s *DexFactoryScanner) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// RunCycle scans factory logs from the checkpoint to the head. Logs left
// over from a transient failure are processed again first.
func (s *DexFactoryScanner) RunCycle(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.addresses) == 0 {
		if !s.announced {
			s.logger.Info("No DEX factories configured, factory scanning disabled")
			s.announced = true
		}
		return nil
	}

	head, err := s.chain.CurrentHeight(ctx)
	if err != nil {
		s.metrics.IncError(NameDexFactory, metrics.ErrKindTransient)
		return fmt.Errorf("failed to get current height: %w", err)
	}

	var logs []types.Log
	for _, l := range s.pending {
		logs = append(logs, l)
	}
	s.pending = make(map[string]types.Log)

	from := s.checkpoint + 1
	if !s.initialized {
		from = saturatingSub(head, s.config.MintLookbackBlocks)
		if s.config.StartBlock > 0 {
			from = s.config.StartBlock
		}
	}
	if from > head {
		if len(logs) > 0 {
			s.processLogs(ctx, logs)
		}
		return nil
	}

	var (
		errs    []error
		covered = head
	)
	for _, sig := range []common.Hash{ethereum.PairCreatedEventSignature, ethereum.PoolCreatedEventSignature} {
		batch, cov, err := s.fetcher.FetchLogs(ctx, ethereum.PairLogFilter(s.addresses, sig, from, head))
		logs = append(logs, batch...)
		if err != nil {
			errs = append(errs, err)
			if cov < covered {
				covered = cov
			}
		}
	}

	if len(logs) > 0 {
		s.processLogs(ctx, logs)
	}

	if len(errs) > 0 {
		s.metrics.IncError(NameDexFactory, metrics.ErrKindTransient)
		if covered > 0 && covered >= from {
			s.setCheckpoint(covered)
		}
		return fmt.Errorf("failed to scan factories %d-%d: %w", from, head, errors.Join(errs...))
	}

	s.setCheckpoint(head)
	return nil
}

func (s *DexFactoryScanner) setCheckpoint(block uint64) {
	s.checkpoint = block
	s.initialized = true
	s.metrics.SetLastBlock(NameDexFactory, block)
}

func (s *DexFactoryScanner) processLogs(ctx context.Context, logs []types.Log) {
	candidates := make([]Candidate, 0, len(logs))
	sources := make([]types.Log, 0, len(logs))
	for _, l := range logs {
		ev, err := ethereum.ParsePairEvent(l)
		if err != nil {
			s.logger.Debug("Skipping factory log", zap.String("log_id", ethereum.LogID(l)), zap.Error(err))
			continue
		}

		token0 := strings.ToLower(ev.Token0.Hex())
		token1 := strings.ToLower(ev.Token1.Hex())
		isRef0, err0 := s.isReference(ctx, token0)
		isRef1, err1 := s.isReference(ctx, token1)
		if err := errors.Join(err0, err1); err != nil {
			s.logger.Warn("Deferring pair until its tokens can be read",
				zap.String("pair", ev.Pair.Hex()),
				zap.Error(err),
			)
			s.pending[ethereum.LogID(l)] = l
			continue
		}

		newToken, ok := PickNewSide(token0, token1, isRef0, isRef1)
		if !ok {
			s.logger.Debug("Skipping pair of reference assets",
				zap.String("pair", ev.Pair.Hex()),
				zap.String("token0", token0),
				zap.String("token1", token1),
			)
			continue
		}

		dex := s.factories[ev.Factory]
		if dex == "" {
			dex = strings.ToLower(ev.Factory.Hex())
		}

		candidates = append(candidates, Candidate{Record: entities.TokenRecord{
			Address:         newToken,
			DiscoveryMethod: entities.DiscoveryDex,
			DiscoveryTx:     strings.ToLower(ev.TxHash.Hex()),
			FirstSeenBlock:  ev.BlockNumber,
			Metadata: entities.TokenMetadata{
				HasLiquidity: true,
				DexListings: []entities.DexListing{{
					Dex:          dex,
					PairAddress:  strings.ToLower(ev.Pair.Hex()),
					LiquidityUSD: decimal.Zero,
				}},
			},
		}})
		sources = append(sources, l)
	}

	res := s.submitter.Submit(ctx, NameDexFactory, candidates)
	retry := make(map[string]struct{}, len(res.Retry))
	for _, addr := range res.Retry {
		retry[addr] = struct{}{}
	}
	for i, c := range candidates {
		if _, ok := retry[c.Record.Address]; ok {
			s.pending[ethereum.LogID(sources[i])] = sources[i]
		}
	}

	s.logger.Debug("Processed factory logs",
		zap.Int("logs", len(logs)),
		zap.Int("candidates", len(candidates)),
		zap.Int("merged", res.Merged),
		zap.Int("pending", len(s.pending)),
	)
}

// isReference checks configured addresses first, then the on-chain symbol.
// Only a transient read failure is returned as an error.
func (s *DexFactoryScanner) isReference(ctx context.Context, token string) (bool, error) {
	if s.refs.Contains(token, "") {
		return true, nil
	}
	info, err := s.verifier.Verify(ctx, token)
	if errors.Is(err, ErrNotToken) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return s.refs.Contains("", info.Symbol), nil
}

// PairSource lists recently created pairs from a third-party API
type PairSource interface {
	LatestPairs(ctx context.Context) ([]discoveryapi.Pair, error)
}

// DexPairPoller turns pairs listed by a third-party API into dex candidates
type DexPairPoller struct {
	source    PairSource
	submitter *Submitter
	refs      ReferenceSet
	metrics   *metrics.Metrics
	config    config.DiscoveryConfig
	logger    *zap.Logger

	mu          sync.Mutex
	unsupported bool
}

// NewDexPairPoller creates a new pair API poller
func NewDexPairPoller(
	source PairSource,
	submitter *Submitter,
	refs ReferenceSet,
	m *metrics.Metrics,
	cfg config.DiscoveryConfig,
	logger *zap.Logger,
) *DexPairPoller {
	return &DexPairPoller{
		source:    source,
		submitter: submitter,
		refs:      refs,
		metrics:   m,
		config:    cfg,
		logger:    logger,
	}
}

func (p *DexPairPoller) Name() string            { return NameDexAPI }
func (p *DexPairPoller) Interval() time.Duration { return p.config.DexAPIInterval }

// RunCycle fetches the latest pairs and submits every non-reference side
func (p *DexPairPoller) RunCycle(ctx context.Context) error {
	pairs, err := p.source.LatestPairs(ctx)
	if err != nil {
		if errors.Is(err, discoveryapi.ErrUnsupportedChain) {
			p.noteUnsupported()
			return nil
		}
		p.metrics.IncError(NameDexAPI, metrics.ErrKindUpstream)
		return fmt.Errorf("failed to fetch pairs: %w", err)
	}

	var candidates []Candidate
	for _, pair := range pairs {
		for _, side := range []discoveryapi.TokenRef{pair.Base, pair.Quote} {
			if side.Address == "" || p.refs.Contains(side.Address, side.Symbol) {
				continue
			}
			candidates = append(candidates, Candidate{Record: entities.TokenRecord{
				Address:         side.Address,
				DiscoveryMethod: entities.DiscoveryDex,
				FirstSeenAt:     pair.CreatedAt,
				Metadata: entities.TokenMetadata{
					HasLiquidity: true,
					DexListings: []entities.DexListing{{
						Dex:          pair.Dex,
						PairAddress:  pair.PairAddress,
						LiquidityUSD: pair.LiquidityUSD,
					}},
				},
			}})
		}
	}

	candidates = capCandidates(candidates, p.config.MaxCandidatesPerRun, p.logger)
	res := p.submitter.Submit(ctx, NameDexAPI, candidates)
	p.logger.Debug("Processed listed pairs",
		zap.Int("pairs", len(pairs)),
		zap.Int("candidates", len(candidates)),
		zap.Int("merged", res.Merged),
	)
	return nil
}

func (p *DexPairPoller) noteUnsupported() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.unsupported {
		p.logger.Info("Pair API does not list this chain, skipping")
		p.unsupported = true
	}
}

func capCandidates(candidates []Candidate, limit int, logger *zap.Logger) []Candidate {
	if limit <= 0 || len(candidates) <= limit {
		return candidates
	}
	logger.Debug("Truncating candidate batch",
		zap.Int("candidates", len(candidates)),
		zap.Int("limit", limit),
	)
	return candidates[:limit]
}
