package workers

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/bimakw/token-radar/internal/config"
	"github.com/bimakw/token-radar/internal/domain/entities"
	"github.com/bimakw/token-radar/internal/infrastructure/discoveryapi"
	"github.com/bimakw/token-radar/internal/infrastructure/metrics"
)

// NameExternalAPI is the external API poller's worker name
const NameExternalAPI = "external_api"

// TokenFeed lists new tokens from third-party discovery services
type TokenFeed interface {
	LatestProfiles(ctx context.Context) ([]discoveryapi.TokenProfile, error)
	NewPools(ctx context.Context) ([]discoveryapi.Pool, error)
}

// ExternalAPIPoller polls token profile and new pool feeds
type ExternalAPIPoller struct {
	feed      TokenFeed
	submitter *Submitter
	refs      ReferenceSet
	metrics   *metrics.Metrics
	config    config.DiscoveryConfig
	logger    *zap.Logger

	mu          sync.Mutex
	unsupported map[string]bool
}

// NewExternalAPIPoller creates a new external API poller
func NewExternalAPIPoller(
	feed TokenFeed,
	submitter *Submitter,
	refs ReferenceSet,
	m *metrics.Metrics,
	cfg config.DiscoveryConfig,
	logger *zap.Logger,
) *ExternalAPIPoller {
	return &ExternalAPIPoller{
		feed:        feed,
		submitter:   submitter,
		refs:        refs,
		metrics:     m,
		config:      cfg,
		logger:      logger,
		unsupported: make(map[string]bool),
	}
}

func (p *ExternalAPIPoller) Name() string            { return NameExternalAPI }
func (p *ExternalAPIPoller) Interval() time.Duration { return p.config.APIInterval }

// RunCycle polls every feed. A feed that does not support the chain is
// skipped silently; other feed failures do not stop the remaining feeds.
func (p *ExternalAPIPoller) RunCycle(ctx context.Context) error {
	var (
		candidates []Candidate
		errs       []error
	)

	profiles, err := p.feed.LatestProfiles(ctx)
	if err = p.feedError("dexscreener_profiles", err); err != nil {
		errs = append(errs, err)
	}
	for _, profile := range profiles {
		candidates = append(candidates, Candidate{Record: entities.TokenRecord{
			Address:         profile.TokenAddress,
			DiscoveryMethod: entities.DiscoveryAPI,
			Metadata: entities.TokenMetadata{
				Socials: profile.Socials,
			},
		}})
	}

	pools, err := p.feed.NewPools(ctx)
	if err = p.feedError("geckoterminal_pools", err); err != nil {
		errs = append(errs, err)
	}
	for _, pool := range pools {
		if p.refs.Contains(pool.BaseToken, "") {
			continue
		}
		record := entities.TokenRecord{
			Address:         pool.BaseToken,
			DiscoveryMethod: entities.DiscoveryAPI,
			FirstSeenAt:     pool.CreatedAt,
		}
		if pool.PoolAddress != "" {
			record.Metadata.DexListings = []entities.DexListing{{
				Dex:          pool.Dex,
				PairAddress:  pool.PoolAddress,
				LiquidityUSD: pool.ReserveUSD,
			}}
			record.Metadata.HasLiquidity = true
		}
		candidates = append(candidates, Candidate{Record: record})
	}

	candidates = capCandidates(candidates, p.config.MaxCandidatesPerRun, p.logger)
	res := p.submitter.Submit(ctx, NameExternalAPI, candidates)
	p.logger.Debug("Processed external feeds",
		zap.Int("profiles", len(profiles)),
		zap.Int("pools", len(pools)),
		zap.Int("merged", res.Merged),
	)

	return errors.Join(errs...)
}

func (p *ExternalAPIPoller) feedError(feed string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, discoveryapi.ErrUnsupportedChain) {
		p.mu.Lock()
		if !p.unsupported[feed] {
			p.logger.Info("Feed does not support this chain, skipping", zap.String("feed", feed))
			p.unsupported[feed] = true
		}
		p.mu.Unlock()
		return nil
	}
	p.metrics.IncError(NameExternalAPI, metrics.ErrKindUpstream)
	p.logger.Warn("Feed request failed", zap.String("feed", feed), zap.Error(err))
	return fmt.Errorf("%s: %w", feed, err)
}
