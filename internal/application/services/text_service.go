package services

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/bimakw/token-radar/internal/application/workers"
	"github.com/bimakw/token-radar/internal/domain/entities"
	"github.com/bimakw/token-radar/internal/infrastructure/cache"
	"github.com/bimakw/token-radar/internal/textparser"
)

// NameTextIngest labels candidates that came from free text
const NameTextIngest = "text"

const textSeenPrefix = "text:seen:"

// TextIngestService turns channel messages into api candidates
type TextIngestService struct {
	submitter *workers.Submitter
	cache     *cache.Cache
	seenTTL   time.Duration
	logger    *zap.Logger
}

// NewTextIngestService creates a new text ingestion service
func NewTextIngestService(submitter *workers.Submitter, c *cache.Cache, seenTTL time.Duration, logger *zap.Logger) *TextIngestService {
	return &TextIngestService{
		submitter: submitter,
		cache:     c,
		seenTTL:   seenTTL,
		logger:    logger,
	}
}

// Ingest parses text and submits every address not seen recently. It
// returns how many tokens were merged.
func (s *TextIngestService) Ingest(ctx context.Context, source, text string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	hints := textparser.Parse(text)
	if len(hints) == 0 {
		return 0, nil
	}

	candidates := make([]workers.Candidate, 0, len(hints))
	for _, h := range hints {
		var seen bool
		if s.cache.Get(ctx, textSeenPrefix+h.Address, &seen) && seen {
			continue
		}
		candidates = append(candidates, workers.Candidate{Record: entities.TokenRecord{
			Address:         h.Address,
			Name:            h.Name,
			Symbol:          h.Symbol,
			DiscoveryMethod: entities.DiscoveryAPI,
			Metadata: entities.TokenMetadata{
				Socials: h.Socials,
			},
		}})
	}
	if len(candidates) == 0 {
		return 0, nil
	}

	res := s.submitter.Submit(ctx, NameTextIngest, candidates)

	retry := make(map[string]struct{}, len(res.Retry))
	for _, addr := range res.Retry {
		retry[addr] = struct{}{}
	}
	for _, c := range candidates {
		if _, ok := retry[c.Record.Address]; ok {
			continue
		}
		s.cache.Set(ctx, textSeenPrefix+c.Record.Address, true, s.seenTTL)
	}

	s.logger.Debug("Ingested text",
		zap.String("source", source),
		zap.Int("addresses", len(hints)),
		zap.Int("candidates", len(candidates)),
		zap.Int("merged", res.Merged),
		zap.Int("retry", len(res.Retry)),
	)

	return res.Merged, nil
}
