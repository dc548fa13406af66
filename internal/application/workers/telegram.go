package workers

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/bimakw/token-radar/internal/infrastructure/metrics"
	"github.com/bimakw/token-radar/internal/infrastructure/telegram"
)

// NameTelegram is the Telegram poller's worker name
const NameTelegram = "telegram"

// MessageSource returns channel messages posted since the last poll
type MessageSource interface {
	Poll(ctx context.Context) ([]telegram.Message, error)
}

// TextIngester turns free text into registry candidates
type TextIngester interface {
	Ingest(ctx context.Context, source, text string) (int, error)
}

// TelegramPoller feeds channel posts into text ingestion
type TelegramPoller struct {
	source   MessageSource
	ingester TextIngester
	interval time.Duration
	metrics  *metrics.Metrics
	logger   *zap.Logger
}

// NewTelegramPoller creates a new Telegram poller
func NewTelegramPoller(source MessageSource, ingester TextIngester, interval time.Duration, m *metrics.Metrics, logger *zap.Logger) *TelegramPoller {
	return &TelegramPoller{
		source:   source,
		ingester: ingester,
		interval: interval,
		metrics:  m,
		logger:   logger,
	}
}

func (p *TelegramPoller) Name() string            { return NameTelegram }
func (p *TelegramPoller) Interval() time.Duration { return p.interval }

// RunCycle polls once and ingests every message
func (p *TelegramPoller) RunCycle(ctx context.Context) error {
	messages, err := p.source.Poll(ctx)
	if err != nil {
		p.metrics.IncError(NameTelegram, metrics.ErrKindUpstream)
		return fmt.Errorf("failed to poll telegram: %w", err)
	}

	total := 0
	for _, msg := range messages {
		n, err := p.ingester.Ingest(ctx, msg.Source(), msg.Content())
		if err != nil {
			p.logger.Warn("Failed to ingest message",
				zap.String("source", msg.Source()),
				zap.Int64("message_id", msg.MessageID),
				zap.Error(err),
			)
			continue
		}
		total += n
	}

	if len(messages) > 0 {
		p.logger.Debug("Processed telegram messages",
			zap.Int("messages", len(messages)),
			zap.Int("tokens", total),
		)
	}
	return nil
}
