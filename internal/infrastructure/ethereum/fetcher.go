package ethereum

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"
)

// LogReader queries event logs
type LogReader interface {
	Logs(ctx context.Context, filter LogFilter) ([]types.Log, error)
}

// Fetcher pulls logs over block windows in node-friendly batches
type Fetcher struct {
	reader    LogReader
	batchSize int
	logger    *zap.Logger
}

// NewFetcher creates a new log fetcher
func NewFetcher(reader LogReader, batchSize int, logger *zap.Logger) *Fetcher {
	if batchSize <= 0 {
		batchSize = 500
	}
	return &Fetcher{
		reader:    reader,
		batchSize: batchSize,
		logger:    logger,
	}
}

// FetchLogs runs filter over [filter.FromBlock, filter.ToBlock] batch by batch.
// It stops at the first failing batch; logs from earlier batches are returned
// together with the error and the last block fully covered.
func (f *Fetcher) FetchLogs(ctx context.Context, filter LogFilter) ([]types.Log, uint64, error) {
	var (
		all     []types.Log
		covered uint64
	)

	for _, r := range SplitBlockRange(filter.FromBlock, filter.ToBlock, f.batchSize) {
		batch := filter
		batch.FromBlock, batch.ToBlock = r.From, r.To

		logs, err := f.reader.Logs(ctx, batch)
		if err != nil {
			return all, covered, fmt.Errorf("failed to fetch logs %d-%d: %w", r.From, r.To, err)
		}

		f.logger.Debug("Fetched logs",
			zap.Uint64("from_block", r.From),
			zap.Uint64("to_block", r.To),
			zap.Int("log_count", len(logs)),
		)

		all = append(all, logs...)
		covered = r.To
	}

	return all, covered, nil
}

// BlockRange represents a range of blocks to fetch
type BlockRange struct {
	From uint64
	To   uint64
}

// SplitBlockRange splits a range into batches
func SplitBlockRange(fromBlock, toBlock uint64, batchSize int) []BlockRange {
	if fromBlock > toBlock || batchSize <= 0 {
		return nil
	}

	var ranges []BlockRange
	for current := fromBlock; current <= toBlock; {
		end := current + uint64(batchSize) - 1
		if end > toBlock || end < current {
			end = toBlock
		}
		ranges = append(ranges, BlockRange{From: current, To: end})
		if end == toBlock {
			break
		}
		current = end + 1
	}

	return ranges
}
