package workers

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/bimakw/token-radar/internal/config"
	"github.com/bimakw/token-radar/internal/domain/entities"
	"github.com/bimakw/token-radar/internal/infrastructure/cache"
	"github.com/bimakw/token-radar/internal/infrastructure/ethereum"
	"github.com/bimakw/token-radar/internal/infrastructure/memory"
	"github.com/bimakw/token-radar/internal/infrastructure/metrics"
	"github.com/bimakw/token-radar/internal/testutil"
)

type harness struct {
	chain     *testutil.MockChain
	reader    *testutil.MockTokenInfoReader
	registry  *memory.TokenRegistry
	cache     *cache.Cache
	metrics   *metrics.Metrics
	verifier  *Verifier
	submitter *Submitter
	config    config.DiscoveryConfig
}

func testDiscoveryConfig() config.DiscoveryConfig {
	return config.DiscoveryConfig{
		DeploymentInterval:  time.Second,
		MintInterval:        time.Second,
		DexInterval:         time.Second,
		DexAPIInterval:      time.Second,
		APIInterval:         time.Second,
		MaxBlocksPerCycle:   20,
		MaxBlockAttempts:    3,
		MintOverlapBlocks:   10,
		MintLookbackBlocks:  100,
		LogBatchSize:        50,
		WorkerCount:         4,
		MaxCandidatesPerRun: 50,
		MetadataTTL:         time.Hour,
		NegativeTTL:         10 * time.Minute,
		SeenLogTTL:          10 * time.Minute,
	}
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	m, err := metrics.New(prometheus.NewRegistry())
	require.NoError(t, err)

	logger := zap.NewNop()
	h := &harness{
		chain:    testutil.NewMockChain(),
		reader:   testutil.NewMockTokenInfoReader(),
		registry: memory.NewTokenRegistry(logger),
		cache:    cache.NewWithStore(cache.NewMemoryStore(), logger),
		metrics:  m,
		config:   testDiscoveryConfig(),
	}
	h.verifier = NewVerifier(h.reader, h.cache, h.config.MetadataTTL, h.config.NegativeTTL, logger)
	h.submitter = NewSubmitter(h.registry, h.verifier, m, h.config.WorkerCount, logger)
	return h
}

func (h *harness) addToken(address, symbol string) {
	h.reader.AddToken(address, testutil.TestTokenInfo(symbol))
}

func (h *harness) record(t *testing.T, address string) entities.TokenRecord {
	t.Helper()
	r, err := h.registry.Get(context.Background(), address)
	require.NoError(t, err)
	require.NotNil(t, r, "expected %s in registry", address)
	return *r
}

func (h *harness) deploy(block uint64, creator, contract string) {
	b := testutil.CreationBlock(block, creator)
	h.chain.AddBlock(b)
	addr := common.HexToAddress(contract)
	h.chain.AddReceipt(&ethereum.Receipt{
		TxHash:          b.Transactions[0].Hash,
		BlockNumber:     block,
		From:            common.HexToAddress(creator),
		ContractAddress: &addr,
		Status:          1,
	})
}

// failFirstReads makes the first n metadata reads fail transiently; later
// reads answer with symbol
func (h *harness) failFirstReads(n int32, symbol string) *int32 {
	var reads int32
	h.reader.ReadTokenInfoFunc = func(ctx context.Context, token common.Address) (*ethereum.TokenInfo, error) {
		if atomic.AddInt32(&reads, 1) <= n {
			return nil, &ethereum.TransientError{Op: "eth_call", Err: errors.New("timeout")}
		}
		info := testutil.TestTokenInfo(symbol)
		return &info, nil
	}
	return &reads
}
