package testutil

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/bimakw/token-radar/internal/domain/entities"
	"github.com/bimakw/token-radar/internal/infrastructure/discoveryapi"
	"github.com/bimakw/token-radar/internal/infrastructure/ethereum"
	"github.com/bimakw/token-radar/internal/infrastructure/telegram"
)

type MockCall struct {
	Method string
	Args   []interface{}
}

// MockChain is an in-memory chain implementing the chain reader methods
type MockChain struct {
	mu       sync.RWMutex
	height   uint64
	blocks   map[uint64]*ethereum.Block
	receipts map[common.Hash]*ethereum.Receipt
	logs     []types.Log

	// Function hooks for custom behavior
	CurrentHeightFunc      func(ctx context.Context) (uint64, error)
	BlockByNumberFunc      func(ctx context.Context, number uint64, includeTxs bool) (*ethereum.Block, error)
	TransactionReceiptFunc func(ctx context.Context, hash common.Hash) (*ethereum.Receipt, error)
	LogsFunc               func(ctx context.Context, filter ethereum.LogFilter) ([]types.Log, error)

	// Call tracking
	Calls []MockCall
}

func NewMockChain() *MockChain {
	return &MockChain{
		blocks:   make(map[uint64]*ethereum.Block),
		receipts: make(map[common.Hash]*ethereum.Receipt),
		Calls:    make([]MockCall, 0),
	}
}

func (m *MockChain) record(method string, args ...interface{}) {
	m.mu.Lock()
	m.Calls = append(m.Calls, MockCall{Method: method, Args: args})
	m.mu.Unlock()
}

func (m *MockChain) CurrentHeight(ctx context.Context) (uint64, error) {
	m.record("CurrentHeight")
	if m.CurrentHeightFunc != nil {
		return m.CurrentHeightFunc(ctx)
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.height, nil
}

func (m *MockChain) BlockByNumber(ctx context.Context, number uint64, includeTxs bool) (*ethereum.Block, error) {
	m.record("BlockByNumber", number)
	if m.BlockByNumberFunc != nil {
		return m.BlockByNumberFunc(ctx, number, includeTxs)
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	if b, ok := m.blocks[number]; ok {
		return b, nil
	}
	// empty blocks are implicit below the head
	if number <= m.height {
		return &ethereum.Block{Number: number}, nil
	}
	return nil, &ethereum.TransientError{Op: "eth_getBlockByNumber", Err: ethereum.ErrNotFound}
}

func (m *MockChain) TransactionReceipt(ctx context.Context, hash common.Hash) (*ethereum.Receipt, error) {
	m.record("TransactionReceipt", hash)
	if m.TransactionReceiptFunc != nil {
		return m.TransactionReceiptFunc(ctx, hash)
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	if r, ok := m.receipts[hash]; ok {
		return r, nil
	}
	return nil, &ethereum.TransientError{Op: "eth_getTransactionReceipt", Err: ethereum.ErrNotFound}
}

// Logs filters stored logs by block range, emitter, signature and indexed arguments
func (m *MockChain) Logs(ctx context.Context, filter ethereum.LogFilter) ([]types.Log, error) {
	m.record("Logs", filter.FromBlock, filter.ToBlock)
	if m.LogsFunc != nil {
		return m.LogsFunc(ctx, filter)
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]types.Log, 0)
	for _, l := range m.logs {
		if l.BlockNumber < filter.FromBlock || l.BlockNumber > filter.ToBlock {
			continue
		}
		if len(filter.Addresses) > 0 && !containsAddress(filter.Addresses, l.Address) {
			continue
		}
		if !topicsMatch(filter.Topics(), l.Topics) {
			continue
		}
		result = append(result, l)
	}
	return result, nil
}

func containsAddress(list []common.Address, addr common.Address) bool {
	for _, a := range list {
		if a == addr {
			return true
		}
	}
	return false
}

func topicsMatch(filter [][]common.Hash, topics []common.Hash) bool {
	for i, allowed := range filter {
		if len(allowed) == 0 {
			continue
		}
		if i >= len(topics) {
			return false
		}
		ok := false
		for _, h := range allowed {
			if topics[i] == h {
				ok = true
				break
			}
		}
		if !ok {
			return false
		}
	}
	return true
}

func (m *MockChain) SetHeight(height uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.height = height
}

func (m *MockChain) AddBlock(block *ethereum.Block) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.blocks[block.Number] = block
	if block.Number > m.height {
		m.height = block.Number
	}
}

func (m *MockChain) AddReceipt(receipt *ethereum.Receipt) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.receipts[receipt.TxHash] = receipt
}

func (m *MockChain) AddLogs(logs ...types.Log) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.logs = append(m.logs, logs...)
	for _, l := range logs {
		if l.BlockNumber > m.height {
			m.height = l.BlockNumber
		}
	}
}

// CallCount returns how many times method was called
func (m *MockChain) CallCount(method string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, c := range m.Calls {
		if c.Method == method {
			n++
		}
	}
	return n
}

func (m *MockChain) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls = make([]MockCall, 0)
}

// MockTokenInfoReader answers token metadata reads from a map. Unknown
// addresses behave like contracts that revert.
type MockTokenInfoReader struct {
	mu     sync.RWMutex
	tokens map[string]ethereum.TokenInfo

	ReadTokenInfoFunc func(ctx context.Context, token common.Address) (*ethereum.TokenInfo, error)

	Calls []MockCall
}

func NewMockTokenInfoReader() *MockTokenInfoReader {
	return &MockTokenInfoReader{
		tokens: make(map[string]ethereum.TokenInfo),
		Calls:  make([]MockCall, 0),
	}
}

func (m *MockTokenInfoReader) ReadTokenInfo(ctx context.Context, token common.Address) (*ethereum.TokenInfo, error) {
	m.mu.Lock()
	m.Calls = append(m.Calls, MockCall{Method: "ReadTokenInfo", Args: []interface{}{token}})
	m.mu.Unlock()

	if m.ReadTokenInfoFunc != nil {
		return m.ReadTokenInfoFunc(ctx, token)
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	info, ok := m.tokens[strings.ToLower(token.Hex())]
	if !ok {
		return nil, ethereum.ErrCallFailed
	}
	return &info, nil
}

func (m *MockTokenInfoReader) AddToken(address string, info ethereum.TokenInfo) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tokens[strings.ToLower(address)] = info
}

func (m *MockTokenInfoReader) CallCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.Calls)
}

// MockTokenRepository wraps hooks around the registry contract
type MockTokenRepository struct {
	mu      sync.RWMutex
	records map[string]entities.TokenRecord

	MergeFunc func(ctx context.Context, candidate entities.TokenRecord) (entities.TokenRecord, error)
	GetFunc   func(ctx context.Context, address string) (*entities.TokenRecord, error)
	ListFunc  func(ctx context.Context) ([]entities.TokenRecord, error)
	StatsFunc func(ctx context.Context) (*entities.RegistryStats, error)

	Calls []MockCall
}

func NewMockTokenRepository() *MockTokenRepository {
	return &MockTokenRepository{
		records: make(map[string]entities.TokenRecord),
		Calls:   make([]MockCall, 0),
	}
}

func (m *MockTokenRepository) Merge(ctx context.Context, candidate entities.TokenRecord) (entities.TokenRecord, error) {
	m.mu.Lock()
	m.Calls = append(m.Calls, MockCall{Method: "Merge", Args: []interface{}{candidate}})
	m.mu.Unlock()

	if m.MergeFunc != nil {
		return m.MergeFunc(ctx, candidate)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	candidate = candidate.Normalize()
	merged := candidate
	if existing, ok := m.records[candidate.Address]; ok {
		merged = entities.MergeRecords(existing, candidate)
	}
	m.records[candidate.Address] = merged
	return merged, nil
}

func (m *MockTokenRepository) Get(ctx context.Context, address string) (*entities.TokenRecord, error) {
	if m.GetFunc != nil {
		return m.GetFunc(ctx, address)
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.records[strings.ToLower(address)]
	if !ok {
		return nil, nil
	}
	return &r, nil
}

func (m *MockTokenRepository) Has(ctx context.Context, address string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.records[strings.ToLower(address)]
	return ok
}

func (m *MockTokenRepository) List(ctx context.Context) ([]entities.TokenRecord, error) {
	if m.ListFunc != nil {
		return m.ListFunc(ctx)
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]entities.TokenRecord, 0, len(m.records))
	for _, r := range m.records {
		out = append(out, r.Clone())
	}
	return out, nil
}

func (m *MockTokenRepository) Stats(ctx context.Context) (*entities.RegistryStats, error) {
	if m.StatsFunc != nil {
		return m.StatsFunc(ctx)
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	stats := &entities.RegistryStats{
		Total:    len(m.records),
		ByMethod: make(map[entities.DiscoveryMethod]int),
	}
	for _, r := range m.records {
		stats.ByMethod[r.DiscoveryMethod]++
		if r.Metadata.HasLiquidity {
			stats.WithLiquidity++
		}
	}
	return stats, nil
}

// MockPairSource serves a fixed DexScreener pair list
type MockPairSource struct {
	Pairs           []discoveryapi.Pair
	Err             error
	LatestPairsFunc func(ctx context.Context) ([]discoveryapi.Pair, error)
}

func (m *MockPairSource) LatestPairs(ctx context.Context) ([]discoveryapi.Pair, error) {
	if m.LatestPairsFunc != nil {
		return m.LatestPairsFunc(ctx)
	}
	return m.Pairs, m.Err
}

// MockTokenFeed serves fixed profile and pool lists
type MockTokenFeed struct {
	Profiles    []discoveryapi.TokenProfile
	ProfilesErr error
	Pools       []discoveryapi.Pool
	PoolsErr    error
}

func (m *MockTokenFeed) LatestProfiles(ctx context.Context) ([]discoveryapi.TokenProfile, error) {
	return m.Profiles, m.ProfilesErr
}

func (m *MockTokenFeed) NewPools(ctx context.Context) ([]discoveryapi.Pool, error) {
	return m.Pools, m.PoolsErr
}

// MockMessageSource returns queued batches of messages, one batch per poll
type MockMessageSource struct {
	mu      sync.Mutex
	batches [][]telegram.Message
	Err     error
}

func (m *MockMessageSource) Queue(messages ...telegram.Message) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.batches = append(m.batches, messages)
}

func (m *MockMessageSource) Poll(ctx context.Context) ([]telegram.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	if len(m.batches) == 0 {
		return nil, nil
	}
	next := m.batches[0]
	m.batches = m.batches[1:]
	return next, nil
}

// MockHealthChecker is a mock implementation of HealthChecker
type MockHealthChecker struct {
	mu sync.RWMutex

	Healthy bool
	Error   error
	Calls   []MockCall
}

func NewMockHealthChecker(healthy bool) *MockHealthChecker {
	var err error
	if !healthy {
		err = errors.New("health check failed")
	}
	return &MockHealthChecker{
		Healthy: healthy,
		Error:   err,
		Calls:   make([]MockCall, 0),
	}
}

func (m *MockHealthChecker) HealthCheck(ctx context.Context) error {
	m.mu.Lock()
	m.Calls = append(m.Calls, MockCall{Method: "HealthCheck", Args: nil})
	m.mu.Unlock()

	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.Error
}

func (m *MockHealthChecker) SetHealthy(healthy bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Healthy = healthy
	if healthy {
		m.Error = nil
	} else {
		m.Error = errors.New("health check failed")
	}
}
