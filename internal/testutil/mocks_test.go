package testutil

import (
	"context"
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"github.com/bimakw/token-radar/internal/domain/entities"
	"github.com/bimakw/token-radar/internal/infrastructure/ethereum"
	"github.com/bimakw/token-radar/internal/infrastructure/telegram"
)

func TestMockChain_Logs(t *testing.T) {
	chain := NewMockChain()
	chain.AddLogs(
		MintLog(TokenAddress, AliceAddress, 100, 10, 0, 0),
		MintLog(TokenAddress2, BobAddress, 100, 20, 0, 0),
		PairCreatedLog(FactoryAddress, TokenAddress, WETHAddress, PairAddress, 30, 0),
	)
	ctx := context.Background()

	height, _ := chain.CurrentHeight(ctx)
	if height != 30 {
		t.Errorf("expected height 30, got %d", height)
	}

	mints, err := chain.Logs(ctx, ethereum.MintLogFilter(0, 30))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(mints) != 2 {
		t.Errorf("expected 2 mint logs, got %d", len(mints))
	}

	window, _ := chain.Logs(ctx, ethereum.MintLogFilter(15, 25))
	if len(window) != 1 || window[0].BlockNumber != 20 {
		t.Errorf("expected the block 20 mint only, got %d logs", len(window))
	}

	pairs, _ := chain.Logs(ctx, ethereum.PairLogFilter(
		[]common.Address{common.HexToAddress(FactoryAddress)}, ethereum.PairCreatedEventSignature, 0, 30))
	if len(pairs) != 1 {
		t.Errorf("expected 1 pair log, got %d", len(pairs))
	}

	if chain.CallCount("Logs") != 3 {
		t.Errorf("expected 3 Logs calls, got %d", chain.CallCount("Logs"))
	}
}

func TestMockChain_Blocks(t *testing.T) {
	chain := NewMockChain()
	chain.AddBlock(CreationBlock(5, AliceAddress))
	ctx := context.Background()

	b, err := chain.BlockByNumber(ctx, 5, true)
	if err != nil || len(b.Transactions) != 1 {
		t.Fatalf("expected block 5 with one tx, got %v, %v", b, err)
	}
	if !b.Transactions[0].IsCreation() {
		t.Error("expected a contract creation")
	}

	empty, err := chain.BlockByNumber(ctx, 3, true)
	if err != nil || len(empty.Transactions) != 0 {
		t.Errorf("expected implicit empty block, got %v, %v", empty, err)
	}

	_, err = chain.BlockByNumber(ctx, 6, true)
	if !ethereum.IsTransient(err) {
		t.Errorf("expected transient error past the head, got %v", err)
	}

	_, err = chain.TransactionReceipt(ctx, b.Transactions[0].Hash)
	if !errors.Is(err, ethereum.ErrNotFound) {
		t.Errorf("expected not found receipt, got %v", err)
	}
}

func TestMockTokenInfoReader(t *testing.T) {
	reader := NewMockTokenInfoReader()
	reader.AddToken(TokenAddress, TestTokenInfo("FOO"))
	ctx := context.Background()

	info, err := reader.ReadTokenInfo(ctx, common.HexToAddress(TokenAddress))
	if err != nil || info.Symbol != "FOO" {
		t.Errorf("expected FOO, got %v, %v", info, err)
	}

	_, err = reader.ReadTokenInfo(ctx, common.HexToAddress(TokenAddress2))
	if !ethereum.IsNotToken(err) {
		t.Errorf("expected not-a-token error, got %v", err)
	}

	if reader.CallCount() != 2 {
		t.Errorf("expected 2 calls, got %d", reader.CallCount())
	}
}

func TestMockTokenRepository_Merge(t *testing.T) {
	repo := NewMockTokenRepository()
	ctx := context.Background()

	if _, err := repo.Merge(ctx, CreateTestRecord(RecordWithBlock(200))); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	merged, err := repo.Merge(ctx, CreateTestRecord(
		RecordWithBlock(100),
		RecordWithMethod(entities.DiscoveryMint),
		RecordWithListing("uniswap", PairAddress, 10),
	))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if merged.FirstSeenBlock != 100 || merged.DiscoveryMethod != entities.DiscoveryMint {
		t.Errorf("expected earliest observation to win, got block %d method %s", merged.FirstSeenBlock, merged.DiscoveryMethod)
	}
	if !merged.Metadata.HasLiquidity {
		t.Error("expected liquidity flag to be set")
	}

	stats, _ := repo.Stats(ctx)
	if stats.Total != 1 || stats.ByMethod[entities.DiscoveryMint] != 1 {
		t.Errorf("unexpected stats %+v", stats)
	}
}

func TestMockMessageSource(t *testing.T) {
	source := &MockMessageSource{}
	source.Queue(telegram.Message{MessageID: 1}, telegram.Message{MessageID: 2})
	source.Queue(telegram.Message{MessageID: 3})
	ctx := context.Background()

	first, _ := source.Poll(ctx)
	second, _ := source.Poll(ctx)
	third, _ := source.Poll(ctx)

	if len(first) != 2 || len(second) != 1 || len(third) != 0 {
		t.Errorf("unexpected batches %d %d %d", len(first), len(second), len(third))
	}
}
