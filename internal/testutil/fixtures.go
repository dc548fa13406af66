package testutil

import (
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/shopspring/decimal"

	"github.com/bimakw/token-radar/internal/domain/entities"
	"github.com/bimakw/token-radar/internal/infrastructure/ethereum"
)

// Common test addresses
const (
	TokenAddress   = "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"
	TokenAddress2  = "0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb"
	WETHAddress    = "0x3439153eb7af838ad19d56e1571fbd09333c2809"
	USDCAddress    = "0x84a71ccd554cc1b02749b35d22f684cc8ec987e1"
	FactoryAddress = "0xffffffffffffffffffffffffffffffffffffffff"
	PairAddress    = "0xcccccccccccccccccccccccccccccccccccccccc"
	AliceAddress   = "0x1111111111111111111111111111111111111111"
	BobAddress     = "0x2222222222222222222222222222222222222222"
)

// CreateTestRecord creates a token record with default values
func CreateTestRecord(opts ...RecordOption) entities.TokenRecord {
	r := entities.TokenRecord{
		Address:         TokenAddress,
		Name:            "Test Token",
		Symbol:          "TEST",
		Decimals:        18,
		TotalSupply:     "1000000000000000000000000",
		Creator:         AliceAddress,
		DiscoveryMethod: entities.DiscoveryDeployment,
		FirstSeenBlock:  1000,
		FirstSeenAt:     time.Date(2024, 11, 1, 10, 30, 0, 0, time.UTC),
	}

	for _, opt := range opts {
		opt(&r)
	}

	return r
}

type RecordOption func(*entities.TokenRecord)

func RecordWithAddress(addr string) RecordOption {
	return func(r *entities.TokenRecord) {
		r.Address = addr
	}
}

func RecordWithSymbol(symbol string) RecordOption {
	return func(r *entities.TokenRecord) {
		r.Symbol = symbol
	}
}

func RecordWithMethod(method entities.DiscoveryMethod) RecordOption {
	return func(r *entities.TokenRecord) {
		r.DiscoveryMethod = method
	}
}

func RecordWithBlock(block uint64) RecordOption {
	return func(r *entities.TokenRecord) {
		r.FirstSeenBlock = block
	}
}

func RecordWithFirstSeenAt(ts time.Time) RecordOption {
	return func(r *entities.TokenRecord) {
		r.FirstSeenAt = ts
	}
}

func RecordWithCreator(addr string) RecordOption {
	return func(r *entities.TokenRecord) {
		r.Creator = addr
	}
}

func RecordWithListing(dex, pair string, liquidityUSD int64) RecordOption {
	return func(r *entities.TokenRecord) {
		r.Metadata.HasLiquidity = true
		r.Metadata.DexListings = append(r.Metadata.DexListings, entities.DexListing{
			Dex:          dex,
			PairAddress:  pair,
			LiquidityUSD: decimal.NewFromInt(liquidityUSD),
		})
	}
}

// TestTokenInfo returns metadata a verified token would report
func TestTokenInfo(symbol string) ethereum.TokenInfo {
	return ethereum.TokenInfo{
		Name:                 symbol + " Token",
		Symbol:               symbol,
		Decimals:             18,
		TotalSupply:          "1000000000000000000000000",
		TotalSupplyFormatted: "1000000",
	}
}

// HashFromIndex generates a distinct transaction hash
func HashFromIndex(index int) common.Hash {
	return common.HexToHash(fmt.Sprintf("0x%064x", index+1))
}

// MintLog builds a Transfer log from the zero address
func MintLog(token, recipient string, amount int64, block uint64, txIndex int, logIndex uint) types.Log {
	return types.Log{
		Address: common.HexToAddress(token),
		Topics: []common.Hash{
			ethereum.TransferEventSignature,
			ethereum.ZeroTopic,
			common.BytesToHash(common.HexToAddress(recipient).Bytes()),
		},
		Data:        common.LeftPadBytes(big.NewInt(amount).Bytes(), 32),
		BlockNumber: block,
		TxHash:      HashFromIndex(txIndex),
		Index:       logIndex,
	}
}

// PairCreatedLog builds a Uniswap-V2 PairCreated log
func PairCreatedLog(factory, token0, token1, pair string, block uint64, txIndex int) types.Log {
	data := append(
		common.LeftPadBytes(common.HexToAddress(pair).Bytes(), 32),
		common.LeftPadBytes(big.NewInt(1).Bytes(), 32)...,
	)
	return types.Log{
		Address: common.HexToAddress(factory),
		Topics: []common.Hash{
			ethereum.PairCreatedEventSignature,
			common.BytesToHash(common.HexToAddress(token0).Bytes()),
			common.BytesToHash(common.HexToAddress(token1).Bytes()),
		},
		Data:        data,
		BlockNumber: block,
		TxHash:      HashFromIndex(txIndex),
	}
}

// CreationBlock builds a block holding one contract creation per creator
func CreationBlock(number uint64, creators ...string) *ethereum.Block {
	b := &ethereum.Block{
		Number:    number,
		Hash:      common.BigToHash(new(big.Int).SetUint64(number)),
		Timestamp: time.Unix(1730000000+int64(number), 0).UTC(),
	}
	for i, creator := range creators {
		b.Transactions = append(b.Transactions, ethereum.Transaction{
			Hash: HashFromIndex(int(number)*100 + i),
			From: common.HexToAddress(creator),
		})
	}
	return b
}

// PointerTo returns a pointer to the given value
func PointerTo[T any](v T) *T {
	return &v
}
