package ethereum

import (
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
)

// Event signatures (keccak256 of the canonical event declaration)
var (
	TransferEventSignature    = crypto.Keccak256Hash([]byte("Transfer(address,address,uint256)"))
	PairCreatedEventSignature = crypto.Keccak256Hash([]byte("PairCreated(address,address,address,uint256)"))
	PoolCreatedEventSignature = crypto.Keccak256Hash([]byte("PoolCreated(address,address,uint24,int24,address)"))
)

// ZeroTopic is the indexed form of the zero address
var ZeroTopic = common.Hash{}

const factoryEventsABIJSON = `[
  {
    "anonymous": false,
    "inputs": [
      {"indexed": true, "name": "token0", "type": "address"},
      {"indexed": true, "name": "token1", "type": "address"},
      {"indexed": false, "name": "pair", "type": "address"},
      {"indexed": false, "name": "", "type": "uint256"}
    ],
    "name": "PairCreated",
    "type": "event"
  },
  {
    "anonymous": false,
    "inputs": [
      {"indexed": true, "name": "token0", "type": "address"},
      {"indexed": true, "name": "token1", "type": "address"},
      {"indexed": true, "name": "fee", "type": "uint24"},
      {"indexed": false, "name": "tickSpacing", "type": "int24"},
      {"indexed": false, "name": "pool", "type": "address"}
    ],
    "name": "PoolCreated",
    "type": "event"
  }
]`

var (
	factoryABI     abi.ABI
	factoryABIOnce sync.Once
	factoryABIErr  error
)

func factoryEventsABI() (abi.ABI, error) {
	factoryABIOnce.Do(func() {
		factoryABI, factoryABIErr = abi.JSON(strings.NewReader(factoryEventsABIJSON))
	})
	return factoryABI, factoryABIErr
}

// Pool generations a PairEvent can come from
const (
	PoolKindV2 = "v2"
	PoolKindV3 = "v3"
)

// MintEvent is a Transfer from the zero address
type MintEvent struct {
	Token       common.Address
	Recipient   common.Address
	Amount      *big.Int
	BlockNumber uint64
	TxHash      common.Hash
	LogIndex    uint
}

// PairEvent is a new pool announced by a DEX factory
type PairEvent struct {
	Factory     common.Address
	Kind        string
	Token0      common.Address
	Token1      common.Address
	Pair        common.Address
	BlockNumber uint64
	TxHash      common.Hash
	LogIndex    uint
}

// LogID identifies a log across rescans
func LogID(log types.Log) string {
	return fmt.Sprintf("%s:%d", strings.ToLower(log.TxHash.Hex()), log.Index)
}

// MintLogFilter selects Transfer logs whose sender topic is the zero address
func MintLogFilter(fromBlock, toBlock uint64) LogFilter {
	return LogFilter{
		EventSignature: TransferEventSignature,
		ArgFilter:      [][]common.Hash{{ZeroTopic}},
		FromBlock:      fromBlock,
		ToBlock:        toBlock,
	}
}

// ParseMintEvent parses a raw log into a MintEvent. ERC-721 style transfers
// (tokenId indexed, empty data) are rejected.
func ParseMintEvent(log types.Log) (*MintEvent, error) {
	if len(log.Topics) != 3 {
		return nil, fmt.Errorf("invalid number of topics: expected 3, got %d", len(log.Topics))
	}
	if log.Topics[0] != TransferEventSignature {
		return nil, fmt.Errorf("not a Transfer event")
	}
	if log.Topics[1] != ZeroTopic {
		return nil, fmt.Errorf("not a mint: sender is %s", common.BytesToAddress(log.Topics[1].Bytes()).Hex())
	}
	if len(log.Data) != 32 {
		return nil, fmt.Errorf("invalid data length: expected 32, got %d", len(log.Data))
	}

	return &MintEvent{
		Token:       log.Address,
		Recipient:   common.BytesToAddress(log.Topics[2].Bytes()),
		Amount:      new(big.Int).SetBytes(log.Data),
		BlockNumber: log.BlockNumber,
		TxHash:      log.TxHash,
		LogIndex:    log.Index,
	}, nil
}

// ParsePairEvent parses a V2 PairCreated or V3 PoolCreated log
func ParsePairEvent(log types.Log) (*PairEvent, error) {
	if len(log.Topics) == 0 {
		return nil, fmt.Errorf("log has no topics")
	}

	parsed, err := factoryEventsABI()
	if err != nil {
		return nil, fmt.Errorf("failed to parse factory abi: %w", err)
	}

	var (
		kind      string
		eventName string
		poolField string
	)
	switch log.Topics[0] {
	case PairCreatedEventSignature:
		kind, eventName, poolField = PoolKindV2, "PairCreated", "pair"
		if len(log.Topics) != 3 {
			return nil, fmt.Errorf("invalid number of topics: expected 3, got %d", len(log.Topics))
		}
	case PoolCreatedEventSignature:
		kind, eventName, poolField = PoolKindV3, "PoolCreated", "pool"
		if len(log.Topics) != 4 {
			return nil, fmt.Errorf("invalid number of topics: expected 4, got %d", len(log.Topics))
		}
	default:
		return nil, fmt.Errorf("not a pair creation event")
	}

	values := make(map[string]interface{})
	if err := parsed.UnpackIntoMap(values, eventName, log.Data); err != nil {
		return nil, fmt.Errorf("failed to unpack %s: %w", eventName, err)
	}
	pair, ok := values[poolField].(common.Address)
	if !ok {
		return nil, fmt.Errorf("%s: missing %s address", eventName, poolField)
	}

	return &PairEvent{
		Factory:     log.Address,
		Kind:        kind,
		Token0:      common.BytesToAddress(log.Topics[1].Bytes()),
		Token1:      common.BytesToAddress(log.Topics[2].Bytes()),
		Pair:        pair,
		BlockNumber: log.BlockNumber,
		TxHash:      log.TxHash,
		LogIndex:    log.Index,
	}, nil
}

// PairLogFilter selects pair creation logs from the given factories
func PairLogFilter(factories []common.Address, eventSignature common.Hash, fromBlock, toBlock uint64) LogFilter {
	return LogFilter{
		Addresses:      factories,
		EventSignature: eventSignature,
		FromBlock:      fromBlock,
		ToBlock:        toBlock,
	}
}
