package ethereum

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// Block is the subset of a block the discovery workers need
type Block struct {
	Number       uint64
	Hash         common.Hash
	Timestamp    time.Time
	Transactions []Transaction
}

// Transaction is a block transaction. To is nil for contract creations.
// HashOnly marks entries decoded from a block fetched without full
// transactions; only Hash is set on those.
type Transaction struct {
	Hash     common.Hash
	From     common.Address
	To       *common.Address
	HashOnly bool
}

// IsCreation reports whether the transaction deploys a contract. It is
// always false for hash-only entries.
func (t Transaction) IsCreation() bool {
	return !t.HashOnly && t.To == nil
}

// Receipt is the subset of a transaction receipt the workers need
type Receipt struct {
	TxHash          common.Hash
	BlockNumber     uint64
	From            common.Address
	ContractAddress *common.Address
	Status          uint64
}

// Succeeded reports whether the transaction executed successfully
func (r Receipt) Succeeded() bool {
	return r.Status == 1
}

// LogFilter selects logs by emitter, event signature and indexed arguments
type LogFilter struct {
	Addresses      []common.Address
	EventSignature common.Hash
	// ArgFilter constrains topics[1:]; a nil position matches anything
	ArgFilter [][]common.Hash
	FromBlock uint64
	ToBlock   uint64
}

// Topics builds the eth_getLogs topic filter
func (f LogFilter) Topics() [][]common.Hash {
	topics := [][]common.Hash{{f.EventSignature}}
	return append(topics, f.ArgFilter...)
}

// rpcBlock mirrors eth_getBlockByNumber. Transactions are kept raw so that
// chain-specific transaction types never fail decoding.
type rpcBlock struct {
	Number       hexutil.Uint64    `json:"number"`
	Hash         common.Hash       `json:"hash"`
	Timestamp    hexutil.Uint64    `json:"timestamp"`
	Transactions []json.RawMessage `json:"transactions"`
}

type rpcTransaction struct {
	Hash common.Hash     `json:"hash"`
	From common.Address  `json:"from"`
	To   *common.Address `json:"to"`
}

type rpcReceipt struct {
	TransactionHash common.Hash     `json:"transactionHash"`
	BlockNumber     hexutil.Uint64  `json:"blockNumber"`
	From            common.Address  `json:"from"`
	ContractAddress *common.Address `json:"contractAddress"`
	Status          hexutil.Uint64  `json:"status"`
}

func (b *rpcBlock) toBlock() (*Block, error) {
	block := &Block{
		Number:       uint64(b.Number),
		Hash:         b.Hash,
		Timestamp:    time.Unix(int64(b.Timestamp), 0).UTC(),
		Transactions: make([]Transaction, 0, len(b.Transactions)),
	}

	for i, raw := range b.Transactions {
		// hash-only form when full transactions were not requested
		if len(raw) > 0 && raw[0] == '"' {
			var hash common.Hash
			if err := json.Unmarshal(raw, &hash); err != nil {
				return nil, fmt.Errorf("failed to decode transaction hash %d: %w", i, err)
			}
			block.Transactions = append(block.Transactions, Transaction{Hash: hash, HashOnly: true})
			continue
		}

		var tx rpcTransaction
		if err := json.Unmarshal(raw, &tx); err != nil {
			return nil, fmt.Errorf("failed to decode transaction %d: %w", i, err)
		}
		block.Transactions = append(block.Transactions, Transaction{
			Hash: tx.Hash,
			From: tx.From,
			To:   tx.To,
		})
	}

	return block, nil
}

func (r *rpcReceipt) toReceipt() *Receipt {
	return &Receipt{
		TxHash:          r.TransactionHash,
		BlockNumber:     uint64(r.BlockNumber),
		From:            r.From,
		ContractAddress: r.ContractAddress,
		Status:          uint64(r.Status),
	}
}
