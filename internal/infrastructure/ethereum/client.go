package ethereum

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
	"go.uber.org/zap"

	"github.com/bimakw/token-radar/internal/config"
)

// Client is the single point of contact with the chain RPC endpoint.
// Every method is a read-only query. Failures are not retried here;
// callers retry on their next poll cycle.
type Client struct {
	rpc     *rpc.Client
	client  *ethclient.Client
	config  config.ChainConfig
	logger  *zap.Logger
	chainID *big.Int
}

// NewClient dials the node and checks it serves the configured chain
func NewClient(ctx context.Context, cfg config.ChainConfig, logger *zap.Logger) (*Client, error) {
	dialCtx, cancel := context.WithTimeout(ctx, cfg.RequestTimeout)
	defer cancel()

	rpcClient, err := rpc.DialContext(dialCtx, cfg.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to chain node: %w", err)
	}
	client := ethclient.NewClient(rpcClient)

	chainID, err := client.ChainID(dialCtx)
	if err != nil {
		rpcClient.Close()
		return nil, fmt.Errorf("failed to get chain ID: %w", err)
	}

	if chainID.Int64() != cfg.ChainID {
		rpcClient.Close()
		return nil, fmt.Errorf("chain ID mismatch: expected %d, got %d", cfg.ChainID, chainID.Int64())
	}

	logger.Info("Connected to chain node",
		zap.String("rpc_url", cfg.RPCURL),
		zap.Int64("chain_id", chainID.Int64()),
	)

	return &Client{
		rpc:     rpcClient,
		client:  client,
		config:  cfg,
		logger:  logger,
		chainID: chainID,
	}, nil
}

// Close closes the node connection
func (c *Client) Close() {
	c.rpc.Close()
}

// ChainID returns the chain ID
func (c *Client) ChainID() *big.Int {
	return c.chainID
}

func (c *Client) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.config.RequestTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, c.config.RequestTimeout)
}

// CurrentHeight returns the latest block number
func (c *Client) CurrentHeight(ctx context.Context) (uint64, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	height, err := c.client.BlockNumber(ctx)
	if err != nil {
		return 0, &TransientError{Op: "eth_blockNumber", Err: err}
	}
	return height, nil
}

// BlockByNumber returns a block, optionally with its transactions.
// The raw RPC form is decoded so unknown transaction types are tolerated.
func (c *Client) BlockByNumber(ctx context.Context, number uint64, includeTxs bool) (*Block, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	var raw json.RawMessage
	if err := c.rpc.CallContext(ctx, &raw, "eth_getBlockByNumber", hexutil.EncodeUint64(number), includeTxs); err != nil {
		return nil, &TransientError{Op: "eth_getBlockByNumber", Err: err}
	}
	if len(raw) == 0 || string(raw) == "null" {
		return nil, &TransientError{Op: "eth_getBlockByNumber", Err: fmt.Errorf("block %d: %w", number, ErrNotFound)}
	}

	var body rpcBlock
	if err := json.Unmarshal(raw, &body); err != nil {
		return nil, &TransientError{Op: "eth_getBlockByNumber", Err: fmt.Errorf("failed to decode block %d: %w", number, err)}
	}
	return body.toBlock()
}

// TransactionReceipt returns the receipt of a mined transaction
func (c *Client) TransactionReceipt(ctx context.Context, hash common.Hash) (*Receipt, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	var body *rpcReceipt
	if err := c.rpc.CallContext(ctx, &body, "eth_getTransactionReceipt", hash); err != nil {
		return nil, &TransientError{Op: "eth_getTransactionReceipt", Err: err}
	}
	if body == nil {
		return nil, &TransientError{Op: "eth_getTransactionReceipt", Err: fmt.Errorf("receipt %s: %w", hash.Hex(), ErrNotFound)}
	}
	return body.toReceipt(), nil
}

// Logs retrieves logs matching the filter
func (c *Client) Logs(ctx context.Context, filter LogFilter) ([]types.Log, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	query := ethereum.FilterQuery{
		FromBlock: new(big.Int).SetUint64(filter.FromBlock),
		ToBlock:   new(big.Int).SetUint64(filter.ToBlock),
		Addresses: filter.Addresses,
		Topics:    filter.Topics(),
	}

	logs, err := c.client.FilterLogs(ctx, query)
	if err != nil {
		return nil, &TransientError{Op: "eth_getLogs", Err: err}
	}
	return logs, nil
}

// ReadContract performs an eth_call of the function described by signature,
// e.g. "balanceOf(address)", and returns the raw return data.
func (c *Client) ReadContract(ctx context.Context, address common.Address, signature string, args ...interface{}) ([]byte, error) {
	data, err := EncodeCall(signature, args...)
	if err != nil {
		return nil, err
	}

	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	result, err := c.client.CallContract(ctx, ethereum.CallMsg{To: &address, Data: data}, nil)
	if err != nil {
		return nil, classifyCallError(signature, err)
	}
	if len(result) > 0 {
		return result, nil
	}

	// Calls to code-less addresses succeed with empty output
	code, err := c.client.CodeAt(ctx, address, nil)
	if err != nil {
		return nil, &TransientError{Op: "eth_getCode", Err: err}
	}
	if len(code) == 0 {
		return nil, fmt.Errorf("%s on %s: %w", signature, address.Hex(), ErrNotContract)
	}
	return nil, fmt.Errorf("%s on %s returned no data: %w", signature, address.Hex(), ErrCallFailed)
}

// HealthCheck checks the node answers
func (c *Client) HealthCheck(ctx context.Context) error {
	_, err := c.CurrentHeight(ctx)
	return err
}

// EncodeCall builds calldata for a canonical function signature: the
// keccak256 selector followed by the ABI-encoded arguments.
func EncodeCall(signature string, args ...interface{}) ([]byte, error) {
	signature = strings.ReplaceAll(signature, " ", "")
	open, closing := strings.Index(signature, "("), strings.LastIndex(signature, ")")
	if open <= 0 || closing != len(signature)-1 {
		return nil, fmt.Errorf("invalid function signature %q", signature)
	}

	selector := crypto.Keccak256([]byte(signature))[:4]

	params := signature[open+1 : closing]
	if params == "" {
		if len(args) != 0 {
			return nil, fmt.Errorf("%s takes no arguments, got %d", signature, len(args))
		}
		return selector, nil
	}

	typeNames := strings.Split(params, ",")
	if len(typeNames) != len(args) {
		return nil, fmt.Errorf("%s takes %d arguments, got %d", signature, len(typeNames), len(args))
	}

	arguments := make(abi.Arguments, len(typeNames))
	for i, name := range typeNames {
		typ, err := abi.NewType(name, "", nil)
		if err != nil {
			return nil, fmt.Errorf("failed to parse argument type %q: %w", name, err)
		}
		arguments[i] = abi.Argument{Type: typ}
	}

	packed, err := arguments.Pack(args...)
	if err != nil {
		return nil, fmt.Errorf("failed to pack arguments for %s: %w", signature, err)
	}
	return append(selector, packed...), nil
}
