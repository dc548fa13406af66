/*
 * Copyright (c) 2024 Bima Kharisma Wicaksana
 * GitHub: https://github.com/bimakw
 *
 * Licensed under MIT License with Attribution Requirement.
 * See LICENSE file for details.
 */

package ethereum

import (
	"bytes"
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/bimakw/token-radar/internal/domain/entities"
)

// ContractReader performs read-only contract calls
type ContractReader interface {
	ReadContract(ctx context.Context, address common.Address, signature string, args ...interface{}) ([]byte, error)
}

// TokenInfo is what an ERC-20 shaped contract reports about itself
type TokenInfo struct {
	Name                 string `json:"name"`
	Symbol               string `json:"symbol"`
	Decimals             uint8  `json:"decimals"`
	TotalSupply          string `json:"total_supply"`
	TotalSupplyFormatted string `json:"total_supply_formatted"`
}

// ERC-20 view functions called during verification
const (
	sigName        = "name()"
	sigSymbol      = "symbol()"
	sigDecimals    = "decimals()"
	sigTotalSupply = "totalSupply()"
)

var (
	stringArgs     abi.Arguments
	uint256Args    abi.Arguments
	abiArgsOnce    sync.Once
	abiArgsInitErr error
)

func abiArgs() (abi.Arguments, abi.Arguments, error) {
	abiArgsOnce.Do(func() {
		stringType, err := abi.NewType("string", "", nil)
		if err != nil {
			abiArgsInitErr = err
			return
		}
		uint256Type, err := abi.NewType("uint256", "", nil)
		if err != nil {
			abiArgsInitErr = err
			return
		}
		stringArgs = abi.Arguments{{Type: stringType}}
		uint256Args = abi.Arguments{{Type: uint256Type}}
	})
	return stringArgs, uint256Args, abiArgsInitErr
}

// MetadataReader checks whether an address is an ERC-20 shaped contract
type MetadataReader struct {
	reader ContractReader
	logger *zap.Logger
}

// NewMetadataReader creates a new metadata reader
func NewMetadataReader(reader ContractReader, logger *zap.Logger) *MetadataReader {
	return &MetadataReader{
		reader: reader,
		logger: logger,
	}
}

// ReadTokenInfo calls name, symbol and decimals, all of which must answer.
// totalSupply is read best effort. A not-a-token result is reported with
// an error matching IsNotToken; anything else is transient.
func (m *MetadataReader) ReadTokenInfo(ctx context.Context, token common.Address) (*TokenInfo, error) {
	name, err := m.readString(ctx, token, sigName)
	if err != nil {
		return nil, err
	}

	symbol, err := m.readString(ctx, token, sigSymbol)
	if err != nil {
		return nil, err
	}

	decimals, err := m.readDecimals(ctx, token)
	if err != nil {
		return nil, err
	}

	info := &TokenInfo{
		Name:     name,
		Symbol:   symbol,
		Decimals: decimals,
	}

	supply, err := m.readTotalSupply(ctx, token)
	if err != nil {
		m.logger.Debug("Failed to read total supply",
			zap.String("token", strings.ToLower(token.Hex())),
			zap.Error(err),
		)
		return info, nil
	}
	info.TotalSupply = supply.String()
	info.TotalSupplyFormatted = FormatUnits(supply, decimals)

	return info, nil
}

func (m *MetadataReader) readString(ctx context.Context, token common.Address, signature string) (string, error) {
	result, err := m.reader.ReadContract(ctx, token, signature)
	if err != nil {
		return "", err
	}

	value, err := decodeStringOrBytes32(result)
	if err != nil {
		return "", fmt.Errorf("%s on %s: %w: %v", signature, token.Hex(), ErrCallFailed, err)
	}
	return value, nil
}

func (m *MetadataReader) readDecimals(ctx context.Context, token common.Address) (uint8, error) {
	result, err := m.reader.ReadContract(ctx, token, sigDecimals)
	if err != nil {
		return 0, err
	}

	decimals, err := decodeDecimals(result)
	if err != nil {
		m.logger.Debug("Undecodable decimals, using default",
			zap.String("token", strings.ToLower(token.Hex())),
			zap.Uint8("default", entities.DefaultDecimals),
			zap.Error(err),
		)
		return entities.DefaultDecimals, nil
	}
	return decimals, nil
}

func (m *MetadataReader) readTotalSupply(ctx context.Context, token common.Address) (*big.Int, error) {
	result, err := m.reader.ReadContract(ctx, token, sigTotalSupply)
	if err != nil {
		return nil, err
	}

	_, uints, err := abiArgs()
	if err != nil {
		return nil, err
	}
	values, err := uints.Unpack(result)
	if err != nil {
		return nil, fmt.Errorf("failed to unpack totalSupply: %w", err)
	}
	supply, ok := values[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("unexpected totalSupply type %T", values[0])
	}
	return supply, nil
}

// decodeDecimals reads a uint8 padded to 32 bytes
func decodeDecimals(data []byte) (uint8, error) {
	if len(data) < 32 {
		return 0, fmt.Errorf("invalid decimals response length: %d", len(data))
	}
	value := new(big.Int).SetBytes(data[:32])
	if !value.IsUint64() || value.Uint64() > 255 {
		return 0, fmt.Errorf("decimals out of range: %s", value)
	}
	return uint8(value.Uint64()), nil
}

// decodeStringOrBytes32 decodes a response that could be either:
// 1. ABI-encoded string: offset (32 bytes) + length (32 bytes) + data (padded to 32 bytes)
// 2. bytes32: raw 32 bytes (e.g., MKR token)
func decodeStringOrBytes32(data []byte) (string, error) {
	if len(data) == 0 {
		return "", errors.New("empty data")
	}
	if len(data) < 32 {
		return "", fmt.Errorf("data too short: %d bytes", len(data))
	}

	if len(data) >= 64 {
		strs, _, err := abiArgs()
		if err != nil {
			return "", err
		}
		if values, err := strs.Unpack(data); err == nil {
			if s, ok := values[0].(string); ok {
				return strings.TrimRight(s, "\x00"), nil
			}
		}
	}

	result := bytes.TrimRight(data[:32], "\x00")
	if len(result) == 0 {
		return "", nil
	}
	if isPrintableASCII(result) {
		return string(result), nil
	}

	// Not text; keep the raw word so the value stays stable
	return "0x" + hex.EncodeToString(data[:32]), nil
}

// isPrintableASCII checks if all bytes are printable ASCII characters
func isPrintableASCII(data []byte) bool {
	for _, b := range data {
		if b < 32 || b > 126 {
			return false
		}
	}
	return len(data) > 0
}

// FormatUnits scales a raw integer amount by decimals
func FormatUnits(amount *big.Int, decimals uint8) string {
	return decimal.NewFromBigInt(amount, -int32(decimals)).String()
}
