package ethereum

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

var (
	testToken   = common.HexToAddress("0x1111111111111111111111111111111111111111")
	testWETH    = common.HexToAddress("0x3439153EB7AF838Ad19d56E1571FBD09333C2809")
	testPair    = common.HexToAddress("0x2222222222222222222222222222222222222222")
	testFactory = common.HexToAddress("0x566d7510dEE58360a64C9827257cF6D0Dc43985E")
	testHolder  = common.HexToAddress("0xabcdefabcdefabcdefabcdefabcdefabcdefabcd")
	testTx      = common.HexToHash("0x1111111111111111111111111111111111111111111111111111111111111111")
)

func TestEventSignatures(t *testing.T) {
	tests := []struct {
		name     string
		got      common.Hash
		expected string
	}{
		{"Transfer", TransferEventSignature, "0xddf252ad1be2c89b69c2b068fc378daa952ba7f163c4a11628f55a4df523b3ef"},
		{"PairCreated", PairCreatedEventSignature, "0x0d3648bd0f6ba80134a33ba9275ac585d9d315f0ad8355cddefde31afa28d0e9"},
		{"PoolCreated", PoolCreatedEventSignature, "0x783cca1c0412dd0d695e784568c96da2e9c22ff989357a2e8b1d9b2b4e6b7118"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != common.HexToHash(tt.expected) {
				t.Errorf("signature mismatch: expected %s, got %s", tt.expected, tt.got.Hex())
			}
		})
	}
}

func mintLog(from common.Address) types.Log {
	return types.Log{
		Address: testToken,
		Topics: []common.Hash{
			TransferEventSignature,
			common.BytesToHash(from.Bytes()),
			common.BytesToHash(testHolder.Bytes()),
		},
		Data:        common.LeftPadBytes(big.NewInt(1_000_000).Bytes(), 32),
		BlockNumber: 12345678,
		TxHash:      testTx,
		Index:       5,
	}
}

func TestParseMintEvent_Success(t *testing.T) {
	event, err := ParseMintEvent(mintLog(common.Address{}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if event.Token != testToken {
		t.Errorf("Token mismatch: got %s", event.Token.Hex())
	}
	if event.Recipient != testHolder {
		t.Errorf("Recipient mismatch: got %s", event.Recipient.Hex())
	}
	if event.Amount.Cmp(big.NewInt(1_000_000)) != 0 {
		t.Errorf("Amount mismatch: got %s", event.Amount)
	}
	if event.BlockNumber != 12345678 || event.LogIndex != 5 {
		t.Errorf("position mismatch: block %d index %d", event.BlockNumber, event.LogIndex)
	}
}

func TestParseMintEvent_Rejects(t *testing.T) {
	regular := mintLog(testHolder)

	nft := mintLog(common.Address{})
	nft.Topics = append(nft.Topics, common.BigToHash(big.NewInt(7)))
	nft.Data = nil

	wrongSig := mintLog(common.Address{})
	wrongSig.Topics[0] = PairCreatedEventSignature

	shortData := mintLog(common.Address{})
	shortData.Data = []byte{0x01}

	tests := []struct {
		name string
		log  types.Log
	}{
		{"regular transfer", regular},
		{"erc721 mint", nft},
		{"wrong signature", wrongSig},
		{"short data", shortData},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseMintEvent(tt.log); err == nil {
				t.Error("expected error but got nil")
			}
		})
	}
}

func TestParsePairEvent_V2(t *testing.T) {
	data := append(common.LeftPadBytes(testPair.Bytes(), 32), common.LeftPadBytes(big.NewInt(42).Bytes(), 32)...)
	log := types.Log{
		Address: testFactory,
		Topics: []common.Hash{
			PairCreatedEventSignature,
			common.BytesToHash(testToken.Bytes()),
			common.BytesToHash(testWETH.Bytes()),
		},
		Data:        data,
		BlockNumber: 100,
		TxHash:      testTx,
	}

	event, err := ParsePairEvent(log)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if event.Kind != PoolKindV2 {
		t.Errorf("Kind = %s, want v2", event.Kind)
	}
	if event.Token0 != testToken || event.Token1 != testWETH {
		t.Errorf("tokens mismatch: %s %s", event.Token0.Hex(), event.Token1.Hex())
	}
	if event.Pair != testPair {
		t.Errorf("Pair = %s, want %s", event.Pair.Hex(), testPair.Hex())
	}
	if event.Factory != testFactory {
		t.Errorf("Factory = %s", event.Factory.Hex())
	}
}

func TestParsePairEvent_V3(t *testing.T) {
	tickSpacing := common.LeftPadBytes(big.NewInt(60).Bytes(), 32)
	data := append(tickSpacing, common.LeftPadBytes(testPair.Bytes(), 32)...)
	log := types.Log{
		Address: testFactory,
		Topics: []common.Hash{
			PoolCreatedEventSignature,
			common.BytesToHash(testWETH.Bytes()),
			common.BytesToHash(testToken.Bytes()),
			common.BigToHash(big.NewInt(3000)),
		},
		Data:        data,
		BlockNumber: 200,
	}

	event, err := ParsePairEvent(log)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if event.Kind != PoolKindV3 {
		t.Errorf("Kind = %s, want v3", event.Kind)
	}
	if event.Token1 != testToken || event.Pair != testPair {
		t.Errorf("unexpected event: %+v", event)
	}
}

func TestParsePairEvent_Rejects(t *testing.T) {
	tests := []struct {
		name string
		log  types.Log
	}{
		{"no topics", types.Log{}},
		{"transfer", mintLog(common.Address{})},
		{
			"truncated data",
			types.Log{
				Topics: []common.Hash{
					PairCreatedEventSignature,
					common.BytesToHash(testToken.Bytes()),
					common.BytesToHash(testWETH.Bytes()),
				},
				Data: []byte{0x01},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParsePairEvent(tt.log); err == nil {
				t.Error("expected error but got nil")
			}
		})
	}
}

func TestLogID(t *testing.T) {
	log := types.Log{TxHash: testTx, Index: 3}
	want := "0x1111111111111111111111111111111111111111111111111111111111111111:3"
	if got := LogID(log); got != want {
		t.Errorf("LogID = %s, want %s", got, want)
	}
}

func TestMintLogFilter_Topics(t *testing.T) {
	topics := MintLogFilter(10, 20).Topics()
	if len(topics) != 2 {
		t.Fatalf("expected 2 topic positions, got %d", len(topics))
	}
	if topics[0][0] != TransferEventSignature || topics[1][0] != ZeroTopic {
		t.Errorf("unexpected topics: %v", topics)
	}
}
