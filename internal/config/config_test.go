package config

import (
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("CHAIN_RPC_URL", "http://localhost:8545")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Chain.ChainID != 2741 {
		t.Errorf("ChainID = %d, want 2741", cfg.Chain.ChainID)
	}
	if cfg.Discovery.DeploymentInterval != 5*time.Second {
		t.Errorf("DeploymentInterval = %s, want 5s", cfg.Discovery.DeploymentInterval)
	}
	if cfg.Discovery.MintOverlapBlocks != 10 {
		t.Errorf("MintOverlapBlocks = %d, want 10", cfg.Discovery.MintOverlapBlocks)
	}
	if cfg.Redis.URL != "" {
		t.Errorf("Redis.URL = %q, want empty", cfg.Redis.URL)
	}
	if len(cfg.Discovery.Factories) != 0 {
		t.Errorf("Factories = %v, want none", cfg.Discovery.Factories)
	}

	refs := cfg.Discovery.ReferenceAddresses()
	wantRefs := []common.Address{
		common.HexToAddress("0x3439153EB7AF838Ad19d56E1571FBD09333C2809"),
		common.HexToAddress("0x84A71ccD554Cc1b02749b35d22F684CC8ec987e1"),
	}
	if len(refs) != len(wantRefs) {
		t.Fatalf("ReferenceAddresses() = %v, want %v", refs, wantRefs)
	}
	for i := range wantRefs {
		if refs[i] != wantRefs[i] {
			t.Errorf("ReferenceAddresses()[%d] = %s, want %s", i, refs[i].Hex(), wantRefs[i].Hex())
		}
	}
}

func TestLoad_RejectsNonPositiveInterval(t *testing.T) {
	t.Setenv("CHAIN_RPC_URL", "http://localhost:8545")
	t.Setenv("DISCOVERY_MINT_INTERVAL", "0s")

	if _, err := Load(); err == nil {
		t.Fatal("expected error for zero interval")
	}
}

func TestLoad_RejectsNonPositiveTTL(t *testing.T) {
	for _, name := range []string{
		"API_CACHE_TTL",
		"DISCOVERY_METADATA_TTL",
		"DISCOVERY_NEGATIVE_TTL",
		"DISCOVERY_SEEN_LOG_TTL",
		"TELEGRAM_SEEN_TTL",
	} {
		t.Run(name, func(t *testing.T) {
			t.Setenv("CHAIN_RPC_URL", "http://localhost:8545")
			t.Setenv(name, "0s")

			if _, err := Load(); err == nil {
				t.Fatalf("expected error for %s=0s", name)
			}
		})
	}
}

func TestParseFactories(t *testing.T) {
	tests := []struct {
		name    string
		input   []string
		want    []Factory
		wantErr bool
	}{
		{
			name:  "empty",
			input: nil,
			want:  []Factory{},
		},
		{
			name:  "named and bare",
			input: []string{"uniswap-v2=0x566d7510dEE58360a64C9827257cF6D0Dc43985E", "0x9F1C1C0E0C7c4E6B4b1aF6aC5f0b4B9c1cC3B2A1"},
			want: []Factory{
				{Name: "uniswap-v2", Address: common.HexToAddress("0x566d7510dEE58360a64C9827257cF6D0Dc43985E")},
				{Name: "factory-1", Address: common.HexToAddress("0x9F1C1C0E0C7c4E6B4b1aF6aC5f0b4B9c1cC3B2A1")},
			},
		},
		{
			name:    "invalid address",
			input:   []string{"uni=0x1234"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DiscoveryConfig{Factories: tt.input}
			got, err := cfg.ParseFactories()
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseFactories() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if len(got) != len(tt.want) {
				t.Fatalf("ParseFactories() len = %d, want %d", len(got), len(tt.want))
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("factory[%d] = %+v, want %+v", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestValidate_ReferenceTokens(t *testing.T) {
	t.Setenv("CHAIN_RPC_URL", "http://localhost:8545")
	t.Setenv("DISCOVERY_REFERENCE_TOKENS", "0x3439153EB7AF838Ad19d56E1571FBD09333C2809,not-an-address")

	if _, err := Load(); err == nil {
		t.Fatal("expected error for invalid reference token")
	}
}
