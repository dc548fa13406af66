package discoveryapi

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/bimakw/token-radar/internal/config"
)

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	return NewClient(config.DiscoveryConfig{
		DexScreenerURL:   srv.URL + "/",
		DexScreenerChain: "abstract",
		GeckoTerminalURL: srv.URL + "/api/v2",
		GeckoNetwork:     "abstract",
		HTTPTimeout:      2 * time.Second,
	}, zap.NewNop())
}

func TestLatestPairs(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/latest/dex/pairs/abstract", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"pairs":[
			{"chainId":"abstract","dexId":"uniswap","pairAddress":"0xAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA",
			 "baseToken":{"address":"0x1111111111111111111111111111111111111111","name":"Foo","symbol":"FOO"},
			 "quoteToken":{"address":"0x2222222222222222222222222222222222222222","name":"Wrapped Ether","symbol":"WETH"},
			 "liquidity":{"usd":12345.67},"pairCreatedAt":1700000000000},
			{"chainId":"abstract","dexId":"uniswap","pairAddress":"not-an-address",
			 "baseToken":{"address":"0x3333333333333333333333333333333333333333"}},
			{"chainId":"abstract","dexId":"uniswap","pairAddress":42},
			{"chainId":"ethereum","dexId":"uniswap","pairAddress":"0xBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBB",
			 "baseToken":{"address":"0x4444444444444444444444444444444444444444"}},
			{"chainId":"abstract","dexId":"moonshot","pairAddress":"0xCCCCCCCCCCCCCCCCCCCCCCCCCCCCCCCCCCCCCCCC",
			 "baseToken":{"address":"0x5555555555555555555555555555555555555555","symbol":"BAR"}}
		]}`))
	})

	c := newTestClient(t, mux)
	pairs, err := c.LatestPairs(context.Background())
	require.NoError(t, err)
	require.Len(t, pairs, 2)

	first := pairs[0]
	assert.Equal(t, "uniswap", first.Dex)
	assert.Equal(t, "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa", first.PairAddress)
	assert.Equal(t, "0x1111111111111111111111111111111111111111", first.Base.Address)
	assert.Equal(t, "FOO", first.Base.Symbol)
	assert.Equal(t, "WETH", first.Quote.Symbol)
	assert.True(t, first.LiquidityUSD.Equal(decimal.RequireFromString("12345.67")))
	assert.Equal(t, time.UnixMilli(1700000000000).UTC(), first.CreatedAt)

	second := pairs[1]
	assert.Equal(t, "moonshot", second.Dex)
	assert.True(t, second.LiquidityUSD.IsZero())
	assert.True(t, second.CreatedAt.IsZero())
}

func TestLatestPairs_NullPairs(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"schemaVersion":"1.0.0","pairs":null}`))
	}))

	pairs, err := c.LatestPairs(context.Background())
	require.NoError(t, err)
	assert.Empty(t, pairs)
}

func TestGetJSON_StatusHandling(t *testing.T) {
	tests := []struct {
		name        string
		status      int
		body        string
		unsupported bool
	}{
		{name: "not found means unsupported chain", status: http.StatusNotFound, unsupported: true},
		{name: "server error", status: http.StatusBadGateway},
		{name: "rate limited", status: http.StatusTooManyRequests},
		{name: "garbage body", status: http.StatusOK, body: "<html>"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))

			_, err := c.LatestPairs(context.Background())
			require.Error(t, err)
			assert.Equal(t, tt.unsupported, errors.Is(err, ErrUnsupportedChain))
		})
	}
}

func TestLatestProfiles(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/token-profiles/latest/v1", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[
			{"chainId":"abstract","tokenAddress":"0x1111111111111111111111111111111111111111",
			 "description":"foo token","links":[
				{"label":"Website","url":"https://foo.io"},
				{"type":"twitter","url":"https://x.com/foo"},
				{"type":"telegram","url":"https://t.me/foo"},
				{"type":"twitter","url":"https://x.com/foo_second"}
			 ]},
			{"chainId":"solana","tokenAddress":"So11111111111111111111111111111111111111112"},
			{"chainId":"abstract","tokenAddress":"bogus"},
			"not an object"
		]`))
	})

	c := newTestClient(t, mux)
	profiles, err := c.LatestProfiles(context.Background())
	require.NoError(t, err)
	require.Len(t, profiles, 1)

	p := profiles[0]
	assert.Equal(t, "0x1111111111111111111111111111111111111111", p.TokenAddress)
	assert.Equal(t, "https://foo.io", p.Socials.Website)
	assert.Equal(t, "https://x.com/foo", p.Socials.Twitter)
	assert.Equal(t, "https://t.me/foo", p.Socials.Telegram)
}

func TestNewPools(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v2/networks/abstract/new_pools", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":[
			{"id":"abstract_0xAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA","type":"pool",
			 "attributes":{"address":"0xAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA","name":"FOO / WETH",
			   "pool_created_at":"2024-11-01T10:00:00Z","reserve_in_usd":"5021.3377"},
			 "relationships":{
			   "base_token":{"data":{"id":"abstract_0x1111111111111111111111111111111111111111","type":"token"}},
			   "quote_token":{"data":{"id":"abstract_0x2222222222222222222222222222222222222222","type":"token"}},
			   "dex":{"data":{"id":"uniswap-v2-abstract","type":"dex"}}}},
			{"id":"abstract_broken","type":"pool",
			 "attributes":{"address":"0xBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBB"},
			 "relationships":{"base_token":{"data":{"id":"abstract_nothex"}}}},
			{"id":"x","attributes":"wrong shape"}
		]}`))
	})

	c := newTestClient(t, mux)
	pools, err := c.NewPools(context.Background())
	require.NoError(t, err)
	require.Len(t, pools, 1)

	p := pools[0]
	assert.Equal(t, "uniswap-v2-abstract", p.Dex)
	assert.Equal(t, "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa", p.PoolAddress)
	assert.Equal(t, "0x1111111111111111111111111111111111111111", p.BaseToken)
	assert.Equal(t, "0x2222222222222222222222222222222222222222", p.QuoteToken)
	assert.True(t, p.ReserveUSD.Equal(decimal.RequireFromString("5021.3377")))
	assert.Equal(t, time.Date(2024, 11, 1, 10, 0, 0, 0, time.UTC), p.CreatedAt)
}

func TestAddressFromGeckoID(t *testing.T) {
	tests := []struct {
		id       string
		expected string
	}{
		{"abstract_0xABCDEFabcdefABCDEFabcdefABCDEFabcdefABCD", "0xabcdefabcdefabcdefabcdefabcdefabcdefabcd"},
		{"0x1111111111111111111111111111111111111111", "0x1111111111111111111111111111111111111111"},
		{"abstract_1111111111111111111111111111111111111111", ""},
		{"abstract_", ""},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			assert.Equal(t, tt.expected, addressFromGeckoID(tt.id))
		})
	}
}
