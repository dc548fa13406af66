package discoveryapi

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

// Pool is a newly created pool reported by GeckoTerminal
type Pool struct {
	Dex         string
	PoolAddress string
	Name        string
	BaseToken   string
	QuoteToken  string
	ReserveUSD  decimal.Decimal
	CreatedAt   time.Time
}

type geckoPool struct {
	ID         string `json:"id"`
	Attributes struct {
		Address       string           `json:"address"`
		Name          string           `json:"name"`
		PoolCreatedAt string           `json:"pool_created_at"`
		ReserveInUSD  *decimal.Decimal `json:"reserve_in_usd"`
	} `json:"attributes"`
	Relationships struct {
		BaseToken  geckoRelation `json:"base_token"`
		QuoteToken geckoRelation `json:"quote_token"`
		Dex        geckoRelation `json:"dex"`
	} `json:"relationships"`
}

type geckoRelation struct {
	Data struct {
		ID   string `json:"id"`
		Type string `json:"type"`
	} `json:"data"`
}

type geckoPoolsResponse struct {
	Data []json.RawMessage `json:"data"`
}

// NewPools returns the newest pools GeckoTerminal reports for the configured network
func (c *Client) NewPools(ctx context.Context) ([]Pool, error) {
	url := fmt.Sprintf("%s/networks/%s/new_pools", c.geckoURL, c.geckoNetwork)

	var resp geckoPoolsResponse
	if err := c.getJSON(ctx, url, &resp); err != nil {
		return nil, err
	}

	raw := decodeEach[geckoPool](c.logger, "geckoterminal_pools", resp.Data, nil)

	pools := make([]Pool, 0, len(raw))
	for _, gp := range raw {
		if pool, ok := c.toPool(gp); ok {
			pools = append(pools, pool)
		}
	}
	return pools, nil
}

func (c *Client) toPool(gp geckoPool) (Pool, bool) {
	base := addressFromGeckoID(gp.Relationships.BaseToken.Data.ID)
	if base == "" || !common.IsHexAddress(gp.Attributes.Address) {
		return Pool{}, false
	}

	pool := Pool{
		Dex:         gp.Relationships.Dex.Data.ID,
		PoolAddress: strings.ToLower(gp.Attributes.Address),
		Name:        gp.Attributes.Name,
		BaseToken:   base,
		QuoteToken:  addressFromGeckoID(gp.Relationships.QuoteToken.Data.ID),
	}
	if gp.Attributes.ReserveInUSD != nil {
		pool.ReserveUSD = *gp.Attributes.ReserveInUSD
	}
	if ts, err := time.Parse(time.RFC3339, gp.Attributes.PoolCreatedAt); err == nil {
		pool.CreatedAt = ts.UTC()
	}
	return pool, true
}

// addressFromGeckoID extracts the address from ids shaped like "<network>_0x..."
func addressFromGeckoID(id string) string {
	idx := strings.LastIndex(id, "_")
	addr := id[idx+1:]
	if !common.IsHexAddress(addr) || !strings.HasPrefix(strings.ToLower(addr), "0x") {
		return ""
	}
	return strings.ToLower(addr)
}
