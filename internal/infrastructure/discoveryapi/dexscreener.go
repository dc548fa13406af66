package discoveryapi

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/bimakw/token-radar/internal/domain/entities"
)

// TokenRef identifies one side of a pair
type TokenRef struct {
	Address string `json:"address"`
	Name    string `json:"name"`
	Symbol  string `json:"symbol"`
}

// Pair is a DEX pair listed by DexScreener
type Pair struct {
	ChainID      string          `json:"chainId"`
	Dex          string          `json:"dexId"`
	PairAddress  string          `json:"pairAddress"`
	Base         TokenRef        `json:"baseToken"`
	Quote        TokenRef        `json:"quoteToken"`
	LiquidityUSD decimal.Decimal `json:"-"`
	CreatedAt    time.Time       `json:"-"`

	Liquidity *struct {
		USD decimal.Decimal `json:"usd"`
	} `json:"liquidity,omitempty"`
	PairCreatedAt int64 `json:"pairCreatedAt"`
}

// TokenProfile is a DexScreener token profile with social links
type TokenProfile struct {
	ChainID      string               `json:"chainId"`
	TokenAddress string               `json:"tokenAddress"`
	Description  string               `json:"description"`
	URL          string               `json:"url"`
	Links        []profileLink        `json:"links"`
	Socials      entities.SocialLinks `json:"-"`
}

type profileLink struct {
	Type  string `json:"type"`
	Label string `json:"label"`
	URL   string `json:"url"`
}

type pairsResponse struct {
	Pairs []json.RawMessage `json:"pairs"`
}

// LatestPairs returns the newest pairs DexScreener lists for the configured chain
func (c *Client) LatestPairs(ctx context.Context) ([]Pair, error) {
	url := fmt.Sprintf("%s/latest/dex/pairs/%s", c.dexScreenerURL, c.dexScreenerChain)

	var resp pairsResponse
	if err := c.getJSON(ctx, url, &resp); err != nil {
		return nil, err
	}

	return decodeEach(c.logger, "dexscreener_pairs", resp.Pairs, c.normalizePair), nil
}

func (c *Client) normalizePair(p Pair) (Pair, bool) {
	if p.ChainID != "" && !strings.EqualFold(p.ChainID, c.dexScreenerChain) {
		return p, false
	}
	if !common.IsHexAddress(p.PairAddress) || !common.IsHexAddress(p.Base.Address) {
		c.logger.Debug("Skipping pair with invalid address",
			zap.String("pair", p.PairAddress),
			zap.String("base", p.Base.Address),
		)
		return p, false
	}

	p.PairAddress = strings.ToLower(p.PairAddress)
	p.Base.Address = strings.ToLower(p.Base.Address)
	if common.IsHexAddress(p.Quote.Address) {
		p.Quote.Address = strings.ToLower(p.Quote.Address)
	} else {
		p.Quote.Address = ""
	}
	if p.Liquidity != nil {
		p.LiquidityUSD = p.Liquidity.USD
	}
	p.CreatedAt = parseUnixMillis(p.PairCreatedAt)
	return p, true
}

// LatestProfiles returns recently published token profiles on the configured chain
func (c *Client) LatestProfiles(ctx context.Context) ([]TokenProfile, error) {
	url := c.dexScreenerURL + "/token-profiles/latest/v1"

	var items []json.RawMessage
	if err := c.getJSON(ctx, url, &items); err != nil {
		return nil, err
	}

	return decodeEach(c.logger, "dexscreener_profiles", items, c.normalizeProfile), nil
}

func (c *Client) normalizeProfile(p TokenProfile) (TokenProfile, bool) {
	if !strings.EqualFold(p.ChainID, c.dexScreenerChain) {
		return p, false
	}
	if !common.IsHexAddress(p.TokenAddress) {
		return p, false
	}
	p.TokenAddress = strings.ToLower(p.TokenAddress)

	for _, link := range p.Links {
		kind := strings.ToLower(link.Type)
		if kind == "" {
			kind = strings.ToLower(link.Label)
		}
		switch kind {
		case "twitter", "x":
			if p.Socials.Twitter == "" {
				p.Socials.Twitter = link.URL
			}
		case "telegram":
			if p.Socials.Telegram == "" {
				p.Socials.Telegram = link.URL
			}
		case "website", "web":
			if p.Socials.Website == "" {
				p.Socials.Website = link.URL
			}
		}
	}
	return p, true
}
