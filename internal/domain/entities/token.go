package entities

import (
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// DiscoveryMethod identifies the technique that first found a token
type DiscoveryMethod string

const (
	DiscoveryDeployment DiscoveryMethod = "deployment"
	DiscoveryMint       DiscoveryMethod = "mint"
	DiscoveryDex        DiscoveryMethod = "dex"
	DiscoveryAPI        DiscoveryMethod = "api"
)

// DiscoveryMethods lists every method in precedence order
var DiscoveryMethods = []DiscoveryMethod{
	DiscoveryDeployment,
	DiscoveryMint,
	DiscoveryDex,
	DiscoveryAPI,
}

func (m DiscoveryMethod) rank() int {
	for i, method := range DiscoveryMethods {
		if method == m {
			return i
		}
	}
	return len(DiscoveryMethods)
}

// Valid reports whether m is one of the known discovery methods
func (m DiscoveryMethod) Valid() bool {
	return m.rank() < len(DiscoveryMethods)
}

// ZeroAddress is the creator sentinel used when the discoverer is unknown
const ZeroAddress = "0x0000000000000000000000000000000000000000"

// DefaultDecimals is assumed when decimals() cannot be decoded
const DefaultDecimals uint8 = 18

// DexListing is a single trading pair a token was seen in
type DexListing struct {
	Dex          string          `json:"dex"`
	PairAddress  string          `json:"pair_address"`
	LiquidityUSD decimal.Decimal `json:"liquidity_usd"`
}

func (l DexListing) key() string {
	return l.Dex + "|" + l.PairAddress
}

// SocialLinks holds project links scraped from channels or listing APIs
type SocialLinks struct {
	Website  string `json:"website,omitempty"`
	Twitter  string `json:"twitter,omitempty"`
	Telegram string `json:"telegram,omitempty"`
}

// IsZero reports whether no link is set
func (s SocialLinks) IsZero() bool {
	return s.Website == "" && s.Twitter == "" && s.Telegram == ""
}

// TokenMetadata holds the monotonic part of a token record.
// Fields only ever gain information across merges.
type TokenMetadata struct {
	HasLiquidity       bool         `json:"has_liquidity"`
	DexListings        []DexListing `json:"dex_listings"`
	FirstMintRecipient string       `json:"first_mint_recipient,omitempty"`
	FirstMintBlock     uint64       `json:"first_mint_block,string,omitempty"`
	Socials            SocialLinks  `json:"socials"`
}

// MarketData is reserved for a priced data source. It is never populated today.
type MarketData struct {
	PriceUSD     *decimal.Decimal `json:"price_usd"`
	Volume24hUSD *decimal.Decimal `json:"volume_24h_usd"`
	MarketCapUSD *decimal.Decimal `json:"market_cap_usd"`
}

// TokenRecord is the canonical, merged view of one discovered token.
// A record that has not been merged yet is a candidate.
type TokenRecord struct {
	Address              string          `json:"address"`
	Name                 string          `json:"name"`
	Symbol               string          `json:"symbol"`
	Decimals             uint8           `json:"decimals"`
	TotalSupply          string          `json:"total_supply"`
	TotalSupplyFormatted string          `json:"total_supply_formatted,omitempty"`
	Creator              string          `json:"creator"`
	DiscoveryMethod      DiscoveryMethod `json:"discovery_method"`
	DiscoveryTx          string          `json:"discovery_tx,omitempty"`
	FirstSeenBlock       uint64          `json:"first_seen_block,string"`
	FirstSeenAt          time.Time       `json:"first_seen_at"`
	Metadata             TokenMetadata   `json:"metadata"`
}

// Clone returns a deep copy of the record
func (t TokenRecord) Clone() TokenRecord {
	out := t
	if t.Metadata.DexListings != nil {
		out.Metadata.DexListings = make([]DexListing, len(t.Metadata.DexListings))
		copy(out.Metadata.DexListings, t.Metadata.DexListings)
	}
	return out
}

// Normalize lower-cases addresses and puts listings in canonical order
func (t TokenRecord) Normalize() TokenRecord {
	out := t.Clone()
	out.Address = strings.ToLower(strings.TrimSpace(out.Address))
	out.Creator = strings.ToLower(strings.TrimSpace(out.Creator))
	if out.Creator == "" {
		out.Creator = ZeroAddress
	}
	out.Metadata.FirstMintRecipient = strings.ToLower(out.Metadata.FirstMintRecipient)
	if out.Metadata.FirstMintRecipient == "" {
		out.Metadata.FirstMintBlock = 0
	}
	out.DiscoveryTx = strings.ToLower(out.DiscoveryTx)
	out.Metadata.DexListings = unionListings(out.Metadata.DexListings, nil)
	if len(out.Metadata.DexListings) > 0 {
		out.Metadata.HasLiquidity = true
	}
	return out
}

// observedBefore orders records by how early they saw the token on chain.
// Known blocks beat unknown ones, lower blocks beat higher ones, then
// method precedence and stable string tie-breaks keep the order total.
func (t TokenRecord) observedBefore(o TokenRecord) bool {
	tKnown, oKnown := t.FirstSeenBlock > 0, o.FirstSeenBlock > 0
	if tKnown != oKnown {
		return tKnown
	}
	if t.FirstSeenBlock != o.FirstSeenBlock {
		return t.FirstSeenBlock < o.FirstSeenBlock
	}
	if t.DiscoveryMethod.rank() != o.DiscoveryMethod.rank() {
		return t.DiscoveryMethod.rank() < o.DiscoveryMethod.rank()
	}
	if t.DiscoveryMethod != o.DiscoveryMethod {
		return t.DiscoveryMethod < o.DiscoveryMethod
	}
	if t.DiscoveryTx != o.DiscoveryTx {
		return t.DiscoveryTx < o.DiscoveryTx
	}
	if t.Creator != o.Creator {
		return t.Creator < o.Creator
	}
	if t.Name != o.Name {
		return t.Name < o.Name
	}
	if t.Symbol != o.Symbol {
		return t.Symbol < o.Symbol
	}
	return t.supplyBefore(o)
}

// supplyBefore breaks the remaining tie on the chain-read fields. A record
// that carries a supply beats one that does not.
func (t TokenRecord) supplyBefore(o TokenRecord) bool {
	tHas, oHas := t.TotalSupply != "", o.TotalSupply != ""
	if tHas != oHas {
		return tHas
	}
	if t.TotalSupply != o.TotalSupply {
		return t.TotalSupply < o.TotalSupply
	}
	if t.Decimals != o.Decimals {
		return t.Decimals < o.Decimals
	}
	return t.TotalSupplyFormatted < o.TotalSupplyFormatted
}

// MergeRecords reconciles two observations of the same address.
//
// The result does not depend on argument order and MergeRecords(a, a) == a,
// so workers may deliver observations in any order and any number of times.
// Write-once fields come from the earliest observation; metadata is unioned.
func MergeRecords(a, b TokenRecord) TokenRecord {
	a, b = a.Normalize(), b.Normalize()

	primary, secondary := a, b
	if b.observedBefore(a) {
		primary, secondary = b, a
	}

	out := primary.Clone()
	out.Name = firstNonEmpty(primary.Name, secondary.Name)
	out.Symbol = firstNonEmpty(primary.Symbol, secondary.Symbol)
	// decimals and supply were read together and travel together
	if primary.TotalSupply == "" && secondary.TotalSupply != "" {
		out.Decimals = secondary.Decimals
		out.TotalSupply = secondary.TotalSupply
		out.TotalSupplyFormatted = secondary.TotalSupplyFormatted
	}
	out.DiscoveryTx = firstNonEmpty(primary.DiscoveryTx, secondary.DiscoveryTx)
	if out.Creator == ZeroAddress {
		out.Creator = secondary.Creator
	}
	out.FirstSeenAt = earliest(a.FirstSeenAt, b.FirstSeenAt)

	out.Metadata = mergeMetadata(a.Metadata, b.Metadata)
	return out
}

func mergeMetadata(a, b TokenMetadata) TokenMetadata {
	out := TokenMetadata{
		HasLiquidity: a.HasLiquidity || b.HasLiquidity,
		DexListings:  unionListings(a.DexListings, b.DexListings),
		Socials: SocialLinks{
			Website:  pickLink(a.Socials.Website, b.Socials.Website),
			Twitter:  pickLink(a.Socials.Twitter, b.Socials.Twitter),
			Telegram: pickLink(a.Socials.Telegram, b.Socials.Telegram),
		},
	}
	if len(out.DexListings) > 0 {
		out.HasLiquidity = true
	}

	out.FirstMintRecipient, out.FirstMintBlock = a.FirstMintRecipient, a.FirstMintBlock
	if mintBefore(b.FirstMintRecipient, b.FirstMintBlock, a.FirstMintRecipient, a.FirstMintBlock) {
		out.FirstMintRecipient, out.FirstMintBlock = b.FirstMintRecipient, b.FirstMintBlock
	}
	return out
}

// unionListings merges listings by (dex, pair). When both sides carry the same
// pair the larger liquidity figure is kept.
func unionListings(a, b []DexListing) []DexListing {
	if len(a) == 0 && len(b) == 0 {
		return []DexListing{}
	}

	byKey := make(map[string]DexListing, len(a)+len(b))
	for _, list := range [][]DexListing{a, b} {
		for _, l := range list {
			l.PairAddress = strings.ToLower(l.PairAddress)
			existing, ok := byKey[l.key()]
			if !ok || l.LiquidityUSD.GreaterThan(existing.LiquidityUSD) {
				byKey[l.key()] = l
			}
		}
	}

	out := make([]DexListing, 0, len(byKey))
	for _, l := range byKey {
		out = append(out, l)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Dex != out[j].Dex {
			return out[i].Dex < out[j].Dex
		}
		return out[i].PairAddress < out[j].PairAddress
	})
	return out
}

func mintBefore(addrA string, blockA uint64, addrB string, blockB uint64) bool {
	if addrA == "" {
		return false
	}
	if addrB == "" {
		return true
	}
	aKnown, bKnown := blockA > 0, blockB > 0
	if aKnown != bKnown {
		return aKnown
	}
	if blockA != blockB {
		return blockA < blockB
	}
	return addrA < addrB
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func pickLink(a, b string) string {
	switch {
	case a == "":
		return b
	case b == "":
		return a
	case b < a:
		return b
	default:
		return a
	}
}

func earliest(a, b time.Time) time.Time {
	switch {
	case a.IsZero():
		return b
	case b.IsZero():
		return a
	case b.Before(a):
		return b
	default:
		return a
	}
}

// RegistryStats summarizes the registry at a point in time
type RegistryStats struct {
	Total         int                     `json:"total"`
	ByMethod      map[DiscoveryMethod]int `json:"by_method"`
	WithLiquidity int                     `json:"with_liquidity"`
	GeneratedAt   time.Time               `json:"generated_at"`
}
