package workers

import (
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// referenceSymbols are quote assets that are never the new side of a pair
var referenceSymbols = map[string]struct{}{
	"WETH": {},
	"ETH":  {},
	"USDC": {},
	"USDT": {},
	"DAI":  {},
	"WBTC": {},
}

// ReferenceSet recognizes well-known quote assets by address or symbol
type ReferenceSet struct {
	addresses map[string]struct{}
}

// NewReferenceSet creates a reference set from configured addresses
func NewReferenceSet(addresses []common.Address) ReferenceSet {
	set := ReferenceSet{addresses: make(map[string]struct{}, len(addresses))}
	for _, a := range addresses {
		set.addresses[strings.ToLower(a.Hex())] = struct{}{}
	}
	return set
}

// Contains reports whether the token is a reference asset. Either argument may be empty.
func (r ReferenceSet) Contains(address, symbol string) bool {
	if address != "" {
		if _, ok := r.addresses[strings.ToLower(address)]; ok {
			return true
		}
	}
	if symbol != "" {
		if _, ok := referenceSymbols[strings.ToUpper(strings.TrimSpace(symbol))]; ok {
			return true
		}
	}
	return false
}

// PickNewSide chooses the new token of a pair. Reference assets are never
// new; when neither side is a reference asset token0 is assumed new. ok is
// false when both sides are reference assets.
func PickNewSide(token0, token1 string, isRef0, isRef1 bool) (string, bool) {
	switch {
	case isRef0 && isRef1:
		return "", false
	case isRef0:
		return token1, true
	default:
		return token0, true
	}
}
