// Package asset models on-chain assets and the exact conversion between
// human decimal amounts and integer base units.
package asset

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// NativeDecimals is the fixed precision of every EVM native coin.
const NativeDecimals uint8 = 18

// Asset is the metadata of a native coin or fungible token.
// The address is the identity; symbol and name are display data.
type Asset struct {
	address  common.Address // zero = native coin
	symbol   string
	name     string
	decimals uint8
}

// NewToken creates a token asset.
func NewToken(address common.Address, symbol, name string, decimals uint8) *Asset {
	if address == (common.Address{}) {
		panic("asset: token address cannot be zero - use NewNative")
	}
	return &Asset{
		address:  address,
		symbol:   symbol,
		name:     name,
		decimals: decimals,
	}
}

// NewNative creates the native coin asset for a chain.
func NewNative(symbol string) *Asset {
	return &Asset{
		symbol:   symbol,
		name:     symbol,
		decimals: NativeDecimals,
	}
}

// Address returns the token contract address (zero for native coins).
func (a *Asset) Address() common.Address {
	return a.address
}

// Symbol returns the ticker symbol.
func (a *Asset) Symbol() string {
	if a.symbol == "" {
		return shortHex(a.address)
	}
	return a.symbol
}

// Name returns the human-readable name, falling back to the symbol.
func (a *Asset) Name() string {
	if a.name == "" {
		return a.Symbol()
	}
	return a.name
}

// Decimals returns the number of decimal places.
func (a *Asset) Decimals() uint8 {
	return a.decimals
}

// IsNative returns true for the chain's gas coin.
func (a *Asset) IsNative() bool {
	return a.address == (common.Address{})
}

// Equals compares two Assets by address.
func (a *Asset) Equals(other *Asset) bool {
	if a == nil || other == nil {
		return a == other
	}
	return a.address == other.address
}

// String returns a human-readable representation.
func (a *Asset) String() string {
	if a.IsNative() {
		return a.Symbol()
	}
	return fmt.Sprintf("%s(%s)", a.Symbol(), shortHex(a.address))
}

func shortHex(addr common.Address) string {
	h := addr.Hex()
	return h[:6] + "..." + h[len(h)-4:]
}
