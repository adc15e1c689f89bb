// Package contract binds the AMM contract kinds to addresses and memoizes the bindings.
package contract

import "fmt"

// Kind tags the logical contract type behind an address.
type Kind uint8

const (
	FungibleToken Kind = iota + 1
	Router
	Factory
	Pair
	WrappedGas
)

// Kinds lists every supported kind.
var Kinds = []Kind{FungibleToken, Router, Factory, Pair, WrappedGas}

func (k Kind) String() string {
	switch k {
	case FungibleToken:
		return "FungibleToken"
	case Router:
		return "Router"
	case Factory:
		return "Factory"
	case Pair:
		return "Pair"
	case WrappedGas:
		return "WrappedGas"
	default:
		return fmt.Sprintf("Kind(%d)", uint8(k))
	}
}
