package domain

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

// Direction is how a transfer relates to the watched wallet.
type Direction int

const (
	DirectionIn Direction = iota
	DirectionOut
	DirectionSelf
)

func (d Direction) String() string {
	switch d {
	case DirectionIn:
		return "in"
	case DirectionOut:
		return "out"
	case DirectionSelf:
		return "self"
	default:
		return "unknown"
	}
}

// TransferEvent is a decoded ERC20 Transfer touching the wallet.
type TransferEvent struct {
	Token       common.Address
	Symbol      string
	From        common.Address
	To          common.Address
	Amount      decimal.Decimal
	Raw         *big.Int
	BlockNumber uint64
	TxHash      common.Hash
	LogIndex    uint
	Direction   Direction
}

// DirectionFor classifies a transfer for wallet. ok is false when wallet is not a party.
func DirectionFor(wallet, from, to common.Address) (Direction, bool) {
	switch {
	case from == wallet && to == wallet:
		return DirectionSelf, true
	case to == wallet:
		return DirectionIn, true
	case from == wallet:
		return DirectionOut, true
	}
	return 0, false
}
