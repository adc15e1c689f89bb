package domain

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

// TokenInfo is a wallet-centric snapshot of one token priced against a pair token.
type TokenInfo struct {
	Address     common.Address
	Name        string
	Symbol      string
	Decimals    uint8
	TotalSupply decimal.Decimal
	Balance     decimal.Decimal
	Price       decimal.Decimal // one token in units of the pair token
	Value       decimal.Decimal // Balance × Price
	ValueSymbol string          // symbol of the pair token
}

// Reserves are the constant-product pool balances of a pair.
type Reserves struct {
	Pair      common.Address
	Token0    common.Address
	Token1    common.Address
	Reserve0  decimal.Decimal
	Reserve1  decimal.Decimal
	UpdatedAt time.Time
}

// ReserveOf returns the reserve held for token.
func (r Reserves) ReserveOf(token common.Address) (decimal.Decimal, bool) {
	switch token {
	case r.Token0:
		return r.Reserve0, true
	case r.Token1:
		return r.Reserve1, true
	}
	return decimal.Zero, false
}

// SpotPrice is the marginal price of base in units of quote, ignoring fees.
func (r Reserves) SpotPrice(base common.Address) (decimal.Decimal, bool) {
	var num, den decimal.Decimal
	switch base {
	case r.Token0:
		num, den = r.Reserve1, r.Reserve0
	case r.Token1:
		num, den = r.Reserve0, r.Reserve1
	default:
		return decimal.Zero, false
	}
	if den.IsZero() {
		return decimal.Zero, false
	}
	return num.Div(den), true
}
