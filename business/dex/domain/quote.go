// Package domain contains the core domain types for the dex context.
package domain

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// SwapQuote is a router quote taken at one instant. It is never cached.
type SwapQuote struct {
	Router       common.Address
	TokenIn      common.Address
	TokenOut     common.Address
	AmountIn     decimal.Decimal
	AmountOut    decimal.Decimal // before slippage
	MinAmountOut decimal.Decimal // after slippage
	Slippage     decimal.Decimal // percent
}

// Identity reports whether the quote is a same-token trade.
func (q SwapQuote) Identity() bool {
	return q.TokenIn == q.TokenOut
}

// ValidateSlippage rejects percentages outside [0, 100].
func ValidateSlippage(pct decimal.Decimal) error {
	if pct.IsNegative() || pct.GreaterThan(hundred) {
		return ErrSlippageOutOfRange
	}
	return nil
}

// ApplySlippage returns amountOut - amountOut*pct/100.
func ApplySlippage(amountOut, pct decimal.Decimal) (decimal.Decimal, error) {
	if err := ValidateSlippage(pct); err != nil {
		return decimal.Zero, err
	}
	return amountOut.Sub(amountOut.Mul(pct).Shift(-2)), nil
}
