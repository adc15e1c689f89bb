package domain

import (
	"math/big"
	"time"

	"github.com/shopspring/decimal"
)

var gweiExp = int32(9)

// GasPrice is a node-reported legacy gas price.
type GasPrice struct {
	Wei       *big.Int
	Timestamp time.Time
}

// NewGasPrice creates a GasPrice from wei.
func NewGasPrice(wei *big.Int, at time.Time) *GasPrice {
	return &GasPrice{Wei: new(big.Int).Set(wei), Timestamp: at}
}

// Gwei returns the price in gwei, exactly.
func (g *GasPrice) Gwei() decimal.Decimal {
	return decimal.NewFromBigInt(g.Wei, -gweiExp)
}

// Fee returns gasLimit × price in native units (18 decimals).
func (g *GasPrice) Fee(gasLimit uint64) decimal.Decimal {
	total := new(big.Int).Mul(g.Wei, new(big.Int).SetUint64(gasLimit))
	return decimal.NewFromBigInt(total, -18)
}
