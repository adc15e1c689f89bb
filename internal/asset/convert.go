package asset

import (
	"math/big"

	"github.com/shopspring/decimal"
)

// ToBaseUnits scales d by 10^decimals and truncates toward zero.
// Negative input is a caller error.
func ToBaseUnits(d decimal.Decimal, decimals uint8) (*big.Int, error) {
	if d.IsNegative() {
		return nil, ErrNegativeAmount
	}
	return d.Shift(int32(decimals)).Truncate(0).BigInt(), nil
}

// FromBaseUnits divides raw by 10^decimals without losing precision.
func FromBaseUnits(raw *big.Int, decimals uint8) (decimal.Decimal, error) {
	if raw == nil {
		return decimal.Zero, ErrNilRaw
	}
	if raw.Sign() < 0 {
		return decimal.Zero, ErrNegativeAmount
	}
	return decimal.NewFromBigInt(raw, -int32(decimals)), nil
}

// MustFromBaseUnits is FromBaseUnits for values already known to be valid, such as
// uint256 outputs decoded from a contract call.
func MustFromBaseUnits(raw *big.Int, decimals uint8) decimal.Decimal {
	d, err := FromBaseUnits(raw, decimals)
	if err != nil {
		panic(err)
	}
	return d
}
