package domain

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

var one = decimal.NewFromInt(1)

// Settings are the session-wide defaults applied when a call omits a value.
type Settings struct {
	Router                common.Address
	DeadlineMinutes       int
	SlippagePercent       decimal.Decimal
	AutoApproveMultiplier decimal.Decimal
}

// DefaultSettings mirrors the stock SDK defaults: 10 minutes, 0.5%, 3×.
func DefaultSettings(router common.Address) Settings {
	return Settings{
		Router:                router,
		DeadlineMinutes:       10,
		SlippagePercent:       decimal.RequireFromString("0.5"),
		AutoApproveMultiplier: decimal.NewFromInt(3),
	}
}

// Validate checks every field.
func (s Settings) Validate() error {
	if s.DeadlineMinutes <= 0 {
		return ErrInvalidDeadline
	}
	if err := ValidateSlippage(s.SlippagePercent); err != nil {
		return err
	}
	return ValidateMultiplier(s.AutoApproveMultiplier)
}

// ValidateMultiplier rejects auto-approve multipliers below 1.
func ValidateMultiplier(m decimal.Decimal) error {
	if m.LessThan(one) {
		return ErrInvalidMultiplier
	}
	return nil
}
