package domain

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	chainDomain "github.com/fd1az/dexops/business/chain/domain"
)

// SwapRequest describes an exact-input swap along [TokenIn, TokenOut]. Zero-valued optional
// fields fall back to the session Settings.
type SwapRequest struct {
	Router          common.Address // zero uses the configured default router
	TokenIn         common.Address
	TokenOut        common.Address
	Amount          decimal.Decimal
	Slippage        decimal.NullDecimal
	DeadlineMinutes int
}

// Validate checks the fields that have no session default.
func (r SwapRequest) Validate() error {
	if r.TokenIn == (common.Address{}) || r.TokenOut == (common.Address{}) {
		return ErrZeroAddress
	}
	if !r.Amount.IsPositive() {
		return ErrNonPositiveAmount
	}
	if r.Slippage.Valid {
		if err := ValidateSlippage(r.Slippage.Decimal); err != nil {
			return err
		}
	}
	if r.DeadlineMinutes < 0 {
		return ErrInvalidDeadline
	}
	return nil
}

// Resolve fills omitted fields from s.
func (r SwapRequest) Resolve(s Settings) SwapRequest {
	if r.Router == (common.Address{}) {
		r.Router = s.Router
	}
	if !r.Slippage.Valid {
		r.Slippage = decimal.NewNullDecimal(s.SlippagePercent)
	}
	if r.DeadlineMinutes == 0 {
		r.DeadlineMinutes = s.DeadlineMinutes
	}
	return r
}

// Deadline is the absolute router deadline in unix seconds.
func (r SwapRequest) Deadline(now time.Time) int64 {
	return now.Add(time.Duration(r.DeadlineMinutes) * time.Minute).Unix()
}

// RefuelResult is the outcome of a swap into the wrapped gas token followed by an unwrap.
type RefuelResult struct {
	Quote  SwapQuote
	Swap   *chainDomain.Receipt
	Refuel *chainDomain.PendingTransaction
}
