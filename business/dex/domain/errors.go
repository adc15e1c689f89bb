package domain

import "errors"

var (
	ErrSlippageOutOfRange = errors.New("slippage must be within [0, 100] percent")
	ErrNonPositiveAmount  = errors.New("amount must be positive")
	ErrInvalidDeadline    = errors.New("deadline minutes must be positive")
	ErrInvalidMultiplier  = errors.New("auto-approve multiplier must be at least 1")
	ErrZeroAddress        = errors.New("address must not be zero")
)
