package app

import (
	"sync"

	"github.com/shopspring/decimal"

	"github.com/fd1az/dexops/business/dex/domain"
	"github.com/fd1az/dexops/internal/apperror"
)

// SettingsStore holds the mutable session defaults.
type SettingsStore struct {
	mu       sync.RWMutex
	settings domain.Settings
}

// NewSettingsStore validates initial and stores it.
func NewSettingsStore(initial domain.Settings) (*SettingsStore, error) {
	if err := initial.Validate(); err != nil {
		return nil, apperror.New(apperror.CodeConfigurationError, apperror.WithCause(err))
	}
	return &SettingsStore{settings: initial}, nil
}

// Get returns a copy of the current settings.
func (s *SettingsStore) Get() domain.Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.settings
}

// SetDeadlineMinutes sets the default swap deadline.
func (s *SettingsStore) SetDeadlineMinutes(minutes int) error {
	if minutes <= 0 {
		return apperror.New(apperror.CodeInvalidAmount,
			apperror.WithContextf("deadline minutes %d", minutes), apperror.WithCause(domain.ErrInvalidDeadline))
	}
	s.mu.Lock()
	s.settings.DeadlineMinutes = minutes
	s.mu.Unlock()
	return nil
}

// SetSlippage sets the default slippage percent.
func (s *SettingsStore) SetSlippage(pct decimal.Decimal) error {
	if err := domain.ValidateSlippage(pct); err != nil {
		return apperror.New(apperror.CodeInvalidSlippage, apperror.WithContext(pct.String()), apperror.WithCause(err))
	}
	s.mu.Lock()
	s.settings.SlippagePercent = pct
	s.mu.Unlock()
	return nil
}

// SetAutoApproveMultiplier sets how many times the swap amount an auto-approval grants.
func (s *SettingsStore) SetAutoApproveMultiplier(m decimal.Decimal) error {
	if err := domain.ValidateMultiplier(m); err != nil {
		return apperror.New(apperror.CodeInvalidAmount, apperror.WithContext(m.String()), apperror.WithCause(err))
	}
	s.mu.Lock()
	s.settings.AutoApproveMultiplier = m
	s.mu.Unlock()
	return nil
}
