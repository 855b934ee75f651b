package reserve

import (
	"context"
	"fmt"
	"strconv"

	"flashreserve/crypto"
)

const (
	opUpdateFees          = "update_fees"
	opSetPause            = "set_pause"
	opAddFeeTier          = "add_fee_tier"
	opClearFeeTiers       = "clear_fee_tiers"
	opSetTreasury         = "set_treasury"
	opSetTreasuryFeeShare = "set_treasury_fee_share"
	opSetMaxFlashLoan     = "set_max_flash_loan"
	opSetCooldown         = "set_cooldown"
)

// mutateConfig applies change to a copy of the configuration after checking
// that caller is the authority, then persists the copy.
func (e *Engine) mutateConfig(ctx context.Context, op string, caller crypto.Address, change func(*Config) (string, error)) error {
	return e.execute(ctx, op, false, func(_ context.Context, tx *txn) error {
		if caller.IsZero() || caller.Raw() != tx.cfg.Authority {
			return ErrUnauthorized
		}
		next := tx.cfg.Clone()
		value, err := change(next)
		if err != nil {
			return err
		}
		if err := tx.st.KVPut(configKey, next); err != nil {
			return err
		}
		tx.cfg = next
		tx.emit(WrapEvent(ConfigUpdatedEvent(op, value, caller.String())))
		tx.log("value", value)
		return nil
	})
}

// UpdateFees replaces the base flash-loan fee.
func (e *Engine) UpdateFees(ctx context.Context, caller crypto.Address, numerator, denominator uint64) error {
	return e.mutateConfig(ctx, opUpdateFees, caller, func(cfg *Config) (string, error) {
		fee := Fraction{Numerator: numerator, Denominator: denominator}
		if err := validateFraction(fee, false); err != nil {
			return "", err
		}
		cfg.BaseFee = fee
		return fee.String(), nil
	})
}

// SetPause toggles whether flash loans are accepted.
func (e *Engine) SetPause(ctx context.Context, caller crypto.Address, paused bool) error {
	return e.mutateConfig(ctx, opSetPause, caller, func(cfg *Config) (string, error) {
		cfg.Paused = paused
		return strconv.FormatBool(paused), nil
	})
}

// AddFeeTier appends a tier. Tiers are consulted newest first.
func (e *Engine) AddFeeTier(ctx context.Context, caller crypto.Address, threshold, numerator, denominator uint64) error {
	return e.mutateConfig(ctx, opAddFeeTier, caller, func(cfg *Config) (string, error) {
		if denominator == 0 {
			return "", ErrInvalidFraction
		}
		if len(cfg.FeeTiers) >= MaxFeeTiers {
			return "", fmt.Errorf("%w: at most %d fee tiers", ErrTooManyTiers, MaxFeeTiers)
		}
		cfg.FeeTiers = append(cfg.FeeTiers, FeeTier{Threshold: threshold, Numerator: numerator, Denominator: denominator})
		return fmt.Sprintf("%d@%d/%d", threshold, numerator, denominator), nil
	})
}

// ClearFeeTiers removes every tier.
func (e *Engine) ClearFeeTiers(ctx context.Context, caller crypto.Address) error {
	return e.mutateConfig(ctx, opClearFeeTiers, caller, func(cfg *Config) (string, error) {
		cfg.FeeTiers = []FeeTier{}
		return "", nil
	})
}

// SetTreasury redirects the treasury share of future fees.
func (e *Engine) SetTreasury(ctx context.Context, caller, treasury crypto.Address) error {
	return e.mutateConfig(ctx, opSetTreasury, caller, func(cfg *Config) (string, error) {
		if treasury.IsZero() {
			return "", ErrInvalidAddress
		}
		cfg.Treasury = treasury.Raw()
		return treasury.String(), nil
	})
}

// SetTreasuryFeeShare changes the fraction of each fee routed to the treasury.
func (e *Engine) SetTreasuryFeeShare(ctx context.Context, caller crypto.Address, numerator, denominator uint64) error {
	return e.mutateConfig(ctx, opSetTreasuryFeeShare, caller, func(cfg *Config) (string, error) {
		share := Fraction{Numerator: numerator, Denominator: denominator}
		if err := validateFraction(share, true); err != nil {
			return "", err
		}
		cfg.TreasuryFeeShare = share
		return share.String(), nil
	})
}

// SetMaxFlashLoan changes the principal limit of a single loan.
func (e *Engine) SetMaxFlashLoan(ctx context.Context, caller crypto.Address, amount uint64) error {
	return e.mutateConfig(ctx, opSetMaxFlashLoan, caller, func(cfg *Config) (string, error) {
		cfg.MaxFlashLoanAmount = amount
		return strconv.FormatUint(amount, 10), nil
	})
}

// SetCooldown changes the minimum spacing between loans from one caller.
func (e *Engine) SetCooldown(ctx context.Context, caller crypto.Address, period uint64) error {
	return e.mutateConfig(ctx, opSetCooldown, caller, func(cfg *Config) (string, error) {
		cfg.CooldownPeriod = period
		return strconv.FormatUint(period, 10), nil
	})
}
