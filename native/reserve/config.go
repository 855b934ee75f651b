package reserve

import (
	"context"
	"fmt"
	"strings"

	"flashreserve/crypto"
)

// Params captures the genesis parameters of the reserve as they appear in the
// node configuration file.
type Params struct {
	Authority                string    `toml:"Authority"`
	Treasury                 string    `toml:"Treasury"`
	ReserveAsset             string    `toml:"ReserveAsset"`
	ClaimToken               string    `toml:"ClaimToken"`
	ClaimTokenName           string    `toml:"ClaimTokenName"`
	ClaimDecimals            uint8     `toml:"ClaimDecimals"`
	BaseFeeNumerator         uint64    `toml:"BaseFeeNumerator"`
	BaseFeeDenominator       uint64    `toml:"BaseFeeDenominator"`
	TreasuryShareNumerator   uint64    `toml:"TreasuryShareNumerator"`
	TreasuryShareDenominator uint64    `toml:"TreasuryShareDenominator"`
	MaxFlashLoanAmount       uint64    `toml:"MaxFlashLoanAmount"`
	CooldownPeriod           uint64    `toml:"CooldownPeriod"`
	FeeTiers                 []FeeTier `toml:"tiers"`
}

// DefaultParams returns a 9 bps base fee with a 20% treasury share.
func DefaultParams() Params {
	return Params{
		ReserveAsset:             "BASE",
		ClaimToken:               "FLASH",
		ClaimDecimals:            DefaultClaimDecimals,
		BaseFeeNumerator:         9,
		BaseFeeDenominator:       10_000,
		TreasuryShareNumerator:   1,
		TreasuryShareDenominator: 5,
		MaxFlashLoanAmount:       1_000_000_000_000,
		CooldownPeriod:           2,
	}
}

// Resolve decodes the configured addresses and returns the authority and the
// arguments for Initialize.
func (p Params) Resolve() (crypto.Address, InitParams, error) {
	authority, err := decodeParamAddress("Authority", p.Authority)
	if err != nil {
		return crypto.Address{}, InitParams{}, err
	}
	treasury, err := decodeParamAddress("Treasury", p.Treasury)
	if err != nil {
		return crypto.Address{}, InitParams{}, err
	}
	for i, tier := range p.FeeTiers {
		if tier.Denominator == 0 {
			return crypto.Address{}, InitParams{}, fmt.Errorf("reserve: tiers[%d]: %w", i, ErrInvalidFraction)
		}
	}
	if len(p.FeeTiers) > MaxFeeTiers {
		return crypto.Address{}, InitParams{}, fmt.Errorf("reserve: %w: %d configured", ErrTooManyTiers, len(p.FeeTiers))
	}
	return authority, InitParams{
		ReserveAsset:       p.ReserveAsset,
		ClaimToken:         p.ClaimToken,
		ClaimTokenName:     p.ClaimTokenName,
		ClaimDecimals:      p.ClaimDecimals,
		BaseFee:            Fraction{Numerator: p.BaseFeeNumerator, Denominator: p.BaseFeeDenominator},
		Treasury:           treasury,
		TreasuryFeeShare:   Fraction{Numerator: p.TreasuryShareNumerator, Denominator: p.TreasuryShareDenominator},
		MaxFlashLoanAmount: p.MaxFlashLoanAmount,
		CooldownPeriod:     p.CooldownPeriod,
	}, nil
}

func decodeParamAddress(field, value string) (crypto.Address, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return crypto.Address{}, fmt.Errorf("reserve: %s required", field)
	}
	addr, err := crypto.DecodeAddress(trimmed)
	if err != nil {
		return crypto.Address{}, fmt.Errorf("reserve: %s: %w", field, err)
	}
	return addr, nil
}

// Genesis initialises the reserve from p and installs the configured tiers.
func (e *Engine) Genesis(ctx context.Context, p Params) (*Config, error) {
	authority, init, err := p.Resolve()
	if err != nil {
		return nil, err
	}
	cfg, err := e.Initialize(ctx, authority, init)
	if err != nil {
		return nil, err
	}
	for _, tier := range p.FeeTiers {
		if err := e.AddFeeTier(ctx, authority, tier.Threshold, tier.Numerator, tier.Denominator); err != nil {
			return nil, err
		}
	}
	if len(p.FeeTiers) == 0 {
		return cfg, nil
	}
	return e.Config()
}
