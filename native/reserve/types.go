package reserve

import (
	"fmt"

	"flashreserve/crypto"
)

// ModuleName identifies the reserve module in pause views, metrics and logs.
const ModuleName = "reserve"

// Fraction is a rational rate applied with floor division.
type Fraction struct {
	Numerator   uint64 `json:"numerator"`
	Denominator uint64 `json:"denominator"`
}

func (f Fraction) String() string {
	return fmt.Sprintf("%d/%d", f.Numerator, f.Denominator)
}

// FeeTier overrides the base fee for loans of at least Threshold.
type FeeTier struct {
	Threshold   uint64 `json:"threshold" toml:"Threshold"`
	Numerator   uint64 `json:"numerator" toml:"Numerator"`
	Denominator uint64 `json:"denominator" toml:"Denominator"`
}

// Config is the single persisted configuration record of the reserve.
type Config struct {
	Authority          [20]byte
	ReserveAsset       string
	ClaimToken         string
	BaseFee            Fraction
	FeeTiers           []FeeTier
	Treasury           [20]byte
	TreasuryFeeShare   Fraction
	MaxFlashLoanAmount uint64
	CooldownPeriod     uint64
	Paused             bool
	ConfigBump         uint8
	VaultBump          uint8
}

// Clone returns a deep copy of the configuration.
func (c *Config) Clone() *Config {
	if c == nil {
		return nil
	}
	clone := *c
	clone.FeeTiers = append([]FeeTier(nil), c.FeeTiers...)
	return &clone
}

// IsPaused implements common.PauseView.
func (c *Config) IsPaused(module string) bool {
	return c != nil && module == ModuleName && c.Paused
}

// AuthorityAddress renders the authority as an account address.
func (c *Config) AuthorityAddress() crypto.Address {
	return crypto.AddressFromRaw(crypto.AccountPrefix, c.Authority)
}

// TreasuryAddress renders the treasury as an account address.
func (c *Config) TreasuryAddress() crypto.Address {
	return crypto.AddressFromRaw(crypto.AccountPrefix, c.Treasury)
}

// ConfigAddress is the derived address that holds the claim-token mint authority.
func (c *Config) ConfigAddress() crypto.Address {
	return crypto.CreateDerivedAddress(programID, c.ConfigBump, seedConfig)
}

// VaultAddress is the derived address holding the reserve balance.
func (c *Config) VaultAddress() crypto.Address {
	return crypto.CreateDerivedAddress(programID, c.VaultBump, seedVault)
}

// RateLimitRecord stores the time of a caller's last settled flash loan.
type RateLimitRecord struct {
	LastLoanTime uint64
}

// InitParams are the genesis parameters accepted by Initialize.
type InitParams struct {
	ReserveAsset       string
	ClaimToken         string
	ClaimTokenName     string
	ClaimDecimals      uint8
	BaseFee            Fraction
	Treasury           crypto.Address
	TreasuryFeeShare   Fraction
	MaxFlashLoanAmount uint64
	CooldownPeriod     uint64
}

// FlashLoanRequest describes a single flash loan.
type FlashLoanRequest struct {
	Amount   uint64
	Receiver crypto.Address
	Payload  []byte
	Accounts []crypto.Address
}

// Phase is a step of the flash-loan lifecycle.
type Phase uint8

const (
	PhaseIdle Phase = iota
	PhaseLoanIssued
	PhaseCallbackPending
	PhaseRepaid
	PhaseAborted
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseLoanIssued:
		return "loan_issued"
	case PhaseCallbackPending:
		return "callback_pending"
	case PhaseRepaid:
		return "repaid"
	case PhaseAborted:
		return "aborted"
	default:
		return "unknown"
	}
}

// StakeReceipt summarises a committed deposit.
type StakeReceipt struct {
	Caller  crypto.Address `json:"caller"`
	Amount  uint64         `json:"amount"`
	Minted  uint64         `json:"minted"`
	Reserve uint64         `json:"reserve"`
	Supply  uint64         `json:"supply"`
}

// UnstakeReceipt summarises a committed withdrawal.
type UnstakeReceipt struct {
	Caller   crypto.Address `json:"caller"`
	Burned   uint64         `json:"burned"`
	Redeemed uint64         `json:"redeemed"`
	Reserve  uint64         `json:"reserve"`
	Supply   uint64         `json:"supply"`
}

// HarvestReceipt summarises a committed yield collection.
type HarvestReceipt struct {
	Caller     crypto.Address `json:"caller"`
	Claim      uint64         `json:"claim"`
	TotalValue uint64         `json:"totalValue"`
	Owed       uint64         `json:"owed"`
	Reserve    uint64         `json:"reserve"`
}

// FlashLoanReceipt summarises a settled flash loan.
type FlashLoanReceipt struct {
	Caller        crypto.Address `json:"caller"`
	Receiver      crypto.Address `json:"receiver"`
	Amount        uint64         `json:"amount"`
	Fee           uint64         `json:"fee"`
	TreasuryShare uint64         `json:"treasuryShare"`
	ReserveShare  uint64         `json:"reserveShare"`
	LoanTime      uint64         `json:"loanTime"`
	Phase         Phase          `json:"-"`
	Transitions   []Phase        `json:"-"`
	Reserve       uint64         `json:"reserve"`
}

// FeeQuote is the fee breakdown for a prospective loan.
type FeeQuote struct {
	Amount        uint64 `json:"amount"`
	Fee           uint64 `json:"fee"`
	TreasuryShare uint64 `json:"treasuryShare"`
	ReserveShare  uint64 `json:"reserveShare"`
	// TierIndex is the index of the tier that set the fee, or -1 for the base fee.
	TierIndex int `json:"tierIndex"`
}

// Snapshot is a point-in-time view of the pool.
type Snapshot struct {
	Reserve      uint64         `json:"reserve"`
	Supply       uint64         `json:"supply"`
	ExchangeRate string         `json:"exchangeRate"`
	Paused       bool           `json:"paused"`
	Vault        crypto.Address `json:"vault"`
	Treasury     crypto.Address `json:"treasury"`
}

// Holdings lists an account's balances of both assets.
type Holdings struct {
	Address crypto.Address `json:"address"`
	Base    uint64         `json:"base"`
	Claim   uint64         `json:"claim"`
}
