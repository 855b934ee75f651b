package rpc

import (
	"flashreserve/crypto"
	"flashreserve/native/reserve"
)

// Admin operation names accepted under /v1/admin/{op}.
const (
	AdminUpdateFees          = "update-fees"
	AdminSetPause            = "set-pause"
	AdminAddFeeTier          = "add-fee-tier"
	AdminClearFeeTiers       = "clear-fee-tiers"
	AdminSetTreasury         = "set-treasury"
	AdminSetTreasuryFeeShare = "set-treasury-fee-share"
	AdminSetMaxFlashLoan     = "set-max-flash-loan"
	AdminSetCooldown         = "set-cooldown"
)

// AdminOps lists every admin operation in route order.
var AdminOps = []string{
	AdminUpdateFees,
	AdminSetPause,
	AdminAddFeeTier,
	AdminClearFeeTiers,
	AdminSetTreasury,
	AdminSetTreasuryFeeShare,
	AdminSetMaxFlashLoan,
	AdminSetCooldown,
}

type AmountRequest struct {
	Amount uint64 `json:"amount"`
}

type FlashLoanRequest struct {
	Amount   uint64   `json:"amount"`
	Receiver string   `json:"receiver"`
	Payload  []byte   `json:"payload,omitempty"`
	Accounts []string `json:"accounts,omitempty"`
}

// AdminRequest carries the arguments of any admin operation; each operation
// reads only the fields it needs.
type AdminRequest struct {
	Numerator   uint64 `json:"numerator,omitempty"`
	Denominator uint64 `json:"denominator,omitempty"`
	Threshold   uint64 `json:"threshold,omitempty"`
	Amount      uint64 `json:"amount,omitempty"`
	Period      uint64 `json:"period,omitempty"`
	Paused      bool   `json:"paused,omitempty"`
	Treasury    string `json:"treasury,omitempty"`
}

type ConfigView struct {
	Authority          string            `json:"authority"`
	ReserveAsset       string            `json:"reserveAsset"`
	ClaimToken         string            `json:"claimToken"`
	BaseFee            reserve.Fraction  `json:"baseFee"`
	FeeTiers           []reserve.FeeTier `json:"feeTiers"`
	Treasury           string            `json:"treasury"`
	TreasuryFeeShare   reserve.Fraction  `json:"treasuryFeeShare"`
	MaxFlashLoanAmount uint64            `json:"maxFlashLoanAmount"`
	CooldownPeriod     uint64            `json:"cooldownPeriod"`
	Paused             bool              `json:"paused"`
	ConfigAddress      string            `json:"configAddress"`
	Vault              string            `json:"vault"`
}

func newConfigView(cfg *reserve.Config) *ConfigView {
	return &ConfigView{
		Authority:          cfg.AuthorityAddress().String(),
		ReserveAsset:       cfg.ReserveAsset,
		ClaimToken:         cfg.ClaimToken,
		BaseFee:            cfg.BaseFee,
		FeeTiers:           append([]reserve.FeeTier{}, cfg.FeeTiers...),
		Treasury:           cfg.TreasuryAddress().String(),
		TreasuryFeeShare:   cfg.TreasuryFeeShare,
		MaxFlashLoanAmount: cfg.MaxFlashLoanAmount,
		CooldownPeriod:     cfg.CooldownPeriod,
		Paused:             cfg.Paused,
		ConfigAddress:      cfg.ConfigAddress().String(),
		Vault:              cfg.VaultAddress().String(),
	}
}

type RecordView struct {
	Address      string `json:"address"`
	Found        bool   `json:"found"`
	LastLoanTime uint64 `json:"lastLoanTime,omitempty"`
}

type FundResponse struct {
	Address string `json:"address"`
	Balance uint64 `json:"balance"`
}

type ReceiversResponse struct {
	Receivers []crypto.Address `json:"receivers"`
}

// ErrorBody is the JSON error envelope returned for every failed request.
type ErrorBody struct {
	Code      string `json:"code"`
	Kind      string `json:"kind,omitempty"`
	Message   string `json:"message"`
	RequestID string `json:"requestId,omitempty"`
}

type errorResponse struct {
	Error ErrorBody `json:"error"`
}
