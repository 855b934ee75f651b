package reserve

import (
	"context"
	"errors"

	"flashreserve/native/bank"
)

// Kind classifies reserve failures so callers can tell guard rejections from
// contract or invariant violations.
type Kind uint8

const (
	KindUnknown Kind = iota
	KindAuthorization
	KindPolicyGuard
	KindProtocolInvariant
	KindCallbackContract
	KindArithmeticOverflow
	KindValidation
	KindInvocation
)

func (k Kind) String() string {
	switch k {
	case KindAuthorization:
		return "authorization"
	case KindPolicyGuard:
		return "policy_guard"
	case KindProtocolInvariant:
		return "protocol_invariant"
	case KindCallbackContract:
		return "callback_contract"
	case KindArithmeticOverflow:
		return "arithmetic_overflow"
	case KindValidation:
		return "validation"
	case KindInvocation:
		return "invocation"
	default:
		return "unknown"
	}
}

// Error is a classified reserve failure. Each sentinel below is a distinct
// *Error value, so errors.Is matches on identity and errors.As exposes Kind.
type Error struct {
	Kind Kind
	Code string
	msg  string
}

func (e *Error) Error() string { return "reserve: " + e.msg }

func newError(kind Kind, code, msg string) *Error {
	return &Error{Kind: kind, Code: code, msg: msg}
}

var (
	ErrUnauthorized = newError(KindAuthorization, "unauthorized", "caller is not the configured authority")

	ErrPaused         = newError(KindPolicyGuard, "paused", "flash loans are paused")
	ErrLoanTooBig     = newError(KindPolicyGuard, "loan_too_big", "amount exceeds the flash-loan limit")
	ErrCooldownActive = newError(KindPolicyGuard, "cooldown_active", "caller is still cooling down")

	ErrZeroSupply       = newError(KindProtocolInvariant, "zero_supply", "claim-token supply is zero")
	ErrNothingToHarvest = newError(KindProtocolInvariant, "nothing_to_harvest", "no yield accrued for the position")

	ErrNoCallback     = newError(KindCallbackContract, "no_callback", "borrower returned no success signal")
	ErrCallbackFailed = newError(KindCallbackContract, "callback_failed", "borrower signalled failure")

	ErrArithmeticOverflow = newError(KindArithmeticOverflow, "arithmetic_overflow", "arithmetic overflow")

	ErrInvalidAmount      = newError(KindValidation, "invalid_amount", "amount must be positive")
	ErrInvalidFraction    = newError(KindValidation, "invalid_fraction", "fraction denominator must be positive")
	ErrInvalidAddress     = newError(KindValidation, "invalid_address", "address required")
	ErrInvalidToken       = newError(KindValidation, "invalid_token", "asset symbols must be distinct and non-empty")
	ErrTooManyTiers       = newError(KindValidation, "too_many_tiers", "fee tier list is full")
	ErrInsufficientClaim  = newError(KindValidation, "insufficient_claim", "caller holds fewer claim tokens than requested")
	ErrAlreadyInitialized = newError(KindValidation, "already_initialized", "reserve already initialised")
	ErrNotInitialized     = newError(KindValidation, "not_initialized", "reserve not initialised")

	ErrUnknownReceiver  = newError(KindInvocation, "unknown_receiver", "no borrower registered for receiver")
	ErrInvocationFailed = newError(KindInvocation, "invocation_failed", "borrower invocation failed")
	ErrLedgerForbidden  = newError(KindInvocation, "ledger_forbidden", "borrower may only move the caller's or its own funds")

	errNilState = errors.New("reserve engine: state not configured")
)

// KindOf returns the classification of err, unwrapping as needed.
func KindOf(err error) Kind {
	var re *Error
	if errors.As(err, &re) {
		return re.Kind
	}
	return KindUnknown
}

// CodeOf returns the stable string code of err, or "" when it is not a
// reserve error.
func CodeOf(err error) string {
	var re *Error
	if errors.As(err, &re) {
		return re.Code
	}
	return ""
}

// outcomeCode labels a failed operation for metrics and logs. Ledger failures
// keep their own codes so they are not counted as internal faults.
func outcomeCode(err error) string {
	if code := CodeOf(err); code != "" {
		return code
	}
	switch {
	case errors.Is(err, bank.ErrInsufficientBalance):
		return "insufficient_balance"
	case errors.Is(err, bank.ErrUnknownToken):
		return "unknown_token"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	default:
		return "internal"
	}
}
