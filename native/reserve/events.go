package reserve

import (
	"strconv"

	"flashreserve/core/events"
	"flashreserve/core/types"
)

const (
	// EventTypeInitialized is emitted once when the reserve is created.
	EventTypeInitialized = "reserve.initialized"
	// EventTypeStaked is emitted when base asset is deposited for claim tokens.
	EventTypeStaked = "reserve.staked"
	// EventTypeUnstaked is emitted when claim tokens are redeemed.
	EventTypeUnstaked = "reserve.unstaked"
	// EventTypeHarvested is emitted when accrued yield is collected.
	EventTypeHarvested = "reserve.harvested"
	// EventTypeFlashLoan is emitted when a flash loan settles.
	EventTypeFlashLoan = "reserve.flash_loan"
	// EventTypeConfigUpdated is emitted by every successful admin mutation.
	EventTypeConfigUpdated = "reserve.config.updated"
)

type eventEnvelope struct {
	evt *types.Event
}

func (e eventEnvelope) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e eventEnvelope) Event() *types.Event { return e.evt }

// WrapEvent converts a raw event payload into the emitter-friendly envelope.
func WrapEvent(evt *types.Event) events.Event { return eventEnvelope{evt: evt} }

func u64(v uint64) string { return strconv.FormatUint(v, 10) }

// InitializedEvent announces a new reserve.
func InitializedEvent(cfg *Config) *types.Event {
	return &types.Event{
		Type: EventTypeInitialized,
		Attributes: map[string]string{
			"authority":    cfg.AuthorityAddress().String(),
			"reserveAsset": cfg.ReserveAsset,
			"claimToken":   cfg.ClaimToken,
			"vault":        cfg.VaultAddress().String(),
			"treasury":     cfg.TreasuryAddress().String(),
		},
	}
}

// StakedEvent returns the payload for a deposit.
func StakedEvent(r *StakeReceipt) *types.Event {
	return &types.Event{
		Type: EventTypeStaked,
		Attributes: map[string]string{
			"caller":  r.Caller.String(),
			"amount":  u64(r.Amount),
			"minted":  u64(r.Minted),
			"reserve": u64(r.Reserve),
			"supply":  u64(r.Supply),
		},
	}
}

// UnstakedEvent returns the payload for a withdrawal.
func UnstakedEvent(r *UnstakeReceipt) *types.Event {
	return &types.Event{
		Type: EventTypeUnstaked,
		Attributes: map[string]string{
			"caller":   r.Caller.String(),
			"burned":   u64(r.Burned),
			"redeemed": u64(r.Redeemed),
			"reserve":  u64(r.Reserve),
			"supply":   u64(r.Supply),
		},
	}
}

// HarvestedEvent returns the payload for a yield collection.
func HarvestedEvent(r *HarvestReceipt) *types.Event {
	return &types.Event{
		Type: EventTypeHarvested,
		Attributes: map[string]string{
			"caller":  r.Caller.String(),
			"claim":   u64(r.Claim),
			"owed":    u64(r.Owed),
			"reserve": u64(r.Reserve),
		},
	}
}

// FlashLoanEvent returns the payload for a settled loan.
func FlashLoanEvent(r *FlashLoanReceipt) *types.Event {
	return &types.Event{
		Type: EventTypeFlashLoan,
		Attributes: map[string]string{
			"caller":        r.Caller.String(),
			"receiver":      r.Receiver.String(),
			"amount":        u64(r.Amount),
			"fee":           u64(r.Fee),
			"treasuryShare": u64(r.TreasuryShare),
			"reserveShare":  u64(r.ReserveShare),
			"loanTime":      u64(r.LoanTime),
		},
	}
}

// ConfigUpdatedEvent records which configuration field an admin changed.
func ConfigUpdatedEvent(field, value string, authority string) *types.Event {
	return &types.Event{
		Type: EventTypeConfigUpdated,
		Attributes: map[string]string{
			"field":     field,
			"value":     value,
			"authority": authority,
		},
	}
}
