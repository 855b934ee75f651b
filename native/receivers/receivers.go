// Package receivers contains the borrower programs bundled with flashd.
package receivers

import (
	"context"
	"errors"
	"fmt"

	"flashreserve/crypto"
	"flashreserve/native/reserve"
)

var errNoLedger = errors.New("receivers: invocation carries no ledger")

// Echo returns the first payload byte as its success signal and touches no
// funds. An empty payload yields no signal.
var Echo = reserve.BorrowerFunc(func(_ context.Context, inv *reserve.Invocation) ([]byte, error) {
	if len(inv.Payload) == 0 {
		return nil, nil
	}
	return inv.Payload[:1], nil
})

// Repay takes custody of the borrowed claim tokens, hands them back before
// settlement and signals success. With Subsidize set it also pays the loan
// fee to the caller out of its own reserve-asset float.
type Repay struct {
	Subsidize bool
}

func (r Repay) Invoke(ctx context.Context, inv *reserve.Invocation) ([]byte, error) {
	if inv.Ledger == nil {
		return nil, errNoLedger
	}
	if err := inv.Ledger.Transfer(inv.ClaimToken, inv.Caller, inv.Receiver, inv.Amount); err != nil {
		return nil, fmt.Errorf("receivers: take principal: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := inv.Ledger.Transfer(inv.ClaimToken, inv.Receiver, inv.Caller, inv.Amount); err != nil {
		return nil, fmt.Errorf("receivers: return principal: %w", err)
	}
	if r.Subsidize && inv.Fee > 0 {
		if err := inv.Ledger.Transfer(inv.ReserveAsset, inv.Receiver, inv.Caller, inv.Fee); err != nil {
			return nil, fmt.Errorf("receivers: subsidise fee: %w", err)
		}
	}
	return []byte{1}, nil
}

const (
	NameEcho       = "echo"
	NameRepay      = "repay"
	NameSubsidized = "repay-subsidized"
)

var programID = []byte("flashreserve/receivers/v1")

// Address returns the derived receiver address for a bundled program name.
func Address(name string) (crypto.Address, error) {
	addr, _, err := crypto.DeriveAddress(programID, []byte(name))
	return addr, err
}

// Install registers every bundled receiver and returns their addresses by
// name.
func Install(reg *reserve.Registry) (map[string]crypto.Address, error) {
	bundled := map[string]reserve.Borrower{
		NameEcho:       Echo,
		NameRepay:      Repay{},
		NameSubsidized: Repay{Subsidize: true},
	}
	out := make(map[string]crypto.Address, len(bundled))
	for name, borrower := range bundled {
		addr, err := Address(name)
		if err != nil {
			return nil, err
		}
		if err := reg.Register(addr, borrower); err != nil {
			return nil, fmt.Errorf("receivers: install %s: %w", name, err)
		}
		out[name] = addr
	}
	return out, nil
}
