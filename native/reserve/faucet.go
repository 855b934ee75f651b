package reserve

import (
	"context"

	"flashreserve/core/events"
	"flashreserve/crypto"
	"flashreserve/native/bank"
)

const opFund = "fund"

// Fund credits amount of the reserve asset to addr out of thin air. It exists
// for development networks and runs under the same lock as every other
// operation so it cannot race a staged transaction.
func (e *Engine) Fund(ctx context.Context, addr crypto.Address, amount uint64) (uint64, error) {
	var balance uint64
	err := e.execute(ctx, opFund, false, func(_ context.Context, tx *txn) error {
		if err := requireCaller(addr); err != nil {
			return err
		}
		if amount == 0 {
			return ErrInvalidAmount
		}
		if err := bank.Credit(tx.st, tx.cfg.ReserveAsset, addr.Bytes(), bigOf(amount)); err != nil {
			return err
		}
		total, err := tx.st.TokenSupply(tx.cfg.ReserveAsset)
		if err != nil {
			return err
		}
		if balance, err = tx.balanceOf(addr, tx.cfg.ReserveAsset); err != nil {
			return err
		}
		tx.emit(events.TokenSupply{Token: tx.cfg.ReserveAsset, Total: total, Delta: bigOf(amount), Reason: events.SupplyReasonMint})
		tx.log("address", addr.String(), "amount", amount)
		return nil
	})
	return balance, err
}
