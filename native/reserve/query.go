package reserve

import (
	"flashreserve/crypto"
)

// view runs fn against committed state while holding the engine lock.
func (e *Engine) view(fn func(*txn) error) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	cfg, ok, err := loadConfig(e.state)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotInitialized
	}
	return fn(&txn{st: e.state, cfg: cfg})
}

// Config returns a copy of the persisted configuration.
func (e *Engine) Config() (*Config, error) {
	var out *Config
	err := e.view(func(tx *txn) error {
		out = tx.cfg.Clone()
		return nil
	})
	return out, err
}

// Record returns the caller's rate-limit record and whether one exists.
func (e *Engine) Record(caller crypto.Address) (*RateLimitRecord, bool, error) {
	record := new(RateLimitRecord)
	var found bool
	err := e.view(func(tx *txn) error {
		ok, err := tx.st.KVGet(recordKey(caller.Raw()), record)
		found = ok
		return err
	})
	if err != nil || !found {
		return nil, false, err
	}
	return record, true, nil
}

// Snapshot reports the pool's reserve, claim supply and exchange rate.
func (e *Engine) Snapshot() (*Snapshot, error) {
	var out *Snapshot
	err := e.view(func(tx *txn) error {
		reserve, err := tx.reserveBalance()
		if err != nil {
			return err
		}
		supply, err := tx.claimSupply()
		if err != nil {
			return err
		}
		out = &Snapshot{
			Reserve:      reserve,
			Supply:       supply,
			ExchangeRate: exchangeRate(reserve, supply),
			Paused:       tx.cfg.Paused,
			Vault:        tx.cfg.VaultAddress(),
			Treasury:     tx.cfg.TreasuryAddress(),
		}
		return nil
	})
	return out, err
}

// QuoteFee computes the fee a flash loan of amount would pay right now,
// without checking guards or touching state.
func (e *Engine) QuoteFee(amount uint64) (*FeeQuote, error) {
	var out *FeeQuote
	err := e.view(func(tx *txn) error {
		quote, err := quoteFee(tx.cfg, amount)
		out = quote
		return err
	})
	return out, err
}

// Holdings returns addr's reserve-asset and claim-token balances.
func (e *Engine) Holdings(addr crypto.Address) (*Holdings, error) {
	var out *Holdings
	err := e.view(func(tx *txn) error {
		base, err := tx.balanceOf(addr, tx.cfg.ReserveAsset)
		if err != nil {
			return err
		}
		claim, err := tx.balanceOf(addr, tx.cfg.ClaimToken)
		if err != nil {
			return err
		}
		out = &Holdings{Address: addr, Base: base, Claim: claim}
		return nil
	})
	return out, err
}
