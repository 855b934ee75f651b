package state

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/rlp"
)

// ErrSupplyUnderflow is returned when a supply adjustment would go negative.
var ErrSupplyUnderflow = errors.New("state: token supply underflow")

var tokenSupplyPrefix = []byte("token/supply/")

func tokenSupplyKey(symbol string) []byte {
	return append(append([]byte{}, tokenSupplyPrefix...), normalizeSymbol(symbol)...)
}

// TokenSupply returns the persisted total supply for the provided token. Missing
// entries default to zero.
func (m *Manager) TokenSupply(symbol string) (*big.Int, error) {
	if normalizeSymbol(symbol) == "" {
		return nil, fmt.Errorf("token symbol required")
	}
	data, err := m.get(tokenSupplyKey(symbol))
	if err != nil {
		return nil, err
	}
	total := new(big.Int)
	if len(data) == 0 {
		return total, nil
	}
	if err := rlp.DecodeBytes(data, total); err != nil {
		return nil, fmt.Errorf("decode %s supply: %w", normalizeSymbol(symbol), err)
	}
	return total, nil
}

// AdjustTokenSupply adds delta (which may be negative) to the stored total and
// returns the new value. The token must be registered.
func (m *Manager) AdjustTokenSupply(symbol string, delta *big.Int) (*big.Int, error) {
	normalized := normalizeSymbol(symbol)
	if !m.TokenExists(normalized) {
		return nil, fmt.Errorf("token %s not registered", normalized)
	}
	current, err := m.TokenSupply(normalized)
	if err != nil {
		return nil, err
	}
	if delta != nil {
		current.Add(current, delta)
	}
	if current.Sign() < 0 {
		return nil, fmt.Errorf("%w: %s", ErrSupplyUnderflow, normalized)
	}
	encoded, err := rlp.EncodeToBytes(current)
	if err != nil {
		return nil, err
	}
	if err := m.put(tokenSupplyKey(normalized), encoded); err != nil {
		return nil, err
	}
	return current, nil
}
