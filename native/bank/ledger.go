package bank

import (
	"bytes"
	"errors"
	"fmt"
	"math/big"

	"flashreserve/core/state"
)

var (
	ErrInsufficientBalance = errors.New("bank: insufficient balance")
	ErrMintAuthority       = errors.New("bank: caller is not the mint authority")
	ErrUnknownToken        = errors.New("bank: token not registered")
	ErrNegativeAmount      = errors.New("bank: amount must not be negative")
	ErrEmptyAddress        = errors.New("bank: address required")
)

// State is the slice of the state manager the ledger primitives need.
type State interface {
	Balance(addr []byte, symbol string) (*big.Int, error)
	SetBalance(addr []byte, symbol string, amount *big.Int) error
	Token(symbol string) (*state.TokenMetadata, error)
	RegisterToken(symbol, name string, decimals uint8) error
	SetTokenMintAuthority(symbol string, authority []byte) error
	AdjustTokenSupply(symbol string, delta *big.Int) (*big.Int, error)
}

var _ State = (*state.Manager)(nil)

func checkAmount(amount *big.Int) (*big.Int, error) {
	if amount == nil {
		return big.NewInt(0), nil
	}
	if amount.Sign() < 0 {
		return nil, ErrNegativeAmount
	}
	return amount, nil
}

func requireToken(st State, symbol string) (*state.TokenMetadata, error) {
	meta, err := st.Token(symbol)
	if err != nil {
		return nil, err
	}
	if meta == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownToken, symbol)
	}
	return meta, nil
}

// RegisterToken creates a token whose supply only authority may mint.
func RegisterToken(st State, symbol, name string, decimals uint8, authority []byte) error {
	if err := st.RegisterToken(symbol, name, decimals); err != nil {
		return err
	}
	if len(authority) == 0 {
		return nil
	}
	return st.SetTokenMintAuthority(symbol, authority)
}

// Transfer moves amount of symbol from one account to another. A zero amount
// succeeds without touching state.
func Transfer(st State, symbol string, from, to []byte, amount *big.Int) error {
	amount, err := checkAmount(amount)
	if err != nil {
		return err
	}
	if len(from) == 0 || len(to) == 0 {
		return ErrEmptyAddress
	}
	if _, err := requireToken(st, symbol); err != nil {
		return err
	}
	fromBal, err := st.Balance(from, symbol)
	if err != nil {
		return err
	}
	if fromBal.Cmp(amount) < 0 {
		return fmt.Errorf("%w: have %s, need %s %s", ErrInsufficientBalance, fromBal, amount, symbol)
	}
	if amount.Sign() == 0 || bytes.Equal(from, to) {
		return nil
	}
	toBal, err := st.Balance(to, symbol)
	if err != nil {
		return err
	}
	if err := st.SetBalance(from, symbol, new(big.Int).Sub(fromBal, amount)); err != nil {
		return err
	}
	return st.SetBalance(to, symbol, new(big.Int).Add(toBal, amount))
}

// Mint creates amount new units of symbol for to. authority must match the
// token's registered mint authority.
func Mint(st State, symbol string, authority, to []byte, amount *big.Int) (*big.Int, error) {
	amount, err := checkAmount(amount)
	if err != nil {
		return nil, err
	}
	if len(to) == 0 {
		return nil, ErrEmptyAddress
	}
	meta, err := requireToken(st, symbol)
	if err != nil {
		return nil, err
	}
	if len(meta.MintAuthority) == 0 || !bytes.Equal(meta.MintAuthority, authority) {
		return nil, ErrMintAuthority
	}
	total, err := st.AdjustTokenSupply(symbol, amount)
	if err != nil {
		return nil, err
	}
	bal, err := st.Balance(to, symbol)
	if err != nil {
		return nil, err
	}
	if err := st.SetBalance(to, symbol, new(big.Int).Add(bal, amount)); err != nil {
		return nil, err
	}
	return total, nil
}

// Burn destroys amount units of symbol held by owner and returns the new
// total supply.
func Burn(st State, symbol string, owner []byte, amount *big.Int) (*big.Int, error) {
	amount, err := checkAmount(amount)
	if err != nil {
		return nil, err
	}
	if len(owner) == 0 {
		return nil, ErrEmptyAddress
	}
	if _, err := requireToken(st, symbol); err != nil {
		return nil, err
	}
	bal, err := st.Balance(owner, symbol)
	if err != nil {
		return nil, err
	}
	if bal.Cmp(amount) < 0 {
		return nil, fmt.Errorf("%w: have %s, burn %s %s", ErrInsufficientBalance, bal, amount, symbol)
	}
	if err := st.SetBalance(owner, symbol, new(big.Int).Sub(bal, amount)); err != nil {
		return nil, err
	}
	return st.AdjustTokenSupply(symbol, new(big.Int).Neg(amount))
}

// Credit adds amount to an account without a counterparty. It backs genesis
// allocations and the devnet faucet, and counts towards total supply.
func Credit(st State, symbol string, to []byte, amount *big.Int) error {
	amount, err := checkAmount(amount)
	if err != nil {
		return err
	}
	if len(to) == 0 {
		return ErrEmptyAddress
	}
	if _, err := requireToken(st, symbol); err != nil {
		return err
	}
	if _, err := st.AdjustTokenSupply(symbol, amount); err != nil {
		return err
	}
	bal, err := st.Balance(to, symbol)
	if err != nil {
		return err
	}
	return st.SetBalance(to, symbol, new(big.Int).Add(bal, amount))
}
