package reserve

import (
	"context"
	"fmt"
	"math/big"
	"sort"
	"sync"

	"flashreserve/core/state"
	"flashreserve/crypto"
	"flashreserve/native/bank"
)

// Ledger is the restricted view of the in-flight transaction handed to a
// borrower. Transfers may only debit the loan's caller or the borrower itself,
// and they commit or roll back together with the loan.
type Ledger interface {
	Balance(addr crypto.Address, symbol string) (uint64, error)
	Transfer(symbol string, from, to crypto.Address, amount uint64) error
}

// Invocation is the context passed to a borrower.
type Invocation struct {
	Caller       crypto.Address
	Receiver     crypto.Address
	Amount       uint64
	Fee          uint64
	ReserveAsset string
	ClaimToken   string
	Payload      []byte
	Accounts     []crypto.Address
	Ledger       Ledger
}

// Borrower is an external program invoked synchronously in the middle of a
// flash loan. Its first return byte is the success signal; 1 means the
// borrowed funds were used and the loan may be settled.
type Borrower interface {
	Invoke(ctx context.Context, inv *Invocation) ([]byte, error)
}

// BorrowerFunc adapts a function to Borrower.
type BorrowerFunc func(ctx context.Context, inv *Invocation) ([]byte, error)

func (f BorrowerFunc) Invoke(ctx context.Context, inv *Invocation) ([]byte, error) {
	return f(ctx, inv)
}

// Registry maps receiver addresses to borrower programs.
type Registry struct {
	mu        sync.RWMutex
	borrowers map[[20]byte]Borrower
}

// NewRegistry returns an empty borrower registry.
func NewRegistry() *Registry {
	return &Registry{borrowers: make(map[[20]byte]Borrower)}
}

// Register binds b to addr. Each address may be bound once.
func (r *Registry) Register(addr crypto.Address, b Borrower) error {
	if addr.IsZero() {
		return ErrInvalidAddress
	}
	if b == nil {
		return fmt.Errorf("reserve: nil borrower for %s", addr)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	key := addr.Raw()
	if _, exists := r.borrowers[key]; exists {
		return fmt.Errorf("reserve: borrower already registered for %s", addr)
	}
	r.borrowers[key] = b
	return nil
}

// Lookup returns the borrower bound to addr.
func (r *Registry) Lookup(addr crypto.Address) (Borrower, bool) {
	if r == nil {
		return nil, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.borrowers[addr.Raw()]
	return b, ok
}

// Receivers lists the registered receiver addresses in byte order.
func (r *Registry) Receivers() []crypto.Address {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]crypto.Address, 0, len(r.borrowers))
	for raw := range r.borrowers {
		out = append(out, crypto.AddressFromRaw(crypto.ProgramPrefix, raw))
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i].Raw(), out[j].Raw()
		return string(a[:]) < string(b[:])
	})
	return out
}

type invocationLedger struct {
	st       *state.Manager
	caller   crypto.Address
	receiver crypto.Address
}

func (l *invocationLedger) Balance(addr crypto.Address, symbol string) (uint64, error) {
	bal, err := l.st.Balance(addr.Bytes(), symbol)
	if err != nil {
		return 0, err
	}
	return toUint64(bal)
}

func (l *invocationLedger) Transfer(symbol string, from, to crypto.Address, amount uint64) error {
	if !from.Equal(l.caller) && !from.Equal(l.receiver) {
		return fmt.Errorf("%w: debit from %s", ErrLedgerForbidden, from)
	}
	if to.IsZero() {
		return ErrInvalidAddress
	}
	return bank.Transfer(l.st, symbol, from.Bytes(), to.Bytes(), new(big.Int).SetUint64(amount))
}
