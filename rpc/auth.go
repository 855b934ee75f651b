package rpc

import (
	"errors"
	"strings"
	"sync"
	"time"

	"flashreserve/crypto"
)

const (
	defaultMaxSignatureAge = 2 * time.Minute
	maxTrackedNonces       = 65536
)

var (
	errMissingNonce = errors.New("nonce required")
	errStale        = errors.New("timestamp outside allowed window")
	errReplay       = errors.New("nonce already used")
	errNoncesFull   = errors.New("too many outstanding nonces")
)

// Authenticator verifies signed envelopes and rejects replays within the
// signature age window.
type Authenticator struct {
	maxAge time.Duration
	now    func() time.Time

	mu        sync.Mutex
	seen      map[string]time.Time
	lastSweep time.Time
}

// NewAuthenticator accepts envelopes whose timestamp is within maxAge of now.
func NewAuthenticator(maxAge time.Duration, now func() time.Time) *Authenticator {
	if maxAge <= 0 {
		maxAge = defaultMaxSignatureAge
	}
	if now == nil {
		now = time.Now
	}
	return &Authenticator{maxAge: maxAge, now: now, seen: make(map[string]time.Time)}
}

// Authenticate returns the signer of env for path.
func (a *Authenticator) Authenticate(path string, env *Envelope) (crypto.Address, error) {
	if strings.TrimSpace(env.Nonce) == "" {
		return crypto.Address{}, errMissingNonce
	}
	now := a.now()
	skew := now.Sub(time.Unix(env.Timestamp, 0))
	if skew < 0 {
		skew = -skew
	}
	if skew > a.maxAge {
		return crypto.Address{}, errStale
	}
	signer, err := env.Signer(path)
	if err != nil {
		return crypto.Address{}, err
	}

	key := signer.String() + "|" + env.Nonce
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, dup := a.seen[key]; dup {
		return crypto.Address{}, errReplay
	}
	if now.Sub(a.lastSweep) > a.maxAge || len(a.seen) >= maxTrackedNonces {
		a.sweepLocked(now)
	}
	if len(a.seen) >= maxTrackedNonces {
		return crypto.Address{}, errNoncesFull
	}
	a.seen[key] = time.Unix(env.Timestamp, 0).Add(a.maxAge)
	return signer, nil
}

// sweepLocked forgets nonces whose envelopes would already fail the
// timestamp check.
func (a *Authenticator) sweepLocked(now time.Time) {
	for key, expiry := range a.seen {
		if now.After(expiry) {
			delete(a.seen, key)
		}
	}
	a.lastSweep = now
}
