package common

import (
	"errors"
	"math"
)

var (
	ErrCooldownActive   = errors.New("cooldown active")
	ErrCooldownOverflow = errors.New("cooldown deadline overflow")
)

// Cooldown is the last-use timestamp of a rate-limited actor. The zero value
// with Seen=false means the actor has never been admitted.
type Cooldown struct {
	Last uint64
	Seen bool
}

// CheckCooldown admits a request at now only if now is strictly after
// Last+period. An unseen actor is always admitted. The deadline is computed
// with an explicit overflow check.
func CheckCooldown(prev Cooldown, period, now uint64) error {
	if !prev.Seen {
		return nil
	}
	if prev.Last > math.MaxUint64-period {
		return ErrCooldownOverflow
	}
	if now <= prev.Last+period {
		return ErrCooldownActive
	}
	return nil
}
