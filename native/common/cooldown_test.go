package common

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCheckCooldownBoundary(t *testing.T) {
	prev := Cooldown{Last: 1_000, Seen: true}
	require.ErrorIs(t, CheckCooldown(prev, 60, 1_060), ErrCooldownActive)
	require.ErrorIs(t, CheckCooldown(prev, 60, 1_000), ErrCooldownActive)
	require.NoError(t, CheckCooldown(prev, 60, 1_061))
}

func TestCheckCooldownUnseenAlwaysPasses(t *testing.T) {
	require.NoError(t, CheckCooldown(Cooldown{}, math.MaxUint64, 0))
}

func TestCheckCooldownZeroPeriodStillRequiresProgress(t *testing.T) {
	prev := Cooldown{Last: 5, Seen: true}
	require.ErrorIs(t, CheckCooldown(prev, 0, 5), ErrCooldownActive)
	require.NoError(t, CheckCooldown(prev, 0, 6))
}

func TestCheckCooldownOverflow(t *testing.T) {
	prev := Cooldown{Last: math.MaxUint64 - 1, Seen: true}
	require.ErrorIs(t, CheckCooldown(prev, 2, math.MaxUint64), ErrCooldownOverflow)
}

type pauseMap map[string]bool

func (p pauseMap) IsPaused(module string) bool { return p[module] }

func TestGuard(t *testing.T) {
	require.NoError(t, Guard(nil, "reserve"))
	require.NoError(t, Guard(pauseMap{"reserve": true}, ""))
	require.ErrorIs(t, Guard(pauseMap{"reserve": true}, "reserve"), ErrModulePaused)
	require.NoError(t, Guard(pauseMap{"other": true}, "reserve"))
}
