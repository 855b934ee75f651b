package reserve

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	"flashreserve/native/bank"
)

func TestMulDiv(t *testing.T) {
	cases := []struct {
		a, b, d uint64
		want    uint64
		wantErr bool
	}{
		{a: 150, b: 50, d: 100, want: 75},
		{a: 3, b: 10, d: 100, want: 0},
		{a: math.MaxUint64, b: math.MaxUint64, d: math.MaxUint64, want: math.MaxUint64},
		{a: math.MaxUint64, b: 2, d: 1, wantErr: true},
		{a: 1, b: 1, d: 0, wantErr: true},
	}
	for _, tc := range cases {
		t.Run(fmt.Sprintf("%d*%d/%d", tc.a, tc.b, tc.d), func(t *testing.T) {
			got, err := mulDiv(tc.a, tc.b, tc.d)
			if tc.wantErr {
				require.ErrorIs(t, err, ErrArithmeticOverflow)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tc.want, got)
		})
	}
}

func TestCheckedSubAndNarrowing(t *testing.T) {
	_, err := checkedSub(1, 2)
	require.ErrorIs(t, err, ErrArithmeticOverflow)

	v, err := checkedSub(5, 2)
	require.NoError(t, err)
	require.Equal(t, uint64(3), v)

	_, err = toUint64(new(big.Int).Lsh(big.NewInt(1), 64))
	require.ErrorIs(t, err, ErrArithmeticOverflow)
	_, err = toUint64(big.NewInt(-1))
	require.ErrorIs(t, err, ErrArithmeticOverflow)
}

func TestQuoteFeeSplitsTreasuryShare(t *testing.T) {
	cfg := &Config{
		BaseFee:          Fraction{Numerator: 9, Denominator: 10_000},
		TreasuryFeeShare: Fraction{Numerator: 1, Denominator: 5},
	}
	quote, err := quoteFee(cfg, 1_000_000)
	require.NoError(t, err)
	require.Equal(t, uint64(900), quote.Fee)
	require.Equal(t, uint64(180), quote.TreasuryShare)
	require.Equal(t, uint64(720), quote.ReserveShare)
	require.Equal(t, -1, quote.TierIndex)

	// Small loans round the fee down to zero.
	quote, err = quoteFee(cfg, 100)
	require.NoError(t, err)
	require.Zero(t, quote.Fee)
}

func TestExchangeRate(t *testing.T) {
	require.Equal(t, "1", exchangeRate(0, 0))
	require.Equal(t, "1.5", exchangeRate(150, 100))
	require.Equal(t, "0.333333333333333333", exchangeRate(1, 3))
}

func TestMonotonicClockNeverRewinds(t *testing.T) {
	readings := []uint64{10, 12, 7, 12, 20}
	i := 0
	clock := NewMonotonicClock(func() uint64 {
		v := readings[i]
		i++
		return v
	})
	var got []uint64
	for range readings {
		got = append(got, clock.Now())
	}
	require.Equal(t, []uint64{10, 12, 12, 12, 20}, got)
}

func TestErrorClassification(t *testing.T) {
	wrapped := fmt.Errorf("outer: %w", ErrCooldownActive)
	require.Equal(t, KindPolicyGuard, KindOf(wrapped))
	require.Equal(t, "cooldown_active", CodeOf(wrapped))
	require.Equal(t, KindUnknown, KindOf(errors.New("plain")))
	require.Empty(t, CodeOf(nil))
	require.False(t, errors.Is(ErrPaused, ErrLoanTooBig))
	require.Equal(t, "reserve: flash loans are paused", ErrPaused.Error())
}

func TestOutcomeCodeNamesLedgerFailures(t *testing.T) {
	cases := map[string]error{
		"loan_too_big":         fmt.Errorf("wrap: %w", ErrLoanTooBig),
		"insufficient_balance": fmt.Errorf("burn principal: %w", bank.ErrInsufficientBalance),
		"unknown_token":        bank.ErrUnknownToken,
		"canceled":             context.DeadlineExceeded,
		"internal":             errors.New("disk full"),
	}
	for want, err := range cases {
		require.Equal(t, want, outcomeCode(err), err.Error())
	}
}

func TestRegistryRejectsDuplicates(t *testing.T) {
	reg := NewRegistry()
	echo := BorrowerFunc(func(_ context.Context, inv *Invocation) ([]byte, error) { return inv.Payload, nil })
	a, b := testAddress(0x02), testAddress(0x01)

	require.NoError(t, reg.Register(a, echo))
	require.NoError(t, reg.Register(b, echo))
	require.Error(t, reg.Register(a, echo))
	require.ErrorIs(t, reg.Register(testAddress(0x00), echo), ErrInvalidAddress)

	receivers := reg.Receivers()
	require.Len(t, receivers, 2)
	require.True(t, receivers[0].Equal(b))
	require.True(t, receivers[1].Equal(a))

	_, ok := reg.Lookup(testAddress(0x03))
	require.False(t, ok)
}
