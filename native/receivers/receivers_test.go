package receivers

import (
	"bytes"
	"context"
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	"flashreserve/core/state"
	"flashreserve/crypto"
	"flashreserve/native/bank"
	"flashreserve/native/reserve"
	"flashreserve/storage"
)

func addr(b byte) crypto.Address {
	return crypto.NewAddress(crypto.AccountPrefix, bytes.Repeat([]byte{b}, crypto.AddressLength))
}

func setup(t *testing.T) (*reserve.Engine, *state.Manager, map[string]crypto.Address) {
	t.Helper()
	db := storage.NewMemDB()
	t.Cleanup(db.Close)
	st := state.NewManager(db)
	require.NoError(t, bank.RegisterToken(st, "BASE", "Base", 9, nil))
	require.NoError(t, bank.Credit(st, "BASE", addr(0x01).Bytes(), big.NewInt(10_000)))

	engine := reserve.NewEngine(nil)
	engine.SetState(st)
	engine.SetClock(reserve.ClockFunc(func() uint64 { return 1 }))
	installed, err := Install(engine.Borrowers())
	require.NoError(t, err)
	_, err = engine.Initialize(context.Background(), addr(0xAA), reserve.InitParams{
		ReserveAsset:       "BASE",
		ClaimToken:         "FLASH",
		BaseFee:            reserve.Fraction{Numerator: 1, Denominator: 100},
		Treasury:           addr(0xBB),
		TreasuryFeeShare:   reserve.Fraction{Numerator: 1, Denominator: 2},
		MaxFlashLoanAmount: 1_000_000,
	})
	require.NoError(t, err)
	return engine, st, installed
}

func TestEchoReturnsFirstByte(t *testing.T) {
	out, err := Echo.Invoke(context.Background(), &reserve.Invocation{Payload: []byte{1, 9}})
	require.NoError(t, err)
	require.Equal(t, []byte{1}, out)

	out, err = Echo.Invoke(context.Background(), &reserve.Invocation{})
	require.NoError(t, err)
	require.Empty(t, out)
}

func TestInstallDerivesStableAddresses(t *testing.T) {
	_, _, installed := setup(t)
	require.Len(t, installed, 3)
	for name, got := range installed {
		want, err := Address(name)
		require.NoError(t, err)
		require.True(t, want.Equal(got))
		require.Equal(t, crypto.ProgramPrefix, got.Prefix())
	}

	reg := reserve.NewRegistry()
	_, err := Install(reg)
	require.NoError(t, err)
	_, err = Install(reg)
	require.Error(t, err)
}

func TestRepaySettlesLoan(t *testing.T) {
	engine, st, installed := setup(t)
	caller := addr(0x01)

	receipt, err := engine.FlashLoan(context.Background(), caller, reserve.FlashLoanRequest{
		Amount:   5_000,
		Receiver: installed[NameRepay],
	})
	require.NoError(t, err)
	require.Equal(t, uint64(50), receipt.Fee)

	bal, err := st.Balance(caller.Bytes(), "BASE")
	require.NoError(t, err)
	require.Equal(t, int64(9_950), bal.Int64())
	claim, err := st.Balance(installed[NameRepay].Bytes(), "FLASH")
	require.NoError(t, err)
	require.Zero(t, claim.Sign())
}

func TestSubsidizedRepayCoversFee(t *testing.T) {
	engine, st, installed := setup(t)
	caller := addr(0x01)
	float := installed[NameSubsidized]
	require.NoError(t, bank.Credit(st, "BASE", float.Bytes(), big.NewInt(100)))

	_, err := engine.FlashLoan(context.Background(), caller, reserve.FlashLoanRequest{
		Amount:   5_000,
		Receiver: float,
	})
	require.NoError(t, err)

	bal, err := st.Balance(caller.Bytes(), "BASE")
	require.NoError(t, err)
	require.Equal(t, int64(10_000), bal.Int64())
	left, err := st.Balance(float.Bytes(), "BASE")
	require.NoError(t, err)
	require.Equal(t, int64(50), left.Int64())

	// A float too small for the fee aborts the whole loan.
	_, err = engine.FlashLoan(context.Background(), addr(0x02), reserve.FlashLoanRequest{Amount: 10_000, Receiver: float})
	require.ErrorIs(t, err, bank.ErrInsufficientBalance)
	left, err = st.Balance(float.Bytes(), "BASE")
	require.NoError(t, err)
	require.Equal(t, int64(50), left.Int64())
}
