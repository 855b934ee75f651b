package genesis

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"flashreserve/config"
	"flashreserve/core/state"
	"flashreserve/crypto"
	"flashreserve/native/reserve"
	"flashreserve/storage"
)

func address(b byte) crypto.Address {
	return crypto.NewAddress(crypto.AccountPrefix, bytes.Repeat([]byte{b}, crypto.AddressLength))
}

func fixture() (config.Genesis, reserve.Params) {
	g := config.Genesis{
		Assets: []config.Asset{{Symbol: "USDX", Decimals: 6}, {Symbol: "BASE", Name: "Base", Decimals: 9}},
		Allocations: []config.Allocation{
			{Address: address(0x01).String(), Symbol: "BASE", Amount: 5_000},
			{Address: address(0x01).String(), Symbol: "BASE", Amount: 250},
			{Address: address(0x02).String(), Symbol: "USDX", Amount: 7},
		},
	}
	params := reserve.DefaultParams()
	params.Authority = address(0xA0).String()
	params.Treasury = address(0xA1).String()
	return g, params
}

func TestApplySeedsEmptyLedger(t *testing.T) {
	db := storage.NewMemDB()
	defer db.Close()
	st := state.NewManager(db)
	engine := reserve.NewEngine(nil)
	g, params := fixture()

	res, err := Apply(context.Background(), st, engine, g, params)
	require.NoError(t, err)
	require.True(t, res.Created)
	require.Equal(t, "BASE", res.Config.ReserveAsset)

	bal, err := st.Balance(address(0x01).Bytes(), "BASE")
	require.NoError(t, err)
	require.Equal(t, uint64(5_250), bal.Uint64())
	supply, err := st.TokenSupply("USDX")
	require.NoError(t, err)
	require.Equal(t, uint64(7), supply.Uint64())
	require.True(t, st.TokenExists("FLASH"))

	// A second start finds the reserve and writes nothing.
	before := db.Keys()
	res, err = Apply(context.Background(), st, engine, g, params)
	require.NoError(t, err)
	require.False(t, res.Created)
	require.Equal(t, before, db.Keys())
}

func TestApplyIsAllOrNothing(t *testing.T) {
	db := storage.NewMemDB()
	defer db.Close()
	st := state.NewManager(db)
	engine := reserve.NewEngine(nil)
	g, params := fixture()
	params.FeeTiers = []reserve.FeeTier{{Threshold: 1, Numerator: 1, Denominator: 0}}

	_, err := Apply(context.Background(), st, engine, g, params)
	require.ErrorIs(t, err, reserve.ErrInvalidFraction)
	require.False(t, st.TokenExists("BASE"))
	_, err = engine.Config()
	require.ErrorIs(t, err, reserve.ErrNotInitialized)

	g.Allocations = append(g.Allocations, config.Allocation{Address: address(0x03).String(), Symbol: "NOPE", Amount: 1})
	params.FeeTiers = nil
	_, err = Apply(context.Background(), st, engine, g, params)
	require.Error(t, err)
	require.False(t, st.TokenExists("BASE"))
}
