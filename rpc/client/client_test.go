package client

import (
	"bytes"
	"context"
	"errors"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"flashreserve/core/state"
	"flashreserve/crypto"
	"flashreserve/native/bank"
	"flashreserve/native/receivers"
	"flashreserve/native/reserve"
	"flashreserve/rpc"
	"flashreserve/storage"
	"flashreserve/storage/history"
)

func startServer(t *testing.T) (*httptest.Server, *crypto.PrivateKey, *crypto.PrivateKey) {
	t.Helper()
	db := storage.NewMemDB()
	t.Cleanup(db.Close)
	st := state.NewManager(db)
	authority, err := crypto.GeneratePrivateKey()
	require.NoError(t, err)
	user, err := crypto.GeneratePrivateKey()
	require.NoError(t, err)
	require.NoError(t, bank.RegisterToken(st, "BASE", "Base", 9, nil))
	require.NoError(t, bank.Credit(st, "BASE", user.PubKey().Address().Bytes(), big.NewInt(5_000)))

	engine := reserve.NewEngine(nil)
	engine.SetState(st)
	_, err = receivers.Install(engine.Borrowers())
	require.NoError(t, err)
	_, err = engine.Initialize(context.Background(), authority.PubKey().Address(), reserve.InitParams{
		ReserveAsset:       "BASE",
		ClaimToken:         "FLASH",
		BaseFee:            reserve.Fraction{Numerator: 1, Denominator: 100},
		Treasury:           authority.PubKey().Address(),
		TreasuryFeeShare:   reserve.Fraction{Numerator: 0, Denominator: 1},
		MaxFlashLoanAmount: 10_000,
	})
	require.NoError(t, err)

	srv, err := rpc.NewServer(rpc.Config{Faucet: true, FaucetAmount: 100}, rpc.Deps{Engine: engine})
	require.NoError(t, err)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts, authority, user
}

func TestClientRoundTrip(t *testing.T) {
	ts, authority, user := startServer(t)
	ctx := context.Background()
	c := New(ts.URL+"/", WithKey(user), WithHTTPClient(ts.Client()))

	addr, err := c.Address()
	require.NoError(t, err)
	require.True(t, addr.Equal(user.PubKey().Address()))

	staked, err := c.Stake(ctx, 2_000)
	require.NoError(t, err)
	require.Equal(t, uint64(2_000), staked.Minted)

	funded, err := c.Faucet(ctx)
	require.NoError(t, err)
	require.Equal(t, uint64(3_100), funded.Balance)

	subsidized, err := receivers.Address(receivers.NameSubsidized)
	require.NoError(t, err)
	_, err = c.FlashLoan(ctx, rpc.FlashLoanRequest{Amount: 1_000, Receiver: subsidized.String()})
	var rpcErr *Error
	require.True(t, errors.As(err, &rpcErr))
	require.Equal(t, http.StatusUnprocessableEntity, rpcErr.Status)
	require.Equal(t, "insufficient_balance", rpcErr.Code)

	repay, err := receivers.Address(receivers.NameRepay)
	require.NoError(t, err)
	receipt, err := c.FlashLoan(ctx, rpc.FlashLoanRequest{Amount: 1_000, Receiver: repay.String()})
	require.NoError(t, err)
	require.Equal(t, uint64(10), receipt.Fee)
	require.Equal(t, uint64(10), receipt.ReserveShare)

	snap, err := c.Snapshot(ctx)
	require.NoError(t, err)
	require.Equal(t, uint64(2_010), snap.Reserve)
	require.Equal(t, "1.005", snap.ExchangeRate)

	harvested, err := c.Harvest(ctx, 2_000)
	require.NoError(t, err)
	require.Equal(t, uint64(10), harvested.Owed)

	unstaked, err := c.Unstake(ctx, 2_000)
	require.NoError(t, err)
	require.Equal(t, uint64(2_000), unstaked.Redeemed)

	holdings, err := c.Holdings(ctx, addr)
	require.NoError(t, err)
	require.Zero(t, holdings.Claim)
	require.Equal(t, uint64(5_100), holdings.Base)

	record, err := c.Record(ctx, addr)
	require.NoError(t, err)
	require.True(t, record.Found)

	quote, err := c.Quote(ctx, 500)
	require.NoError(t, err)
	require.Equal(t, uint64(5), quote.Fee)

	list, err := c.Receivers(ctx)
	require.NoError(t, err)
	require.Len(t, list, 3)

	_, err = c.Admin(ctx, rpc.AdminSetPause, rpc.AdminRequest{Paused: true})
	require.True(t, errors.As(err, &rpcErr))
	require.Equal(t, http.StatusForbidden, rpcErr.Status)

	admin := New(ts.URL, WithKey(authority))
	view, err := admin.Admin(ctx, rpc.AdminUpdateFees, rpc.AdminRequest{Numerator: 2, Denominator: 100})
	require.NoError(t, err)
	require.Equal(t, reserve.Fraction{Numerator: 2, Denominator: 100}, view.BaseFee)

	cfg, err := New(ts.URL).Config(ctx)
	require.NoError(t, err)
	require.Equal(t, view.BaseFee, cfg.BaseFee)
}

func TestClientRequiresKeyForMutations(t *testing.T) {
	c := New("http://127.0.0.1:0")
	_, err := c.Stake(context.Background(), 1)
	require.Error(t, err)
	_, err = c.Address()
	require.Error(t, err)
}

func TestClientSignsWithItsClock(t *testing.T) {
	ts, _, user := startServer(t)
	skewed := func() time.Time { return time.Now().Add(-10 * time.Minute) }
	c := New(ts.URL, WithKey(user), WithClock(skewed))

	_, err := c.Stake(context.Background(), 10)
	var rpcErr *Error
	require.True(t, errors.As(err, &rpcErr))
	require.Equal(t, http.StatusUnauthorized, rpcErr.Status)
	require.Equal(t, "unauthenticated", rpcErr.Code)

	holdings, err := c.Holdings(context.Background(), user.PubKey().Address())
	require.NoError(t, err)
	require.Zero(t, holdings.Claim)
}

func TestClientHistoryDisabled(t *testing.T) {
	ts, _, _ := startServer(t)
	c := New(ts.URL)
	_, err := c.History(context.Background(), history.Filter{})
	var rpcErr *Error
	require.True(t, errors.As(err, &rpcErr))
	require.Equal(t, "history_disabled", rpcErr.Code)

	var buf bytes.Buffer
	require.Error(t, c.ExportHistory(context.Background(), &buf, history.Filter{}))
	require.Zero(t, buf.Len())
}

func TestDecodeErrorFallsBackToBody(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "upstream down", http.StatusBadGateway)
	}))
	defer ts.Close()
	_, err := New(ts.URL).Snapshot(context.Background())
	var rpcErr *Error
	require.True(t, errors.As(err, &rpcErr))
	require.Equal(t, http.StatusBadGateway, rpcErr.Status)
	require.Equal(t, "http_error", rpcErr.Code)
	require.Equal(t, "upstream down", rpcErr.Message)
}
