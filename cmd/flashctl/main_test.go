package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"flashreserve/core/state"
	"flashreserve/crypto"
	"flashreserve/native/bank"
	"flashreserve/native/receivers"
	"flashreserve/native/reserve"
	"flashreserve/rpc"
	"flashreserve/storage"
)

func startNode(t *testing.T, authority crypto.Address) *httptest.Server {
	t.Helper()
	db := storage.NewMemDB()
	t.Cleanup(db.Close)
	st := state.NewManager(db)
	require.NoError(t, bank.RegisterToken(st, "BASE", "Base", 9, nil))
	engine := reserve.NewEngine(nil)
	engine.SetState(st)
	_, err := receivers.Install(engine.Borrowers())
	require.NoError(t, err)
	_, err = engine.Initialize(context.Background(), authority, reserve.InitParams{
		ReserveAsset:       "BASE",
		ClaimToken:         "FLASH",
		BaseFee:            reserve.Fraction{Numerator: 1, Denominator: 100},
		Treasury:           authority,
		TreasuryFeeShare:   reserve.Fraction{Numerator: 1, Denominator: 2},
		MaxFlashLoanAmount: 1_000,
	})
	require.NoError(t, err)
	srv, err := rpc.NewServer(rpc.Config{Faucet: true, FaucetAmount: 500}, rpc.Deps{Engine: engine})
	require.NoError(t, err)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func execute(t *testing.T, args ...string) ([]byte, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.Bytes(), err
}

func TestCommandsAgainstNode(t *testing.T) {
	t.Setenv(passEnv, "correct horse")
	dir := t.TempDir()
	profile := filepath.Join(dir, "profile.yaml")
	keystore := filepath.Join(dir, "user.keystore")

	out, err := execute(t, "--profile", profile, "keygen", "--light", "--out", keystore)
	require.NoError(t, err)
	var generated map[string]string
	require.NoError(t, json.Unmarshal(out, &generated))
	require.Equal(t, keystore, generated["keystore"])

	_, err = execute(t, "--profile", profile, "keygen", "--light", "--out", keystore)
	require.ErrorContains(t, err, "already exists")

	// The key is not the authority, so admin calls must fail.
	other, err := crypto.GeneratePrivateKey()
	require.NoError(t, err)
	ts := startNode(t, other.PubKey().Address())

	_, err = execute(t, "--profile", profile, "--url", ts.URL, "--keystore", keystore, "profile", "set")
	require.NoError(t, err)
	loaded, err := LoadProfile(profile)
	require.NoError(t, err)
	require.Equal(t, ts.URL, loaded.URL)
	require.Equal(t, keystore, loaded.Keystore)

	out, err = execute(t, "--profile", profile, "faucet")
	require.NoError(t, err)
	var funded rpc.FundResponse
	require.NoError(t, json.Unmarshal(out, &funded))
	require.Equal(t, uint64(500), funded.Balance)
	require.Equal(t, generated["address"], funded.Address)

	out, err = execute(t, "--profile", profile, "stake", "400")
	require.NoError(t, err)
	var staked reserve.StakeReceipt
	require.NoError(t, json.Unmarshal(out, &staked))
	require.Equal(t, uint64(400), staked.Minted)

	repay, err := receivers.Address(receivers.NameRepay)
	require.NoError(t, err)
	out, err = execute(t, "--profile", profile, "flash-loan", "300", "--receiver", repay.String())
	require.NoError(t, err)
	var loan reserve.FlashLoanReceipt
	require.NoError(t, json.Unmarshal(out, &loan))
	require.Equal(t, uint64(3), loan.Fee)

	out, err = execute(t, "--profile", profile, "query", "snapshot")
	require.NoError(t, err)
	var snap reserve.Snapshot
	require.NoError(t, json.Unmarshal(out, &snap))
	require.Equal(t, uint64(402), snap.Reserve)

	out, err = execute(t, "--profile", profile, "query", "holdings")
	require.NoError(t, err)
	var holdings reserve.Holdings
	require.NoError(t, json.Unmarshal(out, &holdings))
	require.Equal(t, uint64(97), holdings.Base)
	require.Equal(t, uint64(400), holdings.Claim)

	_, err = execute(t, "--profile", profile, "admin", rpc.AdminSetPause, "true")
	require.ErrorContains(t, err, "unauthorized")

	_, err = execute(t, "--profile", profile, "admin", rpc.AdminSetPause, "maybe")
	require.ErrorContains(t, err, "invalid pause flag")

	_, err = execute(t, "--profile", profile, "stake", "lots")
	require.ErrorContains(t, err, "invalid amount")

	_, err = execute(t, "--profile", profile, "history")
	require.ErrorContains(t, err, "history_disabled")
}

func TestAdminSpecsCoverEveryOperation(t *testing.T) {
	var ops []string
	for _, spec := range adminSpecs {
		ops = append(ops, spec.op)
	}
	require.Equal(t, rpc.AdminOps, ops)

	req, err := adminSpecs[2].build([]string{"10", "1", "50"})
	require.NoError(t, err)
	require.Equal(t, rpc.AdminRequest{Threshold: 10, Numerator: 1, Denominator: 50}, req)
}

func TestLoadProfileDefaults(t *testing.T) {
	p, err := LoadProfile(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	require.Equal(t, defaultURL, p.URL)
	require.Empty(t, p.Keystore)
}
