package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"flashreserve/cmd/internal/passphrase"
	"flashreserve/crypto"
	"flashreserve/rpc/client"
)

const passEnv = "FLASH_KEY_PASS"

// app carries the persistent flags shared by every subcommand.
type app struct {
	profilePath string
	url         string
	keystore    string
	timeout     time.Duration

	profile *Profile
	pass    *passphrase.Source
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	a := &app{pass: passphrase.NewSource(passEnv, "keystore", passphrase.AllowEmpty())}
	root := &cobra.Command{
		Use:           "flashctl",
		Short:         "Operate a flashreserve node",
		Long:          "flashctl signs and submits reserve operations to a flashd node and inspects its state.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			return a.loadProfile()
		},
	}
	flags := root.PersistentFlags()
	flags.StringVar(&a.profilePath, "profile", defaultProfilePath(), "profile file holding the node URL and keystore path")
	flags.StringVar(&a.url, "url", "", "node RPC URL (overrides the profile)")
	flags.StringVar(&a.keystore, "keystore", "", "signing keystore (overrides the profile)")
	flags.DurationVar(&a.timeout, "timeout", 30*time.Second, "request timeout")

	root.AddCommand(
		newKeygenCmd(a),
		newProfileCmd(a),
		newStakeCmd(a),
		newUnstakeCmd(a),
		newHarvestCmd(a),
		newFlashLoanCmd(a),
		newFaucetCmd(a),
		newAdminCmd(a),
		newQueryCmd(a),
		newHistoryCmd(a),
	)
	return root
}

func (a *app) loadProfile() error {
	p, err := LoadProfile(a.profilePath)
	if err != nil {
		return err
	}
	if a.url != "" {
		p.URL = a.url
	}
	if a.keystore != "" {
		p.Keystore = a.keystore
	}
	a.profile = p
	return nil
}

func (a *app) key() (*crypto.PrivateKey, error) {
	if a.profile.Keystore == "" {
		return nil, fmt.Errorf("no keystore configured; pass --keystore or run 'flashctl profile set'")
	}
	pass, err := a.pass.Get()
	if err != nil {
		return nil, err
	}
	return crypto.LoadFromKeystore(a.profile.Keystore, pass)
}

// signer returns a client that signs with the profile's keystore.
func (a *app) signer() (*client.Client, error) {
	key, err := a.key()
	if err != nil {
		return nil, err
	}
	return client.New(a.profile.URL, client.WithKey(key)), nil
}

// reader returns an unsigned client for queries.
func (a *app) reader() *client.Client { return client.New(a.profile.URL) }

func (a *app) context(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return context.WithTimeout(cmd.Context(), a.timeout)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func parseAmount(raw string) (uint64, error) {
	v, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q: %w", raw, err)
	}
	return v, nil
}
