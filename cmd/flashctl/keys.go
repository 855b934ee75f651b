package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"flashreserve/crypto"
)

func newKeygenCmd(a *app) *cobra.Command {
	var (
		out   string
		light bool
		force bool
	)
	cmd := &cobra.Command{
		Use:   "keygen",
		Short: "Generate a signing key in an encrypted keystore",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !force {
				if _, err := os.Stat(out); err == nil {
					return fmt.Errorf("keystore %s already exists (use --force to overwrite)", out)
				}
			}
			pass, err := a.pass.Get()
			if err != nil {
				return err
			}
			key, err := crypto.GeneratePrivateKey()
			if err != nil {
				return err
			}
			cost := crypto.StandardCost
			if light {
				cost = crypto.LightCost
			}
			if err := crypto.SaveToKeystore(out, key, pass, cost); err != nil {
				return fmt.Errorf("write keystore: %w", err)
			}
			return printJSON(cmd.OutOrStdout(), map[string]string{
				"address":  key.PubKey().Address().String(),
				"keystore": out,
			})
		},
	}
	cmd.Flags().StringVar(&out, "out", "flash.keystore", "keystore output path")
	cmd.Flags().BoolVar(&light, "light", false, "use the fast scrypt parameters (tests and devnets)")
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing keystore")
	return cmd
}
