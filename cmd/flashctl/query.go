package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"flashreserve/crypto"
	"flashreserve/storage/history"
)

func newQueryCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "query",
		Short: "Read reserve state",
	}
	run := func(fn func(cmd *cobra.Command, args []string) (any, error)) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, args []string) error {
			out, err := fn(cmd, args)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), out)
		}
	}
	// account resolves an optional address argument, defaulting to the
	// keystore's own address.
	account := func(args []string) (crypto.Address, error) {
		if len(args) == 1 {
			return crypto.DecodeAddress(args[0])
		}
		key, err := a.key()
		if err != nil {
			return crypto.Address{}, err
		}
		return key.PubKey().Address(), nil
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "config",
			Short: "Show the reserve configuration",
			Args:  cobra.NoArgs,
			RunE: run(func(cmd *cobra.Command, _ []string) (any, error) {
				ctx, cancel := a.context(cmd)
				defer cancel()
				c := a.reader()
				return c.Config(ctx)
			}),
		},
		&cobra.Command{
			Use:   "snapshot",
			Short: "Show reserve balance, claim supply and exchange rate",
			Args:  cobra.NoArgs,
			RunE: run(func(cmd *cobra.Command, _ []string) (any, error) {
				ctx, cancel := a.context(cmd)
				defer cancel()
				c := a.reader()
				return c.Snapshot(ctx)
			}),
		},
		&cobra.Command{
			Use:   "quote <amount>",
			Short: "Quote the fee of a flash loan",
			Args:  cobra.ExactArgs(1),
			RunE: run(func(cmd *cobra.Command, args []string) (any, error) {
				amount, err := parseAmount(args[0])
				if err != nil {
					return nil, err
				}
				ctx, cancel := a.context(cmd)
				defer cancel()
				c := a.reader()
				return c.Quote(ctx, amount)
			}),
		},
		&cobra.Command{
			Use:   "holdings [address]",
			Short: "Show reserve-asset and claim-token balances",
			Args:  cobra.MaximumNArgs(1),
			RunE: run(func(cmd *cobra.Command, args []string) (any, error) {
				addr, err := account(args)
				if err != nil {
					return nil, err
				}
				ctx, cancel := a.context(cmd)
				defer cancel()
				c := a.reader()
				return c.Holdings(ctx, addr)
			}),
		},
		&cobra.Command{
			Use:   "record [address]",
			Short: "Show an account's last flash-loan time",
			Args:  cobra.MaximumNArgs(1),
			RunE: run(func(cmd *cobra.Command, args []string) (any, error) {
				addr, err := account(args)
				if err != nil {
					return nil, err
				}
				ctx, cancel := a.context(cmd)
				defer cancel()
				c := a.reader()
				return c.Record(ctx, addr)
			}),
		},
		&cobra.Command{
			Use:   "receivers",
			Short: "List registered flash-loan receivers",
			Args:  cobra.NoArgs,
			RunE: run(func(cmd *cobra.Command, _ []string) (any, error) {
				ctx, cancel := a.context(cmd)
				defer cancel()
				c := a.reader()
				return c.Receivers(ctx)
			}),
		},
	)
	return cmd
}

func newHistoryCmd(a *app) *cobra.Command {
	var (
		filter history.Filter
		export string
	)
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List or export journaled reserve events",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c := a.reader()
			ctx, cancel := a.context(cmd)
			defer cancel()
			if export == "" {
				entries, err := c.History(ctx, filter)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), entries)
			}
			f, err := os.Create(export)
			if err != nil {
				return err
			}
			if err := c.ExportHistory(ctx, f, filter); err != nil {
				f.Close()
				return err
			}
			if err := f.Close(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "history written to %s\n", export)
			return nil
		},
	}
	cmd.Flags().StringVar(&filter.Type, "type", "", "event type filter")
	cmd.Flags().StringVar(&filter.Actor, "actor", "", "actor address filter")
	cmd.Flags().Uint64Var(&filter.AfterID, "after", 0, "only entries with a larger ID")
	cmd.Flags().IntVar(&filter.Limit, "limit", 0, "maximum entries (server default when 0)")
	cmd.Flags().StringVar(&export, "export", "", "write a parquet file instead of printing JSON")
	return cmd
}
