package main

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"flashreserve/rpc"
	"flashreserve/rpc/client"
)

// amountCmd builds a signed command taking a single amount argument.
func amountCmd(a *app, use, short string, call func(c *client.Client, cmd *cobra.Command, amount uint64) (any, error)) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <amount>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			amount, err := parseAmount(args[0])
			if err != nil {
				return err
			}
			c, err := a.signer()
			if err != nil {
				return err
			}
			out, err := call(c, cmd, amount)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), out)
		},
	}
}

func newStakeCmd(a *app) *cobra.Command {
	return amountCmd(a, "stake", "Deposit reserve asset for claim tokens", func(c *client.Client, cmd *cobra.Command, amount uint64) (any, error) {
		ctx, cancel := a.context(cmd)
		defer cancel()
		return c.Stake(ctx, amount)
	})
}

func newUnstakeCmd(a *app) *cobra.Command {
	return amountCmd(a, "unstake", "Redeem claim tokens for their share of the reserve", func(c *client.Client, cmd *cobra.Command, amount uint64) (any, error) {
		ctx, cancel := a.context(cmd)
		defer cancel()
		return c.Unstake(ctx, amount)
	})
}

func newHarvestCmd(a *app) *cobra.Command {
	return amountCmd(a, "harvest", "Collect the yield accrued on claim tokens", func(c *client.Client, cmd *cobra.Command, amount uint64) (any, error) {
		ctx, cancel := a.context(cmd)
		defer cancel()
		return c.Harvest(ctx, amount)
	})
}

func newFlashLoanCmd(a *app) *cobra.Command {
	var (
		receiver string
		payload  string
		accounts []string
	)
	cmd := amountCmd(a, "flash-loan", "Borrow claim tokens for the duration of a receiver callback", func(c *client.Client, cmd *cobra.Command, amount uint64) (any, error) {
		raw, err := hex.DecodeString(strings.TrimPrefix(payload, "0x"))
		if err != nil {
			return nil, fmt.Errorf("payload: %w", err)
		}
		ctx, cancel := a.context(cmd)
		defer cancel()
		return c.FlashLoan(ctx, rpc.FlashLoanRequest{Amount: amount, Receiver: receiver, Payload: raw, Accounts: accounts})
	})
	cmd.Flags().StringVar(&receiver, "receiver", "", "registered receiver address")
	cmd.Flags().StringVar(&payload, "payload", "", "hex payload passed to the receiver")
	cmd.Flags().StringSliceVar(&accounts, "account", nil, "extra account handed to the receiver (repeatable)")
	_ = cmd.MarkFlagRequired("receiver")
	return cmd
}

func newFaucetCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "faucet",
		Short: "Request development funds from a node with the faucet enabled",
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := a.signer()
			if err != nil {
				return err
			}
			ctx, cancel := a.context(cmd)
			defer cancel()
			out, err := c.Faucet(ctx)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), out)
		},
	}
}
