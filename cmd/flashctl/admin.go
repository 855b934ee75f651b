package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"flashreserve/rpc"
)

type adminSpec struct {
	op    string
	args  string
	short string
	nargs int
	build func(args []string) (rpc.AdminRequest, error)
}

func parseAll(args []string) ([]uint64, error) {
	out := make([]uint64, len(args))
	for i, raw := range args {
		v, err := parseAmount(raw)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func fractionArgs(args []string) (rpc.AdminRequest, error) {
	v, err := parseAll(args)
	if err != nil {
		return rpc.AdminRequest{}, err
	}
	return rpc.AdminRequest{Numerator: v[0], Denominator: v[1]}, nil
}

var adminSpecs = []adminSpec{
	{op: rpc.AdminUpdateFees, args: "<numerator> <denominator>", short: "Set the base flash-loan fee", nargs: 2, build: fractionArgs},
	{op: rpc.AdminSetPause, args: "<true|false>", short: "Pause or resume flash loans", nargs: 1, build: func(args []string) (rpc.AdminRequest, error) {
		paused, err := strconv.ParseBool(args[0])
		if err != nil {
			return rpc.AdminRequest{}, fmt.Errorf("invalid pause flag %q", args[0])
		}
		return rpc.AdminRequest{Paused: paused}, nil
	}},
	{op: rpc.AdminAddFeeTier, args: "<threshold> <numerator> <denominator>", short: "Append a fee tier", nargs: 3, build: func(args []string) (rpc.AdminRequest, error) {
		v, err := parseAll(args)
		if err != nil {
			return rpc.AdminRequest{}, err
		}
		return rpc.AdminRequest{Threshold: v[0], Numerator: v[1], Denominator: v[2]}, nil
	}},
	{op: rpc.AdminClearFeeTiers, short: "Remove every fee tier", build: func([]string) (rpc.AdminRequest, error) {
		return rpc.AdminRequest{}, nil
	}},
	{op: rpc.AdminSetTreasury, args: "<address>", short: "Change the treasury account", nargs: 1, build: func(args []string) (rpc.AdminRequest, error) {
		return rpc.AdminRequest{Treasury: args[0]}, nil
	}},
	{op: rpc.AdminSetTreasuryFeeShare, args: "<numerator> <denominator>", short: "Set the treasury's share of each fee", nargs: 2, build: fractionArgs},
	{op: rpc.AdminSetMaxFlashLoan, args: "<amount>", short: "Set the largest permitted loan", nargs: 1, build: func(args []string) (rpc.AdminRequest, error) {
		v, err := parseAmount(args[0])
		return rpc.AdminRequest{Amount: v}, err
	}},
	{op: rpc.AdminSetCooldown, args: "<seconds>", short: "Set the per-caller loan cooldown", nargs: 1, build: func(args []string) (rpc.AdminRequest, error) {
		v, err := parseAmount(args[0])
		return rpc.AdminRequest{Period: v}, err
	}},
}

func newAdminCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "admin",
		Short: "Authority-only configuration changes",
	}
	for _, spec := range adminSpecs {
		spec := spec
		use := spec.op
		if spec.args != "" {
			use += " " + spec.args
		}
		cmd.AddCommand(&cobra.Command{
			Use:   use,
			Short: spec.short,
			Args:  cobra.ExactArgs(spec.nargs),
			RunE: func(cmd *cobra.Command, args []string) error {
				req, err := spec.build(args)
				if err != nil {
					return err
				}
				c, err := a.signer()
				if err != nil {
					return err
				}
				ctx, cancel := a.context(cmd)
				defer cancel()
				view, err := c.Admin(ctx, spec.op, req)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), view)
			},
		})
	}
	return cmd
}
