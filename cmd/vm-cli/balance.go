package main

import (
	"fmt"

	"github.com/holiman/uint256"
	"github.com/spf13/cobra"

	"github.com/smartacct/vm/core"
)

var assetAddr string

var balanceCmd = &cobra.Command{
	Use:   "balance <address>",
	Short: "Query an account balance",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		addr, err := core.AddressFromString(args[0])
		if err != nil {
			return fmt.Errorf("invalid address: %w", err)
		}
		engine, err := newEngine()
		if err != nil {
			return err
		}
		ctx := engine.GetContext()

		if assetAddr == "" {
			fmt.Printf("%s native %s\n", addr, ctx.Balance(addr).Dec())
			return nil
		}
		asset, err := core.AddressFromString(assetAddr)
		if err != nil {
			return fmt.Errorf("invalid asset address: %w", err)
		}
		balance, err := ctx.TokenBalance(asset, addr)
		if err != nil {
			return err
		}
		fmt.Printf("%s %s %s\n", addr, asset, balance.Dec())
		return nil
	},
}

var mintCmd = &cobra.Command{
	Use:   "mint <address> <amount>",
	Short: "Credit funds to an account",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		addr, err := core.AddressFromString(args[0])
		if err != nil {
			return fmt.Errorf("invalid address: %w", err)
		}
		amount, err := uint256.FromDecimal(args[1])
		if err != nil {
			return fmt.Errorf("invalid amount: %w", err)
		}
		engine, err := newEngine()
		if err != nil {
			return err
		}
		ctx := engine.GetContext()

		if assetAddr == "" {
			return ctx.Mint(addr, amount)
		}
		asset, err := core.AddressFromString(assetAddr)
		if err != nil {
			return fmt.Errorf("invalid asset address: %w", err)
		}
		if err := ctx.CreateToken(asset); err != nil {
			return err
		}
		return ctx.MintToken(asset, addr, amount)
	},
}

func init() {
	balanceCmd.Flags().StringVarP(&assetAddr, "asset", "a", "", "token asset address (empty for native)")
	mintCmd.Flags().StringVarP(&assetAddr, "asset", "a", "", "token asset address (empty for native)")
}
