package cmd

import (
	"github.com/spf13/cobra"
)

var balanceToken string

var balanceCmd = &cobra.Command{
	Use:     "balance",
	Aliases: []string{"show"},
	Short:   "Show the ETH balance, token balance, ETH price and USD value",
	Long: `Connect to the wallet, fetch every value once and print them together.

A value that cannot be fetched is shown as unavailable with the reason; the
other values are still shown.

--token selects the ERC-20 token to read instead of the configured one. It
takes a contract address, a symbol looked up in the 1Click token list, or
SYMBOL:ADDRESS.

Examples:
  eth-wallet balance --address 0x000000000000000000000000000000000000dEaD
  eth-wallet balance --token USDC
  eth-wallet balance --token 0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48 --json`,
	Args: cobra.NoArgs,
	Run:  runBalance,
}

func init() {
	rootCmd.AddCommand(balanceCmd)

	balanceCmd.Flags().StringVar(&balanceToken, "token", "", "Token to read (address, symbol or SYMBOL:ADDRESS)")
}

func runBalance(cmd *cobra.Command, args []string) {
	format := formatOf(cmd)
	verbose, _ := cmd.Flags().GetBool("verbose")

	a := mustApp(cmd, tokenOverride{ref: balanceToken})
	defer a.Close()

	ctx := cmd.Context()

	stop := startSpinner(format, "Fetching balances...")
	// a failed connect is recorded in the session and the price is still shown
	_, _ = a.session.Connect(ctx)
	a.session.Refresh(ctx)
	stop()

	render(format, a.session.Snapshot(), verbose)
}
