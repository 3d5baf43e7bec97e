package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var configFile string

// osExit is replaced in tests
var osExit = os.Exit

var rootCmd = &cobra.Command{
	Use:   "eth-wallet",
	Short: "Show an Ethereum account's ETH and token balances with their USD value",
	Long: `eth-wallet connects to a wallet, reads the account's ETH balance and one
ERC-20 token balance, fetches the ETH spot price and shows the USD value of
the ETH holding.

The wallet is a JSON-RPC signer (--wallet-rpc), a local keystore directory
(--keystore) or a watch-only address (--address).

Examples:
  eth-wallet balance --address 0x000000000000000000000000000000000000dEaD
  eth-wallet balance --keystore ~/.ethereum/keystore --token USDC
  eth-wallet watch --wallet-rpc http://localhost:8550 --interval 30s
  eth-wallet price
  eth-wallet tokens --symbol usd`,
	Version: "0.1.0",
}

// Execute runs the root command. Ctrl+C cancels the command context.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return rootCmd.ExecuteContext(ctx)
}

func init() {
	// Add global flags
	flags := rootCmd.PersistentFlags()
	flags.BoolP("verbose", "v", false, "Enable verbose output")
	flags.BoolP("json", "j", false, "Output in JSON format")
	flags.Bool("yaml", false, "Output in YAML format")
	flags.StringVar(&configFile, "config", "", "Config file (default $HOME/.eth-wallet.yaml)")
	flags.String("rpc-url", "", "Ethereum JSON-RPC endpoint")
	flags.String("wallet-rpc", "", "Wallet JSON-RPC endpoint exposing eth_requestAccounts")
	flags.String("keystore", "", "Keystore directory to take the account from")
	flags.String("address", "", "Watch-only account address")
	flags.String("log-level", "", "Log level (debug, info, warn, error)")
	flags.Int("retries", 0, "Retry failed fetches up to N times")

	bindFlag("rpc_url", "rpc-url")
	bindFlag("wallet_rpc_url", "wallet-rpc")
	bindFlag("keystore_dir", "keystore")
	bindFlag("address", "address")
	bindFlag("log_level", "log-level")
	bindFlag("retries", "retries")
}

// bindFlag lets a persistent flag override the config key when set
func bindFlag(key, flag string) {
	if err := viper.BindPFlag(key, rootCmd.PersistentFlags().Lookup(flag)); err != nil {
		panic(err)
	}
}

func printError(err error) {
	fmt.Printf("\nError: %v\n\n", err)
}
