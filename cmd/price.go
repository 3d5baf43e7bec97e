package cmd

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var priceAsset string

var priceCmd = &cobra.Command{
	Use:   "price",
	Short: "Show the spot USD price of the native asset",
	Long: `Fetch the current USD price from CoinGecko. No wallet is needed.

Examples:
  eth-wallet price
  eth-wallet price --asset wrapped-bitcoin --json`,
	Args: cobra.NoArgs,
	Run:  runPrice,
}

func init() {
	rootCmd.AddCommand(priceCmd)

	priceCmd.Flags().StringVar(&priceAsset, "asset", "", "CoinGecko asset id (default from config)")
}

func runPrice(cmd *cobra.Command, args []string) {
	format := formatOf(cmd)

	a := mustApp(cmd, tokenOverride{asset: priceAsset})
	defer a.Close()

	stop := startSpinner(format, "Fetching price...")
	err := a.session.FetchPrice(cmd.Context())
	stop()

	snap := a.session.Snapshot()
	if err != nil {
		if format != formatText {
			_ = writeStructured(os.Stdout, format, map[string]string{"error": snap.Error})
		} else {
			color.Red("\n%s\n", snap.Error)
		}
		a.Close()
		osExit(1)
		return
	}

	quote := snap.Price.Value
	if format != formatText {
		if err := writeStructured(os.Stdout, format, quote); err != nil {
			printError(err)
		}
		return
	}

	fmt.Printf("\n  %s: %s\n\n",
		color.CyanString(quote.AssetID),
		color.GreenString(formatPrice(quote.Value)))
}
