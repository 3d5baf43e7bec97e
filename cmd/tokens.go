package cmd

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"eth-wallet/config"
	"eth-wallet/pkg/client"
)

var filterSymbol string

var tokensCmd = &cobra.Command{
	Use:     "tokens",
	Aliases: []string{"list-tokens", "ls"},
	Short:   "List Ethereum tokens that --token can name by symbol",
	Long: `List the Ethereum tokens known to the NEAR Intents 1Click token list.

Any symbol listed here can be passed to "balance --token".

Examples:
  eth-wallet tokens
  eth-wallet tokens --symbol USD`,
	Args: cobra.NoArgs,
	Run:  runListTokens,
}

func init() {
	rootCmd.AddCommand(tokensCmd)

	tokensCmd.Flags().StringVar(&filterSymbol, "symbol", "", "Filter by token symbol")
}

func runListTokens(cmd *cobra.Command, args []string) {
	format := formatOf(cmd)

	// Load configuration
	cfg, err := config.Load(configFile)
	if err != nil {
		printError(err)
		osExit(1)
		return
	}

	// Create client
	apiClient := client.NewOneClickClient(cfg.OneClickJWT)

	stop := startSpinner(format, "Fetching supported tokens...")
	tokens, err := apiClient.Tokens(cmd.Context(), client.ChainEthereum)
	stop()

	if err != nil {
		printError(err)
		osExit(1)
		return
	}

	filtered := client.FilterTokens(tokens, filterSymbol)

	// Output
	if format != formatText {
		if filtered == nil {
			filtered = []client.Token{}
		}
		if err := writeStructured(os.Stdout, format, filtered); err != nil {
			printError(err)
		}
		return
	}
	displayTokens(filtered)
}

func displayTokens(tokens []client.Token) {
	if len(tokens) == 0 {
		fmt.Println("\nNo tokens found matching the criteria.")
		return
	}

	fmt.Println("\n" + strings.Repeat("=", 70))
	color.Green("                      ETHEREUM TOKENS")
	fmt.Println(strings.Repeat("=", 70) + "\n")

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "  SYMBOL\tDECIMALS\tCONTRACT")
	for _, token := range tokens {
		address := "native"
		if !token.Native() {
			address = token.Address.Hex()
		}
		fmt.Fprintf(w, "  %s\t%d\t%s\n", token.Symbol, token.Decimals, address)
	}
	w.Flush()

	fmt.Println("\n" + strings.Repeat("=", 70))
	fmt.Printf("\nTotal: %d tokens\n\n", len(tokens))
}
