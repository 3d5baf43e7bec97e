package cmd

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var connectCmd = &cobra.Command{
	Use:   "connect",
	Short: "Connect to the wallet and print the active account",
	Long: `Ask the configured wallet for permission and print the first account it exposes.

Examples:
  eth-wallet connect --wallet-rpc http://localhost:8550
  eth-wallet connect --keystore ~/.ethereum/keystore`,
	Args: cobra.NoArgs,
	Run:  runConnect,
}

func init() {
	rootCmd.AddCommand(connectCmd)
}

func runConnect(cmd *cobra.Command, args []string) {
	format := formatOf(cmd)

	a := mustApp(cmd, tokenOverride{})
	defer a.Close()

	stop := startSpinner(format, "Connecting to wallet...")
	handle, err := a.session.Connect(cmd.Context())
	stop()

	if format != formatText {
		out := struct {
			Account string `json:"account,omitempty" yaml:"account,omitempty"`
			Error   string `json:"error,omitempty" yaml:"error,omitempty"`
		}{Account: string(handle), Error: a.session.LastError()}
		if werr := writeStructured(os.Stdout, format, out); werr != nil {
			printError(werr)
		}
	} else if err != nil {
		color.Red("\n%s\n", a.session.LastError())
	} else {
		fmt.Printf("\nConnected: %s\n\n", color.CyanString(string(handle)))
	}

	if err != nil {
		a.Close()
		osExit(1)
		return
	}
}
