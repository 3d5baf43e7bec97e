package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/briandowns/spinner"
	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"eth-wallet/pkg/session"
	"eth-wallet/pkg/types"
)

type outputFormat int

const (
	formatText outputFormat = iota
	formatJSON
	formatYAML
)

func formatOf(cmd *cobra.Command) outputFormat {
	if jsonOutput, _ := cmd.Flags().GetBool("json"); jsonOutput {
		return formatJSON
	}
	if yamlOutput, _ := cmd.Flags().GetBool("yaml"); yamlOutput {
		return formatYAML
	}
	return formatText
}

// startSpinner shows a spinner for text output; the returned func stops it
func startSpinner(format outputFormat, suffix string) func() {
	if format != formatText {
		return func() {}
	}
	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
	s.Suffix = " " + suffix
	s.Start()
	return s.Stop
}

// writeStructured encodes v as JSON or YAML
func writeStructured(w io.Writer, format outputFormat, v any) error {
	switch format {
	case formatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	default:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
}

// render prints a session snapshot in the selected format
func render(format outputFormat, snap session.Snapshot, verbose bool) {
	if format != formatText {
		if err := writeStructured(os.Stdout, format, snap); err != nil {
			printError(err)
		}
		return
	}
	displayBalances(os.Stdout, snap, verbose)
}

func displayBalances(w io.Writer, snap session.Snapshot, verbose bool) {
	fmt.Fprintln(w, "\n"+strings.Repeat("=", 70))
	color.New(color.FgGreen).Fprintln(w, "                        WALLET BALANCES")
	fmt.Fprintln(w, strings.Repeat("=", 70))

	account := color.HiBlackString("not connected")
	if !snap.Account.IsZero() {
		account = color.CyanString(string(snap.Account))
	}

	fmt.Fprintf(w, "\n  Account:     %s\n", account)
	fmt.Fprintf(w, "  %-12s %s\n", labelOf(snap.NativeBalance.Value, "ETH")+":", balanceText(snap.NativeBalance))
	fmt.Fprintf(w, "  %-12s %s\n", labelOf(snap.TokenBalance.Value, "Token")+":", balanceText(snap.TokenBalance))
	fmt.Fprintf(w, "  Price:       %s\n", priceText(snap.Price))

	usd := color.HiBlackString("-")
	if snap.USDValue != nil {
		usd = color.GreenString("$" + session.FormatUSD(*snap.USDValue))
	}
	fmt.Fprintf(w, "  USD Value:   %s\n", usd)

	if snap.Error != "" {
		fmt.Fprintf(w, "\n  %s\n", color.RedString(snap.Error))
	}

	if verbose && len(snap.Errors) > 0 {
		fmt.Fprintln(w, "\n  Recent errors:")
		for _, e := range snap.Errors {
			fmt.Fprintf(w, "    %s  %-15s %s\n",
				color.HiBlackString(e.At.Format("15:04:05")), e.Source, e.Message)
		}
	}

	fmt.Fprintln(w, "\n"+strings.Repeat("=", 70)+"\n")
}

func labelOf(reading types.BalanceReading, fallback string) string {
	if reading.Symbol != "" {
		return reading.Symbol
	}
	return fallback
}

func balanceText(f session.Field[types.BalanceReading]) string {
	return fieldText(f.State, f.HasValue, func() string {
		return color.YellowString(f.Value.Text)
	})
}

func priceText(f session.Field[types.PriceQuote]) string {
	return fieldText(f.State, f.HasValue, func() string {
		return formatPrice(f.Value.Value)
	})
}

// formatPrice renders a quote as received. Only the derived USD value is
// rounded to cents.
func formatPrice(v float64) string {
	return "$" + humanize.Commaf(v)
}

// fieldText renders a field by its fetch state. A failed refetch still shows
// the previous value, marked as stale.
func fieldText(state session.FetchState, hasValue bool, value func() string) string {
	switch {
	case state == session.Fetched:
		return value()
	case state == session.Failed && hasValue:
		return value() + " " + color.HiBlackString("(stale)")
	case state == session.Failed:
		return color.RedString("unavailable")
	case state == session.Fetching && hasValue:
		return value()
	case state == session.Fetching:
		return color.HiBlackString("fetching...")
	default:
		return color.HiBlackString("-")
	}
}
