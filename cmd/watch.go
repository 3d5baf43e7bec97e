package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

var watchToken string

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Keep the balances and price up to date",
	Long: `Connect once, then on every interval re-check the wallet's active account
and refetch every value. Results fetched for an account that is no longer
active are discarded.

With --json each round is written as one JSON object per line.

Examples:
  eth-wallet watch --keystore ~/.ethereum/keystore
  eth-wallet watch --interval 30s --metrics-addr :9100`,
	Args: cobra.NoArgs,
	Run:  runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)

	watchCmd.Flags().Duration("interval", 0, "Refresh interval (default from config, 15s)")
	watchCmd.Flags().String("metrics-addr", "", "Serve Prometheus metrics on this address")
	watchCmd.Flags().StringVar(&watchToken, "token", "", "Token to read (address, symbol or SYMBOL:ADDRESS)")

	_ = viper.BindPFlag("refresh_interval", watchCmd.Flags().Lookup("interval"))
	_ = viper.BindPFlag("metrics_addr", watchCmd.Flags().Lookup("metrics-addr"))
}

func runWatch(cmd *cobra.Command, args []string) {
	format := formatOf(cmd)
	verbose, _ := cmd.Flags().GetBool("verbose")
	if format == formatYAML {
		printError(errors.New("watch mode supports text or JSON output"))
		osExit(1)
		return
	}

	a := mustApp(cmd, tokenOverride{ref: watchToken})
	defer a.Close()

	ctx := cmd.Context()

	if a.cfg.MetricsAddr != "" {
		srv := serveMetrics(a.cfg.MetricsAddr, a.log)
		defer shutdownMetrics(srv, a.log)
	}

	if format == formatText {
		fmt.Printf("\nWatching wallet balances every %s. Press Ctrl+C to stop.\n", a.cfg.RefreshInterval)
	}

	ticker := time.NewTicker(a.cfg.RefreshInterval)
	defer ticker.Stop()

	// Check immediately first
	watchRound(ctx, a, format, verbose)

	// Then check periodically
	for {
		select {
		case <-ctx.Done():
			if format == formatText {
				color.Yellow("\nStopped watching.")
			}
			return
		case <-ticker.C:
			watchRound(ctx, a, format, verbose)
		}
	}
}

// watchRound connects if needed, follows account switches and refreshes
func watchRound(ctx context.Context, a *app, format outputFormat, verbose bool) {
	if !a.session.Connected() {
		_, _ = a.session.Connect(ctx)
	} else if changed, err := a.session.SyncAccount(ctx); err != nil {
		a.log.Debug("account sync failed", zap.Error(err))
	} else if changed && format == formatText {
		color.Yellow("\nActive account changed to %s", a.session.Account())
	}

	a.session.Refresh(ctx)
	if ctx.Err() != nil {
		return
	}

	snap := a.session.Snapshot()
	if format == formatJSON {
		// one object per line
		if err := json.NewEncoder(os.Stdout).Encode(snap); err != nil {
			printError(err)
		}
		return
	}
	displayBalances(os.Stdout, snap, verbose)
}

func serveMetrics(addr string, log *zap.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Info("serving metrics", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("metrics server failed", zap.Error(err))
		}
	}()

	return srv
}

func shutdownMetrics(srv *http.Server, log *zap.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Debug("metrics shutdown", zap.Error(err))
	}
}
