package cmd

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"eth-wallet/config"
	"eth-wallet/pkg/chain"
	"eth-wallet/pkg/client"
	"eth-wallet/pkg/logger"
	"eth-wallet/pkg/parser"
	"eth-wallet/pkg/price"
	"eth-wallet/pkg/retrier"
	"eth-wallet/pkg/session"
	"eth-wallet/pkg/types"
	"eth-wallet/pkg/wallet"
)

// app holds everything a command needs, built from configuration
type app struct {
	cfg     *config.Config
	log     *zap.Logger
	session *session.Session
	closers []func()
}

// tokenOverride replaces the configured token for one invocation
type tokenOverride struct {
	ref   string
	asset string
}

// newApp loads configuration and wires the session. Only configuration
// errors are returned; unreachable services surface per field later.
func newApp(cmd *cobra.Command, override tokenOverride) (*app, error) {
	ctx := cmd.Context()

	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, err
	}

	level := cfg.LogLevel
	if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
		level = "debug"
	}
	log, err := logger.New(level)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	a := &app{cfg: cfg, log: log}

	connector, closeWallet := wallet.Open(ctx, wallet.Settings{
		RPCURL:      cfg.WalletRPCURL,
		KeystoreDir: cfg.KeystoreDir,
		Address:     cfg.Address,
	}, log)
	a.closers = append(a.closers, closeWallet)

	node, err := chain.Dial(ctx, cfg.RPCURL)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.closers = append(a.closers, node.Close)

	reader, err := chain.NewReader(node, cfg.NativeSymbol)
	if err != nil {
		a.Close()
		return nil, err
	}

	prices := price.NewCoinGecko(
		price.WithBaseURL(cfg.PriceBaseURL),
		price.WithAPIKey(cfg.PriceAPIKey),
	)

	sessCfg := session.Config{
		NativeSymbol: cfg.NativeSymbol,
		TokenAddress: common.HexToAddress(cfg.TokenAddress),
		TokenSymbol:  cfg.TokenSymbol,
		PriceAsset:   cfg.PriceAsset,
	}
	if override.asset != "" {
		sessCfg.PriceAsset = override.asset
	}
	if override.ref != "" {
		symbol, address, err := resolveToken(ctx, cfg, override.ref)
		if err != nil {
			a.Close()
			return nil, err
		}
		sessCfg.TokenSymbol = symbol
		sessCfg.TokenAddress = address
	}

	opts := []session.Option{
		session.WithLogger(log),
		session.WithObserver(func(e session.Event) {
			log.Debug("field settled",
				zap.String("field", e.Field),
				zap.Stringer("state", e.State),
				zap.Error(e.Err))
		}),
	}
	if cfg.Retries > 0 {
		opts = append(opts, session.WithRetrier(retrier.New(
			retrier.WithMaxRetries(cfg.Retries),
			retrier.WithInitialInterval(cfg.RetryInterval),
			retrier.WithRetryIf(transient),
			retrier.WithLogger(log),
		)))
	}

	a.session = session.New(connector, reader, reader, prices, sessCfg, opts...)
	return a, nil
}

// mustApp is newApp for Run functions: configuration errors are fatal
func mustApp(cmd *cobra.Command, override tokenOverride) *app {
	a, err := newApp(cmd, override)
	if err != nil {
		printError(err)
		osExit(1)
	}
	return a
}

// Close releases the wallet and node connections; later calls do nothing
func (a *app) Close() {
	closers := a.closers
	a.closers = nil
	for i := len(closers) - 1; i >= 0; i-- {
		closers[i]()
	}
	_ = a.log.Sync()
}

// resolveToken turns a --token value into a symbol and contract address.
// Symbols are looked up in the 1Click token list for Ethereum.
func resolveToken(ctx context.Context, cfg *config.Config, value string) (string, common.Address, error) {
	ref, err := parser.ParseTokenRef(value)
	if err != nil {
		return "", common.Address{}, err
	}

	symbol, address, err := client.ResolveTokenRef(ctx, client.NewOneClickClient(cfg.OneClickJWT), ref)
	if err != nil {
		return "", common.Address{}, fmt.Errorf("failed to resolve token %s: %w", ref, err)
	}

	if symbol == "" {
		symbol = tokenLabel(cfg, address)
	}
	return symbol, address, nil
}

// tokenLabel names a token given only by address
func tokenLabel(cfg *config.Config, address common.Address) string {
	if strings.EqualFold(cfg.TokenAddress, address.Hex()) {
		return cfg.TokenSymbol
	}
	hex := address.Hex()
	return hex[:6] + "..." + hex[len(hex)-4:]
}

// transient reports whether a failed fetch is worth retrying
func transient(err error) bool {
	return errors.Is(err, types.ErrNetworkError) || errors.Is(err, types.ErrProviderError)
}
