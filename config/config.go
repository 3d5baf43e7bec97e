package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/viper"
)

const (
	DefaultRPCURL       = "https://ethereum-rpc.publicnode.com"
	DefaultTokenAddress = "0xdAC17F958D2ee523a2206206994597C13D831ec7"
	DefaultPriceBaseURL = "https://api.coingecko.com/api/v3"
)

// ErrInvalid marks configuration that cannot be used
var ErrInvalid = errors.New("invalid configuration")

// Config holds the application configuration
type Config struct {
	RPCURL          string
	WalletRPCURL    string
	KeystoreDir     string
	Address         string
	NativeSymbol    string
	TokenAddress    string
	TokenSymbol     string
	PriceBaseURL    string
	PriceAsset      string
	PriceAPIKey     string
	OneClickJWT     string
	Retries         int
	RetryInterval   time.Duration
	RefreshInterval time.Duration
	MetricsAddr     string
	LogLevel        string
}

// SetDefaults registers default values on the global viper instance
func SetDefaults() {
	viper.SetDefault("rpc_url", DefaultRPCURL)
	viper.SetDefault("native_symbol", "ETH")
	viper.SetDefault("token_address", DefaultTokenAddress)
	viper.SetDefault("token_symbol", "USDT")
	viper.SetDefault("price_base_url", DefaultPriceBaseURL)
	viper.SetDefault("price_asset", "ethereum")
	viper.SetDefault("retries", 0)
	viper.SetDefault("retry_interval", time.Second)
	viper.SetDefault("refresh_interval", 15*time.Second)
	viper.SetDefault("log_level", "info")
}

// Load reads configuration from environment variables, bound flags and an
// optional config file. configFile overrides the default search paths.
func Load(configFile string) (*Config, error) {
	if configFile != "" {
		viper.SetConfigFile(configFile)
	} else {
		viper.SetConfigName(".eth-wallet")
		viper.SetConfigType("yaml")
		viper.AddConfigPath("$HOME")
		viper.AddConfigPath(".")
	}

	SetDefaults()

	// Read from environment variables
	viper.SetEnvPrefix("ETH_WALLET")
	viper.AutomaticEnv()

	// Read config file (optional unless named explicitly)
	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("%w: reading config file: %v", ErrInvalid, err)
		}
	}

	cfg := &Config{
		RPCURL:          strings.TrimSpace(viper.GetString("rpc_url")),
		WalletRPCURL:    strings.TrimSpace(viper.GetString("wallet_rpc_url")),
		KeystoreDir:     viper.GetString("keystore_dir"),
		Address:         strings.TrimSpace(viper.GetString("address")),
		NativeSymbol:    viper.GetString("native_symbol"),
		TokenAddress:    strings.TrimSpace(viper.GetString("token_address")),
		TokenSymbol:     viper.GetString("token_symbol"),
		PriceBaseURL:    viper.GetString("price_base_url"),
		PriceAsset:      viper.GetString("price_asset"),
		PriceAPIKey:     viper.GetString("price_api_key"),
		OneClickJWT:     viper.GetString("oneclick_jwt_token"),
		Retries:         viper.GetInt("retries"),
		RetryInterval:   viper.GetDuration("retry_interval"),
		RefreshInterval: viper.GetDuration("refresh_interval"),
		MetricsAddr:     viper.GetString("metrics_addr"),
		LogLevel:        viper.GetString("log_level"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate rejects settings no command can run with
func (c *Config) Validate() error {
	if c.RPCURL == "" {
		return fmt.Errorf("%w: RPC URL is empty. Set ETH_WALLET_RPC_URL or --rpc-url", ErrInvalid)
	}
	if !common.IsHexAddress(c.TokenAddress) {
		return fmt.Errorf("%w: token address %q is not a hex address", ErrInvalid, c.TokenAddress)
	}
	if strings.TrimSpace(c.PriceAsset) == "" {
		return fmt.Errorf("%w: price asset is empty. Set ETH_WALLET_PRICE_ASSET", ErrInvalid)
	}
	if c.Retries < 0 {
		return fmt.Errorf("%w: retries must not be negative, got %d", ErrInvalid, c.Retries)
	}
	if c.RetryInterval <= 0 {
		return fmt.Errorf("%w: retry interval must be positive, got %s", ErrInvalid, c.RetryInterval)
	}
	if c.RefreshInterval <= 0 {
		return fmt.Errorf("%w: refresh interval must be positive, got %s", ErrInvalid, c.RefreshInterval)
	}
	return nil
}
