package price

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"eth-wallet/pkg/types"
)

const (
	DefaultBaseURL  = "https://api.coingecko.com/api/v3"
	DefaultCurrency = "usd"

	demoAPIKeyHeader = "x-cg-demo-api-key"
	maxBodyBytes     = 1 << 20
)

// CoinGecko fetches spot prices from the CoinGecko simple/price endpoint
type CoinGecko struct {
	baseURL    string
	currency   string
	apiKey     string
	httpClient *http.Client
	now        func() time.Time
}

// Option configures a CoinGecko client
type Option func(*CoinGecko)

// WithBaseURL overrides the API root
func WithBaseURL(baseURL string) Option {
	return func(c *CoinGecko) {
		c.baseURL = strings.TrimRight(baseURL, "/")
	}
}

// WithAPIKey sends a demo API key with every request
func WithAPIKey(key string) Option {
	return func(c *CoinGecko) {
		c.apiKey = key
	}
}

// WithHTTPClient replaces the HTTP client
func WithHTTPClient(client *http.Client) Option {
	return func(c *CoinGecko) {
		c.httpClient = client
	}
}

// NewCoinGecko creates a client quoting prices in USD.
// The default HTTP client has no timeout; the caller's context bounds a request.
func NewCoinGecko(opts ...Option) *CoinGecko {
	c := &CoinGecko{
		baseURL:    DefaultBaseURL,
		currency:   DefaultCurrency,
		httpClient: &http.Client{},
		now:        time.Now,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// FetchPrice returns the current USD price of assetID (e.g. "ethereum")
func (c *CoinGecko) FetchPrice(ctx context.Context, assetID string) (types.PriceQuote, error) {
	assetID = strings.TrimSpace(assetID)
	if assetID == "" {
		return types.PriceQuote{}, fmt.Errorf("%w: asset id is required", types.ErrNetworkError)
	}

	query := url.Values{}
	query.Set("ids", assetID)
	query.Set("vs_currencies", c.currency)
	endpoint := c.baseURL + "/simple/price?" + query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return types.PriceQuote{}, fmt.Errorf("%w: failed to build request: %v", types.ErrNetworkError, err)
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set(demoAPIKeyHeader, c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return types.PriceQuote{}, fmt.Errorf("%w: %v", types.ErrNetworkError, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return types.PriceQuote{}, fmt.Errorf("%w: failed to read response: %v", types.ErrNetworkError, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return types.PriceQuote{}, fmt.Errorf("%w: API returned status code %d: %s",
			types.ErrNetworkError, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	value, err := parseSimplePrice(body, assetID, c.currency)
	if err != nil {
		return types.PriceQuote{}, err
	}

	return types.PriceQuote{
		AssetID:   assetID,
		Currency:  c.currency,
		Value:     value,
		FetchedAt: c.now(),
	}, nil
}

// parseSimplePrice decodes {"<asset>": {"<currency>": number}}
func parseSimplePrice(body []byte, assetID, currency string) (float64, error) {
	var payload map[string]map[string]*float64
	if err := json.Unmarshal(body, &payload); err != nil {
		return 0, fmt.Errorf("%w: failed to decode price response: %v", types.ErrMalformedResponse, err)
	}

	quotes, ok := payload[assetID]
	if !ok || quotes == nil {
		return 0, fmt.Errorf("%w: no price for %s", types.ErrMalformedResponse, assetID)
	}

	value, ok := quotes[currency]
	if !ok || value == nil {
		return 0, fmt.Errorf("%w: no %s price for %s", types.ErrMalformedResponse, currency, assetID)
	}

	return *value, nil
}
