package client

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	oneclick "github.com/defuse-protocol/one-click-sdk-go"
	"github.com/ethereum/go-ethereum/common"

	"eth-wallet/pkg/parser"
	"eth-wallet/pkg/types"
)

// ChainEthereum is the 1Click blockchain identifier for Ethereum mainnet
const ChainEthereum = "eth"

// ErrTokenNotFound is returned when a symbol has no entry on the requested chain
var ErrTokenNotFound = errors.New("token not found")

// Token is one entry of the 1Click token list
type Token struct {
	AssetID    string         `json:"asset_id" yaml:"asset_id"`
	Symbol     string         `json:"symbol" yaml:"symbol"`
	Blockchain string         `json:"blockchain" yaml:"blockchain"`
	Address    common.Address `json:"address" yaml:"address"`
	Decimals   uint8          `json:"decimals" yaml:"decimals"`
}

// Native reports whether the entry is the chain's native currency
func (t Token) Native() bool {
	return t.Address == (common.Address{})
}

// TokenSource lists tokens supported on a chain
type TokenSource interface {
	Tokens(ctx context.Context, chain string) ([]Token, error)
}

// OneClickClient wraps the 1Click SDK
type OneClickClient struct {
	client   *oneclick.APIClient
	jwtToken string
}

// NewOneClickClient creates a new 1Click API client. The token list is
// public; jwtToken is sent only when set.
func NewOneClickClient(jwtToken string) *OneClickClient {
	config := oneclick.NewConfiguration()

	return &OneClickClient{
		client:   oneclick.NewAPIClient(config),
		jwtToken: jwtToken,
	}
}

func (c *OneClickClient) authContext(ctx context.Context) context.Context {
	if c.jwtToken == "" {
		return ctx
	}
	return context.WithValue(ctx, oneclick.ContextAccessToken, c.jwtToken)
}

// GetSupportedTokens retrieves all supported tokens
func (c *OneClickClient) GetSupportedTokens(ctx context.Context) ([]oneclick.TokenResponse, error) {
	resp, httpResp, err := c.client.OneClickAPI.GetTokens(c.authContext(ctx)).Execute()
	if err != nil {
		return nil, fmt.Errorf("%w: failed to get tokens: %v", types.ErrNetworkError, err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode != 200 {
		return nil, fmt.Errorf("%w: API returned status code %d", types.ErrNetworkError, httpResp.StatusCode)
	}

	return resp, nil
}

// Tokens returns the supported tokens on chain, sorted by symbol
func (c *OneClickClient) Tokens(ctx context.Context, chain string) ([]Token, error) {
	resp, err := c.GetSupportedTokens(ctx)
	if err != nil {
		return nil, err
	}

	tokens := make([]Token, 0, len(resp))
	for _, r := range resp {
		if !strings.EqualFold(r.GetBlockchain(), chain) {
			continue
		}
		tokens = append(tokens, toToken(r))
	}

	sort.Slice(tokens, func(i, j int) bool {
		return tokens[i].Symbol < tokens[j].Symbol
	})

	return tokens, nil
}

func toToken(r oneclick.TokenResponse) Token {
	t := Token{
		AssetID:    r.GetAssetId(),
		Symbol:     strings.ToUpper(r.GetSymbol()),
		Blockchain: strings.ToLower(r.GetBlockchain()),
		Decimals:   uint8(float64(r.GetDecimals())),
	}
	if address := r.GetContractAddress(); common.IsHexAddress(address) {
		t.Address = common.HexToAddress(address)
	}
	return t
}

// FilterTokens keeps the tokens whose symbol contains symbol, ignoring case
func FilterTokens(tokens []Token, symbol string) []Token {
	if symbol == "" {
		return tokens
	}

	symbol = strings.ToUpper(symbol)
	var filtered []Token
	for _, token := range tokens {
		if strings.Contains(token.Symbol, symbol) {
			filtered = append(filtered, token)
		}
	}
	return filtered
}

// FindTokenOnChain searches for an ERC-20 token by exact symbol on a specific chain
func FindTokenOnChain(ctx context.Context, source TokenSource, symbol, chain string) (Token, error) {
	tokens, err := source.Tokens(ctx, chain)
	if err != nil {
		return Token{}, err
	}

	symbol = strings.ToUpper(symbol)
	for _, token := range tokens {
		if token.Symbol == symbol && !token.Native() {
			return token, nil
		}
	}

	return Token{}, fmt.Errorf("%w: '%s' on chain '%s'", ErrTokenNotFound, symbol, chain)
}

// ResolveTokenRef turns a parsed --token value into a symbol and contract
// address. Only symbol-only references query the directory.
func ResolveTokenRef(ctx context.Context, source TokenSource, ref parser.TokenRef) (string, common.Address, error) {
	if ref.Resolved() {
		return ref.Symbol, ref.Address, nil
	}

	token, err := FindTokenOnChain(ctx, source, ref.Symbol, ChainEthereum)
	if err != nil {
		return "", common.Address{}, err
	}
	return token.Symbol, token.Address, nil
}
