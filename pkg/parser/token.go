package parser

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// ErrInvalidTokenRef is returned for --token values that match no accepted form
var ErrInvalidTokenRef = errors.New("invalid token reference")

var symbolPattern = regexp.MustCompile(`^[A-Z0-9][A-Z0-9.\-]{0,15}$`)

// TokenRef names the ERC-20 token to read. Address is the zero address when
// only a symbol was given and the token still has to be resolved.
type TokenRef struct {
	Symbol  string
	Address common.Address
}

// Resolved reports whether the reference carries a contract address
func (r TokenRef) Resolved() bool {
	return r.Address != (common.Address{})
}

func (r TokenRef) String() string {
	switch {
	case r.Symbol != "" && r.Resolved():
		return r.Symbol + ":" + r.Address.Hex()
	case r.Resolved():
		return r.Address.Hex()
	default:
		return r.Symbol
	}
}

// ParseTokenRef parses a token reference
// Examples:
//   - "0xdAC17F958D2ee523a2206206994597C13D831ec7"
//   - "usdc"
//   - "USDC:0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48"
func ParseTokenRef(input string) (TokenRef, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return TokenRef{}, fmt.Errorf("%w: empty value", ErrInvalidTokenRef)
	}

	if symbol, address, ok := strings.Cut(input, ":"); ok {
		sym, err := parseSymbol(symbol)
		if err != nil {
			return TokenRef{}, err
		}
		addr, err := parseAddress(address)
		if err != nil {
			return TokenRef{}, err
		}
		return TokenRef{Symbol: sym, Address: addr}, nil
	}

	if has0xPrefix(input) {
		addr, err := parseAddress(input)
		if err != nil {
			return TokenRef{}, err
		}
		return TokenRef{Address: addr}, nil
	}

	sym, err := parseSymbol(input)
	if err != nil {
		return TokenRef{}, err
	}
	return TokenRef{Symbol: sym}, nil
}

// NormalizeTokenSymbol normalizes token symbols to standard format
func NormalizeTokenSymbol(symbol string) string {
	return strings.TrimSpace(strings.ToUpper(symbol))
}

func parseSymbol(s string) (string, error) {
	sym := NormalizeTokenSymbol(s)
	if !symbolPattern.MatchString(sym) {
		return "", fmt.Errorf("%w: %q is not a token symbol", ErrInvalidTokenRef, s)
	}
	return sym, nil
}

func parseAddress(s string) (common.Address, error) {
	s = strings.TrimSpace(s)
	if !common.IsHexAddress(s) {
		return common.Address{}, fmt.Errorf("%w: %q is not a contract address", ErrInvalidTokenRef, s)
	}
	addr := common.HexToAddress(s)
	if addr == (common.Address{}) {
		return common.Address{}, fmt.Errorf("%w: zero address", ErrInvalidTokenRef)
	}
	return addr, nil
}

func has0xPrefix(s string) bool {
	return len(s) >= 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X')
}
