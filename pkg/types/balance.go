package types

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// AccountHandle identifies the connected wallet account (checksummed hex address)
type AccountHandle string

// Address returns the handle as a go-ethereum address
func (h AccountHandle) Address() common.Address {
	return common.HexToAddress(string(h))
}

// IsZero reports whether no account is set
func (h AccountHandle) IsZero() bool {
	return h == ""
}

// BalanceReading is a balance fetched for one account, either native or token
type BalanceReading struct {
	Account   AccountHandle  `json:"account" yaml:"account"`
	Symbol    string         `json:"symbol" yaml:"symbol"`
	Token     common.Address `json:"token" yaml:"token"` // zero for native currency
	Raw       *big.Int       `json:"raw" yaml:"-"`
	Decimals  uint8          `json:"decimals" yaml:"decimals"`
	Value     float64        `json:"value" yaml:"value"` // human-readable, float rounding accepted
	Text      string         `json:"text" yaml:"text"`   // exact decimal rendering of Raw / 10^Decimals
	FetchedAt time.Time      `json:"fetched_at" yaml:"fetched_at"`
}

// IsNative reports whether the reading is for the chain's native currency
func (b BalanceReading) IsNative() bool {
	return b.Token == (common.Address{})
}

// PriceQuote is a spot price for one asset
type PriceQuote struct {
	AssetID   string    `json:"asset_id" yaml:"asset_id"`
	Currency  string    `json:"currency" yaml:"currency"`
	Value     float64   `json:"value" yaml:"value"`
	FetchedAt time.Time `json:"fetched_at" yaml:"fetched_at"`
}
