package wallet

import (
	"context"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"eth-wallet/pkg/types"
)

// StaticProvider is a watch-only wallet holding a single configured address
type StaticProvider struct {
	address common.Address
}

// NewStaticProvider validates address and wraps it
func NewStaticProvider(address string) (*StaticProvider, error) {
	address = strings.TrimSpace(address)
	if !common.IsHexAddress(address) {
		return nil, fmt.Errorf("%w: invalid address: %q", types.ErrProviderUnavailable, address)
	}
	return &StaticProvider{address: common.HexToAddress(address)}, nil
}

func (p *StaticProvider) RequestAccounts(ctx context.Context) ([]common.Address, error) {
	return []common.Address{p.address}, nil
}

func (p *StaticProvider) Accounts(ctx context.Context) ([]common.Address, error) {
	return []common.Address{p.address}, nil
}
