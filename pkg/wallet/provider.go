package wallet

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"eth-wallet/pkg/types"
)

// Provider is the wallet capability the connector depends on
type Provider interface {
	// RequestAccounts asks the wallet to expose its accounts and may prompt the user
	RequestAccounts(ctx context.Context) ([]common.Address, error)
	// Accounts returns the currently exposed accounts without prompting
	Accounts(ctx context.Context) ([]common.Address, error)
}

// Connector obtains an authenticated account from a wallet provider
type Connector struct {
	provider Provider
}

// NewConnector creates a connector. A nil provider means no wallet is available.
func NewConnector(provider Provider) *Connector {
	return &Connector{
		provider: provider,
	}
}

// Connect requests permission and returns the first exposed account.
// Calling it again simply re-requests permission.
func (c *Connector) Connect(ctx context.Context) (types.AccountHandle, error) {
	if c.provider == nil {
		return "", fmt.Errorf("%w: no wallet configured", types.ErrProviderUnavailable)
	}

	accounts, err := c.provider.RequestAccounts(ctx)
	if err != nil {
		return "", classify(err)
	}

	return firstAccount(accounts)
}

// Current returns the active account without prompting
func (c *Connector) Current(ctx context.Context) (types.AccountHandle, error) {
	if c.provider == nil {
		return "", fmt.Errorf("%w: no wallet configured", types.ErrProviderUnavailable)
	}

	accounts, err := c.provider.Accounts(ctx)
	if err != nil {
		return "", classify(err)
	}

	return firstAccount(accounts)
}

func firstAccount(accounts []common.Address) (types.AccountHandle, error) {
	if len(accounts) == 0 {
		return "", fmt.Errorf("%w: wallet exposed no accounts", types.ErrUserRejected)
	}
	return types.AccountHandle(accounts[0].Hex()), nil
}

// classify keeps connect failures inside the two connect error kinds
func classify(err error) error {
	if errors.Is(err, types.ErrUserRejected) || errors.Is(err, types.ErrProviderUnavailable) {
		return err
	}
	return fmt.Errorf("%w: %v", types.ErrProviderUnavailable, err)
}
