package wallet

import (
	"context"
	"fmt"
	"os"

	"github.com/ethereum/go-ethereum/accounts/keystore"
	"github.com/ethereum/go-ethereum/common"

	"eth-wallet/pkg/types"
)

// KeystoreProvider exposes the accounts of a local keystore directory.
// Keys are never unlocked, only their addresses are read.
type KeystoreProvider struct {
	dir string
	ks  *keystore.KeyStore
}

// NewKeystoreProvider opens the keystore at dir
func NewKeystoreProvider(dir string) (*KeystoreProvider, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("%w: keystore %s: %v", types.ErrProviderUnavailable, dir, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: keystore %s is not a directory", types.ErrProviderUnavailable, dir)
	}

	return &KeystoreProvider{
		dir: dir,
		ks:  keystore.NewKeyStore(dir, keystore.StandardScryptN, keystore.StandardScryptP),
	}, nil
}

// RequestAccounts returns the keystore accounts
func (p *KeystoreProvider) RequestAccounts(ctx context.Context) ([]common.Address, error) {
	return p.Accounts(ctx)
}

// Accounts returns the keystore accounts in keystore order
func (p *KeystoreProvider) Accounts(ctx context.Context) ([]common.Address, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	accs := p.ks.Accounts()
	if len(accs) == 0 {
		return nil, fmt.Errorf("%w: keystore %s has no accounts", types.ErrProviderUnavailable, p.dir)
	}

	out := make([]common.Address, 0, len(accs))
	for _, acc := range accs {
		out = append(out, acc.Address)
	}
	return out, nil
}
