package wallet

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/rpc"

	"eth-wallet/pkg/types"
)

// JSON-RPC error codes a wallet may answer with
const (
	codeUserRejected   = 4001   // EIP-1193
	codeUnauthorized   = 4100   // EIP-1193
	codeMethodNotFound = -32601 // JSON-RPC 2.0
)

// RPCProvider talks to a wallet or signer that exposes an Ethereum JSON-RPC endpoint
type RPCProvider struct {
	client *rpc.Client
}

// DialRPC connects to the wallet endpoint at url
func DialRPC(ctx context.Context, url string) (*RPCProvider, error) {
	if strings.TrimSpace(url) == "" {
		return nil, fmt.Errorf("%w: wallet rpc url is empty", types.ErrProviderUnavailable)
	}

	client, err := rpc.DialContext(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to connect to wallet: %v", types.ErrProviderUnavailable, err)
	}

	return &RPCProvider{client: client}, nil
}

// RequestAccounts calls eth_requestAccounts, falling back to eth_accounts for
// signers that do not implement it
func (p *RPCProvider) RequestAccounts(ctx context.Context) ([]common.Address, error) {
	accounts, err := p.call(ctx, "eth_requestAccounts")
	if err != nil && rpcCode(err) == codeMethodNotFound {
		return p.Accounts(ctx)
	}
	return accounts, err
}

// Accounts calls eth_accounts
func (p *RPCProvider) Accounts(ctx context.Context) ([]common.Address, error) {
	return p.call(ctx, "eth_accounts")
}

// Close releases the underlying connection
func (p *RPCProvider) Close() {
	if p.client != nil {
		p.client.Close()
	}
}

func (p *RPCProvider) call(ctx context.Context, method string) ([]common.Address, error) {
	var accounts []common.Address
	if err := p.client.CallContext(ctx, &accounts, method); err != nil {
		switch rpcCode(err) {
		case codeUserRejected, codeUnauthorized:
			return nil, fmt.Errorf("%w: %s: %v", types.ErrUserRejected, method, err)
		case codeMethodNotFound:
			return nil, err
		default:
			return nil, fmt.Errorf("%w: %s: %v", types.ErrProviderUnavailable, method, err)
		}
	}
	return accounts, nil
}

// rpcCode returns the JSON-RPC error code of err, or 0 for transport errors
func rpcCode(err error) int {
	var rpcErr rpc.Error
	if errors.As(err, &rpcErr) {
		return rpcErr.ErrorCode()
	}
	return 0
}
