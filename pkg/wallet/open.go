package wallet

import (
	"context"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
)

// Settings names the wallet backends that may be configured. When several
// are set, the wallet RPC endpoint wins over the keystore, and the keystore
// over a plain address.
type Settings struct {
	RPCURL      string
	KeystoreDir string
	Address     string
}

// Open builds the connector for the highest-priority configured backend.
// A backend that cannot be opened does not fail here; every connect attempt
// reports it as an unavailable provider instead. The returned func releases
// the backend.
func Open(ctx context.Context, s Settings, logger *zap.Logger) (*Connector, func()) {
	if logger == nil {
		logger = zap.NewNop()
	}

	switch {
	case strings.TrimSpace(s.RPCURL) != "":
		p, err := DialRPC(ctx, s.RPCURL)
		if err != nil {
			logger.Debug("wallet rpc unavailable", zap.Error(err))
			return NewConnector(unavailable{err: err}), func() {}
		}
		logger.Debug("using wallet rpc", zap.String("url", s.RPCURL))
		return NewConnector(p), p.Close

	case strings.TrimSpace(s.KeystoreDir) != "":
		p, err := NewKeystoreProvider(s.KeystoreDir)
		if err != nil {
			logger.Debug("keystore unavailable", zap.Error(err))
			return NewConnector(unavailable{err: err}), func() {}
		}
		logger.Debug("using keystore", zap.String("dir", s.KeystoreDir))
		return NewConnector(p), func() {}

	case strings.TrimSpace(s.Address) != "":
		p, err := NewStaticProvider(s.Address)
		if err != nil {
			logger.Debug("address unusable", zap.Error(err))
			return NewConnector(unavailable{err: err}), func() {}
		}
		return NewConnector(p), func() {}
	}

	return NewConnector(nil), func() {}
}

// unavailable stands in for a backend that failed to open
type unavailable struct {
	err error
}

func (u unavailable) RequestAccounts(ctx context.Context) ([]common.Address, error) {
	return nil, u.err
}

func (u unavailable) Accounts(ctx context.Context) ([]common.Address, error) {
	return nil, u.err
}
