package chain

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/shopspring/decimal"

	"eth-wallet/pkg/types"
)

// NativeDecimals is the fixed scale of the native currency (wei per ether)
const NativeDecimals = 18

// erc20ABI covers the two read-only calls the reader issues
const erc20ABI = `[
	{"constant":true,"inputs":[{"name":"_owner","type":"address"}],"name":"balanceOf","outputs":[{"name":"balance","type":"uint256"}],"type":"function"},
	{"constant":true,"inputs":[],"name":"decimals","outputs":[{"name":"","type":"uint8"}],"type":"function"}
]`

// Backend is the read-only subset of *ethclient.Client the reader depends on
type Backend interface {
	BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// Reader reads native and ERC-20 balances from an Ethereum node
type Reader struct {
	backend      Backend
	nativeSymbol string
	erc20        abi.ABI
	now          func() time.Time
}

// Dial connects to the node at rpcURL
func Dial(ctx context.Context, rpcURL string) (*ethclient.Client, error) {
	if strings.TrimSpace(rpcURL) == "" {
		return nil, fmt.Errorf("%w: rpc url is required", types.ErrProviderError)
	}

	client, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to connect to RPC endpoint: %v", types.ErrProviderError, err)
	}

	return client, nil
}

// NewReader creates a reader over backend. nativeSymbol labels native readings.
func NewReader(backend Backend, nativeSymbol string) (*Reader, error) {
	if backend == nil {
		return nil, fmt.Errorf("backend is required")
	}
	if nativeSymbol == "" {
		nativeSymbol = "ETH"
	}

	parsedABI, err := abi.JSON(strings.NewReader(erc20ABI))
	if err != nil {
		return nil, fmt.Errorf("failed to parse ERC20 ABI: %w", err)
	}

	return &Reader{
		backend:      backend,
		nativeSymbol: nativeSymbol,
		erc20:        parsedABI,
		now:          time.Now,
	}, nil
}

// ReadNativeBalance returns the latest native balance of handle
func (r *Reader) ReadNativeBalance(ctx context.Context, handle types.AccountHandle) (types.BalanceReading, error) {
	account, err := accountAddress(handle)
	if err != nil {
		return types.BalanceReading{}, err
	}

	wei, err := r.backend.BalanceAt(ctx, account, nil)
	if err != nil {
		return types.BalanceReading{}, fmt.Errorf("%w: failed to get balance: %v", types.ErrProviderError, err)
	}
	if wei == nil {
		return types.BalanceReading{}, fmt.Errorf("%w: node returned no balance", types.ErrProviderError)
	}

	value, text := Normalize(wei, NativeDecimals)
	return types.BalanceReading{
		Account:   handle,
		Symbol:    r.nativeSymbol,
		Raw:       wei,
		Decimals:  NativeDecimals,
		Value:     value,
		Text:      text,
		FetchedAt: r.now(),
	}, nil
}

// ReadTokenBalance returns the ERC-20 balance of handle at token.
// balanceOf and decimals are called one after the other; a failure in either
// aborts the read.
func (r *Reader) ReadTokenBalance(ctx context.Context, handle types.AccountHandle, token common.Address) (types.BalanceReading, error) {
	account, err := accountAddress(handle)
	if err != nil {
		return types.BalanceReading{}, err
	}
	if token == (common.Address{}) {
		return types.BalanceReading{}, fmt.Errorf("%w: token address is required", types.ErrContractCallError)
	}

	raw, err := r.balanceOf(ctx, token, account)
	if err != nil {
		return types.BalanceReading{}, err
	}

	scale, err := r.decimals(ctx, token)
	if err != nil {
		return types.BalanceReading{}, err
	}

	value, text := Normalize(raw, scale)
	return types.BalanceReading{
		Account:   handle,
		Token:     token,
		Raw:       raw,
		Decimals:  scale,
		Value:     value,
		Text:      text,
		FetchedAt: r.now(),
	}, nil
}

func (r *Reader) balanceOf(ctx context.Context, token, account common.Address) (*big.Int, error) {
	out, err := r.call(ctx, token, "balanceOf", account)
	if err != nil {
		return nil, err
	}

	balance, ok := out[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("%w: balanceOf returned %T", types.ErrContractCallError, out[0])
	}
	return balance, nil
}

func (r *Reader) decimals(ctx context.Context, token common.Address) (uint8, error) {
	out, err := r.call(ctx, token, "decimals")
	if err != nil {
		return 0, err
	}

	scale, ok := out[0].(uint8)
	if !ok {
		return 0, fmt.Errorf("%w: decimals returned %T", types.ErrContractCallError, out[0])
	}
	return scale, nil
}

// call packs method, runs eth_call against token at the latest block and unpacks the result
func (r *Reader) call(ctx context.Context, token common.Address, method string, args ...interface{}) ([]interface{}, error) {
	data, err := r.erc20.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to pack %s data: %v", types.ErrContractCallError, method, err)
	}

	msg := ethereum.CallMsg{
		To:   &token,
		Data: data,
	}

	result, err := r.backend.CallContract(ctx, msg, nil)
	if err != nil {
		return nil, callError(method, err)
	}

	out, err := r.erc20.Unpack(method, result)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to decode %s result: %v", types.ErrContractCallError, method, err)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: %s returned no values", types.ErrContractCallError, method)
	}

	return out, nil
}

// callError separates errors the node answered with (reverts) from transport failures
func callError(method string, err error) error {
	var rpcErr rpc.Error
	if errors.As(err, &rpcErr) {
		return fmt.Errorf("%w: failed to call %s: %v", types.ErrContractCallError, method, err)
	}
	return fmt.Errorf("%w: failed to call %s: %v", types.ErrProviderError, method, err)
}

func accountAddress(handle types.AccountHandle) (common.Address, error) {
	if !common.IsHexAddress(string(handle)) {
		return common.Address{}, fmt.Errorf("%w: invalid account address: %q", types.ErrProviderError, handle)
	}
	return handle.Address(), nil
}

// Normalize divides raw by 10^scale. The float is for display and arithmetic,
// the string is exact.
func Normalize(raw *big.Int, scale uint8) (float64, string) {
	if raw == nil {
		return 0, "0"
	}
	d := decimal.NewFromBigInt(raw, -int32(scale))
	return d.InexactFloat64(), d.String()
}
