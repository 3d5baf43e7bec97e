package chain

import (
	"context"
	"errors"
	"math/big"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"eth-wallet/pkg/types"
)

const (
	holder = types.AccountHandle("0x000000000000000000000000000000000000dEaD")
	usdt   = "0xdAC17F958D2ee523a2206206994597C13D831ec7"
)

type fakeBackend struct {
	balance    *big.Int
	balanceErr error

	callResults map[string][]byte
	callErrs    map[string]error
	calls       []string
}

func (f *fakeBackend) BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error) {
	return f.balance, f.balanceErr
}

func (f *fakeBackend) CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	method := methodBySelector(msg.Data)
	f.calls = append(f.calls, method)
	if err := f.callErrs[method]; err != nil {
		return nil, err
	}
	return f.callResults[method], nil
}

func methodBySelector(data []byte) string {
	parsed, err := abi.JSON(strings.NewReader(erc20ABI))
	if err != nil {
		panic(err)
	}
	m, err := parsed.MethodById(data)
	if err != nil {
		return ""
	}
	return m.Name
}

func packOutput(t *testing.T, method string, values ...interface{}) []byte {
	t.Helper()
	parsed, err := abi.JSON(strings.NewReader(erc20ABI))
	require.NoError(t, err)
	out, err := parsed.Methods[method].Outputs.Pack(values...)
	require.NoError(t, err)
	return out
}

// rpcErr mimics the JSON-RPC error value go-ethereum returns for a revert
type rpcErr struct{}

func (rpcErr) Error() string  { return "execution reverted" }
func (rpcErr) ErrorCode() int { return 3 }

func newTestReader(t *testing.T, backend Backend) *Reader {
	t.Helper()
	r, err := NewReader(backend, "ETH")
	require.NoError(t, err)
	r.now = func() time.Time { return time.Unix(1700000000, 0) }
	return r
}

func TestReader_ReadNativeBalance(t *testing.T) {
	t.Run("one and a half ether", func(t *testing.T) {
		wei, _ := new(big.Int).SetString("1500000000000000000", 10)
		r := newTestReader(t, &fakeBackend{balance: wei})

		reading, err := r.ReadNativeBalance(context.Background(), holder)
		require.NoError(t, err)
		assert.Equal(t, 1.5, reading.Value)
		assert.Equal(t, "1.5", reading.Text)
		assert.Equal(t, "ETH", reading.Symbol)
		assert.Equal(t, uint8(18), reading.Decimals)
		assert.True(t, reading.IsNative())
		assert.Equal(t, holder, reading.Account)
	})

	t.Run("zero balance", func(t *testing.T) {
		r := newTestReader(t, &fakeBackend{balance: big.NewInt(0)})

		reading, err := r.ReadNativeBalance(context.Background(), holder)
		require.NoError(t, err)
		assert.Equal(t, 0.0, reading.Value)
		assert.Equal(t, "0", reading.Text)
	})

	t.Run("node failure is a provider error", func(t *testing.T) {
		r := newTestReader(t, &fakeBackend{balanceErr: errors.New("connection refused")})

		_, err := r.ReadNativeBalance(context.Background(), holder)
		assert.ErrorIs(t, err, types.ErrProviderError)
	})

	t.Run("invalid handle", func(t *testing.T) {
		r := newTestReader(t, &fakeBackend{balance: big.NewInt(1)})

		_, err := r.ReadNativeBalance(context.Background(), types.AccountHandle("not-an-address"))
		assert.ErrorIs(t, err, types.ErrProviderError)
	})
}

func TestReader_ReadTokenBalance(t *testing.T) {
	token := common.HexToAddress(usdt)

	t.Run("raw balance scaled by decimals", func(t *testing.T) {
		backend := &fakeBackend{callResults: map[string][]byte{
			"balanceOf": packOutput(t, "balanceOf", big.NewInt(1000000)),
			"decimals":  packOutput(t, "decimals", uint8(6)),
		}}
		r := newTestReader(t, backend)

		reading, err := r.ReadTokenBalance(context.Background(), holder, token)
		require.NoError(t, err)
		assert.Equal(t, 1.0, reading.Value)
		assert.Equal(t, "1", reading.Text)
		assert.Equal(t, uint8(6), reading.Decimals)
		assert.Equal(t, token, reading.Token)
		assert.Equal(t, []string{"balanceOf", "decimals"}, backend.calls)
	})

	t.Run("balanceOf transport failure aborts before decimals", func(t *testing.T) {
		backend := &fakeBackend{callErrs: map[string]error{
			"balanceOf": errors.New("dial tcp: i/o timeout"),
		}}
		r := newTestReader(t, backend)

		reading, err := r.ReadTokenBalance(context.Background(), holder, token)
		assert.ErrorIs(t, err, types.ErrProviderError)
		assert.Nil(t, reading.Raw)
		assert.Equal(t, []string{"balanceOf"}, backend.calls)
	})

	t.Run("decimals revert is a contract call error", func(t *testing.T) {
		backend := &fakeBackend{
			callResults: map[string][]byte{"balanceOf": packOutput(t, "balanceOf", big.NewInt(5))},
			callErrs:    map[string]error{"decimals": rpcErr{}},
		}
		r := newTestReader(t, backend)

		reading, err := r.ReadTokenBalance(context.Background(), holder, token)
		assert.ErrorIs(t, err, types.ErrContractCallError)
		assert.Nil(t, reading.Raw)
	})

	t.Run("empty return data from a non-contract", func(t *testing.T) {
		r := newTestReader(t, &fakeBackend{callResults: map[string][]byte{}})

		_, err := r.ReadTokenBalance(context.Background(), holder, token)
		assert.ErrorIs(t, err, types.ErrContractCallError)
	})

	t.Run("zero token address", func(t *testing.T) {
		r := newTestReader(t, &fakeBackend{})

		_, err := r.ReadTokenBalance(context.Background(), holder, common.Address{})
		assert.ErrorIs(t, err, types.ErrContractCallError)
	})
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		name      string
		raw       *big.Int
		scale     uint8
		wantValue float64
		wantText  string
	}{
		{name: "usdt one unit", raw: big.NewInt(1000000), scale: 6, wantValue: 1.0, wantText: "1"},
		{name: "usdt fraction", raw: big.NewInt(12345678), scale: 6, wantValue: 12.345678, wantText: "12.345678"},
		{name: "one wei", raw: big.NewInt(1), scale: 18, wantValue: 1e-18, wantText: "0.000000000000000001"},
		{name: "zero scale", raw: big.NewInt(42), scale: 0, wantValue: 42, wantText: "42"},
		{name: "nil raw", raw: nil, scale: 6, wantValue: 0, wantText: "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			value, text := Normalize(tt.raw, tt.scale)
			assert.Equal(t, tt.wantValue, value)
			assert.Equal(t, tt.wantText, text)
		})
	}
}
