package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"eth-wallet/pkg/retrier"
	"eth-wallet/pkg/types"
)

const (
	alice = types.AccountHandle("0x1111111111111111111111111111111111111111")
	bob   = types.AccountHandle("0x2222222222222222222222222222222222222222")
)

var usdt = common.HexToAddress("0xdAC17F958D2ee523a2206206994597C13D831ec7")

type fakeConnector struct {
	mu      sync.Mutex
	account types.AccountHandle
	err     error
}

func (f *fakeConnector) set(account types.AccountHandle, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.account, f.err = account, err
}

func (f *fakeConnector) Connect(ctx context.Context) (types.AccountHandle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	return f.account, nil
}

func (f *fakeConnector) Current(ctx context.Context) (types.AccountHandle, error) {
	return f.Connect(ctx)
}

// fakeChain answers balance reads per account; gate, when set, blocks reads until closed
type fakeChain struct {
	mu       sync.Mutex
	native   map[types.AccountHandle]float64
	token    map[types.AccountHandle]float64
	err      error
	tokenErr error
	gate     chan struct{}
	started  chan types.AccountHandle
}

func (f *fakeChain) wait(ctx context.Context, handle types.AccountHandle) {
	f.mu.Lock()
	gate, started := f.gate, f.started
	f.mu.Unlock()
	if started != nil {
		started <- handle
	}
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
		}
	}
}

func (f *fakeChain) ReadNativeBalance(ctx context.Context, handle types.AccountHandle) (types.BalanceReading, error) {
	f.wait(ctx, handle)
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return types.BalanceReading{}, f.err
	}
	return types.BalanceReading{Account: handle, Symbol: "ETH", Value: f.native[handle]}, nil
}

func (f *fakeChain) ReadTokenBalance(ctx context.Context, handle types.AccountHandle, token common.Address) (types.BalanceReading, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.tokenErr != nil {
		return types.BalanceReading{}, f.tokenErr
	}
	return types.BalanceReading{Account: handle, Token: token, Value: f.token[handle]}, nil
}

type fakePrices struct {
	mu    sync.Mutex
	price float64
	err   error
	calls int
}

func (f *fakePrices) set(price float64, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.price, f.err = price, err
}

func (f *fakePrices) FetchPrice(ctx context.Context, assetID string) (types.PriceQuote, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return types.PriceQuote{}, f.err
	}
	return types.PriceQuote{AssetID: assetID, Currency: "usd", Value: f.price}, nil
}

func newFixture() (*Session, *fakeConnector, *fakeChain, *fakePrices) {
	conn := &fakeConnector{account: alice}
	chain := &fakeChain{
		native: map[types.AccountHandle]float64{alice: 1.5, bob: 2},
		token:  map[types.AccountHandle]float64{alice: 1, bob: 10},
	}
	prices := &fakePrices{price: 2000}
	s := New(conn, chain, chain, prices, Config{
		NativeSymbol: "ETH",
		TokenAddress: usdt,
		TokenSymbol:  "USDT",
		PriceAsset:   "ethereum",
	})
	return s, conn, chain, prices
}

func TestSession_Connect(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		s, _, _, _ := newFixture()
		assert.Equal(t, Disconnected, s.Snapshot().State)

		handle, err := s.Connect(context.Background())
		require.NoError(t, err)
		assert.Equal(t, alice, handle)
		assert.Equal(t, Connected, s.Snapshot().State)
		assert.Equal(t, alice, s.Account())
	})

	for _, kind := range []error{types.ErrUserRejected, types.ErrProviderUnavailable} {
		t.Run("failure leaves account unset: "+kind.Error(), func(t *testing.T) {
			s, conn, _, _ := newFixture()
			conn.set("", fmt.Errorf("%w: test", kind))

			handle, err := s.Connect(context.Background())
			assert.ErrorIs(t, err, kind)
			assert.Equal(t, kind, types.Kind(err))
			assert.True(t, handle.IsZero())

			snap := s.Snapshot()
			assert.Equal(t, Disconnected, snap.State)
			assert.True(t, snap.Account.IsZero())
			assert.NotEmpty(t, snap.Error)
		})
	}

	t.Run("messages", func(t *testing.T) {
		s, conn, _, _ := newFixture()

		conn.set("", types.ErrUserRejected)
		_, _ = s.Connect(context.Background())
		assert.Equal(t, "User rejected connection or another error occurred.", s.LastError())

		conn.set("", types.ErrProviderUnavailable)
		_, _ = s.Connect(context.Background())
		assert.Equal(t, "Wallet provider not detected. Configure a wallet RPC endpoint, keystore or address.", s.LastError())
	})

	t.Run("success clears the visible error", func(t *testing.T) {
		s, conn, _, _ := newFixture()
		conn.set("", types.ErrUserRejected)
		_, _ = s.Connect(context.Background())
		require.NotEmpty(t, s.LastError())

		conn.set(alice, nil)
		_, err := s.Connect(context.Background())
		require.NoError(t, err)
		assert.Empty(t, s.LastError())
		assert.Len(t, s.Snapshot().Errors, 1)
	})

	t.Run("connected is terminal", func(t *testing.T) {
		s, conn, _, _ := newFixture()
		_, err := s.Connect(context.Background())
		require.NoError(t, err)

		conn.set("", types.ErrUserRejected)
		_, err = s.Connect(context.Background())
		assert.ErrorIs(t, err, types.ErrUserRejected)
		assert.Equal(t, Connected, s.Snapshot().State)
		assert.Equal(t, alice, s.Account())
	})
}

func TestSession_Refresh(t *testing.T) {
	t.Run("all fields fetched", func(t *testing.T) {
		s, _, _, _ := newFixture()
		_, err := s.Connect(context.Background())
		require.NoError(t, err)

		s.Refresh(context.Background())

		snap := s.Snapshot()
		assert.Equal(t, Fetched, snap.NativeBalance.State)
		assert.Equal(t, 1.5, snap.NativeBalance.Value.Value)
		assert.Equal(t, Fetched, snap.TokenBalance.State)
		assert.Equal(t, "USDT", snap.TokenBalance.Value.Symbol)
		assert.Equal(t, Fetched, snap.Price.State)
		require.NotNil(t, snap.USDValue)
		assert.Equal(t, 3000.0, *snap.USDValue)
		assert.Empty(t, snap.Error)
	})

	t.Run("disconnected refresh fetches only the price", func(t *testing.T) {
		s, _, _, prices := newFixture()

		s.Refresh(context.Background())

		snap := s.Snapshot()
		assert.Equal(t, NotFetched, snap.NativeBalance.State)
		assert.Equal(t, NotFetched, snap.TokenBalance.State)
		assert.Equal(t, Fetched, snap.Price.State)
		assert.Equal(t, 1, prices.calls)
		assert.Nil(t, snap.USDValue)
	})

	t.Run("account-bound fetch before connect", func(t *testing.T) {
		s, _, _, _ := newFixture()
		assert.ErrorIs(t, s.FetchNativeBalance(context.Background()), ErrNotConnected)
		assert.ErrorIs(t, s.FetchTokenBalance(context.Background()), ErrNotConnected)
	})
}

func TestSession_USDValue(t *testing.T) {
	s, _, _, prices := newFixture()
	_, err := s.Connect(context.Background())
	require.NoError(t, err)

	_, ok := s.USDValue()
	assert.False(t, ok, "no inputs yet")

	require.NoError(t, s.FetchNativeBalance(context.Background()))
	_, ok = s.USDValue()
	assert.False(t, ok, "price missing")

	require.NoError(t, s.FetchPrice(context.Background()))
	usd, ok := s.USDValue()
	assert.True(t, ok)
	assert.Equal(t, 3000.0, usd)

	// a failed refetch keeps the last price, so the value stays available
	prices.set(0, types.ErrNetworkError)
	require.Error(t, s.FetchPrice(context.Background()))
	usd, ok = s.USDValue()
	assert.True(t, ok)
	assert.Equal(t, 3000.0, usd)
	assert.Equal(t, Failed, s.Snapshot().Price.State)
}

func TestSession_IndependentFailures(t *testing.T) {
	t.Run("price failure keeps the balance", func(t *testing.T) {
		s, _, _, prices := newFixture()
		_, err := s.Connect(context.Background())
		require.NoError(t, err)
		require.NoError(t, s.FetchNativeBalance(context.Background()))

		prices.set(0, fmt.Errorf("%w: timeout", types.ErrNetworkError))
		err = s.FetchPrice(context.Background())
		assert.ErrorIs(t, err, types.ErrNetworkError)

		snap := s.Snapshot()
		assert.Equal(t, Fetched, snap.NativeBalance.State)
		assert.Equal(t, 1.5, snap.NativeBalance.Value.Value)
		assert.Equal(t, Failed, snap.Price.State)
		assert.Equal(t, "Failed to fetch ETH price.", snap.Error)
		assert.Nil(t, snap.USDValue)
	})

	t.Run("failed refetch keeps the previous price", func(t *testing.T) {
		s, _, _, prices := newFixture()
		require.NoError(t, s.FetchPrice(context.Background()))

		prices.set(0, types.ErrMalformedResponse)
		_ = s.FetchPrice(context.Background())

		snap := s.Snapshot()
		assert.Equal(t, Failed, snap.Price.State)
		assert.True(t, snap.Price.HasValue)
		assert.Equal(t, 2000.0, snap.Price.Value.Value)
	})

	t.Run("latest error wins", func(t *testing.T) {
		s, _, chain, prices := newFixture()
		_, err := s.Connect(context.Background())
		require.NoError(t, err)

		chain.tokenErr = fmt.Errorf("%w: revert", types.ErrContractCallError)
		prices.set(0, types.ErrNetworkError)

		_ = s.FetchTokenBalance(context.Background())
		assert.Equal(t, "Failed to fetch USDT balance.", s.LastError())
		_ = s.FetchPrice(context.Background())
		assert.Equal(t, "Failed to fetch ETH price.", s.LastError())

		history := s.Snapshot().Errors
		require.Len(t, history, 2)
		assert.Equal(t, FieldTokenBalance, history[0].Source)
		assert.Equal(t, FieldPrice, history[1].Source)
	})

	t.Run("error history is bounded", func(t *testing.T) {
		s, _, _, prices := newFixture()
		prices.set(0, types.ErrNetworkError)
		for i := 0; i < errorHistoryLimit+5; i++ {
			_ = s.FetchPrice(context.Background())
		}
		assert.Len(t, s.Snapshot().Errors, errorHistoryLimit)
	})
}

func TestSession_PriceIdempotent(t *testing.T) {
	s, _, _, _ := newFixture()

	require.NoError(t, s.FetchPrice(context.Background()))
	first := s.Snapshot().Price.Value
	require.NoError(t, s.FetchPrice(context.Background()))
	second := s.Snapshot().Price.Value

	assert.Equal(t, first, second)
}

func TestSession_StaleResultDiscarded(t *testing.T) {
	s, conn, chain, _ := newFixture()
	_, err := s.Connect(context.Background())
	require.NoError(t, err)

	chain.gate = make(chan struct{})
	chain.started = make(chan types.AccountHandle, 1)

	done := make(chan error, 1)
	go func() { done <- s.FetchNativeBalance(context.Background()) }()
	assert.Equal(t, alice, <-chain.started)

	// the wallet switches accounts while alice's read is in flight
	conn.set(bob, nil)
	changed, err := s.SyncAccount(context.Background())
	require.NoError(t, err)
	assert.True(t, changed)

	close(chain.gate)
	select {
	case err := <-done:
		assert.ErrorIs(t, err, ErrStaleResult)
	case <-time.After(2 * time.Second):
		t.Fatal("fetch did not complete")
	}

	snap := s.Snapshot()
	assert.Equal(t, bob, snap.Account)
	assert.Equal(t, NotFetched, snap.NativeBalance.State)
	assert.False(t, snap.NativeBalance.HasValue)

	chain.mu.Lock()
	chain.started = nil
	chain.mu.Unlock()
	require.NoError(t, s.FetchNativeBalance(context.Background()))
	snap = s.Snapshot()
	assert.Equal(t, bob, snap.NativeBalance.Value.Account)
	assert.Equal(t, 2.0, snap.NativeBalance.Value.Value)
}

func TestSession_SyncAccount(t *testing.T) {
	s, conn, _, _ := newFixture()

	_, err := s.SyncAccount(context.Background())
	assert.ErrorIs(t, err, ErrNotConnected)

	_, err = s.Connect(context.Background())
	require.NoError(t, err)
	s.Refresh(context.Background())

	changed, err := s.SyncAccount(context.Background())
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Equal(t, Fetched, s.Snapshot().NativeBalance.State)

	conn.set(bob, nil)
	changed, err = s.SyncAccount(context.Background())
	require.NoError(t, err)
	assert.True(t, changed)

	snap := s.Snapshot()
	assert.Equal(t, NotFetched, snap.NativeBalance.State)
	assert.Equal(t, NotFetched, snap.TokenBalance.State)
	assert.Equal(t, Fetched, snap.Price.State, "price is not account-bound")
	assert.Nil(t, snap.USDValue)
}

func TestSession_Observer(t *testing.T) {
	var mu sync.Mutex
	var events []Event

	conn := &fakeConnector{account: alice}
	chain := &fakeChain{native: map[types.AccountHandle]float64{alice: 1}, token: map[types.AccountHandle]float64{}}
	prices := &fakePrices{err: types.ErrNetworkError}
	s := New(conn, chain, chain, prices, Config{TokenAddress: usdt, PriceAsset: "ethereum"},
		WithObserver(func(e Event) {
			mu.Lock()
			events = append(events, e)
			mu.Unlock()
		}))

	_, err := s.Connect(context.Background())
	require.NoError(t, err)
	s.Refresh(context.Background())

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, events, 3)
	byField := map[string]Event{}
	for _, e := range events {
		byField[e.Field] = e
	}
	assert.Equal(t, Fetched, byField[FieldNativeBalance].State)
	assert.Equal(t, Fetched, byField[FieldTokenBalance].State)
	assert.Equal(t, Failed, byField[FieldPrice].State)
	assert.True(t, errors.Is(byField[FieldPrice].Err, types.ErrNetworkError))
}

func TestSession_WithRetrier(t *testing.T) {
	prices := &flakyPrices{failures: 2}
	s := New(&fakeConnector{}, &fakeChain{}, &fakeChain{}, prices, Config{PriceAsset: "ethereum"},
		WithRetrier(retrier.New(retrier.WithMaxRetries(3), retrier.WithInitialInterval(time.Millisecond))))

	require.NoError(t, s.FetchPrice(context.Background()))
	assert.Equal(t, 3, prices.calls)
	assert.Equal(t, Fetched, s.Snapshot().Price.State)
}

type flakyPrices struct {
	failures int
	calls    int
}

func (f *flakyPrices) FetchPrice(ctx context.Context, assetID string) (types.PriceQuote, error) {
	f.calls++
	if f.calls <= f.failures {
		return types.PriceQuote{}, types.ErrNetworkError
	}
	return types.PriceQuote{AssetID: assetID, Value: 2000}, nil
}
