package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sourcegraph/conc"
	"go.uber.org/zap"

	"eth-wallet/pkg/metrics"
	"eth-wallet/pkg/retrier"
	"eth-wallet/pkg/types"
)

var (
	// ErrNotConnected is returned by account-bound fetches before a successful connect
	ErrNotConnected = errors.New("wallet not connected")
	// ErrStaleResult is returned when a fetch completed for an account that is no longer active
	ErrStaleResult = errors.New("result discarded: account changed")
)

// Connector obtains the active wallet account
type Connector interface {
	Connect(ctx context.Context) (types.AccountHandle, error)
	Current(ctx context.Context) (types.AccountHandle, error)
}

// BalanceReader reads the native-currency balance
type BalanceReader interface {
	ReadNativeBalance(ctx context.Context, handle types.AccountHandle) (types.BalanceReading, error)
}

// TokenBalanceReader reads an ERC-20 balance
type TokenBalanceReader interface {
	ReadTokenBalance(ctx context.Context, handle types.AccountHandle, token common.Address) (types.BalanceReading, error)
}

// PriceFetcher fetches a spot price
type PriceFetcher interface {
	FetchPrice(ctx context.Context, assetID string) (types.PriceQuote, error)
}

// Config names what the session reads
type Config struct {
	NativeSymbol string
	TokenAddress common.Address
	TokenSymbol  string
	PriceAsset   string
}

// Option configures a Session
type Option func(*Session)

// WithLogger sets the logger
func WithLogger(l *zap.Logger) Option {
	return func(s *Session) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithRetrier retries failed fetches with r. Connect is never retried.
func WithRetrier(r *retrier.Retrier) Option {
	return func(s *Session) {
		s.retrier = r
	}
}

// WithObserver registers fn to receive an event each time a field settles.
// fn runs on the fetching goroutine and must not call back into the session
// synchronously.
func WithObserver(fn func(Event)) Option {
	return func(s *Session) {
		s.observer = fn
	}
}

// Session combines the wallet account, balances and price into one view.
// Each fetch writes only its own field. Account-bound fetches are tagged with
// the generation active at launch and dropped if the account changed before
// they completed.
type Session struct {
	connector Connector
	balances  BalanceReader
	tokens    TokenBalanceReader
	prices    PriceFetcher
	cfg       Config

	logger   *zap.Logger
	retrier  *retrier.Retrier
	observer func(Event)
	now      func() time.Time

	mu         sync.Mutex
	state      ConnState
	account    types.AccountHandle
	generation uint64
	native     Field[types.BalanceReading]
	token      Field[types.BalanceReading]
	price      Field[types.PriceQuote]
	errs       errorLog
}

// New creates a disconnected session
func New(connector Connector, balances BalanceReader, tokens TokenBalanceReader, prices PriceFetcher, cfg Config, opts ...Option) *Session {
	if cfg.NativeSymbol == "" {
		cfg.NativeSymbol = "ETH"
	}
	if cfg.TokenSymbol == "" {
		cfg.TokenSymbol = "TOKEN"
	}

	s := &Session{
		connector: connector,
		balances:  balances,
		tokens:    tokens,
		prices:    prices,
		cfg:       cfg,
		logger:    zap.NewNop(),
		now:       time.Now,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Connect asks the wallet for an account. A failure before the first
// successful connect leaves the session Disconnected with no account; a
// failure afterwards keeps the current account.
func (s *Session) Connect(ctx context.Context) (types.AccountHandle, error) {
	s.mu.Lock()
	if s.state == Disconnected {
		s.state = Connecting
	}
	s.mu.Unlock()

	handle, err := s.connector.Connect(ctx)
	metrics.ObserveConnect(err)

	s.mu.Lock()
	defer s.mu.Unlock()

	if err != nil {
		if s.state == Connecting {
			s.state = Disconnected
		}
		s.recordLocked(FieldConnect, err)
		s.logger.Debug("connect failed", zap.Error(err))
		return "", err
	}

	s.state = Connected
	s.errs.clear()
	s.setAccountLocked(handle)
	s.logger.Info("wallet connected", zap.String("account", string(handle)))
	return handle, nil
}

// SyncAccount reads the wallet's active account without prompting and
// switches to it if it changed. It reports whether the account changed.
func (s *Session) SyncAccount(ctx context.Context) (bool, error) {
	if !s.Connected() {
		return false, ErrNotConnected
	}

	handle, err := s.connector.Current(ctx)
	if err != nil {
		s.logger.Debug("account sync failed", zap.Error(err))
		return false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.setAccountLocked(handle), nil
}

// setAccountLocked switches the active account. On change the generation
// advances and account-bound fields reset so no value of the previous
// account is shown.
func (s *Session) setAccountLocked(handle types.AccountHandle) bool {
	if handle == s.account {
		return false
	}

	previous := s.account
	s.account = handle
	s.generation++
	s.native = Field[types.BalanceReading]{}
	s.token = Field[types.BalanceReading]{}

	if previous != "" {
		metrics.AccountChanges.Inc()
		s.logger.Info("account changed",
			zap.String("from", string(previous)),
			zap.String("to", string(handle)))
	}
	return true
}

// Connected reports whether a connect has ever succeeded
func (s *Session) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state == Connected
}

// Account returns the active account, empty before the first connect
func (s *Session) Account() types.AccountHandle {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.account
}

// Refresh runs all fetches concurrently and waits for them. Account-bound
// fetches run only when connected. Failures are recorded in the session, not
// returned.
func (s *Session) Refresh(ctx context.Context) {
	var wg conc.WaitGroup

	wg.Go(func() { _ = s.FetchPrice(ctx) })

	if s.Connected() {
		wg.Go(func() { _ = s.FetchNativeBalance(ctx) })
		wg.Go(func() { _ = s.FetchTokenBalance(ctx) })
	}

	wg.Wait()
}

// FetchNativeBalance reads the native balance of the active account
func (s *Session) FetchNativeBalance(ctx context.Context) error {
	return fetchForAccount(s, ctx, FieldNativeBalance, metrics.OpNativeBalance,
		func(sess *Session) *Field[types.BalanceReading] { return &sess.native },
		func(ctx context.Context, handle types.AccountHandle) (types.BalanceReading, error) {
			return s.balances.ReadNativeBalance(ctx, handle)
		})
}

// FetchTokenBalance reads the configured token balance of the active account
func (s *Session) FetchTokenBalance(ctx context.Context) error {
	return fetchForAccount(s, ctx, FieldTokenBalance, metrics.OpTokenBalance,
		func(sess *Session) *Field[types.BalanceReading] { return &sess.token },
		func(ctx context.Context, handle types.AccountHandle) (types.BalanceReading, error) {
			reading, err := s.tokens.ReadTokenBalance(ctx, handle, s.cfg.TokenAddress)
			if err == nil && reading.Symbol == "" {
				reading.Symbol = s.cfg.TokenSymbol
			}
			return reading, err
		})
}

// FetchPrice reads the spot price of the configured asset. The price does
// not depend on the account and is never discarded as stale.
func (s *Session) FetchPrice(ctx context.Context) error {
	s.mu.Lock()
	s.price.State = Fetching
	s.mu.Unlock()

	start := time.Now()
	quote, err := retrier.DoWithData(s.retrier, ctx, func(ctx context.Context) (types.PriceQuote, error) {
		return s.prices.FetchPrice(ctx, s.cfg.PriceAsset)
	})
	metrics.ObserveFetch(metrics.OpPrice, err, time.Since(start))

	s.mu.Lock()
	if err != nil {
		s.price.State = Failed
		s.recordLocked(FieldPrice, err)
	} else {
		s.price = Field[types.PriceQuote]{State: Fetched, HasValue: true, Value: quote, UpdatedAt: s.now()}
	}
	s.mu.Unlock()

	s.emit(Event{Field: FieldPrice, State: stateOf(err), Err: err})
	return err
}

// fetchForAccount runs read for the active account and applies the result
// only if the account is still the one the read was launched for
func fetchForAccount[T any](
	s *Session,
	ctx context.Context,
	name, op string,
	field func(*Session) *Field[T],
	read func(context.Context, types.AccountHandle) (T, error),
) error {
	s.mu.Lock()
	if s.state != Connected {
		s.mu.Unlock()
		return ErrNotConnected
	}
	handle := s.account
	generation := s.generation
	field(s).State = Fetching
	s.mu.Unlock()

	start := time.Now()
	value, err := retrier.DoWithData(s.retrier, ctx, func(ctx context.Context) (T, error) {
		return read(ctx, handle)
	})
	metrics.ObserveFetch(op, err, time.Since(start))

	s.mu.Lock()
	if generation != s.generation {
		s.mu.Unlock()
		metrics.StaleDiscarded.WithLabelValues(op).Inc()
		s.logger.Debug("discarding stale result",
			zap.String("field", name),
			zap.String("account", string(handle)),
			zap.Error(err))
		return ErrStaleResult
	}

	f := field(s)
	if err != nil {
		f.State = Failed
		s.recordLocked(name, err)
	} else {
		*f = Field[T]{State: Fetched, HasValue: true, Value: value, UpdatedAt: s.now()}
	}
	s.mu.Unlock()

	s.emit(Event{Field: name, State: stateOf(err), Err: err})
	return err
}

// recordLocked turns err into the user-visible message for source
func (s *Session) recordLocked(source string, err error) {
	msg := s.message(source, err)
	s.errs.record(ErrorEntry{Source: source, Message: msg, At: s.now()})
	s.logger.Debug("operation failed",
		zap.String("source", source),
		zap.String("message", msg),
		zap.Error(err))
}

func (s *Session) message(source string, err error) string {
	switch source {
	case FieldConnect:
		if errors.Is(err, types.ErrUserRejected) {
			return "User rejected connection or another error occurred."
		}
		return "Wallet provider not detected. Configure a wallet RPC endpoint, keystore or address."
	case FieldNativeBalance:
		return fmt.Sprintf("Failed to fetch %s balance.", s.cfg.NativeSymbol)
	case FieldTokenBalance:
		return fmt.Sprintf("Failed to fetch %s balance.", s.cfg.TokenSymbol)
	case FieldPrice:
		return fmt.Sprintf("Failed to fetch %s price.", s.cfg.NativeSymbol)
	default:
		return err.Error()
	}
}

func (s *Session) emit(e Event) {
	if s.observer != nil {
		s.observer(e)
	}
}

func stateOf(err error) FetchState {
	if err != nil {
		return Failed
	}
	return Fetched
}

// USDValue returns the derived USD value of the native balance. ok is false
// while either the balance or the price has never been fetched for the
// current account.
func (s *Session) USDValue() (float64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.usdValueLocked()
}

func (s *Session) usdValueLocked() (float64, bool) {
	if !s.native.HasValue || !s.price.HasValue {
		return 0, false
	}
	return Derive(s.native.Value.Value, s.price.Value.Value), true
}

// LastError returns the current user-visible message, empty if none
func (s *Session) LastError() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.errs.current
}

// Snapshot returns a consistent copy of the session
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{
		State:         s.state,
		Account:       s.account,
		NativeBalance: s.native,
		TokenBalance:  s.token,
		Price:         s.price,
		Error:         s.errs.current,
		Errors:        append([]ErrorEntry(nil), s.errs.history...),
	}
	if usd, ok := s.usdValueLocked(); ok {
		snap.USDValue = &usd
	}
	return snap
}
