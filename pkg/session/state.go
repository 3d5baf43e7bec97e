package session

import (
	"time"

	"eth-wallet/pkg/types"
)

// ConnState is the session-level connection state.
// Disconnected -> Connecting -> Connected; Connected is terminal.
type ConnState int

const (
	Disconnected ConnState = iota
	Connecting
	Connected
)

func (s ConnState) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	default:
		return "disconnected"
	}
}

// FetchState is the per-field sub-state of one fetch operation
type FetchState int

const (
	NotFetched FetchState = iota
	Fetching
	Fetched
	Failed
)

func (s FetchState) String() string {
	switch s {
	case Fetching:
		return "fetching"
	case Fetched:
		return "fetched"
	case Failed:
		return "failed"
	default:
		return "not_fetched"
	}
}

// MarshalText lets states render by name in JSON and YAML output
func (s FetchState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s ConnState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Field names, used as error sources and event tags
const (
	FieldConnect       = "connect"
	FieldNativeBalance = "native_balance"
	FieldTokenBalance  = "token_balance"
	FieldPrice         = "price"
)

// Field holds the fetch state of one value and its latest successful result.
// A later failure or an in-flight refetch keeps the previous value.
type Field[T any] struct {
	State     FetchState `json:"state" yaml:"state"`
	HasValue  bool       `json:"has_value" yaml:"has_value"`
	Value     T          `json:"value" yaml:"value"`
	UpdatedAt time.Time  `json:"updated_at,omitempty" yaml:"updated_at,omitempty"`
}

// ErrorEntry is one user-visible failure
type ErrorEntry struct {
	Source  string    `json:"source" yaml:"source"`
	Message string    `json:"message" yaml:"message"`
	At      time.Time `json:"at" yaml:"at"`
}

// errorHistoryLimit bounds the ordered failure history kept next to the current message
const errorHistoryLimit = 10

// errorLog holds the current message (latest failure wins) and a bounded history
type errorLog struct {
	current string
	history []ErrorEntry
}

func (l *errorLog) record(e ErrorEntry) {
	l.current = e.Message
	l.history = append(l.history, e)
	if len(l.history) > errorHistoryLimit {
		l.history = l.history[len(l.history)-errorHistoryLimit:]
	}
}

func (l *errorLog) clear() {
	l.current = ""
}

// Snapshot is a consistent copy of the session for rendering
type Snapshot struct {
	State         ConnState                   `json:"state" yaml:"state"`
	Account       types.AccountHandle         `json:"account,omitempty" yaml:"account,omitempty"`
	NativeBalance Field[types.BalanceReading] `json:"native_balance" yaml:"native_balance"`
	TokenBalance  Field[types.BalanceReading] `json:"token_balance" yaml:"token_balance"`
	Price         Field[types.PriceQuote]     `json:"price" yaml:"price"`
	USDValue      *float64                    `json:"usd_value,omitempty" yaml:"usd_value,omitempty"`
	Error         string                      `json:"error,omitempty" yaml:"error,omitempty"`
	Errors        []ErrorEntry                `json:"errors,omitempty" yaml:"errors,omitempty"`
}

// Event is emitted each time a field settles
type Event struct {
	Field string
	State FetchState
	Err   error
}
