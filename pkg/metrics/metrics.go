package metrics

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"eth-wallet/pkg/types"
)

// Fetch operations
const (
	OpNativeBalance = "native_balance"
	OpTokenBalance  = "token_balance"
	OpPrice         = "price"
)

var (
	FetchTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wallet_fetch_total",
			Help: "Completed fetches by operation and outcome",
		}, []string{"op", "outcome"})

	FetchLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "wallet_fetch_latency_seconds",
			Help:    "Time spent in one fetch",
			Buckets: prometheus.DefBuckets,
		}, []string{"op"})

	StaleDiscarded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wallet_stale_results_total",
			Help: "Fetch results dropped because the account changed mid-flight",
		}, []string{"op"})

	ConnectTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wallet_connect_total",
			Help: "Connect attempts by outcome",
		}, []string{"outcome"})

	AccountChanges = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "wallet_account_changes_total",
			Help: "Times the active account changed",
		})
)

// ObserveFetch records one completed fetch
func ObserveFetch(op string, err error, took time.Duration) {
	FetchTotal.WithLabelValues(op, Outcome(err)).Inc()
	FetchLatency.WithLabelValues(op).Observe(took.Seconds())
}

// ObserveConnect records one connect attempt
func ObserveConnect(err error) {
	ConnectTotal.WithLabelValues(Outcome(err)).Inc()
}

// Outcome labels err by its taxonomy kind
func Outcome(err error) string {
	switch kind := types.Kind(err); {
	case err == nil:
		return "ok"
	case errors.Is(kind, types.ErrUserRejected):
		return "user_rejected"
	case errors.Is(kind, types.ErrProviderUnavailable):
		return "provider_unavailable"
	case errors.Is(kind, types.ErrProviderError):
		return "provider_error"
	case errors.Is(kind, types.ErrContractCallError):
		return "contract_call_error"
	case errors.Is(kind, types.ErrNetworkError):
		return "network_error"
	case errors.Is(kind, types.ErrMalformedResponse):
		return "malformed_response"
	default:
		return "error"
	}
}
