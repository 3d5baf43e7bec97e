package types

import "errors"

// Error taxonomy shared by the wallet, chain and price components.
// Components wrap the underlying cause with one of these using %w.
var (
	ErrUserRejected        = errors.New("user rejected")
	ErrProviderUnavailable = errors.New("wallet provider unavailable")
	ErrProviderError       = errors.New("provider error")
	ErrContractCallError   = errors.New("contract call error")
	ErrNetworkError        = errors.New("network error")
	ErrMalformedResponse   = errors.New("malformed response")
)

// Kind returns the taxonomy sentinel err belongs to, or nil
func Kind(err error) error {
	for _, kind := range []error{
		ErrUserRejected,
		ErrProviderUnavailable,
		ErrProviderError,
		ErrContractCallError,
		ErrNetworkError,
		ErrMalformedResponse,
	} {
		if errors.Is(err, kind) {
			return kind
		}
	}
	return nil
}
