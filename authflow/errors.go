package authflow

import (
	"errors"
	"fmt"
)

// Kind classifies why a request failed. Every kind is terminal for the request.
type Kind string

const (
	KindProviderError           Kind = "ProviderError"
	KindValidationError         Kind = "ValidationError"
	KindExchangeError           Kind = "ExchangeError"
	KindMissingExpiry           Kind = "MissingExpiry"
	KindClaimsVerificationError Kind = "ClaimsVerificationError"
	KindStorageError            Kind = "StorageError"
	KindMissingIdentity         Kind = "MissingIdentity"
	KindInternal                Kind = "Internal"
)

// Error is returned by every flow operation that failed. Reason is a short,
// fixed description; Err carries the underlying detail for the log only.
type Error struct {
	Kind   Kind
	Reason string
	Err    error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Kind, e.Reason)
	}
	return fmt.Sprintf("%s: %s: %v", e.Kind, e.Reason, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(kind Kind, reason string, err error) *Error {
	return &Error{Kind: kind, Reason: reason, Err: err}
}

func storageError(reason string, err error) *Error {
	return newError(KindStorageError, reason, err)
}

// KindOf returns the kind of a flow error, or KindInternal for anything else
func KindOf(err error) Kind {
	var flowErr *Error
	if errors.As(err, &flowErr) {
		return flowErr.Kind
	}
	return KindInternal
}

// ReasonOf returns the short reason of a flow error, or the error text
func ReasonOf(err error) string {
	var flowErr *Error
	if errors.As(err, &flowErr) {
		return flowErr.Reason
	}
	return err.Error()
}
