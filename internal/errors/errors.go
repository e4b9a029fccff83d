package errors

import (
	"errors"
	"fmt"
)

// Common error types for the backend-for-frontend gateway
var (
	// Session errors
	ErrInvalidSessionID  = errors.New("invalid session id")
	ErrMalformedField    = errors.New("malformed session field")
	ErrSessionStoreClose = errors.New("session store closed")

	// Cookie errors
	ErrInvalidCookie    = errors.New("invalid session cookie")
	ErrInvalidCookieKey = errors.New("invalid cookie key")

	// Provider errors
	ErrNonceMismatch = errors.New("id token nonce mismatch")

	// Configuration errors
	ErrInvalidConfig = errors.New("invalid configuration")

	ErrUnsupported = errors.New("unsupported operation")
)

// Wrapf wraps an error with context using fmt.Errorf
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}

// Is reports whether any error in err's chain matches target
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
