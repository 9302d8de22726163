package helpers

import (
	"context"
	"errors"
	"fmt"
	"time"

	"market-relay/src/logger"

	"github.com/cenkalti/backoff/v4"
)

// -----------------------------------------------------------------------------
// Custom Error Types
// -----------------------------------------------------------------------------

type RelayError struct {
	Message string
	Cause   error
}

func (e *RelayError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *RelayError) Unwrap() error {
	return e.Cause
}

// Distinct types so callers can errors.As on the failure class.
type AuthError struct{ RelayError }
type TransportError struct{ RelayError }
type DecodeError struct{ RelayError }
type ReferenceDataError struct{ RelayError }
type ClientTransportError struct{ RelayError }
type ConfigurationError struct{ RelayError }
type NetworkError struct{ RelayError }
type DatabaseError struct{ RelayError }
type ValidationError struct{ RelayError }

func NewAuthError(msg string, cause error) error {
	return &AuthError{RelayError{Message: msg, Cause: cause}}
}

func NewTransportError(msg string, cause error) error {
	return &TransportError{RelayError{Message: msg, Cause: cause}}
}

func NewDecodeError(msg string, cause error) error {
	return &DecodeError{RelayError{Message: msg, Cause: cause}}
}

func NewReferenceDataError(msg string, cause error) error {
	return &ReferenceDataError{RelayError{Message: msg, Cause: cause}}
}

func NewClientTransportError(msg string, cause error) error {
	return &ClientTransportError{RelayError{Message: msg, Cause: cause}}
}

func NewNetworkError(msg string, cause error) error {
	return &NetworkError{RelayError{Message: msg, Cause: cause}}
}

func NewDatabaseError(msg string, cause error) error {
	return &DatabaseError{RelayError{Message: msg, Cause: cause}}
}

func NewValidationError(msg string, cause error) error {
	return &ValidationError{RelayError{Message: msg, Cause: cause}}
}

// IsAuthError reports whether err (or anything it wraps) is an AuthError.
func IsAuthError(err error) bool {
	var target *AuthError
	return errors.As(err, &target)
}

// IsDecodeError reports whether err (or anything it wraps) is a DecodeError.
func IsDecodeError(err error) bool {
	var target *DecodeError
	return errors.As(err, &target)
}

// -----------------------------------------------------------------------------
// Retry Logic
// -----------------------------------------------------------------------------

// Permanent marks err as not worth retrying.
func Permanent(err error) error {
	return backoff.Permanent(err)
}

// RetryWithBackoff runs fn until it succeeds, returns a Permanent error, the
// context ends, or maxRetries retries have been used. Delays grow
// exponentially from baseDelay.
func RetryWithBackoff[T any](ctx context.Context, operation string, maxRetries int, baseDelay time.Duration, log *logger.Logger, fn func() (T, error)) (T, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = baseDelay
	b.MaxElapsedTime = 0

	var policy backoff.BackOff = b
	if maxRetries >= 0 {
		policy = backoff.WithMaxRetries(b, uint64(maxRetries))
	}
	policy = backoff.WithContext(policy, ctx)

	attempt := 0
	notify := func(err error, wait time.Duration) {
		attempt++
		if log != nil {
			log.Warning("Attempt %d failed for %s: %v. Retrying in %v", attempt, operation, err, wait)
		}
	}

	return backoff.RetryNotifyWithData(fn, policy, notify)
}
