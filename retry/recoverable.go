// Package retry runs an operation repeatedly until it succeeds, the error is
// classified as permanent, or the attempt budget is spent. Backoff between
// attempts is exponential with a capped wait.
package retry

import (
	"context"
	"errors"
	"net"
	"net/url"
	"strings"
)

// RecoverableError lets an error declare its own retry classification.
type RecoverableError interface {
	error
	IsRecoverable() bool
}

// IsRecoverable reports whether an error is worth retrying. Errors that
// implement RecoverableError decide for themselves; everything else is
// classified by heuristics over well-known error types and messages.
func IsRecoverable(err error) bool {
	if err == nil {
		return false
	}
	var recoverable RecoverableError
	if errors.As(err, &recoverable) {
		return recoverable.IsRecoverable()
	}
	return isRecoverableByType(err)
}

func isRecoverableByType(err error) bool {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return true
	case errors.Is(err, context.Canceled):
		return false // cancellation is intentional
	}

	var netErr *net.OpError
	if errors.As(err, &netErr) {
		if netErr.Temporary() || netErr.Timeout() {
			return true
		}
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return isRecoverableByType(urlErr.Err)
	}

	errStr := strings.ToLower(err.Error())
	for _, pattern := range []string{
		"connection refused",
		"connection reset",
		"timeout",
		"temporary failure",
		"rate limit",
		"too many requests",
		"overloaded",
		"service unavailable",
		"internal server error",
		"bad gateway",
		"gateway timeout",
	} {
		if strings.Contains(errStr, pattern) {
			return true
		}
	}
	return false
}

type recoverableError struct {
	err error
}

func (e *recoverableError) Error() string       { return e.err.Error() }
func (e *recoverableError) IsRecoverable() bool { return true }
func (e *recoverableError) Unwrap() error       { return e.err }

// NewRecoverableError marks an error as retryable regardless of heuristics.
func NewRecoverableError(err error) RecoverableError {
	return &recoverableError{err: err}
}

// NonRecoverableError marks an error that must not be retried.
type NonRecoverableError struct {
	err error
}

func (e *NonRecoverableError) Error() string       { return e.err.Error() }
func (e *NonRecoverableError) IsRecoverable() bool { return false }
func (e *NonRecoverableError) Unwrap() error       { return e.err }

func NewNonRecoverableError(err error) *NonRecoverableError {
	return &NonRecoverableError{err: err}
}
