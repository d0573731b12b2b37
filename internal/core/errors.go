package core

import (
	"errors"
	"fmt"
)

// Error codes for domain errors.
const (
	ErrCodeInvalidArgument = "invalid_argument"
	ErrCodePersistence     = "persistence_failure"
	ErrCodeRateLimited     = "rate_limited"
	ErrCodeBadRequest      = "bad_request"
	ErrCodeUnknownConn     = "unknown_connection"
)

var (
	ErrInvalidArgument   = errors.New("invalid argument")
	ErrPersistence       = errors.New("persistence failure")
	ErrTransport         = errors.New("transport failure")
	ErrUnknownConnection = errors.New("unknown connection")
	ErrDuplicateConn     = errors.New("connection already registered")
	ErrGatewayClosed     = errors.New("gateway closed")
)

// CoreError wraps a code and human-readable message.
// Err carries the sentinel (and cause) so errors.Is works on it.
type CoreError struct {
	Code    string
	Message string
	Err     error
}

func (e *CoreError) Error() string {
	return e.Message
}

func (e *CoreError) Unwrap() error {
	return e.Err
}

func coreError(code, msg string, err error) *CoreError {
	return &CoreError{Code: code, Message: msg, Err: err}
}

func invalidArgument(msg string) *CoreError {
	return coreError(ErrCodeInvalidArgument, msg, ErrInvalidArgument)
}

func persistenceFailure(msg string, cause error) *CoreError {
	return coreError(ErrCodePersistence, msg, fmt.Errorf("%w: %w", ErrPersistence, cause))
}

// NewCoreError builds an error with a code outside the core taxonomy, e.g. transport-level rejections.
func NewCoreError(code, msg string) *CoreError {
	return coreError(code, msg, nil)
}
