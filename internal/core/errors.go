// internal/core/errors.go
package core

import "fmt"

// Error represents a structured error with code and optional cause.
type Error struct {
	Code    string
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is implements errors.Is matching by code.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Code == t.Code
	}
	return false
}

// WrapError creates a new error with the same code but with a cause.
func WrapError(base *Error, cause error) *Error {
	return &Error{
		Code:    base.Code,
		Message: base.Message,
		Cause:   cause,
	}
}

// Predefined errors
var (
	// Data errors
	ErrNoData        = &Error{Code: "NO_DATA", Message: "no data available"}
	ErrStoreFailed   = &Error{Code: "STORE_FAILED", Message: "kline store operation failed"}
	ErrStockNotFound = &Error{Code: "STOCK_NOT_FOUND", Message: "stock not found"}

	// Collector errors
	ErrCollectorFailed  = &Error{Code: "COLLECTOR_FAILED", Message: "collector failed"}
	ErrCollectorTimeout = &Error{Code: "COLLECTOR_TIMEOUT", Message: "collector timeout"}

	// Factor errors
	ErrUnknownFactor      = &Error{Code: "UNKNOWN_FACTOR", Message: "unknown factor id"}
	ErrUnknownCombination = &Error{Code: "UNKNOWN_COMBINATION", Message: "unknown combination id"}

	// Sync errors
	ErrSyncFailed       = &Error{Code: "SYNC_FAILED", Message: "result sync failed"}
	ErrSyncUnauthorized = &Error{Code: "SYNC_UNAUTHORIZED", Message: "result sync rejected: check write token"}

	// API errors
	ErrInvalidPayload = &Error{Code: "INVALID_PAYLOAD", Message: "ingest payload invalid"}

	// Archive errors
	ErrArchiveFailed = &Error{Code: "ARCHIVE_FAILED", Message: "archive operation failed"}

	// Config errors
	ErrConfigInvalid = &Error{Code: "CONFIG_INVALID", Message: "configuration invalid"}
	ErrConfigMissing = &Error{Code: "CONFIG_MISSING", Message: "required configuration missing"}
)
