// Package errors provides standardized error handling for the feed service.
package errors

import (
	"fmt"
	"time"
)

// ==========================
// 1. Standard Error Types
// ==========================

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	ErrCodeRankedFeedRPCFailed  ErrorCode = "RANKED_FEED_RPC_FAILED"
	ErrCodeContentFetchFailed   ErrorCode = "CONTENT_FETCH_FAILED"
	ErrCodeProfileFetchFailed   ErrorCode = "PROFILE_FETCH_FAILED"
	ErrCodeBookingFetchFailed   ErrorCode = "BOOKING_FETCH_FAILED"
	ErrCodeQueryTimeout         ErrorCode = "QUERY_TIMEOUT"
	ErrCodeCacheReadFailed      ErrorCode = "CACHE_READ_FAILED"
	ErrCodeInvalidFeedRequest   ErrorCode = "INVALID_FEED_REQUEST"
	ErrCodeInvalidSortPref      ErrorCode = "INVALID_SORT_PREFERENCE"
	ErrCodeDatabaseConnFailed   ErrorCode = "DATABASE_CONNECTION_FAILED"
	ErrCodeResponseShapeInvalid ErrorCode = "RESPONSE_SHAPE_INVALID"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`

	cause error
}

func (e *StandardError) Error() string {
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

// Unwrap exposes the underlying error so callers can match driver
// sentinels (context.DeadlineExceeded, sql errors) through errors.Is.
func (e *StandardError) Unwrap() error {
	return e.cause
}

// ==========================
// 2. Error Constructors
// ==========================

// NewRankedFeedRPCError wraps a failed ranked-feed procedure call. Retryable:
// the orchestrator degrades to local computation instead of surfacing it.
func NewRankedFeedRPCError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeRankedFeedRPCFailed,
		Message:   "Ranked feed procedure call failed",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

// NewContentFetchError wraps a failed content batch read.
func NewContentFetchError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeContentFetchFailed,
		Message:   "Content batch fetch failed",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

// NewProfileFetchError wraps a failed customer profile read.
func NewProfileFetchError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeProfileFetchFailed,
		Message:   "Customer profile fetch failed",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

// NewBookingFetchError wraps a failed booking or interaction read.
func NewBookingFetchError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeBookingFetchFailed,
		Message:   "Booking history fetch failed",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

// NewCacheReadError wraps a failed preference cache read. The cache is an
// optimization, so the error is always recoverable by rebuilding.
func NewCacheReadError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeCacheReadFailed,
		Message:   "Preference cache read failed",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

// NewQueryTimeoutError marks a read that exceeded its deadline. Treated the
// same as any other read failure by the orchestrator.
func NewQueryTimeoutError(operation string) *StandardError {
	return &StandardError{
		Code:      ErrCodeQueryTimeout,
		Message:   "Query exceeded its deadline",
		Details:   operation,
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewInvalidFeedRequestError creates a non-retryable request validation error.
func NewInvalidFeedRequestError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeInvalidFeedRequest,
		Message:   "Invalid feed request",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}
