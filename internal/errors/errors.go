// Package errors provides the structured error type used throughout the
// event store. Every error returned across a component boundary carries a
// kind, a message, an optional cause, and a retryable flag so callers can
// make a recovery decision without string-matching.
package errors

import (
	"errors"
	"fmt"
)

// Kind classifies an error by the recoverable condition it represents.
// These map directly onto spec.md §7.
type Kind string

const (
	KindDuplicateID      Kind = "DUPLICATE_ID"
	KindCapacityExceeded Kind = "CAPACITY_EXCEEDED"
	KindNotFound         Kind = "NOT_FOUND"
	KindInvalidFilter    Kind = "INVALID_FILTER"
	KindTimeout          Kind = "TIMEOUT"
	KindInternal         Kind = "INTERNAL"
)

// StoreError is the error type returned by every exported store,
// planner, pruner, and coordinator operation.
type StoreError struct {
	Kind      Kind
	Message   string
	Cause     error
	Retryable bool
}

// Error implements the error interface.
func (e *StoreError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Kind, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As compatibility.
func (e *StoreError) Unwrap() error {
	return e.Cause
}

// Is reports whether target is a StoreError of the same Kind.
func (e *StoreError) Is(target error) bool {
	var t *StoreError
	if errors.As(target, &t) {
		return e.Kind == t.Kind
	}
	return false
}

// New creates a StoreError of the given kind.
func New(kind Kind, message string) *StoreError {
	return &StoreError{Kind: kind, Message: message, Retryable: isRetryable(kind)}
}

// Wrap creates a StoreError of the given kind wrapping cause.
func Wrap(kind Kind, message string, cause error) *StoreError {
	return &StoreError{Kind: kind, Message: message, Cause: cause, Retryable: isRetryable(kind)}
}

// IsRetryable reports whether err (or its chain) is retryable.
func IsRetryable(err error) bool {
	var e *StoreError
	if errors.As(err, &e) {
		return e.Retryable
	}
	return false
}

// GetKind extracts the Kind from an error chain, or "" if err is not a
// StoreError.
func GetKind(err error) Kind {
	var e *StoreError
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// isRetryable implements spec.md §7's propagation policy: only Timeout
// and Internal are worth a caller-side retry.
func isRetryable(kind Kind) bool {
	switch kind {
	case KindTimeout, KindInternal:
		return true
	default:
		return false
	}
}

// Convenience constructors for the error kinds spec.md §7 names.

func NewDuplicateID(eventID string) *StoreError {
	return New(KindDuplicateID, fmt.Sprintf("event id %q already present", eventID))
}

func NewCapacityExceeded(maxEvents int64) *StoreError {
	return New(KindCapacityExceeded, fmt.Sprintf("store at capacity (max_events=%d) after prune attempt", maxEvents))
}

func NewNotFound(eventID string) *StoreError {
	return New(KindNotFound, fmt.Sprintf("event id %q not found", eventID))
}

func NewInvalidFilter(reason string) *StoreError {
	return New(KindInvalidFilter, reason)
}

func NewTimeout(reason string) *StoreError {
	return New(KindTimeout, reason)
}

func NewInternal(message string, cause error) *StoreError {
	return Wrap(KindInternal, message, cause)
}
