// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/auditcore

package eventprocessor

import (
	"errors"
	"fmt"
)

// RetryableError is implemented by handler errors that carry a code the
// Retry Engine can classify against RetryConfig.RetryableCodes.
// Handler errors that don't implement it are classified on message
// substring alone.
type RetryableError interface {
	error
	Code() string
}

// CodedError is a convenience RetryableError implementation for handlers
// and tests.
type CodedError struct {
	Msg     string
	Code_   string
	Wrapped error
}

func (e *CodedError) Error() string { return e.Msg }
func (e *CodedError) Code() string  { return e.Code_ }
func (e *CodedError) Unwrap() error { return e.Wrapped }

// PermanentError signals a non-retryable handler failure (validation,
// schema mismatch, unauthorized).
type PermanentError struct {
	Cause error
}

func (e *PermanentError) Error() string { return fmt.Sprintf("permanent error: %v", e.Cause) }
func (e *PermanentError) Unwrap() error { return e.Cause }

// RetryExhaustedError wraps the last transient cause after the retry
// budget is spent.
type RetryExhaustedError struct {
	Cause    error
	Attempts int
}

func (e *RetryExhaustedError) Error() string {
	return fmt.Sprintf("retry exhausted after %d attempts: %v", e.Attempts, e.Cause)
}
func (e *RetryExhaustedError) Unwrap() error { return e.Cause }

// CircuitOpenError is the fast-fail emitted when the breaker is OPEN, or
// HALF_OPEN and already probing. It is treated as permanent
// for the current attempt.
type CircuitOpenError struct {
	NextAttemptAt string
}

func (e *CircuitOpenError) Error() string {
	return "circuit breaker open, rejecting call until " + e.NextAttemptAt
}

// InfrastructureError covers DLQ write failure, partition creation
// failure, and integrity-store failure. Never silently acks
// the source job.
type InfrastructureError struct {
	Op    string
	Cause error
}

func (e *InfrastructureError) Error() string {
	return fmt.Sprintf("infrastructure error during %s: %v", e.Op, e.Cause)
}
func (e *InfrastructureError) Unwrap() error { return e.Cause }

var (
	// ErrCancelled is returned (wrapped into an attempt record) when the
	// caller's context is cancelled mid-retry.
	ErrCancelled = errors.New("eventprocessor: operation cancelled")

	// ErrAlreadyStarted / ErrNotStarted guard Processor.Start/Stop
	// idempotency.
	ErrAlreadyStarted = errors.New("eventprocessor: processor already started")
	ErrNotStarted     = errors.New("eventprocessor: processor not started")
)
