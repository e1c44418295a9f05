// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/auditcore

package eventprocessor

import (
	"context"
	"errors"
	"math"
	"math/rand/v2"
	"strings"
	"time"
)

// Attempt records one call made by the Retry Engine.
type Attempt struct {
	Attempt   int
	DelayMs   int64
	Error     error
	At        time.Time
	Cancelled bool
}

// Outcome is the typed result of RetryEngine.Run.
type Outcome struct {
	Success  bool
	Value    any
	Err      error
	Attempts []Attempt
	TotalMs  int64
}

// Operation is the user handler wrapped by the retry loop. It returns a
// value on success, or an error that the engine classifies.
type Operation func(ctx context.Context, attempt int) (any, error)

// RetryEngine drives a bounded retry loop with configurable backoff.
type RetryEngine struct {
	cfg RetryConfig
}

// NewRetryEngine constructs a RetryEngine for cfg.
func NewRetryEngine(cfg RetryConfig) *RetryEngine {
	return &RetryEngine{cfg: cfg}
}

// Run executes op per cfg: classification before retry, retry budget
// checked before waiting, cancellation aborts immediately without waiting
// out a pending backoff.
func (e *RetryEngine) Run(ctx context.Context, op Operation) Outcome {
	start := time.Now()
	var attempts []Attempt

	for n := 1; ; n++ {
		select {
		case <-ctx.Done():
			attempts = append(attempts, Attempt{Attempt: n, Error: ctx.Err(), At: time.Now(), Cancelled: true})
			return Outcome{
				Success:  false,
				Err:      ErrCancelled,
				Attempts: attempts,
				TotalMs:  time.Since(start).Milliseconds(),
			}
		default:
		}

		value, err := op(ctx, n)
		at := time.Now()

		if err == nil {
			attempts = append(attempts, Attempt{Attempt: n, At: at})
			return Outcome{Success: true, Value: value, Attempts: attempts, TotalMs: time.Since(start).Milliseconds()}
		}

		retryable := e.isRetryable(err)
		if !retryable {
			attempts = append(attempts, Attempt{Attempt: n, Error: err, At: at})
			return Outcome{
				Success:  false,
				Err:      &PermanentError{Cause: err},
				Attempts: attempts,
				TotalMs:  time.Since(start).Milliseconds(),
			}
		}

		// Retry budget checked BEFORE waiting the next delay.
		if n > e.cfg.MaxRetries {
			attempts = append(attempts, Attempt{Attempt: n, Error: err, At: at})
			return Outcome{
				Success:  false,
				Err:      &RetryExhaustedError{Cause: err, Attempts: n},
				Attempts: attempts,
				TotalMs:  time.Since(start).Milliseconds(),
			}
		}

		delay := e.delay(n)
		attempts = append(attempts, Attempt{Attempt: n, DelayMs: delay.Milliseconds(), Error: err, At: at})

		if delay > 0 {
			timer := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				attempts = append(attempts, Attempt{Attempt: n, Error: ctx.Err(), At: time.Now(), Cancelled: true})
				return Outcome{
					Success:  false,
					Err:      ErrCancelled,
					Attempts: attempts,
					TotalMs:  time.Since(start).Milliseconds(),
				}
			case <-timer.C:
			}
		}
	}
}

// delay computes the backoff for attempt n (1-indexed):
// strategy-specific base, capped at MaxDelayMs, then jittered by a uniform
// factor in [0.9, 1.1] if enabled, clamped >= 0.
func (e *RetryEngine) delay(n int) time.Duration {
	var ms float64
	base := float64(e.cfg.BaseDelayMs)
	switch e.cfg.Strategy {
	case BackoffLinear:
		ms = base * float64(n)
	case BackoffFixed:
		ms = base
	default: // exponential
		ms = base * math.Pow(2, float64(n-1))
	}

	if max := float64(e.cfg.MaxDelayMs); ms > max {
		ms = max
	}

	if e.cfg.Jitter {
		factor := 0.9 + rand.Float64()*0.2 // uniform in [0.9, 1.1]
		ms *= factor
		if ms < 0 {
			ms = 0
		}
	}

	return time.Duration(ms) * time.Millisecond
}

// isRetryable classifies err: code membership in RetryableCodes,
// or a case-insensitive substring match against RetryableMessageSubstrings.
func (e *RetryEngine) isRetryable(err error) bool {
	var rerr RetryableError
	if errors.As(err, &rerr) {
		if _, found := e.cfg.RetryableCodes[rerr.Code()]; found {
			return true
		}
	}
	lower := strings.ToLower(err.Error())
	for _, sub := range e.cfg.RetryableMessageSubstrings {
		if strings.Contains(lower, strings.ToLower(sub)) {
			return true
		}
	}
	return false
}
