// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/auditcore

package eventprocessor

import (
	"context"
	"sync"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"
)

// BreakerTransition is one ring-buffer entry recording a state change.
type BreakerTransition struct {
	From   string
	To     string
	At     time.Time
	Reason string
}

const transitionRingCap = 100

// CircuitBreaker wraps gobreaker/v2 to add the pieces gobreaker's bare API
// doesn't expose: a minimumThroughput
// gate on top of ReadyToTrip, a bounded ring buffer of transitions, and an
// explicit nextAttemptAt readable by the health surface.
type CircuitBreaker struct {
	cfg BreakerConfig
	cb  *gobreaker.CircuitBreaker[any]

	mu            sync.Mutex
	transitions   []BreakerTransition
	nextAttemptAt time.Time
}

// NewCircuitBreaker constructs a breaker from cfg.
func NewCircuitBreaker(cfg BreakerConfig) *CircuitBreaker {
	b := &CircuitBreaker{cfg: cfg}

	settings := gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: 1, // HALF_OPEN admits exactly one probe
		Interval:    cfg.monitoringPeriod(),
		Timeout:     cfg.recoveryTimeout(),
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.FailureThreshold &&
				counts.Requests >= cfg.MinimumThroughput
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			b.recordTransition(from, to)
		},
	}
	b.cb = gobreaker.NewCircuitBreaker[any](settings)
	return b
}

func (b *CircuitBreaker) recordTransition(from, to gobreaker.State) {
	b.mu.Lock()
	defer b.mu.Unlock()

	reason := "state-change"
	if to == gobreaker.StateOpen {
		b.nextAttemptAt = time.Now().Add(b.cfg.recoveryTimeout())
		reason = "breaker-open"
	}

	t := BreakerTransition{From: from.String(), To: to.String(), At: time.Now(), Reason: reason}
	b.transitions = append(b.transitions, t)
	if len(b.transitions) > transitionRingCap {
		b.transitions = b.transitions[len(b.transitions)-transitionRingCap:]
	}
}

// Execute runs op guarded by the breaker. On CircuitOpenError from
// gobreaker (ErrOpenState/ErrTooManyRequests) it returns this package's
// CircuitOpenError so callers can classify it as a fast-fail.
func (b *CircuitBreaker) Execute(_ context.Context, op func() (any, error)) (any, error) {
	v, err := b.cb.Execute(op)
	if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
		return nil, &CircuitOpenError{NextAttemptAt: b.NextAttemptAt().Format(time.RFC3339)}
	}
	return v, err
}

// State returns the current breaker state as a string: CLOSED, OPEN, or
// HALF_OPEN — normalized from gobreaker's StateClosed/StateOpen/StateHalfOpen.
func (b *CircuitBreaker) State() string {
	switch b.cb.State() {
	case gobreaker.StateOpen:
		return "OPEN"
	case gobreaker.StateHalfOpen:
		return "HALF_OPEN"
	default:
		return "CLOSED"
	}
}

// NextAttemptAt returns the time after which an OPEN breaker will admit a
// HALF_OPEN probe. Zero value if the breaker has never tripped.
func (b *CircuitBreaker) NextAttemptAt() time.Time {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.nextAttemptAt
}

// Transitions returns a snapshot copy of the bounded transition ring
// buffer (cap 100).
func (b *CircuitBreaker) Transitions() []BreakerTransition {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]BreakerTransition, len(b.transitions))
	copy(out, b.transitions)
	return out
}

// Counts returns the underlying gobreaker request/failure counters.
func (b *CircuitBreaker) Counts() gobreaker.Counts {
	return b.cb.Counts()
}
