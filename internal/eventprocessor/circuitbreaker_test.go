// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/auditcore

package eventprocessor

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestCircuitBreaker_TripsAfterThresholdAndMinimumThroughput(t *testing.T) {
	cfg := BreakerConfig{
		Name:               "test",
		FailureThreshold:   3,
		MinimumThroughput:  3,
		RecoveryTimeoutMs:  50,
		MonitoringPeriodMs: 60000,
	}
	cb := NewCircuitBreaker(cfg)
	ctx := context.Background()

	failing := func() (any, error) { return nil, errors.New("boom") }

	for i := 0; i < 3; i++ {
		if _, err := cb.Execute(ctx, failing); err == nil {
			t.Fatalf("expected failure on warmup call %d", i)
		}
	}

	if cb.State() != "OPEN" {
		t.Fatalf("expected breaker OPEN after %d consecutive failures, got %s", cfg.FailureThreshold, cb.State())
	}

	_, err := cb.Execute(ctx, func() (any, error) { return "should not run", nil })
	var openErr *CircuitOpenError
	if !errors.As(err, &openErr) {
		t.Fatalf("expected *CircuitOpenError while OPEN, got %v (%T)", err, err)
	}
}

func TestCircuitBreaker_BelowMinimumThroughputDoesNotTrip(t *testing.T) {
	cfg := BreakerConfig{
		Name:              "test",
		FailureThreshold:  1,
		MinimumThroughput: 10,
		RecoveryTimeoutMs: 50,
		MonitoringPeriodMs: 60000,
	}
	cb := NewCircuitBreaker(cfg)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		cb.Execute(ctx, func() (any, error) { return nil, errors.New("boom") })
	}

	if cb.State() != "CLOSED" {
		t.Fatalf("expected breaker to stay CLOSED below minimumThroughput, got %s", cb.State())
	}
}

func TestCircuitBreaker_HalfOpenAdmitsSingleProbeThenCloses(t *testing.T) {
	cfg := BreakerConfig{
		Name:               "test",
		FailureThreshold:   2,
		MinimumThroughput:  2,
		RecoveryTimeoutMs:  20,
		MonitoringPeriodMs: 60000,
	}
	cb := NewCircuitBreaker(cfg)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		cb.Execute(ctx, func() (any, error) { return nil, errors.New("boom") })
	}
	if cb.State() != "OPEN" {
		t.Fatalf("expected OPEN, got %s", cb.State())
	}

	time.Sleep(30 * time.Millisecond)

	if cb.State() != "HALF_OPEN" {
		t.Fatalf("expected HALF_OPEN after recovery timeout, got %s", cb.State())
	}

	if _, err := cb.Execute(ctx, func() (any, error) { return "ok", nil }); err != nil {
		t.Fatalf("expected the HALF_OPEN probe to succeed, got %v", err)
	}
	if cb.State() != "CLOSED" {
		t.Fatalf("expected breaker to close after a successful probe, got %s", cb.State())
	}
}

func TestCircuitBreaker_TransitionRingBufferBounded(t *testing.T) {
	cfg := BreakerConfig{
		Name:               "test",
		FailureThreshold:   1,
		MinimumThroughput:  1,
		RecoveryTimeoutMs:  1,
		MonitoringPeriodMs: 60000,
	}
	cb := NewCircuitBreaker(cfg)
	ctx := context.Background()

	for i := 0; i < transitionRingCap+20; i++ {
		cb.Execute(ctx, func() (any, error) { return nil, errors.New("boom") })
		time.Sleep(2 * time.Millisecond)
	}

	if got := len(cb.Transitions()); got > transitionRingCap {
		t.Fatalf("expected transitions bounded at %d, got %d", transitionRingCap, got)
	}
}
