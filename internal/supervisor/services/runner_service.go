// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/auditcore

package services

import (
	"context"
	"fmt"
	"time"
)

// Runner is any component with a Start/Shutdown lifecycle that isn't
// already a suture.Service — e.g. the Watermill subscriber pump that feeds
// audit events into the Processor. Satisfied without importing the
// component's package directly, avoiding a dependency cycle back into
// cmd/server's wiring.
type Runner interface {
	Start(ctx context.Context) error
	Shutdown(ctx context.Context)
}

// RunnerService adapts a Runner's Start/Shutdown lifecycle to suture's
// Serve pattern: start, block on ctx.Done(), then shut down with a bounded
// timeout on a fresh context (the original is already cancelled by then).
type RunnerService struct {
	runner          Runner
	shutdownTimeout time.Duration
	name            string
}

// NewRunnerService wraps runner under name, with a default 10s shutdown
// timeout.
func NewRunnerService(name string, runner Runner) *RunnerService {
	return NewRunnerServiceWithTimeout(name, runner, 10*time.Second)
}

// NewRunnerServiceWithTimeout is NewRunnerService with an explicit
// shutdown timeout.
func NewRunnerServiceWithTimeout(name string, runner Runner, shutdownTimeout time.Duration) *RunnerService {
	if shutdownTimeout <= 0 {
		shutdownTimeout = 10 * time.Second
	}
	return &RunnerService{runner: runner, shutdownTimeout: shutdownTimeout, name: name}
}

// Serve implements suture.Service.
func (s *RunnerService) Serve(ctx context.Context) error {
	if err := s.runner.Start(ctx); err != nil {
		return fmt.Errorf("%s: start failed: %w", s.name, err)
	}

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()
	s.runner.Shutdown(shutdownCtx)

	return ctx.Err()
}

// String implements fmt.Stringer; suture uses this to name the service in
// log output.
func (s *RunnerService) String() string {
	return s.name
}
