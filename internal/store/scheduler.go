// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/auditcore

package store

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/tomtom215/auditcore/internal/eventprocessor"
	"github.com/tomtom215/auditcore/internal/logging"
)

// SchedulerMetrics receives maintenance-run observations from Scheduler.
// internal/metrics.StoreMetrics satisfies this; tests may supply a fake.
type SchedulerMetrics interface {
	RecordPartitionCreated()
	RecordPartitionDropped()
	RecordMaintenanceRun(d time.Duration, err error)
}

// Scheduler implements the Partition Maintenance Scheduler: a
// ticker-driven loop that calls into Manager to create upcoming partitions
// and drop expired ones, skipping a tick entirely if the previous one is
// still running rather than letting runs pile up.
type Scheduler struct {
	manager *Manager
	cfg     eventprocessor.PartitionRuntimeConfig
	metrics SchedulerMetrics

	running atomic.Bool
	cancel  context.CancelFunc
}

// NewScheduler constructs a Scheduler bound to manager. metrics may be nil.
func NewScheduler(manager *Manager, cfg eventprocessor.PartitionRuntimeConfig, metrics SchedulerMetrics) *Scheduler {
	return &Scheduler{manager: manager, cfg: cfg, metrics: metrics}
}

// Serve implements suture.Service: it ticks every MaintenanceIntervalMs
// until ctx is cancelled, running one maintenance pass per tick.
func (s *Scheduler) Serve(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	interval := time.Duration(s.cfg.MaintenanceIntervalMs) * time.Millisecond
	if interval <= 0 {
		interval = 24 * time.Hour
	}

	if err := s.runOnce(runCtx); err != nil {
		logging.Error().Err(err).Msg("initial partition maintenance failed")
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.tick(runCtx)
		case <-runCtx.Done():
			return nil
		}
	}
}

// String satisfies suture's service-naming interface.
func (s *Scheduler) String() string {
	return "partition-maintenance-scheduler"
}

// tick runs one maintenance pass, skipping it entirely if the previous one
// is still in flight.
func (s *Scheduler) tick(ctx context.Context) {
	if !s.running.CompareAndSwap(false, true) {
		logging.Warn().Msg("skipping partition maintenance tick: previous run still in progress")
		return
	}
	defer s.running.Store(false)

	if err := s.runOnce(ctx); err != nil {
		logging.Error().Err(err).Msg("partition maintenance tick failed")
	}
}

func (s *Scheduler) runOnce(ctx context.Context) error {
	started := time.Now()
	err := s.doMaintenance(ctx, started)
	if s.metrics != nil {
		s.metrics.RecordMaintenanceRun(time.Since(started), err)
	}
	return err
}

func (s *Scheduler) doMaintenance(ctx context.Context, now time.Time) error {
	if s.cfg.AutoCreate {
		created, err := s.manager.CreatePartitionsAhead(ctx, now, s.cfg.CreateAhead)
		if err != nil {
			return err
		}
		if s.metrics != nil {
			for i := 0; i < created; i++ {
				s.metrics.RecordPartitionCreated()
			}
		}
	}

	if s.cfg.AutoDrop {
		dropped, err := s.manager.DropExpired(ctx, now, s.cfg.RetentionDays)
		if err != nil {
			return err
		}
		for _, name := range dropped {
			logging.Info().Str("partition", name).Msg("dropped expired partition")
			if s.metrics != nil {
				s.metrics.RecordPartitionDropped()
			}
		}
	}

	return nil
}
