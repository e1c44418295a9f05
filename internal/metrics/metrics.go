// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/auditcore

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// StoreMetrics instruments the pgxpool connection pool and the Partition
// Manager/Maintenance Scheduler. It mirrors the
// registerer-based construction eventprocessor.ProcessorMetrics uses so
// both collector sets can share a single *prometheus.Registry without
// duplicate-registration panics.
type StoreMetrics struct {
	poolAcquiredConns prometheus.Gauge
	poolIdleConns     prometheus.Gauge
	poolTotalConns    prometheus.Gauge
	poolAcquireWait   prometheus.Histogram

	partitionsCreated     prometheus.Counter
	partitionsDropped     prometheus.Counter
	maintenanceRunDuration prometheus.Histogram
	maintenanceRunErrors  prometheus.Counter

	dlqEntries        prometheus.Gauge
	dlqOldestEntryAge prometheus.Gauge
}

// NewStoreMetrics registers the Prometheus collectors under reg (pass
// prometheus.DefaultRegisterer in production, a fresh registry in tests).
func NewStoreMetrics(reg prometheus.Registerer) *StoreMetrics {
	factory := promauto.With(reg)
	return &StoreMetrics{
		poolAcquiredConns: factory.NewGauge(prometheus.GaugeOpts{
			Name: "audit_db_pool_acquired_conns",
			Help: "Connections currently acquired from the pgxpool",
		}),
		poolIdleConns: factory.NewGauge(prometheus.GaugeOpts{
			Name: "audit_db_pool_idle_conns",
			Help: "Idle connections currently held by the pgxpool",
		}),
		poolTotalConns: factory.NewGauge(prometheus.GaugeOpts{
			Name: "audit_db_pool_total_conns",
			Help: "Total connections currently held by the pgxpool",
		}),
		poolAcquireWait: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "audit_db_pool_acquire_duration_seconds",
			Help:    "Time spent waiting to acquire a connection from the pgxpool",
			Buckets: prometheus.DefBuckets,
		}),
		partitionsCreated: factory.NewCounter(prometheus.CounterOpts{
			Name: "audit_partitions_created_total",
			Help: "Total number of partitions created by the Partition Manager",
		}),
		partitionsDropped: factory.NewCounter(prometheus.CounterOpts{
			Name: "audit_partitions_dropped_total",
			Help: "Total number of partitions dropped for exceeding retention",
		}),
		maintenanceRunDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "audit_partition_maintenance_duration_seconds",
			Help:    "Duration of a Partition Maintenance Scheduler tick",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60},
		}),
		maintenanceRunErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "audit_partition_maintenance_errors_total",
			Help: "Total number of failed Partition Maintenance Scheduler ticks",
		}),
		dlqEntries: factory.NewGauge(prometheus.GaugeOpts{
			Name: "audit_dlq_entries",
			Help: "Current number of entries in the dead-letter store",
		}),
		dlqOldestEntryAge: factory.NewGauge(prometheus.GaugeOpts{
			Name: "audit_dlq_oldest_entry_age_seconds",
			Help: "Age of the oldest dead-letter entry in seconds",
		}),
	}
}

// SetPoolStats records a pgxpool.Stat snapshot. Called on the interval set
// by MetricsConfig.GaugeIntervalMs.
func (m *StoreMetrics) SetPoolStats(acquired, idle, total int32) {
	m.poolAcquiredConns.Set(float64(acquired))
	m.poolIdleConns.Set(float64(idle))
	m.poolTotalConns.Set(float64(total))
}

// ObservePoolAcquire records the time spent waiting for a pool connection.
func (m *StoreMetrics) ObservePoolAcquire(d time.Duration) {
	m.poolAcquireWait.Observe(d.Seconds())
}

// RecordPartitionCreated increments the partitions-created counter.
func (m *StoreMetrics) RecordPartitionCreated() {
	m.partitionsCreated.Inc()
}

// RecordPartitionDropped increments the partitions-dropped counter.
func (m *StoreMetrics) RecordPartitionDropped() {
	m.partitionsDropped.Inc()
}

// RecordMaintenanceRun records the outcome and duration of one scheduler tick.
func (m *StoreMetrics) RecordMaintenanceRun(d time.Duration, err error) {
	m.maintenanceRunDuration.Observe(d.Seconds())
	if err != nil {
		m.maintenanceRunErrors.Inc()
	}
}

// SetDLQStats records the current dead-letter store size and age of its
// oldest entry.
func (m *StoreMetrics) SetDLQStats(entries int64, oldestAge time.Duration) {
	m.dlqEntries.Set(float64(entries))
	m.dlqOldestEntryAge.Set(oldestAge.Seconds())
}
