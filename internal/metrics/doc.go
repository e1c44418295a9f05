// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/auditcore

/*
Package metrics provides Prometheus instrumentation for the storage layer:
the pgxpool connection pool, the Partition Manager, the Partition
Maintenance Scheduler, and the dead-letter store.

Processor-level metrics (events processed, retried, dead-lettered, circuit
breaker trips) live in internal/eventprocessor.ProcessorMetrics instead —
that package owns the Processor Metrics Collector module directly, and
this package doesn't duplicate it. Both collector sets are constructed the
same way, by accepting a prometheus.Registerer, so a caller can register
both against one *prometheus.Registry.

# Usage Example

	reg := prometheus.NewRegistry()
	storeMetrics := metrics.NewStoreMetrics(reg)

	stat := pool.Stat()
	storeMetrics.SetPoolStats(stat.AcquiredConns(), stat.IdleConns(), stat.TotalConns())

# Exposition

This package only registers collectors; nothing here serves an HTTP
/metrics endpoint, matching the pipeline's non-goal of owning an outer
API surface. A caller wires the registry into whatever exporter it uses.
*/
package metrics
