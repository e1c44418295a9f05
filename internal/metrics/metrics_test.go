// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/auditcore

package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func gaugeValue(t *testing.T, g prometheus.Gauge) float64 {
	t.Helper()
	m := &dto.Metric{}
	if err := g.Write(m); err != nil {
		t.Fatalf("failed to write metric: %v", err)
	}
	return m.GetGauge().GetValue()
}

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	m := &dto.Metric{}
	if err := c.Write(m); err != nil {
		t.Fatalf("failed to write metric: %v", err)
	}
	return m.GetCounter().GetValue()
}

func TestStoreMetricsSetPoolStats(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewStoreMetrics(reg)

	m.SetPoolStats(3, 7, 10)

	if got := gaugeValue(t, m.poolAcquiredConns); got != 3 {
		t.Errorf("expected acquired=3, got %v", got)
	}
	if got := gaugeValue(t, m.poolIdleConns); got != 7 {
		t.Errorf("expected idle=7, got %v", got)
	}
	if got := gaugeValue(t, m.poolTotalConns); got != 10 {
		t.Errorf("expected total=10, got %v", got)
	}
}

func TestStoreMetricsRecordPartitionEvents(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewStoreMetrics(reg)

	m.RecordPartitionCreated()
	m.RecordPartitionCreated()
	m.RecordPartitionDropped()

	if got := counterValue(t, m.partitionsCreated); got != 2 {
		t.Errorf("expected 2 partitions created, got %v", got)
	}
	if got := counterValue(t, m.partitionsDropped); got != 1 {
		t.Errorf("expected 1 partition dropped, got %v", got)
	}
}

func TestStoreMetricsRecordMaintenanceRun(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewStoreMetrics(reg)

	m.RecordMaintenanceRun(10*time.Millisecond, nil)
	m.RecordMaintenanceRun(5*time.Millisecond, errTest)

	if got := counterValue(t, m.maintenanceRunErrors); got != 1 {
		t.Errorf("expected 1 maintenance error, got %v", got)
	}
}

func TestStoreMetricsSetDLQStats(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewStoreMetrics(reg)

	m.SetDLQStats(42, 90*time.Second)

	if got := gaugeValue(t, m.dlqEntries); got != 42 {
		t.Errorf("expected 42 dlq entries, got %v", got)
	}
	if got := gaugeValue(t, m.dlqOldestEntryAge); got != 90 {
		t.Errorf("expected oldest age 90s, got %v", got)
	}
}

var errTest = testError("boom")

type testError string

func (e testError) Error() string { return string(e) }
