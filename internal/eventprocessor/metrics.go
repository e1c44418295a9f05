// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/auditcore

package eventprocessor

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const latencyWindowCap = 1000

// MetricsSnapshot is a point-in-time report.
type MetricsSnapshot struct {
	TotalProcessed      int64
	SuccessfullyProcessed int64
	FailedProcessed     int64
	RetriedEvents       int64
	DeadLetterEvents    int64
	CircuitBreakerTrips int64
	QueueDepth          int64
	AverageProcessingMs float64
	LastProcessedAt     time.Time
	Timestamp           time.Time
}

// ProcessorMetrics accumulates the pipeline's processing counters and gauges.
// Counters are atomic; the latency rolling window is guarded by a mutex;
// gauges are last-writer-wins. Every counter is mirrored into a Prometheus
// collector via promauto so an external caller can expose it on whatever
// transport it chooses — this core does not itself serve HTTP.
type ProcessorMetrics struct {
	totalProcessed      atomic.Int64
	success             atomic.Int64
	failure             atomic.Int64
	retried             atomic.Int64
	deadLetter          atomic.Int64
	breakerTrips        atomic.Int64
	queueDepth          atomic.Int64
	lastProcessedAtUnix atomic.Int64

	latMu    sync.Mutex
	latency  [latencyWindowCap]int64
	latLen   int
	latNext  int

	promTotal        prometheus.Counter
	promSuccess      prometheus.Counter
	promFailure      prometheus.Counter
	promRetried      prometheus.Counter
	promDeadLetter   prometheus.Counter
	promBreakerTrips prometheus.Counter
	promQueueDepth   prometheus.Gauge
	promAvgLatency   prometheus.Gauge
}

// NewProcessorMetrics registers the Prometheus collectors under the given
// registerer (pass prometheus.DefaultRegisterer in production, a fresh
// registry in tests to avoid duplicate-registration panics).
func NewProcessorMetrics(reg prometheus.Registerer) *ProcessorMetrics {
	factory := promauto.With(reg)
	return &ProcessorMetrics{
		promTotal:        factory.NewCounter(prometheus.CounterOpts{Name: "audit_processor_total_processed"}),
		promSuccess:      factory.NewCounter(prometheus.CounterOpts{Name: "audit_processor_success_total"}),
		promFailure:      factory.NewCounter(prometheus.CounterOpts{Name: "audit_processor_failure_total"}),
		promRetried:      factory.NewCounter(prometheus.CounterOpts{Name: "audit_processor_retried_total"}),
		promDeadLetter:   factory.NewCounter(prometheus.CounterOpts{Name: "audit_processor_dead_letter_total"}),
		promBreakerTrips: factory.NewCounter(prometheus.CounterOpts{Name: "audit_processor_breaker_trips_total"}),
		promQueueDepth:   factory.NewGauge(prometheus.GaugeOpts{Name: "audit_processor_queue_depth"}),
		promAvgLatency:   factory.NewGauge(prometheus.GaugeOpts{Name: "audit_processor_avg_processing_ms"}),
	}
}

func (m *ProcessorMetrics) RecordSuccess(latencyMs int64) {
	m.totalProcessed.Add(1)
	m.success.Add(1)
	m.lastProcessedAtUnix.Store(time.Now().UnixMilli())
	m.pushLatency(latencyMs)
	m.promTotal.Inc()
	m.promSuccess.Inc()
	m.promAvgLatency.Set(m.averageProcessingMs())
}

func (m *ProcessorMetrics) RecordFailure(latencyMs int64) {
	m.totalProcessed.Add(1)
	m.failure.Add(1)
	m.lastProcessedAtUnix.Store(time.Now().UnixMilli())
	m.pushLatency(latencyMs)
	m.promTotal.Inc()
	m.promFailure.Inc()
	m.promAvgLatency.Set(m.averageProcessingMs())
}

func (m *ProcessorMetrics) RecordRetry() {
	m.retried.Add(1)
	m.promRetried.Inc()
}

func (m *ProcessorMetrics) RecordDeadLetter() {
	m.deadLetter.Add(1)
	m.promDeadLetter.Inc()
}

func (m *ProcessorMetrics) RecordBreakerTrip() {
	m.breakerTrips.Add(1)
	m.promBreakerTrips.Inc()
}

// SetQueueDepth is the last-writer-wins gauge update. The Processor samples
// it every MetricsGaugeInterval, and also after each Submit and each
// processed job.
func (m *ProcessorMetrics) SetQueueDepth(depth int64) {
	m.queueDepth.Store(depth)
	m.promQueueDepth.Set(float64(depth))
}

func (m *ProcessorMetrics) pushLatency(ms int64) {
	m.latMu.Lock()
	defer m.latMu.Unlock()
	m.latency[m.latNext] = ms
	m.latNext = (m.latNext + 1) % latencyWindowCap
	if m.latLen < latencyWindowCap {
		m.latLen++
	}
}

func (m *ProcessorMetrics) averageProcessingMs() float64 {
	m.latMu.Lock()
	defer m.latMu.Unlock()
	if m.latLen == 0 {
		return 0
	}
	var sum int64
	for i := 0; i < m.latLen; i++ {
		sum += m.latency[i]
	}
	return float64(sum) / float64(m.latLen)
}

// Snapshot returns the current point-in-time report.
func (m *ProcessorMetrics) Snapshot() MetricsSnapshot {
	var lastProcessedAt time.Time
	if ms := m.lastProcessedAtUnix.Load(); ms != 0 {
		lastProcessedAt = time.UnixMilli(ms)
	}
	return MetricsSnapshot{
		TotalProcessed:        m.totalProcessed.Load(),
		SuccessfullyProcessed: m.success.Load(),
		FailedProcessed:       m.failure.Load(),
		RetriedEvents:         m.retried.Load(),
		DeadLetterEvents:      m.deadLetter.Load(),
		CircuitBreakerTrips:   m.breakerTrips.Load(),
		QueueDepth:            m.queueDepth.Load(),
		AverageProcessingMs:   m.averageProcessingMs(),
		LastProcessedAt:       lastProcessedAt,
		Timestamp:             time.Now(),
	}
}
