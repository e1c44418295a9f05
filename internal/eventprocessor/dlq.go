// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/auditcore

package eventprocessor

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/tomtom215/auditcore/internal/audit"
	"github.com/tomtom215/auditcore/internal/cache"
	"github.com/tomtom215/auditcore/internal/logging"
)

// RetryHistoryEntry is one recorded attempt, carried into a DeadLetterRecord.
type RetryHistoryEntry struct {
	Attempt      int
	Timestamp    time.Time
	ErrorMessage string
}

// DeadLetterRecord is created exactly once per permanently-failed event.
// It may be re-queued by an operator via Reprocess.
type DeadLetterRecord struct {
	ID                int64
	OriginalEvent     audit.Event
	FailureReason     string
	FailureCount      int
	FirstFailureAt    time.Time
	LastFailureAt     time.Time
	OriginalJobID     string
	OriginalQueueName string
	ErrorStack        string
	RetryHistory      []RetryHistoryEntry
	// Metadata carries operator- or integration-supplied context (e.g. a
	// ticket reference attached during triage) alongside the record. Opaque
	// to the handler itself; persisted and round-tripped verbatim.
	Metadata map[string]any
}

// DLQStore is the durable persistence boundary for dead-letter records.
// internal/store provides the Postgres-backed implementation; tests use an
// in-memory fake. Upsert MUST be idempotent per OriginalJobID, which is why it takes
// the full record rather than an append-only insert.
type DLQStore interface {
	Upsert(ctx context.Context, rec DeadLetterRecord) error
	Get(ctx context.Context, jobID string) (DeadLetterRecord, bool, error)
	Remove(ctx context.Context, jobID string) error
	List(ctx context.Context) ([]DeadLetterRecord, error)
}

// Republisher re-enqueues a reprocessed event onto the source queue. The
// concrete implementation is the Watermill publisher wired up by the
// Processor.
type Republisher interface {
	Republish(ctx context.Context, queueName string, event audit.Event) error
}

// AlertFunc is invoked when the DLQ size crosses AlertThreshold, subject to
// the cooldown.
type AlertFunc func(reason string, record DeadLetterRecord)

// DLQMetrics is the dead-letter queue's metrics() snapshot shape.
type DLQMetrics struct {
	TotalEvents        int
	EventsToday        int
	Oldest             time.Time
	Newest             time.Time
	TopFailureReasons  []FailureReasonCount
}

// FailureReasonCount is one entry of DLQMetrics.TopFailureReasons.
type FailureReasonCount struct {
	Reason string
	Count  int
}

// DLQHandler implements the Dead-Letter Handler. It keeps an
// in-memory MinHeap index (ordered by FirstFailureAt) mirroring the
// durable store, so metrics()/oldest-newest lookups don't require a full
// table scan of the store on every call; the store itself remains the
// source of truth for reprocess/remove.
type DLQHandler struct {
	store      DLQStore
	cfg        DLQConfig
	writeRetry *RetryEngine
	metrics    *ProcessorMetrics
	logger     *logging.EventLogger

	mu          sync.Mutex
	index       *cache.MinHeap[DeadLetterRecord]
	lastAlertAt time.Time
	alertFns    []AlertFunc
}

// NewDLQHandler constructs a handler backed by store. writeRetryCfg bounds
// the "DLQ write must itself be retried" requirement; pass a small, fast config (e.g. 3 retries, fixed 50ms).
func NewDLQHandler(store DLQStore, cfg DLQConfig, writeRetryCfg RetryConfig, metrics *ProcessorMetrics) *DLQHandler {
	return &DLQHandler{
		store:      store,
		cfg:        cfg,
		writeRetry: NewRetryEngine(writeRetryCfg),
		metrics:    metrics,
		index:      cache.NewMinHeap[DeadLetterRecord](0),
	}
}

// OnAlert registers a callback fired when DLQ size crosses AlertThreshold
// (subject to cooldown), and whenever a dead-letter write itself fails.
func (h *DLQHandler) OnAlert(fn AlertFunc) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.alertFns = append(h.alertFns, fn)
}

// SetLogger attaches the logger used to record a dead-letter write failure
// at ERROR. Optional; EnqueueFailed works without one.
func (h *DLQHandler) SetLogger(logger *logging.EventLogger) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.logger = logger
}

// EnqueueFailed stores rec durably. The write itself is retried
// (bounded); if it ultimately fails, the caller gets an InfrastructureError
// and MUST NOT ack the source queue job.
func (h *DLQHandler) EnqueueFailed(ctx context.Context, rec DeadLetterRecord) error {
	outcome := h.writeRetry.Run(ctx, func(ctx context.Context, _ int) (any, error) {
		return nil, h.store.Upsert(ctx, rec)
	})
	if !outcome.Success {
		err := &InfrastructureError{Op: "dlq-write", Cause: outcome.Err}
		h.mu.Lock()
		logger := h.logger
		h.mu.Unlock()
		if logger != nil {
			logger.Error("dead-letter write failed after bounded retries",
				"job_id", rec.OriginalJobID,
				"queue", rec.OriginalQueueName,
				"err", err.Error(),
			)
		}
		h.alertWriteFailure(rec, err)
		return err
	}

	h.mu.Lock()
	h.index.Push(rec.OriginalJobID, rec, rec.FirstFailureAt)
	size := h.index.Len()
	h.mu.Unlock()

	if h.metrics != nil {
		h.metrics.RecordDeadLetter()
	}

	h.maybeAlert(rec, size)
	return nil
}

// maybeAlert fires registered alert callbacks when size crosses
// AlertThreshold. The cooldown does NOT slide: it is a single
// lastAlertAt timestamp compared against now-cooldownMs.
func (h *DLQHandler) maybeAlert(rec DeadLetterRecord, size int) {
	if h.cfg.AlertThreshold <= 0 || size < h.cfg.AlertThreshold {
		return
	}

	h.mu.Lock()
	cooldown := time.Duration(h.cfg.CooldownMs) * time.Millisecond
	if !h.lastAlertAt.IsZero() && time.Since(h.lastAlertAt) < cooldown {
		h.mu.Unlock()
		return
	}
	h.lastAlertAt = time.Now()
	fns := make([]AlertFunc, len(h.alertFns))
	copy(fns, h.alertFns)
	h.mu.Unlock()

	reason := fmt.Sprintf("dlq size %d >= alert threshold %d", size, h.cfg.AlertThreshold)
	for _, fn := range fns {
		fn(reason, rec)
	}
}

// alertWriteFailure fires registered alert callbacks unconditionally —
// unlike maybeAlert, it ignores AlertThreshold/cooldown, since a
// dead-letter write failure means the event is about to be lost
// regardless of current DLQ size.
func (h *DLQHandler) alertWriteFailure(rec DeadLetterRecord, err error) {
	h.mu.Lock()
	fns := make([]AlertFunc, len(h.alertFns))
	copy(fns, h.alertFns)
	h.mu.Unlock()

	reason := fmt.Sprintf("dead-letter write failed: %v", err)
	for _, fn := range fns {
		fn(reason, rec)
	}
}

// Reprocess removes jobID from the DLQ and republishes it to its original
// queue with a fresh retry count. Idempotent by jobID: a second call for an
// already-removed record is a no-op.
func (h *DLQHandler) Reprocess(ctx context.Context, jobID string, pub Republisher) error {
	rec, found, err := h.store.Get(ctx, jobID)
	if err != nil {
		return &InfrastructureError{Op: "dlq-get", Cause: err}
	}
	if !found {
		return nil
	}

	if err := pub.Republish(ctx, rec.OriginalQueueName, rec.OriginalEvent); err != nil {
		return &InfrastructureError{Op: "dlq-republish", Cause: err}
	}

	if err := h.store.Remove(ctx, jobID); err != nil {
		return &InfrastructureError{Op: "dlq-remove", Cause: err}
	}

	h.mu.Lock()
	h.index.Remove(jobID)
	h.mu.Unlock()
	return nil
}

// PurgeExpired removes records older than cfg.MaxRetentionDays. Returns the
// number removed. ArchiveAfterDays is left to the caller's cold-store
// integration (out of scope for this core's storage boundary).
func (h *DLQHandler) PurgeExpired(ctx context.Context, now time.Time) (int, error) {
	cutoff := now.AddDate(0, 0, -h.cfg.MaxRetentionDays)

	h.mu.Lock()
	expired := h.index.PopBefore(cutoff)
	h.mu.Unlock()

	for _, entry := range expired {
		if err := h.store.Remove(ctx, entry.Key); err != nil {
			return 0, &InfrastructureError{Op: "dlq-purge", Cause: err}
		}
	}
	return len(expired), nil
}

// Metrics returns the current metrics() snapshot.
func (h *DLQHandler) Metrics(now time.Time) DLQMetrics {
	h.mu.Lock()
	entries := h.index.All()
	h.mu.Unlock()

	m := DLQMetrics{TotalEvents: len(entries)}
	reasonCounts := map[string]int{}
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	for _, e := range entries {
		rec := e.Value
		if m.Oldest.IsZero() || rec.FirstFailureAt.Before(m.Oldest) {
			m.Oldest = rec.FirstFailureAt
		}
		if m.Newest.IsZero() || rec.FirstFailureAt.After(m.Newest) {
			m.Newest = rec.FirstFailureAt
		}
		if !rec.FirstFailureAt.Before(dayStart) {
			m.EventsToday++
		}
		reasonCounts[rec.FailureReason]++
	}

	for reason, count := range reasonCounts {
		m.TopFailureReasons = append(m.TopFailureReasons, FailureReasonCount{Reason: reason, Count: count})
	}
	sort.Slice(m.TopFailureReasons, func(i, j int) bool {
		return m.TopFailureReasons[i].Count > m.TopFailureReasons[j].Count
	})
	if len(m.TopFailureReasons) > 10 {
		m.TopFailureReasons = m.TopFailureReasons[:10]
	}
	return m
}

// Size returns the current in-memory DLQ index length, used by the health
// score's dlqCount penalty.
func (h *DLQHandler) Size() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.index.Len()
}
