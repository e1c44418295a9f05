// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/auditcore

package eventprocessor

import (
	"context"
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/tomtom215/auditcore/internal/audit"
)

// Handler is the business logic invoked per event once the breaker admits
// the call and the retry engine is iterating attempts. It is expected to
// validate, hash, and persist the event (audit.Store.Insert plus the
// integrity Verifier), and to return a RetryableError-compatible error when
// the failure is transient.
type Handler func(ctx context.Context, event audit.Event) error

// queuedJob is one unit of work accepted by Submit, carried through the
// internal worker pool. done receives the job's terminal outcome exactly
// once, so the caller (IngestPump) can defer acking the source message
// until the event is actually durable.
type queuedJob struct {
	event      audit.Event
	jobID      string
	queueName  string
	enqueuedAt time.Time
	done       chan error
}

// completeJob delivers a job's terminal outcome to its done channel, if
// the caller asked for one. err is nil once the event is durably
// persisted or its failure durably dead-lettered; non-nil only when even
// the dead-letter write could not be completed.
func completeJob(job queuedJob, err error) {
	if job.done == nil {
		return
	}
	job.done <- err
	close(job.done)
}

// HealthReport is the health() output.
type HealthReport struct {
	Score        int
	BreakerState string
	FailureRate  float64
	DLQCount     int
	QueueDepth   int64
	Timestamp    time.Time
}

// Processor implements the Reliable Event Processor: a worker pool
// that pulls queued audit events through circuit-breaker-guarded, retried
// calls into Handler, routing exhausted/permanent failures to the DLQ
// Handler and reporting metrics/health throughout. It is started under the
// suture supervision tree as a suture.Service via Serve.
type Processor struct {
	cfg     ProcessorConfig
	handler Handler
	breaker *CircuitBreaker
	retry   *RetryEngine
	dlq     *DLQHandler
	metrics *ProcessorMetrics

	queue  chan queuedJob
	wg     sync.WaitGroup
	cancel context.CancelFunc

	started atomic.Bool
}

// NewProcessor wires the components together. breaker/retry/dlq/metrics are
// constructed by the caller (cmd/server) from cfg so they can be shared
// with other consumers (e.g. health endpoints, admin tooling).
func NewProcessor(cfg ProcessorConfig, handler Handler, breaker *CircuitBreaker, retry *RetryEngine, dlq *DLQHandler, metrics *ProcessorMetrics) *Processor {
	return &Processor{
		cfg:     cfg,
		handler: handler,
		breaker: breaker,
		retry:   retry,
		dlq:     dlq,
		metrics: metrics,
		queue:   make(chan queuedJob, 1000),
	}
}

// Start spins up the worker pool. Returns ErrAlreadyStarted if called twice without an
// intervening Stop.
func (p *Processor) Start(ctx context.Context) error {
	if !p.started.CompareAndSwap(false, true) {
		return ErrAlreadyStarted
	}

	runCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel

	concurrency := p.cfg.WorkerConcurrency
	if concurrency <= 0 {
		concurrency = 5
	}

	for i := 0; i < concurrency; i++ {
		p.wg.Add(1)
		go p.worker(runCtx)
	}

	if p.metrics != nil && p.cfg.MetricsGaugeInterval > 0 {
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			ticker := time.NewTicker(p.cfg.MetricsGaugeInterval)
			defer ticker.Stop()
			for {
				select {
				case <-ticker.C:
					p.metrics.SetQueueDepth(int64(len(p.queue)))
				case <-runCtx.Done():
					return
				}
			}
		}()
	}
	return nil
}

// Stop drains in-flight work and halts the worker pool, waiting up to
// cfg.GracePeriod for outstanding jobs to finish.
func (p *Processor) Stop(ctx context.Context) error {
	if !p.started.CompareAndSwap(true, false) {
		return ErrNotStarted
	}
	p.cancel()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	grace := p.cfg.GracePeriod
	if grace <= 0 {
		grace = 30 * time.Second
	}
	timer := time.NewTimer(grace)
	defer timer.Stop()

	select {
	case <-done:
		return nil
	case <-timer.C:
		return fmt.Errorf("eventprocessor: stop grace period (%s) exceeded", grace)
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Submit enqueues event for processing and returns a channel carrying the
// job's terminal outcome: nil once the event is durably persisted, or once
// its failure has been durably written to the dead-letter store; non-nil
// only when the dead-letter write itself could not be completed, meaning
// the event was neither persisted nor durably dead-lettered. The caller
// MUST wait on that channel before acking the source message — acking any
// earlier would let an in-flight event vanish on a crash before a worker
// ever drains it.
//
// Submit itself applies backpressure rather than rejecting: enqueuing
// blocks until a queue slot is free or ctx is cancelled (SPEC_FULL.md's
// resolved Open Question — submit() never synchronously rejects except on
// an upstream publish failure, which is out of this in-process queue's
// scope). jobID defaults to a fresh UUID when empty. Submit's own error
// return is non-nil only when the event never reached the queue at all
// (permanent validation failure, or ctx cancelled while waiting for a
// slot); the returned channel is nil in that case.
func (p *Processor) Submit(ctx context.Context, event audit.Event, jobID, queueName string) (<-chan error, error) {
	event = event.WithDefaults()
	if err := event.Validate(); err != nil {
		return nil, &PermanentError{Cause: err}
	}
	if jobID == "" {
		jobID = uuid.NewString()
	}
	if queueName == "" {
		queueName = p.cfg.QueueName
	}

	done := make(chan error, 1)
	job := queuedJob{event: event, jobID: jobID, queueName: queueName, enqueuedAt: time.Now(), done: done}

	select {
	case p.queue <- job:
		if p.metrics != nil {
			p.metrics.SetQueueDepth(int64(len(p.queue)))
		}
		return done, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (p *Processor) worker(ctx context.Context) {
	defer p.wg.Done()
	for {
		select {
		case job, ok := <-p.queue:
			if !ok {
				return
			}
			p.process(ctx, job)
			if p.metrics != nil {
				p.metrics.SetQueueDepth(int64(len(p.queue)))
			}
		case <-ctx.Done():
			return
		}
	}
}

func (p *Processor) process(ctx context.Context, job queuedJob) {
	startedAt := time.Now()

	var history []RetryHistoryEntry
	_, err := p.breaker.Execute(ctx, func() (any, error) {
		outcome := p.retry.Run(ctx, func(ctx context.Context, attempt int) (any, error) {
			if attempt > 1 && p.metrics != nil {
				p.metrics.RecordRetry()
			}
			return nil, p.handler(ctx, job.event)
		})
		for _, a := range outcome.Attempts {
			if a.Error == nil {
				continue
			}
			history = append(history, RetryHistoryEntry{Attempt: a.Attempt, Timestamp: a.At, ErrorMessage: a.Error.Error()})
		}
		if !outcome.Success {
			return nil, outcome.Err
		}
		return nil, nil
	})

	latency := time.Since(startedAt).Milliseconds()

	if err == nil {
		if p.metrics != nil {
			p.metrics.RecordSuccess(latency)
		}
		completeJob(job, nil)
		return
	}

	if p.metrics != nil {
		p.metrics.RecordFailure(latency)
	}
	if _, isOpen := err.(*CircuitOpenError); isOpen && p.metrics != nil {
		p.metrics.RecordBreakerTrip()
	}

	rec := DeadLetterRecord{
		OriginalEvent:     job.event,
		FailureReason:     err.Error(),
		FailureCount:      len(history),
		FirstFailureAt:    job.enqueuedAt,
		LastFailureAt:     time.Now(),
		OriginalJobID:     job.jobID,
		OriginalQueueName: job.queueName,
		ErrorStack:        err.Error(),
		RetryHistory:      history,
	}
	if derr := p.dlq.EnqueueFailed(context.Background(), rec); derr != nil {
		// The DLQ write itself failed after its own bounded retries (dlq.go
		// already logged ERROR and fired the operator alert for this). This
		// is an infrastructure failure: the event was neither persisted nor
		// durably dead-lettered, so the caller must not ack the source
		// message.
		completeJob(job, derr)
		return
	}
	completeJob(job, nil)
}

// Metrics returns the current processing snapshot.
func (p *Processor) Metrics() MetricsSnapshot {
	return p.metrics.Snapshot()
}

// Health computes the health score:
//
//	score = 100 - penalties, clamped to [0, 100], rounded
//	breaker OPEN: -30, HALF_OPEN: -15
//	failure rate > 0.1: -min(30, rate*100)
//	dlqCount > 0: -min(20, dlqCount)
//	queueDepth > 100: -min(20, queueDepth/10)
func (p *Processor) Health(now time.Time) HealthReport {
	snap := p.metrics.Snapshot()
	state := p.breaker.State()
	dlqCount := 0
	if p.dlq != nil {
		dlqCount = p.dlq.Size()
	}

	var failureRate float64
	if snap.TotalProcessed > 0 {
		failureRate = float64(snap.FailedProcessed) / float64(snap.TotalProcessed)
	}

	penalties := 0.0
	switch state {
	case "OPEN":
		penalties += 30
	case "HALF_OPEN":
		penalties += 15
	}
	if failureRate > 0.1 {
		penalties += min(30, failureRate*100)
	}
	if dlqCount > 0 {
		penalties += float64(min(20, dlqCount))
	}
	if snap.QueueDepth > 100 {
		penalties += float64(min(int(20), int(snap.QueueDepth)/10))
	}

	score := int(math.Round(100 - penalties))
	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}

	return HealthReport{
		Score:        score,
		BreakerState: state,
		FailureRate:  failureRate,
		DLQCount:     dlqCount,
		QueueDepth:   snap.QueueDepth,
		Timestamp:    now,
	}
}

// Serve implements suture.Service: it starts the worker pool, blocks until
// ctx is cancelled by the supervisor, and then stops cleanly. This mirrors
// the Start/block/Shutdown adapter the supervisor tree uses for its other
// long-running services.
func (p *Processor) Serve(ctx context.Context) error {
	if err := p.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()

	stopCtx, cancel := context.WithTimeout(context.Background(), p.cfg.GracePeriod+5*time.Second)
	defer cancel()
	return p.Stop(stopCtx)
}

// String satisfies suture's service-naming interface.
func (p *Processor) String() string {
	return "audit-event-processor"
}
