// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/auditcore

// Package eventprocessor implements the reliability pipeline that sits in
// front of the audit store: a bounded Retry Engine, a gobreaker-backed
// Circuit Breaker, a Dead-Letter Handler, a Prometheus-backed metrics
// collector, and the Processor that composes them into a worker pool.
//
// The composition order for a single event is breaker(retry(handler)):
// the circuit breaker decides whether the call is attempted at all: the
// retry engine then drives bounded attempts against Handler, classifying
// errors as retryable or permanent before deciding whether to wait out the
// next backoff. A failure that survives both — permanent, retry-exhausted,
// or circuit-open — is handed to the Dead-Letter Handler with its full
// retry history attached.
//
// Subscriber and IngestPump sit in front of the Processor: they hold the
// durable NATS JetStream subscription and feed decoded events into
// Processor.Submit, acking or nacking the source message based on the
// outcome. IngestPump implements internal/supervisor/services.Runner so
// cmd/server can register it directly on the supervisor tree.
package eventprocessor
