// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/auditcore

// Package audit defines the compliance audit-event domain model shared by
// the event processor and the partitioned store: the Event itself, its
// RetentionPolicy, and the cryptographic IntegrityVerification record
// produced by hashing it.
//
// # Hashing
//
// Verifier.ComputeHash canonicalizes a fixed, ordered list of an event's
// fields (timestamp, tenant, principal, action, target, status,
// classification, retention policy, correlation id, event version, and a
// deterministically-encoded Details map) and applies SHA-256. The same
// event, with its Details keys in any order, always produces the same
// hash.
//
// # Storage
//
// Store is the narrow persistence interface the rest of the pipeline
// depends on. internal/store provides the Postgres-backed implementation
// used in production; MemoryStore here is a substitute for tests and local
// development.
package audit
