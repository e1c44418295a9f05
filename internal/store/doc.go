// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/auditcore

// Package store is the Postgres-backed persistence layer for the audit
// pipeline: a Partition Manager that maintains monthly RANGE partitions of
// audit_log, a Maintenance Scheduler that drives that manager on a ticker,
// a Facade that satisfies audit.Store, and a DLQStore that satisfies the
// event processor's DLQStore interface, both on top of a pgxpool.Pool. There is no ORM here —
// every statement is hand-written SQL executed through pgx.
package store
