// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/auditcore

/*
Package services provides suture.Service adapters for components that
expose a Start/Shutdown lifecycle instead of implementing suture.Service
directly — currently just the Watermill subscriber pump that feeds audit
events into the eventprocessor.Processor.

RunnerService translates Start(ctx)/Shutdown(ctx) into suture's
Serve(ctx) error pattern: start, block until ctx is cancelled, shut down
with a bounded timeout on a fresh context. Components that already
implement Serve/String directly (eventprocessor.Processor, store.Scheduler)
are added to the supervisor tree as-is and don't need a wrapper here.
*/
package services
