// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/auditcore

/*
Package cache provides the generic in-memory ordered index used by the
dead-letter handler.

# Overview

MinHeap is a timestamp-ordered min-heap with O(log n) push/remove, O(1)
key lookup via a parallel map, and a PopBefore cut that drains every entry
whose timestamp is older than a given instant. internal/eventprocessor
uses it to mirror the durable dead-letter store in memory, keyed by
originalJobId and ordered by firstFailureAt, so metrics() and
purgeExpired() don't need a full table scan against Postgres on every
call.

# Usage Example

	index := cache.NewMinHeap[DeadLetterRecord](0)
	index.Push(rec.OriginalJobID, rec, rec.FirstFailureAt)

	expired := index.PopBefore(cutoff)
	for _, e := range expired {
	    store.Remove(ctx, e.Key)
	}

# Thread Safety

All MinHeap methods are safe for concurrent use; a single sync.RWMutex
guards the heap slice and the key index together.
*/
package cache
