// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/auditcore

package store

import (
	"fmt"
	"regexp"
	"time"
)

// partitionBoundPattern matches Postgres's pg_get_expr rendering of a RANGE
// partition bound, e.g.:
//
//	FOR VALUES FROM ('2026-01-01 00:00:00+00') TO ('2026-02-01 00:00:00+00')
var partitionBoundPattern = regexp.MustCompile(`FROM \('([^']+)'\) TO \('([^']+)'\)`)

// parsePartitionBound extracts the [start, end) range from a partition
// bound expression as returned by ListPartitions's catalog query.
func parsePartitionBound(expr string) (time.Time, time.Time, error) {
	m := partitionBoundPattern.FindStringSubmatch(expr)
	if m == nil {
		return time.Time{}, time.Time{}, fmt.Errorf("store: unrecognized partition bound %q", expr)
	}
	const layout = "2006-01-02 15:04:05-07"
	start, err := time.Parse(layout, m[1])
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("store: parsing bound start %q: %w", m[1], err)
	}
	end, err := time.Parse(layout, m[2])
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("store: parsing bound end %q: %w", m[2], err)
	}
	return start, end, nil
}
