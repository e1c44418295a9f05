// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/auditcore

package store

import (
	"strings"
	"testing"
	"time"
)

func TestPartitionName(t *testing.T) {
	tests := []struct {
		name string
		in   time.Time
		want string
	}{
		{"january", time.Date(2026, time.January, 15, 0, 0, 0, 0, time.UTC), "audit_log_2026_01"},
		{"december", time.Date(2026, time.December, 31, 23, 59, 0, 0, time.UTC), "audit_log_2026_12"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := partitionName(tt.in); got != tt.want {
				t.Errorf("partitionName(%v) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestMonthRange(t *testing.T) {
	start, end := monthRange(time.Date(2026, time.February, 14, 10, 30, 0, 0, time.UTC))
	wantStart := time.Date(2026, time.February, 1, 0, 0, 0, 0, time.UTC)
	wantEnd := time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC)

	if !start.Equal(wantStart) {
		t.Errorf("start = %v, want %v", start, wantStart)
	}
	if !end.Equal(wantEnd) {
		t.Errorf("end = %v, want %v", end, wantEnd)
	}
}

func TestParsePartitionBound(t *testing.T) {
	expr := "FOR VALUES FROM ('2026-01-01 00:00:00+00') TO ('2026-02-01 00:00:00+00')"
	start, end, err := parsePartitionBound(expr)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if start.Month() != time.January || end.Month() != time.February {
		t.Errorf("parsed bound = [%v, %v), want January to February", start, end)
	}
}

func TestParsePartitionBound_Malformed(t *testing.T) {
	if _, _, err := parsePartitionBound("DEFAULT"); err == nil {
		t.Error("expected an error for a malformed bound expression")
	}
}

func TestPartitionIndexStatements_CoversRequiredSet(t *testing.T) {
	statements := partitionIndexStatements("audit_log_2026_01")
	joined := strings.Join(statements, "\n")

	requiredSingle := []string{"id", "retention_policy"}
	for _, col := range requiredSingle {
		want := "ON audit_log_2026_01 (" + col + ")"
		if !strings.Contains(joined, want) {
			t.Errorf("expected a single-column index containing %q, statements:\n%s", want, joined)
		}
	}

	requiredComposite := []string{
		"(principal_id, action)",
		"(data_classification, retention_policy)",
	}
	for _, want := range requiredComposite {
		if !strings.Contains(joined, want) {
			t.Errorf("expected a composite index on %s, statements:\n%s", want, joined)
		}
	}
}

func TestPartitionIndexStatements_AllIdempotent(t *testing.T) {
	for _, stmt := range partitionIndexStatements("audit_log_2026_01") {
		if !strings.Contains(stmt, "IF NOT EXISTS") {
			t.Errorf("expected every index statement to be idempotent, got: %s", stmt)
		}
	}
}

func TestExpiredPartitions_DropsRangeEndExactlyAtCutoff(t *testing.T) {
	cutoff := time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC)
	partitions := []PartitionInfo{
		{Name: "older", RangeEnd: cutoff.AddDate(0, 0, -1)},
		{Name: "on_cutoff", RangeEnd: cutoff},
		{Name: "newer", RangeEnd: cutoff.AddDate(0, 0, 1)},
	}

	got := expiredPartitions(partitions, cutoff)
	if len(got) != 2 {
		t.Fatalf("expected 2 expired partitions, got %d: %+v", len(got), got)
	}
	names := map[string]bool{}
	for _, p := range got {
		names[p.Name] = true
	}
	if !names["older"] || !names["on_cutoff"] {
		t.Errorf("expected 'older' and 'on_cutoff' to be dropped, got %+v", got)
	}
	if names["newer"] {
		t.Error("expected 'newer' to be retained")
	}
}

func TestJoinHelpers(t *testing.T) {
	if got := joinComma([]string{"a", "b", "c"}); got != "a, b, c" {
		t.Errorf("joinComma = %q", got)
	}
	if got := joinUnderscore([]string{"a", "b", "c"}); got != "a_b_c" {
		t.Errorf("joinUnderscore = %q", got)
	}
}
