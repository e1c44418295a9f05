// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/auditcore

package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tomtom215/auditcore/internal/eventprocessor"
)

// PartitionInfo describes one discovered child partition.
type PartitionInfo struct {
	Name       string
	RangeStart time.Time
	RangeEnd   time.Time
}

// Manager implements the Partition Manager: monthly RANGE
// partitioning of audit_log, create-ahead, drop-expired, and the
// per-partition index set.
type Manager struct {
	pool *pgxpool.Pool
	cfg  eventprocessor.PartitionRuntimeConfig
}

// NewManager constructs a Manager bound to pool.
func NewManager(pool *pgxpool.Pool, cfg eventprocessor.PartitionRuntimeConfig) *Manager {
	return &Manager{pool: pool, cfg: cfg}
}

// partitionName returns the audit_log_YYYY_MM name for the month
// containing t, in UTC.
func partitionName(t time.Time) string {
	t = t.UTC()
	return fmt.Sprintf("audit_log_%04d_%02d", t.Year(), int(t.Month()))
}

// monthRange returns the [start, end) bounds of the calendar month
// containing t, in UTC.
func monthRange(t time.Time) (time.Time, time.Time) {
	t = t.UTC()
	start := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 1, 0)
	return start, end
}

// InitializeParent creates the parent audit_log table (RANGE partitioned by
// timestamp) if it does not already exist. Idempotent.
func (m *Manager) InitializeParent(ctx context.Context) error {
	_, err := m.pool.Exec(ctx, `
CREATE TABLE IF NOT EXISTS audit_log (
	id                     BIGINT GENERATED ALWAYS AS IDENTITY,
	timestamp              TIMESTAMPTZ NOT NULL,
	tenant_id              TEXT NOT NULL,
	principal_id           TEXT,
	action                 TEXT NOT NULL,
	target_type            TEXT,
	target_id              TEXT,
	status                 TEXT NOT NULL,
	outcome_description    TEXT,
	data_classification    TEXT NOT NULL,
	retention_policy       TEXT NOT NULL,
	correlation_id         TEXT,
	event_version          TEXT NOT NULL,
	details                JSONB,
	hash                   TEXT NOT NULL,
	hash_algorithm         TEXT NOT NULL,
	processing_latency_ms  BIGINT,
	PRIMARY KEY (id, timestamp)
) PARTITION BY RANGE (timestamp);
`)
	if err != nil {
		return fmt.Errorf("store: initializing parent table: %w", err)
	}
	return nil
}

// CreatePartitionsAhead ensures partitions exist for the current month plus
// the next n months (cfg.CreateAhead by default). Idempotent: each
// CREATE TABLE uses IF NOT EXISTS, so calling this repeatedly for the same
// month window is a no-op.
func (m *Manager) CreatePartitionsAhead(ctx context.Context, from time.Time, n int) (int, error) {
	created := 0
	for i := 0; i <= n; i++ {
		monthStart := time.Date(from.Year(), from.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, i, 0)
		name := partitionName(monthStart)
		start, end := monthRange(monthStart)

		var existed bool
		if err := m.pool.QueryRow(ctx, `SELECT to_regclass($1) IS NOT NULL`, name).Scan(&existed); err != nil {
			return created, fmt.Errorf("store: checking partition %s: %w", name, err)
		}

		stmt := fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s PARTITION OF audit_log
	FOR VALUES FROM ('%s') TO ('%s');`,
			name, start.Format(time.RFC3339), end.Format(time.RFC3339))

		if _, err := m.pool.Exec(ctx, stmt); err != nil {
			return created, fmt.Errorf("store: creating partition %s: %w", name, err)
		}
		if err := m.CreatePartitionIndexes(ctx, name); err != nil {
			return created, err
		}
		if !existed {
			created++
		}
	}
	return created, nil
}

// partitionIndexSingleColumns is the minimum single-column btree index set
// required on every audit_log partition.
var partitionIndexSingleColumns = []string{
	"id", "timestamp", "tenant_id", "principal_id", "action", "target_type",
	"target_id", "status", "data_classification", "correlation_id", "retention_policy",
}

// partitionIndexComposites is the minimum composite btree index set
// required on every audit_log partition.
var partitionIndexComposites = [][]string{
	{"tenant_id", "timestamp"},
	{"tenant_id", "action", "timestamp"},
	{"target_type", "target_id", "timestamp"},
	{"principal_id", "timestamp"},
	{"principal_id", "action"},
	{"data_classification", "retention_policy"},
}

// partitionIndexStatements builds the full idempotent (IF NOT EXISTS) set
// of CREATE INDEX statements for partition: the single-column and
// composite btree indexes above, a hash index on the hash column, and a
// GIN index on the details JSONB column. Pulled out of
// CreatePartitionIndexes so the statement list itself is testable without
// a live pool.
func partitionIndexStatements(partition string) []string {
	var statements []string
	for _, col := range partitionIndexSingleColumns {
		idx := fmt.Sprintf("idx_%s_%s", partition, col)
		statements = append(statements, fmt.Sprintf(
			`CREATE INDEX IF NOT EXISTS %s ON %s (%s);`, idx, partition, col))
	}
	for _, cols := range partitionIndexComposites {
		idx := fmt.Sprintf("idx_%s_%s", partition, joinUnderscore(cols))
		statements = append(statements, fmt.Sprintf(
			`CREATE INDEX IF NOT EXISTS %s ON %s (%s);`, idx, partition, joinComma(cols)))
	}
	statements = append(statements,
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_%s_hash ON %s USING hash (hash);`, partition, partition),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_%s_details_gin ON %s USING gin (details);`, partition, partition),
	)
	return statements
}

// CreatePartitionIndexes creates the full per-partition index set on name
// (see partitionIndexStatements). All statements use IF NOT EXISTS, making
// this idempotent.
func (m *Manager) CreatePartitionIndexes(ctx context.Context, partition string) error {
	for _, stmt := range partitionIndexStatements(partition) {
		if _, err := m.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("store: creating index on %s: %w", partition, err)
		}
	}
	return nil
}

// expiredPartitions filters partitions down to those whose range-end is at
// or before cutoff. Pulled out of DropExpired so the boundary condition is
// testable without a live pool.
func expiredPartitions(partitions []PartitionInfo, cutoff time.Time) []PartitionInfo {
	var expired []PartitionInfo
	for _, p := range partitions {
		if p.RangeEnd.After(cutoff) {
			continue
		}
		expired = append(expired, p)
	}
	return expired
}

// DropExpired detaches and drops partitions whose range-end is at or
// before now minus retentionDays. Returns the names dropped.
func (m *Manager) DropExpired(ctx context.Context, now time.Time, retentionDays int) ([]string, error) {
	cutoff := now.AddDate(0, 0, -retentionDays)

	partitions, err := m.ListPartitions(ctx)
	if err != nil {
		return nil, err
	}

	var dropped []string
	for _, p := range expiredPartitions(partitions, cutoff) {
		if _, err := m.pool.Exec(ctx, fmt.Sprintf(`ALTER TABLE audit_log DETACH PARTITION %s;`, p.Name)); err != nil {
			return dropped, fmt.Errorf("store: detaching partition %s: %w", p.Name, err)
		}
		if _, err := m.pool.Exec(ctx, fmt.Sprintf(`DROP TABLE IF EXISTS %s;`, p.Name)); err != nil {
			return dropped, fmt.Errorf("store: dropping partition %s: %w", p.Name, err)
		}
		dropped = append(dropped, p.Name)
	}
	return dropped, nil
}

// ListPartitions queries pg_catalog for the current set of audit_log child
// partitions and their range bounds.
func (m *Manager) ListPartitions(ctx context.Context) ([]PartitionInfo, error) {
	rows, err := m.pool.Query(ctx, `
SELECT
	child.relname,
	pg_get_expr(child.relpartbound, child.oid)
FROM pg_inherits
JOIN pg_class parent ON pg_inherits.inhparent = parent.oid
JOIN pg_class child  ON pg_inherits.inhrelid  = child.oid
WHERE parent.relname = 'audit_log';
`)
	if err != nil {
		return nil, fmt.Errorf("store: listing partitions: %w", err)
	}
	defer rows.Close()

	var out []PartitionInfo
	for rows.Next() {
		var name, bound string
		if err := rows.Scan(&name, &bound); err != nil {
			return nil, fmt.Errorf("store: scanning partition row: %w", err)
		}
		start, end, perr := parsePartitionBound(bound)
		if perr != nil {
			continue
		}
		out = append(out, PartitionInfo{Name: name, RangeStart: start, RangeEnd: end})
	}
	return out, rows.Err()
}

// Analyze runs ANALYZE on the named partition to keep planner statistics
// fresh after bulk inserts.
func (m *Manager) Analyze(ctx context.Context, partition string) error {
	if _, err := m.pool.Exec(ctx, fmt.Sprintf(`ANALYZE %s;`, partition)); err != nil {
		return fmt.Errorf("store: analyzing partition %s: %w", partition, err)
	}
	return nil
}

func joinComma(cols []string) string {
	out := ""
	for i, c := range cols {
		if i > 0 {
			out += ", "
		}
		out += c
	}
	return out
}

func joinUnderscore(cols []string) string {
	out := ""
	for i, c := range cols {
		if i > 0 {
			out += "_"
		}
		out += c
	}
	return out
}
