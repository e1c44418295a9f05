// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/auditcore

package store

import (
	"context"
	"fmt"

	json "github.com/goccy/go-json"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tomtom215/auditcore/internal/audit"
	"github.com/tomtom215/auditcore/internal/eventprocessor"
)

// DLQStore implements eventprocessor.DLQStore on a dedicated
// dead_letter_events table, upserting by original_job_id so repeated
// enqueueFailed calls for the same job stay idempotent.
type DLQStore struct {
	pool *pgxpool.Pool
}

// NewDLQStore constructs a DLQStore bound to pool.
func NewDLQStore(pool *pgxpool.Pool) *DLQStore {
	return &DLQStore{pool: pool}
}

// InitializeSchema creates the dead_letter_events table if it doesn't exist.
func (s *DLQStore) InitializeSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
CREATE TABLE IF NOT EXISTS dead_letter_events (
	id                  BIGINT GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
	ts                  TIMESTAMPTZ NOT NULL DEFAULT now(),
	action              TEXT NOT NULL,
	original_job_id     TEXT NOT NULL UNIQUE,
	original_event      JSONB NOT NULL,
	failure_reason      TEXT NOT NULL,
	failure_count       INT NOT NULL,
	first_failure_at    TIMESTAMPTZ NOT NULL,
	last_failure_at     TIMESTAMPTZ NOT NULL,
	original_queue_name TEXT NOT NULL,
	error_stack         TEXT,
	retry_history       JSONB,
	metadata            JSONB
);`)
	if err != nil {
		return fmt.Errorf("store: initializing dead_letter_events table: %w", err)
	}
	return nil
}

// Upsert inserts or replaces the record for rec.OriginalJobID. action and ts
// are storage-layer columns, not carried on DeadLetterRecord itself: action
// is denormalized off the original event so it's queryable without unpacking
// the JSON blob, and ts tracks when this row was last written (distinct from
// the record's own business failure timestamps).
func (s *DLQStore) Upsert(ctx context.Context, rec eventprocessor.DeadLetterRecord) error {
	event, err := json.Marshal(rec.OriginalEvent)
	if err != nil {
		return fmt.Errorf("store: marshaling original event: %w", err)
	}
	history, err := json.Marshal(rec.RetryHistory)
	if err != nil {
		return fmt.Errorf("store: marshaling retry history: %w", err)
	}
	metadata, err := json.Marshal(rec.Metadata)
	if err != nil {
		return fmt.Errorf("store: marshaling metadata: %w", err)
	}

	_, err = s.pool.Exec(ctx, `
INSERT INTO dead_letter_events (
	ts, action, original_job_id, original_event, failure_reason, failure_count,
	first_failure_at, last_failure_at, original_queue_name, error_stack, retry_history, metadata
) VALUES (now(),$1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
ON CONFLICT (original_job_id) DO UPDATE SET
	ts                  = now(),
	action              = EXCLUDED.action,
	original_event      = EXCLUDED.original_event,
	failure_reason      = EXCLUDED.failure_reason,
	failure_count       = EXCLUDED.failure_count,
	last_failure_at     = EXCLUDED.last_failure_at,
	error_stack         = EXCLUDED.error_stack,
	retry_history       = EXCLUDED.retry_history,
	metadata            = EXCLUDED.metadata;`,
		rec.OriginalEvent.Action, rec.OriginalJobID, event, rec.FailureReason, rec.FailureCount,
		rec.FirstFailureAt, rec.LastFailureAt, rec.OriginalQueueName, rec.ErrorStack, history, metadata,
	)
	if err != nil {
		return fmt.Errorf("store: upserting dead letter record: %w", err)
	}
	return nil
}

// Get retrieves the record for jobID, if any.
func (s *DLQStore) Get(ctx context.Context, jobID string) (eventprocessor.DeadLetterRecord, bool, error) {
	row := s.pool.QueryRow(ctx, `
SELECT id, original_job_id, original_event, failure_reason, failure_count,
       first_failure_at, last_failure_at, original_queue_name, error_stack, retry_history, metadata
FROM dead_letter_events WHERE original_job_id = $1`, jobID)

	rec, err := scanDeadLetterRow(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return eventprocessor.DeadLetterRecord{}, false, nil
		}
		return eventprocessor.DeadLetterRecord{}, false, fmt.Errorf("store: getting dead letter record: %w", err)
	}
	return rec, true, nil
}

// Remove deletes the record for jobID.
func (s *DLQStore) Remove(ctx context.Context, jobID string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM dead_letter_events WHERE original_job_id = $1`, jobID)
	if err != nil {
		return fmt.Errorf("store: removing dead letter record: %w", err)
	}
	return nil
}

// List returns every record currently in the dead_letter_events table.
func (s *DLQStore) List(ctx context.Context) ([]eventprocessor.DeadLetterRecord, error) {
	rows, err := s.pool.Query(ctx, `
SELECT id, original_job_id, original_event, failure_reason, failure_count,
       first_failure_at, last_failure_at, original_queue_name, error_stack, retry_history, metadata
FROM dead_letter_events`)
	if err != nil {
		return nil, fmt.Errorf("store: listing dead letter records: %w", err)
	}
	defer rows.Close()

	var out []eventprocessor.DeadLetterRecord
	for rows.Next() {
		rec, err := scanDeadLetterRow(rows)
		if err != nil {
			return nil, fmt.Errorf("store: scanning dead letter record: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

type scannable interface {
	Scan(dest ...any) error
}

func scanDeadLetterRow(row scannable) (eventprocessor.DeadLetterRecord, error) {
	var (
		rec           eventprocessor.DeadLetterRecord
		eventBytes    []byte
		historyBytes  []byte
		metadataBytes []byte
	)
	err := row.Scan(
		&rec.ID, &rec.OriginalJobID, &eventBytes, &rec.FailureReason, &rec.FailureCount,
		&rec.FirstFailureAt, &rec.LastFailureAt, &rec.OriginalQueueName, &rec.ErrorStack,
		&historyBytes, &metadataBytes,
	)
	if err != nil {
		return rec, err
	}

	var event audit.Event
	if len(eventBytes) > 0 {
		if err := json.Unmarshal(eventBytes, &event); err != nil {
			return rec, fmt.Errorf("unmarshaling original event: %w", err)
		}
	}
	rec.OriginalEvent = event

	if len(historyBytes) > 0 {
		if err := json.Unmarshal(historyBytes, &rec.RetryHistory); err != nil {
			return rec, fmt.Errorf("unmarshaling retry history: %w", err)
		}
	}
	if len(metadataBytes) > 0 {
		if err := json.Unmarshal(metadataBytes, &rec.Metadata); err != nil {
			return rec, fmt.Errorf("unmarshaling metadata: %w", err)
		}
	}
	return rec, nil
}
