// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/auditcore

package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	json "github.com/goccy/go-json"

	"github.com/tomtom215/auditcore/internal/audit"
)

// Facade implements audit.Store on top of a pgxpool.Pool. Insert
// enriches the event with an integrity hash if one isn't already set, and
// transparently creates the target month's partition (plus a retry) if the
// insert fails because no partition covers it yet — this is the "auto
// create then retry" behavior.
type Facade struct {
	pool     *pgxpool.Pool
	manager  *Manager
	verifier *audit.Verifier
}

// NewFacade constructs a Facade. verifier computes the integrity hash for
// events that arrive without one.
func NewFacade(pool *pgxpool.Pool, manager *Manager, verifier *audit.Verifier) *Facade {
	return &Facade{pool: pool, manager: manager, verifier: verifier}
}

// Insert persists event, assigning Hash/HashAlgorithm first if absent
//. Returns the event as committed.
func (f *Facade) Insert(ctx context.Context, event audit.Event) (audit.Event, error) {
	event = event.WithDefaults()
	if event.Hash == "" {
		hash, err := f.verifier.ComputeHash(event)
		if err != nil {
			return event, fmt.Errorf("store: computing integrity hash: %w", err)
		}
		event.Hash = hash
		event.HashAlgorithm = audit.HashAlgorithm
	}

	id, err := f.insertRow(ctx, event)
	if err != nil {
		if !isMissingPartitionError(err) {
			return event, fmt.Errorf("store: inserting audit event: %w", err)
		}

		// No partition yet covers this event's month: create that one month's
		// partition (n=0, no months ahead) and retry exactly once.
		if f.manager != nil {
			if _, cerr := f.manager.CreatePartitionsAhead(ctx, event.Timestamp, 0); cerr != nil {
				return event, fmt.Errorf("store: creating partition on demand: %w", cerr)
			}
		}
		id, err = f.insertRow(ctx, event)
		if err != nil {
			return event, fmt.Errorf("store: inserting audit event after partition creation: %w", err)
		}
	}

	event.ID = id
	return event, nil
}

func (f *Facade) insertRow(ctx context.Context, event audit.Event) (int64, error) {
	details, err := json.Marshal(event.Details)
	if err != nil {
		return 0, fmt.Errorf("marshaling details: %w", err)
	}

	var id int64
	err = f.pool.QueryRow(ctx, `
INSERT INTO audit_log (
	timestamp, tenant_id, principal_id, action, target_type, target_id,
	status, outcome_description, data_classification, retention_policy,
	correlation_id, event_version, details, hash, hash_algorithm,
	processing_latency_ms
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)
RETURNING id`,
		event.Timestamp, event.TenantID, event.PrincipalID, event.Action,
		event.TargetType, event.TargetID, string(event.Status), event.OutcomeDescription,
		string(event.DataClassification), event.RetentionPolicy, event.CorrelationID,
		event.EventVersion, details, event.Hash, event.HashAlgorithm, event.ProcessingLatencyMs,
	).Scan(&id)
	return id, err
}

// WriteIntegrityRecord appends rec to the append-only verification log.
// rec.AuditLogID/EventTimestamp satisfy the composite foreign key into
// audit_log, whose primary key is (id, timestamp) because it's RANGE
// partitioned on timestamp.
func (f *Facade) WriteIntegrityRecord(ctx context.Context, rec audit.IntegrityVerification) error {
	details, err := json.Marshal(rec.Details)
	if err != nil {
		return fmt.Errorf("store: marshaling integrity details: %w", err)
	}

	_, err = f.pool.Exec(ctx, `
INSERT INTO audit_integrity_log (
	audit_log_id, event_timestamp, event_ref, verification_timestamp,
	status, computed_hash, expected_hash, verifier_id, details
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		rec.AuditLogID, rec.EventTimestamp, rec.EventRef, rec.VerifiedAt,
		string(rec.Status), rec.ComputedHash, rec.ExpectedHash, rec.VerifierID, details,
	)
	if err != nil {
		return fmt.Errorf("store: writing integrity record: %w", err)
	}
	return nil
}

// isMissingPartitionError reports whether err is Postgres's "no partition
// of relation found for row" condition (SQLSTATE 23514 check_violation
// raised by the partition routing machinery, or the related 42P05/no
// partition message depending on server version).
func isMissingPartitionError(err error) bool {
	var pgErr interface{ SQLState() string }
	if errors.As(err, &pgErr) && pgErr.SQLState() == "23514" {
		return true
	}
	return strings.Contains(err.Error(), "no partition of relation")
}

// InitializeSchema creates the parent table and the audit_integrity_log
// table if they don't already exist.
func (f *Facade) InitializeSchema(ctx context.Context) error {
	if f.manager != nil {
		if err := f.manager.InitializeParent(ctx); err != nil {
			return err
		}
	}
	_, err := f.pool.Exec(ctx, `
CREATE TABLE IF NOT EXISTS audit_integrity_log (
	id                      BIGINT GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
	audit_log_id            BIGINT NOT NULL,
	event_timestamp         TIMESTAMPTZ NOT NULL,
	event_ref               TEXT NOT NULL,
	verification_timestamp  TIMESTAMPTZ NOT NULL,
	status                  TEXT NOT NULL,
	computed_hash           TEXT NOT NULL,
	expected_hash           TEXT,
	verifier_id             TEXT NOT NULL,
	details                 JSONB,
	FOREIGN KEY (audit_log_id, event_timestamp) REFERENCES audit_log (id, timestamp)
);`)
	if err != nil {
		return fmt.Errorf("store: initializing audit_integrity_log table: %w", err)
	}
	return nil
}
