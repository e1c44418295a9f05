// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/auditcore

// Package audit defines the domain model for compliance audit events: the
// event itself, its retention policy, and the integrity-verification record
// produced by hashing it.
package audit

import (
	"context"
	"time"
)

// Status is the outcome recorded on an audit event.
type Status string

const (
	StatusAttempt Status = "attempt"
	StatusSuccess Status = "success"
	StatusFailure Status = "failure"
)

// DataClassification tags the sensitivity of an event for retention policy.
type DataClassification string

const (
	ClassificationPublic       DataClassification = "PUBLIC"
	ClassificationInternal     DataClassification = "INTERNAL"
	ClassificationConfidential DataClassification = "CONFIDENTIAL"
	ClassificationPHI          DataClassification = "PHI"
)

// Details is the free-form structured payload carried on an event. Keys are
// whatever the producer supplies; canonicalization for hashing is the
// Verifier's job (see integrity.go), not this type's.
type Details map[string]any

// Event is the ingested unit processed by the pipeline. Once persisted, the
// hash-covered fields (all fields except ID, OutcomeDescription,
// ProcessingLatencyMs and Hash/HashAlgorithm themselves, which are derived
// from the others; see canonicalize in integrity.go) must never change.
type Event struct {
	// ID is the audit_log row's generated identity. Zero until the event has
	// been persisted; Insert fills it in on the returned Event.
	ID                  int64              `json:"id,omitempty"`
	Timestamp           time.Time          `json:"timestamp"`
	TenantID            string             `json:"tenantId"`
	PrincipalID         string             `json:"principalId,omitempty"`
	Action              string             `json:"action"`
	TargetType          string             `json:"targetType,omitempty"`
	TargetID            string             `json:"targetId,omitempty"`
	Status              Status             `json:"status"`
	OutcomeDescription  string             `json:"outcomeDescription,omitempty"`
	DataClassification  DataClassification `json:"dataClassification"`
	RetentionPolicy     string             `json:"retentionPolicy"`
	CorrelationID       string             `json:"correlationId,omitempty"`
	EventVersion        string             `json:"eventVersion"`
	Details             Details            `json:"details,omitempty"`
	Hash                string             `json:"hash,omitempty"`
	HashAlgorithm       string             `json:"hashAlgorithm,omitempty"`
	ProcessingLatencyMs int64              `json:"processingLatencyMs,omitempty"`
}

// WithDefaults fills required fields that were left zero with their
// documented defaults. It does not touch Hash/HashAlgorithm.
func (e Event) WithDefaults() Event {
	if e.DataClassification == "" {
		e.DataClassification = ClassificationInternal
	}
	if e.RetentionPolicy == "" {
		e.RetentionPolicy = "standard"
	}
	if e.EventVersion == "" {
		e.EventVersion = "1.0"
	}
	return e
}

// Validate checks the invariants required before insert: timestamp, action
// and status are non-null.
func (e Event) Validate() error {
	if e.Timestamp.IsZero() {
		return ErrMissingTimestamp
	}
	if e.Action == "" {
		return ErrMissingAction
	}
	switch e.Status {
	case StatusAttempt, StatusSuccess, StatusFailure:
	default:
		return ErrMissingStatus
	}
	return nil
}

// RetentionPolicy describes how long events of a given classification are
// kept before they become eligible for archival/partition drop.
type RetentionPolicy struct {
	Name             string
	RetentionDays    int
	ArchiveAfterDays *int
	Classification   DataClassification
	Active           bool
}

// VerificationStatus is the outcome of a single integrity verification
// attempt.
type VerificationStatus string

const (
	VerificationSuccess VerificationStatus = "SUCCESS"
	VerificationFailure VerificationStatus = "FAILURE"
	VerificationWarning VerificationStatus = "WARNING"
)

// IntegrityVerification is one append-only record of a hash check against a
// stored event.
type IntegrityVerification struct {
	EventRef string
	// AuditLogID and EventTimestamp together identify the audit_log row this
	// verification covers. Both are required to foreign-key into audit_log,
	// whose primary key is the composite (id, timestamp) forced by RANGE
	// partitioning on timestamp.
	AuditLogID     int64
	EventTimestamp time.Time
	VerifiedAt     time.Time
	Status         VerificationStatus
	ComputedHash   string
	ExpectedHash   string
	VerifierID     string
	// Details carries verifier-specific diagnostic context (e.g. which
	// canonicalized field diverged on a FAILURE). Optional.
	Details map[string]any
}

// Store is the narrow read/write surface the rest of the pipeline depends
// on for persisted events. The concrete Postgres-backed implementation
// lives in internal/store; MemoryStore (memorystore.go) is a test/dev substitute.
type Store interface {
	Insert(ctx context.Context, event Event) (Event, error)
	WriteIntegrityRecord(ctx context.Context, rec IntegrityVerification) error
}
