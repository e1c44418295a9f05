// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/auditcore

package audit

import (
	"context"
	"errors"
	"testing"
	"time"
)

func sampleEvent() Event {
	return Event{
		Timestamp: time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC),
		TenantID:  "tenant-1",
		Action:    "user.login",
		Status:    StatusSuccess,
	}
}

func TestEvent_WithDefaults(t *testing.T) {
	e := sampleEvent().WithDefaults()

	if e.DataClassification != ClassificationInternal {
		t.Errorf("expected default classification INTERNAL, got %q", e.DataClassification)
	}
	if e.RetentionPolicy != "standard" {
		t.Errorf("expected default retention policy 'standard', got %q", e.RetentionPolicy)
	}
	if e.EventVersion != "1.0" {
		t.Errorf("expected default event version '1.0', got %q", e.EventVersion)
	}
}

func TestEvent_WithDefaultsPreservesExplicitValues(t *testing.T) {
	e := sampleEvent()
	e.DataClassification = ClassificationPHI
	e.RetentionPolicy = "extended"
	e.EventVersion = "2.0"

	got := e.WithDefaults()
	if got.DataClassification != ClassificationPHI || got.RetentionPolicy != "extended" || got.EventVersion != "2.0" {
		t.Errorf("WithDefaults overwrote explicit values: %+v", got)
	}
}

func TestEvent_Validate(t *testing.T) {
	tests := []struct {
		name    string
		event   Event
		wantErr error
	}{
		{"valid", sampleEvent(), nil},
		{"missing timestamp", Event{Action: "a", Status: StatusSuccess}, ErrMissingTimestamp},
		{"missing action", Event{Timestamp: time.Now(), Status: StatusSuccess}, ErrMissingAction},
		{"missing status", Event{Timestamp: time.Now(), Action: "a"}, ErrMissingStatus},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.event.Validate()
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate() = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestMemoryStore_InsertAndWriteIntegrityRecord(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	event := sampleEvent()
	committed, err := store.Insert(ctx, event)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(store.Events()) != 1 {
		t.Fatalf("expected 1 stored event, got %d", len(store.Events()))
	}
	if committed.TenantID != event.TenantID {
		t.Errorf("committed event mismatch: %+v", committed)
	}

	rec := IntegrityVerification{
		EventRef:     committed.Hash,
		VerifiedAt:   time.Now(),
		Status:       VerificationSuccess,
		ComputedHash: "abc",
		VerifierID:   "test",
	}
	if err := store.WriteIntegrityRecord(ctx, rec); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(store.IntegrityRecords()) != 1 {
		t.Fatalf("expected 1 integrity record, got %d", len(store.IntegrityRecords()))
	}
}

func TestMemoryStore_SatisfiesStoreInterface(t *testing.T) {
	var _ Store = NewMemoryStore()
}
