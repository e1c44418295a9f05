// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/auditcore

package audit

import (
	"context"
	"sync"
)

// MemoryStore implements Store using in-memory storage. It is used by unit
// tests for the processor and DLQ, and as a local-dev substitute for the
// Postgres-backed facade in internal/store. Data is lost on restart.
type MemoryStore struct {
	mu         sync.RWMutex
	events     []Event
	integrity  []IntegrityVerification
}

// NewMemoryStore creates an empty in-memory audit store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Insert appends event to the in-memory log, assigning ID the way the
// Postgres facade's RETURNING id would (a 1-based sequence here).
func (s *MemoryStore) Insert(_ context.Context, event Event) (Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	event.ID = int64(len(s.events)) + 1
	s.events = append(s.events, event)
	return event, nil
}

// WriteIntegrityRecord appends rec to the in-memory verification log.
func (s *MemoryStore) WriteIntegrityRecord(_ context.Context, rec IntegrityVerification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.integrity = append(s.integrity, rec)
	return nil
}

// Events returns a snapshot copy of all inserted events, for assertions in
// tests.
func (s *MemoryStore) Events() []Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Event, len(s.events))
	copy(out, s.events)
	return out
}

// IntegrityRecords returns a snapshot copy of all written verification
// records, for assertions in tests.
func (s *MemoryStore) IntegrityRecords() []IntegrityVerification {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]IntegrityVerification, len(s.integrity))
	copy(out, s.integrity)
	return out
}
