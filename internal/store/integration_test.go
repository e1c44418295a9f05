// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/auditcore

//go:build integration

package store

import (
	"context"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/tomtom215/auditcore/internal/audit"
	"github.com/tomtom215/auditcore/internal/eventprocessor"
)

// startPostgres boots a disposable Postgres container for the integration
// suite. Gated behind the "integration" build tag since it requires a
// container runtime and is never part of the default unit test run.
func startPostgres(t *testing.T) string {
	t.Helper()
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "postgres:16-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_PASSWORD": "postgres",
			"POSTGRES_DB":       "cartographus_audit",
		},
		WaitingFor: wait.ForListeningPort("5432/tcp").WithStartupTimeout(60 * time.Second),
	}
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("starting postgres container: %v", err)
	}
	t.Cleanup(func() { container.Terminate(ctx) })

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("getting container host: %v", err)
	}
	port, err := container.MappedPort(ctx, "5432")
	if err != nil {
		t.Fatalf("getting mapped port: %v", err)
	}

	return "postgres://postgres:postgres@" + host + ":" + port.Port() + "/cartographus_audit?sslmode=disable"
}

func TestFacade_InsertCreatesPartitionOnDemandAndRoundTrips(t *testing.T) {
	dsn := startPostgres(t)
	ctx := context.Background()

	pool, err := NewPool(ctx, DefaultPoolConfig(dsn))
	if err != nil {
		t.Fatalf("connecting pool: %v", err)
	}
	defer pool.Close()

	manager := NewManager(pool, eventprocessor.DefaultPartitionRuntimeConfig())
	verifier := audit.NewVerifier("integration-test")
	facade := NewFacade(pool, manager, verifier)

	if err := facade.InitializeSchema(ctx); err != nil {
		t.Fatalf("initializing schema: %v", err)
	}

	event := audit.Event{
		Timestamp: time.Now(),
		TenantID:  "tenant-1",
		Action:    "user.login",
		Status:    audit.StatusSuccess,
	}

	committed, err := facade.Insert(ctx, event)
	if err != nil {
		t.Fatalf("inserting event into a not-yet-existing partition: %v", err)
	}
	if committed.Hash == "" {
		t.Error("expected the facade to enrich the event with an integrity hash")
	}

	partitions, err := manager.ListPartitions(ctx)
	if err != nil {
		t.Fatalf("listing partitions: %v", err)
	}
	if len(partitions) == 0 {
		t.Error("expected at least one partition to have been created on demand")
	}
}

type fakeSchedulerMetrics struct {
	created, dropped, runs, errs int
}

func (m *fakeSchedulerMetrics) RecordPartitionCreated() { m.created++ }
func (m *fakeSchedulerMetrics) RecordPartitionDropped() { m.dropped++ }
func (m *fakeSchedulerMetrics) RecordMaintenanceRun(_ time.Duration, err error) {
	m.runs++
	if err != nil {
		m.errs++
	}
}

func TestScheduler_RunOnceCreatesPartitionsAndRecordsMetrics(t *testing.T) {
	dsn := startPostgres(t)
	ctx := context.Background()

	pool, err := NewPool(ctx, DefaultPoolConfig(dsn))
	if err != nil {
		t.Fatalf("connecting pool: %v", err)
	}
	defer pool.Close()

	manager := NewManager(pool, eventprocessor.DefaultPartitionRuntimeConfig())
	verifier := audit.NewVerifier("integration-test")
	facade := NewFacade(pool, manager, verifier)
	if err := facade.InitializeSchema(ctx); err != nil {
		t.Fatalf("initializing schema: %v", err)
	}
	if err := manager.InitializeParent(ctx); err != nil {
		t.Fatalf("initializing parent table: %v", err)
	}

	cfg := eventprocessor.DefaultPartitionRuntimeConfig()
	cfg.AutoCreate = true
	cfg.CreateAhead = 1

	metrics := &fakeSchedulerMetrics{}
	sched := NewScheduler(manager, cfg, metrics)

	if err := sched.runOnce(ctx); err != nil {
		t.Fatalf("running maintenance: %v", err)
	}
	if metrics.runs != 1 || metrics.errs != 0 {
		t.Errorf("expected one successful run, got runs=%d errs=%d", metrics.runs, metrics.errs)
	}
	if metrics.created == 0 {
		t.Error("expected at least one partition creation to be recorded")
	}

	metrics.created = 0
	if err := sched.runOnce(ctx); err != nil {
		t.Fatalf("running maintenance again: %v", err)
	}
	if metrics.created != 0 {
		t.Errorf("expected the second run to be a no-op (partitions already exist), got %d creations", metrics.created)
	}
}
