// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/auditcore

package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/tomtom215/auditcore/internal/audit"
	"github.com/tomtom215/auditcore/internal/config"
	"github.com/tomtom215/auditcore/internal/eventprocessor"
	"github.com/tomtom215/auditcore/internal/logging"
	"github.com/tomtom215/auditcore/internal/metrics"
	"github.com/tomtom215/auditcore/internal/store"
	"github.com/tomtom215/auditcore/internal/supervisor"
	"github.com/tomtom215/auditcore/internal/supervisor/services"
)

func main() {
	cfg, err := config.LoadWithKoanf("")
	if err != nil {
		// Logging isn't initialized yet; this is the one place the pipeline
		// writes directly to stderr.
		os.Stderr.WriteString("auditcore: " + err.Error() + "\n")
		os.Exit(1)
	}

	logging.Init(logging.Config{
		Level:     cfg.Logging.Level,
		Format:    cfg.Logging.Format,
		Caller:    cfg.Logging.Caller,
		Timestamp: true,
		Output:    os.Stderr,
	})
	logging.Info().Msg("starting auditcore event pipeline")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := store.NewPool(ctx, cfg.PoolConfig())
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to connect to postgres")
	}
	defer pool.Close()

	reg := prometheus.NewRegistry()
	storeMetrics := metrics.NewStoreMetrics(reg)
	procMetrics := eventprocessor.NewProcessorMetrics(reg)

	verifier := audit.NewVerifier("auditcore-v1")
	manager := store.NewManager(pool, cfg.PartitionRuntimeConfig())
	facade := store.NewFacade(pool, manager, verifier)
	dlqStore := store.NewDLQStore(pool)

	if err := facade.InitializeSchema(ctx); err != nil {
		logging.Fatal().Err(err).Msg("failed to initialize audit schema")
	}
	if err := dlqStore.InitializeSchema(ctx); err != nil {
		logging.Fatal().Err(err).Msg("failed to initialize dead-letter schema")
	}
	if err := manager.InitializeParent(ctx); err != nil {
		logging.Fatal().Err(err).Msg("failed to initialize partitioned audit table")
	}
	if _, err := manager.CreatePartitionsAhead(ctx, time.Now(), cfg.Partition.CreateAhead); err != nil {
		logging.Fatal().Err(err).Msg("failed to create initial partitions")
	}

	scheduler := store.NewScheduler(manager, cfg.PartitionRuntimeConfig(), storeMetrics)

	breaker := eventprocessor.NewCircuitBreaker(cfg.BreakerConfig())
	retry := eventprocessor.NewRetryEngine(cfg.RetryConfig())
	dlqHandler := eventprocessor.NewDLQHandler(dlqStore, cfg.DLQConfigForProcessor(), cfg.RetryConfig(), procMetrics)

	eventLogger := logging.NewEventLogger()
	dlqHandler.SetLogger(eventLogger)
	dlqHandler.OnAlert(func(reason string, rec eventprocessor.DeadLetterRecord) {
		eventLogger.LogOperatorAlert(reason, rec.OriginalJobID)
	})

	handler := func(ctx context.Context, event audit.Event) error {
		persisted, err := facade.Insert(ctx, event)
		if err != nil {
			return err
		}
		verification, err := verifier.Verify(persisted, persisted.Timestamp)
		if err != nil {
			return err
		}
		if err := facade.WriteIntegrityRecord(ctx, verification); err != nil {
			return err
		}
		eventLogger.LogEventProcessed(ctx, persisted.CorrelationID, persisted.ProcessingLatencyMs)
		return nil
	}

	processor := eventprocessor.NewProcessor(cfg.ProcessorConfig(), handler, breaker, retry, dlqHandler, procMetrics)

	subCfg := eventprocessor.DefaultSubscriberConfig(cfg.NATS.URL, cfg.Queue.Name)
	subCfg.DurableName = cfg.Queue.Name
	subCfg.QueueGroup = cfg.Queue.Name
	subscriber, err := eventprocessor.NewSubscriber(subCfg, nil)
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to create event subscriber")
	}
	pump := eventprocessor.NewIngestPump(subscriber, processor)

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to build supervisor tree")
	}

	tree.AddIngestionService(services.NewRunnerService("ingest-pump", pump))
	tree.AddIngestionService(processor)
	tree.AddMaintenanceService(scheduler)

	go pollStoreMetrics(ctx, pool, dlqStore, storeMetrics, cfg.Metrics.GaugeIntervalMs)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logging.Info().Str("signal", sig.String()).Msg("shutdown signal received")
		cancel()
	}()

	errCh := tree.ServeBackground(ctx)
	for err := range errCh {
		if err != nil && ctx.Err() == nil {
			logging.Error().Err(err).Msg("supervisor tree exited with error")
		}
	}

	if unstopped, err := tree.UnstoppedServiceReport(); err == nil && len(unstopped) > 0 {
		for _, svc := range unstopped {
			logging.Warn().Str("service", svc.Name).Msg("service failed to stop within shutdown timeout")
		}
	}

	logging.Info().Msg("auditcore event pipeline stopped")
}

// pollStoreMetrics periodically samples the connection pool and dead-letter
// store and feeds the results into storeMetrics, mirroring the cadence
// Prometheus scrapers expect without requiring the pool/scheduler to know
// about metrics directly.
func pollStoreMetrics(ctx context.Context, pool *pgxpool.Pool, dlqStore *store.DLQStore, sm *metrics.StoreMetrics, intervalMs int64) {
	interval := time.Duration(intervalMs) * time.Millisecond
	if interval <= 0 {
		interval = 15 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			stat := pool.Stat()
			sm.SetPoolStats(stat.AcquiredConns(), stat.IdleConns(), stat.TotalConns())

			entries, err := dlqStore.List(ctx)
			if err != nil {
				continue
			}
			oldest := time.Duration(0)
			for _, rec := range entries {
				if age := time.Since(rec.FirstFailureAt); age > oldest {
					oldest = age
				}
			}
			sm.SetDLQStats(int64(len(entries)), oldest)
		}
	}
}
