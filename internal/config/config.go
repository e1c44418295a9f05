// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/auditcore

package config

import (
	"fmt"
	"time"
)

// Config holds all configuration for the audit event pipeline, loaded from
// environment variables and an optional YAML config file.
//
// Configuration Loading Order (Koanf v2):
//  1. Defaults: built-in sensible defaults for all settings
//  2. Config File: optional YAML config file (config.yaml) for persistent settings
//  3. Environment Variables: override any setting
//
// Thread Safety: Config is immutable after LoadWithKoanf() and safe for concurrent
// read access from multiple goroutines.
type Config struct {
	Queue     QueueConfig     `koanf:"queue"`
	NATS      NATSConfig      `koanf:"nats"`
	Worker    WorkerConfig    `koanf:"worker"`
	DLQ       DLQConfig       `koanf:"dlq"`
	Retry     RetryConfig     `koanf:"retry"`
	Breaker   BreakerConfig   `koanf:"breaker"`
	Partition PartitionConfig `koanf:"partition"`
	DB        DBConfig        `koanf:"db"`
	Metrics   MetricsConfig   `koanf:"metrics"`
	Logging   LoggingConfig   `koanf:"logging"`
}

// QueueConfig names the primary and dead-letter queues.
type QueueConfig struct {
	Name    string `koanf:"name"`
	DLQName string `koanf:"dlq_name"`
}

// NATSConfig points the subscriber pump at its JetStream broker.
type NATSConfig struct {
	URL string `koanf:"url"`
}

// WorkerConfig configures the Reliable Event Processor's worker pool.
type WorkerConfig struct {
	Concurrency   int   `koanf:"concurrency"`
	GracePeriodMs int64 `koanf:"grace_period_ms"`
}

// DLQConfig configures dead-letter handling.
type DLQConfig struct {
	MaxRetentionDays int   `koanf:"max_retention_days"`
	AlertThreshold   int   `koanf:"alert_threshold"`
	CooldownMs       int64 `koanf:"cooldown_ms"`
	ArchiveAfterDays int   `koanf:"archive_after_days"` // 0 = disabled
}

// RetryConfig configures the Retry Engine.
type RetryConfig struct {
	MaxRetries  int    `koanf:"max_retries"`
	Strategy    string `koanf:"strategy"` // exponential | linear | fixed
	BaseDelayMs int64  `koanf:"base_delay_ms"`
	MaxDelayMs  int64  `koanf:"max_delay_ms"`
	Jitter      bool   `koanf:"jitter"`
}

// BreakerConfig configures the Circuit Breaker.
type BreakerConfig struct {
	FailureThreshold   uint32 `koanf:"failure_threshold"`
	RecoveryTimeoutMs  int64  `koanf:"recovery_timeout_ms"`
	MonitoringPeriodMs int64  `koanf:"monitoring_period_ms"`
	MinimumThroughput  uint32 `koanf:"minimum_throughput"`
}

// PartitionConfig configures the Partition Manager and Maintenance
// Scheduler.
type PartitionConfig struct {
	Interval              string `koanf:"interval"` // monthly | quarterly | yearly accepted; partitions are always monthly
	RetentionDays         int    `koanf:"retention_days"`
	AutoCreate            bool   `koanf:"auto_create"`
	AutoDrop              bool   `koanf:"auto_drop"`
	CreateAhead           int    `koanf:"create_ahead"`
	MaintenanceIntervalMs int64  `koanf:"maintenance_interval_ms"`
}

// DBConfig configures the pgxpool-backed Postgres connection.
type DBConfig struct {
	DSN  string     `koanf:"dsn"`
	Pool PoolConfig `koanf:"pool"`
}

// PoolConfig configures pgxpool connection limits.
type PoolConfig struct {
	Min               int   `koanf:"min"`
	Max               int   `koanf:"max"`
	IdleTimeoutMs     int64 `koanf:"idle_timeout_ms"`
	AcquireTimeoutMs  int64 `koanf:"acquire_timeout_ms"`
	SSL               bool  `koanf:"ssl"`
}

// MetricsConfig configures the Processor Metrics Collector.
type MetricsConfig struct {
	GaugeIntervalMs int64 `koanf:"gauge_interval_ms"`
}

// LoggingConfig configures structured logging output.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"` // json | console
	Caller bool   `koanf:"caller"`
}

// RetentionDuration returns MaxRetentionDays as a time.Duration.
func (d DLQConfig) RetentionDuration() time.Duration {
	return time.Duration(d.MaxRetentionDays) * 24 * time.Hour
}

// RecoveryTimeout returns RecoveryTimeoutMs as a time.Duration.
func (b BreakerConfig) RecoveryTimeout() time.Duration {
	return time.Duration(b.RecoveryTimeoutMs) * time.Millisecond
}

// Validate checks required fields and value ranges, returning a descriptive
// error on the first violation found.
func (c *Config) Validate() error {
	if c.Queue.Name == "" {
		return fmt.Errorf("queue.name is required")
	}
	if c.Queue.DLQName == "" {
		return fmt.Errorf("queue.dlq_name is required")
	}
	if c.DB.DSN == "" {
		return fmt.Errorf("db.dsn is required")
	}
	if c.NATS.URL == "" {
		return fmt.Errorf("nats.url is required")
	}
	if c.Worker.Concurrency <= 0 {
		return fmt.Errorf("worker.concurrency must be > 0, got %d", c.Worker.Concurrency)
	}
	if err := c.Retry.validate(); err != nil {
		return fmt.Errorf("retry: %w", err)
	}
	if err := c.Breaker.validate(); err != nil {
		return fmt.Errorf("breaker: %w", err)
	}
	if err := c.Partition.validate(); err != nil {
		return fmt.Errorf("partition: %w", err)
	}
	if err := c.DB.Pool.validate(); err != nil {
		return fmt.Errorf("db.pool: %w", err)
	}
	return nil
}

func (r RetryConfig) validate() error {
	if r.MaxRetries < 0 {
		return fmt.Errorf("max_retries must be >= 0, got %d", r.MaxRetries)
	}
	switch r.Strategy {
	case "exponential", "linear", "fixed":
	default:
		return fmt.Errorf("strategy must be exponential, linear, or fixed, got %q", r.Strategy)
	}
	if r.BaseDelayMs <= 0 {
		return fmt.Errorf("base_delay_ms must be > 0, got %d", r.BaseDelayMs)
	}
	if r.MaxDelayMs < r.BaseDelayMs {
		return fmt.Errorf("max_delay_ms (%d) must be >= base_delay_ms (%d)", r.MaxDelayMs, r.BaseDelayMs)
	}
	return nil
}

func (b BreakerConfig) validate() error {
	if b.FailureThreshold == 0 {
		return fmt.Errorf("failure_threshold must be > 0")
	}
	if b.RecoveryTimeoutMs <= 0 {
		return fmt.Errorf("recovery_timeout_ms must be > 0, got %d", b.RecoveryTimeoutMs)
	}
	if b.MonitoringPeriodMs <= 0 {
		return fmt.Errorf("monitoring_period_ms must be > 0, got %d", b.MonitoringPeriodMs)
	}
	return nil
}

func (p PartitionConfig) validate() error {
	switch p.Interval {
	case "monthly", "quarterly", "yearly":
	default:
		return fmt.Errorf("interval must be monthly, quarterly, or yearly, got %q", p.Interval)
	}
	if p.RetentionDays <= 0 {
		return fmt.Errorf("retention_days must be > 0, got %d", p.RetentionDays)
	}
	if p.CreateAhead < 0 {
		return fmt.Errorf("create_ahead must be >= 0, got %d", p.CreateAhead)
	}
	if p.MaintenanceIntervalMs <= 0 {
		return fmt.Errorf("maintenance_interval_ms must be > 0, got %d", p.MaintenanceIntervalMs)
	}
	return nil
}

func (p PoolConfig) validate() error {
	if p.Min < 0 {
		return fmt.Errorf("min must be >= 0, got %d", p.Min)
	}
	if p.Max <= 0 {
		return fmt.Errorf("max must be > 0, got %d", p.Max)
	}
	if p.Min > p.Max {
		return fmt.Errorf("min (%d) must be <= max (%d)", p.Min, p.Max)
	}
	return nil
}
