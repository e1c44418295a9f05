// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/auditcore

package config

import (
	"time"

	"github.com/tomtom215/auditcore/internal/eventprocessor"
	"github.com/tomtom215/auditcore/internal/store"
)

// ProcessorConfig translates the loaded Config into the Reliable Event
// Processor's own configuration type.
func (c *Config) ProcessorConfig() eventprocessor.ProcessorConfig {
	return eventprocessor.ProcessorConfig{
		QueueName:            c.Queue.Name,
		DLQName:              c.Queue.DLQName,
		WorkerConcurrency:    c.Worker.Concurrency,
		GracePeriod:          time.Duration(c.Worker.GracePeriodMs) * time.Millisecond,
		MetricsGaugeInterval: time.Duration(c.Metrics.GaugeIntervalMs) * time.Millisecond,
		Retry:                c.RetryConfig(),
		Breaker:              c.BreakerConfig(),
		DLQ:                  c.DLQConfigForProcessor(),
	}
}

// RetryConfig translates the loaded Config into the Retry Engine's own
// configuration type.
func (c *Config) RetryConfig() eventprocessor.RetryConfig {
	defaults := eventprocessor.DefaultRetryConfig()
	return eventprocessor.RetryConfig{
		MaxRetries:                 c.Retry.MaxRetries,
		Strategy:                   eventprocessor.BackoffStrategy(c.Retry.Strategy),
		BaseDelayMs:                c.Retry.BaseDelayMs,
		MaxDelayMs:                 c.Retry.MaxDelayMs,
		Jitter:                     c.Retry.Jitter,
		RetryableCodes:             defaults.RetryableCodes,
		RetryableMessageSubstrings: defaults.RetryableMessageSubstrings,
	}
}

// BreakerConfig translates the loaded Config into the Circuit Breaker's own
// configuration type.
func (c *Config) BreakerConfig() eventprocessor.BreakerConfig {
	return eventprocessor.BreakerConfig{
		Name:               c.Queue.Name,
		FailureThreshold:   c.Breaker.FailureThreshold,
		RecoveryTimeoutMs:  c.Breaker.RecoveryTimeoutMs,
		MonitoringPeriodMs: c.Breaker.MonitoringPeriodMs,
		MinimumThroughput:  c.Breaker.MinimumThroughput,
	}
}

// DLQConfigForProcessor translates the loaded Config into the Dead-Letter
// Handler's own configuration type.
func (c *Config) DLQConfigForProcessor() eventprocessor.DLQConfig {
	var archiveAfter *int
	if c.DLQ.ArchiveAfterDays > 0 {
		days := c.DLQ.ArchiveAfterDays
		archiveAfter = &days
	}
	return eventprocessor.DLQConfig{
		Name:             c.Queue.DLQName,
		MaxRetentionDays: c.DLQ.MaxRetentionDays,
		AlertThreshold:   c.DLQ.AlertThreshold,
		CooldownMs:       c.DLQ.CooldownMs,
		ArchiveAfterDays: archiveAfter,
	}
}

// PartitionRuntimeConfig translates the loaded Config into the Partition
// Manager and Maintenance Scheduler's own configuration type.
func (c *Config) PartitionRuntimeConfig() eventprocessor.PartitionRuntimeConfig {
	return eventprocessor.PartitionRuntimeConfig{
		Interval:              c.Partition.Interval,
		RetentionDays:         c.Partition.RetentionDays,
		AutoCreate:            c.Partition.AutoCreate,
		AutoDrop:              c.Partition.AutoDrop,
		CreateAhead:           c.Partition.CreateAhead,
		MaintenanceIntervalMs: c.Partition.MaintenanceIntervalMs,
	}
}

// PoolConfig translates the loaded Config into the pgxpool connection
// pool's own configuration type.
func (c *Config) PoolConfig() store.PoolConfig {
	return store.PoolConfig{
		DSN:             c.DB.DSN,
		MaxConns:        int32(c.DB.Pool.Max),
		MinConns:        int32(c.DB.Pool.Min),
		MaxConnLifetime: time.Duration(c.DB.Pool.IdleTimeoutMs) * time.Millisecond,
		MaxConnIdleTime: time.Duration(c.DB.Pool.IdleTimeoutMs) * time.Millisecond,
	}
}
