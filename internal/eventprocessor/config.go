// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/auditcore

package eventprocessor

import "time"

// BackoffStrategy selects the Retry Engine's delay formula.
type BackoffStrategy string

const (
	BackoffExponential BackoffStrategy = "exponential"
	BackoffLinear       BackoffStrategy = "linear"
	BackoffFixed        BackoffStrategy = "fixed"
)

// RetryConfig configures the Retry Engine.
type RetryConfig struct {
	MaxRetries                 int
	Strategy                   BackoffStrategy
	BaseDelayMs                int64
	MaxDelayMs                 int64
	Jitter                     bool
	RetryableCodes             map[string]struct{}
	RetryableMessageSubstrings []string
}

// DefaultRetryConfig returns the Retry Engine's production defaults.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:  5,
		Strategy:    BackoffExponential,
		BaseDelayMs: 1000,
		MaxDelayMs:  30000,
		Jitter:      true,
		RetryableCodes: codeSet(
			"ECONNRESET", "ETIMEDOUT", "ENOTFOUND", "ECONNREFUSED",
			"EHOSTUNREACH", "ENETUNREACH", "EAI_AGAIN", "EPIPE", "ECONNABORTED",
		),
		RetryableMessageSubstrings: []string{
			"connection", "timeout", "network", "unavailable", "temporary",
		},
	}
}

func codeSet(codes ...string) map[string]struct{} {
	m := make(map[string]struct{}, len(codes))
	for _, c := range codes {
		m[c] = struct{}{}
	}
	return m
}

// BreakerConfig configures the Circuit Breaker.
type BreakerConfig struct {
	Name               string
	FailureThreshold   uint32
	RecoveryTimeoutMs  int64
	MonitoringPeriodMs int64
	MinimumThroughput  uint32
}

// DefaultBreakerConfig returns the Circuit Breaker's production defaults.
func DefaultBreakerConfig(name string) BreakerConfig {
	return BreakerConfig{
		Name:               name,
		FailureThreshold:   5,
		RecoveryTimeoutMs:  30000,
		MonitoringPeriodMs: 60000,
		MinimumThroughput:  10,
	}
}

func (c BreakerConfig) recoveryTimeout() time.Duration {
	return time.Duration(c.RecoveryTimeoutMs) * time.Millisecond
}

func (c BreakerConfig) monitoringPeriod() time.Duration {
	return time.Duration(c.MonitoringPeriodMs) * time.Millisecond
}

// DLQConfig configures the Dead-Letter Handler.
type DLQConfig struct {
	Name             string
	MaxRetentionDays int
	AlertThreshold   int
	CooldownMs       int64
	ArchiveAfterDays *int
}

// DefaultDLQConfig returns the Dead-Letter Handler's production defaults.
func DefaultDLQConfig() DLQConfig {
	return DLQConfig{
		Name:             "audit-dlq",
		MaxRetentionDays: 30,
		AlertThreshold:   10,
		CooldownMs:       300000,
	}
}

// PartitionRuntimeConfig configures the Partition Maintenance Scheduler and
// Partition Manager. It lives here (rather than
// internal/store) because it is part of the processor-facing configuration
// surface; internal/store.Manager accepts the same fields directly.
type PartitionRuntimeConfig struct {
	Interval               string // monthly | quarterly | yearly; store.Manager always creates monthly partitions
	RetentionDays          int
	AutoCreate             bool
	AutoDrop               bool
	CreateAhead            int
	MaintenanceIntervalMs  int64
}

// DefaultPartitionRuntimeConfig returns the Partition Manager's production defaults.
func DefaultPartitionRuntimeConfig() PartitionRuntimeConfig {
	return PartitionRuntimeConfig{
		Interval:              "monthly",
		RetentionDays:         2555,
		AutoCreate:            true,
		AutoDrop:              true,
		CreateAhead:           6,
		MaintenanceIntervalMs: 86_400_000,
	}
}

// ProcessorConfig is the top-level configuration for the Reliable Event
// Processor.
type ProcessorConfig struct {
	QueueName          string
	DLQName            string
	WorkerConcurrency  int
	GracePeriod        time.Duration
	MetricsGaugeInterval time.Duration
	Retry              RetryConfig
	Breaker            BreakerConfig
	DLQ                DLQConfig
}

// DefaultProcessorConfig returns the Processor's production defaults.
func DefaultProcessorConfig() ProcessorConfig {
	return ProcessorConfig{
		QueueName:            "audit-events",
		DLQName:              "audit-events-dlq",
		WorkerConcurrency:    5,
		GracePeriod:          30 * time.Second,
		MetricsGaugeInterval: 30 * time.Second,
		Retry:                DefaultRetryConfig(),
		Breaker:              DefaultBreakerConfig("audit-store"),
		DLQ:                  DefaultDLQConfig(),
	}
}
