// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/auditcore

package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists the locations searched for a YAML config file
// when none is given explicitly, in priority order.
var DefaultConfigPaths = []string{
	"./config.yaml",
	"./config.yml",
	"/etc/auditcore/config.yaml",
}

// ConfigPathEnvVar names the environment variable that, if set, overrides
// DefaultConfigPaths with an explicit file path.
const ConfigPathEnvVar = "AUDITCORE_CONFIG_FILE"

// envPrefix is stripped from AUDITCORE_-prefixed environment variables
// before koanf's dot-path translation runs.
const envPrefix = "AUDITCORE_"

// defaultConfig returns a Config populated with the pipeline's built-in
// defaults. It is the first, lowest-priority layer loaded by LoadWithKoanf.
func defaultConfig() *Config {
	return &Config{
		Queue: QueueConfig{
			Name:    "audit.events",
			DLQName: "audit.events.dlq",
		},
		NATS: NATSConfig{
			URL: "nats://localhost:4222",
		},
		Worker: WorkerConfig{
			Concurrency:   5,
			GracePeriodMs: 30_000,
		},
		DLQ: DLQConfig{
			MaxRetentionDays: 30,
			AlertThreshold:   10,
			CooldownMs:       300_000,
			ArchiveAfterDays: 0,
		},
		Retry: RetryConfig{
			MaxRetries:  5,
			Strategy:    "exponential",
			BaseDelayMs: 1000,
			MaxDelayMs:  30_000,
			Jitter:      true,
		},
		Breaker: BreakerConfig{
			FailureThreshold:   5,
			RecoveryTimeoutMs:  30_000,
			MonitoringPeriodMs: 60_000,
			MinimumThroughput:  10,
		},
		Partition: PartitionConfig{
			Interval:              "monthly",
			RetentionDays:         2555,
			AutoCreate:            true,
			AutoDrop:              true,
			CreateAhead:           6,
			MaintenanceIntervalMs: 86_400_000,
		},
		DB: DBConfig{
			Pool: PoolConfig{
				Min:              2,
				Max:              20,
				IdleTimeoutMs:    300_000,
				AcquireTimeoutMs: 5_000,
				SSL:              true,
			},
		},
		Metrics: MetricsConfig{
			GaugeIntervalMs: 30_000,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
	}
}

// LoadWithKoanf builds a Config by layering, in increasing priority:
//  1. built-in defaults (defaultConfig)
//  2. an optional YAML config file (explicit path, AUDITCORE_CONFIG_FILE,
//     or the first match in DefaultConfigPaths)
//  3. environment variables, translated from AUDITCORE_* names to koanf
//     dot-paths by envTransformFunc
//
// The resulting Config is validated before being returned.
func LoadWithKoanf(explicitPath string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("config: loading defaults: %w", err)
	}

	if path := findConfigFile(explicitPath); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("config: loading file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(envPrefix, ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("config: loading environment: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	return cfg, nil
}

// findConfigFile resolves the YAML config path to load, preferring an
// explicit path, then ConfigPathEnvVar, then the first existing entry in
// DefaultConfigPaths. Returns "" if none exist.
func findConfigFile(explicitPath string) string {
	if explicitPath != "" {
		return explicitPath
	}
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		return envPath
	}
	for _, candidate := range DefaultConfigPaths {
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
	}
	return ""
}

// envTransformFunc maps AUDITCORE_*-prefixed environment variable names to
// koanf dot-paths matching the Config struct's koanf tags. Unrecognized
// names pass through a generic underscore-to-dot transform so new options
// don't require an entry here.
func envTransformFunc(key string) string {
	trimmed := strings.TrimPrefix(key, envPrefix)

	known := map[string]string{
		"QUEUE_NAME":                         "queue.name",
		"QUEUE_DLQ_NAME":                     "queue.dlq_name",
		"NATS_URL":                           "nats.url",
		"WORKER_CONCURRENCY":                 "worker.concurrency",
		"WORKER_GRACE_PERIOD_MS":             "worker.grace_period_ms",
		"DLQ_MAX_RETENTION_DAYS":             "dlq.max_retention_days",
		"DLQ_ALERT_THRESHOLD":                "dlq.alert_threshold",
		"DLQ_COOLDOWN_MS":                    "dlq.cooldown_ms",
		"DLQ_ARCHIVE_AFTER_DAYS":              "dlq.archive_after_days",
		"RETRY_MAX_RETRIES":                  "retry.max_retries",
		"RETRY_STRATEGY":                     "retry.strategy",
		"RETRY_BASE_DELAY_MS":                "retry.base_delay_ms",
		"RETRY_MAX_DELAY_MS":                 "retry.max_delay_ms",
		"RETRY_JITTER":                       "retry.jitter",
		"BREAKER_FAILURE_THRESHOLD":          "breaker.failure_threshold",
		"BREAKER_RECOVERY_TIMEOUT_MS":        "breaker.recovery_timeout_ms",
		"BREAKER_MONITORING_PERIOD_MS":       "breaker.monitoring_period_ms",
		"BREAKER_MINIMUM_THROUGHPUT":         "breaker.minimum_throughput",
		"PARTITION_INTERVAL":                 "partition.interval",
		"PARTITION_RETENTION_DAYS":           "partition.retention_days",
		"PARTITION_AUTO_CREATE":              "partition.auto_create",
		"PARTITION_AUTO_DROP":                "partition.auto_drop",
		"PARTITION_CREATE_AHEAD":             "partition.create_ahead",
		"PARTITION_MAINTENANCE_INTERVAL_MS":  "partition.maintenance_interval_ms",
		"DB_DSN":                             "db.dsn",
		"DB_POOL_MIN":                        "db.pool.min",
		"DB_POOL_MAX":                        "db.pool.max",
		"DB_POOL_IDLE_TIMEOUT_MS":            "db.pool.idle_timeout_ms",
		"DB_POOL_ACQUIRE_TIMEOUT_MS":         "db.pool.acquire_timeout_ms",
		"DB_POOL_SSL":                        "db.pool.ssl",
		"METRICS_GAUGE_INTERVAL_MS":          "metrics.gauge_interval_ms",
		"LOGGING_LEVEL":                      "logging.level",
		"LOGGING_FORMAT":                     "logging.format",
		"LOGGING_CALLER":                     "logging.caller",
	}

	if path, ok := known[trimmed]; ok {
		return path
	}
	return strings.ReplaceAll(strings.ToLower(trimmed), "_", ".")
}

// WatchConfigFile registers callback to be invoked whenever the YAML config
// file at path changes on disk.
func WatchConfigFile(path string, callback func(*Config, error)) error {
	return file.Provider(path).Watch(func(event interface{}, err error) {
		if err != nil {
			callback(nil, fmt.Errorf("config: watch error: %w", err))
			return
		}

		fresh := koanf.New(".")
		if loadErr := fresh.Load(structs.Provider(defaultConfig(), "koanf"), nil); loadErr != nil {
			callback(nil, fmt.Errorf("config: reload defaults: %w", loadErr))
			return
		}
		if loadErr := fresh.Load(file.Provider(path), yaml.Parser()); loadErr != nil {
			callback(nil, fmt.Errorf("config: reload file: %w", loadErr))
			return
		}
		if loadErr := fresh.Load(env.Provider(envPrefix, ".", envTransformFunc), nil); loadErr != nil {
			callback(nil, fmt.Errorf("config: reload environment: %w", loadErr))
			return
		}

		cfg := &Config{}
		if unmarshalErr := fresh.Unmarshal("", cfg); unmarshalErr != nil {
			callback(nil, fmt.Errorf("config: reload unmarshal: %w", unmarshalErr))
			return
		}
		if validateErr := cfg.Validate(); validateErr != nil {
			callback(nil, fmt.Errorf("config: reload validate: %w", validateErr))
			return
		}

		callback(cfg, nil)
	})
}
