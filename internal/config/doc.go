// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/auditcore

/*
Package config loads and validates configuration for the audit event
pipeline using koanf v2.

# Configuration Loading Order

Configuration is layered in increasing priority:

 1. Defaults: built-in sensible defaults for every setting (defaultConfig)
 2. Config File: an optional YAML file, found via an explicit path,
    AUDITCORE_CONFIG_FILE, or the first match in DefaultConfigPaths
 3. Environment Variables: AUDITCORE_-prefixed variables override any
    setting, translated to koanf dot-paths by envTransformFunc

# Configuration Structure

  - QueueConfig: primary and dead-letter queue names
  - DLQConfig: dead-letter retention, alerting, and archival
  - RetryConfig: Retry Engine backoff strategy and bounds
  - BreakerConfig: Circuit Breaker thresholds and timeouts
  - PartitionConfig: partition interval, retention, and maintenance cadence
  - DBConfig: Postgres DSN and pgxpool connection limits
  - MetricsConfig: Processor Metrics Collector gauge interval
  - LoggingConfig: structured logging level, format, and caller info

# Usage Example

	cfg, err := config.LoadWithKoanf("")
	if err != nil {
	    log.Fatalf("failed to load config: %v", err)
	}

	fmt.Printf("queue: %s, dlq: %s\n", cfg.Queue.Name, cfg.Queue.DLQName)

# Validation

Config.Validate() checks required fields and value ranges, returning a
descriptive error on the first violation found. LoadWithKoanf calls it
automatically.

# Thread Safety

Config is immutable after LoadWithKoanf returns, safe for concurrent read
access from multiple goroutines.

# Live Reload

WatchConfigFile watches the YAML config file on disk and invokes a
callback with a freshly loaded and validated Config whenever it changes.
*/
package config
