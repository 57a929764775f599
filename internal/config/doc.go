/*
Package config provides hierarchical configuration management for transferd
with multi-source support.

This package implements a configuration system that supports YAML files,
environment variables, and compiled-in defaults. It provides validation and
type safety for every component of the transfer engine.

# Configuration Architecture

Multi-source configuration hierarchy with precedence:

	┌─────────────────────────────────────────────┐
	│        Environment Variables                │ ← Highest Priority
	│           (TRANSFERD_*)                      │
	└─────────────────────────────────────────────┘
	                      │
	┌─────────────────────────────────────────────┐
	│         Configuration Files                 │
	│            (YAML format)                    │
	└─────────────────────────────────────────────┘
	                      │
	┌─────────────────────────────────────────────┐
	│           Default Values                    │ ← Lowest Priority
	│        (Compiled-in defaults)              │
	└─────────────────────────────────────────────┘

# Configuration Structure

Global Settings:
- Logging configuration (level, file, format)
- Service ports (metrics, health, control)

Transfers Settings:
- Worker pool size and hot-queue capacity
- Default conflict policy
- Transfer store path
- Enqueue batch size and status-batch interval

Network Configuration:
- Timeout settings
- Retry policies
- Circuit breaker parameters

Security Configuration:
- TLS settings
- Encryption parameters

Monitoring Configuration:
- Metrics collection settings
- Health check parameters
- Logging configuration

# Usage Examples

Loading configuration:

	// Create with defaults
	cfg := config.NewDefault()

	// Load from file
	if err := cfg.LoadFromFile("/etc/transferd/config.yaml"); err != nil {
		log.Fatal(err)
	}

	// Load environment variables
	if err := cfg.LoadFromEnv(); err != nil {
		log.Fatal(err)
	}

	// Validate final configuration
	if err := cfg.Validate(); err != nil {
		log.Fatal(err)
	}

Configuration file format:

	global:
	  log_level: INFO
	  log_file: "/var/log/transferd.log"
	  metrics_port: 8080
	  health_port: 8081
	  control_port: 8082

	transfers:
	  max_workers: 8
	  hot_queue_capacity: 16
	  default_conflict_policy: "skip"
	  store_path: "/var/lib/transferd/transfers.db"
	  enqueue_batch_size: 100
	  status_batch_interval: 1s
	  feeder_poll_interval: 500ms
	  transfer_buffer_size: "1MB"

Environment variable mapping:

	TRANSFERD_LOG_LEVEL="DEBUG"
	TRANSFERD_LOG_FILE="/var/log/transferd.log"
	TRANSFERD_METRICS_PORT="9090"
	TRANSFERD_CONTROL_PORT="9091"
	TRANSFERD_MAX_WORKERS="16"
	TRANSFERD_HOT_QUEUE_CAPACITY="32"
	TRANSFERD_DEFAULT_CONFLICT_POLICY="rename"
	TRANSFERD_STORE_PATH="/data/transfers.db"

# Validation

Validate checks that MaxWorkers is positive, substitutes HotQueueCapacity
with 2x MaxWorkers when unset, rejects an unrecognized
DefaultConflictPolicy, and rejects colliding metrics/health ports.

# Security Considerations

Credential Management:
- An account entry may carry its secret_access_key in this configuration;
  cmd/transferd loads those secrets into the in-memory credential vault
  of internal/accounts, which is where the resolver reads them from.
- File permission validation (0600 for config files, enforced by SaveToFile).

Path Validation:
- StorePath and LogFile are not traversal-checked here; callers that accept
  these from untrusted input should validate with pkg/pathutil first.

This package provides the foundation for configuration management across
transferd's engine, feeder, executor, and adapter components.
*/
package config
