package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v2"

	"github.com/transferd/transferd/pkg/types"
)

// Configuration represents the complete application configuration.
type Configuration struct {
	Global     GlobalConfig     `yaml:"global"`
	Transfers  TransfersConfig  `yaml:"transfers"`
	Network    NetworkConfig    `yaml:"network"`
	Security   SecurityConfig   `yaml:"security"`
	Monitoring MonitoringConfig `yaml:"monitoring"`
	Accounts   []AccountConfig  `yaml:"accounts"`
}

// AccountConfig is one statically-configured storage destination: the
// YAML-file rendition of spec §6's settings-store record, since
// internal/accounts' AccountStore/CredentialVault are named
// collaborators rather than a persistence layer in their own right.
// SecretAccessKey is read straight from the config file; a production
// deployment would source it from the environment or a real secrets
// manager instead, which is exactly why CredentialVault is its own
// interface.
type AccountConfig struct {
	Kind            string `yaml:"kind"`
	Root            string `yaml:"root"`
	Region          string `yaml:"region"`
	Endpoint        string `yaml:"endpoint"`
	AccessKey       string `yaml:"access_key"`
	SecretAccessKey string `yaml:"secret_access_key"`
	Nickname        string `yaml:"nickname"`
}

// GlobalConfig represents global application settings.
type GlobalConfig struct {
	LogLevel    string `yaml:"log_level"`
	LogFile     string `yaml:"log_file"`
	MetricsPort int    `yaml:"metrics_port"`
	HealthPort  int    `yaml:"health_port"`
	ControlPort int    `yaml:"control_port"`
}

// TransfersConfig governs the queue feeder, worker pool, and store (§5-§7
// of the transfer engine's component design).
type TransfersConfig struct {
	// MaxWorkers is the size of the executor's worker pool (C5).
	MaxWorkers int `yaml:"max_workers"`

	// HotQueueCapacity bounds the feeder's in-memory priority queue (C4).
	// Defaults to 2x MaxWorkers when zero.
	HotQueueCapacity int `yaml:"hot_queue_capacity"`

	// DefaultConflictPolicy is applied to items enqueued without an
	// explicit policy.
	DefaultConflictPolicy string `yaml:"default_conflict_policy"`

	// StorePath is the sqlite database file backing the transfer store (C3).
	StorePath string `yaml:"store_path"`

	// EnqueueBatchSize is parsed and checked by Validate only; the enqueue
	// pipeline (C6) takes its batch size from each enqueue request
	// instead, defaulting to 100 rows per transaction.
	EnqueueBatchSize int `yaml:"enqueue_batch_size"`

	// StatusBatchInterval controls how often the status batcher flushes
	// coalesced state transitions to the store (C7).
	StatusBatchInterval time.Duration `yaml:"status_batch_interval"`

	// FeederPollInterval controls how often the feeder checks for PENDING
	// rows to promote when the hot queue is not already full.
	FeederPollInterval time.Duration `yaml:"feeder_poll_interval"`

	// TransferBufferSize is loaded from the file but not passed to the
	// streaming bridge (C2); the bridge uses its own default buffer size
	// between a source adapter's Download and a destination adapter's
	// Upload Sink.
	TransferBufferSize string `yaml:"transfer_buffer_size"`

	// StaleRowRetention bounds how long a COMPLETED/ERROR row survives
	// before the engine's maintenance job drops it. Zero disables
	// housekeeping entirely.
	StaleRowRetention time.Duration `yaml:"stale_row_retention"`

	// MaintenanceSchedule is a standard 5-field cron expression
	// governing how often the housekeeping job runs.
	MaintenanceSchedule string `yaml:"maintenance_schedule"`
}

// NetworkConfig represents network configuration, unchanged from the
// teacher: the S3 adapter still needs timeouts, retry, and circuit breaker
// tuning.
type NetworkConfig struct {
	Timeouts       TimeoutConfig        `yaml:"timeouts"`
	Retry          RetryConfig          `yaml:"retry"`
	CircuitBreaker CircuitBreakerConfig `yaml:"circuit_breaker"`
}

// TimeoutConfig represents timeout settings.
type TimeoutConfig struct {
	Connect time.Duration `yaml:"connect"`
	Read    time.Duration `yaml:"read"`
	Write   time.Duration `yaml:"write"`
}

// RetryConfig represents retry settings.
type RetryConfig struct {
	MaxAttempts int           `yaml:"max_attempts"`
	BaseDelay   time.Duration `yaml:"base_delay"`
	MaxDelay    time.Duration `yaml:"max_delay"`
}

// CircuitBreakerConfig represents circuit breaker settings.
type CircuitBreakerConfig struct {
	Enabled          bool          `yaml:"enabled"`
	FailureThreshold int           `yaml:"failure_threshold"`
	Timeout          time.Duration `yaml:"timeout"`
}

// SecurityConfig represents security settings.
type SecurityConfig struct {
	TLS        TLSConfig        `yaml:"tls"`
	Encryption EncryptionConfig `yaml:"encryption"`
}

// TLSConfig represents TLS settings.
type TLSConfig struct {
	VerifyCertificates bool   `yaml:"verify_certificates"`
	MinVersion         string `yaml:"min_version"`
}

// EncryptionConfig represents encryption settings.
type EncryptionConfig struct {
	InTransit bool `yaml:"in_transit"`
	AtRest    bool `yaml:"at_rest"`
}

// MonitoringConfig represents monitoring settings.
type MonitoringConfig struct {
	Metrics      MetricsConfig      `yaml:"metrics"`
	HealthChecks HealthChecksConfig `yaml:"health_checks"`
	Logging      LoggingConfig      `yaml:"logging"`
}

// MetricsConfig represents metrics settings.
type MetricsConfig struct {
	Enabled      bool              `yaml:"enabled"`
	Prometheus   bool              `yaml:"prometheus"`
	CustomLabels map[string]string `yaml:"custom_labels"`
}

// HealthChecksConfig represents health check settings.
type HealthChecksConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Interval time.Duration `yaml:"interval"`
	Timeout  time.Duration `yaml:"timeout"`
}

// LoggingConfig represents logging settings.
type LoggingConfig struct {
	Structured bool           `yaml:"structured"`
	Format     string         `yaml:"format"`
	Sampling   SamplingConfig `yaml:"sampling"`
}

// SamplingConfig represents log sampling settings.
type SamplingConfig struct {
	Enabled bool `yaml:"enabled"`
	Rate    int  `yaml:"rate"`
}

// NewDefault returns a configuration with sensible defaults.
func NewDefault() *Configuration {
	return &Configuration{
		Global: GlobalConfig{
			LogLevel:    "INFO",
			LogFile:     "",
			MetricsPort: 8080,
			HealthPort:  8081,
			ControlPort: 8082,
		},
		Transfers: TransfersConfig{
			MaxWorkers:            8,
			HotQueueCapacity:      16,
			DefaultConflictPolicy: string(types.PolicySkip),
			StorePath:             "/var/lib/transferd/transfers.db",
			EnqueueBatchSize:      100,
			StatusBatchInterval:   1 * time.Second,
			FeederPollInterval:    500 * time.Millisecond,
			TransferBufferSize:    "1MB",
			StaleRowRetention:     7 * 24 * time.Hour,
			MaintenanceSchedule:   "0 3 * * *",
		},
		Network: NetworkConfig{
			Timeouts: TimeoutConfig{
				Connect: 10 * time.Second,
				Read:    30 * time.Second,
				Write:   300 * time.Second,
			},
			Retry: RetryConfig{
				MaxAttempts: 3,
				BaseDelay:   1 * time.Second,
				MaxDelay:    30 * time.Second,
			},
			CircuitBreaker: CircuitBreakerConfig{
				Enabled:          true,
				FailureThreshold: 5,
				Timeout:          60 * time.Second,
			},
		},
		Security: SecurityConfig{
			TLS: TLSConfig{
				VerifyCertificates: true,
				MinVersion:         "1.2",
			},
			Encryption: EncryptionConfig{
				InTransit: true,
				AtRest:    false,
			},
		},
		Monitoring: MonitoringConfig{
			Metrics: MetricsConfig{
				Enabled:    true,
				Prometheus: true,
				CustomLabels: map[string]string{
					"service": "transferd",
				},
			},
			HealthChecks: HealthChecksConfig{
				Enabled:  true,
				Interval: 30 * time.Second,
				Timeout:  5 * time.Second,
			},
			Logging: LoggingConfig{
				Structured: true,
				Format:     "json",
				Sampling: SamplingConfig{
					Enabled: true,
					Rate:    1000,
				},
			},
		},
	}
}

// LoadFromFile loads configuration from a YAML file.
func (c *Configuration) LoadFromFile(filename string) error {
	data, err := os.ReadFile(filename)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

// LoadFromEnv loads configuration from environment variables, overriding
// whatever was set by LoadFromFile or NewDefault.
func (c *Configuration) LoadFromEnv() error {
	if val := os.Getenv("TRANSFERD_LOG_LEVEL"); val != "" {
		c.Global.LogLevel = val
	}
	if val := os.Getenv("TRANSFERD_LOG_FILE"); val != "" {
		c.Global.LogFile = val
	}
	if val := os.Getenv("TRANSFERD_METRICS_PORT"); val != "" {
		if port, err := strconv.Atoi(val); err == nil {
			c.Global.MetricsPort = port
		}
	}
	if val := os.Getenv("TRANSFERD_CONTROL_PORT"); val != "" {
		if port, err := strconv.Atoi(val); err == nil {
			c.Global.ControlPort = port
		}
	}

	if val := os.Getenv("TRANSFERD_MAX_WORKERS"); val != "" {
		if workers, err := strconv.Atoi(val); err == nil {
			c.Transfers.MaxWorkers = workers
		}
	}
	if val := os.Getenv("TRANSFERD_HOT_QUEUE_CAPACITY"); val != "" {
		if capacity, err := strconv.Atoi(val); err == nil {
			c.Transfers.HotQueueCapacity = capacity
		}
	}
	if val := os.Getenv("TRANSFERD_DEFAULT_CONFLICT_POLICY"); val != "" {
		c.Transfers.DefaultConflictPolicy = val
	}
	if val := os.Getenv("TRANSFERD_STORE_PATH"); val != "" {
		c.Transfers.StorePath = val
	}

	return nil
}

// SaveToFile saves the configuration to a YAML file.
func (c *Configuration) SaveToFile(filename string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(filename), 0750); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(filename, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate validates the configuration.
func (c *Configuration) Validate() error {
	if c.Transfers.MaxWorkers <= 0 {
		return fmt.Errorf("max_workers must be greater than 0")
	}

	if c.Transfers.HotQueueCapacity <= 0 {
		c.Transfers.HotQueueCapacity = c.Transfers.MaxWorkers * 2
	}

	if c.Transfers.EnqueueBatchSize <= 0 {
		return fmt.Errorf("enqueue_batch_size must be greater than 0")
	}

	if !types.ConflictPolicy(c.Transfers.DefaultConflictPolicy).Valid() {
		return fmt.Errorf("invalid default_conflict_policy: %s", c.Transfers.DefaultConflictPolicy)
	}

	if c.Global.MetricsPort == c.Global.HealthPort {
		return fmt.Errorf("metrics_port and health_port cannot be the same")
	}

	validLogLevels := []string{"TRACE", "DEBUG", "INFO", "WARN", "ERROR", "FATAL"}
	logLevelValid := false
	for _, level := range validLogLevels {
		if c.Global.LogLevel == level {
			logLevelValid = true
			break
		}
	}
	if !logLevelValid {
		return fmt.Errorf("invalid log_level: %s (must be one of: %s)",
			c.Global.LogLevel, strings.Join(validLogLevels, ", "))
	}

	return nil
}
