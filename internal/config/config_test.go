package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/transferd/transferd/pkg/types"
)

const testDebugLevel = "DEBUG"

func TestNewDefault(t *testing.T) {
	cfg := NewDefault()

	if cfg.Global.LogLevel != "INFO" {
		t.Errorf("Expected LogLevel to be INFO, got %s", cfg.Global.LogLevel)
	}
	if cfg.Global.MetricsPort != 8080 {
		t.Errorf("Expected MetricsPort to be 8080, got %d", cfg.Global.MetricsPort)
	}
	if cfg.Global.HealthPort != 8081 {
		t.Errorf("Expected HealthPort to be 8081, got %d", cfg.Global.HealthPort)
	}

	if cfg.Transfers.MaxWorkers != 8 {
		t.Errorf("Expected MaxWorkers to be 8, got %d", cfg.Transfers.MaxWorkers)
	}
	if cfg.Transfers.HotQueueCapacity != 16 {
		t.Errorf("Expected HotQueueCapacity to be 16, got %d", cfg.Transfers.HotQueueCapacity)
	}
	if cfg.Transfers.DefaultConflictPolicy != string(types.PolicySkip) {
		t.Errorf("Expected DefaultConflictPolicy to be skip, got %s", cfg.Transfers.DefaultConflictPolicy)
	}
	if cfg.Transfers.EnqueueBatchSize != 100 {
		t.Errorf("Expected EnqueueBatchSize to be 100, got %d", cfg.Transfers.EnqueueBatchSize)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		config  func() *Configuration
		wantErr bool
		errMsg  string
	}{
		{
			name: "valid config",
			config: func() *Configuration {
				return NewDefault()
			},
			wantErr: false,
		},
		{
			name: "invalid max workers",
			config: func() *Configuration {
				cfg := NewDefault()
				cfg.Transfers.MaxWorkers = 0
				return cfg
			},
			wantErr: true,
			errMsg:  "max_workers must be greater than 0",
		},
		{
			name: "zero hot queue capacity defaults to 2x workers",
			config: func() *Configuration {
				cfg := NewDefault()
				cfg.Transfers.HotQueueCapacity = 0
				return cfg
			},
			wantErr: false,
		},
		{
			name: "invalid conflict policy",
			config: func() *Configuration {
				cfg := NewDefault()
				cfg.Transfers.DefaultConflictPolicy = "bogus"
				return cfg
			},
			wantErr: true,
			errMsg:  "invalid default_conflict_policy",
		},
		{
			name: "same metrics and health ports",
			config: func() *Configuration {
				cfg := NewDefault()
				cfg.Global.MetricsPort = 8080
				cfg.Global.HealthPort = 8080
				return cfg
			},
			wantErr: true,
			errMsg:  "metrics_port and health_port cannot be the same",
		},
		{
			name: "invalid log level",
			config: func() *Configuration {
				cfg := NewDefault()
				cfg.Global.LogLevel = "INVALID"
				return cfg
			},
			wantErr: true,
			errMsg:  "invalid log_level",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := tt.config()
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if err != nil && tt.errMsg != "" && !contains(err.Error(), tt.errMsg) {
				t.Errorf("Validate() error = %v, want error containing %v", err, tt.errMsg)
			}
		})
	}

	t.Run("zero hot queue capacity is repaired", func(t *testing.T) {
		cfg := NewDefault()
		cfg.Transfers.MaxWorkers = 6
		cfg.Transfers.HotQueueCapacity = 0
		if err := cfg.Validate(); err != nil {
			t.Fatalf("Validate() error = %v", err)
		}
		if cfg.Transfers.HotQueueCapacity != 12 {
			t.Errorf("Expected HotQueueCapacity repaired to 12, got %d", cfg.Transfers.HotQueueCapacity)
		}
	})
}

func TestLoadFromFile(t *testing.T) {
	tmpDir := t.TempDir()
	configFile := filepath.Join(tmpDir, "config.yaml")

	configContent := `
global:
  log_level: DEBUG
  metrics_port: 9090
  health_port: 9091

transfers:
  max_workers: 16
  hot_queue_capacity: 32
  default_conflict_policy: "rename"
`

	if err := os.WriteFile(configFile, []byte(configContent), 0600); err != nil {
		t.Fatalf("Failed to write test config file: %v", err)
	}

	cfg := NewDefault()
	if err := cfg.LoadFromFile(configFile); err != nil {
		t.Fatalf("LoadFromFile() error = %v", err)
	}

	if cfg.Global.LogLevel != testDebugLevel {
		t.Errorf("Expected LogLevel to be DEBUG, got %s", cfg.Global.LogLevel)
	}
	if cfg.Global.MetricsPort != 9090 {
		t.Errorf("Expected MetricsPort to be 9090, got %d", cfg.Global.MetricsPort)
	}
	if cfg.Transfers.MaxWorkers != 16 {
		t.Errorf("Expected MaxWorkers to be 16, got %d", cfg.Transfers.MaxWorkers)
	}
	if cfg.Transfers.DefaultConflictPolicy != "rename" {
		t.Errorf("Expected DefaultConflictPolicy to be rename, got %s", cfg.Transfers.DefaultConflictPolicy)
	}
}

func TestLoadFromFileNonExistent(t *testing.T) {
	cfg := NewDefault()
	if err := cfg.LoadFromFile("/nonexistent/config.yaml"); err == nil {
		t.Error("Expected error when loading non-existent config file")
	}
}

func TestLoadFromEnv(t *testing.T) {
	testEnvVars := map[string]string{
		"TRANSFERD_LOG_LEVEL":              "ERROR",
		"TRANSFERD_METRICS_PORT":           "9090",
		"TRANSFERD_MAX_WORKERS":            "24",
		"TRANSFERD_HOT_QUEUE_CAPACITY":     "48",
		"TRANSFERD_DEFAULT_CONFLICT_POLICY": "hash",
		"TRANSFERD_STORE_PATH":             "/data/transfers.db",
	}

	for key, value := range testEnvVars {
		t.Setenv(key, value)
	}

	cfg := NewDefault()
	if err := cfg.LoadFromEnv(); err != nil {
		t.Fatalf("LoadFromEnv() error = %v", err)
	}

	if cfg.Global.LogLevel != "ERROR" {
		t.Errorf("Expected LogLevel to be ERROR, got %s", cfg.Global.LogLevel)
	}
	if cfg.Global.MetricsPort != 9090 {
		t.Errorf("Expected MetricsPort to be 9090, got %d", cfg.Global.MetricsPort)
	}
	if cfg.Transfers.MaxWorkers != 24 {
		t.Errorf("Expected MaxWorkers to be 24, got %d", cfg.Transfers.MaxWorkers)
	}
	if cfg.Transfers.HotQueueCapacity != 48 {
		t.Errorf("Expected HotQueueCapacity to be 48, got %d", cfg.Transfers.HotQueueCapacity)
	}
	if cfg.Transfers.DefaultConflictPolicy != "hash" {
		t.Errorf("Expected DefaultConflictPolicy to be hash, got %s", cfg.Transfers.DefaultConflictPolicy)
	}
	if cfg.Transfers.StorePath != "/data/transfers.db" {
		t.Errorf("Expected StorePath to be /data/transfers.db, got %s", cfg.Transfers.StorePath)
	}
}

func TestSaveToFile(t *testing.T) {
	tmpDir := t.TempDir()
	configFile := filepath.Join(tmpDir, "saved_config.yaml")

	cfg := NewDefault()
	cfg.Global.LogLevel = testDebugLevel
	cfg.Transfers.MaxWorkers = 32

	if err := cfg.SaveToFile(configFile); err != nil {
		t.Fatalf("SaveToFile() error = %v", err)
	}

	if _, err := os.Stat(configFile); os.IsNotExist(err) {
		t.Error("Config file was not created")
	}

	newCfg := NewDefault()
	if err := newCfg.LoadFromFile(configFile); err != nil {
		t.Fatalf("Failed to load saved config: %v", err)
	}

	if newCfg.Global.LogLevel != testDebugLevel {
		t.Errorf("Expected LogLevel to be DEBUG, got %s", newCfg.Global.LogLevel)
	}
	if newCfg.Transfers.MaxWorkers != 32 {
		t.Errorf("Expected MaxWorkers to be 32, got %d", newCfg.Transfers.MaxWorkers)
	}
}

func TestSaveToFileCreateDirectory(t *testing.T) {
	tmpDir := t.TempDir()
	configFile := filepath.Join(tmpDir, "subdir", "config.yaml")

	cfg := NewDefault()
	if err := cfg.SaveToFile(configFile); err != nil {
		t.Fatalf("SaveToFile() error = %v", err)
	}

	if _, err := os.Stat(configFile); os.IsNotExist(err) {
		t.Error("Config file was not created")
	}

	if _, err := os.Stat(filepath.Dir(configFile)); os.IsNotExist(err) {
		t.Error("Config directory was not created")
	}
}

func contains(s, substr string) bool {
	return len(s) >= len(substr) && indexOf(s, substr) >= 0
}

func indexOf(s, substr string) int {
	for i := 0; i <= len(s)-len(substr); i++ {
		if s[i:i+len(substr)] == substr {
			return i
		}
	}
	return -1
}
