package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return configPath
}

func TestLoad_ValidConfig(t *testing.T) {
	configPath := writeConfig(t, `
node:
  mode: oneshot
  publish_interval: 60
storage:
  backend: sqlite
  sqlite:
    path: "/tmp/provisioning.db"
network:
  interface: "wlp2s0"
session:
  port: 8884
  protocol: "5"
readings:
  source: simulated
  simulated_nodes: [10, 11]
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Node.Mode != ModeOneShot {
		t.Errorf("Node.Mode = %q, want %q", cfg.Node.Mode, ModeOneShot)
	}
	if cfg.Storage.Backend != StorageBackendSQLite {
		t.Errorf("Storage.Backend = %q, want %q", cfg.Storage.Backend, StorageBackendSQLite)
	}
	if cfg.Storage.SQLite.Path != "/tmp/provisioning.db" {
		t.Errorf("Storage.SQLite.Path = %q, want %q", cfg.Storage.SQLite.Path, "/tmp/provisioning.db")
	}
	if cfg.Network.Interface != "wlp2s0" {
		t.Errorf("Network.Interface = %q, want %q", cfg.Network.Interface, "wlp2s0")
	}
	if cfg.Session.Port != 8884 || cfg.Session.Protocol != ProtocolV5 {
		t.Errorf("Session = %+v, want port 8884 protocol 5", cfg.Session)
	}
	if len(cfg.Readings.SimulatedNodes) != 2 {
		t.Errorf("Readings.SimulatedNodes = %v, want 2 nodes", cfg.Readings.SimulatedNodes)
	}

	// Untouched sections keep their defaults.
	if cfg.Clock.EpochSentinel != 1600000000 {
		t.Errorf("Clock.EpochSentinel = %d, want 1600000000", cfg.Clock.EpochSentinel)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/path/config.yaml")
	if err == nil {
		t.Error("Load() expected error for missing file, got nil")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	configPath := writeConfig(t, "invalid: [yaml: content")

	_, err := Load(configPath)
	if err == nil {
		t.Error("Load() expected error for invalid YAML, got nil")
	}
}

func TestLoad_ValidationFailure(t *testing.T) {
	configPath := writeConfig(t, `
storage:
  backend: "eeprom"
`)

	_, err := Load(configPath)
	if err == nil {
		t.Error("Load() expected validation error for unknown storage backend, got nil")
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{
			name:    "defaults are valid",
			mutate:  func(*Config) {},
			wantErr: false,
		},
		{
			name:    "unknown mode",
			mutate:  func(c *Config) { c.Node.Mode = "deep-sleep" },
			wantErr: true,
		},
		{
			name:    "zero publish interval",
			mutate:  func(c *Config) { c.Node.PublishInterval = 0 },
			wantErr: true,
		},
		{
			name:    "missing storage dir",
			mutate:  func(c *Config) { c.Storage.Dir.Path = "" },
			wantErr: true,
		},
		{
			name: "sqlite backend without path",
			mutate: func(c *Config) {
				c.Storage.Backend = StorageBackendSQLite
				c.Storage.SQLite.Path = ""
			},
			wantErr: true,
		},
		{
			name:    "missing interface",
			mutate:  func(c *Config) { c.Network.Interface = "" },
			wantErr: true,
		},
		{
			name:    "no ntp servers",
			mutate:  func(c *Config) { c.Clock.Servers = nil },
			wantErr: true,
		},
		{
			name:    "port high",
			mutate:  func(c *Config) { c.Session.Port = 70000 },
			wantErr: true,
		},
		{
			name:    "unknown protocol",
			mutate:  func(c *Config) { c.Session.Protocol = "3.1" },
			wantErr: true,
		},
		{
			name:    "simulator without nodes",
			mutate:  func(c *Config) { c.Readings.Source = ReadingsSourceSimulated },
			wantErr: true,
		},
		{
			name:    "influxdb enabled without url",
			mutate:  func(c *Config) { c.InfluxDB.Enabled = true },
			wantErr: true,
		},
		{
			name: "api enabled without timeout",
			mutate: func(c *Config) {
				c.API.Enabled = true
				c.API.Timeout = 0
			},
			wantErr: true,
		},
		{
			name:    "api enabled with defaults",
			mutate:  func(c *Config) { c.API.Enabled = true },
			wantErr: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestConfig_Durations(t *testing.T) {
	cfg := defaultConfig()

	if got := cfg.AssociateTimeout(); got != 15*time.Second {
		t.Errorf("AssociateTimeout() = %v, want 15s", got)
	}
	if got := cfg.StatusPollInterval(); got != 200*time.Millisecond {
		t.Errorf("StatusPollInterval() = %v, want 200ms", got)
	}
	if got := cfg.SyncTimeout(); got != 8*time.Second {
		t.Errorf("SyncTimeout() = %v, want 8s", got)
	}
	if got := cfg.PublishInterval(); got != 30*time.Second {
		t.Errorf("PublishInterval() = %v, want 30s", got)
	}
	if got := cfg.PollInterval(); got != 100*time.Millisecond {
		t.Errorf("PollInterval() = %v, want 100ms", got)
	}
	if got := cfg.ReconnectInterval(); got != 5*time.Second {
		t.Errorf("ReconnectInterval() = %v, want 5s", got)
	}
	if got := cfg.QueryTimeout(); got != 2*time.Second {
		t.Errorf("QueryTimeout() = %v, want 2s", got)
	}
	if got := cfg.KeepAlive(); got != time.Minute {
		t.Errorf("KeepAlive() = %v, want 1m", got)
	}
	if got := cfg.ConnectTimeout(); got != 10*time.Second {
		t.Errorf("ConnectTimeout() = %v, want 10s", got)
	}
	if got := cfg.PublishTimeout(); got != 5*time.Second {
		t.Errorf("PublishTimeout() = %v, want 5s", got)
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	cfg := defaultConfig()

	t.Setenv("SENSORNODE_STORAGE_DIR", "/mnt/flash")
	t.Setenv("SENSORNODE_STORAGE_SQLITE_PATH", "/mnt/flash/blobs.db")
	t.Setenv("SENSORNODE_NETWORK_INTERFACE", "wlan1")
	t.Setenv("SENSORNODE_INFLUXDB_TOKEN", "secret-token")
	t.Setenv("SENSORNODE_LOG_LEVEL", "debug")
	t.Setenv("SENSORNODE_API_ENABLED", "true")

	applyEnvOverrides(cfg)

	if !cfg.API.Enabled {
		t.Error("API.Enabled = false, want true")
	}

	if cfg.Storage.Dir.Path != "/mnt/flash" {
		t.Errorf("Storage.Dir.Path = %q, want %q", cfg.Storage.Dir.Path, "/mnt/flash")
	}
	if cfg.Storage.SQLite.Path != "/mnt/flash/blobs.db" {
		t.Errorf("Storage.SQLite.Path = %q, want %q", cfg.Storage.SQLite.Path, "/mnt/flash/blobs.db")
	}
	if cfg.Network.Interface != "wlan1" {
		t.Errorf("Network.Interface = %q, want %q", cfg.Network.Interface, "wlan1")
	}
	if cfg.InfluxDB.Token != "secret-token" {
		t.Errorf("InfluxDB.Token = %q, want %q", cfg.InfluxDB.Token, "secret-token")
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q, want %q", cfg.Logging.Level, "debug")
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := Default()

	if cfg.Session.Port != 8883 {
		t.Errorf("default Session.Port = %d, want 8883", cfg.Session.Port)
	}
	if cfg.Storage.Dir.CAFile != "AmazonRootCA1.pem" {
		t.Errorf("default Storage.Dir.CAFile = %q, want AmazonRootCA1.pem", cfg.Storage.Dir.CAFile)
	}
	if len(cfg.Clock.Servers) != 2 {
		t.Errorf("default Clock.Servers = %v, want two servers", cfg.Clock.Servers)
	}
}
