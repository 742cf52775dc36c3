package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for the sensor node.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Node     NodeConfig     `yaml:"node"`
	Storage  StorageConfig  `yaml:"storage"`
	Network  NetworkConfig  `yaml:"network"`
	Clock    ClockConfig    `yaml:"clock"`
	Session  SessionConfig  `yaml:"session"`
	Readings ReadingsConfig `yaml:"readings"`
	InfluxDB InfluxDBConfig `yaml:"influxdb"`
	API      APIConfig      `yaml:"api"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// NodeConfig controls the control loop schedule.
type NodeConfig struct {
	// Mode is "continuous" (publish until shutdown) or "oneshot"
	// (publish one batch, then power the radio down and exit).
	Mode string `yaml:"mode"`

	// PublishInterval is the time between batches (seconds).
	PublishInterval int `yaml:"publish_interval"`

	// PollInterval is how often the session is serviced (milliseconds).
	PollInterval int `yaml:"poll_interval"`

	// ReconnectInterval is the minimum spacing between connect attempts (seconds).
	ReconnectInterval int `yaml:"reconnect_interval"`
}

// StorageConfig selects where provisioning artifacts are read from.
type StorageConfig struct {
	// Backend is "dir" or "sqlite".
	Backend string           `yaml:"backend"`
	Dir     DirStorageConfig `yaml:"dir"`
	SQLite  SQLiteConfig     `yaml:"sqlite"`
}

// DirStorageConfig maps provisioning blobs onto files in a directory.
type DirStorageConfig struct {
	Path         string `yaml:"path"`
	MetadataFile string `yaml:"metadata_file"`
	CAFile       string `yaml:"ca_file"`
	CertFile     string `yaml:"cert_file"`
	KeyFile      string `yaml:"key_file"`
}

// SQLiteConfig locates the SQLite provisioning image.
type SQLiteConfig struct {
	Path        string `yaml:"path"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// NetworkConfig contains WiFi station settings.
type NetworkConfig struct {
	Interface          string `yaml:"interface"`
	NMCLIBinary        string `yaml:"nmcli_binary"`
	RFKillBinary       string `yaml:"rfkill_binary"`
	DisableBluetooth   bool   `yaml:"disable_bluetooth"`
	AssociateTimeout   int    `yaml:"associate_timeout"` // milliseconds
	StatusPollInterval int    `yaml:"status_poll_interval"`
}

// ClockConfig contains network time settings.
type ClockConfig struct {
	Servers       []string `yaml:"servers"`
	SyncTimeout   int      `yaml:"sync_timeout"` // milliseconds
	QueryTimeout  int      `yaml:"query_timeout"`
	EpochSentinel int64    `yaml:"epoch_sentinel"`
}

// SessionConfig contains broker session settings. The endpoint, topic and
// identity come from the provisioning metadata, not from this file.
type SessionConfig struct {
	Port int `yaml:"port"`

	// Protocol is "3.1.1" or "5".
	Protocol       string `yaml:"protocol"`
	KeepAlive      int    `yaml:"keep_alive"`
	ConnectTimeout int    `yaml:"connect_timeout"`
	PublishTimeout int    `yaml:"publish_timeout"`
}

// ReadingsConfig selects where reading batches come from.
type ReadingsConfig struct {
	// Source is "spool" or "simulated".
	Source    string `yaml:"source"`
	SpoolPath string `yaml:"spool_path"`

	// SimulatedNodes lists the node IDs produced by the simulator.
	SimulatedNodes []int `yaml:"simulated_nodes"`
}

// InfluxDBConfig contains InfluxDB connection settings for the telemetry mirror.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// APIConfig contains the local diagnostics HTTP server settings.
type APIConfig struct {
	Enabled bool   `yaml:"enabled"`
	Host    string `yaml:"host"`
	Port    int    `yaml:"port"`
	Timeout int    `yaml:"timeout"` // seconds
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: SENSORNODE_SECTION_KEY
// For example: SENSORNODE_STORAGE_DIR, SENSORNODE_INFLUXDB_TOKEN
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// Default returns the built-in configuration. Used by tests and by
// deployments that ship no config file.
func Default() *Config {
	return defaultConfig()
}

func defaultConfig() *Config {
	return &Config{
		Node: NodeConfig{
			Mode:              ModeContinuous,
			PublishInterval:   30,
			PollInterval:      100,
			ReconnectInterval: 5,
		},
		Storage: StorageConfig{
			Backend: StorageBackendDir,
			Dir: DirStorageConfig{
				Path:         "/data/provisioning",
				MetadataFile: "metadata.json",
				CAFile:       "AmazonRootCA1.pem",
				CertFile:     "certificate.pem",
				KeyFile:      "private.key",
			},
			SQLite: SQLiteConfig{
				Path:        "/data/provisioning.db",
				BusyTimeout: 5,
			},
		},
		Network: NetworkConfig{
			Interface:          "wlan0",
			NMCLIBinary:        "nmcli",
			RFKillBinary:       "rfkill",
			DisableBluetooth:   true,
			AssociateTimeout:   15000,
			StatusPollInterval: 200,
		},
		Clock: ClockConfig{
			Servers:       []string{"pool.ntp.org", "time.nist.gov"},
			SyncTimeout:   8000,
			QueryTimeout:  2000,
			EpochSentinel: 1600000000,
		},
		Session: SessionConfig{
			Port:           8883,
			Protocol:       ProtocolV311,
			KeepAlive:      60,
			ConnectTimeout: 10,
			PublishTimeout: 5,
		},
		Readings: ReadingsConfig{
			Source:    ReadingsSourceSpool,
			SpoolPath: "/run/sensornode/readings.json",
		},
		InfluxDB: InfluxDBConfig{
			BatchSize:     100,
			FlushInterval: 10,
		},
		API: APIConfig{
			Host:    "127.0.0.1",
			Port:    8080,
			Timeout: 5,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// Accepted enumeration values.
const (
	ModeContinuous = "continuous"
	ModeOneShot    = "oneshot"

	StorageBackendDir    = "dir"
	StorageBackendSQLite = "sqlite"

	ProtocolV311 = "3.1.1"
	ProtocolV5   = "5"

	ReadingsSourceSpool     = "spool"
	ReadingsSourceSimulated = "simulated"
)

// applyEnvOverrides applies environment variable overrides to the configuration.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("SENSORNODE_STORAGE_DIR"); v != "" {
		cfg.Storage.Dir.Path = v
	}
	if v := os.Getenv("SENSORNODE_STORAGE_SQLITE_PATH"); v != "" {
		cfg.Storage.SQLite.Path = v
	}
	if v := os.Getenv("SENSORNODE_NETWORK_INTERFACE"); v != "" {
		cfg.Network.Interface = v
	}
	if v := os.Getenv("SENSORNODE_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}
	if v := os.Getenv("SENSORNODE_API_ENABLED"); v != "" {
		cfg.API.Enabled = v == "true" || v == "1"
	}
	if v := os.Getenv("SENSORNODE_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []string

	switch c.Node.Mode {
	case ModeContinuous, ModeOneShot:
	default:
		errs = append(errs, "node.mode must be continuous or oneshot")
	}
	if c.Node.PublishInterval < 1 {
		errs = append(errs, "node.publish_interval must be at least 1 second")
	}
	if c.Node.PollInterval < 1 {
		errs = append(errs, "node.poll_interval must be positive")
	}

	switch c.Storage.Backend {
	case StorageBackendDir:
		if c.Storage.Dir.Path == "" {
			errs = append(errs, "storage.dir.path is required")
		}
	case StorageBackendSQLite:
		if c.Storage.SQLite.Path == "" {
			errs = append(errs, "storage.sqlite.path is required")
		}
	default:
		errs = append(errs, "storage.backend must be dir or sqlite")
	}

	if c.Network.Interface == "" {
		errs = append(errs, "network.interface is required")
	}
	if c.Network.AssociateTimeout < 1 {
		errs = append(errs, "network.associate_timeout must be positive")
	}
	if c.Network.StatusPollInterval < 1 {
		errs = append(errs, "network.status_poll_interval must be positive")
	}

	if len(c.Clock.Servers) == 0 {
		errs = append(errs, "clock.servers must list at least one server")
	}
	if c.Clock.SyncTimeout < 1 {
		errs = append(errs, "clock.sync_timeout must be positive")
	}

	if c.Session.Port < 1 || c.Session.Port > 65535 {
		errs = append(errs, "session.port must be between 1 and 65535")
	}
	switch c.Session.Protocol {
	case ProtocolV311, ProtocolV5:
	default:
		errs = append(errs, "session.protocol must be 3.1.1 or 5")
	}

	switch c.Readings.Source {
	case ReadingsSourceSpool:
		if c.Readings.SpoolPath == "" {
			errs = append(errs, "readings.spool_path is required")
		}
	case ReadingsSourceSimulated:
		if len(c.Readings.SimulatedNodes) == 0 {
			errs = append(errs, "readings.simulated_nodes must list at least one node")
		}
	default:
		errs = append(errs, "readings.source must be spool or simulated")
	}

	if c.InfluxDB.Enabled && (c.InfluxDB.URL == "" || c.InfluxDB.Bucket == "") {
		errs = append(errs, "influxdb.url and influxdb.bucket are required when enabled")
	}

	if c.API.Enabled {
		if c.API.Port < 0 || c.API.Port > 65535 {
			errs = append(errs, "api.port must be between 0 and 65535")
		}
		if c.API.Timeout < 1 {
			errs = append(errs, "api.timeout must be positive")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// AssociateTimeout returns the WiFi association timeout as a Duration.
func (c *Config) AssociateTimeout() time.Duration {
	return time.Duration(c.Network.AssociateTimeout) * time.Millisecond
}

// StatusPollInterval returns the association status polling interval.
func (c *Config) StatusPollInterval() time.Duration {
	return time.Duration(c.Network.StatusPollInterval) * time.Millisecond
}

// SyncTimeout returns the clock synchronisation timeout as a Duration.
func (c *Config) SyncTimeout() time.Duration {
	return time.Duration(c.Clock.SyncTimeout) * time.Millisecond
}

// PublishInterval returns the batch publish interval as a Duration.
func (c *Config) PublishInterval() time.Duration {
	return time.Duration(c.Node.PublishInterval) * time.Second
}

// PollInterval returns the session service interval as a Duration.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Node.PollInterval) * time.Millisecond
}

// ReconnectInterval returns the minimum spacing between connect attempts.
func (c *Config) ReconnectInterval() time.Duration {
	return time.Duration(c.Node.ReconnectInterval) * time.Second
}

// QueryTimeout returns the per-server NTP query timeout.
func (c *Config) QueryTimeout() time.Duration {
	return time.Duration(c.Clock.QueryTimeout) * time.Millisecond
}

// KeepAlive returns the MQTT keepalive interval.
func (c *Config) KeepAlive() time.Duration {
	return time.Duration(c.Session.KeepAlive) * time.Second
}

// ConnectTimeout returns the broker connect timeout.
func (c *Config) ConnectTimeout() time.Duration {
	return time.Duration(c.Session.ConnectTimeout) * time.Second
}

// PublishTimeout returns the per-message publish timeout.
func (c *Config) PublishTimeout() time.Duration {
	return time.Duration(c.Session.PublishTimeout) * time.Second
}
