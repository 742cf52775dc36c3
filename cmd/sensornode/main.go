// Gray Logic Sensor Node - humidity telemetry uplink
//
// This is the main entry point for the sensor node firmware. On power-up it
// loads the provisioned credentials, joins WiFi, synchronises the clock and
// publishes humidity batches to the cloud broker over mutually
// authenticated TLS.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/nerrad567/gray-logic-sensornode/internal/api"
	"github.com/nerrad567/gray-logic-sensornode/internal/credentials"
	"github.com/nerrad567/gray-logic-sensornode/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-sensornode/internal/infrastructure/influxdb"
	"github.com/nerrad567/gray-logic-sensornode/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-sensornode/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-sensornode/internal/network"
	"github.com/nerrad567/gray-logic-sensornode/internal/node"
	"github.com/nerrad567/gray-logic-sensornode/internal/readings"
	"github.com/nerrad567/gray-logic-sensornode/internal/session"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// Default configuration file path
const defaultConfigPath = "/etc/sensornode/config.yaml"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
func run(ctx context.Context) error {
	log := logging.Default()
	log.Info("starting sensor node",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	log, bootID := logging.New(cfg.Logging, version).WithBootID()
	log.Info("configuration loaded", "path", configPath, "boot_id", bootID)

	store, closeStore := openStore(cfg)
	defer closeStore()
	store.SetLogger(log.With("component", "credentials"))

	netLog := log.With("component", "network")
	clock := network.NewNTPClock(network.NTPClockConfig{
		Servers:      cfg.Clock.Servers,
		QueryTimeout: cfg.QueryTimeout(),
		Logger:       netLog,
	})
	netBoot := network.New(network.Options{
		Radio: network.NewNMCLIRadio(network.NMCLIConfig{
			Interface:        cfg.Network.Interface,
			NMCLIBinary:      cfg.Network.NMCLIBinary,
			RFKillBinary:     cfg.Network.RFKillBinary,
			DisableBluetooth: cfg.Network.DisableBluetooth,
			ConnectWait:      cfg.AssociateTimeout(),
		}),
		Clock:         clock,
		PollInterval:  cfg.StatusPollInterval(),
		EpochSentinel: cfg.Clock.EpochSentinel,
		Logger:        netLog,
	})

	sess := session.NewManager(session.Options{
		Transport: newTransport(cfg, log.With("component", "mqtt")),
		Now:       clock.Now,
		Logger:    log.With("component", "session"),
	})

	source, err := newSource(cfg)
	if err != nil {
		return err
	}

	opts := node.Options{
		Store:     store,
		Network:   netBoot,
		Session:   sess,
		Source:    source,
		Schedule:  schedule(cfg),
		WallClock: clock.Now,
		Logger:    log.With("component", "node"),
	}

	var apiMirror api.HealthChecker
	mirror, err := influxdb.Open(cfg.InfluxDB)
	switch {
	case errors.Is(err, influxdb.ErrDisabled):
		log.Info("InfluxDB mirror disabled")
	case err != nil:
		log.Warn("InfluxDB mirror unavailable, continuing without it", "error", err)
	default:
		defer func() {
			log.Info("closing InfluxDB mirror")
			if closeErr := mirror.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		mirror.SetOnError(func(err error) {
			log.Warn("InfluxDB write error", "error", err)
		})
		opts.Mirror = mirror
		apiMirror = mirror
		log.Info("InfluxDB mirror connected", "url", cfg.InfluxDB.URL, "bucket", cfg.InfluxDB.Bucket)
	}

	runner := node.New(opts)
	defer func() {
		if shutdownErr := runner.Shutdown(); shutdownErr != nil {
			log.Error("error during shutdown", "error", shutdownErr)
		}
	}()

	if cfg.API.Enabled {
		srv, srvErr := api.New(api.Deps{
			Config:  cfg.API,
			Status:  runner,
			Logger:  log.With("component", "api"),
			Version: version,
			Mirror:  apiMirror,
		})
		if srvErr != nil {
			return fmt.Errorf("creating API server: %w", srvErr)
		}
		if startErr := srv.Start(ctx); startErr != nil {
			return fmt.Errorf("starting API server: %w", startErr)
		}
		defer func() {
			if closeErr := srv.Close(); closeErr != nil {
				log.Error("error closing API server", "error", closeErr)
			}
		}()
	}

	if err := runner.Boot(ctx); err != nil {
		return fmt.Errorf("boot: %w", err)
	}
	log.Info("sensor node ready", "mode", cfg.Node.Mode, "port", cfg.Session.Port)

	if err := runner.Run(ctx); err != nil {
		return fmt.Errorf("control loop: %w", err)
	}

	log.Info("shutdown signal received, stopping")
	return nil
}

// getConfigPath returns the configuration file path.
// Checks SENSORNODE_CONFIG environment variable first, then uses default.
func getConfigPath() string {
	if path := os.Getenv("SENSORNODE_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// openStore builds the credential store over the configured backend. The
// returned func releases the backend.
func openStore(cfg *config.Config) (*credentials.Store, func()) {
	if cfg.Storage.Backend == config.StorageBackendSQLite {
		backend := credentials.NewSQLiteBackend(cfg.Storage.SQLite.Path, cfg.Storage.SQLite.BusyTimeout)
		return credentials.NewStore(backend), func() {
			backend.Close() //nolint:errcheck // read-only handle, nothing to flush
		}
	}

	d := cfg.Storage.Dir
	backend := credentials.NewDirBackend(d.Path, credentials.DirLayout{
		Metadata:          d.MetadataFile,
		CACertificate:     d.CAFile,
		DeviceCertificate: d.CertFile,
		PrivateKey:        d.KeyFile,
	})
	return credentials.NewStore(backend), func() {}
}

// newTransport selects the MQTT client for the configured protocol version.
func newTransport(cfg *config.Config, log mqtt.Logger) session.Transport {
	opts := mqtt.Options{
		KeepAlive:      cfg.KeepAlive(),
		ConnectTimeout: cfg.ConnectTimeout(),
		PublishTimeout: cfg.PublishTimeout(),
		Logger:         log,
	}
	if cfg.Session.Protocol == config.ProtocolV5 {
		return mqtt.NewV5Transport(opts)
	}
	return mqtt.NewV311Transport(opts)
}

// newSource selects where reading batches come from.
func newSource(cfg *config.Config) (readings.Source, error) {
	switch cfg.Readings.Source {
	case config.ReadingsSourceSpool:
		return readings.NewSpoolSource(cfg.Readings.SpoolPath), nil
	case config.ReadingsSourceSimulated:
		return readings.NewSimulator(cfg.Readings.SimulatedNodes, uint64(os.Getpid())), nil //nolint:gosec // pid is positive
	default:
		return nil, fmt.Errorf("unknown readings source %q", cfg.Readings.Source)
	}
}

func schedule(cfg *config.Config) node.Schedule {
	mode := node.Continuous
	if cfg.Node.Mode == config.ModeOneShot {
		mode = node.OneShot
	}
	return node.Schedule{
		Mode:              mode,
		Port:              cfg.Session.Port,
		AssociateTimeout:  cfg.AssociateTimeout(),
		SyncTimeout:       cfg.SyncTimeout(),
		PollInterval:      cfg.PollInterval(),
		PublishInterval:   cfg.PublishInterval(),
		ReconnectInterval: cfg.ReconnectInterval(),
	}
}
