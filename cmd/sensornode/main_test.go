package main

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/nerrad567/gray-logic-sensornode/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-sensornode/internal/node"
	"github.com/nerrad567/gray-logic-sensornode/internal/readings"
)

// TestRun_InvalidConfig verifies run fails with an invalid config path.
func TestRun_InvalidConfig(t *testing.T) {
	t.Setenv("SENSORNODE_CONFIG", "/nonexistent/path/config.yaml")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := run(ctx)
	if err == nil {
		t.Fatal("run() should fail with invalid config path")
	}
	if !strings.Contains(err.Error(), "loading config") {
		t.Errorf("run() error = %v, want loading config failure", err)
	}
}

// TestRun_MissingProvisioning verifies boot stops at the credential stage
// when the provisioning directory does not exist.
func TestRun_MissingProvisioning(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configContent := `
node:
  mode: oneshot
storage:
  backend: dir
  dir:
    path: "` + filepath.Join(tmpDir, "absent") + `"
network:
  interface: wlan-test
  nmcli_binary: /nonexistent/nmcli
  rfkill_binary: /nonexistent/rfkill
readings:
  source: simulated
  simulated_nodes: [1, 2]
influxdb:
  enabled: false
logging:
  level: error
  format: text
  output: stderr
`
	if err := os.WriteFile(configPath, []byte(configContent), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	t.Setenv("SENSORNODE_CONFIG", configPath)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := run(ctx)
	if err == nil {
		t.Fatal("run() should fail without provisioning data")
	}
	if !strings.Contains(err.Error(), "loading credentials") {
		t.Errorf("run() error = %v, want loading credentials failure", err)
	}
}

func TestGetConfigPath(t *testing.T) {
	t.Setenv("SENSORNODE_CONFIG", "")
	if got := getConfigPath(); got != defaultConfigPath {
		t.Errorf("getConfigPath() = %q, want %q", got, defaultConfigPath)
	}

	t.Setenv("SENSORNODE_CONFIG", "/tmp/custom.yaml")
	if got := getConfigPath(); got != "/tmp/custom.yaml" {
		t.Errorf("getConfigPath() = %q, want /tmp/custom.yaml", got)
	}
}

func TestSchedule(t *testing.T) {
	cfg := config.Default()
	cfg.Node.Mode = config.ModeOneShot

	s := schedule(cfg)
	if s.Mode != node.OneShot {
		t.Errorf("Mode = %v, want OneShot", s.Mode)
	}
	if s.Port != 8883 {
		t.Errorf("Port = %d, want 8883", s.Port)
	}
	if s.PublishInterval != 30*time.Second || s.ReconnectInterval != 5*time.Second {
		t.Errorf("intervals = %v/%v", s.PublishInterval, s.ReconnectInterval)
	}
}

func TestNewSource(t *testing.T) {
	cfg := config.Default()

	src, err := newSource(cfg)
	if err != nil {
		t.Fatalf("newSource() error = %v", err)
	}
	if _, ok := src.(*readings.SpoolSource); !ok {
		t.Errorf("default source = %T, want *readings.SpoolSource", src)
	}

	cfg.Readings.Source = config.ReadingsSourceSimulated
	cfg.Readings.SimulatedNodes = []int{1}
	src, err = newSource(cfg)
	if err != nil {
		t.Fatalf("newSource() error = %v", err)
	}
	if _, ok := src.(*readings.Simulator); !ok {
		t.Errorf("simulated source = %T, want *readings.Simulator", src)
	}

	cfg.Readings.Source = "serial"
	if _, err := newSource(cfg); err == nil {
		t.Error("newSource() accepted an unknown source")
	}
}
