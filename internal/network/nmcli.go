package network

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"
)

const (
	// commandTimeout bounds each short nmcli/rfkill invocation.
	commandTimeout = 5 * time.Second

	// nmStateActivated is NetworkManager's GENERAL.STATE for an active device.
	nmStateActivated = 100
)

// CommandRunner executes an external command and returns its stdout.
type CommandRunner func(ctx context.Context, name string, args ...string) ([]byte, error)

// execRunner runs commands with os/exec, folding stderr into the error.
func execRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	out, err := cmd.Output()
	if err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return out, fmt.Errorf("%s: %w: %s", name, err, msg)
		}
		return out, fmt.Errorf("%s: %w", name, err)
	}
	return out, nil
}

// NMCLIConfig configures NMCLIRadio.
type NMCLIConfig struct {
	Interface        string
	NMCLIBinary      string
	RFKillBinary     string
	DisableBluetooth bool

	// ConnectWait is passed to nmcli --wait for the background connect.
	ConnectWait time.Duration

	// Runner overrides command execution. Tests inject a fake.
	Runner CommandRunner
}

// NMCLIRadio drives a WiFi interface through NetworkManager's CLI.
//
// The connect command blocks until activation, so StartStation runs it in
// the background and Associated polls the device state instead.
type NMCLIRadio struct {
	cfg NMCLIConfig
	run CommandRunner

	mu         sync.Mutex
	cancel     context.CancelFunc
	attempt    uint64
	connectErr error
}

// NewNMCLIRadio creates a radio driver for cfg.Interface.
func NewNMCLIRadio(cfg NMCLIConfig) *NMCLIRadio {
	if cfg.NMCLIBinary == "" {
		cfg.NMCLIBinary = "nmcli"
	}
	if cfg.RFKillBinary == "" {
		cfg.RFKillBinary = "rfkill"
	}
	if cfg.ConnectWait <= 0 {
		cfg.ConnectWait = DefaultAssociateTimeout
	}

	run := cfg.Runner
	if run == nil {
		run = execRunner
	}

	return &NMCLIRadio{cfg: cfg, run: run}
}

// StartStation enables WiFi and starts a background connect to ssid.
func (r *NMCLIRadio) StartStation(ssid, password string) error {
	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	if _, err := r.run(ctx, r.cfg.NMCLIBinary, "radio", "wifi", "on"); err != nil {
		return fmt.Errorf("enabling wifi: %w", err)
	}

	r.mu.Lock()
	if r.cancel != nil {
		r.cancel()
	}
	connCtx, connCancel := context.WithTimeout(context.Background(), r.cfg.ConnectWait+commandTimeout)
	r.cancel = connCancel
	r.attempt++
	attempt := r.attempt
	r.connectErr = nil
	r.mu.Unlock()

	wait := strconv.Itoa(int(r.cfg.ConnectWait / time.Second))
	go func() {
		_, err := r.run(connCtx, r.cfg.NMCLIBinary,
			"--wait", wait,
			"device", "wifi", "connect", ssid,
			"password", password,
			"ifname", r.cfg.Interface,
		)
		r.mu.Lock()
		if r.attempt == attempt {
			r.connectErr = err
		}
		r.mu.Unlock()
	}()

	return nil
}

// Associated reports whether the interface is in the activated state.
func (r *NMCLIRadio) Associated() bool {
	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	out, err := r.run(ctx, r.cfg.NMCLIBinary, "-g", "GENERAL.STATE", "device", "show", r.cfg.Interface)
	if err != nil {
		return false
	}
	return parseDeviceState(out) == nmStateActivated
}

// Channel returns the channel of the active access point.
func (r *NMCLIRadio) Channel() (int, error) {
	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	out, err := r.run(ctx, r.cfg.NMCLIBinary,
		"-t", "-f", "ACTIVE,CHAN",
		"device", "wifi", "list", "ifname", r.cfg.Interface, "--rescan", "no",
	)
	if err != nil {
		return 0, err
	}
	return parseActiveChannel(out)
}

// LastConnectError returns the result of the most recent background
// connect, or nil while it is still running. Results of connects superseded
// by a later StartStation or Stop are discarded.
func (r *NMCLIRadio) LastConnectError() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.connectErr
}

// Stop disconnects the interface, turns WiFi off and, if configured,
// soft-blocks Bluetooth. A device that is already down is not an error.
func (r *NMCLIRadio) Stop() error {
	r.mu.Lock()
	if r.cancel != nil {
		r.cancel()
		r.cancel = nil
	}
	r.attempt++
	r.connectErr = nil
	r.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	// Fails when the device is not active; that is the state we want.
	_, _ = r.run(ctx, r.cfg.NMCLIBinary, "device", "disconnect", r.cfg.Interface)

	var errs []error
	if _, err := r.run(ctx, r.cfg.NMCLIBinary, "radio", "wifi", "off"); err != nil {
		errs = append(errs, fmt.Errorf("disabling wifi: %w", err))
	}
	if r.cfg.DisableBluetooth {
		if _, err := r.run(ctx, r.cfg.RFKillBinary, "block", "bluetooth"); err != nil {
			errs = append(errs, fmt.Errorf("blocking bluetooth: %w", err))
		}
	}
	return errors.Join(errs...)
}

// parseDeviceState extracts the numeric state from "100 (connected)".
func parseDeviceState(out []byte) int {
	field := strings.Fields(strings.TrimSpace(string(out)))
	if len(field) == 0 {
		return -1
	}
	state, err := strconv.Atoi(field[0])
	if err != nil {
		return -1
	}
	return state
}

// parseActiveChannel finds the "yes:<chan>" row in terse wifi list output.
func parseActiveChannel(out []byte) (int, error) {
	for _, line := range strings.Split(string(out), "\n") {
		active, chanField, ok := strings.Cut(strings.TrimSpace(line), ":")
		if !ok || active != "yes" {
			continue
		}
		ch, err := strconv.Atoi(chanField)
		if err != nil {
			return 0, fmt.Errorf("parsing channel %q: %w", chanField, err)
		}
		return ch, nil
	}
	return 0, errors.New("no active access point")
}
