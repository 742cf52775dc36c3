package influxdb

import (
	"context"
	"fmt"
	"sync"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"

	"github.com/nerrad567/gray-logic-sensornode/internal/infrastructure/config"
)

// Default timeouts for InfluxDB operations.
const (
	defaultConnectTimeout = 10 * time.Second
	defaultPingTimeout    = 5 * time.Second

	defaultBatchSize     = 100
	defaultFlushInterval = 10 // seconds

	// millisecondsPerSecond converts seconds to milliseconds for the InfluxDB API.
	millisecondsPerSecond = 1000
)

// Mirror copies published batches and session events into InfluxDB.
//
// It is a side channel for commissioning and field diagnostics: the broker
// remains the system of record, and a mirror outage never blocks the node.
//
// Thread Safety:
//   - All methods are safe for concurrent use from multiple goroutines.
//   - Writes are non-blocking and batched by the client library.
type Mirror struct {
	client   influxdb2.Client
	writeAPI api.WriteAPI

	connected bool
	mu        sync.RWMutex

	// onError is called when async write errors occur.
	onError func(err error)
}

// Open connects to InfluxDB and verifies it with a ping.
//
// Returns ErrDisabled when cfg.Enabled is false so callers can treat the
// mirror as optional with a single errors.Is check.
func Open(cfg config.InfluxDBConfig) (*Mirror, error) {
	if !cfg.Enabled {
		return nil, ErrDisabled
	}

	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	flushInterval := cfg.FlushInterval
	if flushInterval <= 0 {
		flushInterval = defaultFlushInterval
	}

	// #nosec G115 -- values validated above to be positive
	client := influxdb2.NewClientWithOptions(
		cfg.URL,
		cfg.Token,
		influxdb2.DefaultOptions().
			SetBatchSize(uint(batchSize)).
			SetFlushInterval(uint(flushInterval)*millisecondsPerSecond),
	)

	ctx, cancel := context.WithTimeout(context.Background(), defaultConnectTimeout)
	defer cancel()

	healthy, err := client.Ping(ctx)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("%w: ping failed: %w", ErrConnectionFailed, err)
	}
	if !healthy {
		client.Close()
		return nil, fmt.Errorf("%w: server not healthy", ErrConnectionFailed)
	}

	writeAPI := client.WriteAPI(cfg.Org, cfg.Bucket)
	m := &Mirror{
		client:    client,
		writeAPI:  writeAPI,
		connected: true,
	}
	go m.handleWriteErrors(writeAPI.Errors())

	return m, nil
}

func (m *Mirror) handleWriteErrors(errorsCh <-chan error) {
	for err := range errorsCh {
		m.mu.RLock()
		callback := m.onError
		m.mu.RUnlock()

		if callback != nil {
			callback(fmt.Errorf("%w: %w", ErrWriteFailed, err))
		}
	}
}

// SetOnError sets a callback for async write failures.
func (m *Mirror) SetOnError(callback func(err error)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onError = callback
}

// IsConnected returns the last known connection state. A nil Mirror is
// never connected, so writes through it are no-ops.
func (m *Mirror) IsConnected() bool {
	if m == nil {
		return false
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.connected
}

// HealthCheck pings the server.
func (m *Mirror) HealthCheck(ctx context.Context) error {
	if !m.IsConnected() {
		return ErrNotConnected
	}

	checkCtx, cancel := context.WithTimeout(ctx, defaultPingTimeout)
	defer cancel()

	healthy, err := m.client.Ping(checkCtx)
	if err != nil {
		return fmt.Errorf("influxdb health check failed: %w", err)
	}
	if !healthy {
		return fmt.Errorf("influxdb health check failed: server not healthy")
	}
	return nil
}

// Flush blocks until buffered points are written. No-op after Close.
func (m *Mirror) Flush() {
	if !m.IsConnected() {
		return
	}
	m.writeAPI.Flush()
}

// Close flushes pending points and closes the client. Safe on nil.
func (m *Mirror) Close() error {
	if m == nil || m.client == nil {
		return nil
	}

	m.mu.Lock()
	wasConnected := m.connected
	m.connected = false
	m.mu.Unlock()

	if wasConnected {
		m.writeAPI.Flush()
		m.client.Close()
	}
	return nil
}
