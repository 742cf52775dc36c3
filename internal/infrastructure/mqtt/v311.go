package mqtt

import (
	"crypto/tls"
	"fmt"
	"net"
	"strconv"
	"sync"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/eclipse/paho.mqtt.golang/packets"
)

// V311Transport is a secure MQTT 3.1.1 transport built on paho.mqtt.golang.
//
// It never reconnects on its own; the caller decides when to retry.
//
// Thread Safety:
//   - All methods are safe for concurrent use. The connection-lost handler
//     runs on a paho goroutine.
type V311Transport struct {
	opts Options

	// newClient is replaced in tests.
	newClient func(*pahomqtt.ClientOptions) pahomqtt.Client

	mu        sync.Mutex
	tlsConfig *tls.Config
	client    pahomqtt.Client
	lost      bool
}

// NewV311Transport creates an unconnected MQTT 3.1.1 transport.
func NewV311Transport(opts Options) *V311Transport {
	return &V311Transport{
		opts:      opts.withDefaults(),
		newClient: pahomqtt.NewClient,
	}
}

// InstallTLS parses and stores the CA, device certificate and key.
func (t *V311Transport) InstallTLS(ca, cert, key []byte) error {
	cfg, err := BuildTLSConfig(ca, cert, key)
	if err != nil {
		return err
	}
	t.mu.Lock()
	t.tlsConfig = cfg
	t.mu.Unlock()
	return nil
}

// Connect opens the TLS connection and performs the MQTT handshake with a
// clean session. Failures are returned as *ConnectError.
func (t *V311Transport) Connect(host string, port int, clientID string) error {
	t.mu.Lock()
	tlsConfig := t.tlsConfig
	previous := t.client
	t.client = nil
	t.lost = false
	t.mu.Unlock()

	if previous != nil && previous.IsConnectionOpen() {
		previous.Disconnect(disconnectQuiesce)
	}
	if tlsConfig == nil {
		return &ConnectError{Code: CodeConnectFailed, Err: ErrTLSNotInstalled}
	}

	opts := t.buildClientOptions(host, port, clientID, tlsConfig)
	client := t.newClient(opts)

	token := client.Connect()
	if !token.WaitTimeout(t.opts.ConnectTimeout) {
		client.Disconnect(0)
		return &ConnectError{
			Code: CodeConnectionTimeout,
			Err:  fmt.Errorf("%w: no CONNACK after %v", ErrTimeout, t.opts.ConnectTimeout),
		}
	}
	if err := token.Error(); err != nil {
		return &ConnectError{Code: v311Code(token, err), Err: fmt.Errorf("%w: %w", ErrConnectionFailed, err)}
	}

	t.mu.Lock()
	t.client = client
	t.mu.Unlock()
	return nil
}

// buildClientOptions creates paho MQTT options for a single secure session.
//
// This configures:
//   - ssl:// broker URL
//   - Client ID for identification
//   - Clean session, no auto-reconnect, no connect retry
//   - Keepalive and connect timeout
//   - Mutual TLS
func (t *V311Transport) buildClientOptions(host string, port int, clientID string, tlsConfig *tls.Config) *pahomqtt.ClientOptions {
	opts := pahomqtt.NewClientOptions()
	opts.AddBroker("ssl://" + net.JoinHostPort(host, strconv.Itoa(port)))
	opts.SetClientID(clientID)
	opts.SetProtocolVersion(4)
	opts.SetCleanSession(true)

	opts.SetAutoReconnect(false)
	opts.SetConnectRetry(false)
	opts.SetConnectTimeout(t.opts.ConnectTimeout)
	opts.SetKeepAlive(t.opts.KeepAlive)
	opts.SetTLSConfig(tlsConfig)

	opts.SetConnectionLostHandler(func(_ pahomqtt.Client, err error) {
		t.mu.Lock()
		t.lost = true
		t.mu.Unlock()
		t.opts.Logger.Warn("MQTT connection lost", "error", err)
	})

	return opts
}

// v311Code extracts the CONNACK return code, falling back to a transport code.
func v311Code(token pahomqtt.Token, err error) int {
	if ct, ok := token.(*pahomqtt.ConnectToken); ok {
		rc := ct.ReturnCode()
		if rc >= packets.ErrRefusedBadProtocolVersion && rc <= packets.ErrRefusedNotAuthorised {
			return int(rc)
		}
	}
	return transportCode(err)
}

// IsConnected reports whether the session is up.
func (t *V311Transport) IsConnected() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.client != nil && !t.lost && t.client.IsConnected()
}

// Service checks the link. paho runs keepalive on its own goroutines, so
// there is nothing to pump here beyond reporting a drop.
func (t *V311Transport) Service() error {
	if !t.IsConnected() {
		return ErrConnectionLost
	}
	return nil
}

// Publish sends payload at QoS 0, not retained.
func (t *V311Transport) Publish(topic string, payload []byte) error {
	if err := validatePublish(topic, payload); err != nil {
		return err
	}

	t.mu.Lock()
	client := t.client
	t.mu.Unlock()
	if client == nil || !t.IsConnected() {
		return ErrNotConnected
	}

	token := client.Publish(topic, 0, false, payload)
	if !token.WaitTimeout(t.opts.PublishTimeout) {
		return fmt.Errorf("%w: timeout after %v", ErrPublishFailed, t.opts.PublishTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %w", ErrPublishFailed, err)
	}
	return nil
}

// Disconnect sends DISCONNECT if connected and drops the client.
// Safe to call when already disconnected.
func (t *V311Transport) Disconnect() error {
	t.mu.Lock()
	client := t.client
	t.client = nil
	t.lost = false
	t.mu.Unlock()

	if client != nil && client.IsConnectionOpen() {
		client.Disconnect(disconnectQuiesce)
	}
	return nil
}
