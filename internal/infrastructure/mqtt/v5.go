package mqtt

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"strconv"
	"sync"

	"github.com/eclipse/paho.golang/paho"
)

// V5Transport is a secure MQTT 5 transport built on paho.golang.
//
// The TLS connection is dialled here and handed to paho, which runs the
// keepalive on its own goroutines. Reconnection is left to the caller.
//
// Thread Safety:
//   - All methods are safe for concurrent use.
type V5Transport struct {
	opts Options

	// dial is replaced in tests.
	dial func(ctx context.Context, addr string, cfg *tls.Config) (net.Conn, error)

	mu        sync.Mutex
	tlsConfig *tls.Config
	client    *paho.Client
	lost      bool
}

// NewV5Transport creates an unconnected MQTT 5 transport.
func NewV5Transport(opts Options) *V5Transport {
	return &V5Transport{
		opts: opts.withDefaults(),
		dial: dialTLS,
	}
}

func dialTLS(ctx context.Context, addr string, cfg *tls.Config) (net.Conn, error) {
	d := &tls.Dialer{Config: cfg}
	return d.DialContext(ctx, "tcp", addr)
}

// InstallTLS parses and stores the CA, device certificate and key.
func (t *V5Transport) InstallTLS(ca, cert, key []byte) error {
	cfg, err := BuildTLSConfig(ca, cert, key)
	if err != nil {
		return err
	}
	t.mu.Lock()
	t.tlsConfig = cfg
	t.mu.Unlock()
	return nil
}

// Connect dials the broker over TLS and sends CONNECT with clean start.
// Failures are returned as *ConnectError carrying the CONNACK reason code
// when the broker refused the session.
func (t *V5Transport) Connect(host string, port int, clientID string) error {
	t.mu.Lock()
	tlsConfig := t.tlsConfig
	previous := t.client
	t.client = nil
	t.lost = false
	t.mu.Unlock()

	if previous != nil {
		_ = previous.Disconnect(&paho.Disconnect{ReasonCode: 0}) //nolint:errcheck // replacing the session
	}
	if tlsConfig == nil {
		return &ConnectError{Code: CodeConnectFailed, Err: ErrTLSNotInstalled}
	}

	ctx, cancel := context.WithTimeout(context.Background(), t.opts.ConnectTimeout)
	defer cancel()

	conn, err := t.dial(ctx, net.JoinHostPort(host, strconv.Itoa(port)), tlsConfig)
	if err != nil {
		return &ConnectError{Code: transportCode(err), Err: fmt.Errorf("%w: %w", ErrConnectionFailed, err)}
	}

	client := paho.NewClient(paho.ClientConfig{
		ClientID: clientID,
		Conn:     conn,
		OnClientError: func(err error) {
			t.markLost()
			t.opts.Logger.Warn("MQTT client error", "error", err)
		},
		OnServerDisconnect: func(d *paho.Disconnect) {
			t.markLost()
			t.opts.Logger.Warn("MQTT server disconnected", "reason_code", d.ReasonCode)
		},
	})

	connack, err := client.Connect(ctx, &paho.Connect{
		ClientID:   clientID,
		KeepAlive:  uint16(t.opts.KeepAlive.Seconds()),
		CleanStart: true,
	})
	if err != nil {
		_ = conn.Close() //nolint:errcheck // connect already failed
		code := transportCode(err)
		if connack != nil && connack.ReasonCode >= 0x80 {
			code = int(connack.ReasonCode)
		}
		return &ConnectError{Code: code, Err: fmt.Errorf("%w: %w", ErrConnectionFailed, err)}
	}
	if connack.ReasonCode >= 0x80 {
		_ = conn.Close() //nolint:errcheck // refused by broker
		return &ConnectError{
			Code: int(connack.ReasonCode),
			Err:  fmt.Errorf("%w: refused with reason code 0x%02x", ErrConnectionFailed, connack.ReasonCode),
		}
	}

	t.mu.Lock()
	t.client = client
	t.mu.Unlock()
	return nil
}

func (t *V5Transport) markLost() {
	t.mu.Lock()
	t.lost = true
	t.mu.Unlock()
}

// IsConnected reports whether the session is up.
func (t *V5Transport) IsConnected() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.client != nil && !t.lost
}

// Service reports a dropped link.
func (t *V5Transport) Service() error {
	if !t.IsConnected() {
		return ErrConnectionLost
	}
	return nil
}

// Publish sends payload at QoS 0, not retained.
func (t *V5Transport) Publish(topic string, payload []byte) error {
	if err := validatePublish(topic, payload); err != nil {
		return err
	}

	t.mu.Lock()
	client := t.client
	lost := t.lost
	t.mu.Unlock()
	if client == nil || lost {
		return ErrNotConnected
	}

	ctx, cancel := context.WithTimeout(context.Background(), t.opts.PublishTimeout)
	defer cancel()

	if _, err := client.Publish(ctx, &paho.Publish{
		Topic:   topic,
		QoS:     0,
		Payload: payload,
	}); err != nil {
		return fmt.Errorf("%w: %w", ErrPublishFailed, err)
	}
	return nil
}

// Disconnect sends DISCONNECT if connected and drops the client.
// Safe to call when already disconnected.
func (t *V5Transport) Disconnect() error {
	t.mu.Lock()
	client := t.client
	lost := t.lost
	t.client = nil
	t.lost = false
	t.mu.Unlock()

	if client == nil || lost {
		return nil
	}
	if err := client.Disconnect(&paho.Disconnect{ReasonCode: 0}); err != nil {
		t.opts.Logger.Warn("MQTT disconnect failed", "error", err)
	}
	return nil
}
