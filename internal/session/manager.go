package session

import (
	"fmt"
	"time"

	"github.com/nerrad567/gray-logic-sensornode/internal/credentials"
)

// State is the lifecycle position of the broker session.
type State int

const (
	// Unconfigured means Begin has not been called.
	Unconfigured State = iota
	// Disconnected means credentials are installed but no session is open.
	Disconnected
	// Connecting is held for the duration of a Connect call.
	Connecting
	// Connected means the last Connect succeeded and no drop has been seen.
	Connected
)

// String returns the lowercase state name.
func (s State) String() string {
	switch s {
	case Unconfigured:
		return "unconfigured"
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Transport is the TLS-secured MQTT client the manager drives.
type Transport interface {
	// InstallTLS loads the CA, device certificate and private key (PEM).
	InstallTLS(ca, cert, key []byte) error

	// Connect performs the TLS handshake and protocol session setup.
	// Errors carrying a numeric result implement ConnectCode() int.
	Connect(host string, port int, clientID string) error

	// IsConnected reports whether the session is still up.
	IsConnected() bool

	// Service runs keepalive housekeeping and reports a dropped link.
	Service() error

	// Publish sends one message at QoS 0.
	Publish(topic string, payload []byte) error

	// Disconnect closes the session. Safe when not connected.
	Disconnect() error
}

// Logger defines the logging interface for the session.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}

// Options configures a Manager.
type Options struct {
	Transport Transport

	// Now stamps published batches. Defaults to time.Now.
	Now func() time.Time

	Logger Logger
}

// Manager owns the broker session and its state machine:
//
//	Unconfigured --Begin--> Disconnected --Connect--> Connecting --ok--> Connected
//	                             ^                        |                  |
//	                             +-------- failure -------+--- drop/Disconnect
//
// Thread Safety:
//   - Not safe for concurrent use. The node's control loop is the only caller.
type Manager struct {
	transport Transport
	now       func() time.Time
	logger    Logger

	state State
	creds *credentials.Credentials
	port  int
}

// NewManager creates a Manager in the Unconfigured state.
func NewManager(opts Options) *Manager {
	m := &Manager{
		transport: opts.Transport,
		now:       opts.Now,
		logger:    opts.Logger,
		state:     Unconfigured,
	}
	if m.now == nil {
		m.now = time.Now
	}
	if m.logger == nil {
		m.logger = noopLogger{}
	}
	return m
}

// Begin installs credentials and the broker port. It opens nothing.
//
// The credentials are referenced, not copied. Calling Begin again replaces
// them; a live session is closed first.
func (m *Manager) Begin(creds *credentials.Credentials, port int) error {
	if err := creds.Validate(); err != nil {
		return err
	}
	if port < 1 || port > 65535 {
		return fmt.Errorf("%w: %d", ErrInvalidPort, port)
	}

	if m.state == Connected || m.state == Connecting {
		m.Disconnect()
	}

	m.creds = creds
	m.port = port
	m.state = Disconnected
	m.logger.Info("session configured",
		"endpoint", creds.BrokerEndpoint,
		"port", port,
		"client_id", creds.IdentityName,
	)
	return nil
}

// Connect opens the secure session using the installed credentials.
//
// It is a no-op when already connected. On failure the state returns to
// Disconnected and a *ProtocolConnectError carries the numeric result.
func (m *Manager) Connect() error {
	switch m.state {
	case Unconfigured:
		return ErrNotConfigured
	case Connected:
		if m.transport.IsConnected() {
			return nil
		}
		m.logger.Warn("session dropped before connect, reconnecting")
	}

	m.state = Connecting
	m.logger.Info("connecting to broker", "endpoint", m.creds.BrokerEndpoint, "port", m.port)

	if err := m.transport.InstallTLS(
		[]byte(m.creds.CACertificatePEM),
		[]byte(m.creds.DeviceCertificatePEM),
		[]byte(m.creds.PrivateKeyPEM),
	); err != nil {
		m.state = Disconnected
		m.logger.Warn("TLS material rejected", "error", err)
		return &ProtocolConnectError{Code: CodeConnectFailed, Err: err}
	}

	if err := m.transport.Connect(m.creds.BrokerEndpoint, m.port, m.creds.IdentityName); err != nil {
		m.state = Disconnected
		code := connectCode(err)
		m.logger.Warn("broker connect failed", "code", code, "error", err)
		return &ProtocolConnectError{Code: code, Err: err}
	}

	m.state = Connected
	m.logger.Info("connected to broker")
	return nil
}

// Poll services the session. It must be called regularly while connected.
//
// Returns ErrNotConnected without touching the transport when there is no
// session, and ErrConnectionLost (moving to Disconnected) when the link
// has dropped.
func (m *Manager) Poll() error {
	if m.state != Connected {
		return ErrNotConnected
	}

	if err := m.transport.Service(); err != nil {
		m.state = Disconnected
		m.logger.Warn("broker connection lost", "error", err)
		return fmt.Errorf("%w: %w", ErrConnectionLost, err)
	}
	if !m.transport.IsConnected() {
		m.state = Disconnected
		m.logger.Warn("broker connection lost")
		return ErrConnectionLost
	}
	return nil
}

// Publish sends one batch of readings to the publish topic at QoS 0.
//
// The state is checked before anything is encoded or sent. There is no
// retry and no queue: a skipped or failed batch is gone.
func (m *Manager) Publish(readings []Reading) error {
	if m.state != Connected {
		m.logger.Debug("publish skipped", "state", m.state)
		return fmt.Errorf("%w (state %s)", ErrPublishSkipped, m.state)
	}
	if !m.transport.IsConnected() {
		m.state = Disconnected
		m.logger.Warn("publish skipped, link dropped")
		return fmt.Errorf("%w: %w", ErrPublishSkipped, ErrConnectionLost)
	}

	payload, err := EncodeBatch(m.creds.IdentityName, m.now().Unix(), readings)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrPublishFailed, err)
	}

	if err := m.transport.Publish(m.creds.PublishTopic, payload); err != nil {
		m.logger.Warn("publish failed", "topic", m.creds.PublishTopic, "error", err)
		return fmt.Errorf("%w: %w", ErrPublishFailed, err)
	}

	m.logger.Debug("batch published", "topic", m.creds.PublishTopic, "readings", len(readings), "bytes", len(payload))
	return nil
}

// Disconnect closes any open session. Unconfigured stays Unconfigured;
// every other state ends Disconnected. Safe to call repeatedly.
func (m *Manager) Disconnect() {
	if m.state == Unconfigured {
		return
	}
	if m.state == Connected || m.state == Connecting {
		if err := m.transport.Disconnect(); err != nil {
			m.logger.Warn("broker disconnect failed", "error", err)
		}
		m.logger.Info("disconnected from broker")
	}
	m.state = Disconnected
}

// State returns the current lifecycle state.
func (m *Manager) State() State {
	return m.state
}

// Credentials returns the installed credentials, or nil before Begin.
func (m *Manager) Credentials() *credentials.Credentials {
	return m.creds
}
