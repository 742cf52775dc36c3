package mqtt

import (
	"errors"
	"fmt"
)

// Domain-specific errors for MQTT operations.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrNotConnected is returned when attempting operations on a disconnected transport.
	ErrNotConnected = errors.New("mqtt: transport not connected")

	// ErrConnectionFailed is returned when a connection attempt fails.
	ErrConnectionFailed = errors.New("mqtt: connection failed")

	// ErrConnectionLost is returned by Service once the link has dropped.
	ErrConnectionLost = errors.New("mqtt: connection lost")

	// ErrPublishFailed is returned when a publish operation fails.
	ErrPublishFailed = errors.New("mqtt: publish failed")

	// ErrInvalidTopic is returned when a publish topic is empty or malformed.
	ErrInvalidTopic = errors.New("mqtt: invalid topic")

	// ErrTLSMaterial is returned when the CA, certificate or key cannot be parsed.
	ErrTLSMaterial = errors.New("mqtt: invalid TLS material")

	// ErrTLSNotInstalled is returned by Connect before InstallTLS.
	ErrTLSNotInstalled = errors.New("mqtt: TLS material not installed")

	// ErrTimeout is returned when an operation times out.
	ErrTimeout = errors.New("mqtt: operation timed out")
)

// Connect result codes below zero are transport-level; they use the same
// values the node firmware reports.
const (
	CodeConnectionTimeout = -4
	CodeConnectFailed     = -2
)

// ConnectError carries the numeric result of a failed connect: a negative
// transport code, an MQTT 3.1.1 CONNACK return code (1..5) or an MQTT 5
// CONNACK reason code (0x80 and above).
type ConnectError struct {
	Code int
	Err  error
}

func (e *ConnectError) Error() string {
	return fmt.Sprintf("mqtt connect failed (code %d): %v", e.Code, e.Err)
}

func (e *ConnectError) Unwrap() error { return e.Err }

// ConnectCode returns the numeric result.
func (e *ConnectError) ConnectCode() int { return e.Code }
