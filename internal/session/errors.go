package session

import (
	"errors"
	"fmt"
)

// Domain-specific errors for the secure session.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrNotConfigured is returned by Connect before Begin.
	ErrNotConfigured = errors.New("session: not configured")

	// ErrNotConnected is returned by Poll when there is no live session.
	ErrNotConnected = errors.New("session: not connected")

	// ErrConnectionLost is returned by Poll when the link dropped since the last call.
	ErrConnectionLost = errors.New("session: connection lost")

	// ErrConnectFailed is matched by every *ProtocolConnectError.
	ErrConnectFailed = errors.New("session: connect failed")

	// ErrPublishSkipped is returned by Publish when not connected. Nothing was sent.
	ErrPublishSkipped = errors.New("session: publish skipped, not connected")

	// ErrPublishFailed is returned when the transport rejects a batch. The batch is dropped.
	ErrPublishFailed = errors.New("session: publish failed")

	// ErrInvalidPort is returned by Begin for a port outside 1..65535.
	ErrInvalidPort = errors.New("session: invalid broker port")
)

// Connect result codes. Zero is success; CodeConnectFailed stands in when
// the transport gives no numeric result.
const (
	CodeConnected     = 0
	CodeConnectFailed = -2
)

// ProtocolConnectError reports a failed Connect with the protocol's
// numeric result. Negative codes are transport failures; positive codes
// come from the broker's CONNACK.
type ProtocolConnectError struct {
	Code int
	Err  error
}

func (e *ProtocolConnectError) Error() string {
	return fmt.Sprintf("session: connect failed with code %d: %v", e.Code, e.Err)
}

// Unwrap exposes both ErrConnectFailed and the underlying cause.
func (e *ProtocolConnectError) Unwrap() []error {
	return []error{ErrConnectFailed, e.Err}
}

// connectCoder is implemented by transport errors that carry a numeric result.
type connectCoder interface {
	ConnectCode() int
}

func connectCode(err error) int {
	var coder connectCoder
	if errors.As(err, &coder) {
		return coder.ConnectCode()
	}
	return CodeConnectFailed
}
