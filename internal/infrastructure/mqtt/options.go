package mqtt

import (
	"context"
	"errors"
	"net"
	"os"
	"time"
)

// Connection defaults.
const (
	// DefaultConnectTimeout bounds the TCP dial, TLS handshake and CONNACK.
	DefaultConnectTimeout = 10 * time.Second

	// DefaultPublishTimeout bounds handing a QoS 0 message to the socket.
	DefaultPublishTimeout = 5 * time.Second

	// DefaultKeepAlive is the MQTT keepalive interval.
	DefaultKeepAlive = 60 * time.Second

	// disconnectQuiesce is the time to wait for pending operations on disconnect.
	disconnectQuiesce = 250 // milliseconds
)

// Options configures a transport. Zero values select the defaults.
type Options struct {
	KeepAlive      time.Duration
	ConnectTimeout time.Duration
	PublishTimeout time.Duration
	Logger         Logger
}

// Logger interface for optional logging support.
// Compatible with logging.Logger and slog.Logger.
type Logger interface {
	Error(msg string, args ...any)
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Error(string, ...any) {}
func (noopLogger) Warn(string, ...any)  {}

func (o Options) withDefaults() Options {
	if o.KeepAlive <= 0 {
		o.KeepAlive = DefaultKeepAlive
	}
	if o.ConnectTimeout <= 0 {
		o.ConnectTimeout = DefaultConnectTimeout
	}
	if o.PublishTimeout <= 0 {
		o.PublishTimeout = DefaultPublishTimeout
	}
	if o.Logger == nil {
		o.Logger = noopLogger{}
	}
	return o
}

// transportCode maps a dial or handshake failure to a negative connect code.
func transportCode(err error) int {
	if errors.Is(err, ErrTimeout) ||
		errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, os.ErrDeadlineExceeded) {
		return CodeConnectionTimeout
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return CodeConnectionTimeout
	}
	return CodeConnectFailed
}
