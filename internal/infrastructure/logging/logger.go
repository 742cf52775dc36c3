package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/google/uuid"

	"github.com/nerrad567/gray-logic-sensornode/internal/infrastructure/config"
)

// serviceName is attached to every log entry.
const serviceName = "sensornode"

// redacted replaces the value of any attribute whose key names a secret.
const redacted = "[redacted]"

// secretKeys are attribute keys whose values never reach the log, at any
// nesting depth. Matching is case-insensitive.
var secretKeys = map[string]struct{}{
	"password":         {},
	"network_password": {},
	"psk":              {},
	"private_key":      {},
	"key_pem":          {},
	"token":            {},
}

// Logger wraps slog.Logger with sensor node defaults.
//
// Thread Safety:
//   - All methods are safe for concurrent use from multiple goroutines.
type Logger struct {
	*slog.Logger
}

// New creates a Logger writing JSON (or text, for bench work) to stdout or
// stderr, tagged with service and version. Attributes keyed as secrets
// are redacted.
func New(cfg config.LoggingConfig, version string) *Logger {
	var output io.Writer
	switch strings.ToLower(cfg.Output) {
	case "stderr":
		output = os.Stderr
	default:
		output = os.Stdout
	}

	return NewWithWriter(output, cfg, version)
}

// NewWithWriter is New with an explicit destination. Tests use it to
// capture output.
func NewWithWriter(output io.Writer, cfg config.LoggingConfig, version string) *Logger {
	opts := &slog.HandlerOptions{
		Level:       parseLevel(cfg.Level),
		ReplaceAttr: redactSecrets,
	}

	var handler slog.Handler
	switch strings.ToLower(cfg.Format) {
	case "text":
		handler = slog.NewTextHandler(output, opts)
	default:
		handler = slog.NewJSONHandler(output, opts)
	}

	handler = handler.WithAttrs([]slog.Attr{
		slog.String("service", serviceName),
		slog.String("version", version),
	})

	return &Logger{
		Logger: slog.New(handler),
	}
}

// redactSecrets is a slog ReplaceAttr hook that blanks secret values.
func redactSecrets(_ []string, a slog.Attr) slog.Attr {
	if _, secret := secretKeys[strings.ToLower(a.Key)]; secret {
		return slog.String(a.Key, redacted)
	}
	return a
}

// parseLevel converts a string log level to slog.Level.
//
// Supported levels: debug, info, warn, error
// Defaults to info if unrecognised.
func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// With returns a new Logger with additional default attributes.
//
// Example:
//
//	netLogger := logger.With("component", "network")
//	netLogger.Info("associated") // Includes component=network
func (l *Logger) With(args ...any) *Logger {
	return &Logger{
		Logger: l.Logger.With(args...),
	}
}

// WithBootID tags every subsequent entry with a fresh boot identifier so
// the lines of one power cycle can be grouped after upload.
func (l *Logger) WithBootID() (*Logger, string) {
	id := uuid.NewString()
	return l.With("boot_id", id), id
}

// Default creates a default logger for use before configuration is loaded.
func Default() *Logger {
	return New(config.LoggingConfig{
		Level:  "info",
		Format: "json",
		Output: "stdout",
	}, "dev")
}
