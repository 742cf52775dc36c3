// Package logging provides structured logging for the sensor node.
//
// This package wraps Go's standard log/slog package to provide
// consistent, structured logging across the entire application.
//
// # Configuration
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr
//
// # Usage
//
//	logger := logging.New(cfg.Logging, "1.0.0")
//	logger, bootID := logger.WithBootID()
//	logger.Info("associated", "channel", 6)
//
// # Security
//
// Never log WiFi passwords, private keys or certificate bodies.
package logging
