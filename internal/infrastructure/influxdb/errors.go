package influxdb

import "errors"

// Sentinel errors for the telemetry mirror. Check with errors.Is.
var (
	// ErrDisabled is returned by Open when the mirror is switched off.
	// Callers treat it as "run without a mirror", not as a failure.
	ErrDisabled = errors.New("influxdb: mirror disabled")

	// ErrConnectionFailed indicates the server did not answer the ping in Open.
	ErrConnectionFailed = errors.New("influxdb: connection failed")

	// ErrNotConnected indicates the mirror has been closed.
	ErrNotConnected = errors.New("influxdb: mirror closed")

	// ErrWriteFailed wraps asynchronous write errors passed to the
	// SetOnError callback.
	ErrWriteFailed = errors.New("influxdb: write failed")
)
