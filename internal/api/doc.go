// Package api provides the node's local diagnostics HTTP endpoint.
//
// It is read-only and off by default. When enabled it serves:
//
//	GET /api/v1/health   liveness and build version
//	GET /api/v1/status   session state, WiFi channel, last connect code and
//	                     publish counters (503 while not connected)
//
// The server follows the same lifecycle pattern as other infrastructure components:
//
//	server, err := api.New(deps)
//	server.Start(ctx)
//	defer server.Close()
//
// Thread Safety: All methods are safe for concurrent use from multiple goroutines.
package api
