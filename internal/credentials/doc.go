// Package credentials loads the device's provisioning artifacts.
//
// A provisioned node carries four blobs in onboard storage:
//
//	metadata           JSON: thingName, awsIotEndpoint, gatewayTopic, userId, SSID, WiFiPassword
//	caCertificate      broker CA (PEM)
//	deviceCertificate  device certificate (PEM)
//	privateKey         device private key (PEM)
//
// Store.Load reads all of them through a Backend and returns a complete
// Credentials value or an error; it never returns a partial set. PEM bodies
// are checked for presence only. A malformed certificate fails later, at
// the TLS handshake.
//
// Backends:
//   - DirBackend: one file per blob in a directory (flash filesystem layout)
//   - SQLiteBackend: a read-only SQLite provisioning image
//
// # Usage
//
//	store := credentials.NewStore(credentials.NewDirBackend("/data/provisioning", credentials.DirLayout{}))
//	creds, err := store.Load(ctx)
//	if err != nil {
//	    return fmt.Errorf("loading credentials: %w", err)
//	}
package credentials
