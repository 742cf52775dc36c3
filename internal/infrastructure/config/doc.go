// Package config handles loading and validating sensor node configuration.
//
// This package manages:
//   - Loading configuration from YAML files
//   - Overriding with environment variables
//   - Validation of required fields
//   - Default value handling
//
// Device identity, broker endpoint, topic and WiFi credentials are NOT part
// of this file. They are provisioning artifacts read by the credentials
// package from onboard storage.
//
// Usage:
//
//	cfg, err := config.Load("/etc/sensornode/config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.Network.Interface)
package config
