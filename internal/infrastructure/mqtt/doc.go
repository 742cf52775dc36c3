// Package mqtt provides the secure broker transports for the sensor node.
//
// This package manages:
//   - Mutual-TLS material parsing (CA, device certificate, private key)
//   - A single clean MQTT session per Connect, no automatic reconnect
//   - QoS 0 publishing of reading batches
//   - Link-drop detection through the client library callbacks
//
// # Transports
//
//	V311Transport  MQTT 3.1.1 via github.com/eclipse/paho.mqtt.golang
//	V5Transport    MQTT 5 via github.com/eclipse/paho.golang
//
// Both satisfy the session package's Transport interface.
//
// # Connect Codes
//
// A failed Connect returns *ConnectError. Its Code is one of:
//
//	-4        no CONNACK within the connect timeout
//	-2        dial, TLS handshake or certificate failure
//	1..5      MQTT 3.1.1 CONNACK refusal
//	0x80..    MQTT 5 CONNACK reason code
//
// # Security Considerations
//
//   - TLS 1.2 is the minimum; the broker is verified against the
//     provisioned CA only
//   - The private key never leaves the tls.Config
//
// # Usage
//
//	tr := mqtt.NewV311Transport(mqtt.Options{})
//	if err := tr.InstallTLS(ca, cert, key); err != nil {
//	    return err
//	}
//	if err := tr.Connect(endpoint, 8883, thingName); err != nil {
//	    var ce *mqtt.ConnectError
//	    if errors.As(err, &ce) {
//	        log.Warn("broker refused", "code", ce.Code)
//	    }
//	}
package mqtt
