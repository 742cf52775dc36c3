package mqtt

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"strings"
)

const (
	// tlsMinVersion is the minimum TLS version for broker connections.
	tlsMinVersion = tls.VersionTLS12

	// maxTopicLength is the MQTT limit on a UTF-8 topic string.
	maxTopicLength = 65535

	// maxPayloadSize bounds a single publish.
	maxPayloadSize = 1 << 20 // 1MB
)

// BuildTLSConfig parses PEM material into a mutual-TLS client config.
//
// The broker is verified against ca only; the system roots are not used.
// ServerName is left empty so the dialer fills it from the broker host.
func BuildTLSConfig(ca, cert, key []byte) (*tls.Config, error) {
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(ca) {
		return nil, fmt.Errorf("%w: no CA certificate found in PEM", ErrTLSMaterial)
	}

	pair, err := tls.X509KeyPair(cert, key)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTLSMaterial, err)
	}

	return &tls.Config{
		MinVersion:   tlsMinVersion,
		RootCAs:      pool,
		Certificates: []tls.Certificate{pair},
	}, nil
}

// ValidateTopic checks that topic is usable for publishing.
func ValidateTopic(topic string) error {
	if topic == "" {
		return fmt.Errorf("%w: empty", ErrInvalidTopic)
	}
	if len(topic) > maxTopicLength {
		return fmt.Errorf("%w: %d bytes exceeds %d", ErrInvalidTopic, len(topic), maxTopicLength)
	}
	if strings.ContainsAny(topic, "+#\x00") {
		return fmt.Errorf("%w: %q contains a wildcard or NUL", ErrInvalidTopic, topic)
	}
	return nil
}

func validatePublish(topic string, payload []byte) error {
	if err := ValidateTopic(topic); err != nil {
		return err
	}
	if len(payload) > maxPayloadSize {
		return fmt.Errorf("%w: payload size %d exceeds maximum %d bytes", ErrPublishFailed, len(payload), maxPayloadSize)
	}
	return nil
}
