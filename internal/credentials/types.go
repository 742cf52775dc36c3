package credentials

import (
	"fmt"
	"strings"
)

// Blob names consumed from the storage backend.
const (
	BlobMetadata          = "metadata"
	BlobCACertificate     = "caCertificate"
	BlobDeviceCertificate = "deviceCertificate"
	BlobPrivateKey        = "privateKey"
)

// Credentials is the bundle of identity and connection secrets needed to
// reach the broker. It is created once by Store.Load and never mutated;
// consumers hold a pointer to it for the life of the process.
type Credentials struct {
	IdentityName    string
	BrokerEndpoint  string
	PublishTopic    string
	OwnerID         string
	NetworkSSID     string
	NetworkPassword string

	CACertificatePEM     string
	DeviceCertificatePEM string
	PrivateKeyPEM        string
}

// Validate reports whether every field is present. PEM bodies are only
// checked for presence; their format is verified by the TLS handshake.
func (c *Credentials) Validate() error {
	if c == nil {
		return fmt.Errorf("%w: nil credentials", ErrInvalid)
	}

	fields := []struct {
		name  string
		value string
	}{
		{"identityName", c.IdentityName},
		{"brokerEndpoint", c.BrokerEndpoint},
		{"publishTopic", c.PublishTopic},
		{"ownerId", c.OwnerID},
		{"networkSsid", c.NetworkSSID},
		{"networkPassword", c.NetworkPassword},
		{"caCertificatePem", c.CACertificatePEM},
		{"deviceCertificatePem", c.DeviceCertificatePEM},
		{"privateKeyPem", c.PrivateKeyPEM},
	}

	var missing []string
	for _, f := range fields {
		if strings.TrimSpace(f.value) == "" {
			missing = append(missing, f.name)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing %s", ErrInvalid, strings.Join(missing, ", "))
	}

	return nil
}

// metadata is the schema of the metadata blob. Keys match the file written
// by the device factory tool; any other keys in that file are ignored.
type metadata struct {
	ThingName      string `json:"thingName"`
	AWSIoTEndpoint string `json:"awsIotEndpoint"`
	GatewayTopic   string `json:"gatewayTopic"`
	UserID         string `json:"userId"`
	SSID           string `json:"SSID"`
	WiFiPassword   string `json:"WiFiPassword"`
}

// missingFields lists the JSON keys that are absent or blank.
func (m metadata) missingFields() []string {
	var missing []string
	check := func(key, value string) {
		if strings.TrimSpace(value) == "" {
			missing = append(missing, key)
		}
	}
	check("thingName", m.ThingName)
	check("awsIotEndpoint", m.AWSIoTEndpoint)
	check("gatewayTopic", m.GatewayTopic)
	check("userId", m.UserID)
	check("SSID", m.SSID)
	check("WiFiPassword", m.WiFiPassword)
	return missing
}
