package credentials

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// Backend is the persistent storage holding provisioning artifacts.
//
// ReadBlob returns (nil, nil) when the named blob does not exist; any
// other failure is returned as an error.
type Backend interface {
	Mount(ctx context.Context) error
	ReadBlob(ctx context.Context, name string) ([]byte, error)
}

// Logger defines the logging interface for the store.
type Logger interface {
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Info(string, ...any) {}
func (noopLogger) Warn(string, ...any) {}

// Store loads and validates credentials from a Backend.
type Store struct {
	backend Backend
	logger  Logger
}

// NewStore creates a Store reading from backend.
func NewStore(backend Backend) *Store {
	return &Store{
		backend: backend,
		logger:  noopLogger{},
	}
}

// SetLogger sets the logger used for load progress.
func (s *Store) SetLogger(logger Logger) {
	if logger == nil {
		logger = noopLogger{}
	}
	s.logger = logger
}

// Load mounts the backend and reads the complete credential set.
//
// Load is all-or-nothing: on any error the returned Credentials is nil.
//
// Returns:
//   - ErrStorageUnavailable: mount or read failure
//   - ErrMetadataMissing: metadata blob absent or empty
//   - ErrMetadataMalformed: metadata does not parse or lacks a field
//   - ErrCertificateMissing: a certificate or key blob is absent or empty
func (s *Store) Load(ctx context.Context) (*Credentials, error) {
	if err := s.backend.Mount(ctx); err != nil {
		s.logger.Warn("storage mount failed", "error", err)
		return nil, fmt.Errorf("%w: %w", ErrStorageUnavailable, err)
	}

	meta, err := s.loadMetadata(ctx)
	if err != nil {
		return nil, err
	}
	s.logger.Info("metadata loaded", "identity", meta.ThingName, "topic", meta.GatewayTopic)

	pems := make(map[string]string, 3)
	for _, name := range []string{BlobCACertificate, BlobDeviceCertificate, BlobPrivateKey} {
		data, err := s.read(ctx, name)
		if err != nil {
			return nil, err
		}
		if len(bytes.TrimSpace(data)) == 0 {
			s.logger.Warn("certificate blob missing or empty", "blob", name)
			return nil, fmt.Errorf("%w: %s", ErrCertificateMissing, name)
		}
		pems[name] = string(data)
	}
	s.logger.Info("certificates loaded")

	creds := &Credentials{
		IdentityName:         meta.ThingName,
		BrokerEndpoint:       meta.AWSIoTEndpoint,
		PublishTopic:         meta.GatewayTopic,
		OwnerID:              meta.UserID,
		NetworkSSID:          meta.SSID,
		NetworkPassword:      meta.WiFiPassword,
		CACertificatePEM:     pems[BlobCACertificate],
		DeviceCertificatePEM: pems[BlobDeviceCertificate],
		PrivateKeyPEM:        pems[BlobPrivateKey],
	}
	if err := creds.Validate(); err != nil {
		return nil, err
	}

	return creds, nil
}

func (s *Store) loadMetadata(ctx context.Context) (metadata, error) {
	data, err := s.read(ctx, BlobMetadata)
	if err != nil {
		return metadata{}, err
	}
	if len(bytes.TrimSpace(data)) == 0 {
		s.logger.Warn("metadata missing or empty")
		return metadata{}, ErrMetadataMissing
	}

	var meta metadata
	if err := json.Unmarshal(data, &meta); err != nil {
		s.logger.Warn("metadata invalid", "error", err)
		return metadata{}, fmt.Errorf("%w: %w", ErrMetadataMalformed, err)
	}
	if missing := meta.missingFields(); len(missing) > 0 {
		s.logger.Warn("metadata incomplete", "missing", missing)
		return metadata{}, fmt.Errorf("%w: missing %s", ErrMetadataMalformed, strings.Join(missing, ", "))
	}

	return meta, nil
}

func (s *Store) read(ctx context.Context, name string) ([]byte, error) {
	data, err := s.backend.ReadBlob(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("%w: reading %s: %w", ErrStorageUnavailable, name, err)
	}
	return data, nil
}
