package credentials

import "errors"

// Load errors. All of them are boot-fatal: the device cannot open a
// session without a complete credential set.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrStorageUnavailable is returned when the storage backend cannot be mounted
	// or a blob read fails for a reason other than absence.
	ErrStorageUnavailable = errors.New("credentials: storage unavailable")

	// ErrMetadataMissing is returned when the metadata blob is absent or empty.
	ErrMetadataMissing = errors.New("credentials: metadata missing")

	// ErrMetadataMalformed is returned when the metadata blob does not parse
	// or lacks a required field.
	ErrMetadataMalformed = errors.New("credentials: metadata malformed")

	// ErrCertificateMissing is returned when a certificate or key blob is absent or empty.
	ErrCertificateMissing = errors.New("credentials: certificate missing")

	// ErrInvalid is returned by Validate for an incomplete credential set.
	ErrInvalid = errors.New("credentials: invalid")
)
