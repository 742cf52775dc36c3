package database

import "errors"

var (
	// ErrImageMissing indicates a read-only open found no file at the path.
	ErrImageMissing = errors.New("database: image file missing")

	// ErrCorrupt indicates the image failed SQLite's integrity check.
	ErrCorrupt = errors.New("database: image failed integrity check")

	// ErrSchemaTooNew indicates the image was written by newer factory
	// tooling than this build understands.
	ErrSchemaTooNew = errors.New("database: image schema newer than supported")
)
