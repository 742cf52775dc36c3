package credentials

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/nerrad567/gray-logic-sensornode/internal/infrastructure/database"
)

const blobTable = "provisioning_blobs"

// SQLiteBackend reads blobs from a provisioning image produced at the
// factory. The device opens the image read-only.
type SQLiteBackend struct {
	cfg database.Config
	db  *database.DB
}

// NewSQLiteBackend creates a backend for the image at path. Nothing is
// opened until Mount.
func NewSQLiteBackend(path string, busyTimeout int) *SQLiteBackend {
	return &SQLiteBackend{
		cfg: database.Config{
			Path:        path,
			BusyTimeout: busyTimeout,
			ReadOnly:    true,
		},
	}
}

// Mount opens the image and checks its integrity, schema version and blob
// table.
// Calling Mount again after a successful mount is a no-op.
func (b *SQLiteBackend) Mount(ctx context.Context) error {
	if b.db != nil {
		return nil
	}

	db, err := database.Open(b.cfg)
	if err != nil {
		return err
	}

	if err := db.CheckSchema(ctx); err != nil {
		db.Close() //nolint:errcheck // Best effort cleanup on error path
		return err
	}

	ok, err := db.TableExists(ctx, blobTable)
	if err != nil {
		db.Close() //nolint:errcheck // Best effort cleanup on error path
		return err
	}
	if !ok {
		db.Close() //nolint:errcheck // Best effort cleanup on error path
		return fmt.Errorf("%s: image has no %s table", b.cfg.Path, blobTable)
	}

	b.db = db
	return nil
}

// ReadBlob returns the stored bytes for name, or nil if no row exists.
func (b *SQLiteBackend) ReadBlob(ctx context.Context, name string) ([]byte, error) {
	if b.db == nil {
		return nil, errors.New("sqlite backend not mounted")
	}

	var data []byte
	err := b.db.QueryRowContext(ctx,
		"SELECT data FROM "+blobTable+" WHERE name = ?", name,
	).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading blob %s: %w", name, err)
	}
	return data, nil
}

// Close releases the image.
func (b *SQLiteBackend) Close() error {
	if b.db == nil {
		return nil
	}
	err := b.db.Close()
	b.db = nil
	return err
}

// WriteImage creates or updates a provisioning image at path with the
// given blobs. It is the factory side of SQLiteBackend and is used for
// bench images and tests; devices never call it.
func WriteImage(ctx context.Context, path string, blobs map[string][]byte) error {
	db, err := database.Open(database.Config{Path: path, BusyTimeout: 5})
	if err != nil {
		return err
	}
	defer db.Close() //nolint:errcheck // Close error is irrelevant after commit

	if err := db.Migrate(ctx); err != nil {
		return fmt.Errorf("migrating image: %w", err)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback() //nolint:errcheck // Rollback is no-op after commit

	now := time.Now().UTC().Format(time.RFC3339)
	for name, data := range blobs {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO "+blobTable+" (name, data, updated_at) VALUES (?, ?, ?) "+
				"ON CONFLICT(name) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at",
			name, data, now,
		); err != nil {
			return fmt.Errorf("writing blob %s: %w", name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing image: %w", err)
	}
	return nil
}
