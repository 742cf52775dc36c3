package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

const (
	dirPermissions  = 0750
	filePermissions = 0600

	msPerSecond = 1000

	// openTimeout bounds the checks performed by Open.
	openTimeout = 5 * time.Second
)

// DB is an open provisioning image.
type DB struct {
	*sql.DB
	readOnly bool
}

// Config contains database configuration options.
type Config struct {
	// Path is the filesystem path to the SQLite image.
	Path string

	// BusyTimeout is the maximum time to wait for a database lock (seconds).
	BusyTimeout int

	// ReadOnly opens an existing image without write access and verifies
	// its integrity. This is how the device opens it. Writable opens
	// create the file and its directory as needed.
	ReadOnly bool
}

// Open opens the image at cfg.Path.
//
// Read-only opens fail with ErrImageMissing when there is no file and with
// ErrCorrupt when SQLite's quick_check reports damage.
func Open(cfg Config) (*DB, error) {
	if cfg.ReadOnly {
		if _, err := os.Stat(cfg.Path); errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrImageMissing, cfg.Path)
		} else if err != nil {
			return nil, fmt.Errorf("stat %s: %w", cfg.Path, err)
		}
	} else if err := os.MkdirAll(filepath.Dir(cfg.Path), dirPermissions); err != nil {
		return nil, fmt.Errorf("creating image directory: %w", err)
	}

	// See: https://github.com/mattn/go-sqlite3#connection-string
	dsn := fmt.Sprintf("file:%s?_busy_timeout=%d", dsnPath(cfg.Path), cfg.BusyTimeout*msPerSecond)
	if cfg.ReadOnly {
		dsn += "&mode=ro"
	} else {
		dsn += "&_journal_mode=DELETE&_synchronous=FULL"
	}

	sqlDB, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening image: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)

	db := &DB{DB: sqlDB, readOnly: cfg.ReadOnly}

	ctx, cancel := context.WithTimeout(context.Background(), openTimeout)
	defer cancel()

	if cfg.ReadOnly {
		err = db.quickCheck(ctx)
	} else {
		err = db.PingContext(ctx)
	}
	if err != nil {
		sqlDB.Close() //nolint:errcheck // Best effort cleanup on error path
		return nil, err
	}

	if !cfg.ReadOnly {
		_ = os.Chmod(cfg.Path, filePermissions) //nolint:errcheck // File may not exist until first write
	}
	return db, nil
}

func (db *DB) quickCheck(ctx context.Context) error {
	var result string
	if err := db.QueryRowContext(ctx, "PRAGMA quick_check").Scan(&result); err != nil {
		return fmt.Errorf("%w: %w", ErrCorrupt, err)
	}
	if result != "ok" {
		return fmt.Errorf("%w: %s", ErrCorrupt, result)
	}
	return nil
}

// Close closes the image. Safe on a nil or already closed DB.
func (db *DB) Close() error {
	if db == nil || db.DB == nil {
		return nil
	}
	err := db.DB.Close()
	db.DB = nil
	if err != nil {
		return fmt.Errorf("closing image: %w", err)
	}
	return nil
}

// TableExists reports whether the named table is present.
func (db *DB) TableExists(ctx context.Context, name string) (bool, error) {
	var count int
	err := db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?", name,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("checking table %s: %w", name, err)
	}
	return count > 0, nil
}

// dsnPath percent-encodes path for a file: URI so that '?', '#' and '%'
// in the filename are not read as URI syntax.
func dsnPath(path string) string {
	return (&url.URL{Path: path}).EscapedPath()
}
