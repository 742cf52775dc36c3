package database

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strconv"
	"strings"
)

// Schema steps are NNNN_description.sql. The image records the last step
// applied in PRAGMA user_version, so the file carries its own version and
// needs no bookkeeping table.
//
//go:embed schema/*.sql
var schemaFS embed.FS

const schemaDir = "schema"

type schemaStep struct {
	version int
	name    string
	sql     string
}

// SchemaVersion returns the image's recorded schema version.
func (db *DB) SchemaVersion(ctx context.Context) (int, error) {
	var v int
	if err := db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&v); err != nil {
		return 0, fmt.Errorf("reading schema version: %w", err)
	}
	return v, nil
}

// Migrate brings a writable image up to the embedded schema. Each step runs
// in its own transaction together with the version bump. An image already
// past the newest step is rejected with ErrSchemaTooNew.
func (db *DB) Migrate(ctx context.Context) error {
	steps, err := loadSchema(schemaFS, schemaDir)
	if err != nil {
		return fmt.Errorf("loading schema: %w", err)
	}
	return db.apply(ctx, steps)
}

// CheckSchema verifies a read-only image is one this build can read.
func (db *DB) CheckSchema(ctx context.Context) error {
	steps, err := loadSchema(schemaFS, schemaDir)
	if err != nil {
		return fmt.Errorf("loading schema: %w", err)
	}
	current, err := db.SchemaVersion(ctx)
	if err != nil {
		return err
	}
	if latest := steps[len(steps)-1].version; current > latest {
		return fmt.Errorf("%w: image v%d, supported v%d", ErrSchemaTooNew, current, latest)
	}
	return nil
}

func (db *DB) apply(ctx context.Context, steps []schemaStep) error {
	current, err := db.SchemaVersion(ctx)
	if err != nil {
		return err
	}
	if n := len(steps); n > 0 && current > steps[n-1].version {
		return fmt.Errorf("%w: image v%d, supported v%d", ErrSchemaTooNew, current, steps[n-1].version)
	}

	for _, s := range steps {
		if s.version <= current {
			continue
		}
		if err := db.applyStep(ctx, s); err != nil {
			return fmt.Errorf("applying schema step %04d (%s): %w", s.version, s.name, err)
		}
	}
	return nil
}

func (db *DB) applyStep(ctx context.Context, s schemaStep) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // Rollback is no-op after commit

	if _, err := tx.ExecContext(ctx, s.sql); err != nil {
		return fmt.Errorf("executing SQL: %w", err)
	}
	// PRAGMA does not accept bound parameters; version is an int we parsed.
	if _, err := tx.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", s.version)); err != nil {
		return fmt.Errorf("recording version: %w", err)
	}
	return tx.Commit()
}

// loadSchema reads the schema steps from fsys in version order. Versions
// must run 1, 2, 3... without gaps.
func loadSchema(fsys fs.FS, dir string) ([]schemaStep, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, err
	}

	var steps []schemaStep
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		version, name, ok := parseStepFilename(entry.Name())
		if !ok {
			continue
		}
		body, err := fs.ReadFile(fsys, path.Join(dir, entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", entry.Name(), err)
		}
		steps = append(steps, schemaStep{version: version, name: name, sql: string(body)})
	}

	sort.Slice(steps, func(i, j int) bool { return steps[i].version < steps[j].version })
	for i, s := range steps {
		if s.version != i+1 {
			return nil, fmt.Errorf("schema step %04d out of sequence, expected %04d", s.version, i+1)
		}
	}
	if len(steps) == 0 {
		return nil, fmt.Errorf("no schema steps in %s", dir)
	}
	return steps, nil
}

// parseStepFilename splits "0001_provisioning_blobs.sql" into
// (1, "provisioning_blobs", true).
func parseStepFilename(filename string) (int, string, bool) {
	base, found := strings.CutSuffix(filename, ".sql")
	if !found {
		return 0, "", false
	}
	num, name, found := strings.Cut(base, "_")
	if !found || name == "" {
		return 0, "", false
	}
	version, err := strconv.Atoi(num)
	if err != nil || version < 1 {
		return 0, "", false
	}
	return version, name, true
}
