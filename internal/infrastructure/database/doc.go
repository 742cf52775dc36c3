// Package database opens the SQLite provisioning image.
//
// Factory images may carry the device's provisioning artifacts in a single
// SQLite file instead of loose files. The device opens that file read-only
// and checks it with PRAGMA quick_check; factory tooling opens it writable
// and applies the embedded schema. The schema version lives in the file's
// own PRAGMA user_version.
//
// Security Considerations:
//   - All queries use parameterised statements
//   - Writable images are chmod 0600 (owner read/write only)
//   - The file holds a private key; keep it on an encrypted partition
//
// Usage:
//
//	db, err := database.Open(database.Config{Path: path, ReadOnly: true})
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
package database
