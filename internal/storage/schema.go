package storage

import (
	"database/sql"
	"fmt"
	"strconv"
	"time"

	"github.com/mvp-joe/repo-map/internal/indexer/extraction"
)

// CreateSchema creates the symbols and metadata tables and their indexes.
// Uses a transaction so schema creation succeeds or fails as a whole.
//
// If the database was written by a different schema version the symbols table
// is dropped and recreated; metadata survives so status history is kept.
func CreateSchema(db *sql.DB) error {
	version, err := GetSchemaVersion(db)
	if err != nil {
		return err
	}

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin schema transaction: %w", err)
	}
	defer tx.Rollback() // Safe to call even after commit

	if version != 0 && version != extraction.SchemaVersion {
		if _, err := tx.Exec("DROP TABLE IF EXISTS symbols"); err != nil {
			return fmt.Errorf("failed to drop outdated symbols table: %w", err)
		}
	}

	tables := []struct {
		name string
		ddl  string
	}{
		{"symbols", createSymbolsTable},
		{"metadata", createMetadataTable},
	}
	for _, table := range tables {
		if _, err := tx.Exec(table.ddl); err != nil {
			return fmt.Errorf("failed to create %s table: %w", table.name, err)
		}
	}

	for i, idx := range getAllIndexes() {
		if _, err := tx.Exec(idx); err != nil {
			return fmt.Errorf("failed to create index %d: %w", i+1, err)
		}
	}

	if version != extraction.SchemaVersion {
		if err := setMetadata(tx, map[string]string{
			keySchemaVersion: strconv.Itoa(extraction.SchemaVersion),
		}); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit schema transaction: %w", err)
	}
	return nil
}

// GetSchemaVersion returns the schema version recorded in metadata, or 0 for
// a new database.
func GetSchemaVersion(db *sql.DB) (int, error) {
	var tableExists int
	err := db.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='metadata'").Scan(&tableExists)
	if err != nil {
		return 0, fmt.Errorf("failed to check metadata existence: %w", err)
	}
	if tableExists == 0 {
		return 0, nil
	}

	var value string
	err = db.QueryRow("SELECT value FROM metadata WHERE key = ?", keySchemaVersion).Scan(&value)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to query schema version: %w", err)
	}

	version, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid schema version %q: %w", value, err)
	}
	return version, nil
}

// setMetadata upserts key/value pairs inside tx.
func setMetadata(tx *sql.Tx, values map[string]string) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	stmt, err := tx.Prepare(`
		INSERT INTO metadata (key, value, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			value = excluded.value,
			updated_at = excluded.updated_at
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare metadata upsert: %w", err)
	}
	defer stmt.Close()

	for key, value := range values {
		if _, err := stmt.Exec(key, value, now); err != nil {
			return fmt.Errorf("failed to write metadata %s: %w", key, err)
		}
	}
	return nil
}

// Table DDL constants

const createSymbolsTable = `
CREATE TABLE IF NOT EXISTS symbols (
    id INTEGER PRIMARY KEY AUTOINCREMENT,       -- Synthetic row id
    name TEXT NOT NULL,
    kind TEXT NOT NULL,                         -- class, function, method
    signature TEXT NOT NULL DEFAULT '',
    doc_summary TEXT,                           -- First doc line (NULL when undocumented)
    file_path TEXT NOT NULL,                    -- Relative to the indexed root
    line_number INTEGER NOT NULL,               -- 1-based
    end_line_number INTEGER,                    -- NULL when unknown
    parent TEXT,                                -- Enclosing class for methods
    language TEXT NOT NULL DEFAULT ''
)
`

const createMetadataTable = `
CREATE TABLE IF NOT EXISTS metadata (
    key TEXT PRIMARY KEY,
    value TEXT NOT NULL,
    updated_at TEXT NOT NULL                    -- ISO 8601
)
`

func getAllIndexes() []string {
	return []string{
		"CREATE INDEX IF NOT EXISTS idx_symbols_name ON symbols(name)",
		"CREATE INDEX IF NOT EXISTS idx_symbols_file ON symbols(file_path, line_number)",
		"CREATE INDEX IF NOT EXISTS idx_symbols_parent ON symbols(parent, name)",
	}
}
