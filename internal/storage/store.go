package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
)

// Store is the durable symbol table plus index metadata, backed by SQLite.
//
// The database runs in WAL mode so readers keep seeing the previous committed
// snapshot while an extraction run replaces the symbols in one transaction.
// The extraction child and the long-lived service open the same file from
// different processes; the busy timeout serialises their writes.
type Store struct {
	db   *sql.DB
	path string
}

// Open opens (creating if needed) the store at path and ensures the schema.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create store directory: %w", err)
	}

	dsn := fmt.Sprintf("file:%s?_busy_timeout=5000&_journal_mode=WAL&_txlock=immediate&_synchronous=NORMAL", path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to store %s: %w", path, err)
	}

	if err := CreateSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &Store{db: db, path: path}, nil
}

// ReadMetadata opens the store at path read-only and returns its metadata.
// Unlike Open it never creates the file or touches the schema, so it is safe
// for checks that must not mutate anything.
func ReadMetadata(ctx context.Context, path string) (Metadata, error) {
	dsn := fmt.Sprintf("file:%s?mode=ro&_busy_timeout=5000", path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return Metadata{}, fmt.Errorf("failed to open store: %w", err)
	}
	defer db.Close()

	version, err := GetSchemaVersion(db)
	if err != nil {
		return Metadata{}, err
	}
	if version == 0 {
		return Metadata{Status: StatusIdle}, nil
	}

	return (&Store{db: db, path: path}).Metadata(ctx)
}

// Exists reports whether a store file is present at path.
func Exists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}
