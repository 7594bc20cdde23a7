package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	sq "github.com/Masterminds/squirrel"
)

// Status is the lifecycle state of the project index.
type Status string

const (
	StatusIdle      Status = "idle"
	StatusIndexing  Status = "indexing"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

const (
	keyStatus         = "status"
	keyIndexStartTime = "index_start_time"
	keyLastIndexed    = "last_indexed"
	keySymbolCount    = "symbol_count"
	keyFileCount      = "file_count"
	keyErrorMessage   = "error_message"
	keyRunID          = "run_id"
	keySchemaVersion  = "schema_version"
)

// Metadata is the singleton index metadata row, decoded from the key/value
// metadata table.
//
// Status == StatusIndexing implies IndexStartTime is set.
type Metadata struct {
	Status         Status
	IndexStartTime time.Time
	LastIndexed    time.Time
	SymbolCount    int
	FileCount      int
	ErrorMessage   string // only when Status == StatusFailed
	RunID          string
	SchemaVersion  int
}

// Elapsed returns how long the current run has been going.
func (m Metadata) Elapsed(now time.Time) time.Duration {
	if m.Status != StatusIndexing || m.IndexStartTime.IsZero() {
		return 0
	}
	return now.Sub(m.IndexStartTime)
}

// HasSnapshot reports whether a completed run has ever been committed.
func (m Metadata) HasSnapshot() bool {
	return !m.LastIndexed.IsZero()
}

// Metadata reads the index metadata.
func (s *Store) Metadata(ctx context.Context) (Metadata, error) {
	rows, err := sq.Select("key", "value").
		From("metadata").
		RunWith(s.db).
		QueryContext(ctx)
	if err != nil {
		return Metadata{}, fmt.Errorf("failed to query metadata: %w", err)
	}
	defer rows.Close()

	values := make(map[string]string)
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return Metadata{}, fmt.Errorf("failed to scan metadata: %w", err)
		}
		values[key] = value
	}
	if err := rows.Err(); err != nil {
		return Metadata{}, fmt.Errorf("failed to read metadata: %w", err)
	}

	return decodeMetadata(values), nil
}

func decodeMetadata(values map[string]string) Metadata {
	m := Metadata{
		Status:       Status(values[keyStatus]),
		ErrorMessage: values[keyErrorMessage],
		RunID:        values[keyRunID],
	}
	if m.Status == "" {
		m.Status = StatusIdle
	}
	m.IndexStartTime = parseTime(values[keyIndexStartTime])
	m.LastIndexed = parseTime(values[keyLastIndexed])
	m.SymbolCount, _ = strconv.Atoi(values[keySymbolCount])
	m.FileCount, _ = strconv.Atoi(values[keyFileCount])
	m.SchemaVersion, _ = strconv.Atoi(values[keySchemaVersion])
	return m
}

func parseTime(value string) time.Time {
	if value == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}
	}
	return t
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

// BeginRun marks the index as indexing for runID, starting at start.
func (s *Store) BeginRun(ctx context.Context, runID string, start time.Time) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		return setMetadata(tx, map[string]string{
			keyStatus:         string(StatusIndexing),
			keyIndexStartTime: formatTime(start),
			keyRunID:          runID,
			keyErrorMessage:   "",
		})
	})
}

// FailRun marks the run as failed with message, but only while the index is
// still indexing and, when runID is non-empty, only for that run. It reports
// whether the status was changed, so a late call never overwrites a newer
// completed run.
func (s *Store) FailRun(ctx context.Context, runID, message string) (bool, error) {
	applied := false
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var status, current string
		if err := tx.QueryRowContext(ctx, "SELECT value FROM metadata WHERE key = ?", keyStatus).Scan(&status); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil
			}
			return fmt.Errorf("failed to read status: %w", err)
		}
		if Status(status) != StatusIndexing {
			return nil
		}
		if runID != "" {
			err := tx.QueryRowContext(ctx, "SELECT value FROM metadata WHERE key = ?", keyRunID).Scan(&current)
			if err != nil && !errors.Is(err, sql.ErrNoRows) {
				return fmt.Errorf("failed to read run id: %w", err)
			}
			if current != runID {
				return nil
			}
		}

		applied = true
		return setMetadata(tx, map[string]string{
			keyStatus:       string(StatusFailed),
			keyErrorMessage: message,
		})
	})
	return applied, err
}

// FailRunUnconditionally records a failure regardless of the current status.
// Used by the extraction child, which owns the run it is reporting on.
func (s *Store) FailRunUnconditionally(ctx context.Context, runID, message string) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		return setMetadata(tx, map[string]string{
			keyStatus:       string(StatusFailed),
			keyErrorMessage: message,
			keyRunID:        runID,
		})
	})
}

func (s *Store) withTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
