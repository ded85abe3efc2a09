package manifest

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS manifest (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    subject TEXT NOT NULL,
    performance TEXT NOT NULL,
    status TEXT NOT NULL,
    cameras_extracted INTEGER NOT NULL DEFAULT 0,
    frames INTEGER NOT NULL DEFAULT 0,
    total_bytes INTEGER NOT NULL DEFAULT 0,
    anno_bytes INTEGER NOT NULL DEFAULT 0,
    raw_bytes INTEGER NOT NULL DEFAULT 0,
    run_id TEXT,
    updated_at TEXT NOT NULL,
    error_message TEXT,
    UNIQUE(subject, performance)
);
CREATE INDEX IF NOT EXISTS idx_manifest_status ON manifest(status);
`

const recordColumns = `subject, performance, status, cameras_extracted, frames,
    total_bytes, anno_bytes, raw_bytes, run_id, updated_at, error_message`

// Store manages manifest persistence backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// Open initializes or connects to the manifest database.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("ensure manifest directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=FULL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &Store{db: db, path: path}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string { return s.path }

// Upsert writes a record, replacing any existing row for the same
// (subject, performance). The write is durable once Upsert returns.
func (s *Store) Upsert(ctx context.Context, record *Record) error {
	if record == nil {
		return errors.New("record is nil")
	}
	record.UpdatedAt = time.Now().UTC()
	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO manifest (`+recordColumns+`)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
         ON CONFLICT(subject, performance) DO UPDATE SET
             status = excluded.status,
             cameras_extracted = excluded.cameras_extracted,
             frames = excluded.frames,
             total_bytes = excluded.total_bytes,
             anno_bytes = excluded.anno_bytes,
             raw_bytes = excluded.raw_bytes,
             run_id = excluded.run_id,
             updated_at = excluded.updated_at,
             error_message = excluded.error_message`,
		record.Subject,
		record.Performance,
		string(record.Status),
		record.CamerasExtracted,
		record.Frames,
		record.TotalBytes,
		record.AnnoBytes,
		record.RawBytes,
		nullableString(record.RunID),
		record.UpdatedAt.Format(time.RFC3339Nano),
		nullableString(record.ErrorMessage),
	)
	if err != nil {
		return fmt.Errorf("upsert manifest row: %w", err)
	}
	return nil
}

// Get fetches the row for a (subject, performance) key, or nil when absent.
func (s *Store) Get(ctx context.Context, subject, performance string) (*Record, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT `+recordColumns+` FROM manifest WHERE subject = ? AND performance = ?`,
		subject, performance,
	)
	record, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get manifest row: %w", err)
	}
	return record, nil
}

// List returns all rows ordered by subject then performance.
func (s *Store) List(ctx context.Context) ([]*Record, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT `+recordColumns+` FROM manifest ORDER BY subject, performance`,
	)
	if err != nil {
		return nil, fmt.Errorf("list manifest rows: %w", err)
	}
	defer rows.Close()

	var records []*Record
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan manifest row: %w", err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate manifest rows: %w", err)
	}
	return records, nil
}

// Aggregate computes summary statistics over all rows.
func (s *Store) Aggregate(ctx context.Context) (Stats, error) {
	records, err := s.List(ctx)
	if err != nil {
		return Stats{}, err
	}
	var stats Stats
	for _, record := range records {
		stats.Total++
		stats.TotalBytes += record.TotalBytes
		switch record.Status {
		case StatusCompleted:
			stats.Completed++
		case StatusFailed:
			stats.Failed++
		case StatusDownloadFailed:
			stats.DownloadFailed++
		default:
			stats.InProgress++
		}
	}
	return stats, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(scanner rowScanner) (*Record, error) {
	var (
		record    Record
		status    string
		runID     sql.NullString
		updatedAt string
		errMsg    sql.NullString
	)
	if err := scanner.Scan(
		&record.Subject,
		&record.Performance,
		&status,
		&record.CamerasExtracted,
		&record.Frames,
		&record.TotalBytes,
		&record.AnnoBytes,
		&record.RawBytes,
		&runID,
		&updatedAt,
		&errMsg,
	); err != nil {
		return nil, err
	}
	record.Status = Status(status)
	record.RunID = runID.String
	record.ErrorMessage = errMsg.String
	if parsed, err := time.Parse(time.RFC3339Nano, updatedAt); err == nil {
		record.UpdatedAt = parsed
	}
	return &record, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}
