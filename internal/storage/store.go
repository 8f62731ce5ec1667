package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

const defaultBusyTimeout = 5000

// Store wraps the SQLite handle behind the transfer log. It records metadata
// for completed transfers only; file content never touches the database.
type Store struct {
	db *sql.DB
}

// TransferRecord is one row of the transfer log.
type TransferRecord struct {
	ID          int64
	Room        string
	UserName    string
	FileName    string
	SizeBytes   int64
	MimeType    string
	TransferMS  int64
	CompletedAt time.Time
}

// NewStore opens the SQLite database at the provided path. Call Close when done.
func NewStore(path string) (*Store, error) {
	if path == "" {
		path = "ghostchat.db"
	}
	db, err := sql.Open("sqlite", buildDSN(path))
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	if _, err := db.Exec(fmt.Sprintf("PRAGMA busy_timeout=%d;", defaultBusyTimeout)); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

// Close releases the underlying DB connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func buildDSN(path string) string {
	switch {
	case strings.HasPrefix(path, "sqlite://"):
		path = path[len("sqlite://"):]
	case strings.HasPrefix(path, "file:"), strings.HasPrefix(path, ":memory:"):
		// already in a form sqlite understands
	default:
		path = "file:" + path
	}
	separator := "?"
	if strings.Contains(path, "?") {
		separator = "&"
	}
	return fmt.Sprintf("%s%s_pragma=busy_timeout=%d", path, separator, defaultBusyTimeout)
}

// Migrate runs the schema creation statements.
func (s *Store) Migrate(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS transfer_log (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			room TEXT NOT NULL,
			username TEXT NOT NULL,
			file_name TEXT NOT NULL,
			size_bytes INTEGER NOT NULL,
			mime_type TEXT NOT NULL DEFAULT '',
			transfer_ms INTEGER NOT NULL DEFAULT 0,
			completed_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);`,
		`CREATE INDEX IF NOT EXISTS idx_transfer_log_room ON transfer_log(room);`,
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()
	for _, stmt := range statements {
		if _, err = tx.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	err = tx.Commit()
	return err
}

// RecordTransfer appends one completed transfer to the log.
func (s *Store) RecordTransfer(ctx context.Context, room, userName, fileName string, sizeBytes int64, mimeType string, transferMS int64) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO transfer_log (room, username, file_name, size_bytes, mime_type, transfer_ms) VALUES (?, ?, ?, ?, ?, ?)`,
		room, userName, fileName, sizeBytes, mimeType, transferMS)
	return err
}

// RecentTransfers returns the newest entries, most recent first.
func (s *Store) RecentTransfers(ctx context.Context, limit int) ([]TransferRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, room, username, file_name, size_bytes, mime_type, transfer_ms, completed_at
		 FROM transfer_log ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var records []TransferRecord
	for rows.Next() {
		var rec TransferRecord
		if err := rows.Scan(&rec.ID, &rec.Room, &rec.UserName, &rec.FileName, &rec.SizeBytes, &rec.MimeType, &rec.TransferMS, &rec.CompletedAt); err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// TransferTotals reports the number of logged transfers and their summed size.
func (s *Store) TransferTotals(ctx context.Context) (count int64, totalBytes int64, err error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(SUM(size_bytes), 0) FROM transfer_log`)
	err = row.Scan(&count, &totalBytes)
	return count, totalBytes, err
}
