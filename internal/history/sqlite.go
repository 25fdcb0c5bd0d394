// Package history persists a log of pushes so past operations can be
// inspected after the fact.
package history

import (
	"database/sql"
	"fmt"
	"time"

	"hubsync/internal/history/migrations"
	"hubsync/internal/hub"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// SQLiteHistory implements hub.History using SQLite.
type SQLiteHistory struct {
	db   *sql.DB
	path string
}

// NewSQLiteHistory opens (creating and migrating if needed) a push-history
// database. path can be a file path or ":memory:".
func NewSQLiteHistory(path string) (*SQLiteHistory, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("opening history database: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}

	if err := migrations.MigrateUp(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrating history database: %w", err)
	}

	return &SQLiteHistory{db: db, path: path}, nil
}

// Begin records the start of a push and returns its row ID.
func (h *SQLiteHistory) Begin(operation string, startedAt time.Time) (int64, error) {
	res, err := h.db.Exec(
		`INSERT INTO pushes (operation, started_at, status) VALUES (?, ?, 'running')`,
		operation, startedAt,
	)
	if err != nil {
		return 0, fmt.Errorf("recording push start: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("reading push id: %w", err)
	}
	return id, nil
}

// Finish completes a previously begun record.
func (h *SQLiteHistory) Finish(id int64, finishedAt time.Time, status string, filesUploaded int64, errMsg string) error {
	_, err := h.db.Exec(
		`UPDATE pushes SET finished_at = ?, status = ?, files_uploaded = ?, error = ? WHERE id = ?`,
		finishedAt, status, filesUploaded, errMsg, id,
	)
	if err != nil {
		return fmt.Errorf("recording push finish: %w", err)
	}
	return nil
}

// List returns the most recent records, newest first.
func (h *SQLiteHistory) List(limit int) ([]hub.PushRecord, error) {
	rows, err := h.db.Query(
		`SELECT id, operation, started_at, finished_at, status, files_uploaded, error
		 FROM pushes ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing pushes: %w", err)
	}
	defer rows.Close()

	var records []hub.PushRecord
	for rows.Next() {
		var rec hub.PushRecord
		var finished sql.NullTime
		if err := rows.Scan(&rec.ID, &rec.Operation, &rec.StartedAt, &finished,
			&rec.Status, &rec.FilesUploaded, &rec.Error); err != nil {
			return nil, fmt.Errorf("scanning push record: %w", err)
		}
		if finished.Valid {
			rec.FinishedAt = finished.Time
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading push records: %w", err)
	}
	return records, nil
}

// Path returns the database file path (or ":memory:").
func (h *SQLiteHistory) Path() string { return h.path }

// Close closes the database connection.
func (h *SQLiteHistory) Close() error {
	if h.db != nil {
		return h.db.Close()
	}
	return nil
}

// Compile-time check that SQLiteHistory implements hub.History.
var _ hub.History = (*SQLiteHistory)(nil)
