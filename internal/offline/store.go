// Package offline is the client-side capture queue. Links are written to a
// local SQLite file first and flushed to the ingestion endpoint when the
// server is reachable.
package offline

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

var ErrInvalidEntry = errors.New("url and device id are required")

type Entry struct {
	ID         int64     `json:"id"`
	URL        string    `json:"url"`
	DeviceID   string    `json:"deviceId"`
	EnqueuedAt time.Time `json:"enqueuedAt"`
}

// Store persists entries in enqueue order.
type Store struct {
	db   *sql.DB
	path string
}

// Open creates or opens queue.db inside dir.
func Open(ctx context.Context, dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	path := filepath.Join(dir, "queue.db")

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, err)
		}
	}

	if err := migrate(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db, path: path}, nil
}

func migrate(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrationsFS)
	if err := goose.SetDialect("sqlite3"); err != nil {
		return err
	}
	if err := goose.UpContext(ctx, db, "migrations"); err != nil {
		return fmt.Errorf("migrate offline queue: %w", err)
	}
	return nil
}

func (s *Store) Path() string { return s.path }

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Enqueue appends one entry. Storage errors are returned, never swallowed.
func (s *Store) Enqueue(ctx context.Context, url, deviceID string) (*Entry, error) {
	url, deviceID = strings.TrimSpace(url), strings.TrimSpace(deviceID)
	if url == "" || deviceID == "" {
		return nil, ErrInvalidEntry
	}

	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO entries (url, device_id, enqueued_at) VALUES (?, ?, ?)`,
		url, deviceID, now.Format(time.RFC3339Nano),
	)
	if err != nil {
		return nil, fmt.Errorf("insert entry: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return &Entry{ID: id, URL: url, DeviceID: deviceID, EnqueuedAt: now}, nil
}

// PeekAll returns every entry, oldest first, without side effects.
func (s *Store) PeekAll(ctx context.Context) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, url, device_id, enqueued_at FROM entries ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list entries: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			e  Entry
			ts string
		)
		if err := rows.Scan(&e.ID, &e.URL, &e.DeviceID, &ts); err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		e.EnqueuedAt, _ = time.Parse(time.RFC3339Nano, ts)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Clear drops every entry.
func (s *Store) Clear(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM entries`); err != nil {
		return fmt.Errorf("clear entries: %w", err)
	}
	return nil
}

// Remove deletes the entry with id, reporting whether it existed.
func (s *Store) Remove(ctx context.Context, id int64) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM entries WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("remove entry %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("remove entry %d: %w", id, err)
	}
	return n > 0, nil
}

// clearThrough drops entries up to and including lastID. Entries added after
// a flush read the list stay queued.
func (s *Store) clearThrough(ctx context.Context, lastID int64) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM entries WHERE id <= ?`, lastID); err != nil {
		return fmt.Errorf("clear flushed entries: %w", err)
	}
	return nil
}
