// Package history keeps a SQLite-backed record of compiled outputs so a
// build can be compared with the previous one.
package history

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

const createTableSQL = `CREATE TABLE IF NOT EXISTS builds (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	source      TEXT NOT NULL,
	root        TEXT NOT NULL,
	tables      INTEGER NOT NULL,
	views       INTEGER NOT NULL,
	fingerprint TEXT NOT NULL,
	sql         TEXT NOT NULL,
	built_at    DATETIME DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS builds_source ON builds (source, built_at);
CREATE INDEX IF NOT EXISTS builds_fingerprint ON builds (fingerprint)`

const selectColumns = `SELECT id, source, root, tables, views, fingerprint, sql, built_at FROM builds`

// Entry is one recorded build.
type Entry struct {
	ID          int64
	Source      string
	Root        string
	Tables      int
	Views       int
	Fingerprint string
	SQL         string
	BuiltAt     time.Time
}

// History provides SQLite-backed build history storage.
type History struct {
	db *sql.DB
}

// New opens (or creates) the history database at path and ensures the
// schema exists.
func New(path string) (*History, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("history: create dir: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("history: open db: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(createTableSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("history: create table: %w", err)
	}

	return &History{db: db}, nil
}

// Add records a build and returns its ID. A zero BuiltAt means now.
func (h *History) Add(entry Entry) (int64, error) {
	if entry.BuiltAt.IsZero() {
		entry.BuiltAt = time.Now()
	}
	// Stored as text, so a single zone keeps built_at ordered.
	entry.BuiltAt = entry.BuiltAt.UTC()
	res, err := h.db.Exec(
		`INSERT INTO builds (source, root, tables, views, fingerprint, sql, built_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		entry.Source,
		entry.Root,
		entry.Tables,
		entry.Views,
		entry.Fingerprint,
		entry.SQL,
		entry.BuiltAt,
	)
	if err != nil {
		return 0, fmt.Errorf("history add: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("history add: %w", err)
	}
	return id, nil
}

// Recent returns the most recent builds, newest first, limited to limit
// rows.
func (h *History) Recent(limit int) ([]Entry, error) {
	rows, err := h.db.Query(selectColumns+` ORDER BY built_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("history recent: %w", err)
	}
	defer rows.Close()

	return scanEntries(rows)
}

// Search returns builds whose source path matches pattern using SQL LIKE,
// newest first, limited to limit rows.
func (h *History) Search(pattern string, limit int) ([]Entry, error) {
	rows, err := h.db.Query(selectColumns+` WHERE source LIKE ? ORDER BY built_at DESC, id DESC LIMIT ?`, pattern, limit)
	if err != nil {
		return nil, fmt.Errorf("history search: %w", err)
	}
	defer rows.Close()

	return scanEntries(rows)
}

// Find returns the builds whose fingerprint starts with prefix, newest
// first.
func (h *History) Find(prefix string) ([]Entry, error) {
	if prefix == "" {
		return nil, errors.New("history find: empty fingerprint")
	}
	rows, err := h.db.Query(selectColumns+` WHERE substr(fingerprint, 1, ?) = ? ORDER BY built_at DESC, id DESC`, len(prefix), prefix)
	if err != nil {
		return nil, fmt.Errorf("history find: %w", err)
	}
	defer rows.Close()

	return scanEntries(rows)
}

// Last returns the most recent build of source. ok is false when source
// was never built.
func (h *History) Last(source string) (e Entry, ok bool, err error) {
	rows, err := h.db.Query(selectColumns+` WHERE source = ? ORDER BY built_at DESC, id DESC LIMIT 1`, source)
	if err != nil {
		return Entry{}, false, fmt.Errorf("history last: %w", err)
	}
	defer rows.Close()

	entries, err := scanEntries(rows)
	if err != nil || len(entries) == 0 {
		return Entry{}, false, err
	}
	return entries[0], true, nil
}

// Clear deletes all history entries.
func (h *History) Clear() error {
	if _, err := h.db.Exec(`DELETE FROM builds`); err != nil {
		return fmt.Errorf("history clear: %w", err)
	}
	return nil
}

// Close closes the underlying database connection.
func (h *History) Close() error {
	return h.db.Close()
}

// scanEntries reads all rows from the result set into a slice of Entry.
func scanEntries(rows *sql.Rows) ([]Entry, error) {
	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(
			&e.ID,
			&e.Source,
			&e.Root,
			&e.Tables,
			&e.Views,
			&e.Fingerprint,
			&e.SQL,
			&e.BuiltAt,
		); err != nil {
			return nil, fmt.Errorf("history scan: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("history rows: %w", err)
	}
	return entries, nil
}
