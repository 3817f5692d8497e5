// Package telemetry keeps a local history of opened papers. All data stays
// in the data directory; nothing is reported anywhere.
package telemetry

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver (no CGO)
)

// DefaultMaxEntries bounds the history table when no limit is configured.
const DefaultMaxEntries = 1000

// Opened is one history record.
type Opened struct {
	ID       int64     `json:"id"`
	OpenedAt time.Time `json:"opened_at"`
	EntryID  string    `json:"entry_id"`
	Path     string    `json:"path"`
	Query    string    `json:"query,omitempty"`
}

// EntryCount is how often an entry was opened.
type EntryCount struct {
	EntryID string    `json:"entry_id"`
	Count   int64     `json:"count"`
	LastAt  time.Time `json:"last_at"`
}

// HistoryStore records opened papers in SQLite.
type HistoryStore struct {
	db         *sql.DB
	path       string
	maxEntries int
	now        func() time.Time
}

// OpenHistory opens or creates the history database at path. The table is
// trimmed to maxEntries rows on every insert; values below 1 use
// DefaultMaxEntries.
func OpenHistory(path string, maxEntries int) (*HistoryStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create history directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open history database: %w", err)
	}

	// Single writer to prevent lock contention
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}

	if err := InitHistorySchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	if maxEntries < 1 {
		maxEntries = DefaultMaxEntries
	}
	return &HistoryStore{db: db, path: path, maxEntries: maxEntries, now: time.Now}, nil
}

// InitHistorySchema creates the history table if it doesn't exist.
func InitHistorySchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS opened_papers (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		opened_at INTEGER NOT NULL,
		entry_id TEXT NOT NULL,
		path TEXT NOT NULL,
		query TEXT NOT NULL DEFAULT ''
	);
	CREATE INDEX IF NOT EXISTS idx_opened_papers_entry ON opened_papers(entry_id);
	`
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("create history schema: %w", err)
	}
	return nil
}

// Record stores an opened paper and drops the oldest rows beyond the limit.
func (h *HistoryStore) Record(ctx context.Context, entryID, path, query string) error {
	tx, err := h.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO opened_papers (opened_at, entry_id, path, query)
		VALUES (?, ?, ?, ?)
	`, h.now().UnixMilli(), entryID, path, query); err != nil {
		return fmt.Errorf("insert history entry: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		DELETE FROM opened_papers
		WHERE id NOT IN (
			SELECT id FROM opened_papers
			ORDER BY id DESC
			LIMIT ?
		)
	`, h.maxEntries); err != nil {
		return fmt.Errorf("trim history: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// Recent returns the newest records first.
func (h *HistoryStore) Recent(ctx context.Context, limit int) ([]Opened, error) {
	rows, err := h.db.QueryContext(ctx, `
		SELECT id, opened_at, entry_id, path, query
		FROM opened_papers
		ORDER BY id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	var out []Opened
	for rows.Next() {
		var o Opened
		var ms int64
		if err := rows.Scan(&o.ID, &ms, &o.EntryID, &o.Path, &o.Query); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		o.OpenedAt = time.UnixMilli(ms)
		out = append(out, o)
	}
	return out, rows.Err()
}

// TopEntries returns the most frequently opened entries.
func (h *HistoryStore) TopEntries(ctx context.Context, limit int) ([]EntryCount, error) {
	rows, err := h.db.QueryContext(ctx, `
		SELECT entry_id, COUNT(*) AS n, MAX(opened_at)
		FROM opened_papers
		GROUP BY entry_id
		ORDER BY n DESC, MAX(opened_at) DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query top entries: %w", err)
	}
	defer rows.Close()

	var out []EntryCount
	for rows.Next() {
		var c EntryCount
		var ms int64
		if err := rows.Scan(&c.EntryID, &c.Count, &ms); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		c.LastAt = time.UnixMilli(ms)
		out = append(out, c)
	}
	return out, rows.Err()
}

// Clear deletes every record.
func (h *HistoryStore) Clear(ctx context.Context) error {
	if _, err := h.db.ExecContext(ctx, `DELETE FROM opened_papers`); err != nil {
		return fmt.Errorf("clear history: %w", err)
	}
	return nil
}

// Path returns the database file path.
func (h *HistoryStore) Path() string {
	return h.path
}

// Close releases the database.
func (h *HistoryStore) Close() error {
	return h.db.Close()
}
