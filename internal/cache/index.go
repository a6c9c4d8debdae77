package cache

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// Entry is one prepared artifact recorded in the index.
type Entry struct {
	ID        int64
	Link      string
	CacheKey  string
	Wheel     string
	CreatedAt time.Time
}

// Index records prepared artifacts in SQLite so the CLI can list and prune
// the cache without walking the directory tree.
type Index struct {
	db *sql.DB
	mu sync.RWMutex
}

// NewIndex opens (or creates) the index database.
// Use ":memory:" for an in-memory database, or a file path for persistent storage.
func NewIndex(dbPath string) (*Index, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	idx := &Index{db: db}
	if err := idx.initialize(); err != nil {
		_ = db.Close() // Best effort cleanup on initialization error
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return idx, nil
}

func (i *Index) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS artifacts (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		link TEXT NOT NULL,
		cache_key TEXT NOT NULL,
		wheel TEXT NOT NULL,
		created INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_cache_key ON artifacts(cache_key);
	CREATE INDEX IF NOT EXISTS idx_created ON artifacts(created);
	`
	_, err := i.db.Exec(schema)
	return err
}

// Record stores a prepared artifact. Repeated records for the same cache key
// replace the previous row so the index tracks the latest build.
func (i *Index) Record(ctx context.Context, link, cacheKey, wheel string) error {
	i.mu.Lock()
	defer i.mu.Unlock()

	tx, err := i.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, "DELETE FROM artifacts WHERE cache_key = ?", cacheKey); err != nil {
		return fmt.Errorf("replace entry: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		"INSERT INTO artifacts (link, cache_key, wheel, created) VALUES (?, ?, ?, ?)",
		link, cacheKey, wheel, time.Now().Unix(),
	); err != nil {
		return fmt.Errorf("insert entry: %w", err)
	}

	return tx.Commit()
}

// List returns all recorded artifacts, oldest first.
func (i *Index) List(ctx context.Context) ([]Entry, error) {
	i.mu.RLock()
	defer i.mu.RUnlock()

	rows, err := i.db.QueryContext(ctx,
		"SELECT id, link, cache_key, wheel, created FROM artifacts ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("query entries: %w", err)
	}
	defer rows.Close()

	return scanEntries(rows)
}

// Prune removes entries created before the cutoff and returns them so the
// caller can remove the associated cache directories.
func (i *Index) Prune(ctx context.Context, olderThan time.Time) ([]Entry, error) {
	i.mu.Lock()
	defer i.mu.Unlock()

	tx, err := i.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	rows, err := tx.QueryContext(ctx,
		"SELECT id, link, cache_key, wheel, created FROM artifacts WHERE created < ? ORDER BY id",
		olderThan.Unix())
	if err != nil {
		return nil, fmt.Errorf("query stale entries: %w", err)
	}
	removed, err := scanEntries(rows)
	rows.Close()
	if err != nil {
		return nil, err
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM artifacts WHERE created < ?", olderThan.Unix()); err != nil {
		return nil, fmt.Errorf("delete stale entries: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}

	return removed, nil
}

func scanEntries(rows *sql.Rows) ([]Entry, error) {
	var entries []Entry
	for rows.Next() {
		var e Entry
		var createdUnix int64

		if err := rows.Scan(&e.ID, &e.Link, &e.CacheKey, &e.Wheel, &createdUnix); err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		e.CreatedAt = time.Unix(createdUnix, 0)
		entries = append(entries, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}

	return entries, nil
}

// Close closes the database connection.
func (i *Index) Close() error {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.db.Close()
}
