package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/hyperjump/seek/internal/models"
)

const (
	prefLastSearch          = "last_search"
	defaultMaxRecentQueries = 100
)

// SQLiteStorage implements Storage using SQLite.
type SQLiteStorage struct {
	db        *sql.DB
	maxRecent int
}

// NewSQLiteStorage opens or creates a SQLite database at dbPath and initializes the schema.
// Parent directories are created if they do not exist. maxRecent caps the recent-queries
// table; zero or negative uses the default.
func NewSQLiteStorage(dbPath string, maxRecent int) (*SQLiteStorage, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// :memory: databases are per connection.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	if maxRecent <= 0 {
		maxRecent = defaultMaxRecentQueries
	}
	return &SQLiteStorage{db: db, maxRecent: maxRecent}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS recent_queries (
		query TEXT PRIMARY KEY,
		created_at INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_recent_queries_created_at ON recent_queries(created_at);

	CREATE TABLE IF NOT EXISTS preferences (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS snapshots (
		id TEXT PRIMARY KEY,
		directory TEXT NOT NULL,
		query TEXT NOT NULL,
		results TEXT NOT NULL,
		created_at TIMESTAMP NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_snapshots_created_at ON snapshots(created_at);
	`
	_, err := db.Exec(schema)
	return err
}

// SaveRecentQuery stores term as the newest recent query and trims the oldest beyond the cap.
func (s *SQLiteStorage) SaveRecentQuery(ctx context.Context, term string) error {
	term = strings.TrimSpace(term)
	if term == "" {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO recent_queries (query, created_at) VALUES (?, ?)
		 ON CONFLICT(query) DO UPDATE SET created_at = excluded.created_at`,
		term, time.Now().UnixNano(),
	); err != nil {
		return fmt.Errorf("failed to save recent query: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM recent_queries WHERE query NOT IN (
			SELECT query FROM recent_queries ORDER BY created_at DESC LIMIT ?
		)`, s.maxRecent,
	); err != nil {
		return fmt.Errorf("failed to trim recent queries: %w", err)
	}
	return tx.Commit()
}

// RecentQueries returns up to limit recent terms starting with prefix (case-insensitive), newest first.
func (s *SQLiteStorage) RecentQueries(ctx context.Context, prefix string, limit int) ([]string, error) {
	if limit <= 0 {
		limit = s.maxRecent
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT query FROM recent_queries
		 WHERE query LIKE ? ESCAPE '\'
		 ORDER BY created_at DESC LIMIT ?`,
		escapeLike(prefix)+"%", limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var q string
		if err := rows.Scan(&q); err != nil {
			return nil, err
		}
		out = append(out, q)
	}
	return out, rows.Err()
}

// ClearRecentQueries removes all recent queries.
func (s *SQLiteStorage) ClearRecentQueries(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM recent_queries`)
	return err
}

// LastSearch returns the last free-text search, or "" when none was stored.
func (s *SQLiteStorage) LastSearch(ctx context.Context) (string, error) {
	var v string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM preferences WHERE key = ?`, prefLastSearch).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	return v, err
}

// SetLastSearch stores the last free-text search.
func (s *SQLiteStorage) SetLastSearch(ctx context.Context, term string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO preferences (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		prefLastSearch, term,
	)
	return err
}

// SaveSnapshot inserts or replaces a snapshot.
func (s *SQLiteStorage) SaveSnapshot(ctx context.Context, snap *models.Snapshot) error {
	queryJSON, err := json.Marshal(snap.Query)
	if err != nil {
		return fmt.Errorf("failed to marshal query: %w", err)
	}
	results := snap.Results
	if results == nil {
		results = []*models.SearchResult{}
	}
	resultsJSON, err := json.Marshal(results)
	if err != nil {
		return fmt.Errorf("failed to marshal results: %w", err)
	}
	if snap.CreatedAt.IsZero() {
		snap.CreatedAt = time.Now().UTC()
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO snapshots (id, directory, query, results, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		snap.ID, snap.Directory, string(queryJSON), string(resultsJSON), snap.CreatedAt,
	)
	return err
}

// GetSnapshot returns a snapshot by id, or ErrSnapshotNotFound.
func (s *SQLiteStorage) GetSnapshot(ctx context.Context, id string) (*models.Snapshot, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, directory, query, results, created_at FROM snapshots WHERE id = ?`, id,
	)
	snap, err := scanSnapshot(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrSnapshotNotFound, id)
	}
	return snap, err
}

// DeleteSnapshot removes a snapshot by id.
func (s *SQLiteStorage) DeleteSnapshot(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM snapshots WHERE id = ?`, id)
	return err
}

// ListSnapshots returns up to limit snapshots, newest first.
func (s *SQLiteStorage) ListSnapshots(ctx context.Context, limit int) ([]*models.Snapshot, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, directory, query, results, created_at
		 FROM snapshots ORDER BY created_at DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*models.Snapshot
	for rows.Next() {
		snap, err := scanSnapshot(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, snap)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSnapshot(sc scanner) (*models.Snapshot, error) {
	var snap models.Snapshot
	var queryJSON, resultsJSON string
	if err := sc.Scan(&snap.ID, &snap.Directory, &queryJSON, &resultsJSON, &snap.CreatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(queryJSON), &snap.Query); err != nil {
		return nil, fmt.Errorf("failed to unmarshal query: %w", err)
	}
	if err := json.Unmarshal([]byte(resultsJSON), &snap.Results); err != nil {
		return nil, fmt.Errorf("failed to unmarshal results: %w", err)
	}
	return &snap, nil
}

// CountRecentQueries returns the number of stored recent queries.
func (s *SQLiteStorage) CountRecentQueries(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM recent_queries`).Scan(&count)
	return count, err
}

// CountSnapshots returns the number of stored snapshots.
func (s *SQLiteStorage) CountSnapshots(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM snapshots`).Scan(&count)
	return count, err
}

// Close closes the database connection.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
