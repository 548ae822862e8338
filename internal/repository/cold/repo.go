// Package cold is the durable fallback cache. Entries survive restarts and
// have no TTL; a newer write for the same query replaces the older one.
package cold

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/kailas-cloud/querydex/internal/domain"
)

const schema = `
CREATE TABLE IF NOT EXISTS search_cache (
    query        TEXT PRIMARY KEY,
    payload_json TEXT NOT NULL,
    created_at   INTEGER NOT NULL
);`

// Repo stores payloads in a local SQLite file.
type Repo struct {
	db *sql.DB
}

// Open opens (creating if needed) the cache database at path.
func Open(path string) (*Repo, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}

	// Single writer; WAL keeps readers unblocked during write-back.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
	} {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("%s: %w", pragma, err)
		}
	}

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return &Repo{db: db}, nil
}

// Get returns the cached payload for the exact (post-trim) query text.
// Returns domain.ErrCacheMiss when no row exists.
func (r *Repo) Get(ctx context.Context, query string) (domain.Payload, error) {
	var raw string
	err := r.db.QueryRowContext(ctx,
		"SELECT payload_json FROM search_cache WHERE query = ?",
		strings.TrimSpace(query),
	).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Payload{}, domain.ErrCacheMiss
	}
	if err != nil {
		return domain.Payload{}, fmt.Errorf("select %q: %w", query, err)
	}

	var p domain.Payload
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return domain.Payload{}, fmt.Errorf("parse payload %q: %w", query, err)
	}
	return p, nil
}

// Set stores a payload, replacing any previous entry for the same query.
func (r *Repo) Set(ctx context.Context, query string, payload domain.Payload) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO search_cache (query, payload_json, created_at) VALUES (?, ?, ?)
		 ON CONFLICT(query) DO UPDATE SET payload_json = excluded.payload_json,
		 created_at = excluded.created_at`,
		strings.TrimSpace(query), string(data), time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("upsert %q: %w", query, err)
	}
	return nil
}

// Ping verifies the database file is reachable.
func (r *Repo) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Close closes the underlying database.
func (r *Repo) Close() error {
	return r.db.Close()
}
