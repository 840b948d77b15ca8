// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package export builds a read-only SQLite snapshot of the units and edges
// datasets for ad-hoc analysis, with full-text search over source quotes.
// The JSON datasets stay the source of truth; a snapshot is rebuilt from
// scratch on every export.
package export

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/pdiddy/anything-but-metric/pkg/types"
)

// DefaultDBFile is the snapshot file name inside the data directory.
const DefaultDBFile = "abm.db"

// Store is an open snapshot database.
type Store struct {
	db   *sql.DB
	path string
}

// Open opens or creates the snapshot database at path and ensures the
// schema exists.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating snapshot directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Store{db: db, path: path}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return s, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file.
func (s *Store) Path() string { return s.path }

func (s *Store) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS units (
			id TEXT PRIMARY KEY,
			label TEXT NOT NULL,
			emoji TEXT,
			aliases TEXT,
			tags TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS edges (
			rowid INTEGER PRIMARY KEY AUTOINCREMENT,
			id TEXT NOT NULL UNIQUE,
			from_unit TEXT NOT NULL,
			to_unit TEXT NOT NULL,
			factor REAL NOT NULL,
			source_url TEXT,
			source_quote TEXT,
			date_scraped TEXT,
			verified INTEGER NOT NULL DEFAULT 0
		)`,
		`CREATE INDEX IF NOT EXISTS idx_edges_from ON edges(from_unit)`,
		`CREATE INDEX IF NOT EXISTS idx_edges_to ON edges(to_unit)`,
		`CREATE INDEX IF NOT EXISTS idx_edges_source_url ON edges(source_url)`,
		`CREATE VIRTUAL TABLE IF NOT EXISTS edges_fts USING fts4(source_quote)`,
		`CREATE TABLE IF NOT EXISTS snapshot (
			key TEXT PRIMARY KEY,
			value TEXT
		)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}
	return nil
}

// Summary holds counts from one snapshot.
type Summary struct {
	Units int

	// Edges is the number of edges written.
	Edges int

	// Duplicates counts edges skipped because their ID was already written.
	Duplicates int

	// Dangling counts written edges whose from or to is not a known unit.
	Dangling int
}

// Snapshot replaces the database contents with units and edges in a single
// transaction.
func (s *Store) Snapshot(ctx context.Context, units []types.Unit, edges []types.Edge, now time.Time) (Summary, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Summary{}, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	for _, stmt := range []string{
		`DELETE FROM edges_fts`,
		`DELETE FROM edges`,
		`DELETE FROM units`,
	} {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return Summary{}, fmt.Errorf("clearing snapshot: %w", err)
		}
	}

	var sum Summary
	known := make(map[string]bool, len(units))

	unitStmt, err := tx.PrepareContext(ctx,
		`INSERT OR REPLACE INTO units (id, label, emoji, aliases, tags) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return Summary{}, fmt.Errorf("preparing unit insert: %w", err)
	}
	defer unitStmt.Close()

	for _, u := range units {
		aliasesJSON, _ := json.Marshal(nonNil(u.Aliases))
		tagsJSON, _ := json.Marshal(nonNil(u.Tags))
		if _, err := unitStmt.ExecContext(ctx, u.ID, u.Label, u.Emoji, string(aliasesJSON), string(tagsJSON)); err != nil {
			return Summary{}, fmt.Errorf("inserting unit %s: %w", u.ID, err)
		}
		if !known[u.ID] {
			known[u.ID] = true
			sum.Units++
		}
	}

	edgeStmt, err := tx.PrepareContext(ctx,
		`INSERT INTO edges (id, from_unit, to_unit, factor, source_url, source_quote, date_scraped, verified)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO NOTHING`)
	if err != nil {
		return Summary{}, fmt.Errorf("preparing edge insert: %w", err)
	}
	defer edgeStmt.Close()

	ftsStmt, err := tx.PrepareContext(ctx, `INSERT INTO edges_fts (rowid, source_quote) VALUES (?, ?)`)
	if err != nil {
		return Summary{}, fmt.Errorf("preparing search insert: %w", err)
	}
	defer ftsStmt.Close()

	for _, e := range edges {
		res, err := edgeStmt.ExecContext(ctx,
			e.ID, e.From, e.To, e.Factor, e.SourceURL, e.SourceQuote, e.DateScraped, e.Verified)
		if err != nil {
			return Summary{}, fmt.Errorf("inserting edge %s: %w", e.ID, err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			sum.Duplicates++
			continue
		}
		rowid, err := res.LastInsertId()
		if err != nil {
			return Summary{}, fmt.Errorf("reading rowid for edge %s: %w", e.ID, err)
		}
		if _, err := ftsStmt.ExecContext(ctx, rowid, e.SourceQuote); err != nil {
			return Summary{}, fmt.Errorf("indexing edge %s: %w", e.ID, err)
		}
		sum.Edges++
		if !known[e.From] || !known[e.To] {
			sum.Dangling++
		}
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO snapshot (key, value) VALUES ('taken_at', ?)
		 ON CONFLICT(key) DO UPDATE SET value=excluded.value`,
		now.UTC().Format(time.RFC3339))
	if err != nil {
		return Summary{}, fmt.Errorf("recording snapshot time: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return Summary{}, fmt.Errorf("committing snapshot: %w", err)
	}
	return sum, nil
}

// TakenAt returns when the current snapshot was written. ok is false for an
// empty database.
func (s *Store) TakenAt(ctx context.Context) (t time.Time, ok bool, err error) {
	var v string
	err = s.db.QueryRowContext(ctx, `SELECT value FROM snapshot WHERE key = 'taken_at'`).Scan(&v)
	if err == sql.ErrNoRows {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("reading snapshot time: %w", err)
	}
	t, err = time.Parse(time.RFC3339, v)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("parsing snapshot time: %w", err)
	}
	return t, true, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
