// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package store persists paper sessions and their dependent records in
// SQLite. Each workflow operation is applied as one transactional write
// of the full session row, so SQLite's per-database write lock provides
// the single-writer-per-session serialization the engine assumes.
package store

import (
	"database/sql"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/oklog/ulid/v2"

	"github.com/pdiddy/paper-engine/pkg/types"
)

const dbFile = "paper.db"

// Store manages the session database.
type Store struct {
	db      *sql.DB
	entropy *ulid.MonotonicEntropy
}

// NewStore opens or creates the session database at dataDir/paper.db and
// creates the schema if it does not exist.
func NewStore(cfg types.StoreConfig) (*Store, error) {
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	dbPath := filepath.Join(cfg.DataDir, dbFile)
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Store{
		db:      db,
		entropy: ulid.Monotonic(rand.New(rand.NewSource(time.Now().UnixNano())), 0),
	}

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

// newID returns a fresh ULID string.
func (s *Store) newID() string {
	return ulid.MustNew(ulid.Timestamp(time.Now()), s.entropy).String()
}

func (s *Store) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS sessions (
			id TEXT PRIMARY KEY,
			owner_id TEXT NOT NULL,
			conversation_id TEXT NOT NULL UNIQUE,
			current_stage TEXT NOT NULL,
			stage_status TEXT NOT NULL,
			stage_data TEXT NOT NULL,
			digest TEXT NOT NULL,
			is_dirty INTEGER NOT NULL DEFAULT 0,
			paper_title TEXT,
			working_title TEXT,
			initial_idea TEXT,
			archived INTEGER NOT NULL DEFAULT 0,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL,
			completed_at TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_sessions_owner ON sessions(owner_id)`,
		`CREATE TABLE IF NOT EXISTS rewind_records (
			id TEXT PRIMARY KEY,
			session_id TEXT NOT NULL REFERENCES sessions(id),
			from_stage TEXT NOT NULL,
			to_stage TEXT NOT NULL,
			invalidated_stages TEXT NOT NULL,
			invalidated_artifact_ids TEXT,
			timestamp TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_rewind_session ON rewind_records(session_id)`,
		`CREATE TABLE IF NOT EXISTS outline_sections (
			session_id TEXT NOT NULL REFERENCES sessions(id),
			id TEXT NOT NULL,
			parent_id TEXT,
			title TEXT,
			status TEXT,
			checked_by TEXT,
			checked_at TEXT,
			PRIMARY KEY (session_id, id)
		)`,
		`CREATE TABLE IF NOT EXISTS artifacts (
			id TEXT PRIMARY KEY,
			session_id TEXT NOT NULL REFERENCES sessions(id),
			stage TEXT NOT NULL,
			invalidated_at TEXT,
			invalidated_by_rewind_to TEXT,
			created_at TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_artifacts_session ON artifacts(session_id)`,
		`CREATE TABLE IF NOT EXISTS schema_alerts (
			id TEXT PRIMARY KEY,
			session_id TEXT NOT NULL,
			stage TEXT NOT NULL,
			key TEXT NOT NULL,
			created_at TEXT NOT NULL
		)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}
	return nil
}

// formatTime renders a timestamp for storage. Zero times store as empty.
func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

// parseTime reads a stored timestamp; empty strings yield the zero time.
func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
