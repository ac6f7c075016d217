// Package storage provides SQLite conversation storage.
//
// Information Hiding:
// - DSN options (foreign keys, busy timeout) and connection limits
// - Table layout: sessions own their messages and runs, deletes cascade
// - Run results kept as JSON documents next to indexed summary columns

package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/richinex/conductor/llm"
	"github.com/richinex/conductor/orchestration"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS sessions (
	session_id TEXT PRIMARY KEY,
	created_at TEXT NOT NULL DEFAULT (datetime('now')),
	updated_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%d %H:%M:%f', 'now'))
);

CREATE TABLE IF NOT EXISTS messages (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	session_id TEXT NOT NULL REFERENCES sessions(session_id) ON DELETE CASCADE,
	message_index INTEGER NOT NULL,
	role TEXT NOT NULL,
	content TEXT NOT NULL,
	UNIQUE(session_id, message_index)
);

CREATE TABLE IF NOT EXISTS runs (
	request_id TEXT PRIMARY KEY,
	session_id TEXT NOT NULL REFERENCES sessions(session_id) ON DELETE CASCADE,
	mode TEXT NOT NULL,
	prompt TEXT NOT NULL,
	elapsed_ms INTEGER NOT NULL,
	result TEXT NOT NULL,
	created_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_runs_session ON runs(session_id, created_at DESC);
`

const (
	qTouchSession   = `INSERT INTO sessions (session_id) VALUES (?) ON CONFLICT(session_id) DO UPDATE SET updated_at = strftime('%Y-%m-%d %H:%M:%f', 'now')`
	qEnsureSession  = `INSERT OR IGNORE INTO sessions (session_id) VALUES (?)`
	qClearHistory   = `DELETE FROM messages WHERE session_id = ?`
	qAppendMessage  = `INSERT INTO messages (session_id, message_index, role, content) VALUES (?, ?, ?, ?)`
	qHistory        = `SELECT role, content FROM messages WHERE session_id = ? ORDER BY message_index`
	qDeleteSession  = `DELETE FROM sessions WHERE session_id = ?`
	qSessionsByAge  = `SELECT session_id FROM sessions ORDER BY updated_at DESC, session_id`
	qSessionExists  = `SELECT EXISTS(SELECT 1 FROM sessions WHERE session_id = ?)`
	qPutRun         = `INSERT OR REPLACE INTO runs (request_id, session_id, mode, prompt, elapsed_ms, result, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)`
	qRunByRequestID = `SELECT session_id, prompt, result, created_at FROM runs WHERE request_id = ?`
	qRunSummaries   = `SELECT request_id, session_id, mode, prompt, elapsed_ms, created_at FROM runs WHERE (?1 = '' OR session_id = ?1) ORDER BY created_at DESC LIMIT ?2`
)

// SqliteStorage keeps sessions and runs in a SQLite database.
// Safe for concurrent use.
type SqliteStorage struct {
	db *sql.DB
}

// OpenSqlite opens the database file at path, creating it and any missing
// parent directories.
func OpenSqlite(path string) (*SqliteStorage, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", "file:"+path+"?_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}
	return newSqlite(db)
}

// NewSqliteInMemory returns a private in-memory database.
func NewSqliteInMemory() (*SqliteStorage, error) {
	db, err := sql.Open("sqlite3", "file::memory:?_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory SQLite: %w", err)
	}
	// Each :memory: connection is its own database.
	db.SetMaxOpenConns(1)
	return newSqlite(db)
}

func newSqlite(db *sql.DB) (*SqliteStorage, error) {
	if _, err := db.Exec(sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return &SqliteStorage{db: db}, nil
}

// Close closes the database.
func (s *SqliteStorage) Close() error {
	return s.db.Close()
}

func (s *SqliteStorage) inTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Save replaces the stored history of a session and marks it as updated.
func (s *SqliteStorage) Save(ctx context.Context, sessionID string, history []llm.ChatMessage) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, qTouchSession, sessionID); err != nil {
			return fmt.Errorf("failed to upsert session: %w", err)
		}
		if _, err := tx.ExecContext(ctx, qClearHistory, sessionID); err != nil {
			return fmt.Errorf("failed to clear history: %w", err)
		}

		insert, err := tx.PrepareContext(ctx, qAppendMessage)
		if err != nil {
			return fmt.Errorf("failed to prepare message insert: %w", err)
		}
		defer insert.Close()

		for i, msg := range history {
			if _, err := insert.ExecContext(ctx, sessionID, i, msg.Role, msg.Content); err != nil {
				return fmt.Errorf("failed to store message %d: %w", i, err)
			}
		}
		return nil
	})
}

// Load returns the history of a session, empty when it is unknown.
func (s *SqliteStorage) Load(ctx context.Context, sessionID string) ([]llm.ChatMessage, error) {
	rows, err := s.db.QueryContext(ctx, qHistory, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	return collect(rows, func(r *sql.Rows) (llm.ChatMessage, error) {
		var msg llm.ChatMessage
		err := r.Scan(&msg.Role, &msg.Content)
		return msg, err
	})
}

// Delete removes a session together with its messages and runs.
func (s *SqliteStorage) Delete(ctx context.Context, sessionID string) error {
	if _, err := s.db.ExecContext(ctx, qDeleteSession, sessionID); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// ListSessions returns session IDs, most recently updated first.
func (s *SqliteStorage) ListSessions(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, qSessionsByAge)
	if err != nil {
		return nil, fmt.Errorf("failed to query sessions: %w", err)
	}
	return collect(rows, func(r *sql.Rows) (string, error) {
		var id string
		err := r.Scan(&id)
		return id, err
	})
}

// Exists reports whether a session is stored.
func (s *SqliteStorage) Exists(ctx context.Context, sessionID string) (bool, error) {
	var found bool
	if err := s.db.QueryRowContext(ctx, qSessionExists, sessionID).Scan(&found); err != nil {
		return false, fmt.Errorf("failed to check session: %w", err)
	}
	return found, nil
}

// SaveRun stores a run, creating its session if needed.
func (s *SqliteStorage) SaveRun(ctx context.Context, run Run) error {
	if run.Result.RequestID == "" {
		return errors.New("run has no request ID")
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now()
	}
	doc, err := json.Marshal(run.Result)
	if err != nil {
		return fmt.Errorf("failed to encode run: %w", err)
	}

	return s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, qEnsureSession, run.SessionID); err != nil {
			return fmt.Errorf("failed to ensure session: %w", err)
		}
		_, err := tx.ExecContext(ctx, qPutRun,
			run.Result.RequestID,
			run.SessionID,
			string(run.Result.Mode),
			run.Prompt,
			run.Result.Metadata.ElapsedMs,
			string(doc),
			run.CreatedAt.UnixNano(),
		)
		if err != nil {
			return fmt.Errorf("failed to store run: %w", err)
		}
		return nil
	})
}

// GetRun returns the run for a request ID, or ErrRunNotFound.
func (s *SqliteStorage) GetRun(ctx context.Context, requestID string) (Run, error) {
	var (
		run     Run
		doc     string
		created int64
	)
	err := s.db.QueryRowContext(ctx, qRunByRequestID, requestID).
		Scan(&run.SessionID, &run.Prompt, &doc, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, ErrRunNotFound
	}
	if err != nil {
		return Run{}, fmt.Errorf("failed to get run: %w", err)
	}

	if err := json.Unmarshal([]byte(doc), &run.Result); err != nil {
		return Run{}, fmt.Errorf("failed to decode run %s: %w", requestID, err)
	}
	run.CreatedAt = time.Unix(0, created)
	return run, nil
}

// ListRuns lists run summaries newest first. An empty sessionID lists
// every session; limit <= 0 means no limit.
func (s *SqliteStorage) ListRuns(ctx context.Context, sessionID string, limit int) ([]RunSummary, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx, qRunSummaries, sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	return collect(rows, func(r *sql.Rows) (RunSummary, error) {
		var (
			sum     RunSummary
			mode    string
			created int64
		)
		err := r.Scan(&sum.RequestID, &sum.SessionID, &mode, &sum.Prompt, &sum.ElapsedMs, &created)
		sum.Mode = orchestration.Mode(mode)
		sum.CreatedAt = time.Unix(0, created)
		return sum, err
	})
}

// collect scans every row and closes rows. The result is never nil.
func collect[T any](rows *sql.Rows, scan func(*sql.Rows) (T, error)) ([]T, error) {
	defer rows.Close()

	out := []T{}
	for rows.Next() {
		v, err := scan(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read rows: %w", err)
	}
	return out, nil
}

var _ Storage = (*SqliteStorage)(nil)
