// Package storage persists conversation histories and conductor runs.
//
// Information Hiding:
// - Storage backend implementation details hidden behind interfaces
// - Allows swapping between memory and SQLite without API changes
// - Runs are stored as opaque JSON documents keyed by request ID

package storage

import (
	"context"
	"errors"
	"time"

	"github.com/richinex/conductor/llm"
	"github.com/richinex/conductor/orchestration"
)

// ErrRunNotFound is returned by GetRun for an unknown request ID.
var ErrRunNotFound = errors.New("run not found")

// ConversationStorage defines the interface for storing conversation history.
type ConversationStorage interface {
	// Save saves conversation history for a session.
	Save(ctx context.Context, sessionID string, history []llm.ChatMessage) error

	// Load loads conversation history for a session.
	// Returns empty slice (not nil) if session doesn't exist.
	// Returns error only for storage failures (I/O errors, etc.), not missing sessions.
	Load(ctx context.Context, sessionID string) ([]llm.ChatMessage, error)

	// Delete deletes conversation history and runs for a session.
	Delete(ctx context.Context, sessionID string) error

	// ListSessions lists all session IDs, most recently updated first.
	ListSessions(ctx context.Context) ([]string, error)

	// Exists checks if a session exists.
	Exists(ctx context.Context, sessionID string) (bool, error)
}

// Run is one persisted Conduct outcome.
type Run struct {
	SessionID string               `json:"session_id"`
	Prompt    string               `json:"prompt"`
	Result    orchestration.Result `json:"result"`
	CreatedAt time.Time            `json:"created_at"`
}

// RunSummary is the listing view of a Run.
type RunSummary struct {
	RequestID string             `json:"request_id"`
	SessionID string             `json:"session_id"`
	Mode      orchestration.Mode `json:"mode"`
	Prompt    string             `json:"prompt"`
	ElapsedMs int64              `json:"elapsed_ms"`
	CreatedAt time.Time          `json:"created_at"`
}

// Summary returns the listing view of r.
func (r Run) Summary() RunSummary {
	return RunSummary{
		RequestID: r.Result.RequestID,
		SessionID: r.SessionID,
		Mode:      r.Result.Mode,
		Prompt:    r.Prompt,
		ElapsedMs: r.Result.Metadata.ElapsedMs,
		CreatedAt: r.CreatedAt,
	}
}

// RunStorage records conductor results.
type RunStorage interface {
	// SaveRun stores a run. A run with the same request ID is replaced.
	SaveRun(ctx context.Context, run Run) error

	// GetRun returns the run for a request ID, or ErrRunNotFound.
	GetRun(ctx context.Context, requestID string) (Run, error)

	// ListRuns lists runs for a session, newest first. An empty session
	// lists runs across all sessions. limit <= 0 means no limit.
	ListRuns(ctx context.Context, sessionID string, limit int) ([]RunSummary, error)
}

// Storage is a backend that holds both histories and runs.
type Storage interface {
	ConversationStorage
	RunStorage
	Close() error
}

// Open returns the backend named by kind: "memory" or "sqlite".
func Open(kind, path string) (Storage, error) {
	switch kind {
	case "memory":
		return NewInMemoryStorage(), nil
	case "sqlite", "":
		return OpenSqlite(path)
	default:
		return nil, errors.New("unknown storage backend: " + kind)
	}
}
