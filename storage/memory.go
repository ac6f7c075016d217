// Package storage provides in-memory conversation storage.
//
// Information Hiding:
// - Map storage structure hidden from users
// - Thread-safe access via RWMutex hidden behind interface
// - Suitable for testing and ephemeral sessions

package storage

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/richinex/conductor/llm"
)

type memorySession struct {
	history   []llm.ChatMessage
	updatedAt time.Time
}

// InMemoryStorage implements Storage using in-memory maps.
// Data is lost when process terminates.
type InMemoryStorage struct {
	mu       sync.RWMutex
	sessions map[string]memorySession
	runs     map[string]Run
	now      func() time.Time
}

// NewInMemoryStorage creates a new in-memory storage.
func NewInMemoryStorage() *InMemoryStorage {
	return &InMemoryStorage{
		sessions: make(map[string]memorySession),
		runs:     make(map[string]Run),
		now:      time.Now,
	}
}

// Close is a no-op.
func (s *InMemoryStorage) Close() error { return nil }

// Save saves conversation history for a session.
func (s *InMemoryStorage) Save(ctx context.Context, sessionID string, history []llm.ChatMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Make a copy to avoid external mutations
	copied := make([]llm.ChatMessage, len(history))
	copy(copied, history)
	s.sessions[sessionID] = memorySession{history: copied, updatedAt: s.now()}

	return nil
}

// Load loads conversation history for a session.
// Returns empty slice if session doesn't exist.
func (s *InMemoryStorage) Load(ctx context.Context, sessionID string) ([]llm.ChatMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[sessionID]
	if !ok {
		return []llm.ChatMessage{}, nil
	}

	// Return a copy to avoid external mutations
	copied := make([]llm.ChatMessage, len(sess.history))
	copy(copied, sess.history)
	return copied, nil
}

// Delete deletes conversation history and runs for a session.
func (s *InMemoryStorage) Delete(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.sessions, sessionID)
	for id, run := range s.runs {
		if run.SessionID == sessionID {
			delete(s.runs, id)
		}
	}
	return nil
}

// ListSessions lists all session IDs, most recently updated first.
func (s *InMemoryStorage) ListSessions(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sessions := make([]string, 0, len(s.sessions))
	for sessionID := range s.sessions {
		sessions = append(sessions, sessionID)
	}
	sort.Slice(sessions, func(i, j int) bool {
		a, b := s.sessions[sessions[i]].updatedAt, s.sessions[sessions[j]].updatedAt
		if a.Equal(b) {
			return sessions[i] < sessions[j]
		}
		return a.After(b)
	})
	return sessions, nil
}

// Exists checks if a session exists.
func (s *InMemoryStorage) Exists(ctx context.Context, sessionID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.sessions[sessionID]
	return ok, nil
}

// SaveRun stores a run, creating its session if needed.
func (s *InMemoryStorage) SaveRun(ctx context.Context, run Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if run.Result.RequestID == "" {
		return errors.New("run has no request ID")
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = s.now()
	}
	if _, ok := s.sessions[run.SessionID]; !ok {
		s.sessions[run.SessionID] = memorySession{history: []llm.ChatMessage{}, updatedAt: s.now()}
	}
	s.runs[run.Result.RequestID] = run
	return nil
}

// GetRun returns the run for a request ID.
func (s *InMemoryStorage) GetRun(ctx context.Context, requestID string) (Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	run, ok := s.runs[requestID]
	if !ok {
		return Run{}, ErrRunNotFound
	}
	return run, nil
}

// ListRuns lists runs for a session, newest first.
func (s *InMemoryStorage) ListRuns(ctx context.Context, sessionID string, limit int) ([]RunSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	summaries := []RunSummary{}
	for _, run := range s.runs {
		if sessionID != "" && run.SessionID != sessionID {
			continue
		}
		summaries = append(summaries, run.Summary())
	}
	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].CreatedAt.After(summaries[j].CreatedAt)
	})
	if limit > 0 && len(summaries) > limit {
		summaries = summaries[:limit]
	}
	return summaries, nil
}

// Verify InMemoryStorage implements Storage
var _ Storage = (*InMemoryStorage)(nil)
