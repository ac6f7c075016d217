package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/richinex/conductor/llm"
	"github.com/richinex/conductor/orchestration"
	"github.com/richinex/conductor/storage"
)

const maxBodyBytes = 1 << 20

type conductRequest struct {
	Prompt    string                        `json:"prompt"`
	History   []llm.ChatMessage             `json:"history,omitempty"`
	Mode      string                        `json:"mode,omitempty"`
	Project   *orchestration.ProjectContext `json:"project,omitempty"`
	SessionID string                        `json:"session_id,omitempty"`
}

type analyzeRequest struct {
	Prompt   string `json:"prompt"`
	HasFiles bool   `json:"has_files,omitempty"`
}

type providerView struct {
	Name        string `json:"name"`
	DisplayName string `json:"display_name"`
	Model       string `json:"model"`
	Default     bool   `json:"default"`
}

type sessionView struct {
	ID      string               `json:"id"`
	History []llm.ChatMessage    `json:"history"`
	Runs    []storage.RunSummary `json:"runs"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func decode(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

func (s *Server) handleConduct(w http.ResponseWriter, r *http.Request) {
	var req conductRequest
	if err := decode(w, r, &req); err != nil {
		s.logger.Warn("conduct decode error", zap.Error(err))
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if strings.TrimSpace(req.Prompt) == "" {
		writeError(w, http.StatusBadRequest, "prompt is required")
		return
	}
	if req.SessionID != "" && s.opts.Store == nil {
		writeError(w, http.StatusBadRequest, "sessions are not enabled")
		return
	}

	ctx := r.Context()
	history := req.History
	if req.SessionID != "" && len(history) == 0 {
		loaded, err := s.opts.Store.Load(ctx, req.SessionID)
		if err != nil {
			s.logger.Error("failed to load session", zap.String("session_id", req.SessionID), zap.Error(err))
			writeError(w, http.StatusInternalServerError, "failed to load session")
			return
		}
		history = loaded
	}

	res := s.conductor.Conduct(ctx, orchestration.Request{
		Prompt:  req.Prompt,
		History: history,
		Mode:    orchestration.Mode(req.Mode),
		Project: req.Project,
	})

	if req.SessionID != "" {
		s.persist(r, req.SessionID, req.Prompt, history, res)
	}

	writeJSON(w, http.StatusOK, res)
}

// persist records the exchange. Failures are logged, the answer is still returned.
func (s *Server) persist(r *http.Request, sessionID, prompt string, history []llm.ChatMessage, res orchestration.Result) {
	ctx := r.Context()
	if !res.Failed() {
		next := append(append([]llm.ChatMessage{}, history...),
			llm.UserMessage(prompt),
			llm.AssistantMessage(res.FinalText))
		if err := s.opts.Store.Save(ctx, sessionID, next); err != nil {
			s.logger.Error("failed to save session", zap.String("session_id", sessionID), zap.Error(err))
		}
	}
	run := storage.Run{SessionID: sessionID, Prompt: prompt, Result: res, CreatedAt: res.StartedAt}
	if err := s.opts.Store.SaveRun(ctx, run); err != nil {
		s.logger.Error("failed to save run", zap.String("request_id", res.RequestID), zap.Error(err))
	}
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	var req analyzeRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if strings.TrimSpace(req.Prompt) == "" {
		writeError(w, http.StatusBadRequest, "prompt is required")
		return
	}
	writeJSON(w, http.StatusOK, s.conductor.Analyze(req.Prompt, req.HasFiles))
}

func (s *Server) handleProviders(w http.ResponseWriter, r *http.Request) {
	registry := s.conductor.Registry()
	out := []providerView{}
	for _, p := range registry.Providers() {
		out = append(out, providerView{
			Name:        p.Name(),
			DisplayName: llm.DisplayNameFor(p.Name()),
			Model:       p.Model(),
			Default:     p.Name() == registry.DefaultName(),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"providers": out})
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	if s.opts.Store == nil {
		writeError(w, http.StatusNotFound, "sessions are not enabled")
		return
	}
	sessions, err := s.opts.Store.ListSessions(r.Context())
	if err != nil {
		s.logger.Error("failed to list sessions", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to list sessions")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"sessions": sessions})
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	if s.opts.Store == nil {
		writeError(w, http.StatusNotFound, "sessions are not enabled")
		return
	}
	ctx := r.Context()
	id := r.PathValue("id")

	exists, err := s.opts.Store.Exists(ctx, id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load session")
		return
	}
	if !exists {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}

	history, err := s.opts.Store.Load(ctx, id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load session")
		return
	}
	runs, err := s.opts.Store.ListRuns(ctx, id, 0)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list runs")
		return
	}
	writeJSON(w, http.StatusOK, sessionView{ID: id, History: history, Runs: runs})
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	if s.opts.Store == nil {
		writeError(w, http.StatusNotFound, "sessions are not enabled")
		return
	}
	if err := s.opts.Store.Delete(r.Context(), r.PathValue("id")); err != nil {
		s.logger.Error("failed to delete session", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to delete session")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	if s.opts.Store == nil {
		writeError(w, http.StatusNotFound, "sessions are not enabled")
		return
	}
	run, err := s.opts.Store.GetRun(r.Context(), r.PathValue("id"))
	if errors.Is(err, storage.ErrRunNotFound) {
		writeError(w, http.StatusNotFound, "run not found")
		return
	}
	if err != nil {
		s.logger.Error("failed to get run", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to get run")
		return
	}
	writeJSON(w, http.StatusOK, run)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"providers": s.conductor.Registry().Len(),
	})
}
