// Package server exposes the conductor over HTTP.
//
// Information Hiding:
// - Route table, auth check and JSON encoding hidden behind Server
// - Session persistence is optional and invisible to callers without a session_id
// - Graceful shutdown handled by Run

package server

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/richinex/conductor/llm"
	"github.com/richinex/conductor/metrics"
	"github.com/richinex/conductor/orchestration"
	"github.com/richinex/conductor/storage"
)

// Conductor is the part of orchestration.Conductor the server needs.
type Conductor interface {
	Conduct(ctx context.Context, req orchestration.Request) orchestration.Result
	Analyze(prompt string, hasFiles bool) orchestration.ComplexityAnalysis
	Registry() *llm.Registry
}

var _ Conductor = (*orchestration.Conductor)(nil)

// Options configures a Server. Store and Metrics may be nil.
type Options struct {
	Addr         string
	AuthToken    string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	Store        storage.Storage
	Metrics      *metrics.Collector
	Logger       *zap.Logger
}

// Server serves the conductor API.
type Server struct {
	conductor Conductor
	opts      Options
	logger    *zap.Logger
	mux       *http.ServeMux
}

// New builds a Server with its routes registered.
func New(c Conductor, opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	s := &Server{
		conductor: c,
		opts:      opts,
		logger:    opts.Logger.Named("http"),
		mux:       http.NewServeMux(),
	}
	s.RegisterRoutes(s.mux)
	return s
}

// RegisterRoutes registers the API on mux.
func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	s.handle(mux, "POST /v1/conduct", "/v1/conduct", s.handleConduct)
	s.handle(mux, "POST /v1/analyze", "/v1/analyze", s.handleAnalyze)
	s.handle(mux, "GET /v1/providers", "/v1/providers", s.handleProviders)
	s.handle(mux, "GET /v1/sessions", "/v1/sessions", s.handleListSessions)
	s.handle(mux, "GET /v1/sessions/{id}", "/v1/sessions/{id}", s.handleGetSession)
	s.handle(mux, "DELETE /v1/sessions/{id}", "/v1/sessions/{id}", s.handleDeleteSession)
	s.handle(mux, "GET /v1/runs/{id}", "/v1/runs/{id}", s.handleGetRun)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	if s.opts.Metrics != nil {
		mux.Handle("GET /metrics", s.opts.Metrics.Handler())
	}
}

// handle wraps an API route with auth and request metrics.
func (s *Server) handle(mux *http.ServeMux, pattern, label string, fn http.HandlerFunc) {
	var h http.Handler = s.authenticate(fn)
	if s.opts.Metrics != nil {
		h = s.opts.Metrics.Middleware(label, h)
	}
	mux.Handle(pattern, h)
}

func (s *Server) authenticate(next http.Handler) http.Handler {
	if s.opts.AuthToken == "" {
		return next
	}
	want := []byte(s.opts.AuthToken)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || subtle.ConstantTimeCompare([]byte(token), want) != 1 {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:         s.opts.Addr,
		Handler:      s.mux,
		ReadTimeout:  s.opts.ReadTimeout,
		WriteTimeout: s.opts.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting conductor API", zap.String("addr", s.opts.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	s.logger.Info("shutting down conductor API")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-errCh
}
