// Package api serves the operational endpoints exposed while a harvest runs:
// liveness, Prometheus metrics, and a progress snapshot.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/beautydex/harvester/internal/harvest"
)

// Server is the ops HTTP listener. It carries no harvest control surface;
// runs are driven by the CLI.
type Server struct {
	httpServer *http.Server
	logger     *zap.Logger

	mu   sync.RWMutex
	info harvest.RunInfo
}

// NewServer builds the ops server on addr.
func NewServer(addr string, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{logger: logger}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/healthz", s.handleHealthz)
	r.Get("/progress", s.handleProgress)
	r.Handle("/metrics", promhttp.Handler())

	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// SetProgress publishes the latest run snapshot for /progress.
func (s *Server) SetProgress(info harvest.RunInfo) {
	s.mu.Lock()
	s.info = info
	s.mu.Unlock()
}

// Start listens in a background goroutine until Shutdown.
func (s *Server) Start() {
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Warn("Ops server stopped", zap.Error(err))
		}
	}()
	s.logger.Info("Ops server listening", zap.String("addr", s.httpServer.Addr))
}

// Shutdown stops the listener, waiting for in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

func (s *Server) handleProgress(w http.ResponseWriter, _ *http.Request) {
	s.mu.RLock()
	info := s.info
	s.mu.RUnlock()

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(info); err != nil {
		s.logger.Debug("Failed to encode progress", zap.Error(err))
	}
}
