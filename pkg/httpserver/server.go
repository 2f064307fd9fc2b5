// Package httpserver exposes the engine's observability surface: health
// probes, Prometheus metrics and read-only task snapshots. There is no
// task control API here.
package httpserver

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	json "github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/crossvenue/predictarb/pkg/healthprobe"
	"github.com/crossvenue/predictarb/pkg/types"
)

// TaskSource serves task snapshots; the registry implements it.
type TaskSource interface {
	List() []types.TaskSnapshot
	Get(taskID string) (types.TaskSnapshot, bool)
}

// Server is the engine's HTTP server.
type Server struct {
	http   *http.Server
	logger *zap.Logger
}

// Config holds server configuration.
type Config struct {
	Addr   string
	Health *healthprobe.HealthChecker
	Tasks  TaskSource
	Logger *zap.Logger
}

// New builds the server and its routes.
func New(cfg *Config) *Server {
	s := &Server{logger: cfg.Logger}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		if cfg.Health.Live() {
			w.WriteHeader(http.StatusOK)
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
	})
	r.Get("/readyz", func(w http.ResponseWriter, _ *http.Request) {
		if cfg.Health.Ready() {
			w.WriteHeader(http.StatusOK)
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Get("/tasks", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, cfg.Tasks.List())
	})
	r.Get("/tasks/{id}", func(w http.ResponseWriter, req *http.Request) {
		snap, ok := cfg.Tasks.Get(chi.URLParam(req, "id"))
		if !ok {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "task not found"})
			return
		}
		writeJSON(w, http.StatusOK, snap)
	})

	s.http = &http.Server{
		Addr:              cfg.Addr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Handler returns the route tree, used directly by tests.
func (s *Server) Handler() http.Handler {
	return s.http.Handler
}

// Start serves until Shutdown. Blocking.
func (s *Server) Start() error {
	s.logger.Info("http-server-listening", zap.String("addr", s.http.Addr))
	err := s.http.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
