// Package server exposes the task interpreter over HTTP: a JSON REST API for
// one-shot device operations and task execution, and a WebSocket channel that
// streams step outcomes while a task runs.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/xkilldash9x/deskpilot/internal/config"
	"github.com/xkilldash9x/deskpilot/internal/history"
	"github.com/xkilldash9x/deskpilot/internal/interpreter"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Server hosts the HTTP API over one interpreter instance.
type Server struct {
	cfg         config.ServerConfig
	interp      *interpreter.Interpreter
	history     *history.Store // nil when persistence is disabled
	taskTimeout time.Duration
	logger      *zap.Logger
}

// New creates a server. The history store may be nil.
func New(cfg config.ServerConfig, taskTimeout time.Duration, interp *interpreter.Interpreter, hist *history.Store, logger *zap.Logger) *Server {
	return &Server{
		cfg:         cfg,
		interp:      interp,
		history:     hist,
		taskTimeout: taskTimeout,
		logger:      logger.Named("server"),
	}
}

// Router assembles the route tree.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(s.corsMiddleware)

	r.Get("/healthz", s.handleHealth)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/screen/capture", s.handleScreenCapture)
		r.Get("/screen/text", s.handleScreenText)
		r.Post("/mouse/move", s.handleMouseMove)
		r.Post("/mouse/click", s.handleMouseClick)
		r.Post("/keyboard/type", s.handleKeyboardType)
		r.Post("/keyboard/hotkey", s.handleKeyboardHotkey)
		r.Post("/app/open", s.handleAppOpen)
		r.Post("/task/execute", s.handleTaskExecute)
		r.Get("/tasks", s.handleTaskList)
		r.Get("/tasks/{taskID}", s.handleTaskGet)
	})

	r.Get("/ws/v1/tasks", s.handleTaskStream)

	return r
}

// Run serves until the context is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:         s.cfg.Addr,
		Handler:      s.Router(),
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening",
			zap.String("addr", s.cfg.Addr),
			zap.String("mode", string(s.interp.Mode())))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	s.logger.Info("http server stopped")
	return nil
}

// corsMiddleware mirrors the permissive CORS policy of the original service:
// the API serves local tooling and the bundled web UI.
func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Warn("failed to encode response", zap.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]any{"success": false, "error": msg})
}
