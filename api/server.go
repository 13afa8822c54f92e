// Package api provides the HTTP REST API for SIAM.
//
// Endpoints:
//
//	POST   /api/chat              synchronous answer (JSON)
//	POST   /api/chat/stream       streaming answer (SSE)
//	POST   /api/knowledge         batch document ingestion
//	DELETE /api/knowledge         delete one record by source
//	POST   /api/knowledge/dedup   deduplicate crawled records
//	POST   /api/healing/attempts  run one selector healing attempt
//	GET    /api/healing/attempts  recent healing attempts
//	GET    /health                liveness probe
//	GET    /ready                 readiness probe
//
// File structure:
//   - server.go: HTTP server setup and lifecycle
//   - middleware.go: HTTP middleware (logging, recovery)
//   - health.go: health check endpoints (/health, /ready)
//   - chat.go: answering endpoints (sync + SSE)
//   - knowledge.go: ingestion and store management endpoints
//   - healing.go: selector healing demo endpoints
//   - response.go: JSON response helpers
package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/siamlabs/siam/internal/healing"
)

const (
	// DefaultAddr is the default address for the HTTP server.
	DefaultAddr = "127.0.0.1:3400"

	// ShutdownTimeout is the maximum time to wait for graceful shutdown.
	ShutdownTimeout = 10 * time.Second

	// ReadHeaderTimeout is the timeout for reading request headers.
	// This prevents Slowloris attacks (CWE-400).
	ReadHeaderTimeout = 10 * time.Second

	// ReadTimeout is the maximum duration for reading the entire request.
	ReadTimeout = 30 * time.Second

	// WriteTimeout is the maximum duration for writing the response.
	// Streaming responses can exceed it; keep-alive SSE clients should
	// reconnect.
	WriteTimeout = 60 * time.Second

	// IdleTimeout is the maximum time to wait for the next request on
	// keep-alive connections.
	IdleTimeout = 120 * time.Second
)

// Server is the HTTP server for SIAM's REST API.
type Server struct {
	mux *http.ServeMux

	health    *HealthHandler
	chat      *ChatHandler
	knowledge *KnowledgeHandler
	healing   *HealingHandler

	logger *slog.Logger
}

// NewServer creates a new HTTP server with all routes registered.
// Any nil dependency disables its endpoints; the corresponding handler
// logs a warning instead of registering routes.
func NewServer(pipeline Answerer, store KnowledgeStore, ingester BatchIngester, runner *healing.Runner, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	mux := http.NewServeMux()

	s := &Server{
		mux:       mux,
		health:    NewHealthHandler(store, logger),
		chat:      NewChatHandler(pipeline, logger),
		knowledge: NewKnowledgeHandler(store, ingester, logger),
		healing:   NewHealingHandler(runner, logger),
		logger:    logger,
	}

	s.health.RegisterRoutes(mux)
	s.chat.RegisterRoutes(mux)
	s.knowledge.RegisterRoutes(mux)
	s.healing.RegisterRoutes(mux)

	return s
}

// Handler returns the HTTP handler with middleware applied.
// Middleware order: recovery → logging → handler.
func (s *Server) Handler() http.Handler {
	return chain(s.mux, recoveryMiddleware(s.logger), loggingMiddleware(s.logger))
}

// Run starts the HTTP server and blocks until the context is
// cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	if addr == "" {
		addr = DefaultAddr
	}

	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: ReadHeaderTimeout,
		ReadTimeout:       ReadTimeout,
		WriteTimeout:      WriteTimeout,
		IdleTimeout:       IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting HTTP server", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("shutting down HTTP server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}
}
