// Package server exposes the calculation engine over a JSON HTTP API. The
// endpoints are stateless dataset/graph operations plus run history backed
// by the run store.
package server

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/calcflow-labs/calcflow/internal/state"
	"github.com/calcflow-labs/calcflow/internal/workbook"
)

// Server is the calculation API server.
type Server struct {
	port     int
	logger   *slog.Logger
	store    state.Store
	workbook *workbook.Workbook
}

// Config holds configuration for the API server.
type Config struct {
	Port int
	// Store enables the run history endpoints and run recording.
	Store state.Store
	// Workbook enables POST /api/run for the loaded workbook.
	Workbook *workbook.Workbook
	Logger   *slog.Logger
}

// New creates a new API server instance.
func New(cfg Config) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Server{
		port:     cfg.Port,
		logger:   logger,
		store:    cfg.Store,
		workbook: cfg.Workbook,
	}
}

// Routes builds the HTTP handler. Exposed separately so tests can drive it
// with httptest without binding a port.
func (s *Server) Routes() http.Handler {
	r := chi.NewMux()
	r.Use(
		middleware.RequestID,
		middleware.Recoverer,
		middleware.Compress(5),
	)

	r.Get("/healthz", s.handleHealth)

	r.Route("/api", func(r chi.Router) {
		r.Post("/graph/evaluate", s.handleGraphEvaluate)
		r.Post("/dataset/formula", s.handleDatasetFormula)
		r.Post("/dataset/transform", s.handleDatasetTransform)
		r.Post("/dataset/join", s.handleDatasetJoin)
		r.Post("/dataset/filter", s.handleDatasetFilter)

		if s.workbook != nil {
			r.Post("/run", s.handleRun)
		}
		if s.store != nil {
			r.Get("/runs", s.handleListRuns)
			r.Get("/runs/{id}", s.handleGetRun)
		}
	})

	return r
}

// Serve starts the API server and blocks until the context is cancelled.
func (s *Server) Serve(ctx context.Context) error {
	addr := fmt.Sprintf(":%d", s.port)
	s.logger.Info("starting API server", "addr", fmt.Sprintf("http://localhost:%d", s.port))

	eg, egctx := errgroup.WithContext(ctx)

	srv := &http.Server{
		Addr:    addr,
		Handler: s.Routes(),
		BaseContext: func(_ net.Listener) context.Context {
			return egctx
		},
		ReadHeaderTimeout: 10 * time.Second,
	}

	eg.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	eg.Go(func() error {
		<-egctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		s.logger.Debug("shutting down API server...")
		return srv.Shutdown(shutdownCtx)
	})

	return eg.Wait()
}
