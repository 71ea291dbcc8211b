// Package server exposes the query pipeline over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"d3fend-graphx/internal/metrics"
	"d3fend-graphx/internal/rag"
	"d3fend-graphx/internal/resultset"
	"d3fend-graphx/internal/runner"
)

// Asker answers natural-language questions.
type Asker interface {
	Ask(ctx context.Context, question string) (*rag.Answer, error)
}

// Config holds HTTP server settings.
type Config struct {
	Addr         string
	CORSOrigin   string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	// MaxBodyBytes caps request bodies.
	MaxBodyBytes int64
}

// DefaultConfig returns default server settings.
func DefaultConfig() Config {
	return Config{
		Addr:         ":3000",
		CORSOrigin:   "*",
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 5 * time.Minute,
		MaxBodyBytes: 1 << 20,
	}
}

// Server routes REST requests to the pipeline.
type Server struct {
	router   *mux.Router
	pipeline *runner.Pipeline
	asker    Asker
	metrics  *metrics.Metrics
	logger   *zap.Logger
	config   Config
}

// NewServer creates the server. asker and m may be nil.
func NewServer(p *runner.Pipeline, asker Asker, m *metrics.Metrics, logger *zap.Logger, cfg Config) (*Server, error) {
	if p == nil {
		return nil, errors.New("pipeline is required")
	}
	if logger == nil {
		return nil, errors.New("logger is required")
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = DefaultConfig().MaxBodyBytes
	}

	s := &Server{
		router:   mux.NewRouter(),
		pipeline: p,
		asker:    asker,
		metrics:  m,
		logger:   logger,
		config:   cfg,
	}
	s.setupRoutes()
	s.setupMiddleware()
	return s, nil
}

func (s *Server) setupRoutes() {
	s.router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	s.router.Handle("/metrics", s.metrics.Handler()).Methods(http.MethodGet)

	api := s.router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/domains", s.handleDomains).Methods(http.MethodGet)
	api.HandleFunc("/domains/{domain}/queries", s.handleQueries).Methods(http.MethodGet)
	api.HandleFunc("/domains/{domain}/queries/{id}", s.handleQuery).Methods(http.MethodGet)
	api.HandleFunc("/domains/{domain}/queries/{id}/run", s.handleRun).Methods(http.MethodPost)
	api.HandleFunc("/graphdb/query", s.handleRawQuery(resultset.GraphDB, "GraphDB")).Methods(http.MethodPost)
	api.HandleFunc("/neo4j/query", s.handleRawQuery(resultset.Neo4j, "Neo4j")).Methods(http.MethodPost)
	api.HandleFunc("/neo4j/nodes/{id}/expand", s.handleExpand).Methods(http.MethodGet)
	api.HandleFunc("/ask", s.handleAsk).Methods(http.MethodPost)

	// Lets preflight requests reach the CORS middleware.
	s.router.PathPrefix("/").Methods(http.MethodOptions).HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
}

func (s *Server) setupMiddleware() {
	s.router.Use(s.requestIDMiddleware)
	s.router.Use(s.loggingMiddleware)
	s.router.Use(s.corsMiddleware)
	s.router.Use(s.recoveryMiddleware)
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	srv := &http.Server{
		Addr:         s.config.Addr,
		Handler:      s,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}

	s.logger.Info("Starting API server",
		zap.String("addr", s.config.Addr),
		zap.String("cors_origin", s.config.CORSOrigin))

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("Shutting down API server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	}
}
