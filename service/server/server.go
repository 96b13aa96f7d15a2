package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ranklabs/txrank/service/config"
	"github.com/ranklabs/txrank/service/db"
	"github.com/ranklabs/txrank/service/metrics"
	"github.com/ranklabs/txrank/service/ranker"
	"github.com/ranklabs/txrank/service/temporal"
)

// Server represents the HTTP server for the scoring service.
type Server struct {
	addr           string
	cfg            *config.Config
	store          *db.Store
	ranker         *ranker.Ranker
	temporalClient *temporal.Client
	metrics        *metrics.Metrics
	logger         *slog.Logger
	server         *http.Server
}

// New creates a new HTTP server with the given dependencies.
// The temporalClient is optional - if nil, the block trigger endpoint won't be available.
// The metrics is optional - if nil, metrics endpoints won't be available.
func New(addr string, cfg *config.Config, store *db.Store, rk *ranker.Ranker, temporalClient *temporal.Client, m *metrics.Metrics, logger *slog.Logger) *Server {
	return &Server{
		addr:           addr,
		cfg:            cfg,
		store:          store,
		ranker:         rk,
		temporalClient: temporalClient,
		metrics:        m,
		logger:         logger,
	}
}

// Start starts the HTTP server. It blocks until Shutdown is called.
func (s *Server) Start() error {
	mux := http.NewServeMux()

	// Scoring routes
	mux.Handle("POST /api/v1/score", s.instrument("score", handleScoreTransaction(s.ranker, s.metrics, s.logger)))
	mux.Handle("GET /api/v1/rankings", s.instrument("rankings", handleGetRankings(s.ranker, s.logger)))
	mux.Handle("GET /api/v1/rankings/block", s.instrument("rankings_block", handleSelectBlock(s.ranker, s.cfg, s.logger)))

	// Persisted score routes
	mux.Handle("GET /api/v1/scores", s.instrument("list_scores", handleListScores(s.store, s.logger)))
	mux.Handle("GET /api/v1/scores/{signature}", s.instrument("get_score", handleGetScore(s.store, s.logger)))

	// Block trigger route (if a Temporal client is configured)
	if s.temporalClient != nil {
		mux.Handle("POST /api/v1/score/block", s.instrument("score_block", handleTriggerScoreBlock(s.temporalClient, s.logger)))
		s.logger.Info("block trigger endpoint enabled")
	} else {
		s.logger.Warn("temporal client not configured, block trigger endpoint disabled")
	}

	// Health check endpoint
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	// Prometheus metrics endpoint (if metrics collector is configured)
	if s.metrics != nil {
		mux.Handle("GET /metrics", promhttp.Handler())
		s.logger.Info("Prometheus metrics endpoint enabled")
	}

	handler := corsMiddleware(mux)

	s.server = &http.Server{
		Addr:         s.addr,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	s.logger.Info("starting HTTP server", "addr", s.addr)
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server failed: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")

	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

// instrument wraps a handler with the HTTP metrics middleware when metrics
// are configured.
func (s *Server) instrument(name string, h http.Handler) http.Handler {
	if s.metrics == nil {
		return h
	}
	return metrics.HTTPMetricsMiddleware(s.metrics, name)(h)
}

// corsMiddleware adds CORS headers to all responses and handles OPTIONS preflight requests.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Max-Age", "3600")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}
