package server

// Package server exposes the query engine over HTTP.
//
// Responsibilities:
//   - POST /api/v1/query: run one query to completion and return the result
//   - GET /api/v1/runs: browse persisted run history
//   - /ws/query: run queries over WebSocket with per-step streaming
//   - /healthz, /readyz, /metrics: operational endpoints

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/loglens/loglens-ai/internal/agent"
	"github.com/loglens/loglens-ai/internal/audit"
	"github.com/loglens/loglens-ai/internal/config"
	"github.com/loglens/loglens-ai/internal/db"
)

// QueryEngine runs one query to completion. Satisfied by agent.Orchestrator.
type QueryEngine interface {
	Analyze(ctx context.Context, query string) *agent.Result
}

// EngineFactory builds a QueryEngine with a step observer installed. The
// WebSocket endpoint uses one engine per connection so each client sees
// only its own steps.
type EngineFactory func(agent.StepObserver) QueryEngine

// Deps are the collaborators the server needs. Runs, Auditor, Logger and
// NewEngine may be nil; a nil NewEngine disables per-step streaming.
type Deps struct {
	Config    *config.Config
	Engine    QueryEngine
	NewEngine EngineFactory
	Runs      db.Store
	Auditor   audit.Logger
	Logger    *zap.Logger
}

// Server serves the query API over one loaded dataset.
type Server struct {
	cfg       *config.Config
	engine    QueryEngine
	newEngine EngineFactory
	runs      db.Store
	auditor   audit.Logger
	logger    *zap.Logger

	httpServer *http.Server

	mu      sync.Mutex
	running bool
}

// NewServer creates a server. It does not start listening.
func NewServer(deps Deps) (*Server, error) {
	if deps.Config == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if deps.Engine == nil {
		return nil, fmt.Errorf("query engine cannot be nil")
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		cfg:       deps.Config,
		engine:    deps.Engine,
		newEngine: deps.NewEngine,
		runs:      deps.Runs,
		auditor:   deps.Auditor,
		logger:    logger,
	}, nil
}

// Handler returns the full route table. Exposed for tests.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/readyz", s.handleReady)
	mux.Handle("/metrics", promhttp.Handler())

	query := http.HandlerFunc(s.handleQuery)
	stream := http.HandlerFunc(s.handleQueryStream)
	if s.cfg.Server.RateLimitPerMinute > 0 {
		rl := newRateLimiter(s.cfg.Server.RateLimitPerMinute)
		query = rl.middleware(query)
		stream = rl.middleware(stream)
	}
	mux.Handle("/api/v1/query", query)
	mux.HandleFunc("/api/v1/runs", s.handleListRuns)
	mux.HandleFunc("/api/v1/runs/", s.handleGetRun)

	mux.Handle("/ws/query", stream)

	return mux
}

// Start begins serving and blocks until the listener fails or Stop is
// called.
func (s *Server) Start() error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("server is already running")
	}
	s.running = true

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", s.cfg.Server.Port),
		Handler:      s.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 2 * time.Duration(s.cfg.Engine.QueryDeadlineSeconds) * time.Second,
		IdleTimeout:  120 * time.Second,
	}
	s.mu.Unlock()

	s.logger.Info("server listening",
		zap.Int("port", s.cfg.Server.Port),
		zap.Strings("allowed_origins", s.cfg.Server.AllowedOrigins),
	)
	if s.auditor != nil {
		_ = s.auditor.Log(context.Background(), audit.NewEvent(audit.EventServerStarted).
			WithDescription(fmt.Sprintf("listening on port %d", s.cfg.Server.Port)).
			WithResult(audit.ResultSuccess))
	}

	err := s.httpServer.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Stop drains in-flight requests and shuts the listener down.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return nil
	}
	s.running = false

	s.logger.Info("server stopping")
	if s.auditor != nil {
		_ = s.auditor.Log(ctx, audit.NewEvent(audit.EventServerShutdown).
			WithResult(audit.ResultSuccess))
	}
	return s.httpServer.Shutdown(ctx)
}
