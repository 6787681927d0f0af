// Package server exposes the Job Registry, Bus, and Pool over HTTP and
// WebSocket, adapted from the teacher's internal/server package: same
// Server struct shape, same gin setup, same logging/CORS middleware,
// narrowed from container/image/volume/network/peer management to
// migration job management.
package server

import (
	"context"
	"sync"
	"time"

	"github.com/artemis/ai-modernizer/internal/agents"
	"github.com/artemis/ai-modernizer/internal/config"
	"github.com/artemis/ai-modernizer/internal/jobs"
	"github.com/artemis/ai-modernizer/internal/observability"
	"github.com/artemis/ai-modernizer/internal/sandbox"
	"github.com/artemis/ai-modernizer/internal/workflow"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Server holds every subsystem an HTTP handler needs to reach, mirroring
// the teacher's Server struct (config/docker/logger/health/migration/hub)
// with the container-fleet dependencies swapped for the job pipeline's.
type Server struct {
	config   *config.Config
	registry *jobs.Registry
	bus      *jobs.Bus
	pool     *jobs.Pool
	engine   *workflow.Engine
	driver   *sandbox.Driver
	logger   *observability.Logger
	health   *observability.HealthChecker
	metrics  *observability.Metrics
	report   ReportRenderer

	router *gin.Engine

	mu      sync.Mutex
	cancels map[string]context.CancelFunc
}

// NewServer wires every dependency and builds the gin router.
func NewServer(
	cfg *config.Config,
	registry *jobs.Registry,
	bus *jobs.Bus,
	pool *jobs.Pool,
	engine *workflow.Engine,
	driver *sandbox.Driver,
	healthChecker *observability.HealthChecker,
	metrics *observability.Metrics,
	logger *observability.Logger,
) *Server {
	if cfg.LogLevel == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	s := &Server{
		config:   cfg,
		registry: registry,
		bus:      bus,
		pool:     pool,
		engine:   engine,
		driver:   driver,
		logger:   logger,
		health:   healthChecker,
		metrics:  metrics,
		report:   JSONReportRenderer{},
		cancels:  make(map[string]context.CancelFunc),
	}

	s.setupRouter()
	return s
}

func (s *Server) setupRouter() {
	r := gin.New()

	r.Use(gin.Recovery())
	r.Use(s.loggingMiddleware())
	r.Use(s.corsMiddleware())

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/api/health", s.GetHealth)

	api := r.Group("/api/migrations")
	{
		api.POST("/start", s.StartMigration)
		api.GET("", s.ListMigrations)
		api.GET("/:id", s.GetMigration)
		api.GET("/:id/report", s.GetMigrationReport)
		api.GET("/:id/report_content", s.GetMigrationReportContent)
		api.DELETE("/:id", s.DeleteMigration)
	}

	r.GET("/ws/migrations/:id", s.HandleWebSocket)
	r.NoRoute(notFoundHandler)

	s.router = r
}

// loggingMiddleware logs HTTP requests, kept near-verbatim from the
// teacher's redacted request logging.
func (s *Server) loggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.URL.Path == "/api/health" {
			c.Next()
			return
		}

		c.Next()

		if s.logger != nil {
			s.logger.InfoRedacted("http request",
				zap.String("method", c.Request.Method),
				zap.String("path", c.Request.URL.Path),
				zap.Int("status", c.Writer.Status()),
				zap.String("ip", c.ClientIP()),
			)
		}
	}
}

// corsMiddleware handles CORS, kept verbatim from the teacher.
func (s *Server) corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, DELETE")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	}
}

// Start runs the HTTP server, blocking until it stops. The Bus and Pool
// are already running from construction.
func (s *Server) Start() error {
	if s.logger != nil {
		s.logger.Info("starting HTTP server", zap.String("addr", s.config.HTTPAddr))
	}
	return s.router.Run(s.config.HTTPAddr)
}

// Stop closes the worker pool: it waits for running jobs, queued jobs no
// worker has picked up may never run, and later submissions are ignored.
// The HTTP listener is not shut down.
func (s *Server) Stop() error {
	if s.logger != nil {
		s.logger.Info("stopping HTTP server")
	}
	s.pool.Close()
	return nil
}

// GetRouter returns the gin router for tests that want to drive it
// directly with httptest.
func (s *Server) GetRouter() *gin.Engine {
	return s.router
}

// trackCancel records the cancel function for a running job so DELETE
// can stop it, and removes the entry once the job's goroutine returns.
func (s *Server) trackCancel(jobID string, cancel context.CancelFunc) {
	s.mu.Lock()
	s.cancels[jobID] = cancel
	s.mu.Unlock()
}

func (s *Server) untrackCancel(jobID string) {
	s.mu.Lock()
	delete(s.cancels, jobID)
	s.mu.Unlock()
}

func (s *Server) cancelFor(jobID string) (context.CancelFunc, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cancel, ok := s.cancels[jobID]
	return cancel, ok
}

func isTerminal(status string) bool {
	return status == workflow.StatusDeployed || status == workflow.StatusError
}

func waitForTerminal(registry *jobs.Registry, jobID string, timeout time.Duration) *agents.MigrationState {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		state, ok := registry.Get(jobID)
		if !ok || isTerminal(state.Status) {
			return state
		}
		time.Sleep(25 * time.Millisecond)
	}
	state, _ := registry.Get(jobID)
	return state
}
