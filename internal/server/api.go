package server

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/artemis/ai-modernizer/internal/agents"
	"github.com/artemis/ai-modernizer/internal/sandbox"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type startMigrationRequest struct {
	ProjectPath   string `json:"project_path" binding:"required"`
	ProjectKind   string `json:"project_kind" binding:"required"`
	MaxRetries    *int   `json:"max_retries"`
	SourceBranch  string `json:"source_branch"`
	CodeHostToken string `json:"code_host_token"`
}

// StartMigration validates the request, registers a new MigrationState,
// and hands the job to the worker pool, returning immediately with an
// accepted status — the engine runs the job asynchronously.
func (s *Server) StartMigration(c *gin.Context) {
	var req startMigrationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	kind := sandbox.ProjectKind(req.ProjectKind)
	if kind != sandbox.KindNodeJS && kind != sandbox.KindPython {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("unsupported project_kind %q", req.ProjectKind)})
		return
	}

	retryBudget := s.config.MaxRetryAttempts
	if req.MaxRetries != nil {
		retryBudget = *req.MaxRetries
	}
	sourceBranch := req.SourceBranch
	if sourceBranch == "" {
		sourceBranch = "main"
	}

	now := time.Now()
	state := &agents.MigrationState{
		ID:               newJobID(now),
		ProjectPath:      req.ProjectPath,
		ProjectKind:      kind,
		SourceBranch:     sourceBranch,
		HasCodeHostToken: req.CodeHostToken != "" || s.config.CodeHostToken != "",
		Status:           "queued",
		RetryBudget:      retryBudget,
		CostByAgent:      make(map[string]float64),
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	s.registry.Register(state)

	ctx, cancel := context.WithCancel(context.Background())
	s.trackCancel(state.ID, cancel)

	s.pool.Submit(func() {
		defer cancel()
		defer s.untrackCancel(state.ID)
		s.engine.Run(ctx, state)
	})

	c.JSON(http.StatusAccepted, gin.H{
		"migration_id": state.ID,
		"status":       "accepted",
	})
}

// newJobID derives a job id from the clock rather than a random
// generator, matching the deterministic-timestamp-derived identifiers
// used elsewhere in this codebase (agents.Deployer's branch names).
func newJobID(t time.Time) string {
	return "job-" + t.UTC().Format("20060102-150405.000000000")
}

// ListMigrations returns a paginated view over the registry.
func (s *Server) ListMigrations(c *gin.Context) {
	limit := queryInt(c, "limit", 50)
	offset := queryInt(c, "offset", 0)

	items := s.registry.List(limit, offset)
	total := len(s.registry.List(0, 0))

	c.JSON(http.StatusOK, gin.H{
		"items":  items,
		"total":  total,
		"limit":  limit,
		"offset": offset,
	})
}

func queryInt(c *gin.Context, name string, fallback int) int {
	raw := c.Query(name)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return fallback
	}
	return v
}

// GetMigration returns the current MigrationState snapshot plus links to
// the report endpoints.
func (s *Server) GetMigration(c *gin.Context) {
	id := c.Param("id")
	state, ok := s.registry.Get(id)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "migration not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"state": state,
		"links": gin.H{
			"report":         fmt.Sprintf("/api/migrations/%s/report", id),
			"report_content": fmt.Sprintf("/api/migrations/%s/report_content", id),
		},
	})
}

// GetMigrationReport returns report bytes as a downloadable attachment.
func (s *Server) GetMigrationReport(c *gin.Context) {
	_, body, ok := s.renderReport(c)
	if !ok {
		return
	}
	format := c.DefaultQuery("type", "json")
	filename := fmt.Sprintf("migration-%s.%s", c.Param("id"), format)
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, "application/octet-stream", body)
}

// GetMigrationReportContent returns the same bytes inline in a JSON
// envelope, for in-browser viewing.
func (s *Server) GetMigrationReportContent(c *gin.Context) {
	_, body, ok := s.renderReport(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"type":    c.DefaultQuery("type", "json"),
		"content": string(body),
	})
}

func (s *Server) renderReport(c *gin.Context) (agents.MigrationState, []byte, bool) {
	id := c.Param("id")
	state, ok := s.registry.Get(id)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "migration not found"})
		return agents.MigrationState{}, nil, false
	}

	format := c.DefaultQuery("type", "json")
	body, err := s.report.Render(*state, format)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return agents.MigrationState{}, nil, false
	}
	return *state, body, true
}

// DeleteMigration cancels a running job (waiting briefly for it to reach
// a terminal status) or removes a terminal one outright, grounded on the
// teacher's CancelMigration: cancel the context and let the in-flight
// teardown finish rather than erroring the request.
func (s *Server) DeleteMigration(c *gin.Context) {
	id := c.Param("id")
	state, ok := s.registry.Get(id)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "migration not found"})
		return
	}

	if !isTerminal(state.Status) {
		if cancel, ok := s.cancelFor(id); ok {
			cancel()
			if s.logger != nil {
				s.logger.Info("migration cancellation requested", zap.String("job_id", id))
			}
			waitForTerminal(s.registry, id, 5*time.Second)
		}
	}

	s.registry.Remove(id)
	s.bus.Close(id)

	c.JSON(http.StatusOK, gin.H{"status": "removed"})
}

// GetHealth reports docker reachability, whether at least one model
// provider is configured, the number of active jobs, and the periodic
// HealthChecker's per-component view when one is wired in.
func (s *Server) GetHealth(c *gin.Context) {
	dockerOK := s.driver != nil
	if dockerOK {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
		defer cancel()
		dockerOK = s.driver.Ping(ctx) == nil
	}

	providersConfigured := len(s.config.Providers) > 0 || s.config.ModelProvider == "mock"

	active := 0
	for _, state := range s.registry.List(0, 0) {
		if !isTerminal(state.Status) {
			active++
		}
	}
	if s.metrics != nil {
		s.metrics.SetActiveJobs(float64(active))
	}

	body := gin.H{
		"status":               "ok",
		"docker_ok":            dockerOK,
		"providers_configured": providersConfigured,
		"active_jobs":          active,
	}
	if s.health != nil {
		body["components"] = s.health.GetHealth()
	}

	c.JSON(http.StatusOK, body)
}
