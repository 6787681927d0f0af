// Package workflow drives one MigrationState through the Planner,
// Validator, Analyzer, and Deployer agents, adapted from the teacher's
// internal/migration.Engine/executeMigration shape.
package workflow

import (
	"context"
	"fmt"
	"time"

	"github.com/artemis/ai-modernizer/internal/agents"
	"github.com/artemis/ai-modernizer/internal/jobs"
	"github.com/artemis/ai-modernizer/internal/modelgateway"
	"github.com/artemis/ai-modernizer/internal/observability"
	"go.uber.org/zap"
)

const (
	StatusInitializing = "initializing"
	StatusPlanCreated  = "plan_created"
	StatusValidating   = "validating"
	StatusAnalyzing    = "analyzing"
	StatusValidated    = "validated"
	StatusDeployed     = "deployed"
	StatusError        = "error"
)

// Engine runs the agent pipeline for one MigrationState at a time,
// mirroring the teacher's Engine/executeMigration "persist then notify
// after every node" discipline.
type Engine struct {
	planner   *agents.Planner
	validator *agents.Validator
	analyzer  *agents.Analyzer
	deployer  *agents.Deployer

	registry *jobs.Registry
	bus      *jobs.Bus
	logger   *observability.Logger
	metrics  *observability.Metrics
	clock    agents.Clock
	gateway  *modelgateway.Gateway
}

func NewEngine(
	planner *agents.Planner,
	validator *agents.Validator,
	analyzer *agents.Analyzer,
	deployer *agents.Deployer,
	registry *jobs.Registry,
	bus *jobs.Bus,
	logger *observability.Logger,
	metrics *observability.Metrics,
	clock agents.Clock,
	gateway *modelgateway.Gateway,
) *Engine {
	if clock == nil {
		clock = agents.RealClock
	}
	return &Engine{
		planner:   planner,
		validator: validator,
		analyzer:  analyzer,
		deployer:  deployer,
		registry:  registry,
		bus:       bus,
		logger:    logger,
		metrics:   metrics,
		clock:     clock,
		gateway:   gateway,
	}
}

// Run executes the full node graph for state synchronously within the
// calling goroutine — intended to be invoked by one Job Registry worker
// at a time per job, matching "sequential within one job" (spec §5).
// It persists state and publishes a progress event after every node,
// the same persist-then-notify ordering as the teacher's
// streamProgress/executeMigration deferred final-update block.
func (e *Engine) Run(ctx context.Context, state *agents.MigrationState) {
	if e.metrics != nil {
		observability.ActiveJobs.Inc()
		defer observability.ActiveJobs.Dec()
	}

	defer func() {
		if e.metrics != nil {
			e.metrics.RecordJob(state.Status, string(state.ProjectKind))
		}
		if e.gateway != nil {
			e.gateway.ClearJob(state.ID)
		}
	}()

	state.Status = StatusInitializing
	e.persistAndNotify(state, "status", "")

	if e.cancelled(ctx, state) {
		return
	}

	if !e.runPlanner(ctx, state) {
		return
	}

	for {
		if e.cancelled(ctx, state) {
			return
		}

		proceed := e.runValidator(ctx, state)
		if !proceed {
			return
		}

		if state.LatestOutcome != nil && state.LatestOutcome.AggregateSuccess {
			e.runDeployer(ctx, state)
			return
		}

		if state.RetryCount >= state.RetryBudget {
			state.Status = StatusError
			state.Errors = append(state.Errors, "budget_exhausted")
			e.persistAndNotify(state, "error", "budget_exhausted")
			return
		}

		if e.cancelled(ctx, state) {
			return
		}

		if !e.runAnalyzer(ctx, state) {
			return
		}
	}
}

func (e *Engine) cancelled(ctx context.Context, state *agents.MigrationState) bool {
	select {
	case <-ctx.Done():
		state.Status = StatusError
		state.Errors = append(state.Errors, "cancelled")
		e.persistAndNotify(state, "error", "cancelled")
		return true
	default:
		return false
	}
}

func (e *Engine) runPlanner(ctx context.Context, state *agents.MigrationState) bool {
	state.Status = "planning"
	e.persistAndNotify(state, "agent_started", "planner")

	start := time.Now()
	plan, _, err := e.planner.Plan(ctx, state.ID, state.ProjectPath, state.ProjectKind)
	e.observeAgentDuration("planner", time.Since(start))

	if err != nil {
		state.Status = StatusError
		state.Errors = append(state.Errors, err.Error())
		e.persistAndNotify(state, "error", "planner")
		if e.logger != nil {
			e.logger.Error("planner failed", zap.String("job_id", state.ID), zap.Error(err))
		}
		return false
	}

	state.Plan = &plan
	state.Status = StatusPlanCreated
	e.persistAndNotify(state, "agent_completed", "planner")
	return true
}

func (e *Engine) runValidator(ctx context.Context, state *agents.MigrationState) bool {
	state.Status = StatusValidating
	e.persistAndNotify(state, "agent_started", "validator")

	start := time.Now()
	outcome, verdict, err := e.validator.Validate(ctx, state.ID, state.ProjectPath, state.ProjectKind, *state.Plan)
	e.observeAgentDuration("validator", time.Since(start))

	if err != nil {
		state.Status = StatusError
		state.Errors = append(state.Errors, err.Error())
		e.persistAndNotify(state, "error", "validator")
		return false
	}

	state.LatestOutcome = &outcome
	if outcome.AggregateSuccess {
		state.Status = StatusValidated
	}
	e.persistAndNotify(state, "agent_completed", "validator")

	if verdict == agents.VerdictRollback {
		state.Status = StatusError
		state.Errors = append(state.Errors, "validator requested rollback")
		e.persistAndNotify(state, "error", "validator")
		return false
	}
	return true
}

func (e *Engine) runAnalyzer(ctx context.Context, state *agents.MigrationState) bool {
	state.Status = StatusAnalyzing
	e.persistAndNotify(state, "agent_started", "analyzer")

	start := time.Now()
	analysis, err := e.analyzer.Analyze(ctx, state.ID, *state.LatestOutcome, *state.Plan)
	e.observeAgentDuration("analyzer", time.Since(start))

	if err != nil {
		state.Status = StatusError
		state.Errors = append(state.Errors, err.Error())
		e.persistAndNotify(state, "error", "analyzer")
		return false
	}

	state.LatestAnalysis = &analysis
	e.persistAndNotify(state, "agent_completed", "analyzer")

	if !analysis.Recoverable {
		state.Status = StatusError
		state.Errors = append(state.Errors, fmt.Sprintf("unrecoverable: %s", analysis.Category))
		e.persistAndNotify(state, "error", "analyzer")
		return false
	}

	applySuggestions(state.Plan, analysis.Suggestions)
	state.RetryCount++
	state.Status = StatusAnalyzing
	e.persistAndNotify(state, "status", "analyzer")
	return true
}

func (e *Engine) runDeployer(ctx context.Context, state *agents.MigrationState) {
	state.Status = "deploying"
	e.persistAndNotify(state, "agent_started", "deployer")

	start := time.Now()
	result, err := e.deployer.Deploy(ctx, *state)
	e.observeAgentDuration("deployer", time.Since(start))

	if err != nil {
		state.Status = StatusError
		state.Errors = append(state.Errors, err.Error())
		e.persistAndNotify(state, "error", "deployer")
		return
	}

	state.Deployment = &result
	state.Status = StatusDeployed
	e.persistAndNotify(state, "agent_completed", "deployer")
}

// applySuggestions mutates the plan's target versions per the
// Analyzer's ranked suggestions — the Engine's responsibility, not the
// Analyzer's, which only proposes.
func applySuggestions(plan *agents.MigrationPlan, suggestions []agents.FixSuggestion) {
	for _, s := range suggestions {
		if s.VersionChange == "" {
			continue
		}
		for i := range plan.Dependencies {
			if plan.Dependencies[i].Name == s.TargetPackage {
				plan.Dependencies[i].TargetVersion = s.VersionChange
			}
		}
	}
}

func (e *Engine) persistAndNotify(state *agents.MigrationState, eventType, agent string) {
	if e.gateway != nil {
		state.CostByAgent, state.TotalCost = e.gateway.CostByAgent(state.ID)
	}
	e.registry.Persist(state)
	e.bus.Publish(state.ID, jobs.Event{
		JobID:     state.ID,
		Type:      eventType,
		Agent:     agent,
		Status:    state.Status,
		Timestamp: e.clock(),
	})
}

func (e *Engine) observeAgentDuration(agent string, d time.Duration) {
	observability.AgentDuration.WithLabelValues(agent, "completed").Observe(d.Seconds())
}
