package modelgateway

import (
	"context"
	"sync"
	"time"

	"github.com/artemis/ai-modernizer/internal/observability"
	"go.uber.org/zap"
)

// Spend tracks accumulated token usage and cost for one caller tag
// within one job.
type Spend struct {
	InputTokens  int
	OutputTokens int
	Cost         float64
	Calls        int
}

// Gateway wraps a Provider, tags every call with a job id and a caller
// identity ("planner", "validator", "analyzer", "deployer"), and
// accumulates spend per (job, caller) pair in a mutex-guarded map — the
// same guarded-map idiom the config package uses for its provider
// table. Spend is keyed by job so concurrent jobs sharing one Gateway
// never see each other's cost; ClearJob drops a job's entry once its
// cost has been folded into its MigrationState so the map doesn't grow
// without bound for a long-lived process.
type Gateway struct {
	provider Provider
	metrics  *observability.Metrics
	logger   *observability.Logger

	mu    sync.Mutex
	spend map[string]map[string]*Spend
}

// New builds a Gateway around provider.
func New(provider Provider, metrics *observability.Metrics, logger *observability.Logger) *Gateway {
	return &Gateway{
		provider: provider,
		metrics:  metrics,
		logger:   logger,
		spend:    make(map[string]map[string]*Spend),
	}
}

// Complete calls the underlying provider, tagging the call with jobID and
// caller for per-job cost accounting. The gateway never retries a failed
// call — callers that need a retry decide that themselves, since a model
// failure often indicates a cost-relevant situation (budget exhaustion,
// bad key) that retrying blindly would make worse.
func (g *Gateway) Complete(ctx context.Context, jobID, caller, systemPrompt, userPrompt string) (Completion, error) {
	start := time.Now()
	completion, err := g.provider.Complete(ctx, systemPrompt, userPrompt)
	duration := time.Since(start)

	status := "success"
	if err != nil {
		status = "error"
	}

	if g.metrics != nil {
		g.metrics.RecordModelCall(caller, g.provider.Name(), status, completion.Cost)
	}

	if err != nil {
		if g.logger != nil {
			g.logger.ErrorRedacted("model call failed",
				zap.String("job_id", jobID),
				zap.String("caller", caller),
				zap.String("provider", g.provider.Name()),
				zap.Int64("duration_ms", duration.Milliseconds()),
				zap.Error(err),
			)
		}
		return Completion{}, err
	}

	g.recordSpend(jobID, caller, completion)

	if g.logger != nil {
		g.logger.InfoRedacted("model call completed",
			zap.String("job_id", jobID),
			zap.String("caller", caller),
			zap.String("provider", g.provider.Name()),
			zap.Int64("duration_ms", duration.Milliseconds()),
			zap.Float64("cost", completion.Cost),
		)
	}

	return completion, nil
}

func (g *Gateway) recordSpend(jobID, caller string, c Completion) {
	g.mu.Lock()
	defer g.mu.Unlock()

	byCaller, ok := g.spend[jobID]
	if !ok {
		byCaller = make(map[string]*Spend)
		g.spend[jobID] = byCaller
	}
	s, ok := byCaller[caller]
	if !ok {
		s = &Spend{}
		byCaller[caller] = s
	}
	s.InputTokens += c.InputTokens
	s.OutputTokens += c.OutputTokens
	s.Cost += c.Cost
	s.Calls++
}

// SpendFor returns a copy of the accumulated spend for caller within jobID.
func (g *Gateway) SpendFor(jobID, caller string) Spend {
	g.mu.Lock()
	defer g.mu.Unlock()

	s, ok := g.spend[jobID][caller]
	if !ok {
		return Spend{}
	}
	return *s
}

// CostByAgent returns jobID's accumulated cost keyed by caller, and the
// total across every caller, for the Workflow Engine to fold into the
// job's MigrationState.
func (g *Gateway) CostByAgent(jobID string) (map[string]float64, float64) {
	g.mu.Lock()
	defer g.mu.Unlock()

	byCaller := g.spend[jobID]
	costs := make(map[string]float64, len(byCaller))
	total := 0.0
	for caller, s := range byCaller {
		costs[caller] = s.Cost
		total += s.Cost
	}
	return costs, total
}

// ClearJob discards jobID's accumulated spend once it has been read and
// persisted, so a long-lived Gateway's spend map stays bounded by
// in-flight jobs rather than every job ever run.
func (g *Gateway) ClearJob(jobID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.spend, jobID)
}
