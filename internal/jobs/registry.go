// Package jobs holds the in-memory Job Registry, per-job event Bus, and
// worker Pool the HTTP/WS surface and Workflow Engine share.
package jobs

import (
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/artemis/ai-modernizer/internal/agents"
	"github.com/artemis/ai-modernizer/internal/observability"
	"go.uber.org/zap"
)

// Registry holds every known MigrationState, adapted from
// internal/master/registry.go's Registry/workers map. Unlike the
// teacher, which mutates WorkerInfo fields in place under lock,
// Persist swaps in a deep-copied snapshot atomically so a reader never
// observes a partially updated state — the stronger guarantee the
// monotonic-state invariant (P6) needs.
type Registry struct {
	mu     sync.RWMutex
	states map[string]*agents.MigrationState
	logger *observability.Logger
}

func NewRegistry(logger *observability.Logger) *Registry {
	return &Registry{
		states: make(map[string]*agents.MigrationState),
		logger: logger,
	}
}

// Register adds a newly created state to the registry.
func (r *Registry) Register(state *agents.MigrationState) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states[state.ID] = deepCopyState(state)
	if r.logger != nil {
		r.logger.Info("migration job registered", zap.String("job_id", state.ID))
	}
}

// Persist atomically replaces the stored snapshot for state.ID with a
// deep copy of state, so concurrent readers (the HTTP surface) never
// see a torn write from the Workflow Engine.
func (r *Registry) Persist(state *agents.MigrationState) {
	state.UpdatedAt = time.Now()
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states[state.ID] = deepCopyState(state)
}

// Get returns a deep copy of the stored state so callers can't mutate
// registry-owned data.
func (r *Registry) Get(id string) (*agents.MigrationState, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.states[id]
	if !ok {
		return nil, false
	}
	return deepCopyState(s), true
}

// List returns a page of states ordered by CreatedAt descending (newest
// first), for GET /api/migrations.
func (r *Registry) List(limit, offset int) []*agents.MigrationState {
	r.mu.RLock()
	all := make([]*agents.MigrationState, 0, len(r.states))
	for _, s := range r.states {
		all = append(all, deepCopyState(s))
	}
	r.mu.RUnlock()

	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })

	if offset >= len(all) {
		return []*agents.MigrationState{}
	}
	end := len(all)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return all[offset:end]
}

// Remove deletes a state from the registry entirely (used by DELETE on
// an already-terminal job's record cleanup, distinct from cancellation).
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.states, id)
}

// deepCopyState round-trips state through JSON to get an independent
// copy, including its nested pointer fields (Plan, LatestOutcome,
// LatestAnalysis, Deployment) — acceptable overhead here since jobs
// persist at most once per workflow node, not per request.
func deepCopyState(state *agents.MigrationState) *agents.MigrationState {
	raw, err := json.Marshal(state)
	if err != nil {
		return state
	}
	var cp agents.MigrationState
	if err := json.Unmarshal(raw, &cp); err != nil {
		return state
	}
	return &cp
}
