package workflow

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/artemis/ai-modernizer/internal/agents"
	"github.com/artemis/ai-modernizer/internal/jobs"
	"github.com/artemis/ai-modernizer/internal/modelgateway"
	"github.com/artemis/ai-modernizer/internal/registryprobe"
	"github.com/artemis/ai-modernizer/internal/sandbox"
	"github.com/artemis/ai-modernizer/internal/toolhost"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedClock(t time.Time) agents.Clock {
	return func() time.Time { return t }
}

func TestEngineZeroUpgradePlanShortCircuitsToDeployed(t *testing.T) {
	dir := t.TempDir()
	manifestPath := filepath.Join(dir, "package.json")
	manifest := `{"name":"demo","dependencies":{"left-pad":"1.0.0"}}`
	require.NoError(t, os.WriteFile(manifestPath, []byte(manifest), 0644))

	host := toolhost.NewHost(nil, toolhost.NewLocalFS(), toolhost.NewMockCodeHost(), nil, nil)
	fs := toolhost.NewFSClient(host, "fs")
	codeHost := toolhost.NewCodeHostClient(host, "code_host")

	mock := modelgateway.NewMockProvider("")
	mock.Script(
		"Project kind: nodejs\nDependencies (name, current version, latest registry version):\n- left-pad: current=1.0.0 latest=unknown\n",
		`{"dependencies":[{"name":"left-pad","current":"1.0.0","target":"1.0.0","action":"keep","risk":"low"}]}`,
	)
	gw := modelgateway.New(mock, nil, nil)

	planner := agents.NewPlanner(fs, registryprobe.New(1), gw)
	validator := agents.NewValidator(fs, nil, gw)
	analyzer := agents.NewAnalyzer(gw)
	deployer := agents.NewDeployer(fs, codeHost, fixedClock(time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)))

	registry := jobs.NewRegistry(nil)
	bus := jobs.NewBus()

	engine := NewEngine(planner, validator, analyzer, deployer, registry, bus, nil, nil, fixedClock(time.Now()), gw)

	state := &agents.MigrationState{
		ID:           "job-1",
		ProjectPath:  dir,
		ProjectKind:  sandbox.KindNodeJS,
		SourceBranch: "main",
		RetryBudget:  3,
		CreatedAt:    time.Now(),
	}
	registry.Register(state)

	engine.Run(context.Background(), state)

	assert.Equal(t, StatusDeployed, state.Status)
	require.NotNil(t, state.Deployment)
	assert.True(t, state.Deployment.Mock)
	assert.Equal(t, "upgrade/dependencies-20260102-030405", state.Deployment.BranchName)

	persisted, ok := registry.Get("job-1")
	require.True(t, ok)
	assert.Equal(t, StatusDeployed, persisted.Status)

	assert.Contains(t, persisted.CostByAgent, "planner")
	assert.Equal(t, persisted.CostByAgent["planner"], persisted.TotalCost)

	costs, total := gw.CostByAgent("job-1")
	assert.Empty(t, costs, "gateway should have cleared job-1's spend once the job reached a terminal state")
	assert.Zero(t, total)
}

func TestEngineMissingManifestYieldsError(t *testing.T) {
	dir := t.TempDir()

	host := toolhost.NewHost(nil, toolhost.NewLocalFS(), toolhost.NewMockCodeHost(), nil, nil)
	fs := toolhost.NewFSClient(host, "fs")
	codeHost := toolhost.NewCodeHostClient(host, "code_host")

	mock := modelgateway.NewMockProvider("")
	gw := modelgateway.New(mock, nil, nil)

	planner := agents.NewPlanner(fs, registryprobe.New(1), gw)
	validator := agents.NewValidator(fs, nil, gw)
	analyzer := agents.NewAnalyzer(gw)
	deployer := agents.NewDeployer(fs, codeHost, nil)

	registry := jobs.NewRegistry(nil)
	bus := jobs.NewBus()
	engine := NewEngine(planner, validator, analyzer, deployer, registry, bus, nil, nil, nil, gw)

	state := &agents.MigrationState{
		ID:          "job-2",
		ProjectPath: dir,
		ProjectKind: sandbox.KindNodeJS,
		RetryBudget: 3,
		CreatedAt:   time.Now(),
	}
	registry.Register(state)

	engine.Run(context.Background(), state)

	assert.Equal(t, StatusError, state.Status)
	require.NotEmpty(t, state.Errors)
}

func TestEngineCancelledContextStopsBeforePlanner(t *testing.T) {
	host := toolhost.NewHost(nil, toolhost.NewLocalFS(), toolhost.NewMockCodeHost(), nil, nil)
	fs := toolhost.NewFSClient(host, "fs")
	codeHost := toolhost.NewCodeHostClient(host, "code_host")

	mock := modelgateway.NewMockProvider("")
	gw := modelgateway.New(mock, nil, nil)

	planner := agents.NewPlanner(fs, registryprobe.New(1), gw)
	validator := agents.NewValidator(fs, nil, gw)
	analyzer := agents.NewAnalyzer(gw)
	deployer := agents.NewDeployer(fs, codeHost, nil)

	registry := jobs.NewRegistry(nil)
	bus := jobs.NewBus()
	engine := NewEngine(planner, validator, analyzer, deployer, registry, bus, nil, nil, nil, gw)

	state := &agents.MigrationState{ID: "job-3", RetryBudget: 3, CreatedAt: time.Now()}
	registry.Register(state)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	engine.Run(ctx, state)

	assert.Equal(t, StatusError, state.Status)
	assert.Contains(t, state.Errors, "cancelled")
}
