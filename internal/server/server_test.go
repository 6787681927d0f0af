package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/artemis/ai-modernizer/internal/agents"
	"github.com/artemis/ai-modernizer/internal/config"
	"github.com/artemis/ai-modernizer/internal/jobs"
	"github.com/artemis/ai-modernizer/internal/modelgateway"
	"github.com/artemis/ai-modernizer/internal/registryprobe"
	"github.com/artemis/ai-modernizer/internal/toolhost"
	"github.com/artemis/ai-modernizer/internal/workflow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) (*Server, string) {
	t.Helper()
	dir := t.TempDir()
	manifest := `{"name":"demo","dependencies":{"left-pad":"1.0.0"}}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "package.json"), []byte(manifest), 0644))

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
	deployer := agents.NewDeployer(fs, codeHost, nil)

	registry := jobs.NewRegistry(nil)
	bus := jobs.NewBus()
	pool := jobs.NewPool(2)
	engine := workflow.NewEngine(planner, validator, analyzer, deployer, registry, bus, nil, nil, nil, gw)

	cfg := config.DefaultConfig()
	cfg.LogLevel = "debug"

	srv := NewServer(cfg, registry, bus, pool, engine, nil, nil, nil, nil)
	return srv, dir
}

func TestStartMigrationThenGetReachesDeployed(t *testing.T) {
	srv, dir := newTestServer(t)
	router := srv.GetRouter()

	body := `{"project_path":"` + dir + `","project_kind":"nodejs"}`
	req := httptest.NewRequest(http.MethodPost, "/api/migrations/start", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusAccepted, rec.Code)

	var accepted struct {
		MigrationID string `json:"migration_id"`
		Status      string `json:"status"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &accepted))
	assert.Equal(t, "accepted", accepted.Status)
	require.NotEmpty(t, accepted.MigrationID)

	deadline := time.Now().Add(2 * time.Second)
	var status string
	for time.Now().Before(deadline) {
		getReq := httptest.NewRequest(http.MethodGet, "/api/migrations/"+accepted.MigrationID, nil)
		getRec := httptest.NewRecorder()
		router.ServeHTTP(getRec, getReq)
		require.Equal(t, http.StatusOK, getRec.Code)

		var payload struct {
			State struct {
				Status string `json:"status"`
			} `json:"state"`
		}
		require.NoError(t, json.Unmarshal(getRec.Body.Bytes(), &payload))
		status = payload.State.Status
		if status == workflow.StatusDeployed || status == workflow.StatusError {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}

	assert.Equal(t, workflow.StatusDeployed, status)
	srv.Stop()
}

func TestStartMigrationRejectsUnknownProjectKind(t *testing.T) {
	srv, dir := newTestServer(t)
	router := srv.GetRouter()

	body := `{"project_path":"` + dir + `","project_kind":"rust"}`
	req := httptest.NewRequest(http.MethodPost, "/api/migrations/start", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	srv.Stop()
}

func TestGetMigrationUnknownIDReturns404(t *testing.T) {
	srv, _ := newTestServer(t)
	router := srv.GetRouter()

	req := httptest.NewRequest(http.MethodGet, "/api/migrations/does-not-exist", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	srv.Stop()
}

func TestDeleteTerminalMigrationRemovesIt(t *testing.T) {
	srv, _ := newTestServer(t)
	router := srv.GetRouter()

	state := &agents.MigrationState{ID: "job-done", Status: workflow.StatusDeployed, CreatedAt: time.Now()}
	srv.registry.Register(state)

	req := httptest.NewRequest(http.MethodDelete, "/api/migrations/job-done", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	_, ok := srv.registry.Get("job-done")
	assert.False(t, ok)
	srv.Stop()
}

func TestGetHealthReportsOKWithoutDriver(t *testing.T) {
	srv, _ := newTestServer(t)
	router := srv.GetRouter()

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var payload struct {
		DockerOK bool `json:"docker_ok"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	assert.False(t, payload.DockerOK)
	srv.Stop()
}

func TestReportContentReturnsJSONEnvelope(t *testing.T) {
	srv, _ := newTestServer(t)
	router := srv.GetRouter()

	state := &agents.MigrationState{ID: "job-report", Status: workflow.StatusDeployed, CreatedAt: time.Now()}
	srv.registry.Register(state)

	req := httptest.NewRequest(http.MethodGet, "/api/migrations/job-report/report_content", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var payload struct {
		Type    string `json:"type"`
		Content string `json:"content"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	assert.Contains(t, payload.Content, "job-report")
	srv.Stop()
}
