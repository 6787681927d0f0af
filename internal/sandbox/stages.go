package sandbox

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/artemis/ai-modernizer/internal/apperrors"
	"github.com/artemis/ai-modernizer/internal/observability"
)

func installCommand(kind ProjectKind) []string {
	switch kind {
	case KindNodeJS:
		return []string{"npm", "install"}
	case KindPython:
		return []string{"pip", "install", "-r", "requirements.txt"}
	default:
		return nil
	}
}

// install runs the package manager's install step and captures its
// combined output for later analysis.
func (c *dockerClient) install(ctx context.Context, containerID string, kind ProjectKind) (ok bool, log string, err error) {
	start := time.Now()
	res, err := c.execInContainer(ctx, containerID, installCommand(kind), "/workspace")
	observability.SandboxOperationDuration.WithLabelValues("install").Observe(time.Since(start).Seconds())
	if err != nil {
		observability.SandboxOperations.WithLabelValues("install", "error").Inc()
		return false, "", apperrors.Wrap(apperrors.KindSandboxUnavailable, "install exec failed", err)
	}
	status := "success"
	if res.ExitCode != 0 {
		status = "error"
	}
	observability.SandboxOperations.WithLabelValues("install", status).Inc()
	return res.ExitCode == 0, tailLines(res.Output, 200), nil
}

func startCommand(kind ProjectKind) string {
	switch kind {
	case KindNodeJS:
		return "npm start"
	case KindPython:
		return "python app.py"
	default:
		return ""
	}
}

// runStartup backgrounds the project's start command inside the
// container via a wrapper script that records the child's PID in a
// sentinel file, waits a stabilization delay, then checks whether
// the sentinel PID is still alive. stabilizeFor defaults to 3s.
func (c *dockerClient) runStartup(ctx context.Context, containerID string, kind ProjectKind, stabilizeFor time.Duration) (ok bool, log string, err error) {
	if stabilizeFor <= 0 {
		stabilizeFor = 3 * time.Second
	}
	cmd := startCommand(kind)
	if cmd == "" {
		return false, "", apperrors.New(apperrors.KindRuntimeFailure, "no startup command for project kind")
	}

	wrapper := fmt.Sprintf(
		"(%s > /tmp/startup.log 2>&1 & echo $! > /tmp/startup.pid); sleep %d; "+
			"if kill -0 $(cat /tmp/startup.pid) 2>/dev/null; then echo RUNNING; else echo EXITED; fi",
		cmd, int(stabilizeFor.Seconds()),
	)

	start := time.Now()
	res, err := c.execInContainer(ctx, containerID, []string{"sh", "-c", wrapper}, "/workspace")
	observability.SandboxOperationDuration.WithLabelValues("run_startup").Observe(time.Since(start).Seconds())
	if err != nil {
		observability.SandboxOperations.WithLabelValues("run_startup", "error").Inc()
		return false, "", apperrors.Wrap(apperrors.KindRuntimeFailure, "startup exec failed", err)
	}

	logRes, _ := c.execInContainer(ctx, containerID, []string{"sh", "-c", "cat /tmp/startup.log 2>/dev/null || true"}, "/workspace")
	runtimeLog := tailLines(logRes.Output, 200)

	running := strings.Contains(res.Output, "RUNNING")
	status := "success"
	if !running {
		status = "error"
	}
	observability.SandboxOperations.WithLabelValues("run_startup", status).Inc()
	return running, runtimeLog, nil
}

var healthLadder = []time.Duration{
	1 * time.Second, 2 * time.Second, 4 * time.Second, 8 * time.Second, 8 * time.Second,
}

// health retries a GET against the container's health path from inside
// the container itself (execInContainer runs in the container's own
// network namespace, so it must address the app's listen port by
// convention, not the ephemeral host-side port docker mapped it to),
// accepting any 2xx. If no health path is configured, health is assumed
// to track runtime status.
func (c *dockerClient) health(ctx context.Context, containerID string, healthPath string, kind ProjectKind, runtimeOK bool) (ok bool, err error) {
	containerPort := strings.TrimSuffix(containerPortFor(kind), "/tcp")
	if healthPath == "" || containerPort == "" {
		return runtimeOK, nil
	}

	url := fmt.Sprintf("http://127.0.0.1:%s%s", containerPort, healthPath)
	for i, wait := range healthLadder {
		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case <-time.After(wait):
		}

		res, execErr := c.execInContainer(ctx, containerID, []string{
			"sh", "-c", fmt.Sprintf("curl -s -o /dev/null -w '%%{http_code}' %s || true", url),
		}, "/workspace")
		if execErr == nil {
			code := strings.TrimSpace(res.Output)
			if len(code) == 3 && code[0] == '2' {
				observability.SandboxOperations.WithLabelValues("health", "success").Inc()
				return true, nil
			}
		}
		_ = i
	}
	observability.SandboxOperations.WithLabelValues("health", "error").Inc()
	return false, nil
}

var (
	jsTestSummaryRe     = regexp.MustCompile(`(\d+)\s+passing`)
	jsTestFailRe        = regexp.MustCompile(`(\d+)\s+failing`)
	pytestSummaryRe     = regexp.MustCompile(`(\d+)\s+passed.*?(\d+)\s+failed`)
	pytestAllPassedRe   = regexp.MustCompile(`(\d+)\s+passed`)
)

// hasTestScript reports whether package.json declares a "test" script
// other than npm's default failing placeholder.
func hasTestScript(packageJSON string) bool {
	var doc struct {
		Scripts map[string]string `json:"scripts"`
	}
	if err := json.Unmarshal([]byte(packageJSON), &doc); err != nil {
		return false
	}
	script, ok := doc.Scripts["test"]
	if !ok {
		return false
	}
	return !strings.Contains(script, "no test specified")
}

// runTests execs the project's test command, if one is configured, and
// extracts a human-readable pass/fail summary from its output.
func (c *dockerClient) runTests(ctx context.Context, containerID string, kind ProjectKind, hasTests bool) (ran, ok bool, log, summary string, err error) {
	if !hasTests {
		return false, true, "", "", nil
	}

	var cmd []string
	switch kind {
	case KindNodeJS:
		cmd = []string{"npm", "test"}
	case KindPython:
		cmd = []string{"sh", "-c", "pytest -q || python -m pytest -q"}
	default:
		return false, true, "", "", nil
	}

	testCtx, cancel := context.WithTimeout(ctx, 120*time.Second)
	defer cancel()

	start := time.Now()
	res, err := c.execInContainer(testCtx, containerID, cmd, "/workspace")
	observability.SandboxOperationDuration.WithLabelValues("run_tests").Observe(time.Since(start).Seconds())
	if err != nil {
		observability.SandboxOperations.WithLabelValues("run_tests", "error").Inc()
		return true, false, "", "", apperrors.Wrap(apperrors.KindTestFailure, "test exec failed", err)
	}

	output := tailLines(res.Output, 200)
	summary = summarizeTestOutput(kind, res.Output)
	status := "success"
	if res.ExitCode != 0 {
		status = "error"
	}
	observability.SandboxOperations.WithLabelValues("run_tests", status).Inc()
	return true, res.ExitCode == 0, output, summary, nil
}

func summarizeTestOutput(kind ProjectKind, output string) string {
	switch kind {
	case KindNodeJS:
		passing := jsTestSummaryRe.FindStringSubmatch(output)
		failing := jsTestFailRe.FindStringSubmatch(output)
		if passing == nil && failing == nil {
			return ""
		}
		p, f := "0", "0"
		if passing != nil {
			p = passing[1]
		}
		if failing != nil {
			f = failing[1]
		}
		return fmt.Sprintf("%s passing, %s failing", p, f)
	case KindPython:
		if m := pytestSummaryRe.FindStringSubmatch(output); m != nil {
			return fmt.Sprintf("%s passed, %s failed", m[1], m[2])
		}
		if m := pytestAllPassedRe.FindStringSubmatch(output); m != nil {
			return fmt.Sprintf("%s passed, 0 failed", m[1])
		}
		return ""
	default:
		return ""
	}
}
