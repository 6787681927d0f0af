package toolhost

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os/exec"
	"sync"
	"sync/atomic"
	"time"

	"github.com/artemis/ai-modernizer/internal/apperrors"
	"github.com/artemis/ai-modernizer/internal/observability"
	"go.uber.org/zap"
)

// child wraps one running tool server process. Calls against the same
// child are serialized with mu, grounded on the teacher's streamMu
// guarding a single gRPC stream per worker: one in-flight request per
// pipe at a time, since the protocol has no multiplexing of its own.
type child struct {
	name string
	cmd  *exec.Cmd
	in   io.WriteCloser
	out  *bufio.Scanner

	mu     sync.Mutex
	nextID int64

	// waitDone is closed by the goroutine startChild spawns around
	// cmd.Wait, the single owner of that call. Anything that needs to
	// know whether the process has exited selects on this channel
	// instead of calling Wait a second time, which os/exec rejects.
	waitDone chan struct{}
	exited   atomic.Bool
}

func (c *child) hasExited() bool {
	return c.exited.Load()
}

// Host launches every configured tool server at construction time and
// exposes a uniform Call method. When a named server is absent or has
// exited, Call falls through to an in-process fallback implementation
// instead of failing outright.
type Host struct {
	logger  *observability.Logger
	metrics *observability.Metrics

	mu       sync.RWMutex
	children map[string]*child

	fsFallback       ToolCaller
	codeHostFallback ToolCaller
}

// ToolCaller is the interface the in-process fallbacks implement. Host
// dispatches to one when the named tool server is unavailable, so
// FSClient/CodeHostClient, which always call through Host, do not know
// which backend served the call.
type ToolCaller interface {
	Call(ctx context.Context, method string, params interface{}, result interface{}) error
}

// NewHost launches the configured servers and returns a ready Host. A
// server that fails to start is logged and simply left out of the
// children map; Call on that name degrades to its fallback.
func NewHost(configs map[string]ServerConfig, fs, codeHost ToolCaller, logger *observability.Logger, metrics *observability.Metrics) *Host {
	h := &Host{
		logger:           logger,
		metrics:          metrics,
		children:         make(map[string]*child),
		fsFallback:       fs,
		codeHostFallback: codeHost,
	}

	for name, cfg := range configs {
		if logger != nil && len(cfg.Env) > 0 {
			logger.Info("starting tool server",
				zap.String("name", name),
				zap.String("command", cfg.Command),
				zap.Strings("env", observability.RedactEnv(cfg.Env)),
			)
		}

		c, err := startChild(name, cfg)
		if err != nil {
			if logger != nil {
				logger.ErrorRedacted("failed to start tool server", zap.String("name", name), zap.Error(err))
			}
			continue
		}
		h.children[name] = c
	}

	return h
}

func startChild(name string, cfg ServerConfig) (*child, error) {
	cmd := exec.Command(cfg.Command, cfg.Args...)
	cmd.Env = cfg.Env

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("stdin pipe for %s: %w", name, err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("stdout pipe for %s: %w", name, err)
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start %s: %w", name, err)
	}

	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	c := &child{name: name, cmd: cmd, in: stdin, out: scanner, waitDone: make(chan struct{})}

	go func() {
		_ = cmd.Wait()
		c.exited.Store(true)
		close(c.waitDone)
	}()

	return c, nil
}

// Call dispatches method against the named server, falling back to an
// in-process implementation when the server is unavailable.
func (h *Host) Call(ctx context.Context, server, method string, params interface{}, result interface{}) error {
	h.mu.RLock()
	c, ok := h.children[server]
	h.mu.RUnlock()

	status := "ok"
	transport := "subprocess"
	defer func() {
		if h.metrics != nil {
			observability.ToolCalls.WithLabelValues(method, transport, status).Inc()
		}
	}()

	if !ok || c.hasExited() {
		transport = "fallback"
		fallback := h.fallbackFor(server)
		if fallback == nil {
			status = "unavailable"
			return apperrors.New(apperrors.KindToolUnavailable, fmt.Sprintf("tool server %q unavailable and no fallback configured", server))
		}
		if err := fallback.Call(ctx, method, params, result); err != nil {
			status = "error"
			return err
		}
		return nil
	}

	if err := c.call(ctx, method, params, result); err != nil {
		status = "error"
		return err
	}
	return nil
}

func (h *Host) fallbackFor(server string) ToolCaller {
	switch server {
	case "fs":
		return h.fsFallback
	case "code_host":
		return h.codeHostFallback
	default:
		return nil
	}
}

func (c *child) call(ctx context.Context, method string, params interface{}, result interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	id := fmt.Sprintf("%s-%d", c.name, atomic.AddInt64(&c.nextID, 1))

	rawParams, err := json.Marshal(params)
	if err != nil {
		return apperrors.Wrap(apperrors.KindToolUnavailable, "failed to marshal tool params", err)
	}

	req := Request{ID: id, Method: method, Params: rawParams}
	line, err := json.Marshal(req)
	if err != nil {
		return apperrors.Wrap(apperrors.KindToolUnavailable, "failed to marshal tool request", err)
	}

	type callResult struct {
		resp Response
		err  error
	}
	done := make(chan callResult, 1)

	go func() {
		if _, err := c.in.Write(append(line, '\n')); err != nil {
			done <- callResult{err: err}
			return
		}
		if !c.out.Scan() {
			done <- callResult{err: c.out.Err()}
			return
		}
		var resp Response
		if err := json.Unmarshal(c.out.Bytes(), &resp); err != nil {
			done <- callResult{err: err}
			return
		}
		done <- callResult{resp: resp}
	}()

	select {
	case <-ctx.Done():
		return apperrors.New(apperrors.KindToolTimeout, fmt.Sprintf("tool call %s/%s timed out", c.name, method))
	case res := <-done:
		if res.err != nil {
			return apperrors.Wrap(apperrors.KindToolUnavailable, "tool call transport error", res.err)
		}
		if res.resp.Error != "" {
			return apperrors.New(apperrors.KindToolUnavailable, res.resp.Error)
		}
		if result != nil && len(res.resp.Result) > 0 {
			if err := json.Unmarshal(res.resp.Result, result); err != nil {
				return apperrors.Wrap(apperrors.KindToolUnavailable, "failed to parse tool result", err)
			}
		}
		return nil
	}
}

// Close sends SIGTERM to every running child, waits a bounded grace
// period, then SIGKILLs stragglers — the same two-phase shutdown the
// teacher's main.go applies to its gRPC/HTTP servers on SIGTERM/SIGINT.
func (h *Host) Close() {
	h.mu.RLock()
	children := make([]*child, 0, len(h.children))
	for _, c := range h.children {
		children = append(children, c)
	}
	h.mu.RUnlock()

	for _, c := range children {
		if c.hasExited() {
			continue
		}
		_ = c.cmd.Process.Signal(cmdTermSignal)
	}

	grace := time.NewTimer(5 * time.Second)
	defer grace.Stop()

	done := make(chan struct{})
	go func() {
		for _, c := range children {
			<-c.waitDone
		}
		close(done)
	}()

	select {
	case <-done:
	case <-grace.C:
		for _, c := range children {
			if !c.hasExited() {
				_ = c.cmd.Process.Kill()
			}
		}
	}
}
