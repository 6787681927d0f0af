package sandbox

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/artemis/ai-modernizer/internal/observability"
	"github.com/docker/docker/client"
	"go.uber.org/zap"
)

// dockerClient is a thin wrapper over the Docker SDK client, copied and
// trimmed from the teacher's internal/docker/client.go: connection
// validation at construction, a withRetry exponential backoff helper,
// and per-operation Prometheus instrumentation.
type dockerClient struct {
	cli    *client.Client
	logger *observability.Logger

	mu     sync.RWMutex
	closed bool
}

func newDockerClient(logger *observability.Logger, host string) (*dockerClient, error) {
	opts := []client.Opt{
		client.FromEnv,
		client.WithAPIVersionNegotiation(),
	}
	if host != "" {
		opts = append(opts, client.WithHost(host))
	}

	cli, err := client.NewClientWithOpts(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create docker client: %w", err)
	}

	dc := &dockerClient{cli: cli, logger: logger}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := dc.ping(ctx); err != nil {
		cli.Close()
		return nil, fmt.Errorf("docker daemon unreachable: %w", err)
	}

	if logger != nil {
		logger.Info("sandbox docker client connected successfully")
	}
	return dc, nil
}

func (c *dockerClient) ping(ctx context.Context) error {
	c.mu.RLock()
	if c.closed {
		c.mu.RUnlock()
		return fmt.Errorf("client is closed")
	}
	cli := c.cli
	c.mu.RUnlock()

	start := time.Now()
	_, err := cli.Ping(ctx)
	observability.SandboxOperationDuration.WithLabelValues("ping").Observe(time.Since(start).Seconds())

	if err != nil {
		observability.SandboxOperations.WithLabelValues("ping", "error").Inc()
		return fmt.Errorf("ping failed: %w", err)
	}
	observability.SandboxOperations.WithLabelValues("ping", "success").Inc()
	return nil
}

func (c *dockerClient) close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	return c.cli.Close()
}

func (c *dockerClient) raw() *client.Client {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.cli
}

// withRetry executes an operation with exponential backoff retry logic,
// grounded on internal/docker/client.go's withRetry.
func (c *dockerClient) withRetry(ctx context.Context, operation string, maxRetries int, fn func() error) error {
	backoff := time.Second
	maxBackoff := 30 * time.Second

	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				observability.RetryAttempts.WithLabelValues("cancelled").Inc()
				return fmt.Errorf("operation cancelled during retry: %w", ctx.Err())
			case <-time.After(backoff):
				backoff *= 2
				if backoff > maxBackoff {
					backoff = maxBackoff
				}
			}
			if c.logger != nil {
				c.logger.Info("retrying sandbox operation",
					zap.String("operation", operation),
					zap.Int("attempt", attempt),
				)
			}
		}

		if err := fn(); err != nil {
			lastErr = err
			if !isRetriableDockerError(err) {
				observability.RetryAttempts.WithLabelValues("permanent_failure").Inc()
				return err
			}
			observability.RetryAttempts.WithLabelValues("retry").Inc()
			continue
		}

		if attempt > 0 {
			observability.RetryAttempts.WithLabelValues("success_after_retry").Inc()
		}
		return nil
	}

	observability.RetryAttempts.WithLabelValues("exhausted").Inc()
	return fmt.Errorf("operation %s failed after %d retries: %w", operation, maxRetries, lastErr)
}

func isRetriableDockerError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	for _, pattern := range []string{"connection refused", "connection reset", "timeout", "temporary failure", "EOF", "broken pipe"} {
		if strings.Contains(msg, pattern) {
			return true
		}
	}
	return false
}
