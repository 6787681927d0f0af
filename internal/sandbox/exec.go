package sandbox

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/docker/docker/api/types/container"
)

// execResult is the outcome of running one command inside a container.
type execResult struct {
	ExitCode int
	Output   string
}

// execInContainer runs cmd inside containerID and returns its combined
// stdout/stderr and exit code.
func (c *dockerClient) execInContainer(ctx context.Context, containerID string, cmd []string, workDir string) (execResult, error) {
	cli := c.raw()

	execCfg := container.ExecOptions{
		Cmd:          cmd,
		AttachStdout: true,
		AttachStderr: true,
		WorkingDir:   workDir,
	}

	created, err := cli.ContainerExecCreate(ctx, containerID, execCfg)
	if err != nil {
		return execResult{}, fmt.Errorf("exec create failed: %w", err)
	}

	attach, err := cli.ContainerExecAttach(ctx, created.ID, container.ExecStartOptions{})
	if err != nil {
		return execResult{}, fmt.Errorf("exec attach failed: %w", err)
	}
	defer attach.Close()

	raw, err := io.ReadAll(attach.Reader)
	if err != nil {
		return execResult{}, fmt.Errorf("exec read failed: %w", err)
	}

	inspect, err := cli.ContainerExecInspect(ctx, created.ID)
	if err != nil {
		return execResult{}, fmt.Errorf("exec inspect failed: %w", err)
	}

	return execResult{
		ExitCode: inspect.ExitCode,
		Output:   string(stripDockerLogHeader(raw)),
	}, nil
}

// stripDockerLogHeader removes Docker's multiplexed stream headers,
// grounded on the teacher's internal/server/websocket.go helper of the
// same name — copied near verbatim since Docker's exec attach
// multiplexes stdout/stderr the same way container logs do.
func stripDockerLogHeader(data []byte) []byte {
	var result []byte
	for len(data) >= 8 {
		size := int(data[4])<<24 | int(data[5])<<16 | int(data[6])<<8 | int(data[7])
		if size <= 0 || 8+size > len(data) {
			result = append(result, data...)
			break
		}
		result = append(result, data[8:8+size]...)
		data = data[8+size:]
	}
	if len(data) > 0 && len(result) == 0 {
		return data
	}
	return result
}

// tailLines returns at most n trailing lines of s.
func tailLines(s string, n int) string {
	var lines []string
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] == '\n' {
			lines = append(lines, s[start:i])
			start = i + 1
		}
	}
	if start < len(s) {
		lines = append(lines, s[start:])
	}
	if len(lines) <= n {
		return s
	}
	var buf bytes.Buffer
	for _, l := range lines[len(lines)-n:] {
		buf.WriteString(l)
		buf.WriteByte('\n')
	}
	return buf.String()
}
